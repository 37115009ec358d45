//go:build integration

package e2e_harness

import (
	"context"
	"fmt"
	"os"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lychee-technology/lowcoder"
	"github.com/lychee-technology/lowcoder/factory"
	"github.com/lychee-technology/lowcoder/internal"
)

func TestE2EImportLifecycle(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping E2E harness in -short mode")
	}
	ctx := context.Background()
	h := &TestHarness{}

	dsn, err := h.StartPostgres(ctx)
	if err != nil {
		t.Fatalf("start postgres: %v", err)
	}
	defer h.StopPostgres(ctx)

	if _, err := h.StartS3(ctx); err != nil {
		t.Fatalf("start rustfs: %v", err)
	}
	defer h.StopS3(ctx)

	if err := h.StartDuckDB(lowcoder.DuckDBConfig{}); err != nil {
		t.Fatalf("start duckdb: %v", err)
	}
	defer h.StopDuckDB()

	cfg := h.Config("lowcoder-e2e")
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		t.Fatalf("connect pgx: %v", err)
	}
	defer pool.Close()

	names := cfg.Database.TableNames
	if err := factory.InitDatabase(ctx, pool, names); err != nil {
		t.Fatalf("init database: %v", err)
	}
	// DDL is idempotent.
	if err := factory.InitDatabase(ctx, pool, names); err != nil {
		t.Fatalf("re-run init database: %v", err)
	}
	if err := internal.PostgresHealthCheck(ctx, pool, names, 0); err != nil {
		t.Fatalf("health check: %v", err)
	}

	sm, cleanup, err := factory.NewSchemaManagerWithConfig(ctx, cfg, pool)
	if err != nil {
		t.Fatalf("schema manager: %v", err)
	}
	defer cleanup()

	blobs, err := internal.NewBlobStore(ctx, cfg.Storage)
	if err != nil {
		t.Fatalf("blob store: %v", err)
	}

	dir := t.TempDir()
	workbook, err := WriteStaffWorkbook(dir)
	if err != nil {
		t.Fatalf("write workbook: %v", err)
	}
	f, err := os.Open(workbook)
	if err != nil {
		t.Fatal(err)
	}
	storageKey := "documents/1/staff.xlsx"
	if err := blobs.Put(ctx, storageKey, f); err != nil {
		f.Close()
		t.Fatalf("upload workbook: %v", err)
	}
	f.Close()

	result, err := sm.ImportDocument(ctx, &lowcoder.ImportRequest{
		ProjectID:  1,
		Path:       workbook,
		StorageKey: storageKey,
	})
	if err != nil {
		t.Fatalf("import workbook: %v", err)
	}
	if len(result.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(result.Tables))
	}
	staff := result.Tables[0]
	if staff.Table.Name != "Staff" || !staff.Table.IsMainEntity || staff.Table.Index != 1 {
		t.Errorf("unexpected first table %+v", staff.Table)
	}
	if len(staff.Fields) != 4 {
		t.Errorf("expected 4 staff fields, got %d", len(staff.Fields))
	}

	csvPath, err := WriteOrdersCSV(ctx, h.Duck, dir)
	if err != nil {
		t.Fatalf("write csv: %v", err)
	}
	orders, err := sm.ImportDocument(ctx, &lowcoder.ImportRequest{ProjectID: 2, Path: csvPath})
	if err != nil {
		t.Fatalf("import csv: %v", err)
	}
	if len(orders.Tables) != 1 || orders.Tables[0].Table.Name != internal.CSVSheetName {
		t.Fatalf("expected one %s table, got %+v", internal.CSVSheetName, orders.Tables)
	}
	if got := len(orders.Tables[0].Fields); got != 3 {
		t.Errorf("expected 3 order fields, got %d", got)
	}

	snapshot, err := sm.GetSchema(ctx, 1)
	if err != nil {
		t.Fatalf("get schema: %v", err)
	}
	tableCount, err := CountRows(ctx, h.PGDB,
		fmt.Sprintf("SELECT count(*) FROM %s WHERE schema_id = $1", names.Tables), snapshot.Schema.ID)
	if err != nil {
		t.Fatal(err)
	}
	if tableCount != 2 || len(snapshot.Tables) != 2 {
		t.Errorf("expected 2 tables, got %d rows and %d in snapshot", tableCount, len(snapshot.Tables))
	}

	if err := sm.DeleteDocument(ctx, result.Document.ID); err != nil {
		t.Fatalf("delete document: %v", err)
	}
	sheetCount, err := CountRows(ctx, h.PGDB,
		fmt.Sprintf("SELECT count(*) FROM %s WHERE document_id = $1", names.Sheets), result.Document.ID)
	if err != nil {
		t.Fatal(err)
	}
	if sheetCount != 0 {
		t.Errorf("expected sheets to be removed with the document, got %d", sheetCount)
	}

	snapshot, err = sm.GetSchema(ctx, 1)
	if err != nil {
		t.Fatalf("get schema after delete: %v", err)
	}
	for _, tm := range snapshot.Tables {
		if tm.Table.Name == "Staff" && tm.Table.HeadlineID != nil {
			t.Errorf("expected Staff to lose its headline, got %d", *tm.Table.HeadlineID)
		}
	}
}

package e2e_harness

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/lychee-technology/lowcoder/internal"
	"github.com/xuri/excelize/v2"
)

var staffRows = [][]any{
	{"Name", "Department", "Salary", "Hired"},
	{"Ada", "Research", 5200.5, "2019-03-01"},
	{"Grace", "Research", 6100, "2017-11-15"},
	{"Linus", "Platform", 4800, "2021-06-30"},
	{"Ken", "Platform", 5000, "2018-01-08"},
	{"Barbara", "Sales", 3900, "2022-09-12"},
}

var departmentRows = [][]any{
	{"Department", "Floor"},
	{"Research", 3},
	{"Platform", 2},
	{"Sales", 1},
}

// WriteStaffWorkbook writes a workbook with a Staff and a Departments sheet.
func WriteStaffWorkbook(outDir string) (string, error) {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", "Staff"); err != nil {
		return "", err
	}
	if _, err := f.NewSheet("Departments"); err != nil {
		return "", err
	}
	for sheet, rows := range map[string][][]any{"Staff": staffRows, "Departments": departmentRows} {
		for i, row := range rows {
			cell, err := excelize.CoordinatesToCellName(1, i+1)
			if err != nil {
				return "", err
			}
			if err := f.SetSheetRow(sheet, cell, &row); err != nil {
				return "", fmt.Errorf("write %s row %d: %w", sheet, i, err)
			}
		}
	}

	path := filepath.Join(outDir, "staff.xlsx")
	if err := f.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	return path, nil
}

// WriteOrdersCSV exports a generated orders table to CSV through DuckDB.
func WriteOrdersCSV(ctx context.Context, duck *internal.DuckDBClient, outDir string) (string, error) {
	if duck == nil || duck.DB == nil {
		return "", fmt.Errorf("duckdb client is nil")
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return "", err
	}
	csvPath := filepath.Join(outDir, "orders.csv")

	ctxExec, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	stmt := fmt.Sprintf(`COPY (
		SELECT i AS order_no,
		       'customer ' || (i %% 4) AS customer,
		       round(i * 12.25, 2) AS amount
		FROM range(1, 21) t(i)
	) TO '%s' (HEADER, DELIMITER ',');`, csvPath)
	if _, err := duck.DB.ExecContext(ctxExec, stmt); err != nil {
		return "", fmt.Errorf("export orders csv: %w", err)
	}
	return csvPath, nil
}

// CountRows runs a single value count query.
func CountRows(ctx context.Context, db *sql.DB, query string, args ...any) (int, error) {
	var n int
	if err := db.QueryRowContext(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return n, nil
}

package internal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lychee-technology/lowcoder"
	"go.uber.org/zap"
)

type schemaQuerier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

type schemaPool interface {
	schemaQuerier
	BeginTx(ctx context.Context, txOptions pgx.TxOptions) (pgx.Tx, error)
}

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

var tableColumns = []string{
	"id", "schema_id", "name", "description", "idx", "is_main_entity", "exclude",
	"headline_id", "created_at", "updated_at",
}

var fieldColumns = []string{
	"id", "table_id", "name", "description", "datatype", "max_length", "max_digits",
	"decimal_places", "default_value", "choices", "blank", "null_value",
	"foreign_key_table_id", "is_unique", "use_index", "show_in_list", "show_in_detail",
	"validation_pattern", "exclude", "idx", "column_id", "created_at", "updated_at",
}

// PostgresSchemaRepository stores schemas in PostgreSQL. A unit of work is a
// transaction holding pg_advisory_xact_lock on the schema id.
type PostgresSchemaRepository struct {
	pool    schemaPool
	names   lowcoder.TableNames
	nowFunc func() time.Time
}

func NewPostgresSchemaRepository(pool schemaPool, names lowcoder.TableNames) *PostgresSchemaRepository {
	return &PostgresSchemaRepository{pool: pool, names: names, nowFunc: time.Now}
}

func (r *PostgresSchemaRepository) now() time.Time {
	return r.nowFunc().UTC()
}

func (r *PostgresSchemaRepository) EnsureSchema(ctx context.Context, projectID int64) (*lowcoder.Schema, error) {
	now := r.now()
	query, args, err := psql.Insert(sanitizeIdentifier(r.names.Schemas)).
		Columns("project_id", "created_at", "updated_at").
		Values(projectID, now, now).
		Suffix("ON CONFLICT (project_id) DO UPDATE SET project_id = EXCLUDED.project_id RETURNING id, project_id, created_at, updated_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build ensure schema: %w", err)
	}
	var s lowcoder.Schema
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&s.ID, &s.ProjectID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, fmt.Errorf("ensure schema for project %d: %w", projectID, err)
	}
	return &s, nil
}

func (r *PostgresSchemaRepository) GetSchemaByProject(ctx context.Context, projectID int64) (*lowcoder.Schema, error) {
	query, args, err := psql.Select("id", "project_id", "created_at", "updated_at").
		From(sanitizeIdentifier(r.names.Schemas)).
		Where(sq.Eq{"project_id": projectID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get schema: %w", err)
	}
	var s lowcoder.Schema
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&s.ID, &s.ProjectID, &s.CreatedAt, &s.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lowcoder.NewNotFoundError("schema for project", projectID)
		}
		return nil, fmt.Errorf("get schema for project %d: %w", projectID, err)
	}
	return &s, nil
}

func (r *PostgresSchemaRepository) scalarOwner(ctx context.Context, entity string, id int64, b sq.SelectBuilder) (int64, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s owner lookup: %w", entity, err)
	}
	var schemaID int64
	if err := r.pool.QueryRow(ctx, query, args...).Scan(&schemaID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, lowcoder.NewNotFoundError(entity, id)
		}
		return 0, fmt.Errorf("lookup schema of %s %d: %w", entity, id, err)
	}
	return schemaID, nil
}

func (r *PostgresSchemaRepository) SchemaOfTable(ctx context.Context, tableID int64) (int64, error) {
	return r.scalarOwner(ctx, "table", tableID, psql.Select("schema_id").
		From(sanitizeIdentifier(r.names.Tables)).
		Where(sq.Eq{"id": tableID}))
}

func (r *PostgresSchemaRepository) SchemaOfField(ctx context.Context, fieldID int64) (int64, error) {
	return r.scalarOwner(ctx, "field", fieldID, psql.Select("t.schema_id").
		From(sanitizeIdentifier(r.names.Fields)+" f").
		Join(sanitizeIdentifier(r.names.Tables)+" t ON t.id = f.table_id").
		Where(sq.Eq{"f.id": fieldID}))
}

func (r *PostgresSchemaRepository) SchemaOfDocument(ctx context.Context, documentID int64) (int64, error) {
	return r.scalarOwner(ctx, "document", documentID, psql.Select("schema_id").
		From(sanitizeIdentifier(r.names.Documents)).
		Where(sq.Eq{"id": documentID}))
}

func (r *PostgresSchemaRepository) InSchemaScope(ctx context.Context, schemaID int64, fn func(ctx context.Context, store SchemaStore) error) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) // no-op if committed

	if _, err := tx.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", schemaID); err != nil {
		return fmt.Errorf("acquire schema lock %d: %w", schemaID, err)
	}

	store := &postgresStore{q: tx, names: r.names, now: r.now}
	if err := fn(ctx, store); err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

type postgresStore struct {
	q     schemaQuerier
	names lowcoder.TableNames
	now   func() time.Time
}

type scanner interface {
	Scan(dest ...any) error
}

func nullIndex(i int) any {
	if i <= 0 {
		return nil
	}
	return i
}

func scanTable(row scanner) (lowcoder.Table, error) {
	var t lowcoder.Table
	var idx *int
	err := row.Scan(&t.ID, &t.SchemaID, &t.Name, &t.Description, &idx, &t.IsMainEntity,
		&t.Exclude, &t.HeadlineID, &t.CreatedAt, &t.UpdatedAt)
	if idx != nil {
		t.Index = *idx
	}
	return t, err
}

func scanField(row scanner) (lowcoder.Field, error) {
	var f lowcoder.Field
	var idx *int
	var datatype string
	var choices []byte
	err := row.Scan(&f.ID, &f.TableID, &f.Name, &f.Description, &datatype, &f.MaxLength,
		&f.MaxDigits, &f.DecimalPlaces, &f.DefaultValue, &choices, &f.Blank, &f.Null,
		&f.ForeignKeyTableID, &f.IsUnique, &f.UseIndex, &f.ShowInList, &f.ShowInDetail,
		&f.ValidationPattern, &f.Exclude, &idx, &f.ColumnID, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		return f, err
	}
	f.Datatype = lowcoder.Datatype(datatype)
	if idx != nil {
		f.Index = *idx
	}
	if len(choices) > 0 {
		if err := json.Unmarshal(choices, &f.Choices); err != nil {
			return f, fmt.Errorf("decode choices of field %d: %w", f.ID, err)
		}
	}
	return f, nil
}

func encodeChoices(c lowcoder.Choices) ([]byte, error) {
	if len(c) == 0 {
		return nil, nil
	}
	return json.Marshal(c)
}

func (s *postgresStore) queryTables(ctx context.Context, b sq.SelectBuilder) ([]lowcoder.Table, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build table query: %w", err)
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query tables: %w", err)
	}
	defer rows.Close()

	out := make([]lowcoder.Table, 0)
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, fmt.Errorf("scan table: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (s *postgresStore) queryFields(ctx context.Context, b sq.SelectBuilder) ([]lowcoder.Field, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build field query: %w", err)
	}
	rows, err := s.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query fields: %w", err)
	}
	defer rows.Close()

	out := make([]lowcoder.Field, 0)
	for rows.Next() {
		f, err := scanField(rows)
		if err != nil {
			return nil, fmt.Errorf("scan field: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *postgresStore) selectTables() sq.SelectBuilder {
	return psql.Select(tableColumns...).From(sanitizeIdentifier(s.names.Tables))
}

func (s *postgresStore) selectFields() sq.SelectBuilder {
	return psql.Select(fieldColumns...).From(sanitizeIdentifier(s.names.Fields))
}

func (s *postgresStore) exec(ctx context.Context, what string, b sq.Sqlizer) (pgconn.CommandTag, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return pgconn.CommandTag{}, fmt.Errorf("build %s: %w", what, err)
	}
	tag, err := s.q.Exec(ctx, query, args...)
	if err != nil {
		return tag, translatePgError(what, err)
	}
	return tag, nil
}

// translatePgError maps unique violations to conflict errors.
func translatePgError(what string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		code := lowcoder.ErrCodeDuplicateIndex
		if pgErr.ConstraintName != "" && strings.Contains(strings.ToLower(pgErr.ConstraintName), "main_entity") {
			code = lowcoder.ErrCodeDuplicateMainEntity
		}
		return lowcoder.NewLowcoderError(lowcoder.ErrorTypeConflict, code, what+": "+pgErr.Detail).WithCause(err)
	}
	return fmt.Errorf("%s: %w", what, err)
}

func (s *postgresStore) ListTables(ctx context.Context, schemaID int64) ([]lowcoder.Table, error) {
	return s.queryTables(ctx, s.selectTables().Where(sq.Eq{"schema_id": schemaID}).OrderBy("idx NULLS FIRST", "id"))
}

func (s *postgresStore) GetTable(ctx context.Context, tableID int64) (*lowcoder.Table, error) {
	tables, err := s.queryTables(ctx, s.selectTables().Where(sq.Eq{"id": tableID}))
	if err != nil {
		return nil, err
	}
	if len(tables) == 0 {
		return nil, lowcoder.NewNotFoundError("table", tableID)
	}
	return &tables[0], nil
}

func (s *postgresStore) FindTableByIndex(ctx context.Context, schemaID int64, index int) (*lowcoder.Table, error) {
	tables, err := s.queryTables(ctx, s.selectTables().Where(sq.Eq{"schema_id": schemaID, "idx": index}))
	if err != nil || len(tables) == 0 {
		return nil, err
	}
	return &tables[0], nil
}

func (s *postgresStore) InsertTable(ctx context.Context, table *lowcoder.Table) error {
	now := s.now()
	query, args, err := psql.Insert(sanitizeIdentifier(s.names.Tables)).
		Columns(tableColumns[1:]...).
		Values(table.SchemaID, table.Name, table.Description, nullIndex(table.Index), table.IsMainEntity,
			table.Exclude, table.HeadlineID, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert table: %w", err)
	}
	if err := s.q.QueryRow(ctx, query, args...).Scan(&table.ID); err != nil {
		return translatePgError("insert table", err)
	}
	table.CreatedAt, table.UpdatedAt = now, now
	return nil
}

func (s *postgresStore) UpdateTable(ctx context.Context, table *lowcoder.Table) error {
	now := s.now()
	tag, err := s.exec(ctx, "update table", psql.Update(sanitizeIdentifier(s.names.Tables)).
		SetMap(map[string]any{
			"name":           table.Name,
			"description":    table.Description,
			"idx":            nullIndex(table.Index),
			"is_main_entity": table.IsMainEntity,
			"exclude":        table.Exclude,
			"headline_id":    table.HeadlineID,
			"updated_at":     now,
		}).
		Where(sq.Eq{"id": table.ID}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lowcoder.NewNotFoundError("table", table.ID)
	}
	table.UpdatedAt = now
	return nil
}

func (s *postgresStore) DeleteTable(ctx context.Context, tableID int64) error {
	tag, err := s.exec(ctx, "delete table", psql.Delete(sanitizeIdentifier(s.names.Tables)).Where(sq.Eq{"id": tableID}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lowcoder.NewNotFoundError("table", tableID)
	}
	return nil
}

func (s *postgresStore) ClearMainEntity(ctx context.Context, schemaID int64) error {
	_, err := s.exec(ctx, "clear main entity", psql.Update(sanitizeIdentifier(s.names.Tables)).
		Set("is_main_entity", false).
		Set("updated_at", s.now()).
		Where(sq.Eq{"schema_id": schemaID, "is_main_entity": true}))
	return err
}

func (s *postgresStore) scalarInt(ctx context.Context, what string, b sq.SelectBuilder) (int, error) {
	query, args, err := b.ToSql()
	if err != nil {
		return 0, fmt.Errorf("build %s: %w", what, err)
	}
	var n int
	if err := s.q.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("%s: %w", what, err)
	}
	return n, nil
}

func (s *postgresStore) MaxTableIndex(ctx context.Context, schemaID int64) (int, error) {
	return s.scalarInt(ctx, "max table index", psql.Select("COALESCE(MAX(idx), 0)").
		From(sanitizeIdentifier(s.names.Tables)).Where(sq.Eq{"schema_id": schemaID}))
}

func (s *postgresStore) CountTables(ctx context.Context, schemaID int64) (int, error) {
	return s.scalarInt(ctx, "count tables", psql.Select("COUNT(*)").
		From(sanitizeIdentifier(s.names.Tables)).Where(sq.Eq{"schema_id": schemaID}))
}

func (s *postgresStore) TablesByDocument(ctx context.Context, documentID int64) ([]lowcoder.Table, error) {
	cols := make([]string, len(tableColumns))
	for i, c := range tableColumns {
		cols[i] = "t." + c
	}
	return s.queryTables(ctx, psql.Select(cols...).
		From(sanitizeIdentifier(s.names.Tables)+" t").
		Join(sanitizeIdentifier(s.names.Headlines)+" h ON h.id = t.headline_id").
		Join(sanitizeIdentifier(s.names.Sheets)+" s ON s.id = h.sheet_id").
		Where(sq.Eq{"s.document_id": documentID}).
		OrderBy("t.idx NULLS FIRST", "t.id"))
}

func (s *postgresStore) ListFields(ctx context.Context, tableID int64) ([]lowcoder.Field, error) {
	return s.queryFields(ctx, s.selectFields().Where(sq.Eq{"table_id": tableID}).OrderBy("idx NULLS FIRST", "id"))
}

func (s *postgresStore) GetField(ctx context.Context, fieldID int64) (*lowcoder.Field, error) {
	fields, err := s.queryFields(ctx, s.selectFields().Where(sq.Eq{"id": fieldID}))
	if err != nil {
		return nil, err
	}
	if len(fields) == 0 {
		return nil, lowcoder.NewNotFoundError("field", fieldID)
	}
	return &fields[0], nil
}

func (s *postgresStore) FindFieldByIndex(ctx context.Context, tableID int64, index int) (*lowcoder.Field, error) {
	fields, err := s.queryFields(ctx, s.selectFields().Where(sq.Eq{"table_id": tableID, "idx": index}))
	if err != nil || len(fields) == 0 {
		return nil, err
	}
	return &fields[0], nil
}

func fieldValues(f *lowcoder.Field) (map[string]any, error) {
	choices, err := encodeChoices(f.Choices)
	if err != nil {
		return nil, fmt.Errorf("encode choices: %w", err)
	}
	return map[string]any{
		"table_id":             f.TableID,
		"name":                 f.Name,
		"description":          f.Description,
		"datatype":             string(f.Datatype),
		"max_length":           f.MaxLength,
		"max_digits":           f.MaxDigits,
		"decimal_places":       f.DecimalPlaces,
		"default_value":        f.DefaultValue,
		"choices":              choices,
		"blank":                f.Blank,
		"null_value":           f.Null,
		"foreign_key_table_id": f.ForeignKeyTableID,
		"is_unique":            f.IsUnique,
		"use_index":            f.UseIndex,
		"show_in_list":         f.ShowInList,
		"show_in_detail":       f.ShowInDetail,
		"validation_pattern":   f.ValidationPattern,
		"exclude":              f.Exclude,
		"idx":                  nullIndex(f.Index),
		"column_id":            f.ColumnID,
	}, nil
}

func (s *postgresStore) InsertField(ctx context.Context, field *lowcoder.Field) error {
	values, err := fieldValues(field)
	if err != nil {
		return err
	}
	now := s.now()
	values["created_at"] = now
	values["updated_at"] = now
	query, args, err := psql.Insert(sanitizeIdentifier(s.names.Fields)).
		SetMap(values).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert field: %w", err)
	}
	if err := s.q.QueryRow(ctx, query, args...).Scan(&field.ID); err != nil {
		return translatePgError("insert field", err)
	}
	field.CreatedAt, field.UpdatedAt = now, now
	return nil
}

func (s *postgresStore) UpdateField(ctx context.Context, field *lowcoder.Field) error {
	values, err := fieldValues(field)
	if err != nil {
		return err
	}
	now := s.now()
	values["updated_at"] = now
	tag, err := s.exec(ctx, "update field", psql.Update(sanitizeIdentifier(s.names.Fields)).
		SetMap(values).
		Where(sq.Eq{"id": field.ID}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lowcoder.NewNotFoundError("field", field.ID)
	}
	field.UpdatedAt = now
	return nil
}

func (s *postgresStore) DeleteField(ctx context.Context, fieldID int64) error {
	tag, err := s.exec(ctx, "delete field", psql.Delete(sanitizeIdentifier(s.names.Fields)).Where(sq.Eq{"id": fieldID}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lowcoder.NewNotFoundError("field", fieldID)
	}
	return nil
}

func (s *postgresStore) MaxFieldIndex(ctx context.Context, tableID int64) (int, error) {
	return s.scalarInt(ctx, "max field index", psql.Select("COALESCE(MAX(idx), 0)").
		From(sanitizeIdentifier(s.names.Fields)).Where(sq.Eq{"table_id": tableID}))
}

func (s *postgresStore) CountFields(ctx context.Context, tableID int64) (int, error) {
	return s.scalarInt(ctx, "count fields", psql.Select("COUNT(*)").
		From(sanitizeIdentifier(s.names.Fields)).Where(sq.Eq{"table_id": tableID}))
}

func (s *postgresStore) ClearForeignKeys(ctx context.Context, targetTableID int64) error {
	_, err := s.exec(ctx, "clear foreign keys", psql.Update(sanitizeIdentifier(s.names.Fields)).
		Set("foreign_key_table_id", nil).
		Set("updated_at", s.now()).
		Where(sq.Eq{"foreign_key_table_id": targetTableID}))
	return err
}

func (s *postgresStore) InsertDocument(ctx context.Context, doc *lowcoder.SourceDocument) error {
	now := s.now()
	query, args, err := psql.Insert(sanitizeIdentifier(s.names.Documents)).
		Columns("schema_id", "file_name", "storage_key", "created_at", "updated_at").
		Values(doc.SchemaID, doc.FileName, doc.StorageKey, now, now).
		Suffix("RETURNING id").
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert document: %w", err)
	}
	if err := s.q.QueryRow(ctx, query, args...).Scan(&doc.ID); err != nil {
		return fmt.Errorf("insert document: %w", err)
	}
	doc.CreatedAt, doc.UpdatedAt = now, now
	return nil
}

func (s *postgresStore) GetDocument(ctx context.Context, documentID int64) (*lowcoder.SourceDocument, error) {
	query, args, err := psql.Select("id", "schema_id", "file_name", "storage_key", "created_at", "updated_at").
		From(sanitizeIdentifier(s.names.Documents)).
		Where(sq.Eq{"id": documentID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get document: %w", err)
	}
	var d lowcoder.SourceDocument
	if err := s.q.QueryRow(ctx, query, args...).Scan(&d.ID, &d.SchemaID, &d.FileName, &d.StorageKey, &d.CreatedAt, &d.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lowcoder.NewNotFoundError("document", documentID)
		}
		return nil, fmt.Errorf("get document %d: %w", documentID, err)
	}
	return &d, nil
}

func (s *postgresStore) DeleteDocument(ctx context.Context, documentID int64) error {
	tag, err := s.exec(ctx, "delete document", psql.Delete(sanitizeIdentifier(s.names.Documents)).Where(sq.Eq{"id": documentID}))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return lowcoder.NewNotFoundError("document", documentID)
	}
	return nil
}

// DeleteSheets relies on ON DELETE CASCADE for headlines and columns and on
// ON DELETE SET NULL for the table and field back references.
func (s *postgresStore) DeleteSheets(ctx context.Context, documentID int64) error {
	tag, err := s.exec(ctx, "delete sheets", psql.Delete(sanitizeIdentifier(s.names.Sheets)).Where(sq.Eq{"document_id": documentID}))
	if err != nil {
		return err
	}
	zap.S().Debugw("deleted sheets", "document_id", documentID, "count", tag.RowsAffected())
	return nil
}

func (s *postgresStore) upsert(ctx context.Context, what string, b sq.InsertBuilder, id *int64, createdAt *time.Time) error {
	query, args, err := b.ToSql()
	if err != nil {
		return fmt.Errorf("build %s: %w", what, err)
	}
	if err := s.q.QueryRow(ctx, query, args...).Scan(id, createdAt); err != nil {
		return fmt.Errorf("%s: %w", what, err)
	}
	return nil
}

func (s *postgresStore) UpsertSheet(ctx context.Context, sheet *lowcoder.Sheet) error {
	now := s.now()
	sheet.UpdatedAt = now
	return s.upsert(ctx, "upsert sheet", psql.Insert(sanitizeIdentifier(s.names.Sheets)).
		Columns("document_id", "idx", "name", "created_at", "updated_at").
		Values(sheet.DocumentID, sheet.Index, sheet.Name, now, now).
		Suffix("ON CONFLICT (document_id, idx) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at RETURNING id, created_at"),
		&sheet.ID, &sheet.CreatedAt)
}

func (s *postgresStore) UpsertHeadline(ctx context.Context, headline *lowcoder.Headline) error {
	var content []byte
	if headline.Content != nil {
		var err error
		if content, err = json.Marshal(headline.Content); err != nil {
			return fmt.Errorf("encode headline content: %w", err)
		}
	}
	now := s.now()
	headline.UpdatedAt = now
	return s.upsert(ctx, "upsert headline", psql.Insert(sanitizeIdentifier(s.names.Headlines)).
		Columns("sheet_id", "row_index", "content", "created_at", "updated_at").
		Values(headline.SheetID, headline.RowIndex, content, now, now).
		Suffix("ON CONFLICT (sheet_id, row_index) DO UPDATE SET content = EXCLUDED.content, updated_at = EXCLUDED.updated_at RETURNING id, created_at"),
		&headline.ID, &headline.CreatedAt)
}

func (s *postgresStore) UpsertColumn(ctx context.Context, column *lowcoder.Column) error {
	now := s.now()
	column.UpdatedAt = now
	return s.upsert(ctx, "upsert column", psql.Insert(sanitizeIdentifier(s.names.Columns)).
		Columns("headline_id", "column_index", "name", "created_at", "updated_at").
		Values(column.HeadlineID, column.ColumnIndex, column.Name, now, now).
		Suffix("ON CONFLICT (headline_id, column_index) DO UPDATE SET name = EXCLUDED.name, updated_at = EXCLUDED.updated_at RETURNING id, created_at"),
		&column.ID, &column.CreatedAt)
}

func (s *postgresStore) GetHeadline(ctx context.Context, headlineID int64) (*lowcoder.Headline, error) {
	query, args, err := psql.Select("id", "sheet_id", "row_index", "content", "created_at", "updated_at").
		From(sanitizeIdentifier(s.names.Headlines)).
		Where(sq.Eq{"id": headlineID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get headline: %w", err)
	}
	var h lowcoder.Headline
	var content []byte
	if err := s.q.QueryRow(ctx, query, args...).Scan(&h.ID, &h.SheetID, &h.RowIndex, &content, &h.CreatedAt, &h.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lowcoder.NewNotFoundError("headline", headlineID)
		}
		return nil, fmt.Errorf("get headline %d: %w", headlineID, err)
	}
	if len(content) > 0 {
		if err := json.Unmarshal(content, &h.Content); err != nil {
			return nil, fmt.Errorf("decode headline content %d: %w", headlineID, err)
		}
	}
	return &h, nil
}

func (s *postgresStore) GetColumn(ctx context.Context, columnID int64) (*lowcoder.Column, error) {
	query, args, err := psql.Select("id", "headline_id", "column_index", "name", "created_at", "updated_at").
		From(sanitizeIdentifier(s.names.Columns)).
		Where(sq.Eq{"id": columnID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get column: %w", err)
	}
	var c lowcoder.Column
	if err := s.q.QueryRow(ctx, query, args...).Scan(&c.ID, &c.HeadlineID, &c.ColumnIndex, &c.Name, &c.CreatedAt, &c.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, lowcoder.NewNotFoundError("column", columnID)
		}
		return nil, fmt.Errorf("get column %d: %w", columnID, err)
	}
	return &c, nil
}

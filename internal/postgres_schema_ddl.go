package internal

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/lychee-technology/lowcoder"
	"go.uber.org/zap"
)

// SchemaDDL returns the statements that create the repository tables. Every
// statement is idempotent.
func SchemaDDL(names lowcoder.TableNames) []string {
	schemas := sanitizeIdentifier(names.Schemas)
	tables := sanitizeIdentifier(names.Tables)
	fields := sanitizeIdentifier(names.Fields)
	documents := sanitizeIdentifier(names.Documents)
	sheets := sanitizeIdentifier(names.Sheets)
	headlines := sanitizeIdentifier(names.Headlines)
	columns := sanitizeIdentifier(names.Columns)

	return []string{
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          BIGSERIAL PRIMARY KEY,
			project_id  BIGINT NOT NULL UNIQUE,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL
		)`, schemas),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id           BIGSERIAL PRIMARY KEY,
			schema_id    BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			file_name    TEXT NOT NULL,
			storage_key  TEXT NOT NULL DEFAULT '',
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL
		)`, documents, schemas),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id           BIGSERIAL PRIMARY KEY,
			document_id  BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			idx          INTEGER NOT NULL,
			name         TEXT NOT NULL,
			created_at   TIMESTAMPTZ NOT NULL,
			updated_at   TIMESTAMPTZ NOT NULL,
			UNIQUE (document_id, idx)
		)`, sheets, documents),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id          BIGSERIAL PRIMARY KEY,
			sheet_id    BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			row_index   INTEGER NOT NULL,
			content     JSONB,
			created_at  TIMESTAMPTZ NOT NULL,
			updated_at  TIMESTAMPTZ NOT NULL,
			UNIQUE (sheet_id, row_index)
		)`, headlines, sheets),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id            BIGSERIAL PRIMARY KEY,
			headline_id   BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			column_index  INTEGER NOT NULL,
			name          TEXT NOT NULL,
			created_at    TIMESTAMPTZ NOT NULL,
			updated_at    TIMESTAMPTZ NOT NULL,
			UNIQUE (headline_id, column_index)
		)`, columns, headlines),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id              BIGSERIAL PRIMARY KEY,
			schema_id       BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			name            TEXT NOT NULL,
			description     TEXT NOT NULL DEFAULT '',
			idx             INTEGER,
			is_main_entity  BOOLEAN NOT NULL DEFAULT FALSE,
			exclude         BOOLEAN NOT NULL DEFAULT FALSE,
			headline_id     BIGINT REFERENCES %s (id) ON DELETE SET NULL,
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL,
			UNIQUE (schema_id, idx)
		)`, tables, schemas, headlines),
		fmt.Sprintf(`CREATE UNIQUE INDEX IF NOT EXISTS %s ON %s (schema_id) WHERE is_main_entity`,
			sanitizeIdentifier(makeIndexName(names.Tables, "main_entity")), tables),
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id                    BIGSERIAL PRIMARY KEY,
			table_id              BIGINT NOT NULL REFERENCES %s (id) ON DELETE CASCADE,
			name                  TEXT NOT NULL,
			description           TEXT NOT NULL DEFAULT '',
			datatype              TEXT NOT NULL,
			max_length            INTEGER,
			max_digits            INTEGER,
			decimal_places        INTEGER,
			default_value         TEXT,
			choices               JSONB,
			blank                 BOOLEAN NOT NULL DEFAULT FALSE,
			null_value            BOOLEAN NOT NULL DEFAULT FALSE,
			foreign_key_table_id  BIGINT REFERENCES %s (id) ON DELETE SET NULL,
			is_unique             BOOLEAN NOT NULL DEFAULT FALSE,
			use_index             BOOLEAN NOT NULL DEFAULT FALSE,
			show_in_list          BOOLEAN NOT NULL DEFAULT TRUE,
			show_in_detail        BOOLEAN NOT NULL DEFAULT TRUE,
			validation_pattern    TEXT NOT NULL DEFAULT '',
			exclude               BOOLEAN NOT NULL DEFAULT FALSE,
			idx                   INTEGER,
			column_id             BIGINT REFERENCES %s (id) ON DELETE SET NULL,
			created_at            TIMESTAMPTZ NOT NULL,
			updated_at            TIMESTAMPTZ NOT NULL,
			UNIQUE (table_id, idx)
		)`, fields, tables, tables, columns),
	}
}

func makeIndexName(table string, suffix string) string {
	base := strings.ReplaceAll(table, ".", "_")
	base = strings.ReplaceAll(base, `"`, "")
	return fmt.Sprintf("%s_%s_idx", base, suffix)
}

// ApplySchemaDDL creates the repository tables in one transaction.
func ApplySchemaDDL(ctx context.Context, pool schemaPool, names lowcoder.TableNames) error {
	tx, err := pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	for _, stmt := range SchemaDDL(names) {
		if _, err := tx.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("apply ddl: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit ddl: %w", err)
	}
	zap.S().Infow("schema tables ready", "schemas", names.Schemas, "tables", names.Tables, "fields", names.Fields)
	return nil
}

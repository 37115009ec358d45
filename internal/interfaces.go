package internal

import (
	"context"
	"io"

	"github.com/lychee-technology/lowcoder"
)

// SchemaRepository persists schemas and hands out serialized units of work.
type SchemaRepository interface {
	EnsureSchema(ctx context.Context, projectID int64) (*lowcoder.Schema, error)
	GetSchemaByProject(ctx context.Context, projectID int64) (*lowcoder.Schema, error)

	// Owner lookups used to pick the lock before a unit of work starts.
	SchemaOfTable(ctx context.Context, tableID int64) (int64, error)
	SchemaOfField(ctx context.Context, fieldID int64) (int64, error)
	SchemaOfDocument(ctx context.Context, documentID int64) (int64, error)

	// InSchemaScope runs fn while holding the schema's mutual exclusion
	// scope. All writes made through the store commit together or not at all.
	InSchemaScope(ctx context.Context, schemaID int64, fn func(ctx context.Context, store SchemaStore) error) error
}

// SchemaStore is the transactional view handed to a unit of work. Find*
// methods return nil without error when nothing matches, Get* methods return
// a not found error.
type SchemaStore interface {
	// Tables
	ListTables(ctx context.Context, schemaID int64) ([]lowcoder.Table, error)
	GetTable(ctx context.Context, tableID int64) (*lowcoder.Table, error)
	FindTableByIndex(ctx context.Context, schemaID int64, index int) (*lowcoder.Table, error)
	InsertTable(ctx context.Context, table *lowcoder.Table) error
	UpdateTable(ctx context.Context, table *lowcoder.Table) error
	DeleteTable(ctx context.Context, tableID int64) error
	ClearMainEntity(ctx context.Context, schemaID int64) error
	MaxTableIndex(ctx context.Context, schemaID int64) (int, error)
	CountTables(ctx context.Context, schemaID int64) (int, error)
	TablesByDocument(ctx context.Context, documentID int64) ([]lowcoder.Table, error)

	// Fields
	ListFields(ctx context.Context, tableID int64) ([]lowcoder.Field, error)
	GetField(ctx context.Context, fieldID int64) (*lowcoder.Field, error)
	FindFieldByIndex(ctx context.Context, tableID int64, index int) (*lowcoder.Field, error)
	InsertField(ctx context.Context, field *lowcoder.Field) error
	UpdateField(ctx context.Context, field *lowcoder.Field) error
	DeleteField(ctx context.Context, fieldID int64) error
	MaxFieldIndex(ctx context.Context, tableID int64) (int, error)
	CountFields(ctx context.Context, tableID int64) (int, error)
	ClearForeignKeys(ctx context.Context, targetTableID int64) error

	// Documents
	InsertDocument(ctx context.Context, doc *lowcoder.SourceDocument) error
	GetDocument(ctx context.Context, documentID int64) (*lowcoder.SourceDocument, error)
	DeleteDocument(ctx context.Context, documentID int64) error
	DeleteSheets(ctx context.Context, documentID int64) error
	UpsertSheet(ctx context.Context, sheet *lowcoder.Sheet) error
	UpsertHeadline(ctx context.Context, headline *lowcoder.Headline) error
	UpsertColumn(ctx context.Context, column *lowcoder.Column) error
	GetHeadline(ctx context.Context, headlineID int64) (*lowcoder.Headline, error)
	GetColumn(ctx context.Context, columnID int64) (*lowcoder.Column, error)
}

// TabularReader lists and reads the sheets of a spreadsheet or CSV file.
type TabularReader interface {
	Sheets(ctx context.Context, path string) ([]string, error)
	Read(ctx context.Context, path, sheet string, params lowcoder.SheetReaderParams) (*Frame, error)
}

// TemplateExpander materializes a code template into a file tree.
type TemplateExpander interface {
	Expand(ctx context.Context, req ExpandRequest) error
}

// SourceFormatter rewrites a generated source file in place.
type SourceFormatter interface {
	Format(ctx context.Context, path string) error
}

// BlobStore keeps uploaded documents and generated archives.
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader) error
	Delete(ctx context.Context, key string) error
}

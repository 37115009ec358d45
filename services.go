package lowcoder

import (
	"context"
)

// SchemaManager imports spreadsheets into a project schema and edits the
// resulting tables and fields.
type SchemaManager interface {
	// Import
	ImportDocument(ctx context.Context, req *ImportRequest) (*ImportResult, error)
	DeleteDocument(ctx context.Context, documentID int64) error

	// Reads
	GetSchema(ctx context.Context, projectID int64) (*SchemaSnapshot, error)

	// Tables
	CreateTable(ctx context.Context, projectID int64, table *Table) (*Table, error)
	UpdateTable(ctx context.Context, table *Table) (*Table, error)
	DeleteTable(ctx context.Context, tableID int64) error
	MoveTableUp(ctx context.Context, tableID int64) error
	MoveTableDown(ctx context.Context, tableID int64) error

	// Fields
	CreateField(ctx context.Context, field *Field) (*Field, error)
	UpdateField(ctx context.Context, field *Field) (*Field, error)
	DeleteField(ctx context.Context, fieldID int64) error
	MoveFieldUp(ctx context.Context, fieldID int64) error
	MoveFieldDown(ctx context.Context, fieldID int64) error
}

// ProjectGenerator turns a project schema into a generated application.
type ProjectGenerator interface {
	Generate(ctx context.Context, req *GenerateRequest) (*GenerateResult, error)
}

// ImportRequest describes one spreadsheet import.
type ImportRequest struct {
	ProjectID int64
	// Path is the local file the reader opens.
	Path string
	// FileName is the display name; defaults to the base name of Path.
	FileName   string
	StorageKey string
	// DocumentID re-imports an existing document instead of creating one.
	DocumentID *int64
	// SheetParams overrides DefaultParams per sheet name.
	SheetParams   map[string]SheetReaderParams
	DefaultParams SheetReaderParams
	// ReplaceExisting also prunes fields beyond the new column count and
	// resets manually edited field attributes.
	ReplaceExisting bool
}

// ParamsFor returns the read parameters of one sheet.
func (r *ImportRequest) ParamsFor(sheet string) SheetReaderParams {
	if p, ok := r.SheetParams[sheet]; ok {
		return p
	}
	return r.DefaultParams
}

// ImportResult reports what an import created or updated.
type ImportResult struct {
	Document SourceDocument  `json:"document"`
	Tables   []ImportedTable `json:"tables"`
	Notices  Notices         `json:"notices"`
}

// ImportedTable is one table produced by an import.
type ImportedTable struct {
	Table  Table           `json:"table"`
	Fields []ImportedField `json:"fields"`
}

// ImportedField carries the uniqueness proposal next to the persisted field.
type ImportedField struct {
	Field         Field `json:"field"`
	ProposeUnique bool  `json:"proposeUnique"`
}

// SchemaSnapshot is a schema with its tables and fields ordered by index.
type SchemaSnapshot struct {
	Schema Schema       `json:"schema"`
	Tables []TableModel `json:"tables"`
}

// TableModel is a table together with its fields.
type TableModel struct {
	Table  Table   `json:"table"`
	Fields []Field `json:"fields"`
}

// Table returns the table with the given id.
func (s *SchemaSnapshot) Table(id int64) (*TableModel, bool) {
	for i := range s.Tables {
		if s.Tables[i].Table.ID == id {
			return &s.Tables[i], true
		}
	}
	return nil, false
}

// GenerateRequest carries the live objects parameters are resolved against.
type GenerateRequest struct {
	Project      Project
	Settings     ProjectSettings
	User         User
	CodeTemplate CodeTemplate
	DeployType   DeployType
}

// GenerateResult describes the produced artifacts. OutputRoot and
// ArchiveKey are empty when no exporter exists for the template.
type GenerateResult struct {
	RunID      string  `json:"runId"`
	OutputRoot string  `json:"outputRoot,omitempty"`
	ArchiveKey string  `json:"archiveKey,omitempty"`
	Notices    Notices `json:"notices"`
}

package internal

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lychee-technology/lowcoder"
	"go.uber.org/zap"
)

// SchemaSynchronizer reconciles the sheets of one document with the tables
// and fields of its schema. Table identity is the sheet position and field
// identity is the column position.
type SchemaSynchronizer struct {
	engine       *TypeInferenceEngine
	indexer      *SchemaIndexer
	loc          *time.Location
	preserveMain bool
}

func NewSchemaSynchronizer(cfg lowcoder.ImportConfig, indexer *SchemaIndexer) (*SchemaSynchronizer, error) {
	loc, err := cfg.SourceLocation()
	if err != nil {
		return nil, fmt.Errorf("load source timezone %q: %w", cfg.SourceTimezone, err)
	}
	if indexer == nil {
		indexer = NewSchemaIndexer()
	}
	return &SchemaSynchronizer{
		engine:       NewTypeInferenceEngine(cfg),
		indexer:      indexer,
		loc:          loc,
		preserveMain: cfg.PreserveMainEntity,
	}, nil
}

// ImportSheets replaces the sheets of doc and upserts one table per sheet.
// Tables that were linked to the document but have no sheet any more are
// deleted. It must run inside InSchemaScope of doc.SchemaID.
func (s *SchemaSynchronizer) ImportSheets(ctx context.Context, store SchemaStore, doc *lowcoder.SourceDocument, sheets []LoadedSheet, replaceExisting bool) (*lowcoder.ImportResult, error) {
	result := &lowcoder.ImportResult{Document: *doc, Tables: make([]lowcoder.ImportedTable, 0, len(sheets))}

	previous, err := store.TablesByDocument(ctx, doc.ID)
	if err != nil {
		return nil, fmt.Errorf("list tables of document %d: %w", doc.ID, err)
	}
	if err := store.DeleteSheets(ctx, doc.ID); err != nil {
		return nil, fmt.Errorf("delete sheets of document %d: %w", doc.ID, err)
	}

	kept := make(map[int64]struct{}, len(sheets))
	for pos, loaded := range sheets {
		imported, err := s.importSheet(ctx, store, doc, pos, loaded, replaceExisting, &result.Notices)
		if err != nil {
			return nil, fmt.Errorf("import sheet %q: %w", loaded.Name, err)
		}
		kept[imported.Table.ID] = struct{}{}
		result.Tables = append(result.Tables, *imported)
	}

	for _, stale := range previous {
		if _, ok := kept[stale.ID]; ok {
			continue
		}
		if err := s.removeTable(ctx, store, stale.ID); err != nil {
			return nil, err
		}
		result.Notices.Infof("Table %s removed", stale.Name)
	}

	if err := s.indexer.SetNewMainEntity(ctx, store, doc.SchemaID, 0); err != nil {
		return nil, err
	}

	// Indexes may have moved while stale tables were compacted.
	for i := range result.Tables {
		t, err := store.GetTable(ctx, result.Tables[i].Table.ID)
		if err != nil {
			return nil, err
		}
		result.Tables[i].Table = *t
	}

	zap.S().Infow("document imported", "document_id", doc.ID, "sheets", len(sheets), "tables", len(result.Tables))
	return result, nil
}

func (s *SchemaSynchronizer) importSheet(ctx context.Context, store SchemaStore, doc *lowcoder.SourceDocument, pos int, loaded LoadedSheet, replaceExisting bool, notices *lowcoder.Notices) (*lowcoder.ImportedTable, error) {
	sheet := &lowcoder.Sheet{DocumentID: doc.ID, Index: pos + 1, Name: loaded.Name}
	if err := store.UpsertSheet(ctx, sheet); err != nil {
		return nil, err
	}

	frame := loaded.Frame
	if frame == nil {
		frame = &Frame{}
	}

	// Content is cached before inference rewrites enumeration labels.
	headline := &lowcoder.Headline{
		SheetID:  sheet.ID,
		RowIndex: loaded.Params.HeadlineRow(),
		Content:  EncodeRows(frame, s.loc),
	}
	if err := store.UpsertHeadline(ctx, headline); err != nil {
		return nil, err
	}

	table, err := s.upsertTable(ctx, store, doc.SchemaID, pos, loaded.Name, headline.ID, notices)
	if err != nil {
		return nil, err
	}
	imported := &lowcoder.ImportedTable{Table: *table, Fields: make([]lowcoder.ImportedField, 0, len(frame.Columns))}

	if loaded.Err != nil {
		notices.Warnf("Sheet %s could not be read: %v", loaded.Name, loaded.Err)
		return imported, nil
	}

	for col, series := range frame.Columns {
		inference := s.engine.Infer(series)
		if inference.Diagnostic != "" {
			notices.Warnf("%s", inference.Diagnostic)
		}

		column := &lowcoder.Column{HeadlineID: headline.ID, ColumnIndex: col + 1, Name: series.Name}
		if err := store.UpsertColumn(ctx, column); err != nil {
			return nil, err
		}

		field, err := s.upsertField(ctx, store, table.ID, col, series.Name, column.ID, inference, replaceExisting, notices)
		if err != nil {
			return nil, err
		}
		imported.Fields = append(imported.Fields, lowcoder.ImportedField{Field: *field, ProposeUnique: inference.ProposeUnique})
	}

	if replaceExisting {
		if err := s.pruneFields(ctx, store, table.ID, len(frame.Columns), notices); err != nil {
			return nil, err
		}
	}
	return imported, nil
}

func (s *SchemaSynchronizer) upsertTable(ctx context.Context, store SchemaStore, schemaID int64, pos int, name string, headlineID int64, notices *lowcoder.Notices) (*lowcoder.Table, error) {
	index := pos + 1
	table, err := store.FindTableByIndex(ctx, schemaID, index)
	if err != nil {
		return nil, err
	}
	created := table == nil
	if created {
		table = &lowcoder.Table{SchemaID: schemaID, Index: index}
	}
	table.Name = importName(name, lowcoder.MinTableNameLength, "table", index, notices)
	table.HeadlineID = &headlineID

	switch {
	case s.preserveMain && created:
		isMain, err := s.indexer.InitMainEntity(ctx, store, schemaID)
		if err != nil {
			return nil, err
		}
		table.IsMainEntity = isMain
	case s.preserveMain:
	default:
		table.IsMainEntity = pos == 0
	}
	if err := s.indexer.UnsetMainEntity(ctx, store, table); err != nil {
		return nil, err
	}

	if created {
		err = store.InsertTable(ctx, table)
	} else {
		err = store.UpdateTable(ctx, table)
	}
	if err != nil {
		return nil, err
	}

	if created {
		notices.Infof("Table %s created", table.Name)
	} else {
		notices.Infof("Table %s updated", table.Name)
	}
	return table, nil
}

func (s *SchemaSynchronizer) upsertField(ctx context.Context, store SchemaStore, tableID int64, col int, name string, columnID int64, inference Inference, replaceExisting bool, notices *lowcoder.Notices) (*lowcoder.Field, error) {
	index := col + 1
	field, err := store.FindFieldByIndex(ctx, tableID, index)
	if err != nil {
		return nil, err
	}
	name = importName(name, lowcoder.MinFieldNameLength, "field", index, notices)
	created := field == nil
	if created || replaceExisting {
		fresh := lowcoder.NewField(tableID, name, inference.Datatype)
		if !created {
			fresh.ID = field.ID
		}
		fresh.Index = index
		field = fresh
	}

	field.Name = name
	field.Datatype = inference.Datatype
	field.IsUnique = !inference.HasDuplicates
	field.ColumnID = &columnID
	applyKwargs(field, inference.Kwargs)

	if created {
		err = store.InsertField(ctx, field)
	} else {
		err = store.UpdateField(ctx, field)
	}
	if err != nil {
		return nil, err
	}

	if created {
		notices.Infof("Field %s created", field.Name)
	} else {
		notices.Infof("Field %s updated", field.Name)
	}
	return field, nil
}

// importName returns a name that passes the editing length rule. Short names
// get the position appended, empty ones become "<kind>_<index>".
func importName(name string, minLen int, kind string, index int, notices *lowcoder.Notices) string {
	trimmed := strings.TrimSpace(name)
	if utf8.RuneCountInString(trimmed) >= minLen {
		return name
	}
	renamed := fmt.Sprintf("%s_%d", kind, index)
	if trimmed != "" {
		renamed = fmt.Sprintf("%s_%d", trimmed, index)
	}
	notices.Warnf("Name %q is shorter than %d characters; %s %d imported as %s", name, minLen, kind, index, renamed)
	return renamed
}

func applyKwargs(field *lowcoder.Field, kw FieldKwargs) {
	field.MaxLength = kw.MaxLength
	field.MaxDigits = kw.MaxDigits
	field.DecimalPlaces = kw.DecimalPlaces
	field.Choices = kw.Choices
	field.Null = kw.Null
	field.Blank = kw.Blank
	if kw.DefaultValue != nil {
		field.DefaultValue = kw.DefaultValue
	}
}

// pruneFields drops fields positioned after the last imported column.
func (s *SchemaSynchronizer) pruneFields(ctx context.Context, store SchemaStore, tableID int64, columns int, notices *lowcoder.Notices) error {
	fields, err := store.ListFields(ctx, tableID)
	if err != nil {
		return err
	}
	for _, f := range fields {
		if f.Index > columns || f.Index == 0 {
			if err := store.DeleteField(ctx, f.ID); err != nil {
				return err
			}
			notices.Infof("Field %s removed", f.Name)
		}
	}
	return nil
}

// removeTable deletes a table, detaches foreign keys pointing at it and
// closes the index gap.
func (s *SchemaSynchronizer) removeTable(ctx context.Context, store SchemaStore, tableID int64) error {
	table, err := store.GetTable(ctx, tableID)
	if err != nil {
		return err
	}
	if err := store.ClearForeignKeys(ctx, table.ID); err != nil {
		return err
	}
	if err := store.DeleteTable(ctx, table.ID); err != nil {
		return err
	}
	return s.indexer.CompactTables(ctx, store, table.SchemaID, table.Index)
}

package internal

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/lychee-technology/lowcoder"
	"go.uber.org/zap"
)

// SchemaService implements lowcoder.SchemaManager. Every mutation runs in
// one InSchemaScope of the owning schema.
type SchemaService struct {
	repo    SchemaRepository
	reader  TabularReader
	sync    *SchemaSynchronizer
	indexer *SchemaIndexer
	blobs   BlobStore
	allowed []string
}

var _ lowcoder.SchemaManager = (*SchemaService)(nil)

func NewSchemaService(repo SchemaRepository, reader TabularReader, sync *SchemaSynchronizer, indexer *SchemaIndexer, blobs BlobStore, cfg lowcoder.ImportConfig) *SchemaService {
	if indexer == nil {
		indexer = NewSchemaIndexer()
	}
	return &SchemaService{
		repo:    repo,
		reader:  reader,
		sync:    sync,
		indexer: indexer,
		blobs:   blobs,
		allowed: cfg.AllowedExtensions,
	}
}

func (s *SchemaService) ImportDocument(ctx context.Context, req *lowcoder.ImportRequest) (*lowcoder.ImportResult, error) {
	if req == nil || req.Path == "" {
		return nil, lowcoder.NewValidationError("path", lowcoder.ErrCodeValidationFailed, "import path is required")
	}
	fileName := req.FileName
	if fileName == "" {
		fileName = filepath.Base(req.Path)
	}
	if err := lowcoder.ValidateExtension(fileName, s.allowed); err != nil {
		return nil, err
	}

	start := time.Now()
	sheets, err := LoadSheets(ctx, s.reader, req.Path, req.ParamsFor)
	if err != nil {
		return nil, lowcoder.NewLowcoderError(lowcoder.ErrorTypeImport, lowcoder.ErrCodeSheetReadFailed,
			fmt.Sprintf("cannot read %s", fileName)).WithCause(err)
	}

	schema, err := s.repo.EnsureSchema(ctx, req.ProjectID)
	if err != nil {
		return nil, err
	}
	if req.DocumentID != nil {
		owner, err := s.repo.SchemaOfDocument(ctx, *req.DocumentID)
		if err != nil {
			return nil, err
		}
		if owner != schema.ID {
			return nil, lowcoder.NewValidationError("documentId", lowcoder.ErrCodeValidationFailed,
				fmt.Sprintf("document %d belongs to another project", *req.DocumentID))
		}
	}

	var result *lowcoder.ImportResult
	err = s.repo.InSchemaScope(ctx, schema.ID, func(ctx context.Context, store SchemaStore) error {
		var doc *lowcoder.SourceDocument
		if req.DocumentID != nil {
			if doc, err = store.GetDocument(ctx, *req.DocumentID); err != nil {
				return err
			}
		} else {
			doc = &lowcoder.SourceDocument{SchemaID: schema.ID, FileName: fileName, StorageKey: req.StorageKey}
			if err := store.InsertDocument(ctx, doc); err != nil {
				return err
			}
		}
		res, err := s.sync.ImportSheets(ctx, store, doc, sheets, req.ReplaceExisting)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	EmitLatency(ctx, "import", time.Since(start).Milliseconds())
	EmitCount(ctx, "imported_tables", int64(len(result.Tables)))
	return result, nil
}

// DeleteDocument removes the document rows and its stored upload. Tables
// created from it stay, detached from their headline.
func (s *SchemaService) DeleteDocument(ctx context.Context, documentID int64) error {
	schemaID, err := s.repo.SchemaOfDocument(ctx, documentID)
	if err != nil {
		return err
	}
	return s.repo.InSchemaScope(ctx, schemaID, func(ctx context.Context, store SchemaStore) error {
		doc, err := store.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if err := store.DeleteDocument(ctx, documentID); err != nil {
			return err
		}
		if doc.StorageKey == "" || s.blobs == nil {
			return nil
		}
		if err := s.blobs.Delete(ctx, doc.StorageKey); err != nil {
			return fmt.Errorf("delete stored document %s: %w", doc.StorageKey, err)
		}
		zap.S().Infow("document deleted", "document_id", documentID, "storage_key", doc.StorageKey)
		return nil
	})
}

func (s *SchemaService) GetSchema(ctx context.Context, projectID int64) (*lowcoder.SchemaSnapshot, error) {
	schema, err := s.repo.GetSchemaByProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	var snapshot *lowcoder.SchemaSnapshot
	err = s.repo.InSchemaScope(ctx, schema.ID, func(ctx context.Context, store SchemaStore) error {
		snapshot, err = loadSnapshot(ctx, store, schema)
		return err
	})
	return snapshot, err
}

func loadSnapshot(ctx context.Context, store SchemaStore, schema *lowcoder.Schema) (*lowcoder.SchemaSnapshot, error) {
	tables, err := store.ListTables(ctx, schema.ID)
	if err != nil {
		return nil, err
	}
	snapshot := &lowcoder.SchemaSnapshot{Schema: *schema, Tables: make([]lowcoder.TableModel, 0, len(tables))}
	for _, t := range tables {
		fields, err := store.ListFields(ctx, t.ID)
		if err != nil {
			return nil, err
		}
		snapshot.Tables = append(snapshot.Tables, lowcoder.TableModel{Table: t, Fields: fields})
	}
	return snapshot, nil
}

func (s *SchemaService) CreateTable(ctx context.Context, projectID int64, table *lowcoder.Table) (*lowcoder.Table, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	schema, err := s.repo.EnsureSchema(ctx, projectID)
	if err != nil {
		return nil, err
	}

	created := *table
	created.ID = 0
	created.SchemaID = schema.ID
	created.HeadlineID = nil
	target := created.Index

	err = s.repo.InSchemaScope(ctx, schema.ID, func(ctx context.Context, store SchemaStore) error {
		next, err := s.indexer.NextTableIndex(ctx, store, schema.ID)
		if err != nil {
			return err
		}
		if target > next {
			return lowcoder.NewValidationError("index", lowcoder.ErrCodeValidationFailed,
				fmt.Sprintf("must be between 1 and %d", next))
		}
		created.Index = next

		if created.IsMainEntity {
			if err := s.indexer.UnsetMainEntity(ctx, store, &created); err != nil {
				return err
			}
		} else if created.IsMainEntity, err = s.indexer.InitMainEntity(ctx, store, schema.ID); err != nil {
			return err
		}

		if err := store.InsertTable(ctx, &created); err != nil {
			return err
		}
		if target > 0 && target != next {
			return s.indexer.SetTableIndex(ctx, store, &created, target)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *SchemaService) UpdateTable(ctx context.Context, table *lowcoder.Table) (*lowcoder.Table, error) {
	if err := table.Validate(); err != nil {
		return nil, err
	}
	schemaID, err := s.repo.SchemaOfTable(ctx, table.ID)
	if err != nil {
		return nil, err
	}

	var updated *lowcoder.Table
	err = s.repo.InSchemaScope(ctx, schemaID, func(ctx context.Context, store SchemaStore) error {
		existing, err := store.GetTable(ctx, table.ID)
		if err != nil {
			return err
		}
		count, err := store.CountTables(ctx, schemaID)
		if err != nil {
			return err
		}
		if table.Index > count {
			return lowcoder.NewValidationError("index", lowcoder.ErrCodeValidationFailed,
				fmt.Sprintf("must be between 1 and %d", count))
		}

		wasMain := existing.IsMainEntity
		existing.Name = table.Name
		existing.Description = table.Description
		existing.Exclude = table.Exclude
		existing.IsMainEntity = table.IsMainEntity

		if err := s.indexer.UnsetMainEntity(ctx, store, existing); err != nil {
			return err
		}
		if err := store.UpdateTable(ctx, existing); err != nil {
			return err
		}
		if wasMain && !existing.IsMainEntity {
			if err := s.indexer.SetNewMainEntity(ctx, store, schemaID, existing.ID); err != nil {
				return err
			}
		}
		if table.Index > 0 && table.Index != existing.Index {
			if err := s.indexer.SetTableIndex(ctx, store, existing, table.Index); err != nil {
				return err
			}
		}
		updated, err = store.GetTable(ctx, existing.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// DeleteTable detaches foreign keys that target the table, closes the
// index gap and promotes a new main entity when needed.
func (s *SchemaService) DeleteTable(ctx context.Context, tableID int64) error {
	schemaID, err := s.repo.SchemaOfTable(ctx, tableID)
	if err != nil {
		return err
	}
	return s.repo.InSchemaScope(ctx, schemaID, func(ctx context.Context, store SchemaStore) error {
		table, err := store.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		if err := store.ClearForeignKeys(ctx, tableID); err != nil {
			return err
		}
		if err := store.DeleteTable(ctx, tableID); err != nil {
			return err
		}
		if err := s.indexer.CompactTables(ctx, store, schemaID, table.Index); err != nil {
			return err
		}
		return s.indexer.SetNewMainEntity(ctx, store, schemaID, tableID)
	})
}

func (s *SchemaService) moveTable(ctx context.Context, tableID int64, move func(context.Context, SchemaStore, *lowcoder.Table) error) error {
	schemaID, err := s.repo.SchemaOfTable(ctx, tableID)
	if err != nil {
		return err
	}
	return s.repo.InSchemaScope(ctx, schemaID, func(ctx context.Context, store SchemaStore) error {
		table, err := store.GetTable(ctx, tableID)
		if err != nil {
			return err
		}
		return move(ctx, store, table)
	})
}

func (s *SchemaService) MoveTableUp(ctx context.Context, tableID int64) error {
	return s.moveTable(ctx, tableID, s.indexer.MoveTableUp)
}

func (s *SchemaService) MoveTableDown(ctx context.Context, tableID int64) error {
	return s.moveTable(ctx, tableID, s.indexer.MoveTableDown)
}

// checkForeignKey enforces that a relation stays within the schema.
func checkForeignKey(ctx context.Context, store SchemaStore, schemaID int64, field *lowcoder.Field) error {
	if field.ForeignKeyTableID == nil {
		return nil
	}
	target, err := store.GetTable(ctx, *field.ForeignKeyTableID)
	if lowcoder.IsNotFound(err) || (err == nil && target.SchemaID != schemaID) {
		return lowcoder.NewValidationError("foreignKeyTableId", lowcoder.ErrCodeForeignKeyScope,
			fmt.Sprintf("table %d is not part of schema %d", *field.ForeignKeyTableID, schemaID))
	}
	return err
}

func (s *SchemaService) CreateField(ctx context.Context, field *lowcoder.Field) (*lowcoder.Field, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}
	schemaID, err := s.repo.SchemaOfTable(ctx, field.TableID)
	if err != nil {
		return nil, err
	}

	created := *field
	created.ID = 0
	created.ColumnID = nil
	target := created.Index

	err = s.repo.InSchemaScope(ctx, schemaID, func(ctx context.Context, store SchemaStore) error {
		if err := checkForeignKey(ctx, store, schemaID, &created); err != nil {
			return err
		}
		next, err := s.indexer.NextFieldIndex(ctx, store, created.TableID)
		if err != nil {
			return err
		}
		if target > next {
			return lowcoder.NewValidationError("index", lowcoder.ErrCodeValidationFailed,
				fmt.Sprintf("must be between 1 and %d", next))
		}
		created.Index = next
		if err := store.InsertField(ctx, &created); err != nil {
			return err
		}
		if target > 0 && target != next {
			return s.indexer.SetFieldIndex(ctx, store, &created, target)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &created, nil
}

func (s *SchemaService) UpdateField(ctx context.Context, field *lowcoder.Field) (*lowcoder.Field, error) {
	if err := field.Validate(); err != nil {
		return nil, err
	}
	schemaID, err := s.repo.SchemaOfField(ctx, field.ID)
	if err != nil {
		return nil, err
	}

	var updated *lowcoder.Field
	err = s.repo.InSchemaScope(ctx, schemaID, func(ctx context.Context, store SchemaStore) error {
		existing, err := store.GetField(ctx, field.ID)
		if err != nil {
			return err
		}
		if err := checkForeignKey(ctx, store, schemaID, field); err != nil {
			return err
		}
		count, err := store.CountFields(ctx, existing.TableID)
		if err != nil {
			return err
		}
		if field.Index > count {
			return lowcoder.NewValidationError("index", lowcoder.ErrCodeValidationFailed,
				fmt.Sprintf("must be between 1 and %d", count))
		}

		next := *field
		next.TableID = existing.TableID
		next.ColumnID = existing.ColumnID
		next.Index = existing.Index
		next.CreatedAt = existing.CreatedAt
		if err := store.UpdateField(ctx, &next); err != nil {
			return err
		}
		if field.Index > 0 && field.Index != next.Index {
			if err := s.indexer.SetFieldIndex(ctx, store, &next, field.Index); err != nil {
				return err
			}
		}
		updated, err = store.GetField(ctx, next.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *SchemaService) DeleteField(ctx context.Context, fieldID int64) error {
	schemaID, err := s.repo.SchemaOfField(ctx, fieldID)
	if err != nil {
		return err
	}
	return s.repo.InSchemaScope(ctx, schemaID, func(ctx context.Context, store SchemaStore) error {
		field, err := store.GetField(ctx, fieldID)
		if err != nil {
			return err
		}
		if err := store.DeleteField(ctx, fieldID); err != nil {
			return err
		}
		return s.indexer.CompactFields(ctx, store, field.TableID, field.Index)
	})
}

func (s *SchemaService) moveField(ctx context.Context, fieldID int64, move func(context.Context, SchemaStore, *lowcoder.Field) error) error {
	schemaID, err := s.repo.SchemaOfField(ctx, fieldID)
	if err != nil {
		return err
	}
	return s.repo.InSchemaScope(ctx, schemaID, func(ctx context.Context, store SchemaStore) error {
		field, err := store.GetField(ctx, fieldID)
		if err != nil {
			return err
		}
		return move(ctx, store, field)
	})
}

func (s *SchemaService) MoveFieldUp(ctx context.Context, fieldID int64) error {
	return s.moveField(ctx, fieldID, s.indexer.MoveFieldUp)
}

func (s *SchemaService) MoveFieldDown(ctx context.Context, fieldID int64) error {
	return s.moveField(ctx, fieldID, s.indexer.MoveFieldDown)
}

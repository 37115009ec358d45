package internal

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/lychee-technology/lowcoder"
)

// MemorySchemaRepository keeps schemas in process. It enforces the same
// uniqueness rules as the relational DDL and rolls a failed unit of work
// back. Units of work are serialized repository wide.
type MemorySchemaRepository struct {
	scopeMu sync.Mutex
	mu      sync.Mutex
	data    *memoryData
	nowFunc func() time.Time
}

type memoryData struct {
	nextID    int64
	schemas   map[int64]lowcoder.Schema
	tables    map[int64]lowcoder.Table
	fields    map[int64]lowcoder.Field
	documents map[int64]lowcoder.SourceDocument
	sheets    map[int64]lowcoder.Sheet
	headlines map[int64]lowcoder.Headline
	columns   map[int64]lowcoder.Column
}

func newMemoryData() *memoryData {
	return &memoryData{
		schemas:   map[int64]lowcoder.Schema{},
		tables:    map[int64]lowcoder.Table{},
		fields:    map[int64]lowcoder.Field{},
		documents: map[int64]lowcoder.SourceDocument{},
		sheets:    map[int64]lowcoder.Sheet{},
		headlines: map[int64]lowcoder.Headline{},
		columns:   map[int64]lowcoder.Column{},
	}
}

func (d *memoryData) clone() *memoryData {
	return &memoryData{
		nextID:    d.nextID,
		schemas:   maps.Clone(d.schemas),
		tables:    maps.Clone(d.tables),
		fields:    maps.Clone(d.fields),
		documents: maps.Clone(d.documents),
		sheets:    maps.Clone(d.sheets),
		headlines: maps.Clone(d.headlines),
		columns:   maps.Clone(d.columns),
	}
}

func NewMemorySchemaRepository() *MemorySchemaRepository {
	return &MemorySchemaRepository{data: newMemoryData(), nowFunc: time.Now}
}

func (r *MemorySchemaRepository) now() time.Time {
	return r.nowFunc().UTC()
}

func (r *MemorySchemaRepository) newID() int64 {
	r.data.nextID++
	return r.data.nextID
}

func (r *MemorySchemaRepository) EnsureSchema(ctx context.Context, projectID int64) (*lowcoder.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.data.schemas {
		if s.ProjectID == projectID {
			return &s, nil
		}
	}
	now := r.now()
	s := lowcoder.Schema{ID: r.newID(), ProjectID: projectID, Timestamps: lowcoder.Timestamps{CreatedAt: now, UpdatedAt: now}}
	r.data.schemas[s.ID] = s
	return &s, nil
}

func (r *MemorySchemaRepository) GetSchemaByProject(ctx context.Context, projectID int64) (*lowcoder.Schema, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.data.schemas {
		if s.ProjectID == projectID {
			return &s, nil
		}
	}
	return nil, lowcoder.NewNotFoundError("schema for project", projectID)
}

func (r *MemorySchemaRepository) SchemaOfTable(ctx context.Context, tableID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.data.tables[tableID]
	if !ok {
		return 0, lowcoder.NewNotFoundError("table", tableID)
	}
	return t.SchemaID, nil
}

func (r *MemorySchemaRepository) SchemaOfField(ctx context.Context, fieldID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.data.fields[fieldID]
	if !ok {
		return 0, lowcoder.NewNotFoundError("field", fieldID)
	}
	t, ok := r.data.tables[f.TableID]
	if !ok {
		return 0, lowcoder.NewNotFoundError("table", f.TableID)
	}
	return t.SchemaID, nil
}

func (r *MemorySchemaRepository) SchemaOfDocument(ctx context.Context, documentID int64) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.data.documents[documentID]
	if !ok {
		return 0, lowcoder.NewNotFoundError("document", documentID)
	}
	return d.SchemaID, nil
}

func (r *MemorySchemaRepository) InSchemaScope(ctx context.Context, schemaID int64, fn func(ctx context.Context, store SchemaStore) error) error {
	r.scopeMu.Lock()
	defer r.scopeMu.Unlock()

	r.mu.Lock()
	if _, ok := r.data.schemas[schemaID]; !ok {
		r.mu.Unlock()
		return lowcoder.NewNotFoundError("schema", schemaID)
	}
	snapshot := r.data.clone()
	r.mu.Unlock()

	if err := fn(ctx, &memoryStore{repo: r}); err != nil {
		r.mu.Lock()
		// Schemas are only created outside a scope and survive the rollback.
		snapshot.schemas = r.data.schemas
		snapshot.nextID = r.data.nextID
		r.data = snapshot
		r.mu.Unlock()
		return err
	}
	return nil
}

type memoryStore struct {
	repo *MemorySchemaRepository
}

func (s *memoryStore) lock() (*memoryData, func()) {
	s.repo.mu.Lock()
	return s.repo.data, s.repo.mu.Unlock
}

func conflict(format string, args ...any) error {
	return lowcoder.NewLowcoderError(lowcoder.ErrorTypeConflict, lowcoder.ErrCodeDuplicateIndex, fmt.Sprintf(format, args...))
}

func sortTables(tables []lowcoder.Table) {
	sort.Slice(tables, func(i, j int) bool {
		if tables[i].Index != tables[j].Index {
			return tables[i].Index < tables[j].Index
		}
		return tables[i].ID < tables[j].ID
	})
}

func sortFields(fields []lowcoder.Field) {
	sort.Slice(fields, func(i, j int) bool {
		if fields[i].Index != fields[j].Index {
			return fields[i].Index < fields[j].Index
		}
		return fields[i].ID < fields[j].ID
	})
}

func (s *memoryStore) ListTables(ctx context.Context, schemaID int64) ([]lowcoder.Table, error) {
	d, unlock := s.lock()
	defer unlock()
	out := make([]lowcoder.Table, 0)
	for _, t := range d.tables {
		if t.SchemaID == schemaID {
			out = append(out, t)
		}
	}
	sortTables(out)
	return out, nil
}

func (s *memoryStore) GetTable(ctx context.Context, tableID int64) (*lowcoder.Table, error) {
	d, unlock := s.lock()
	defer unlock()
	t, ok := d.tables[tableID]
	if !ok {
		return nil, lowcoder.NewNotFoundError("table", tableID)
	}
	return &t, nil
}

func (s *memoryStore) FindTableByIndex(ctx context.Context, schemaID int64, index int) (*lowcoder.Table, error) {
	d, unlock := s.lock()
	defer unlock()
	for _, t := range d.tables {
		if t.SchemaID == schemaID && t.Index == index {
			return &t, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) checkTable(d *memoryData, table *lowcoder.Table) error {
	if _, ok := d.schemas[table.SchemaID]; !ok {
		return lowcoder.NewNotFoundError("schema", table.SchemaID)
	}
	for _, other := range d.tables {
		if other.ID == table.ID || other.SchemaID != table.SchemaID {
			continue
		}
		if table.Index > 0 && other.Index == table.Index {
			return conflict("table index %d already taken in schema %d", table.Index, table.SchemaID)
		}
		if table.IsMainEntity && other.IsMainEntity {
			return lowcoder.NewLowcoderError(lowcoder.ErrorTypeConflict, lowcoder.ErrCodeDuplicateMainEntity,
				fmt.Sprintf("schema %d already has main entity %d", table.SchemaID, other.ID))
		}
	}
	return nil
}

func (s *memoryStore) InsertTable(ctx context.Context, table *lowcoder.Table) error {
	d, unlock := s.lock()
	defer unlock()
	if err := s.checkTable(d, table); err != nil {
		return err
	}
	table.ID = s.repo.newID()
	now := s.repo.now()
	table.CreatedAt, table.UpdatedAt = now, now
	d.tables[table.ID] = *table
	return nil
}

func (s *memoryStore) UpdateTable(ctx context.Context, table *lowcoder.Table) error {
	d, unlock := s.lock()
	defer unlock()
	existing, ok := d.tables[table.ID]
	if !ok {
		return lowcoder.NewNotFoundError("table", table.ID)
	}
	if err := s.checkTable(d, table); err != nil {
		return err
	}
	table.CreatedAt = existing.CreatedAt
	table.UpdatedAt = s.repo.now()
	d.tables[table.ID] = *table
	return nil
}

func (s *memoryStore) DeleteTable(ctx context.Context, tableID int64) error {
	d, unlock := s.lock()
	defer unlock()
	if _, ok := d.tables[tableID]; !ok {
		return lowcoder.NewNotFoundError("table", tableID)
	}
	delete(d.tables, tableID)
	for id, f := range d.fields {
		if f.TableID == tableID {
			delete(d.fields, id)
			continue
		}
		if f.ForeignKeyTableID != nil && *f.ForeignKeyTableID == tableID {
			f.ForeignKeyTableID = nil
			d.fields[id] = f
		}
	}
	return nil
}

func (s *memoryStore) ClearMainEntity(ctx context.Context, schemaID int64) error {
	d, unlock := s.lock()
	defer unlock()
	now := s.repo.now()
	for id, t := range d.tables {
		if t.SchemaID == schemaID && t.IsMainEntity {
			t.IsMainEntity = false
			t.UpdatedAt = now
			d.tables[id] = t
		}
	}
	return nil
}

func (s *memoryStore) MaxTableIndex(ctx context.Context, schemaID int64) (int, error) {
	d, unlock := s.lock()
	defer unlock()
	m := 0
	for _, t := range d.tables {
		if t.SchemaID == schemaID {
			m = max(m, t.Index)
		}
	}
	return m, nil
}

func (s *memoryStore) CountTables(ctx context.Context, schemaID int64) (int, error) {
	d, unlock := s.lock()
	defer unlock()
	n := 0
	for _, t := range d.tables {
		if t.SchemaID == schemaID {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) TablesByDocument(ctx context.Context, documentID int64) ([]lowcoder.Table, error) {
	d, unlock := s.lock()
	defer unlock()
	out := make([]lowcoder.Table, 0)
	for _, t := range d.tables {
		if t.HeadlineID == nil {
			continue
		}
		h, ok := d.headlines[*t.HeadlineID]
		if !ok {
			continue
		}
		if sh, ok := d.sheets[h.SheetID]; ok && sh.DocumentID == documentID {
			out = append(out, t)
		}
	}
	sortTables(out)
	return out, nil
}

func (s *memoryStore) ListFields(ctx context.Context, tableID int64) ([]lowcoder.Field, error) {
	d, unlock := s.lock()
	defer unlock()
	out := make([]lowcoder.Field, 0)
	for _, f := range d.fields {
		if f.TableID == tableID {
			out = append(out, f)
		}
	}
	sortFields(out)
	return out, nil
}

func (s *memoryStore) GetField(ctx context.Context, fieldID int64) (*lowcoder.Field, error) {
	d, unlock := s.lock()
	defer unlock()
	f, ok := d.fields[fieldID]
	if !ok {
		return nil, lowcoder.NewNotFoundError("field", fieldID)
	}
	return &f, nil
}

func (s *memoryStore) FindFieldByIndex(ctx context.Context, tableID int64, index int) (*lowcoder.Field, error) {
	d, unlock := s.lock()
	defer unlock()
	for _, f := range d.fields {
		if f.TableID == tableID && f.Index == index {
			return &f, nil
		}
	}
	return nil, nil
}

func (s *memoryStore) checkField(d *memoryData, field *lowcoder.Field) error {
	if _, ok := d.tables[field.TableID]; !ok {
		return lowcoder.NewNotFoundError("table", field.TableID)
	}
	if field.Index == 0 {
		return nil
	}
	for _, other := range d.fields {
		if other.ID != field.ID && other.TableID == field.TableID && other.Index == field.Index {
			return conflict("field index %d already taken in table %d", field.Index, field.TableID)
		}
	}
	return nil
}

func (s *memoryStore) InsertField(ctx context.Context, field *lowcoder.Field) error {
	d, unlock := s.lock()
	defer unlock()
	if err := s.checkField(d, field); err != nil {
		return err
	}
	field.ID = s.repo.newID()
	now := s.repo.now()
	field.CreatedAt, field.UpdatedAt = now, now
	field.Choices = slices.Clone(field.Choices)
	d.fields[field.ID] = *field
	return nil
}

func (s *memoryStore) UpdateField(ctx context.Context, field *lowcoder.Field) error {
	d, unlock := s.lock()
	defer unlock()
	existing, ok := d.fields[field.ID]
	if !ok {
		return lowcoder.NewNotFoundError("field", field.ID)
	}
	if err := s.checkField(d, field); err != nil {
		return err
	}
	field.CreatedAt = existing.CreatedAt
	field.UpdatedAt = s.repo.now()
	field.Choices = slices.Clone(field.Choices)
	d.fields[field.ID] = *field
	return nil
}

func (s *memoryStore) DeleteField(ctx context.Context, fieldID int64) error {
	d, unlock := s.lock()
	defer unlock()
	if _, ok := d.fields[fieldID]; !ok {
		return lowcoder.NewNotFoundError("field", fieldID)
	}
	delete(d.fields, fieldID)
	return nil
}

func (s *memoryStore) MaxFieldIndex(ctx context.Context, tableID int64) (int, error) {
	d, unlock := s.lock()
	defer unlock()
	m := 0
	for _, f := range d.fields {
		if f.TableID == tableID {
			m = max(m, f.Index)
		}
	}
	return m, nil
}

func (s *memoryStore) CountFields(ctx context.Context, tableID int64) (int, error) {
	d, unlock := s.lock()
	defer unlock()
	n := 0
	for _, f := range d.fields {
		if f.TableID == tableID {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) ClearForeignKeys(ctx context.Context, targetTableID int64) error {
	d, unlock := s.lock()
	defer unlock()
	for id, f := range d.fields {
		if f.ForeignKeyTableID != nil && *f.ForeignKeyTableID == targetTableID {
			f.ForeignKeyTableID = nil
			d.fields[id] = f
		}
	}
	return nil
}

func (s *memoryStore) InsertDocument(ctx context.Context, doc *lowcoder.SourceDocument) error {
	d, unlock := s.lock()
	defer unlock()
	if _, ok := d.schemas[doc.SchemaID]; !ok {
		return lowcoder.NewNotFoundError("schema", doc.SchemaID)
	}
	doc.ID = s.repo.newID()
	now := s.repo.now()
	doc.CreatedAt, doc.UpdatedAt = now, now
	d.documents[doc.ID] = *doc
	return nil
}

func (s *memoryStore) GetDocument(ctx context.Context, documentID int64) (*lowcoder.SourceDocument, error) {
	d, unlock := s.lock()
	defer unlock()
	doc, ok := d.documents[documentID]
	if !ok {
		return nil, lowcoder.NewNotFoundError("document", documentID)
	}
	return &doc, nil
}

func (s *memoryStore) DeleteDocument(ctx context.Context, documentID int64) error {
	d, unlock := s.lock()
	defer unlock()
	if _, ok := d.documents[documentID]; !ok {
		return lowcoder.NewNotFoundError("document", documentID)
	}
	s.deleteSheetsLocked(d, documentID)
	delete(d.documents, documentID)
	return nil
}

func (s *memoryStore) DeleteSheets(ctx context.Context, documentID int64) error {
	d, unlock := s.lock()
	defer unlock()
	s.deleteSheetsLocked(d, documentID)
	return nil
}

// deleteSheetsLocked cascades to headlines and columns and nulls the back
// references held by tables and fields.
func (s *memoryStore) deleteSheetsLocked(d *memoryData, documentID int64) {
	for sheetID, sh := range d.sheets {
		if sh.DocumentID != documentID {
			continue
		}
		for headlineID, h := range d.headlines {
			if h.SheetID != sheetID {
				continue
			}
			for columnID, c := range d.columns {
				if c.HeadlineID == headlineID {
					delete(d.columns, columnID)
					for fid, f := range d.fields {
						if f.ColumnID != nil && *f.ColumnID == columnID {
							f.ColumnID = nil
							d.fields[fid] = f
						}
					}
				}
			}
			for tid, t := range d.tables {
				if t.HeadlineID != nil && *t.HeadlineID == headlineID {
					t.HeadlineID = nil
					d.tables[tid] = t
				}
			}
			delete(d.headlines, headlineID)
		}
		delete(d.sheets, sheetID)
	}
}

func (s *memoryStore) UpsertSheet(ctx context.Context, sheet *lowcoder.Sheet) error {
	d, unlock := s.lock()
	defer unlock()
	now := s.repo.now()
	for id, existing := range d.sheets {
		if existing.DocumentID == sheet.DocumentID && existing.Index == sheet.Index {
			sheet.ID = id
			sheet.CreatedAt = existing.CreatedAt
			sheet.UpdatedAt = now
			d.sheets[id] = *sheet
			return nil
		}
	}
	if _, ok := d.documents[sheet.DocumentID]; !ok {
		return lowcoder.NewNotFoundError("document", sheet.DocumentID)
	}
	sheet.ID = s.repo.newID()
	sheet.CreatedAt, sheet.UpdatedAt = now, now
	d.sheets[sheet.ID] = *sheet
	return nil
}

func (s *memoryStore) UpsertHeadline(ctx context.Context, headline *lowcoder.Headline) error {
	d, unlock := s.lock()
	defer unlock()
	now := s.repo.now()
	for id, existing := range d.headlines {
		if existing.SheetID == headline.SheetID && existing.RowIndex == headline.RowIndex {
			headline.ID = id
			headline.CreatedAt = existing.CreatedAt
			headline.UpdatedAt = now
			d.headlines[id] = *headline
			return nil
		}
	}
	if _, ok := d.sheets[headline.SheetID]; !ok {
		return lowcoder.NewNotFoundError("sheet", headline.SheetID)
	}
	headline.ID = s.repo.newID()
	headline.CreatedAt, headline.UpdatedAt = now, now
	d.headlines[headline.ID] = *headline
	return nil
}

func (s *memoryStore) UpsertColumn(ctx context.Context, column *lowcoder.Column) error {
	d, unlock := s.lock()
	defer unlock()
	now := s.repo.now()
	for id, existing := range d.columns {
		if existing.HeadlineID == column.HeadlineID && existing.ColumnIndex == column.ColumnIndex {
			column.ID = id
			column.CreatedAt = existing.CreatedAt
			column.UpdatedAt = now
			d.columns[id] = *column
			return nil
		}
	}
	if _, ok := d.headlines[column.HeadlineID]; !ok {
		return lowcoder.NewNotFoundError("headline", column.HeadlineID)
	}
	column.ID = s.repo.newID()
	column.CreatedAt, column.UpdatedAt = now, now
	d.columns[column.ID] = *column
	return nil
}

func (s *memoryStore) GetHeadline(ctx context.Context, headlineID int64) (*lowcoder.Headline, error) {
	d, unlock := s.lock()
	defer unlock()
	h, ok := d.headlines[headlineID]
	if !ok {
		return nil, lowcoder.NewNotFoundError("headline", headlineID)
	}
	return &h, nil
}

func (s *memoryStore) GetColumn(ctx context.Context, columnID int64) (*lowcoder.Column, error) {
	d, unlock := s.lock()
	defer unlock()
	c, ok := d.columns[columnID]
	if !ok {
		return nil, lowcoder.NewNotFoundError("column", columnID)
	}
	return &c, nil
}

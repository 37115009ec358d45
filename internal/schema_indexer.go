package internal

import (
	"context"
	"fmt"
	"sort"

	"github.com/lychee-technology/lowcoder"
)

// siblingSet abstracts the index bookkeeping over tables within a schema and
// fields within a table. An index of 0 means "not assigned yet".
type siblingSet[T any] struct {
	kind        string
	maxIndex    func(ctx context.Context) (int, error)
	count       func(ctx context.Context) (int, error)
	findByIndex func(ctx context.Context, index int) (*T, error)
	list        func(ctx context.Context) ([]T, error)
	save        func(ctx context.Context, e *T) error
	indexOf     func(e *T) *int
	idOf        func(e *T) int64
}

func tableSiblings(store SchemaStore, schemaID int64) siblingSet[lowcoder.Table] {
	return siblingSet[lowcoder.Table]{
		kind:     "table",
		maxIndex: func(ctx context.Context) (int, error) { return store.MaxTableIndex(ctx, schemaID) },
		count:    func(ctx context.Context) (int, error) { return store.CountTables(ctx, schemaID) },
		findByIndex: func(ctx context.Context, index int) (*lowcoder.Table, error) {
			return store.FindTableByIndex(ctx, schemaID, index)
		},
		list:    func(ctx context.Context) ([]lowcoder.Table, error) { return store.ListTables(ctx, schemaID) },
		save:    store.UpdateTable,
		indexOf: func(t *lowcoder.Table) *int { return &t.Index },
		idOf:    func(t *lowcoder.Table) int64 { return t.ID },
	}
}

func fieldSiblings(store SchemaStore, tableID int64) siblingSet[lowcoder.Field] {
	return siblingSet[lowcoder.Field]{
		kind:     "field",
		maxIndex: func(ctx context.Context) (int, error) { return store.MaxFieldIndex(ctx, tableID) },
		count:    func(ctx context.Context) (int, error) { return store.CountFields(ctx, tableID) },
		findByIndex: func(ctx context.Context, index int) (*lowcoder.Field, error) {
			return store.FindFieldByIndex(ctx, tableID, index)
		},
		list:    func(ctx context.Context) ([]lowcoder.Field, error) { return store.ListFields(ctx, tableID) },
		save:    store.UpdateField,
		indexOf: func(f *lowcoder.Field) *int { return &f.Index },
		idOf:    func(f *lowcoder.Field) int64 { return f.ID },
	}
}

// setIndex moves e to target. An occupant of target is parked on max+1,
// e takes the occupant's slot, then the occupant takes e's original slot, so
// no intermediate write ever shares an index.
func setIndex[T any](ctx context.Context, s siblingSet[T], e *T, target int) error {
	if target < 1 {
		return lowcoder.NewValidationError("index", lowcoder.ErrCodeValidationFailed, "must be positive")
	}
	original := *s.indexOf(e)
	if original == target {
		return nil
	}

	occupant, err := s.findByIndex(ctx, target)
	if err != nil {
		return err
	}
	if occupant == nil || s.idOf(occupant) == s.idOf(e) {
		*s.indexOf(e) = target
		if err := s.save(ctx, e); err != nil {
			return fmt.Errorf("save %s index: %w", s.kind, err)
		}
		return assertUniqueIndexes(ctx, s)
	}

	maxIndex, err := s.maxIndex(ctx)
	if err != nil {
		return err
	}
	occupantIndex := *s.indexOf(occupant)

	*s.indexOf(occupant) = maxIndex + 1
	if err := s.save(ctx, occupant); err != nil {
		return fmt.Errorf("park %s on scratch index: %w", s.kind, err)
	}

	*s.indexOf(e) = occupantIndex
	if err := s.save(ctx, e); err != nil {
		return fmt.Errorf("move %s: %w", s.kind, err)
	}

	// An entity without an index leaves the occupant on the scratch slot.
	if original > 0 {
		*s.indexOf(occupant) = original
		if err := s.save(ctx, occupant); err != nil {
			return fmt.Errorf("restore %s: %w", s.kind, err)
		}
	}
	return assertUniqueIndexes(ctx, s)
}

// backfillIndex assigns max+1 to legacy rows without an index.
func backfillIndex[T any](ctx context.Context, s siblingSet[T], e *T) error {
	if *s.indexOf(e) > 0 {
		return nil
	}
	maxIndex, err := s.maxIndex(ctx)
	if err != nil {
		return err
	}
	*s.indexOf(e) = maxIndex + 1
	return s.save(ctx, e)
}

func moveUp[T any](ctx context.Context, s siblingSet[T], e *T) error {
	if err := backfillIndex(ctx, s, e); err != nil {
		return err
	}
	if idx := *s.indexOf(e); idx > 1 {
		return setIndex(ctx, s, e, idx-1)
	}
	return nil
}

func moveDown[T any](ctx context.Context, s siblingSet[T], e *T) error {
	if err := backfillIndex(ctx, s, e); err != nil {
		return err
	}
	count, err := s.count(ctx)
	if err != nil {
		return err
	}
	if idx := *s.indexOf(e); idx < count {
		return setIndex(ctx, s, e, idx+1)
	}
	return nil
}

// compactAfter closes the gap left by a removed index. Siblings are shifted
// in ascending order so each one lands on the slot freed just before it.
func compactAfter[T any](ctx context.Context, s siblingSet[T], removed int) error {
	if removed < 1 {
		return nil
	}
	items, err := s.list(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(items, func(i, j int) bool { return *s.indexOf(&items[i]) < *s.indexOf(&items[j]) })
	for i := range items {
		item := &items[i]
		if idx := *s.indexOf(item); idx > removed {
			*s.indexOf(item) = idx - 1
			if err := s.save(ctx, item); err != nil {
				return fmt.Errorf("shift %s index: %w", s.kind, err)
			}
		}
	}
	return assertUniqueIndexes(ctx, s)
}

func assertUniqueIndexes[T any](ctx context.Context, s siblingSet[T]) error {
	items, err := s.list(ctx)
	if err != nil {
		return err
	}
	seen := make(map[int]int64, len(items))
	for i := range items {
		idx := *s.indexOf(&items[i])
		if idx == 0 {
			continue
		}
		if other, ok := seen[idx]; ok {
			return lowcoder.NewInvariantError(lowcoder.ErrCodeDuplicateIndex,
				fmt.Sprintf("%s %d and %d share index %d", s.kind, other, s.idOf(&items[i]), idx))
		}
		seen[idx] = s.idOf(&items[i])
	}
	return nil
}

func nextIndex[T any](ctx context.Context, s siblingSet[T]) (int, error) {
	maxIndex, err := s.maxIndex(ctx)
	if err != nil {
		return 0, err
	}
	return maxIndex + 1, nil
}

// SchemaIndexer keeps sibling indexes unique and dense and maintains the
// single main entity of a schema. Callers run it inside InSchemaScope.
type SchemaIndexer struct{}

func NewSchemaIndexer() *SchemaIndexer {
	return &SchemaIndexer{}
}

func (ix *SchemaIndexer) SetTableIndex(ctx context.Context, store SchemaStore, table *lowcoder.Table, target int) error {
	return setIndex(ctx, tableSiblings(store, table.SchemaID), table, target)
}

func (ix *SchemaIndexer) MoveTableUp(ctx context.Context, store SchemaStore, table *lowcoder.Table) error {
	return moveUp(ctx, tableSiblings(store, table.SchemaID), table)
}

func (ix *SchemaIndexer) MoveTableDown(ctx context.Context, store SchemaStore, table *lowcoder.Table) error {
	return moveDown(ctx, tableSiblings(store, table.SchemaID), table)
}

func (ix *SchemaIndexer) CompactTables(ctx context.Context, store SchemaStore, schemaID int64, removed int) error {
	return compactAfter(ctx, tableSiblings(store, schemaID), removed)
}

func (ix *SchemaIndexer) NextTableIndex(ctx context.Context, store SchemaStore, schemaID int64) (int, error) {
	return nextIndex(ctx, tableSiblings(store, schemaID))
}

func (ix *SchemaIndexer) SetFieldIndex(ctx context.Context, store SchemaStore, field *lowcoder.Field, target int) error {
	return setIndex(ctx, fieldSiblings(store, field.TableID), field, target)
}

func (ix *SchemaIndexer) MoveFieldUp(ctx context.Context, store SchemaStore, field *lowcoder.Field) error {
	return moveUp(ctx, fieldSiblings(store, field.TableID), field)
}

func (ix *SchemaIndexer) MoveFieldDown(ctx context.Context, store SchemaStore, field *lowcoder.Field) error {
	return moveDown(ctx, fieldSiblings(store, field.TableID), field)
}

func (ix *SchemaIndexer) CompactFields(ctx context.Context, store SchemaStore, tableID int64, removed int) error {
	return compactAfter(ctx, fieldSiblings(store, tableID), removed)
}

func (ix *SchemaIndexer) NextFieldIndex(ctx context.Context, store SchemaStore, tableID int64) (int, error) {
	return nextIndex(ctx, fieldSiblings(store, tableID))
}

// UnsetMainEntity clears the flag on every sibling when table claims it.
// It runs before the table itself is persisted.
func (ix *SchemaIndexer) UnsetMainEntity(ctx context.Context, store SchemaStore, table *lowcoder.Table) error {
	if !table.IsMainEntity {
		return nil
	}
	return store.ClearMainEntity(ctx, table.SchemaID)
}

// SetNewMainEntity promotes the lowest indexed table other than removedID
// when no other table holds the flag.
func (ix *SchemaIndexer) SetNewMainEntity(ctx context.Context, store SchemaStore, schemaID, removedID int64) error {
	tables, err := store.ListTables(ctx, schemaID)
	if err != nil {
		return err
	}

	var candidate *lowcoder.Table
	holders := 0
	for i := range tables {
		t := &tables[i]
		if t.ID == removedID {
			continue
		}
		if t.IsMainEntity {
			holders++
		}
		if candidate == nil || lowerIndex(t.Index, candidate.Index) {
			candidate = t
		}
	}
	switch {
	case holders > 1:
		return lowcoder.NewInvariantError(lowcoder.ErrCodeDuplicateMainEntity,
			fmt.Sprintf("schema %d has %d main entities", schemaID, holders))
	case holders == 1 || candidate == nil:
		return nil
	}
	candidate.IsMainEntity = true
	return store.UpdateTable(ctx, candidate)
}

// lowerIndex orders assigned indexes before unassigned ones.
func lowerIndex(a, b int) bool {
	if a == 0 {
		return false
	}
	return b == 0 || a < b
}

// InitMainEntity reports whether a new table should default to main.
func (ix *SchemaIndexer) InitMainEntity(ctx context.Context, store SchemaStore, schemaID int64) (bool, error) {
	tables, err := store.ListTables(ctx, schemaID)
	if err != nil {
		return false, err
	}
	for _, t := range tables {
		if t.IsMainEntity {
			return false, nil
		}
	}
	return true, nil
}

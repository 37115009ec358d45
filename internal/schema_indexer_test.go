package internal

import (
	"context"
	"errors"
	"testing"

	"github.com/lychee-technology/lowcoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// withScope runs fn inside the scope of a fresh schema.
func withScope(t *testing.T, fn func(ctx context.Context, store SchemaStore, schemaID int64)) *MemorySchemaRepository {
	t.Helper()
	ctx := context.Background()
	repo := NewMemorySchemaRepository()
	schema, err := repo.EnsureSchema(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, repo.InSchemaScope(ctx, schema.ID, func(ctx context.Context, store SchemaStore) error {
		fn(ctx, store, schema.ID)
		return nil
	}))
	return repo
}

func insertTables(t *testing.T, ctx context.Context, store SchemaStore, schemaID int64, names ...string) []*lowcoder.Table {
	t.Helper()
	out := make([]*lowcoder.Table, 0, len(names))
	for i, name := range names {
		table := &lowcoder.Table{SchemaID: schemaID, Name: name, Index: i + 1, IsMainEntity: i == 0}
		require.NoError(t, store.InsertTable(ctx, table))
		out = append(out, table)
	}
	return out
}

func tableOrder(t *testing.T, ctx context.Context, store SchemaStore, schemaID int64) map[string]int {
	t.Helper()
	tables, err := store.ListTables(ctx, schemaID)
	require.NoError(t, err)
	order := make(map[string]int, len(tables))
	for _, table := range tables {
		order[table.Name] = table.Index
	}
	return order
}

func TestSchemaIndexer_SetTableIndexSwapsOccupant(t *testing.T) {
	ix := NewSchemaIndexer()
	withScope(t, func(ctx context.Context, store SchemaStore, schemaID int64) {
		tables := insertTables(t, ctx, store, schemaID, "A", "B", "C")

		require.NoError(t, ix.SetTableIndex(ctx, store, tables[2], 1))
		assert.Equal(t, map[string]int{"C": 1, "B": 2, "A": 3}, tableOrder(t, ctx, store, schemaID))

		// Same target again changes nothing.
		require.NoError(t, ix.SetTableIndex(ctx, store, tables[2], 1))
		assert.Equal(t, map[string]int{"C": 1, "B": 2, "A": 3}, tableOrder(t, ctx, store, schemaID))
	})
}

func TestSchemaIndexer_SetTableIndexRejectsNonPositive(t *testing.T) {
	ix := NewSchemaIndexer()
	withScope(t, func(ctx context.Context, store SchemaStore, schemaID int64) {
		tables := insertTables(t, ctx, store, schemaID, "A")
		err := ix.SetTableIndex(ctx, store, tables[0], 0)
		assert.True(t, lowcoder.IsValidation(err))
	})
}

func TestSchemaIndexer_MoveTable(t *testing.T) {
	ix := NewSchemaIndexer()
	withScope(t, func(ctx context.Context, store SchemaStore, schemaID int64) {
		tables := insertTables(t, ctx, store, schemaID, "A", "B", "C")

		require.NoError(t, ix.MoveTableUp(ctx, store, tables[0]))
		assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3}, tableOrder(t, ctx, store, schemaID))

		require.NoError(t, ix.MoveTableDown(ctx, store, tables[2]))
		assert.Equal(t, map[string]int{"A": 1, "B": 2, "C": 3}, tableOrder(t, ctx, store, schemaID))

		require.NoError(t, ix.MoveTableDown(ctx, store, tables[0]))
		assert.Equal(t, map[string]int{"B": 1, "A": 2, "C": 3}, tableOrder(t, ctx, store, schemaID))

		require.NoError(t, ix.MoveTableUp(ctx, store, tables[2]))
		assert.Equal(t, map[string]int{"B": 1, "C": 2, "A": 3}, tableOrder(t, ctx, store, schemaID))
	})
}

func TestSchemaIndexer_MoveBackfillsMissingIndex(t *testing.T) {
	ix := NewSchemaIndexer()
	withScope(t, func(ctx context.Context, store SchemaStore, schemaID int64) {
		insertTables(t, ctx, store, schemaID, "A", "B")
		legacy := &lowcoder.Table{SchemaID: schemaID, Name: "Legacy"}
		require.NoError(t, store.InsertTable(ctx, legacy))

		require.NoError(t, ix.MoveTableUp(ctx, store, legacy))
		assert.Equal(t, map[string]int{"A": 1, "Legacy": 2, "B": 3}, tableOrder(t, ctx, store, schemaID))
	})
}

func TestSchemaIndexer_CompactTables(t *testing.T) {
	ix := NewSchemaIndexer()
	withScope(t, func(ctx context.Context, store SchemaStore, schemaID int64) {
		tables := insertTables(t, ctx, store, schemaID, "A", "B", "C", "D")
		require.NoError(t, store.DeleteTable(ctx, tables[1].ID))

		require.NoError(t, ix.CompactTables(ctx, store, schemaID, 2))
		assert.Equal(t, map[string]int{"A": 1, "C": 2, "D": 3}, tableOrder(t, ctx, store, schemaID))

		next, err := ix.NextTableIndex(ctx, store, schemaID)
		require.NoError(t, err)
		assert.Equal(t, 4, next)
	})
}

func TestSchemaIndexer_FieldIndexes(t *testing.T) {
	ix := NewSchemaIndexer()
	withScope(t, func(ctx context.Context, store SchemaStore, schemaID int64) {
		tables := insertTables(t, ctx, store, schemaID, "A")
		var fields []*lowcoder.Field
		for i, name := range []string{"id", "name", "email"} {
			f := lowcoder.NewField(tables[0].ID, name, lowcoder.DatatypeChar)
			f.Index = i + 1
			require.NoError(t, store.InsertField(ctx, f))
			fields = append(fields, f)
		}

		require.NoError(t, ix.MoveFieldDown(ctx, store, fields[0]))
		require.NoError(t, ix.SetFieldIndex(ctx, store, fields[2], 1))

		list, err := store.ListFields(ctx, tables[0].ID)
		require.NoError(t, err)
		names := make([]string, 0, len(list))
		for _, f := range list {
			names = append(names, f.Name)
		}
		assert.Equal(t, []string{"email", "id", "name"}, names)

		require.NoError(t, store.DeleteField(ctx, fields[0].ID))
		require.NoError(t, ix.CompactFields(ctx, store, tables[0].ID, 2))
		next, err := ix.NextFieldIndex(ctx, store, tables[0].ID)
		require.NoError(t, err)
		assert.Equal(t, 3, next)
	})
}

func TestSchemaIndexer_MainEntity(t *testing.T) {
	ix := NewSchemaIndexer()
	withScope(t, func(ctx context.Context, store SchemaStore, schemaID int64) {
		isMain, err := ix.InitMainEntity(ctx, store, schemaID)
		require.NoError(t, err)
		assert.True(t, isMain)

		tables := insertTables(t, ctx, store, schemaID, "A", "B", "C")
		isMain, err = ix.InitMainEntity(ctx, store, schemaID)
		require.NoError(t, err)
		assert.False(t, isMain)

		// Claiming the flag clears it on the siblings first.
		tables[2].IsMainEntity = true
		require.NoError(t, ix.UnsetMainEntity(ctx, store, tables[2]))
		require.NoError(t, store.UpdateTable(ctx, tables[2]))

		a, err := store.GetTable(ctx, tables[0].ID)
		require.NoError(t, err)
		assert.False(t, a.IsMainEntity)

		// Removing the holder promotes the lowest remaining index.
		require.NoError(t, store.DeleteTable(ctx, tables[2].ID))
		require.NoError(t, ix.SetNewMainEntity(ctx, store, schemaID, tables[2].ID))
		a, err = store.GetTable(ctx, tables[0].ID)
		require.NoError(t, err)
		assert.True(t, a.IsMainEntity)

		// An existing holder is left alone.
		require.NoError(t, ix.SetNewMainEntity(ctx, store, schemaID, 0))
		b, err := store.GetTable(ctx, tables[1].ID)
		require.NoError(t, err)
		assert.False(t, b.IsMainEntity)
	})
}

func TestAssertUniqueIndexes_ReportsInvariant(t *testing.T) {
	items := []lowcoder.Table{{ID: 1, Index: 1}, {ID: 2, Index: 2}, {ID: 3, Index: 2}, {ID: 4}, {ID: 5}}
	s := siblingSet[lowcoder.Table]{
		kind:    "table",
		list:    func(ctx context.Context) ([]lowcoder.Table, error) { return items, nil },
		indexOf: func(t *lowcoder.Table) *int { return &t.Index },
		idOf:    func(t *lowcoder.Table) int64 { return t.ID },
	}

	err := assertUniqueIndexes(context.Background(), s)
	require.Error(t, err)
	assert.True(t, lowcoder.IsInvariant(err))

	var le *lowcoder.LowcoderError
	require.True(t, errors.As(err, &le))
	assert.Equal(t, lowcoder.ErrCodeDuplicateIndex, le.Code)

	items = items[:2]
	assert.NoError(t, assertUniqueIndexes(context.Background(), s))
}

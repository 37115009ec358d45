package internal

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/lychee-technology/lowcoder"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

func columnNamesOf(f *Frame) []string {
	names := make([]string, len(f.Columns))
	for i, c := range f.Columns {
		names[i] = c.Name
	}
	return names
}

func TestBuildFrame(t *testing.T) {
	rows := [][]string{
		{"Quarterly report"},
		{"id", "name", "amount"},
		{"1", "Ada", "10.5"},
		{"2", "Bob", "NA"},
		{"3", "Cy", "7"},
		{"", "Total", "17.5"},
	}

	frame, err := BuildFrame(rows, lowcoder.SheetReaderParams{SkipRows: 1, SkipFooter: 1}, ".")
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name", "amount"}, columnNamesOf(frame))
	assert.Equal(t, 3, frame.RowCount())

	id := frame.Column("id")
	assert.Equal(t, KindInt, id.Kind)
	assert.Equal(t, []any{int64(1), int64(2), int64(3)}, id.Values)

	amount := frame.Column("amount")
	assert.Equal(t, KindFloat, amount.Kind)
	assert.Equal(t, []any{10.5, nil, 7.0}, amount.Values)
}

func TestBuildFrame_Params(t *testing.T) {
	rows := [][]string{
		{"id", "name", "price"},
		{"1", "Ada", "1,5"},
		{"2", "Bob", "2,25"},
		{"3", "Cy", "3"},
	}

	t.Run("nrows", func(t *testing.T) {
		n := 2
		frame, err := BuildFrame(rows, lowcoder.SheetReaderParams{NRows: &n}, ".")
		require.NoError(t, err)
		assert.Equal(t, 2, frame.RowCount())
	})

	t.Run("index column", func(t *testing.T) {
		idx := 0
		frame, err := BuildFrame(rows, lowcoder.SheetReaderParams{IndexCol: &idx}, ".")
		require.NoError(t, err)
		assert.Equal(t, []string{"name", "price"}, columnNamesOf(frame))
	})

	t.Run("usecols", func(t *testing.T) {
		frame, err := BuildFrame(rows, lowcoder.SheetReaderParams{UseCols: []string{"price", "id"}}, ".")
		require.NoError(t, err)
		assert.Equal(t, []string{"id", "price"}, columnNamesOf(frame))

		_, err = BuildFrame(rows, lowcoder.SheetReaderParams{UseCols: []string{"missing"}}, ".")
		assert.Error(t, err)
	})

	t.Run("decimal separator", func(t *testing.T) {
		frame, err := BuildFrame(rows, lowcoder.SheetReaderParams{Decimal: ","}, ".")
		require.NoError(t, err)
		price := frame.Column("price")
		assert.Equal(t, KindFloat, price.Kind)
		assert.Equal(t, []any{1.5, 2.25, 3.0}, price.Values)
	})

	t.Run("header row", func(t *testing.T) {
		frame, err := BuildFrame(rows, lowcoder.SheetReaderParams{Header: 1}, ".")
		require.NoError(t, err)
		assert.Equal(t, []string{"1", "Ada", "1,5"}, columnNamesOf(frame))
		assert.Equal(t, 2, frame.RowCount())

		_, err = BuildFrame(rows, lowcoder.SheetReaderParams{Header: 9}, ".")
		assert.Error(t, err)
	})

	t.Run("negative parameter", func(t *testing.T) {
		_, err := BuildFrame(rows, lowcoder.SheetReaderParams{SkipRows: -1}, ".")
		assert.Error(t, err)
	})

	t.Run("nothing left", func(t *testing.T) {
		frame, err := BuildFrame(rows, lowcoder.SheetReaderParams{SkipRows: 10}, ".")
		require.NoError(t, err)
		assert.Zero(t, frame.RowCount())
	})
}

func TestBuildFrame_HeaderNames(t *testing.T) {
	rows := [][]string{
		{"", "code", "code"},
		{"a", "b", "c", "extra"},
		{"d", "e"},
	}
	frame, err := BuildFrame(rows, lowcoder.SheetReaderParams{}, ".")
	require.NoError(t, err)
	assert.Equal(t, []string{"Unnamed: 0", "code", "code.1", "Unnamed: 3"}, columnNamesOf(frame))
	assert.Equal(t, []any{"extra", nil}, frame.Column("Unnamed: 3").Values)
}

func TestLoadSheets_ReplacesFailedSheet(t *testing.T) {
	reader := &fakeReader{
		order: []string{"Good", "Bad"},
		rows:  map[string][][]string{"Good": {{"a"}, {"1"}}},
		errs:  map[string]error{"Bad": errors.New("corrupt sheet")},
	}
	header := lowcoder.SheetReaderParams{SkipRows: 0}
	sheets, err := LoadSheets(context.Background(), reader, "book.xlsx", func(string) lowcoder.SheetReaderParams { return header })
	require.NoError(t, err)
	require.Len(t, sheets, 2)

	assert.NoError(t, sheets[0].Err)
	assert.Equal(t, 1, sheets[0].Frame.RowCount())

	assert.EqualError(t, sheets[1].Err, "corrupt sheet")
	errCol := sheets[1].Frame.Column("error")
	require.NotNil(t, errCol)
	assert.Equal(t, []any{"corrupt sheet"}, errCol.Values)
}

func TestExtensionReader(t *testing.T) {
	ctx := context.Background()
	inner := &fakeReader{order: []string{CSVSheetName}, rows: map[string][][]string{CSVSheetName: {{"a"}, {"1"}}}}
	r := NewExtensionReader([]string{".csv", ".xlsx"}, map[string]TabularReader{".csv": inner})

	sheets, err := r.Sheets(ctx, "data.CSV")
	require.NoError(t, err)
	assert.Equal(t, []string{"sheet0"}, sheets)

	frame, err := r.Read(ctx, "data.csv", CSVSheetName, lowcoder.SheetReaderParams{})
	require.NoError(t, err)
	assert.Equal(t, 1, frame.RowCount())

	_, err = r.Sheets(ctx, "data.txt")
	assert.True(t, lowcoder.IsValidation(err))

	_, err = r.Sheets(ctx, "book.xlsx")
	assert.True(t, lowcoder.IsValidation(err))
}

func TestXLSXReader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "staff.xlsx")
	wb := excelize.NewFile()
	require.NoError(t, wb.SetSheetRow("Sheet1", "A1", &[]any{"id", "name"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A2", &[]any{1, "Ada"}))
	require.NoError(t, wb.SetSheetRow("Sheet1", "A3", &[]any{2, "Bob"}))
	_, err := wb.NewSheet("Departments")
	require.NoError(t, err)
	require.NoError(t, wb.SetSheetRow("Departments", "A1", &[]any{"code"}))
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	ctx := context.Background()
	r := NewXLSXReader(",")
	sheets, err := r.Sheets(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{"Sheet1", "Departments"}, sheets)

	frame, err := r.Read(ctx, path, "Sheet1", lowcoder.SheetReaderParams{})
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "name"}, columnNamesOf(frame))
	assert.Equal(t, []any{int64(1), int64(2)}, frame.Column("id").Values)

	_, err = r.Read(ctx, path, "Missing", lowcoder.SheetReaderParams{})
	assert.Error(t, err)

	_, err = r.Sheets(ctx, filepath.Join(t.TempDir(), "missing.xlsx"))
	assert.Error(t, err)
}

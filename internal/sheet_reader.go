package internal

import (
	"context"
	"fmt"
	"path/filepath"
	"slices"
	"strings"

	"github.com/lychee-technology/lowcoder"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"
)

// CSVSheetName is the synthetic sheet name reported for CSV files.
const CSVSheetName = "sheet0"

// CSVReader reads CSV files through DuckDB's read_csv, which sniffs the
// delimiter and quoting.
type CSVReader struct {
	client  *DuckDBClient
	decimal string
}

func NewCSVReader(client *DuckDBClient) *CSVReader {
	return &CSVReader{client: client, decimal: "."}
}

func (r *CSVReader) Sheets(ctx context.Context, path string) ([]string, error) {
	return []string{CSVSheetName}, nil
}

func (r *CSVReader) Read(ctx context.Context, path, sheet string, params lowcoder.SheetReaderParams) (*Frame, error) {
	query := fmt.Sprintf(
		"SELECT * FROM read_csv(%s, header = false, all_varchar = true, auto_detect = true, null_padding = true)",
		quoteLiteral(path),
	)
	rows, err := r.client.QueryStrings(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("read csv %s: %w", filepath.Base(path), err)
	}
	return BuildFrame(rows, params, r.decimal)
}

// XLSXReader reads workbooks with excelize. Cell values are taken in their
// displayed format.
type XLSXReader struct {
	decimal string
}

func NewXLSXReader(decimal string) *XLSXReader {
	return &XLSXReader{decimal: decimal}
}

func (r *XLSXReader) Sheets(ctx context.Context, path string) ([]string, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filepath.Base(path), err)
	}
	defer f.Close()
	return f.GetSheetList(), nil
}

func (r *XLSXReader) Read(ctx context.Context, path, sheet string, params lowcoder.SheetReaderParams) (*Frame, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("open workbook %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return BuildFrame(rows, params, r.decimal)
}

// ExtensionReader dispatches on the file extension.
type ExtensionReader struct {
	readers map[string]TabularReader
	allowed []string
}

func NewExtensionReader(allowed []string, readers map[string]TabularReader) *ExtensionReader {
	return &ExtensionReader{readers: readers, allowed: allowed}
}

func (r *ExtensionReader) pick(path string) (TabularReader, error) {
	if err := lowcoder.ValidateExtension(path, r.allowed); err != nil {
		return nil, err
	}
	reader, ok := r.readers[strings.ToLower(filepath.Ext(path))]
	if !ok {
		return nil, lowcoder.NewValidationError("file", lowcoder.ErrCodeExtensionNotAllowed,
			fmt.Sprintf("no reader registered for %q", filepath.Ext(path)))
	}
	return reader, nil
}

func (r *ExtensionReader) Sheets(ctx context.Context, path string) ([]string, error) {
	reader, err := r.pick(path)
	if err != nil {
		return nil, err
	}
	return reader.Sheets(ctx, path)
}

func (r *ExtensionReader) Read(ctx context.Context, path, sheet string, params lowcoder.SheetReaderParams) (*Frame, error) {
	reader, err := r.pick(path)
	if err != nil {
		return nil, err
	}
	return reader.Read(ctx, path, sheet, params)
}

// BuildFrame applies the read parameters to raw rows and types each column.
func BuildFrame(rows [][]string, params lowcoder.SheetReaderParams, defaultDecimal string) (*Frame, error) {
	if params.SkipRows < 0 || params.Header < 0 || params.SkipFooter < 0 {
		return nil, fmt.Errorf("negative read parameter")
	}
	if params.SkipRows >= len(rows) {
		rows = nil
	} else {
		rows = rows[params.SkipRows:]
	}
	if len(rows) == 0 {
		return &Frame{}, nil
	}
	if params.Header >= len(rows) {
		return nil, fmt.Errorf("header row %d out of range (%d rows)", params.Header, len(rows))
	}

	header := rows[params.Header]
	data := rows[params.Header+1:]
	if params.SkipFooter > 0 {
		data = data[:max(0, len(data)-params.SkipFooter)]
	}
	if params.NRows != nil && *params.NRows >= 0 && *params.NRows < len(data) {
		data = data[:*params.NRows]
	}

	width := len(header)
	for _, row := range data {
		width = max(width, len(row))
	}
	names := columnNames(header, width)

	positions := make([]int, 0, width)
	for i := range width {
		if params.IndexCol != nil && *params.IndexCol == i {
			continue
		}
		positions = append(positions, i)
	}
	if len(params.UseCols) > 0 {
		kept := positions[:0]
		for _, i := range positions {
			if slices.Contains(params.UseCols, names[i]) {
				kept = append(kept, i)
			}
		}
		if len(kept) != len(params.UseCols) {
			return nil, fmt.Errorf("usecols do not match columns: %v", params.UseCols)
		}
		positions = kept
	}

	decimal := params.Decimal
	if decimal == "" {
		decimal = defaultDecimal
	}

	frame := &Frame{Columns: make([]*Series, 0, len(positions))}
	for _, i := range positions {
		raw := make([]string, len(data))
		for r, row := range data {
			if i < len(row) {
				raw[r] = row[i]
			}
		}
		frame.Columns = append(frame.Columns, TypeSeries(names[i], raw, decimal))
	}
	return frame, nil
}

// columnNames fills blank headers and suffixes duplicates with ".n".
func columnNames(header []string, width int) []string {
	names := make([]string, width)
	seen := make(map[string]int, width)
	for i := range width {
		name := ""
		if i < len(header) {
			name = strings.TrimSpace(header[i])
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if n, ok := seen[name]; ok {
			seen[name] = n + 1
			name = fmt.Sprintf("%s.%d", name, n+1)
		}
		seen[name] = 0
		names[i] = name
	}
	return names
}

// LoadedSheet is the outcome of reading one sheet.
type LoadedSheet struct {
	Name   string
	Frame  *Frame
	Params lowcoder.SheetReaderParams
	Err    error
}

// LoadSheets reads every sheet of path in document order. A sheet that fails
// to read is replaced by a diagnostic frame; the other sheets still load.
func LoadSheets(ctx context.Context, reader TabularReader, path string, paramsFor func(sheet string) lowcoder.SheetReaderParams) ([]LoadedSheet, error) {
	names, err := reader.Sheets(ctx, path)
	if err != nil {
		return nil, err
	}

	sheets := make([]LoadedSheet, 0, len(names))
	for _, name := range names {
		params := paramsFor(name)
		frame, err := reader.Read(ctx, path, name, params)
		if err != nil {
			zap.S().Warnw("sheet read failed, using diagnostic table", "file", filepath.Base(path), "sheet", name, "err", err)
			frame = NewErrorFrame(err)
		}
		sheets = append(sheets, LoadedSheet{Name: name, Frame: frame, Params: params, Err: err})
	}
	return sheets, nil
}

package ingest

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// Format identifies an accepted upload format.
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatText Format = "txt"
)

// MaxUploadBytes bounds how much of an upload is read.
const MaxUploadBytes = 10 << 20

var (
	errLegacyExcel = &ValidationError{Msg: "legacy .xls workbooks are not supported; save the file as .xlsx or .csv"}
	errUnsupported = &ValidationError{Msg: "invalid file type: please upload an Excel file (.xlsx) or a CSV file"}
)

// DetectFormat picks the parser for a file based on its extension.
func DetectFormat(filename string) (Format, error) {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".csv":
		return FormatCSV, nil
	case ".tsv":
		return FormatTSV, nil
	case ".txt":
		return FormatText, nil
	case ".xls":
		return "", errLegacyExcel
	}
	return "", errUnsupported
}

// ReadRows parses the first sheet (or the delimited table) of an upload into rows
// keyed by the header row. Blank rows and headerless columns are dropped.
func ReadRows(filename string, r io.Reader) ([]Row, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxUploadBytes {
		return nil, &ValidationError{Msg: "file is too large (max 10 MB)"}
	}

	var table [][]string
	switch format {
	case FormatXLSX:
		table, err = readWorkbook(data)
	case FormatCSV:
		table, err = readDelimited(data, ',')
	case FormatTSV:
		table, err = readDelimited(data, '\t')
	case FormatText:
		table, err = readDelimited(data, sniffDelimiter(data))
	}
	if err != nil {
		return nil, err
	}

	rows := tableToRows(table)
	if len(rows) == 0 {
		return nil, ErrNoData
	}
	return rows, nil
}

func readWorkbook(data []byte) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, &ValidationError{Msg: "could not open workbook: " + err.Error()}
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, ErrNoData
	}
	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheets[0], err)
	}
	return rows, nil
}

func readDelimited(data []byte, delim rune) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))

	cr := csv.NewReader(bytes.NewReader(data))
	cr.Comma = delim
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var table [][]string
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ValidationError{Msg: "could not parse delimited file: " + err.Error()}
		}
		table = append(table, rec)
	}
	return table, nil
}

// sniffDelimiter chooses tab when the first line contains one, comma otherwise.
func sniffDelimiter(data []byte) rune {
	line, _ := bufio.NewReader(bytes.NewReader(data)).ReadString('\n')
	if strings.Contains(line, "\t") {
		return '\t'
	}
	return ','
}

func tableToRows(table [][]string) []Row {
	if len(table) < 2 {
		return nil
	}
	header := table[0]

	rows := make([]Row, 0, len(table)-1)
	for _, cells := range table[1:] {
		row := make(Row, len(header))
		blank := true
		for i, h := range header {
			h = strings.TrimSpace(h)
			if h == "" || i >= len(cells) {
				continue
			}
			if strings.TrimSpace(cells[i]) != "" {
				blank = false
			}
			row[h] = cells[i]
		}
		if !blank {
			rows = append(rows, row)
		}
	}
	return rows
}

// Package export flattens answers into a single table and renders it as
// CSV or JSON. Every answer becomes one row; the columns are the union
// of word-set parameters and extracted field names across the whole
// answer set, plus fixed bookkeeping columns.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"

	"surveyor/internal/logging"
	"surveyor/internal/question"
)

const (
	colQuestion       = "question"
	colError          = "error"
	colParsingSuccess = "parsing_success"
	colRetriesUsed    = "retries_used"
)

// Table is the flat, column-ordered form of a set of answers.
type Table struct {
	Columns []string
	Rows    []map[string]any
}

// BuildTable flattens answers into rows. Column order is word-set
// parameters (sorted), the rendered question, extracted fields (sorted),
// then error and parsing bookkeeping. Parameters and bookkeeping win
// name collisions against extracted fields.
func BuildTable(answers []question.Answer) *Table {
	paramSet := make(map[string]bool)
	fieldSet := make(map[string]bool)
	for _, a := range answers {
		for name := range a.WordSet {
			paramSet[name] = true
		}
		for name := range a.Fields {
			fieldSet[name] = true
		}
	}

	params := sortedKeys(paramSet)
	reserved := map[string]bool{
		colQuestion:       true,
		colError:          true,
		colParsingSuccess: true,
		colRetriesUsed:    true,
	}
	for _, p := range params {
		reserved[p] = true
	}
	fields := make([]string, 0, len(fieldSet))
	for _, name := range sortedKeys(fieldSet) {
		if !reserved[name] {
			fields = append(fields, name)
		}
	}

	columns := make([]string, 0, len(params)+len(fields)+4)
	columns = append(columns, params...)
	columns = append(columns, colQuestion)
	columns = append(columns, fields...)
	columns = append(columns, colError, colParsingSuccess, colRetriesUsed)

	rows := make([]map[string]any, 0, len(answers))
	for _, a := range answers {
		row := make(map[string]any, len(columns))
		for _, name := range fields {
			row[name] = a.Fields[name]
		}
		for _, p := range params {
			row[p] = a.WordSet[p]
		}
		row[colQuestion] = a.QuestionValue
		row[colError] = a.Error
		row[colParsingSuccess] = a.Response.ParsingSuccess
		row[colRetriesUsed] = a.Response.RetriesUsed
		rows = append(rows, row)
	}
	return &Table{Columns: columns, Rows: rows}
}

// Write renders the table in the named format.
func Write(w io.Writer, t *Table, format string) error {
	switch format {
	case "csv":
		return WriteCSV(w, t)
	case "json":
		return WriteJSON(w, t)
	default:
		return fmt.Errorf("unknown export format %q (want csv or json)", format)
	}
}

// WriteCSV renders the table with a header row. Non-scalar cells are
// JSON-encoded so list and object fields survive the flat format.
func WriteCSV(w io.Writer, t *Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	cells := make([]string, len(t.Columns))
	for _, row := range t.Rows {
		for i, col := range t.Columns {
			cell, err := cellString(row[col])
			if err != nil {
				return err
			}
			cells[i] = cell
		}
		if err := cw.Write(cells); err != nil {
			return fmt.Errorf("writing csv row: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flushing csv: %w", err)
	}
	logging.Export("wrote csv table: %d rows, %d columns", len(t.Rows), len(t.Columns))
	return nil
}

// WriteJSON renders the table as an indented array of row objects.
func WriteJSON(w io.Writer, t *Table) error {
	rows := t.Rows
	if rows == nil {
		rows = []map[string]any{}
	}
	data, err := json.MarshalIndent(rows, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding json table: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing json table: %w", err)
	}
	logging.Export("wrote json table: %d rows", len(rows))
	return nil
}

func cellString(v any) (string, error) {
	switch val := v.(type) {
	case nil:
		return "", nil
	case string:
		return val, nil
	case bool:
		return strconv.FormatBool(val), nil
	case int:
		return strconv.Itoa(val), nil
	case int64:
		return strconv.FormatInt(val, 10), nil
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64), nil
	default:
		data, err := json.Marshal(val)
		if err != nil {
			return "", fmt.Errorf("encoding cell value: %w", err)
		}
		return string(data), nil
	}
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

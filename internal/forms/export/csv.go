// Package export flattens a form entry, including duplicated row
// groups and global fields, into ordered CSV columns and serializes
// them to text.
package export

import (
	"encoding/csv"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/fieldforms/fieldforms-go/internal/forms/entry"
	"github.com/fieldforms/fieldforms-go/internal/forms/schema"
)

// Column is one flattened CSV column: a header and the values
// accumulated from each row in its lineage. A single-celled column is
// broadcast across every data line on serialization.
type Column struct {
	Name  string
	Cells []string
}

// Columns flattens the entry into export columns. Screen rows are
// grouped by lineage in design-time order (the index of the earliest
// row in each group), one column per field slot, one cell per row in
// the group. Global field columns follow all screen columns with
// exactly one cell each. Non-exportable fields are skipped.
func Columns(e *entry.FormEntry) []Column {
	var columns []Column
	for _, screen := range e.Config.Screens {
		for _, group := range lineageGroups(screen) {
			columns = append(columns, groupColumns(e, group)...)
		}
	}
	for _, gf := range e.Config.GlobalFields {
		if !gf.IsExportable() {
			continue
		}
		columns = append(columns, Column{
			Name:  gf.Label,
			Cells: []string{formatCell(gf.Type, e.ValueFor(gf.EntryKey))},
		})
	}
	return columns
}

// Render serializes the entry to CSV text: a header line plus maxRows
// data lines, RFC 4180 quoted, newline-terminated.
func Render(e *entry.FormEntry) (string, error) {
	columns := Columns(e)

	maxRows := 0
	for _, col := range columns {
		if len(col.Cells) > maxRows {
			maxRows = len(col.Cells)
		}
	}

	header := make([]string, len(columns))
	for i, col := range columns {
		header[i] = col.Name
	}

	var sb strings.Builder
	w := csv.NewWriter(&sb)
	if err := w.Write(header); err != nil {
		return "", fmt.Errorf("failed to write CSV header: %w", err)
	}
	for i := 0; i < maxRows; i++ {
		record := make([]string, len(columns))
		for j, col := range columns {
			record[j] = cellAt(col, i)
		}
		if err := w.Write(record); err != nil {
			return "", fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("failed to flush CSV: %w", err)
	}
	return sb.String(), nil
}

// cellAt picks the value for data line i. A single-celled column
// repeats its one value on every line; a stacked column yields its
// value at i or empty past its length.
func cellAt(col Column, i int) string {
	if len(col.Cells) == 1 {
		return col.Cells[0]
	}
	if i < len(col.Cells) {
		return col.Cells[i]
	}
	return ""
}

// lineageGroups partitions the screen's rows by origin, preserving
// both the design-time group order and the append order of copies
// within each group.
func lineageGroups(screen *schema.Screen) [][]*schema.Row {
	var groups [][]*schema.Row
	index := make(map[string]int)
	for _, row := range screen.Rows {
		origin := row.OriginID()
		if at, ok := index[origin]; ok {
			groups[at] = append(groups[at], row)
			continue
		}
		index[origin] = len(groups)
		groups = append(groups, []*schema.Row{row})
	}
	return groups
}

// groupColumns builds one column per field slot of a lineage group.
// Every row in a duplicate group has structurally identical fields, so
// the first row fixes the slot count and each column header comes from
// its field label.
func groupColumns(e *entry.FormEntry, group []*schema.Row) []Column {
	first := group[0]
	var columns []Column
	for slot, field := range first.Fields {
		if !field.IsExportable() {
			continue
		}
		col := Column{Name: field.Label, Cells: make([]string, 0, len(group))}
		for _, row := range group {
			f := row.FieldAt(slot)
			if f == nil {
				col.Cells = append(col.Cells, "")
				continue
			}
			col.Cells = append(col.Cells, formatCell(f.Type, e.ValueFor(f.EntryKey)))
		}
		columns = append(columns, col)
	}
	return columns
}

// formatCell renders one entry value by field type. Undefined values
// render as the empty string.
func formatCell(t schema.FieldType, v *entry.FieldEntryValue) string {
	if v == nil || v.Value == nil {
		return ""
	}
	switch t {
	case schema.FieldTypeCheckbox:
		if b, ok := v.Value.(bool); ok {
			return strconv.FormatBool(b)
		}
		return fmt.Sprint(v.Value)
	case schema.FieldTypeNumeric:
		return formatNumber(v.Value)
	case schema.FieldTypeWholeNumber:
		return formatWholeNumber(v.Value)
	case schema.FieldTypeTimer, schema.FieldTypeBGTimer:
		return entry.FormatTotalSeconds(entry.TimerSeconds(v.Value))
	default:
		return fmt.Sprint(v.Value)
	}
}

func formatNumber(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.FormatFloat(n, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(n), 'f', -1, 32)
	case int:
		return strconv.Itoa(n)
	default:
		return fmt.Sprint(v)
	}
}

func formatWholeNumber(v any) string {
	switch n := v.(type) {
	case float64:
		return strconv.Itoa(int(math.Round(n)))
	case float32:
		return strconv.Itoa(int(math.Round(float64(n))))
	case int:
		return strconv.Itoa(n)
	case string:
		if f, err := strconv.ParseFloat(n, 64); err == nil {
			return strconv.Itoa(int(math.Round(f)))
		}
		return n
	default:
		return fmt.Sprint(v)
	}
}

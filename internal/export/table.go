package export

import (
	"fmt"
	"io"

	"adlib/internal/adlib"

	"github.com/jedib0t/go-pretty/v6/table"
)

const maxCellWidth = 60

// Table renders all records as one terminal table on Close.
type Table struct {
	t      table.Writer
	fields []string
}

func NewTable(w io.Writer, fields []string) *Table {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"#"}
	configs := make([]table.ColumnConfig, 0, len(fields))
	for i, f := range fields {
		header = append(header, f)
		configs = append(configs, table.ColumnConfig{Number: i + 2, WidthMax: maxCellWidth})
	}
	t.AppendHeader(header)
	t.SetColumnConfigs(configs)

	return &Table{t: t, fields: fields}
}

func (t *Table) WriteBatch(batch adlib.Batch) error {
	for _, r := range batch {
		row := table.Row{t.t.Length() + 1}
		for _, f := range t.fields {
			row = append(row, Value(r, f))
		}
		t.t.AppendRow(row)
	}
	return nil
}

func (t *Table) Close() error {
	t.t.AppendFooter(table.Row{"", fmt.Sprintf("%d records", t.t.Length())})
	t.t.Render()
	return nil
}

package main

import (
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// tableView is a rounded go-pretty table. Columns listed in right are
// right-aligned; an empty footer is omitted.
type tableView struct {
	header []string
	rows   [][]string
	footer []string
	right  []int
}

func (v tableView) String() string {
	width := len(v.header)
	if width == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.Style().Format.Footer = text.FormatDefault
	tw.AppendHeader(padRow(v.header, width))
	for _, row := range v.rows {
		tw.AppendRow(padRow(row, width))
	}
	if len(v.footer) > 0 {
		tw.AppendFooter(padRow(v.footer, width))
	}

	configs := make([]table.ColumnConfig, 0, len(v.right))
	for _, col := range v.right {
		if col < 0 || col >= width {
			continue
		}
		configs = append(configs, table.ColumnConfig{
			Number:      col + 1,
			Align:       text.AlignRight,
			AlignFooter: text.AlignRight,
			AlignHeader: text.AlignLeft,
		})
	}
	tw.SetColumnConfigs(configs)
	return tw.Render()
}

func padRow(cells []string, width int) table.Row {
	row := make(table.Row, width)
	for i := range row {
		if i < len(cells) {
			row[i] = cells[i]
		} else {
			row[i] = ""
		}
	}
	return row
}

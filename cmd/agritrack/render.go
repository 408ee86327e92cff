package main

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"github.com/ghuser/agritrack/services/batch/application/dto"
)

type columnAlignment int

const (
	alignLeft columnAlignment = iota
	alignRight
)

func renderTable(headers []string, rows [][]string, aligns []columnAlignment) string {
	columns := len(headers)
	if columns == 0 {
		return ""
	}

	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)

	header := make(table.Row, columns)
	for i := range columns {
		header[i] = headers[i]
	}
	tw.AppendHeader(header)

	for _, row := range rows {
		r := make(table.Row, columns)
		for i := range columns {
			if i < len(row) {
				r[i] = row[i]
			} else {
				r[i] = ""
			}
		}
		tw.AppendRow(r)
	}

	configs := make([]table.ColumnConfig, 0, columns)
	for i := range columns {
		align := text.AlignLeft
		if i < len(aligns) && aligns[i] == alignRight {
			align = text.AlignRight
		}
		configs = append(configs, table.ColumnConfig{Number: i + 1, Align: align, AlignHeader: text.AlignLeft})
	}
	tw.SetColumnConfigs(configs)

	return tw.Render()
}

// renderView prints the batch summary followed by one row per stage.
func renderView(v dto.BatchView) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Batch     %s\n", v.ID)
	fmt.Fprintf(&b, "Payload   %s\n", v.Payload)
	fmt.Fprintf(&b, "Product   %s, %s %s\n", v.Product.Type, v.Product.Quantity.String(), v.Product.Unit)
	fmt.Fprintf(&b, "Producer  %s\n", joinNonEmpty(v.Producer.Name, v.Producer.Location))
	fmt.Fprintf(&b, "State     %s\n", v.CurrentState)
	fmt.Fprintf(&b, "Verified  %s\n", verifiedLabel(v.Verification))
	if v.VerifyURL != "" {
		fmt.Fprintf(&b, "Verify    %s\n", v.VerifyURL)
	}

	rows := make([][]string, 0, len(v.Stages))
	for _, s := range v.Stages {
		rows = append(rows, []string{
			fmt.Sprintf("%d", s.Seq),
			s.Role,
			s.Actor,
			s.OccurredAt.UTC().Format(time.RFC3339),
			s.Location,
			summarizeDetails(s.Details),
		})
	}
	b.WriteString(renderTable(
		[]string{"#", "Role", "Actor", "When", "Where", "Details"},
		rows,
		[]columnAlignment{alignRight},
	))
	return b.String()
}

func renderBatchList(views []dto.BatchView) string {
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		rows = append(rows, []string{
			v.ID,
			v.Product.Type,
			v.Product.Quantity.String() + " " + v.Product.Unit,
			v.CurrentState,
			fmt.Sprintf("%d", len(v.Stages)),
			v.CreatedAt.UTC().Format(time.DateOnly),
		})
	}
	return renderTable(
		[]string{"ID", "Product", "Quantity", "State", "Stages", "Created"},
		rows,
		[]columnAlignment{alignLeft, alignLeft, alignRight, alignLeft, alignRight},
	)
}

// summarizeDetails flattens role details into sorted key=value pairs.
func summarizeDetails(raw json.RawMessage) string {
	var fields map[string]any
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil {
		return ""
	}
	keys := make([]string, 0, len(fields))
	for k, v := range fields {
		if v == nil || v == "" || v == false {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%v", k, fields[k]))
	}
	return strings.Join(parts, " ")
}

func verifiedLabel(v dto.Verification) string {
	if !v.Verified {
		return "NO"
	}
	return "yes " + v.Token
}

func joinNonEmpty(parts ...string) string {
	out := parts[:0:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, ", ")
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

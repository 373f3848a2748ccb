package helpers

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"

	"github.com/spektr-org/ecomdash/engine"
	"github.com/spektr-org/ecomdash/rfm"
	"github.com/spektr-org/ecomdash/schema"
)

// WriteRFMTable prints customers as a terminal table.
func WriteRFMTable(w io.Writer, customers []rfm.Customer) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Customer", "Recency", "Frequency", "Monetary", "R", "F", "M", "Score", "Segment"})
	table.SetAutoFormatHeaders(false)
	table.SetColumnAlignment([]int{
		tablewriter.ALIGN_LEFT,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_RIGHT,
		tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER, tablewriter.ALIGN_CENTER,
		tablewriter.ALIGN_RIGHT, tablewriter.ALIGN_LEFT,
	})
	for _, c := range customers {
		table.Append([]string{
			c.CustomerID,
			fmt.Sprintf("%d", c.Recency),
			fmt.Sprintf("%d", c.Frequency),
			c.Monetary.StringFixed(2),
			fmt.Sprintf("%d", c.RScore),
			fmt.Sprintf("%d", c.FScore),
			fmt.Sprintf("%d", c.MScore),
			fmt.Sprintf("%d", c.Score),
			c.Segment,
		})
	}
	table.Render()
}

// WriteSegmentTable prints the per-segment summary.
func WriteSegmentTable(w io.Writer, summary []rfm.SegmentSummary) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Segment", "Customers", "Share %", "Monetary", "Avg Recency"})
	table.SetAutoFormatHeaders(false)
	for _, s := range summary {
		table.Append([]string{
			s.Segment,
			engine.FormatInt(s.Customers),
			fmt.Sprintf("%.2f", s.Share),
			s.Monetary.StringFixed(2),
			fmt.Sprintf("%.1f", s.AvgRecency),
		})
	}
	table.Render()
}

// WriteResultTable prints a chart or table result as a terminal table.
// Text results print their reply.
func WriteResultTable(w io.Writer, result *engine.Result) {
	if result == nil {
		fmt.Fprintln(w, "No result.")
		return
	}

	switch {
	case result.ChartConfig != nil && len(result.ChartConfig.Series) > 0:
		chart := result.ChartConfig
		header := []string{chart.XAxis}
		for _, s := range chart.Series {
			header = append(header, s.Name)
		}
		table := tablewriter.NewWriter(w)
		table.SetHeader(header)
		table.SetAutoFormatHeaders(false)
		for i, d := range chart.Series[0].Data {
			row := []string{d.Label}
			for _, s := range chart.Series {
				if i < len(s.Data) {
					row = append(row, fmtNum(s.Data[i].Value))
				} else {
					row = append(row, "")
				}
			}
			table.Append(row)
		}
		table.Render()

	case result.TableData != nil && len(result.TableData.Columns) > 0:
		header := make([]string, len(result.TableData.Columns))
		for i, c := range result.TableData.Columns {
			header[i] = c.Label
		}
		table := tablewriter.NewWriter(w)
		table.SetHeader(header)
		table.SetAutoFormatHeaders(false)
		table.AppendBulk(result.TableData.Rows)
		table.Render()

	default:
		if result.TextData != nil && result.TextData.Value != "" {
			fmt.Fprintf(w, "%s  (%s)\n", result.TextData.Value, result.TextData.Period)
		}
		if result.Reply != "" {
			fmt.Fprintln(w, result.Reply)
		}
	}
}

// WriteSchemaTable prints one row per discovered column.
func WriteSchemaTable(w io.Writer, cfg *schema.Config) {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Column", "Role", "Detail", "Samples / Range"})
	table.SetAutoFormatHeaders(false)
	table.SetAutoWrapText(false)

	for _, d := range cfg.Dimensions {
		detail := d.CardinalityHint + " cardinality"
		if d.IsTemporal {
			detail = "temporal " + d.TemporalFormat
		}
		if d.Parent != "" {
			detail += ", parent " + d.Parent
		}
		table.Append([]string{d.Key, "dimension", detail, sampleList(d.SampleValues, 3)})
	}
	for _, m := range cfg.Measures {
		if m.IsSynthetic {
			table.Append([]string{m.Key, "measure", "synthetic", ""})
			continue
		}
		table.Append([]string{m.Key, "measure", m.Unit,
			fmt.Sprintf("%s .. %s (mean %s)", fmtNum(m.Min), fmtNum(m.Max), fmtNum(m.Mean))})
	}
	for _, s := range cfg.SkippedColumns {
		table.Append([]string{s.Column, "skipped", s.Reason, ""})
	}
	table.Render()
}

func sampleList(vals []string, n int) string {
	if len(vals) > n {
		return strings.Join(vals[:n], ", ") + ", ..."
	}
	return strings.Join(vals, ", ")
}

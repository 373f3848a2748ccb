// Package helpers writes dashboard results and RFM reports to CSV, XLSX
// and terminal tables.
package helpers

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/spektr-org/ecomdash/engine"
	"github.com/spektr-org/ecomdash/rfm"
)

// ============================================================================
// CSV EXPORT: engine results and the RFM report as spreadsheet-ready CSV
// ============================================================================

// WriteResultCSV writes a panel result as CSV.
//
//	chart → label column + one column per series
//	table → column labels + rows
//	text  → a single Summary/Value/Unit row
func WriteResultCSV(w io.Writer, result *engine.Result) error {
	cw := csv.NewWriter(w)

	switch {
	case result == nil:
		_ = cw.Write([]string{"Result", "No data"})
	case result.ChartConfig != nil && len(result.ChartConfig.Series) > 0:
		writeChartCSV(cw, result.ChartConfig)
	case result.TableData != nil && len(result.TableData.Columns) > 0:
		writeTableCSV(cw, result.TableData)
	default:
		_ = cw.Write([]string{"Summary", "Value", "Unit"})
		reply := result.Reply
		if reply == "" {
			reply = "No data"
		}
		value := ""
		if result.TextData != nil {
			value = result.TextData.Value
		}
		_ = cw.Write([]string{reply, value, result.DisplayUnit})
	}

	cw.Flush()
	return cw.Error()
}

func writeChartCSV(cw *csv.Writer, chart *engine.ChartConfig) {
	xLabel, yLabel := chart.XAxis, chart.YAxis
	if xLabel == "" {
		xLabel = "Label"
	}
	if yLabel == "" {
		yLabel = "Value"
	}

	// Histograms and scatters keep their numeric x alongside the label.
	withX := chart.ChartType == "histogram" || chart.ChartType == "scatter"

	headers := []string{xLabel}
	if withX {
		headers = append(headers, "x")
	}
	if len(chart.Series) == 1 {
		headers = append(headers, yLabel)
	} else {
		for _, s := range chart.Series {
			headers = append(headers, s.Name)
		}
	}
	_ = cw.Write(headers)

	for i, d := range chart.Series[0].Data {
		row := []string{d.Label}
		if withX {
			row = append(row, fmtNum(d.X))
		}
		for _, s := range chart.Series {
			if i < len(s.Data) {
				row = append(row, fmtNum(s.Data[i].Value))
			} else {
				row = append(row, "")
			}
		}
		_ = cw.Write(row)
	}
}

func writeTableCSV(cw *csv.Writer, table *engine.TableData) {
	headers := make([]string, len(table.Columns))
	for i, c := range table.Columns {
		headers[i] = c.Label
	}
	_ = cw.Write(headers)
	for _, row := range table.Rows {
		_ = cw.Write(row)
	}
}

// RFMHeaders are the column names of every tabular RFM export.
var RFMHeaders = []string{
	"customer_id", "recency", "frequency", "monetary",
	"r_score", "f_score", "m_score", "rfm_score", "segment", "last_purchase",
}

// RFMRecord formats one customer in RFMHeaders order.
func RFMRecord(c rfm.Customer) []string {
	return []string{
		c.CustomerID,
		strconv.Itoa(c.Recency),
		strconv.Itoa(c.Frequency),
		c.Monetary.StringFixed(2),
		strconv.Itoa(c.RScore),
		strconv.Itoa(c.FScore),
		strconv.Itoa(c.MScore),
		strconv.Itoa(c.Score),
		c.Segment,
		c.LastPurchase.Format(time.DateTime),
	}
}

// WriteRFMCSV writes customers as CSV with a header row.
func WriteRFMCSV(w io.Writer, customers []rfm.Customer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(RFMHeaders); err != nil {
		return fmt.Errorf("write rfm header: %w", err)
	}
	for _, c := range customers {
		if err := cw.Write(RFMRecord(c)); err != nil {
			return fmt.Errorf("write rfm row %s: %w", c.CustomerID, err)
		}
	}
	cw.Flush()
	return cw.Error()
}

// fmtNum prints whole numbers without decimals and everything else with two.
func fmtNum(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 2, 64)
}

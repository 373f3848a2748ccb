package helpers

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/spektr-org/ecomdash/rfm"
)

// Sheet names in the RFM workbook.
const (
	SheetRFM      = "RFM"
	SheetSegments = "Segments"
)

// WriteRFMXLSX writes the report as a workbook with the customer table on
// the RFM sheet and the per-segment summary on the Segments sheet.
func WriteRFMXLSX(w io.Writer, report *rfm.Report, customers []rfm.Customer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetRFM); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(SheetSegments); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#E0E7FF"}},
	})
	if err != nil {
		return fmt.Errorf("header style: %w", err)
	}

	// RFM sheet
	if err := writeRow(f, SheetRFM, 1, toCells(RFMHeaders)); err != nil {
		return err
	}
	for i, c := range customers {
		row := []interface{}{
			c.CustomerID,
			c.Recency,
			c.Frequency,
			c.Monetary.InexactFloat64(),
			c.RScore,
			c.FScore,
			c.MScore,
			c.Score,
			c.Segment,
			c.LastPurchase,
		}
		if err := writeRow(f, SheetRFM, i+2, row); err != nil {
			return err
		}
	}
	if err := styleHeader(f, SheetRFM, len(RFMHeaders), header); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetRFM, "A", "A", 36); err != nil {
		return err
	}
	if err := f.SetColWidth(SheetRFM, "J", "J", 20); err != nil {
		return err
	}

	// Segments sheet
	segHeaders := []string{"segment", "customers", "share_percent", "monetary", "avg_recency"}
	if err := writeRow(f, SheetSegments, 1, toCells(segHeaders)); err != nil {
		return err
	}
	for i, s := range rfm.Summary(report) {
		row := []interface{}{s.Segment, s.Customers, s.Share, s.Monetary.InexactFloat64(), s.AvgRecency}
		if err := writeRow(f, SheetSegments, i+2, row); err != nil {
			return err
		}
	}
	if err := styleHeader(f, SheetSegments, len(segHeaders), header); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("%s row %d: %w", sheet, row, err)
	}
	return nil
}

func styleHeader(f *excelize.File, sheet string, cols, style int) error {
	last, err := excelize.CoordinatesToCellName(cols, 1)
	if err != nil {
		return err
	}
	return f.SetCellStyle(sheet, "A1", last, style)
}

func toCells(ss []string) []interface{} {
	out := make([]interface{}, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}

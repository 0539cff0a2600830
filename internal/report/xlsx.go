// Package report writes the cost allocation as a spreadsheet.
package report

import (
	"fmt"
	"io"

	"github.com/lherron/homeplan/internal/pricing"
	"github.com/xuri/excelize/v2"
)

const (
	StoresSheet = "Stores"
	LinesSheet  = "Lines"
)

var (
	storeHeadings = []any{"Store", "Has record", "Anchor", "Subtotal", "Store discount", "Shipping", "Warranty", "Tax", "Total"}
	lineHeadings  = []any{"Store", "Title", "Item", "Option", "Qty", "Unit", "Discount", "Own costs", "Net", "Anchor"}
)

// Workbook builds a two-sheet workbook: one row per store and one row per
// line. The grand total is the last row of the stores sheet.
func Workbook(a *pricing.Allocation) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", StoresSheet); err != nil {
		f.Close()
		return nil, err
	}
	if _, err := f.NewSheet(LinesSheet); err != nil {
		f.Close()
		return nil, err
	}

	stores := [][]any{storeHeadings}
	lines := [][]any{lineHeadings}
	for _, st := range a.Stores {
		stores = append(stores, []any{
			st.Name, st.Known, st.Anchor,
			st.Subtotal.InexactFloat64(), st.StoreDiscount.InexactFloat64(),
			st.Shipping.InexactFloat64(), st.Warranty.InexactFloat64(), st.Tax.InexactFloat64(),
			st.Total.InexactFloat64(),
		})
		for _, l := range st.Lines {
			lines = append(lines, lineRow(st.Name, l))
		}
	}
	for _, l := range a.Unassigned {
		lines = append(lines, lineRow("", l))
	}
	stores = append(stores, []any{"TOTAL", nil, nil, nil, nil, nil, nil, nil, a.Total.InexactFloat64()})

	if err := writeRows(f, StoresSheet, stores); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRows(f, LinesSheet, lines); err != nil {
		f.Close()
		return nil, err
	}
	return f, nil
}

func lineRow(store string, l pricing.Line) []any {
	return []any{
		store, l.Title, l.ItemID, l.OptionID, l.Qty,
		l.Unit.InexactFloat64(), l.Discount.InexactFloat64(), l.Own.InexactFloat64(), l.Net.InexactFloat64(),
		l.Anchor,
	}
}

func writeRows(f *excelize.File, sheet string, rows [][]any) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}
	return f.SetColWidth(sheet, "A", "B", 24)
}

// WriteAllocation writes the allocation workbook to w.
func WriteAllocation(w io.Writer, a *pricing.Allocation) error {
	f, err := Workbook(a)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

// SaveAllocation writes the allocation workbook to path.
func SaveAllocation(path string, a *pricing.Allocation) error {
	f, err := Workbook(a)
	if err != nil {
		return err
	}
	defer f.Close()
	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save %s: %w", path, err)
	}
	return nil
}

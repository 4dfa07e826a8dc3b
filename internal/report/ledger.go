// Package report renders the transaction ledger as a spreadsheet.
package report

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"hosiery/backend/internal/domain"
)

const (
	ledgerSheet     = "Ledger"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var ledgerHeaders = []string{
	"Date", "Transaction ID", "Sale ID", "Type", "Batch ID", "Barcode",
	"Item Type", "Color", "Size", "Quantity", "Rate", "Total",
	"Discount", "Net Total", "Profit", "Remark",
}

// WriteLedger writes one row per transaction view, in the given order.
func WriteLedger(w io.Writer, views []domain.TransactionView) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", ledgerSheet); err != nil {
		return err
	}

	header := make([]any, len(ledgerHeaders))
	for i, h := range ledgerHeaders {
		header[i] = h
	}
	if err := f.SetSheetRow(ledgerSheet, "A1", &header); err != nil {
		return err
	}
	if style, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}}); err == nil {
		last, _ := excelize.CoordinatesToCellName(len(ledgerHeaders), 1)
		_ = f.SetCellStyle(ledgerSheet, "A1", last, style)
	}

	for i, v := range views {
		var profit any
		if v.Profit != nil {
			profit = v.Profit.Float64()
		}
		row := []any{
			v.Date.Format("2006-01-02 15:04:05"),
			v.ID,
			v.SaleID,
			string(v.Type),
			v.InventoryID,
			v.Barcode,
			v.Item.Type,
			v.Item.Color,
			v.Item.Size,
			v.Quantity,
			v.Rate.Float64(),
			v.Total.Float64(),
			v.Discount.Float64(),
			v.NetTotal.Float64(),
			profit,
			v.Remark,
		}
		cell := fmt.Sprintf("A%d", i+2)
		if err := f.SetSheetRow(ledgerSheet, cell, &row); err != nil {
			return err
		}
	}

	_ = f.SetPanes(ledgerSheet, &excelize.Panes{Freeze: true, YSplit: 1, TopLeftCell: "A2", ActivePane: "bottomLeft"})
	return f.Write(w)
}

package summary

import (
	"bufio"
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

const (
	csvFlushEvery = 200
	csvBufferSize = 32 * 1024
)

var moneyPrinter = message.NewPrinter(language.English)

type csvStreamer struct {
	buf          *bufio.Writer
	csv          *csv.Writer
	flushEvery   int
	pendingLines int
}

func newCSVStreamer(w io.Writer) *csvStreamer {
	buf := bufio.NewWriterSize(w, csvBufferSize)
	writer := csv.NewWriter(buf)
	writer.UseCRLF = true
	return &csvStreamer{buf: buf, csv: writer, flushEvery: csvFlushEvery}
}

func (s *csvStreamer) writeComment(line string) error {
	if s == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if !strings.HasSuffix(line, "\r\n") {
		line = strings.TrimSuffix(line, "\n")
		line += "\r\n"
	}
	if _, err := s.buf.WriteString(line); err != nil {
		return err
	}
	return nil
}

func (s *csvStreamer) writeRow(row []string) error {
	if s == nil || s.csv == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	if err := s.csv.Write(row); err != nil {
		return err
	}
	s.pendingLines++
	if s.flushEvery > 0 && s.pendingLines >= s.flushEvery {
		return s.Flush()
	}
	return nil
}

func (s *csvStreamer) Flush() error {
	if s == nil || s.csv == nil || s.buf == nil {
		return fmt.Errorf("csv streamer not initialised")
	}
	s.csv.Flush()
	if err := s.csv.Error(); err != nil {
		return err
	}
	if err := s.buf.Flush(); err != nil {
		return err
	}
	s.pendingLines = 0
	return nil
}

func (s *csvStreamer) Close() error {
	return s.Flush()
}

// WriteCSV renders the monthly summary as a CSV report. Amounts carry
// thousands separators so the file opens cleanly in spreadsheet tools.
func WriteCSV(w io.Writer, s *MonthlySummary, locked bool) error {
	streamer := newCSVStreamer(w)
	if err := streamer.writeComment(fmt.Sprintf("# Report: Monthly Summary %d-%02d", s.Period.Year, s.Period.Month)); err != nil {
		return err
	}
	lockState := "OPEN"
	if locked {
		lockState = "LOCKED"
	}
	if err := streamer.writeComment(fmt.Sprintf("# Period: %s | Generated: %s", lockState, s.GeneratedAt.UTC().Format(time.RFC3339))); err != nil {
		return err
	}
	if err := streamer.writeRow([]string{"Section", "Line", "Amount"}); err != nil {
		return err
	}
	rows := [][]string{
		{"Revenue", "Sub Total", formatMoney(s.Revenue.SubTotal)},
		{"Revenue", "VAT", formatMoney(s.Revenue.VAT)},
		{"Revenue", "Grand Total", formatMoney(s.Revenue.GrandTotal)},
		{"Expenses", "Sub Total", formatMoney(s.Expenses.SubTotal)},
		{"Expenses", "VAT", formatMoney(s.Expenses.VAT)},
		{"Expenses", "Grand Total", formatMoney(s.Expenses.GrandTotal)},
		{"VAT", "Output", formatMoney(s.VAT.Output)},
		{"VAT", "Input", formatMoney(s.VAT.Input)},
		{"VAT", "Payable", formatMoney(s.VAT.Payable)},
		{"Withholding", "Base Amount", formatMoney(s.WHT.BaseAmount)},
		{"Withholding", "Tax Amount", formatMoney(s.WHT.TaxAmount)},
		{"Withholding", "Certificates", strconv.Itoa(s.WHT.Count)},
		{"P&L", "Revenue", formatMoney(s.PnL.Revenue)},
		{"P&L", "COGS", formatMoney(s.PnL.COGS)},
		{"P&L", "Gross Profit", formatMoney(s.PnL.GrossProfit)},
		{"P&L", "Opex", formatMoney(s.PnL.Opex)},
		{"P&L", "Operating Profit", formatMoney(s.PnL.OperatingProfit)},
	}
	for _, row := range rows {
		if err := streamer.writeRow(row); err != nil {
			return err
		}
	}
	if err := streamer.writeRow([]string{"", "", ""}); err != nil {
		return err
	}
	streamRows := [][]string{
		{"Goods", "Revenue", formatMoney(s.PnLByStream.Goods.Revenue)},
		{"Goods", "COGS", formatMoney(s.PnLByStream.Goods.COGS)},
		{"Goods", "Direct Opex", formatMoney(s.PnLByStream.Goods.DirectOpex)},
		{"Goods", "Allocated Shared Opex", formatMoney(s.PnLByStream.Goods.AllocatedSharedOpex)},
		{"Goods", "Net Operating Profit", formatMoney(s.PnLByStream.Goods.NetOperatingProfit)},
		{"Service", "Revenue", formatMoney(s.PnLByStream.Service.Revenue)},
		{"Service", "Direct Cost", formatMoney(s.PnLByStream.Service.DirectCost)},
		{"Service", "Allocated Shared Opex", formatMoney(s.PnLByStream.Service.AllocatedSharedOpex)},
		{"Service", "Net Operating Profit", formatMoney(s.PnLByStream.Service.NetOperatingProfit)},
		{"Shared", "Unallocated Opex", formatMoney(s.PnLByStream.SharedOpex)},
		{"Shared", "Allocation Method", s.PnLByStream.AllocationMethod},
	}
	for _, row := range streamRows {
		if err := streamer.writeRow(row); err != nil {
			return err
		}
	}
	return streamer.Close()
}

func formatMoney(v float64) string {
	return moneyPrinter.Sprintf("%.2f", v)
}

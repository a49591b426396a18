package export

import (
	"fmt"
	"io"
	"strings"

	"github.com/agenthands/taxgraph/internal/core/fraud"
	"github.com/agenthands/taxgraph/internal/core/reconcile"
	"github.com/agenthands/taxgraph/internal/core/risk"
	"github.com/xuri/excelize/v2"
)

const ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// Sheet names in workbook order.
const (
	SheetMismatches  = "Mismatches"
	SheetCircular    = "Circular"
	SheetShell       = "Shell"
	SheetReciprocal  = "Reciprocal"
	SheetRepeated    = "RepeatedInvoices"
	SheetLeaderboard = "Leaderboard"
)

// Input is everything the audit workbook shows.
type Input struct {
	Mismatches  []reconcile.Record
	Patterns    fraud.Report
	Leaderboard []risk.Result
}

type sheet struct {
	name    string
	headers []string
	rows    [][]any
}

// Workbook lays out one sheet per finding list. The caller closes the file.
func Workbook(in Input) (*excelize.File, error) {
	f := excelize.NewFile()
	sheets := []sheet{
		mismatchSheet(in.Mismatches),
		circularSheet(in.Patterns.Circular.Items),
		shellSheet(in.Patterns.Shell.Items),
		reciprocalSheet(in.Patterns.Reciprocal.Items),
		repeatedSheet(in.Patterns.Repeated.Items),
		leaderboardSheet(in.Leaderboard),
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, err
	}
	for i, s := range sheets {
		if i == 0 {
			if err := f.SetSheetName("Sheet1", s.name); err != nil {
				f.Close()
				return nil, err
			}
		} else if _, err := f.NewSheet(s.name); err != nil {
			f.Close()
			return nil, err
		}
		if err := writeSheet(f, s, bold); err != nil {
			f.Close()
			return nil, fmt.Errorf("sheet %s: %w", s.name, err)
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

// Write streams the workbook to w.
func Write(w io.Writer, in Input) error {
	f, err := Workbook(in)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Write(w)
}

func writeSheet(f *excelize.File, s sheet, headerStyle int) error {
	for c, h := range s.headers {
		cell, err := excelize.CoordinatesToCellName(c+1, 1)
		if err != nil {
			return err
		}
		if err := f.SetCellValue(s.name, cell, h); err != nil {
			return err
		}
	}
	last, err := excelize.CoordinatesToCellName(len(s.headers), 1)
	if err != nil {
		return err
	}
	if err := f.SetCellStyle(s.name, "A1", last, headerStyle); err != nil {
		return err
	}
	for r, row := range s.rows {
		start, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(s.name, start, &row); err != nil {
			return err
		}
	}
	return nil
}

func mismatchSheet(recs []reconcile.Record) sheet {
	s := sheet{
		name:    SheetMismatches,
		headers: []string{"Invoice", "Supplier", "Receiver", "Status", "Severity", "Outward Value", "Inward Value", "Value Difference", "Tax Difference", "ITC Overclaimed"},
	}
	for _, r := range recs {
		s.rows = append(s.rows, []any{r.InvoiceID, r.SupplierID, r.ReceiverID, string(r.Status), string(r.Severity),
			r.OutwardValue, r.InwardValue, r.ValueDifference, r.TaxDifference, r.CreditOverclaim})
	}
	return s
}

func circularSheet(items []fraud.CircularTrade) sheet {
	s := sheet{
		name:    SheetCircular,
		headers: []string{"Chain", "Length", "Circular Value", "Invoices", "Severity"},
	}
	for _, c := range items {
		s.rows = append(s.rows, []any{strings.Join(c.Chain, " -> "), c.ChainLength, c.CircularValue,
			strings.Join(c.InvoiceIDs, ", "), string(c.Severity)})
	}
	return s
}

func shellSheet(items []fraud.ShellCompany) sheet {
	s := sheet{
		name:    SheetShell,
		headers: []string{"GSTIN", "Name", "PageRank", "Total Volume", "Invoices", "Severity", "Reason"},
	}
	for _, c := range items {
		s.rows = append(s.rows, []any{c.EntityID, c.Name, c.Importance, c.TotalVolume, c.InvoiceCount,
			string(c.Severity), c.Reason})
	}
	return s
}

func reciprocalSheet(items []fraud.ReciprocalTrade) sheet {
	s := sheet{
		name:    SheetReciprocal,
		headers: []string{"Party A", "Party B", "A to B Value", "B to A Value", "Combined Value", "A to B Invoices", "B to A Invoices", "Severity"},
	}
	for _, p := range items {
		s.rows = append(s.rows, []any{p.PartyA, p.PartyB, p.AToBValue, p.BToAValue, p.CombinedValue,
			strings.Join(p.AToBInvoices, ", "), strings.Join(p.BToAInvoices, ", "), string(p.Severity)})
	}
	return s
}

func repeatedSheet(items []fraud.RepeatedInvoices) sheet {
	s := sheet{
		name:    SheetRepeated,
		headers: []string{"Supplier", "Receiver", "Repeated Count", "Repeated Amount", "Distinct Amounts", "Total Value", "Invoices", "Severity"},
	}
	for _, r := range items {
		s.rows = append(s.rows, []any{r.SupplierID, r.ReceiverID, r.RepeatedCount, r.RepeatedAmount,
			r.DistinctAmounts, r.TotalValue, strings.Join(r.InvoiceIDs, ", "), string(r.Severity)})
	}
	return s
}

func leaderboardSheet(results []risk.Result) sheet {
	s := sheet{
		name:    SheetLeaderboard,
		headers: []string{"Rank", "GSTIN", "Score", "Level", "Factors"},
	}
	for i, r := range results {
		s.rows = append(s.rows, []any{i + 1, r.EntityID, r.Score, string(r.Level), strings.Join(r.Factors, "; ")})
	}
	return s
}

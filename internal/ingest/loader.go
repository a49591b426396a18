package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/agenthands/taxgraph/internal/core/model"
	"github.com/go-playground/validator/v10"
	"github.com/sirupsen/logrus"
)

const (
	TaxpayersFile   = "taxpayers.csv"
	OutwardFile     = "gstr1_invoices.csv"
	InwardFile      = "gstr2b_invoices.csv"
	SummariesFile   = "gstr3b_summary.csv"
	FraudLabelsFile = "fraud_labels.csv"
)

// TableReport counts what happened to the rows of one file.
type TableReport struct {
	File       string `json:"file"`
	Found      bool   `json:"found"`
	Rows       int    `json:"rows"`
	Duplicates int    `json:"duplicates"`
	Invalid    int    `json:"invalid"`
	Kept       int    `json:"kept"`
}

type Report struct {
	Tables []TableReport `json:"tables"`
}

// Loader turns filing CSVs into a validated, deduplicated Dataset.
type Loader struct {
	validate *validator.Validate
	log      logrus.FieldLogger
}

func NewLoader(log logrus.FieldLogger) *Loader {
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Loader{validate: validator.New(), log: log.WithField("component", "ingest")}
}

// LoadDir reads the five filing files from dir. Missing files yield empty
// tables; a missing label file leaves Dataset.Labels nil.
func (l *Loader) LoadDir(ctx context.Context, dir string) (*model.Dataset, Report, error) {
	ds := &model.Dataset{}
	var report Report

	steps := []struct {
		file string
		read func(io.Reader) (TableReport, error)
	}{
		{TaxpayersFile, func(r io.Reader) (rep TableReport, err error) {
			ds.Entities, rep, err = l.ReadTaxpayers(r)
			return rep, err
		}},
		{OutwardFile, func(r io.Reader) (rep TableReport, err error) {
			ds.Outward, rep, err = l.ReadOutward(r)
			return rep, err
		}},
		{InwardFile, func(r io.Reader) (rep TableReport, err error) {
			ds.Inward, rep, err = l.ReadInward(r)
			return rep, err
		}},
		{SummariesFile, func(r io.Reader) (rep TableReport, err error) {
			ds.Summaries, rep, err = l.ReadSummaries(r)
			return rep, err
		}},
		{FraudLabelsFile, func(r io.Reader) (rep TableReport, err error) {
			ds.Labels, rep, err = l.ReadLabels(r)
			return rep, err
		}},
	}

	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, report, err
		}
		path := filepath.Join(dir, step.file)
		f, err := os.Open(path)
		if errors.Is(err, fs.ErrNotExist) {
			l.log.WithField("file", path).Debug("filing file not present")
			report.Tables = append(report.Tables, TableReport{File: step.file})
			continue
		}
		if err != nil {
			return nil, report, fmt.Errorf("open %s: %w", path, err)
		}
		rep, err := step.read(f)
		f.Close()
		if err != nil {
			return nil, report, fmt.Errorf("%s: %w", step.file, err)
		}
		rep.File = step.file
		rep.Found = true
		report.Tables = append(report.Tables, rep)
		l.log.WithFields(logrus.Fields{
			"file":       step.file,
			"rows":       rep.Rows,
			"duplicates": rep.Duplicates,
			"invalid":    rep.Invalid,
		}).Info("filing file loaded")
	}
	return ds, report, nil
}

// clean drops rows whose key was already seen, keeping the first, then rows
// failing struct validation.
func clean[T any](l *Loader, rows []T, key func(T) string, rep *TableReport) []T {
	rep.Rows = len(rows)
	seen := make(map[string]bool, len(rows))
	out := make([]T, 0, len(rows))
	for _, r := range rows {
		k := key(r)
		if seen[k] {
			rep.Duplicates++
			continue
		}
		seen[k] = true
		if err := l.validate.Struct(r); err != nil {
			rep.Invalid++
			l.log.WithError(err).WithField("key", k).Debug("row rejected")
			continue
		}
		out = append(out, r)
	}
	rep.Kept = len(out)
	if rep.Invalid > 0 {
		l.log.WithField("invalid", rep.Invalid).Warn("rows with invalid identifiers removed")
	}
	return out
}

func (l *Loader) ReadTaxpayers(r io.Reader) ([]model.Entity, TableReport, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, TableReport{}, err
	}
	t.alias("name", "legal_name")
	rows := make([]model.Entity, 0, len(t.rows))
	for _, row := range t.rows {
		e := model.Entity{
			ID:           t.get(row, "gstin"),
			Name:         t.get(row, "legal_name"),
			Status:       model.EntityStatus(t.get(row, "status")),
			TrustScore:   model.DefaultTrustScore,
			Jurisdiction: t.get(row, "state_code"),
		}
		if e.Name == "" {
			e.Name = "Unknown"
		}
		if e.Status == "" {
			e.Status = model.StatusActive
		}
		if v := t.get(row, "trust_score"); v != "" {
			e.TrustScore = min(money(v), 1)
		}
		rows = append(rows, e)
	}
	var rep TableReport
	out := clean(l, rows, func(e model.Entity) string { return e.ID }, &rep)
	return out, rep, nil
}

func (l *Loader) ReadOutward(r io.Reader) ([]model.OutwardInvoice, TableReport, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, TableReport{}, err
	}
	rows := make([]model.OutwardInvoice, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, model.OutwardInvoice{
			InvoiceID:  t.get(row, "invoice_id"),
			SupplierID: t.get(row, "supplier_gstin"),
			ReceiverID: t.get(row, "receiver_gstin"),
			Value:      money(t.get(row, "total_value")),
			TaxAmount:  money(t.get(row, "tax_amount")),
			Date:       date(t.get(row, "invoice_date")),
		})
	}
	var rep TableReport
	out := clean(l, rows, func(i model.OutwardInvoice) string { return i.InvoiceID }, &rep)
	return out, rep, nil
}

func (l *Loader) ReadInward(r io.Reader) ([]model.InwardRecord, TableReport, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, TableReport{}, err
	}
	t.alias("tax_amount", "itc_available")
	rows := make([]model.InwardRecord, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, model.InwardRecord{
			InvoiceID:    t.get(row, "invoice_id"),
			SupplierID:   t.get(row, "supplier_gstin"),
			ReceiverID:   t.get(row, "receiver_gstin"),
			Value:        money(t.get(row, "total_value")),
			CreditAmount: money(t.get(row, "itc_available")),
		})
	}
	var rep TableReport
	out := clean(l, rows, func(i model.InwardRecord) string { return i.InvoiceID }, &rep)
	return out, rep, nil
}

func (l *Loader) ReadSummaries(r io.Reader) ([]model.PeriodSummary, TableReport, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, TableReport{}, err
	}
	t.alias("itc_claimed", "total_itc_claimed")
	rows := make([]model.PeriodSummary, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, model.PeriodSummary{
			EntityID:      t.get(row, "gstin"),
			Period:        t.get(row, "return_period"),
			SalesTotal:    money(t.get(row, "total_sales_declared")),
			CreditClaimed: money(t.get(row, "total_itc_claimed")),
			CashTaxPaid:   money(t.get(row, "tax_paid_cash")),
		})
	}
	var rep TableReport
	out := clean(l, rows, func(s model.PeriodSummary) string { return s.EntityID + "\x00" + s.Period }, &rep)
	return out, rep, nil
}

// ReadLabels returns a non-nil slice whenever the file exists, so callers can
// tell "no labels supplied" from "labels supplied, none circular".
func (l *Loader) ReadLabels(r io.Reader) ([]model.FraudLabel, TableReport, error) {
	t, err := readTable(r)
	if err != nil {
		return nil, TableReport{}, err
	}
	rows := make([]model.FraudLabel, 0, len(t.rows))
	for _, row := range t.rows {
		rows = append(rows, model.FraudLabel{
			EntityID:  t.get(row, "gstin"),
			IsFraud:   flag(t.get(row, "is_fraud")),
			FraudType: t.get(row, "fraud_type"),
		})
	}
	var rep TableReport
	out := clean(l, rows, func(f model.FraudLabel) string { return f.EntityID }, &rep)
	return out, rep, nil
}

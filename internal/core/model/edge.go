package model

import "time"

// OutwardInvoice is a sale declared by the supplier. Each one becomes a
// supplier -> receiver edge in the transaction graph.
type OutwardInvoice struct {
	InvoiceID  string    `json:"invoice_id" validate:"required"`
	SupplierID string    `json:"supplier_gstin" validate:"len=15"`
	ReceiverID string    `json:"receiver_gstin" validate:"len=15"`
	Value      float64   `json:"total_value"`
	TaxAmount  float64   `json:"tax_amount"`
	Date       time.Time `json:"invoice_date"`
}

// InwardRecord is the buyer-side (auto-populated) mirror of an invoice.
type InwardRecord struct {
	InvoiceID    string  `json:"invoice_id" validate:"required"`
	SupplierID   string  `json:"supplier_gstin" validate:"len=15"`
	ReceiverID   string  `json:"receiver_gstin" validate:"len=15"`
	Value        float64 `json:"total_value"`
	CreditAmount float64 `json:"itc_available"`
}

// PeriodSummary is one entity's self-reported aggregate for one period.
type PeriodSummary struct {
	EntityID      string  `json:"gstin" validate:"len=15"`
	Period        string  `json:"return_period"`
	SalesTotal    float64 `json:"total_sales_declared"`
	CreditClaimed float64 `json:"total_itc_claimed"`
	CashTaxPaid   float64 `json:"tax_paid_cash"`
}

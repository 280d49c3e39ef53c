// Package invoice extracts structured monetary line items from
// vendor invoice documents rendered to text. Every parser is
// best-effort: partial extraction degrades to warnings, a missing
// text backend degrades to an empty result, and nothing raises past
// the parser boundary for malformed business data.
package invoice

import (
	"github.com/shopspring/decimal"
)

// Line is one extracted invoice line item. Amount is authoritative;
// quantity × unit price is expected to reconcile but never enforced.
type Line struct {
	Description   string          `json:"description"`
	CanonicalName string          `json:"canonical_name"`
	Quantity      decimal.Decimal `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unit_price"`
	Amount        decimal.Decimal `json:"amount"`
}

// SupportBlock is one contiguous billable grouping in a time-billing
// invoice. RowKey is stable across passes: block ordinal plus a hash
// of the normalized summary.
type SupportBlock struct {
	RowKey          string          `json:"row_key"`
	ChargeSummary   string          `json:"charge_summary"`
	BillableEntries int             `json:"billable_entries"`
	BillableHours   decimal.Decimal `json:"billable_hours"`
	Amount          decimal.Decimal `json:"amount"`
}

// DeviceInvoice is the totals-only parse of a device-vendor invoice.
type DeviceInvoice struct {
	Filename          string           `json:"filename"`
	InvoiceNumber     string           `json:"invoice_number"`
	InvoiceTotal      *decimal.Decimal `json:"invoice_total"`
	BilledDeviceCount *int             `json:"billed_device_count"`
	Warnings          []string         `json:"warnings"`
}

// SeatInvoice carries the per-license unit costs extracted from a
// seat-vendor invoice. A product absent from PerLicenseCost means its
// charges cannot be allocated — not that they are free.
type SeatInvoice struct {
	Filename       string                     `json:"filename"`
	InvoiceNumber  string                     `json:"invoice_number"`
	InvoiceTotal   *decimal.Decimal           `json:"invoice_total"`
	PerLicenseCost map[string]decimal.Decimal `json:"per_license_cost"`
	Warnings       []string                   `json:"warnings"`
}

// ManagedInvoice is the line-item parse of a managed-services invoice.
type ManagedInvoice struct {
	Filename      string           `json:"filename"`
	InvoiceNumber string           `json:"invoice_number"`
	InvoiceTotal  *decimal.Decimal `json:"invoice_total"`
	Lines         []Line           `json:"lines"`
	Warnings      []string         `json:"warnings"`
}

// SupportInvoice is the billable-block parse of a support invoice.
type SupportInvoice struct {
	Filename      string           `json:"filename"`
	InvoiceNumber string           `json:"invoice_number"`
	InvoiceTotal  *decimal.Decimal `json:"invoice_total"`
	Blocks        []SupportBlock   `json:"blocks"`
	Warnings      []string         `json:"warnings"`
}

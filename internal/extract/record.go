package extract

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the wire format for transaction dates.
const DateLayout = "2006-01-02"

// Receipt types reported in Record.ReceiptType.
const (
	ReceiptTypeInvoice = "invoice"
	ReceiptTypeReceipt = "receipt"
	ReceiptTypeOrder   = "order"
	ReceiptTypeGeneral = "general"
)

// LineItem is one purchased item. Description is trimmed and non-empty,
// Amount is positive and below the per-item ceiling.
type LineItem struct {
	Description string
	Amount      decimal.Decimal
}

// Record is the result of one extraction. Nil pointer fields mean the value
// could not be determined. A Record is never mutated after Extract returns.
type Record struct {
	MerchantName    *string
	TransactionDate *time.Time
	CurrencyCode    *string
	TotalAmount     *decimal.Decimal
	LineItems       []LineItem
	RawText         string
	Confidence      float64

	// CurrencyDetected is false when CurrencyCode holds the configured
	// default rather than a marker found on the receipt.
	CurrencyDetected bool
	ReceiptType      string
	Description      string
}

// ResolvedFields lists the confidence-bearing fields that are present.
func (r Record) ResolvedFields() []string {
	var out []string
	if r.TransactionDate != nil {
		out = append(out, FieldDate)
	}
	if r.TotalAmount != nil {
		out = append(out, FieldAmount)
	}
	if r.MerchantName != nil {
		out = append(out, FieldMerchant)
	}
	if r.CurrencyCode != nil && r.CurrencyDetected {
		out = append(out, FieldCurrency)
	}
	return out
}

// Confidence-bearing field names, also used as metric labels.
const (
	FieldDate     = "date"
	FieldAmount   = "amount"
	FieldMerchant = "merchant"
	FieldCurrency = "currency"
)

type lineItemJSON struct {
	Description string `json:"description"`
	Amount      string `json:"amount"`
}

type recordJSON struct {
	MerchantName     *string        `json:"merchant_name"`
	TransactionDate  *string        `json:"transaction_date"`
	CurrencyCode     *string        `json:"currency_code"`
	TotalAmount      *string        `json:"total_amount"`
	LineItems        []lineItemJSON `json:"line_items"`
	RawText          string         `json:"raw_text"`
	Confidence       float64        `json:"confidence"`
	CurrencyDetected bool           `json:"currency_detected"`
	ReceiptType      string         `json:"receipt_type,omitempty"`
	Description      string         `json:"description,omitempty"`
}

// MarshalJSON writes the flat record. Absent fields are null, dates are
// YYYY-MM-DD and amounts are fixed two-decimal strings.
func (r Record) MarshalJSON() ([]byte, error) {
	out := recordJSON{
		MerchantName:     r.MerchantName,
		CurrencyCode:     r.CurrencyCode,
		LineItems:        make([]lineItemJSON, 0, len(r.LineItems)),
		RawText:          r.RawText,
		Confidence:       r.Confidence,
		CurrencyDetected: r.CurrencyDetected,
		ReceiptType:      r.ReceiptType,
		Description:      r.Description,
	}
	if r.TransactionDate != nil {
		d := r.TransactionDate.Format(DateLayout)
		out.TransactionDate = &d
	}
	if r.TotalAmount != nil {
		t := r.TotalAmount.StringFixed(2)
		out.TotalAmount = &t
	}
	for _, it := range r.LineItems {
		out.LineItems = append(out.LineItems, lineItemJSON{Description: it.Description, Amount: it.Amount.StringFixed(2)})
	}
	return json.Marshal(out)
}

// UnmarshalJSON reads the format written by MarshalJSON.
func (r *Record) UnmarshalJSON(b []byte) error {
	var in recordJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	rec := Record{
		MerchantName:     in.MerchantName,
		CurrencyCode:     in.CurrencyCode,
		LineItems:        make([]LineItem, 0, len(in.LineItems)),
		RawText:          in.RawText,
		Confidence:       in.Confidence,
		CurrencyDetected: in.CurrencyDetected,
		ReceiptType:      in.ReceiptType,
		Description:      in.Description,
	}
	if in.TransactionDate != nil {
		d, err := time.Parse(DateLayout, *in.TransactionDate)
		if err != nil {
			return err
		}
		rec.TransactionDate = &d
	}
	if in.TotalAmount != nil {
		t, err := decimal.NewFromString(*in.TotalAmount)
		if err != nil {
			return err
		}
		rec.TotalAmount = &t
	}
	for _, it := range in.LineItems {
		a, err := decimal.NewFromString(it.Amount)
		if err != nil {
			return err
		}
		rec.LineItems = append(rec.LineItems, LineItem{Description: it.Description, Amount: a})
	}
	*r = rec
	return nil
}

func emptyRecord(raw string) Record {
	return Record{LineItems: []LineItem{}, RawText: raw}
}

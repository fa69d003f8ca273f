package model

import (
	"strings"
	"time"
)

// LineItem is a single purchased line on a receipt.
type LineItem struct {
	Description string  `json:"description" yaml:"description"`
	Quantity    float64 `json:"quantity" yaml:"quantity"`
	Amount      float64 `json:"amount" yaml:"amount"`
}

// Receipt holds the transaction data extracted from a scanned receipt.
type Receipt struct {
	Date      time.Time  `json:"date" yaml:"date"`
	Merchant  string     `json:"merchant" yaml:"merchant"`
	Category  string     `json:"category,omitempty" yaml:"category,omitempty"`
	Currency  string     `json:"currency,omitempty" yaml:"currency,omitempty"`
	LineItems []LineItem `json:"line_items,omitempty" yaml:"line_items,omitempty"`
	Total     float64    `json:"total" yaml:"total"`
}

// Clone returns a copy of the receipt that shares no slices with r.
func (r Receipt) Clone() Receipt {
	out := r
	if r.LineItems != nil {
		out.LineItems = make([]LineItem, len(r.LineItems))
		copy(out.LineItems, r.LineItems)
	}
	return out
}

// HasMerchant reports whether a merchant name was extracted.
func (r Receipt) HasMerchant() bool {
	return strings.TrimSpace(r.Merchant) != ""
}

// LineItemTotal sums the line item amounts.
func (r Receipt) LineItemTotal() float64 {
	var sum float64
	for _, li := range r.LineItems {
		sum += li.Amount
	}
	return sum
}

// ToTransaction converts the receipt into a transaction ready for storage.
func (r Receipt) ToTransaction(id string) Transaction {
	txn := Transaction{
		ID:           id,
		Date:         r.Date,
		MerchantName: strings.TrimSpace(r.Merchant),
		Amount:       r.Total,
		Category:     r.Category,
		Currency:     r.Currency,
		LineItems:    r.Clone().LineItems,
	}
	if txn.Currency == "" {
		txn.Currency = "USD"
	}
	txn.Hash = txn.GenerateHash()
	return txn
}

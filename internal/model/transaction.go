package model

import (
	"crypto/sha256"
	"fmt"
	"time"
)

// Transaction represents a reviewed receipt persisted as a financial transaction.
type Transaction struct {
	Date         time.Time
	SavedAt      time.Time
	ID           string
	MerchantName string
	Category     string
	Currency     string
	Hash         string
	LineItems    []LineItem
	Amount       float64
}

// GenerateHash creates a unique hash for duplicate detection.
func (t *Transaction) GenerateHash() string {
	data := fmt.Sprintf("%s:%.2f:%s:%d",
		t.Date.Format("2006-01-02"),
		t.Amount,
		t.MerchantName,
		len(t.LineItems))
	hash := sha256.Sum256([]byte(data))
	return fmt.Sprintf("%x", hash)
}

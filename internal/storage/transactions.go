package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/receipt-review/internal/common"
	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/Veraticus/receipt-review/internal/service"
	"github.com/mattn/go-sqlite3"
)

// SaveTransaction writes one reviewed receipt and its line items atomically.
func (s *SQLiteStorage) SaveTransaction(ctx context.Context, txn *model.Transaction) error {
	if err := validateContext(ctx); err != nil {
		return err
	}
	if err := validateTransaction(txn); err != nil {
		return err
	}

	if txn.Hash == "" {
		txn.Hash = txn.GenerateHash()
	}
	if txn.Currency == "" {
		txn.Currency = "USD"
	}
	if txn.SavedAt.IsZero() {
		txn.SavedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return classifyWriteError(fmt.Errorf("failed to begin transaction: %w", err))
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO transactions (
			id, hash, date, merchant_name, amount, category, currency, saved_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		txn.ID,
		txn.Hash,
		txn.Date,
		txn.MerchantName,
		txn.Amount,
		nullString(txn.Category),
		txn.Currency,
		txn.SavedAt,
	)
	if err != nil {
		return classifyWriteError(fmt.Errorf("failed to insert transaction %s: %w", txn.ID, err))
	}

	if len(txn.LineItems) > 0 {
		stmt, prepErr := tx.PrepareContext(ctx, `
			INSERT INTO line_items (transaction_id, position, description, quantity, amount)
			VALUES (?, ?, ?, ?, ?)
		`)
		if prepErr != nil {
			return fmt.Errorf("failed to prepare statement: %w", prepErr)
		}
		defer func() { _ = stmt.Close() }()

		for i, li := range txn.LineItems {
			qty := li.Quantity
			if qty <= 0 {
				qty = 1
			}
			if _, err := stmt.ExecContext(ctx, txn.ID, i, li.Description, qty, li.Amount); err != nil {
				return classifyWriteError(fmt.Errorf("failed to insert line item %d of %s: %w", i, txn.ID, err))
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return classifyWriteError(fmt.Errorf("failed to commit transaction %s: %w", txn.ID, err))
	}
	return nil
}

// GetTransactionByID retrieves one transaction with its line items.
func (s *SQLiteStorage) GetTransactionByID(ctx context.Context, id string) (*model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if err := validateString(id, "id"); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx, selectTransactions+` WHERE id = ?`, id)
	txn, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("transaction %s: %w", id, common.ErrNotFound)
	}
	if err != nil {
		return nil, err
	}

	items, err := s.lineItems(ctx, s.db, txn.ID)
	if err != nil {
		return nil, err
	}
	txn.LineItems = items
	return txn, nil
}

// GetTransactions lists transactions matching filter, oldest first.
func (s *SQLiteStorage) GetTransactions(ctx context.Context, filter service.TransactionFilter) ([]model.Transaction, error) {
	if err := validateContext(ctx); err != nil {
		return nil, err
	}
	if filter.StartDate != nil && filter.EndDate != nil && filter.EndDate.Before(*filter.StartDate) {
		return nil, fmt.Errorf("%w: end date %v is before start date %v", ErrInvalidDateRange, *filter.EndDate, *filter.StartDate)
	}

	var where []string
	var args []any
	if filter.StartDate != nil {
		where = append(where, "date >= ?")
		args = append(args, *filter.StartDate)
	}
	if filter.EndDate != nil {
		where = append(where, "date <= ?")
		args = append(args, *filter.EndDate)
	}
	if filter.Merchant != "" {
		where = append(where, "merchant_name LIKE ?")
		args = append(args, "%"+filter.Merchant+"%")
	}

	query := selectTransactions
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY date ASC, id ASC"
	if filter.Limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, filter.Limit, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var transactions []model.Transaction
	for rows.Next() {
		txn, scanErr := scanTransaction(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		transactions = append(transactions, *txn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}

	for i := range transactions {
		items, itemErr := s.lineItems(ctx, s.db, transactions[i].ID)
		if itemErr != nil {
			return nil, itemErr
		}
		transactions[i].LineItems = items
	}
	return transactions, nil
}

// GetTransactionCount returns the number of stored transactions.
func (s *SQLiteStorage) GetTransactionCount(ctx context.Context) (int, error) {
	if err := validateContext(ctx); err != nil {
		return 0, err
	}
	var count int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transactions").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

const selectTransactions = `
	SELECT id, hash, date, merchant_name, amount, category, currency, saved_at
	FROM transactions`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*model.Transaction, error) {
	var txn model.Transaction
	var category sql.NullString
	var savedAt sql.NullTime

	err := row.Scan(
		&txn.ID,
		&txn.Hash,
		&txn.Date,
		&txn.MerchantName,
		&txn.Amount,
		&category,
		&txn.Currency,
		&savedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}

	if category.Valid {
		txn.Category = category.String
	}
	if savedAt.Valid {
		txn.SavedAt = savedAt.Time
	}
	return &txn, nil
}

func (s *SQLiteStorage) lineItems(ctx context.Context, q queryable, transactionID string) ([]model.LineItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT description, quantity, amount
		FROM line_items
		WHERE transaction_id = ?
		ORDER BY position ASC
	`, transactionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query line items: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var items []model.LineItem
	for rows.Next() {
		var li model.LineItem
		if err := rows.Scan(&li.Description, &li.Quantity, &li.Amount); err != nil {
			return nil, fmt.Errorf("failed to scan line item: %w", err)
		}
		items = append(items, li)
	}
	return items, rows.Err()
}

// classifyWriteError maps driver errors onto the application's error kinds.
func classifyWriteError(err error) error {
	var sqliteErr sqlite3.Error
	if !errors.As(err, &sqliteErr) {
		return err
	}

	switch {
	case sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique,
		sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey:
		return fmt.Errorf("%w: %w", common.ErrDuplicateEntry, err)
	case sqliteErr.Code == sqlite3.ErrBusy, sqliteErr.Code == sqlite3.ErrLocked:
		return &common.RetryableError{Err: err, Retryable: true}
	default:
		return err
	}
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

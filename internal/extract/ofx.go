package extract

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/Veraticus/receipt-review/internal/model"
	"github.com/aclindsa/ofxgo"
)

var (
	severityRegex = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	tagFixRegex   = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// OFXParser turns statement lines from OFX/QFX files into receipt candidates.
// Statements carry no line items, so every candidate lands in review.
type OFXParser struct{}

// NewOFXParser creates a new OFX parser.
func NewOFXParser() *OFXParser {
	return &OFXParser{}
}

// preprocess fixes common formatting issues in OFX files.
func (p *OFXParser) preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")

	content = severityRegex.ReplaceAllStringFunc(content, strings.ToUpper)

	// SGML-style files sometimes drop the closing bracket on bare tags.
	return tagFixRegex.ReplaceAllString(content, "$1>")
}

// Parse reads a statement and returns one extraction result per debit line.
// Credits (refunds, deposits) are not receipts and are skipped.
func (p *OFXParser) Parse(ctx context.Context, reader io.Reader) ([]model.ExtractionResult, error) {
	content, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(p.preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	var lines []ofxgo.Transaction
	for _, msg := range resp.Bank {
		if stmt, ok := msg.(*ofxgo.StatementResponse); ok && stmt.BankTranList != nil {
			lines = append(lines, stmt.BankTranList.Transactions...)
		}
	}
	for _, msg := range resp.CreditCard {
		if stmt, ok := msg.(*ofxgo.CCStatementResponse); ok && stmt.BankTranList != nil {
			lines = append(lines, stmt.BankTranList.Transactions...)
		}
	}

	results := make([]model.ExtractionResult, 0, len(lines))
	seen := make(map[string]struct{}, len(lines))
	skipped := 0

	for _, line := range lines {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		amount, _ := line.TrnAmt.Float64()
		if amount >= 0 {
			skipped++
			continue
		}

		id := "ofx-" + string(line.FiTID)
		if _, dup := seen[id]; dup {
			skipped++
			continue
		}
		seen[id] = struct{}{}

		results = append(results, model.ExtractionResult{
			ID:      id,
			Index:   len(results),
			Success: true,
			Receipt: &model.Receipt{
				Merchant: merchantName(line),
				Date:     line.DtPosted.Time.UTC(),
				Total:    -amount,
			},
		})
	}

	slog.Info("Parsed OFX statement",
		"receipts", len(results),
		"skipped", skipped)

	return results, nil
}

// merchantName tries to get a clean merchant name from OFX data.
func merchantName(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return string(tx.Payee.Name)
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && isGenericDescription(name) {
		name = strings.TrimSpace(string(tx.Memo))
	}

	prefixes := []string{
		"POS PURCHASE ",
		"PURCHASE AUTHORIZED ON ",
		"DEBIT CARD PURCHASE ",
		"CHECK CARD ",
		"VISA PURCHASE ",
		"MC PURCHASE ",
		"DEBIT PURCHASE ",
	}
	for _, prefix := range prefixes {
		if strings.HasPrefix(strings.ToUpper(name), prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// "MM/DD " date stamps in front of the merchant
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

func isGenericDescription(name string) bool {
	switch strings.ToUpper(name) {
	case "DEBIT", "CREDIT", "PURCHASE", "PAYMENT", "POS TRANSACTION", "CARD PURCHASE":
		return true
	default:
		return false
	}
}

// Package ofx reads OFX/QFX bank and card statements into ledger entries.
package ofx

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"regexp"
	"strings"

	"github.com/aclindsa/ofxgo"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

var (
	severityPattern = regexp.MustCompile(`(?i)<SEVERITY>(Info|Warn|Error)</SEVERITY>`)
	// Opening SGML tags left without their closing bracket at end of line.
	openTagPattern = regexp.MustCompile(`(?m)^(\s*<[A-Z][A-Z0-9._]*[A-Z0-9])$`)
)

// merchantPrefixes are bank boilerplate stripped from descriptions.
var merchantPrefixes = []string{
	"POS PURCHASE ",
	"PURCHASE AUTHORIZED ON ",
	"DEBIT CARD PURCHASE ",
	"ACH DEBIT ",
	"ACH CREDIT ",
	"CHECK CARD ",
	"VISA PURCHASE ",
	"MC PURCHASE ",
	"DEBIT PURCHASE ",
	"UPI/",
}

var genericDescriptions = map[string]bool{
	"DEBIT":           true,
	"CREDIT":          true,
	"PURCHASE":        true,
	"PAYMENT":         true,
	"POS TRANSACTION": true,
	"CARD PURCHASE":   true,
	"TRANSFER":        true,
}

// Statement is everything read from one file.
type Statement struct {
	Entries  []model.LedgerEntry
	Accounts []string
}

// Parser converts statements for a single user.
type Parser struct {
	logger *slog.Logger
}

// NewParser creates a new OFX parser.
func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// preprocess fixes common formatting issues in OFX files.
func preprocess(content string) string {
	content = strings.TrimLeft(content, " \t\r\n")
	content = severityPattern.ReplaceAllStringFunc(content, strings.ToUpper)
	return openTagPattern.ReplaceAllString(content, "$1>")
}

// Parse reads r and returns ledger entries owned by userID. Debits become
// expenses and credits become income.
func (p *Parser) Parse(ctx context.Context, r io.Reader, userID string) (*Statement, error) {
	if userID == "" {
		return nil, fmt.Errorf("user ID is required")
	}

	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read OFX file: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := ofxgo.ParseResponse(strings.NewReader(preprocess(string(content))))
	if err != nil {
		return nil, fmt.Errorf("failed to parse OFX file: %w", err)
	}

	out := &Statement{}
	seen := make(map[string]bool)
	addAccount := func(id string) {
		if id != "" && !seen[id] {
			seen[id] = true
			out.Accounts = append(out.Accounts, id)
		}
	}

	for _, msg := range resp.Bank {
		stmt, ok := msg.(*ofxgo.StatementResponse)
		if !ok {
			continue
		}
		account := string(stmt.BankAcctFrom.AcctID)
		addAccount(account)
		if stmt.BankTranList == nil {
			continue
		}
		method := paymentMethod("Bank", account)
		for _, tx := range stmt.BankTranList.Transactions {
			out.Entries = append(out.Entries, convert(tx, userID, method))
		}
	}

	for _, msg := range resp.CreditCard {
		stmt, ok := msg.(*ofxgo.CCStatementResponse)
		if !ok {
			continue
		}
		account := string(stmt.CCAcctFrom.AcctID)
		addAccount(account)
		if stmt.BankTranList == nil {
			continue
		}
		method := paymentMethod("Card", account)
		for _, tx := range stmt.BankTranList.Transactions {
			out.Entries = append(out.Entries, convert(tx, userID, method))
		}
	}

	p.logger.Info("Parsed OFX file",
		"entries", len(out.Entries),
		"accounts", len(out.Accounts))

	return out, nil
}

// paymentMethod labels entries with the account kind and its last four digits.
func paymentMethod(kind, account string) string {
	if len(account) <= 4 {
		return kind
	}
	return fmt.Sprintf("%s ••%s", kind, account[len(account)-4:])
}

func convert(tx ofxgo.Transaction, userID, method string) model.LedgerEntry {
	amount, _ := tx.TrnAmt.Float64()
	typ := model.EntryIncome
	if amount < 0 {
		typ = model.EntryExpense
		amount = -amount
	}

	e := model.LedgerEntry{
		UserID:        userID,
		Date:          tx.DtPosted.Time,
		Type:          typ,
		Category:      categoryFor(tx.TrnType.String(), typ),
		Amount:        amount,
		Description:   description(tx),
		PaymentMethod: method,
	}
	if tx.Memo != "" {
		e.Notes = strings.TrimSpace(string(tx.Memo))
	}
	if tx.CheckNum != "" {
		e.Notes = strings.TrimSpace(e.Notes + " check #" + string(tx.CheckNum))
	}
	e.Hash = e.GenerateHash()
	return e
}

// categoryFor infers a coarse category from the OFX transaction type.
func categoryFor(trnType string, typ model.EntryType) string {
	switch trnType {
	case "INT", "DIV":
		return "Interest"
	case "FEE", "SRVCHG":
		return "Bank Fees"
	case "ATM", "CASH":
		return "Cash"
	case "CHECK":
		return "Checks"
	case "DIRECTDEP", "DEP":
		return "Deposits"
	}
	if typ == model.EntryIncome {
		return "Income"
	}
	return "Uncategorized"
}

// description picks the cleanest counterparty name the record offers.
func description(tx ofxgo.Transaction) string {
	if tx.Payee != nil && tx.Payee.Name != "" {
		return strings.TrimSpace(string(tx.Payee.Name))
	}

	name := strings.TrimSpace(string(tx.Name))
	if tx.Memo != "" && genericDescriptions[strings.ToUpper(name)] {
		name = strings.TrimSpace(string(tx.Memo))
	}

	upper := strings.ToUpper(name)
	for _, prefix := range merchantPrefixes {
		if strings.HasPrefix(upper, prefix) {
			name = name[len(prefix):]
			break
		}
	}

	// Leading "MM/DD " posting dates.
	if len(name) > 5 && name[2] == '/' && name[5] == ' ' {
		name = strings.TrimSpace(name[6:])
	}

	return name
}

// Package prompt renders the system prompt sent to the model from fetched
// records and the caller's identity kind.
package prompt

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"
	"time"

	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/Veraticus/the-spice-must-talk/internal/fetch"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

const featureSummary = "{app} includes:\n" +
	"1) Transactions — log income and expenses with categories and dates.\n" +
	"2) Goals — create savings targets and track progress.\n" +
	"3) Reminders — set alerts for bills and financial tasks."

// Options holds branding and currency settings.
type Options struct {
	AppName        string `mapstructure:"app_name"`
	CurrencySymbol string `mapstructure:"currency_symbol"`
	CurrencyCode   string `mapstructure:"currency_code"`
}

// DefaultOptions returns the stock branding.
func DefaultOptions() Options {
	return Options{
		AppName:        "Finance Tracker",
		CurrencySymbol: "₹",
		CurrencyCode:   "INR",
	}
}

// Assembler renders system prompts.
type Assembler struct {
	templates *template.Template
	replacer  *strings.Replacer
	printer   *message.Printer
	now       func() time.Time
	opts      Options
}

// AssemblerOption configures an Assembler.
type AssemblerOption func(*Assembler)

// WithClock overrides the time source used for the date line.
func WithClock(now func() time.Time) AssemblerOption {
	return func(a *Assembler) { a.now = now }
}

// NewAssembler parses the embedded templates.
func NewAssembler(opts Options, options ...AssemblerOption) (*Assembler, error) {
	defaults := DefaultOptions()
	if opts.AppName == "" {
		opts.AppName = defaults.AppName
	}
	if opts.CurrencySymbol == "" {
		opts.CurrencySymbol = defaults.CurrencySymbol
	}
	if opts.CurrencyCode == "" {
		opts.CurrencyCode = defaults.CurrencyCode
	}

	a := &Assembler{
		opts:    opts,
		now:     time.Now,
		printer: message.NewPrinter(language.English),
		replacer: strings.NewReplacer(
			"{app}", opts.AppName,
			"{symbol}", opts.CurrencySymbol,
			"{code}", opts.CurrencyCode,
		),
	}
	for _, o := range options {
		o(a)
	}

	tmpl, err := template.New("prompt").Funcs(a.funcs()).ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("failed to parse prompt templates: %w", err)
	}
	a.templates = tmpl
	return a, nil
}

func (a *Assembler) funcs() template.FuncMap {
	return template.FuncMap{
		"amount": func(v float64) string {
			return a.opts.CurrencySymbol + a.printer.Sprintf("%.2f", v)
		},
		"whole": func(v float64) string {
			return a.opts.CurrencySymbol + a.printer.Sprintf("%.0f", v)
		},
		"date": func(v any, layout string) string {
			switch t := v.(type) {
			case time.Time:
				return t.Format(layout)
			case *time.Time:
				if t == nil {
					return ""
				}
				return t.Format(layout)
			}
			return ""
		},
		"numbered": func(items []string) string {
			var b strings.Builder
			for i, item := range items {
				if i > 0 {
					b.WriteByte('\n')
				}
				fmt.Fprintf(&b, "%d. %s", i+1, item)
			}
			return b.String()
		},
	}
}

type promptData struct {
	Now         time.Time
	Summary     *model.LedgerSummary
	GoalSummary *model.GoalSummary
	Counts      *model.ReminderCounts
	AppName     string
	Features    string
	Style       string
	NoDataNote  string
	Rules       []string
	Entries     []model.LedgerEntry
	Goals       []model.Goal
	Today       []model.Reminder
	Upcoming    []model.Reminder
	Overdue     []model.Reminder
	NoData      bool
}

// Build renders the system prompt. Guests get the guest preamble only and
// result is ignored for them.
func (a *Assembler) Build(result *fetch.Result, kind model.IdentityKind) (string, error) {
	data := promptData{
		Now:      a.now(),
		AppName:  a.opts.AppName,
		Features: a.replacer.Replace(featureSummary),
	}

	name := "guest.tmpl"
	if kind == model.IdentityAuthenticated {
		name = "authenticated.tmpl"
		data.Rules = a.expand(authenticatedRules)
		data.Style = authenticatedStyle
		data.NoDataNote = a.replacer.Replace(noDataNote)
		a.fill(&data, result)
	} else {
		// Guests never see account data, so the note always applies.
		data.Rules = a.expand(guestRules)
		data.Style = guestStyle
		data.NoDataNote = a.replacer.Replace(noDataNote)
		data.NoData = true
	}

	var buf bytes.Buffer
	if err := a.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return strings.TrimRight(buf.String(), "\n"), nil
}

func (a *Assembler) expand(rules []string) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = a.replacer.Replace(r)
	}
	return out
}

// fill copies usable bundles into data. Failed and empty bundles are left out.
func (a *Assembler) fill(data *promptData, result *fetch.Result) {
	if result == nil {
		data.NoData = true
		return
	}
	if !result.Now.IsZero() {
		data.Now = result.Now
	}

	if b := result.Ledger; b != nil && b.Err == nil {
		if b.Summary != nil && b.Summary.TransactionCount > 0 {
			data.Summary = b.Summary
		}
		data.Entries = truncate(b.Entries, fetch.LedgerLimit)
	}
	if b := result.Goals; b != nil && b.Err == nil {
		if b.Summary != nil && b.Summary.TotalGoals > 0 {
			data.GoalSummary = b.Summary
		}
		data.Goals = truncate(b.Goals, fetch.GoalsLimit)
	}
	if b := result.Reminders; b != nil && b.Err == nil {
		if b.Counts != nil && b.Counts.Total > 0 {
			data.Counts = b.Counts
		}
		data.Today = truncate(b.Today, fetch.ReminderLimit)
		data.Upcoming = truncate(b.Upcoming, fetch.ReminderLimit)
		data.Overdue = truncate(b.Overdue, fetch.ReminderLimit)
	}

	data.NoData = !result.HasData()
}

func truncate[T any](items []T, limit int) []T {
	if len(items) > limit {
		return items[:limit]
	}
	return items
}

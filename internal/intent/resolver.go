// Package intent decides which record categories and which time window a
// free-text question needs. It is a pure function of static keyword tables,
// the input text, and the clock.
package intent

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// Unclassified is the decision when no category is a confident match.
const Unclassified model.Category = "unclassified"

const (
	// ConfidenceThreshold is the minimum share of weight the winner needs.
	ConfidenceThreshold = 0.4
	// SecondaryThreshold is the share a runner-up needs to be fetched too.
	SecondaryThreshold = 0.25
	// UnmatchedConfidence is reported when no keyword matched at all.
	UnmatchedConfidence = 0.5
	// DefaultWindowDays is the ledger window when the text names no period.
	DefaultWindowDays = 30
)

// CategoryScore is the accumulated keyword weight of one category.
type CategoryScore struct {
	Category   model.Category
	Weight     float64
	Confidence float64
}

// Decision is the outcome of scoring a question against the keyword tables.
type Decision struct {
	Primary    model.Category
	Reasoning  string
	Scores     []CategoryScore // Every category, in table order
	Secondary  []CategoryScore // Other matched categories, highest first
	Keywords   []string
	Confidence float64
}

// PlanSource records which rule produced a fetch plan.
type PlanSource string

const (
	// SourceBroad means an overview phrase requested everything.
	SourceBroad PlanSource = "broad"
	// SourceMulti means a phrase named an exact set of categories.
	SourceMulti PlanSource = "multi_category"
	// SourceClassified means the keyword decision chose the categories.
	SourceClassified PlanSource = "classified"
	// SourceDefault means nothing was confident so everything is fetched.
	SourceDefault PlanSource = "default"
)

// FetchPlan says which categories to read and over what ledger window.
type FetchPlan struct {
	Window    model.TimeWindow
	Source    PlanSource
	Phrase    string // Override phrase that decided the plan, if any
	Decision  Decision
	Ledger    bool
	Goals     bool
	Reminders bool
}

// Wants reports whether the plan includes c.
func (p FetchPlan) Wants(c model.Category) bool {
	switch c {
	case model.CategoryLedger:
		return p.Ledger
	case model.CategoryGoals:
		return p.Goals
	case model.CategoryReminders:
		return p.Reminders
	}
	return false
}

// Categories returns the requested categories in canonical order.
func (p FetchPlan) Categories() []model.Category {
	var out []model.Category
	for _, c := range model.Categories() {
		if p.Wants(c) {
			out = append(out, c)
		}
	}
	return out
}

func (p *FetchPlan) set(categories ...model.Category) {
	for _, c := range categories {
		switch c {
		case model.CategoryLedger:
			p.Ledger = true
		case model.CategoryGoals:
			p.Goals = true
		case model.CategoryReminders:
			p.Reminders = true
		}
	}
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithClock overrides the time source used for windows.
func WithClock(now func() time.Time) Option {
	return func(r *Resolver) {
		r.now = now
	}
}

// Resolver maps questions to decisions and fetch plans.
type Resolver struct {
	now func() time.Time
}

// NewResolver creates a resolver.
func NewResolver(opts ...Option) *Resolver {
	r := &Resolver{now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve scores the question against every category.
func (r *Resolver) Resolve(query string) Decision {
	q := strings.ToLower(query)

	scores := make([]CategoryScore, len(keywordTables))
	var keywords []string
	seen := make(map[string]bool)
	var total float64

	for i, table := range keywordTables {
		scores[i].Category = table.category
		for _, t := range table.terms {
			if !strings.Contains(q, t.phrase) {
				continue
			}
			scores[i].Weight += t.weight
			if !seen[t.phrase] {
				seen[t.phrase] = true
				keywords = append(keywords, t.phrase)
			}
		}
		total += scores[i].Weight
	}

	if total == 0 {
		return Decision{
			Primary:    Unclassified,
			Confidence: UnmatchedConfidence,
			Scores:     scores,
			Reasoning:  "no keywords matched",
		}
	}

	best := 0
	for i := range scores {
		scores[i].Confidence = scores[i].Weight / total
		if scores[i].Confidence > scores[best].Confidence {
			best = i
		}
	}

	var secondary []CategoryScore
	for i, s := range scores {
		if i != best && s.Weight > 0 {
			secondary = append(secondary, s)
		}
	}
	slices.SortStableFunc(secondary, func(a, b CategoryScore) int {
		switch {
		case a.Confidence > b.Confidence:
			return -1
		case a.Confidence < b.Confidence:
			return 1
		}
		return 0
	})

	d := Decision{
		Primary:    scores[best].Category,
		Confidence: scores[best].Confidence,
		Scores:     scores,
		Secondary:  secondary,
		Keywords:   keywords,
	}

	if d.Confidence < ConfidenceThreshold {
		d.Reasoning = fmt.Sprintf("best match %s at %.2f is below %.2f", scores[best].Category, d.Confidence, ConfidenceThreshold)
		d.Primary = Unclassified
		return d
	}

	d.Reasoning = fmt.Sprintf("matched %d keyword(s), %s at %.2f", len(keywords), d.Primary, d.Confidence)
	return d
}

// Plan decides which categories to fetch and the ledger window.
func (r *Resolver) Plan(query string) FetchPlan {
	q := strings.ToLower(query)
	plan := FetchPlan{
		Window:   r.Window(query),
		Decision: r.Resolve(query),
	}

	for _, t := range broadPhrases {
		if strings.Contains(q, t.phrase) {
			plan.set(model.Categories()...)
			plan.Source = SourceBroad
			plan.Phrase = t.phrase
			return plan
		}
	}

	for _, rule := range multiRules {
		if strings.Contains(q, rule.phrase) {
			plan.set(rule.categories...)
			plan.Source = SourceMulti
			plan.Phrase = rule.phrase
			return plan
		}
	}

	if plan.Decision.Primary == Unclassified {
		plan.set(model.Categories()...)
		plan.Source = SourceDefault
		return plan
	}

	plan.set(plan.Decision.Primary)
	for _, s := range plan.Decision.Secondary {
		if s.Confidence > SecondaryThreshold {
			plan.set(s.Category)
		}
	}
	plan.Source = SourceClassified
	return plan
}

// Window extracts the ledger time window named in the question.
func (r *Resolver) Window(query string) model.TimeWindow {
	q := strings.ToLower(query)
	now := r.now()

	for _, rule := range temporalRules {
		if !rule.re.MatchString(q) {
			continue
		}
		if rule.unbounded {
			return model.TimeWindow{End: now}
		}
		var start time.Time
		if rule.sinceDay {
			start = model.StartOfDay(now).AddDate(0, 0, -rule.days)
		} else {
			start = now.AddDate(0, 0, -rule.days)
		}
		return model.TimeWindow{Start: &start, End: now}
	}

	start := now.AddDate(0, 0, -DefaultWindowDays)
	return model.TimeWindow{Start: &start, End: now}
}

// RequiresSignIn reports whether a guest question can only be answered from
// the caller's own records.
func (r *Resolver) RequiresSignIn(query string) bool {
	q := strings.ToLower(query)

	for _, re := range personalMarkers {
		if re.MatchString(q) {
			return true
		}
	}
	for _, re := range adviceMarkers {
		if re.MatchString(q) {
			return false
		}
	}

	d := r.Resolve(query)
	return d.Primary == model.CategoryLedger || d.Primary == model.CategoryGoals
}

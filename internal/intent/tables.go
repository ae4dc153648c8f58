package intent

import (
	"regexp"

	"github.com/Veraticus/the-spice-must-talk/internal/model"
)

// term is a keyword counted wherever it appears inside the lowercased query.
type term struct {
	phrase string
	weight float64
}

type categoryTerms struct {
	category model.Category
	terms    []term
}

type multiRule struct {
	phrase     string
	categories []model.Category
}

type temporalRule struct {
	re        *regexp.Regexp
	phrase    string
	days      int
	sinceDay  bool // window starts at a local midnight rather than now-days
	unbounded bool
}

// keywordPattern matches a phrase on word boundaries, tolerating a plural or
// verb suffix so "tips" still counts as "tip".
func keywordPattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `(?:s|es|d|ed|ing)?\b`)
}

// exactPattern matches a phrase on word boundaries only.
func exactPattern(phrase string) *regexp.Regexp {
	return regexp.MustCompile(`\b` + regexp.QuoteMeta(phrase) + `\b`)
}

func weighted(pairs ...any) []term {
	terms := make([]term, 0, len(pairs)/2)
	for i := 0; i+1 < len(pairs); i += 2 {
		phrase := pairs[i].(string)
		terms = append(terms, term{phrase: phrase, weight: pairs[i+1].(float64)})
	}
	return terms
}

func phrases(list ...string) []term {
	terms := make([]term, 0, len(list))
	for _, p := range list {
		terms = append(terms, term{phrase: p})
	}
	return terms
}

// keywordTables is scanned in order; the order also breaks confidence ties.
var keywordTables = []categoryTerms{
	{
		category: model.CategoryLedger,
		terms: weighted(
			"how much did i spend", 3.0,
			"transaction history", 3.0,
			"account balance", 3.0,
			"payment history", 3.0,
			"show me my expenses", 3.0,
			"recent transactions", 3.0,
			"total spending", 2.5,
			"total expenses", 2.5,
			"how much have i", 2.5,
			"what did i spend", 2.5,
			"money spent", 2.0,
			"cash flow", 2.0,
			"transaction", 1.5,
			"transactions", 1.5,
			"expense", 1.5,
			"expenses", 1.5,
			"spending", 1.5,
			"income", 1.5,
			"spent", 1.2,
			"payment", 1.2,
			"payments", 1.2,
			"receipt", 1.2,
			"receipts", 1.2,
			"debit", 1.2,
			"transfer", 1.2,
			"balance", 1.2,
			"purchase", 1.2,
			"purchases", 1.2,
			"charge", 1.0,
			"charges", 1.0,
			"credit", 1.0,
			"bought", 1.0,
			"paid", 1.0,
			"buy", 0.8,
			"cost", 0.8,
			"cash", 0.8,
			"card", 0.8,
			"total", 0.8,
			"sum", 0.8,
			"account", 0.8,
			"history", 0.8,
			"money", 0.7,
		),
	},
	{
		category: model.CategoryGoals,
		terms: weighted(
			"savings goal", 3.0,
			"financial goal", 3.0,
			"saving for", 2.5,
			"how much have i saved", 2.5,
			"goal progress", 2.5,
			"savings target", 2.5,
			"budget plan", 2.0,
			"financial plan", 2.0,
			"am i on track", 2.0,
			"how close am i", 2.0,
			"reach my goal", 2.0,
			"emergency fund", 2.0,
			"goal", 1.5,
			"goals", 1.5,
			"milestone", 1.5,
			"target", 1.2,
			"save", 1.2,
			"saving", 1.2,
			"savings", 1.2,
			"objective", 1.2,
			"accumulate", 1.2,
			"budget", 1.2,
			"retirement", 1.2,
			"achievement", 1.0,
			"fund", 1.0,
			"progress", 1.0,
			"retire", 1.0,
			"plan", 0.8,
			"track", 0.8,
			"invest", 0.8,
			"investment", 0.8,
		),
	},
	{
		category: model.CategoryReminders,
		terms: weighted(
			"set a reminder", 3.0,
			"set reminder", 3.0,
			"remind me", 3.0,
			"create an alert", 3.0,
			"send me a notification", 3.0,
			"payment reminder", 3.0,
			"payment due", 2.5,
			"bill due", 2.5,
			"upcoming payment", 2.5,
			"due date", 2.0,
			"don't let me forget", 2.0,
			"notify me", 2.0,
			"alert me", 2.0,
			"reminder", 2.0,
			"reminders", 2.0,
			"remind", 1.5,
			"notification", 1.5,
			"notifications", 1.5,
			"alert", 1.2,
			"alerts", 1.2,
			"notify", 1.2,
			"alarm", 1.2,
			"overdue", 1.2,
			"schedule", 1.0,
			"upcoming", 1.0,
			"recurring", 1.0,
			"subscription", 1.0,
			"due", 0.8,
		),
	},
}

// broadPhrases ask for an overall picture and pull every category.
var broadPhrases = phrases(
	"analyse", "analyze", "analysis",
	"performance", "overview", "summary", "report",
	"how am i doing", "how i am doing", "how are my finances",
	"financial health", "financial status", "financial situation",
	"give me a summary", "full picture", "overall", "everything", "all my",
	"am i doing well", "am i doing good", "how is my", "review my",
	"check my finances", "check my financial",
	"assess", "assessment", "evaluate", "evaluation",
	"dashboard", "snapshot",
)

func multi(categories []model.Category, list ...string) []multiRule {
	rules := make([]multiRule, 0, len(list))
	for _, p := range list {
		rules = append(rules, multiRule{phrase: p, categories: categories})
	}
	return rules
}

// multiRules name an exact subset of categories; the first match wins.
var multiRules = concat(
	multi([]model.Category{model.CategoryLedger, model.CategoryGoals},
		"am i saving enough", "saving enough",
		"what should i focus on", "where should i focus",
		"am i on track", "how close am i",
		"can i afford", "afford",
		"reach my goal", "meet my goal", "achieve my goal",
		"budget vs",
	),
	multi([]model.Category{model.CategoryGoals, model.CategoryReminders},
		"upcoming goals", "goal deadlines",
	),
	multi([]model.Category{model.CategoryLedger, model.CategoryReminders},
		"pending bills", "bills and expenses", "overdue payments",
	),
)

func concat(groups ...[]multiRule) []multiRule {
	var out []multiRule
	for _, g := range groups {
		out = append(out, g...)
	}
	return out
}

func temporal(phrase string, days int) temporalRule {
	return temporalRule{phrase: phrase, days: days, re: exactPattern(phrase)}
}

// temporalRules are checked in order; the first match sets the ledger window.
var temporalRules = []temporalRule{
	{phrase: "today", sinceDay: true, re: exactPattern("today")},
	{phrase: "yesterday", days: 1, sinceDay: true, re: exactPattern("yesterday")},
	temporal("this week", 7),
	temporal("last week", 7),
	temporal("past week", 7),
	temporal("this month", 30),
	temporal("last month", 30),
	temporal("past month", 30),
	temporal("this quarter", 90),
	temporal("last quarter", 90),
	temporal("this year", 365),
	temporal("last year", 365),
	temporal("past year", 365),
	{phrase: "all time", unbounded: true, re: exactPattern("all time")},
	{phrase: "forever", unbounded: true, re: exactPattern("forever")},
	{phrase: "ever", unbounded: true, re: exactPattern("ever")},
	{phrase: "all", unbounded: true, re: exactPattern("all")},
}

// personalMarkers signal that a question is about the caller's own records.
var personalMarkers = []*regexp.Regexp{
	exactPattern("my"),
	exactPattern("mine"),
	exactPattern("i spent"),
	exactPattern("i spend"),
	exactPattern("i saved"),
	exactPattern("i earned"),
	exactPattern("i paid"),
	exactPattern("how much did i"),
	exactPattern("how much have i"),
	exactPattern("am i"),
	exactPattern("do i have"),
}

// adviceMarkers signal a general education question answerable without data.
var adviceMarkers = []*regexp.Regexp{
	exactPattern("how to"),
	exactPattern("how do"),
	exactPattern("what is"),
	exactPattern("what are"),
	exactPattern("explain"),
	keywordPattern("tip"),
	exactPattern("advice"),
	exactPattern("best way"),
	exactPattern("guide"),
	exactPattern("strategy"),
}

package chat

import "github.com/Veraticus/the-spice-must-talk/internal/model"

var guestSuggestions = []string{
	"How can I create a monthly budget?",
	"What's the best way to save for retirement?",
	"Should I invest in stocks or bonds?",
	"How do I build an emergency fund?",
}

var authenticatedSuggestions = []string{
	"Analyze my spending patterns",
	"How are my savings goals progressing?",
	"What reminders do I have this week?",
	"How much did I spend this month?",
}

// Suggestions returns starter questions for the identity.
func Suggestions(identity model.Identity) []string {
	src := authenticatedSuggestions
	if identity.IsGuest() {
		src = guestSuggestions
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

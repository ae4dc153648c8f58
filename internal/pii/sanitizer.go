// Package pii partially masks sensitive values in chat messages before they
// reach the model, the logs, or the conversation history.
package pii

import (
	"fmt"
	"regexp"
	"slices"
	"strings"

	"github.com/elliotchance/pie/v2"
)

// Label names the kind of sensitive value a detector finds.
type Label string

// Detector labels, in the order detectors run.
const (
	LabelCreditCard    Label = "credit_card"
	LabelSSN           Label = "ssn"
	LabelPhone         Label = "phone"
	LabelEmail         Label = "email"
	LabelAccountNumber Label = "account_number"
	LabelPassword      Label = "password"
)

// Finding groups the raw values one detector matched. Values are sensitive
// and must never be logged.
type Finding struct {
	Label  Label
	Values []string
}

// MaskedMessage is the result of sanitizing a message.
type MaskedMessage struct {
	Original     string
	Redacted     string
	Findings     []Finding
	HasSensitive bool
}

// Labels returns the labels that matched, in detector order.
func (m MaskedMessage) Labels() []Label {
	return pie.Map(m.Findings, func(f Finding) Label { return f.Label })
}

type detector struct {
	pattern *regexp.Regexp
	mask    func(string) string
	find    func(d *detector, text string) [][2]int
	label   Label
	group   int // submatch holding the sensitive span; 0 means the whole match
}

// Sanitizer runs an ordered list of detectors over a message. A span claimed
// by an earlier detector is never reconsidered by a later one.
type Sanitizer struct {
	detectors []*detector
}

// NewSanitizer creates a sanitizer with the built-in detectors.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		detectors: []*detector{
			{
				label:   LabelCreditCard,
				pattern: regexp.MustCompile(`\b(?:\d[ -]?){15,16}\b`),
				mask:    maskCard,
				find:    findTrimmed,
			},
			{
				label:   LabelSSN,
				pattern: regexp.MustCompile(`\b\d{3}-\d{2}-\d{4}\b`),
				mask:    maskSSN,
				find:    findGroup,
			},
			{
				label:   LabelPhone,
				pattern: regexp.MustCompile(`(?:\+91[-\s]?)?[6-9]\d{9}`),
				mask:    maskPhone,
				find:    findIsolatedDigits,
			},
			{
				label:   LabelEmail,
				pattern: regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`),
				mask:    maskEmail,
				find:    findGroup,
			},
			{
				label:   LabelAccountNumber,
				pattern: regexp.MustCompile(`(?i)\b(?:account\s*(?:no\.?|number|#|:)|a/c\s*:?|acc\s*:?)\s*([a-z]{0,4}\d[a-z0-9]{5,19})\b`),
				group:   1,
				mask:    maskAccount,
				find:    findGroup,
			},
			{
				label:   LabelPassword,
				pattern: regexp.MustCompile(`(?i)\b(?:password|passwd|pwd)\b\s*(?:is|:|=)?\s*(\S+)`),
				group:   1,
				mask:    func(string) string { return "********" },
				find:    findGroup,
			},
		},
	}
}

type claim struct {
	replacement string
	start       int
	end         int
}

// Sanitize masks every sensitive value in text. It never fails; text without
// sensitive values is returned unchanged.
func (s *Sanitizer) Sanitize(text string) MaskedMessage {
	result := MaskedMessage{Original: text, Redacted: text}
	if text == "" {
		return result
	}

	var claims []claim
	for _, d := range s.detectors {
		var values []string
		for _, loc := range d.find(d, text) {
			if overlapsAny(claims, loc[0], loc[1]) {
				continue
			}
			value := text[loc[0]:loc[1]]
			claims = append(claims, claim{start: loc[0], end: loc[1], replacement: d.mask(value)})
			values = append(values, value)
		}
		if len(values) > 0 {
			result.Findings = append(result.Findings, Finding{Label: d.label, Values: values})
		}
	}

	if len(claims) == 0 {
		return result
	}

	slices.SortFunc(claims, func(a, b claim) int { return a.start - b.start })

	var b strings.Builder
	pos := 0
	for _, c := range claims {
		b.WriteString(text[pos:c.start])
		b.WriteString(c.replacement)
		pos = c.end
	}
	b.WriteString(text[pos:])

	result.Redacted = b.String()
	result.HasSensitive = true
	return result
}

// Disclosure returns the short note shown alongside a reply when something
// was masked, or an empty string.
func Disclosure(m MaskedMessage) string {
	if !m.HasSensitive {
		return ""
	}
	labels := pie.Map(m.Findings, func(f Finding) string {
		return strings.ReplaceAll(string(f.Label), "_", " ")
	})
	return fmt.Sprintf("Sensitive info (%s) detected and partially masked for your privacy.", strings.Join(labels, ", "))
}

func overlapsAny(claims []claim, start, end int) bool {
	for _, c := range claims {
		if start < c.end && c.start < end {
			return true
		}
	}
	return false
}

func findGroup(d *detector, text string) [][2]int {
	var spans [][2]int
	for _, m := range d.pattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[2*d.group], m[2*d.group+1]
		if start < 0 {
			continue
		}
		spans = append(spans, [2]int{start, end})
	}
	return spans
}

// findTrimmed drops trailing separators the repetition may have consumed.
func findTrimmed(d *detector, text string) [][2]int {
	spans := findGroup(d, text)
	for i, sp := range spans {
		for sp[1] > sp[0] && (text[sp[1]-1] == ' ' || text[sp[1]-1] == '-') {
			sp[1]--
		}
		spans[i] = sp
	}
	return spans
}

// findIsolatedDigits only accepts matches that are not glued to other digits.
// A rejected candidate resumes the search one byte later.
func findIsolatedDigits(d *detector, text string) [][2]int {
	var spans [][2]int
	pos := 0
	for pos < len(text) {
		loc := d.pattern.FindStringIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		if (start > 0 && isDigit(text[start-1])) || (end < len(text) && isDigit(text[end])) {
			pos = start + 1
			continue
		}
		spans = append(spans, [2]int{start, end})
		pos = end
	}
	return spans
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

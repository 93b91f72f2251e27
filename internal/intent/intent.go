// Package intent classifies free-text chat queries into actions and
// extracts their structured parameters. Classification is deterministic:
// an ordered list of typed rules is tried against the normalized text and
// the first match wins. Unmatched input deliberately falls through to open
// conversation — that catch-all is a product decision, kept explicit here
// rather than inferred.
package intent

import (
	"strings"

	"chatpilot/internal/core"
)

// Rule pairs a named predicate with its parameter extractor. Each rule is
// unit-testable in isolation.
type Rule struct {
	// Name identifies the rule in logs and tests.
	Name string
	// Match reports whether the rule applies to q and, if so, returns the
	// fully-populated intent.
	Match func(q Query) (core.Intent, bool)
}

// Query is the normalized form of one user utterance, prepared once and
// shared by every rule.
type Query struct {
	// Raw is the original text.
	Raw string
	// Text is lowercased and has surrounding whitespace stripped.
	Text string
	// Tokens are the whitespace-separated fields of Text.
	Tokens []string
}

// Classifier applies its rules in a fixed priority order.
type Classifier struct {
	rules []Rule
}

// New creates a classifier with the default rule order: small talk first,
// then domain rules, then the conversation catch-all.
func New() *Classifier {
	return &Classifier{rules: defaultRules()}
}

// NewWithRules creates a classifier with a custom rule list. Tests use this
// to exercise a single rule.
func NewWithRules(rules []Rule) *Classifier {
	return &Classifier{rules: rules}
}

// Classify maps text to an intent. It never fails: text that matches no
// rule is an open conversation.
func (c *Classifier) Classify(text string) core.Intent {
	q := newQuery(text)
	for _, rule := range c.rules {
		if intent, ok := rule.Match(q); ok {
			return intent
		}
	}
	return core.Intent{Action: core.ActionConversation, Params: core.Params{Query: strings.TrimSpace(text)}}
}

func newQuery(text string) Query {
	normalized := strings.ToLower(strings.TrimSpace(text))
	return Query{
		Raw:    text,
		Text:   normalized,
		Tokens: strings.Fields(normalized),
	}
}

// containsAny reports whether text contains any of the keywords.
func containsAny(text string, keywords ...string) bool {
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

package views

import (
	"strings"
	"unicode"

	"github.com/coregx/ahocorasick"
	"github.com/lherron/homeplan/internal/domain"
	"github.com/orsinium-labs/stopwords"
)

var english = stopwords.MustGet("en")

// Query is a compiled option search. Every term must occur somewhere in the
// option's title, store, notes, tags or spec values, in any order.
type Query struct {
	terms []string
	ac    *ahocorasick.Automaton
}

// CompileQuery splits q into lowercase terms and drops English stopwords
// unless nothing else is left. It returns nil for a blank query.
func CompileQuery(q string) *Query {
	fields := strings.FieldsFunc(strings.ToLower(q), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '.' && r != '-'
	})
	if len(fields) == 0 {
		return nil
	}

	seen := make(map[string]bool, len(fields))
	var terms, dropped []string
	for _, f := range fields {
		if seen[f] {
			continue
		}
		seen[f] = true
		if english.Contains(f) {
			dropped = append(dropped, f)
			continue
		}
		terms = append(terms, f)
	}
	if len(terms) == 0 {
		terms = dropped
	}

	query := &Query{terms: terms}
	ac, err := ahocorasick.NewBuilder().
		AddStrings(terms).
		SetMatchKind(ahocorasick.LeftmostLongest).
		Build()
	if err == nil {
		query.ac = ac
	}
	return query
}

// Terms returns the terms that must all match.
func (q *Query) Terms() []string { return q.terms }

// Match reports whether every term occurs in the option.
func (q *Query) Match(o *domain.Option) bool {
	text := strings.ToLower(searchText(o))
	if q.ac == nil {
		for _, t := range q.terms {
			if !strings.Contains(text, t) {
				return false
			}
		}
		return true
	}

	found := make([]bool, len(q.terms))
	left := len(q.terms)
	for _, m := range q.ac.FindAllOverlapping([]byte(text)) {
		if m.PatternID < 0 || m.PatternID >= len(found) || found[m.PatternID] {
			continue
		}
		found[m.PatternID] = true
		if left--; left == 0 {
			return true
		}
	}
	return false
}

func searchText(o *domain.Option) string {
	var b strings.Builder
	for _, s := range []string{o.Title, o.Store, o.Notes, o.DimensionsText} {
		b.WriteString(s)
		b.WriteByte('\n')
	}
	for _, t := range o.Tags {
		b.WriteString(t)
		b.WriteByte('\n')
	}
	for _, kv := range o.Specs {
		if s, ok := kv.Value.(string); ok {
			b.WriteString(s)
			b.WriteByte('\n')
		}
	}
	return b.String()
}

// Package query implements the predicate language used for subscribing to
// events, e.g.
//
//	node.id='n1' AND event.source IN ('executor','backend')
//
// Conditions are joined with AND. A condition either tests tag equality or
// tag membership in a value set. Values are single-quoted strings.
package query

import (
	"errors"
	"fmt"
	"strings"
)

// Query holds the parsed form of a query string. A query matches a set of
// tags when every condition matches. Immutable after New.
type Query struct {
	str   string
	conds []Condition
}

// Condition is a single tag test. Values holds one entry for an equality
// test, several for an IN test.
type Condition struct {
	Tag    string
	Values []string
}

// New parses the given string and returns a query or an error if the string
// is invalid.
func New(s string) (*Query, error) {
	conds, err := parse(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %q: %w", s, err)
	}
	return &Query{str: s, conds: conds}, nil
}

// MustParse turns the given string into a query or panics; useful for tests
// and predefined queries.
func MustParse(s string) *Query {
	q, err := New(s)
	if err != nil {
		panic(err)
	}
	return q
}

// String returns the original string.
func (q *Query) String() string {
	return q.str
}

// Conditions returns a copy of the parsed conditions.
func (q *Query) Conditions() []Condition {
	return append([]Condition(nil), q.conds...)
}

// Matches reports whether the given tags satisfy every condition of the
// query. A tag missing from the map never matches.
func (q *Query) Matches(tags map[string]string) bool {
	for _, c := range q.conds {
		v, ok := tags[c.Tag]
		if !ok {
			return false
		}
		found := false
		for _, want := range c.Values {
			if v == want {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func parse(s string) ([]Condition, error) {
	if strings.TrimSpace(s) == "" {
		return nil, errors.New("empty query")
	}

	var conds []Condition
	rest := s
	for {
		var (
			cond Condition
			err  error
		)
		cond, rest, err = parseCondition(rest)
		if err != nil {
			return nil, err
		}
		conds = append(conds, cond)

		rest = strings.TrimSpace(rest)
		if rest == "" {
			return conds, nil
		}
		// "AND" must be a full word followed by another condition
		if !strings.HasPrefix(rest, "AND") || len(rest) < 4 || isTagChar(rest[3]) {
			return nil, fmt.Errorf(`expected "AND", got %q`, rest)
		}
		rest = rest[3:]
	}
}

func parseCondition(s string) (Condition, string, error) {
	s = strings.TrimSpace(s)

	i := 0
	for i < len(s) && isTagChar(s[i]) {
		i++
	}
	if i == 0 {
		return Condition{}, "", fmt.Errorf("expected tag, got %q", s)
	}
	tag := s[:i]
	rest := strings.TrimSpace(s[i:])

	switch {
	case strings.HasPrefix(rest, "="):
		value, rem, err := parseValue(strings.TrimSpace(rest[1:]))
		if err != nil {
			return Condition{}, "", err
		}
		return Condition{Tag: tag, Values: []string{value}}, rem, nil

	case strings.HasPrefix(rest, "IN"):
		rem := strings.TrimSpace(rest[2:])
		if !strings.HasPrefix(rem, "(") {
			return Condition{}, "", fmt.Errorf("expected ( after IN, got %q", rem)
		}
		rem = rem[1:]
		var values []string
		for {
			var (
				value string
				err   error
			)
			value, rem, err = parseValue(strings.TrimSpace(rem))
			if err != nil {
				return Condition{}, "", err
			}
			values = append(values, value)

			rem = strings.TrimSpace(rem)
			switch {
			case strings.HasPrefix(rem, ","):
				rem = rem[1:]
			case strings.HasPrefix(rem, ")"):
				return Condition{Tag: tag, Values: values}, rem[1:], nil
			default:
				return Condition{}, "", fmt.Errorf("expected , or ) in IN list, got %q", rem)
			}
		}

	default:
		return Condition{}, "", fmt.Errorf("expected = or IN after %s, got %q", tag, rest)
	}
}

func parseValue(s string) (string, string, error) {
	if !strings.HasPrefix(s, "'") {
		return "", "", fmt.Errorf("expected single-quoted value, got %q", s)
	}
	end := strings.IndexByte(s[1:], '\'')
	if end < 0 {
		return "", "", fmt.Errorf("unterminated value in %q", s)
	}
	return s[1 : 1+end], s[2+end:], nil
}

func isTagChar(c byte) bool {
	return c == '.' || c == '_' || c == '-' ||
		('a' <= c && c <= 'z') || ('A' <= c && c <= 'Z') || ('0' <= c && c <= '9')
}

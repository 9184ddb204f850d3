package router

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/google/uuid"
)

// Constraint restricts the values a capture segment accepts
type Constraint interface {
	Name() string
	Match(segment string) bool
}

type constraintFunc struct {
	name  string
	match func(string) bool
}

func (c constraintFunc) Name() string { return c.name }
func (c constraintFunc) Match(segment string) bool { return c.match(segment) }

var simpleConstraints = map[string]func(string) bool{
	"int": func(s string) bool {
		_, err := strconv.ParseInt(s, 10, 32)
		return err == nil
	},
	"long": func(s string) bool {
		_, err := strconv.ParseInt(s, 10, 64)
		return err == nil
	},
	"decimal": func(s string) bool {
		_, err := strconv.ParseFloat(s, 64)
		return err == nil
	},
	"bool": func(s string) bool {
		return strings.EqualFold(s, "true") || strings.EqualFold(s, "false")
	},
	"alpha": func(s string) bool {
		if s == "" {
			return false
		}
		for _, r := range s {
			if !unicode.IsLetter(r) {
				return false
			}
		}
		return true
	},
	"guid": func(s string) bool {
		_, err := uuid.Parse(s)
		return err == nil
	},
	"datetime": func(s string) bool {
		if _, err := time.Parse(time.RFC3339, s); err == nil {
			return true
		}
		_, err := time.Parse(time.DateOnly, s)
		return err == nil
	},
}

// parseConstraint parses "int", "min(3)", "range(1,10)" and friends
func parseConstraint(text string) (Constraint, error) {
	name, rawArgs := text, ""
	if open := strings.IndexByte(text, '('); open != -1 {
		if !strings.HasSuffix(text, ")") {
			return nil, fmt.Errorf("malformed constraint %q", text)
		}
		name, rawArgs = text[:open], text[open+1:len(text)-1]
	}
	name = strings.ToLower(strings.TrimSpace(name))

	if match, ok := simpleConstraints[name]; ok {
		if rawArgs != "" {
			return nil, fmt.Errorf("constraint %q takes no arguments", name)
		}
		return constraintFunc{name: name, match: match}, nil
	}

	args, err := parseArgs(rawArgs)
	if err != nil {
		return nil, fmt.Errorf("constraint %q: %w", text, err)
	}

	switch {
	case name == "min" && len(args) == 1:
		return intBounds(text, args[0], maxInt64), nil
	case name == "max" && len(args) == 1:
		return intBounds(text, minInt64, args[0]), nil
	case name == "range" && len(args) == 2:
		return intBounds(text, args[0], args[1]), nil
	case name == "minlength" && len(args) == 1:
		return lengthBounds(text, args[0], maxInt64), nil
	case name == "maxlength" && len(args) == 1:
		return lengthBounds(text, 0, args[0]), nil
	case name == "length" && len(args) == 1:
		return lengthBounds(text, args[0], args[0]), nil
	case name == "length" && len(args) == 2:
		return lengthBounds(text, args[0], args[1]), nil
	}
	return nil, fmt.Errorf("unknown constraint %q", text)
}

const (
	maxInt64 = int64(^uint64(0) >> 1)
	minInt64 = -maxInt64 - 1
)

func parseArgs(raw string) ([]int64, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	args := make([]int64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, err
		}
		args = append(args, v)
	}
	return args, nil
}

func intBounds(name string, lo, hi int64) Constraint {
	return constraintFunc{name: name, match: func(s string) bool {
		v, err := strconv.ParseInt(s, 10, 64)
		return err == nil && v >= lo && v <= hi
	}}
}

func lengthBounds(name string, lo, hi int64) Constraint {
	return constraintFunc{name: name, match: func(s string) bool {
		n := int64(utf8.RuneCountInString(s))
		return n >= lo && n <= hi
	}}
}

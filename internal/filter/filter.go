// Package filter selects agenda items by month, weekday, time window and include rules.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cpuguy83/agenda/internal/calendar"
	"github.com/cpuguy83/agenda/internal/config"
)

// Filter applies the configured include rules to agenda items.
// With no rules every item passes.
type Filter struct {
	all   bool // "and" mode
	rules []rule
}

type rule struct {
	field func(*calendar.Event) string
	match func(string) bool
}

// fields maps rule field names, English or Spanish, to accessors.
var fields = map[string]func(*calendar.Event) string{
	"title":       func(e *calendar.Event) string { return e.Title },
	"type":        func(e *calendar.Event) string { return string(e.Type) },
	"status":      func(e *calendar.Event) string { return string(e.Status) },
	"councillor":  func(e *calendar.Event) string { return e.Councillor.FullName() },
	"source":      func(e *calendar.Event) string { return e.Source },
	"description": func(e *calendar.Event) string { return e.Description },
	"location":    func(e *calendar.Event) string { return e.Location },
}

func init() {
	for alias, name := range map[string]string{
		"summary":   "title",
		"nombre":    "title",
		"tipo":      "type",
		"estado":    "status",
		"consejero": "councillor",
		"calendar":  "source",
	} {
		fields[alias] = fields[name]
	}
}

// New compiles the rules in cfg.
func New(cfg config.FilterConfig) (*Filter, error) {
	f := &Filter{all: strings.EqualFold(cfg.Mode, "and")}
	for i, r := range cfg.Rules {
		compiled, err := compileRule(r)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		f.rules = append(f.rules, compiled)
	}
	return f, nil
}

func compileRule(r config.FilterRule) (rule, error) {
	field, ok := fields[strings.ToLower(r.Field)]
	if !ok {
		return rule{}, fmt.Errorf("unknown field %q", r.Field)
	}

	if r.Regex != "" {
		expr := r.Regex
		if r.CaseInsensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return rule{}, fmt.Errorf("invalid regex %q: %w", r.Regex, err)
		}
		return rule{field: field, match: re.MatchString}, nil
	}

	var (
		pattern string
		cmp     func(value, pattern string) bool
	)
	switch {
	case r.Exact != "":
		pattern, cmp = r.Exact, func(v, p string) bool { return v == p }
	case r.Prefix != "":
		pattern, cmp = r.Prefix, strings.HasPrefix
	case r.Suffix != "":
		pattern, cmp = r.Suffix, strings.HasSuffix
	case r.Contains != "":
		pattern, cmp = r.Contains, strings.Contains
	default:
		return rule{}, fmt.Errorf("no match pattern specified (use contains, exact, prefix, suffix, or regex)")
	}

	if r.CaseInsensitive {
		pattern = strings.ToLower(pattern)
		return rule{field: field, match: func(v string) bool { return cmp(strings.ToLower(v), pattern) }}, nil
	}
	return rule{field: field, match: func(v string) bool { return cmp(v, pattern) }}, nil
}

// Apply returns the items matching the rules, in order.
func (f *Filter) Apply(events []calendar.Event) []calendar.Event {
	if f == nil || len(f.rules) == 0 {
		return events
	}
	var out []calendar.Event
	for i := range events {
		if f.matches(&events[i]) {
			out = append(out, events[i])
		}
	}
	return out
}

// matches needs every rule in "and" mode and any rule otherwise.
func (f *Filter) matches(e *calendar.Event) bool {
	for _, r := range f.rules {
		if r.match(r.field(e)) != f.all {
			return !f.all
		}
	}
	return f.all
}

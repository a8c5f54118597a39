package engine

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

const dateLayout = "2006-01-02"

type FieldKind string

const (
	KindString FieldKind = "string"
	KindEmail  FieldKind = "email"
	KindDate   FieldKind = "date"
)

// PatternRule fails when the value does not match Pattern.
type PatternRule struct {
	Pattern *regexp.Regexp
	Message string
}

// FieldRule validates one body field.
type FieldRule struct {
	Field     string
	Kind      FieldKind
	Required  bool
	Nullable  bool
	MinLength int
	MaxLength int
	Patterns  []PatternRule
}

// ExpressionRule is evaluated with expr-lang after the field rules pass. The
// expression describes a violation: it must evaluate to false for the value
// to be accepted. The environment holds "value" (dates are time.Time) and
// "today" (midnight UTC).
type ExpressionRule struct {
	Field      string
	Expression string
	Message    string
	program    *vm.Program
}

// RuleSet is the validation of a request body.
type RuleSet struct {
	Fields      []FieldRule
	Expressions []*ExpressionRule
}

func expressionEnv() map[string]any {
	return map[string]any{"value": time.Time{}, "today": time.Time{}}
}

// CompileExpression compiles an expression rule once; programs are safe for
// concurrent runs.
func CompileExpression(expression string) (*vm.Program, error) {
	prog, err := expr.Compile(expression, expr.Env(expressionEnv()), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile expression: %w", err)
	}
	return prog, nil
}

func mustExpression(field, expression, message string) *ExpressionRule {
	prog, err := CompileExpression(expression)
	if err != nil {
		panic(err)
	}
	return &ExpressionRule{Field: field, Expression: expression, Message: message, program: prog}
}

var passwordPatterns = []PatternRule{
	{Pattern: regexp.MustCompile(`[a-z]`), Message: "The password field must contain at least one lowercase letter."},
	{Pattern: regexp.MustCompile(`[A-Z]`), Message: "The password field must contain at least one uppercase letter."},
	{Pattern: regexp.MustCompile(`[0-9]`), Message: "The password field must contain at least one number."},
	{Pattern: regexp.MustCompile(`[@$!%*#?&]`), Message: "The password field must contain at least one symbol (@$!%*#?&)."},
}

// TaskRules validate task creation and update.
var TaskRules = &RuleSet{
	Fields: []FieldRule{
		{Field: "title", Kind: KindString, Required: true, MaxLength: 255},
		{Field: "description", Kind: KindString, Nullable: true},
		{Field: "due_date", Kind: KindDate, Required: true},
	},
	Expressions: []*ExpressionRule{
		mustExpression("due_date", "value <= today", "The due date field must be a date after today."),
	},
}

// RegisterRules validate registration and user updates.
var RegisterRules = &RuleSet{
	Fields: []FieldRule{
		{Field: "name", Kind: KindString, Required: true, MaxLength: 255},
		{Field: "email", Kind: KindEmail, Required: true, MaxLength: 255},
		{Field: "password", Kind: KindString, Required: true, MinLength: 8, Patterns: passwordPatterns},
	},
}

// LoginRules validate login credentials.
var LoginRules = &RuleSet{
	Fields: []FieldRule{
		{Field: "email", Kind: KindEmail, Required: true, MaxLength: 255},
		{Field: "password", Kind: KindString, Required: true},
	},
}

// Validate checks body against the rule set. It returns the accepted values
// (declared fields only; dates normalized to YYYY-MM-DD) and the failures per
// field, empty when the body is valid.
func (rs *RuleSet) Validate(body map[string]any, now time.Time) (map[string]any, map[string][]string) {
	values := make(map[string]any, len(rs.Fields))
	errs := map[string][]string{}
	parsed := map[string]any{}

	for _, r := range rs.Fields {
		raw, present := body[r.Field]
		label := fieldLabel(r.Field)

		if !present || raw == nil || raw == "" {
			switch {
			case r.Required:
				errs[r.Field] = append(errs[r.Field], fmt.Sprintf("The %s field is required.", label))
			case present && r.Nullable:
				values[r.Field] = nil
			}
			continue
		}

		s, ok := raw.(string)
		if !ok {
			errs[r.Field] = append(errs[r.Field], fmt.Sprintf("The %s field must be a string.", label))
			continue
		}

		if msgs := r.check(s, label); len(msgs) > 0 {
			errs[r.Field] = append(errs[r.Field], msgs...)
			continue
		}

		switch r.Kind {
		case KindDate:
			t, _ := parseDate(s)
			parsed[r.Field] = t.Truncate(24 * time.Hour)
			values[r.Field] = t.Format(dateLayout)
		case KindEmail:
			values[r.Field] = strings.TrimSpace(s)
			parsed[r.Field] = values[r.Field]
		default:
			values[r.Field] = s
			parsed[r.Field] = s
		}
	}

	today := now.UTC().Truncate(24 * time.Hour)
	for _, er := range rs.Expressions {
		v, ok := parsed[er.Field]
		if !ok {
			continue
		}
		violated, err := er.evaluate(v, today)
		if err != nil {
			errs[er.Field] = append(errs[er.Field], fmt.Sprintf("The %s field is invalid.", fieldLabel(er.Field)))
			continue
		}
		if violated {
			errs[er.Field] = append(errs[er.Field], er.Message)
			delete(values, er.Field)
		}
	}

	return values, errs
}

func (r FieldRule) check(s, label string) []string {
	var msgs []string
	n := utf8.RuneCountInString(s)
	if r.MaxLength > 0 && n > r.MaxLength {
		msgs = append(msgs, fmt.Sprintf("The %s field must not be greater than %d characters.", label, r.MaxLength))
	}
	if r.MinLength > 0 && n < r.MinLength {
		msgs = append(msgs, fmt.Sprintf("The %s field must be at least %d characters.", label, r.MinLength))
	}
	switch r.Kind {
	case KindEmail:
		if !validEmail(s) {
			msgs = append(msgs, fmt.Sprintf("The %s field must be a valid email address.", label))
		}
	case KindDate:
		if _, ok := parseDate(s); !ok {
			msgs = append(msgs, fmt.Sprintf("The %s field must be a valid date.", label))
		}
	}
	for _, p := range r.Patterns {
		if !p.Pattern.MatchString(s) {
			msgs = append(msgs, p.Message)
		}
	}
	return msgs
}

func (er *ExpressionRule) evaluate(value any, today time.Time) (bool, error) {
	prog := er.program
	if prog == nil {
		compiled, err := CompileExpression(er.Expression)
		if err != nil {
			return false, err
		}
		prog = compiled
	}
	result, err := expr.Run(prog, map[string]any{"value": value, "today": today})
	if err != nil {
		return false, fmt.Errorf("evaluate %s: %w", er.Field, err)
	}
	violated, _ := result.(bool)
	return violated, nil
}

func validEmail(s string) bool {
	addr, err := mail.ParseAddress(s)
	return err == nil && addr.Address == s && strings.Contains(s, "@")
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range []string{dateLayout, time.RFC3339, "2006-01-02 15:04:05"} {
		if t, err := time.Parse(layout, strings.TrimSpace(s)); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

// fieldLabel turns due_date into "due date".
func fieldLabel(field string) string {
	return strings.ReplaceAll(field, "_", " ")
}

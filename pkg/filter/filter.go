// Package filter evaluates an optional CEL expression against candidate
// images before they are downloaded.
//
//	width >= 2560 && source != "unsplash"
//	title.contains("night") || score > 100
//
// Variables: source, url, title, id (string); width, height, score (int).
// Width and height are zero when the API does not report them.
package filter

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"wallgrab/pkg/sources"
)

// Filter is a compiled expression. The zero value accepts everything.
type Filter struct {
	expr    string
	prog    cel.Program
	enabled bool
}

// Compile parses and type-checks expr. An empty expression yields a
// disabled filter.
func Compile(expr string) (*Filter, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return &Filter{}, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("source", cel.StringType),
		cel.Variable("url", cel.StringType),
		cel.Variable("title", cel.StringType),
		cel.Variable("id", cel.StringType),
		cel.Variable("width", cel.IntType),
		cel.Variable("height", cel.IntType),
		cel.Variable("score", cel.IntType),
	)
	if err != nil {
		return nil, err
	}
	ast, iss := env.Parse(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, iss.Err())
	}
	checked, iss := env.Check(ast)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("invalid filter %q: %w", expr, iss.Err())
	}
	if kind := checked.OutputType().Kind(); kind != types.BoolKind && kind != types.DynKind {
		return nil, fmt.Errorf("invalid filter %q: must evaluate to bool, got %s", expr, checked.OutputType())
	}
	prog, err := env.Program(checked)
	if err != nil {
		return nil, err
	}
	return &Filter{expr: expr, prog: prog, enabled: true}, nil
}

// Enabled reports whether an expression was compiled
func (f *Filter) Enabled() bool {
	return f != nil && f.enabled
}

func (f *Filter) String() string {
	if f == nil {
		return ""
	}
	return f.expr
}

// Match evaluates the expression for c. Evaluation errors and non-bool
// results reject the candidate.
func (f *Filter) Match(c sources.Candidate) bool {
	if !f.Enabled() {
		return true
	}
	out, _, err := f.prog.Eval(map[string]any{
		"source": c.Source,
		"url":    c.URL,
		"title":  c.Title,
		"id":     c.ID,
		"width":  int64(c.Width),
		"height": int64(c.Height),
		"score":  int64(c.Score),
	})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}

package fbreak

import (
	"context"
	"fmt"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/johnranson/formatbreaker/pkg/datasource"
)

// count is a repetition quantity: a literal non-negative int, or a context
// key resolved outward at read time.
type count struct {
	literal int
	key     string
}

func makeCount(qty any) count {
	switch q := qty.(type) {
	case int:
		if q < 0 {
			constructionFail("repeat count %d is negative", q)
		}
		return count{literal: q}
	case string:
		if q == "" {
			constructionFail("repeat count key must not be empty")
		}
		return count{key: q}
	default:
		constructionFail("repeat count must be an int or a context key, got %T", qty)
		return count{}
	}
}

func (q count) resolve(c *Context) (int, error) {
	if q.key == "" {
		return q.literal, nil
	}
	v, err := c.Get(q.key)
	if err != nil {
		return 0, err
	}
	n, ok := toInt(v)
	if !ok {
		return 0, fmt.Errorf("context entry %q is not an integer count: %T", q.key, v)
	}
	if n < 0 {
		return 0, fmt.Errorf("context entry %q resolved to negative count %d", q.key, n)
	}
	return n, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int8:
		return int(n), true
	case int16:
		return int(n), true
	case int32:
		return int(n), true
	case int64:
		return int(n), true
	case uint8:
		return int(n), true
	case uint16:
		return int(n), true
	case uint32:
		return int(n), true
	case uint64:
		return int(n), true
	default:
		return 0, false
	}
}

// inherit copies positional configuration from a wrapped parser onto its
// modifier so the modifier occupies the same structural slot. The wrapped
// parser keeps doing its own reads unpinned inside the regions the modifier
// opens.
func inherit(inner Parser) (outer, stripped Parser) {
	stripped = inner
	stripped.addr = unpinned
	outer = Parser{addr: inner.addr, mode: inner.mode, backup: inner.backup}
	return outer, stripped
}

// Repeat runs the wrapped parser count times and merges every iteration's
// entries flat into the surrounding scope, so repeated labels come out
// suffix-disambiguated ("field", "field 1", "field 2", ...). An iteration
// error aborts the whole Repeat.
func Repeat(parser Parser, qty any) Parser {
	if !parser.constructed() {
		constructionFail("Repeat wraps a zero-value parser")
	}
	q := makeCount(qty)
	p, inner := inherit(parser)
	p.flatten = true
	p.read = func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
		reps, err := q.resolve(c)
		if err != nil {
			return nil, err
		}
		acc := c.NewChild()
		for i := 0; i < reps; i++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			if err := repeatOnce(ctx, inner, reg, acc); err != nil {
				return nil, fmt.Errorf("repeat iteration %d: %w", i, err)
			}
		}
		return acc, nil
	}
	return p
}

func repeatOnce(ctx context.Context, inner Parser, reg *datasource.Region, acc *Context) error {
	iter, err := reg.OpenChild(true, datasource.Parent, false)
	if err != nil {
		return err
	}
	defer iter.Close()
	sub := acc.NewChild()
	if err := inner.readField(ctx, iter, sub); err != nil {
		return err
	}
	sub.Promote()
	return iter.Commit()
}

// Array runs the wrapped parser count times and collects an ordered slice
// of exactly count slots: the decoded value, the nested mapping for a
// container, or nil for a slot whose read reverted inside an optional
// wrapper. A slot failure outside an optional wrapper aborts the whole
// Array.
func Array(parser Parser, qty any) Parser {
	if !parser.constructed() {
		constructionFail("Array wraps a zero-value parser")
	}
	q := makeCount(qty)
	p, inner := inherit(parser)
	p.label = parser.label
	p.read = func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
		reps, err := q.resolve(c)
		if err != nil {
			return nil, err
		}
		results := make([]any, 0, reps)
		for i := 0; i < reps; i++ {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			default:
			}
			slot, err := arraySlot(ctx, inner, reg, c)
			if err != nil {
				return nil, fmt.Errorf("array slot %d: %w", i, err)
			}
			results = append(results, slot)
		}
		return results, nil
	}
	return p
}

func arraySlot(ctx context.Context, inner Parser, reg *datasource.Region, c *Context) (any, error) {
	iter, err := reg.OpenChild(true, datasource.Parent, false)
	if err != nil {
		return nil, err
	}
	defer iter.Close()
	v, err := inner.readAndTranslate(ctx, iter, c.NewChild())
	if err != nil {
		return nil, err
	}
	if err := iter.Commit(); err != nil {
		return nil, err
	}
	switch out := v.(type) {
	case Marker:
		return nil, nil
	case *Context:
		return out.Snapshot(), nil
	default:
		return out, nil
	}
}

// Translate wraps a parser and replaces its identity translate step with fn,
// called exactly once per successful read, before storage. Errors from the
// wrapped parser propagate unchanged.
func Translate(parser Parser, fn TranslateFunc, backup ...string) Parser {
	if !parser.constructed() {
		constructionFail("Translate wraps a zero-value parser")
	}
	if fn == nil {
		constructionFail("Translate requires a translate function")
	}
	p := parser
	prev := parser.translate
	p.translate = func(v any) (any, error) {
		if prev != nil {
			var err error
			if v, err = prev(v); err != nil {
				return nil, err
			}
		}
		return fn(v)
	}
	if len(backup) > 0 && backup[0] != "" {
		p.backup = backup[0]
	}
	return p
}

// TranslateExpr is Translate with an expr program compiled at construction.
// The raw decoded value is bound as "value" in the expression environment.
func TranslateExpr(parser Parser, src string) Parser {
	program, err := expr.Compile(src, expr.AllowUndefinedVariables())
	if err != nil {
		constructionFail("translate expression %q: %v", src, err)
	}
	return Translate(parser, runExpr(program, src))
}

func runExpr(program *vm.Program, src string) TranslateFunc {
	return func(v any) (any, error) {
		out, err := expr.Run(program, map[string]any{"value": v})
		if err != nil {
			return nil, fmt.Errorf("%w: translate expression %q: %w", ErrParse, src, err)
		}
		return out, nil
	}
}

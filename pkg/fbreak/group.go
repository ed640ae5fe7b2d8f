package fbreak

import (
	"context"

	"github.com/johnranson/formatbreaker/pkg/datasource"
)

// Addressing modes, re-exported so layouts can be built without importing
// the datasource package.
const (
	ByteMode   = datasource.Byte
	BitMode    = datasource.Bit
	ParentMode = datasource.Parent
)

// GroupOption adjusts how a Block or Section scopes its children.
type GroupOption func(*groupConfig)

type groupConfig struct {
	relative bool
	mode     datasource.AddrType
	optional bool
}

// Absolute makes the container share its parent's coordinate space instead
// of re-zeroing child addresses at the container's start.
func Absolute() GroupOption {
	return func(g *groupConfig) { g.relative = false }
}

// WithMode sets the addressing mode for the container's scope.
func WithMode(mode datasource.AddrType) GroupOption {
	return func(g *groupConfig) { g.mode = mode }
}

// AsOptional makes the container revertible: if any child fails with a
// parse error, the cursor is rolled back and the container stores nothing.
func AsOptional() GroupOption {
	return func(g *groupConfig) { g.optional = true }
}

func groupRead(elements []Parser, cfg groupConfig) ReadFunc {
	return func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		child, err := reg.OpenChild(cfg.relative, cfg.mode, cfg.optional)
		if err != nil {
			return nil, err
		}
		defer child.Close()

		sub := c.NewChild()
		for _, element := range elements {
			if err := element.readField(ctx, child, sub); err != nil {
				if cfg.optional && recoverable(err) {
					reg.Logger().DebugContext(ctx, "optional group reverted", "cause", err)
					return Reverted, nil
				}
				return nil, err
			}
		}
		if err := child.Commit(); err != nil {
			return nil, err
		}
		return sub, nil
	}
}

func buildGroup(elements []Parser, backup string, flatten bool, opts []GroupOption) Parser {
	for i, element := range elements {
		if !element.constructed() {
			constructionFail("%s element %d is not a constructed parser", backup, i)
		}
	}
	cfg := groupConfig{relative: true, mode: datasource.Parent}
	for _, opt := range opts {
		opt(&cfg)
	}
	p := newParser(groupRead(elements, cfg), backup, cfg.mode)
	p.flatten = flatten
	return p
}

// Block is an ordered container whose accumulated entries are transparent:
// unlabeled, they are promoted directly into the caller's scope; labeled,
// they are stored as one nested mapping under the label.
func Block(elements []Parser, opts ...GroupOption) Parser {
	return buildGroup(elements, "Block", true, opts)
}

// Section is an ordered container that always keeps its entries as a
// distinct nested mapping, stored under its label or, when unlabeled, under
// its backup label and start address. Descendants still see ancestor fields
// through the context chain.
func Section(elements []Parser, opts ...GroupOption) Parser {
	return buildGroup(elements, "Section", false, opts)
}

// Optional is a Section whose region is revertible: if its children fail to
// match, the cursor is restored and parsing continues after it.
func Optional(elements []Parser, opts ...GroupOption) Parser {
	return Section(elements, append(opts, AsOptional())...)
}

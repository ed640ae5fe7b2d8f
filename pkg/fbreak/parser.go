package fbreak

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/johnranson/formatbreaker/pkg/datasource"
)

// Marker is a valueless read outcome, structurally distinct from decoded
// values and from nil.
type Marker int

const (
	// Success reports a read that already stored its effect (or had none).
	Success Marker = iota + 1
	// Reverted reports an optional region that failed and was rolled back.
	Reverted
)

func (m Marker) String() string {
	if m == Reverted {
		return "Reverted"
	}
	return "Success"
}

// ReadFunc performs one parse step against the innermost open region. It
// returns a decoded value, a nested *Context, or a Marker. Address pinning
// is the caller's job, never the ReadFunc's.
type ReadFunc func(ctx context.Context, reg *datasource.Region, c *Context) (any, error)

// TranslateFunc post-processes a decoded value before storage.
type TranslateFunc func(value any) (any, error)

const unpinned = int64(-1)

// Parser is one field of a binary layout. Parsers are immutable value
// configurations: the builder methods return modified copies, so one parser
// can be reused as a template at many structural positions.
type Parser struct {
	read      ReadFunc
	translate TranslateFunc
	label     string
	addr      int64
	mode      datasource.AddrType
	backup    string
	flatten   bool
}

func newParser(read ReadFunc, backup string, mode datasource.AddrType) Parser {
	return Parser{read: read, backup: backup, mode: mode, addr: unpinned}
}

// At pins the field to start at addr within its enclosing scope. Any gap up
// to addr is captured as a spacer entry; a cursor already past addr is a
// fatal address error. Negative addresses are rejected at construction.
func (p Parser) At(addr int64) Parser {
	if addr < 0 {
		constructionFail("target address %d is negative", addr)
	}
	p.addr = addr
	return p
}

// Label names the entry this field stores. Unlabeled fields fall back to
// their backup label combined with their start address.
func (p Parser) Label(name string) Parser {
	if name == "" {
		constructionFail("label must not be empty")
	}
	p.label = name
	return p
}

// Times wraps the parser in a Repeat with the given count (int literal or
// context key).
func (p Parser) Times(count any) Parser { return Repeat(p, count) }

// ArrayOf wraps the parser in an Array with the given count (int literal or
// context key).
func (p Parser) ArrayOf(count any) Parser { return Array(p, count) }

// Mode returns the parser's addressing mode.
func (p Parser) Mode() datasource.AddrType { return p.mode }

func (p Parser) constructed() bool { return p.read != nil }

// storeKey resolves the key this field stores under, given its start
// address in the current scope.
func (p Parser) storeKey(start int64) (string, error) {
	switch {
	case p.label != "":
		return p.label, nil
	case p.backup != "":
		return fmt.Sprintf("%s_0x%x", p.backup, start), nil
	default:
		return "", fmt.Errorf("field at address 0x%x produced data but has no label", start)
	}
}

// readAndTranslate runs the raw read and applies the translate step exactly
// once per successful read. Markers pass through untranslated.
func (p Parser) readAndTranslate(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
	v, err := p.read(ctx, reg, c)
	if err != nil {
		return nil, err
	}
	if m, ok := v.(Marker); ok {
		return m, nil
	}
	if p.translate == nil {
		return v, nil
	}
	return p.translate(v)
}

// readField is the full per-field cycle: resolve the pinned address, read
// and translate, then store the outcome into the innermost context frame.
func (p Parser) readField(ctx context.Context, reg *datasource.Region, c *Context) error {
	if p.addr != unpinned {
		if err := applySpacer(reg, c, p.addr); err != nil {
			return err
		}
	}
	start := reg.Address()
	result, err := p.readAndTranslate(ctx, reg, c)
	if err != nil {
		return err
	}
	switch out := result.(type) {
	case Marker:
		return nil
	case *Context:
		if p.flatten && p.label == "" {
			out.Promote()
			return nil
		}
		key, err := p.storeKey(start)
		if err != nil {
			return err
		}
		c.Set(key, out.Snapshot())
		return nil
	case nil:
		return fmt.Errorf("field at address 0x%x returned no result", start)
	default:
		key, err := p.storeKey(start)
		if err != nil {
			return err
		}
		c.Set(key, out)
		return nil
	}
}

// ParseOption configures a single Parse call.
type ParseOption func(*parseOptions)

type parseOptions struct {
	logger *slog.Logger
}

// WithLogger routes parse-time debug events to the given logger.
func WithLogger(logger *slog.Logger) ParseOption {
	return func(o *parseOptions) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// Parse walks data from the beginning and returns the accumulated result
// mapping: decoded leaf values, nested mappings for labeled containers,
// slices for arrays, and synthesized spacer_* entries for skipped ranges.
func (p Parser) Parse(ctx context.Context, data []byte, opts ...ParseOption) (*orderedmap.OrderedMap[string, any], error) {
	return p.ParseReader(ctx, nil, data, opts...)
}

// ParseReader is Parse for inputs already behind an io.ReadSeeker. Exactly
// one of r and data must be set.
func (p Parser) ParseReader(ctx context.Context, r io.ReadSeeker, data []byte, opts ...ParseOption) (*orderedmap.OrderedMap[string, any], error) {
	if !p.constructed() {
		constructionFail("parse on a zero-value parser")
	}
	options := parseOptions{logger: slog.Default()}
	for _, opt := range opts {
		opt(&options)
	}

	var (
		src *datasource.DataSource
		err error
	)
	if r != nil {
		src, err = datasource.New(r, p.mode, datasource.WithLogger(options.logger))
	} else {
		src, err = datasource.NewFromBytes(data, p.mode, datasource.WithLogger(options.logger))
	}
	if err != nil {
		return nil, err
	}

	options.logger.DebugContext(ctx, "starting parse", "mode", src.Root().Mode().String())
	root := NewContext()
	if err := p.readField(ctx, src.Root(), root); err != nil {
		return nil, err
	}
	options.logger.DebugContext(ctx, "finished parse", "entries", root.Len())
	return root.Snapshot(), nil
}

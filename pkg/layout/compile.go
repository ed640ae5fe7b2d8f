package layout

import (
	"context"
	"fmt"
	"sync"

	"github.com/elliotchance/orderedmap/v3"

	"github.com/johnranson/formatbreaker/pkg/datasource"
	"github.com/johnranson/formatbreaker/pkg/fbreak"
)

var compiledCache sync.Map // *Schema -> fbreak.Parser

// Compile turns the schema into a parser combinator. Schema problems are
// reported here, never at parse time. Compilation is cached per Schema.
func (s *Schema) Compile() (parser fbreak.Parser, err error) {
	if cached, ok := compiledCache.Load(s); ok {
		return cached.(fbreak.Parser), nil
	}
	defer func() {
		if r := recover(); r != nil {
			if cerr, ok := r.(*fbreak.ConstructionError); ok {
				err = fmt.Errorf("layout %q: %w", s.Meta.ID, cerr)
				return
			}
			panic(r)
		}
	}()
	mode, err := modeFor(s.Meta.Mode)
	if err != nil {
		return fbreak.Parser{}, fmt.Errorf("layout %q: %w", s.Meta.ID, err)
	}
	elements, err := compileFields(s.Fields, s.Meta.ID)
	if err != nil {
		return fbreak.Parser{}, err
	}
	parser = fbreak.Block(elements, fbreak.WithMode(mode))
	compiledCache.Store(s, parser)
	return parser, nil
}

// Parse compiles the schema (cached) and runs it over data.
func (s *Schema) Parse(ctx context.Context, data []byte, opts ...fbreak.ParseOption) (*orderedmap.OrderedMap[string, any], error) {
	parser, err := s.Compile()
	if err != nil {
		return nil, err
	}
	return parser.Parse(ctx, data, opts...)
}

func modeFor(name string) (datasource.AddrType, error) {
	switch name {
	case "", "byte":
		return datasource.Byte, nil
	case "bit":
		return datasource.Bit, nil
	case "parent":
		return datasource.Parent, nil
	default:
		return datasource.Undefined, fmt.Errorf("unknown addressing mode %q", name)
	}
}

func compileFields(defs []FieldDef, path string) ([]fbreak.Parser, error) {
	elements := make([]fbreak.Parser, 0, len(defs))
	for i, def := range defs {
		at := fmt.Sprintf("%s.fields[%d]", path, i)
		p, err := compileField(def, at)
		if err != nil {
			return nil, err
		}
		elements = append(elements, p)
	}
	return elements, nil
}

func compileField(def FieldDef, path string) (fbreak.Parser, error) {
	p, err := baseField(def, path)
	if err != nil {
		return fbreak.Parser{}, err
	}
	if def.Translate != "" {
		p = fbreak.TranslateExpr(p, def.Translate)
	}
	if def.Label != "" {
		p = p.Label(def.Label)
	}
	if def.At != nil {
		p = p.At(*def.At)
	}
	if def.Repeat != nil && def.Array != nil {
		return fbreak.Parser{}, fmt.Errorf("%s: repeat and array are mutually exclusive", path)
	}
	if def.Repeat != nil {
		p = p.Times(normalizeQty(def.Repeat))
	}
	if def.Array != nil {
		p = p.ArrayOf(normalizeQty(def.Array))
	}
	return p, nil
}

func baseField(def FieldDef, path string) (fbreak.Parser, error) {
	switch def.Type {
	case "byte":
		return fbreak.Byte, nil
	case "bytes":
		if def.Size == nil {
			return fbreak.Parser{}, fmt.Errorf("%s: bytes field requires a size", path)
		}
		return fbreak.Bytes(normalizeQty(def.Size)), nil
	case "bit":
		return fbreak.Bit, nil
	case "bits":
		n, ok := def.Size.(int)
		if !ok {
			return fbreak.Parser{}, fmt.Errorf("%s: bits field requires a literal size", path)
		}
		return fbreak.BitWord(n), nil
	case "str":
		if def.Size == nil {
			return fbreak.Parser{}, fmt.Errorf("%s: str field requires a size", path)
		}
		return fbreak.Text(normalizeQty(def.Size), def.Encoding), nil
	case "const":
		if def.Contents == "" {
			return fbreak.Parser{}, fmt.Errorf("%s: const field requires contents", path)
		}
		return fbreak.Const([]byte(def.Contents)), nil
	case "remnant":
		return fbreak.Remnant, nil
	case "end":
		return fbreak.End, nil
	case "fail":
		return fbreak.Fail, nil
	case "pad":
		if def.At == nil {
			return fbreak.Parser{}, fmt.Errorf("%s: pad field requires an at address", path)
		}
		return fbreak.PadTo(*def.At), nil
	case "block", "section":
		return compileGroup(def, path)
	default:
		return fbreak.Parser{}, fmt.Errorf("%s: unknown field type %q", path, def.Type)
	}
}

func compileGroup(def FieldDef, path string) (fbreak.Parser, error) {
	if len(def.Fields) == 0 {
		return fbreak.Parser{}, fmt.Errorf("%s: %s requires nested fields", path, def.Type)
	}
	elements, err := compileFields(def.Fields, path)
	if err != nil {
		return fbreak.Parser{}, err
	}
	opts := []fbreak.GroupOption{}
	if def.Mode != "" {
		mode, err := modeFor(def.Mode)
		if err != nil {
			return fbreak.Parser{}, fmt.Errorf("%s: %w", path, err)
		}
		opts = append(opts, fbreak.WithMode(mode))
	}
	if def.Relative != nil && !*def.Relative {
		opts = append(opts, fbreak.Absolute())
	}
	if def.Optional {
		opts = append(opts, fbreak.AsOptional())
	}
	if def.Type == "section" {
		return fbreak.Section(elements, opts...), nil
	}
	return fbreak.Block(elements, opts...), nil
}

// normalizeQty widens the integer kinds yaml.v3 may produce into plain ints
// and passes context-key strings through.
func normalizeQty(v any) any {
	if n, ok := v.(int); ok {
		return n
	}
	if n, ok := v.(int64); ok {
		return int(n)
	}
	if n, ok := v.(uint64); ok {
		return int(n)
	}
	return v
}

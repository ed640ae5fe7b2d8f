package fbreak

import (
	"bytes"
	"context"
	"fmt"

	"github.com/johnranson/formatbreaker/pkg/datasource"
)

// length is a byte or bit length: a literal int meeting a minimum, or a
// context key resolved outward at read time.
type length struct {
	literal int
	key     string
}

func makeLength(l any, min int) length {
	switch v := l.(type) {
	case int:
		if v < min {
			constructionFail("length %d is below the minimum of %d", v, min)
		}
		return length{literal: v}
	case string:
		if v == "" {
			constructionFail("length key must not be empty")
		}
		return length{key: v}
	default:
		constructionFail("length must be an int or a context key, got %T", l)
		return length{}
	}
}

func (l length) resolve(c *Context, min int) (int, error) {
	if l.key == "" {
		return l.literal, nil
	}
	v, err := c.Get(l.key)
	if err != nil {
		return 0, err
	}
	n, ok := toInt(v)
	if !ok {
		return 0, fmt.Errorf("context entry %q is not an integer length: %T", l.key, v)
	}
	if n < min {
		return 0, fmt.Errorf("context entry %q resolved to length %d, below the minimum of %d", l.key, n, min)
	}
	return n, nil
}

// Byte reads a single byte.
var Byte = newParser(
	func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
		b, err := reg.ReadBytes(1)
		return b, asParseError(err)
	},
	"Byte", datasource.Byte,
)

// Bytes reads a run of bytes. The length is a literal int >= 1 or a context
// key that must resolve to an int >= 1 by the time the field is read.
func Bytes(byteLength any) Parser {
	l := makeLength(byteLength, 1)
	return newParser(
		func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
			n, err := l.resolve(c, 1)
			if err != nil {
				return nil, err
			}
			b, err := reg.ReadBytes(n)
			return b, asParseError(err)
		},
		"Bytes", datasource.Undefined,
	)
}

// BytesVar reads a run of bytes whose length comes from an already parsed
// field named by source.
func BytesVar(source string) Parser {
	p := Bytes(source)
	p.backup = "VarBytes"
	return p
}

// Bit reads a single bit as a bool.
var Bit = newParser(
	func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
		b, err := reg.ReadBits(1)
		if err != nil {
			return nil, asParseError(err)
		}
		return b.At(0), nil
	},
	"Bit", datasource.Bit,
)

// BitWord reads bitLength bits as a bitwise.Bytes value.
func BitWord(bitLength int) Parser {
	if bitLength < 1 {
		constructionFail("bit length %d is below the minimum of 1", bitLength)
	}
	return newParser(
		func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
			b, err := reg.ReadBits(bitLength)
			if err != nil {
				return nil, asParseError(err)
			}
			return b, nil
		},
		"BitWord", datasource.Bit,
	)
}

// Remnant reads everything left in the data.
var Remnant = newParser(
	func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
		b, err := reg.ReadRest()
		return b, asParseError(err)
	},
	"Remnant", datasource.Undefined,
)

// PadTo produces a spacer up to addr without storing data of its own.
func PadTo(addr int64) Parser {
	p := newParser(
		func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
			return Success, nil
		},
		"", datasource.Undefined,
	)
	return p.At(addr)
}

// End fails the parse if any data remains.
var End = newParser(
	func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
		if left := reg.Remaining(); left > 0 {
			return nil, fmt.Errorf("%w: %d units of trailing data at address 0x%x", ErrParse, left, reg.Address())
		}
		return Success, nil
	},
	"", datasource.Undefined,
)

// Fail always raises a parse error. Useful as the last branch of a chain of
// optional alternatives.
var Fail = newParser(
	func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
		return nil, fmt.Errorf("%w: unconditional failure marker at address 0x%x", ErrParse, reg.Address())
	},
	"", datasource.Undefined,
)

// Const reads len(want) bytes and fails the parse unless they equal want.
func Const(want []byte) Parser {
	if len(want) == 0 {
		constructionFail("constant must not be empty")
	}
	expected := append([]byte(nil), want...)
	return newParser(
		func(ctx context.Context, reg *datasource.Region, c *Context) (any, error) {
			got, err := reg.ReadBytes(len(expected))
			if err != nil {
				return nil, asParseError(err)
			}
			if !bytes.Equal(got, expected) {
				return nil, fmt.Errorf("%w: expected constant % x, got % x", ErrParse, expected, got)
			}
			return got, nil
		},
		"Const", datasource.Byte,
	)
}

package fbreak

import (
	"context"
	"fmt"
	"testing"

	"github.com/elliotchance/orderedmap/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRepeatProducesSuffixedFlatKeys(t *testing.T) {
	frame := Repeat(Byte.Label("x"), 3)
	out := parseOne(t, frame, []byte{1, 2, 3})

	assert.Equal(t, []byte{1}, out["x"])
	assert.Equal(t, []byte{2}, out["x 1"])
	assert.Equal(t, []byte{3}, out["x 2"])
}

func TestRepeatCountFromContext(t *testing.T) {
	frame := Block([]Parser{
		TranslateExpr(Byte, "int(value[0])").Label("count"),
		Bytes(2).Label("pair").Times("count"),
	})
	out := parseOne(t, frame, []byte{0x02, 1, 2, 3, 4})

	assert.Equal(t, []byte{1, 2}, out["pair"])
	assert.Equal(t, []byte{3, 4}, out["pair 1"])
}

func TestRepeatZeroCountIsANoOp(t *testing.T) {
	frame := Block([]Parser{
		Byte.Label("a").Times(0),
		Byte.Label("b"),
	})
	out := parseOne(t, frame, []byte{9})
	assert.Len(t, out, 1)
	assert.Equal(t, []byte{9}, out["b"])
}

func TestRepeatOfStructuredReads(t *testing.T) {
	record := Block([]Parser{
		Byte.Label("kind"),
		Byte.Label("value"),
	})
	out := parseOne(t, Repeat(record, 2), []byte{1, 2, 3, 4})

	assert.Equal(t, []byte{1}, out["kind"])
	assert.Equal(t, []byte{2}, out["value"])
	assert.Equal(t, []byte{3}, out["kind 1"])
	assert.Equal(t, []byte{4}, out["value 1"])
}

func TestRepeatMissingCountKeyIsFatal(t *testing.T) {
	frame := Repeat(Byte, "missing")
	_, err := frame.Parse(context.Background(), []byte{1})
	require.Error(t, err)
	var lookupErr *LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "missing", lookupErr.Key)
}

func TestRepeatNonIntegerCountIsFatal(t *testing.T) {
	frame := Block([]Parser{
		Bytes(2).Label("tag"),
		Byte.Times("tag"),
	})
	_, err := frame.Parse(context.Background(), []byte{1, 2, 3})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrParse)
}

func TestRepeatAbortsOnChildError(t *testing.T) {
	frame := Repeat(Bytes(2), 3)
	_, err := frame.Parse(context.Background(), []byte{1, 2, 3})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestRepeatConstruction(t *testing.T) {
	assert.Panics(t, func() { Repeat(Byte, -1) })
	assert.Panics(t, func() { Repeat(Byte, 1.5) })
	assert.Panics(t, func() { Repeat(Parser{}, 1) })
}

func TestArrayCollectsOrderedSlots(t *testing.T) {
	out := parseOne(t, Array(Byte, 3), []byte{7, 8, 9})

	slots, ok := out["Byte_0x0"].([]any)
	require.True(t, ok)
	require.Len(t, slots, 3)
	assert.Equal(t, []byte{7}, slots[0])
	assert.Equal(t, []byte{8}, slots[1])
	assert.Equal(t, []byte{9}, slots[2])
}

func TestArrayOfContainers(t *testing.T) {
	record := Block([]Parser{Byte.Label("v")})
	out := parseOne(t, Array(record, 2).Label("records"), []byte{1, 2})

	slots := out["records"].([]any)
	require.Len(t, slots, 2)
	first, ok := slots[0].(*orderedmap.OrderedMap[string, any])
	require.True(t, ok)
	v, _ := first.Get("v")
	assert.Equal(t, []byte{1}, v)
}

func TestArrayRevertedSlotIsEmpty(t *testing.T) {
	slot := Optional([]Parser{Const([]byte{0xFF}).Label("hit")})
	out := parseOne(t, Array(slot, 3).Label("hits"), []byte{0xFF, 0x00})

	slots := out["hits"].([]any)
	require.Len(t, slots, 3)
	assert.NotNil(t, slots[0])
	assert.Nil(t, slots[1], "reverted slot should be an empty placeholder")
	assert.Nil(t, slots[2])
}

func TestArrayAbortsOnHardError(t *testing.T) {
	frame := Array(Bytes(4), 3).Label("chunks")
	_, err := frame.Parse(context.Background(), []byte{1, 2, 3, 4, 5, 6})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestArrayCountFromContext(t *testing.T) {
	frame := Block([]Parser{
		TranslateExpr(Byte, "int(value[0])").Label("n"),
		Array(Byte, "n").Label("vals"),
	})
	out := parseOne(t, frame, []byte{2, 10, 20})

	slots := out["vals"].([]any)
	require.Len(t, slots, 2)
	assert.Equal(t, []byte{10}, slots[0])
	assert.Equal(t, []byte{20}, slots[1])
}

func TestTranslateRunsOncePerRead(t *testing.T) {
	calls := 0
	double := Translate(Byte, func(v any) (any, error) {
		calls++
		return int(v.([]byte)[0]) * 2, nil
	})
	out := parseOne(t, double.Label("d"), []byte{21})

	assert.Equal(t, 42, out["d"])
	assert.Equal(t, 1, calls)
}

func TestTranslateErrorPropagates(t *testing.T) {
	bad := Translate(Byte, func(v any) (any, error) {
		return nil, fmt.Errorf("%w: unmappable value", ErrParse)
	})
	_, err := bad.Parse(context.Background(), []byte{1})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrParse)
}

func TestTranslateExpr(t *testing.T) {
	frame := TranslateExpr(Bytes(2), "int(value[0]) * 256 + int(value[1])").Label("be16")
	out := parseOne(t, frame, []byte{0x01, 0x02})
	assert.Equal(t, 258, out["be16"])
}

func TestTranslateExprCompileFailure(t *testing.T) {
	assert.Panics(t, func() { TranslateExpr(Byte, "value +") })
}

func TestModifierKeepsPinnedAddress(t *testing.T) {
	frame := Block([]Parser{
		Byte.Label("head"),
		Repeat(Byte.Label("x").At(4), 2),
	})
	out := parseOne(t, frame, []byte{1, 0, 0, 0, 5, 6})

	// The pin applies once, before the repetition starts.
	assert.Equal(t, []byte{0, 0, 0}, out["spacer_0x1-0x3"])
	assert.Equal(t, []byte{5}, out["x"])
	assert.Equal(t, []byte{6}, out["x 1"])
}

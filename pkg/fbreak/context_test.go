package fbreak

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func keysOf(c *Context) []string {
	keys := make([]string, 0, c.Len())
	for el := c.Snapshot().Front(); el != nil; el = el.Next() {
		keys = append(keys, el.Key)
	}
	return keys
}

func TestContextSetRenamesCollisions(t *testing.T) {
	c := NewContext()
	c.Set("x", 1)
	c.Set("x", 2)
	c.Set("x", 3)

	assert.Equal(t, []string{"x", "x 1", "x 2"}, keysOf(c))
	snap := c.Snapshot()
	v, _ := snap.Get("x")
	assert.Equal(t, 1, v)
	v, _ = snap.Get("x 1")
	assert.Equal(t, 2, v)
	v, _ = snap.Get("x 2")
	assert.Equal(t, 3, v)
}

func TestContextSetWithNumericSuffix(t *testing.T) {
	c := NewContext()
	c.Set("a 1", "first")
	c.Set("a 1", "second")

	assert.Equal(t, []string{"a 1", "a 2"}, keysOf(c))
}

func TestContextGetSearchesOutward(t *testing.T) {
	root := NewContext()
	root.Set("depth", 2)
	child := root.NewChild()
	grandchild := child.NewChild()

	v, err := grandchild.Get("depth")
	require.NoError(t, err)
	assert.Equal(t, 2, v)

	// The innermost frame shadows outer entries.
	grandchild.Set("depth", 9)
	v, err = grandchild.Get("depth")
	require.NoError(t, err)
	assert.Equal(t, 9, v)
}

func TestContextGetMissingKey(t *testing.T) {
	c := NewContext()
	_, err := c.Get("absent")
	require.Error(t, err)
	var lookupErr *LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, "absent", lookupErr.Key)
}

func TestPromotePreservesMultiplicities(t *testing.T) {
	parent := NewContext()
	parent.Set("a", 1)

	child := parent.NewChild()
	child.Set("a", 1)
	child.Set("a", 2) // renamed to "a 1" inside the child

	child.Promote()

	assert.Equal(t, []string{"a", "a 1", "a 2"}, keysOf(parent))
	assert.Equal(t, 0, child.Len())
}

func TestPromoteKeepsInsertionOrder(t *testing.T) {
	parent := NewContext()
	child := parent.NewChild()
	child.Set("first", 1)
	child.Set("second", 2)
	child.Set("third", 3)
	child.Promote()

	assert.Equal(t, []string{"first", "second", "third"}, keysOf(parent))
}

func TestPromoteWithoutParentPanics(t *testing.T) {
	assert.Panics(t, func() { NewContext().Promote() })
}

func TestSnapshotIsACopy(t *testing.T) {
	c := NewContext()
	c.Set("k", "v")
	snap := c.Snapshot()
	snap.Set("extra", true)
	assert.Equal(t, 1, c.Len())
}

package fbreak

import (
	"strconv"
	"strings"

	"github.com/elliotchance/orderedmap/v3"
)

// Context is one frame of the nested result store. Writes land in this
// frame; reads search outward through the parent chain. Entries keep their
// insertion order, and a key is never overwritten: colliding writes are
// renamed with the smallest unused numeric suffix.
type Context struct {
	frame  *orderedmap.OrderedMap[string, any]
	parent *Context
}

// NewContext returns an empty root frame.
func NewContext() *Context {
	return &Context{frame: orderedmap.NewOrderedMap[string, any]()}
}

// NewChild pushes a new innermost frame chained to c.
func (c *Context) NewChild() *Context {
	return &Context{frame: orderedmap.NewOrderedMap[string, any](), parent: c}
}

// Set stores value in this frame under key, renaming on collision. Writing
// "x" three times yields "x", "x 1", "x 2" in write order. A key that
// already carries a numeric suffix renumbers from that suffix upward.
func (c *Context) Set(key string, value any) {
	base := key
	i := 1
	candidate := key
	if cut := strings.LastIndex(key, " "); cut >= 0 {
		if n, err := strconv.Atoi(key[cut+1:]); err == nil && n >= 0 {
			base = key[:cut]
			i = n
			candidate = base + " " + strconv.Itoa(i)
		}
	}
	for {
		if _, exists := c.frame.Get(candidate); !exists {
			break
		}
		candidate = base + " " + strconv.Itoa(i)
		i++
	}
	c.frame.Set(candidate, value)
}

// Get looks key up in this frame, then outward through the enclosing
// frames. A key found nowhere is a fatal *LookupError.
func (c *Context) Get(key string) (any, error) {
	for cur := c; cur != nil; cur = cur.parent {
		if v, ok := cur.frame.Get(key); ok {
			return v, nil
		}
	}
	return nil, &LookupError{Key: key}
}

// Len returns the number of entries in this frame alone.
func (c *Context) Len() int { return c.frame.Len() }

// Promote copies every entry of this frame into the parent frame, applying
// the usual collision renaming, then empties this frame. Promoting a root
// frame is a programming error.
func (c *Context) Promote() {
	if c.parent == nil {
		panic("fbreak: promote on a context with no parent")
	}
	for el := c.frame.Front(); el != nil; el = el.Next() {
		c.parent.Set(el.Key, el.Value)
	}
	c.frame = orderedmap.NewOrderedMap[string, any]()
}

// Snapshot copies this frame into a plain ordered mapping for external
// consumption.
func (c *Context) Snapshot() *orderedmap.OrderedMap[string, any] {
	out := orderedmap.NewOrderedMap[string, any]()
	for el := c.frame.Front(); el != nil; el = el.Next() {
		out.Set(el.Key, el.Value)
	}
	return out
}

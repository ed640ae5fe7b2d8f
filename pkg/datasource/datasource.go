// Package datasource owns the input being parsed and the cursor that walks
// it. The cursor is addressed in bits internally; scoped Regions expose it in
// byte or bit units, support re-zeroed (relative) child regions, and can roll
// the cursor back when a revertible region is closed without a commit.
package datasource

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"

	"github.com/kaitai-io/kaitai_struct_go_runtime/kaitai"

	"github.com/johnranson/formatbreaker/pkg/bitwise"
)

// AddrType selects the unit in which a scope counts addresses and lengths.
type AddrType int

const (
	// Undefined defers the choice of unit to whoever opens the scope.
	Undefined AddrType = iota
	// Parent inherits the enclosing scope's unit.
	Parent
	// Byte counts addresses and lengths in bytes.
	Byte
	// Bit counts addresses and lengths in bits.
	Bit
)

func (t AddrType) String() string {
	switch t {
	case Parent:
		return "parent"
	case Byte:
		return "byte"
	case Bit:
		return "bit"
	default:
		return "undefined"
	}
}

func (t AddrType) unitBits() int64 {
	if t == Bit {
		return 1
	}
	return 8
}

// DataSource wraps the full input behind a kaitai stream and tracks a single
// absolute bit cursor shared by the region stack.
type DataSource struct {
	stream   *kaitai.Stream
	sizeBits int64
	cursor   int64
	logger   *slog.Logger
	root     *Region
}

// Option configures a DataSource.
type Option func(*DataSource)

// WithLogger sets the logger used for cursor-level debug events.
func WithLogger(logger *slog.Logger) Option {
	return func(d *DataSource) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// New builds a DataSource over r with the given root addressing mode.
// Undefined and Parent resolve to byte addressing at the root.
func New(r io.ReadSeeker, mode AddrType, opts ...Option) (*DataSource, error) {
	stream := kaitai.NewStream(r)
	size, err := stream.Size()
	if err != nil {
		return nil, fmt.Errorf("sizing input stream: %w", err)
	}
	if mode == Undefined || mode == Parent {
		mode = Byte
	}
	d := &DataSource{
		stream:   stream,
		sizeBits: size * 8,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.root = &Region{src: d, mode: mode}
	return d, nil
}

// NewFromBytes builds a DataSource over an in-memory input.
func NewFromBytes(data []byte, mode AddrType, opts ...Option) (*DataSource, error) {
	return New(bytes.NewReader(data), mode, opts...)
}

// Root returns the outermost region.
func (d *DataSource) Root() *Region { return d.root }

// Region is a scoped view of the input. At most one child region may be open
// at a time; while a child is open the parent must not read. A region is
// released exactly once, by Commit or Close.
type Region struct {
	src        *DataSource
	parent     *Region
	base       int64 // absolute bit address of this region's zero
	mode       AddrType
	revertible bool
	entry      int64 // cursor at open, for rollback
	committed  bool
	closed     bool
	child      *Region
}

// Mode returns the region's resolved addressing mode (Byte or Bit).
func (r *Region) Mode() AddrType { return r.mode }

// Logger returns the data source's logger.
func (r *Region) Logger() *slog.Logger { return r.src.logger }

// Address returns the cursor position in this region's units, relative to
// the region's origin.
func (r *Region) Address() int64 {
	return (r.src.cursor - r.base) / r.mode.unitBits()
}

// Remaining returns how many whole units are left before end of input.
func (r *Region) Remaining() int64 {
	return (r.src.sizeBits - r.src.cursor) / r.mode.unitBits()
}

func (r *Region) ensureLive(op string) {
	if r.closed {
		panic("datasource: " + op + " on a released region")
	}
	if r.child != nil {
		panic("datasource: " + op + " on a region with an open child")
	}
}

// OpenChild opens a nested region. A relative child is re-zeroed at the
// current cursor position; an absolute child shares this region's origin.
// Parent and Undefined modes inherit this region's unit. A revertible child
// restores the cursor on Close unless Commit ran first.
func (r *Region) OpenChild(relative bool, mode AddrType, revertible bool) (*Region, error) {
	r.ensureLive("open child")
	if mode == Parent || mode == Undefined {
		mode = r.mode
	}
	base := r.base
	if relative {
		base = r.src.cursor
	}
	child := &Region{
		src:        r.src,
		parent:     r,
		base:       base,
		mode:       mode,
		revertible: revertible,
		entry:      r.src.cursor,
	}
	r.child = child
	return child, nil
}

// Commit releases the region, keeping the cursor where parsing left it. A
// bit-mode region committing into a byte-mode parent must leave the cursor
// byte aligned.
func (r *Region) Commit() error {
	r.ensureLive("commit")
	if r.parent != nil && r.parent.mode == Byte && r.mode == Bit && r.src.cursor%8 != 0 {
		return &AddressError{
			Op:      "commit",
			Current: r.src.cursor,
			Want:    (r.src.cursor/8 + 1) * 8,
			Reason:  "bit-mode region must exit on a byte boundary",
		}
	}
	r.committed = true
	r.release()
	return nil
}

// Close releases the region if Commit has not already done so. A revertible
// region that was never committed rolls the cursor back to its entry
// position. Close is idempotent and safe to defer.
func (r *Region) Close() {
	if r.closed {
		return
	}
	if r.child != nil {
		r.child.Close()
	}
	if r.revertible && !r.committed {
		r.src.logger.Debug("reverting region",
			"entry_bit", r.entry, "cursor_bit", r.src.cursor)
		r.src.cursor = r.entry
	}
	r.release()
}

func (r *Region) release() {
	r.closed = true
	if r.parent != nil {
		r.parent.child = nil
	}
}

// ReadBytes consumes n bytes forward from the cursor.
func (r *Region) ReadBytes(n int) ([]byte, error) {
	r.ensureLive("read")
	if n < 0 {
		panic("datasource: negative read length")
	}
	need := int64(n) * 8
	if r.src.cursor+need > r.src.sizeBits {
		return nil, fmt.Errorf("reading %d bytes at address 0x%x: %w", n, r.Address(), ErrExhausted)
	}
	if r.src.cursor%8 == 0 {
		if _, err := r.src.stream.Seek(r.src.cursor/8, io.SeekStart); err != nil {
			return nil, fmt.Errorf("seeking to byte 0x%x: %w", r.src.cursor/8, err)
		}
		out, err := r.src.stream.ReadBytes(n)
		if err != nil {
			return nil, fmt.Errorf("reading %d bytes at address 0x%x: %w", n, r.Address(), err)
		}
		r.src.cursor += need
		return out, nil
	}
	bits, err := r.readBitsRaw(need)
	if err != nil {
		return nil, err
	}
	return bits.Bytes(), nil
}

// ReadBits consumes n bits forward from the cursor.
func (r *Region) ReadBits(n int) (bitwise.Bytes, error) {
	r.ensureLive("read")
	if n < 0 {
		panic("datasource: negative read length")
	}
	return r.readBitsRaw(int64(n))
}

func (r *Region) readBitsRaw(n int64) (bitwise.Bytes, error) {
	if r.src.cursor+n > r.src.sizeBits {
		return bitwise.Bytes{}, fmt.Errorf("reading %d bits at address 0x%x: %w", n, r.Address(), ErrExhausted)
	}
	first := r.src.cursor / 8
	last := (r.src.cursor + n + 7) / 8
	if _, err := r.src.stream.Seek(first, io.SeekStart); err != nil {
		return bitwise.Bytes{}, fmt.Errorf("seeking to byte 0x%x: %w", first, err)
	}
	raw, err := r.src.stream.ReadBytes(int(last - first))
	if err != nil {
		return bitwise.Bytes{}, fmt.Errorf("reading %d bits at address 0x%x: %w", n, r.Address(), err)
	}
	bits := bitwise.Slice(raw, r.src.cursor%8, n)
	r.src.cursor += n
	return bits, nil
}

// ReadUnits consumes n units in the region's mode: bytes in byte mode, bits
// in bit mode.
func (r *Region) ReadUnits(n int64) (any, error) {
	if r.mode == Bit {
		return r.ReadBits(int(n))
	}
	return r.ReadBytes(int(n))
}

// ReadRest consumes everything from the cursor to the end of input.
func (r *Region) ReadRest() (any, error) {
	return r.ReadUnits(r.Remaining())
}

package segment

import (
	"errors"
	"time"
)

var ErrEndOfStream = errors.New("end of stream")

// Cursor walks the fragments of an Index in either direction. A cursor is
// not safe for concurrent use.
type Cursor struct {
	index *Index
	pos   Position
}

func NewCursor(ix *Index) *Cursor {
	return &Cursor{index: ix, pos: Position{Index: 0, Repeat: 0}}
}

func (c *Cursor) Index() *Index {
	return c.index
}

func (c *Cursor) Position() Position {
	return c.pos
}

// Current returns the fragment under the cursor, false past either end.
func (c *Cursor) Current() (Fragment, bool) {
	return c.index.At(c.pos)
}

// Seek moves to the fragment containing ts. When no fragment does, the
// cursor is left past the last entry and Seek returns false.
func (c *Cursor) Seek(ts time.Duration) bool {
	pos, ok := c.index.Locate(ts)
	c.pos = pos

	return ok
}

// SeekStart moves to the first fragment.
func (c *Cursor) SeekStart() {
	c.pos = Position{Index: 0, Repeat: 0}
}

// HasNext reports whether Advance in the given direction would land on a fragment.
func (c *Cursor) HasNext(forward bool) bool {
	probe := *c
	if err := probe.Advance(forward); nil != err {
		return false
	}
	_, ok := probe.Current()

	return ok
}

// Advance moves one fragment forward or backward, stepping through repeats
// before moving to the next entry. Crossing either end returns
// ErrEndOfStream and leaves the cursor just outside the sequence, from where
// reversing lands on the boundary fragment.
func (c *Cursor) Advance(forward bool) error {
	ix := c.index
	count := ix.Count()

	if forward {
		if (count > 0 || ix.Materialized()) && c.pos.Index >= count {
			return ErrEndOfStream
		}
		if c.pos.Index < 0 {
			c.pos = Position{Index: 0, Repeat: 0}
			return nil
		}
		if !ix.Materialized() {
			c.pos.Index++
			if count > 0 && c.pos.Index >= count {
				return ErrEndOfStream
			}
			return nil
		}

		if c.pos.Repeat < ix.segments[c.pos.Index].Repeat {
			c.pos.Repeat++
			return nil
		}
		c.pos = Position{Index: c.pos.Index + 1, Repeat: 0}
		if c.pos.Index >= count {
			return ErrEndOfStream
		}

		return nil
	}

	if c.pos.Index < 0 {
		return ErrEndOfStream
	}
	if !ix.Materialized() {
		c.pos.Index--
		if count > 0 && c.pos.Index >= count {
			c.pos.Index = count - 1
		}
		if c.pos.Index < 0 {
			c.pos.Index = -1
			return ErrEndOfStream
		}
		return nil
	}

	if c.pos.Index >= count {
		// Reversing right past the end lands on the last fragment.
		c.pos.Index = count - 1
		if c.pos.Index < 0 {
			return ErrEndOfStream
		}
		c.pos.Repeat = ix.segments[c.pos.Index].Repeat
		return nil
	}

	if c.pos.Repeat > 0 {
		c.pos.Repeat--
		return nil
	}
	c.pos.Index--
	if c.pos.Index < 0 {
		c.pos = Position{Index: -1, Repeat: 0}
		return ErrEndOfStream
	}
	c.pos.Repeat = ix.segments[c.pos.Index].Repeat

	return nil
}

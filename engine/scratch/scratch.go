// Package scratch is a per-frame float32 arena for staging vertex data.
package scratch

// Arena hands out slices from one reusable backing buffer. Slices stay valid
// until the next Reset. Single-threaded use only.
type Arena struct {
	buf   []float32
	peak  int
	grows int
}

// New returns an arena with room for capacity floats.
func New(capacity int) *Arena {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Arena{buf: make([]float32, 0, capacity)}
}

// Reset drops every slice handed out so far. Call once per frame.
func (a *Arena) Reset() { a.buf = a.buf[:0] }

// Floats returns a zeroed slice of length n.
func (a *Arena) Floats(n int) []float32 {
	a.ensure(n)
	start := len(a.buf)
	a.buf = a.buf[:start+n]
	s := a.buf[start : start+n : start+n]
	clear(s)
	if len(a.buf) > a.peak {
		a.peak = len(a.buf)
	}
	return s
}

// ensure grows the buffer so n more floats fit. Slices handed out earlier
// keep pointing at the old buffer, which stays alive until they are dropped.
func (a *Arena) ensure(n int) {
	if len(a.buf)+n <= cap(a.buf) {
		return
	}
	newCap := cap(a.buf) * 2
	if newCap < len(a.buf)+n {
		newCap = len(a.buf) + n
	}
	nb := make([]float32, len(a.buf), newCap)
	copy(nb, a.buf)
	a.buf = nb
	a.grows++
}

// Len is the number of floats handed out since the last Reset.
func (a *Arena) Len() int { return len(a.buf) }

// Cap returns the current capacity. Useful for tuning.
func (a *Arena) Cap() int { return cap(a.buf) }

// Peak is the largest Len seen; Grows counts reallocations.
func (a *Arena) Peak() int  { return a.peak }
func (a *Arena) Grows() int { return a.grows }

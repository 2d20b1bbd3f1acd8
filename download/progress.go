package download

import (
	"math"
	"sync/atomic"
)

// Progress counts the fragments and bytes a running download has written.
// It is safe to read while the download runs.
type Progress struct {
	total     atomic.Int64
	fragments atomic.Int64
	bytes     atomic.Int64
}

func (p *Progress) start(total int) {
	p.total.Store(int64(total))
	p.fragments.Store(0)
	p.bytes.Store(0)
}

func (p *Progress) add(n int64, fragment bool) {
	p.bytes.Add(n)
	if fragment {
		p.fragments.Add(1)
	}
}

func (p *Progress) Percent() int {
	total := p.total.Load()
	if total == 0 {
		return 0
	}

	return int(math.Floor(float64(p.fragments.Load()) / float64(total) * 100))
}

func (p *Progress) Fragments() int64 {
	return p.fragments.Load()
}

func (p *Progress) Bytes() int64 {
	return p.bytes.Load()
}

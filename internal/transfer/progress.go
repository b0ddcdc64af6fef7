package transfer

import (
	"io"
	"time"
)

// journalInterval throttles journal progress writes so a fast transfer does
// not hammer the database on every read.
const journalInterval = time.Second

// progressReader wraps an upload payload and emits cumulative progress on
// every Read.
type progressReader struct {
	r        io.Reader
	total    int64
	read     int64
	fn       ProgressFunc
	onTick   func(transferred int64)
	lastTick time.Time
	now      func() time.Time
}

func newProgressReader(r io.Reader, total int64, fn ProgressFunc, onTick func(int64)) *progressReader {
	return &progressReader{r: r, total: total, fn: fn, onTick: onTick, now: time.Now}
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 {
		p.read += int64(n)
		p.tick()
	}

	return n, err
}

func (p *progressReader) tick() {
	if p.fn != nil {
		p.fn(p.total, p.read)
	}

	if p.onTick != nil && p.now().Sub(p.lastTick) >= journalInterval {
		p.lastTick = p.now()
		p.onTick(p.read)
	}
}

// progressWriter wraps a download destination and emits cumulative progress
// on every Write. written starts at the resume offset so totals stay
// cumulative across a resumed transfer.
type progressWriter struct {
	w        io.Writer
	total    int64
	written  int64
	fn       ProgressFunc
	onTick   func(transferred int64)
	lastTick time.Time
	now      func() time.Time
}

func newProgressWriter(w io.Writer, total, offset int64, fn ProgressFunc, onTick func(int64)) *progressWriter {
	return &progressWriter{w: w, total: total, written: offset, fn: fn, onTick: onTick, now: time.Now}
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	if n > 0 {
		p.written += int64(n)

		if p.fn != nil {
			p.fn(p.total, p.written)
		}

		if p.onTick != nil && p.now().Sub(p.lastTick) >= journalInterval {
			p.lastTick = p.now()
			p.onTick(p.written)
		}
	}

	return n, err
}

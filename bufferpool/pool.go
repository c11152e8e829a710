// Package bufferpool implements the shared buffer pool the send-queue
// pump borrows piece payload buffers from. Buffer conservation (one
// free for every get, on every exit path) is an invariant enforced by
// callers, so the pool itself stays dumb: no policy beyond reuse,
// nothing for this package to get wrong.
//
// Piece buffer pooling to reduce GC load is a pattern already present
// in this codebase's lineage (session.Torrent.piecePool); sync.Pool is
// the standard library's answer to exactly that problem and no
// examined third-party library offers a meaningfully different one,
// so this is one of the few concerns in this module built directly on
// the standard library.
package bufferpool

import "sync"

// Pool hands out byte slices of a requested length and reclaims them
// for reuse once freed.
type Pool struct {
	pool sync.Pool
}

// New returns an empty Pool.
func New() *Pool {
	return &Pool{
		pool: sync.Pool{
			New: func() interface{} {
				return new([]byte)
			},
		},
	}
}

// Get returns a buffer of exactly length bytes. The returned slice may
// share backing storage with a previously freed buffer; callers must
// not retain it past the matching Free call.
func (p *Pool) Get(length int) []byte {
	bp := p.pool.Get().(*[]byte)
	b := *bp
	if cap(b) < length {
		b = make([]byte, length)
	} else {
		b = b[:length]
	}
	return b
}

// Free returns a buffer to the pool for reuse.
func (p *Pool) Free(b []byte) {
	p.pool.Put(&b)
}

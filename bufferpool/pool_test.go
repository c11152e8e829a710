package bufferpool

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetReturnsExactLength(t *testing.T) {
	require := require.New(t)

	p := New()
	b := p.Get(128)
	require.Len(b, 128)
}

func TestFreeAndReuse(t *testing.T) {
	require := require.New(t)

	p := New()
	b := p.Get(64)
	for i := range b {
		b[i] = byte(i)
	}
	p.Free(b)

	reused := p.Get(64)
	require.Len(reused, 64)
}

func TestGetGrowsPastSmallerFreedBuffer(t *testing.T) {
	require := require.New(t)

	p := New()
	small := p.Get(8)
	p.Free(small)

	larger := p.Get(1024)
	require.Len(larger, 1024)
}

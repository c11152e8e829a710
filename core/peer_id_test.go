package core

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewPeerIDRoundTrip(t *testing.T) {
	require := require.New(t)

	want, err := RandomPeerID()
	require.NoError(err)

	got, err := NewPeerID(want.String())
	require.NoError(err)
	require.Equal(want, got)
}

func TestNewPeerIDRejectsWrongLength(t *testing.T) {
	require := require.New(t)

	_, err := NewPeerID("abcd")
	require.Equal(ErrInvalidPeerIDLength, err)
}

func TestNewPeerIDRejectsNonHex(t *testing.T) {
	require := require.New(t)

	_, err := NewPeerID("not-hex-not-hex-not-hex!!!!")
	require.Error(err)
}

func TestPeerIDEmpty(t *testing.T) {
	require := require.New(t)

	var zero PeerID
	require.True(zero.Empty())

	p := PeerIDFixture()
	require.False(p.Empty())
}

func TestPeerIDLessThan(t *testing.T) {
	require := require.New(t)

	a := PeerID{0x01}
	b := PeerID{0x02}

	require.True(a.LessThan(b))
	require.False(b.LessThan(a))
	require.False(a.LessThan(a))
}

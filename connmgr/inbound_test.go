package connmgr

import (
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/kraken-swarm/connmgr/core"
	"github.com/kraken-swarm/connmgr/encryption"
	"github.com/kraken-swarm/connmgr/torrent"
)

func setupInboundManager(t *testing.T) *Manager {
	dialer := newFakeDialer()
	negotiator := &fakeNegotiator{}
	codec := newFakeCodec()
	t.Cleanup(func() { close(codec.recvCh) })

	m := newTestManager(dialer, negotiator, codec, nil)
	m.Start()
	t.Cleanup(m.Stop)
	return m
}

// newAcceptedConn returns a Connection suitable for
// IncomingConnectionAccepted, backed by a real in-memory pipe; the far
// end is left unread, which is fine since these tests never exercise
// the receive loop's actual framing.
func newAcceptedConn() Connection {
	client, _ := net.Pipe()
	return newPipeConn(client, true)
}

// TestIncomingConnectionAccepted verifies a fresh inbound connection
// is admitted directly into Connected, skipping Handshaking, and
// indexed by remote identifier.
func TestIncomingConnectionAccepted(t *testing.T) {
	require := require.New(t)

	m := setupInboundManager(t)

	mode := newFakeMode()
	sink := &fakeEventSink{}
	tm := newTestTorrentManager(mode, sink)
	m.Add(tm)

	peer := torrent.NewPeer("inbound-peer")
	peer.RemoteID = core.PeerIDFixture()
	conn := newAcceptedConn()
	enc := passthroughCipher{mode: encryption.PlainText}
	dec := passthroughCipher{mode: encryption.PlainText}

	m.IncomingConnectionAccepted(tm, peer, conn, enc, dec)

	require.Eventually(func() bool {
		return mode.connectedCount() == 1
	}, time.Second, time.Millisecond)

	require.True(tm.Lists().InActive(peer))
	session, ok := m.PeerSession(peer.RemoteID)
	require.True(ok)
	require.Same(peer, session.Peer())
}

// TestIncomingConnectionRejectsSelf verifies a peer whose remote
// identifier matches the local identifier is cleaned up, never
// admitted.
func TestIncomingConnectionRejectsSelf(t *testing.T) {
	require := require.New(t)

	dialer := newFakeDialer()
	negotiator := &fakeNegotiator{}
	codec := newFakeCodec()
	t.Cleanup(func() { close(codec.recvCh) })

	localID := core.PeerIDFixture()
	m, err := New(Params{
		Config:      Config{MaxOpen: 10, MaxHalfOpen: 10, DisablePreemption: true},
		LocalPeerID: localID,
		Dialer:      dialer,
		Negotiator:  negotiator,
		Codec:       codec,
		Disk:        fakeDisk{},
		Clock:       clockForTest(),
		Log:         defaultTestLogConfig(),
	})
	require.NoError(err)
	m.Start()
	t.Cleanup(m.Stop)

	mode := newFakeMode()
	sink := &fakeEventSink{}
	tm := newTestTorrentManager(mode, sink)
	m.Add(tm)

	peer := torrent.NewPeer("self")
	peer.RemoteID = localID
	conn := newAcceptedConn()
	enc := passthroughCipher{mode: encryption.PlainText}
	dec := passthroughCipher{mode: encryption.PlainText}

	m.IncomingConnectionAccepted(tm, peer, conn, enc, dec)

	require.Eventually(func() bool {
		return m.sessionCount() == 0
	}, time.Second, time.Millisecond)

	require.Equal(0, mode.connectedCount())
	_, ok := m.PeerSession(peer.RemoteID)
	require.False(ok)
}

// TestIncomingConnectionDuplicateDisposedOnly verifies that a second
// inbound connection for a peer already Active is discarded without
// disturbing the first session.
func TestIncomingConnectionDuplicateDisposedOnly(t *testing.T) {
	require := require.New(t)

	m := setupInboundManager(t)

	mode := newFakeMode()
	sink := &fakeEventSink{}
	tm := newTestTorrentManager(mode, sink)
	m.Add(tm)

	peer := torrent.NewPeer("dup-peer")
	peer.RemoteID = core.PeerIDFixture()
	enc := passthroughCipher{mode: encryption.PlainText}
	dec := passthroughCipher{mode: encryption.PlainText}

	firstConn := newAcceptedConn()
	m.IncomingConnectionAccepted(tm, peer, firstConn, enc, dec)

	require.Eventually(func() bool {
		return mode.connectedCount() == 1
	}, time.Second, time.Millisecond)

	firstSession, ok := m.PeerSession(peer.RemoteID)
	require.True(ok)

	secondConn := newAcceptedConn()
	m.IncomingConnectionAccepted(tm, peer, secondConn, enc, dec)

	// The duplicate must not trigger a second post-connect hook call,
	// and the existing session must remain exactly as it was.
	time.Sleep(20 * time.Millisecond)
	require.Equal(1, mode.connectedCount())

	stillSession, ok := m.PeerSession(peer.RemoteID)
	require.True(ok)
	require.Same(firstSession, stillSession)
	require.True(stillSession.IsDisposed() == false)
}

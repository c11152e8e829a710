package torrent

// PeerSession is the minimal view of a live peer session that Mode and
// the piece picker need. The connection manager's own session type
// satisfies this interface structurally; defining it here instead of
// importing the connection manager package avoids a cycle (the
// connection manager depends on this package for peer-list
// bookkeeping, not the other way around).
type PeerSession interface {
	Peer() *Peer
}

// Mode is the polymorphic per-torrent policy object the connection
// manager consults but never implements. A real mode toggles behavior
// based on whether the torrent is seeding, leeching, checking hashes,
// or paused.
type Mode interface {
	// CanAcceptConnections reports whether the torrent currently wants
	// any new connections at all.
	CanAcceptConnections() bool

	// ShouldConnect reports whether p specifically is worth dialing
	// right now.
	ShouldConnect(p *Peer) bool

	// HandlePeerConnected is invoked once a session is fully
	// established, in both the outbound and inbound pipelines. This is
	// where the mode learns the remote peer's identity.
	HandlePeerConnected(s PeerSession)
}

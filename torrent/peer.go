// Package torrent defines the torrent-manager surface the connection
// manager drives: peer candidate bookkeeping, the seven per-torrent
// peer lists, and the policy hooks (Mode, event raisers, piece picker,
// rate limiter groups) that the connection manager invokes but does
// not implement. Grounded on
// lib/torrent/scheduler/{connstate,dispatch}'s peer/state split, with
// the dispatcher's peer bookkeeping (dispatch/peer.go) narrowed to the
// fields a dial scheduler and cleanup routine actually touch.
package torrent

import (
	"github.com/kraken-swarm/connmgr/core"
	"github.com/kraken-swarm/connmgr/encryption"
)

// Peer is a candidate remote endpoint: known before any connection
// attempt by URI alone, enriched with a remote identifier once a
// handshake succeeds.
type Peer struct {
	URI string

	// RemoteID is the zero PeerID until a handshake reveals the peer's
	// self-reported identity.
	RemoteID core.PeerID

	// FailedAttempts counts failed outbound connect attempts.
	FailedAttempts int

	// CleanedUpCount counts cleanup cycles this peer has passed
	// through; reaching the reuse cap drops it from Available for
	// good.
	CleanedUpCount int

	// Allowed narrows monotonically as encryption negotiation and
	// handshake attempts fail.
	Allowed *encryption.ModeSet
}

// NewPeer returns a fresh candidate for uri, permitting every
// encryption tier until a failure narrows it.
func NewPeer(uri string) *Peer {
	return &Peer{
		URI:     uri,
		Allowed: encryption.AllModes(),
	}
}

// HasRemoteID reports whether a handshake has revealed this peer's
// identity yet.
func (p *Peer) HasRemoteID() bool {
	return !p.RemoteID.Empty()
}

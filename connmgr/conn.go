package connmgr

import (
	"context"

	"github.com/kraken-swarm/connmgr/torrent"
)

// Connection is a connection handle: resolved from a peer's URI but
// not yet connected, connected via Connect, and disposed via Close as
// the universal cancellation primitive for both pending dials and live
// sessions. Framing I/O happens directly against it through the wire
// codec.
type Connection interface {
	Connect(ctx context.Context) error
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error

	// CanReconnect reports whether this handle's failure mode permits
	// the peer to be reinserted into Available.
	CanReconnect() bool
}

// Dialer resolves a peer candidate to a Connection handle without
// connecting it. Returning ok=false aborts the dial silently with no
// counters incremented.
type Dialer interface {
	NewConnection(p *torrent.Peer) (conn Connection, ok bool)
}

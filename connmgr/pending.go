package connmgr

import (
	"time"

	"github.com/kraken-swarm/connmgr/torrent"
)

// pendingDial records one in-flight outbound connect attempt. The set
// of pending dials is global, not per-torrent. conn is nil from the
// moment the slot is reserved (before the dialer has resolved a
// handle) until the outbound pipeline's connection-creation stage
// attaches it; cancellation during that window is a no-op for this
// entry, since there is nothing yet to close.
type pendingDial struct {
	owner *torrent.Manager
	conn  Connection
	start time.Time
}

// addPending reserves a pending-dial slot for owner. conn may be nil
// if the dialer has not yet resolved a connection handle; callers
// attach it later by setting the returned pendingDial's conn field
// directly on the loop thread.
func (m *Manager) addPending(owner *torrent.Manager, conn Connection) *pendingDial {
	pd := &pendingDial{owner: owner, conn: conn, start: m.clk.Now()}
	m.pending[pd] = struct{}{}
	return pd
}

func (m *Manager) removePending(pd *pendingDial) {
	delete(m.pending, pd)
}

// cancelPending disposes the connection handle of every pending dial
// matching one of the given owners, or exceeding the stale-dial
// threshold, without removing it from the set. Passing no owners
// cancels only stale dials. A dial whose handle has not yet been
// attached has nothing to close and is skipped; a later call closes it
// only if that call names its owner or the dial has gone stale by then.
func (m *Manager) cancelPending(owners ...*torrent.Manager) {
	ownerSet := make(map[*torrent.Manager]bool, len(owners))
	for _, o := range owners {
		ownerSet[o] = true
	}
	now := m.clk.Now()
	for pd := range m.pending {
		if pd.conn == nil {
			continue
		}
		if ownerSet[pd.owner] || now.Sub(pd.start) > m.config.StaleDialThreshold {
			pd.conn.Close()
		}
	}
}

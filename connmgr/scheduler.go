package connmgr

import "github.com/kraken-swarm/connmgr/torrent"

// TryConnect attempts to saturate the global budget by starting as
// many new outbound dials as the caps permit. Returns once the
// open-connection cap or half-open cap is reached, or once a full
// pass over the registered torrents yields no dial.
func (m *Manager) TryConnect() {
	m.exec(func(mm *Manager) { mm.tryConnect() })
}

func (m *Manager) tryConnect() {
	for {
		if !(m.openConnections() <= m.config.MaxOpen && len(m.pending) <= m.config.MaxHalfOpen) {
			return
		}
		if !m.tryConnectOnePass() {
			return
		}
	}
}

// tryConnectOnePass walks the torrent list head to tail looking for
// the first torrent that yields a dial. On success it rotates that
// torrent to the tail, reserves the pending-dial slot and moves the
// peer to Connecting on the loop thread, then spawns the outbound
// pipeline, returning true. Returns false if the entire list was
// walked with no dial issued.
//
// The pending-dial reservation happens here, not inside the spawned
// goroutine, so that len(m.pending) reflects every dial started in
// this pass before the next iteration of tryConnect's loop re-checks
// MaxHalfOpen. Reserving it only after the goroutine's own exec call
// would let an entire pass spawn dials for every Available peer before
// the cap was ever observed.
func (m *Manager) tryConnectOnePass() bool {
	for e := m.torrents.Front(); e != nil; e = e.Next() {
		tm := e.Value.(*torrent.Manager)

		if !tm.Mode().CanAcceptConnections() {
			continue
		}
		if tm.Lists().ConnectedCount() >= tm.MaxConnections() {
			continue
		}
		peer, ok := tm.Lists().FirstAvailableMatching(tm.Mode().ShouldConnect)
		if !ok {
			continue
		}
		if m.banPeer != nil && m.banPeer(peer) {
			// Ban decisions short-circuit dial selection and do not
			// count as a failed attempt; the peer is consumed, not
			// reinserted.
			continue
		}

		m.torrents.MoveToBack(e)
		pd := m.addPending(tm, nil)
		tm.Lists().MoveToConnecting(peer)
		go m.outbound(tm, peer, pd)
		return true
	}
	return false
}

package connmgr

import (
	"github.com/kraken-swarm/connmgr/encryption"
	"github.com/kraken-swarm/connmgr/torrent"
)

// inboundOutcome distinguishes the three ways the inbound admission
// check can resolve: proceed to promotion, clean up the new session,
// or silently dispose of it without disturbing an existing one.
type inboundOutcome int

const (
	inboundProceed inboundOutcome = iota
	inboundCleanup
	inboundDisposeOnly
)

// IncomingConnectionAccepted admits a connection whose handshake has
// already been completed by a lower listener layer. enc/dec are the
// already-negotiated cipher pair; peer.RemoteID must already be
// populated by the caller.
func (m *Manager) IncomingConnectionAccepted(
	tm *torrent.Manager,
	peer *torrent.Peer,
	conn Connection,
	enc encryption.Encryptor,
	dec encryption.Decryptor,
) {
	session := newSession(m, tm, peer, conn)
	session.encryptor = enc
	session.decryptor = dec

	var outcome inboundOutcome
	m.exec(func(mm *Manager) {
		// Step 1: capacity and self-connect check. The inbound boundary
		// is inclusive: a connection arriving exactly at the global cap
		// or the torrent's own cap is rejected, not just one past it.
		limit := mm.config.MaxOpen
		if tmLimit := tm.MaxConnections(); tmLimit < limit {
			limit = tmLimit
		}
		if mm.openConnections() >= limit || peer.RemoteID == mm.localPeerID {
			outcome = inboundCleanup
			return
		}
		// Step 2: duplicate-in-Active check. The existing session keeps
		// running; this one must be disposed of without cleanup, since
		// cleanup would tear down the pre-existing peer state too.
		if tm.Lists().InActive(peer) {
			outcome = inboundDisposeOnly
			return
		}
		// Step 3: admit. Remove from Available (if present) and add
		// directly to Active/Connected; an inbound peer whose handshake
		// has already been verified skips the Handshaking stage.
		tm.Lists().PromoteToConnected(peer)
		mm.sessions[peer] = session
		mm.sessionIndex.Store(peer.RemoteID, session)
		outcome = inboundProceed
	})

	switch outcome {
	case inboundCleanup:
		m.cleanup(session)
		return
	case inboundDisposeOnly:
		session.disposed.Store(true)
		conn.Close()
		return
	}

	m.admitInbound(tm, peer, session)
}

// admitInbound invokes the torrent mode's post-connect hook and starts
// the session's goroutines. A panic here is treated the same as the
// outbound pipeline's promotion step: an Unknown connection-attempt
// failure, not a propagated error.
func (m *Manager) admitInbound(tm *torrent.Manager, peer *torrent.Peer, session *Session) {
	var failed bool
	m.exec(func(mm *Manager) {
		defer func() {
			if r := recover(); r != nil {
				mm.log().Errorf("recovered panic in handle_peer_connected: %v", r)
				failed = true
			}
		}()
		tm.Mode().HandlePeerConnected(session)
		session.touchConnected()
	})
	if failed {
		tm.RaiseConnectionAttemptFailed(torrent.Unknown)
		m.cleanup(session)
		return
	}
	go session.receiveLoop()
}

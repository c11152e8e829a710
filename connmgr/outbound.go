package connmgr

import (
	"context"

	"github.com/kraken-swarm/connmgr/core"
	"github.com/kraken-swarm/connmgr/encryption"
	"github.com/kraken-swarm/connmgr/torrent"
)

// outbound runs the eleven-stage outbound pipeline for one dial
// attempt. The pending-dial slot is already reserved and peer already
// moved to Connecting by tryConnectOnePass on the loop thread before
// this goroutine was spawned; each suspension point's result from here
// on is applied to shared state via m.exec, re-entering the main loop
// before mutating anything, while the I/O itself runs here, off the
// loop thread.
func (m *Manager) outbound(tm *torrent.Manager, peer *torrent.Peer, pd *pendingDial) {
	// Stage 1: create connection.
	conn, ok := m.dialer.NewConnection(peer)
	if !ok {
		m.exec(func(mm *Manager) {
			mm.removePending(pd)
			tm.Lists().Remove(peer)
		})
		return
	}

	// Stage 2: attach the connection handle to the already-reserved
	// pending dial.
	m.exec(func(mm *Manager) { pd.conn = conn })

	// Stage 3: connect.
	ctx, cancel := context.WithTimeout(context.Background(), m.config.HandshakeTimeout)
	connectErr := conn.Connect(ctx)
	cancel()

	m.exec(func(mm *Manager) {
		mm.removePending(pd)
		tm.Lists().Remove(peer)
	})

	// Stage 4: post-connect admission.
	var detached bool
	m.exec(func(mm *Manager) {
		detached = tm.Detached() || !tm.Mode().CanAcceptConnections()
	})
	if detached {
		conn.Close()
		return
	}

	// Stage 5: failure branch.
	if connectErr != nil {
		m.exec(func(mm *Manager) {
			peer.FailedAttempts++
			tm.Lists().AddBusy(peer)
		})
		conn.Close()
		tm.RaiseConnectionAttemptFailed(torrent.Unreachable)
		m.TryConnect()
		return
	}

	// Stage 6: create session.
	session := newSession(m, tm, peer, conn)

	// Stage 7: admission gate.
	var overBudget bool
	m.exec(func(mm *Manager) {
		overBudget = mm.openConnections() > mm.config.MaxOpen
	})
	if overBudget {
		m.cleanup(session)
		return
	}

	// Stage 8: enter Active/Handshaking.
	m.exec(func(mm *Manager) {
		session.processingQueue.Store(true)
		tm.Lists().MoveToHandshaking(peer)
		mm.sessions[peer] = session
	})

	// Stage 9: encryption negotiation (initiator).
	handshake := prepareHandshake(m.localPeerID, tm.InfoHash())
	enc, dec, err := m.negotiator.CheckOutgoing(conn, peer.Allowed, encryption.Settings{}, tm.InfoHash(), handshake)
	if err != nil {
		m.exec(func(mm *Manager) { peer.Allowed.RemoveRC4() })
		tm.RaiseConnectionAttemptFailed(torrent.EncryptionNegotiationFailed)
		m.cleanup(session)
		return
	}
	session.encryptor = enc
	session.decryptor = dec

	// Stage 10: receive remote handshake.
	hs, err := m.codec.ReceiveHandshake(conn, dec)
	if err != nil {
		m.exec(func(mm *Manager) { peer.Allowed.Remove(dec.Mode()) })
		tm.RaiseConnectionAttemptFailed(torrent.HandshakeFailed)
		m.cleanup(session)
		return
	}
	peer.RemoteID = hs.PeerID

	// Stage 11: promote.
	m.promote(tm, peer, session)
}

func prepareHandshake(local core.PeerID, h core.InfoHash) []byte {
	buf := make([]byte, 0, len(h)+len(local))
	buf = append(buf, h[:]...)
	buf = append(buf, local[:]...)
	return buf
}

// promote finishes handshake establishment: promotes the peer to
// Connected, invokes the torrent mode's post-connect hook, and starts
// the send pump / receive loop. A panic out of the mode hook is the
// only way a thrown failure can occur at this boundary in Go; it is
// treated as an Unknown connection-attempt failure rather than
// propagated.
func (m *Manager) promote(tm *torrent.Manager, peer *torrent.Peer, session *Session) {
	var failed bool
	m.exec(func(mm *Manager) {
		defer func() {
			if r := recover(); r != nil {
				mm.log().Errorf("recovered panic in handle_peer_connected: %v", r)
				failed = true
			}
		}()
		tm.Lists().PromoteToConnected(peer)
		tm.Mode().HandlePeerConnected(session)
		session.touchConnected()
		session.processingQueue.Store(len(session.sendQueue) > 0)
		mm.sessionIndex.Store(peer.RemoteID, session)
	})
	if failed {
		tm.RaiseConnectionAttemptFailed(torrent.Unknown)
		m.cleanup(session)
		return
	}
	if session.processingQueue.Load() {
		go session.pump()
	}
	go session.receiveLoop()
}

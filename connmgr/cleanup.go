package connmgr

// cleanup tears a session down and, if its peer is still worth
// retaining, reinserts it into Available. Safe to call from any
// goroutine; wraps cleanupLocked in an exec round trip. Must NOT be
// called from within a closure already running on the loop thread;
// use cleanupLocked directly there (e.g. from preempt) to avoid
// deadlocking on m.exec.
func (m *Manager) cleanup(s *Session) {
	m.exec(func(mm *Manager) { mm.cleanupLocked(s) })
}

// cleanupLocked performs the cleanup sequence in order. Idempotent: a
// session already disposed short-circuits immediately. All steps are
// best-effort; no panic leaves the function before its accounting
// completes.
func (m *Manager) cleanupLocked(s *Session) {
	if s.disposed.Load() {
		return
	}

	// Step 1: can_reuse = connection.can_reconnect AND peer not
	// already dropped into Inactive.
	canReuse := s.conn.CanReconnect() && !s.tm.Lists().InInactive(s.peer)

	s.conn.Close()

	// Step 2: cancel in-flight piece requests, best-effort.
	if picker := s.tm.PiecePicker(); picker != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log().Errorf("recovered panic cancelling piece requests: %v", r)
				}
			}()
			picker.CancelRequests(s)
		}()
	}

	// Step 3: increment the peer's cleaned-up counter.
	s.peer.CleanedUpCount++

	// Step 4: dispose the torrent's peer-exchange manager, best-effort.
	if pex := s.tm.PEX(); pex != nil {
		func() {
			defer func() {
				if r := recover(); r != nil {
					m.log().Errorf("recovered panic disposing PEX: %v", r)
				}
			}()
			pex.Dispose()
		}()
	}

	// Step 5: release the uploading-to slot if this session was
	// actively uploading.
	if !s.IsChoking() {
		s.tm.DecrementUploadingTo()
	}

	// Step 6: remove the session from Connected, Handshaking, and
	// Active.
	wasInAvailable := s.tm.Lists().InAvailable(s.peer)
	s.tm.Lists().Remove(s.peer)
	delete(m.sessions, s.peer)
	if s.peer.HasRemoteID() {
		m.sessionIndex.Delete(s.peer.RemoteID)
	}

	// Step 7: reuse decision. A peer that would otherwise qualify but
	// has exhausted its reuse cap is moved to Inactive instead of being
	// left with no membership at all, so the scheduler and InInactive
	// checks never have to special-case an untracked peer.
	switch {
	case canReuse && s.peer.RemoteID != m.localPeerID && !wasInAvailable &&
		s.peer.CleanedUpCount < m.config.ReuseCap:
		s.tm.Lists().AddAvailableFront(s.peer)
	case canReuse && s.peer.RemoteID != m.localPeerID && !wasInAvailable:
		s.tm.Lists().AddInactive(s.peer)
	}

	// Step 8: raise PeerDisconnected if the peer's identity was ever
	// known.
	if s.peer.HasRemoteID() {
		s.tm.RaisePeerDisconnected(s.peer.RemoteID)
	}

	// Step 9: dispose the session. Drain and free any buffers still
	// queued for send so the pool invariant holds on this exit path
	// too.
	s.disposed.Store(true)
	for {
		select {
		case msg := <-s.sendQueue:
			if msg.Buffer != nil {
				m.bufferPool.Free(msg.Buffer)
			}
			continue
		default:
		}
		break
	}

	m.tryConnect()
}

package connmgr

// preempt closes any session that has exceeded its TTL, or gone idle
// past its TTI, since the last sweep. Always called already on the
// loop thread (from preemptionLoop's own exec round trip), so it must
// call cleanupLocked directly rather than the public cleanup wrapper,
// which would otherwise deadlock trying to re-enter the loop from
// within itself.
func (m *Manager) preempt() {
	now := m.clk.Now()
	for _, s := range m.sessions {
		if s.disposed.Load() {
			continue
		}
		createdAt := s.CreatedAt()
		if createdAt.IsZero() {
			// Still mid-handshake: touchConnected hasn't run yet, so
			// there is no meaningful age or idle time to judge against
			// ConnTTL/ConnTTI. Leave it for the next sweep.
			continue
		}
		age := now.Sub(createdAt)
		idle := now.Sub(s.LastProgress())
		if age > m.config.ConnTTL || idle > m.config.ConnTTI {
			m.cleanupLocked(s)
		}
	}
}

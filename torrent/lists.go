package torrent

import "container/list"

// membership names the seven peer lists a candidate may occupy. Active
// is not a distinct membership value; it is the union of Handshaking
// and Connected, computed on read.
type membership int

const (
	none membership = iota
	available
	connecting
	handshaking
	connected
	busy
	inactive
)

// Lists tracks the mutually-exclusive peer lists of a single torrent.
// Grounded on connstate.State's map-based membership tracking, but
// keyed directly on *Peer identity rather than a (infoHash, peerID)
// composite, since each Lists is already scoped to one torrent and a
// candidate's identity persists across its lifecycle as a single
// allocated Peer. Not safe for concurrent use; all access happens on
// the connection manager's single logical thread.
type Lists struct {
	// available preserves insertion order; head is most recently
	// reinserted-after-cleanup, and the scheduler scans it
	// front-to-back.
	available *list.List
	elements  map[*Peer]*list.Element

	membership map[*Peer]membership

	connectedCount int
}

// NewLists returns an empty Lists.
func NewLists() *Lists {
	return &Lists{
		available:  list.New(),
		elements:   make(map[*Peer]*list.Element),
		membership: make(map[*Peer]membership),
	}
}

func (l *Lists) remove(p *Peer) {
	switch l.membership[p] {
	case available:
		if e, ok := l.elements[p]; ok {
			l.available.Remove(e)
			delete(l.elements, p)
		}
	case connected:
		l.connectedCount--
	}
	delete(l.membership, p)
}

// AddAvailableFront adds p to the head of Available. Used both for
// freshly discovered candidates and for cleanup reinsertion.
func (l *Lists) AddAvailableFront(p *Peer) {
	l.remove(p)
	l.elements[p] = l.available.PushFront(p)
	l.membership[p] = available
}

// AddAvailableBack adds p to the tail of Available.
func (l *Lists) AddAvailableBack(p *Peer) {
	l.remove(p)
	l.elements[p] = l.available.PushBack(p)
	l.membership[p] = available
}

// InAvailable reports whether p is currently in Available.
func (l *Lists) InAvailable(p *Peer) bool {
	return l.membership[p] == available
}

// FirstAvailableMatching scans Available head-to-tail for the first
// peer satisfying pred, removing it from Available if found.
func (l *Lists) FirstAvailableMatching(pred func(*Peer) bool) (*Peer, bool) {
	for e := l.available.Front(); e != nil; e = e.Next() {
		p := e.Value.(*Peer)
		if pred(p) {
			l.remove(p)
			return p, true
		}
	}
	return nil, false
}

// MoveToConnecting removes p from whatever list it occupies and adds
// it to Connecting.
func (l *Lists) MoveToConnecting(p *Peer) {
	l.remove(p)
	l.membership[p] = connecting
}

// InConnecting reports whether p is in Connecting.
func (l *Lists) InConnecting(p *Peer) bool {
	return l.membership[p] == connecting
}

// MoveToHandshaking removes p from whatever list it occupies and adds
// it to Active/Handshaking.
func (l *Lists) MoveToHandshaking(p *Peer) {
	l.remove(p)
	l.membership[p] = handshaking
}

// PromoteToConnected transitions p from Handshaking to Active/Connected.
func (l *Lists) PromoteToConnected(p *Peer) {
	l.remove(p)
	l.membership[p] = connected
	l.connectedCount++
}

// InActive reports whether p is in Active (Handshaking ∪ Connected).
func (l *Lists) InActive(p *Peer) bool {
	m := l.membership[p]
	return m == handshaking || m == connected
}

// AddBusy removes p from whatever list it occupies and adds it to
// Busy, the cooldown pool for unreachable peers.
func (l *Lists) AddBusy(p *Peer) {
	l.remove(p)
	l.membership[p] = busy
}

// AddInactive removes p from whatever list it occupies and adds it to
// Inactive, where the scheduler will never select it again.
func (l *Lists) AddInactive(p *Peer) {
	l.remove(p)
	l.membership[p] = inactive
}

// InInactive reports whether p has been marked permanently undialable.
func (l *Lists) InInactive(p *Peer) bool {
	return l.membership[p] == inactive
}

// Remove clears p's membership from whichever list it currently
// occupies, leaving it untracked. Used by cleanup step 6 ("Remove
// session from Connected, Handshaking, and Active").
func (l *Lists) Remove(p *Peer) {
	l.remove(p)
}

// ConnectedCount returns the number of peers currently in Connected.
func (l *Lists) ConnectedCount() int {
	return l.connectedCount
}

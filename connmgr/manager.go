// Package connmgr implements the connection manager: the dial
// scheduler, outbound and inbound handshake pipelines, per-peer send
// queue and receive loop, cleanup and reuse policy, and dial
// cancellation of a BitTorrent-like peer-to-peer client. Grounded
// throughout on lib/torrent/scheduler, generalizing its
// scheduler/conn/connstate/dispatch split into a single package scoped
// to connection lifecycle rather than full torrent download
// orchestration.
package connmgr

import (
	"container/list"
	"fmt"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
	"go.uber.org/zap"
	"golang.org/x/sync/syncmap"

	"github.com/kraken-swarm/connmgr/bufferpool"
	"github.com/kraken-swarm/connmgr/core"
	"github.com/kraken-swarm/connmgr/diskio"
	"github.com/kraken-swarm/connmgr/encryption"
	"github.com/kraken-swarm/connmgr/log"
	"github.com/kraken-swarm/connmgr/torrent"
	"github.com/kraken-swarm/connmgr/wire"
)

// BanPeerHook decides whether a candidate should be skipped by the
// dial scheduler. Single-subscriber by design.
type BanPeerHook func(*torrent.Peer) bool

// Manager is the connection manager. All of its state is mutated
// exclusively on its single logical thread; every exported method that
// touches state submits work to that thread and waits for it, grounded
// on scheduler.scheduler's eventLoop-mediated API.
type Manager struct {
	config      Config
	localPeerID core.PeerID
	clk         clock.Clock

	loop *loop

	negotiator encryption.Negotiator
	codec      wire.Codec
	disk       diskio.Disk
	bufferPool *bufferpool.Pool

	stats  tally.Scope
	logger *zap.SugaredLogger

	// torrents is the ordered sequence of registered Torrent Managers
	// the dial scheduler rotates. Only ever touched on the loop thread.
	torrents     *list.List
	torrentElems map[*torrent.Manager]*list.Element

	// pending is the global set of in-flight outbound dials. Only ever
	// touched on the loop thread.
	pending map[*pendingDial]struct{}

	// sessions maps a peer candidate to its live session for every
	// peer currently in Handshaking or Connected. The torrent's Lists
	// only track membership by *torrent.Peer identity; a session's own
	// connection handle is needed for shutdown and cancellation, so
	// this registry keeps the binding the two packages don't otherwise
	// share.
	sessions map[*torrent.Peer]*Session

	// sessionIndex mirrors sessions, keyed by remote identifier instead
	// of peer candidate, so that a diagnostics or stats caller can look
	// up a connected peer's session from any goroutine without
	// round-tripping the loop. The loop thread is the sole writer;
	// syncmap.Map's own synchronization is what makes concurrent reads
	// from other goroutines safe, grounded on
	// dispatch.Dispatcher.peers syncmap.Map.
	sessionIndex syncmap.Map

	dialer  Dialer
	banPeer BanPeerHook

	stopOnce      sync.Once
	done          chan struct{}
	wg            sync.WaitGroup
	preemptTicker <-chan time.Time
}

// Params bundles the collaborators a Manager depends on but does not
// implement; only their interfaces live in this module.
type Params struct {
	Config      Config
	LocalPeerID core.PeerID
	Dialer      Dialer
	Negotiator  encryption.Negotiator
	Codec       wire.Codec
	Disk        diskio.Disk
	BufferPool  *bufferpool.Pool
	BanPeer     BanPeerHook
	Stats       tally.Scope
	Clock       clock.Clock
	Log         log.Config
}

// New constructs a Manager. It does not start any background loops;
// call Start to begin serving.
func New(p Params) (*Manager, error) {
	config := p.Config.applyDefaults()

	logger, err := log.New(p.Log, nil)
	if err != nil {
		return nil, fmt.Errorf("log: %s", err)
	}

	clk := p.Clock
	if clk == nil {
		clk = clock.New()
	}

	bufferPool := p.BufferPool
	if bufferPool == nil {
		bufferPool = bufferpool.New()
	}

	stats := p.Stats
	if stats == nil {
		stats = tally.NoopScope
	}
	stats = stats.Tagged(map[string]string{"module": "connmgr"})

	m := &Manager{
		config:       config,
		localPeerID:  p.LocalPeerID,
		clk:          clk,
		loop:         newLoop(),
		negotiator:   p.Negotiator,
		codec:        p.Codec,
		disk:         p.Disk,
		bufferPool:   bufferPool,
		stats:        stats,
		logger:       logger.Sugar(),
		torrents:     list.New(),
		torrentElems: make(map[*torrent.Manager]*list.Element),
		pending:      make(map[*pendingDial]struct{}),
		sessions:     make(map[*torrent.Peer]*Session),
		dialer:       p.Dialer,
		banPeer:      p.BanPeer,
		done:         make(chan struct{}),
	}
	return m, nil
}

// Start begins the main loop and the preemption sweep.
func (m *Manager) Start() {
	if !m.config.DisablePreemption {
		m.preemptTicker = m.clk.Tick(m.config.PreemptionInterval)
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.loop.run(m)
	}()

	if m.preemptTicker != nil {
		m.wg.Add(1)
		go m.preemptionLoop()
	}
}

func (m *Manager) preemptionLoop() {
	defer m.wg.Done()
	for {
		select {
		case <-m.preemptTicker:
			m.exec(func(mm *Manager) { mm.preempt() })
		case <-m.done:
			return
		}
	}
}

// Stop tears down every active session and stops the main loop.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		close(m.done)
		m.exec(func(mm *Manager) {
			for _, s := range mm.sessions {
				s.conn.Close()
			}
		})
		m.loop.stop()
		m.wg.Wait()
	})
}

// Add registers tm with the manager, appending it to the tail of the
// rotation.
func (m *Manager) Add(tm *torrent.Manager) {
	m.exec(func(mm *Manager) {
		if _, ok := mm.torrentElems[tm]; ok {
			return
		}
		mm.torrentElems[tm] = mm.torrents.PushBack(tm)
	})
}

// Remove unregisters tm.
func (m *Manager) Remove(tm *torrent.Manager) {
	m.exec(func(mm *Manager) {
		if e, ok := mm.torrentElems[tm]; ok {
			mm.torrents.Remove(e)
			delete(mm.torrentElems, tm)
		}
	})
}

// OpenConnections returns a snapshot of the global Connected count.
func (m *Manager) OpenConnections() int {
	var n int
	m.exec(func(mm *Manager) { n = mm.openConnections() })
	return n
}

func (m *Manager) openConnections() int {
	var n int
	for e := m.torrents.Front(); e != nil; e = e.Next() {
		n += e.Value.(*torrent.Manager).Lists().ConnectedCount()
	}
	return n
}

// CancelPendingConnects cancels every pending dial owned by one of the
// given managers, plus any stale dial regardless of owner. Called with
// no arguments, it sweeps only stale dials.
func (m *Manager) CancelPendingConnects(owners ...*torrent.Manager) {
	m.exec(func(mm *Manager) { mm.cancelPending(owners...) })
}

func (m *Manager) log() *zap.SugaredLogger {
	return m.logger
}

// PeerSession returns the live session for a connected peer's remote
// identifier, if one exists. Safe to call from any goroutine; does not
// go through exec, since sessionIndex is itself concurrency-safe and a
// diagnostics caller does not need the loop's mutual exclusion, only a
// consistent snapshot of a single entry.
func (m *Manager) PeerSession(id core.PeerID) (*Session, bool) {
	v, ok := m.sessionIndex.Load(id)
	if !ok {
		return nil, false
	}
	return v.(*Session), true
}

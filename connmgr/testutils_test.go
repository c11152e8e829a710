package connmgr

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"time"

	"github.com/andres-erbsen/clock"
	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/kraken-swarm/connmgr/bandwidth"
	"github.com/kraken-swarm/connmgr/core"
	"github.com/kraken-swarm/connmgr/diskio"
	"github.com/kraken-swarm/connmgr/encryption"
	"github.com/kraken-swarm/connmgr/log"
	"github.com/kraken-swarm/connmgr/torrent"
	"github.com/kraken-swarm/connmgr/wire"
)

// pipeConn is a Connection backed by a net.Pipe half, so the outbound
// and inbound pipeline tests exercise real blocking I/O instead of a
// hand-rolled buffer.
type pipeConn struct {
	net.Conn
	connectErr   error
	canReconn    bool
	closeOnce    sync.Once
	blockConnect chan struct{}
}

var errConnCancelled = errors.New("connection cancelled")

func newPipeConn(c net.Conn, canReconnect bool) *pipeConn {
	return &pipeConn{Conn: c, canReconn: canReconnect}
}

func (c *pipeConn) Connect(ctx context.Context) error {
	if c.blockConnect == nil {
		return c.connectErr
	}
	select {
	case <-c.blockConnect:
		return errConnCancelled
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *pipeConn) CanReconnect() bool { return c.canReconn }
func (c *pipeConn) Close() error {
	var err error
	c.closeOnce.Do(func() {
		err = c.Conn.Close()
		if c.blockConnect != nil {
			close(c.blockConnect)
		}
	})
	return err
}

// fakeDialer hands out one pipeConn per call, paired with the far end
// of the pipe so a test can drive the other side directly.
type fakeDialer struct {
	mu            sync.Mutex
	connectErr    error
	blockConnects bool
	peerConns     []net.Conn
	ok            bool
}

func newFakeDialer() *fakeDialer {
	return &fakeDialer{ok: true}
}

func (d *fakeDialer) NewConnection(p *torrent.Peer) (Connection, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.ok {
		return nil, false
	}
	client, server := net.Pipe()
	d.peerConns = append(d.peerConns, server)
	c := newPipeConn(client, true)
	c.connectErr = d.connectErr
	if d.blockConnects {
		c.blockConnect = make(chan struct{})
	}
	return c, true
}

func (d *fakeDialer) lastServerConn() net.Conn {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.peerConns[len(d.peerConns)-1]
}

// fakeNegotiator always succeeds immediately, returning pass-through
// encryptor/decryptor pairs that perform no actual transformation.
type fakeNegotiator struct {
	err  error
	mode encryption.Mode
}

type passthroughCipher struct {
	io.Reader
	io.Writer
	mode encryption.Mode
}

func (c passthroughCipher) Mode() encryption.Mode { return c.mode }

func (n *fakeNegotiator) CheckOutgoing(
	conn io.ReadWriter,
	allowed *encryption.ModeSet,
	settings encryption.Settings,
	infoHash core.InfoHash,
	handshake []byte,
) (encryption.Encryptor, encryption.Decryptor, error) {
	if n.err != nil {
		return nil, nil, n.err
	}
	c := passthroughCipher{Reader: conn, Writer: conn, mode: n.mode}
	return c, c, nil
}

// fakeCodec never touches the wire; ReceiveHandshake/ReceiveMessage
// return preset values or block until told to return.
type fakeCodec struct {
	handshake    *wire.HandshakeMessage
	handshakeErr error

	recvCh  chan *wire.PeerMessage
	recvErr error

	sent chan *wire.PeerMessage
}

func newFakeCodec() *fakeCodec {
	return &fakeCodec{
		recvCh: make(chan *wire.PeerMessage),
		sent:   make(chan *wire.PeerMessage, 16),
	}
}

func (c *fakeCodec) ReceiveHandshake(conn io.Reader, d encryption.Decryptor) (*wire.HandshakeMessage, error) {
	if c.handshakeErr != nil {
		return nil, c.handshakeErr
	}
	return c.handshake, nil
}

func (c *fakeCodec) ReceiveMessage(
	conn io.Reader,
	d encryption.Decryptor,
	downLimiter bandwidth.Limiter,
	peerMonitor, torrentMonitor wire.ByteCounter,
) (*wire.PeerMessage, error) {
	msg, ok := <-c.recvCh
	if !ok {
		if c.recvErr != nil {
			return nil, c.recvErr
		}
		return nil, errors.New("fake codec closed")
	}
	return msg, nil
}

func (c *fakeCodec) SendMessage(
	conn io.Writer,
	e encryption.Encryptor,
	msg *wire.PeerMessage,
	upLimiter bandwidth.Limiter,
	peerMonitor, torrentMonitor wire.ByteCounter,
) error {
	c.sent <- msg
	return nil
}

// fakeDisk returns zeroed bytes of the requested length.
type fakeDisk struct{}

func (fakeDisk) Read(t diskio.Torrent, absoluteOffset int64, buffer []byte, length int) (int, error) {
	return length, nil
}

// fakeMode is a minimal torrent.Mode; HandlePeerConnected records every
// session it was handed and optionally panics to exercise the
// recovered-panic failure path.
type fakeMode struct {
	mu         sync.Mutex
	accept     bool
	shouldConn func(*torrent.Peer) bool
	connected  []torrent.PeerSession
	panicOn    bool
}

func newFakeMode() *fakeMode {
	return &fakeMode{
		accept:     true,
		shouldConn: func(*torrent.Peer) bool { return true },
	}
}

func (m *fakeMode) CanAcceptConnections() bool { return m.accept }

func (m *fakeMode) ShouldConnect(p *torrent.Peer) bool { return m.shouldConn(p) }

func (m *fakeMode) HandlePeerConnected(s torrent.PeerSession) {
	if m.panicOn {
		panic("simulated mode failure")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = append(m.connected, s)
}

func (m *fakeMode) connectedCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.connected)
}

// fakeEventSink records every event raised against it.
type fakeEventSink struct {
	mu       sync.Mutex
	failures []torrent.FailureReason
	disconns []core.PeerID
}

func (s *fakeEventSink) ConnectionAttemptFailed(h core.InfoHash, reason torrent.FailureReason) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, reason)
}

func (s *fakeEventSink) PeerDisconnected(h core.InfoHash, peerID core.PeerID) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.disconns = append(s.disconns, peerID)
}

// fakePiecePicker and fakePEX record whether they were invoked during
// cleanup.
type fakePiecePicker struct {
	mu        sync.Mutex
	cancelled []torrent.PeerSession
}

func (p *fakePiecePicker) CancelRequests(s torrent.PeerSession) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cancelled = append(p.cancelled, s)
}

type fakePEX struct {
	disposed int
}

func (p *fakePEX) Dispose() { p.disposed++ }

// newTestTorrentManager builds a torrent.Manager wired to the fakes
// above, ready to register with a connmgr.Manager.
func newTestTorrentManager(mode *fakeMode, sink *fakeEventSink) *torrent.Manager {
	return torrent.NewManager(
		torrent.Config{MaxConnections: 10},
		core.InfoHashFixture(),
		mode,
		&fakePiecePicker{},
		&fakePEX{},
		sink,
		nil,
		bandwidth.NoLimit(),
		bandwidth.NoLimit(),
		tally.NoopScope,
		zap.NewNop().Sugar(),
	)
}

// newTestManager builds a connmgr.Manager against a mock clock with
// tight caps suited to unit tests, wired to the given collaborators.
func newTestManager(dialer Dialer, negotiator encryption.Negotiator, codec wire.Codec, clk clock.Clock) *Manager {
	if clk == nil {
		clk = clock.NewMock()
	}
	m, err := New(Params{
		Config: Config{
			MaxOpen:            10,
			MaxHalfOpen:        10,
			StaleDialThreshold: time.Minute,
			ReuseCap:           5,
			HandshakeTimeout:   time.Second,
			DisablePreemption:  true,
			SendQueueSize:      16,
		},
		LocalPeerID: core.PeerIDFixture(),
		Dialer:      dialer,
		Negotiator:  negotiator,
		Codec:       codec,
		Disk:        fakeDisk{},
		Clock:       clk,
		Log:         log.Config{Disable: true},
	})
	if err != nil {
		panic(err)
	}
	return m
}

func clockForTest() clock.Clock {
	return clock.NewMock()
}

func defaultTestLogConfig() log.Config {
	return log.Config{Disable: true}
}

func (m *Manager) pendingCount() int {
	var n int
	m.exec(func(mm *Manager) { n = len(mm.pending) })
	return n
}

// attachedPendingCount counts pending dials whose connection handle has
// been attached, i.e. the ones cancelPending can actually close.
func (m *Manager) attachedPendingCount() int {
	var n int
	m.exec(func(mm *Manager) {
		for pd := range mm.pending {
			if pd.conn != nil {
				n++
			}
		}
	})
	return n
}

func (m *Manager) sessionCount() int {
	var n int
	m.exec(func(mm *Manager) { n = len(mm.sessions) })
	return n
}

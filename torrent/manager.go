package torrent

import (
	"sync"

	"github.com/uber-go/tally"
	"go.uber.org/zap"

	"github.com/kraken-swarm/connmgr/bandwidth"
	"github.com/kraken-swarm/connmgr/core"
	"github.com/kraken-swarm/connmgr/wire"
)

// MessageHandler dispatches a received message to its per-message
// handler. A real handler interprets piece/request/choke/interested
// messages; only the interface lives in this module.
type MessageHandler interface {
	HandlePeerMessage(s PeerSession, msg *wire.PeerMessage) error
}

// EventSink receives the events a Manager raises. A production sink
// would fan these into metrics and a network-event log, the way
// networkevent.Producer does upstream; tests typically use a recording
// fake.
type EventSink interface {
	ConnectionAttemptFailed(h core.InfoHash, reason FailureReason)
	PeerDisconnected(h core.InfoHash, peerID core.PeerID)
}

// Manager owns one torrent's peer lists, mode, limiters, and counters.
// The connection manager mutates a Manager's peer lists only through
// the methods here; it never reaches into torrent internals directly.
//
// Detached marks a Manager that has been torn down (its engine stopped
// serving it) but may still be referenced by in-flight pipeline
// goroutines; the outbound pipeline's post-connect admission check
// consults it.
type Manager struct {
	config   Config
	infoHash core.InfoHash
	mode     Mode
	lists    *Lists
	picker   PiecePicker
	pex      PEXManager
	sink     EventSink
	handler  MessageHandler
	upload   bandwidth.Limiter
	download bandwidth.Limiter
	monitor  *ByteCounter
	logger   *zap.SugaredLogger
	stats    tally.Scope

	mu          sync.Mutex
	uploadingTo int
	detached    bool
	readErr     error
}

// NewManager constructs a Manager for h, driven by mode and picker.
// pex may be nil if the torrent has no peer-exchange support.
func NewManager(
	config Config,
	h core.InfoHash,
	mode Mode,
	picker PiecePicker,
	pex PEXManager,
	sink EventSink,
	handler MessageHandler,
	upload, download bandwidth.Limiter,
	stats tally.Scope,
	logger *zap.SugaredLogger,
) *Manager {
	config = config.applyDefaults()
	return &Manager{
		config:   config,
		infoHash: h,
		mode:     mode,
		lists:    NewLists(),
		picker:   picker,
		pex:      pex,
		sink:     sink,
		handler:  handler,
		upload:   upload,
		download: download,
		monitor:  NewByteCounter(),
		logger:   logger,
		stats:    stats.Tagged(map[string]string{"module": "torrent"}),
	}
}

// InfoHash returns the torrent's info hash.
func (m *Manager) InfoHash() core.InfoHash { return m.infoHash }

// InfoHashHex satisfies diskio.Torrent.
func (m *Manager) InfoHashHex() string { return m.infoHash.String() }

// Mode returns the torrent's policy object.
func (m *Manager) Mode() Mode { return m.mode }

// Lists returns the torrent's peer lists.
func (m *Manager) Lists() *Lists { return m.lists }

// MaxConnections returns the per-torrent connected-peer cap.
func (m *Manager) MaxConnections() int { return m.config.MaxConnections }

// UploadLimiter returns the torrent's upload rate limiter.
func (m *Manager) UploadLimiter() bandwidth.Limiter { return m.upload }

// DownloadLimiter returns the torrent's download rate limiter.
func (m *Manager) DownloadLimiter() bandwidth.Limiter { return m.download }

// Monitor returns the torrent-level byte counter, fed alongside the
// per-peer monitor on every send and receive.
func (m *Manager) Monitor() *ByteCounter { return m.monitor }

// PiecePicker returns the torrent's piece picker, used during cleanup
// to cancel in-flight requests.
func (m *Manager) PiecePicker() PiecePicker { return m.picker }

// PEX returns the torrent's peer-exchange manager, or nil.
func (m *Manager) PEX() PEXManager { return m.pex }

// Handler returns the torrent's per-message handler.
func (m *Manager) Handler() MessageHandler { return m.handler }

// Detach marks the manager as torn down. The outbound pipeline's
// post-connect admission check consults this.
func (m *Manager) Detach() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.detached = true
}

// Detached reports whether the manager has been torn down.
func (m *Manager) Detached() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.detached
}

// IncrementUploadingTo increments the count of peers this torrent is
// currently uploading to.
func (m *Manager) IncrementUploadingTo() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploadingTo++
}

// DecrementUploadingTo decrements the count of peers this torrent is
// currently uploading to. Called by cleanup for sessions that were not
// choking.
func (m *Manager) DecrementUploadingTo() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.uploadingTo > 0 {
		m.uploadingTo--
	}
}

// UploadingTo returns the current uploading-to count.
func (m *Manager) UploadingTo() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.uploadingTo
}

// RaiseConnectionAttemptFailed raises a ConnectionAttemptFailed event
// with the given reason.
func (m *Manager) RaiseConnectionAttemptFailed(reason FailureReason) {
	m.stats.Tagged(map[string]string{"reason": reason.String()}).Counter("connection_attempt_failed").Inc(1)
	m.log().Infof("Connection attempt failed: %s", reason)
	if m.sink != nil {
		m.sink.ConnectionAttemptFailed(m.infoHash, reason)
	}
}

// RaisePeerDisconnected raises a PeerDisconnected event for peerID.
func (m *Manager) RaisePeerDisconnected(peerID core.PeerID) {
	m.stats.Counter("peer_disconnected").Inc(1)
	if m.sink != nil {
		m.sink.PeerDisconnected(m.infoHash, peerID)
	}
}

// TrySetError records a non-fatal torrent-level error, such as a disk
// ReadFailure surfaced by the send-queue pump. Only the first error set
// is retained, whatever its kind.
func (m *Manager) TrySetError(kind ErrorKind, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.readErr == nil {
		m.readErr = err
	}
	m.log().Errorf("Torrent error (%d): %s", kind, err)
}

// Err returns the first error set via TrySetError, if any.
func (m *Manager) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.readErr
}

func (m *Manager) log() *zap.SugaredLogger {
	return m.logger.With("hash", m.infoHash)
}

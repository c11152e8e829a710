package connmgr

import (
	"sync"
	"time"

	"go.uber.org/atomic"

	"github.com/kraken-swarm/connmgr/core"
	"github.com/kraken-swarm/connmgr/encryption"
	"github.com/kraken-swarm/connmgr/torrent"
	"github.com/kraken-swarm/connmgr/wire"
)

// Session is the per-peer runtime state created on successful
// handshake. Grounded on conn.Conn, but flattened to one goroutine pair
// (send pump, receive loop) driven directly by the wire codec rather
// than Conn's internal sender/receiver channel plumbing, since this
// module's Codec already performs the framing conn.go hand-rolled.
type Session struct {
	mgr  *Manager
	tm   *torrent.Manager
	peer *torrent.Peer
	conn Connection

	encryptor encryption.Encryptor
	decryptor encryption.Decryptor

	sendQueue chan *wire.PeerMessage

	processingQueue *atomic.Bool
	choking         *atomic.Bool
	interested      *atomic.Bool
	disposed        *atomic.Bool

	mu                  sync.Mutex
	whenConnected       time.Time
	lastMessageSent     time.Time
	lastMessageReceived time.Time
	lastBlockReceived   time.Time

	piecesSent             *atomic.Int64
	requestingPiecesCount  *atomic.Int64

	sent     *atomic.Int64
	received *atomic.Int64
}

func newSession(mgr *Manager, tm *torrent.Manager, peer *torrent.Peer, conn Connection) *Session {
	now := mgr.clk.Now()
	return &Session{
		mgr:                   mgr,
		tm:                    tm,
		peer:                  peer,
		conn:                  conn,
		sendQueue:             make(chan *wire.PeerMessage, mgr.config.SendQueueSize),
		processingQueue:       atomic.NewBool(false),
		choking:               atomic.NewBool(true),
		interested:            atomic.NewBool(false),
		disposed:              atomic.NewBool(false),
		lastMessageSent:       now,
		lastMessageReceived:   now,
		piecesSent:            atomic.NewInt64(0),
		requestingPiecesCount: atomic.NewInt64(0),
		sent:                  atomic.NewInt64(0),
		received:              atomic.NewInt64(0),
	}
}

// Peer satisfies torrent.PeerSession.
func (s *Session) Peer() *torrent.Peer { return s.peer }

// CountBytesSent satisfies wire.ByteCounter for the per-peer monitor.
func (s *Session) CountBytesSent(n int) { s.sent.Add(int64(n)) }

// CountBytesReceived satisfies wire.ByteCounter for the per-peer monitor.
func (s *Session) CountBytesReceived(n int) { s.received.Add(int64(n)) }

// IsChoking reports whether this session is currently choking its
// peer (not uploading to it).
func (s *Session) IsChoking() bool { return s.choking.Load() }

// SetChoking updates the choking flag, adjusting the torrent's
// uploading-to counter on a genuine transition.
func (s *Session) SetChoking(choking bool) {
	if s.choking.CAS(!choking, choking) {
		if choking {
			s.tm.DecrementUploadingTo()
		} else {
			s.tm.IncrementUploadingTo()
		}
	}
}

func (s *Session) touchConnected() {
	now := s.mgr.clk.Now()
	s.mu.Lock()
	s.whenConnected = now
	s.lastBlockReceived = now
	s.mu.Unlock()
}

func (s *Session) touchMessageSent() {
	s.mu.Lock()
	s.lastMessageSent = s.mgr.clk.Now()
	s.mu.Unlock()
}

func (s *Session) touchMessageReceived() {
	s.mu.Lock()
	s.lastMessageReceived = s.mgr.clk.Now()
	s.mu.Unlock()
}

// LastProgress returns the most recent of when-connected,
// last-message-sent, and last-message-received, used by the
// preemption sweep to judge idleness.
func (s *Session) LastProgress() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := s.whenConnected
	if s.lastMessageSent.After(latest) {
		latest = s.lastMessageSent
	}
	if s.lastMessageReceived.After(latest) {
		latest = s.lastMessageReceived
	}
	return latest
}

// CreatedAt returns when-connected.
func (s *Session) CreatedAt() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.whenConnected
}

// IsDisposed reports whether cleanup has already torn this session
// down.
func (s *Session) IsDisposed() bool { return s.disposed.Load() }

// Enqueue places msg on the send queue and starts the pump if it is
// not already running. Only one pump runs at a time per peer; it is
// gated by the processing-queue flag.
func (s *Session) Enqueue(msg *wire.PeerMessage) {
	select {
	case s.sendQueue <- msg:
	default:
		s.mgr.logger.Warnf("Dropping message to %s: send queue full", s.peer.RemoteID)
		return
	}
	if s.processingQueue.CAS(false, true) {
		go s.pump()
	}
}

// pump drains the send queue until empty, then clears processingQueue.
// A message enqueued after the queue was seen empty but before the flag
// was cleared started no pump of its own, so the queue is checked once
// more after clearing the flag.
func (s *Session) pump() {
	for {
		select {
		case msg := <-s.sendQueue:
			if err := s.sendOne(msg); err != nil {
				s.mgr.cleanup(s)
				s.processingQueue.Store(false)
				return
			}
			continue
		default:
		}

		s.processingQueue.Store(false)
		if len(s.sendQueue) == 0 || !s.processingQueue.CAS(false, true) {
			return
		}
	}
}

func (s *Session) sendOne(msg *wire.PeerMessage) error {
	isPiece := msg.Type == wire.MessagePiece

	if isPiece {
		buf := s.mgr.bufferPool.Get(msg.Length)
		msg.Buffer = buf
		defer s.mgr.bufferPool.Free(buf)

		n, err := s.mgr.disk.Read(s.tm, int64(msg.Begin), buf, msg.Length)
		if err != nil || n < msg.Length {
			if err == nil {
				err = errShortRead
			}
			s.tm.TrySetError(torrent.ReadFailure, err)
			return err
		}
		s.piecesSent.Inc()
	}

	err := s.mgr.codec.SendMessage(
		s.conn, s.encryptor, msg, s.tm.UploadLimiter(), s, s.tm.Monitor())
	if err != nil {
		return err
	}

	if isPiece {
		s.requestingPiecesCount.Dec()
		s.touchMessageSent()
	}
	return nil
}

// receiveLoop reads framed messages until error or disposal.
func (s *Session) receiveLoop() {
	for {
		msg, err := s.mgr.codec.ReceiveMessage(
			s.conn, s.decryptor, s.tm.DownloadLimiter(), s, s.tm.Monitor())
		if err != nil {
			s.mgr.cleanup(s)
			return
		}

		if s.disposed.Load() {
			if msg.Buffer != nil {
				s.mgr.bufferPool.Free(msg.Buffer)
			}
			continue
		}

		s.touchMessageReceived()

		if handler := s.tm.Handler(); handler != nil {
			if err := handler.HandlePeerMessage(s, msg); err != nil {
				s.mgr.cleanup(s)
				return
			}
		}
	}
}

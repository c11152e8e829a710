package wire

import (
	"io"

	"github.com/kraken-swarm/connmgr/bandwidth"
	"github.com/kraken-swarm/connmgr/encryption"
)

// ByteCounter accounts for bytes sent/received over a connection. Both
// the per-peer session and the per-torrent manager implement this, so
// the wire codec can feed both at once on every send and receive.
type ByteCounter interface {
	CountBytesSent(n int)
	CountBytesReceived(n int)
}

// Codec frames and parses protocol messages over a negotiated cipher.
// It is an external collaborator; only its interface lives in this
// module.
type Codec interface {
	ReceiveHandshake(conn io.Reader, d encryption.Decryptor) (*HandshakeMessage, error)

	ReceiveMessage(
		conn io.Reader,
		d encryption.Decryptor,
		downLimiter bandwidth.Limiter,
		peerMonitor, torrentMonitor ByteCounter,
	) (*PeerMessage, error)

	SendMessage(
		conn io.Writer,
		e encryption.Encryptor,
		msg *PeerMessage,
		upLimiter bandwidth.Limiter,
		peerMonitor, torrentMonitor ByteCounter,
	) error
}

// ChunkSize is the granularity the receive layer is expected to operate
// in, small enough to allow fine-grained rate limiting.
const ChunkSize = 2096 + 64

// Package wire defines the message types and the codec interface the
// connection manager depends on to frame and parse protocol messages
// over a negotiated cipher. The wire format itself is an out-of-scope
// external collaborator; this package only carries the shapes the rest
// of the module needs to refer to.
package wire

import "github.com/kraken-swarm/connmgr/core"

// MessageType enumerates the kinds of PeerMessage this module cares
// about for connection-manager bookkeeping. A real wire codec carries
// many more message types (choke, interested, have, bitfield, cancel,
// ...); only the ones that affect send-queue/receive-loop bookkeeping
// are modeled here.
type MessageType int

const (
	// MessageKeepAlive carries no payload.
	MessageKeepAlive MessageType = iota
	// MessagePiece carries a block of torrent data. Its Buffer field is
	// pool-managed.
	MessagePiece
	// MessageRequest asks a peer for a piece.
	MessageRequest
	// MessageOther covers every other message type the wire codec
	// understands but that this module does not need to distinguish.
	MessageOther
)

// PeerMessage is a single framed protocol message.
type PeerMessage struct {
	Type MessageType

	// Index/Begin/Length identify the piece for MessagePiece and
	// MessageRequest.
	Index  int
	Begin  int
	Length int

	// Buffer holds the piece payload for MessagePiece. Borrowed from the
	// shared buffer pool; ownership passes pool -> message -> network,
	// and must be returned exactly once.
	Buffer []byte
}

// HandshakeMessage is the initial fixed-format message exchanged
// immediately after encryption is negotiated.
type HandshakeMessage struct {
	Protocol string
	InfoHash core.InfoHash
	PeerID   core.PeerID
}

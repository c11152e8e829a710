package encryption

import (
	"errors"
	"io"

	"github.com/kraken-swarm/connmgr/core"
)

// ErrNoModeAvailable is returned by a Negotiator when no mode in the
// allowed set can complete negotiation.
var ErrNoModeAvailable = errors.New("no allowed encryption mode could be negotiated")

// Encryptor wraps an underlying connection to transparently encrypt
// writes.
type Encryptor interface {
	io.Writer
	Mode() Mode
}

// Decryptor wraps an underlying connection to transparently decrypt
// reads.
type Decryptor interface {
	io.Reader
	Mode() Mode
}

// Settings carries the local encryption policy (whether RC4 is preferred
// over PlainText) used to steer negotiation independent of a specific
// peer's ModeSet.
type Settings struct {
	// PreferRC4 requests RC4 be attempted before PlainText when both are
	// allowed.
	PreferRC4 bool
}

// Negotiator is the external encryption negotiation primitive: given a
// connection, the peer's currently allowed modes, local settings, the
// torrent's info hash, and a prepared handshake message, it performs
// whatever handshake the chosen mode requires and returns a live
// encryptor/decryptor pair. Only the interface lives in this module; a
// concrete negotiator is an out-of-scope collaborator.
type Negotiator interface {
	CheckOutgoing(
		conn io.ReadWriter,
		allowed *ModeSet,
		settings Settings,
		infoHash core.InfoHash,
		handshake []byte,
	) (Encryptor, Decryptor, error)
}

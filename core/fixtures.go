package core

// PeerIDFixture returns a randomly generated PeerID for testing
// convenience. Panics on error since crypto/rand failures are not
// expected in test environments.
func PeerIDFixture() PeerID {
	p, err := RandomPeerID()
	if err != nil {
		panic(err)
	}
	return p
}

// InfoHashFixture returns a randomly generated InfoHash for testing
// convenience.
func InfoHashFixture() InfoHash {
	p := PeerIDFixture()
	var h InfoHash
	copy(h[:], p[:])
	return h
}

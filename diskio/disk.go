// Package diskio defines the disk collaborator the send-queue pump
// reads piece data through. Block storage itself lives outside this
// module; only the interface the pump depends on lives here, shaped
// after storage.Torrent.GetPieceReader in the wider codebase this grew
// out of but flattened to the single blocking call the pump actually
// issues.
package diskio

// Torrent identifies the torrent a read is scoped to. The connection
// manager never inspects it beyond passing it through to Disk.Read; it
// is opaque on purpose so embedders can key it however their storage
// layer wants (digest, info hash, file handle, ...).
type Torrent interface {
	InfoHashHex() string
}

// Disk reads raw piece bytes on behalf of the send-queue pump.
type Disk interface {
	// Read fills buffer[:length] with the bytes of t starting at
	// absoluteOffset. Returns the number of bytes read and any error;
	// a short read with a nil error is treated as ReadFailure by the
	// caller just like a non-nil error would be.
	Read(t Torrent, absoluteOffset int64, buffer []byte, length int) (int, error)
}

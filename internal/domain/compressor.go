package domain

// Compressor shrinks snapshot payloads for the local archive.
type Compressor interface {
	Compress(data []byte) ([]byte, error)
	Decompress(data []byte) ([]byte, error)
}

// Package codec defines how cached snapshots are (de)serialized.
package codec

// Codec encodes/decodes values V to []byte for cache storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}

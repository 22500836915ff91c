package persistence

import (
	"encoding/binary"

	"github.com/sushrut141/dharmadb/config"
	"github.com/sushrut141/dharmadb/dberr"
)

// encodeEntry serializes a (key, value) pair into the payload format an
// SSTable or WAL record carries: a 4-byte big-endian key length followed by
// the encoded key, then the encoded value. The value needs no length prefix
// since it runs to the end of the payload.
func encodeEntry[K, V any](opts config.Options[K, V], key K, value V) ([]byte, error) {
	kb, err := opts.KeyCodec.Encode(key)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindRecordSerializeFailed, err)
	}
	vb, err := opts.ValCodec.Encode(value)
	if err != nil {
		return nil, dberr.Wrap(dberr.KindRecordSerializeFailed, err)
	}
	out := make([]byte, 4+len(kb)+len(vb))
	binary.BigEndian.PutUint32(out[:4], uint32(len(kb)))
	copy(out[4:], kb)
	copy(out[4+len(kb):], vb)
	return out, nil
}

func decodeEntry[K, V any](opts config.Options[K, V], payload []byte) (K, V, error) {
	var zeroK K
	var zeroV V
	if len(payload) < 4 {
		return zeroK, zeroV, dberr.New(dberr.KindRecordDeserializeFailed, "payload shorter than key-length prefix")
	}
	klen := binary.BigEndian.Uint32(payload[:4])
	if uint32(len(payload)) < 4+klen {
		return zeroK, zeroV, dberr.New(dberr.KindRecordDeserializeFailed, "payload shorter than declared key length")
	}
	kb := payload[4 : 4+klen]
	vb := payload[4+klen:]
	key, err := opts.KeyCodec.Decode(kb)
	if err != nil {
		return zeroK, zeroV, dberr.Wrap(dberr.KindRecordDeserializeFailed, err)
	}
	value, err := opts.ValCodec.Decode(vb)
	if err != nil {
		return zeroK, zeroV, dberr.Wrap(dberr.KindRecordDeserializeFailed, err)
	}
	return key, value, nil
}

// decodeKey is the index package's DecodeKeyFunc, sharing decodeEntry's
// payload layout rather than re-deriving it.
func decodeKey[K, V any](opts config.Options[K, V]) func(payload []byte) (K, error) {
	return func(payload []byte) (K, error) {
		key, _, err := decodeEntry(opts, payload)
		return key, err
	}
}

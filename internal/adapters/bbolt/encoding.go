// Key and value encoding for the matches bucket.
//
// Each match group is a nested bucket named after its sample id. Members are
// stored under 8-byte big-endian sequence keys so a cursor walk returns them
// in append order:
//
//	matches/
//	  <sample_id>/
//	    0000000000000001 -> {"k1": 1234}
//	    0000000000000002 -> {"k2": "abc"}
//
// Values are JSON objects. Numbers decode as json.Number, which is the same
// shape documents have when they arrive over the wire.
package bbolt

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/corey/doclink/internal/ports"
)

// seqSize is the byte size of an encoded member key.
const seqSize = 8

// memberKey encodes a bucket sequence number as a sortable key.
func memberKey(seq uint64) []byte {
	buf := make([]byte, seqSize)
	binary.BigEndian.PutUint64(buf, seq)
	return buf
}

// decodeMemberKey is the inverse of memberKey.
func decodeMemberKey(k []byte) (uint64, error) {
	if len(k) != seqSize {
		return 0, fmt.Errorf("member key has %d bytes, want %d", len(k), seqSize)
	}
	return binary.BigEndian.Uint64(k), nil
}

// encodeObject marshals a JSON object value.
func encodeObject(v map[string]any) ([]byte, error) {
	if v == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(v)
}

// decodeObject unmarshals a stored JSON object. The bytes must already be
// copied out of the transaction.
func decodeObject(data []byte) (ports.Document, error) {
	var out map[string]any
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

// copyBytes copies a value out of a bbolt transaction. bbolt slices are only
// valid while the transaction is open.
func copyBytes(v []byte) []byte {
	out := make([]byte, len(v))
	copy(out, v)
	return out
}

// Package cidutil computes the content identifiers of audit records.
//
// Every record is addressed by a CIDv1 with the "raw" multicodec and a
// sha2-256 multihash, so records can be replicated into any IPFS-compatible
// store without re-hashing.
package cidutil

import (
	"errors"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

var ErrUnsupportedCID = errors.New("cidutil: unsupported cid")

// Sum returns the CIDv1 (raw + sha2-256) of data.
func Sum(data []byte) (cid.Cid, error) {
	sum, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return cid.Undef, err
	}
	return cid.NewCidV1(cid.Raw, sum), nil
}

// String is Sum in text form. It returns "" only if hashing fails, which
// multihash.Sum does not do for sha2-256 with default length.
func String(data []byte) string {
	id, err := Sum(data)
	if err != nil {
		return ""
	}
	return id.String()
}

// Parse decodes s and rejects identifiers that Sum could not have produced.
func Parse(s string) (cid.Cid, error) {
	id, err := cid.Decode(s)
	if err != nil {
		return cid.Undef, err
	}
	if err := Check(id); err != nil {
		return cid.Undef, err
	}
	return id, nil
}

// Check reports whether id is a CIDv1 raw sha2-256 identifier.
func Check(id cid.Cid) error {
	if !id.Defined() {
		return fmt.Errorf("%w: undefined", ErrUnsupportedCID)
	}
	p := id.Prefix()
	if p.Version != 1 || p.Codec != cid.Raw || p.MhType != multihash.SHA2_256 {
		return fmt.Errorf("%w: %s", ErrUnsupportedCID, id)
	}
	return nil
}

// Matches reports whether data hashes to id.
func Matches(id cid.Cid, data []byte) bool {
	got, err := Sum(data)
	return err == nil && got.Equals(id)
}

// Package storage defines the content-addressed store that holds audit records.
//
// Records are immutable and keyed by cidutil.Sum of their bytes, so any number
// of backends (local directory, memory, a remote daemon) can hold the same
// record set and readers can verify every byte they receive.
package storage

import (
	"context"

	"github.com/ipfs/go-cid"
)

// CAS is a minimal content-addressable storage interface.
//
// Contract:
// - Put MUST be idempotent.
// - Stored objects MUST be immutable.
// - CIDs MUST be derived from the bytes written (cidutil.Sum).
// - Get MUST return ErrNotFound when the CID is absent.
type CAS interface {
	Put(ctx context.Context, data []byte) (cid.Cid, error)
	Get(ctx context.Context, id cid.Cid) ([]byte, error)
	Has(ctx context.Context, id cid.Cid) (bool, error)
}

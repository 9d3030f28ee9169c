// Copyright 2025 Certen Protocol
//
// Package checkpoint implements the validator side of the system: the
// tree-ingestion, signing and reorg-detection loops,
// and the checkpoint store interface its S3, GCS and local backends
// satisfy.
package checkpoint

import (
	"context"

	"github.com/hyperlane-xyz/hyperlane-core-go/pkg/hyptypes"
)

// Announcement binds a validator's signing key to the public location of
// its checkpoint store, published once so relayers know where to read
// checkpoints from.
type Announcement struct {
	Validator       hyptypes.H256
	MailboxAddress  hyptypes.H256
	MailboxDomain   hyptypes.Domain
	StorageLocation string
	Signature       hyptypes.Signature
}

// Store is what a validator writes checkpoints to and what a relayer
// reads them from. All writes are content-typed JSON; latest_index is
// written separately from (and lags behind) the checkpoint write itself,
// so readers must not assume the two are consistent across a single read.
type Store interface {
	// LatestIndex returns the highest index with a published checkpoint.
	// found is false if the store has never had one written.
	LatestIndex(ctx context.Context) (index uint32, found bool, err error)
	FetchCheckpoint(ctx context.Context, index uint32) (*hyptypes.SignedCheckpoint, error)
	WriteCheckpoint(ctx context.Context, signed hyptypes.SignedCheckpoint) error
	WriteAnnouncement(ctx context.Context, ann Announcement) error
	AnnouncementLocation() string
}

// Copyright 2025 Certen Protocol

package checkpoint

import "errors"

var ErrMissingCollaborator = errors.New("checkpoint: cursor, indexer, tree, stores, signer and origin root source are all required")

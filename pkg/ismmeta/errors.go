// Copyright 2025 Certen Protocol

package ismmeta

import "errors"

var ErrMissingCollaborator = errors.New("ismmeta: ism reader, checkpoint source, proof source and leaf indexer are all required")

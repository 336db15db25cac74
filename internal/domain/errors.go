package domain

import "errors"

// Sentinel errors shared across layers. Each layer wraps these with
// fmt.Errorf("%w: %s", ...) to attach the offending id, following the
// teacher's convention of wrapping a sentinel rather than a single
// god-error type (see internal/source/curseforge/client.go in the
// reference repo this module was built from).
var (
	ErrAlreadyExists = errors.New("mod already exists")
	ErrNotFound      = errors.New("mod not found")
	ErrNonDirectory  = errors.New("mod path is not a directory")
	ErrSource        = errors.New("invalid install source")
	ErrDestination   = errors.New("invalid install destination")
	ErrManifestParse = errors.New("invalid manifest")
	ErrInvalidURI    = errors.New("invalid remote URI")
	ErrInvalidToken  = errors.New("invalid auth token")
	ErrChannelClosed = errors.New("command channel closed")
)

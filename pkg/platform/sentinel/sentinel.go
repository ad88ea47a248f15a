package sentinel

import "errors"

// Sentinel errors for infrastructure facts. Snapshot stores, the journal and
// the transports return these (optionally wrapped) so callers can branch on
// the fact without parsing messages:
//   - ErrNotFound: no snapshot has been saved yet
//   - ErrInvalidState: persisted or configured state violates a ledger invariant
//   - ErrUnavailable: a backing service could not be reached
//
// Rejections of a ledger action use pkg/domain-errors instead.
var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)

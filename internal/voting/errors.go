package voting

import "github.com/emilythestrangee/forum/backend/internal/apperrors"

var (
	ErrInvalidVote     = apperrors.Validation("vote value must be -1 or 1")
	ErrUnknownTarget   = apperrors.Validation("unknown vote target type")
	ErrTargetNotFound  = apperrors.NotFound("vote target not found")
	ErrUnauthenticated = apperrors.Unauthorized("authentication required to vote")

	// ErrConflict is returned by a Store when a concurrent write forced the
	// transaction to abort. The Service retries it.
	ErrConflict = apperrors.Conflict("concurrent vote write conflict")
)

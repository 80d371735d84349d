package room

import (
	"errors"

	pkgerrors "github.com/pkg/errors"
)

var (
	// errors
	ErrNotFound           = errors.New("room not found")
	ErrAccountNotFound    = errors.New("account not found")
	ErrPresenceNotFound   = errors.New("presence not found")
	ErrPoolExhausted      = errors.New("no free host account in the pool; please set up more accounts")
	ErrProvider           = errors.New("meeting provider request failed")
	ErrPermissionDenied   = errors.New("permission denied")
	ErrAccessCodeMismatch = errors.New("access code does not match")
	ErrNotStartedYet      = errors.New("session has not started yet")
	ErrJoinURLNotFound    = errors.New("join url not found")
	ErrMeetingNotValid    = errors.New("meeting is not valid")
)

// newProviderError tags err as an external API failure; ErrProvider stays the
// cause so the HTTP layer can map it, the original error text is preserved.
func newProviderError(err error, msg string) error {
	return pkgerrors.Wrapf(ErrProvider, "%s: %v", msg, err)
}


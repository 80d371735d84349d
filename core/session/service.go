package session

import (
	"context"
	"errors"

	"github.com/trezcool/darasa/core"
)

var (
	// errors
	ErrNotFound             = errors.New("session not found")
	ErrRegistrationNotFound = errors.New("registration not found")
)

type (
	// Repository reads the externally-owned session collection. The room core
	// is the only writer of the room-related fields (RoomStatus, Recordings);
	// everything else on the record belongs to the CRUD layer.
	Repository interface {
		GetSession(ctx context.Context, id string, exec ...core.DBExecutor) (Session, error)
		// SetSessionRoomStatus updates only Session.RoomStatus.
		SetSessionRoomStatus(ctx context.Context, id, roomStatus string, exec ...core.DBExecutor) error
		// AppendSessionRecording appends rec to Session.Recordings.
		// It reports false when a recording with the same id already exists (duplicate webhooks).
		AppendSessionRecording(ctx context.Context, id string, rec Recording, exec ...core.DBExecutor) (bool, error)
		// GetRegistration fetches the roster entry of a user on a session.
		GetRegistration(ctx context.Context, sessionID, userID string, exec ...core.DBExecutor) (Registration, error)
		// QueryRoster returns all active roster entries of a session.
		QueryRoster(ctx context.Context, sessionID string, exec ...core.DBExecutor) ([]Registration, error)
	}
)

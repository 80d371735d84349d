package room

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/user"
)

// ViewerCount is the number of distinct users currently in the room: joins
// minus leaves per user, floored at zero. It is a pure derived view over the
// Presence rows maintained by the webhook handlers.
func (svc *Service) ViewerCount(ctx context.Context, roomID string) (int, error) {
	count, err := svc.presences.CountJoined(ctx, roomID)
	if err != nil {
		return 0, errors.Wrap(err, "counting joined presences")
	}
	if count < 0 {
		count = 0
	}
	return count, nil
}

// markPresence upserts the (room, participant email) row into the given
// status, stamping the matching timestamp. A join for an unknown email creates
// the row, resolving the platform user by email when possible.
func (svc *Service) markPresence(ctx context.Context, rm Room, part EventParticipant, status string, at time.Time) error {
	if part.Email == "" {
		return nil // nothing to key the row on
	}

	now := time.Now().UTC()
	pr, err := svc.presences.GetPresence(ctx, rm.ID, part.Email)
	if err != nil {
		if errors.Cause(err) != ErrPresenceNotFound {
			return errors.Wrap(err, "finding presence")
		}
		pr = Presence{
			RoomID:       rm.ID,
			Name:         part.Name,
			Email:        part.Email,
			RegistrantID: part.ID,
			CreatedAt:    now,
		}
		if usr, uerr := svc.users.GetUser(ctx, user.GetFilter{Email: part.Email}); uerr == nil {
			pr.UserID = usr.ID
		}
	}

	pr.Status = status
	switch status {
	case PresenceJoined:
		pr.JoinedAt = null.TimeFrom(at.UTC())
	case PresenceLeft:
		pr.LeftAt = null.TimeFrom(at.UTC())
	}
	pr.UpdatedAt = now

	_, err = svc.presences.UpsertPresence(ctx, pr)
	return errors.Wrap(err, "persisting presence")
}

package room

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/session"
)

// AllocateRoom creates a provider meeting on the given pool account and
// persists the PENDING Room row for it. lockToken is the pool reservation
// obtained by AcquireAccount; it stays on the Room so the `started` webhook
// can release it. On provider failure nothing is persisted and the session is
// left without a room; when the allocation was part of session creation the
// caller must roll back the session itself.
func (svc *Service) AllocateRoom(ctx context.Context, sess session.Session, acct Account, lockToken string) (Room, error) {
	duration := sess.Duration()
	if duration <= 0 {
		duration = svc.conf.Provider.DefaultDuration
	}

	nm := NewMeeting{
		Topic:     sess.Name,
		StartTime: sess.Begin,
		Duration:  duration,
		Timezone:  svc.conf.Provider.Timezone,
		Agenda:    sess.ID, // lets operators trace a meeting back to its session
	}

	pctx, cancel := svc.providerCtx(ctx)
	meeting, err := svc.meetings.CreateMeeting(pctx, acct, nm)
	cancel()
	if err != nil {
		// a failed attempt must not starve the account for the full TTL
		svc.unlockAccount(ctx, acct.ID, lockToken)
		return Room{}, newProviderError(err, "creating meeting")
	}

	now := time.Now().UTC()
	rm := Room{
		SessionID:    sess.ID,
		AccountID:    acct.ID,
		AccountEmail: acct.Email,
		MeetingID:    meeting.ID,
		MeetingUUID:  meeting.UUID,
		Topic:        meeting.Topic,
		StartURL:     meeting.StartURL,
		JoinURL:      meeting.JoinURL,
		Status:       StatusPending,
		LockToken:    lockToken,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	rm, err = svc.rooms.CreateRoom(ctx, rm)
	if err != nil {
		svc.unlockAccount(ctx, acct.ID, lockToken)
		return Room{}, errors.Wrap(err, "persisting room")
	}
	return rm, nil
}

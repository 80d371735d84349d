package room

import (
	"context"
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/volatiletech/null/v8"

	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

// HandleEvent consumes one inbound provider webhook. The raw event is first
// appended to the immutable ledger; only that append can fail the call, so the
// provider retries exactly when nothing was recorded. Every transition after
// the append is an idempotent guard: applied only when the matched Room is in
// the state the event expects, otherwise a no-op. Failures past the append are
// logged and swallowed; the next correct webhook (or an operator
// reconciliation) restores consistency.
func (svc *Service) HandleEvent(ctx context.Context, evt InboundEvent) error {
	ts := evt.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	if _, err := svc.events.CreateEvent(ctx, WebhookEvent{
		Event:      evt.Name,
		EventTS:    ts,
		MeetingID:  evt.MeetingID,
		Payload:    evt.Raw,
		ReceivedAt: time.Now().UTC(),
	}); err != nil {
		return errors.Wrap(err, "appending webhook event")
	}

	var err error
	switch evt.Name {
	case EventMeetingStarted:
		err = svc.applyStarted(ctx, evt)
	case EventMeetingEnded:
		err = svc.applyEnded(ctx, evt)
	case EventRecordingComplete:
		err = svc.applyCompleted(ctx, evt)
	case EventParticipantJoined:
		err = svc.applyParticipantJoined(ctx, evt)
	case EventParticipantLeft:
		err = svc.applyParticipantLeft(ctx, evt)
	default:
		svc.logger.Debug("room: ignoring webhook event " + evt.Name)
	}
	if err != nil {
		svc.logger.Error(fmt.Sprintf("room: applying %s for meeting %s: %v", evt.Name, evt.MeetingID, err), err)
	}
	return nil
}

// applyStarted: PENDING -> LIVING. Releases the pool reservation, flips the
// account online, reflects RUNNING on the session, and fans the roster
// notification out exactly once per Room (NotifiedAt gates replays even after
// an operator resets the status).
func (svc *Service) applyStarted(ctx context.Context, evt InboundEvent) error {
	rm, err := svc.rooms.GetRoom(ctx, GetFilter{MeetingID: evt.MeetingID, Status: StatusPending})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil // duplicate or out-of-order delivery
		}
		return errors.Wrap(err, "finding pending room")
	}

	now := time.Now().UTC()
	notify := !rm.NotifiedAt.Valid

	rm.Status = StatusLiving
	rm.StartTime = null.TimeFrom(now)
	if notify {
		rm.NotifiedAt = null.TimeFrom(now)
	}
	rm.UpdatedAt = now
	if rm, err = svc.rooms.UpdateRoom(ctx, rm); err != nil {
		return errors.Wrap(err, "updating room")
	}

	// the reservation did its job; free the account for pool bookkeeping
	if rm.LockToken != "" {
		svc.unlockAccount(ctx, rm.AccountID, rm.LockToken)
	}
	if err = svc.accounts.SetAccountOnline(ctx, rm.AccountID, true); err != nil {
		svc.logger.Error(fmt.Sprintf("room: setting account %s online: %v", rm.AccountID, err), err)
	}
	if err = svc.sessions.SetSessionRoomStatus(ctx, rm.SessionID, session.RoomStatusRunning); err != nil {
		svc.logger.Error(fmt.Sprintf("room: setting session %s running: %v", rm.SessionID, err), err)
	}

	svc.logger.Info(fmt.Sprintf("room %s living: session %s, meeting %s, account %s", rm.ID, rm.SessionID, rm.MeetingID, rm.AccountID))

	if notify {
		svc.notifyStarted(ctx, rm)
	}
	return nil
}

// applyEnded: LIVING -> STOP.
func (svc *Service) applyEnded(ctx context.Context, evt InboundEvent) error {
	rm, err := svc.rooms.GetRoom(ctx, GetFilter{MeetingID: evt.MeetingID, Status: StatusLiving})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding living room")
	}
	return svc.stopRoom(ctx, rm)
}

// applyCompleted: recording metadata is appended regardless of Room state
// (idempotent by recording id). When the Room is somehow still LIVING the
// ended effect is applied as well; some providers signal completion without a
// prior ended event.
func (svc *Service) applyCompleted(ctx context.Context, evt InboundEvent) error {
	rm, err := svc.rooms.GetRoom(ctx, GetFilter{MeetingID: evt.MeetingID})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return nil
		}
		return errors.Wrap(err, "finding room")
	}

	if evt.Recording.ID != "" {
		recordedAt := evt.Recording.RecordedAt
		if recordedAt.IsZero() {
			recordedAt = time.Now().UTC()
		}
		added, err := svc.sessions.AppendSessionRecording(ctx, rm.SessionID, session.Recording{
			ID:         evt.Recording.ID,
			PlayURL:    evt.Recording.PlayURL,
			ShareURL:   evt.Recording.ShareURL,
			RecordedAt: recordedAt,
		})
		if err != nil {
			return errors.Wrap(err, "appending recording")
		}
		if !added {
			svc.logger.Debug(fmt.Sprintf("room: duplicate recording %s ignored", evt.Recording.ID))
		}
	}

	if rm.IsLiving() {
		return svc.stopRoom(ctx, rm)
	}
	return nil
}

// stopRoom applies the ended effect: terminal state, account back offline,
// session flagged ENDED, presences reconciled from the provider report.
func (svc *Service) stopRoom(ctx context.Context, rm Room) error {
	now := time.Now().UTC()
	rm.Status = StatusStop
	rm.EndTime = null.TimeFrom(now)
	rm.UpdatedAt = now

	var err error
	if rm, err = svc.rooms.UpdateRoom(ctx, rm); err != nil {
		return errors.Wrap(err, "updating room")
	}
	if err = svc.sessions.SetSessionRoomStatus(ctx, rm.SessionID, session.RoomStatusEnded); err != nil {
		svc.logger.Error(fmt.Sprintf("room: setting session %s ended: %v", rm.SessionID, err), err)
	}
	if err = svc.accounts.SetAccountOnline(ctx, rm.AccountID, false); err != nil {
		svc.logger.Error(fmt.Sprintf("room: setting account %s offline: %v", rm.AccountID, err), err)
	}

	svc.logger.Info(fmt.Sprintf("room %s stopped: session %s, meeting %s", rm.ID, rm.SessionID, rm.MeetingID))

	svc.reconcilePresences(ctx, rm)
	return nil
}

func (svc *Service) applyParticipantJoined(ctx context.Context, evt InboundEvent) error {
	rm, ok, err := svc.matchRoom(ctx, evt)
	if err != nil || !ok {
		return err
	}

	joinedAt := evt.Participant.JoinedAt
	if joinedAt.IsZero() {
		joinedAt = time.Now().UTC()
	}
	return svc.markPresence(ctx, rm, evt.Participant, PresenceJoined, joinedAt)
}

func (svc *Service) applyParticipantLeft(ctx context.Context, evt InboundEvent) error {
	rm, ok, err := svc.matchRoom(ctx, evt)
	if err != nil || !ok {
		return err
	}

	leftAt := evt.Participant.LeftAt
	if leftAt.IsZero() {
		leftAt = time.Now().UTC()
	}
	return svc.markPresence(ctx, rm, evt.Participant, PresenceLeft, leftAt)
}

// matchRoom resolves the newest Room for the event's meeting id and checks the
// host-account email when the payload carries one.
func (svc *Service) matchRoom(ctx context.Context, evt InboundEvent) (Room, bool, error) {
	rm, err := svc.rooms.GetRoom(ctx, GetFilter{MeetingID: evt.MeetingID})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return Room{}, false, nil
		}
		return Room{}, false, errors.Wrap(err, "finding room")
	}
	if evt.HostEmail != "" && rm.AccountEmail != "" && evt.HostEmail != rm.AccountEmail {
		return Room{}, false, nil // not our room
	}
	return rm, true, nil
}

// reconcilePresences pulls the provider's participant report after a room
// stopped and fixes up join/leave times and durations for anyone resolvable by
// email. Best effort: failures are logged, the webhook is never retried for them.
func (svc *Service) reconcilePresences(ctx context.Context, rm Room) {
	acct, err := svc.accounts.GetAccount(ctx, AccountGetFilter{ID: rm.AccountID})
	if err != nil {
		svc.logger.Error(fmt.Sprintf("room: finding account %s for report: %v", rm.AccountID, err), err)
		return
	}

	pctx, cancel := svc.providerCtx(ctx)
	report, err := svc.meetings.GetParticipantReport(pctx, acct, rm.MeetingID)
	cancel()
	if err != nil {
		svc.logger.Error(fmt.Sprintf("room: fetching participant report for meeting %s: %v", rm.MeetingID, err), err)
		return
	}

	now := time.Now().UTC()
	for _, part := range report {
		if part.Email == "" {
			continue
		}
		pr, err := svc.presences.GetPresence(ctx, rm.ID, part.Email)
		if err != nil {
			if errors.Cause(err) != ErrPresenceNotFound {
				svc.logger.Error(fmt.Sprintf("room: finding presence %s/%s: %v", rm.ID, part.Email, err), err)
				continue
			}
			pr = Presence{RoomID: rm.ID, Name: part.Name, Email: part.Email, CreatedAt: now}
			if usr, uerr := svc.users.GetUser(ctx, user.GetFilter{Email: part.Email}); uerr == nil {
				pr.UserID = usr.ID
			}
		}
		pr.Status = PresenceLeft
		if !part.JoinedAt.IsZero() {
			pr.JoinedAt = null.TimeFrom(part.JoinedAt.UTC())
		}
		if !part.LeftAt.IsZero() {
			pr.LeftAt = null.TimeFrom(part.LeftAt.UTC())
		}
		pr.Duration = part.Duration
		pr.UpdatedAt = now
		if _, err = svc.presences.UpsertPresence(ctx, pr); err != nil {
			svc.logger.Error(fmt.Sprintf("room: reconciling presence %s/%s: %v", rm.ID, part.Email, err), err)
		}
	}
}

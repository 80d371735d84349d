package room

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

// ResolveJoin decides start-vs-join for a user on a session and returns the
// provider URL they need. Instructors, admins and course-teachers start (or
// re-enter) the room; everyone else joins as an attendee subject to roster
// registration and the session's access code.
func (svc *Service) ResolveJoin(ctx context.Context, usr user.User, sessionID, accessCode string) (string, error) {
	sess, err := svc.sessions.GetSession(ctx, sessionID)
	if err != nil {
		if errors.Cause(err) == session.ErrNotFound {
			return "", ErrNotFound
		}
		return "", errors.Wrap(err, "finding session")
	}
	if !sess.IsLiveHosted() {
		return "", ErrNotFound
	}

	canStart, err := svc.canStart(ctx, usr, sess)
	if err != nil {
		return "", err
	}
	if canStart {
		return svc.resolveStart(ctx, sess)
	}
	return svc.resolveAttend(ctx, usr, sess, accessCode)
}

// canStart: the session's instructor, platform admins, and users holding the
// instructor role on the session's roster may start the room.
func (svc *Service) canStart(ctx context.Context, usr user.User, sess session.Session) (bool, error) {
	if usr.ID == sess.InstructorID || usr.IsAdmin() {
		return true, nil
	}
	if !usr.IsTeacher() {
		return false, nil
	}
	reg, err := svc.sessions.GetRegistration(ctx, sess.ID, usr.ID)
	if err != nil {
		if errors.Cause(err) == session.ErrRegistrationNotFound {
			return false, nil
		}
		return false, errors.Wrap(err, "finding registration")
	}
	return reg.IsActive && reg.IsInstructor(), nil
}

func (svc *Service) resolveStart(ctx context.Context, sess session.Session) (string, error) {
	rm, err := svc.rooms.GetRoom(ctx, GetFilter{SessionID: sess.ID, Status: StatusLiving})
	if err == nil {
		// room already live: hand back its host URL, refreshed from the
		// provider when possible (start URLs carry short-lived tokens)
		if acct, aerr := svc.accounts.GetAccount(ctx, AccountGetFilter{ID: rm.AccountID}); aerr == nil {
			pctx, cancel := svc.providerCtx(ctx)
			meeting, merr := svc.meetings.GetMeeting(pctx, acct, rm.MeetingID)
			cancel()
			if merr == nil && meeting.StartURL != "" {
				return meeting.StartURL, nil
			}
		}
		if rm.StartURL == "" {
			return "", ErrJoinURLNotFound
		}
		return rm.StartURL, nil
	}
	if errors.Cause(err) != ErrNotFound {
		return "", errors.Wrap(err, "finding living room")
	}

	// no live room: allocate one
	acct, lockToken, err := svc.AcquireAccount(ctx)
	if err != nil {
		return "", err
	}
	rm, err = svc.AllocateRoom(ctx, sess, acct, lockToken)
	if err != nil {
		return "", err
	}
	return rm.StartURL, nil
}

func (svc *Service) resolveAttend(ctx context.Context, usr user.User, sess session.Session, accessCode string) (string, error) {
	reg, err := svc.sessions.GetRegistration(ctx, sess.ID, usr.ID)
	if err != nil {
		if errors.Cause(err) == session.ErrRegistrationNotFound {
			return "", ErrPermissionDenied
		}
		return "", errors.Wrap(err, "finding registration")
	}
	if !reg.IsActive {
		return "", ErrPermissionDenied
	}

	if sess.AccessCode != "" && sess.AccessCode != accessCode {
		return "", ErrAccessCodeMismatch
	}

	rm, err := svc.rooms.GetRoom(ctx, GetFilter{SessionID: sess.ID, Status: StatusLiving})
	if err != nil {
		if errors.Cause(err) == ErrNotFound {
			return "", ErrNotStartedYet
		}
		return "", errors.Wrap(err, "finding living room")
	}
	if rm.MeetingID == "" {
		return "", ErrMeetingNotValid
	}

	// a registrant may already exist for this email+meeting (rejoin): reset it
	// to WAITING instead of creating a duplicate
	now := time.Now().UTC()
	pr, err := svc.presences.GetPresence(ctx, rm.ID, usr.Email)
	if err == nil {
		pr.Status = PresenceWaiting
		if pr.UserID == "" {
			pr.UserID = usr.ID
		}
		pr.UpdatedAt = now
		if pr, err = svc.presences.UpsertPresence(ctx, pr); err != nil {
			return "", errors.Wrap(err, "resetting presence")
		}
		if pr.JoinURL != "" {
			return pr.JoinURL, nil
		}
	} else if errors.Cause(err) != ErrPresenceNotFound {
		return "", errors.Wrap(err, "finding presence")
	}

	acct, err := svc.accounts.GetAccount(ctx, AccountGetFilter{ID: rm.AccountID})
	if err != nil {
		return "", errors.Wrap(err, "finding room account")
	}

	first, last := splitName(usr.Name)
	pctx, cancel := svc.providerCtx(ctx)
	registrant, err := svc.meetings.AddRegistrant(pctx, acct, rm.MeetingID, NewRegistrant{
		Email:     usr.Email,
		FirstName: first,
		LastName:  last,
	})
	cancel()
	if err != nil {
		return "", newProviderError(err, "adding registrant")
	}

	pr = Presence{
		RoomID:       rm.ID,
		UserID:       usr.ID,
		Name:         usr.Name,
		Email:        usr.Email,
		RegistrantID: registrant.ID,
		JoinURL:      registrant.JoinURL,
		Status:       PresenceWaiting,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if pr, err = svc.presences.UpsertPresence(ctx, pr); err != nil {
		return "", errors.Wrap(err, "persisting presence")
	}

	joinURL := pr.JoinURL
	if joinURL == "" {
		joinURL = rm.JoinURL
	}
	if joinURL == "" {
		return "", ErrJoinURLNotFound
	}
	return joinURL, nil
}

func splitName(name string) (first, last string) {
	parts := strings.SplitN(strings.TrimSpace(name), " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		last = parts[1]
	}
	return first, last
}

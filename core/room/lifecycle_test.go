package room_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/room"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

func TestService_HandleEvent_started(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*testEnv, session.Session, room.Room) {
		env := newTestEnv(t)
		env.seedAccount(t, "acct1", "host1@darasa.test", true)
		instructor := env.seedUser(t, "Ada Wong", "ada@darasa.test", []string{user.RoleTeacher})
		sess := env.seedSession(t, instructor.ID, "")
		learner := env.seedUser(t, "John Doe", "john@darasa.test", []string{user.RoleStudent})
		env.seedRegistration(t, sess, learner, session.RegistrationRoleLearner, true)

		_, err := env.svc.ResolveJoin(ctx, instructor, sess.ID, "")
		require.NoError(t, err)
		rm, err := env.rooms.GetRoom(ctx, room.GetFilter{SessionID: sess.ID, Status: room.StatusPending})
		require.NoError(t, err)
		return env, sess, rm
	}

	started := func(rm room.Room) room.InboundEvent {
		return room.InboundEvent{
			Name:      room.EventMeetingStarted,
			Timestamp: time.Now().UTC(),
			MeetingID: rm.MeetingID,
			HostEmail: rm.AccountEmail,
		}
	}

	t.Run("pending room goes living", func(t *testing.T) {
		env, sess, rm := setup(t)

		require.NoError(t, env.svc.HandleEvent(ctx, started(rm)))

		rm, err := env.rooms.GetRoom(ctx, room.GetFilter{ID: rm.ID})
		require.NoError(t, err)
		assert.Equal(t, room.StatusLiving, rm.Status)
		assert.True(t, rm.StartTime.Valid)
		assert.True(t, rm.NotifiedAt.Valid)

		assert.False(t, env.locker.IsLocked("account:"+rm.AccountID), "pool reservation must be released")

		acct, err := env.accounts.GetAccount(ctx, room.AccountGetFilter{ID: rm.AccountID})
		require.NoError(t, err)
		assert.Equal(t, room.AccountOnline, acct.OnlineStatus)

		got, err := env.sessions.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, session.RoomStatusRunning, got.RoomStatus)
	})

	t.Run("roster fanout goes out exactly once", func(t *testing.T) {
		env, sess, rm := setup(t)

		require.NoError(t, env.svc.HandleEvent(ctx, started(rm)))
		require.Equal(t, 2, env.mail.count(), "one learner batch and one host message")

		learnerMsg, hostMsg := env.mail.sent[0], env.mail.sent[1]
		require.Len(t, learnerMsg.Bcc, 1)
		assert.Equal(t, "john@darasa.test", learnerMsg.Bcc[0].Address)
		assert.Equal(t, sess.Name+" is live", learnerMsg.Subject)
		require.Len(t, hostMsg.To, 1)
		assert.Equal(t, "ada@darasa.test", hostMsg.To[0].Address)

		// replayed delivery: still appended to the ledger, everything else a no-op
		require.NoError(t, env.svc.HandleEvent(ctx, started(rm)))
		assert.Equal(t, 2, env.mail.count(), "a replayed started must not re-notify")

		events, err := env.events.QueryEvents(ctx, &room.EventQueryFilter{MeetingID: rm.MeetingID})
		require.NoError(t, err)
		assert.Len(t, events, 2)
	})

	t.Run("started for an unknown meeting is swallowed", func(t *testing.T) {
		env, _, _ := setup(t)

		err := env.svc.HandleEvent(ctx, room.InboundEvent{
			Name:      room.EventMeetingStarted,
			MeetingID: "424242",
		})
		assert.NoError(t, err)
	})
}

func TestService_HandleEvent_stop(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*testEnv, session.Session, room.Room) {
		env := newTestEnv(t)
		env.seedAccount(t, "acct1", "host1@darasa.test", true)
		instructor := env.seedUser(t, "Ada Wong", "ada@darasa.test", []string{user.RoleTeacher})
		sess := env.seedSession(t, instructor.ID, "")
		rm := env.startLivingRoom(t, sess, instructor)
		return env, sess, rm
	}

	t.Run("ended stops the room", func(t *testing.T) {
		env, sess, rm := setup(t)

		require.NoError(t, env.svc.HandleEvent(ctx, room.InboundEvent{
			Name:      room.EventMeetingEnded,
			MeetingID: rm.MeetingID,
		}))

		rm, err := env.rooms.GetRoom(ctx, room.GetFilter{ID: rm.ID})
		require.NoError(t, err)
		assert.Equal(t, room.StatusStop, rm.Status)
		assert.True(t, rm.EndTime.Valid)

		acct, err := env.accounts.GetAccount(ctx, room.AccountGetFilter{ID: rm.AccountID})
		require.NoError(t, err)
		assert.Equal(t, room.AccountOffline, acct.OnlineStatus)

		got, err := env.sessions.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Equal(t, session.RoomStatusEnded, got.RoomStatus)
	})

	t.Run("recording completed before ended stops once and keeps one recording", func(t *testing.T) {
		env, sess, rm := setup(t)

		completed := room.InboundEvent{
			Name:      room.EventRecordingComplete,
			MeetingID: rm.MeetingID,
			Recording: room.EventRecording{
				ID:         "rec-1",
				PlayURL:    "https://meet.test/rec/rec-1",
				ShareURL:   "https://meet.test/share/rec-1",
				RecordedAt: time.Now().UTC(),
			},
		}
		require.NoError(t, env.svc.HandleEvent(ctx, completed))

		rm, err := env.rooms.GetRoom(ctx, room.GetFilter{ID: rm.ID})
		require.NoError(t, err)
		assert.Equal(t, room.StatusStop, rm.Status)
		firstEnd := rm.EndTime

		got, err := env.sessions.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		require.Len(t, got.Recordings, 1)
		assert.Equal(t, "rec-1", got.Recordings[0].ID)

		// the late ended delivery and a duplicate completed are both no-ops
		require.NoError(t, env.svc.HandleEvent(ctx, room.InboundEvent{
			Name:      room.EventMeetingEnded,
			MeetingID: rm.MeetingID,
		}))
		require.NoError(t, env.svc.HandleEvent(ctx, completed))

		rm, err = env.rooms.GetRoom(ctx, room.GetFilter{ID: rm.ID})
		require.NoError(t, err)
		assert.Equal(t, firstEnd, rm.EndTime)

		got, err = env.sessions.GetSession(ctx, sess.ID)
		require.NoError(t, err)
		assert.Len(t, got.Recordings, 1)
	})

	t.Run("stop reconciles presences from the participant report", func(t *testing.T) {
		env, _, rm := setup(t)

		joined := time.Now().UTC().Add(-30 * time.Minute)
		left := joined.Add(25 * time.Minute)
		env.meetings.Reports[rm.MeetingID] = []room.ReportParticipant{
			{ID: "p1", Name: "John Doe", Email: "john@darasa.test", JoinedAt: joined, LeftAt: left, Duration: 1500},
			{ID: "p2", Name: "Dialin User", Email: ""}, // unresolvable, skipped
		}

		require.NoError(t, env.svc.HandleEvent(ctx, room.InboundEvent{
			Name:      room.EventMeetingEnded,
			MeetingID: rm.MeetingID,
		}))

		pr, err := env.presences.GetPresence(ctx, rm.ID, "john@darasa.test")
		require.NoError(t, err)
		assert.Equal(t, room.PresenceLeft, pr.Status)
		assert.Equal(t, 1500, pr.Duration)
		assert.True(t, pr.JoinedAt.Valid)
		assert.True(t, pr.LeftAt.Valid)
	})
}

func TestService_HandleEvent_participants(t *testing.T) {
	ctx := context.Background()

	setup := func(t *testing.T) (*testEnv, room.Room) {
		env := newTestEnv(t)
		env.seedAccount(t, "acct1", "host1@darasa.test", true)
		instructor := env.seedUser(t, "Ada Wong", "ada@darasa.test", []string{user.RoleTeacher})
		sess := env.seedSession(t, instructor.ID, "")
		rm := env.startLivingRoom(t, sess, instructor)
		return env, rm
	}

	t.Run("joined then left", func(t *testing.T) {
		env, rm := setup(t)

		require.NoError(t, env.svc.HandleEvent(ctx, room.InboundEvent{
			Name:        room.EventParticipantJoined,
			MeetingID:   rm.MeetingID,
			HostEmail:   rm.AccountEmail,
			Participant: room.EventParticipant{ID: "p1", Name: "John Doe", Email: "john@darasa.test", JoinedAt: time.Now().UTC()},
		}))

		pr, err := env.presences.GetPresence(ctx, rm.ID, "john@darasa.test")
		require.NoError(t, err)
		assert.Equal(t, room.PresenceJoined, pr.Status)
		assert.True(t, pr.JoinedAt.Valid)

		count, err := env.svc.ViewerCount(ctx, rm.ID)
		require.NoError(t, err)
		assert.Equal(t, 1, count)

		require.NoError(t, env.svc.HandleEvent(ctx, room.InboundEvent{
			Name:        room.EventParticipantLeft,
			MeetingID:   rm.MeetingID,
			HostEmail:   rm.AccountEmail,
			Participant: room.EventParticipant{ID: "p1", Email: "john@darasa.test", LeftAt: time.Now().UTC()},
		}))

		pr, err = env.presences.GetPresence(ctx, rm.ID, "john@darasa.test")
		require.NoError(t, err)
		assert.Equal(t, room.PresenceLeft, pr.Status)
		assert.True(t, pr.LeftAt.Valid)

		count, err = env.svc.ViewerCount(ctx, rm.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, count)
	})

	t.Run("a join resolves the platform user by email", func(t *testing.T) {
		env, rm := setup(t)
		usr := env.seedUser(t, "John Doe", "john@darasa.test", []string{user.RoleStudent})

		require.NoError(t, env.svc.HandleEvent(ctx, room.InboundEvent{
			Name:        room.EventParticipantJoined,
			MeetingID:   rm.MeetingID,
			Participant: room.EventParticipant{Email: "john@darasa.test"},
		}))

		pr, err := env.presences.GetPresence(ctx, rm.ID, "john@darasa.test")
		require.NoError(t, err)
		assert.Equal(t, usr.ID, pr.UserID)
	})

	t.Run("mismatched host email is not our room", func(t *testing.T) {
		env, rm := setup(t)

		require.NoError(t, env.svc.HandleEvent(ctx, room.InboundEvent{
			Name:        room.EventParticipantJoined,
			MeetingID:   rm.MeetingID,
			HostEmail:   "someone-else@darasa.test",
			Participant: room.EventParticipant{Email: "john@darasa.test"},
		}))

		_, err := env.presences.GetPresence(ctx, rm.ID, "john@darasa.test")
		assert.Error(t, err)
	})

	t.Run("unknown event names only feed the ledger", func(t *testing.T) {
		env, rm := setup(t)

		require.NoError(t, env.svc.HandleEvent(ctx, room.InboundEvent{
			Name:      "meeting.sharing_started",
			MeetingID: rm.MeetingID,
		}))

		events, err := env.events.QueryEvents(ctx, &room.EventQueryFilter{Event: "meeting.sharing_started"})
		require.NoError(t, err)
		assert.Len(t, events, 1)
	})
}

package room_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/darasa/core/room"
	"github.com/trezcool/darasa/core/user"
)

func TestService_ViewerCount(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t)
	env.seedAccount(t, "acct1", "host1@darasa.test", true)
	instructor := env.seedUser(t, "Ada Wong", "ada@darasa.test", []string{user.RoleTeacher})
	sess := env.seedSession(t, instructor.ID, "")
	rm := env.startLivingRoom(t, sess, instructor)

	join := func(email string) room.InboundEvent {
		return room.InboundEvent{
			Name:        room.EventParticipantJoined,
			MeetingID:   rm.MeetingID,
			Participant: room.EventParticipant{Email: email},
		}
	}

	require.NoError(t, env.svc.HandleEvent(ctx, join("a@darasa.test")))
	require.NoError(t, env.svc.HandleEvent(ctx, join("b@darasa.test")))
	// a reconnect must not count twice
	require.NoError(t, env.svc.HandleEvent(ctx, join("a@darasa.test")))

	count, err := env.svc.ViewerCount(ctx, rm.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	// an empty room is zero, not an error
	count, err = env.svc.ViewerCount(ctx, "no-such-room")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestService_QueryHistory(t *testing.T) {
	ctx := context.Background()

	env := newTestEnv(t)
	env.seedAccount(t, "acct1", "host1@darasa.test", true)
	instructor := env.seedUser(t, "Ada Wong", "ada@darasa.test", []string{user.RoleTeacher})
	sess := env.seedSession(t, instructor.ID, "")

	// first attempt: start then stop
	first := env.startLivingRoom(t, sess, instructor)
	require.NoError(t, env.svc.HandleEvent(ctx, room.InboundEvent{
		Name:      room.EventMeetingEnded,
		MeetingID: first.MeetingID,
	}))

	// restart: a fresh room row, the stopped one stays in the history
	second := env.startLivingRoom(t, sess, instructor)
	require.NotEqual(t, first.ID, second.ID)

	history, err := env.svc.QueryHistory(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, second.ID, history[0].ID, "history is newest first")
	assert.Equal(t, room.StatusLiving, history[0].Status)
	assert.Equal(t, first.ID, history[1].ID)
	assert.Equal(t, room.StatusStop, history[1].Status)
}

package room

import (
	"context"
	"math/rand"
	"time"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

type (
	ServiceInterface interface {
		ResolveJoin(ctx context.Context, usr user.User, sessionID, accessCode string) (string, error)
		HandleEvent(ctx context.Context, evt InboundEvent) error
		QueryHistory(ctx context.Context, sessionID string) ([]Room, error)
		ViewerCount(ctx context.Context, roomID string) (int, error)
	}

	// ServiceDeps collects the collaborators of the room Service. Zero-value
	// Shuffle defaults to a time-seeded rand.Shuffle; tests inject a seeded one.
	ServiceDeps struct {
		Conf      *core.Config
		Logger    core.Logger
		Rooms     Repository
		Accounts  AccountRepository
		Presences PresenceRepository
		Events    EventRepository
		Sessions  session.Repository
		Users     user.Repository
		Meetings  MeetingService
		Locker    Locker
		Mail      core.EmailService
		Shuffle   func(n int, swap func(i, j int))
	}

	Service struct {
		conf      *core.Config
		logger    core.Logger
		rooms     Repository
		accounts  AccountRepository
		presences PresenceRepository
		events    EventRepository
		sessions  session.Repository
		users     user.Repository
		meetings  MeetingService
		locker    Locker
		mail      core.EmailService
		shuffle   func(n int, swap func(i, j int))
	}
)

var _ ServiceInterface = (*Service)(nil)

func NewService(deps ServiceDeps) *Service {
	shuffle := deps.Shuffle
	if shuffle == nil {
		shuffle = rand.New(rand.NewSource(time.Now().UnixNano())).Shuffle
	}
	return &Service{
		conf:      deps.Conf,
		logger:    deps.Logger,
		rooms:     deps.Rooms,
		accounts:  deps.Accounts,
		presences: deps.Presences,
		events:    deps.Events,
		sessions:  deps.Sessions,
		users:     deps.Users,
		meetings:  deps.Meetings,
		locker:    deps.Locker,
		mail:      deps.Mail,
		shuffle:   shuffle,
	}
}

// QueryHistory returns every hosting attempt of a session, newest first.
// Room rows are append-only so this doubles as the event history.
func (svc *Service) QueryHistory(ctx context.Context, sessionID string) ([]Room, error) {
	return svc.rooms.QueryRooms(
		ctx,
		&QueryFilter{SessionID: sessionID},
		[]core.DBOrdering{{Field: "created_at", Ascending: false}},
	)
}

// providerCtx bounds a provider call with the configured timeout.
func (svc *Service) providerCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, svc.conf.Provider.Timeout)
}

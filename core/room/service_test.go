package room_test

import (
	"context"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
	dummymeeting "github.com/trezcool/darasa/services/meeting/dummy"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

type testLogger struct{ t *testing.T }

func (l testLogger) Enable(bool)                           {}
func (l testLogger) Debug(msg string, args ...interface{}) { l.t.Log(msg) }
func (l testLogger) Info(msg string, args ...interface{})  { l.t.Log(msg) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.t.Log(msg) }
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Log(msg) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatal(msg) }

// mailRecorder records fanout messages synchronously.
type mailRecorder struct {
	mu   sync.Mutex
	sent []*core.EmailMessage
}

var _ core.EmailService = (*mailRecorder)(nil)

func (m *mailRecorder) SendMessages(messages ...*core.EmailMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, messages...)
}

func (m *mailRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// dummyLockerAt builds a locker whose clock is pinned to at, so tests can
// plant expired leases.
func dummyLockerAt(db *dummydb.DB, at time.Time) room.Locker {
	lk := dummydb.NewLocker(db)
	lk.Now = func() time.Time { return at }
	return lk
}

// lockProbe exposes the dummy locker's introspection to tests.
type lockProbe interface {
	room.Locker
	IsLocked(key string) bool
}

type testEnv struct {
	conf      *core.Config
	svc       *room.Service
	meetings  *dummymeeting.Service
	locker    lockProbe
	mail      *mailRecorder
	db        *dummydb.DB
	rooms     room.Repository
	accounts  room.AccountRepository
	presences room.PresenceRepository
	events    room.EventRepository
	sessions  session.Repository
	users     user.Repository
}

func newTestConf() *core.Config {
	return &core.Config{
		TestMode:         true,
		AppName:          "Darasa",
		FrontendBaseURL:  "https://darasa.test",
		DefaultFromEmail: "noreply@darasa.test",
		Provider: core.ProviderConfig{
			BaseURL:         "https://api.meet.test/v2",
			Timezone:        "Africa/Kinshasa",
			DefaultDuration: 45 * time.Minute,
			AccountLockTTL:  time.Minute,
			Timeout:         5 * time.Second,
		},
	}
}

func newTestEnv(t *testing.T) *testEnv {
	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}

	env := &testEnv{
		conf:      newTestConf(),
		meetings:  dummymeeting.NewService(),
		locker:    dummydb.NewLocker(db),
		mail:      &mailRecorder{},
		db:        db,
		rooms:     dummydb.NewRoomRepository(db),
		accounts:  dummydb.NewAccountRepository(db),
		presences: dummydb.NewPresenceRepository(db),
		events:    dummydb.NewEventRepository(db),
		sessions:  dummydb.NewSessionRepository(db),
		users:     dummydb.NewUserRepository(db),
	}
	env.svc = room.NewService(room.ServiceDeps{
		Conf:      env.conf,
		Logger:    testLogger{t},
		Rooms:     env.rooms,
		Accounts:  env.accounts,
		Presences: env.presences,
		Events:    env.events,
		Sessions:  env.sessions,
		Users:     env.users,
		Meetings:  env.meetings,
		Locker:    env.locker,
		Mail:      env.mail,
		Shuffle:   rand.New(rand.NewSource(1)).Shuffle, // deterministic pool order
	})
	return env
}

func (env *testEnv) seedAccount(t *testing.T, name, email string, active bool) room.Account {
	acct, err := env.accounts.UpdateOrCreateAccount(context.Background(), room.Account{
		Name:      name,
		Email:     email,
		APIKey:    "key-" + name,
		APISecret: "secret-" + name,
		IsActive:  active,
	})
	if err != nil {
		t.Fatalf("seedAccount() failed, %v", err)
	}
	return acct
}

func (env *testEnv) seedUser(t *testing.T, name, email string, roles []string) user.User {
	active := true
	usr := user.User{
		ID:       uuid.New().String(),
		Name:     name,
		Username: email,
		Email:    email,
		IsActive: &active,
		Roles:    roles,
	}
	env.db.SetUser(usr)
	return usr
}

func (env *testEnv) seedSession(t *testing.T, instructorID, accessCode string) session.Session {
	now := time.Now().UTC()
	sess := session.Session{
		ID:           uuid.New().String(),
		CourseID:     uuid.New().String(),
		Name:         "Go 101",
		Kind:         session.KindWebinar,
		InstructorID: instructorID,
		Begin:        now.Add(time.Hour),
		End:          now.Add(2 * time.Hour),
		AccessCode:   accessCode,
		RoomStatus:   session.RoomStatusNew,
	}
	env.db.SetSession(sess)
	return sess
}

func (env *testEnv) seedRegistration(t *testing.T, sess session.Session, usr user.User, role string, active bool) session.Registration {
	reg := session.Registration{
		ID:        uuid.New().String(),
		SessionID: sess.ID,
		CourseID:  sess.CourseID,
		UserID:    usr.ID,
		UserName:  usr.Name,
		UserEmail: usr.Email,
		Role:      role,
		IsActive:  active,
		CreatedAt: time.Now().UTC(),
	}
	env.db.SetRegistration(reg)
	return reg
}

// startLivingRoom allocates a room for sess and drives it LIVING through the
// started webhook, returning the Room row.
func (env *testEnv) startLivingRoom(t *testing.T, sess session.Session, instructor user.User) room.Room {
	ctx := context.Background()

	if _, err := env.svc.ResolveJoin(ctx, instructor, sess.ID, ""); err != nil {
		t.Fatalf("ResolveJoin(instructor) failed, %v", err)
	}
	rm, err := env.rooms.GetRoom(ctx, room.GetFilter{SessionID: sess.ID, Status: room.StatusPending})
	if err != nil {
		t.Fatalf("GetRoom(pending) failed, %v", err)
	}

	if err = env.svc.HandleEvent(ctx, room.InboundEvent{
		Name:      room.EventMeetingStarted,
		Timestamp: time.Now().UTC(),
		MeetingID: rm.MeetingID,
		HostEmail: rm.AccountEmail,
	}); err != nil {
		t.Fatalf("HandleEvent(started) failed, %v", err)
	}

	rm, err = env.rooms.GetRoom(ctx, room.GetFilter{ID: rm.ID})
	if err != nil {
		t.Fatalf("GetRoom() failed, %v", err)
	}
	return rm
}

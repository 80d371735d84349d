package echoapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	echoapi "github.com/trezcool/darasa/apps/api/echo"
	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
	dummymeeting "github.com/trezcool/darasa/services/meeting/dummy"
	dummydb "github.com/trezcool/darasa/storage/database/dummy"
)

const webhookToken = "hook-secret"

var errMissingToken = httpErr{Error: "missing or malformed jwt"}

type testApp struct {
	conf     *core.Config
	app      echoapi.Server
	db       *dummydb.DB
	meetings *dummymeeting.Service
	rooms    room.Repository
	sessions session.Repository
}

type testLogger struct{ t *testing.T }

func (l testLogger) Enable(bool)                           {}
func (l testLogger) Debug(msg string, args ...interface{}) { l.t.Log(msg) }
func (l testLogger) Info(msg string, args ...interface{})  { l.t.Log(msg) }
func (l testLogger) Warn(msg string, args ...interface{})  { l.t.Log(msg) }
func (l testLogger) Error(msg string, args ...interface{}) { l.t.Log(msg) }
func (l testLogger) Fatal(msg string, args ...interface{}) { l.t.Fatal(msg) }

type nopMail struct{}

func (nopMail) SendMessages(...*core.EmailMessage) {}

func newTestApp(t *testing.T) *testApp {
	conf := &core.Config{
		TestMode:         true,
		AppName:          "Darasa",
		SecretKey:        "test-secret",
		FrontendBaseURL:  "https://darasa.test",
		DefaultFromEmail: "noreply@darasa.test",
		Server: core.ServerConfig{
			JWTExpirationDelta: time.Hour,
		},
		Provider: core.ProviderConfig{
			BaseURL:         "https://api.meet.test/v2",
			Timezone:        "Africa/Kinshasa",
			DefaultDuration: 45 * time.Minute,
			AccountLockTTL:  time.Minute,
			Timeout:         5 * time.Second,
			WebhookToken:    webhookToken,
		},
	}

	db, err := dummydb.Open()
	if err != nil {
		t.Fatalf("dummydb.Open() failed, %v", err)
	}
	logger := testLogger{t}
	meetings := dummymeeting.NewService()
	sessions := dummydb.NewSessionRepository(db)
	rooms := dummydb.NewRoomRepository(db)
	users := dummydb.NewUserRepository(db)

	roomSvc := room.NewService(room.ServiceDeps{
		Conf:      conf,
		Logger:    logger,
		Rooms:     rooms,
		Accounts:  dummydb.NewAccountRepository(db),
		Presences: dummydb.NewPresenceRepository(db),
		Events:    dummydb.NewEventRepository(db),
		Sessions:  sessions,
		Users:     users,
		Meetings:  meetings,
		Locker:    dummydb.NewLocker(db),
		Mail:      nopMail{},
	})

	validate := validator.New()
	translator := newTranslator()
	core.InitValidators(validate, translator)

	app := echoapi.NewServer(echoapi.ServerDeps{
		Conf:           conf,
		Logger:         logger,
		RoomSvc:        roomSvc,
		UserSvc:        user.NewService(nil, users),
		Validate:       validate,
		Translator:     translator,
		DisableReqLogs: true,
	})
	return &testApp{conf: conf, app: app, db: db, meetings: meetings, rooms: rooms, sessions: sessions}
}

func newTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

func (ta *testApp) seedUser(name, email string, roles []string) user.User {
	active := true
	usr := user.User{
		ID:       uuid.New().String(),
		Name:     name,
		Username: email,
		Email:    email,
		IsActive: &active,
		Roles:    roles,
	}
	ta.db.SetUser(usr)
	return usr
}

func (ta *testApp) seedSession(instructorID, accessCode string) session.Session {
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
	ta.db.SetSession(sess)
	return sess
}

func (ta *testApp) seedRegistration(sess session.Session, usr user.User, role string) {
	ta.db.SetRegistration(session.Registration{
		ID:        uuid.New().String(),
		SessionID: sess.ID,
		CourseID:  sess.CourseID,
		UserID:    usr.ID,
		UserName:  usr.Name,
		UserEmail: usr.Email,
		Role:      role,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	})
}

func (ta *testApp) seedAccount(t *testing.T, name, email string) room.Account {
	acct, err := dummydb.NewAccountRepository(ta.db).UpdateOrCreateAccount(context.Background(), room.Account{
		Name:      name,
		Email:     email,
		APIKey:    "key-" + name,
		APISecret: "secret-" + name,
		IsActive:  true,
	})
	if err != nil {
		t.Fatalf("seedAccount() failed, %v", err)
	}
	return acct
}

type httpErr struct {
	Error string `json:"error"`
}

type httpTest struct {
	name     string
	method   string
	path     string
	body     []byte
	token    string
	hookAuth string
	wantCode int
	wantData []byte // skipped when nil
}

func (ta *testApp) do(t *testing.T, tt httpTest) *httptest.ResponseRecorder {
	method := tt.method
	if method == "" {
		method = http.MethodGet
	}
	req := httptest.NewRequest(method, tt.path, bytes.NewReader(tt.body))
	req.Header.Set("Content-Type", "application/json")
	if tt.token != "" {
		req.Header.Set("Authorization", "Bearer "+tt.token)
	}
	if tt.hookAuth != "" {
		req.Header.Set("Authorization", tt.hookAuth)
	}
	rec := httptest.NewRecorder()
	ta.app.ServeHTTP(rec, req)
	return rec
}

func (ta *testApp) getToken(t *testing.T, usr user.User) string {
	claims := echoapi.GetUserClaims(ta.conf, usr)
	token, err := echoapi.GenerateToken(ta.conf, claims)
	if err != nil {
		t.Fatalf("getToken(): %v", err)
	}
	return token
}

func marchallObj(t *testing.T, obj interface{}) []byte {
	data, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("marchallObj(): %v", err)
	}
	return data
}

func jsonBytesEqual(b1, b2 []byte) (bool, error) {
	var j1, j2 interface{}
	if err := json.Unmarshal(b1, &j1); err != nil {
		return false, err
	}
	if err := json.Unmarshal(b2, &j2); err != nil {
		return false, err
	}
	return reflect.DeepEqual(j1, j2), nil
}

func checkCodeAndData(t *testing.T, tt httpTest, rec *httptest.ResponseRecorder) {
	wantCode := tt.wantCode
	if wantCode == 0 {
		wantCode = http.StatusOK
	}
	if rec.Code != wantCode {
		t.Errorf("failed! code = %v; wantCode %v; body %s", rec.Code, wantCode, rec.Body.String())
	}
	if tt.wantData == nil {
		return
	}
	ok, err := jsonBytesEqual(rec.Body.Bytes(), tt.wantData)
	if err != nil {
		t.Errorf("jsonBytesEqual() failed to compare; err %v", err)
	}
	if !ok {
		t.Errorf("failed! data = %v; wantData %v", rec.Body.String(), string(tt.wantData))
	}
}

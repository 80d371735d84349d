package echoapi_test

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/trezcool/darasa/core/room"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

type reasonedErr struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

type successResp struct {
	Success bool        `json:"success"`
	Payload interface{} `json:"payload,omitempty"`
}

func joinPath(sessionID, accessCode string) string {
	path := "/v1/rooms/" + sessionID + "/join"
	if accessCode != "" {
		path += "?accessCode=" + accessCode
	}
	return path
}

// startedHookBody builds a provider `meeting.started` delivery.
func startedHookBody(t *testing.T, meetingID, hostEmail string) []byte {
	return []byte(fmt.Sprintf(
		`{"event":"meeting.started","event_ts":%d,"payload":{"object":{"id":%s,"uuid":"uuid-%s","host_email":%q}}}`,
		time.Now().UnixNano()/int64(time.Millisecond), meetingID, meetingID, hostEmail,
	))
}

func Test_roomApi_join(t *testing.T) {
	ctx := context.Background()
	ta := newTestApp(t)

	acct := ta.seedAccount(t, "acct1", "host1@darasa.test")
	instructor := ta.seedUser("Ada Wong", "ada@darasa.test", []string{user.RoleTeacher})
	learner := ta.seedUser("John Doe", "john@darasa.test", []string{user.RoleStudent})
	stranger := ta.seedUser("Eve", "eve@darasa.test", []string{user.RoleStudent})
	sess := ta.seedSession(instructor.ID, "")
	coded := ta.seedSession(instructor.ID, "abc123")
	ta.seedRegistration(sess, learner, session.RegistrationRoleLearner)
	ta.seedRegistration(coded, learner, session.RegistrationRoleLearner)

	instructorToken := ta.getToken(t, instructor)
	learnerToken := ta.getToken(t, learner)

	tests := []httpTest{
		{
			name: "auth required", path: joinPath(sess.ID, ""),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "session id must be a uuid", path: joinPath("not-a-uuid", ""), token: learnerToken,
			wantCode: http.StatusUnprocessableEntity,
		},
		{
			name: "access code format is checked", path: joinPath(sess.ID, "nope"), token: learnerToken,
			wantCode: http.StatusUnprocessableEntity,
			wantData: marchallObj(t, map[string]string{"access_code": "access code must be exactly 6 characters"}),
		},
		{
			name: "unknown session", path: joinPath("e2b1f8a0-32fd-4f5e-a62f-ae1e104f5b21", ""), token: learnerToken,
			wantCode: http.StatusNotFound, wantData: marchallObj(t, httpErr{Error: "not found"}),
		},
		{
			name: "attendee before start", path: joinPath(sess.ID, ""), token: learnerToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, reasonedErr{Error: "the class has not started yet", Reason: "meetingNotFound"}),
		},
		{
			name: "roster-less user is denied", path: joinPath(sess.ID, ""), token: ta.getToken(t, stranger),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, reasonedErr{Error: "you are not registered on this session", Reason: "permissionDenied"}),
		},
		{
			name: "instructor starts the room", path: joinPath(sess.ID, ""), token: instructorToken,
			wantData: marchallObj(t, successResp{Success: true, Payload: map[string]string{"join_url": "https://meet.test/s/9001"}}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, ta.do(t, tt))
		})
	}

	// drive the room LIVING, then the attendee paths open up
	rm, err := ta.rooms.GetRoom(ctx, room.GetFilter{SessionID: sess.ID, Status: room.StatusPending})
	if err != nil {
		t.Fatalf("GetRoom(pending) failed, %v", err)
	}
	hookTT := httpTest{
		method: http.MethodPost, path: "/v1/rooms/hook", hookAuth: webhookToken,
		body: startedHookBody(t, rm.MeetingID, acct.Email),
	}
	checkCodeAndData(t, httpTest{wantData: marchallObj(t, successResp{Success: true})}, ta.do(t, hookTT))

	tests = []httpTest{
		{
			name: "attendee joins the living room", path: joinPath(sess.ID, ""), token: learnerToken,
			wantData: marchallObj(t, successResp{
				Success: true,
				Payload: map[string]string{"join_url": "https://meet.test/j/" + rm.MeetingID + "?tk=" + learner.Email},
			}),
		},
		{
			name: "access code mismatch", path: joinPath(coded.ID, "zzz999"), token: learnerToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, reasonedErr{Error: "access code does not match", Reason: "accessCodeNotMatch"}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, ta.do(t, tt))
		})
	}
}

func Test_roomApi_join_poolExhausted(t *testing.T) {
	ta := newTestApp(t)
	instructor := ta.seedUser("Ada Wong", "ada@darasa.test", []string{user.RoleTeacher})
	sess := ta.seedSession(instructor.ID, "")

	tt := httpTest{
		path: joinPath(sess.ID, ""), token: ta.getToken(t, instructor),
		wantCode: http.StatusServiceUnavailable,
		wantData: marchallObj(t, httpErr{Error: "no host account available, try again shortly"}),
	}
	checkCodeAndData(t, tt, ta.do(t, tt))
}

func Test_roomApi_hook(t *testing.T) {
	ctx := context.Background()
	ta := newTestApp(t)

	acct := ta.seedAccount(t, "acct1", "host1@darasa.test")
	instructor := ta.seedUser("Ada Wong", "ada@darasa.test", []string{user.RoleTeacher})
	sess := ta.seedSession(instructor.ID, "")

	// allocate a pending room to receive events for
	start := httpTest{path: joinPath(sess.ID, ""), token: ta.getToken(t, instructor)}
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK}, ta.do(t, start))
	rm, err := ta.rooms.GetRoom(ctx, room.GetFilter{SessionID: sess.ID})
	if err != nil {
		t.Fatalf("GetRoom() failed, %v", err)
	}

	tests := []httpTest{
		{
			name: "verification token required", method: http.MethodPost, path: "/v1/rooms/hook",
			body:     startedHookBody(t, rm.MeetingID, acct.Email),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name: "wrong verification token", method: http.MethodPost, path: "/v1/rooms/hook", hookAuth: "nope",
			body:     startedHookBody(t, rm.MeetingID, acct.Email),
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, httpErr{Error: "user not authenticated"}),
		},
		{
			name: "malformed payload", method: http.MethodPost, path: "/v1/rooms/hook", hookAuth: webhookToken,
			body:     []byte("{not json"),
			wantCode: http.StatusBadRequest, wantData: marchallObj(t, httpErr{Error: "malformed webhook payload"}),
		},
		{
			name: "event name required", method: http.MethodPost, path: "/v1/rooms/hook", hookAuth: webhookToken,
			body:     []byte(`{"payload":{"object":{"id":9001}}}`),
			wantCode: http.StatusUnprocessableEntity, wantData: marchallObj(t, httpErr{Error: "userAndUserEventIsRequired"}),
		},
		{
			name: "started", method: http.MethodPost, path: "/v1/rooms/hook", hookAuth: webhookToken,
			body:     startedHookBody(t, rm.MeetingID, acct.Email),
			wantData: marchallObj(t, successResp{Success: true}),
		},
		{
			name: "replayed started is accepted", method: http.MethodPost, path: "/v1/rooms/hook", hookAuth: webhookToken,
			body:     startedHookBody(t, rm.MeetingID, acct.Email),
			wantData: marchallObj(t, successResp{Success: true}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, ta.do(t, tt))
		})
	}

	rm, err = ta.rooms.GetRoom(ctx, room.GetFilter{ID: rm.ID})
	if err != nil {
		t.Fatalf("GetRoom() failed, %v", err)
	}
	if rm.Status != room.StatusLiving {
		t.Errorf("room status = %v; want %v", rm.Status, room.StatusLiving)
	}
}

func Test_roomApi_recordedHook(t *testing.T) {
	ctx := context.Background()
	ta := newTestApp(t)

	acct := ta.seedAccount(t, "acct1", "host1@darasa.test")
	instructor := ta.seedUser("Ada Wong", "ada@darasa.test", []string{user.RoleTeacher})
	sess := ta.seedSession(instructor.ID, "")

	start := httpTest{path: joinPath(sess.ID, ""), token: ta.getToken(t, instructor)}
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK}, ta.do(t, start))
	rm, err := ta.rooms.GetRoom(ctx, room.GetFilter{SessionID: sess.ID})
	if err != nil {
		t.Fatalf("GetRoom() failed, %v", err)
	}
	checkCodeAndData(t, httpTest{wantCode: http.StatusOK}, ta.do(t, httpTest{
		method: http.MethodPost, path: "/v1/rooms/hook", hookAuth: webhookToken,
		body: startedHookBody(t, rm.MeetingID, acct.Email),
	}))

	body := []byte(fmt.Sprintf(
		`{"event":"recording.completed","payload":{"object":{"id":%s,"host_email":%q,"share_url":"https://meet.test/share/rec-1","recording_files":[{"id":"rec-1","play_url":"https://meet.test/rec/rec-1","recording_end":%q}]}}}`,
		rm.MeetingID, acct.Email, time.Now().UTC().Format(time.RFC3339),
	))
	tt := httpTest{
		method: http.MethodPost, path: "/v1/rooms/hook/recorded", hookAuth: webhookToken, body: body,
		wantData: marchallObj(t, successResp{Success: true}),
	}
	checkCodeAndData(t, tt, ta.do(t, tt))

	got, err := ta.sessions.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("GetSession() failed, %v", err)
	}
	if len(got.Recordings) != 1 || got.Recordings[0].ID != "rec-1" {
		t.Errorf("recordings = %+v; want the single rec-1 entry", got.Recordings)
	}
	if got.RoomStatus != session.RoomStatusEnded {
		t.Errorf("session room status = %v; want %v", got.RoomStatus, session.RoomStatusEnded)
	}
}

func Test_roomApi_viewersAndHistory(t *testing.T) {
	ta := newTestApp(t)

	teacher := ta.seedUser("Ada Wong", "ada@darasa.test", []string{user.RoleTeacher})
	student := ta.seedUser("John Doe", "john@darasa.test", []string{user.RoleStudent})
	sess := ta.seedSession(teacher.ID, "")

	tests := []httpTest{
		{
			name: "viewers needs auth", path: "/v1/rooms/some-room/viewers",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "viewers of an empty room", path: "/v1/rooms/some-room/viewers", token: ta.getToken(t, student),
			wantData: marchallObj(t, successResp{Success: true, Payload: map[string]int{"count": 0}}),
		},
		{
			name: "history is staff only", path: "/v1/rooms/" + sess.ID + "/history", token: ta.getToken(t, student),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "permission denied"}),
		},
		{
			// payload shape is covered by the service tests; just the gate here
			name: "history", path: "/v1/rooms/" + sess.ID + "/history", token: ta.getToken(t, teacher),
			wantCode: http.StatusOK,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, ta.do(t, tt))
		})
	}
}

func Test_home(t *testing.T) {
	ta := newTestApp(t)
	rec := ta.do(t, httpTest{path: "/"})
	if rec.Code != http.StatusOK {
		t.Errorf("code = %v; want %v", rec.Code, http.StatusOK)
	}
	if rec.Body.String() != "Welcome to Darasa API!" {
		t.Errorf("body = %q", rec.Body.String())
	}
}

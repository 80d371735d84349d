package zoommeeting

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/pkg/errors"
	"github.com/sendgrid/rest"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
)

// meeting type 2 = scheduled
const meetingTypeScheduled = 2

const tokenLifetime = 90 * time.Second

type service struct {
	baseURL string
	logger  core.Logger
}

var _ room.MeetingService = (*service)(nil)

func NewService(conf *core.Config, logger core.Logger) *service {
	return &service{
		baseURL: conf.Provider.BaseURL,
		logger:  logger,
	}
}

// wire types

type (
	meetingSettings struct {
		JoinBeforeHost               bool   `json:"join_before_host"`
		WaitingRoom                  bool   `json:"waiting_room"`
		ApprovalType                 int    `json:"approval_type"`
		AutoRecording                string `json:"auto_recording"`
		RegistrantsEmailNotification bool   `json:"registrants_email_notification"`
	}

	createMeetingRequest struct {
		Topic     string          `json:"topic"`
		Type      int             `json:"type"`
		StartTime string          `json:"start_time,omitempty"`
		Duration  int             `json:"duration,omitempty"` // minutes
		Timezone  string          `json:"timezone,omitempty"`
		Agenda    string          `json:"agenda,omitempty"`
		Settings  meetingSettings `json:"settings"`
	}

	meetingResponse struct {
		ID        int64     `json:"id"`
		UUID      string    `json:"uuid"`
		Topic     string    `json:"topic"`
		HostEmail string    `json:"host_email"`
		StartURL  string    `json:"start_url"`
		JoinURL   string    `json:"join_url"`
		Password  string    `json:"password"`
		StartTime time.Time `json:"start_time"`
		Duration  int       `json:"duration"`
	}

	meetingListResponse struct {
		TotalRecords int               `json:"total_records"`
		Meetings     []meetingResponse `json:"meetings"`
	}

	addRegistrantRequest struct {
		Email     string `json:"email"`
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name,omitempty"`
	}

	addRegistrantResponse struct {
		ID           int64  `json:"id"`
		RegistrantID string `json:"registrant_id"`
		JoinURL      string `json:"join_url"`
	}

	reportParticipant struct {
		ID        string    `json:"id"`
		Name      string    `json:"name"`
		UserEmail string    `json:"user_email"`
		JoinTime  time.Time `json:"join_time"`
		LeaveTime time.Time `json:"leave_time"`
		Duration  int       `json:"duration"`
	}

	participantReportResponse struct {
		Participants []reportParticipant `json:"participants"`
	}

	errorResponse struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	}
)

func (svc *service) CreateMeeting(ctx context.Context, acct room.Account, nm room.NewMeeting) (room.Meeting, error) {
	body, err := json.Marshal(createMeetingRequest{
		Topic:     nm.Topic,
		Type:      meetingTypeScheduled,
		StartTime: nm.StartTime.UTC().Format("2006-01-02T15:04:05Z"),
		Duration:  int(nm.Duration.Minutes()),
		Timezone:  nm.Timezone,
		Agenda:    nm.Agenda,
		Settings: meetingSettings{
			JoinBeforeHost:               false,
			WaitingRoom:                  true,
			ApprovalType:                 0, // auto-approve registrants
			AutoRecording:                "cloud",
			RegistrantsEmailNotification: false,
		},
	})
	if err != nil {
		return room.Meeting{}, errors.Wrap(err, "marshalling create-meeting request")
	}

	var data meetingResponse
	if err = svc.do(ctx, acct, rest.Post, "/users/"+acct.HostID()+"/meetings", nil, body, &data); err != nil {
		return room.Meeting{}, err
	}
	return svc.toMeeting(data), nil
}

func (svc *service) GetMeeting(ctx context.Context, acct room.Account, meetingID string) (room.Meeting, error) {
	var data meetingResponse
	if err := svc.do(ctx, acct, rest.Get, "/meetings/"+meetingID, nil, nil, &data); err != nil {
		return room.Meeting{}, err
	}
	return svc.toMeeting(data), nil
}

func (svc *service) CountLiveMeetings(ctx context.Context, acct room.Account) (int, error) {
	var data meetingListResponse
	params := map[string]string{"type": "live"}
	if err := svc.do(ctx, acct, rest.Get, "/users/"+acct.HostID()+"/meetings", params, nil, &data); err != nil {
		return 0, err
	}
	if data.TotalRecords > 0 {
		return data.TotalRecords, nil
	}
	return len(data.Meetings), nil
}

func (svc *service) AddRegistrant(ctx context.Context, acct room.Account, meetingID string, nr room.NewRegistrant) (room.MeetingRegistrant, error) {
	body, err := json.Marshal(addRegistrantRequest{
		Email:     nr.Email,
		FirstName: nr.FirstName,
		LastName:  nr.LastName,
	})
	if err != nil {
		return room.MeetingRegistrant{}, errors.Wrap(err, "marshalling add-registrant request")
	}

	var data addRegistrantResponse
	if err = svc.do(ctx, acct, rest.Post, "/meetings/"+meetingID+"/registrants", nil, body, &data); err != nil {
		return room.MeetingRegistrant{}, err
	}
	return room.MeetingRegistrant{ID: data.RegistrantID, JoinURL: data.JoinURL}, nil
}

func (svc *service) GetParticipantReport(ctx context.Context, acct room.Account, meetingID string) ([]room.ReportParticipant, error) {
	var data participantReportResponse
	params := map[string]string{"page_size": "300"}
	if err := svc.do(ctx, acct, rest.Get, "/report/meetings/"+meetingID+"/participants", params, nil, &data); err != nil {
		return nil, err
	}

	parts := make([]room.ReportParticipant, 0, len(data.Participants))
	for _, p := range data.Participants {
		parts = append(parts, room.ReportParticipant{
			ID:       p.ID,
			Name:     p.Name,
			Email:    p.UserEmail,
			JoinedAt: p.JoinTime,
			LeftAt:   p.LeaveTime,
			Duration: p.Duration,
		})
	}
	return parts, nil
}

// do signs, sends and decodes one provider call.
func (svc *service) do(ctx context.Context, acct room.Account, method rest.Method, path string, params map[string]string, body []byte, out interface{}) error {
	token, err := svc.sign(acct)
	if err != nil {
		return errors.Wrap(err, "signing API token")
	}

	req := rest.Request{
		Method:  method,
		BaseURL: svc.baseURL + path,
		Headers: map[string]string{
			"Authorization": "Bearer " + token,
			"Content-Type":  "application/json",
		},
		QueryParams: params,
		Body:        body,
	}

	res, err := rest.SendWithContext(ctx, req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	if res.StatusCode >= http.StatusBadRequest {
		var errRes errorResponse
		_ = json.Unmarshal([]byte(res.Body), &errRes)
		return errors.Errorf("%s %s: status %d, code %d: %s", method, path, res.StatusCode, errRes.Code, errRes.Message)
	}
	if out != nil && res.Body != "" {
		if err = json.Unmarshal([]byte(res.Body), out); err != nil {
			return errors.Wrapf(err, "decoding %s %s response", method, path)
		}
	}
	return nil
}

// sign issues a short-lived JWT-app token for the account's credentials.
func (svc *service) sign(acct room.Account) (string, error) {
	claims := jwt.StandardClaims{
		Issuer:    acct.APIKey,
		ExpiresAt: time.Now().Add(tokenLifetime).Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(acct.APISecret))
}

func (svc *service) toMeeting(data meetingResponse) room.Meeting {
	return room.Meeting{
		ID:        strconv.FormatInt(data.ID, 10),
		UUID:      data.UUID,
		Topic:     data.Topic,
		HostEmail: data.HostEmail,
		StartURL:  data.StartURL,
		JoinURL:   data.JoinURL,
		Password:  data.Password,
		StartTime: data.StartTime,
		Duration:  time.Duration(data.Duration) * time.Minute,
	}
}

package echoapi

import (
	"encoding/json"
	"io"
	"net/http"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
	"github.com/trezcool/darasa/core/user"
)

type roomApi struct {
	conf       *core.Config
	logger     core.Logger
	svc        room.ServiceInterface
	userSvc    user.ServiceInterface
	validate   *validator.Validate
	translator ut.Translator
}

func registerRoomAPI(g *echo.Group, jwt echo.MiddlewareFunc, deps ServerDeps) {
	api := roomApi{
		conf:       deps.Conf,
		logger:     deps.Logger,
		svc:        deps.RoomSvc,
		userSvc:    deps.UserSvc,
		validate:   deps.Validate,
		translator: deps.Translator,
	}

	rg := g.Group("/rooms")

	// provider-facing endpoints, authed by the shared verification token
	hg := rg.Group("/hook", webhookAuthMiddleware(deps.Conf))
	hg.POST("", api.hook)
	hg.POST("/recorded", api.recordedHook)

	// user-facing endpoints
	ag := rg.Group("", jwt)
	ag.GET("/:id/join", api.join)
	ag.GET("/:id/viewers", api.viewers)
	ag.GET("/:id/history", api.history, staffMiddleware())
}

type (
	response struct {
		Success bool        `json:"success"`
		Payload interface{} `json:"payload,omitempty"`
	}

	joinRequest struct {
		SessionID  string `json:"session_id" validate:"required,uuid4"`
		AccessCode string `json:"access_code" validate:"omitempty,accesscode"`
	}

	joinResponse struct {
		JoinURL string `json:"join_url"`
	}

	viewersResponse struct {
		Count int `json:"count"`
	}
)

// Handlers

func (api *roomApi) join(ctx echo.Context) error {
	data := joinRequest{
		SessionID:  ctx.Param("id"),
		AccessCode: ctx.QueryParam("accessCode"),
	}
	if err := api.validate.Struct(&data); err != nil {
		return err
	}

	usr, err := getContextUser(ctx, api.userSvc)
	if err != nil {
		return errors.Wrap(err, "getting context user")
	}

	url, err := api.svc.ResolveJoin(ctx.Request().Context(), usr, data.SessionID, data.AccessCode)
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, response{Success: true, Payload: joinResponse{JoinURL: url}})
}

func (api *roomApi) hook(ctx echo.Context) error {
	evt, err := parseHookEnvelope(ctx)
	if err != nil {
		return err
	}
	if err = api.svc.HandleEvent(ctx.Request().Context(), evt); err != nil {
		return errors.Wrap(err, "handling webhook event")
	}
	return ctx.JSON(http.StatusOK, response{Success: true})
}

func (api *roomApi) recordedHook(ctx echo.Context) error {
	evt, err := parseHookEnvelope(ctx)
	if err != nil {
		return err
	}
	evt.Name = room.EventRecordingComplete
	if err = api.svc.HandleEvent(ctx.Request().Context(), evt); err != nil {
		return errors.Wrap(err, "handling recording webhook event")
	}
	return ctx.JSON(http.StatusOK, response{Success: true})
}

func (api *roomApi) viewers(ctx echo.Context) error {
	count, err := api.svc.ViewerCount(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, response{Success: true, Payload: viewersResponse{Count: count}})
}

func (api *roomApi) history(ctx echo.Context) error {
	rooms, err := api.svc.QueryHistory(ctx.Request().Context(), ctx.Param("id"))
	if err != nil {
		return err
	}
	return ctx.JSON(http.StatusOK, response{Success: true, Payload: rooms})
}

// Webhook envelope

type hookEnvelope struct {
	Event   string `json:"event"`
	EventTS int64  `json:"event_ts"` // milliseconds
	Payload struct {
		Object struct {
			ID          json.Number `json:"id"`
			UUID        string      `json:"uuid"`
			HostEmail   string      `json:"host_email"`
			ShareURL    string      `json:"share_url"`
			Participant struct {
				ID        string    `json:"id"`
				UserID    string    `json:"user_id"`
				UserName  string    `json:"user_name"`
				Email     string    `json:"email"`
				JoinTime  time.Time `json:"join_time"`
				LeaveTime time.Time `json:"leave_time"`
			} `json:"participant"`
			RecordingFiles []struct {
				ID           string    `json:"id"`
				PlayURL      string    `json:"play_url"`
				RecordingEnd time.Time `json:"recording_end"`
			} `json:"recording_files"`
		} `json:"object"`
	} `json:"payload"`
}

// parseHookEnvelope decodes the provider's webhook delivery, keeping the raw
// body for the event ledger.
func parseHookEnvelope(ctx echo.Context) (room.InboundEvent, error) {
	body, err := io.ReadAll(ctx.Request().Body)
	if err != nil {
		return room.InboundEvent{}, errors.Wrap(err, "reading webhook body")
	}

	var env hookEnvelope
	if err = json.Unmarshal(body, &env); err != nil {
		return room.InboundEvent{}, echo.NewHTTPError(http.StatusBadRequest, "malformed webhook payload")
	}
	if env.Event == "" {
		return room.InboundEvent{}, echo.NewHTTPError(http.StatusUnprocessableEntity, "userAndUserEventIsRequired")
	}

	obj := env.Payload.Object
	evt := room.InboundEvent{
		Name:      env.Event,
		Timestamp: time.Unix(env.EventTS/1000, (env.EventTS%1000)*int64(time.Millisecond)).UTC(),
		MeetingID: obj.ID.String(),
		HostEmail: obj.HostEmail,
		Participant: room.EventParticipant{
			ID:       obj.Participant.ID,
			UserID:   obj.Participant.UserID,
			Name:     obj.Participant.UserName,
			Email:    obj.Participant.Email,
			JoinedAt: obj.Participant.JoinTime,
			LeftAt:   obj.Participant.LeaveTime,
		},
		Raw: body,
	}
	if len(obj.RecordingFiles) > 0 {
		rec := obj.RecordingFiles[0]
		evt.Recording = room.EventRecording{
			ID:         rec.ID,
			PlayURL:    rec.PlayURL,
			ShareURL:   obj.ShareURL,
			RecordedAt: rec.RecordingEnd,
		}
	}
	return evt, nil
}

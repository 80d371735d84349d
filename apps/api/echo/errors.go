package echoapi

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/pkg/errors"

	"github.com/trezcool/darasa/core"
	"github.com/trezcool/darasa/core/room"
	"github.com/trezcool/darasa/core/session"
	"github.com/trezcool/darasa/core/user"
)

var (
	errUnauthorized  = echo.NewHTTPError(http.StatusUnauthorized, "user not authenticated")
	errHttpForbidden = echo.NewHTTPError(http.StatusForbidden, "permission denied")
	errHttpNotFound  = echo.NewHTTPError(http.StatusNotFound, "not found")
)

// reasoned is a client error with a machine-readable reason code.
type reasoned struct {
	Error  string `json:"error"`
	Reason string `json:"reason"`
}

// newAppHTTPErrorHandler returns a custom echo.HTTPErrorHandler that knows how to handle our errors.
// signalShutdown is called in order to gracefully shutdown the Server whenever a core.shutdown error is caught.
func newAppHTTPErrorHandler(deps ServerDeps, signalShutdown func()) echo.HTTPErrorHandler {
	return func(err error, ctx echo.Context) {
		var code int
		var message interface{}

		switch origErr := errors.Cause(err).(type) {
		case *echo.HTTPError:
			if origErr == middleware.ErrJWTMissing {
				code = http.StatusUnauthorized
				message = origErr.Message
				break
			}
			if origErr.Internal != nil {
				if herr, ok := origErr.Internal.(*echo.HTTPError); ok {
					origErr = herr
				}
			}
			code = origErr.Code
			message = origErr.Message
		case validator.ValidationErrors:
			fldErrs := make(map[string]string, len(origErr))
			for _, vErr := range origErr {
				fldErrs[vErr.Field()] = vErr.Translate(deps.Translator)
			}
			code = http.StatusUnprocessableEntity
			message = fldErrs
		case *core.ValidationError:
			if origErr.Fields != nil {
				fldErrs := make(map[string]string, len(origErr.Fields))
				for _, fErr := range origErr.Fields {
					fldErrs[fErr.Field] = fErr.Error
				}
				message = fldErrs
			} else {
				message = origErr.Error()
			}
			code = http.StatusUnprocessableEntity
		default:
			code, message = resolveDomainError(origErr)
			if code == http.StatusInternalServerError {
				msg := http.StatusText(http.StatusInternalServerError)
				message = msg

				var usr user.User
				if claims, cErr := getContextClaims(ctx); cErr == nil {
					usr.ID = claims.Subject
					usr.Username = claims.Username
					usr.Email = claims.Email
				}
				deps.Logger.Error(msg, errors.Wrap(err, msg), usr)

				// shutting down...
				if core.IsShutdown(err) {
					signalShutdown()
				}
			}
		}

		if ctx.Echo().Debug && code == http.StatusInternalServerError {
			message = err.Error()
		} else if m, ok := message.(string); ok {
			message = echo.Map{"error": m}
		}

		// Send response
		if !ctx.Response().Committed {
			if ctx.Request().Method == http.MethodHead { // Issue #608
				err = ctx.NoContent(code)
			} else {
				err = ctx.JSON(code, message)
			}
			if err != nil {
				ctx.Echo().Logger.Error(err)
			}
		}
	}
}

// resolveDomainError maps room taxonomy errors to HTTP responses.
// Unknown errors are server errors.
func resolveDomainError(err error) (int, interface{}) {
	switch err {
	case room.ErrNotFound, session.ErrNotFound, user.ErrNotFound:
		return http.StatusNotFound, "not found"
	case room.ErrPermissionDenied, session.ErrRegistrationNotFound:
		return http.StatusForbidden, reasoned{"you are not registered on this session", "permissionDenied"}
	case room.ErrAccessCodeMismatch:
		return http.StatusForbidden, reasoned{"access code does not match", "accessCodeNotMatch"}
	case room.ErrNotStartedYet:
		return http.StatusForbidden, reasoned{"the class has not started yet", "meetingNotFound"}
	case room.ErrMeetingNotValid:
		return http.StatusForbidden, reasoned{"the meeting is not valid", "meetingNotValid"}
	case room.ErrJoinURLNotFound:
		return http.StatusForbidden, reasoned{"no join URL available", "joinUrlNotFound"}
	case room.ErrPoolExhausted:
		return http.StatusServiceUnavailable, "no host account available, try again shortly"
	case room.ErrProvider:
		return http.StatusBadGateway, "meeting provider error"
	}
	return http.StatusInternalServerError, nil
}

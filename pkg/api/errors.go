package api

import (
	"errors"
	"net/http"

	"github.com/nasa-explorer/explorer/pkg/auth"
	"github.com/nasa-explorer/explorer/pkg/httputil"
	"github.com/nasa-explorer/explorer/pkg/middleware"
	"github.com/nasa-explorer/explorer/pkg/nasa"
	"github.com/nasa-explorer/explorer/pkg/observability"
	"github.com/nasa-explorer/explorer/pkg/validation"
)

// User-facing messages
const (
	MissingFieldsMessage      = "Missing required fields"
	InvalidEmailMessage       = "Invalid email format"
	UserExistsMessage         = "User already exists"
	InvalidCredentialsMessage = "Email or password is incorrect, please try again"
	InvalidBodyMessage        = "Invalid request body"
	BodyTooLargeMessage       = "Request body too large"
	InvalidCameraMessage      = "Invalid camera."
	InvalidQueryMessage       = "Invalid query parameters."
)

type errorMapping struct {
	target  error
	status  int
	message string
}

// errorTable maps sentinel errors to a status and a fixed message. The first
// match wins.
var errorTable = []errorMapping{
	{validation.ErrMalformedBody, http.StatusBadRequest, InvalidBodyMessage},
	{httputil.ErrBodyTooLarge, http.StatusRequestEntityTooLarge, BodyTooLargeMessage},

	{auth.ErrMissingFields, http.StatusBadRequest, MissingFieldsMessage},
	{auth.ErrInvalidEmail, http.StatusBadRequest, InvalidEmailMessage},
	{auth.ErrWeakPassword, http.StatusBadRequest, validation.PasswordPolicy},
	{auth.ErrUserExists, http.StatusConflict, UserExistsMessage},
	{auth.ErrInvalidCredentials, http.StatusBadRequest, InvalidCredentialsMessage},
	{auth.ErrUnauthorized, http.StatusUnauthorized, middleware.InvalidTokenMessage},
	{auth.ErrTokenInvalid, http.StatusUnauthorized, middleware.InvalidTokenMessage},

	{nasa.ErrFutureDate, http.StatusBadRequest, nasa.FutureDateMessage},
	{nasa.ErrMissingDate, http.StatusBadRequest, nasa.MissingDateMessage},
	{nasa.ErrInvalidCoordinates, http.StatusBadRequest, nasa.InvalidCoordinatesMessage},
	{nasa.ErrInvalidCamera, http.StatusBadRequest, InvalidCameraMessage},
	{nasa.ErrNoImagery, http.StatusNotFound, nasa.NoImagesMessage},
	{nasa.ErrUpstream, http.StatusBadGateway, nasa.FetchFailedMessage},
}

// statusFor resolves err against errorTable. ok is false for errors outside
// the table, which are internal.
func statusFor(err error) (status int, message string, ok bool) {
	for _, m := range errorTable {
		if errors.Is(err, m.target) {
			return m.status, m.message, true
		}
	}
	return http.StatusInternalServerError, httputil.InternalErrorMessage, false
}

// writeError renders err. Client errors are logged at warn, internal and
// upstream ones at error with their oops code and context.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, message, known := statusFor(err)
	logger := observability.FromContext(r.Context())

	switch {
	case !known:
		logger.LogError("request failed", err)
		httputil.WriteInternalError(w)
		return
	case status >= http.StatusInternalServerError:
		logger.LogError("upstream request failed", err)
	default:
		logger.WithError(err).WithField("status", status).Warn("request rejected")
	}
	httputil.WriteErrorMessage(w, status, message)
}

package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nasa-explorer/explorer/pkg/auth"
	"github.com/nasa-explorer/explorer/pkg/httputil"
	"github.com/nasa-explorer/explorer/pkg/middleware"
	"github.com/nasa-explorer/explorer/pkg/observability"
	"github.com/nasa-explorer/explorer/pkg/storage"
	"github.com/nasa-explorer/explorer/pkg/validation"
)

// Success messages
const (
	UserCreatedMessage    = "New user created"
	LoginSuccessMessage   = "Login successfully"
	UsersRetrievedMessage = "Users retrieved"
	UserRetrievedMessage  = "User retrieved"
)

// UserHandlers handles /api/users requests
type UserHandlers struct {
	service *auth.Service
	gate    *middleware.TokenGate
	audit   *auth.AuditLogger
	metrics *observability.Metrics

	registerLimit func(http.Handler) http.Handler
	loginLimit    func(http.Handler) http.Handler
}

// NewUserHandlers creates user handlers. metrics and both limiters may be
// nil.
func NewUserHandlers(service *auth.Service, gate *middleware.TokenGate, audit *auth.AuditLogger,
	metrics *observability.Metrics, registerLimit, loginLimit func(http.Handler) http.Handler) *UserHandlers {
	return &UserHandlers{
		service:       service,
		gate:          gate,
		audit:         audit,
		metrics:       metrics,
		registerLimit: registerLimit,
		loginLimit:    loginLimit,
	}
}

// RegisterRoutes registers user routes
func (h *UserHandlers) RegisterRoutes(router *mux.Router) {
	router.Handle("/api/users/register", limited(h.registerLimit, h.register)).Methods(http.MethodPost)
	router.Handle("/api/users/login", limited(h.loginLimit, h.login)).Methods(http.MethodPost)

	router.Handle("/api/users/me", h.gate.Handler(http.HandlerFunc(h.me))).Methods(http.MethodGet)
	router.Handle("/api/users/", h.gate.Handler(http.HandlerFunc(h.list))).Methods(http.MethodGet)
	router.Handle("/api/users", h.gate.Handler(http.HandlerFunc(h.list))).Methods(http.MethodGet)
}

func limited(limit func(http.Handler) http.Handler, fn http.HandlerFunc) http.Handler {
	if limit == nil {
		return fn
	}
	return limit(fn)
}

// loginUser is the identity returned next to the token at login
type loginUser struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type loginResponse struct {
	Success bool      `json:"success"`
	Message string    `json:"message"`
	User    loginUser `json:"user"`
	Token   string    `json:"token"`
}

// register handles POST /api/users/register
func (h *UserHandlers) register(w http.ResponseWriter, r *http.Request) {
	var in auth.RegisterInput
	if err := httputil.ReadJSON(r, validation.RegisterSchema, &in); err != nil {
		h.countRegistration("invalid")
		writeError(w, r, err)
		return
	}

	user, err := h.service.Register(r.Context(), in)
	if err != nil {
		h.countRegistration(outcomeFor(err))
		_ = h.audit.LogFromRequest(r, auth.ActionUserRegister, auth.StatusFailure, "",
			validation.NormalizeEmail(in.Email), err)
		writeError(w, r, err)
		return
	}

	h.countRegistration("success")
	_ = h.audit.LogFromRequest(r, auth.ActionUserRegister, auth.StatusSuccess, user.ID, user.Email, nil)
	_ = httputil.WriteCreated(w, UserCreatedMessage, user.Public())
}

// login handles POST /api/users/login
func (h *UserHandlers) login(w http.ResponseWriter, r *http.Request) {
	var in auth.LoginInput
	if err := httputil.ReadJSON(r, validation.LoginSchema, &in); err != nil {
		h.countLogin("invalid")
		writeError(w, r, err)
		return
	}

	result, err := h.service.Login(r.Context(), in)
	if err != nil {
		h.countLogin(outcomeFor(err))
		_ = h.audit.LogFromRequest(r, auth.ActionAuthFailure, auth.StatusFailure, "",
			validation.NormalizeEmail(in.Email), err)
		writeError(w, r, err)
		return
	}

	h.countLogin("success")
	_ = h.audit.LogFromRequest(r, auth.ActionAuthSuccess, auth.StatusSuccess, result.User.ID, result.User.Email, nil)
	_ = httputil.WriteJSON(w, http.StatusOK, loginResponse{
		Success: true,
		Message: LoginSuccessMessage,
		User: loginUser{
			ID:    result.User.ID,
			Name:  result.User.FirstName,
			Email: result.User.Email,
		},
		Token: result.Token,
	})
}

// list handles GET /api/users
func (h *UserHandlers) list(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}

	claims := middleware.GetClaims(r)
	_ = h.audit.LogFromRequest(r, auth.ActionUserList, auth.StatusSuccess, claims.User.ID, claims.User.Email, nil)

	_ = httputil.WriteOK(w, UsersRetrievedMessage, publicUsers(users))
}

// me handles GET /api/users/me
func (h *UserHandlers) me(w http.ResponseWriter, r *http.Request) {
	user, err := h.service.Profile(r.Context(), middleware.GetClaims(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteOK(w, UserRetrievedMessage, user.Public())
}

func publicUsers(users []*storage.User) []storage.PublicUser {
	out := make([]storage.PublicUser, 0, len(users))
	for _, u := range users {
		out = append(out, u.Public())
	}
	return out
}

func (h *UserHandlers) countRegistration(outcome string) {
	if h.metrics != nil {
		h.metrics.RegistrationsTotal.WithLabelValues(outcome).Inc()
	}
}

func (h *UserHandlers) countLogin(outcome string) {
	if h.metrics != nil {
		h.metrics.LoginsTotal.WithLabelValues(outcome).Inc()
	}
}

// outcomeFor labels an auth failure for the registration and login counters
func outcomeFor(err error) string {
	status, _, known := statusFor(err)
	switch {
	case !known:
		return "error"
	case status == http.StatusConflict:
		return "conflict"
	case status == http.StatusBadRequest:
		return "rejected"
	default:
		return "error"
	}
}

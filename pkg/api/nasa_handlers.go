package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/nasa-explorer/explorer/pkg/httputil"
	"github.com/nasa-explorer/explorer/pkg/middleware"
	"github.com/nasa-explorer/explorer/pkg/nasa"
)

// Success messages for the NASA proxy
const (
	APODMessage       = "Astronomy picture of the day retrieved"
	MarsPhotosMessage = "Mars rover photos retrieved"
	EarthMessage      = "Earth imagery retrieved"
	EPICMessage       = "EPIC images retrieved"
)

// NASAHandlers proxies the NASA open APIs for signed-in users
type NASAHandlers struct {
	client *nasa.Client
	gate   *middleware.TokenGate
}

// NewNASAHandlers creates NASA proxy handlers
func NewNASAHandlers(client *nasa.Client, gate *middleware.TokenGate) *NASAHandlers {
	return &NASAHandlers{client: client, gate: gate}
}

// RegisterRoutes registers the proxy routes, all behind the token gate
func (h *NASAHandlers) RegisterRoutes(router *mux.Router) {
	sub := router.PathPrefix("/api/nasa").Subrouter()
	sub.Use(h.gate.Handler)

	sub.HandleFunc("/apod", h.apod).Methods(http.MethodGet)
	sub.HandleFunc("/mars-photos", h.marsPhotos).Methods(http.MethodGet)
	sub.HandleFunc("/earth", h.earth).Methods(http.MethodGet)
	sub.HandleFunc("/epic", h.epic).Methods(http.MethodGet)
}

// apod handles GET /api/nasa/apod?date=YYYY-MM-DD
func (h *NASAHandlers) apod(w http.ResponseWriter, r *http.Request) {
	date, err := httputil.ParseQueryDate(r, "date")
	if err != nil {
		httputil.WriteBadRequest(w, nasa.InvalidDateMessage)
		return
	}

	apod, err := h.client.APOD(r.Context(), date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteOK(w, APODMessage, apod)
}

// marsPhotos handles GET /api/nasa/mars-photos?camera=&sol=&page=
func (h *NASAHandlers) marsPhotos(w http.ResponseWriter, r *http.Request) {
	sol, err := httputil.ParseQueryInt(r, "sol", nasa.DefaultSol)
	if err != nil {
		httputil.WriteBadRequest(w, InvalidQueryMessage)
		return
	}
	page, err := httputil.ParseQueryInt(r, "page", 1)
	if err != nil {
		httputil.WriteBadRequest(w, InvalidQueryMessage)
		return
	}

	photos, err := h.client.MarsPhotos(r.Context(), httputil.ParseQueryString(r, "camera", ""), sol, page)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteOK(w, MarsPhotosMessage, photos)
}

// earth handles GET /api/nasa/earth?lat=&lon=&date=
func (h *NASAHandlers) earth(w http.ResponseWriter, r *http.Request) {
	lat, latErr := httputil.ParseQueryFloat(r, "lat")
	lon, lonErr := httputil.ParseQueryFloat(r, "lon")
	if latErr != nil || lonErr != nil {
		httputil.WriteBadRequest(w, nasa.InvalidCoordinatesMessage)
		return
	}
	date, err := httputil.ParseQueryDate(r, "date")
	if err != nil {
		httputil.WriteBadRequest(w, nasa.InvalidDateMessage)
		return
	}

	image, err := h.client.EarthImagery(r.Context(), lat, lon, date)
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteOK(w, EarthMessage, image)
}

// epic handles GET /api/nasa/epic
func (h *NASAHandlers) epic(w http.ResponseWriter, r *http.Request) {
	images, err := h.client.EPIC(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	_ = httputil.WriteOK(w, EPICMessage, images)
}

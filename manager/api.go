package manager

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"edgegate/gateway"
	"edgegate/logger"
	"edgegate/middleware"
	"edgegate/router"

	"github.com/gorilla/mux"
)

const defaultHistoryLimit = 5

type ManagementAPI struct {
	Gateway *gateway.Gateway
}

func NewManagementAPI(gw *gateway.Gateway) *ManagementAPI {
	return &ManagementAPI{Gateway: gw}
}

// Handler returns the routed API wrapped in the middleware chain.
func (api *ManagementAPI) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/api/status", api.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/services", api.handleServices).Methods(http.MethodGet)
	r.HandleFunc("/api/services/{name}", api.handleService).Methods(http.MethodGet)
	r.HandleFunc("/api/history", api.handleHistory).Methods(http.MethodGet)
	r.HandleFunc("/api/route", api.handleRoute).Methods(http.MethodPost)
	r.HandleFunc("/api/requests", api.handleRequest).Methods(http.MethodPost)
	return middleware.Chain(r)
}

func (api *ManagementAPI) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := api.Gateway.Recorder().Snapshot()
	if err != nil {
		logger.Error("Failed to read stats", "err", err)
		http.Error(w, "Failed to read stats", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":    "active",
		"stats":     stats,
		"timestamp": time.Now(),
	})
}

func (api *ManagementAPI) handleServices(w http.ResponseWriter, r *http.Request) {
	reg := api.Gateway.Registry()
	writeJSON(w, http.StatusOK, map[string]any{
		"services": reg.Entries(),
		"count":    reg.Len(),
	})
}

func (api *ManagementAPI) handleService(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	target, ok := api.Gateway.Registry().Lookup(name)
	if !ok {
		http.Error(w, "Service not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"name": name, "target": target})
}

func (api *ManagementAPI) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}
	writeJSON(w, http.StatusOK, api.Gateway.Recorder().History().Last(limit))
}

func (api *ManagementAPI) handleRoute(w http.ResponseWriter, r *http.Request) {
	env, ok := decodeEnvelope(w, r)
	if !ok {
		return
	}
	d := api.Gateway.Route(env)
	writeJSON(w, statusFor(d.Reason), d)
}

func (api *ManagementAPI) handleRequest(w http.ResponseWriter, r *http.Request) {
	env, ok := decodeEnvelope(w, r)
	if !ok {
		return
	}

	resp, err := api.Gateway.Process(r.Context(), env)
	var rej *router.RejectionError
	switch {
	case errors.As(err, &rej):
		writeJSON(w, statusFor(rej.Reason), map[string]string{
			"error":  rej.Error(),
			"reason": rej.Reason.String(),
		})
	case err != nil:
		http.Error(w, "Request abandoned", http.StatusGatewayTimeout)
	default:
		writeJSON(w, http.StatusOK, resp)
	}
}

func decodeEnvelope(w http.ResponseWriter, r *http.Request) (router.Envelope, bool) {
	var env router.Envelope
	dec := json.NewDecoder(io.LimitReader(r.Body, 1<<20))
	err := dec.Decode(&env)
	if errors.Is(err, io.EOF) {
		return router.Envelope{}, true
	}
	if err != nil {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return router.Envelope{}, false
	}
	// The body must hold exactly one JSON value.
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return router.Envelope{}, false
	}
	return env, true
}

func statusFor(reason router.Reason) int {
	switch reason {
	case router.ReasonNone:
		return http.StatusOK
	case router.UnknownService:
		return http.StatusNotFound
	default:
		return http.StatusUnprocessableEntity
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Warn("Failed to encode response", "err", err)
	}
}

package handler

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/user/webmonitor/internal/auth"
	"github.com/user/webmonitor/internal/delivery/http/response"
	"github.com/user/webmonitor/internal/usecase"
	"github.com/user/webmonitor/pkg/beacon"
)

const (
	TrackingCookie = "webmonitor-tracking"

	// cookie values list resolved ids separated by this character
	trackingSeparator = "."
	maxTrackedIDs     = 20
	maxBodyBytes      = 1 << 20
	healthTimeout     = 2 * time.Second
)

//go:embed assets/tracker.js
var trackerJS []byte

// Pinger is a dependency checked by the health endpoint.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Handler struct {
	collector         usecase.Collector
	checks            map[string]Pinger
	suppressionWindow time.Duration
}

func NewHandler(collector usecase.Collector, checks map[string]Pinger, suppressionWindow time.Duration) *Handler {
	if suppressionWindow <= 0 {
		suppressionWindow = usecase.DefaultSuppressionWindow
	}
	return &Handler{
		collector:         collector,
		checks:            checks,
		suppressionWindow: suppressionWindow,
	}
}

func (h *Handler) HandleCollect(w http.ResponseWriter, r *http.Request) {
	var batch beacon.Batch
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&batch); err != nil {
		h.writeJSONError(w, http.StatusBadRequest, response.CodeValidation, "Invalid request body")
		return
	}

	tracked := trackedIDs(r)
	res, err := h.collector.Collect(r.Context(), usecase.CollectInput{
		Batch:      batch,
		Referer:    r.Referer(),
		Origin:     r.Header.Get("Origin"),
		ClientKey:  clientKey(r),
		TrackedIDs: tracked,
	})
	if err != nil {
		h.handleError(w, r, err)
		return
	}

	if res.Suppressed {
		h.writeJSON(w, http.StatusOK, response.CollectResponse{
			Success: true,
			Message: "data already collected recently",
		})
		return
	}

	h.setTrackingCookie(w, tracked, res.ResolvedID.String())
	h.writeJSON(w, http.StatusCreated, response.CollectResponse{
		Success: true,
		Message: "Data collected successfully",
	})
}

func (h *Handler) HandleListSites(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	sites, err := h.collector.ListSites(r.Context(), userID)
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	resp := make([]response.Site, 0, len(sites))
	for _, s := range sites {
		resp = append(resp, response.FromOverview(s, false))
	}
	h.writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) HandleSiteDetail(w http.ResponseWriter, r *http.Request) {
	userID, _ := auth.UserIDFrom(r.Context())
	site, err := h.collector.SiteDetail(r.Context(), userID, chi.URLParam(r, "monitoringCode"))
	if err != nil {
		h.handleError(w, r, err)
		return
	}
	h.writeJSON(w, http.StatusOK, response.FromOverview(site, true))
}

func (h *Handler) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := response.HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	status := http.StatusOK
	for name, p := range h.checks {
		if err := p.Ping(ctx); err != nil {
			slog.Warn("Health check failed", "dependency", name, "error", err)
			resp.Checks[name] = "unavailable"
			resp.Status = "degraded"
			status = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[name] = "ok"
	}
	h.writeJSON(w, status, resp)
}

func (h *Handler) HandleTrackerScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	if _, err := w.Write(trackerJS); err != nil {
		slog.Error("Failed to write tracker script", "error", err)
	}
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, usecase.ErrValidation):
		h.writeJSONError(w, http.StatusBadRequest, response.CodeValidation, err.Error())
	case errors.Is(err, usecase.ErrUnauthenticated):
		h.writeJSONError(w, http.StatusUnauthorized, response.CodeUnauthorized, "Unauthorized")
	case errors.Is(err, usecase.ErrNotFound):
		h.writeJSONError(w, http.StatusNotFound, response.CodeNotFound, "Site not found")
	default:
		slog.Error("Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		h.writeJSONError(w, http.StatusInternalServerError, response.CodeInternal, "Internal server error")
	}
}

func (h *Handler) setTrackingCookie(w http.ResponseWriter, tracked []string, id string) {
	ids := []string{id}
	for _, t := range tracked {
		if t != id && len(ids) < maxTrackedIDs {
			ids = append(ids, t)
		}
	}
	http.SetCookie(w, &http.Cookie{
		Name:     TrackingCookie,
		Value:    strings.Join(ids, trackingSeparator),
		Path:     "/",
		MaxAge:   int(h.suppressionWindow.Seconds()),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

func trackedIDs(r *http.Request) []string {
	c, err := r.Cookie(TrackingCookie)
	if err != nil || c.Value == "" {
		return nil
	}
	var ids []string
	for _, v := range strings.Split(c.Value, trackingSeparator) {
		if _, err := uuid.Parse(v); err == nil {
			ids = append(ids, v)
		}
	}
	return ids
}

// clientKey identifies the sending browser for server-side suppression.
// RemoteAddr is already the real client address behind chi's RealIP.
func clientKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if host == "" {
		return ""
	}
	return host + "|" + r.UserAgent()
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeJSONError(w http.ResponseWriter, status int, code, message string) {
	h.writeJSON(w, status, response.ErrorResponse{Success: false, Message: message, Code: code})
}

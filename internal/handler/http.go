// Package handler binds the core services to HTTP. Handlers decode JSON,
// resolve the caller identity, delegate, and translate error kinds; no
// business rules live here.
package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"github.com/example/fixlite/internal/admin"
	"github.com/example/fixlite/internal/auth"
	"github.com/example/fixlite/internal/directory"
	"github.com/example/fixlite/internal/geo"
	"github.com/example/fixlite/internal/intervention/domain"
	"github.com/example/fixlite/internal/intervention/service"
	"github.com/example/fixlite/internal/matching"
	"github.com/example/fixlite/internal/message"
	"github.com/example/fixlite/internal/notification"
	"github.com/example/fixlite/internal/settlement"
)

const defaultNearbyRadiusKM = 20

// HTTP exposes every core operation over chi.
type HTTP struct {
	interventions *service.Service
	matcher       *matching.Service
	settlement    *settlement.Engine
	messages      *message.Service
	notifications *notification.Service
	admin         *admin.Service
	directory     *directory.Service
	jwtSecret     string
}

// NewHTTP constructs the handler set.
func NewHTTP(interventions *service.Service, matcher *matching.Service, engine *settlement.Engine, messages *message.Service, notifications *notification.Service, adminSvc *admin.Service, dir *directory.Service, jwtSecret string) *HTTP {
	return &HTTP{
		interventions: interventions,
		matcher:       matcher,
		settlement:    engine,
		messages:      messages,
		notifications: notifications,
		admin:         adminSvc,
		directory:     dir,
		jwtSecret:     jwtSecret,
	}
}

// Router builds the chi router. Nearby search and checkout status echo the
// platform's public endpoints; everything else requires a bearer identity.
func (h *HTTP) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)

	r.Get("/v1/technicians/nearby", h.findNearby)
	r.Get("/v1/payments/checkout/status/{sessionID}", h.checkoutStatus)

	r.Group(func(r chi.Router) {
		r.Use(auth.Middleware(h.jwtSecret))
		r.Post("/v1/interventions", h.createIntervention)
		r.Get("/v1/interventions", h.listInterventions)
		r.Get("/v1/interventions/{id}", h.getIntervention)
		r.Post("/v1/interventions/{id}/claim", h.claimIntervention)
		r.Post("/v1/interventions/{id}/status", h.updateStatus)
		r.Put("/v1/technicians/availability", h.setAvailability)
		r.Post("/v1/payments/checkout/session", h.createCheckout)
		r.Post("/v1/messages", h.sendMessage)
		r.Get("/v1/messages/{interventionID}", h.listMessages)
		r.Post("/v1/notifications", h.createNotification)
		r.Get("/v1/notifications", h.listNotifications)
		r.Put("/v1/notifications/{id}/read", h.markNotificationRead)

		r.Route("/v1/admin", func(r chi.Router) {
			r.Get("/dashboard", h.adminDashboard)
			r.Get("/users", h.adminListUsers)
			r.Get("/interventions", h.adminListInterventions)
			r.Get("/payments", h.adminListPayments)
			r.Put("/users/{id}/status", h.adminSetUserActive)
			r.Post("/interventions/{id}/resolve", h.adminResolve)
		})
	})

	return r
}

type createInterventionRequest struct {
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Category       string   `json:"category"`
	Mode           string   `json:"mode"`
	Urgency        string   `json:"urgency"`
	BudgetMinCents int64    `json:"budget_min_cents"`
	BudgetMaxCents int64    `json:"budget_max_cents"`
	Address        string   `json:"address"`
	Latitude       *float64 `json:"latitude,omitempty"`
	Longitude      *float64 `json:"longitude,omitempty"`
}

func (h *HTTP) createIntervention(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	var payload createInterventionRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	iv, err := h.interventions.Create(r.Context(), identity.UserID, identity.Role, r.Header.Get("Idempotency-Key"), service.CreateRequest{
		Title:          payload.Title,
		Description:    payload.Description,
		Category:       domain.Category(payload.Category),
		Mode:           domain.ServiceMode(payload.Mode),
		Urgency:        domain.Urgency(payload.Urgency),
		BudgetMinCents: payload.BudgetMinCents,
		BudgetMaxCents: payload.BudgetMaxCents,
		Address:        payload.Address,
		Latitude:       payload.Latitude,
		Longitude:      payload.Longitude,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, iv)
}

func (h *HTTP) listInterventions(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	ivs, err := h.interventions.ListFor(r.Context(), identity.UserID, identity.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ivs)
}

func (h *HTTP) getIntervention(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	iv, err := h.interventions.Get(r.Context(), id, identity.UserID, identity.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

func (h *HTTP) claimIntervention(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	iv, err := h.interventions.Claim(r.Context(), id, identity.UserID, identity.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

type updateStatusRequest struct {
	Status          string `json:"status"`
	FinalPriceCents *int64 `json:"final_price_cents,omitempty"`
}

func (h *HTTP) updateStatus(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var payload updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	iv, err := h.interventions.UpdateStatus(r.Context(), id, identity.UserID, identity.Role, domain.InterventionStatus(payload.Status), payload.FinalPriceCents)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

type adminResolveRequest struct {
	Resolution string `json:"resolution"`
}

func (h *HTTP) adminResolve(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var payload adminResolveRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	iv, err := h.interventions.AdminResolve(r.Context(), id, identity.UserID, identity.Role, payload.Resolution)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, iv)
}

type nearbyTechnician struct {
	Technician domain.User `json:"technician"`
	DistanceKM float64     `json:"distance_km"`
}

func (h *HTTP) findNearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := strconv.ParseFloat(q.Get("latitude"), 64)
	lng, errLng := strconv.ParseFloat(q.Get("longitude"), 64)
	if errLat != nil || errLng != nil {
		http.Error(w, "latitude and longitude are required", http.StatusBadRequest)
		return
	}
	radius := float64(defaultNearbyRadiusKM)
	if raw := q.Get("radius_km"); raw != "" {
		parsed, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			http.Error(w, "invalid radius_km", http.StatusBadRequest)
			return
		}
		radius = parsed
	}
	var category *domain.Category
	if raw := q.Get("category"); raw != "" {
		c := domain.Category(raw)
		category = &c
	}

	matches, err := h.matcher.FindNearby(r.Context(), geo.Point{Lat: lat, Lng: lng}, radius, category)
	if err != nil {
		writeError(w, err)
		return
	}
	res := make([]nearbyTechnician, 0, len(matches))
	for _, m := range matches {
		res = append(res, nearbyTechnician{Technician: m.Technician, DistanceKM: m.DistanceKM})
	}
	writeJSON(w, http.StatusOK, res)
}

type availabilityRequest struct {
	Available bool `json:"available"`
}

func (h *HTTP) setAvailability(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	var payload availabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.directory.SetAvailability(r.Context(), identity.UserID, identity.Role, payload.Available); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

type checkoutRequest struct {
	InterventionID string `json:"intervention_id"`
	OriginURL      string `json:"origin_url"`
}

func (h *HTTP) createCheckout(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	var payload checkoutRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	interventionID, err := uuid.Parse(payload.InterventionID)
	if err != nil {
		http.Error(w, "invalid intervention_id", http.StatusBadRequest)
		return
	}
	if payload.OriginURL == "" {
		http.Error(w, "origin_url is required", http.StatusBadRequest)
		return
	}
	result, err := h.settlement.CreateCheckout(r.Context(), interventionID, identity.UserID, payload.OriginURL)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": result.SessionID, "url": result.RedirectURL})
}

func (h *HTTP) checkoutStatus(w http.ResponseWriter, r *http.Request) {
	sessionID := chi.URLParam(r, "sessionID")
	status, err := h.settlement.Reconcile(r.Context(), sessionID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"session_id": sessionID, "payment_status": string(status)})
}

type sendMessageRequest struct {
	InterventionID string `json:"intervention_id"`
	Content        string `json:"content"`
}

func (h *HTTP) sendMessage(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	var payload sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	interventionID, err := uuid.Parse(payload.InterventionID)
	if err != nil {
		http.Error(w, "invalid intervention_id", http.StatusBadRequest)
		return
	}
	msg, err := h.messages.Send(r.Context(), interventionID, identity.UserID, identity.Role, payload.Content)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (h *HTTP) listMessages(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	interventionID, err := uuid.Parse(chi.URLParam(r, "interventionID"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	msgs, err := h.messages.List(r.Context(), interventionID, identity.UserID, identity.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

type createNotificationRequest struct {
	UserID string            `json:"user_id"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Kind   string            `json:"kind"`
	Data   map[string]string `json:"data,omitempty"`
}

func (h *HTTP) createNotification(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	var payload createNotificationRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	targetID, err := uuid.Parse(payload.UserID)
	if err != nil {
		http.Error(w, "invalid user_id", http.StatusBadRequest)
		return
	}
	n, err := h.notifications.Create(r.Context(), identity.UserID, identity.Role, targetID, payload.Title, payload.Body, payload.Kind, payload.Data)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, n)
}

func (h *HTTP) listNotifications(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	unreadOnly := r.URL.Query().Get("unread_only") == "true"
	ns, err := h.notifications.List(r.Context(), identity.UserID, unreadOnly)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ns)
}

func (h *HTTP) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	if err := h.notifications.MarkRead(r.Context(), id, identity.UserID); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "read"})
}

func (h *HTTP) adminDashboard(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	dashboard, err := h.admin.GetDashboard(r.Context(), identity.Role)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dashboard)
}

func (h *HTTP) adminListUsers(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	var roleFilter *domain.Role
	if raw := r.URL.Query().Get("role"); raw != "" {
		role := domain.Role(raw)
		roleFilter = &role
	}
	skip, limit := pagination(r)
	users, err := h.admin.ListUsers(r.Context(), identity.Role, roleFilter, skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (h *HTTP) adminListInterventions(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	var statusFilter *domain.InterventionStatus
	if raw := r.URL.Query().Get("status"); raw != "" {
		status := domain.InterventionStatus(raw)
		statusFilter = &status
	}
	skip, limit := pagination(r)
	ivs, err := h.admin.ListInterventions(r.Context(), identity.Role, statusFilter, skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ivs)
}

func (h *HTTP) adminListPayments(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	skip, limit := pagination(r)
	txs, err := h.admin.ListPayments(r.Context(), identity.Role, skip, limit)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

type userStatusRequest struct {
	Active bool `json:"active"`
}

func (h *HTTP) adminSetUserActive(w http.ResponseWriter, r *http.Request) {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		http.Error(w, "missing identity", http.StatusUnauthorized)
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		http.Error(w, "invalid id", http.StatusBadRequest)
		return
	}
	var payload userStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.admin.SetUserActive(r.Context(), identity.Role, id, payload.Active); err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func pagination(r *http.Request) (skip, limit int) {
	limit = 50
	if raw := r.URL.Query().Get("skip"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed >= 0 {
			skip = parsed
		}
	}
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if parsed, err := strconv.Atoi(raw); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	return skip, limit
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps error kinds to HTTP statuses. Failures always surface;
// none collapse into a success shape.
func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, domain.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, domain.ErrUnauthorized):
		status = http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		status = http.StatusForbidden
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, domain.ErrPreconditionFailed):
		status = http.StatusConflict
	case errors.Is(err, domain.ErrInvalidArgument):
		status = http.StatusBadRequest
	case errors.Is(err, domain.ErrUpstream):
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}

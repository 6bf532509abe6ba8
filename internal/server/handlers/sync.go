package handlers

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/engine"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/live"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/poller"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/core/sportsapi"
	apperrors "github.com/dougcodi-ai/bolao-isoccer-sub002/internal/errors"
	"github.com/dougcodi-ai/bolao-isoccer-sub002/internal/server/middleware"
)

// MinSubscriptionInterval is the shortest poll interval a client may request.
const MinSubscriptionInterval = 30 * time.Second

const maxMatchPageSize = 500

// QuotaReporter exposes a user's current request window.
type QuotaReporter interface {
	Usage(ctx context.Context, userID string) (core.QuotaUsage, error)
}

// SyncHandler serves the sports data API.
type SyncHandler struct {
	Fetcher       engine.Fetcher
	Quota         QuotaReporter
	Subscriptions *poller.Manager
	Validate      *validator.Validate
	Clock         func() time.Time
}

// NewSyncHandler wires the API to a fetcher, quota reporter and
// subscription manager.
func NewSyncHandler(fetcher engine.Fetcher, quota QuotaReporter, subs *poller.Manager) *SyncHandler {
	return &SyncHandler{
		Fetcher:       fetcher,
		Quota:         quota,
		Subscriptions: subs,
		Validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

// Routes mounts the API under the caller's router.
func (h *SyncHandler) Routes(r chi.Router) {
	r.Get("/countries", h.Countries)
	r.Get("/leagues", h.Leagues)
	r.Get("/leagues/{leagueID}/matches", h.Matches)
	r.Get("/leagues/{leagueID}/standings", h.Standings)
	r.Get("/leagues/{leagueID}/live", h.Live)
	r.Get("/quota", h.QuotaStatus)

	r.Route("/subscriptions", func(r chi.Router) {
		r.Get("/", h.ListSubscriptions)
		r.Post("/", h.CreateSubscription)
		r.Get("/{subscriptionID}", h.GetSubscription)
		r.Delete("/{subscriptionID}", h.DeleteSubscription)
		r.Post("/{subscriptionID}/refresh", h.RefreshSubscription)
		r.Put("/{subscriptionID}/visibility", h.SetVisibility)
	})
}

// FetchResponse is the body of a successful read.
type FetchResponse struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	FromCache bool            `json:"fromCache"`
}

// LiveResponse is the body of the live endpoint.
type LiveResponse struct {
	LeagueID  string                  `json:"league_id"`
	FromCache bool                    `json:"fromCache"`
	Matches   core.CategorizedMatches `json:"matches"`
}

// Countries handles GET /countries.
func (h *SyncHandler) Countries(w http.ResponseWriter, r *http.Request) {
	h.serveFetch(w, r, sportsapi.CountriesRequest())
}

// Leagues handles GET /leagues?country=.
func (h *SyncHandler) Leagues(w http.ResponseWriter, r *http.Request) {
	h.serveFetch(w, r, sportsapi.LeaguesRequest(r.URL.Query().Get("country")))
}

// Matches handles GET /leagues/{leagueID}/matches?offset=&limit=.
func (h *SyncHandler) Matches(w http.ResponseWriter, r *http.Request) {
	req, err := matchesRequestFrom(r)
	if err != nil {
		respondWithError(w, r, apperrors.WrapInvalidInput(r.Context(), err, err.Error()))
		return
	}
	h.serveFetch(w, r, req)
}

// Standings handles GET /leagues/{leagueID}/standings?season=.
func (h *SyncHandler) Standings(w http.ResponseWriter, r *http.Request) {
	leagueID := strings.TrimSpace(chi.URLParam(r, "leagueID"))
	h.serveFetch(w, r, sportsapi.StandingsRequest(leagueID, r.URL.Query().Get("season")))
}

// Live handles GET /leagues/{leagueID}/live. It reads the first page of
// matches and partitions it into live, upcoming and recent buckets.
func (h *SyncHandler) Live(w http.ResponseWriter, r *http.Request) {
	leagueID := strings.TrimSpace(chi.URLParam(r, "leagueID"))
	result := h.Fetcher.Fetch(r.Context(), userID(r), sportsapi.MatchesRequest(leagueID, 0, sportsapi.DefaultPageSize))
	if !result.Success {
		respondWithError(w, r, apperrors.FromResult(r.Context(), result, h.now()))
		return
	}

	matches, err := core.DecodeMatches(result.Data)
	if err != nil {
		respondWithError(w, r, apperrors.WrapExternalService(r.Context(), err, "provider returned an unreadable match list"))
		return
	}

	writeJSON(w, http.StatusOK, LiveResponse{
		LeagueID:  leagueID,
		FromCache: result.FromCache,
		Matches:   live.Categorize(matches, h.now()),
	})
}

// QuotaStatus handles GET /quota.
func (h *SyncHandler) QuotaStatus(w http.ResponseWriter, r *http.Request) {
	usage, err := h.Quota.Usage(r.Context(), userID(r))
	if err != nil {
		respondWithError(w, r, apperrors.WrapStoreUnavailable(r.Context(), err, "request log unavailable"))
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

// SubscriptionRequest is the body of POST /subscriptions.
type SubscriptionRequest struct {
	Resource string `json:"resource" validate:"required,oneof=countries leagues matches standings"`
	LeagueID string `json:"league_id" validate:"omitempty,max=64"`
	Country  string `json:"country" validate:"omitempty,max=64"`
	Season   string `json:"season" validate:"omitempty,max=16"`
	Offset   int    `json:"offset" validate:"gte=0"`
	Limit    int    `json:"limit" validate:"gte=0,lte=500"`
	// Interval is a Go duration string such as "5m".
	Interval  string `json:"interval"`
	Adaptive  bool   `json:"adaptive"`
	Immediate *bool  `json:"immediate"`
}

// VisibilityRequest is the body of PUT /subscriptions/{id}/visibility.
type VisibilityRequest struct {
	Visible *bool `json:"visible" validate:"required"`
}

// ListSubscriptions handles GET /subscriptions.
func (h *SyncHandler) ListSubscriptions(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"subscriptions": h.Subscriptions.List(userID(r)),
	})
}

// CreateSubscription handles POST /subscriptions.
func (h *SyncHandler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	var body SubscriptionRequest
	if err := h.decode(w, r, &body); err != nil {
		respondWithError(w, r, err)
		return
	}

	cfg, err := subscriptionConfig(body)
	if err != nil {
		respondWithError(w, r, apperrors.WrapValidationError(r.Context(), err, err.Error()))
		return
	}
	cfg.UserID = userID(r)

	sub := h.Subscriptions.Subscribe(cfg)
	w.Header().Set("Location", "/api/v1/subscriptions/"+sub.ID())
	writeJSON(w, http.StatusCreated, sub.View())
}

// GetSubscription handles GET /subscriptions/{id}.
func (h *SyncHandler) GetSubscription(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.ownedSubscription(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sub.View())
}

// DeleteSubscription handles DELETE /subscriptions/{id}.
func (h *SyncHandler) DeleteSubscription(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.ownedSubscription(w, r)
	if !ok {
		return
	}
	if err := h.Subscriptions.Remove(sub.ID()); err != nil {
		respondWithError(w, r, apperrors.WrapNotFound(r.Context(), err, "subscription not found"))
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RefreshSubscription handles POST /subscriptions/{id}/refresh.
func (h *SyncHandler) RefreshSubscription(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.ownedSubscription(w, r)
	if !ok {
		return
	}

	result, err := sub.ForceUpdate(r.Context())
	if err != nil {
		respondWithError(w, r, apperrors.WrapConflict(r.Context(), err, "subscription is not active"))
		return
	}
	if !result.Success && !result.IsRateLimited() {
		respondWithError(w, r, apperrors.FromResult(r.Context(), result, h.now()))
		return
	}
	// A denied refresh still reports the paused subscription.
	writeJSON(w, http.StatusOK, sub.View())
}

// SetVisibility handles PUT /subscriptions/{id}/visibility.
func (h *SyncHandler) SetVisibility(w http.ResponseWriter, r *http.Request) {
	sub, ok := h.ownedSubscription(w, r)
	if !ok {
		return
	}

	var body VisibilityRequest
	if err := h.decode(w, r, &body); err != nil {
		respondWithError(w, r, err)
		return
	}
	sub.SetVisible(*body.Visible)
	writeJSON(w, http.StatusOK, sub.View())
}

func (h *SyncHandler) serveFetch(w http.ResponseWriter, r *http.Request, req core.FetchRequest) {
	result := h.Fetcher.Fetch(r.Context(), userID(r), req)
	if !result.Success {
		respondWithError(w, r, apperrors.FromResult(r.Context(), result, h.now()))
		return
	}
	writeJSON(w, http.StatusOK, FetchResponse{
		Success:   true,
		Data:      result.Data,
		FromCache: result.FromCache,
	})
}

// ownedSubscription resolves the path subscription and hides other users'
// subscriptions behind a 404.
func (h *SyncHandler) ownedSubscription(w http.ResponseWriter, r *http.Request) (*poller.Subscription, bool) {
	id := chi.URLParam(r, "subscriptionID")
	sub, err := h.Subscriptions.Get(id)
	if err != nil || sub.Config().UserID != userID(r) {
		respondWithError(w, r, apperrors.WrapNotFound(r.Context(), poller.ErrSubscriptionNotFound, "subscription not found"))
		return nil, false
	}
	return sub, true
}

func (h *SyncHandler) decode(w http.ResponseWriter, r *http.Request, dst any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<16))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dst); err != nil {
		return apperrors.WrapInvalidInput(r.Context(), err, "request body is not valid JSON")
	}
	if err := h.Validate.Struct(dst); err != nil {
		return apperrors.WrapValidationError(r.Context(), err, validationMessage(err))
	}
	return nil
}

func (h *SyncHandler) now() time.Time {
	if h.Clock != nil {
		return h.Clock()
	}
	return time.Now().UTC()
}

func subscriptionConfig(body SubscriptionRequest) (poller.Config, error) {
	var cfg poller.Config
	resource, _ := core.ParseResource(body.Resource)

	req, err := sportsapi.RequestFor(resource, sportsapi.Query{
		Country:  body.Country,
		LeagueID: body.LeagueID,
		Season:   body.Season,
		Offset:   body.Offset,
		Limit:    body.Limit,
	})
	if err != nil {
		return cfg, err
	}
	cfg.Request = req

	if body.Interval != "" {
		interval, err := time.ParseDuration(body.Interval)
		if err != nil {
			return cfg, fmt.Errorf("interval: %w", err)
		}
		if interval < MinSubscriptionInterval {
			return cfg, fmt.Errorf("interval must be at least %s", MinSubscriptionInterval)
		}
		cfg.Interval = interval
	}
	cfg.Adaptive = body.Adaptive && resource == core.ResourceMatches
	cfg.Immediate = body.Immediate == nil || *body.Immediate
	return cfg, nil
}

func matchesRequestFrom(r *http.Request) (core.FetchRequest, error) {
	leagueID := strings.TrimSpace(chi.URLParam(r, "leagueID"))
	query := r.URL.Query()

	offset, err := intParam(query.Get("offset"), 0)
	if err != nil || offset < 0 {
		return core.FetchRequest{}, fmt.Errorf("offset must be a non-negative integer")
	}
	limit, err := intParam(query.Get("limit"), sportsapi.DefaultPageSize)
	if err != nil || limit <= 0 || limit > maxMatchPageSize {
		return core.FetchRequest{}, fmt.Errorf("limit must be between 1 and %d", maxMatchPageSize)
	}
	return sportsapi.MatchesRequest(leagueID, offset, limit), nil
}

func intParam(value string, fallback int) (int, error) {
	if value == "" {
		return fallback, nil
	}
	return strconv.Atoi(value)
}

func userID(r *http.Request) string {
	return middleware.GetUserID(r.Context())
}

func validationMessage(err error) string {
	var fieldErrs validator.ValidationErrors
	if !stderrors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err.Error()
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return strings.Join(parts, "; ")
}

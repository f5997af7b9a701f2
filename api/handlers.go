/*
handlers.go - HTTP API handlers for the points engine

PURPOSE:
  Exposes the points engine via REST API. Handles HTTP request/response,
  JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Activities:
    POST   /api/users/{id}/checkins     Record check-in, award points
    POST   /api/users/{id}/rsvps        Record RSVP, award points
    POST   /api/users/{id}/surveys      Record survey completion, award points

  Ledger:
    GET    /api/users/{id}/balance      Derived point balance
    GET    /api/users/{id}/ledger       Full entry history

  Redemptions:
    POST   /api/users/{id}/redemptions  Redeem a reward item
    GET    /api/users/{id}/redemptions  Redemption history

  Catalog & Directory:
    GET    /api/rewards                 Reward catalog
    GET    /api/businesses              Business directory
    GET    /api/events                  Event listings

  Scenarios:
    GET    /api/scenarios               List demo scenarios
    POST   /api/scenarios/load          Load a demo scenario

REQUEST FLOW:
  1. Parse HTTP request
  2. Validate input
  3. Call domain logic (award policy, coordinator, calculator)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, insufficient points, inactive/expired/exhausted reward
  - 404: Reward/resource not found
  - 500: Ledger integrity faults
  - 503: Transient storage failures (retryable)
  A repeated activity is NOT an error: it returns 200 with awarded=false.

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Demo scenario loaders
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"github.com/mainstreet/points-engine/ledger"
	"github.com/mainstreet/points-engine/loyalty"
	"github.com/mainstreet/points-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	Balances    *ledger.BalanceCalculator
	Awards      *loyalty.AwardPolicy
	Redemptions *loyalty.Coordinator
	Log         *logrus.Logger

	// EnableScenarios gates the database-resetting demo endpoints.
	EnableScenarios bool

	currentScenario string
}

// NewHandler creates a handler wired to the given store.
func NewHandler(store *sqlite.Store, log *logrus.Logger) *Handler {
	led := ledger.NewLedger(store)
	awards := loyalty.NewAwardPolicy(led)
	awards.Promotions = store

	return &Handler{
		Store:       store,
		Balances:    ledger.NewBalanceCalculator(led),
		Awards:      awards,
		Redemptions: loyalty.NewCoordinator(store),
		Log:         log,
	}
}

// =============================================================================
// ACTIVITY ENDPOINTS
// =============================================================================

// RecordCheckin awards points for an event check-in.
// POST /api/users/{id}/checkins
func (h *Handler) RecordCheckin(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	var req CheckinRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.EventID == "" {
		writeError(w, http.StatusBadRequest, "event_id is required", nil)
		return
	}

	result, err := h.Awards.AwardForCheckin(r.Context(), userID, req.EventID, ledger.BusinessID(req.BusinessID))
	if err != nil {
		h.writeDomainError(w, "check-in award failed", err)
		return
	}
	writeJSON(w, http.StatusOK, AwardResultDTO{Awarded: result.Awarded, Points: result.Points})
}

// RecordRSVP awards points for an event RSVP.
// POST /api/users/{id}/rsvps
func (h *Handler) RecordRSVP(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	var req RSVPRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.EventID == "" {
		writeError(w, http.StatusBadRequest, "event_id is required", nil)
		return
	}

	result, err := h.Awards.AwardForRSVP(r.Context(), userID, req.EventID)
	if err != nil {
		h.writeDomainError(w, "rsvp award failed", err)
		return
	}
	writeJSON(w, http.StatusOK, AwardResultDTO{Awarded: result.Awarded, Points: result.Points})
}

// RecordSurvey awards survey-defined points for a completion.
// POST /api/users/{id}/surveys
func (h *Handler) RecordSurvey(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	var req SurveyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.SurveyID == "" {
		writeError(w, http.StatusBadRequest, "survey_id is required", nil)
		return
	}

	result, err := h.Awards.AwardForSurvey(r.Context(), userID, req.SurveyID, req.RewardPoints)
	if err != nil {
		h.writeDomainError(w, "survey award failed", err)
		return
	}
	writeJSON(w, http.StatusOK, AwardResultDTO{Awarded: result.Awarded, Points: result.Points})
}

// =============================================================================
// LEDGER ENDPOINTS
// =============================================================================

// GetBalance returns a user's derived point balance.
// GET /api/users/{id}/balance
func (h *Handler) GetBalance(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	balance, err := h.Balances.BalanceOf(r.Context(), userID)
	if err != nil {
		var nbe *ledger.NegativeBalanceError
		if errors.As(err, &nbe) {
			h.Log.WithFields(logrus.Fields{
				"user_id": userID,
				"balance": nbe.Balance.String(),
			}).Error("negative balance detected")
			writeError(w, http.StatusInternalServerError, "ledger integrity fault", err)
			return
		}
		h.writeDomainError(w, "balance lookup failed", err)
		return
	}

	writeJSON(w, http.StatusOK, BalanceDTO{
		UserID:  string(userID),
		Balance: balance.Int64(),
		AsOf:    time.Now().UTC().Format(time.RFC3339),
	})
}

// GetLedger returns a user's full entry history, oldest first.
// GET /api/users/{id}/ledger
func (h *Handler) GetLedger(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	entries, err := h.Store.EntriesForUser(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, "ledger lookup failed", err)
		return
	}

	dtos := make([]EntryDTO, 0, len(entries))
	for _, e := range entries {
		dtos = append(dtos, toEntryDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// REDEMPTION ENDPOINTS
// =============================================================================

// RedeemReward exchanges points for a reward item.
// POST /api/users/{id}/redemptions
func (h *Handler) RedeemReward(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	var req RedeemRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}
	if req.RewardItemID == "" {
		writeError(w, http.StatusBadRequest, "reward_item_id is required", nil)
		return
	}

	receipt, err := h.Redemptions.Redeem(r.Context(), userID, req.RewardItemID, ledger.BusinessID(req.BusinessID))
	if err != nil {
		h.writeDomainError(w, "redemption failed", err)
		return
	}

	writeJSON(w, http.StatusCreated, ReceiptDTO{
		Redemption:   toRedemptionDTO(receipt.Redemption),
		RewardName:   receipt.RewardName,
		BusinessName: receipt.BusinessName,
	})
}

// GetRedemptions returns a user's redemption history, newest first.
// GET /api/users/{id}/redemptions
func (h *Handler) GetRedemptions(w http.ResponseWriter, r *http.Request) {
	userID := ledger.UserID(chi.URLParam(r, "id"))

	redemptions, err := h.Store.RedemptionsForUser(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, "redemption history failed", err)
		return
	}

	dtos := make([]RedemptionDTO, 0, len(redemptions))
	for _, r := range redemptions {
		dtos = append(dtos, toRedemptionDTO(r))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// CATALOG & DIRECTORY ENDPOINTS
// =============================================================================

// ListRewards returns the reward catalog.
// GET /api/rewards
func (h *Handler) ListRewards(w http.ResponseWriter, r *http.Request) {
	items, err := h.Store.ListRewardItems(r.Context())
	if err != nil {
		h.writeDomainError(w, "catalog lookup failed", err)
		return
	}

	dtos := make([]RewardItemDTO, 0, len(items))
	for _, item := range items {
		dtos = append(dtos, toRewardItemDTO(item))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetReward returns one catalog entry.
// GET /api/rewards/{id}
func (h *Handler) GetReward(w http.ResponseWriter, r *http.Request) {
	item, err := h.Store.RewardItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, "catalog lookup failed", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "reward not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toRewardItemDTO(*item))
}

// GetBusiness returns one directory listing.
// GET /api/businesses/{id}
func (h *Handler) GetBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := h.Store.Business(r.Context(), ledger.BusinessID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, "directory lookup failed", err)
		return
	}
	if b == nil {
		writeError(w, http.StatusNotFound, "business not found", nil)
		return
	}
	writeJSON(w, http.StatusOK, toBusinessDTO(*b))
}

// ListBusinesses returns the downtown directory.
// GET /api/businesses
func (h *Handler) ListBusinesses(w http.ResponseWriter, r *http.Request) {
	businesses, err := h.Store.ListBusinesses(r.Context())
	if err != nil {
		h.writeDomainError(w, "directory lookup failed", err)
		return
	}

	dtos := make([]BusinessDTO, 0, len(businesses))
	for _, b := range businesses {
		dtos = append(dtos, toBusinessDTO(b))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListEvents returns all events ordered by start time.
// GET /api/events
func (h *Handler) ListEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.Store.ListEvents(r.Context())
	if err != nil {
		h.writeDomainError(w, "event lookup failed", err)
		return
	}

	dtos := make([]EventDTO, 0, len(events))
	for _, e := range events {
		dtos = append(dtos, toEventDTO(e))
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// ERROR MAPPING
// =============================================================================

// statusForError maps the engine's error taxonomy to HTTP status codes.
func statusForError(err error) int {
	switch {
	case ledger.IsNotFound(err):
		return http.StatusNotFound
	case ledger.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, ledger.ErrDataIntegrity):
		return http.StatusInternalServerError
	case ledger.IsRetryable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func (h *Handler) writeDomainError(w http.ResponseWriter, message string, err error) {
	status := statusForError(err)
	if status >= 500 {
		h.Log.WithError(err).Error(message)
	}
	writeError(w, status, message, err)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

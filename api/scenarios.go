/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:
  Provides pre-built scenarios that populate the database with realistic
  downtown data for demos. Each scenario seeds businesses, events, and
  rewards, then replays patron activity through the real award policy and
  redemption coordinator so every point in the demo has a ledger entry
  behind it.

AVAILABLE SCENARIOS:
  downtown-basics:  Directory, events, catalog, one active patron
  double-points:    A 2x promotion running at the coffee shop
  regular-patron:   Months of activity plus a past redemption

HOW SCENARIOS WORK:
 1. Reset database (clear all data)
 2. Seed businesses, events, rewards, promotions
 3. Replay activity through AwardPolicy / Coordinator

USAGE VIA API:
  POST /api/scenarios/load
  {"scenario_id": "double-points"}

NOTE:
  Scenarios reset the database. Only use in development/demo environments;
  the ENABLE_SCENARIOS setting removes these routes entirely.

SEE ALSO:
  - handlers.go: Error helpers
  - server.go: Route registration
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/mainstreet/points-engine/ledger"
	"github.com/mainstreet/points-engine/loyalty"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "downtown-basics",
		Name:        "Downtown Basics",
		Description: "Directory, events, reward catalog, and one patron with a small balance",
	},
	{
		ID:          "double-points",
		Name:        "Double Points Week",
		Description: "A 2x check-in promotion running at the coffee shop",
	},
	{
		ID:          "regular-patron",
		Name:        "Regular Patron",
		Description: "Months of check-ins and surveys, including a past redemption",
	},
}

// ListScenarios returns available demo scenarios.
// GET /api/scenarios
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"scenarios": scenarios,
		"current":   h.currentScenario,
	})
}

// LoadScenario resets the database and loads the requested scenario.
// POST /api/scenarios/load
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body", err)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to reset database", err)
		return
	}

	var err error
	switch req.ScenarioID {
	case "downtown-basics":
		err = h.loadDowntownBasics(ctx)
	case "double-points":
		err = h.loadDoublePoints(ctx)
	case "regular-patron":
		err = h.loadRegularPatron(ctx)
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown scenario: %s", req.ScenarioID), nil)
		return
	}
	if err != nil {
		h.Log.WithError(err).Error("scenario load failed")
		writeError(w, http.StatusInternalServerError, "failed to load scenario", err)
		return
	}

	h.currentScenario = req.ScenarioID
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "loaded",
		"scenario": req.ScenarioID,
	})
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

// loadDowntownBasics seeds the directory and catalog, then gives patron
// "maria" a check-in, an RSVP, and a survey for a balance of 17.
func (h *Handler) loadDowntownBasics(ctx context.Context) error {
	if err := h.seedDowntown(ctx); err != nil {
		return err
	}

	user := ledger.UserID("maria")
	if _, err := h.Awards.AwardForRSVP(ctx, user, "evt-live-music"); err != nil {
		return err
	}
	if _, err := h.Awards.AwardForCheckin(ctx, user, "evt-live-music", "biz-coffee"); err != nil {
		return err
	}
	if _, err := h.Awards.AwardForSurvey(ctx, user, "survey-downtown-2026", 10); err != nil {
		return err
	}
	return nil
}

// loadDoublePoints is downtown-basics plus a week-long 2x promotion at
// the coffee shop, with one check-in landing inside the window.
func (h *Handler) loadDoublePoints(ctx context.Context) error {
	if err := h.seedDowntown(ctx); err != nil {
		return err
	}

	now := time.Now().UTC()
	promo := loyalty.Promotion{
		ID:         "promo-double-week",
		BusinessID: "biz-coffee",
		Name:       "Double Points Week",
		Multiplier: decimal.NewFromInt(2),
		StartsAt:   now.Add(-24 * time.Hour),
		EndsAt:     now.Add(6 * 24 * time.Hour),
	}
	if err := h.Store.SavePromotion(ctx, promo); err != nil {
		return err
	}

	// 5-point check-in doubled to 10.
	_, err := h.Awards.AwardForCheckin(ctx, "maria", "evt-live-music", "biz-coffee")
	return err
}

// loadRegularPatron replays a season of activity for patron "sam":
// enough credits to redeem the coffee card, and the redemption itself.
func (h *Handler) loadRegularPatron(ctx context.Context) error {
	if err := h.seedDowntown(ctx); err != nil {
		return err
	}

	user := ledger.UserID("sam")
	for i := 1; i <= 12; i++ {
		eventID := fmt.Sprintf("evt-weekly-%02d", i)
		if _, err := h.Awards.AwardForRSVP(ctx, user, eventID); err != nil {
			return err
		}
		if _, err := h.Awards.AwardForCheckin(ctx, user, eventID, "biz-coffee"); err != nil {
			return err
		}
	}
	if _, err := h.Awards.AwardForSurvey(ctx, user, "survey-downtown-2026", 15); err != nil {
		return err
	}

	// 12*(2+5) + 15 = 99; the 50-point coffee card leaves 49.
	if _, err := h.Redemptions.Redeem(ctx, user, "reward-coffee-card", "biz-coffee"); err != nil {
		return err
	}
	return nil
}

// seedDowntown loads the shared directory, events, and reward catalog.
func (h *Handler) seedDowntown(ctx context.Context) error {
	businesses := []loyalty.Business{
		{ID: "biz-coffee", Name: "Main Street Coffee", Description: "Espresso bar and roastery", Address: "101 Main St", Category: "cafe"},
		{ID: "biz-books", Name: "Riverbend Books", Description: "Independent bookstore", Address: "114 Main St", Category: "retail"},
		{ID: "biz-bistro", Name: "Osceola Bistro", Description: "Farm-to-table dining", Address: "210 Flagler Ave", Category: "restaurant"},
	}
	for _, b := range businesses {
		if err := h.Store.SaveBusiness(ctx, b); err != nil {
			return err
		}
	}

	now := time.Now().UTC()
	events := []loyalty.Event{
		{ID: "evt-live-music", BusinessID: "biz-bistro", Name: "Live Music Friday", StartsAt: now.Add(48 * time.Hour), EndsAt: now.Add(52 * time.Hour)},
		{ID: "evt-author-night", BusinessID: "biz-books", Name: "Author Night", StartsAt: now.Add(7 * 24 * time.Hour), EndsAt: now.Add(7*24*time.Hour + 2*time.Hour)},
	}
	for _, e := range events {
		if err := h.Store.SaveEvent(ctx, e); err != nil {
			return err
		}
	}

	three := 3
	rewards := []loyalty.RewardItem{
		{ID: "reward-coffee-card", Name: "$5 Coffee Card", PointThreshold: 50, BusinessID: "biz-coffee", IsActive: true},
		{ID: "reward-book-tote", Name: "Riverbend Tote Bag", PointThreshold: 30, BusinessID: "biz-books", IsActive: true, MaxRedemptions: &three},
		{ID: "reward-dinner", Name: "Chef's Tasting for Two", PointThreshold: 200, BusinessID: "biz-bistro", IsActive: true},
		{ID: "reward-retired-mug", Name: "2025 Festival Mug", PointThreshold: 20, BusinessID: "biz-coffee", IsActive: false},
	}
	for _, item := range rewards {
		if err := h.Store.SaveRewardItem(ctx, item); err != nil {
			return err
		}
	}
	return nil
}

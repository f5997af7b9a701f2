/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Validation is done in handlers, not in DTOs. DTOs are pure data carriers.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/mainstreet/points-engine/ledger"
	"github.com/mainstreet/points-engine/loyalty"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// CheckinRequest records an event check-in. The route layer is expected
// to have verified the RSVP before calling; business_id is optional and
// enables promotion multipliers.
type CheckinRequest struct {
	EventID    string `json:"event_id"`
	BusinessID string `json:"business_id,omitempty"`
}

// RSVPRequest records an event RSVP.
type RSVPRequest struct {
	EventID string `json:"event_id"`
}

// SurveyRequest records a survey completion. RewardPoints comes from the
// survey definition held by the (external) survey subsystem.
type SurveyRequest struct {
	SurveyID     string `json:"survey_id"`
	RewardPoints int64  `json:"reward_points"`
}

// RedeemRequest exchanges points for a reward item.
type RedeemRequest struct {
	RewardItemID string `json:"reward_item_id"`
	BusinessID   string `json:"business_id,omitempty"`
}

// LoadScenarioRequest selects a demo scenario.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// =============================================================================
// RESPONSE TYPES
// =============================================================================

// AwardResultDTO reports the outcome of an activity completion.
type AwardResultDTO struct {
	Awarded bool  `json:"awarded"`
	Points  int64 `json:"points"`
}

// BalanceDTO is a user's derived balance.
type BalanceDTO struct {
	UserID  string `json:"user_id"`
	Balance int64  `json:"balance"`
	AsOf    string `json:"as_of"`
}

// EntryDTO is one ledger entry in a history response.
type EntryDTO struct {
	ID         string `json:"id"`
	Amount     int64  `json:"amount"`
	SourceKind string `json:"source_kind"`
	SourceRef  string `json:"source_ref"`
	BusinessID string `json:"business_id,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// RewardItemDTO is a catalog entry.
type RewardItemDTO struct {
	ID             string  `json:"id"`
	Name           string  `json:"name"`
	Description    string  `json:"description,omitempty"`
	PointThreshold int64   `json:"point_threshold"`
	BusinessID     string  `json:"business_id,omitempty"`
	IsActive       bool    `json:"is_active"`
	ExpirationDate *string `json:"expiration_date,omitempty"`
	MaxRedemptions *int    `json:"max_redemptions,omitempty"`
}

// RedemptionDTO is one redemption in a history response.
type RedemptionDTO struct {
	ID             string `json:"id"`
	RewardItemID   string `json:"reward_item_id"`
	BusinessID     string `json:"business_id,omitempty"`
	PointsRedeemed int64  `json:"points_redeemed"`
	CreatedAt      string `json:"created_at"`
}

// ReceiptDTO confirms a successful redemption.
type ReceiptDTO struct {
	Redemption   RedemptionDTO `json:"redemption"`
	RewardName   string        `json:"reward_name"`
	BusinessName string        `json:"business_name,omitempty"`
}

// BusinessDTO is a directory listing.
type BusinessDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Address     string `json:"address,omitempty"`
	Category    string `json:"category,omitempty"`
}

// EventDTO is a directory event.
type EventDTO struct {
	ID          string `json:"id"`
	BusinessID  string `json:"business_id,omitempty"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	StartsAt    string `json:"starts_at"`
	EndsAt      string `json:"ends_at"`
}

// ScenarioDTO describes a loadable demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// CONVERTERS
// =============================================================================

func toEntryDTO(e ledger.Entry) EntryDTO {
	return EntryDTO{
		ID:         string(e.ID),
		Amount:     e.Amount.Int64(),
		SourceKind: string(e.SourceKind),
		SourceRef:  e.SourceRef,
		BusinessID: string(e.BusinessID),
		CreatedAt:  e.CreatedAt.Format(time.RFC3339),
	}
}

func toRewardItemDTO(item loyalty.RewardItem) RewardItemDTO {
	dto := RewardItemDTO{
		ID:             item.ID,
		Name:           item.Name,
		Description:    item.Description,
		PointThreshold: item.PointThreshold,
		BusinessID:     string(item.BusinessID),
		IsActive:       item.IsActive,
		MaxRedemptions: item.MaxRedemptions,
	}
	if item.ExpirationDate != nil {
		s := item.ExpirationDate.Format(time.RFC3339)
		dto.ExpirationDate = &s
	}
	return dto
}

func toRedemptionDTO(r loyalty.Redemption) RedemptionDTO {
	return RedemptionDTO{
		ID:             r.ID,
		RewardItemID:   r.RewardItemID,
		BusinessID:     string(r.BusinessID),
		PointsRedeemed: r.PointsRedeemed,
		CreatedAt:      r.CreatedAt.Format(time.RFC3339),
	}
}

func toBusinessDTO(b loyalty.Business) BusinessDTO {
	return BusinessDTO{
		ID:          string(b.ID),
		Name:        b.Name,
		Description: b.Description,
		Address:     b.Address,
		Category:    b.Category,
	}
}

func toEventDTO(e loyalty.Event) EventDTO {
	return EventDTO{
		ID:          e.ID,
		BusinessID:  string(e.BusinessID),
		Name:        e.Name,
		Description: e.Description,
		StartsAt:    e.StartsAt.Format(time.RFC3339),
		EndsAt:      e.EndsAt.Format(time.RFC3339),
	}
}

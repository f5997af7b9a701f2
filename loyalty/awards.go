/*
awards.go - Award policy for activity completions

PURPOSE:
  Decides the point value and eligibility of a completed activity, then
  requests a ledger append. Check-ins and RSVPs earn fixed amounts;
  surveys carry their own award value defined by the survey author.

IDEMPOTENCY:
  Every award is keyed by (user, activity kind, activity id). A repeat
  of the same activity is not an error - it comes back Awarded=false,
  which callers present as "already earned". This makes the whole
  activity-completion flow safe to retry end to end.

PRECONDITIONS (enforced by the caller, not here):
  - Check-in awards assume the caller verified the user holds an RSVP
    for the event.
  - Survey awards assume the survey subsystem supplied the reward value.

FAILURE MODES:
  - ErrInvalidAward: negative survey award value
  - TransientError: storage unavailable; retry the completion flow

SEE ALSO:
  - ledger/ledger.go: Duplicate-activity detection
  - promotions.go: Award multipliers
*/
package loyalty

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/mainstreet/points-engine/ledger"
)

// Default award values. Overridable per deployment via configuration.
const (
	DefaultCheckinAward int64 = 5
	DefaultRSVPAward    int64 = 2
)

// AwardResult reports whether points were awarded and how many.
type AwardResult struct {
	Awarded bool
	Points  int64
}

// =============================================================================
// AWARD POLICY
// =============================================================================

// AwardPolicy appends credit entries for completed activities.
type AwardPolicy struct {
	Ledger       ledger.Ledger
	Promotions   PromotionSource // optional; nil = no multipliers
	CheckinAward int64
	RSVPAward    int64

	// Now is the clock; overridable in tests.
	Now func() time.Time
}

func NewAwardPolicy(l ledger.Ledger) *AwardPolicy {
	return &AwardPolicy{
		Ledger:       l,
		CheckinAward: DefaultCheckinAward,
		RSVPAward:    DefaultRSVPAward,
		Now:          time.Now,
	}
}

// AwardForCheckin awards the check-in amount for the event, once. The
// businessID locates an active promotion multiplier; empty disables it.
func (p *AwardPolicy) AwardForCheckin(ctx context.Context, userID ledger.UserID, eventID string, businessID ledger.BusinessID) (AwardResult, error) {
	amount, err := p.promoted(ctx, ledger.NewPoints(p.CheckinAward), businessID)
	if err != nil {
		return AwardResult{}, err
	}
	return p.award(ctx, userID, ledger.SourceCheckin, eventID, businessID, amount)
}

// AwardForRSVP awards the RSVP amount for the event, once.
func (p *AwardPolicy) AwardForRSVP(ctx context.Context, userID ledger.UserID, eventID string) (AwardResult, error) {
	return p.award(ctx, userID, ledger.SourceRSVP, eventID, "", ledger.NewPoints(p.RSVPAward))
}

// AwardForSurvey awards the survey-defined amount, once. The value comes
// from external survey data and must be non-negative. A zero-point survey
// still appends an entry so completion is recorded and deduped.
func (p *AwardPolicy) AwardForSurvey(ctx context.Context, userID ledger.UserID, surveyID string, rewardPoints int64) (AwardResult, error) {
	if rewardPoints < 0 {
		return AwardResult{}, ledger.ErrInvalidAward
	}
	return p.award(ctx, userID, ledger.SourceSurvey, surveyID, "", ledger.NewPoints(rewardPoints))
}

// promoted scales a base amount by the promotion multiplier in effect at
// the business, floored to whole points.
func (p *AwardPolicy) promoted(ctx context.Context, base ledger.Points, businessID ledger.BusinessID) (ledger.Points, error) {
	if p.Promotions == nil || businessID == "" {
		return base, nil
	}
	mult, err := p.Promotions.MultiplierAt(ctx, businessID, p.now())
	if err != nil {
		return ledger.Points{}, &ledger.TransientError{Op: "promotion lookup", Err: err}
	}
	return base.Mul(mult).Floor(), nil
}

func (p *AwardPolicy) award(ctx context.Context, userID ledger.UserID, kind ledger.SourceKind, sourceRef string, businessID ledger.BusinessID, amount ledger.Points) (AwardResult, error) {
	entry := ledger.Entry{
		ID:         ledger.EntryID(uuid.NewString()),
		UserID:     userID,
		Amount:     amount,
		SourceKind: kind,
		SourceRef:  sourceRef,
		BusinessID: businessID,
		CreatedAt:  p.now(),
	}

	err := p.Ledger.Append(ctx, entry)
	if errors.Is(err, ledger.ErrDuplicateActivity) {
		// Already awarded; benign from the patron's perspective.
		return AwardResult{Awarded: false, Points: 0}, nil
	}
	if err != nil {
		return AwardResult{}, &ledger.TransientError{Op: "award append", Err: err}
	}
	return AwardResult{Awarded: true, Points: amount.Int64()}, nil
}

func (p *AwardPolicy) now() time.Time {
	if p.Now != nil {
		return p.Now()
	}
	return time.Now()
}

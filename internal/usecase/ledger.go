package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/policy"
)

// LedgerUsecase keeps citizen support and ratings of complaints.
type LedgerUsecase struct {
	tx         Transactor
	complaints ComplaintRepository
	supports   SupportRepository
	ratings    RatingRepository
	gate       Authorizer
	effects    *Effects
	now        func() time.Time
}

func NewLedgerUsecase(
	tx Transactor,
	complaints ComplaintRepository,
	supports SupportRepository,
	ratings RatingRepository,
	gate Authorizer,
	effects *Effects,
) *LedgerUsecase {
	return &LedgerUsecase{
		tx:         tx,
		complaints: complaints,
		supports:   supports,
		ratings:    ratings,
		gate:       gate,
		effects:    effects,
		now:        time.Now,
	}
}

// ToggleSupport adds the caller's support when absent and removes it
// otherwise. The entry and the counter change together.
func (uc *LedgerUsecase) ToggleSupport(ctx context.Context, actor domain.Actor, complaintID int64) (domain.SupportResult, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.ToggleSupport")
	defer span.End()

	if err := uc.gate.Authorize(actor, policy.ActionSupportToggle, nil, nil); err != nil {
		return domain.SupportResult{}, err
	}

	var result domain.SupportResult
	err := uc.tx.Transaction(ctx, func(ctx context.Context) error {
		if _, err := uc.complaints.GetForUpdate(ctx, complaintID); err != nil {
			return err
		}

		exists, err := uc.supports.Exists(ctx, complaintID, actor.ID)
		if err != nil {
			return err
		}

		delta := 1
		result.Action = domain.SupportAdded
		if exists {
			delta = -1
			result.Action = domain.SupportRemoved
			err = uc.supports.Delete(ctx, complaintID, actor.ID)
		} else {
			err = uc.supports.Create(ctx, complaintID, actor.ID)
		}
		if err != nil {
			return err
		}

		result.SupportCount, err = uc.complaints.AdjustSupportCount(ctx, complaintID, delta)
		return err
	})
	if err != nil {
		span.RecordError(err)
		return domain.SupportResult{}, err
	}

	uc.effects.Publish(ctx, domain.Event{
		Type:         domain.EventSupportChanged,
		ComplaintID:  complaintID,
		SupportCount: &result.SupportCount,
	})
	return result, nil
}

// AddRating appends a rating. Ratings are never deduplicated.
func (uc *LedgerUsecase) AddRating(ctx context.Context, actor domain.Actor, complaintID int64, score int, comment *string) (domain.Rating, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.AddRating")
	defer span.End()

	if err := uc.gate.Authorize(actor, policy.ActionRatingAdd, nil, nil); err != nil {
		return domain.Rating{}, err
	}
	if score < domain.MinRating || score > domain.MaxRating {
		return domain.Rating{}, domain.Validationf("puan %d ile %d arasında olmalıdır", domain.MinRating, domain.MaxRating)
	}

	if _, err := uc.complaints.Get(ctx, complaintID); err != nil {
		return domain.Rating{}, err
	}

	var text *string
	if comment != nil {
		if v := strings.TrimSpace(*comment); v != "" {
			text = &v
		}
	}

	rating, err := uc.ratings.Create(ctx, domain.Rating{
		ComplaintID: complaintID,
		UserID:      actor.ID,
		Rating:      score,
		Comment:     text,
		CreatedAt:   uc.now(),
	})
	if err != nil {
		span.RecordError(err)
		return domain.Rating{}, err
	}

	uc.effects.Publish(ctx, domain.Event{
		Type:        domain.EventRatingAdded,
		ComplaintID: complaintID,
	})
	return rating, nil
}

func (uc *LedgerUsecase) ListSupports(ctx context.Context, actor domain.Actor, complaintID int64) ([]domain.Support, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.ListSupports")
	defer span.End()

	if err := uc.gate.Authorize(actor, policy.ActionSupportList, nil, nil); err != nil {
		return nil, err
	}
	if _, err := uc.complaints.Get(ctx, complaintID); err != nil {
		return nil, err
	}
	return uc.supports.List(ctx, complaintID)
}

func (uc *LedgerUsecase) ListRatings(ctx context.Context, complaintID int64) ([]domain.Rating, error) {
	ctx, span := tracer.Start(ctx, "Ledger.Usecase.ListRatings")
	defer span.End()

	if _, err := uc.complaints.Get(ctx, complaintID); err != nil {
		return nil, err
	}
	return uc.ratings.List(ctx, complaintID)
}

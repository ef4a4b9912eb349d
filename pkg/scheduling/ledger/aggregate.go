package ledger

import (
	"context"
	"math"

	"rent360-scheduling-be/internal/entity"
	"rent360-scheduling-be/internal/repository/unitofwork"

	"github.com/google/uuid"
)

// Aggregates are derived from a full scan of an agreement's instances.
type Aggregates struct {
	Total         int
	Completed     int
	Cancelled     int
	Missed        int
	Rated         int
	AverageRating *float64
	Open          *entity.ServiceInstance
}

// OpenCount is the number of scheduled or in-progress instances seen.
func (a Aggregates) OpenCount() int {
	return a.Total - a.Completed - a.Cancelled - a.Missed
}

func (l *Ledger) Aggregate(ctx context.Context, uow unitofwork.UnitOfWork, agreementID uuid.UUID) (Aggregates, error) {
	var agg Aggregates
	ratingSum := 0

	for inst, err := range l.ListByAgreement(ctx, uow, agreementID) {
		if err != nil {
			return Aggregates{}, err
		}
		agg.Total++
		switch inst.Status {
		case entity.InstanceStatusCompleted:
			agg.Completed++
			if inst.Rating != nil {
				agg.Rated++
				ratingSum += *inst.Rating
			}
		case entity.InstanceStatusCancelled:
			agg.Cancelled++
		case entity.InstanceStatusMissed:
			agg.Missed++
		default:
			if agg.Open == nil {
				agg.Open = inst
			}
		}
	}

	if agg.Rated > 0 {
		avg := math.Round(float64(ratingSum)/float64(agg.Rated)*100) / 100
		agg.AverageRating = &avg
	}
	return agg, nil
}

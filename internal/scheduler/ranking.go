package scheduler

import (
	"context"
	"fmt"
	"math"
	"sort"

	"meetsync/internal/models"
	"meetsync/internal/store"
)

// RankSlots aggregates responses per slot and orders the slots by
// available count, then maybe count, both descending. Slots are expected
// in proposal order, which is kept for remaining ties.
func RankSlots(slots []*models.TimeSlot, responses []models.ResponseRecord) []models.SlotSummary {
	index := make(map[string]int, len(slots))
	summaries := make([]models.SlotSummary, len(slots))
	for i, slot := range slots {
		index[slot.ID] = i
		summaries[i] = models.SlotSummary{
			TimeSlotID: slot.ID,
			StartTime:  slot.StartTime,
			EndTime:    slot.EndTime,
			Details:    []models.AvailabilityDetail{},
		}
	}

	for _, r := range responses {
		i, ok := index[r.TimeSlotID]
		if !ok {
			continue
		}
		sum := &summaries[i]
		switch r.Status {
		case models.ResponseAvailable:
			sum.AvailableCount++
		case models.ResponseMaybe:
			sum.MaybeCount++
		case models.ResponseUnavailable:
			sum.UnavailableCount++
		default:
			continue
		}
		sum.TotalResponses++
		sum.Details = append(sum.Details, models.AvailabilityDetail{UserID: r.UserID, UserName: r.UserName, Status: r.Status})
	}

	for i := range summaries {
		sum := &summaries[i]
		if sum.TotalResponses > 0 {
			score := (float64(sum.AvailableCount) + 0.5*float64(sum.MaybeCount)) / float64(sum.TotalResponses)
			sum.AvailabilityScore = round2(score)
		}
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		a, b := summaries[i], summaries[j]
		if a.AvailableCount != b.AvailableCount {
			return a.AvailableCount > b.AvailableCount
		}
		return a.MaybeCount > b.MaybeCount
	})
	return summaries
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// FindOptimalTimeSlots ranks the event's slots by aggregate availability.
func (s *Service) FindOptimalTimeSlots(ctx context.Context, eventID string) ([]models.SlotSummary, error) {
	var ranked []models.SlotSummary
	err := s.store.RunAtomic(ctx, func(tx store.Store) error {
		if _, err := tx.GetEvent(ctx, eventID); err != nil {
			return fmt.Errorf("event %s: %w", eventID, err)
		}
		slots, err := tx.ListTimeSlots(ctx, eventID)
		if err != nil {
			return err
		}
		responses, err := tx.ListResponses(ctx, eventID)
		if err != nil {
			return err
		}
		ranked = RankSlots(slots, responses)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ranked, nil
}

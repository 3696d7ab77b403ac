// Package stats derives read-only summaries from engine state.
package stats

import (
	"context"
	"fmt"
	"math"

	"meetsync/internal/models"
	"meetsync/internal/store"
)

// Ranker orders an event's slots by availability.
type Ranker interface {
	FindOptimalTimeSlots(ctx context.Context, eventID string) ([]models.SlotSummary, error)
}

// EventStatistics summarizes participation in one event.
type EventStatistics struct {
	TotalParticipants     int                 `json:"total_participants"`
	RespondedParticipants int                 `json:"responded_participants"`
	ResponseRate          float64             `json:"response_rate"`
	TimeSlotsCount        int                 `json:"time_slots_count"`
	MostPopularSlot       *models.SlotSummary `json:"most_popular_slot,omitempty"`
}

type Reporter struct {
	store  store.Store
	ranker Ranker
}

func NewReporter(st store.Store, ranker Ranker) *Reporter {
	return &Reporter{store: st, ranker: ranker}
}

// GetEventStatistics reports response rate and the best-ranked slot.
func (r *Reporter) GetEventStatistics(ctx context.Context, eventID string) (*EventStatistics, error) {
	if _, err := r.store.GetEvent(ctx, eventID); err != nil {
		return nil, fmt.Errorf("event %s: %w", eventID, err)
	}

	participants, err := r.store.ListParticipants(ctx, eventID)
	if err != nil {
		return nil, err
	}
	ranked, err := r.ranker.FindOptimalTimeSlots(ctx, eventID)
	if err != nil {
		return nil, err
	}

	out := &EventStatistics{
		TotalParticipants: len(participants),
		TimeSlotsCount:    len(ranked),
	}
	for _, p := range participants {
		if p.Status == models.ParticipantStatusResponded {
			out.RespondedParticipants++
		}
	}
	if out.TotalParticipants > 0 {
		rate := float64(out.RespondedParticipants) / float64(out.TotalParticipants)
		out.ResponseRate = math.Round(rate*100) / 100
	}
	if len(ranked) > 0 {
		best := ranked[0]
		out.MostPopularSlot = &best
	}
	return out, nil
}

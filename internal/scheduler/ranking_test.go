package scheduler

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsync/internal/models"
)

func slots(ids ...string) []*models.TimeSlot {
	base := time.Date(2025, 9, 1, 9, 0, 0, 0, time.UTC)
	out := make([]*models.TimeSlot, len(ids))
	for i, id := range ids {
		start := base.Add(time.Duration(i) * time.Hour)
		out[i] = &models.TimeSlot{ID: id, StartTime: start, EndTime: start.Add(time.Hour), Position: i}
	}
	return out
}

func votes(slotID string, available, maybe, unavailable int) []models.ResponseRecord {
	var out []models.ResponseRecord
	add := func(n int, status models.ResponseStatus) {
		for i := 0; i < n; i++ {
			user := fmt.Sprintf("%s-%s-%d", slotID, status, i)
			out = append(out, models.ResponseRecord{TimeSlotID: slotID, UserID: user, UserName: user, Status: status})
		}
	}
	add(available, models.ResponseAvailable)
	add(maybe, models.ResponseMaybe)
	add(unavailable, models.ResponseUnavailable)
	return out
}

func ids(summaries []models.SlotSummary) []string {
	out := make([]string, len(summaries))
	for i, s := range summaries {
		out[i] = s.TimeSlotID
	}
	return out
}

func TestRankSlots_Ordering(t *testing.T) {
	var responses []models.ResponseRecord
	responses = append(responses, votes("A", 3, 1, 0)...)
	responses = append(responses, votes("B", 3, 2, 0)...)
	responses = append(responses, votes("C", 1, 0, 0)...)

	ranked := RankSlots(slots("A", "B", "C"), responses)
	assert.Equal(t, []string{"B", "A", "C"}, ids(ranked))
}

func TestRankSlots_TiesKeepProposalOrder(t *testing.T) {
	var responses []models.ResponseRecord
	responses = append(responses, votes("A", 1, 1, 3)...)
	responses = append(responses, votes("B", 1, 1, 0)...)

	ranked := RankSlots(slots("A", "B", "Z"), responses)
	assert.Equal(t, []string{"A", "B", "Z"}, ids(ranked))
}

func TestRankSlots_Scores(t *testing.T) {
	var responses []models.ResponseRecord
	responses = append(responses, votes("A", 1, 1, 1)...)
	responses = append(responses, votes("B", 0, 1, 0)...)

	ranked := RankSlots(slots("A", "B", "C"), responses)
	require.Len(t, ranked, 3)

	byID := map[string]models.SlotSummary{}
	for _, s := range ranked {
		byID[s.TimeSlotID] = s
		assert.Equal(t, s.TotalResponses, s.AvailableCount+s.MaybeCount+s.UnavailableCount)
	}
	assert.Equal(t, 0.5, byID["A"].AvailabilityScore)
	assert.Equal(t, 0.5, byID["B"].AvailabilityScore)
	assert.Equal(t, 0.0, byID["C"].AvailabilityScore)
	assert.Equal(t, 3, byID["A"].TotalResponses)
	assert.Len(t, byID["A"].Details, 3)
	assert.NotNil(t, byID["C"].Details)

	assert.Equal(t, "C", ranked[2].TimeSlotID, "unanswered slots sort after slots with availability")
}

func TestRankSlots_RoundsToTwoDecimals(t *testing.T) {
	ranked := RankSlots(slots("A"), votes("A", 1, 0, 2))
	assert.Equal(t, 0.33, ranked[0].AvailabilityScore)
}

func TestRankSlots_IgnoresForeignResponses(t *testing.T) {
	ranked := RankSlots(slots("A"), votes("elsewhere", 2, 0, 0))
	require.Len(t, ranked, 1)
	assert.Zero(t, ranked[0].TotalResponses)
}

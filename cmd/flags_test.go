package main

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"meetsync/internal/models"
)

func TestParseSlot(t *testing.T) {
	slot, err := parseSlot("2026-03-02T10:00:00+01:00/2026-03-02T11:00:00+01:00")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC), slot.Start)
	assert.Equal(t, time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC), slot.End)
	assert.Equal(t, time.UTC, slot.Start.Location())
}

func TestParseSlot_Invalid(t *testing.T) {
	for _, raw := range []string{
		"",
		"2026-03-02T10:00:00Z",
		"2026-03-02T10:00:00Z/tomorrow",
		"monday/2026-03-02T10:00:00Z",
	} {
		_, err := parseSlot(raw)
		assert.ErrorIs(t, err, models.ErrValidation, raw)
	}
}

func TestParseResponse(t *testing.T) {
	r, err := parseResponse(" slot-1 = Maybe ")
	require.NoError(t, err)
	assert.Equal(t, "slot-1", r.TimeSlotID)
	assert.Equal(t, models.ResponseMaybe, r.Status)

	_, err = parseResponse("available")
	assert.ErrorIs(t, err, models.ErrValidation)

	_, err = parseResponse("=available")
	assert.ErrorIs(t, err, models.ErrValidation)
}

func TestErrorKind(t *testing.T) {
	assert.Equal(t, "not_found", errorKind(fmt.Errorf("get event: %w", models.ErrNotFound)))
	assert.Equal(t, "invalid_state", errorKind(fmt.Errorf("%w: event already confirmed", models.ErrInvalidState)))
	assert.Equal(t, "internal", errorKind(errors.New("disk full")))
}

package main

import (
	"fmt"
	"strings"
	"time"

	"meetsync/internal/models"
	"meetsync/internal/scheduler"
)

// parseSlot reads "<start>/<end>" with both ends in RFC 3339.
func parseSlot(raw string) (scheduler.SlotInput, error) {
	startRaw, endRaw, ok := strings.Cut(raw, "/")
	if !ok {
		return scheduler.SlotInput{}, fmt.Errorf("%w: slot %q must look like <start>/<end>", models.ErrValidation, raw)
	}
	start, err := parseTime(startRaw)
	if err != nil {
		return scheduler.SlotInput{}, err
	}
	end, err := parseTime(endRaw)
	if err != nil {
		return scheduler.SlotInput{}, err
	}
	return scheduler.SlotInput{Start: start, End: end}, nil
}

func parseTime(raw string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q is not an RFC 3339 time", models.ErrValidation, raw)
	}
	return t.UTC(), nil
}

// parseResponse reads "<slot-id>=<available|maybe|unavailable>".
func parseResponse(raw string) (scheduler.ResponseInput, error) {
	slotID, status, ok := strings.Cut(raw, "=")
	slotID = strings.TrimSpace(slotID)
	if !ok || slotID == "" {
		return scheduler.ResponseInput{}, fmt.Errorf("%w: response %q must look like <slot-id>=<status>", models.ErrValidation, raw)
	}
	return scheduler.ResponseInput{
		TimeSlotID: slotID,
		Status:     models.ResponseStatus(strings.ToLower(strings.TrimSpace(status))),
	}, nil
}

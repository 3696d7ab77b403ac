package models

import "time"

// ResponseStatus is a participant's stance on one time slot.
type ResponseStatus string

const (
	ResponseAvailable   ResponseStatus = "available"
	ResponseMaybe       ResponseStatus = "maybe"
	ResponseUnavailable ResponseStatus = "unavailable"
)

// Valid reports whether s is one of the known stances.
func (s ResponseStatus) Valid() bool {
	switch s {
	case ResponseAvailable, ResponseMaybe, ResponseUnavailable:
		return true
	}
	return false
}

// TimeSlot is a candidate interval [StartTime, EndTime) for an Event.
// Position keeps the order in which the organizer proposed the slots.
type TimeSlot struct {
	ID        string    `json:"id" gorm:"primaryKey"`
	EventID   string    `json:"event_id" gorm:"index;not null"`
	StartTime time.Time `json:"start_time" gorm:"not null"`
	EndTime   time.Time `json:"end_time" gorm:"not null"`
	Position  int       `json:"position"`
	CreatedBy string    `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
}

func (TimeSlot) TableName() string { return "time_slots" }

// AvailabilityResponse is one user's stance on one TimeSlot.
type AvailabilityResponse struct {
	ID         string         `json:"id" gorm:"primaryKey"`
	TimeSlotID string         `json:"time_slot_id" gorm:"uniqueIndex:idx_response_slot_user;not null"`
	UserID     string         `json:"user_id" gorm:"uniqueIndex:idx_response_slot_user;not null"`
	Status     ResponseStatus `json:"status" gorm:"type:text;not null"`
	CreatedAt  time.Time      `json:"created_at"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func (AvailabilityResponse) TableName() string { return "availability_responses" }

// ResponseRecord is a response joined with the responder's name.
type ResponseRecord struct {
	TimeSlotID string         `json:"time_slot_id"`
	UserID     string         `json:"user_id"`
	UserName   string         `json:"user_name"`
	Status     ResponseStatus `json:"status"`
}

// SlotResponse is a single user's response attached to a SlotView.
type SlotResponse struct {
	UserID string         `json:"user_id"`
	Status ResponseStatus `json:"status"`
}

// SlotView is a TimeSlot decorated with every response it received.
type SlotView struct {
	TimeSlot
	Responses []SlotResponse `json:"responses"`
}

// AvailabilityDetail names who answered what for a ranked slot.
type AvailabilityDetail struct {
	UserID   string         `json:"user_id"`
	UserName string         `json:"user_name"`
	Status   ResponseStatus `json:"status"`
}

// SlotSummary is the aggregate availability of one slot.
type SlotSummary struct {
	TimeSlotID        string               `json:"time_slot_id"`
	StartTime         time.Time            `json:"start_time"`
	EndTime           time.Time            `json:"end_time"`
	AvailabilityScore float64              `json:"availability_score"`
	AvailableCount    int                  `json:"available_count"`
	MaybeCount        int                  `json:"maybe_count"`
	UnavailableCount  int                  `json:"unavailable_count"`
	TotalResponses    int                  `json:"total_responses"`
	Details           []AvailabilityDetail `json:"availability_details"`
}

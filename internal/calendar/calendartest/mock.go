// Package calendartest provides a testify mock of calendar.Gateway.
package calendartest

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"meetsync/internal/calendar"
	"meetsync/internal/models"
)

type MockGateway struct{ mock.Mock }

func (m *MockGateway) ListBusyIntervals(ctx context.Context, user *models.User, start, end time.Time) ([]calendar.BusyInterval, error) {
	args := m.Called(ctx, user, start, end)
	intervals, _ := args.Get(0).([]calendar.BusyInterval)
	return intervals, args.Error(1)
}

func (m *MockGateway) CreateExternalEvent(ctx context.Context, user *models.User, req calendar.EventRequest) (*calendar.CreatedEvent, error) {
	args := m.Called(ctx, user, req)
	created, _ := args.Get(0).(*calendar.CreatedEvent)
	return created, args.Error(1)
}

var _ calendar.Gateway = (*MockGateway)(nil)

package calendar

import (
	"context"
	"fmt"
	"sync"
	"time"

	"meetsync/internal/models"
)

// Router dispatches each call to the gateway registered for the provider
// named in the user's calendar reference.
type Router struct {
	mu       sync.RWMutex
	gateways map[string]Gateway
}

func NewRouter() *Router {
	return &Router{gateways: make(map[string]Gateway)}
}

// Register binds provider (e.g. "google", "icloud") to gw.
func (r *Router) Register(provider string, gw Gateway) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[provider] = gw
}

// Providers returns the number of registered providers.
func (r *Router) Providers() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gateways)
}

func (r *Router) route(user *models.User) (Gateway, error) {
	if !user.HasCalendar() {
		return nil, ErrNoCredential
	}
	provider, _, err := ParseRef(user.CalendarRef)
	if err != nil {
		return nil, err
	}

	r.mu.RLock()
	gw, ok := r.gateways[provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: provider %q is not configured", ErrNoCredential, provider)
	}
	return gw, nil
}

func (r *Router) ListBusyIntervals(ctx context.Context, user *models.User, start, end time.Time) ([]BusyInterval, error) {
	gw, err := r.route(user)
	if err != nil {
		return nil, err
	}
	return gw.ListBusyIntervals(ctx, user, start, end)
}

func (r *Router) CreateExternalEvent(ctx context.Context, user *models.User, req EventRequest) (*CreatedEvent, error) {
	gw, err := r.route(user)
	if err != nil {
		return nil, err
	}
	return gw.CreateExternalEvent(ctx, user, req)
}

var _ Gateway = (*Router)(nil)

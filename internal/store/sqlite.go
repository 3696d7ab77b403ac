package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"meetsync/internal/logutil"
	"meetsync/internal/models"
)

// ErrAlreadyExists is returned when a unique key is already taken.
var ErrAlreadyExists = errors.New("already exists")

// SQLite implements Store on a SQLite file through GORM.
type SQLite struct {
	db     *gorm.DB
	logger *slog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and migrates
// the schema. Transactions take the write lock up front so that concurrent
// status checks and writes serialize.
func OpenSQLite(ctx context.Context, path string, logger *slog.Logger) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("database path is required")
	}
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	dsn := fmt.Sprintf("file:%s?_busy_timeout=5000&_txlock=immediate&_foreign_keys=on", path)
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		NowFunc:        func() time.Time { return time.Now().UTC() },
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.WithContext(ctx).AutoMigrate(
		&models.User{},
		&models.Event{},
		&models.EventParticipant{},
		&models.TimeSlot{},
		&models.AvailabilityResponse{},
		&models.ConfirmedEvent{},
	); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger = logutil.NoopIfNil(logger)
	logger.Debug("Database ready.", "path", path)
	return &SQLite{db: db, logger: logger}, nil
}

// Close closes the underlying connection pool.
func (s *SQLite) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *SQLite) RunAtomic(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&SQLite{db: tx, logger: s.logger})
	})
}

func assignID(id *string) {
	if *id == "" {
		*id = uuid.NewString()
	}
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return models.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", ErrAlreadyExists, err)
	default:
		return err
	}
}

// Users

func (s *SQLite) CreateUser(ctx context.Context, user *models.User) error {
	assignID(&user.ID)
	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user: %w", translate(err))
	}
	return nil
}

func (s *SQLite) UpdateUser(ctx context.Context, user *models.User) error {
	if err := s.db.WithContext(ctx).Save(user).Error; err != nil {
		return fmt.Errorf("update user: %w", translate(err))
	}
	return nil
}

func (s *SQLite) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *SQLite) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "email = ?", email).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *SQLite) GetUserByIdentityKey(ctx context.Context, key string) (*models.User, error) {
	var user models.User
	if err := s.db.WithContext(ctx).First(&user, "identity_key = ?", key).Error; err != nil {
		return nil, translate(err)
	}
	return &user, nil
}

func (s *SQLite) GetUsers(ctx context.Context, ids []string) ([]*models.User, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var users []*models.User
	if err := s.db.WithContext(ctx).Where("id IN ?", ids).Find(&users).Error; err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	return users, nil
}

// Events

func (s *SQLite) CreateEvent(ctx context.Context, event *models.Event) error {
	assignID(&event.ID)
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("create event: %w", translate(err))
	}
	return nil
}

func (s *SQLite) GetEvent(ctx context.Context, id string) (*models.Event, error) {
	var event models.Event
	if err := s.db.WithContext(ctx).First(&event, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &event, nil
}

func (s *SQLite) ListEventsForUser(ctx context.Context, userID string, filter EventFilter) ([]*models.EventSummary, error) {
	q := s.db.WithContext(ctx).
		Table("events AS e").
		Select("DISTINCT e.*, u.name AS creator_name").
		Joins("LEFT JOIN users u ON u.id = e.created_by").
		Joins("LEFT JOIN event_participants ep ON ep.event_id = e.id").
		Where("(e.created_by = ? OR ep.user_id = ?)", userID, userID)

	if filter.Status != "" {
		q = q.Where("e.status = ?", filter.Status)
	}
	q = q.Order("e.created_at DESC")
	if filter.Limit > 0 {
		q = q.Limit(filter.Limit)
		if filter.Offset > 0 {
			q = q.Offset(filter.Offset)
		}
	}

	var events []*models.EventSummary
	if err := q.Scan(&events).Error; err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return events, nil
}

func (s *SQLite) TransitionEventStatus(ctx context.Context, id string, to models.EventStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.Event{}).
		Where("id = ? AND status IN ?", id, models.EventSourcesFor(to)).
		Updates(map[string]any{"status": to, "updated_at": time.Now().UTC()})
	if res.Error != nil {
		return false, fmt.Errorf("update event status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Participants

func (s *SQLite) AddParticipant(ctx context.Context, p *models.EventParticipant) error {
	assignID(&p.ID)
	if err := s.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("add participant: %w", translate(err))
	}
	return nil
}

func (s *SQLite) GetParticipant(ctx context.Context, eventID, userID string) (*models.EventParticipant, error) {
	var p models.EventParticipant
	if err := s.db.WithContext(ctx).First(&p, "event_id = ? AND user_id = ?", eventID, userID).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (s *SQLite) ListParticipants(ctx context.Context, eventID string) ([]models.ParticipantView, error) {
	var out []models.ParticipantView
	err := s.db.WithContext(ctx).
		Table("event_participants AS ep").
		Select("u.id AS user_id, u.email, u.name, ep.status").
		Joins("JOIN users u ON u.id = ep.user_id").
		Where("ep.event_id = ?", eventID).
		Order("ep.rowid").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list participants: %w", err)
	}
	return out, nil
}

func (s *SQLite) TransitionParticipantStatus(ctx context.Context, eventID, userID string, to models.ParticipantStatus) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&models.EventParticipant{}).
		Where("event_id = ? AND user_id = ? AND status IN ?", eventID, userID, models.ParticipantSourcesFor(to)).
		Update("status", to)
	if res.Error != nil {
		return false, fmt.Errorf("update participant status: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

// Time slots

func (s *SQLite) CreateTimeSlots(ctx context.Context, slots []*models.TimeSlot) error {
	if len(slots) == 0 {
		return nil
	}
	for _, slot := range slots {
		assignID(&slot.ID)
	}
	if err := s.db.WithContext(ctx).Create(&slots).Error; err != nil {
		return fmt.Errorf("create time slots: %w", translate(err))
	}
	return nil
}

func (s *SQLite) GetTimeSlot(ctx context.Context, id string) (*models.TimeSlot, error) {
	var slot models.TimeSlot
	if err := s.db.WithContext(ctx).First(&slot, "id = ?", id).Error; err != nil {
		return nil, translate(err)
	}
	return &slot, nil
}

func (s *SQLite) ListTimeSlots(ctx context.Context, eventID string) ([]*models.TimeSlot, error) {
	var slots []*models.TimeSlot
	if err := s.db.WithContext(ctx).Where("event_id = ?", eventID).Order("position ASC").Find(&slots).Error; err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// Responses

func (s *SQLite) ReplaceResponses(ctx context.Context, eventID, userID string, responses []*models.AvailabilityResponse) error {
	return s.RunAtomic(ctx, func(tx Store) error {
		db := tx.(*SQLite).db
		eventSlots := db.Model(&models.TimeSlot{}).Select("id").Where("event_id = ?", eventID)
		if err := db.Where("user_id = ? AND time_slot_id IN (?)", userID, eventSlots).
			Delete(&models.AvailabilityResponse{}).Error; err != nil {
			return fmt.Errorf("clear responses: %w", err)
		}
		if len(responses) == 0 {
			return nil
		}
		for _, r := range responses {
			assignID(&r.ID)
		}
		if err := db.Create(&responses).Error; err != nil {
			return fmt.Errorf("insert responses: %w", translate(err))
		}
		return nil
	})
}

func (s *SQLite) ListResponses(ctx context.Context, eventID string) ([]models.ResponseRecord, error) {
	var out []models.ResponseRecord
	err := s.db.WithContext(ctx).
		Table("availability_responses AS ar").
		Select("ar.time_slot_id, ar.user_id, u.name AS user_name, ar.status").
		Joins("JOIN time_slots ts ON ts.id = ar.time_slot_id").
		Joins("JOIN users u ON u.id = ar.user_id").
		Where("ts.event_id = ?", eventID).
		Order("ts.position ASC, ar.rowid ASC").
		Scan(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list responses: %w", err)
	}
	return out, nil
}

// Confirmations

func (s *SQLite) CreateConfirmedEvent(ctx context.Context, c *models.ConfirmedEvent) error {
	assignID(&c.ID)
	if err := s.db.WithContext(ctx).Create(c).Error; err != nil {
		return fmt.Errorf("create confirmed event: %w", translate(err))
	}
	return nil
}

func (s *SQLite) GetConfirmedEvent(ctx context.Context, eventID string) (*models.ConfirmedEvent, error) {
	var c models.ConfirmedEvent
	if err := s.db.WithContext(ctx).First(&c, "event_id = ?", eventID).Error; err != nil {
		return nil, translate(err)
	}
	return &c, nil
}

func (s *SQLite) RecordExternalEvent(ctx context.Context, eventID, externalID, calendarID, url string) error {
	res := s.db.WithContext(ctx).
		Model(&models.ConfirmedEvent{}).
		Where("event_id = ?", eventID).
		Updates(map[string]any{
			"external_event_id": externalID,
			"calendar_id":       calendarID,
			"external_url":      url,
			"updated_at":        time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("record external event: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return models.ErrNotFound
	}
	return nil
}

func (s *SQLite) ListPendingSync(ctx context.Context) ([]*models.ConfirmedEvent, error) {
	var out []*models.ConfirmedEvent
	err := s.db.WithContext(ctx).
		Where("sync_requested = ? AND external_event_id = ?", true, "").
		Order("created_at ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("list pending sync: %w", err)
	}
	return out, nil
}

// Compile-time interface check
var _ Store = (*SQLite)(nil)

package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"laundry-reservation-backend/internal/model"
)

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB

	mu           sync.RWMutex
	machineHooks []MachineUpdateFunc
	intentHooks  []IntentCreateFunc
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

// OnMachineUpdate registers fn to run after every committed machine update.
func (s *gormStore) OnMachineUpdate(fn MachineUpdateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.machineHooks = append(s.machineHooks, fn)
}

// OnIntentCreate registers fn to run after every committed intent creation.
func (s *gormStore) OnIntentCreate(fn IntentCreateFunc) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.intentHooks = append(s.intentHooks, fn)
}

func byPath(tx *gorm.DB, p model.MachinePath) *gorm.DB {
	return tx.Where("country = ? AND city = ? AND university = ? AND dorm = ? AND machine_id = ?",
		p.Country, p.City, p.University, p.Dorm, p.MachineID)
}

func notFound(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrNotFound
	}
	return err
}

// GetMachine loads a machine by its document path.
func (s *gormStore) GetMachine(ctx context.Context, path model.MachinePath) (model.Machine, error) {
	var m model.Machine
	if err := byPath(s.db.WithContext(ctx), path).First(&m).Error; err != nil {
		return model.Machine{}, fmt.Errorf("failed to get machine %s: %w", path, notFound(err))
	}
	return m, nil
}

// SaveMachine creates the machine if it does not exist, or replaces every
// field of the existing document. Only replacements fire update callbacks.
func (s *gormStore) SaveMachine(ctx context.Context, m model.Machine) (model.Machine, error) {
	if m.Status == "" {
		m.Status = model.StatusFree
	}
	if m.LastUpdated.IsZero() {
		m.LastUpdated = time.Now().UTC()
	}

	var before model.Machine
	existed := false
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := byPath(tx, m.Path()).First(&before).Error
		switch {
		case errors.Is(err, gorm.ErrRecordNotFound):
			if err := tx.Create(&m).Error; err != nil {
				return fmt.Errorf("failed to create machine %s: %w", m.Path(), err)
			}
			return nil
		case err != nil:
			return fmt.Errorf("failed to read machine %s: %w", m.Path(), err)
		}
		existed = true
		if err := tx.Save(&m).Error; err != nil {
			return fmt.Errorf("failed to update machine %s: %w", m.Path(), err)
		}
		return nil
	})
	if err != nil {
		return model.Machine{}, err
	}

	if existed {
		if err := s.fireMachineUpdate(ctx, before, m); err != nil {
			return m, err
		}
	}
	return m, nil
}

// ReleaseMachine forces the machine to free and clears its holder fields.
// It writes even if the machine is already free.
func (s *gormStore) ReleaseMachine(ctx context.Context, path model.MachinePath, now time.Time) (model.Machine, error) {
	var before, after model.Machine
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := byPath(tx, path).First(&before).Error; err != nil {
			return fmt.Errorf("failed to read machine %s: %w", path, notFound(err))
		}
		after = before
		after.Release(now)
		if err := tx.Save(&after).Error; err != nil {
			return fmt.Errorf("failed to release machine %s: %w", path, err)
		}
		return nil
	})
	if err != nil {
		return model.Machine{}, err
	}

	if err := s.fireMachineUpdate(ctx, before, after); err != nil {
		return after, err
	}
	return after, nil
}

// CreateIntent appends an intent to the ledger.
func (s *gormStore) CreateIntent(ctx context.Context, intent *model.NotificationIntent) error {
	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	intent.Status = model.IntentPending

	if err := s.db.WithContext(ctx).Create(intent).Error; err != nil {
		return fmt.Errorf("failed to create %s intent for machine %s: %w", intent.Kind, intent.MachinePath(), err)
	}

	s.mu.RLock()
	hooks := append([]IntentCreateFunc(nil), s.intentHooks...)
	s.mu.RUnlock()

	var errs []error
	for _, fn := range hooks {
		if err := fn(ctx, *intent); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: intent %s: %w", ErrCallback, intent.ID, errors.Join(errs...))
	}
	return nil
}

// GetIntent loads an intent by ID.
func (s *gormStore) GetIntent(ctx context.Context, id string) (model.NotificationIntent, error) {
	var intent model.NotificationIntent
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&intent).Error; err != nil {
		return model.NotificationIntent{}, fmt.Errorf("failed to get intent %s: %w", id, notFound(err))
	}
	return intent, nil
}

// DeleteIntent removes an intent. Deleting an absent intent returns ErrNotFound.
func (s *gormStore) DeleteIntent(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&model.NotificationIntent{})
	if res.Error != nil {
		return fmt.Errorf("failed to delete intent %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("failed to delete intent %s: %w", id, ErrNotFound)
	}
	return nil
}

// PendingIntents lists every intent still owed, earliest first.
func (s *gormStore) PendingIntents(ctx context.Context) ([]model.NotificationIntent, error) {
	var intents []model.NotificationIntent
	if err := s.db.WithContext(ctx).
		Where("status = ?", model.IntentPending).
		Order("fire_at").
		Find(&intents).Error; err != nil {
		return nil, fmt.Errorf("failed to list pending intents: %w", err)
	}
	return intents, nil
}

// UserSubscriptions returns every push device registered by userID.
func (s *gormStore) UserSubscriptions(ctx context.Context, userID string) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to fetch subscriptions for user %s: %w", userID, err)
	}
	return subs, nil
}

// PutSubscription creates or replaces a subscription keyed by endpoint.
func (s *gormStore) PutSubscription(ctx context.Context, sub *model.PushSubscription) error {
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	return s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"user_id", "p256dh", "auth"}),
	}).Create(sub).Error
}

// DeleteSubscription removes a subscription by endpoint.
func (s *gormStore) DeleteSubscription(ctx context.Context, endpoint string) error {
	return s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error
}

func (s *gormStore) fireMachineUpdate(ctx context.Context, before, after model.Machine) error {
	s.mu.RLock()
	hooks := append([]MachineUpdateFunc(nil), s.machineHooks...)
	s.mu.RUnlock()

	var errs []error
	for _, fn := range hooks {
		if err := fn(ctx, before, after); err != nil {
			log.Printf("Machine update callback failed for %s: %v", after.Path(), err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: machine %s: %w", ErrCallback, after.Path(), errors.Join(errs...))
	}
	return nil
}

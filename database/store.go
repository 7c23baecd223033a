package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"signal-relay/models"
)

// ErrNotFound is returned when an alert, link or pair does not exist.
var ErrNotFound = errors.New("record not found")

var byPairIndex = clause.OrderByColumn{Column: clause.Column{Name: "index"}}

// Store persists alerts, links and the pairs that join them.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the underlying handle for schema maintenance.
func (s *Store) DB() *gorm.DB {
	return s.db
}

// CreateAlert inserts a new alert in the wait state.
func (s *Store) CreateAlert(ctx context.Context, name string) (*models.Alert, error) {
	alert := newAlert(name)
	if err := s.db.WithContext(ctx).Create(&alert).Error; err != nil {
		return nil, fmt.Errorf("failed to create alert: %w", err)
	}
	return &alert, nil
}

// CreateLink inserts a standalone link. An empty name gets the default.
func (s *Store) CreateLink(ctx context.Context, name, linkBuy, linkSell string) (*models.Link, error) {
	if name == "" {
		name = models.DefaultLinkName
	}
	link := models.Link{
		Name:       name,
		LinkBuy:    linkBuy,
		LinkSell:   linkSell,
		LastUpdate: now(),
	}
	if err := s.db.WithContext(ctx).Create(&link).Error; err != nil {
		return nil, fmt.Errorf("failed to create link: %w", err)
	}
	return &link, nil
}

// CreatePair creates two alerts, one link named after them, and the pair row
// binding all three, in a single transaction.
func (s *Store) CreatePair(ctx context.Context, name1, name2, linkBuy, linkSell string) (*models.AlertPair, error) {
	var pair models.AlertPair
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		alert1 := newAlert(name1)
		if err := tx.Create(&alert1).Error; err != nil {
			return fmt.Errorf("create alert %q: %w", name1, err)
		}
		alert2 := newAlert(name2)
		if err := tx.Create(&alert2).Error; err != nil {
			return fmt.Errorf("create alert %q: %w", name2, err)
		}
		link := models.Link{
			Name:       fmt.Sprintf("%s + %s", name1, name2),
			LinkBuy:    linkBuy,
			LinkSell:   linkSell,
			LastUpdate: now(),
		}
		if err := tx.Create(&link).Error; err != nil {
			return fmt.Errorf("create link: %w", err)
		}

		pair = models.AlertPair{
			Alert1ID:   &alert1.ID,
			Alert2ID:   &alert2.ID,
			LinkID:     &link.ID,
			LastUpdate: now(),
		}
		if err := tx.Create(&pair).Error; err != nil {
			return fmt.Errorf("create pair: %w", err)
		}
		pair.Alert1, pair.Alert2, pair.Link = &alert1, &alert2, &link
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create alert pair: %w", err)
	}
	return &pair, nil
}

// GetPair loads a pair with both alerts and its link.
func (s *Store) GetPair(ctx context.Context, index uint) (*models.AlertPair, error) {
	var pair models.AlertPair
	err := s.withAssociations(ctx).First(&pair, index).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("alert pair %d: %w", index, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert pair %d: %w", index, err)
	}
	return &pair, nil
}

// FirstPair returns the lowest-index pair.
func (s *Store) FirstPair(ctx context.Context) (*models.AlertPair, error) {
	var pair models.AlertPair
	err := s.withAssociations(ctx).Order(byPairIndex).Take(&pair).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("no alert pairs: %w", ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get first alert pair: %w", err)
	}
	return &pair, nil
}

// ListPairs returns every pair joined with its alerts and link, by index.
func (s *Store) ListPairs(ctx context.Context) ([]models.AlertPair, error) {
	var pairs []models.AlertPair
	if err := s.withAssociations(ctx).Order(byPairIndex).Find(&pairs).Error; err != nil {
		return nil, fmt.Errorf("failed to query alert pairs: %w", err)
	}
	return pairs, nil
}

// ListPairRows returns the bare pair rows, by index.
func (s *Store) ListPairRows(ctx context.Context) ([]models.AlertPair, error) {
	var pairs []models.AlertPair
	if err := s.db.WithContext(ctx).Order(byPairIndex).Find(&pairs).Error; err != nil {
		return nil, fmt.Errorf("failed to query alert pairs: %w", err)
	}
	return pairs, nil
}

func (s *Store) ListAlerts(ctx context.Context) ([]models.Alert, error) {
	var alerts []models.Alert
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&alerts).Error; err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	return alerts, nil
}

func (s *Store) ListLinks(ctx context.Context) ([]models.Link, error) {
	var links []models.Link
	if err := s.db.WithContext(ctx).Order("id ASC").Find(&links).Error; err != nil {
		return nil, fmt.Errorf("failed to query links: %w", err)
	}
	return links, nil
}

// FindAlertByName returns the oldest alert with the given name.
func (s *Store) FindAlertByName(ctx context.Context, name string) (*models.Alert, error) {
	var alert models.Alert
	err := s.db.WithContext(ctx).Where("name = ?", name).Order("id ASC").Take(&alert).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("alert %q: %w", name, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get alert %q: %w", name, err)
	}
	return &alert, nil
}

// DeletePair removes only the pair row; its alerts and link are kept.
func (s *Store) DeletePair(ctx context.Context, index uint) error {
	// Indexes start at 1.
	if index == 0 {
		return fmt.Errorf("alert pair %d: %w", index, ErrNotFound)
	}
	res := s.db.WithContext(ctx).Delete(&models.AlertPair{}, index)
	if res.Error != nil {
		return fmt.Errorf("failed to delete alert pair %d: %w", index, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("alert pair %d: %w", index, ErrNotFound)
	}
	return nil
}

// DeleteAllPairs removes every pair row without resetting the index sequence.
func (s *Store) DeleteAllPairs(ctx context.Context) (int64, error) {
	res := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&models.AlertPair{})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to delete alert pairs: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// SetStateByName overwrites the state of every alert with the given name and
// returns the oldest of them. lastUpdate always moves forward.
func (s *Store) SetStateByName(ctx context.Context, name, state string) (*models.Alert, error) {
	var alerts []models.Alert
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("name = ?", name).Order("id ASC").Find(&alerts).Error; err != nil {
			return err
		}
		if len(alerts) == 0 {
			return fmt.Errorf("alert %q: %w", name, ErrNotFound)
		}

		var latest time.Time
		for _, a := range alerts {
			if a.LastUpdate.After(latest) {
				latest = a.LastUpdate
			}
		}
		ts := nextTimestamp(latest)

		err := tx.Model(&models.Alert{}).
			Where("name = ?", name).
			Updates(map[string]any{"state": state, "last_update": ts}).Error
		if err != nil {
			return err
		}
		alerts[0].State = state
		alerts[0].LastUpdate = ts
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update alert %q: %w", name, err)
	}
	return &alerts[0], nil
}

// SetState overwrites the state of one alert and refreshes lastUpdate.
func (s *Store) SetState(ctx context.Context, alert *models.Alert, state string) error {
	ts := nextTimestamp(alert.LastUpdate)
	res := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ?", alert.ID).
		Updates(map[string]any{"state": state, "last_update": ts})
	if res.Error != nil {
		return fmt.Errorf("failed to update alert %d: %w", alert.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("alert %d: %w", alert.ID, ErrNotFound)
	}
	alert.State = state
	alert.LastUpdate = ts
	return nil
}

// CompareAndSetState moves the alert to state only if its stored state still
// equals alert.State. It reports whether the row was changed.
func (s *Store) CompareAndSetState(ctx context.Context, alert *models.Alert, state string) (bool, error) {
	ts := nextTimestamp(alert.LastUpdate)
	res := s.db.WithContext(ctx).Model(&models.Alert{}).
		Where("id = ? AND state = ?", alert.ID, alert.State).
		Updates(map[string]any{"state": state, "last_update": ts})
	if res.Error != nil {
		return false, fmt.Errorf("failed to update alert %d: %w", alert.ID, res.Error)
	}
	if res.RowsAffected == 0 {
		return false, nil
	}
	alert.State = state
	alert.LastUpdate = ts
	return true, nil
}

// ResetPair puts both alerts of a pair back into the wait state.
func (s *Store) ResetPair(ctx context.Context, index uint) (*models.AlertPair, error) {
	pair, err := s.GetPair(ctx, index)
	if err != nil {
		return nil, err
	}
	for _, alert := range []*models.Alert{pair.Alert1, pair.Alert2} {
		if alert == nil {
			continue
		}
		if err := s.SetState(ctx, alert, models.StateWait); err != nil {
			return nil, err
		}
	}
	return pair, nil
}

// UpdatePairLink replaces the forwarding URLs of the link bound to a pair.
func (s *Store) UpdatePairLink(ctx context.Context, index uint, linkBuy, linkSell string) (*models.AlertPair, error) {
	pair, err := s.GetPair(ctx, index)
	if err != nil {
		return nil, err
	}
	if pair.Link == nil {
		return nil, fmt.Errorf("link of alert pair %d: %w", index, ErrNotFound)
	}

	ts := now()
	err = s.db.WithContext(ctx).Model(&models.Link{}).
		Where("id = ?", pair.Link.ID).
		Updates(map[string]any{"link_buy": linkBuy, "link_sell": linkSell, "last_update": ts}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to update link %d: %w", pair.Link.ID, err)
	}
	pair.Link.LinkBuy = linkBuy
	pair.Link.LinkSell = linkSell
	pair.Link.LastUpdate = ts
	return pair, nil
}

func (s *Store) withAssociations(ctx context.Context) *gorm.DB {
	return s.db.WithContext(ctx).Preload("Alert1").Preload("Alert2").Preload("Link")
}

func newAlert(name string) models.Alert {
	return models.Alert{Name: name, State: models.StateWait, LastUpdate: now()}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Microsecond)
}

// nextTimestamp returns the current time, or one microsecond past prev when
// the clock has not advanced beyond it. Postgres keeps microsecond precision.
func nextTimestamp(prev time.Time) time.Time {
	ts := now()
	if !ts.After(prev) {
		ts = prev.Add(time.Microsecond)
	}
	return ts
}

package storage

import (
	"database/sql"
	"encoding/json"
	"time"
)

// SubscriptionRecord mirrors a push-notification subscription registered
// with the query service, so it can be re-registered after a restart.
type SubscriptionRecord struct {
	ID            string
	DeviceID      string
	EndpointKind  string // "apns", "fcm"
	EndpointValue string
	Currencies    []string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// SaveSubscription saves or updates a subscription record.
func (s *Storage) SaveSubscription(sub *SubscriptionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	currenciesJSON, err := json.Marshal(sub.Currencies)
	if err != nil {
		return err
	}

	now := time.Now().Unix()
	query := `
		INSERT INTO subscriptions (id, device_id, endpoint_kind, endpoint_value, currencies, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			device_id = excluded.device_id,
			endpoint_kind = excluded.endpoint_kind,
			endpoint_value = excluded.endpoint_value,
			currencies = excluded.currencies,
			updated_at = excluded.updated_at
	`
	_, err = s.db.Exec(query, sub.ID, sub.DeviceID, sub.EndpointKind, sub.EndpointValue,
		string(currenciesJSON), now, now)
	return err
}

// GetSubscription retrieves a subscription by id, or nil when unknown.
func (s *Storage) GetSubscription(id string) (*SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		"SELECT id, device_id, endpoint_kind, endpoint_value, currencies, created_at, updated_at FROM subscriptions WHERE id = ?",
		id,
	)
	rec, err := scanSubscription(row.Scan)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	return rec, err
}

// ListSubscriptions returns every stored subscription.
func (s *Storage) ListSubscriptions() ([]*SubscriptionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT id, device_id, endpoint_kind, endpoint_value, currencies, created_at, updated_at FROM subscriptions ORDER BY created_at",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs []*SubscriptionRecord
	for rows.Next() {
		rec, err := scanSubscription(rows.Scan)
		if err != nil {
			return nil, err
		}
		subs = append(subs, rec)
	}
	return subs, rows.Err()
}

// DeleteSubscription removes a subscription.
func (s *Storage) DeleteSubscription(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM subscriptions WHERE id = ?", id)
	return err
}

func scanSubscription(scan func(dest ...interface{}) error) (*SubscriptionRecord, error) {
	var rec SubscriptionRecord
	var currenciesJSON string
	var createdAt, updatedAt int64

	err := scan(&rec.ID, &rec.DeviceID, &rec.EndpointKind, &rec.EndpointValue,
		&currenciesJSON, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	if currenciesJSON != "" {
		json.Unmarshal([]byte(currenciesJSON), &rec.Currencies)
	}
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

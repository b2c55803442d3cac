package storage

import (
	"database/sql"
	"time"
)

// BlockRecord is the persisted sync checkpoint for one network.
type BlockRecord struct {
	NetworkUID string
	Height     uint64
	Data       []byte
	SavedAt    time.Time
}

// SaveBlock stores the latest block checkpoint for a network, replacing any
// previous one.
func (s *Storage) SaveBlock(networkUID string, height uint64, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO blocks (network_uid, height, data, saved_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(network_uid) DO UPDATE SET
			height = excluded.height,
			data = excluded.data,
			saved_at = excluded.saved_at
	`
	_, err := s.db.Exec(query, networkUID, int64(height), data, time.Now().Unix())
	return err
}

// GetBlock retrieves the checkpoint for a network, or nil when none exists.
func (s *Storage) GetBlock(networkUID string) (*BlockRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec BlockRecord
	var height, savedAt int64
	err := s.db.QueryRow(
		"SELECT network_uid, height, data, saved_at FROM blocks WHERE network_uid = ?",
		networkUID,
	).Scan(&rec.NetworkUID, &height, &rec.Data, &savedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.Height = uint64(height)
	rec.SavedAt = time.Unix(savedAt, 0)
	return &rec, nil
}

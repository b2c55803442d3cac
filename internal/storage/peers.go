package storage

import (
	"database/sql"
	"time"
)

// PeerRecord represents a known peer on one network.
type PeerRecord struct {
	NetworkUID string
	Address    string
	Data       []byte
	FirstSeen  time.Time
	LastSeen   time.Time
}

// SavePeer saves or updates a peer record.
func (s *Storage) SavePeer(networkUID, address string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().Unix()
	query := `
		INSERT INTO peers (network_uid, address, data, first_seen, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(network_uid, address) DO UPDATE SET
			data = excluded.data,
			last_seen = excluded.last_seen
	`
	_, err := s.db.Exec(query, networkUID, address, data, now, now)
	return err
}

// GetPeer retrieves a peer record, or nil when unknown.
func (s *Storage) GetPeer(networkUID, address string) (*PeerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec PeerRecord
	var firstSeen, lastSeen int64
	err := s.db.QueryRow(
		"SELECT network_uid, address, data, first_seen, last_seen FROM peers WHERE network_uid = ? AND address = ?",
		networkUID, address,
	).Scan(&rec.NetworkUID, &rec.Address, &rec.Data, &firstSeen, &lastSeen)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.FirstSeen = time.Unix(firstSeen, 0)
	rec.LastSeen = time.Unix(lastSeen, 0)
	return &rec, nil
}

// ListPeers returns a network's peers ordered by last seen, most recent
// first. A limit of 0 means no limit.
func (s *Storage) ListPeers(networkUID string, limit int) ([]*PeerRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT network_uid, address, data, first_seen, last_seen
		FROM peers WHERE network_uid = ?
		ORDER BY last_seen DESC
	`

	var rows *sql.Rows
	var err error
	if limit > 0 {
		rows, err = s.db.Query(query+" LIMIT ?", networkUID, limit)
	} else {
		rows, err = s.db.Query(query, networkUID)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var peers []*PeerRecord
	for rows.Next() {
		var rec PeerRecord
		var firstSeen, lastSeen int64
		if err := rows.Scan(&rec.NetworkUID, &rec.Address, &rec.Data, &firstSeen, &lastSeen); err != nil {
			return nil, err
		}
		rec.FirstSeen = time.Unix(firstSeen, 0)
		rec.LastSeen = time.Unix(lastSeen, 0)
		peers = append(peers, &rec)
	}
	return peers, rows.Err()
}

// DeletePeer removes a peer.
func (s *Storage) DeletePeer(networkUID, address string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM peers WHERE network_uid = ? AND address = ?", networkUID, address)
	return err
}

// PeerCount returns the number of known peers on a network.
func (s *Storage) PeerCount(networkUID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM peers WHERE network_uid = ?", networkUID).Scan(&count)
	return count, err
}

package storage

import (
	"database/sql"
	"time"
)

// TransactionRecord is one raw transaction the engine asked the core to
// keep.
type TransactionRecord struct {
	NetworkUID string
	TxID       string
	Raw        []byte
	UpdatedAt  time.Time
}

// SaveTransaction inserts or replaces a raw transaction.
func (s *Storage) SaveTransaction(networkUID, txid string, raw []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO transactions (network_uid, txid, raw, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(network_uid, txid) DO UPDATE SET
			raw = excluded.raw,
			updated_at = excluded.updated_at
	`
	_, err := s.db.Exec(query, networkUID, txid, raw, time.Now().Unix())
	return err
}

// GetTransaction retrieves a stored transaction, or nil when unknown.
func (s *Storage) GetTransaction(networkUID, txid string) (*TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var rec TransactionRecord
	var updatedAt int64
	err := s.db.QueryRow(
		"SELECT network_uid, txid, raw, updated_at FROM transactions WHERE network_uid = ? AND txid = ?",
		networkUID, txid,
	).Scan(&rec.NetworkUID, &rec.TxID, &rec.Raw, &updatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	rec.UpdatedAt = time.Unix(updatedAt, 0)
	return &rec, nil
}

// ListTransactions returns a network's stored transactions, most recently
// updated first.
func (s *Storage) ListTransactions(networkUID string) ([]*TransactionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		"SELECT network_uid, txid, raw, updated_at FROM transactions WHERE network_uid = ? ORDER BY updated_at DESC",
		networkUID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var txs []*TransactionRecord
	for rows.Next() {
		var rec TransactionRecord
		var updatedAt int64
		if err := rows.Scan(&rec.NetworkUID, &rec.TxID, &rec.Raw, &updatedAt); err != nil {
			return nil, err
		}
		rec.UpdatedAt = time.Unix(updatedAt, 0)
		txs = append(txs, &rec)
	}
	return txs, rows.Err()
}

// DeleteTransaction removes a stored transaction.
func (s *Storage) DeleteTransaction(networkUID, txid string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM transactions WHERE network_uid = ? AND txid = ?", networkUID, txid)
	return err
}

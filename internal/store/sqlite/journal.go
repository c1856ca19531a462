// Package sqlite persists simulation order outcomes for analysis and audit.
// The simulation state itself is deliberately ephemeral; the journal only
// records what happened to each queued intent, so a rehearsal can be
// reviewed after the session is gone.
package sqlite

import (
	"database/sql"
	"log"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"simtrade/internal/sim"
)

// Journal persists order outcomes to SQLite.
type Journal struct {
	mu sync.Mutex
	db *sql.DB
}

// NewJournal opens (or creates) a SQLite journal database.
func NewJournal(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal=WAL&_sync=NORMAL")
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS orders (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL,
		trade_date  TEXT NOT NULL,
		side        TEXT NOT NULL,
		symbol      TEXT NOT NULL,
		qty         INTEGER NOT NULL,
		price       REAL NOT NULL,
		gross       REAL NOT NULL,
		fee         REAL NOT NULL,
		slippage    REAL NOT NULL,
		outcome     TEXT NOT NULL,
		created_at  DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_orders_session ON orders(session_id);
	CREATE INDEX IF NOT EXISTS idx_orders_symbol ON orders(symbol);
	CREATE INDEX IF NOT EXISTS idx_orders_date ON orders(trade_date);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}

	log.Printf("[journal] opened order journal at %s", dbPath)
	return &Journal{db: db}, nil
}

// RecordDay persists every order outcome of one AdvanceDay step.
func (j *Journal) RecordDay(sessionID string, report sim.DayReport) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	tx, err := j.db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO orders (session_id, trade_date, side, symbol, qty, price, gross, fee, slippage, outcome)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, r := range report.Results {
		if _, err := stmt.Exec(
			sessionID, report.Date, string(r.Side), r.Symbol,
			r.Qty, r.Price, r.Gross, r.Fee, r.Slippage, string(r.Outcome),
		); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

// OrderRecord represents a row from the orders table.
type OrderRecord struct {
	ID        int64   `json:"id"`
	SessionID string  `json:"session_id"`
	TradeDate string  `json:"trade_date"`
	Side      string  `json:"side"`
	Symbol    string  `json:"symbol"`
	Qty       int64   `json:"qty"`
	Price     float64 `json:"price"`
	Gross     float64 `json:"gross"`
	Fee       float64 `json:"fee"`
	Slippage  float64 `json:"slippage"`
	Outcome   string  `json:"outcome"`
}

// SessionOrders returns all recorded outcomes for a session, oldest first.
func (j *Journal) SessionOrders(sessionID string) ([]OrderRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	rows, err := j.db.Query(
		`SELECT id, session_id, trade_date, side, symbol, qty, price, gross, fee, slippage, outcome
		 FROM orders WHERE session_id = ? ORDER BY id ASC`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var orders []OrderRecord
	for rows.Next() {
		var o OrderRecord
		if err := rows.Scan(&o.ID, &o.SessionID, &o.TradeDate, &o.Side, &o.Symbol,
			&o.Qty, &o.Price, &o.Gross, &o.Fee, &o.Slippage, &o.Outcome); err != nil {
			continue
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// Close closes the journal database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// Package sqlite is the durable backing store for the shop agent: the
// conversation turn log, the tool invocation audit log and the catalog and
// order tables, all in one SQLite database via the pure-Go driver.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/brizzle/shopagent/core"
	"github.com/brizzle/shopagent/shop"
)

// Store wraps a SQLite database. All public methods are safe for concurrent
// use; SQLite serializes writes.
type Store struct {
	db *sql.DB
}

// Open creates (or opens) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS chat_history (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		role       TEXT NOT NULL,
		message    TEXT NOT NULL,
		metadata   TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chat_history_session
		ON chat_history (session_id, created_at);

	CREATE TABLE IF NOT EXISTS ai_actions (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id  TEXT NOT NULL,
		action_type TEXT NOT NULL,
		action_data TEXT,
		created_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_ai_actions_session
		ON ai_actions (session_id, created_at);

	CREATE TABLE IF NOT EXISTS products (
		id                  TEXT PRIMARY KEY,
		name                TEXT NOT NULL,
		description         TEXT NOT NULL DEFAULT '',
		price               REAL NOT NULL,
		image_url           TEXT NOT NULL DEFAULT '',
		printful_product_id TEXT NOT NULL DEFAULT '',
		sku                 TEXT NOT NULL DEFAULT '',
		created_at          TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS orders (
		id             TEXT PRIMARY KEY,
		customer_email TEXT NOT NULL DEFAULT '',
		status         TEXT NOT NULL,
		total          REAL NOT NULL DEFAULT 0,
		created_at     TEXT NOT NULL
	);
	`
	_, err := s.db.Exec(schema)
	return err
}

// unavailable tags a backend failure with core.ErrStoreUnavailable while
// keeping the cause in the chain.
func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w", op, errors.Join(core.ErrStoreUnavailable, err))
}

// AppendTurn implements core.ConversationStore.
func (s *Store) AppendTurn(ctx context.Context, turn core.Turn) error {
	var metadata any
	if turn.Metadata != nil {
		raw, err := json.Marshal(turn.Metadata)
		if err != nil {
			return fmt.Errorf("append turn: encode metadata: %w", err)
		}
		metadata = string(raw)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO chat_history (session_id, role, message, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		turn.SessionID, string(turn.Role), turn.Text, metadata,
		turn.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return unavailable("append turn", err)
	}
	return nil
}

// AppendToolInvocation implements core.ConversationStore.
func (s *Store) AppendToolInvocation(ctx context.Context, rec core.ToolInvocation) error {
	raw, err := json.Marshal(rec.Arguments)
	if err != nil {
		return fmt.Errorf("append invocation: encode arguments: %w", err)
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO ai_actions (session_id, action_type, action_data, created_at)
		 VALUES (?, ?, ?, ?)`,
		rec.SessionID, rec.Name, string(raw),
		rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return unavailable("append invocation", err)
	}
	return nil
}

// RecentTurns implements core.ConversationStore. The most recent limit rows
// are selected descending then reversed so callers always see ascending
// order.
func (s *Store) RecentTurns(ctx context.Context, sessionID string, limit int) ([]core.Turn, error) {
	if limit <= 0 {
		limit = core.DefaultHistoryLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, role, message, metadata, created_at FROM chat_history
		 WHERE session_id = ? ORDER BY created_at DESC, id DESC LIMIT ?`,
		sessionID, limit,
	)
	if err != nil {
		return nil, unavailable("recent turns", err)
	}
	turns, err := scanTurns(rows)
	if err != nil {
		return nil, err
	}
	for i, j := 0, len(turns)-1; i < j; i, j = i+1, j-1 {
		turns[i], turns[j] = turns[j], turns[i]
	}
	return turns, nil
}

// Turns implements core.ConversationStore.
func (s *Store) Turns(ctx context.Context, sessionID string) ([]core.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, role, message, metadata, created_at FROM chat_history
		 WHERE session_id = ? ORDER BY created_at ASC, id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, unavailable("turns", err)
	}
	return scanTurns(rows)
}

func scanTurns(rows *sql.Rows) ([]core.Turn, error) {
	defer rows.Close()
	var turns []core.Turn
	for rows.Next() {
		var (
			turn     core.Turn
			role     string
			metadata sql.NullString
			created  string
		)
		if err := rows.Scan(&turn.SessionID, &role, &turn.Text, &metadata, &created); err != nil {
			return nil, unavailable("scan turn", err)
		}
		turn.Role = core.Role(role)
		if metadata.Valid && metadata.String != "" {
			if err := json.Unmarshal([]byte(metadata.String), &turn.Metadata); err != nil {
				return nil, fmt.Errorf("decode turn metadata: %w", err)
			}
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse turn timestamp: %w", err)
		}
		turn.CreatedAt = ts
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate turns", err)
	}
	return turns, nil
}

// ToolInvocations implements core.ConversationStore.
func (s *Store) ToolInvocations(ctx context.Context, sessionID string) ([]core.ToolInvocation, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT session_id, action_type, action_data, created_at FROM ai_actions
		 WHERE session_id = ? ORDER BY created_at DESC, id DESC`,
		sessionID,
	)
	if err != nil {
		return nil, unavailable("invocations", err)
	}
	defer rows.Close()
	var recs []core.ToolInvocation
	for rows.Next() {
		var (
			rec     core.ToolInvocation
			data    sql.NullString
			created string
		)
		if err := rows.Scan(&rec.SessionID, &rec.Name, &data, &created); err != nil {
			return nil, unavailable("scan invocation", err)
		}
		if data.Valid && data.String != "" {
			if err := json.Unmarshal([]byte(data.String), &rec.Arguments); err != nil {
				return nil, fmt.Errorf("decode invocation arguments: %w", err)
			}
		}
		ts, err := time.Parse(time.RFC3339Nano, created)
		if err != nil {
			return nil, fmt.Errorf("parse invocation timestamp: %w", err)
		}
		rec.CreatedAt = ts
		recs = append(recs, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable("iterate invocations", err)
	}
	return recs, nil
}

// ListProducts implements shop.Catalog.
func (s *Store) ListProducts(ctx context.Context) ([]shop.Product, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, description, price, image_url, printful_product_id, sku, created_at
		 FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, unavailable("list products", err)
	}
	defer rows.Close()
	var products []shop.Product
	for rows.Next() {
		var (
			p       shop.Product
			created string
		)
		if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.Price,
			&p.ImageURL, &p.PrintfulProductID, &p.SKU, &created); err != nil {
			return nil, unavailable("scan product", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		products = append(products, p)
	}
	return products, rows.Err()
}

// CreateProduct implements shop.Catalog.
func (s *Store) CreateProduct(ctx context.Context, p shop.Product) (shop.Product, error) {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.SKU == "" {
		p.SKU = fmt.Sprintf("KB-%d", time.Now().UnixMilli())
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO products (id, name, description, price, image_url, printful_product_id, sku, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.Description, p.Price, p.ImageURL, p.PrintfulProductID, p.SKU,
		p.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return shop.Product{}, unavailable("create product", err)
	}
	return p, nil
}

// ListOrders implements shop.Orders.
func (s *Store) ListOrders(ctx context.Context) ([]shop.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, customer_email, status, total, created_at FROM orders ORDER BY created_at DESC`)
	if err != nil {
		return nil, unavailable("list orders", err)
	}
	defer rows.Close()
	var orders []shop.Order
	for rows.Next() {
		var (
			o       shop.Order
			created string
		)
		if err := rows.Scan(&o.ID, &o.CustomerEmail, &o.Status, &o.Total, &created); err != nil {
			return nil, unavailable("scan order", err)
		}
		o.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// CreateOrder inserts an order record. Used by the CRUD API, not by the
// agent's capabilities.
func (s *Store) CreateOrder(ctx context.Context, o shop.Order) (shop.Order, error) {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if o.Status == "" {
		o.Status = "pending"
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO orders (id, customer_email, status, total, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		o.ID, o.CustomerEmail, o.Status, o.Total, o.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return shop.Order{}, unavailable("create order", err)
	}
	return o, nil
}

// UpdateStatus implements shop.Orders.
func (s *Store) UpdateStatus(ctx context.Context, id, status string) (shop.Order, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE orders SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return shop.Order{}, unavailable("update order status", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return shop.Order{}, fmt.Errorf("%w: %s", shop.ErrOrderNotFound, id)
	}
	var (
		o       shop.Order
		created string
	)
	err = s.db.QueryRowContext(ctx,
		`SELECT id, customer_email, status, total, created_at FROM orders WHERE id = ?`, id).
		Scan(&o.ID, &o.CustomerEmail, &o.Status, &o.Total, &created)
	if err != nil {
		return shop.Order{}, unavailable("read order", err)
	}
	o.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
	return o, nil
}

var (
	_ core.ConversationStore = (*Store)(nil)
	_ shop.Catalog           = (*Store)(nil)
	_ shop.Orders            = (*Store)(nil)
)

package order

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"FomoStore/pkg/kit"
)

const (
	pingTimeout  = 1 * time.Second
	queryTimeout = 3 * time.Second
	txTimeout    = 5 * time.Second
)

const cartColumns = `
	id, user_id, product_id, product_name, category, COALESCE(image_url, ''),
	quantity, locked_price, locked_until, created_at
`

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return kit.WithTimeout(ctx, pingTimeout, s.db.PingContext)
}

func (s *PostgresStore) AddCartItem(ctx context.Context, it CartItem) error {
	return kit.WithTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		_, err := s.db.ExecContext(ctx, `
			INSERT INTO cart_items (id, user_id, product_id, product_name, category, image_url,
				quantity, locked_price, locked_until, created_at)
			VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8, $9, $10)
		`, it.ID, it.UserID, it.ProductID, it.Name, it.Category, it.ImageURL,
			it.Quantity, it.LockedPrice, it.LockedUntil, it.CreatedAt)
		return err
	})
}

func (s *PostgresStore) CartItems(ctx context.Context, userID string) ([]CartItem, error) {
	var out []CartItem
	err := kit.WithTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		var err error
		out, err = queryCart(ctx, s.db, userID, false)
		return err
	})
	return out, err
}

func (s *PostgresStore) RemoveCartItem(ctx context.Context, userID, id string) (bool, error) {
	var n int64
	err := kit.WithTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		res, err := s.db.ExecContext(ctx, `
			DELETE FROM cart_items
			WHERE id = $1 AND user_id = $2
		`, id, userID)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	return n > 0, err
}

func (s *PostgresStore) Checkout(ctx context.Context, userID, orderID string, now time.Time) (Order, error) {
	ctx, cancel := context.WithTimeout(ctx, txTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return Order{}, err
	}
	defer func() { _ = tx.Rollback() }()

	lines, err := queryCart(ctx, tx, userID, true)
	if err != nil {
		return Order{}, err
	}

	o, err := NewOrder(orderID, userID, lines, now)
	if err != nil {
		return Order{}, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO orders (id, user_id, total_amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, o.ID, o.UserID, o.TotalAmount, o.Status, o.CreatedAt)
	if err != nil {
		return Order{}, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO order_items (order_id, position, product_id, product_name, quantity, price_at_purchase)
		VALUES ($1, $2, $3, $4, $5, $6)
	`)
	if err != nil {
		return Order{}, err
	}
	defer stmt.Close()

	for i, it := range o.Items {
		if _, err := stmt.ExecContext(ctx, o.ID, i, it.ProductID, it.Name, it.Quantity, it.PriceAtPurchase); err != nil {
			return Order{}, err
		}
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM cart_items WHERE user_id = $1`, userID); err != nil {
		return Order{}, err
	}

	if err := tx.Commit(); err != nil {
		return Order{}, err
	}
	return o, nil
}

func (s *PostgresStore) Orders(ctx context.Context, userID string) ([]Order, error) {
	var out []Order

	err := kit.WithTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, user_id, total_amount, status, created_at
			FROM orders
			WHERE user_id = $1
			ORDER BY created_at DESC, id ASC
		`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		out = make([]Order, 0, 8)
		for rows.Next() {
			var o Order
			if err := rows.Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.CreatedAt); err != nil {
				return err
			}
			out = append(out, o)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for i := range out {
			if out[i].Items, err = s.orderItems(ctx, out[i].ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (Order, bool, error) {
	var o Order

	err := kit.WithTimeout(ctx, queryTimeout, func(ctx context.Context) error {
		err := s.db.QueryRowContext(ctx, `
			SELECT id, user_id, total_amount, status, created_at
			FROM orders
			WHERE id = $1
		`, id).Scan(&o.ID, &o.UserID, &o.TotalAmount, &o.Status, &o.CreatedAt)
		if err != nil {
			return err
		}

		o.Items, err = s.orderItems(ctx, id)
		return err
	})

	if errors.Is(err, sql.ErrNoRows) {
		return Order{}, false, nil
	}
	if err != nil {
		return Order{}, false, err
	}
	return o, true, nil
}

func (s *PostgresStore) orderItems(ctx context.Context, orderID string) ([]OrderItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_id, product_name, quantity, price_at_purchase
		FROM order_items
		WHERE order_id = $1
		ORDER BY position ASC
	`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]OrderItem, 0, 8)
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ProductID, &it.Name, &it.Quantity, &it.PriceAtPurchase); err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

func queryCart(ctx context.Context, q querier, userID string, forUpdate bool) ([]CartItem, error) {
	query := `
		SELECT ` + cartColumns + `
		FROM cart_items
		WHERE user_id = $1
		ORDER BY created_at ASC, id ASC
	`
	if forUpdate {
		query += " FOR UPDATE"
	}

	rows, err := q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make([]CartItem, 0, 8)
	for rows.Next() {
		var it CartItem
		err := rows.Scan(
			&it.ID, &it.UserID, &it.ProductID, &it.Name, &it.Category, &it.ImageURL,
			&it.Quantity, &it.LockedPrice, &it.LockedUntil, &it.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

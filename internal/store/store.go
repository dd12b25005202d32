package store

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound is returned when no row matches the correlation keys.
var ErrNotFound = errors.New("store: not found")

// Store is the thin repository over the order datastore and the charge
// ledger. The pedidos table is owned by the storefront; this layer only
// reads it by correlation key and reconciles payment state into it.
type Store struct {
	Pool *pgxpool.Pool
}

// Order is the slice of the pedidos row the payment layer touches.
type Order struct {
	ID           int64
	NumeroPedido string
	Txid         string
	Pago         bool
	Status       string
	// ValorTotalCents is valor_total converted to centavos.
	ValorTotalCents int64
}

// OrderQuery selects an order by transaction id, order number or both.
type OrderQuery struct {
	Txid         string
	NumeroPedido string
}

// FindOrder returns the most recently recorded order matching the query.
func (s *Store) FindOrder(ctx context.Context, q OrderQuery) (Order, error) {
	var (
		conds []string
		args  []any
	)
	if strings.TrimSpace(q.Txid) != "" {
		args = append(args, strings.TrimSpace(q.Txid))
		conds = append(conds, fmt.Sprintf("txid = $%d", len(args)))
	}
	if strings.TrimSpace(q.NumeroPedido) != "" {
		args = append(args, strings.TrimSpace(q.NumeroPedido))
		conds = append(conds, fmt.Sprintf("numero_pedido = $%d", len(args)))
	}
	if len(conds) == 0 {
		return Order{}, ErrNotFound
	}

	sql := `SELECT id, COALESCE(numero_pedido, ''), COALESCE(txid, ''), COALESCE(pago, false), COALESCE(status, ''), COALESCE(valor_total, 0)
		FROM pedidos WHERE ` + strings.Join(conds, " OR ") + ` ORDER BY id DESC LIMIT 1`

	var (
		order Order
		total float64
	)
	err := s.Pool.QueryRow(ctx, sql, args...).Scan(
		&order.ID, &order.NumeroPedido, &order.Txid, &order.Pago, &order.Status, &total,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, fmt.Errorf("find order: %w", err)
	}
	order.ValorTotalCents = int64(math.Round(total * 100))
	return order, nil
}

// MarkOrderPaid records a confirmed payment on the order inside the given
// transaction. Callers pass the status vocabulary the storefront expects.
func (s *Store) MarkOrderPaid(ctx context.Context, tx pgx.Tx, orderID int64, status string) error {
	tag, err := tx.Exec(ctx,
		`UPDATE pedidos SET pago = true, status = $2 WHERE id = $1`,
		orderID, status,
	)
	if err != nil {
		return fmt.Errorf("mark order paid: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ConfirmPayment records a confirmed payment atomically: the order row is
// marked paid and the matching ledger row, when present, follows. Returns
// the order as it was before confirmation so callers can detect repeats.
func (s *Store) ConfirmPayment(ctx context.Context, q OrderQuery, orderStatus, chargeStatus string) (Order, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, fmt.Errorf("begin confirm payment: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	order, err := s.FindOrder(ctx, q)
	if err != nil {
		return Order{}, err
	}
	if err := s.MarkOrderPaid(ctx, tx, order.ID, orderStatus); err != nil {
		return Order{}, err
	}
	if strings.TrimSpace(q.Txid) != "" {
		_, err = tx.Exec(ctx,
			`UPDATE charges SET status = $2, updated_at = now() WHERE txid = $1`,
			strings.TrimSpace(q.Txid), chargeStatus,
		)
		if err != nil {
			return Order{}, fmt.Errorf("confirm charge: %w", err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, fmt.Errorf("commit confirm payment: %w", err)
	}
	return order, nil
}

// Charge is one row of the charge ledger this service owns. It correlates
// provider transactions with storefront orders for the polling worker.
type Charge struct {
	TxID        string
	Provider    string
	ExternalID  string
	AmountCents int64
	Status      string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// InsertCharge records a freshly created charge.
func (s *Store) InsertCharge(ctx context.Context, c Charge) error {
	_, err := s.Pool.Exec(ctx,
		`INSERT INTO charges (txid, provider, external_id, amount_cents, status)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (txid) DO NOTHING`,
		c.TxID, c.Provider, c.ExternalID, c.AmountCents, c.Status,
	)
	if err != nil {
		return fmt.Errorf("insert charge: %w", err)
	}
	return nil
}

// UpdateChargeStatus moves a ledger row to a new normalised status.
func (s *Store) UpdateChargeStatus(ctx context.Context, txid, status string) error {
	tag, err := s.Pool.Exec(ctx,
		`UPDATE charges SET status = $2, updated_at = now() WHERE txid = $1`,
		txid, status,
	)
	if err != nil {
		return fmt.Errorf("update charge status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListPendingCharges returns pending ledger rows created before the cutoff,
// oldest first, for the reconciliation worker.
func (s *Store) ListPendingCharges(ctx context.Context, before time.Time, limit int32) ([]Charge, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx,
		`SELECT txid, provider, COALESCE(external_id, ''), amount_cents, status, created_at, updated_at
		 FROM charges
		 WHERE status = 'PENDENTE' AND created_at < $1
		 ORDER BY created_at ASC
		 LIMIT $2`,
		before, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list pending charges: %w", err)
	}
	defer rows.Close()

	var out []Charge
	for rows.Next() {
		var c Charge
		if err := rows.Scan(&c.TxID, &c.Provider, &c.ExternalID, &c.AmountCents, &c.Status, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan charge: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// PingDB probes the pool for the readiness endpoint.
func (s *Store) PingDB(ctx context.Context, timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return s.Pool.Ping(ctx)
}

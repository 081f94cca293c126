package store

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noelye/agentic-pos/internal/models"
)

// Store journals settlements for audit. The pending ledger itself is in-memory by
// design; only consummated matches land here.
type Store struct {
	Pool *pgxpool.Pool
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{Pool: pool}
}

func (s *Store) InsertSettlement(ctx context.Context, settlement *models.Settlement) error {
	_, err := s.Pool.Exec(ctx, `
		INSERT INTO settlements (
			signature, order_id, payment_id, amount, fiat_amount, paid_at
		) VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (signature) DO NOTHING
	`,
		settlement.Signature,
		settlement.OrderID,
		settlement.PaymentID,
		settlement.Amount.String(),
		settlement.FiatAmount.String(),
		settlement.PaidAt,
	)
	return err
}

func (s *Store) ListRecent(ctx context.Context, limit int) ([]*models.Settlement, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.Pool.Query(ctx, `
		SELECT signature, order_id, payment_id, amount, fiat_amount, paid_at, created_at
		FROM settlements
		ORDER BY paid_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*models.Settlement
	for rows.Next() {
		var settlement models.Settlement
		var amount, fiat string
		if err := rows.Scan(
			&settlement.Signature,
			&settlement.OrderID,
			&settlement.PaymentID,
			&amount,
			&fiat,
			&settlement.PaidAt,
			&settlement.CreatedAt,
		); err != nil {
			return nil, err
		}
		if settlement.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, err
		}
		if settlement.FiatAmount, err = decimal.NewFromString(fiat); err != nil {
			return nil, err
		}
		out = append(out, &settlement)
	}
	return out, rows.Err()
}

package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"pos-ledger/internal/core"
)

// Store exposes one repository per aggregate over a shared pool.
// The schema is created by the migrations package.
type Store struct {
	pool     *pgxpool.Pool
	sales    *table[core.Sale]
	vouchers *table[core.GiftVoucher]
	layaways *table[core.LayawayPlan]
	loyalty  *table[core.LoyaltyAccount]
}

func New(pool *pgxpool.Pool) *Store {
	return &Store{
		pool: pool,
		sales: &table[core.Sale]{pool: pool, name: "sales", kind: "sale",
			index: func(s *core.Sale) (string, string, time.Time) { return s.ID, string(s.Status), s.CreatedAt }},
		// Voucher status depends on the clock, so it is never indexed.
		vouchers: &table[core.GiftVoucher]{pool: pool, name: "gift_vouchers", kind: "voucher",
			index: func(v *core.GiftVoucher) (string, string, time.Time) { return v.Code, "", v.IssuedAt }},
		layaways: &table[core.LayawayPlan]{pool: pool, name: "layaway_plans", kind: "layaway",
			index: func(p *core.LayawayPlan) (string, string, time.Time) { return p.ID, string(p.Status), p.CreatedAt }},
		loyalty: &table[core.LoyaltyAccount]{pool: pool, name: "loyalty_accounts", kind: "loyalty account",
			index: func(a *core.LoyaltyAccount) (string, string, time.Time) { return a.CustomerID, "", a.OpenedAt }},
	}
}

func (s *Store) Sales() core.SaleRepository { return saleRepo{s} }
func (s *Store) Vouchers() core.VoucherRepository { return voucherRepo{s} }
func (s *Store) Layaways() core.LayawayRepository { return layawayRepo{s} }
func (s *Store) Loyalty() core.LoyaltyRepository { return loyaltyRepo{s} }
func (s *Store) Refunds() core.RefundRepository { return refundRepo{s} }

type saleRepo struct{ s *Store }

func (r saleRepo) Insert(ctx context.Context, sale *core.Sale) error {
	return r.s.sales.insert(ctx, sale)
}

func (r saleRepo) Get(ctx context.Context, id string) (*core.Sale, error) {
	return r.s.sales.get(ctx, id)
}

func (r saleRepo) Update(ctx context.Context, id string, fn func(*core.Sale) error) (*core.Sale, error) {
	return r.s.sales.update(ctx, id, fn)
}

func (r saleRepo) ListByStatus(ctx context.Context, status core.SaleStatus) ([]core.Sale, error) {
	return r.s.sales.listByStatus(ctx, string(status))
}

type voucherRepo struct{ s *Store }

func (r voucherRepo) Insert(ctx context.Context, v *core.GiftVoucher) error {
	return r.s.vouchers.insert(ctx, v)
}

func (r voucherRepo) GetByCode(ctx context.Context, code string) (*core.GiftVoucher, error) {
	return r.s.vouchers.get(ctx, code)
}

func (r voucherRepo) UpdateByCode(ctx context.Context, code string, fn func(*core.GiftVoucher) error) (*core.GiftVoucher, error) {
	return r.s.vouchers.update(ctx, code, fn)
}

type layawayRepo struct{ s *Store }

func (r layawayRepo) Insert(ctx context.Context, p *core.LayawayPlan) error {
	return r.s.layaways.insert(ctx, p)
}

func (r layawayRepo) Get(ctx context.Context, id string) (*core.LayawayPlan, error) {
	return r.s.layaways.get(ctx, id)
}

func (r layawayRepo) Update(ctx context.Context, id string, fn func(*core.LayawayPlan) error) (*core.LayawayPlan, error) {
	return r.s.layaways.update(ctx, id, fn)
}

func (r layawayRepo) ListByStatus(ctx context.Context, status core.LayawayStatus) ([]core.LayawayPlan, error) {
	return r.s.layaways.listByStatus(ctx, string(status))
}

type loyaltyRepo struct{ s *Store }

func (r loyaltyRepo) Insert(ctx context.Context, a *core.LoyaltyAccount) error {
	return r.s.loyalty.insert(ctx, a)
}

func (r loyaltyRepo) Get(ctx context.Context, customerID string) (*core.LoyaltyAccount, error) {
	return r.s.loyalty.get(ctx, customerID)
}

func (r loyaltyRepo) Update(ctx context.Context, customerID string, fn func(*core.LoyaltyAccount) error) (*core.LoyaltyAccount, error) {
	return r.s.loyalty.update(ctx, customerID, fn)
}

type refundRepo struct{ s *Store }

// Commit locks the sale row, so concurrent refunds of the same sale queue up
// behind each other. The refund row and the quantity ledger commit together.
func (r refundRepo) Commit(ctx context.Context, saleID string, fn core.RefundCommitFunc) (*core.RefundRecord, error) {
	tx, err := r.s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	sale, err := r.s.sales.load(ctx, tx, saleID, true)
	if err != nil {
		return nil, err
	}
	refunded, err := refundedQuantities(ctx, tx, saleID)
	if err != nil {
		return nil, err
	}
	rec, err := fn(sale, refunded)
	if err != nil {
		return nil, err
	}

	doc, err := json.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode refund %s: %w", rec.ID, err)
	}
	if _, err := tx.Exec(ctx,
		"INSERT INTO refunds (id, sale_id, created_at, doc) VALUES ($1, $2, $3, $4)",
		rec.ID, saleID, rec.CreatedAt, doc); err != nil {
		return nil, fmt.Errorf("failed to insert refund %s: %w", rec.ID, err)
	}
	for _, l := range rec.Lines {
		if _, err := tx.Exec(ctx, `
			INSERT INTO refunded_quantities (sale_id, line_number, quantity) VALUES ($1, $2, $3)
			ON CONFLICT (sale_id, line_number) DO UPDATE
			SET quantity = refunded_quantities.quantity + EXCLUDED.quantity`,
			saleID, l.LineNumber, int64(l.Quantity)); err != nil {
			return nil, fmt.Errorf("failed to update refunded quantity for line %d: %w", l.LineNumber, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit refund %s: %w", rec.ID, err)
	}
	return rec, nil
}

func (r refundRepo) ListBySale(ctx context.Context, saleID string) ([]core.RefundRecord, error) {
	rows, err := r.s.pool.Query(ctx, "SELECT doc FROM refunds WHERE sale_id = $1 ORDER BY created_at, id", saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to list refunds: %w", err)
	}
	defer rows.Close()

	out := make([]core.RefundRecord, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan refund: %w", err)
		}
		var rec core.RefundRecord
		if err := json.Unmarshal(doc, &rec); err != nil {
			return nil, fmt.Errorf("failed to decode refund: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (r refundRepo) RefundedQuantities(ctx context.Context, saleID string) (map[int]core.Quantity, error) {
	return refundedQuantities(ctx, r.s.pool, saleID)
}

func refundedQuantities(ctx context.Context, q pgxQuerier, saleID string) (map[int]core.Quantity, error) {
	rows, err := q.Query(ctx, "SELECT line_number, quantity FROM refunded_quantities WHERE sale_id = $1", saleID)
	if err != nil {
		return nil, fmt.Errorf("failed to load refunded quantities: %w", err)
	}
	defer rows.Close()

	out := make(map[int]core.Quantity)
	for rows.Next() {
		var line int
		var qty int64
		if err := rows.Scan(&line, &qty); err != nil {
			return nil, fmt.Errorf("failed to scan refunded quantity: %w", err)
		}
		out[line] = core.Quantity(qty)
	}
	return out, rows.Err()
}

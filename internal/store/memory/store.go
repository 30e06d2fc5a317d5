// Package memory keeps every aggregate in process memory. It backs the
// development server, the CLI and most tests.
package memory

import (
	"context"
	"sort"
	"sync"

	"pos-ledger/internal/core"
)

// Store holds one collection per aggregate type.
type Store struct {
	sales    *collection[core.Sale]
	vouchers *collection[core.GiftVoucher]
	layaways *collection[core.LayawayPlan]
	loyalty  *collection[core.LoyaltyAccount]

	refundMu sync.RWMutex
	refunds  map[string][]core.RefundRecord
	refunded map[string]map[int]core.Quantity
}

func New() *Store {
	return &Store{
		sales:    newCollection("sale", (*core.Sale).Clone),
		vouchers: newCollection("voucher", (*core.GiftVoucher).Clone),
		layaways: newCollection("layaway", (*core.LayawayPlan).Clone),
		loyalty:  newCollection("loyalty account", (*core.LoyaltyAccount).Clone),
		refunds:  make(map[string][]core.RefundRecord),
		refunded: make(map[string]map[int]core.Quantity),
	}
}

func (s *Store) Sales() core.SaleRepository { return saleRepo{s} }
func (s *Store) Vouchers() core.VoucherRepository { return voucherRepo{s} }
func (s *Store) Layaways() core.LayawayRepository { return layawayRepo{s} }
func (s *Store) Loyalty() core.LoyaltyRepository { return loyaltyRepo{s} }
func (s *Store) Refunds() core.RefundRepository { return refundRepo{s} }

// ── Sales ────────────────────────────────────────────────────────────────────

type saleRepo struct{ s *Store }

func (r saleRepo) Insert(ctx context.Context, sale *core.Sale) error {
	return r.s.sales.insert(ctx, sale.ID, sale)
}

func (r saleRepo) Get(ctx context.Context, id string) (*core.Sale, error) {
	return r.s.sales.get(ctx, id)
}

func (r saleRepo) Update(ctx context.Context, id string, fn func(*core.Sale) error) (*core.Sale, error) {
	return r.s.sales.update(ctx, id, fn)
}

func (r saleRepo) ListByStatus(ctx context.Context, status core.SaleStatus) ([]core.Sale, error) {
	out, err := r.s.sales.filter(ctx, func(s *core.Sale) bool { return s.Status == status })
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ── Vouchers ─────────────────────────────────────────────────────────────────

type voucherRepo struct{ s *Store }

func (r voucherRepo) Insert(ctx context.Context, v *core.GiftVoucher) error {
	return r.s.vouchers.insert(ctx, v.Code, v)
}

func (r voucherRepo) GetByCode(ctx context.Context, code string) (*core.GiftVoucher, error) {
	return r.s.vouchers.get(ctx, code)
}

func (r voucherRepo) UpdateByCode(ctx context.Context, code string, fn func(*core.GiftVoucher) error) (*core.GiftVoucher, error) {
	return r.s.vouchers.update(ctx, code, fn)
}

// ── Layaway ──────────────────────────────────────────────────────────────────

type layawayRepo struct{ s *Store }

func (r layawayRepo) Insert(ctx context.Context, p *core.LayawayPlan) error {
	return r.s.layaways.insert(ctx, p.ID, p)
}

func (r layawayRepo) Get(ctx context.Context, id string) (*core.LayawayPlan, error) {
	return r.s.layaways.get(ctx, id)
}

func (r layawayRepo) Update(ctx context.Context, id string, fn func(*core.LayawayPlan) error) (*core.LayawayPlan, error) {
	return r.s.layaways.update(ctx, id, fn)
}

func (r layawayRepo) ListByStatus(ctx context.Context, status core.LayawayStatus) ([]core.LayawayPlan, error) {
	out, err := r.s.layaways.filter(ctx, func(p *core.LayawayPlan) bool { return p.Status == status })
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

// ── Loyalty ──────────────────────────────────────────────────────────────────

type loyaltyRepo struct{ s *Store }

func (r loyaltyRepo) Insert(ctx context.Context, a *core.LoyaltyAccount) error {
	return r.s.loyalty.insert(ctx, a.CustomerID, a)
}

func (r loyaltyRepo) Get(ctx context.Context, customerID string) (*core.LoyaltyAccount, error) {
	return r.s.loyalty.get(ctx, customerID)
}

func (r loyaltyRepo) Update(ctx context.Context, customerID string, fn func(*core.LoyaltyAccount) error) (*core.LoyaltyAccount, error) {
	return r.s.loyalty.update(ctx, customerID, fn)
}

// ── Refunds ──────────────────────────────────────────────────────────────────

type refundRepo struct{ s *Store }

// Commit takes the sale's own lock, so refunds of one sale are serialised with
// each other and with any writer of that sale.
func (r refundRepo) Commit(ctx context.Context, saleID string, fn core.RefundCommitFunc) (*core.RefundRecord, error) {
	l := r.s.sales.lock(saleID)
	l.Lock()
	defer l.Unlock()

	sale, err := r.s.sales.get(ctx, saleID)
	if err != nil {
		return nil, err
	}
	refunded, err := r.RefundedQuantities(ctx, saleID)
	if err != nil {
		return nil, err
	}
	rec, err := fn(sale, refunded)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.s.refundMu.Lock()
	defer r.s.refundMu.Unlock()
	ledger := r.s.refunded[saleID]
	if ledger == nil {
		ledger = make(map[int]core.Quantity)
		r.s.refunded[saleID] = ledger
	}
	for _, line := range rec.Lines {
		ledger[line.LineNumber] += line.Quantity
	}
	r.s.refunds[saleID] = append(r.s.refunds[saleID], *rec.Clone())
	return rec, nil
}

func (r refundRepo) ListBySale(ctx context.Context, saleID string) ([]core.RefundRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.refundMu.RLock()
	defer r.s.refundMu.RUnlock()
	out := make([]core.RefundRecord, 0, len(r.s.refunds[saleID]))
	for i := range r.s.refunds[saleID] {
		out = append(out, *r.s.refunds[saleID][i].Clone())
	}
	return out, nil
}

func (r refundRepo) RefundedQuantities(ctx context.Context, saleID string) (map[int]core.Quantity, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.s.refundMu.RLock()
	defer r.s.refundMu.RUnlock()
	out := make(map[int]core.Quantity, len(r.s.refunded[saleID]))
	for n, q := range r.s.refunded[saleID] {
		out[n] = q
	}
	return out, nil
}

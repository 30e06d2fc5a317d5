package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pos-ledger/internal/core"
	"pos-ledger/internal/store/memory"
)

func newSale(id string, status core.SaleStatus, created time.Time) *core.Sale {
	return &core.Sale{
		ID:        id,
		Status:    status,
		Lines:     []core.LineItem{{LineNumber: 1, ProductID: "SKU", UnitPrice: decimal.NewFromInt(5), Quantity: 2}},
		CreatedAt: created,
	}
}

func TestStore_InsertGetIsolation(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().Sales()
	now := time.Now()

	s := newSale("s1", core.SaleActive, now)
	require.NoError(t, repo.Insert(ctx, s))

	// Mutating the caller's copy must not reach the store.
	s.Lines[0].Quantity = 99
	got, err := repo.Get(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.Quantity(2), got.Lines[0].Quantity)

	got.Lines[0].Quantity = 42
	again, _ := repo.Get(ctx, "s1")
	assert.Equal(t, core.Quantity(2), again.Lines[0].Quantity)

	err = repo.Insert(ctx, newSale("s1", core.SaleDraft, now))
	assert.ErrorIs(t, err, core.ErrInvalidState)

	_, err = repo.Get(ctx, "nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStore_UpdateFailureLeavesAggregate(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().Sales()
	require.NoError(t, repo.Insert(ctx, newSale("s1", core.SaleActive, time.Now())))

	boom := errors.New("boom")
	_, err := repo.Update(ctx, "s1", func(s *core.Sale) error {
		s.Status = core.SaleVoided
		s.Lines = nil
		return boom
	})
	assert.ErrorIs(t, err, boom)

	got, _ := repo.Get(ctx, "s1")
	assert.Equal(t, core.SaleActive, got.Status)
	assert.Len(t, got.Lines, 1)

	updated, err := repo.Update(ctx, "s1", func(s *core.Sale) error {
		s.Status = core.SaleHeld
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, core.SaleHeld, updated.Status)
}

func TestStore_ListByStatusOrdersByCreation(t *testing.T) {
	ctx := context.Background()
	repo := memory.New().Sales()
	base := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, repo.Insert(ctx, newSale("c", core.SaleHeld, base.Add(2*time.Minute))))
	require.NoError(t, repo.Insert(ctx, newSale("a", core.SaleHeld, base)))
	require.NoError(t, repo.Insert(ctx, newSale("b", core.SaleActive, base.Add(time.Minute))))

	held, err := repo.ListByStatus(ctx, core.SaleHeld)
	require.NoError(t, err)
	require.Len(t, held, 2)
	assert.Equal(t, "a", held[0].ID)
	assert.Equal(t, "c", held[1].ID)
}

func TestStore_RefundCommitAccumulates(t *testing.T) {
	ctx := context.Background()
	st := memory.New()
	require.NoError(t, st.Sales().Insert(ctx, newSale("s1", core.SaleCompleted, time.Now())))

	commit := func(id string) (*core.RefundRecord, error) {
		return st.Refunds().Commit(ctx, "s1", func(sale *core.Sale, refunded map[int]core.Quantity) (*core.RefundRecord, error) {
			if refunded[1] >= sale.Lines[0].Quantity {
				return nil, core.NewError(core.KindOverRefund, "exhausted")
			}
			return &core.RefundRecord{ID: id, OriginalSaleID: sale.ID, Lines: []core.RefundLine{{LineNumber: 1, Quantity: 1}}}, nil
		})
	}
	_, err := commit("r1")
	require.NoError(t, err)
	_, err = commit("r2")
	require.NoError(t, err)
	_, err = commit("r3")
	assert.ErrorIs(t, err, core.ErrOverRefund)

	qty, err := st.Refunds().RefundedQuantities(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, core.Quantity(2), qty[1])

	recs, err := st.Refunds().ListBySale(ctx, "s1")
	require.NoError(t, err)
	assert.Len(t, recs, 2)

	_, err = st.Refunds().Commit(ctx, "missing", func(*core.Sale, map[int]core.Quantity) (*core.RefundRecord, error) {
		t.Fatal("fn must not run for an unknown sale")
		return nil, nil
	})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestRewardCatalog(t *testing.T) {
	ctx := context.Background()
	cat := memory.NewRewardCatalog([]core.RewardDefinition{
		{ID: "B", PointsRequired: 900},
		{ID: "A", PointsRequired: 100},
	})
	all, err := cat.Rewards(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "A", all[0].ID)

	r, err := cat.Reward(ctx, "B")
	require.NoError(t, err)
	assert.Equal(t, uint64(900), r.PointsRequired)

	_, err = cat.Reward(ctx, "Z")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

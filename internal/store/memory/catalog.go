package memory

import (
	"context"
	"sort"

	"pos-ledger/internal/core"
)

// RewardCatalog is a fixed, read-only reward list.
type RewardCatalog struct {
	byID  map[string]core.RewardDefinition
	order []string
}

func NewRewardCatalog(rewards []core.RewardDefinition) *RewardCatalog {
	c := &RewardCatalog{byID: make(map[string]core.RewardDefinition, len(rewards))}
	for _, r := range rewards {
		if _, dup := c.byID[r.ID]; !dup {
			c.order = append(c.order, r.ID)
		}
		c.byID[r.ID] = r
	}
	sort.SliceStable(c.order, func(i, j int) bool {
		return c.byID[c.order[i]].PointsRequired < c.byID[c.order[j]].PointsRequired
	})
	return c
}

func (c *RewardCatalog) Reward(_ context.Context, id string) (*core.RewardDefinition, error) {
	r, ok := c.byID[id]
	if !ok {
		return nil, core.NewError(core.KindNotFound, "reward %s not found", id)
	}
	return &r, nil
}

func (c *RewardCatalog) Rewards(_ context.Context) ([]core.RewardDefinition, error) {
	out := make([]core.RewardDefinition, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out, nil
}

package control

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daechan-jo/auto-store-services-coupang/internal/jobs"
)

type fakeChargeUpdater struct {
	errs    map[int64]error
	charges map[int64]int64
}

func (f *fakeChargeUpdater) UpdateReturnCharge(ctx context.Context, sellerProductID, charge int64) error {
	if err := f.errs[sellerProductID]; err != nil {
		return err
	}
	if f.charges == nil {
		f.charges = make(map[int64]int64)
	}
	f.charges[sellerProductID] = charge
	return nil
}

func refs(ids ...int64) []jobs.ProductRef {
	out := make([]jobs.ProductRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, jobs.ProductRef{SellerProductID: id})
	}
	return out
}

func TestShippingCostControlAppliesFixedCharge(t *testing.T) {
	updater := &fakeChargeUpdater{}
	c := NewShippingCostControl(updater, 5000, 0, discardLogger())

	result, err := c.Run(context.Background(), refs(1, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, &ShippingResult{Total: 3, Success: 3}, result)
	assert.Equal(t, map[int64]int64{1: 5000, 2: 5000, 3: 5000}, updater.charges)
}

func TestShippingCostControlCountsFailures(t *testing.T) {
	updater := &fakeChargeUpdater{errs: map[int64]error{2: errors.New("locked")}}
	c := NewShippingCostControl(updater, 5000, 0, discardLogger())

	result, err := c.Run(context.Background(), refs(1, 2, 3))
	require.NoError(t, err)

	assert.Equal(t, 3, result.Total)
	assert.Equal(t, 2, result.Success)
	assert.Equal(t, 1, result.Failed)
	assert.Equal(t, result.Total, result.Success+result.Failed)
}

func TestShippingCostControlEmptyInput(t *testing.T) {
	c := NewShippingCostControl(&fakeChargeUpdater{}, 5000, 0, discardLogger())

	result, err := c.Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, &ShippingResult{}, result)
}

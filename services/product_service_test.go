package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/notifyroute"
)

func TestProductCRUD(t *testing.T) {
	db := setupTestDB(t)
	hub := &recordingDispatcher{}
	svc := NewProductService(db, hub, NewBidService(db, nil))
	farmer := createUser(t, db, "Ramesh", models.RoleFarmer)
	merchant := createUser(t, db, "Sunita", models.RoleMerchant)
	ctx := context.Background()

	_, err := svc.CreateProduct(ctx, merchant.ID, ProductInput{Name: "Onions", Price: 20, Quantity: 100})
	assert.True(t, IsAuthorization(err))
	_, err = svc.CreateProduct(ctx, farmer.ID, ProductInput{Name: "Onions", Price: 0, Quantity: 100})
	assert.True(t, IsValidation(err))
	_, err = svc.CreateProduct(ctx, farmer.ID, ProductInput{Name: "Onions", Price: 20})
	assert.True(t, IsValidation(err))

	p, err := svc.CreateProduct(ctx, farmer.ID, ProductInput{Name: " Onions ", Price: 20, Quantity: 100})
	require.NoError(t, err)
	assert.Equal(t, "Onions", p.Name)
	assert.Equal(t, "kg", p.Unit)
	require.Len(t, hub.broadcasts, 1, "only the successful listing is broadcast")
	assert.Equal(t, models.RoleMerchant, hub.broadcasts[0].Role)
	assert.Equal(t, EventProductListed, hub.broadcasts[0].Event)

	_, err = svc.CreateProduct(ctx, farmer.ID, ProductInput{Name: "Red Chillies", Price: 120, Quantity: 40})
	require.NoError(t, err)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Farmer)
	assert.Equal(t, "Ramesh", got.Farmer.Name)
	_, err = svc.GetProduct(ctx, 999)
	assert.ErrorIs(t, err, ErrProductNotFound)

	list, total, err := svc.ListProducts(ctx, ProductFilter{Search: "chill"})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Red Chillies", list[0].Name)

	_, err = svc.UpdateProduct(ctx, p.ID, merchant.ID, ProductInput{Name: "x", Price: 1, Quantity: 1})
	assert.True(t, IsAuthorization(err))
	updated, err := svc.UpdateProduct(ctx, p.ID, farmer.ID, ProductInput{Name: "Onions (Nashik)", Price: 22, Quantity: 0})
	require.NoError(t, err)
	assert.Equal(t, 22.0, updated.Price)

	list, total, err = svc.ListProducts(ctx, ProductFilter{AvailableOnly: true})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, "Red Chillies", list[0].Name)
}

func TestDeleteProduct(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	svc := NewProductService(f.db, nil, f.svc)
	ctx := context.Background()

	pending := f.place(t, f.merchant.ID, 90, 10)
	accepted := f.place(t, f.merchant.ID, 95, 10)
	_, err := f.svc.AcceptBid(ctx, accepted.ID, f.farmer.ID)
	require.NoError(t, err)

	err = svc.DeleteProduct(ctx, f.product.ID, f.merchant.ID)
	assert.True(t, IsAuthorization(err))
	err = svc.DeleteProduct(ctx, f.product.ID, f.farmer.ID)
	assert.True(t, IsInvalidState(err))

	_, err = f.svc.CancelBid(ctx, accepted.ID, f.farmer.ID)
	require.NoError(t, err)
	require.NoError(t, svc.DeleteProduct(ctx, f.product.ID, f.farmer.ID))

	assert.Equal(t, models.BidRejected, f.reload(t, pending.ID).Status)
	_, err = svc.GetProduct(ctx, f.product.ID)
	assert.ErrorIs(t, err, ErrProductNotFound)

	// the waiting merchant hears about it like any other rejection
	notes := storedNotifications(t, f.db, f.merchant.ID)
	require.NotEmpty(t, notes)
	last := notes[len(notes)-1]
	assert.Equal(t, notifyroute.TypeBidRejected, last.Type)
	assert.Equal(t, pending.ID, last.RelatedID)
	assert.Contains(t, last.Message, "the listing was removed")

	pushed := f.hub.notifications(f.merchant.ID)
	require.NotEmpty(t, pushed)
	assert.Equal(t, last.ID, pushed[len(pushed)-1].ID)
	assert.Zero(t, f.svc.locks.size())
}

func TestDeleteProductWithoutBids(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	svc := NewProductService(f.db, nil, f.svc)

	require.NoError(t, svc.DeleteProduct(context.Background(), f.product.ID, f.farmer.ID))
	assert.Empty(t, storedNotifications(t, f.db, f.merchant.ID))
	assert.ErrorIs(t, svc.DeleteProduct(context.Background(), f.product.ID, f.farmer.ID), ErrProductNotFound)
}

func TestKeyedMutexReleasesEntries(t *testing.T) {
	k := newKeyedMutex()
	unlock := k.Lock(7)
	assert.Equal(t, 1, k.size())

	done := make(chan struct{})
	go func() {
		u := k.Lock(7)
		u()
		close(done)
	}()
	unlock()
	<-done
	assert.Zero(t, k.size())
}

package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/yeremiapane/agrimarket/models"
	"github.com/yeremiapane/agrimarket/notifyroute"
)

type bidFixture struct {
	db       *gorm.DB
	hub      *recordingDispatcher
	svc      *BidService
	farmer   models.User
	merchant models.User
	product  models.Product
}

func newBidFixture(t *testing.T, price, qty float64) *bidFixture {
	db := setupTestDB(t)
	hub := &recordingDispatcher{}
	f := &bidFixture{db: db, hub: hub, svc: NewBidService(db, hub)}
	f.farmer = createUser(t, db, "Ramesh", models.RoleFarmer)
	f.merchant = createUser(t, db, "Sunita Traders", models.RoleMerchant)
	f.product = createProduct(t, db, f.farmer.ID, "Tomatoes", price, qty)
	return f
}

func (f *bidFixture) place(t *testing.T, merchantID uint, amount, weight float64) *models.Bid {
	t.Helper()
	bid, err := f.svc.PlaceBid(context.Background(), PlaceBidInput{
		MerchantID: merchantID, ProductID: f.product.ID, BidAmount: amount, OrderWeight: weight,
	})
	require.NoError(t, err)
	return bid
}

func (f *bidFixture) reload(t *testing.T, id uint) models.Bid {
	t.Helper()
	var b models.Bid
	require.NoError(t, f.db.First(&b, id).Error)
	return b
}

func (f *bidFixture) quantity(t *testing.T) float64 {
	t.Helper()
	var p models.Product
	require.NoError(t, f.db.First(&p, f.product.ID).Error)
	return p.Quantity
}

func TestPlaceBidNotifiesFarmer(t *testing.T) {
	f := newBidFixture(t, 80, 200)

	bid := f.place(t, f.merchant.ID, 100, 50)
	assert.Equal(t, models.BidPending, bid.Status)
	assert.Equal(t, f.farmer.ID, bid.FarmerID)
	assert.Equal(t, "Tomatoes", bid.ProductName)
	assert.Equal(t, "Sunita Traders", bid.MerchantName)
	assert.Equal(t, f.merchant.Phone, bid.MerchantPhone)

	notes := storedNotifications(t, f.db, f.farmer.ID)
	require.Len(t, notes, 1)
	n := notes[0]
	assert.Equal(t, notifyroute.TypeNewBid, n.Type)
	assert.Equal(t, float64(100), n.Metadata[notifyroute.KeyAmount])
	assert.Equal(t, idString(bid.ID), n.Metadata[notifyroute.KeyBidID])
	assert.Equal(t, idString(f.product.ID), n.Metadata[notifyroute.KeyItemID])
	assert.Equal(t, idString(f.merchant.ID), n.Metadata[notifyroute.KeyMerchantID])
	assert.Equal(t, bid.ID, n.RelatedID)
	assert.Equal(t, 1, n.Priority)
	assert.False(t, n.IsRead)

	route := notifyroute.ResolveRoute(n.Type, n.Payload(), notifyroute.RoleFarmer, n.IsRead)
	assert.Equal(t, "/accept-reject-bids?itemId="+idString(f.product.ID), route.Path)
	assert.True(t, route.MarkAsRead)

	pushed := f.hub.notifications(f.farmer.ID)
	require.Len(t, pushed, 1)
	assert.Equal(t, n.ID, pushed[0].ID)
	assert.Equal(t, "gavel", pushed[0].Display.Icon)

	assert.Equal(t, float64(200), f.quantity(t), "placing a bid does not reserve stock")
}

func TestPlaceBidValidation(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	farmer2 := createUser(t, f.db, "Other Farmer", models.RoleFarmer)
	ctx := context.Background()

	cases := []struct {
		name  string
		in    PlaceBidInput
		check func(error) bool
	}{
		{"below listed price", PlaceBidInput{f.merchant.ID, f.product.ID, 79.99, 10}, IsValidation},
		{"zero weight", PlaceBidInput{f.merchant.ID, f.product.ID, 90, 0}, IsValidation},
		{"negative price", PlaceBidInput{f.merchant.ID, f.product.ID, -5, 10}, IsValidation},
		{"more than available", PlaceBidInput{f.merchant.ID, f.product.ID, 90, 200.5}, IsValidation},
		{"farmer cannot bid", PlaceBidInput{farmer2.ID, f.product.ID, 90, 10}, IsAuthorization},
		{"unknown product", PlaceBidInput{f.merchant.ID, 9999, 90, 10}, func(err error) bool { return errors.Is(err, ErrProductNotFound) }},
		{"unknown merchant", PlaceBidInput{9999, f.product.ID, 90, 10}, func(err error) bool { return errors.Is(err, ErrUserNotFound) }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.svc.PlaceBid(ctx, tc.in)
			require.Error(t, err)
			assert.True(t, tc.check(err), "unexpected error %v", err)
		})
	}

	var count int64
	f.db.Model(&models.Bid{}).Count(&count)
	assert.Zero(t, count)
	assert.Empty(t, storedNotifications(t, f.db, f.farmer.ID))
}

func TestPlaceBidAtListedPriceAndFullQuantity(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	bid := f.place(t, f.merchant.ID, 80, 200)
	assert.Equal(t, models.BidPending, bid.Status)
}

func TestAcceptBidReservesQuantity(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	bid := f.place(t, f.merchant.ID, 100, 50)

	accepted, err := f.svc.AcceptBid(context.Background(), bid.ID, f.farmer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidAccepted, accepted.Status)
	assert.Equal(t, models.BidAccepted, f.reload(t, bid.ID).Status)
	assert.Equal(t, float64(150), f.quantity(t))

	notes := storedNotifications(t, f.db, f.merchant.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, notifyroute.TypeBidAccepted, notes[0].Type)
	route := notifyroute.ResolveRoute(notes[0].Type, notes[0].Payload(), notifyroute.RoleMerchant, false)
	assert.Equal(t, "/merchant/bids?bidId="+idString(bid.ID)+"&status=accepted", route.Path)
}

func TestAcceptBidByNonOwnerIsForbidden(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	bid := f.place(t, f.merchant.ID, 100, 50)
	intruder := createUser(t, f.db, "Intruder", models.RoleFarmer)

	_, err := f.svc.AcceptBid(context.Background(), bid.ID, intruder.ID)
	require.Error(t, err)
	assert.True(t, IsAuthorization(err))
	assert.Equal(t, models.BidPending, f.reload(t, bid.ID).Status)
	assert.Equal(t, float64(200), f.quantity(t))
	assert.Empty(t, storedNotifications(t, f.db, f.merchant.ID))
}

func TestAcceptLastStockOnlyOnce(t *testing.T) {
	f := newBidFixture(t, 80, 10)
	other := createUser(t, f.db, "Second Merchant", models.RoleMerchant)
	first := f.place(t, f.merchant.ID, 90, 10)
	second := f.place(t, other.ID, 95, 10)

	_, err := f.svc.AcceptBid(context.Background(), first.ID, f.farmer.ID)
	require.NoError(t, err)

	_, err = f.svc.AcceptBid(context.Background(), second.ID, f.farmer.ID)
	require.Error(t, err)
	var stateErr *InvalidStateError
	require.True(t, errors.As(err, &stateErr))
	assert.Equal(t, "bid no longer available", stateErr.Error())

	assert.Equal(t, models.BidPending, f.reload(t, second.ID).Status)
	assert.Equal(t, float64(0), f.quantity(t))
	assert.Empty(t, storedNotifications(t, f.db, other.ID))
}

func TestConcurrentAcceptsOnLastStock(t *testing.T) {
	f := newBidFixture(t, 80, 10)
	other := createUser(t, f.db, "Second Merchant", models.RoleMerchant)
	bids := []*models.Bid{
		f.place(t, f.merchant.ID, 90, 10),
		f.place(t, other.ID, 95, 10),
	}

	var wg sync.WaitGroup
	errs := make([]error, len(bids))
	for i, b := range bids {
		wg.Add(1)
		go func(i int, id uint) {
			defer wg.Done()
			_, errs[i] = f.svc.AcceptBid(context.Background(), id, f.farmer.ID)
		}(i, b.ID)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			wins++
		case IsInvalidState(err):
			losses++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, float64(0), f.quantity(t))
	assert.Zero(t, f.svc.locks.size())
}

func TestConcurrentAcceptSameBid(t *testing.T) {
	f := newBidFixture(t, 80, 100)
	bid := f.place(t, f.merchant.ID, 90, 10)

	var wg sync.WaitGroup
	errs := make(chan error, 5)
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.svc.AcceptBid(context.Background(), bid.ID, f.farmer.ID)
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	wins := 0
	for err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, IsInvalidState(err), "unexpected error %v", err)
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, float64(90), f.quantity(t))
}

func TestPlaceBidCommitsBeforeTakingBidLock(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	first := f.place(t, f.merchant.ID, 90, 10)
	nextID := first.ID + 1

	// a transition on the id the next bid will get, waiting for the connection
	unlock := f.svc.locks.Lock(nextID)
	placed := make(chan error, 1)
	go func() {
		_, err := f.svc.PlaceBid(context.Background(), PlaceBidInput{
			MerchantID: f.merchant.ID, ProductID: f.product.ID, BidAmount: 85, OrderWeight: 5,
		})
		placed <- err
	}()

	assert.Eventually(t, func() bool {
		ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
		defer cancel()
		var n int64
		err := f.db.WithContext(ctx).Model(&models.Bid{}).Where("id = ?", nextID).Count(&n).Error
		return err == nil && n == 1
	}, 2*time.Second, 20*time.Millisecond, "bid must commit and free the connection while its lock is held")

	select {
	case <-placed:
		t.Fatal("newBid was pushed without the bid lock")
	default:
	}
	unlock()
	require.NoError(t, <-placed)
	assert.Len(t, f.hub.notifications(f.farmer.ID), 2)
}

func TestAdminCanRecordPayment(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	admin := createUser(t, f.db, "Admin", models.RoleAdmin)
	bid := f.place(t, f.merchant.ID, 100, 10)
	ctx := context.Background()

	_, err := f.svc.AcceptBid(ctx, bid.ID, f.farmer.ID)
	require.NoError(t, err)
	paid, _, err := f.svc.RecordPayment(ctx, bid.ID, admin.ID, models.RoleAdmin, PaymentInput{Method: "cash"})
	require.NoError(t, err)
	assert.Equal(t, models.BidPaid, paid.Status)
}

func TestConcurrentAcceptAndReject(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	ctx := context.Background()

	for round := 0; round < 10; round++ {
		bid := f.place(t, f.merchant.ID, 90, 10)
		before := f.quantity(t)
		seen := len(storedNotifications(t, f.db, f.merchant.ID))

		var (
			wg                   sync.WaitGroup
			acceptErr, rejectErr error
		)
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, acceptErr = f.svc.AcceptBid(ctx, bid.ID, f.farmer.ID)
		}()
		go func() {
			defer wg.Done()
			_, rejectErr = f.svc.RejectBid(ctx, bid.ID, f.farmer.ID)
		}()
		wg.Wait()

		require.True(t, (acceptErr == nil) != (rejectErr == nil),
			"round %d: accept=%v reject=%v", round, acceptErr, rejectErr)
		notes := storedNotifications(t, f.db, f.merchant.ID)[seen:]
		require.Len(t, notes, 1)

		if acceptErr == nil {
			assert.True(t, IsInvalidState(rejectErr))
			assert.Equal(t, models.BidAccepted, f.reload(t, bid.ID).Status)
			assert.Equal(t, before-10, f.quantity(t))
			assert.Equal(t, notifyroute.TypeBidAccepted, notes[0].Type)
		} else {
			assert.True(t, IsInvalidState(acceptErr))
			assert.Equal(t, models.BidRejected, f.reload(t, bid.ID).Status)
			assert.Equal(t, before, f.quantity(t))
			assert.Equal(t, notifyroute.TypeBidRejected, notes[0].Type)
		}
	}
	assert.Zero(t, f.svc.locks.size())
}

func TestRejectBid(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	bid := f.place(t, f.merchant.ID, 100, 50)
	ctx := context.Background()

	_, err := f.svc.RejectBid(ctx, bid.ID, f.merchant.ID)
	assert.True(t, IsAuthorization(err))

	rejected, err := f.svc.RejectBid(ctx, bid.ID, f.farmer.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidRejected, rejected.Status)
	assert.Equal(t, float64(200), f.quantity(t))

	_, err = f.svc.AcceptBid(ctx, bid.ID, f.farmer.ID)
	assert.True(t, IsInvalidState(err))

	notes := storedNotifications(t, f.db, f.merchant.ID)
	require.Len(t, notes, 1)
	assert.Equal(t, notifyroute.TypeBidRejected, notes[0].Type)
}

func TestUnknownBid(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	_, err := f.svc.AcceptBid(context.Background(), 4242, f.farmer.ID)
	assert.ErrorIs(t, err, ErrBidNotFound)
	_, err = f.svc.MarkDelivered(context.Background(), 4242)
	assert.ErrorIs(t, err, ErrBidNotFound)
}

func TestRecordPayment(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	bid := f.place(t, f.merchant.ID, 80.5, 12.25)
	ctx := context.Background()

	_, _, err := f.svc.RecordPayment(ctx, bid.ID, f.merchant.ID, models.RoleMerchant, PaymentInput{})
	assert.True(t, IsInvalidState(err), "pending bids cannot be paid")

	_, err = f.svc.AcceptBid(ctx, bid.ID, f.farmer.ID)
	require.NoError(t, err)

	rival := createUser(t, f.db, "Rival Traders", models.RoleMerchant)
	_, _, err = f.svc.RecordPayment(ctx, bid.ID, rival.ID, models.RoleMerchant, PaymentInput{})
	assert.True(t, IsAuthorization(err), "another merchant cannot pay this bid")
	assert.Equal(t, models.BidAccepted, f.reload(t, bid.ID).Status)

	paid, payment, err := f.svc.RecordPayment(ctx, bid.ID, f.merchant.ID, models.RoleMerchant, PaymentInput{Reference: "UTR123"})
	require.NoError(t, err)
	assert.Equal(t, models.BidPaid, paid.Status)
	assert.Equal(t, 986.13, payment.Amount)
	assert.Equal(t, "bank_transfer", payment.Method)
	assert.Equal(t, "UTR123", payment.Reference)

	farmerNotes := storedNotifications(t, f.db, f.farmer.ID)
	require.Len(t, farmerNotes, 2)
	assert.Equal(t, notifyroute.TypePaymentReceived, farmerNotes[1].Type)

	pushed := f.hub.notifications(f.merchant.ID)
	require.Len(t, pushed, 2)
	assert.Equal(t, notifyroute.TypeBidAccepted, pushed[0].Type)
	assert.Equal(t, notifyroute.TypeOrderConfirmed, pushed[1].Type)

	_, _, err = f.svc.RecordPayment(ctx, bid.ID, f.merchant.ID, models.RoleMerchant, PaymentInput{})
	assert.True(t, IsInvalidState(err), "second payment")
	var count int64
	f.db.Model(&models.Payment{}).Count(&count)
	assert.EqualValues(t, 1, count)
}

func TestConfirmThenPayThenDeliver(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	bid := f.place(t, f.merchant.ID, 100, 50)
	ctx := context.Background()

	_, err := f.svc.AcceptBid(ctx, bid.ID, f.farmer.ID)
	require.NoError(t, err)

	_, err = f.svc.ConfirmBid(ctx, bid.ID, f.farmer.ID)
	assert.True(t, IsAuthorization(err))
	confirmed, err := f.svc.ConfirmBid(ctx, bid.ID, f.merchant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidConfirmed, confirmed.Status)

	_, err = f.svc.MarkDelivered(ctx, bid.ID)
	assert.True(t, IsInvalidState(err), "delivery needs payment first")

	_, payment, err := f.svc.RecordPayment(ctx, bid.ID, f.merchant.ID, models.RoleMerchant, PaymentInput{Method: "upi"})
	require.NoError(t, err)
	assert.Equal(t, float64(5000), payment.Amount)

	delivered, err := f.svc.MarkDelivered(ctx, bid.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidDelivered, delivered.Status)
	assert.True(t, delivered.Status.Terminal())

	for _, id := range []uint{f.farmer.ID, f.merchant.ID} {
		notes := storedNotifications(t, f.db, id)
		last := notes[len(notes)-1]
		assert.Equal(t, notifyroute.TypeCollectionUpdate, last.Type)
	}

	_, err = f.svc.CancelBid(ctx, bid.ID, f.merchant.ID)
	assert.True(t, IsInvalidState(err))
}

func TestCancelBidRestoresQuantity(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	bid := f.place(t, f.merchant.ID, 100, 50)
	ctx := context.Background()

	_, err := f.svc.CancelBid(ctx, bid.ID, f.merchant.ID)
	assert.True(t, IsInvalidState(err), "pending bids are rejected, not cancelled")

	_, err = f.svc.AcceptBid(ctx, bid.ID, f.farmer.ID)
	require.NoError(t, err)
	assert.Equal(t, float64(150), f.quantity(t))

	stranger := createUser(t, f.db, "Stranger", models.RoleMerchant)
	_, err = f.svc.CancelBid(ctx, bid.ID, stranger.ID)
	assert.True(t, IsAuthorization(err))

	cancelled, err := f.svc.CancelBid(ctx, bid.ID, f.merchant.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BidCancelled, cancelled.Status)
	assert.Equal(t, float64(200), f.quantity(t))

	notes := storedNotifications(t, f.db, f.farmer.ID)
	last := notes[len(notes)-1]
	assert.Equal(t, notifyroute.TypeGeneral, last.Type)
	route := notifyroute.ResolveRoute(last.Type, last.Payload(), notifyroute.RoleFarmer, false)
	assert.Equal(t, "/", route.Path)
}

func TestBidUpdatesFollowTransitionOrder(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	bid := f.place(t, f.merchant.ID, 100, 50)
	ctx := context.Background()

	_, err := f.svc.AcceptBid(ctx, bid.ID, f.farmer.ID)
	require.NoError(t, err)
	_, err = f.svc.ConfirmBid(ctx, bid.ID, f.merchant.ID)
	require.NoError(t, err)
	_, _, err = f.svc.RecordPayment(ctx, bid.ID, f.merchant.ID, models.RoleMerchant, PaymentInput{})
	require.NoError(t, err)

	var statuses []models.BidStatus
	for _, e := range f.hub.events {
		if e.UserID == f.merchant.ID && e.Event == EventBidUpdate {
			statuses = append(statuses, e.Data.(models.Bid).Status)
		}
	}
	assert.Equal(t, []models.BidStatus{models.BidAccepted, models.BidConfirmed, models.BidPaid}, statuses)
}

func TestGetAndListBids(t *testing.T) {
	f := newBidFixture(t, 80, 200)
	other := createUser(t, f.db, "Second Merchant", models.RoleMerchant)
	transporter := createUser(t, f.db, "Truck Co", models.RoleTransporter)
	admin := createUser(t, f.db, "Admin", models.RoleAdmin)
	b1 := f.place(t, f.merchant.ID, 100, 10)
	f.place(t, other.ID, 90, 20)
	ctx := context.Background()

	got, err := f.svc.GetBid(ctx, b1.ID, f.farmer.ID, models.RoleFarmer)
	require.NoError(t, err)
	assert.Equal(t, b1.ID, got.ID)
	_, err = f.svc.GetBid(ctx, b1.ID, other.ID, models.RoleMerchant)
	assert.True(t, IsAuthorization(err))
	_, err = f.svc.GetBid(ctx, b1.ID, transporter.ID, models.RoleTransporter)
	assert.True(t, IsAuthorization(err))
	_, err = f.svc.GetBid(ctx, 999, admin.ID, models.RoleAdmin)
	assert.ErrorIs(t, err, ErrBidNotFound)

	bids, total, err := f.svc.ListBids(ctx, BidFilter{ViewerID: f.farmer.ID, Role: models.RoleFarmer})
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	assert.Len(t, bids, 2)

	bids, total, err = f.svc.ListBids(ctx, BidFilter{ViewerID: other.ID, Role: models.RoleMerchant})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, other.ID, bids[0].MerchantID)

	_, err = f.svc.AcceptBid(ctx, b1.ID, f.farmer.ID)
	require.NoError(t, err)
	bids, _, err = f.svc.ListBids(ctx, BidFilter{ViewerID: admin.ID, Role: models.RoleAdmin, Status: models.BidAccepted})
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, b1.ID, bids[0].ID)

	bids, total, err = f.svc.ListBids(ctx, BidFilter{ViewerID: transporter.ID, Role: models.RoleTransporter})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, bids)
}

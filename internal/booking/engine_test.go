package booking

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"decorbook/internal/apperr"
	"decorbook/internal/catalog"
	"decorbook/internal/user"
)

const (
	customerEmail  = "cust@x.com"
	otherEmail     = "other@x.com"
	adminEmail     = "admin@x.com"
	admin2Email    = "admin2@x.com"
	decoratorEmail = "d@x.com"
	decorator2     = "d2@x.com"
)

var fixedNow = time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

type fixture struct {
	engine    *Engine
	store     *memStore
	services  memServices
	users     memUsers
	serviceID string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	serviceID := uuid.NewString()
	services := memServices{
		serviceID: {
			ID:       serviceID,
			Name:     "Grand Wedding Stage",
			Category: catalog.CategoryWedding,
			Cost:     decimal.NewFromInt(5000),
			Unit:     "per event",
			Image:    "https://img.example/stage.jpg",
		},
	}
	users := memUsers{
		customerEmail:  {Email: customerEmail, Name: "Cust", Role: user.RoleUser},
		otherEmail:     {Email: otherEmail, Name: "Other", Role: user.RoleUser},
		adminEmail:     {Email: adminEmail, Name: "Admin", Role: user.RoleAdmin},
		admin2Email:    {Email: admin2Email, Name: "Admin Two", Role: user.RoleAdmin},
		decoratorEmail: {Email: decoratorEmail, Name: "Dec", Role: user.RoleDecorator},
		decorator2:     {Email: decorator2, Name: "Dec Two", Role: user.RoleDecorator},
	}
	store := newMemStore()
	e := NewEngine(store, services, users, time.UTC)
	e.Now = func() time.Time { return fixedNow }
	return &fixture{engine: e, store: store, services: services, users: users, serviceID: serviceID}
}

func tomorrow() string {
	return fixedNow.AddDate(0, 0, 1).Format(DateLayout)
}

func (f *fixture) create(t *testing.T) *Booking {
	t.Helper()
	b, err := f.engine.CreateBooking(context.Background(), CreateInput{
		RequesterEmail: customerEmail,
		ServiceID:      f.serviceID,
		BookingDate:    tomorrow(),
		Location:       "Gulshan 2, Dhaka",
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) pay(t *testing.T, id, txn string) *Booking {
	t.Helper()
	b, _, err := f.engine.RecordPayment(context.Background(), PaymentInput{
		BookingID: id, TransactionID: txn, Amount: decimal.NewFromInt(5000), Currency: "BDT",
	})
	require.NoError(t, err)
	return b
}

func (f *fixture) assigned(t *testing.T) *Booking {
	t.Helper()
	b := f.create(t)
	f.pay(t, b.ID, "txn-"+b.ID)
	b, err := f.engine.AssignDecorator(context.Background(), b.ID, decoratorEmail, adminEmail)
	require.NoError(t, err)
	return b
}

func requireKind(t *testing.T, err error, kind apperr.Kind) {
	t.Helper()
	require.Error(t, err)
	require.Equal(t, kind, apperr.KindOf(err), "got %v", err)
}

func TestLifecycle_EndToEnd(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t)
	assert.Equal(t, StatusPending, b.Status)
	assert.Equal(t, PaymentUnpaid, b.PaymentStatus)
	assert.Nil(t, b.AssignedDecorator)
	assert.Equal(t, "Grand Wedding Stage", b.ServiceName)
	assert.Equal(t, "Cust", b.CustomerName)

	b, p, err := f.engine.RecordPayment(ctx, PaymentInput{
		BookingID: b.ID, TransactionID: "t1", Amount: decimal.NewFromInt(5000), Currency: "BDT",
	})
	require.NoError(t, err)
	assert.Equal(t, PaymentPaid, b.PaymentStatus)
	assert.Equal(t, "t1", p.TransactionID)
	assert.Equal(t, "bdt", p.Currency)

	b, err = f.engine.AssignDecorator(ctx, b.ID, decoratorEmail, adminEmail)
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, b.Status)
	require.NotNil(t, b.AssignedDecorator)
	assert.Equal(t, decoratorEmail, *b.AssignedDecorator)

	want := []Status{StatusPlanning, StatusMaterialsPrepared, StatusOnTheWay, StatusSetupInProgress, StatusCompleted}
	for _, s := range want {
		b, err = f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: decoratorEmail})
		require.NoError(t, err)
		assert.Equal(t, s, b.Status)
	}

	_, err = f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: decoratorEmail})
	requireKind(t, err, apperr.KindTerminalState)

	stored, err := f.engine.Get(ctx, b.ID, customerEmail)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, stored.Status)
	assert.Equal(t, 1+1+1+5, stored.Version)

	evs, err := f.engine.Events(ctx, b.ID, adminEmail)
	require.NoError(t, err)
	assert.Len(t, evs, 8)
}

func TestCancel_ThenPayAndAssignFail(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)

	b, err := f.engine.CancelBooking(ctx, b.ID, customerEmail)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, b.Status)

	_, _, err = f.engine.RecordPayment(ctx, PaymentInput{BookingID: b.ID, TransactionID: "t9", Amount: decimal.NewFromInt(5000)})
	requireKind(t, err, apperr.KindInvalidTransition)

	_, err = f.engine.AssignDecorator(ctx, b.ID, decoratorEmail, adminEmail)
	requireKind(t, err, apperr.KindInvalidTransition)

	_, err = f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: decoratorEmail})
	requireKind(t, err, apperr.KindTerminalState)

	assert.Equal(t, 0, f.store.paymentCount())
}

func TestCancel_OnlyOwnerOnlyPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t)
	_, err := f.engine.CancelBooking(ctx, b.ID, otherEmail)
	requireKind(t, err, apperr.KindForbidden)

	a := f.assigned(t)
	_, err = f.engine.CancelBooking(ctx, a.ID, customerEmail)
	requireKind(t, err, apperr.KindInvalidTransition)
}

func TestCancel_PaidPendingBookingIsAllowed(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	f.pay(t, b.ID, "t1")

	got, err := f.engine.CancelBooking(context.Background(), b.ID, customerEmail)
	require.NoError(t, err)
	assert.Equal(t, StatusCancelled, got.Status)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
}

func TestRecordPayment_IdempotentOnTransactionID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)

	in := PaymentInput{BookingID: b.ID, TransactionID: "t1", Amount: decimal.NewFromInt(5000)}
	_, p1, err := f.engine.RecordPayment(ctx, in)
	require.NoError(t, err)
	got, p2, err := f.engine.RecordPayment(ctx, in)
	require.NoError(t, err)

	assert.Equal(t, p1.ID, p2.ID)
	assert.Equal(t, PaymentPaid, got.PaymentStatus)
	assert.Equal(t, 1, f.store.paymentCount())

	all, err := f.engine.ListAll(ctx, adminEmail, "")
	require.NoError(t, err)
	sum := ComputeRevenueSummary(all)
	assert.True(t, sum.TotalRevenue.Equal(decimal.NewFromInt(5000)), "revenue=%s", sum.TotalRevenue)
	assert.Equal(t, 1, sum.PaidCount)
}

func TestRecordPayment_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	b := f.create(t)
	_, _, err := f.engine.RecordPayment(ctx, PaymentInput{BookingID: b.ID, TransactionID: "t1", Amount: decimal.NewFromInt(4999)})
	requireKind(t, err, apperr.KindAmountMismatch)

	_, _, err = f.engine.RecordPayment(ctx, PaymentInput{BookingID: b.ID, TransactionID: " ", Amount: decimal.NewFromInt(5000)})
	requireKind(t, err, apperr.KindValidation)

	f.pay(t, b.ID, "t1")
	_, _, err = f.engine.RecordPayment(ctx, PaymentInput{BookingID: b.ID, TransactionID: "t2", Amount: decimal.NewFromInt(5000)})
	requireKind(t, err, apperr.KindAlreadyPaid)

	other := f.create(t)
	_, _, err = f.engine.RecordPayment(ctx, PaymentInput{BookingID: other.ID, TransactionID: "t1", Amount: decimal.NewFromInt(5000)})
	requireKind(t, err, apperr.KindValidation)
	stored, err := f.store.Get(ctx, other.ID)
	require.NoError(t, err)
	assert.Equal(t, PaymentUnpaid, stored.PaymentStatus)

	_, _, err = f.engine.RecordPayment(ctx, PaymentInput{BookingID: uuid.NewString(), TransactionID: "t3", Amount: decimal.NewFromInt(5000)})
	requireKind(t, err, apperr.KindNotFound)
}

func TestRecordPayment_ConcurrentReplayResolvesToOnePayment(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)

	f.store.afterGet = raceBarrier(2)

	in := PaymentInput{BookingID: b.ID, TransactionID: "t1", Amount: decimal.NewFromInt(5000)}
	var wg sync.WaitGroup
	errs := make([]error, 2)
	pays := make([]*Payment, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, pays[i], errs[i] = f.engine.RecordPayment(context.Background(), in)
		}(i)
	}
	wg.Wait()
	f.store.afterGet = nil

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, pays[0].ID, pays[1].ID)
	assert.Equal(t, 1, f.store.paymentCount())
}

func TestAssignDecorator_Preconditions(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.create(t)

	_, err := f.engine.AssignDecorator(ctx, b.ID, decoratorEmail, adminEmail)
	requireKind(t, err, apperr.KindNotPayable)

	f.pay(t, b.ID, "t1")

	_, err = f.engine.AssignDecorator(ctx, b.ID, decoratorEmail, customerEmail)
	requireKind(t, err, apperr.KindForbidden)

	_, err = f.engine.AssignDecorator(ctx, b.ID, decoratorEmail, decoratorEmail)
	requireKind(t, err, apperr.KindForbidden)

	_, err = f.engine.AssignDecorator(ctx, b.ID, otherEmail, adminEmail)
	requireKind(t, err, apperr.KindValidation)

	_, err = f.engine.AssignDecorator(ctx, b.ID, "ghost@x.com", adminEmail)
	requireKind(t, err, apperr.KindValidation)

	got, err := f.engine.AssignDecorator(ctx, b.ID, " D@X.com ", adminEmail)
	require.NoError(t, err)
	assert.Equal(t, decoratorEmail, *got.AssignedDecorator)

	_, err = f.engine.AssignDecorator(ctx, b.ID, decorator2, adminEmail)
	requireKind(t, err, apperr.KindInvalidTransition)
}

func TestAdvanceStatus_Guards(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.create(t)
	_, err := f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: pending.ID, RequesterEmail: decoratorEmail})
	requireKind(t, err, apperr.KindInvalidTransition)

	b := f.assigned(t)
	_, err = f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: decorator2})
	requireKind(t, err, apperr.KindForbidden)

	_, err = f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: adminEmail})
	requireKind(t, err, apperr.KindForbidden)

	// A stranger naming a wrong stage is still refused for rights, not told the real next stage.
	_, err = f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: decorator2, Expect: StatusOnTheWay})
	requireKind(t, err, apperr.KindForbidden)

	_, err = f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: "ghost@x.com"})
	requireKind(t, err, apperr.KindForbidden)

	_, err = f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: decoratorEmail, Expect: StatusOnTheWay})
	requireKind(t, err, apperr.KindInvalidTransition)

	got, err := f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: decoratorEmail, Expect: StatusPlanning})
	require.NoError(t, err)
	assert.Equal(t, StatusPlanning, got.Status)

	_, err = f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: "not-a-uuid", RequesterEmail: decoratorEmail})
	requireKind(t, err, apperr.KindNotFound)
}

func TestAdvanceStatus_ConcurrentCallsYieldOneConflict(t *testing.T) {
	f := newFixture(t)
	b := f.assigned(t)

	f.store.afterGet = raceBarrier(2)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.AdvanceStatus(context.Background(), AdvanceInput{BookingID: b.ID, RequesterEmail: decoratorEmail})
		}(i)
	}
	wg.Wait()
	f.store.afterGet = nil

	ok, conflicts := 0, 0
	for _, err := range errs {
		switch {
		case err == nil:
			ok++
		case apperr.KindOf(err) == apperr.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, conflicts)

	stored, err := f.store.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPlanning, stored.Status)
}

func TestAdvanceStatus_DemotedDecoratorIsRefused(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.assigned(t)

	f.users[decoratorEmail].Role = user.RoleUser
	_, err := f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: decoratorEmail})
	requireKind(t, err, apperr.KindForbidden)

	stored, err := f.store.Get(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, stored.Status)
	assert.Equal(t, b.Version, stored.Version)

	f.users[decoratorEmail].Role = user.RoleDecorator
	got, err := f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: decoratorEmail})
	require.NoError(t, err)
	assert.Equal(t, StatusPlanning, got.Status)
}

func TestAssignDecorator_ConcurrentCallsYieldOneConflict(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)
	f.pay(t, b.ID, "t1")

	f.store.afterGet = raceBarrier(2)

	admins := []string{adminEmail, admin2Email}
	decorators := []string{decoratorEmail, decorator2}
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.engine.AssignDecorator(context.Background(), b.ID, decorators[i], admins[i])
		}(i)
	}
	wg.Wait()
	f.store.afterGet = nil

	winner := -1
	conflicts := 0
	for i, err := range errs {
		switch {
		case err == nil:
			winner = i
		case apperr.KindOf(err) == apperr.KindConflict:
			conflicts++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	require.NotEqual(t, -1, winner, "one assignment must succeed")
	assert.Equal(t, 1, conflicts)

	stored, err := f.store.Get(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusAssigned, stored.Status)
	require.NotNil(t, stored.AssignedDecorator)
	assert.Equal(t, decorators[winner], *stored.AssignedDecorator)

	evs, err := f.store.Events(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Len(t, evs, 3)
}

func TestCreateBooking_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	base := CreateInput{RequesterEmail: customerEmail, ServiceID: f.serviceID, BookingDate: tomorrow(), Location: "Banani"}

	in := base
	in.BookingDate = fixedNow.AddDate(0, 0, -1).Format(DateLayout)
	_, err := f.engine.CreateBooking(ctx, in)
	requireKind(t, err, apperr.KindValidation)

	in = base
	in.BookingDate = "10/03/2026"
	_, err = f.engine.CreateBooking(ctx, in)
	requireKind(t, err, apperr.KindValidation)

	in = base
	in.Location = "   "
	_, err = f.engine.CreateBooking(ctx, in)
	requireKind(t, err, apperr.KindValidation)

	in = base
	in.ServiceID = uuid.NewString()
	_, err = f.engine.CreateBooking(ctx, in)
	requireKind(t, err, apperr.KindNotFound)

	in = base
	in.RequesterEmail = "stranger@x.com"
	_, err = f.engine.CreateBooking(ctx, in)
	requireKind(t, err, apperr.KindForbidden)

	in = base
	in.BookingDate = fixedNow.Format(DateLayout)
	b, err := f.engine.CreateBooking(ctx, in)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Format(DateLayout), b.BookingDate)
}

func TestCreateBooking_SnapshotIgnoresLaterPriceChanges(t *testing.T) {
	f := newFixture(t)
	b := f.create(t)

	f.services[f.serviceID].Cost = decimal.NewFromInt(9999)

	got, err := f.engine.Get(context.Background(), b.ID, customerEmail)
	require.NoError(t, err)
	assert.True(t, got.ServiceCost.Equal(decimal.NewFromInt(5000)))

	_, _, err = f.engine.RecordPayment(context.Background(), PaymentInput{BookingID: b.ID, TransactionID: "t1", Amount: decimal.NewFromInt(5000)})
	require.NoError(t, err)
}

func TestQueries_Authorization(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.assigned(t)

	_, err := f.engine.Get(ctx, b.ID, otherEmail)
	requireKind(t, err, apperr.KindForbidden)
	_, err = f.engine.Get(ctx, b.ID, decoratorEmail)
	require.NoError(t, err)
	_, err = f.engine.Get(ctx, b.ID, adminEmail)
	require.NoError(t, err)

	_, err = f.engine.ListByCustomer(ctx, customerEmail, otherEmail)
	requireKind(t, err, apperr.KindForbidden)
	mine, err := f.engine.ListByCustomer(ctx, customerEmail, customerEmail)
	require.NoError(t, err)
	assert.Len(t, mine, 1)

	_, err = f.engine.ListByDecorator(ctx, decoratorEmail, decorator2)
	requireKind(t, err, apperr.KindForbidden)
	assigned, err := f.engine.ListByDecorator(ctx, decoratorEmail, adminEmail)
	require.NoError(t, err)
	assert.Len(t, assigned, 1)

	_, err = f.engine.ListAll(ctx, customerEmail, "")
	requireKind(t, err, apperr.KindForbidden)
	_, err = f.engine.RevenueSummary(ctx, decoratorEmail)
	requireKind(t, err, apperr.KindForbidden)
}

func TestTodayForDecorator(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	today, err := f.engine.CreateBooking(ctx, CreateInput{
		RequesterEmail: customerEmail, ServiceID: f.serviceID, BookingDate: fixedNow.Format(DateLayout), Location: "Dhanmondi",
	})
	require.NoError(t, err)
	f.pay(t, today.ID, "t-today")
	_, err = f.engine.AssignDecorator(ctx, today.ID, decoratorEmail, adminEmail)
	require.NoError(t, err)

	f.assigned(t) // dated tomorrow

	got, err := f.engine.TodayForDecorator(ctx, decoratorEmail, decoratorEmail)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, today.ID, got[0].ID)
}

func TestEarnings_ThroughEngine(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	b := f.assigned(t)
	for i := 0; i < 5; i++ {
		_, err := f.engine.AdvanceStatus(ctx, AdvanceInput{BookingID: b.ID, RequesterEmail: decoratorEmail})
		require.NoError(t, err)
	}
	f.assigned(t)

	got, err := f.engine.Earnings(ctx, decoratorEmail, decoratorEmail)
	require.NoError(t, err)
	assert.Equal(t, "1500.00", got.Earned.StringFixed(2))
	assert.Equal(t, "1500.00", got.PendingEarnings.StringFixed(2))

	_, err = f.engine.Earnings(ctx, decoratorEmail, customerEmail)
	requireKind(t, err, apperr.KindForbidden)
}

package event

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gitlab.connectwisedev.com/backoffice-service/models"
	"gitlab.connectwisedev.com/backoffice-service/pkg/clock"
	"gitlab.connectwisedev.com/backoffice-service/pkg/pack"
	"gitlab.connectwisedev.com/backoffice-service/pkg/stock"
	"gitlab.connectwisedev.com/backoffice-service/pkg/storage/memory"
)

var now = time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

func setup(t *testing.T) (*Manager, *memory.Store) {
	t.Helper()
	store := memory.New()
	require.NoError(t, store.CreateProduct(context.Background(), models.Product{
		ID: "lager", Name: "Castle Lager", StockLevel: 60, UnitPrice: decimal.RequireFromString("25.00"),
		IsSixPack: true, PackQuantity: 6, Status: models.ProductActive,
	}))
	ledger := stock.NewLedger(store, pack.NewEngine())
	return NewManager(store, ledger, WithClock(clock.NewFixed(now))), store
}

func seedEvent(t *testing.T, store *memory.Store, max, current int) models.Event {
	t.Helper()
	e := models.Event{
		ID: "quiz", Name: "Quiz Night", EventDate: now.Add(72 * time.Hour), Status: models.EventScheduled,
		MaxAttendees: max, CurrentAttendees: current, TicketPrice: decimal.RequireFromString("50.00"),
	}
	require.NoError(t, store.InsertEvent(context.Background(), e))
	return e
}

func attendees(t *testing.T, store *memory.Store) int {
	t.Helper()
	e, err := store.GetEvent(context.Background(), "quiz")
	require.NoError(t, err)
	return e.CurrentAttendees
}

func TestBookRespectsCapacity(t *testing.T) {
	m, store := setup(t)
	seedEvent(t, store, 100, 95)
	ctx := context.Background()

	_, err := m.Book(ctx, "quiz", "cust-1", 10)
	assert.ErrorIs(t, err, models.ErrCapacityExceeded)
	assert.Equal(t, 95, attendees(t, store))

	b, err := m.Book(ctx, "quiz", "cust-1", 5)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, b.Status)
	assert.True(t, b.TotalAmount.Equal(decimal.RequireFromString("250.00")))
	assert.Equal(t, 100, attendees(t, store))
}

func TestBookFailures(t *testing.T) {
	m, store := setup(t)
	seedEvent(t, store, 10, 0)
	ctx := context.Background()

	_, err := m.Book(ctx, "quiz", "cust-1", 0)
	assert.Equal(t, models.KindValidation, models.KindOf(err))
	_, err = m.Book(ctx, "missing", "cust-1", 1)
	assert.ErrorIs(t, err, models.ErrEventNotFound)

	ok, err := store.ChangeEventStatus(ctx, "quiz", []models.EventStatus{models.EventScheduled}, models.EventOngoing)
	require.NoError(t, err)
	require.True(t, ok)
	_, err = m.Book(ctx, "quiz", "cust-1", 1)
	assert.ErrorIs(t, err, models.ErrEventNotAvailable)
	assert.Equal(t, models.KindNotAvailable, models.KindOf(err))
}

func TestConcurrentBookingsNeverOverbook(t *testing.T) {
	m, store := setup(t)
	seedEvent(t, store, 20, 0)
	ctx := context.Background()

	var (
		wg     sync.WaitGroup
		mu     sync.Mutex
		booked int
	)
	for i := 0; i < 30; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := m.Book(ctx, "quiz", "cust", 3); err == nil {
				mu.Lock()
				booked += 3
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 18, booked)
	assert.Equal(t, 18, attendees(t, store))
}

func TestCancelBooking(t *testing.T) {
	m, store := setup(t)
	seedEvent(t, store, 10, 0)
	ctx := context.Background()

	b, err := m.Book(ctx, "quiz", "cust-1", 4)
	require.NoError(t, err)

	cancelled, err := m.CancelBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCancelled, cancelled.Status)
	assert.Equal(t, 0, attendees(t, store))

	_, err = m.CancelBooking(ctx, b.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, attendees(t, store))

	pending := models.EventBooking{ID: "pending", EventID: "quiz", CustomerID: "cust-2", NumberOfTickets: 2, Status: models.BookingPending}
	require.NoError(t, store.InsertBooking(ctx, pending))
	_, err = m.CancelBooking(ctx, "pending")
	require.NoError(t, err)
	assert.Equal(t, 0, attendees(t, store))

	attended, err := m.Book(ctx, "quiz", "cust-3", 1)
	require.NoError(t, err)
	_, err = m.CheckIn(ctx, attended.ID)
	require.NoError(t, err)
	_, err = m.CancelBooking(ctx, attended.ID)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
	assert.Equal(t, 1, attendees(t, store))

	_, err = m.CancelBooking(ctx, "missing")
	assert.ErrorIs(t, err, models.ErrBookingNotFound)
}

func TestCreateEventAndListUpcoming(t *testing.T) {
	m, _ := setup(t)
	ctx := context.Background()

	_, err := m.CreateEvent(ctx, EventInput{Name: "Jazz Evening", EventDate: now.Add(time.Hour), MaxAttendees: 40, TicketPrice: decimal.RequireFromString("80")})
	require.NoError(t, err)
	_, err = m.CreateEvent(ctx, EventInput{Name: "Last Week", EventDate: now.Add(-7 * 24 * time.Hour), MaxAttendees: 40})
	require.NoError(t, err)

	_, err = m.CreateEvent(ctx, EventInput{Name: "No Seats", EventDate: now, MaxAttendees: 0})
	assert.Equal(t, models.KindValidation, models.KindOf(err))
	_, err = m.CreateEvent(ctx, EventInput{EventDate: now, MaxAttendees: 1})
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	upcoming, err := m.ListUpcoming(ctx)
	require.NoError(t, err)
	require.Len(t, upcoming, 1)
	assert.Equal(t, "Jazz Evening", upcoming[0].Name)
	assert.Equal(t, models.EventScheduled, upcoming[0].Status)
}

func TestStockAllocationLifecycle(t *testing.T) {
	m, store := setup(t)
	seedEvent(t, store, 10, 0)
	ctx := context.Background()

	a, err := m.AllocateStock(ctx, "quiz", "lager", 24)
	require.NoError(t, err)
	p, _ := store.GetProduct(ctx, "lager")
	assert.Equal(t, 36, p.StockLevel)

	_, err = m.AllocateStock(ctx, "quiz", "lager", 100)
	assert.ErrorIs(t, err, models.ErrInsufficientStock)
	allocations, _ := m.ListAllocations(ctx, "quiz")
	assert.Len(t, allocations, 1)

	a, err = m.RecordUsage(ctx, a.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 14, a.Unused())
	_, err = m.RecordUsage(ctx, a.ID, 15)
	assert.Equal(t, models.KindValidation, models.KindOf(err))

	released, err := m.ReleaseStock(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, released.QuantityAllocated)
	p, _ = store.GetProduct(ctx, "lager")
	assert.Equal(t, 50, p.StockLevel)

	_, err = m.ReleaseStock(ctx, a.ID)
	require.NoError(t, err)
	p, _ = store.GetProduct(ctx, "lager")
	assert.Equal(t, 50, p.StockLevel)
}

func TestCancelEventReleasesUnusedStock(t *testing.T) {
	m, store := setup(t)
	seedEvent(t, store, 10, 0)
	ctx := context.Background()

	_, err := m.AllocateStock(ctx, "quiz", "lager", 12)
	require.NoError(t, err)

	e, err := m.CancelEvent(ctx, "quiz")
	require.NoError(t, err)
	assert.Equal(t, models.EventCancelled, e.Status)
	p, _ := store.GetProduct(ctx, "lager")
	assert.Equal(t, 60, p.StockLevel)

	_, err = m.Book(ctx, "quiz", "cust-1", 1)
	assert.ErrorIs(t, err, models.ErrEventNotAvailable)
	_, err = m.AllocateStock(ctx, "quiz", "lager", 1)
	assert.ErrorIs(t, err, models.ErrEventNotAvailable)
	_, err = m.UpdateStatus(ctx, "quiz", models.EventOngoing)
	assert.ErrorIs(t, err, models.ErrInvalidTransition)
}

// staleReads serves one outdated copy of an event or allocation, as a
// transaction that read before a concurrent commit would see it.
type staleReads struct {
	*memory.Store
	event      *models.Event
	allocation *models.EventStockAllocation
}

func (s *staleReads) GetEvent(ctx context.Context, id string) (models.Event, error) {
	if e := s.event; e != nil {
		s.event = nil
		return *e, nil
	}
	return s.Store.GetEvent(ctx, id)
}

func (s *staleReads) GetStockAllocation(ctx context.Context, id string) (models.EventStockAllocation, error) {
	if a := s.allocation; a != nil {
		s.allocation = nil
		return *a, nil
	}
	return s.Store.GetStockAllocation(ctx, id)
}

func staleManager(store *memory.Store, reads *staleReads) *Manager {
	reads.Store = store
	return NewManager(reads, stock.NewLedger(store, pack.NewEngine()), WithClock(clock.NewFixed(now)))
}

func TestReleaseStockCreditsOnce(t *testing.T) {
	m, store := setup(t)
	seedEvent(t, store, 10, 0)
	ctx := context.Background()

	a, err := m.AllocateStock(ctx, "quiz", "lager", 12)
	require.NoError(t, err)
	late := staleManager(store, &staleReads{allocation: &a})

	_, err = m.ReleaseStock(ctx, a.ID)
	require.NoError(t, err)
	_, err = late.ReleaseStock(ctx, a.ID)
	assert.ErrorIs(t, err, models.ErrConcurrentUpdate)

	p, _ := store.GetProduct(ctx, "lager")
	assert.Equal(t, 60, p.StockLevel)
}

func TestRecordUsageRejectsStaleAllocation(t *testing.T) {
	m, store := setup(t)
	seedEvent(t, store, 10, 0)
	ctx := context.Background()

	a, err := m.AllocateStock(ctx, "quiz", "lager", 12)
	require.NoError(t, err)
	late := staleManager(store, &staleReads{allocation: &a})

	_, err = m.RecordUsage(ctx, a.ID, 5)
	require.NoError(t, err)
	_, err = late.RecordUsage(ctx, a.ID, 5)
	assert.ErrorIs(t, err, models.ErrConcurrentUpdate)

	stored, err := store.GetStockAllocation(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, stored.QuantityUsed)
}

func TestCancelEventReleasesOnceUnderRace(t *testing.T) {
	m, store := setup(t)
	e := seedEvent(t, store, 10, 0)
	ctx := context.Background()

	_, err := m.AllocateStock(ctx, "quiz", "lager", 12)
	require.NoError(t, err)
	late := staleManager(store, &staleReads{event: &e})

	_, err = m.CancelEvent(ctx, "quiz")
	require.NoError(t, err)
	got, err := late.CancelEvent(ctx, "quiz")
	require.NoError(t, err)
	assert.Equal(t, models.EventCancelled, got.Status)

	p, _ := store.GetProduct(ctx, "lager")
	assert.Equal(t, 60, p.StockLevel)
}

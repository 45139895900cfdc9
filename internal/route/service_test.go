package route

import (
	"context"
	"errors"
	"sort"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aqualedger/aqualedger/internal/delivery"
	"github.com/aqualedger/aqualedger/internal/ledger"
	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

type memoryCustomer struct {
	delivery.Customer
	pending     int
	outstanding decimal.Decimal
}

type memoryState struct {
	routes     map[int64]Route
	stops      map[int64]Stop
	deliveries map[int64]delivery.Delivery
	payments   []delivery.Payment
	customers  map[int64]memoryCustomer
	nextID     int64
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		routes:     make(map[int64]Route, len(s.routes)),
		stops:      make(map[int64]Stop, len(s.stops)),
		deliveries: make(map[int64]delivery.Delivery, len(s.deliveries)),
		payments:   append([]delivery.Payment(nil), s.payments...),
		customers:  make(map[int64]memoryCustomer, len(s.customers)),
		nextID:     s.nextID,
	}
	for k, v := range s.routes {
		c.routes[k] = v
	}
	for k, v := range s.stops {
		c.stops[k] = v
	}
	for k, v := range s.deliveries {
		c.deliveries[k] = v
	}
	for k, v := range s.customers {
		c.customers[k] = v
	}
	return c
}

type memoryRepo struct {
	state  memoryState
	agents map[int64]int64
	today  time.Time
	failTx error
}

type memoryTx struct {
	repo *memoryRepo
}

var testToday = time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC)

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		today:  testToday,
		agents: map[int64]int64{7: 1, 8: 1, 9: 2},
		state: memoryState{
			routes:     map[int64]Route{},
			stops:      map[int64]Stop{},
			deliveries: map[int64]delivery.Delivery{},
			customers: map[int64]memoryCustomer{
				10: {Customer: delivery.Customer{ID: 10, BusinessID: 1, Name: "Asha", RatePerJug: decimal.NewFromInt(30), IsActive: true}, outstanding: decimal.NewFromInt(200)},
				11: {Customer: delivery.Customer{ID: 11, BusinessID: 1, Name: "Ravi", RatePerJug: decimal.NewFromInt(25), IsActive: true}},
				12: {Customer: delivery.Customer{ID: 12, BusinessID: 1, Name: "Meera", RatePerJug: decimal.Zero, IsActive: true}},
				20: {Customer: delivery.Customer{ID: 20, BusinessID: 2, Name: "Other", RatePerJug: decimal.NewFromInt(25), IsActive: true}},
			},
			nextID: 100,
		},
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	snapshot := r.state.clone()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		r.state = snapshot
		return err
	}
	if r.failTx != nil {
		r.state = snapshot
		return r.failTx
	}
	return nil
}

func (r *memoryRepo) stopsOf(routeID int64) []Stop {
	var out []Stop
	for _, s := range r.state.stops {
		if s.RouteID == routeID {
			s.CustomerName = r.state.customers[s.CustomerID].Name
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SequenceOrder < out[j].SequenceOrder })
	return out
}

func (r *memoryRepo) GetByID(_ context.Context, businessID *int64, id int64) (*Route, error) {
	rt, ok := r.state.routes[id]
	if !ok || (businessID != nil && rt.BusinessID != *businessID) {
		return nil, ErrNotFound
	}
	rt.Stops = r.stopsOf(id)
	return &rt, nil
}

func (r *memoryRepo) List(_ context.Context, req ListRequest) ([]Summary, int, error) {
	var out []Summary
	for _, rt := range r.state.routes {
		if req.BusinessID != nil && rt.BusinessID != *req.BusinessID {
			continue
		}
		if req.Status != nil && rt.Status != *req.Status {
			continue
		}
		s := Summary{Route: rt}
		for _, stop := range r.stopsOf(rt.ID) {
			s.TotalStops++
			if stop.Confirmed() {
				s.ConfirmedStops++
			}
		}
		out = append(out, s)
	}
	return out, len(out), nil
}

func (r *memoryRepo) ListForAgentToday(_ context.Context, businessID, agentID int64) ([]Route, error) {
	var out []Route
	for _, rt := range r.state.routes {
		if rt.BusinessID != businessID || rt.DeliveryBoyID != agentID || !rt.RouteDate.Equal(r.today) {
			continue
		}
		if !rt.Status.CanConfirmStops() {
			continue
		}
		rt.Stops = r.stopsOf(rt.ID)
		out = append(out, rt)
	}
	return out, nil
}

func (t *memoryTx) next() int64 {
	t.repo.state.nextID++
	return t.repo.state.nextID
}

func (t *memoryTx) CreateRoute(_ context.Context, r Route) (int64, error) {
	r.ID = t.next()
	t.repo.state.routes[r.ID] = r
	return r.ID, nil
}

func (t *memoryTx) InsertStop(_ context.Context, s Stop) (int64, error) {
	s.ID = t.next()
	t.repo.state.stops[s.ID] = s
	return s.ID, nil
}

func (t *memoryTx) GetForUpdate(_ context.Context, businessID, id int64) (Route, error) {
	rt, ok := t.repo.state.routes[id]
	if !ok || rt.BusinessID != businessID {
		return Route{}, ErrNotFound
	}
	return rt, nil
}

func (t *memoryTx) UpdateRoute(_ context.Context, id int64, updates map[string]any) error {
	rt, ok := t.repo.state.routes[id]
	if !ok {
		return ErrNotFound
	}
	if v, ok := updates["name"]; ok {
		rt.Name = v.(string)
	}
	if v, ok := updates["route_date"]; ok {
		rt.RouteDate = v.(time.Time)
	}
	if v, ok := updates["delivery_boy_id"]; ok {
		rt.DeliveryBoyID = v.(int64)
	}
	t.repo.state.routes[id] = rt
	return nil
}

func (t *memoryTx) DeleteStops(_ context.Context, routeID int64) error {
	for id, s := range t.repo.state.stops {
		if s.RouteID == routeID {
			delete(t.repo.state.stops, id)
		}
	}
	return nil
}

func (t *memoryTx) DeleteRoute(_ context.Context, id int64) error {
	if _, ok := t.repo.state.routes[id]; !ok {
		return ErrNotFound
	}
	delete(t.repo.state.routes, id)
	return nil
}

func (t *memoryTx) CountStops(_ context.Context, routeID int64) (int, error) {
	return len(t.repo.stopsOf(routeID)), nil
}

func (t *memoryTx) LockAgentRouteToday(_ context.Context, businessID, routeID, agentID int64) (Route, error) {
	rt, ok := t.repo.state.routes[routeID]
	if !ok || rt.BusinessID != businessID || rt.DeliveryBoyID != agentID || !rt.RouteDate.Equal(t.repo.today) {
		return Route{}, ErrNotYourRoute
	}
	return rt, nil
}

func (t *memoryTx) LockStop(_ context.Context, routeID, stopID int64) (Stop, error) {
	s, ok := t.repo.state.stops[stopID]
	if !ok || s.RouteID != routeID {
		return Stop{}, ErrStopNotFound
	}
	return s, nil
}

func (t *memoryTx) SaveStopConfirmation(_ context.Context, s Stop) error {
	if _, ok := t.repo.state.stops[s.ID]; !ok {
		return ErrStopNotFound
	}
	t.repo.state.stops[s.ID] = s
	return nil
}

func (t *memoryTx) CountUnconfirmed(_ context.Context, routeID int64) (int, error) {
	n := 0
	for _, s := range t.repo.stopsOf(routeID) {
		if !s.Confirmed() {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) SetStatus(_ context.Context, routeID int64, tr Transition) error {
	rt := t.repo.state.routes[routeID]
	rt.Status = tr.Status
	if rt.StartedAt == nil {
		rt.StartedAt = tr.StartedAt
	}
	rt.CompletedAt = tr.CompletedAt
	t.repo.state.routes[routeID] = rt
	return nil
}

func (t *memoryTx) TouchRoute(_ context.Context, routeID int64) error {
	if _, ok := t.repo.state.routes[routeID]; !ok {
		return ErrNotFound
	}
	return nil
}

func (t *memoryTx) SetPlanStatus(_ context.Context, routeID int64, status Status) error {
	rt := t.repo.state.routes[routeID]
	rt.Status = status
	t.repo.state.routes[routeID] = rt
	return nil
}

func (t *memoryTx) CountBusinessCustomers(_ context.Context, businessID int64, ids []int64) (int, error) {
	n := 0
	for _, id := range ids {
		if c, ok := t.repo.state.customers[id]; ok && c.BusinessID == businessID {
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) DeliveryBoyExists(_ context.Context, businessID, userID int64) (bool, error) {
	return t.repo.agents[userID] == businessID, nil
}

func (t *memoryTx) Ledger() ledger.Store { return t }

func (t *memoryTx) GetCustomer(_ context.Context, businessID, customerID int64) (delivery.Customer, error) {
	c, ok := t.repo.state.customers[customerID]
	if !ok || c.BusinessID != businessID {
		return delivery.Customer{}, delivery.ErrCustomerNotFound
	}
	return c.Customer, nil
}

func (t *memoryTx) InsertDelivery(_ context.Context, d delivery.Delivery) (delivery.Delivery, error) {
	d.ID = t.next()
	t.repo.state.deliveries[d.ID] = d
	return d, nil
}

func (t *memoryTx) GetDeliveryForUpdate(_ context.Context, businessID, id int64) (delivery.Delivery, error) {
	d, ok := t.repo.state.deliveries[id]
	if !ok || d.BusinessID != businessID {
		return delivery.Delivery{}, delivery.ErrNotFound
	}
	return d, nil
}

func (t *memoryTx) UpdateDelivery(_ context.Context, d delivery.Delivery) (delivery.Delivery, error) {
	if _, ok := t.repo.state.deliveries[d.ID]; !ok {
		return delivery.Delivery{}, delivery.ErrNotFound
	}
	t.repo.state.deliveries[d.ID] = d
	return d, nil
}

func (t *memoryTx) InsertPayment(_ context.Context, p delivery.Payment) (bool, error) {
	for _, existing := range t.repo.state.payments {
		if existing.DeliveryID != nil && p.DeliveryID != nil && *existing.DeliveryID == *p.DeliveryID {
			return false, nil
		}
	}
	p.ID = t.next()
	t.repo.state.payments = append(t.repo.state.payments, p)
	return true, nil
}

func (t *memoryTx) PaymentForDelivery(_ context.Context, businessID, deliveryID int64) (*delivery.Payment, error) {
	for _, p := range t.repo.state.payments {
		if p.BusinessID == businessID && p.DeliveryID != nil && *p.DeliveryID == deliveryID {
			return &p, nil
		}
	}
	return nil, nil
}

func (t *memoryTx) UpdatePayment(_ context.Context, p delivery.Payment) error {
	for i, existing := range t.repo.state.payments {
		if existing.ID == p.ID && existing.BusinessID == p.BusinessID {
			t.repo.state.payments[i].Amount, t.repo.state.payments[i].Method = p.Amount, p.Method
		}
	}
	return nil
}

func (t *memoryTx) DeletePayment(_ context.Context, businessID, id int64) error {
	kept := t.repo.state.payments[:0]
	for _, p := range t.repo.state.payments {
		if p.ID != id || p.BusinessID != businessID {
			kept = append(kept, p)
		}
	}
	t.repo.state.payments = kept
	return nil
}

func (t *memoryTx) AddPendingJugs(_ context.Context, businessID, customerID int64, delta int) error {
	c, ok := t.repo.state.customers[customerID]
	if !ok || c.BusinessID != businessID {
		return ledger.ErrCustomerNotFound
	}
	c.pending += delta
	t.repo.state.customers[customerID] = c
	return nil
}

func (t *memoryTx) ReduceOutstanding(_ context.Context, businessID, customerID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	c, ok := t.repo.state.customers[customerID]
	if !ok || c.BusinessID != businessID {
		return decimal.Zero, ledger.ErrCustomerNotFound
	}
	c.outstanding = decimal.Max(c.outstanding.Sub(amount), decimal.Zero)
	t.repo.state.customers[customerID] = c
	return c.outstanding, nil
}

func (t *memoryTx) IncreaseOutstanding(_ context.Context, businessID, customerID int64, amount decimal.Decimal) (decimal.Decimal, error) {
	c, ok := t.repo.state.customers[customerID]
	if !ok || c.BusinessID != businessID {
		return decimal.Zero, ledger.ErrCustomerNotFound
	}
	c.outstanding = c.outstanding.Add(amount)
	t.repo.state.customers[customerID] = c
	return c.outstanding, nil
}

type fixedClock struct {
	now time.Time
}

func (c *fixedClock) Now() time.Time { return c.now }

func (c *fixedClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestService(repo *memoryRepo) (*Service, *fixedClock) {
	clock := &fixedClock{now: testToday.Add(9 * time.Hour)}
	labeler := delivery.NewService(nil, nil, nil, nil, nil)
	return NewService(repo, labeler, nil, nil).WithClock(clock.Now), clock
}

func createRoute(t *testing.T, svc *Service, stops ...StopInput) *Route {
	t.Helper()
	rt, err := svc.Create(context.Background(), 1, 3, CreateRequest{
		Name:          "Morning east",
		RouteDate:     testToday.Format(httpx.DateLayout),
		DeliveryBoyID: 7,
		Stops:         stops,
	})
	require.NoError(t, err)
	return rt
}

func activeRoute(t *testing.T, svc *Service, stops ...StopInput) *Route {
	t.Helper()
	rt := createRoute(t, svc, stops...)
	rt, err := svc.ChangeStatus(context.Background(), 1, rt.ID, StatusRequest{Status: StatusActive})
	require.NoError(t, err)
	return rt
}

func TestCreateStartsAsDraftWithSequence(t *testing.T) {
	svc, _ := newTestService(newMemoryRepo())

	rt := createRoute(t, svc,
		StopInput{CustomerID: 11, ExpectedDeliveryQty: 2},
		StopInput{CustomerID: 10, ExpectedDeliveryQty: 3, ExpectedEmptyQty: 1},
	)

	require.Equal(t, StatusDraft, rt.Status)
	require.Len(t, rt.Stops, 2)
	require.Equal(t, int64(11), rt.Stops[0].CustomerID)
	require.Equal(t, 1, rt.Stops[0].SequenceOrder)
	require.Equal(t, int64(10), rt.Stops[1].CustomerID)
	require.Equal(t, 2, rt.Stops[1].SequenceOrder)
	require.False(t, rt.Stops[0].Confirmed())
}

func TestCreateRejectsForeignReferences(t *testing.T) {
	svc, _ := newTestService(newMemoryRepo())
	ctx := context.Background()
	date := testToday.Format(httpx.DateLayout)

	_, err := svc.Create(ctx, 1, 3, CreateRequest{Name: "x", RouteDate: date, DeliveryBoyID: 7, Stops: []StopInput{{CustomerID: 20}}})
	require.ErrorIs(t, err, ErrUnknownCustomer)

	_, err = svc.Create(ctx, 1, 3, CreateRequest{Name: "x", RouteDate: date, DeliveryBoyID: 9})
	require.ErrorIs(t, err, ErrUnknownDeliveryBoy)

	_, err = svc.Create(ctx, 1, 3, CreateRequest{Name: "x", RouteDate: date, DeliveryBoyID: 7, Stops: []StopInput{{CustomerID: 10}, {CustomerID: 10}}})
	require.ErrorIs(t, err, ErrDuplicateCustomer)

	_, err = svc.Create(ctx, 1, 3, CreateRequest{Name: "x", RouteDate: "03/01/2025", DeliveryBoyID: 7})
	require.ErrorIs(t, err, httpx.ErrValidation)
}

func TestDraftOnlyMutation(t *testing.T) {
	ctx := context.Background()
	name := "Renamed"

	t.Run("draft", func(t *testing.T) {
		svc, _ := newTestService(newMemoryRepo())
		rt := createRoute(t, svc, StopInput{CustomerID: 10, ExpectedDeliveryQty: 2})

		stops := []StopInput{{CustomerID: 11, ExpectedDeliveryQty: 4}, {CustomerID: 12, ExpectedDeliveryQty: 1}}
		updated, err := svc.Update(ctx, 1, rt.ID, UpdateRequest{Name: &name, Stops: &stops})
		require.NoError(t, err)
		require.Equal(t, name, updated.Name)
		require.Len(t, updated.Stops, 2)
		require.Equal(t, int64(11), updated.Stops[0].CustomerID)

		require.NoError(t, svc.Delete(ctx, 1, rt.ID))
		_, err = svc.Get(ctx, nil, rt.ID)
		require.ErrorIs(t, err, ErrNotFound)
	})

	for _, status := range []Status{StatusActive, StatusInProgress, StatusCompleted, StatusCancelled} {
		t.Run(string(status), func(t *testing.T) {
			repo := newMemoryRepo()
			svc, _ := newTestService(repo)
			rt := createRoute(t, svc, StopInput{CustomerID: 10, ExpectedDeliveryQty: 2})
			stored := repo.state.routes[rt.ID]
			stored.Status = status
			repo.state.routes[rt.ID] = stored

			_, err := svc.Update(ctx, 1, rt.ID, UpdateRequest{Name: &name})
			require.ErrorIs(t, err, ErrCannotEdit)
			require.ErrorIs(t, err, httpx.ErrConflict)

			err = svc.Delete(ctx, 1, rt.ID)
			require.ErrorIs(t, err, ErrCannotDelete)
			require.Equal(t, "Morning east", repo.state.routes[rt.ID].Name)
		})
	}
}

func TestChangeStatus(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newMemoryRepo())

	empty := createRoute(t, svc)
	_, err := svc.ChangeStatus(ctx, 1, empty.ID, StatusRequest{Status: StatusActive})
	require.ErrorIs(t, err, ErrNoStopsToActivate)

	cancelled, err := svc.ChangeStatus(ctx, 1, empty.ID, StatusRequest{Status: StatusCancelled})
	require.NoError(t, err)
	require.Equal(t, StatusCancelled, cancelled.Status)

	_, err = svc.ChangeStatus(ctx, 1, empty.ID, StatusRequest{Status: StatusActive})
	require.ErrorIs(t, err, ErrCannotActivate)

	rt := activeRoute(t, svc, StopInput{CustomerID: 10})
	require.Equal(t, StatusActive, rt.Status)
	_, err = svc.ChangeStatus(ctx, 1, rt.ID, StatusRequest{Status: StatusCancelled})
	require.ErrorIs(t, err, ErrCannotCancel)

	_, err = svc.ChangeStatus(ctx, 1, rt.ID, StatusRequest{Status: StatusCompleted})
	require.ErrorIs(t, err, ErrInvalidStatus)

	_, err = svc.ChangeStatus(ctx, 2, rt.ID, StatusRequest{Status: StatusCancelled})
	require.ErrorIs(t, err, ErrNotFound)
}

func TestConfirmStopIsIdempotent(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	rt := activeRoute(t, svc, StopInput{CustomerID: 11, ExpectedDeliveryQty: 3, ExpectedEmptyQty: 2}, StopInput{CustomerID: 12})
	stopID := rt.Stops[0].ID
	req := ConfirmStopRequest{ActualDeliveryQty: 4, ActualEmptyQty: 1}

	first, err := svc.ConfirmStop(ctx, 1, 7, rt.ID, stopID, req)
	require.NoError(t, err)
	require.Equal(t, 3, first.JugDelta)
	require.False(t, first.Corrected)
	require.Equal(t, 1, first.DeliveryVariance)
	require.Equal(t, -1, first.EmptyVariance)
	require.Equal(t, 3, repo.state.customers[11].pending)

	second, err := svc.ConfirmStop(ctx, 1, 7, rt.ID, stopID, req)
	require.NoError(t, err)
	require.Equal(t, 0, second.JugDelta)
	require.True(t, second.Corrected)
	require.Equal(t, 3, repo.state.customers[11].pending)
	require.Len(t, repo.state.deliveries, 1)
	require.Equal(t, first.Delivery.ID, second.Delivery.ID)
}

func TestConfirmStopReplacesPreviousNet(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	rt := activeRoute(t, svc, StopInput{CustomerID: 11, ExpectedDeliveryQty: 5})
	stopID := rt.Stops[0].ID

	_, err := svc.ConfirmStop(ctx, 1, 7, rt.ID, stopID, ConfirmStopRequest{ActualDeliveryQty: 5, ActualEmptyQty: 2})
	require.NoError(t, err)
	require.Equal(t, 3, repo.state.customers[11].pending)

	res, err := svc.ConfirmStop(ctx, 1, 7, rt.ID, stopID, ConfirmStopRequest{ActualDeliveryQty: 2, ActualEmptyQty: 3})
	require.NoError(t, err)
	require.Equal(t, -4, res.JugDelta)
	require.Equal(t, -1, repo.state.customers[11].pending)
	require.Equal(t, -3, res.DeliveryVariance)

	stop := repo.state.stops[stopID]
	require.Equal(t, 2, *stop.ActualDeliveryQty)
	require.Equal(t, 3, *stop.ActualEmptyQty)
}

func TestConfirmStopTransitions(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, clock := newTestService(repo)
	rt := activeRoute(t, svc, StopInput{CustomerID: 10, ExpectedDeliveryQty: 1}, StopInput{CustomerID: 11, ExpectedDeliveryQty: 1})
	firstStarted := clock.now

	res, err := svc.ConfirmStop(ctx, 1, 7, rt.ID, rt.Stops[0].ID, ConfirmStopRequest{ActualDeliveryQty: 1})
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, res.RouteStatus)
	stored := repo.state.routes[rt.ID]
	require.NotNil(t, stored.StartedAt)
	require.True(t, stored.StartedAt.Equal(firstStarted))
	require.Nil(t, stored.CompletedAt)

	clock.Advance(time.Hour)
	res, err = svc.ConfirmStop(ctx, 1, 7, rt.ID, rt.Stops[0].ID, ConfirmStopRequest{ActualDeliveryQty: 2})
	require.NoError(t, err)
	require.Equal(t, StatusInProgress, res.RouteStatus)
	stored = repo.state.routes[rt.ID]
	require.True(t, stored.StartedAt.Equal(firstStarted))
	require.Nil(t, stored.CompletedAt)

	clock.Advance(time.Hour)
	res, err = svc.ConfirmStop(ctx, 1, 7, rt.ID, rt.Stops[1].ID, ConfirmStopRequest{ActualDeliveryQty: 1})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.RouteStatus)
	stored = repo.state.routes[rt.ID]
	require.NotNil(t, stored.CompletedAt)
	require.True(t, stored.CompletedAt.Equal(clock.now))
	require.True(t, stored.StartedAt.Equal(firstStarted))

	// Corrections after completion keep the route completed.
	clock.Advance(time.Hour)
	res, err = svc.ConfirmStop(ctx, 1, 7, rt.ID, rt.Stops[1].ID, ConfirmStopRequest{ActualDeliveryQty: 2})
	require.NoError(t, err)
	require.Equal(t, StatusCompleted, res.RouteStatus)
	require.True(t, repo.state.routes[rt.ID].CompletedAt.Equal(clock.now.Add(-time.Hour)))
}

func TestConfirmStopRecordsPaymentOnce(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	rt := activeRoute(t, svc, StopInput{CustomerID: 10, ExpectedDeliveryQty: 4})
	stopID := rt.Stops[0].ID
	req := ConfirmStopRequest{ActualDeliveryQty: 4, PaymentStatus: delivery.PaymentCash}

	res, err := svc.ConfirmStop(ctx, 1, 7, rt.ID, stopID, req)
	require.NoError(t, err)
	require.NotNil(t, res.Delivery.AmountCollected)
	require.True(t, decimal.NewFromInt(120).Equal(*res.Delivery.AmountCollected))
	require.True(t, decimal.NewFromInt(80).Equal(repo.state.customers[10].outstanding))

	_, err = svc.ConfirmStop(ctx, 1, 7, rt.ID, stopID, req)
	require.NoError(t, err)
	require.Len(t, repo.state.payments, 1)
	require.True(t, decimal.NewFromInt(80).Equal(repo.state.customers[10].outstanding))
	require.Equal(t, delivery.PaymentCash, repo.state.stops[stopID].PaymentStatus)
}

func TestConfirmStopReversesPaymentOnCorrection(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	rt := activeRoute(t, svc, StopInput{CustomerID: 10, ExpectedDeliveryQty: 4})
	stopID := rt.Stops[0].ID

	_, err := svc.ConfirmStop(ctx, 1, 7, rt.ID, stopID, ConfirmStopRequest{ActualDeliveryQty: 4, PaymentStatus: delivery.PaymentCash})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(80).Equal(repo.state.customers[10].outstanding))

	res, err := svc.ConfirmStop(ctx, 1, 7, rt.ID, stopID, ConfirmStopRequest{ActualDeliveryQty: 3, PaymentStatus: delivery.PaymentUPI})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(90).Equal(*res.Delivery.AmountCollected))
	require.Len(t, repo.state.payments, 1)
	require.True(t, decimal.NewFromInt(90).Equal(repo.state.payments[0].Amount))
	require.Equal(t, delivery.PaymentUPI, repo.state.payments[0].Method)
	require.True(t, decimal.NewFromInt(110).Equal(repo.state.customers[10].outstanding))

	res, err = svc.ConfirmStop(ctx, 1, 7, rt.ID, stopID, ConfirmStopRequest{ActualDeliveryQty: 1, PaymentStatus: delivery.PaymentPending})
	require.NoError(t, err)
	require.Nil(t, res.Delivery.AmountCollected)
	require.Empty(t, repo.state.payments)
	require.True(t, decimal.NewFromInt(200).Equal(repo.state.customers[10].outstanding))
	require.Equal(t, 1, repo.state.customers[10].pending)
}

func TestConfirmStopAuthorization(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	rt := activeRoute(t, svc, StopInput{CustomerID: 10})
	other := activeRoute(t, svc, StopInput{CustomerID: 11})
	req := ConfirmStopRequest{ActualDeliveryQty: 1}

	_, err := svc.ConfirmStop(ctx, 1, 8, rt.ID, rt.Stops[0].ID, req)
	require.ErrorIs(t, err, ErrNotYourRoute)
	require.Equal(t, 403, httpx.StatusFor(err))

	_, err = svc.ConfirmStop(ctx, 1, 7, rt.ID, other.Stops[0].ID, req)
	require.ErrorIs(t, err, ErrStopNotFound)
	require.Equal(t, 404, httpx.StatusFor(err))

	stored := repo.state.routes[rt.ID]
	stored.RouteDate = testToday.AddDate(0, 0, -1)
	repo.state.routes[rt.ID] = stored
	_, err = svc.ConfirmStop(ctx, 1, 7, rt.ID, rt.Stops[0].ID, req)
	require.ErrorIs(t, err, ErrNotYourRoute)

	draft := createRoute(t, svc, StopInput{CustomerID: 12})
	_, err = svc.ConfirmStop(ctx, 1, 7, draft.ID, draft.Stops[0].ID, req)
	require.ErrorIs(t, err, ErrNotConfirmable)

	_, err = svc.ConfirmStop(ctx, 1, 7, other.ID, other.Stops[0].ID, ConfirmStopRequest{ActualDeliveryQty: -1})
	require.ErrorIs(t, err, ErrNegativeQuantity)

	require.Empty(t, repo.state.deliveries)
	require.Equal(t, 0, repo.state.customers[10].pending)
}

func TestConfirmStopRollsBackOnCommitFailure(t *testing.T) {
	ctx := context.Background()
	repo := newMemoryRepo()
	svc, _ := newTestService(repo)
	rt := activeRoute(t, svc, StopInput{CustomerID: 10})
	repo.failTx = errors.New("commit failed")

	_, err := svc.ConfirmStop(ctx, 1, 7, rt.ID, rt.Stops[0].ID, ConfirmStopRequest{ActualDeliveryQty: 3, PaymentStatus: delivery.PaymentUPI})
	require.Error(t, err)
	require.Empty(t, repo.state.deliveries)
	require.Empty(t, repo.state.payments)
	require.Equal(t, 0, repo.state.customers[10].pending)
	require.True(t, decimal.NewFromInt(200).Equal(repo.state.customers[10].outstanding))
	require.False(t, repo.state.stops[rt.Stops[0].ID].Confirmed())
	require.Equal(t, StatusActive, repo.state.routes[rt.ID].Status)
}

func TestTodayListsReleasedRoutesOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(newMemoryRepo())
	createRoute(t, svc, StopInput{CustomerID: 10})
	active := activeRoute(t, svc, StopInput{CustomerID: 11})

	routes, err := svc.Today(ctx, 1, 7)
	require.NoError(t, err)
	require.Len(t, routes, 1)
	require.Equal(t, active.ID, routes[0].ID)
	require.Len(t, routes[0].Stops, 1)

	routes, err = svc.Today(ctx, 1, 8)
	require.NoError(t, err)
	require.Empty(t, routes)
}

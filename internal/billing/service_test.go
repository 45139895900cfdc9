package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/aqualedger/aqualedger/internal/platform/httpx"
)

type memoryCustomer struct {
	BillableCustomer
	businessID int64
	active     bool
}

type memoryRepo struct {
	customers      []memoryCustomer
	cycles         map[int64]Cycle
	invoices       map[int64]Invoice
	supplier       []SupplierHoliday
	client         []ClientHoliday
	nextID         int64
	locks          int
	failAfterWrite error
}

type memoryTx struct {
	repo *memoryRepo
}

func newMemoryRepo() *memoryRepo {
	return &memoryRepo{
		customers: []memoryCustomer{
			{BillableCustomer: BillableCustomer{ID: 10, Name: "Asha", RatePerJug: decimal.NewFromInt(30)}, businessID: 1, active: true},
			{BillableCustomer: BillableCustomer{ID: 11, Name: "Ravi", RatePerJug: decimal.NewFromInt(20), HolidayBillingChargeable: true}, businessID: 1, active: true},
			{BillableCustomer: BillableCustomer{ID: 12, Name: "Gone", RatePerJug: decimal.NewFromInt(20)}, businessID: 1, active: false},
			{BillableCustomer: BillableCustomer{ID: 20, Name: "Other", RatePerJug: decimal.NewFromInt(40)}, businessID: 2, active: true},
		},
		cycles:   map[int64]Cycle{},
		invoices: map[int64]Invoice{},
	}
}

func (r *memoryRepo) snapshot() func() {
	cycles := make(map[int64]Cycle, len(r.cycles))
	for k, v := range r.cycles {
		cycles[k] = v
	}
	invoices := make(map[int64]Invoice, len(r.invoices))
	for k, v := range r.invoices {
		invoices[k] = v
	}
	supplier := append([]SupplierHoliday(nil), r.supplier...)
	client := append([]ClientHoliday(nil), r.client...)
	nextID := r.nextID
	return func() {
		r.cycles, r.invoices, r.supplier, r.client, r.nextID = cycles, invoices, supplier, client, nextID
	}
}

func (r *memoryRepo) WithTx(ctx context.Context, fn func(context.Context, TxRepository) error) error {
	restore := r.snapshot()
	if err := fn(ctx, &memoryTx{repo: r}); err != nil {
		restore()
		return err
	}
	if r.failAfterWrite != nil {
		restore()
		return r.failAfterWrite
	}
	return nil
}

func (r *memoryRepo) ListCycles(_ context.Context, businessID *int64, limit, offset int) ([]Cycle, int, error) {
	var out []Cycle
	for _, c := range r.cycles {
		if businessID == nil || c.BusinessID == *businessID {
			out = append(out, c)
		}
	}
	return out, len(out), nil
}

func (r *memoryRepo) GetCycle(_ context.Context, businessID *int64, id int64) (Cycle, error) {
	c, ok := r.cycles[id]
	if !ok || (businessID != nil && c.BusinessID != *businessID) {
		return Cycle{}, ErrCycleNotFound
	}
	return c, nil
}

func (r *memoryRepo) ListInvoices(_ context.Context, filter InvoiceFilter) ([]Invoice, error) {
	out := []Invoice{}
	for _, inv := range r.invoices {
		if inv.BillingCycleID != filter.CycleID {
			continue
		}
		if filter.BusinessID != nil && inv.BusinessID != *filter.BusinessID {
			continue
		}
		out = append(out, inv)
	}
	return out, nil
}

func (r *memoryRepo) ListSupplierHolidays(_ context.Context, filter HolidayFilter) ([]SupplierHoliday, error) {
	out := []SupplierHoliday{}
	for _, h := range r.supplier {
		if filter.BusinessID == nil || h.BusinessID == *filter.BusinessID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (r *memoryRepo) ListClientHolidays(_ context.Context, filter HolidayFilter) ([]ClientHoliday, error) {
	out := []ClientHoliday{}
	for _, h := range r.client {
		if filter.BusinessID == nil || h.BusinessID == *filter.BusinessID {
			out = append(out, h)
		}
	}
	return out, nil
}

func (t *memoryTx) next() int64 {
	t.repo.nextID++
	return t.repo.nextID
}

func (t *memoryTx) LockPeriod(context.Context, int64, Period) error {
	t.repo.locks++
	return nil
}

func (t *memoryTx) FindOrCreateCycle(_ context.Context, businessID int64, p Period) (Cycle, bool, error) {
	for _, c := range t.repo.cycles {
		if c.BusinessID == businessID && c.Month == p.Month && c.Year == p.Year {
			return c, false, nil
		}
	}
	c := Cycle{ID: t.next(), BusinessID: businessID, Month: p.Month, Year: p.Year}
	t.repo.cycles[c.ID] = c
	return c, true, nil
}

func (t *memoryTx) DeleteInvoices(_ context.Context, cycleID int64) (int64, error) {
	var n int64
	for id, inv := range t.repo.invoices {
		if inv.BillingCycleID == cycleID {
			delete(t.repo.invoices, id)
			n++
		}
	}
	return n, nil
}

func (t *memoryTx) ActiveCustomers(_ context.Context, businessID int64) ([]BillableCustomer, error) {
	var out []BillableCustomer
	for _, c := range t.repo.customers {
		if c.businessID == businessID && c.active {
			out = append(out, c.BillableCustomer)
		}
	}
	return out, nil
}

func (t *memoryTx) SupplierHolidaysIn(_ context.Context, businessID int64, p Period) ([]SupplierHoliday, error) {
	var out []SupplierHoliday
	for _, h := range t.repo.supplier {
		if h.BusinessID == businessID && !h.EndDate.Before(p.Start()) && !h.StartDate.After(p.End()) {
			out = append(out, h)
		}
	}
	return out, nil
}

func (t *memoryTx) ClientHolidayDates(_ context.Context, businessID int64, p Period) (map[int64][]time.Time, error) {
	out := make(map[int64][]time.Time)
	for _, h := range t.repo.client {
		if h.BusinessID == businessID && !h.HolidayDate.Before(p.Start()) && !h.HolidayDate.After(p.End()) {
			out[h.CustomerID] = append(out[h.CustomerID], h.HolidayDate)
		}
	}
	return out, nil
}

func (t *memoryTx) InsertInvoices(_ context.Context, invoices []Invoice) error {
	for _, inv := range invoices {
		inv.ID = t.next()
		t.repo.invoices[inv.ID] = inv
	}
	return nil
}

func (t *memoryTx) MarkGenerated(_ context.Context, cycleID int64, at time.Time) error {
	c := t.repo.cycles[cycleID]
	c.GeneratedAt = &at
	t.repo.cycles[cycleID] = c
	return nil
}

func (t *memoryTx) GetInvoiceForUpdate(_ context.Context, businessID, id int64) (Invoice, error) {
	inv, ok := t.repo.invoices[id]
	if !ok || inv.BusinessID != businessID {
		return Invoice{}, ErrInvoiceNotFound
	}
	return inv, nil
}

func (t *memoryTx) UpdateInvoiceAdjustment(_ context.Context, inv Invoice) (Invoice, error) {
	t.repo.invoices[inv.ID] = inv
	return inv, nil
}

func (t *memoryTx) CustomerExists(_ context.Context, businessID, customerID int64) (bool, error) {
	for _, c := range t.repo.customers {
		if c.ID == customerID && c.businessID == businessID {
			return true, nil
		}
	}
	return false, nil
}

func (t *memoryTx) InsertSupplierHoliday(_ context.Context, h SupplierHoliday) (SupplierHoliday, error) {
	h.ID = t.next()
	t.repo.supplier = append(t.repo.supplier, h)
	return h, nil
}

func (t *memoryTx) InsertClientHoliday(_ context.Context, h ClientHoliday) (ClientHoliday, error) {
	for _, existing := range t.repo.client {
		if existing.CustomerID == h.CustomerID && existing.HolidayDate.Equal(h.HolidayDate) {
			return ClientHoliday{}, ErrDuplicateHoliday
		}
	}
	h.ID = t.next()
	t.repo.client = append(t.repo.client, h)
	return h, nil
}

func newTestService(repo *memoryRepo) *Service {
	return NewService(repo, nil, nil).WithClock(func() time.Time {
		return time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)
	})
}

func seedFebruaryHolidays(t *testing.T, svc *Service) {
	t.Helper()
	ctx := context.Background()
	_, err := svc.CreateSupplierHoliday(ctx, 1, SupplierHolidayRequest{StartDate: "2024-02-10", EndDate: "2024-02-12"})
	require.NoError(t, err)
	_, err = svc.CreateClientHoliday(ctx, 1, ClientHolidayRequest{CustomerID: 10, HolidayDate: "2024-02-15"})
	require.NoError(t, err)
	_, err = svc.CreateClientHoliday(ctx, 1, ClientHolidayRequest{CustomerID: 11, HolidayDate: "2024-02-16"})
	require.NoError(t, err)
}

func invoicesByCustomer(repo *memoryRepo, cycleID int64) map[int64]Invoice {
	out := make(map[int64]Invoice)
	for _, inv := range repo.invoices {
		if inv.BillingCycleID == cycleID {
			out[inv.CustomerID] = inv
		}
	}
	return out
}

func TestGenerateFebruary2024(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	seedFebruaryHolidays(t, svc)

	result, err := svc.Generate(context.Background(), 1, GenerateRequest{Month: 2, Year: 2024})
	require.NoError(t, err)
	require.True(t, result.Created)
	require.Equal(t, 2, result.Invoices)
	require.Equal(t, 1, repo.locks)
	require.NotNil(t, repo.cycles[result.Cycle.ID].GeneratedAt)

	got := invoicesByCustomer(repo, result.Cycle.ID)
	require.Len(t, got, 2)

	asha := got[10]
	require.Equal(t, 29, asha.TotalDays)
	require.Equal(t, 3, asha.SupplierHolDays)
	require.Equal(t, 1, asha.ClientHolDays)
	require.Equal(t, 25, asha.ChargeableDays)
	require.True(t, decimal.NewFromInt(750).Equal(asha.TotalAmount))

	ravi := got[11]
	require.Equal(t, 1, ravi.ClientHolDays)
	require.Equal(t, 26, ravi.ChargeableDays, "chargeable through own holidays")
	require.True(t, decimal.NewFromInt(520).Equal(ravi.FinalAmount))

	require.True(t, decimal.NewFromInt(1270).Equal(result.TotalAmount))
}

func TestGenerateIsRepeatable(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	seedFebruaryHolidays(t, svc)
	ctx := context.Background()

	first, err := svc.Generate(ctx, 1, GenerateRequest{Month: 2, Year: 2024})
	require.NoError(t, err)
	before := invoicesByCustomer(repo, first.Cycle.ID)

	second, err := svc.Generate(ctx, 1, GenerateRequest{Month: 2, Year: 2024})
	require.NoError(t, err)
	require.False(t, second.Created)
	require.Equal(t, first.Cycle.ID, second.Cycle.ID)
	require.Equal(t, int64(2), second.Replaced)
	require.Len(t, repo.invoices, 2, "exactly one invoice per active customer")

	after := invoicesByCustomer(repo, second.Cycle.ID)
	for id, inv := range before {
		require.Equal(t, inv.ChargeableDays, after[id].ChargeableDays)
		require.True(t, inv.TotalAmount.Equal(after[id].TotalAmount))
	}
	require.True(t, first.TotalAmount.Equal(second.TotalAmount))
}

func TestGenerateValidatesPeriod(t *testing.T) {
	svc := newTestService(newMemoryRepo())
	_, err := svc.Generate(context.Background(), 1, GenerateRequest{Month: 13, Year: 2024})
	require.ErrorIs(t, err, ErrInvalidPeriod)
	require.ErrorIs(t, err, httpx.ErrValidation)

	_, err = svc.Generate(context.Background(), 1, GenerateRequest{Month: 1, Year: 1999})
	require.ErrorIs(t, err, ErrInvalidPeriod)
}

func TestGenerateRollsBackOnFailure(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	first, err := svc.Generate(ctx, 1, GenerateRequest{Month: 3, Year: 2024})
	require.NoError(t, err)

	repo.failAfterWrite = errors.New("commit failed")
	_, err = svc.Generate(ctx, 1, GenerateRequest{Month: 3, Year: 2024})
	require.Error(t, err)
	require.Len(t, invoicesByCustomer(repo, first.Cycle.ID), 2, "previous invoices survive a failed regeneration")
}

func TestAdjustInvoice(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Generate(ctx, 1, GenerateRequest{Month: 4, Year: 2024})
	require.NoError(t, err)
	inv := invoicesByCustomer(repo, result.Cycle.ID)[10]
	require.True(t, decimal.NewFromInt(900).Equal(inv.TotalAmount))

	discount := decimal.NewFromInt(100)
	extra := decimal.RequireFromString("45.50")
	remarks := "two broken jugs"
	adjusted, err := svc.AdjustInvoice(ctx, 1, inv.ID, AdjustRequest{Discount: &discount, AdditionalCharges: &extra, Remarks: &remarks})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("845.50").Equal(adjusted.FinalAmount))
	require.True(t, decimal.NewFromInt(900).Equal(adjusted.TotalAmount))
	require.Equal(t, remarks, *adjusted.Remarks)

	// Changing only the discount keeps the earlier additional charge.
	discount = decimal.Zero
	adjusted, err = svc.AdjustInvoice(ctx, 1, inv.ID, AdjustRequest{Discount: &discount})
	require.NoError(t, err)
	require.True(t, decimal.RequireFromString("945.50").Equal(adjusted.FinalAmount))

	negative := decimal.NewFromInt(-1)
	_, err = svc.AdjustInvoice(ctx, 1, inv.ID, AdjustRequest{Discount: &negative})
	require.ErrorIs(t, err, ErrNegativeAdjust)

	_, err = svc.AdjustInvoice(ctx, 1, inv.ID, AdjustRequest{})
	require.ErrorIs(t, err, ErrEmptyAdjustment)

	_, err = svc.AdjustInvoice(ctx, 2, inv.ID, AdjustRequest{Discount: &discount})
	require.ErrorIs(t, err, ErrInvoiceNotFound)
}

func TestHolidays(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	_, err := svc.CreateSupplierHoliday(ctx, 1, SupplierHolidayRequest{StartDate: "2024-02-12", EndDate: "2024-02-10"})
	require.ErrorIs(t, err, ErrInvalidRange)

	_, err = svc.CreateSupplierHoliday(ctx, 1, SupplierHolidayRequest{StartDate: "12/02/2024", EndDate: "2024-02-10"})
	require.ErrorIs(t, err, ErrInvalidDate)

	_, err = svc.CreateClientHoliday(ctx, 1, ClientHolidayRequest{CustomerID: 20, HolidayDate: "2024-02-10"})
	require.ErrorIs(t, err, ErrCustomerNotFound)

	_, err = svc.CreateClientHoliday(ctx, 1, ClientHolidayRequest{CustomerID: 10, HolidayDate: "2024-02-10"})
	require.NoError(t, err)
	_, err = svc.CreateClientHoliday(ctx, 1, ClientHolidayRequest{CustomerID: 10, HolidayDate: "2024-02-10"})
	require.ErrorIs(t, err, httpx.ErrDuplicate)

	business := int64(1)
	holidays, err := svc.ListClientHolidays(ctx, HolidayFilter{BusinessID: &business})
	require.NoError(t, err)
	require.Len(t, holidays, 1)
}

func TestListInvoicesScoped(t *testing.T) {
	repo := newMemoryRepo()
	svc := newTestService(repo)
	ctx := context.Background()

	result, err := svc.Generate(ctx, 2, GenerateRequest{Month: 1, Year: 2025})
	require.NoError(t, err)

	other := int64(1)
	_, _, err = svc.ListInvoices(ctx, &other, result.Cycle.ID)
	require.ErrorIs(t, err, ErrCycleNotFound)

	cycle, invoices, err := svc.ListInvoices(ctx, nil, result.Cycle.ID)
	require.NoError(t, err)
	require.Equal(t, int64(2), cycle.BusinessID)
	require.Len(t, invoices, 1)
	require.Equal(t, 31, invoices[0].ChargeableDays)
}

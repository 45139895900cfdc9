package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/hibiken/asynq"

	"github.com/aqualedger/aqualedger/internal/billing"
	jobmetrics "github.com/aqualedger/aqualedger/internal/jobs"
)

const (
	// TaskBillingGenerate regenerates a month of invoices.
	TaskBillingGenerate = "billing:generate"
)

var defaultJobMetrics = jobmetrics.NewMetrics(nil)

// BillingGeneratePayload scopes a billing run. An empty business means every
// active business; a zero month means the month before the run.
type BillingGeneratePayload struct {
	BusinessID string `json:"business_id"`
	Month      int    `json:"month,omitempty"`
	Year       int    `json:"year,omitempty"`
}

// BillingService generates one business month.
type BillingService interface {
	GeneratePeriod(ctx context.Context, businessID int64, p billing.Period) (billing.GenerateResult, error)
}

// BusinessLister lists the businesses a scheduled run should bill.
type BusinessLister interface {
	ListActiveBusinessIDs(ctx context.Context) ([]int64, error)
}

// BillingGenerateJob runs billing cycle generation from the queue.
type BillingGenerateJob struct {
	Service    BillingService
	Businesses BusinessLister
	Location   *time.Location
	Logger     *slog.Logger
	Metrics    *jobmetrics.Metrics
	clock      func() time.Time
}

// NewBillingGenerateJob constructs the job handler.
func NewBillingGenerateJob(service BillingService, businesses BusinessLister, loc *time.Location, logger *slog.Logger, metrics *jobmetrics.Metrics) *BillingGenerateJob {
	if loc == nil {
		loc = time.UTC
	}
	return &BillingGenerateJob{
		Service:    service,
		Businesses: businesses,
		Location:   loc,
		Logger:     logger,
		Metrics:    metrics,
		clock:      time.Now,
	}
}

// NewBillingGenerateTask creates a task for one business, or every active
// business when businessID is empty. Tasks for the same scope are unique for
// an hour so a cron tick and a manual trigger do not both run.
func NewBillingGenerateTask(businessID string, p *billing.Period) (*asynq.Task, error) {
	if businessID == "" {
		businessID = "all"
	}
	payload := BillingGeneratePayload{BusinessID: businessID}
	if p != nil {
		payload.Month, payload.Year = p.Month, p.Year
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskBillingGenerate, body,
		asynq.Queue(QueueDefault),
		asynq.MaxRetry(3),
		asynq.Unique(time.Hour),
	), nil
}

// Handle executes the billing run.
func (j *BillingGenerateJob) Handle(ctx context.Context, task *asynq.Task) error {
	if j == nil || j.Service == nil || j.Businesses == nil {
		return errors.New("billing generate: dependencies not configured")
	}
	var payload BillingGeneratePayload
	if err := json.Unmarshal(task.Payload(), &payload); err != nil {
		return asynq.SkipRetry
	}

	tracker := j.metrics().Track(TaskBillingGenerate)
	var resultErr error
	defer func() {
		resultErr = tracker.End(resultErr)
	}()

	period, err := j.resolvePeriod(payload)
	if err != nil {
		j.log().Error("resolve period", slog.Int("month", payload.Month), slog.Int("year", payload.Year), slog.Any("error", err))
		resultErr = fmt.Errorf("%w: %w", err, asynq.SkipRetry)
		return resultErr
	}

	businessIDs, err := j.resolveBusinesses(ctx, payload.BusinessID)
	if err != nil {
		resultErr = err
		j.log().Error("resolve businesses", slog.String("business", payload.BusinessID), slog.Any("error", err))
		return resultErr
	}
	if len(businessIDs) == 0 {
		j.log().Info("no businesses to bill", slog.String("period", period.String()))
		return resultErr
	}

	start := j.clock()
	var (
		failed   []error
		invoices int
	)
	for _, id := range businessIDs {
		result, err := j.Service.GeneratePeriod(ctx, id, period)
		if err != nil {
			j.log().Error("generate billing cycle", slog.Int64("business_id", id), slog.String("period", period.String()), slog.Any("error", err))
			failed = append(failed, fmt.Errorf("business %d: %w", id, err))
			continue
		}
		invoices += result.Invoices
		j.metrics().AddInvoices(id, result.Invoices)
	}
	if len(failed) > 0 {
		resultErr = errors.Join(failed...)
	}

	j.log().Info("billing cycles generated",
		slog.String("period", period.String()),
		slog.Int("businesses", len(businessIDs)-len(failed)),
		slog.Int("failed", len(failed)),
		slog.Int("invoices", invoices),
		slog.Duration("duration", time.Since(start)))
	return resultErr
}

func (j *BillingGenerateJob) resolvePeriod(payload BillingGeneratePayload) (billing.Period, error) {
	if payload.Month == 0 && payload.Year == 0 {
		return billing.PreviousPeriod(j.clock(), j.Location), nil
	}
	return billing.ValidateGenerateRequest(billing.GenerateRequest{Month: payload.Month, Year: payload.Year})
}

func (j *BillingGenerateJob) resolveBusinesses(ctx context.Context, business string) ([]int64, error) {
	if business == "" || business == "all" {
		return j.Businesses.ListActiveBusinessIDs(ctx)
	}
	id, err := strconv.ParseInt(business, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid business id %s", business)
	}
	if id <= 0 {
		return nil, fmt.Errorf("business id must be positive")
	}
	return []int64{id}, nil
}

func (j *BillingGenerateJob) metrics() *jobmetrics.Metrics {
	if j != nil && j.Metrics != nil {
		return j.Metrics
	}
	return defaultJobMetrics
}

func (j *BillingGenerateJob) log() *slog.Logger {
	if j != nil && j.Logger != nil {
		return j.Logger.With(slog.String("job", TaskBillingGenerate))
	}
	return slog.Default().With(slog.String("job", TaskBillingGenerate))
}

// WithClock overrides the internal clock for deterministic tests.
func (j *BillingGenerateJob) WithClock(clock func() time.Time) {
	if j != nil && clock != nil {
		j.clock = clock
	}
}

package billing

import (
	"context"
	"encoding/json"
	"time"

	"github.com/hibiken/asynq"
	"go.uber.org/zap"
)

// TypeGenerateMonthly is the asynq task that runs monthly invoice
// generation.
const TypeGenerateMonthly = "invoice:generate:monthly"

type generateMonthlyPayload struct {
	PeriodYear  int `json:"periodYear"`
	PeriodMonth int `json:"periodMonth"`
}

// NewGenerateMonthlyTask builds the task for one billing period.
func NewGenerateMonthlyTask(year, month int) (*asynq.Task, error) {
	payload, err := json.Marshal(generateMonthlyPayload{PeriodYear: year, PeriodMonth: month})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TypeGenerateMonthly, payload, asynq.Queue("default"), asynq.MaxRetry(3)), nil
}

// HandleGenerateMonthly processes the monthly generation task. Generation is
// idempotent per period, so retries are safe.
func (s *Service) HandleGenerateMonthly(ctx context.Context, t *asynq.Task) error {
	var payload generateMonthlyPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return err
	}

	year, month := payload.PeriodYear, payload.PeriodMonth
	if year == 0 || month == 0 {
		now := time.Now()
		year, month = now.Year(), int(now.Month())
	}

	created, err := s.generateForPeriod(ctx, year, month)
	if err != nil {
		return err
	}

	zap.L().Info("monthly invoice generation completed",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("created", created),
	)
	return nil
}

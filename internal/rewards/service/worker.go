package service

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

// WithdrawalReporter periodically logs the pending withdrawal backlog so
// admins notice requests waiting for a manual payout
type WithdrawalReporter struct {
	svc      *Service
	cron     *cron.Cron
	schedule string
	mu       sync.Mutex
	started  bool
}

// NewWithdrawalReporter creates a reporter running on a cron schedule
func NewWithdrawalReporter(svc *Service, schedule string) *WithdrawalReporter {
	return &WithdrawalReporter{
		svc:      svc,
		cron:     cron.New(cron.WithLocation(svc.loc)),
		schedule: schedule,
	}
}

// Start schedules the report
func (p *WithdrawalReporter) Start() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, err := p.cron.AddFunc(p.schedule, p.runReport); err != nil {
		return err
	}
	p.cron.Start()
	p.started = true
	log.WithField("schedule", p.schedule).Info("Withdrawal reporter started")
	return nil
}

// Stop stops the reporter and waits for a running report to finish
func (p *WithdrawalReporter) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.started {
		return
	}
	<-p.cron.Stop().Done()
	p.started = false
}

func (p *WithdrawalReporter) runReport() {
	ctx, cancel := context.WithTimeout(context.Background(), 1*time.Minute)
	defer cancel()

	count, total, err := p.Report(ctx)
	if err != nil {
		log.WithError(err).Error("Pending withdrawal report failed")
		return
	}

	log.WithFields(log.Fields{
		"pending": count,
		"amount":  total.String(),
	}).Info("Pending withdrawals")
}

// Report returns the number and total amount of pending withdrawals
func (p *WithdrawalReporter) Report(ctx context.Context) (int, decimal.Decimal, error) {
	pending, err := p.svc.PendingWithdrawals(ctx)
	if err != nil {
		return 0, decimal.Zero, err
	}

	total := decimal.Zero
	for _, w := range pending {
		total = total.Add(w.Amount)
	}
	return len(pending), total, nil
}

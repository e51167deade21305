package services

import (
	"context"
	"log"
	"time"

	"nutricoach/internal/adapters/persistence/repositories"
	"nutricoach/internal/pkg/metrics"

	"github.com/robfig/cron/v3"
)

// DefaultPurgeSchedule runs the ledger janitor once an hour
const DefaultPurgeSchedule = "@hourly"

// CronService runs scheduled maintenance of the refresh ledger
type CronService struct {
	cron     *cron.Cron
	ledger   repositories.RefreshTokenRepository
	metrics  *metrics.Metrics
	schedule string
	now      func() time.Time
}

// NewCronService creates a new cron service
func NewCronService(ledger repositories.RefreshTokenRepository, schedule string, m *metrics.Metrics) *CronService {
	if schedule == "" {
		schedule = DefaultPurgeSchedule
	}
	return &CronService{
		cron:     cron.New(),
		ledger:   ledger,
		metrics:  m,
		schedule: schedule,
		now:      time.Now,
	}
}

// Start registers the jobs and starts the scheduler
func (s *CronService) Start() error {
	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		if _, err := s.PurgeExpired(ctx); err != nil {
			log.Printf("❌ Refresh ledger purge failed: %v", err)
		}
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	log.Printf("⏰ Cron started: refresh ledger purge [%s]", s.schedule)
	return nil
}

// Stop stops the scheduler and waits for running jobs
func (s *CronService) Stop() {
	<-s.cron.Stop().Done()
	log.Println("⏰ Cron stopped")
}

// PurgeExpired removes ledger rows past their expiry
func (s *CronService) PurgeExpired(ctx context.Context) (int64, error) {
	n, err := s.ledger.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, err
	}

	s.metrics.Purged(n)
	if n > 0 {
		log.Printf("🧹 Purged %d expired refresh tokens", n)
	}
	return n, nil
}

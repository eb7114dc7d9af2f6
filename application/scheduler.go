package application

import (
	"context"
	"fmt"
	"time"

	"mxiledger/config"

	"github.com/go-co-op/gocron/v2"
	"github.com/jonboulle/clockwork"
	log "github.com/sirupsen/logrus"
)

// Scheduler runs the periodic maintenance sweeps as the system principal
type Scheduler struct {
	core      *Core
	config    *config.Config
	scheduler gocron.Scheduler
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewScheduler registers the stale wager cleanup, the overdue settlement and,
// when VestingSweepInterval is set, the vesting sweep
func NewScheduler(core *Core, clock clockwork.Clock) (*Scheduler, error) {
	cfg := config.Get()

	s, err := gocron.NewScheduler(
		gocron.WithClock(clock),
		gocron.WithLocation(time.UTC),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create scheduler: %w", err)
	}

	ctx, cancel := context.WithCancel(WithPrincipal(context.Background(), SystemPrincipal))
	sched := &Scheduler{
		core:      core,
		config:    cfg,
		scheduler: s,
		ctx:       ctx,
		cancel:    cancel,
	}

	jobs := []struct {
		name     string
		interval time.Duration
		task     func()
	}{
		{"stale_wager_cleanup", cfg.MaintenanceInterval, sched.cleanupStale},
		{"overdue_wager_settlement", cfg.MaintenanceInterval, sched.settleOverdue},
	}
	if cfg.VestingSweepInterval > 0 {
		jobs = append(jobs, struct {
			name     string
			interval time.Duration
			task     func()
		}{"vesting_sweep", cfg.VestingSweepInterval, sched.sweepVesting})
	}

	for _, job := range jobs {
		if job.interval <= 0 {
			cancel()
			return nil, fmt.Errorf("job %s needs a positive interval, got %s", job.name, job.interval)
		}
		if _, err := s.NewJob(
			gocron.DurationJob(job.interval),
			gocron.NewTask(job.task),
			gocron.WithName(job.name),
			gocron.WithSingletonMode(gocron.LimitModeReschedule),
		); err != nil {
			cancel()
			return nil, fmt.Errorf("failed to schedule %s: %w", job.name, err)
		}
		log.WithFields(log.Fields{
			"job":      job.name,
			"interval": job.interval,
		}).Info("Scheduled maintenance job")
	}

	return sched, nil
}

// Start begins running the scheduled jobs
func (s *Scheduler) Start() {
	s.scheduler.Start()
}

// Stop cancels running sweeps and waits for them to return
func (s *Scheduler) Stop() error {
	s.cancel()
	if err := s.scheduler.Shutdown(); err != nil {
		return fmt.Errorf("failed to shut down scheduler: %w", err)
	}
	return nil
}

// Jobs returns the number of registered jobs
func (s *Scheduler) Jobs() int {
	return len(s.scheduler.Jobs())
}

func (s *Scheduler) cleanupStale() {
	if _, err := s.core.CleanupStaleWagers(s.ctx, s.config.StaleWagerTimeout); err != nil {
		log.WithError(err).Error("Stale wager cleanup failed")
	}
}

func (s *Scheduler) settleOverdue() {
	if _, err := s.core.SettleOverdueWagers(s.ctx, s.config.SettlementTimeout); err != nil {
		log.WithError(err).Error("Overdue wager settlement failed")
	}
}

func (s *Scheduler) sweepVesting() {
	if _, err := s.core.AccrueAll(s.ctx); err != nil {
		log.WithError(err).Error("Vesting sweep failed")
	}
}

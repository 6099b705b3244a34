package scheduling

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Reminders runs SendReminders for the following day on a cron schedule.
type Reminders struct {
	svc     *Service
	cron    *cron.Cron
	logger  zerolog.Logger
	timeout time.Duration
}

func NewReminders(svc *Service, spec string, logger zerolog.Logger) (*Reminders, error) {
	r := &Reminders{
		svc:     svc,
		cron:    cron.New(cron.WithLocation(time.UTC)),
		logger:  logger,
		timeout: 5 * time.Minute,
	}
	if _, err := r.cron.AddFunc(spec, r.run); err != nil {
		return nil, fmt.Errorf("schedule reminders %q: %w", spec, err)
	}
	return r, nil
}

func (r *Reminders) Start() { r.cron.Start() }

// Stop waits for a running job to finish or ctx to end.
func (r *Reminders) Stop(ctx context.Context) {
	select {
	case <-r.cron.Stop().Done():
	case <-ctx.Done():
	}
}

func (r *Reminders) run() {
	ctx, cancel := context.WithTimeout(context.Background(), r.timeout)
	defer cancel()
	if _, err := r.RunOnce(ctx); err != nil {
		r.logger.Error().Err(err).Msg("appointment reminders failed")
	}
}

// RunOnce sends the reminders for tomorrow.
func (r *Reminders) RunOnce(ctx context.Context) (int, error) {
	day := r.svc.now().UTC().AddDate(0, 0, 1)
	n, err := r.svc.SendReminders(ctx, day)
	if err != nil {
		return 0, err
	}
	r.logger.Info().Int("sent", n).Str("day", day.Format("2006-01-02")).Msg("appointment reminders queued")
	return n, nil
}

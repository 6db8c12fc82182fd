package integrity

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"

	"github.com/mthorvald/audiogen/pkg/icron"
	"github.com/mthorvald/audiogen/pkg/log"
)

// Service runs the verifier on a cron schedule. Scheduled and manual runs
// share a singleflight key, so a run triggered while another is in progress
// piggybacks on its result instead of hammering the store twice.
type Service struct {
	verifier *Verifier
	cron     *cron.Cron
	group    singleflight.Group
}

func NewService(verifier *Verifier) *Service {
	return &Service{
		verifier: verifier,
		cron:     cron.New(),
	}
}

// Start registers the schedule and launches the cron loop.
func (s *Service) Start(cronExpr string) error {
	_, err := s.cron.AddFunc(cronExpr, func() {
		if _, err := s.Trigger(context.Background()); err != nil {
			log.Error("Scheduled integrity run failed: %v", err)
		}
	})
	if err != nil {
		return fmt.Errorf("registering integrity schedule %q: %w", cronExpr, err)
	}
	s.cron.Start()
	if info, err := icron.GetTriggerInfo(cronExpr, time.Now()); err == nil {
		log.Info("Integrity verification scheduled: %s (next run in %s)", cronExpr, info.TimeUntilNext.Round(time.Second))
	} else {
		log.Info("Integrity verification scheduled: %s", cronExpr)
	}
	return nil
}

// Trigger runs a verification pass now, coalescing with any in-flight run.
func (s *Service) Trigger(ctx context.Context) (Summary, error) {
	result, err, shared := s.group.Do("verify", func() (any, error) {
		return s.verifier.RunOnce(ctx)
	})
	if err != nil {
		return Summary{}, err
	}
	if shared {
		log.Debug("Integrity trigger joined an in-flight run")
	}
	return result.(Summary), nil
}

// Stop halts the cron loop and waits for a running job to finish.
func (s *Service) Stop() {
	<-s.cron.Stop().Done()
}

package services

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"farmmarket/internal/repositories"
)

const DefaultSweepSchedule = "@every 1m"

// SessionSweeper периодически чистит просроченные записи in-memory хранилищ.
type SessionSweeper struct {
	cron    *cron.Cron
	purgers []repositories.ExpiredPurger
	log     logrus.FieldLogger
	now     func() time.Time
}

func NewSessionSweeper(log logrus.FieldLogger, purgers ...repositories.ExpiredPurger) *SessionSweeper {
	c := cron.New(cron.WithChain(cron.Recover(cron.PrintfLogger(log))))
	return &SessionSweeper{cron: c, purgers: purgers, log: log, now: time.Now}
}

func (s *SessionSweeper) Start(schedule string) error {
	if schedule == "" {
		schedule = DefaultSweepSchedule
	}
	if _, err := s.cron.AddFunc(schedule, func() { s.Sweep() }); err != nil {
		return err
	}
	s.cron.Start()
	s.log.WithField("schedule", schedule).Info("[otp][sweep] scheduled")
	return nil
}

// Stop останавливает планировщик; контекст закрывается после завершения текущего прохода.
func (s *SessionSweeper) Stop() context.Context {
	return s.cron.Stop()
}

func (s *SessionSweeper) Sweep() int {
	now := s.now()
	total := 0
	for _, p := range s.purgers {
		total += p.PurgeExpired(now)
	}
	if total > 0 {
		s.log.WithField("purged", total).Debug("[otp][sweep] expired entries removed")
	}
	return total
}

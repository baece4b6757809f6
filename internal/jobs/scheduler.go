package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"glowspa/api/internal/audit"
	"glowspa/api/internal/repository"
)

// Scheduler runs the background maintenance the stores need: flushing the
// audit buffer to its archive and sweeping dead session ids out of the
// per-user session sets.
type Scheduler struct {
	cron          *cron.Cron
	sessions      *repository.SessionStore
	auditor       *audit.Recorder
	flushInterval time.Duration
	log           zerolog.Logger
}

func NewScheduler(sessions *repository.SessionStore, auditor *audit.Recorder, flushInterval time.Duration, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:          cron.New(cron.WithSeconds()),
		sessions:      sessions,
		auditor:       auditor,
		flushInterval: flushInterval,
		log:           log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 * * * *", s.pruneSessionSets); err != nil {
		return err
	}

	if s.auditor != nil && s.flushInterval > 0 {
		spec := fmt.Sprintf("@every %s", s.flushInterval)
		if _, err := s.cron.AddFunc(spec, s.flushAudit); err != nil {
			return err
		}
	}

	s.cron.Start()
	return nil
}

// Stop halts the cron loop and flushes whatever audit events remain.
func (s *Scheduler) Stop() {
	s.cron.Stop()
	s.flushAudit()
}

func (s *Scheduler) pruneSessionSets() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	total := 0
	err := s.sessions.ScanUserSessionSets(ctx, func(userID string) error {
		pruned, err := s.sessions.PruneUserSessions(ctx, userID)
		total += pruned
		return err
	})
	if err != nil {
		s.log.Error().Err(err).Msg("session set prune failed")
		return
	}
	if total > 0 {
		s.log.Info().Int("pruned", total).Msg("pruned expired session ids")
	}
}

func (s *Scheduler) flushAudit() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := s.auditor.Flush(ctx); err != nil {
		s.log.Error().Err(err).Msg("audit flush failed")
	}
}

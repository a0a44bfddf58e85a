package server

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

const janitorSchedule = "@every 10m"

// startJanitor schedules the periodic purge of spent action tokens
func (s *Server) startJanitor() error {
	s.scheduler = cron.New()
	if _, err := s.scheduler.AddFunc(janitorSchedule, s.runJanitor); err != nil {
		return fmt.Errorf("failed to schedule janitor: %w", err)
	}
	s.scheduler.Start()
	s.logger.Info().Str("schedule", janitorSchedule).Msg("Janitor started")
	return nil
}

func (s *Server) stopJanitor() {
	if s.scheduler == nil {
		return
	}
	<-s.scheduler.Stop().Done()
}

func (s *Server) runJanitor() {
	n, err := s.purgeActionTokens()
	if err != nil {
		s.logger.Error().Err(err).Msg("Janitor run failed")
		return
	}
	if n > 0 {
		s.logger.Info().Int64("deleted", n).Msg("Purged spent action tokens")
	}
}

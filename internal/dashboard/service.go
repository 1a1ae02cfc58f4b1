package dashboard

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"tally/internal/cache"
	"tally/internal/calendar"
	"tally/internal/day"
	"tally/internal/session"
)

// Service serves dashboards from the cache, one entry per session and date.
type Service struct {
	Days     *day.Service
	Sessions *session.Service
	Cache    cache.Cache
	Now      func() time.Time
	Log      hclog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

func (s *Service) Get(ctx context.Context, userID, sessionID uuid.UUID) (Dashboard, error) {
	now := s.now()
	if s.Cache != nil {
		var d Dashboard
		ok, err := s.Cache.Get(ctx, cache.DashboardKey(sessionID), calendar.YMD(now), &d)
		if err != nil {
			s.logger().Warn("dashboard cache read failed", "session", sessionID, "error", err)
		}
		if ok {
			// cached entries are written after the owner check in build
			if _, err := s.Sessions.Get(ctx, userID, sessionID); err != nil {
				return Dashboard{}, err
			}
			return d, nil
		}
	}
	return s.build(ctx, userID, sessionID, now)
}

// Refresh rebuilds and stores today's dashboard of the session.
func (s *Service) Refresh(ctx context.Context, userID, sessionID uuid.UUID) error {
	_, err := s.build(ctx, userID, sessionID, s.now())
	return err
}

func (s *Service) build(ctx context.Context, userID, sessionID uuid.UUID, now time.Time) (Dashboard, error) {
	key := cache.DashboardKey(sessionID)
	gen, genErr := int64(0), error(nil)
	if s.Cache != nil {
		gen, genErr = s.Cache.Generation(ctx, key)
	}
	cats, err := s.Sessions.Categories(ctx, userID, sessionID)
	if err != nil {
		return Dashboard{}, err
	}
	days, err := s.Days.ListBySession(ctx, userID, sessionID, nil)
	if err != nil {
		return Dashboard{}, err
	}
	d := Build(days, cats, now)
	if s.Cache == nil {
		return d, nil
	}
	if genErr != nil {
		s.logger().Warn("dashboard cache generation read failed", "session", sessionID, "error", genErr)
		return d, nil
	}
	stored, err := s.Cache.SetIfGeneration(ctx, key, calendar.YMD(now), gen, d)
	switch {
	case err != nil:
		s.logger().Warn("dashboard cache write failed", "session", sessionID, "error", err)
	case !stored:
		s.logger().Debug("dashboard changed while building, not cached", "session", sessionID)
	}
	return d, nil
}

func (s *Service) logger() hclog.Logger {
	if s.Log == nil {
		return hclog.NewNullLogger()
	}
	return s.Log
}

package stats

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"

	"tally/internal/cache"
	"tally/internal/calendar"
	"tally/internal/category"
	"tally/internal/day"
	"tally/internal/session"
)

type Service struct {
	Days       *day.Service
	Sessions   *session.Service
	Categories *category.Service
	Cache      cache.Cache
	Now        func() time.Time
	Log        hclog.Logger
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Day returns the report of date in the session, cached per date.
func (s *Service) Day(ctx context.Context, userID, sessionID uuid.UUID, date time.Time) (Report, error) {
	if _, err := s.Sessions.Get(ctx, userID, sessionID); err != nil {
		return Report{}, err
	}
	key, field := cache.DayReportKey(sessionID), calendar.YMD(date)
	var rep Report
	gen, genErr := int64(0), error(nil)
	if s.Cache != nil {
		ok, err := s.Cache.Get(ctx, key, field, &rep)
		if err == nil && ok {
			return rep, nil
		}
		if err != nil {
			s.logger().Warn("day report cache read failed", "session", sessionID, "error", err)
		}
		gen, genErr = s.Cache.Generation(ctx, key)
	}

	days, err := s.Days.ListBySession(ctx, userID, sessionID, nil)
	if err != nil {
		return Report{}, err
	}
	cats, err := s.categoriesOf(ctx, userID, days)
	if err != nil {
		return Report{}, err
	}
	rep, err = DayReport(days, cats, date)
	if err != nil {
		return Report{}, err
	}
	if s.Cache == nil {
		return rep, nil
	}
	if genErr != nil {
		s.logger().Warn("day report cache generation read failed", "session", sessionID, "error", genErr)
		return rep, nil
	}
	// a write that landed since gen was read has already dropped the key
	if _, err := s.Cache.SetIfGeneration(ctx, key, field, gen, rep); err != nil {
		s.logger().Warn("day report cache write failed", "session", sessionID, "error", err)
	}
	return rep, nil
}

// Category returns c with its period statistics across every session.
func (s *Service) Category(ctx context.Context, userID, categoryID uuid.UUID) (CategoryDetail, error) {
	c, err := s.Categories.Get(ctx, userID, categoryID)
	if err != nil {
		return CategoryDetail{}, err
	}
	days, err := s.Days.ListByCategory(ctx, userID, categoryID)
	if err != nil {
		return CategoryDetail{}, err
	}
	return CategoryReport(c, days, s.now())
}

// categoriesOf loads every category referenced by days, including ones
// dropped from the session since.
func (s *Service) categoriesOf(ctx context.Context, userID uuid.UUID, days []day.Day) ([]category.Category, error) {
	seen := map[uuid.UUID]struct{}{}
	var ids []uuid.UUID
	for _, d := range days {
		for _, id := range d.CategoryIDs {
			if _, ok := seen[id]; !ok {
				seen[id] = struct{}{}
				ids = append(ids, id)
			}
		}
	}
	return s.Categories.Existing(ctx, userID, ids)
}

func (s *Service) logger() hclog.Logger {
	if s.Log == nil {
		return hclog.NewNullLogger()
	}
	return s.Log
}

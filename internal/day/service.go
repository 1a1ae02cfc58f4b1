package day

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-hclog"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tally/internal/apperr"
	"tally/internal/cache"
	"tally/internal/calendar"
	"tally/internal/category"
	"tally/internal/jobs"
	"tally/internal/scoring"
	"tally/internal/session"
)

type Service struct {
	DB *gorm.DB
	// Cache, when set, has the session's derived stats dropped after every write.
	Cache cache.Cache
	// RefreshJobs enqueues a stats refresh job in the same transaction as
	// each write.
	RefreshJobs bool
	Log         hclog.Logger
}

type CreateInput struct {
	SessionID uuid.UUID
	Date      time.Time
	Scores    []scoring.RawScore
}

// Range bounds a listing by calendar date, both ends inclusive.
type Range struct {
	From time.Time
	To   time.Time
}

// Create scores a new day against the session's current categories.
func (s *Service) Create(ctx context.Context, userID uuid.UUID, in CreateInput) (Day, error) {
	date := calendar.DateOf(in.Date)
	var d Day
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess session.Session
		if err := tx.Clauses(clause.Locking{Strength: "SHARE"}).
			Where("id = ? AND user_id = ?", in.SessionID, userID).
			First(&sess).Error; err != nil {
			return apperr.FromStore(err, "session")
		}
		// days before start are backfill; a closed session takes nothing after its end
		if sess.End != nil && date.After(calendar.DateOf(*sess.End)) {
			return apperr.Invalid("date %s is after the session end %s", calendar.YMD(date), calendar.YMD(*sess.End))
		}

		var n int64
		if err := tx.Model(&Day{}).Where("session_id = ? AND date = ?", sess.ID, date).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return apperr.FromStore(gorm.ErrDuplicatedKey, "day "+calendar.YMD(date))
		}

		cats, err := category.FindByIDs(tx, userID, sess.CategoryIDs)
		if err != nil {
			return err
		}
		res, err := scoring.ComputeInitial(category.Weights(cats), in.Scores)
		if err != nil {
			return err
		}

		d = Day{
			UserID:      userID,
			SessionID:   sess.ID,
			Date:        date,
			CategoryIDs: slices.Clone(sess.CategoryIDs),
			MaxScore:    res.MaxScore,
		}
		d.apply(res)
		if err := tx.Create(&d).Error; err != nil {
			return apperr.FromStore(err, "day "+calendar.YMD(date))
		}
		return s.enqueue(tx, userID, sess.ID)
	})
	if err != nil {
		return Day{}, err
	}
	s.invalidate(ctx, d.SessionID)
	return d, nil
}

// UpdateScore overlays scores onto the day. Categories not mentioned keep
// their score; importances and MaxScore stay as they were at creation.
func (s *Service) UpdateScore(ctx context.Context, userID, id uuid.UUID, scores []scoring.RawScore) (Day, error) {
	var d Day
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("id = ? AND user_id = ?", id, userID).
			First(&d).Error; err != nil {
			return apperr.FromStore(err, "day")
		}
		res, err := scoring.Update(d.Score, scores, d.MaxScore)
		if err != nil {
			return err
		}
		d.apply(res)
		if err := tx.Model(&d).Updates(map[string]any{
			"score":            d.Score,
			"total_score":      d.TotalScore,
			"percentage_score": d.PercentageScore,
		}).Error; err != nil {
			return err
		}
		return s.enqueue(tx, userID, d.SessionID)
	})
	if err != nil {
		return Day{}, err
	}
	s.invalidate(ctx, d.SessionID)
	return d, nil
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (Day, error) {
	var d Day
	err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&d).Error
	return d, apperr.FromStore(err, "day")
}

// ListBySession returns the session's days in date order, optionally
// limited to r.
func (s *Service) ListBySession(ctx context.Context, userID, sessionID uuid.UUID, r *Range) ([]Day, error) {
	q := s.DB.WithContext(ctx).Where("user_id = ? AND session_id = ?", userID, sessionID)
	if r != nil {
		q = q.Where("date >= ? AND date <= ?", calendar.DateOf(r.From), calendar.DateOf(r.To))
	}
	var out []Day
	if err := q.Order("date asc").Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// ListByMonth returns the days of the month monthOffset months from now.
func (s *Service) ListByMonth(ctx context.Context, userID, sessionID uuid.UUID, monthOffset int, now time.Time) ([]Day, error) {
	first, last := calendar.MonthRange(now, monthOffset)
	return s.ListBySession(ctx, userID, sessionID, &Range{From: first, To: last})
}

// ListByCategory returns every day of userID that scored the category.
func (s *Service) ListByCategory(ctx context.Context, userID, categoryID uuid.UUID) ([]Day, error) {
	var all []Day
	if err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("date asc").Find(&all).Error; err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(d Day) bool {
		return !slices.Contains(d.CategoryIDs, categoryID)
	}), nil
}

func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) error {
	var d Day
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&d).Error; err != nil {
			return apperr.FromStore(err, "day")
		}
		if err := tx.Delete(&d).Error; err != nil {
			return err
		}
		return s.enqueue(tx, userID, d.SessionID)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, d.SessionID)
	return nil
}

func (s *Service) enqueue(tx *gorm.DB, userID, sessionID uuid.UUID) error {
	if !s.RefreshJobs {
		return nil
	}
	return jobs.EnqueueStatsRefresh(tx, userID, sessionID)
}

func (s *Service) invalidate(ctx context.Context, sessionID uuid.UUID) {
	if s.Cache == nil {
		return
	}
	if err := s.Cache.Invalidate(ctx, cache.SessionKeys(sessionID)...); err != nil && s.Log != nil {
		s.Log.Warn("cache invalidate failed", "session", sessionID, "error", err)
	}
}

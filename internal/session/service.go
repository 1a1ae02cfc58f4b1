package session

import (
	"context"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"tally/internal/apperr"
	"tally/internal/calendar"
	"tally/internal/category"
	"tally/internal/scoring"
)

type Service struct {
	DB  *gorm.DB
	Now func() time.Time
}

type ConfigureInput struct {
	Title      string
	Categories []category.Spec
	Start      *time.Time
	End        *time.Time
	ActiveDays []int
}

// UpdateInput holds optional changes. CategoryIDs replaces the whole ordered
// list; ClearEnd removes the end date.
type UpdateInput struct {
	Title       *string
	CategoryIDs []uuid.UUID
	SetCategory bool
	Start       *time.Time
	End         *time.Time
	ClearEnd    bool
	ActiveDays  []int
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

// Create makes an empty session starting today.
func (s *Service) Create(ctx context.Context, userID uuid.UUID) (Session, error) {
	sess := Session{
		UserID: userID,
		Title:  DefaultTitle,
		Start:  calendar.DateOf(s.now()),
	}
	if err := s.DB.WithContext(ctx).Create(&sess).Error; err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Configure creates the session and its categories in one transaction.
// Nothing is written when any category is invalid.
func (s *Service) Configure(ctx context.Context, userID uuid.UUID, in ConfigureInput) (Session, []category.Category, error) {
	title := strings.TrimSpace(in.Title)
	if title == "" {
		title = DefaultTitle
	}
	start := calendar.DateOf(s.now())
	if in.Start != nil {
		start = calendar.DateOf(*in.Start)
	}
	end, err := checkEnd(start, in.End)
	if err != nil {
		return Session{}, nil, err
	}
	activeDays := DefaultActiveDays
	if in.ActiveDays != nil {
		if activeDays, err = normalizeActiveDays(in.ActiveDays); err != nil {
			return Session{}, nil, err
		}
	}

	sess := Session{
		ID:         uuid.New(),
		UserID:     userID,
		Title:      title,
		ActiveDays: datatypes.NewJSONSlice(slices.Clone(activeDays)),
		Start:      start,
		End:        end,
	}
	specs := make([]category.Spec, len(in.Categories))
	for i, sp := range in.Categories {
		sp.SessionID = &sess.ID
		specs[i] = sp
	}

	var cats []category.Category
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if cats, err = category.CreateManyTx(tx, userID, specs); err != nil {
			return err
		}
		ids := make([]uuid.UUID, 0, len(cats))
		for _, c := range cats {
			ids = append(ids, c.ID)
		}
		sess.CategoryIDs = datatypes.NewJSONSlice(ids)
		sess.MaxScore = scoring.MaxScore(category.Weights(cats))
		return tx.Create(&sess).Error
	})
	if err != nil {
		return Session{}, nil, err
	}
	return sess, cats, nil
}

func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (Session, error) {
	var sess Session
	err := s.DB.WithContext(ctx).Where("id = ? AND user_id = ?", id, userID).First(&sess).Error
	return sess, apperr.FromStore(err, "session")
}

func (s *Service) List(ctx context.Context, userID uuid.UUID) ([]Session, error) {
	var out []Session
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("start desc").Find(&out).Error
	return out, err
}

// Categories returns the session's categories in session order.
func (s *Service) Categories(ctx context.Context, userID, id uuid.UUID) ([]category.Category, error) {
	sess, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	return category.FindByIDs(s.DB.WithContext(ctx), userID, sess.CategoryIDs)
}

func (s *Service) Update(ctx context.Context, userID, id uuid.UUID, in UpdateInput) (Session, error) {
	var sess Session
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := lockSession(tx, userID, id, &sess); err != nil {
			return err
		}
		if in.Title != nil {
			title := strings.TrimSpace(*in.Title)
			if title == "" {
				return apperr.Invalid("title must not be empty")
			}
			sess.Title = title
		}
		if in.Start != nil {
			sess.Start = calendar.DateOf(*in.Start)
		}
		if in.ClearEnd {
			sess.End = nil
		} else if in.End != nil {
			sess.End = in.End
		}
		end, err := checkEnd(sess.Start, sess.End)
		if err != nil {
			return err
		}
		sess.End = end
		if in.ActiveDays != nil {
			days, err := normalizeActiveDays(in.ActiveDays)
			if err != nil {
				return err
			}
			sess.ActiveDays = datatypes.NewJSONSlice(days)
		}
		if in.SetCategory {
			if err := setCategories(tx, userID, &sess, in.CategoryIDs); err != nil {
				return err
			}
		}
		return tx.Save(&sess).Error
	})
	if err != nil {
		return Session{}, err
	}
	return sess, nil
}

// SetCategories replaces the ordered category list and recomputes MaxScore.
func (s *Service) SetCategories(ctx context.Context, userID, id uuid.UUID, categoryIDs []uuid.UUID) (Session, error) {
	return s.Update(ctx, userID, id, UpdateInput{CategoryIDs: categoryIDs, SetCategory: true})
}

// Delete removes the session, its days and its session-scoped categories.
// Other sessions listing one of those categories lose it and get their
// MaxScore recomputed; their ids are returned.
func (s *Service) Delete(ctx context.Context, userID, id uuid.UUID) ([]uuid.UUID, error) {
	var touched []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var sess Session
		if err := lockSession(tx, userID, id, &sess); err != nil {
			return err
		}
		var owned []uuid.UUID
		if err := tx.Model(&category.Category{}).
			Where("session_id = ? AND user_id = ?", id, userID).
			Pluck("id", &owned).Error; err != nil {
			return err
		}
		if len(owned) > 0 {
			ids, err := refreshSessions(tx, userID, owned, without(owned))
			if err != nil {
				return err
			}
			touched = slices.DeleteFunc(ids, func(sid uuid.UUID) bool { return sid == id })
		}
		if err := tx.Exec(`delete from days where session_id = ? and user_id = ?`, id, userID).Error; err != nil {
			return err
		}
		if err := tx.Where("session_id = ? AND user_id = ?", id, userID).Delete(&category.Category{}).Error; err != nil {
			return err
		}
		return tx.Delete(&sess).Error
	})
	if err != nil {
		return nil, err
	}
	return touched, nil
}

// UpdateCategory applies in to a category of userID in one transaction. An
// importance change recomputes MaxScore of every session listing the
// category; days already scored keep their snapshot. The ids of the sessions
// listing the category are returned.
func (s *Service) UpdateCategory(ctx context.Context, userID, categoryID uuid.UUID, in category.UpdateInput) (category.Category, []uuid.UUID, error) {
	var (
		cat     category.Category
		touched []uuid.UUID
	)
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		if cat, err = category.UpdateTx(tx, userID, categoryID, in); err != nil {
			return err
		}
		if in.Importance != nil {
			touched, err = refreshSessions(tx, userID, []uuid.UUID{categoryID}, func(ids []uuid.UUID) []uuid.UUID { return ids })
			return err
		}
		listing, err := sessionsWith(tx, userID, categoryID)
		for _, sess := range listing {
			touched = append(touched, sess.ID)
		}
		return err
	})
	if err != nil {
		return category.Category{}, nil, err
	}
	return cat, touched, nil
}

// Reweigh changes a category's importance. See UpdateCategory.
func (s *Service) Reweigh(ctx context.Context, userID, categoryID uuid.UUID, importance float64) (category.Category, []uuid.UUID, error) {
	return s.UpdateCategory(ctx, userID, categoryID, category.UpdateInput{Importance: &importance})
}

// RemoveCategory drops a category from every session of userID, recomputes
// their MaxScore and deletes the category. It returns the sessions changed.
func (s *Service) RemoveCategory(ctx context.Context, userID, categoryID uuid.UUID) ([]uuid.UUID, error) {
	var touched []uuid.UUID
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var cat category.Category
		if err := tx.Where("id = ? AND user_id = ?", categoryID, userID).First(&cat).Error; err != nil {
			return apperr.FromStore(err, "category")
		}
		var err error
		if touched, err = refreshSessions(tx, userID, []uuid.UUID{categoryID}, without([]uuid.UUID{categoryID})); err != nil {
			return err
		}
		return tx.Delete(&cat).Error
	})
	if err != nil {
		return nil, err
	}
	return touched, nil
}

// refreshSessions applies edit to the category list of every session of
// userID listing one of categoryIDs and recomputes its MaxScore.
func refreshSessions(tx *gorm.DB, userID uuid.UUID, categoryIDs []uuid.UUID, edit func([]uuid.UUID) []uuid.UUID) ([]uuid.UUID, error) {
	sessions, err := sessionsWith(tx, userID, categoryIDs...)
	if err != nil {
		return nil, err
	}
	touched := make([]uuid.UUID, 0, len(sessions))
	for i := range sessions {
		sess := &sessions[i]
		if err := setCategories(tx, userID, sess, edit(sess.CategoryIDs)); err != nil {
			return nil, err
		}
		if err := tx.Model(sess).Updates(map[string]any{
			"category_ids": sess.CategoryIDs,
			"max_score":    sess.MaxScore,
		}).Error; err != nil {
			return nil, err
		}
		touched = append(touched, sess.ID)
	}
	return touched, nil
}

// sessionsWith locks the sessions of userID and returns those listing any of
// categoryIDs. Category lists are JSON, so the match happens here.
func sessionsWith(tx *gorm.DB, userID uuid.UUID, categoryIDs ...uuid.UUID) ([]Session, error) {
	var all []Session
	if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).Find(&all).Error; err != nil {
		return nil, err
	}
	return slices.DeleteFunc(all, func(sess Session) bool {
		return !slices.ContainsFunc(categoryIDs, sess.HasCategory)
	}), nil
}

func without(drop []uuid.UUID) func([]uuid.UUID) []uuid.UUID {
	return func(ids []uuid.UUID) []uuid.UUID {
		return slices.DeleteFunc(slices.Clone(ids), func(id uuid.UUID) bool { return slices.Contains(drop, id) })
	}
}

func setCategories(tx *gorm.DB, userID uuid.UUID, sess *Session, ids []uuid.UUID) error {
	seen := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			return apperr.Invalid("category %s listed twice", id)
		}
		seen[id] = struct{}{}
	}
	cats, err := category.FindByIDs(tx, userID, ids)
	if err != nil {
		return err
	}
	sess.CategoryIDs = datatypes.NewJSONSlice(slices.Clone(ids))
	if sess.CategoryIDs == nil {
		sess.CategoryIDs = datatypes.JSONSlice[uuid.UUID]{}
	}
	sess.MaxScore = scoring.MaxScore(category.Weights(cats))
	return nil
}

func lockSession(tx *gorm.DB, userID, id uuid.UUID, out *Session) error {
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND user_id = ?", id, userID).
		First(out).Error
	return apperr.FromStore(err, "session")
}

func checkEnd(start time.Time, end *time.Time) (*time.Time, error) {
	if end == nil {
		return nil, nil
	}
	e := calendar.DateOf(*end)
	if e.Before(start) {
		return nil, apperr.Invalid("end %s is before start %s", calendar.YMD(e), calendar.YMD(start))
	}
	return &e, nil
}

func normalizeActiveDays(days []int) ([]int, error) {
	out := make([]int, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, apperr.Invalid("active day %d outside 0..6", d)
		}
		if !slices.Contains(out, d) {
			out = append(out, d)
		}
	}
	slices.Sort(out)
	return out, nil
}

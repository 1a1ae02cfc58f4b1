package category

import (
	"context"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"tally/internal/apperr"
	"tally/internal/scoring"
)

var hexRe = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

type Service struct {
	DB *gorm.DB
}

// Spec describes a category to create. A nil Importance means DefaultImportance.
type Spec struct {
	Name       string
	Importance *float64
	Color      *Color
	SessionID  *uuid.UUID
}

// UpdateInput holds optional changes. Importance moves the maximum of every
// session listing the category, so it is applied through the session service.
type UpdateInput struct {
	Name       *string
	Color      *Color
	Importance *float64
}

func (s Spec) build(userID uuid.UUID) (Category, error) {
	name := strings.TrimSpace(s.Name)
	if name == "" {
		return Category{}, apperr.Invalid("category name required")
	}
	importance := DefaultImportance
	if s.Importance != nil {
		importance = *s.Importance
	}
	if err := ValidateImportance(importance); err != nil {
		return Category{}, err
	}
	color := DefaultColor
	if s.Color != nil {
		if err := validateColor(*s.Color); err != nil {
			return Category{}, err
		}
		color = *s.Color
	}

	uid := userID
	c := Category{
		UserID:     &uid,
		Scope:      ScopeUser,
		Name:       name,
		Importance: importance,
		Color:      color,
	}
	if s.SessionID != nil {
		sid := *s.SessionID
		c.SessionID = &sid
		c.Scope = ScopeSession
	}
	return c, nil
}

func ValidateImportance(v float64) error {
	if !(v > 0) {
		return apperr.Invalid("importance must be positive, got %v", v)
	}
	return nil
}

func validateColor(c Color) error {
	if strings.TrimSpace(c.Name) == "" {
		return apperr.Invalid("color name required")
	}
	if !hexRe.MatchString(c.Hex) {
		return apperr.Invalid("color hex %q must look like #rrggbb", c.Hex)
	}
	return nil
}

func (s *Service) Create(ctx context.Context, userID uuid.UUID, spec Spec) (Category, error) {
	out, err := s.CreateMany(ctx, userID, []Spec{spec})
	if err != nil {
		return Category{}, err
	}
	return out[0], nil
}

// CreateMany creates all categories or none.
func (s *Service) CreateMany(ctx context.Context, userID uuid.UUID, specs []Spec) ([]Category, error) {
	var out []Category
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		out, err = CreateManyTx(tx, userID, specs)
		return err
	})
	return out, err
}

// CreateManyTx validates every spec before writing anything, then inserts
// the batch on tx. The caller owns the transaction.
func CreateManyTx(tx *gorm.DB, userID uuid.UUID, specs []Spec) ([]Category, error) {
	if len(specs) == 0 {
		return nil, nil
	}
	out := make([]Category, 0, len(specs))
	for i, sp := range specs {
		c, err := sp.build(userID)
		if err != nil {
			return nil, apperr.Invalid("category %d: %s", i, apperr.Reason(err))
		}
		out = append(out, c)
	}
	if err := tx.Create(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// Get returns a category owned by userID, or a global one.
func (s *Service) Get(ctx context.Context, userID, id uuid.UUID) (Category, error) {
	var c Category
	err := s.DB.WithContext(ctx).
		Where("id = ? AND (user_id = ? OR user_id IS NULL)", id, userID).
		First(&c).Error
	return c, apperr.FromStore(err, "category")
}

func (s *Service) ListByUser(ctx context.Context, userID uuid.UUID) ([]Category, error) {
	var out []Category
	err := s.DB.WithContext(ctx).Where("user_id = ?", userID).Order("created_at asc").Find(&out).Error
	return out, err
}

func (s *Service) ListGlobal(ctx context.Context) ([]Category, error) {
	var out []Category
	err := s.DB.WithContext(ctx).Where("user_id IS NULL").Order("name asc").Find(&out).Error
	return out, err
}

// FindByIDs loads the categories with the given ids in the order given.
// Every id must be owned by userID or global.
func FindByIDs(tx *gorm.DB, userID uuid.UUID, ids []uuid.UUID) ([]Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []Category
	if err := tx.Where("id IN ? AND (user_id = ? OR user_id IS NULL)", ids, userID).Find(&rows).Error; err != nil {
		return nil, err
	}
	byID := make(map[uuid.UUID]Category, len(rows))
	for _, r := range rows {
		byID[r.ID] = r
	}
	out := make([]Category, 0, len(ids))
	for _, id := range ids {
		c, ok := byID[id]
		if !ok {
			return nil, apperr.NotFound("category " + id.String())
		}
		out = append(out, c)
	}
	return out, nil
}

// Existing loads whichever of ids still exist for userID, in no particular order.
func (s *Service) Existing(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]Category, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out []Category
	err := s.DB.WithContext(ctx).Where("id IN ? AND (user_id = ? OR user_id IS NULL)", ids, userID).Find(&out).Error
	return out, err
}

func (s *Service) FindByIDs(ctx context.Context, userID uuid.UUID, ids []uuid.UUID) ([]Category, error) {
	return FindByIDs(s.DB.WithContext(ctx), userID, ids)
}

// UpdateTx validates every change of in before writing any of them, then
// applies them on tx. Global categories cannot be changed.
func UpdateTx(tx *gorm.DB, userID, id uuid.UUID, in UpdateInput) (Category, error) {
	updates := map[string]any{}
	if in.Name != nil {
		name := strings.TrimSpace(*in.Name)
		if name == "" {
			return Category{}, apperr.Invalid("category name required")
		}
		updates["name"] = name
	}
	if in.Color != nil {
		if err := validateColor(*in.Color); err != nil {
			return Category{}, err
		}
		updates["color_name"] = in.Color.Name
		updates["color_hex"] = in.Color.Hex
	}
	if in.Importance != nil {
		if err := ValidateImportance(*in.Importance); err != nil {
			return Category{}, err
		}
		updates["importance"] = *in.Importance
	}
	if len(updates) == 0 {
		return Category{}, apperr.Invalid("no valid update values provided")
	}

	var c Category
	if err := tx.Where("id = ? AND user_id = ?", id, userID).First(&c).Error; err != nil {
		return Category{}, apperr.FromStore(err, "category")
	}
	if err := tx.Model(&c).Updates(updates).Error; err != nil {
		return Category{}, err
	}
	err := tx.First(&c, "id = ?", id).Error
	return c, err
}

func (s *Service) Colors(ctx context.Context) ([]PaletteColor, error) {
	var out []PaletteColor
	err := s.DB.WithContext(ctx).Order("name asc").Find(&out).Error
	return out, err
}

// Weights converts categories into scoring weights, preserving order.
func Weights(cats []Category) []scoring.Weight {
	out := make([]scoring.Weight, 0, len(cats))
	for _, c := range cats {
		out = append(out, scoring.Weight{CategoryID: c.ID, Importance: c.Importance})
	}
	return out
}

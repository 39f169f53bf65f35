package mysql

import (
	"context"
	"fmt"
	"time"

	"Food_Share/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PostRepository covers both post tables. Methods taking a PostRef pick
// the table from the ref's kind.
type PostRepository struct {
	DB *gorm.DB
}

func NewPostRepository(db *gorm.DB) *PostRepository {
	return &PostRepository{DB: db}
}

func donorName(db *gorm.DB) *gorm.DB {
	return db.Select("id", "name")
}

func tableFor(kind model.PostKind) (any, error) {
	switch kind {
	case model.KindFood:
		return &model.FoodPost{}, nil
	case model.KindResource:
		return &model.ResourcePost{}, nil
	default:
		return nil, fmt.Errorf("unknown post kind %q", kind)
	}
}

func (r *PostRepository) CreateFood(ctx context.Context, p *model.FoodPost) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

func (r *PostRepository) CreateResource(ctx context.Context, p *model.ResourcePost) error {
	return r.DB.WithContext(ctx).Create(p).Error
}

// Find loads the post behind ref; gorm.ErrRecordNotFound when absent.
func (r *PostRepository) Find(ctx context.Context, ref model.PostRef) (model.Post, error) {
	return findPost(r.DB.WithContext(ctx), ref)
}

// FindForUpdate is Find with a row lock held until the transaction ends.
// Every write that depends on a post's status goes through it, so the post
// row serializes request creation, resolution and deletion.
func (r *PostRepository) FindForUpdate(ctx context.Context, ref model.PostRef) (model.Post, error) {
	return findPost(r.DB.WithContext(ctx).Clauses(clause.Locking{Strength: "UPDATE"}), ref)
}

func findPost(db *gorm.DB, ref model.PostRef) (model.Post, error) {
	switch ref.Kind {
	case model.KindFood:
		var p model.FoodPost
		if err := db.First(&p, ref.ID).Error; err != nil {
			return nil, err
		}
		return &p, nil
	case model.KindResource:
		var p model.ResourcePost
		if err := db.First(&p, ref.ID).Error; err != nil {
			return nil, err
		}
		return &p, nil
	default:
		return nil, fmt.Errorf("unknown post kind %q", ref.Kind)
	}
}

// ListAvailableFood returns unexpired Available food, newest first.
func (r *PostRepository) ListAvailableFood(ctx context.Context, now time.Time, foodType string) ([]model.FoodPost, error) {
	q := r.DB.WithContext(ctx).
		Preload("Donor", donorName).
		Where("status = ? AND expiry_time > ?", model.PostAvailable, now)
	if foodType != "" {
		q = q.Where("food_type = ?", foodType)
	}
	list := []model.FoodPost{}
	err := q.Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

func (r *PostRepository) ListAvailableResources(ctx context.Context, category string) ([]model.ResourcePost, error) {
	q := r.DB.WithContext(ctx).
		Preload("Donor", donorName).
		Where("status = ?", model.PostAvailable)
	if category != "" {
		q = q.Where("category = ?", category)
	}
	list := []model.ResourcePost{}
	err := q.Order("created_at DESC, id DESC").Find(&list).Error
	return list, err
}

func (r *PostRepository) ListFoodByDonor(ctx context.Context, donorID uint64) ([]model.FoodPost, error) {
	list := []model.FoodPost{}
	err := r.DB.WithContext(ctx).
		Where("donor_id = ?", donorID).
		Order("created_at DESC, id DESC").
		Find(&list).Error
	return list, err
}

func (r *PostRepository) ListResourcesByDonor(ctx context.Context, donorID uint64) ([]model.ResourcePost, error) {
	list := []model.ResourcePost{}
	err := r.DB.WithContext(ctx).
		Where("donor_id = ?", donorID).
		Order("created_at DESC, id DESC").
		Find(&list).Error
	return list, err
}

func (r *PostRepository) FoodByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.FoodPost, error) {
	out := make(map[uint64]*model.FoodPost, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []model.FoodPost
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

func (r *PostRepository) ResourcesByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.ResourcePost, error) {
	out := make(map[uint64]*model.ResourcePost, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var list []model.ResourcePost
	if err := r.DB.WithContext(ctx).Where("id IN ?", ids).Find(&list).Error; err != nil {
		return nil, err
	}
	for i := range list {
		out[list[i].ID] = &list[i]
	}
	return out, nil
}

// MarkClaimed flips Available -> Claimed. It reports false when the post
// was no longer Available, leaving the row untouched.
func (r *PostRepository) MarkClaimed(ctx context.Context, ref model.PostRef) (bool, error) {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return false, err
	}
	tx := r.DB.WithContext(ctx).Model(table).
		Where("id = ? AND status = ?", ref.ID, model.PostAvailable).
		Update("status", model.PostClaimed)
	return tx.RowsAffected == 1, tx.Error
}

// DeleteAvailable hard-deletes a post that is still Available and reports
// whether a row was removed.
func (r *PostRepository) DeleteAvailable(ctx context.Context, ref model.PostRef) (bool, error) {
	table, err := tableFor(ref.Kind)
	if err != nil {
		return false, err
	}
	tx := r.DB.WithContext(ctx).
		Where("id = ? AND status = ?", ref.ID, model.PostAvailable).
		Delete(table)
	return tx.RowsAffected == 1, tx.Error
}

package mysql

import (
	"context"

	"Food_Share/internal/model"

	"gorm.io/gorm"
)

type UserRepository struct {
	DB *gorm.DB
}

func NewUserRepository(db *gorm.DB) *UserRepository {
	return &UserRepository{DB: db}
}

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	return r.DB.WithContext(ctx).Create(user).Error
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).Where("email = ?", email).First(&user).Error
	return &user, err
}

func (r *UserRepository) FindByID(ctx context.Context, id uint64) (*model.User, error) {
	var user model.User
	err := r.DB.WithContext(ctx).First(&user, id).Error
	return &user, err
}

// ContactsByIDs loads the contact fields of several users at once.
func (r *UserRepository) ContactsByIDs(ctx context.Context, ids []uint64) (map[uint64]*model.Contact, error) {
	out := make(map[uint64]*model.Contact, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var contacts []model.Contact
	if err := r.DB.WithContext(ctx).Model(&model.User{}).
		Select("id", "name", "phone", "address").
		Where("id IN ?", ids).
		Find(&contacts).Error; err != nil {
		return nil, err
	}
	for i := range contacts {
		out[contacts[i].ID] = &contacts[i]
	}
	return out, nil
}

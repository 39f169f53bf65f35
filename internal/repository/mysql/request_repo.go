package mysql

import (
	"context"

	"Food_Share/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type RequestRepository struct {
	DB *gorm.DB
}

func NewRequestRepository(db *gorm.DB) *RequestRepository {
	return &RequestRepository{DB: db}
}

// Create inserts a Pending request. A second request from the same receiver
// for the same post fails with gorm.ErrDuplicatedKey.
func (r *RequestRepository) Create(ctx context.Context, req *model.Request) error {
	return r.DB.WithContext(ctx).Create(req).Error
}

func (r *RequestRepository) FindByID(ctx context.Context, id uint64) (*model.Request, error) {
	var req model.Request
	if err := r.DB.WithContext(ctx).First(&req, id).Error; err != nil {
		return nil, err
	}
	return &req, nil
}

// TransitionStatus moves one request from -> to. It reports false when the
// row was not in the from state.
func (r *RequestRepository) TransitionStatus(ctx context.Context, id uint64, from, to model.RequestStatus) (bool, error) {
	tx := r.DB.WithContext(ctx).Model(&model.Request{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return tx.RowsAffected == 1, tx.Error
}

// RejectPendingForPost rejects every Pending request on ref except exceptID
// and returns the ids it touched. The id scan is a locking read so it sees
// requests committed after the transaction's snapshot was taken.
func (r *RequestRepository) RejectPendingForPost(ctx context.Context, ref model.PostRef, exceptID uint64) ([]uint64, error) {
	var ids []uint64
	q := r.DB.WithContext(ctx).Model(&model.Request{}).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("post_kind = ? AND post_id = ? AND status = ?", ref.Kind, ref.ID, model.RequestPending)
	if exceptID != 0 {
		q = q.Where("id <> ?", exceptID)
	}
	if err := q.Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return ids, nil
	}
	err := r.DB.WithContext(ctx).Model(&model.Request{}).
		Where("id IN ? AND status = ?", ids, model.RequestPending).
		Update("status", model.RequestRejected).Error
	return ids, err
}

func (r *RequestRepository) ListByReceiver(ctx context.Context, receiverID uint64) ([]model.Request, error) {
	list := []model.Request{}
	err := r.DB.WithContext(ctx).
		Where("receiver_id = ?", receiverID).
		Order("created_at DESC, id DESC").
		Find(&list).Error
	return list, err
}

// ListByDonor returns requests against any post owned by donorID.
func (r *RequestRepository) ListByDonor(ctx context.Context, donorID uint64) ([]model.Request, error) {
	db := r.DB.WithContext(ctx)
	foodIDs := db.Model(&model.FoodPost{}).Select("id").Where("donor_id = ?", donorID)
	resourceIDs := db.Model(&model.ResourcePost{}).Select("id").Where("donor_id = ?", donorID)

	list := []model.Request{}
	err := db.
		Where(db.Where("post_kind = ? AND post_id IN (?)", model.KindFood, foodIDs).
			Or("post_kind = ? AND post_id IN (?)", model.KindResource, resourceIDs)).
		Order("created_at DESC, id DESC").
		Find(&list).Error
	return list, err
}

package repository

import (
	"context"
	"time"

	"blogmusic/model"

	"gorm.io/gorm"
)

// PopupRepository 弹窗数据访问接口
type PopupRepository interface {
	Create(ctx context.Context, p *model.Popup) error
	GetByID(ctx context.Context, id string) (*model.Popup, error)
	Update(ctx context.Context, p *model.Popup) error
	Delete(ctx context.Context, id string) error
	ListAll(ctx context.Context) ([]*model.Popup, error)
	// ListVisible 返回当前时间窗口内的启用弹窗
	ListVisible(ctx context.Context, now time.Time) ([]*model.Popup, error)
	CountVisible(ctx context.Context, now time.Time) (int64, error)
}

type gormPopupRepository struct {
	db *gorm.DB
}

func NewGormPopupRepository(db *gorm.DB) PopupRepository {
	return &gormPopupRepository{db: db}
}

func (r *gormPopupRepository) Create(ctx context.Context, p *model.Popup) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *gormPopupRepository) GetByID(ctx context.Context, id string) (*model.Popup, error) {
	var p model.Popup
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &p, nil
}

func (r *gormPopupRepository) Update(ctx context.Context, p *model.Popup) error {
	return r.db.WithContext(ctx).Save(p).Error
}

func (r *gormPopupRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Popup{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormPopupRepository) ListAll(ctx context.Context) ([]*model.Popup, error) {
	var list []*model.Popup
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *gormPopupRepository) ListVisible(ctx context.Context, now time.Time) ([]*model.Popup, error) {
	var list []*model.Popup
	err := r.visible(ctx, now).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *gormPopupRepository) CountVisible(ctx context.Context, now time.Time) (int64, error) {
	var count int64
	err := r.visible(ctx, now).Count(&count).Error
	return count, err
}

// visible mirrors model.Popup.Visible: start inclusive, end exclusive, nil bounds open.
func (r *gormPopupRepository) visible(ctx context.Context, now time.Time) *gorm.DB {
	return r.db.WithContext(ctx).Model(&model.Popup{}).
		Where("active = ?", true).
		Where("start_at IS NULL OR start_at <= ?", now).
		Where("end_at IS NULL OR end_at > ?", now)
}

package repository

import (
	"context"

	"blogmusic/model"

	"gorm.io/gorm"
)

// BannerRepository 轮播图数据访问接口
type BannerRepository interface {
	Create(ctx context.Context, b *model.Banner) error
	GetByID(ctx context.Context, id string) (*model.Banner, error)
	Update(ctx context.Context, b *model.Banner) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, activeOnly bool) ([]*model.Banner, error)
	Count(ctx context.Context) (int64, error)
}

type gormBannerRepository struct {
	db *gorm.DB
}

func NewGormBannerRepository(db *gorm.DB) BannerRepository {
	return &gormBannerRepository{db: db}
}

func (r *gormBannerRepository) Create(ctx context.Context, b *model.Banner) error {
	return r.db.WithContext(ctx).Create(b).Error
}

func (r *gormBannerRepository) GetByID(ctx context.Context, id string) (*model.Banner, error) {
	var b model.Banner
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &b, nil
}

func (r *gormBannerRepository) Update(ctx context.Context, b *model.Banner) error {
	return r.db.WithContext(ctx).Save(b).Error
}

func (r *gormBannerRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Banner{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// List 按 position 升序返回
func (r *gormBannerRepository) List(ctx context.Context, activeOnly bool) ([]*model.Banner, error) {
	tx := r.db.WithContext(ctx)
	if activeOnly {
		tx = tx.Where("active = ?", true)
	}
	var list []*model.Banner
	err := tx.Order("position ASC").Order("created_at ASC").Find(&list).Error
	return list, err
}

func (r *gormBannerRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Banner{}).Count(&count).Error
	return count, err
}

package repository

import (
	"context"

	"blogmusic/model"

	"gorm.io/gorm"
)

// AnnouncementRepository 公告数据访问接口
type AnnouncementRepository interface {
	Create(ctx context.Context, a *model.Announcement) error
	GetByID(ctx context.Context, id string) (*model.Announcement, error)
	Update(ctx context.Context, a *model.Announcement) error
	Delete(ctx context.Context, id string) error
	// ListActive 获取所有活跃公告（按优先级和创建时间排序）
	ListActive(ctx context.Context) ([]*model.Announcement, error)
	ListAll(ctx context.Context) ([]*model.Announcement, error)
	Count(ctx context.Context) (int64, error)
}

type gormAnnouncementRepository struct {
	db *gorm.DB
}

func NewGormAnnouncementRepository(db *gorm.DB) AnnouncementRepository {
	return &gormAnnouncementRepository{db: db}
}

func (r *gormAnnouncementRepository) Create(ctx context.Context, a *model.Announcement) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *gormAnnouncementRepository) GetByID(ctx context.Context, id string) (*model.Announcement, error) {
	var a model.Announcement
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&a).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &a, nil
}

func (r *gormAnnouncementRepository) Update(ctx context.Context, a *model.Announcement) error {
	return r.db.WithContext(ctx).Save(a).Error
}

// Delete 删除公告，不存在时返回 gorm.ErrRecordNotFound
func (r *gormAnnouncementRepository) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&model.Announcement{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormAnnouncementRepository) ListActive(ctx context.Context) ([]*model.Announcement, error) {
	var list []*model.Announcement
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("priority DESC").Order("created_at DESC").
		Find(&list).Error
	return list, err
}

func (r *gormAnnouncementRepository) ListAll(ctx context.Context) ([]*model.Announcement, error) {
	var list []*model.Announcement
	err := r.db.WithContext(ctx).Order("created_at DESC").Find(&list).Error
	return list, err
}

func (r *gormAnnouncementRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Announcement{}).Count(&count).Error
	return count, err
}

package repository

import (
	"context"
	"fmt"
	"time"

	"blogmusic/core/search"
	"blogmusic/model"

	"gorm.io/gorm"
)

// MusicRepository 曲库数据访问接口
type MusicRepository interface {
	Create(ctx context.Context, m *model.Music) error
	GetByID(ctx context.Context, id int64) (*model.Music, error)
	GetApprovedByID(ctx context.Context, id int64) (*model.Music, error)
	List(ctx context.Context, q model.MusicQuery) ([]*model.Music, int64, error)
	Update(ctx context.Context, m *model.Music) error
	SetStatus(ctx context.Context, id int64, status model.MusicStatus, note string) error
	Delete(ctx context.Context, id int64) error
	IncrementDownloads(ctx context.Context, id int64) error

	ExistsByDedupKey(ctx context.Context, key string) (bool, error)
	AllDedupKeys(ctx context.Context) ([]string, error)

	CountByStatus(ctx context.Context) (map[model.MusicStatus]int64, error)
	SumDownloads(ctx context.Context) (int64, error)
}

// gormMusicRepository GORM 实现
type gormMusicRepository struct {
	db *gorm.DB
}

// NewGormMusicRepository 创建 GORM 曲库仓库
func NewGormMusicRepository(db *gorm.DB) MusicRepository {
	return &gormMusicRepository{db: db}
}

// Create inserts a submission. A source already present yields ErrDuplicateSubmission.
func (r *gormMusicRepository) Create(ctx context.Context, m *model.Music) error {
	err := r.db.WithContext(ctx).Create(m).Error
	if duplicated(err) {
		return ErrDuplicateSubmission
	}
	return err
}

// GetByID 根据ID获取条目（任意状态）
func (r *gormMusicRepository) GetByID(ctx context.Context, id int64) (*model.Music, error) {
	var m model.Music
	err := r.db.WithContext(ctx).First(&m, id).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// GetApprovedByID 只返回已通过审核的条目
func (r *gormMusicRepository) GetApprovedByID(ctx context.Context, id int64) (*model.Music, error) {
	var m model.Music
	err := r.db.WithContext(ctx).
		Where("id = ? AND status = ?", id, model.MusicApproved).
		First(&m).Error
	if err != nil {
		if notFound(err) {
			return nil, nil
		}
		return nil, err
	}
	return &m, nil
}

// List returns one page, newest first, and the total matching count.
func (r *gormMusicRepository) List(ctx context.Context, q model.MusicQuery) ([]*model.Music, int64, error) {
	q.Normalize()

	tx := r.db.WithContext(ctx).Model(&model.Music{})
	if q.Status != "" {
		tx = tx.Where("status = ?", q.Status)
	}
	if q.Genre != "" {
		tx = tx.Where("genre = ?", q.Genre)
	}
	if pattern := search.Pattern(q.Query); pattern != "" {
		tx = tx.Where("search_text LIKE ?", pattern)
	}

	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("count music: %w", err)
	}

	var items []*model.Music
	err := tx.Order("created_at DESC").Order("id DESC").
		Limit(q.Limit).
		Offset(q.Offset()).
		Find(&items).Error
	if err != nil {
		return nil, 0, fmt.Errorf("list music: %w", err)
	}
	return items, total, nil
}

// Update saves every editable column.
func (r *gormMusicRepository) Update(ctx context.Context, m *model.Music) error {
	err := r.db.WithContext(ctx).Save(m).Error
	if duplicated(err) {
		return ErrDuplicateSubmission
	}
	return err
}

// SetStatus 审核：更新状态与备注
func (r *gormMusicRepository) SetStatus(ctx context.Context, id int64, status model.MusicStatus, note string) error {
	res := r.db.WithContext(ctx).Model(&model.Music{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":      status,
			"review_note": note,
			"reviewed_at": time.Now(),
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (r *gormMusicRepository) Delete(ctx context.Context, id int64) error {
	res := r.db.WithContext(ctx).Delete(&model.Music{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// IncrementDownloads 下载次数 +1
func (r *gormMusicRepository) IncrementDownloads(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Model(&model.Music{}).
		Where("id = ?", id).
		UpdateColumn("downloads", gorm.Expr("downloads + ?", 1)).Error
}

func (r *gormMusicRepository) ExistsByDedupKey(ctx context.Context, key string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Music{}).
		Where("dedup_key = ?", key).
		Count(&count).Error
	return count > 0, err
}

// AllDedupKeys 用于启动时预热去重过滤器
func (r *gormMusicRepository) AllDedupKeys(ctx context.Context) ([]string, error) {
	var keys []string
	err := r.db.WithContext(ctx).Model(&model.Music{}).
		Pluck("dedup_key", &keys).Error
	return keys, err
}

func (r *gormMusicRepository) CountByStatus(ctx context.Context) (map[model.MusicStatus]int64, error) {
	var rows []struct {
		Status model.MusicStatus
		Count  int64
	}
	err := r.db.WithContext(ctx).Model(&model.Music{}).
		Select("status, COUNT(*) AS count").
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	counts := make(map[model.MusicStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func (r *gormMusicRepository) SumDownloads(ctx context.Context) (int64, error) {
	var total int64
	err := r.db.WithContext(ctx).Model(&model.Music{}).
		Select("COALESCE(SUM(downloads), 0)").
		Scan(&total).Error
	return total, err
}

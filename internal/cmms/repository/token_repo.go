package repository

import (
	"context"
	"time"

	"github.com/jionychiow/CMSS-SOFT/internal/cmms/entity"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// TokenRepository 令牌黑名单仓库
type TokenRepository struct {
	db *gorm.DB
}

func NewTokenRepository(db *gorm.DB) *TokenRepository {
	return &TokenRepository{db: db}
}

// Revoke 加入黑名单，重复注销忽略
func (r *TokenRepository) Revoke(ctx context.Context, t *entity.RevokedToken) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{DoNothing: true}).Create(t).Error
}

// IsRevoked jti 是否在黑名单中
func (r *TokenRepository) IsRevoked(ctx context.Context, jti string) (bool, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&entity.RevokedToken{}).Where("jti = ?", jti).Count(&n).Error
	return n > 0, err
}

// DeleteStale 删除令牌过期时间早于 cutoff 的黑名单条目，未过期的令牌始终保留
func (r *TokenRepository) DeleteStale(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Where("expires_at < ?", cutoff).
		Delete(&entity.RevokedToken{})
	return res.RowsAffected, res.Error
}

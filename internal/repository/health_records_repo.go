package repository

import (
	"context"

	"healthmon/internal/domain"
)

// DefaultRecentLimit recent 查询的默认条数
const DefaultRecentLimit = 50

// HealthRecordsRepository 最终测量记录持久化（追加写，无更新/删除路径）
type HealthRecordsRepository interface {
	// Save 插入一条记录并返回新分配的 record_id（单条 INSERT，原子）
	Save(ctx context.Context, record *domain.HealthRecord) (string, error)
	// RecentByUser 按 measured_at 倒序返回某用户最近的记录
	RecentByUser(ctx context.Context, userID string, limit int) ([]*domain.HealthRecord, error)
	// HighRisk 按 measured_at 倒序返回 alert=true 的记录
	HighRisk(ctx context.Context, limit int) ([]*domain.HealthRecord, error)
}

// UsersRepository 用户档案读取（管道只读，不做任何写入）
type UsersRepository interface {
	// GetUser 获取用户档案；用户不存在时返回 (nil, nil)
	GetUser(ctx context.Context, userID string) (*domain.User, error)
}

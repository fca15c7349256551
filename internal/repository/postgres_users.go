package repository

import (
	"context"
	"database/sql"
	"fmt"

	"healthmon/internal/domain"
)

// PostgresUsersRepository 用户档案 Repository 实现（只读）
type PostgresUsersRepository struct {
	db *sql.DB
}

// NewPostgresUsersRepository 创建用户档案 Repository
func NewPostgresUsersRepository(db *sql.DB) *PostgresUsersRepository {
	return &PostgresUsersRepository{db: db}
}

var _ UsersRepository = (*PostgresUsersRepository)(nil)

// GetUser 根据 user_id 获取用户档案
func (r *PostgresUsersRepository) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("user_id is required")
	}

	query := `
		SELECT
			user_id::text,
			COALESCE(first_name, '') as first_name,
			COALESCE(last_name, '') as last_name,
			COALESCE(gender, '') as gender,
			dob,
			COALESCE(weight_kg, 0) as weight_kg,
			COALESCE(height_m, 0) as height_m
		FROM users
		WHERE user_id = $1::uuid
	`

	var user domain.User
	var dob sql.NullTime // dob 列可空，未记录出生日期时年龄按 0 处理
	err := r.db.QueryRowContext(ctx, query, userID).Scan(
		&user.UserID,
		&user.FirstName,
		&user.LastName,
		&user.Gender,
		&dob,
		&user.WeightKg,
		&user.HeightM,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // 用户不存在，返回 nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if dob.Valid {
		user.DateOfBirth = dob.Time
	}

	return &user, nil
}

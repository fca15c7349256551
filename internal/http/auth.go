package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"healthmon/internal/store"

	"go.uber.org/zap"
)

// SessionResolver 把 Bearer token 解析为 user_id
// 会话签发由外部认证服务负责，本服务只做解析。
type SessionResolver interface {
	// Resolve 返回 token 对应的 user_id；token 未知时返回 ("", nil)
	Resolve(ctx context.Context, token string) (string, error)
}

// RedisSessionResolver 从 Redis 读取外部认证服务写入的会话键
// 键格式：auth:token:{token} -> user_id
type RedisSessionResolver struct {
	kv store.KV
}

func NewRedisSessionResolver(kv store.KV) *RedisSessionResolver {
	return &RedisSessionResolver{kv: kv}
}

var _ SessionResolver = (*RedisSessionResolver)(nil)

func (r *RedisSessionResolver) Resolve(ctx context.Context, token string) (string, error) {
	userID, err := r.kv.Get(ctx, "auth:token:"+token)
	if err != nil {
		if errors.Is(err, store.ErrCacheMiss) {
			return "", nil
		}
		return "", err
	}
	return userID, nil
}

// AuthMiddleware 认证中间件
type AuthMiddleware struct {
	sessions SessionResolver
	logger   *zap.Logger
}

func NewAuthMiddleware(sessions SessionResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		sessions: sessions,
		logger:   logger,
	}
}

// AuthedHandler 已认证请求的处理函数（userID 已解析）
type AuthedHandler func(w http.ResponseWriter, r *http.Request, userID string)

// RequireUser 解析 Authorization: Bearer token；失败统一 401
func (m *AuthMiddleware) RequireUser(next AuthedHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			writeError(w, http.StatusUnauthorized, "Unauthenticated")
			return
		}

		userID, err := m.sessions.Resolve(r.Context(), token)
		if err != nil {
			m.logger.Error("Session resolution failed", zap.Error(err))
			writeError(w, http.StatusInternalServerError, "Internal server error")
			return
		}
		if userID == "" {
			writeError(w, http.StatusUnauthorized, "Unauthenticated")
			return
		}

		next(w, r, userID)
	}
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if h == "" {
		return ""
	}
	parts := strings.SplitN(h, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

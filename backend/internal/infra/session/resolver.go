package session

import (
	"context"
	"errors"
	"strings"

	"prompt-studio/backend/internal/domain/user"
	"prompt-studio/backend/internal/infra/token"
)

// ErrUnauthenticated 表示请求未携带有效凭证。
var ErrUnauthenticated = errors.New("unauthenticated")

// Identity 是当前请求的用户快照。
type Identity struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image,omitempty"`
}

// Resolver 根据 Bearer token 解析当前用户，凭证缺失或无效时返回 ErrUnauthenticated。
type Resolver interface {
	Resolve(ctx context.Context, bearer string) (*Identity, error)
}

// BearerToken 从 Authorization 头中取出令牌，格式不符时返回空串。
func BearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) < 7 || !strings.EqualFold(header[:7], "bearer ") {
		return ""
	}
	return strings.TrimSpace(header[7:])
}

// FromUser 把用户记录转换为身份快照。
func FromUser(u user.User) *Identity {
	return &Identity{
		ID:    u.ID,
		Name:  u.Name,
		Email: u.Email,
		Image: u.Image,
	}
}

// JWTResolver 通过 HS256 访问令牌解析身份，不访问数据库。
type JWTResolver struct {
	tokens *token.JWTManager
}

// NewJWTResolver 创建基于 JWT 的解析器。
func NewJWTResolver(tokens *token.JWTManager) *JWTResolver {
	return &JWTResolver{tokens: tokens}
}

// Resolve 校验令牌并读取 sub/name/email/picture。
func (r *JWTResolver) Resolve(_ context.Context, bearer string) (*Identity, error) {
	if bearer == "" || r.tokens == nil {
		return nil, ErrUnauthenticated
	}
	claims, err := r.tokens.Parse(bearer)
	if err != nil {
		return nil, ErrUnauthenticated
	}
	identity := &Identity{
		ID:    claims.Subject,
		Name:  claims.Name,
		Email: claims.Email,
	}
	if claims.Picture != "" {
		picture := claims.Picture
		identity.Image = &picture
	}
	return identity, nil
}

// StaticResolver 在本地模式下对所有请求返回同一身份。
type StaticResolver struct {
	identity Identity
}

// NewStaticResolver 创建固定身份解析器。
func NewStaticResolver(identity Identity) *StaticResolver {
	return &StaticResolver{identity: identity}
}

// Resolve 忽略令牌，返回固定身份的副本。
func (r *StaticResolver) Resolve(context.Context, string) (*Identity, error) {
	copied := r.identity
	return &copied, nil
}

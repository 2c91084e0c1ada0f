package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"filebox/backend/common"
	"filebox/backend/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "filebox"

const blacklistKeyPrefix = "jwt:blacklist:"

// JWTClaims represents the claims in the JWT
type JWTClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	jwt.RegisteredClaims
}

// TokenResponse is the body returned by the password grant.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

func signingMethod() (jwt.SigningMethod, error) {
	switch common.JWTAlgorithm {
	case "", "HS256":
		return jwt.SigningMethodHS256, nil
	case "HS384":
		return jwt.SigningMethodHS384, nil
	case "HS512":
		return jwt.SigningMethodHS512, nil
	default:
		return nil, fmt.Errorf("unsupported jwt algorithm %q", common.JWTAlgorithm)
	}
}

// GenerateToken generates a new JWT token for a user
func GenerateToken(user *model.User) (string, error) {
	method, err := signingMethod()
	if err != nil {
		return "", err
	}
	now := time.Now()
	claims := JWTClaims{
		UserID:   user.ID,
		Username: user.Username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(common.TokenExpireMinutes) * time.Minute)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    tokenIssuer,
			Subject:   user.Username,
			ID:        uuid.NewString(),
		},
	}

	token := jwt.NewWithClaims(method, claims)
	return token.SignedString([]byte(common.JWTSecret))
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*JWTClaims, error) {
	method, err := signingMethod()
	if err != nil {
		return nil, err
	}
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (interface{}, error) {
		return []byte(common.JWTSecret), nil
	}, jwt.WithValidMethods([]string{method.Alg()}), jwt.WithIssuer(tokenIssuer))
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.UserID == uuid.Nil {
		return nil, errors.New("token has no user id")
	}
	return claims, nil
}

// Login 密码模式登录，成功后签发 access token
func Login(ctx context.Context, username string, password string, lang string) (*TokenResponse, *model.User, error) {
	user := &model.User{Username: username, Password: password}
	if err := user.ValidateAndFill(ctx, lang); err != nil {
		return nil, nil, err
	}
	token, err := GenerateToken(user)
	if err != nil {
		return nil, nil, fmt.Errorf("sign token: %w", err)
	}
	return &TokenResponse{
		AccessToken: token,
		TokenType:   "bearer",
		ExpiresIn:   common.TokenExpireMinutes * 60,
	}, user, nil
}

var (
	localBlacklist     = make(map[string]time.Time)
	localBlacklistLock sync.Mutex
)

// InvalidateToken 将 token 加入黑名单，直到其自然过期
func InvalidateToken(ctx context.Context, tokenString string, claims *JWTClaims) error {
	ttl := time.Minute
	if claims != nil && claims.ExpiresAt != nil {
		ttl = time.Until(claims.ExpiresAt.Time)
	}
	if ttl <= 0 {
		return nil
	}

	if common.RedisEnabled && common.RDB != nil {
		return common.RDB.Set(ctx, blacklistKeyPrefix+tokenString, 1, ttl).Err()
	}

	localBlacklistLock.Lock()
	defer localBlacklistLock.Unlock()
	now := time.Now()
	for k, exp := range localBlacklist {
		if now.After(exp) {
			delete(localBlacklist, k)
		}
	}
	localBlacklist[tokenString] = now.Add(ttl)
	return nil
}

func IsTokenInvalidated(ctx context.Context, tokenString string) bool {
	if common.RedisEnabled && common.RDB != nil {
		n, err := common.RDB.Exists(ctx, blacklistKeyPrefix+tokenString).Result()
		return err == nil && n > 0
	}

	localBlacklistLock.Lock()
	defer localBlacklistLock.Unlock()
	exp, ok := localBlacklist[tokenString]
	return ok && time.Now().Before(exp)
}

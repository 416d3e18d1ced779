// Package identity maps bearer credentials to user identities.
package identity

import (
	"context"
	"fmt"
	"strings"
	"time"

	"roomchat/backend/internal/chaterr"
	"roomchat/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
)

const issuer = "roomchat"

// Verifier turns a credential into an identity or an ErrAuth.
type Verifier interface {
	Verify(ctx context.Context, credential string) (models.Identity, error)
}

// UserLookup resolves display names for verified user ids.
type UserLookup interface {
	GetUserByID(ctx context.Context, userID uint) (*models.User, error)
}

// Claims carried by chat access tokens.
type Claims struct {
	UserID uint `json:"id"`
	jwt.RegisteredClaims
}

// JWTVerifier validates HS256 tokens and confirms the user still exists.
type JWTVerifier struct {
	secret []byte
	users  UserLookup
}

func NewJWTVerifier(secret string, users UserLookup) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret), users: users}
}

func (v *JWTVerifier) Verify(ctx context.Context, credential string) (models.Identity, error) {
	if credential == "" {
		return models.Identity{}, fmt.Errorf("access token required: %w", chaterr.ErrAuth)
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(credential, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return models.Identity{}, fmt.Errorf("invalid token: %w", chaterr.ErrAuth)
	}
	if claims.UserID == 0 {
		return models.Identity{}, fmt.Errorf("token has no user id: %w", chaterr.ErrAuth)
	}

	user, err := v.users.GetUserByID(ctx, claims.UserID)
	if err != nil {
		return models.Identity{}, err
	}
	if user == nil {
		return models.Identity{}, fmt.Errorf("user %d not found: %w", claims.UserID, chaterr.ErrAuth)
	}
	return models.Identity{UserID: user.ID, UserName: user.Username, AvatarURL: user.AvatarURL}, nil
}

// IssueToken signs an access token for userID. Used by operator tooling.
func IssueToken(secret string, userID uint, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		UserID: userID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" value.
func BearerToken(header string) string {
	const prefix = "Bearer "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return ""
	}
	return strings.TrimSpace(header[len(prefix):])
}

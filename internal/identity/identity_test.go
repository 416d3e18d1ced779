package identity_test

import (
	"context"
	"testing"
	"time"

	"roomchat/backend/internal/chaterr"
	"roomchat/backend/internal/identity"
	"roomchat/backend/internal/models"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type MockUsers struct {
	mock.Mock
}

func (m *MockUsers) GetUserByID(ctx context.Context, userID uint) (*models.User, error) {
	args := m.Called(userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.User), args.Error(1)
}

func TestVerify_ValidToken(t *testing.T) {
	users := new(MockUsers)
	users.On("GetUserByID", uint(42)).Return(&models.User{ID: 42, Username: "alice"}, nil)

	token, err := identity.IssueToken(secret, 42, time.Hour)
	require.NoError(t, err)

	id, err := identity.NewJWTVerifier(secret, users).Verify(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, models.Identity{UserID: 42, UserName: "alice"}, id)
}

func TestVerify_Rejections(t *testing.T) {
	users := new(MockUsers)
	users.On("GetUserByID", uint(7)).Return(nil, nil)

	expired, err := identity.IssueToken(secret, 42, -time.Minute)
	require.NoError(t, err)
	wrongKey, err := identity.IssueToken("other-secret", 42, time.Hour)
	require.NoError(t, err)
	unknownUser, err := identity.IssueToken(secret, 7, time.Hour)
	require.NoError(t, err)
	noneAlg, err := jwt.NewWithClaims(jwt.SigningMethodNone, identity.Claims{UserID: 42}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	v := identity.NewJWTVerifier(secret, users)
	for name, token := range map[string]string{
		"empty":        "",
		"garbage":      "not-a-jwt",
		"expired":      expired,
		"wrong key":    wrongKey,
		"unknown user": unknownUser,
		"alg none":     noneAlg,
	} {
		t.Run(name, func(t *testing.T) {
			_, err := v.Verify(context.Background(), token)
			assert.ErrorIs(t, err, chaterr.ErrAuth)
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", identity.BearerToken("Bearer abc"))
	assert.Equal(t, "abc", identity.BearerToken("bearer abc"))
	assert.Empty(t, identity.BearerToken("Bearer "))
	assert.Empty(t, identity.BearerToken("Basic abc"))
	assert.Empty(t, identity.BearerToken(""))
}

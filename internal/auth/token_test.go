package auth_test

import (
	"testing"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"townchat/backend/internal/apperr"
	"townchat/backend/internal/auth"
	"townchat/backend/internal/config"
)

var testAuth = config.AuthConfig{Secret: "test-secret", IdentityClaim: "user_id"}

func TestValidate_ValidToken(t *testing.T) {
	userID := uuid.NewString()
	token, err := auth.NewIssuer(testAuth).Issue(userID, time.Hour)
	require.NoError(t, err)

	identity, err := auth.NewValidator(testAuth).Validate(token)

	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
	assert.WithinDuration(t, time.Now().Add(time.Hour), identity.ExpiresAt, 5*time.Second)
}

func TestValidate_AcceptsBearerPrefix(t *testing.T) {
	userID := uuid.NewString()
	token, err := auth.NewIssuer(testAuth).Issue(userID, time.Hour)
	require.NoError(t, err)

	identity, err := auth.NewValidator(testAuth).Validate("Bearer " + token)

	require.NoError(t, err)
	assert.Equal(t, userID, identity.UserID)
}

func TestValidate_Failures(t *testing.T) {
	issuer := auth.NewIssuer(testAuth)
	userID := uuid.NewString()

	expired, err := issuer.Issue(userID, -time.Hour)
	require.NoError(t, err)

	forged, err := auth.NewIssuer(config.AuthConfig{Secret: "other-secret"}).Issue(userID, time.Hour)
	require.NoError(t, err)

	noClaim, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testAuth.Secret))
	require.NoError(t, err)

	noExp, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
	}).SignedString([]byte(testAuth.Secret))
	require.NoError(t, err)

	badID, err := issuer.Issue("not-a-uuid", time.Hour)
	require.NoError(t, err)

	tests := map[string]string{
		"empty":       "",
		"malformed":   "not.a.jwt",
		"expired":     expired,
		"forged":      forged,
		"no claim":    noClaim,
		"no expiry":   noExp,
		"invalid id":  badID,
		"only prefix": "Bearer ",
	}

	validator := auth.NewValidator(testAuth)
	for name, token := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := validator.Validate(token)
			require.Error(t, err)
			assert.True(t, apperr.Is(err, apperr.KindAuthentication), "got %v", err)
		})
	}
}

func TestValidate_RejectsOtherAlgorithms(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS512, jwt.MapClaims{
		"user_id": uuid.NewString(),
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(testAuth.Secret))
	require.NoError(t, err)

	_, err = auth.NewValidator(testAuth).Validate(token)

	assert.True(t, apperr.Is(err, apperr.KindAuthentication))
}

func TestValidate_Issuer(t *testing.T) {
	withIssuer := config.AuthConfig{Secret: "test-secret", Issuer: "users-service"}
	userID := uuid.NewString()

	good, err := auth.NewIssuer(withIssuer).Issue(userID, time.Hour)
	require.NoError(t, err)
	other, err := auth.NewIssuer(testAuth).Issue(userID, time.Hour)
	require.NoError(t, err)

	validator := auth.NewValidator(withIssuer)

	_, err = validator.Validate(good)
	assert.NoError(t, err)

	_, err = validator.Validate(other)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))
}

func TestValidate_LeewayWithClock(t *testing.T) {
	token, err := auth.NewIssuer(testAuth).Issue(uuid.NewString(), time.Minute)
	require.NoError(t, err)

	leeway := testAuth
	leeway.Leeway = 30 * time.Second

	later := func() time.Time { return time.Now().Add(80 * time.Second) }
	_, err = auth.NewValidator(leeway).WithClock(later).Validate(token)
	assert.NoError(t, err)

	muchLater := func() time.Time { return time.Now().Add(5 * time.Minute) }
	_, err = auth.NewValidator(leeway).WithClock(muchLater).Validate(token)
	assert.True(t, apperr.Is(err, apperr.KindAuthentication))
}

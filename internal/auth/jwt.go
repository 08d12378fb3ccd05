package auth

import (
	"context"
	"errors"
	"os"
	"time"

	"ttlcache-api/internal/remember"

	"github.com/golang-jwt/jwt/v5"
)

var (
	jwtSecret   = []byte(getEnv("JWT_SECRET", "development-insecure-secret-change-me"))
	jwtIssuer   = getEnv("JWT_ISSUER", "ttlcache-api")
	jwtAudience = getEnv("JWT_AUDIENCE", "ttlcache-clients")
)

// tokenLifetime is how long issued tokens stay valid.
const tokenLifetime = 24 * time.Hour

// maxClaimsTTL caps how long validated claims are remembered.
const maxClaimsTTL = 5 * time.Minute

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// Claims represents the JWT claims
type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken generates a JWT token for the given user
func GenerateToken(userID, username string) (string, error) {
	issuedAt := time.Now()
	claims := Claims{
		UserID:   userID,
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(tokenLifetime)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			Issuer:    jwtIssuer,
			Audience:  jwt.ClaimStrings{jwtAudience},
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// ValidateToken validates a JWT token and returns the claims
func ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("invalid signing method")
		}
		return jwtSecret, nil
	},
		jwt.WithIssuer(jwtIssuer),
		jwt.WithAudience(jwtAudience),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

// ValidateTokenCached validates like ValidateToken and remembers the
// claims until the token expires, for at most maxClaimsTTL.
func ValidateTokenCached(ctx context.Context, memo *remember.Memo, tokenString string) (*Claims, error) {
	claims, err := remember.Remember(ctx, memo, "jwt:"+tokenString, maxClaimsTTL, func(context.Context) (*Claims, error) {
		return ValidateToken(tokenString)
	})
	if err != nil {
		return nil, err
	}
	// Remembered claims may outlive the token by up to maxClaimsTTL.
	if claims.ExpiresAt == nil || !claims.ExpiresAt.After(time.Now()) {
		memo.Forget("jwt:" + tokenString)
		return nil, errors.New("token has expired")
	}
	return claims, nil
}

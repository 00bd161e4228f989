package jwt

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type JWTManager struct {
	secretKey      string
	accessTokenTTL int
}

// NewJWTManager builds a manager signing with HS256. A tokenTTL of zero or less
// issues tokens without an exp claim; they stay valid until revoked.
func NewJWTManager(secretKey string, tokenTTL int) *JWTManager {
	return &JWTManager{
		secretKey:      secretKey,
		accessTokenTTL: tokenTTL,
	}
}

// NewAccessToken generates a new JWT access token for the given user ID.
// Every token carries a fresh jti, so two tokens issued in the same second differ.
func (manager *JWTManager) NewAccessToken(userID uuid.UUID) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:  userID.String(),
		ID:       uuid.NewString(),
		IssuedAt: jwt.NewNumericDate(now),
	}
	if manager.accessTokenTTL > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(time.Duration(manager.accessTokenTTL) * time.Minute))
	}
	tokenString, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(manager.secretKey))
	if err != nil {
		return "", err
	}
	return tokenString, nil
}

// VerifyAccessToken verifies the access token and returns the user ID if the token is valid.
func (manager *JWTManager) VerifyAccessToken(tokenString string) (userID uuid.UUID, err error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenMalformed
		}
		return []byte(manager.secretKey), nil
	})
	if err != nil {
		return uuid.Nil, err
	}
	sub, err := token.Claims.GetSubject()
	if err != nil || sub == "" {
		return uuid.Nil, jwt.ErrTokenMalformed
	}

	userID, err = uuid.Parse(sub)
	if err != nil {
		return uuid.Nil, jwt.ErrTokenMalformed
	}
	return userID, nil
}

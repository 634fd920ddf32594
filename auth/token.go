package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"roomchat/domain"
)

// jwtKey signs session tokens. Overridable at startup via SetSigningKey
// when JWT_SECRET is configured.
var jwtKey = []byte("roomchat_dev_signing_key_change_me")

func SetSigningKey(secret string) {
	if secret != "" {
		jwtKey = []byte(secret)
	}
}

// CustomClaims carries the authenticated identity inside the JWT.
type CustomClaims struct {
	UserID   int64  `json:"user_id"`
	Username string `json:"username"`
	jwt.RegisteredClaims
}

// GenerateToken creates a signed JWT for a specific user.
func GenerateToken(userID domain.UserID, username string, tokenDuration time.Duration) (string, error) {
	claims := &CustomClaims{
		UserID:   int64(userID),
		Username: username,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(tokenDuration)),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "roomchat",
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtKey)
}

// ValidateToken parses and validates the signature and expiration of a JWT string.
func ValidateToken(tokenString string) (*CustomClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &CustomClaims{}, func(token *jwt.Token) (interface{}, error) {
		return jwtKey, nil
	})
	if err != nil {
		return nil, err
	}

	if claims, ok := token.Claims.(*CustomClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, jwt.ErrSignatureInvalid
}

package token

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/tukio-events/tukio/internal/config"
)

// Role describes the access level carried inside an identity token.
type Role string

const (
	RoleUser  Role = "user"
	RoleGuest Role = "guest"
)

// Verification failures are split so logs can tell a forged token from a
// stale one. Callers must surface both as plain "unauthenticated".
var (
	ErrInvalidToken = errors.New("token is malformed or its signature is not ours")
	ErrExpiredToken = errors.New("token has a valid signature but has expired")
)

// Claims structure for JWT
type TukioClaims struct {
	Role Role `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID parses the subject claim back into the account id the token
// was issued for.
func (c *TukioClaims) SubjectID() (uuid.UUID, error) {
	id, err := uuid.Parse(c.Subject)
	if err != nil {
		return uuid.Nil, ErrInvalidToken
	}
	return id, nil
}

// Issue creates a new signed token asserting the given subject and role.
// Guest tokens live for a much shorter window than regular user tokens.
func Issue(subject uuid.UUID, role Role, cfg *config.Config) (string, error) {

	var expiry time.Time

	switch role {
	case RoleGuest:
		expiry = time.Now().Add(time.Hour * time.Duration(cfg.JWTConfig.GuestExpireHours))
	default:
		expiry = time.Now().Add(time.Hour * time.Duration(cfg.JWTConfig.UserExpireHours))
	}

	claims :=
		&TukioClaims{
			Role: role,
			RegisteredClaims: jwt.RegisteredClaims{
				ExpiresAt: jwt.NewNumericDate(expiry),
				Audience:  jwt.ClaimStrings{"https://app.tukio.events/"},
				Issuer:    "https://api.tukio.events/",
				Subject:   subject.String(),
				IssuedAt:  jwt.NewNumericDate(time.Now()),
			},
		}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(cfg.JWTConfig.ApiSecret))
}

// Verify parses and validates the JWT token and checks expiration.
func Verify(tokenString string, secret string) (*TukioClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &TukioClaims{}, func(token *jwt.Token) (any, error) {
		// Ensure the token is signed with the expected method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return []byte(secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*TukioClaims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if claims.RegisteredClaims.ExpiresAt == nil {
		return nil, ErrInvalidToken
	}

	if claims.RegisteredClaims.ExpiresAt.Time.Before(time.Now()) {
		return nil, ErrExpiredToken
	}

	if claims.Role != RoleUser && claims.Role != RoleGuest {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

// Package security verifies bearer tokens for the HTTP API.
package security

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token roles.
const (
	RoleAdmin  = "admin"
	RoleClient = "client"
)

const tokenIssuer = "fitflow"

// ErrWrongRole indicates a valid token issued for another role.
var ErrWrongRole = errors.New("security: token role mismatch")

// Claims are the JWT claims carried by API tokens.
type Claims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// SubjectID parses the numeric subject.
func (c *Claims) SubjectID() (uint64, error) {
	id, errParse := strconv.ParseUint(strings.TrimSpace(c.Subject), 10, 64)
	if errParse != nil || id == 0 {
		return 0, fmt.Errorf("security: invalid subject %q", c.Subject)
	}
	return id, nil
}

// IssueToken signs an HS256 token for the subject and role.
func IssueToken(secret, role string, subjectID uint64, ttl time.Duration, now time.Time) (string, error) {
	if strings.TrimSpace(secret) == "" {
		return "", errors.New("security: empty jwt secret")
	}
	if role != RoleAdmin && role != RoleClient {
		return "", fmt.Errorf("security: unknown role %q", role)
	}
	claims := &Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(subjectID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	signed, errSign := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if errSign != nil {
		return "", fmt.Errorf("security: sign token: %w", errSign)
	}
	return signed, nil
}

// ParseToken verifies the signature and expiry of an HS256 token.
func ParseToken(secret, token string) (*Claims, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("security: empty jwt secret")
	}
	parsed, errParse := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if errParse != nil {
		return nil, fmt.Errorf("security: invalid token: %w", errParse)
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, errors.New("security: invalid token claims")
	}
	return claims, nil
}

// ParseAdminToken parses a token and requires the admin role.
func ParseAdminToken(secret, token string) (*Claims, error) {
	return parseRoleToken(secret, token, RoleAdmin)
}

// ParseClientToken parses a token and requires the client role.
func ParseClientToken(secret, token string) (*Claims, error) {
	return parseRoleToken(secret, token, RoleClient)
}

func parseRoleToken(secret, token, role string) (*Claims, error) {
	claims, errParse := ParseToken(secret, token)
	if errParse != nil {
		return nil, errParse
	}
	if claims.Role != role {
		return nil, ErrWrongRole
	}
	if _, errSubject := claims.SubjectID(); errSubject != nil {
		return nil, errSubject
	}
	return claims, nil
}

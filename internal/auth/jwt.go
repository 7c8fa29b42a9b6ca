package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Issuer is stamped on every operator token.
const Issuer = "fleetfix"

// Operator roles. Viewers can read the queue; operators can also change it.
const (
	RoleViewer   = "viewer"
	RoleOperator = "operator"
)

// Claims identifies an operator of the management API.
type Claims struct {
	Email string `json:"email,omitempty"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Actor is the name recorded in audit records for this operator.
func (c *Claims) Actor() string {
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}

// CanMutate reports whether the role may create, approve or reject actions.
func (c *Claims) CanMutate() bool {
	return c.Role == RoleOperator
}

// ValidRole reports whether role is known.
func ValidRole(role string) bool {
	return role == RoleOperator || role == RoleViewer
}

// MintToken signs an HS256 operator token valid for ttl.
func MintToken(subject, email, role, secret string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("signing secret is empty")
	}
	if !ValidRole(role) {
		return "", errors.New("unknown role " + role)
	}
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Email: email,
		Role:  role,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   subject,
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	})
	return token.SignedString([]byte(secret))
}

// ParseClaims verifies tokenStr and returns its claims.
func ParseClaims(tokenStr, secret string) (*Claims, error) {
	t, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(Issuer))
	if err != nil {
		return nil, err
	}
	if c, ok := t.Claims.(*Claims); ok && t.Valid {
		return c, nil
	}
	return nil, jwt.ErrTokenInvalidClaims
}

// Package jwt firma y verifica los tokens HS256 con los que se identifican
// los usuarios del pipeline. La API solo verifica; la firma la usan el
// servicio de identidad y `pipelinectl token` en desarrollo.
package jwt

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Roles reconocidos.
const (
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

var (
	ErrEmptySecret  = errors.New("jwt: secret vacío")
	ErrExpired      = errors.New("jwt: token expirado")
	ErrInvalidToken = errors.New("jwt: token inválido")
	ErrUnknownRole  = errors.New("jwt: rol desconocido")
)

// Identity quién hace la petición y en nombre de qué empresa.
// Role vacío corresponde a tokens antiguos emitidos sin el claim.
type Identity struct {
	UserID    string
	CompanyID string
	Role      string
}

// CanWrite indica si el rol puede crear o mover documentos.
func (id Identity) CanWrite() bool {
	return id.Role == RoleAdmin || id.Role == RoleMember
}

func validRole(role string) bool {
	switch role {
	case "", RoleAdmin, RoleMember, RoleViewer:
		return true
	}
	return false
}

type claims struct {
	jwt.RegisteredClaims
	CompanyID string `json:"company_id"`
	Role      string `json:"role,omitempty"`
	// Los tokens del servicio de identidad repiten el usuario en user_id.
	UserID string `json:"user_id,omitempty"`
}

// Authority guarda el secreto compartido y el emisor esperado.
type Authority struct {
	secret []byte
	issuer string
	ttl    time.Duration
	leeway time.Duration
	now    func() time.Time
}

// New crea la autoridad. ttl solo afecta a Sign.
func New(secret, issuer string, ttl time.Duration) (*Authority, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Authority{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		leeway: 30 * time.Second,
		now:    time.Now,
	}, nil
}

// Sign emite un token para id.
func (a *Authority) Sign(id Identity) (string, error) {
	if id.UserID == "" || id.CompanyID == "" {
		return "", fmt.Errorf("%w: faltan usuario o empresa", ErrInvalidToken)
	}
	if !validRole(id.Role) {
		return "", fmt.Errorf("%w: %q", ErrUnknownRole, id.Role)
	}
	now := a.now()
	c := claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    a.issuer,
			Subject:   id.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
		UserID:    id.UserID,
		CompanyID: id.CompanyID,
		Role:      id.Role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(a.secret)
}

// Verify comprueba firma, emisor y caducidad y devuelve la identidad.
// Los errores envuelven ErrExpired, ErrInvalidToken o ErrUnknownRole.
func (a *Authority) Verify(token string) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithLeeway(a.leeway),
		jwt.WithTimeFunc(a.now),
	}
	if a.issuer != "" {
		opts = append(opts, jwt.WithIssuer(a.issuer))
	}

	var c claims
	_, err := jwt.ParseWithClaims(token, &c, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, opts...)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return Identity{}, ErrExpired
	case err != nil:
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	id := Identity{UserID: c.Subject, CompanyID: c.CompanyID, Role: c.Role}
	if id.UserID == "" {
		id.UserID = c.UserID
	}
	if id.UserID == "" || id.CompanyID == "" {
		return Identity{}, fmt.Errorf("%w: faltan usuario o empresa", ErrInvalidToken)
	}
	if !validRole(id.Role) {
		return Identity{}, fmt.Errorf("%w: %q", ErrUnknownRole, id.Role)
	}
	return id, nil
}

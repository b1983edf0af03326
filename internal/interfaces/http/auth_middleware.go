package http

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/lapublica/pipeline-api/internal/application/dto"
	"github.com/lapublica/pipeline-api/pkg/jwt"
)

// LocalIdentity clave de c.Locals con la jwt.Identity de la petición.
const LocalIdentity = "identity"

// Roles aceptados por RequireRole.
const (
	RoleAdmin  = jwt.RoleAdmin
	RoleMember = jwt.RoleMember
	RoleViewer = jwt.RoleViewer
)

// TokenVerifier lo implementa *jwt.Authority.
type TokenVerifier interface {
	Verify(token string) (jwt.Identity, error)
}

func unauthorized(c *fiber.Ctx, code, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(dto.ErrorResponse{Code: code, Message: msg})
}

// AuthMiddleware exige "Authorization: Bearer <token>" y deja la identidad en c.Locals.
func AuthMiddleware(verifier TokenVerifier) fiber.Handler {
	return func(c *fiber.Ctx) error {
		header := c.Get(fiber.HeaderAuthorization)
		if strings.TrimSpace(header) == "" {
			return unauthorized(c, "MISSING_TOKEN", "falta la cabecera Authorization")
		}
		scheme, token, ok := strings.Cut(header, " ")
		if !ok || !strings.EqualFold(scheme, "Bearer") {
			return unauthorized(c, "INVALID_TOKEN", "formato: Bearer <token>")
		}
		if token = strings.TrimSpace(token); token == "" {
			return unauthorized(c, "MISSING_TOKEN", "token vacío")
		}

		id, err := verifier.Verify(token)
		switch {
		case errors.Is(err, jwt.ErrExpired):
			return unauthorized(c, "TOKEN_EXPIRED", "el token ha caducado")
		case errors.Is(err, jwt.ErrUnknownRole):
			return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{Code: "FORBIDDEN", Message: "rol no reconocido"})
		case err != nil:
			return unauthorized(c, "INVALID_TOKEN", "token inválido")
		}
		c.Locals(LocalIdentity, id)
		return c.Next()
	}
}

// RequireRole deja pasar solo a los roles indicados. Va detrás de AuthMiddleware.
// Sin rol en el token responde 401 MISSING_ROLE; con otro rol, 403 FORBIDDEN.
func RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		role := Identity(c).Role
		if role == "" {
			return unauthorized(c, "MISSING_ROLE", "el token no incluye rol")
		}
		for _, r := range roles {
			if r == role {
				return c.Next()
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(dto.ErrorResponse{
			Code:    "FORBIDDEN",
			Message: "el rol " + role + " no puede realizar esta acción",
		})
	}
}

// Identity devuelve la identidad autenticada; vacía fuera de las rutas protegidas.
func Identity(c *fiber.Ctx) jwt.Identity {
	id, _ := c.Locals(LocalIdentity).(jwt.Identity)
	return id
}

func GetUserID(c *fiber.Ctx) string    { return Identity(c).UserID }
func GetCompanyID(c *fiber.Ctx) string { return Identity(c).CompanyID }
func GetRole(c *fiber.Ctx) string      { return Identity(c).Role }

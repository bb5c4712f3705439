package auth

import (
	"crypto/ecdsa"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt"
	"github.com/labstack/echo/v4"
	"uk.co.dudmesh.replybot/internal/model"
	"uk.co.dudmesh.replybot/pkg/crypt"
)

const claimsKey = "auth.claims"

// Claims are issued by the session service. Workspaces lists the workspaces
// the subject is a member of.
type Claims struct {
	jwt.StandardClaims
	Workspaces []model.WorkspaceID `json:"workspaces"`
}

func (c *Claims) Member(workspaceID model.WorkspaceID) bool {
	for _, id := range c.Workspaces {
		if id == workspaceID {
			return true
		}
	}
	return false
}

// Authorizer verifies ES256 bearer tokens. A nil key accepts every request
// and is only built outside production.
type Authorizer struct {
	key *ecdsa.PublicKey
}

func New(publicJWK string) (*Authorizer, error) {
	if publicJWK == "" {
		return &Authorizer{}, nil
	}
	key, err := crypt.DecodePublicKey(publicJWK)
	if err != nil {
		return nil, fmt.Errorf("loading auth key: %w", err)
	}
	return &Authorizer{key}, nil
}

func (a *Authorizer) Enforcing() bool {
	return a.key != nil
}

func (a *Authorizer) Authenticate(header string) (*Claims, error) {
	if a.key == nil {
		return nil, nil
	}

	raw := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
	if raw == "" || raw == header {
		return nil, model.ErrorUnauthenticated
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.key, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", model.ErrorUnauthenticated, err)
	}
	if claims.ExpiresAt == 0 {
		return nil, fmt.Errorf("%w: token has no expiry", model.ErrorUnauthenticated)
	}
	return claims, nil
}

// Middleware rejects requests without a valid bearer token.
func (a *Authorizer) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			claims, err := a.Authenticate(c.Request().Header.Get(echo.HeaderAuthorization))
			if err != nil {
				return echo.NewHTTPError(http.StatusUnauthorized, "unauthenticated")
			}
			c.Set(claimsKey, claims)
			return next(c)
		}
	}
}

// Authorized reports whether the authenticated caller may act on the
// workspace.
func Authorized(c echo.Context, workspaceID model.WorkspaceID) bool {
	claims, ok := c.Get(claimsKey).(*Claims)
	if !ok {
		return false
	}
	if claims == nil {
		return true
	}
	return claims.Member(workspaceID)
}

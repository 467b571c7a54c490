// Package auth resolves the caller identity. Behind API Gateway the
// authorizer context is trusted; in local mode the X-User-Id and
// X-User-Role headers are.
package auth

import (
	"context"
	"net/http"

	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/gin-gonic/gin"
)

// Roles
const (
	RoleCustomer = "customer"
	RoleAdmin    = "admin"
)

// Header names honoured when TrustHeaders is set.
const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
)

const identityKey = "auth.identity"

// Identity is the verified caller.
type Identity struct {
	UserID string
	Role   string
}

// IsAdmin reports whether the caller holds the admin role.
func (i Identity) IsAdmin() bool { return i.Role == RoleAdmin }

// Verifier extracts an Identity from a request.
type Verifier struct {
	// TrustHeaders enables the header fallback. Only for local runs.
	TrustHeaders bool
}

// Identify returns the caller or false when the request is anonymous.
func (v Verifier) Identify(r *http.Request) (Identity, bool) {
	if id, ok := fromGateway(r.Context()); ok {
		return id, true
	}
	if !v.TrustHeaders {
		return Identity{}, false
	}
	uid := r.Header.Get(HeaderUserID)
	if uid == "" {
		return Identity{}, false
	}
	return Identity{UserID: uid, Role: roleOrDefault(r.Header.Get(HeaderUserRole))}, true
}

// fromGateway reads a Cognito style claims map, or a Lambda authorizer
// principalId with an optional role entry.
func fromGateway(ctx context.Context) (Identity, bool) {
	gw, ok := core.GetAPIGatewayContextFromContext(ctx)
	if !ok || gw.Authorizer == nil {
		return Identity{}, false
	}
	if claims, ok := gw.Authorizer["claims"].(map[string]interface{}); ok {
		sub, _ := claims["sub"].(string)
		role, _ := claims["custom:role"].(string)
		if sub != "" {
			return Identity{UserID: sub, Role: roleOrDefault(role)}, true
		}
	}
	principal, _ := gw.Authorizer["principalId"].(string)
	if principal == "" {
		return Identity{}, false
	}
	role, _ := gw.Authorizer["role"].(string)
	return Identity{UserID: principal, Role: roleOrDefault(role)}, true
}

func roleOrDefault(role string) string {
	if role == "" {
		return RoleCustomer
	}
	return role
}

// Authenticate rejects anonymous requests with 401 and stores the identity
// on the gin context.
func Authenticate(v Verifier) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := v.Identify(c.Request)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

// RequireRole answers 403 unless the authenticated caller has role.
func RequireRole(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := FromContext(c)
		if !ok || id.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden"})
			return
		}
		c.Next()
	}
}

// FromContext returns the identity stored by Authenticate.
func FromContext(c *gin.Context) (Identity, bool) {
	v, ok := c.Get(identityKey)
	if !ok {
		return Identity{}, false
	}
	id, ok := v.(Identity)
	return id, ok
}

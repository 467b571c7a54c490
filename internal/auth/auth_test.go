package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/awslabs/aws-lambda-go-api-proxy/core"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentify_Headers(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set(HeaderUserID, "u1")

	_, ok := Verifier{}.Identify(r)
	assert.False(t, ok, "headers ignored unless trusted")

	id, ok := Verifier{TrustHeaders: true}.Identify(r)
	require.True(t, ok)
	assert.Equal(t, Identity{UserID: "u1", Role: RoleCustomer}, id)

	r.Header.Set(HeaderUserRole, RoleAdmin)
	id, _ = Verifier{TrustHeaders: true}.Identify(r)
	assert.True(t, id.IsAdmin())
}

func TestIdentify_Gateway(t *testing.T) {
	cases := map[string]struct {
		authorizer map[string]interface{}
		want       Identity
		ok         bool
	}{
		"cognito claims": {
			authorizer: map[string]interface{}{"claims": map[string]interface{}{"sub": "u9", "custom:role": "admin"}},
			want:       Identity{UserID: "u9", Role: RoleAdmin},
			ok:         true,
		},
		"lambda authorizer": {
			authorizer: map[string]interface{}{"principalId": "u7"},
			want:       Identity{UserID: "u7", Role: RoleCustomer},
			ok:         true,
		},
		"empty": {authorizer: map[string]interface{}{}},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			var ra core.RequestAccessor
			r, err := ra.EventToRequestWithContext(context.Background(), events.APIGatewayProxyRequest{
				HTTPMethod:     http.MethodGet,
				Path:           "/orders/my",
				RequestContext: events.APIGatewayProxyRequestContext{Authorizer: tc.authorizer},
			})
			require.NoError(t, err)
			id, ok := Verifier{}.Identify(r)
			assert.Equal(t, tc.ok, ok)
			assert.Equal(t, tc.want, id)
		})
	}
}

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(Authenticate(Verifier{TrustHeaders: true}))
	r.GET("/me", func(c *gin.Context) {
		id, _ := FromContext(c)
		c.String(http.StatusOK, id.UserID)
	})
	r.GET("/admin", RequireRole(RoleAdmin), func(c *gin.Context) { c.Status(http.StatusNoContent) })

	do := func(path, user, role string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		if user != "" {
			req.Header.Set(HeaderUserID, user)
		}
		if role != "" {
			req.Header.Set(HeaderUserRole, role)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, do("/me", "", "").Code)
	w := do("/me", "u1", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", w.Body.String())
	assert.Equal(t, http.StatusForbidden, do("/admin", "u1", "").Code)
	assert.Equal(t, http.StatusNoContent, do("/admin", "u1", RoleAdmin).Code)
}

package echoapi_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dgrijalva/jwt-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	echoapi "github.com/mozedu/mozedu/apps/api/echo"
	"github.com/mozedu/mozedu/core/user"
	"github.com/mozedu/mozedu/testutil"
)

func TestServer_home(t *testing.T) {
	f := setup(t)
	req, rec := newRequest(http.MethodGet, "/")
	f.app.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Welcome to Mozedu API!", rec.Body.String())
}

func Test_userApi_login(t *testing.T) {
	f := setup(t)
	pwd := "Mozedu#2024"
	parent := testutil.CreateUser(t, f.usrRepo, "Maria Sitoe", "maria", "maria@test.cd", pwd, []string{user.RoleParent}, true)
	testutil.CreateUser(t, f.usrRepo, "N Dog", "ndog", "ndog@test.cd", pwd, []string{user.RoleParent}, false)

	authFailed := marchallObj(t, httpErr{Error: "authentication failed"})
	runHTTPTests(t, f.app, []httpTest{
		{
			name: "Empty payload", method: http.MethodPost, path: "/v1/users/login", body: []byte(`{}`),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"username": "this field is required", "password": "this field is required"}),
		},
		{
			name: "Unknown user", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, echoapi.LoginRequest{Username: "nobody", Password: pwd}),
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "Wrong password", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, echoapi.LoginRequest{Username: "maria", Password: "wrong"}),
			wantCode: http.StatusBadRequest, wantData: authFailed,
		},
		{
			name: "Deactivated account", method: http.MethodPost, path: "/v1/users/login",
			body:     marchallObj(t, echoapi.LoginRequest{Username: "ndog", Password: pwd}),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
	})

	t.Run("Success (email, mixed case)", func(t *testing.T) {
		req, rec := newRequest(http.MethodPost, "/v1/users/login",
			marchallObj(t, echoapi.LoginRequest{Username: " Maria@Test.cd ", Password: pwd}))
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res echoapi.LoginResponse
		unmarshal(t, rec, &res)
		claims := new(echoapi.Claims)
		_, err := jwt.ParseWithClaims(res.Token, claims, func(*jwt.Token) (interface{}, error) {
			return []byte(f.conf.SecretKey), nil
		})
		require.NoError(t, err)
		assert.Equal(t, parent.ID, claims.Subject)
		assert.True(t, claims.IsParent)
		assert.False(t, claims.IsAdmin)

		usr, err := f.usrRepo.GetUser(context.Background(), user.GetFilter{ID: parent.ID})
		require.NoError(t, err)
		assert.False(t, usr.LastLogin.IsZero())
	})
}

func Test_userApi_refreshToken(t *testing.T) {
	f := setup(t)
	parent := testutil.CreateUser(t, f.usrRepo, "Maria Sitoe", "maria", "maria@test.cd", "", []string{user.RoleParent}, true)
	naughty := testutil.CreateUser(t, f.usrRepo, "N Dog", "ndog", "ndog@test.cd", "", []string{user.RoleParent}, false)
	longAgo := time.Now().Add(-f.conf.Server.JWTRefreshExpirationDelta - time.Minute).Unix()

	runHTTPTests(t, f.app, []httpTest{
		{
			name: "Auth required", method: http.MethodPost, path: "/v1/users/token-refresh",
			wantCode: http.StatusUnauthorized, wantData: marchallObj(t, errMissingToken),
		},
		{
			name: "Invalid token", method: http.MethodPost, path: "/v1/users/token-refresh", token: "not.a.jwt",
			wantCode: http.StatusUnauthorized,
		},
		{
			name: "Deactivated account", method: http.MethodPost, path: "/v1/users/token-refresh",
			token:    getToken(t, f.conf, naughty),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "account deactivated"}),
		},
		{
			name: "Refresh expired", method: http.MethodPost, path: "/v1/users/token-refresh",
			token:    getToken(t, f.conf, parent, longAgo),
			wantCode: http.StatusForbidden, wantData: marchallObj(t, httpErr{Error: "refresh has expired"}),
		},
	})

	t.Run("Success", func(t *testing.T) {
		req, rec := newAuthRequest(http.MethodPost, "/v1/users/token-refresh", getToken(t, f.conf, parent))
		f.app.ServeHTTP(rec, req)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

		var res echoapi.LoginResponse
		unmarshal(t, rec, &res)
		assert.NotEmpty(t, res.Token)
	})
}

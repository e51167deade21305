package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nutricoach/internal/adapters/http/handlers"
	"nutricoach/internal/adapters/http/middleware"
	"nutricoach/internal/adapters/persistence/models"
	"nutricoach/internal/config"
	"nutricoach/internal/core/domain"
	"nutricoach/internal/core/services"
	"nutricoach/internal/pkg/jwt"
	"nutricoach/internal/pkg/metrics"
	"nutricoach/internal/pkg/password"
	"nutricoach/internal/testutil"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Str0ng!Pass"

type testServer struct {
	app         *fiber.App
	users       *testutil.Users
	ledger      *testutil.Ledger
	assignments *testutil.Assignments
	tokens      *jwt.Manager
	policy      *password.Policy
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

func newTestServer(t *testing.T, probes map[string]handlers.Probe) *testServer {
	t.Helper()

	cfg := &config.Config{
		AppMode:  "dev",
		Cookie:   config.CookieConfig{SameSite: "lax"},
		Security: config.SecurityConfig{AuthRatePerMin: 1000},
	}

	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
	})
	require.NoError(t, err)

	s := &testServer{
		users:       testutil.NewUsers(),
		ledger:      testutil.NewLedger(),
		assignments: testutil.NewAssignments(),
		tokens:      tokens,
		policy:      password.NewPolicy(bcrypt.MinCost),
	}

	m := metrics.New(nil)
	deps := &Dependencies{
		Config:      cfg,
		Metrics:     m,
		Auth:        services.NewAuthService(s.users, s.ledger, s.policy, tokens, nil, m),
		Sessions:    services.NewSessionService(tokens, s.users, s.ledger, m),
		Roles:       services.NewRoleService(s.assignments),
		Clients:     services.NewClientService(s.users),
		Assignments: services.NewAssignmentService(s.users, s.assignments),
		Users:       services.NewUserService(s.users, s.ledger, s.policy),
		Dashboard:   services.NewDashboardService(s.users, s.ledger),
		Probes:      probes,
	}

	s.app = fiber.New(fiber.Config{ErrorHandler: middleware.CustomErrorHandler})
	middleware.Setup(s.app, cfg, m)
	Setup(s.app, deps)
	return s
}

func (s *testServer) seedUser(t *testing.T, email string, role domain.Role) *models.User {
	t.Helper()

	hash, err := s.policy.Hash(testPassword)
	require.NoError(t, err)

	user := &models.User{Email: email, Password: hash, Role: string(role), IsActive: true}
	require.NoError(t, s.users.Create(context.Background(), user))
	return user
}

// bearer returns an Authorization header value for user
func (s *testServer) bearer(t *testing.T, user *models.User) string {
	t.Helper()

	token, _, err := s.tokens.IssueAccessToken(user.Identity(), time.Minute)
	require.NoError(t, err)
	return "Bearer " + token
}

func (s *testServer) expiredAccess(t *testing.T, user *models.User) string {
	t.Helper()

	token, _, err := s.tokens.IssueAccessToken(user.Identity(), -time.Second)
	require.NoError(t, err)
	return token
}

func (s *testServer) do(t *testing.T, req *http.Request) (*http.Response, envelope) {
	t.Helper()

	resp, err := s.app.Test(req, -1)
	require.NoError(t, err)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	_ = resp.Body.Close()

	var env envelope
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
		require.NoError(t, json.Unmarshal(raw, &env), string(raw))
	}
	return resp, env
}

func (s *testServer) login(t *testing.T, email string) (*http.Response, envelope) {
	t.Helper()

	resp, env := s.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"email":    email,
		"password": testPassword,
	}))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	return resp, env
}

func jsonRequest(method, target string, body interface{}) *http.Request {
	var reader io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	return req
}

func cookieNamed(resp *http.Response, name string) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func decodeData(t *testing.T, env envelope, into interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(env.Data, into))
}

type meData struct {
	User struct {
		ID    uint   `json:"id"`
		Email string `json:"email"`
	} `json:"user"`
	ActualRole    string `json:"actual_role"`
	EffectiveRole string `json:"effective_role"`
	IsActingAs    bool   `json:"is_acting_as"`
}

func TestLoginSetsSessionCookies(t *testing.T) {
	s := newTestServer(t, nil)
	s.seedUser(t, "ann@example.com", domain.RoleClient)

	resp, env := s.login(t, "Ann@Example.com")
	assert.True(t, env.Success)

	access := cookieNamed(resp, middleware.AccessCookieName)
	refresh := cookieNamed(resp, middleware.RefreshCookieName)
	require.NotNil(t, access)
	require.NotNil(t, refresh)

	for _, c := range []*http.Cookie{access, refresh} {
		assert.True(t, c.HttpOnly, c.Name)
		assert.Equal(t, "/", c.Path, c.Name)
		assert.Equal(t, http.SameSiteLaxMode, c.SameSite, c.Name)
		assert.NotEmpty(t, c.Value, c.Name)
	}

	assert.WithinDuration(t, time.Now().Add(jwt.DefaultAccessTTL), access.Expires, 5*time.Second)
	assert.WithinDuration(t, time.Now().Add(jwt.DefaultRefreshTTL), refresh.Expires, 5*time.Second)
	assert.True(t, s.ledger.Has(refresh.Value))
	assert.Equal(t, "no-store, no-cache, must-revalidate", resp.Header.Get("Cache-Control"))
}

func TestLoginFailuresAreIndistinguishable(t *testing.T) {
	s := newTestServer(t, nil)
	s.seedUser(t, "ann@example.com", domain.RoleClient)

	wrong, wrongEnv := s.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"email": "ann@example.com", "password": "Wr0ng!Pass",
	}))
	unknown, unknownEnv := s.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/login", fiber.Map{
		"email": "nobody@example.com", "password": testPassword,
	}))

	assert.Equal(t, http.StatusUnauthorized, wrong.StatusCode)
	assert.Equal(t, wrong.StatusCode, unknown.StatusCode)
	assert.Equal(t, domain.CodeInvalidCredentials, wrongEnv.Code)
	assert.Equal(t, wrongEnv.Code, unknownEnv.Code)
	assert.Equal(t, wrongEnv.Error, unknownEnv.Error)
}

func TestRequestWithoutTokenIsRejected(t *testing.T) {
	s := newTestServer(t, nil)

	resp, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil))
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, domain.CodeNoToken, env.Code)
}

func TestInvalidTokenIsRejected(t *testing.T) {
	s := newTestServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, "Bearer not-a-jwt")
	resp, env := s.do(t, req)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, domain.CodeInvalidToken, env.Code)
}

func TestBearerTakesPrecedenceOverCookie(t *testing.T) {
	s := newTestServer(t, nil)
	ann := s.seedUser(t, "ann@example.com", domain.RoleClient)
	bob := s.seedUser(t, "bob@example.com", domain.RoleClient)

	bobCookie, _, err := s.tokens.IssueAccessToken(bob.Identity(), time.Minute)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	req.Header.Set(fiber.HeaderAuthorization, s.bearer(t, ann))
	req.AddCookie(&http.Cookie{Name: middleware.AccessCookieName, Value: bobCookie})

	resp, env := s.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	var me meData
	decodeData(t, env, &me)
	assert.Equal(t, "ann@example.com", me.User.Email)
}

// An expired access token with a valid refresh cookie is silently rotated,
// and replaying the consumed refresh token is refused with cleared cookies.
func TestSilentRotationAndReplay(t *testing.T) {
	s := newTestServer(t, nil)
	ann := s.seedUser(t, "ann@example.com", domain.RoleClient)

	loginResp, _ := s.login(t, ann.Email)
	oldRefresh := cookieNamed(loginResp, middleware.RefreshCookieName).Value
	expired := s.expiredAccess(t, ann)

	request := func() *http.Request {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
		req.AddCookie(&http.Cookie{Name: middleware.AccessCookieName, Value: expired})
		req.AddCookie(&http.Cookie{Name: middleware.RefreshCookieName, Value: oldRefresh})
		return req
	}

	resp, env := s.do(t, request())
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	newAccess := resp.Header.Get(middleware.HeaderAccessToken)
	newRefresh := resp.Header.Get(middleware.HeaderRefreshToken)
	assert.NotEmpty(t, newAccess)
	assert.NotEmpty(t, newRefresh)
	assert.NotEqual(t, oldRefresh, newRefresh)
	assert.Equal(t, newAccess, cookieNamed(resp, middleware.AccessCookieName).Value)
	assert.Equal(t, newRefresh, cookieNamed(resp, middleware.RefreshCookieName).Value)
	assert.False(t, s.ledger.Has(oldRefresh))
	assert.True(t, s.ledger.Has(newRefresh))

	replay, replayEnv := s.do(t, request())
	assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)
	assert.Equal(t, domain.CodeRefreshTokenExpired, replayEnv.Code)

	for _, name := range []string{middleware.AccessCookieName, middleware.RefreshCookieName} {
		cleared := cookieNamed(replay, name)
		require.NotNil(t, cleared, name)
		assert.Empty(t, cleared.Value, name)
		assert.True(t, cleared.Expires.Before(time.Now()), name)
	}
	assert.True(t, s.ledger.Has(newRefresh), "replay must not touch the successor session")
}

func TestExplicitRefreshEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	ann := s.seedUser(t, "ann@example.com", domain.RoleClient)

	loginResp, _ := s.login(t, ann.Email)
	refresh := cookieNamed(loginResp, middleware.RefreshCookieName).Value

	resp, env := s.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/refresh", fiber.Map{"refresh_token": refresh}))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	var data struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	decodeData(t, env, &data)
	assert.NotEmpty(t, data.AccessToken)
	assert.True(t, s.ledger.Has(data.RefreshToken))
	assert.False(t, s.ledger.Has(refresh))

	replay, replayEnv := s.do(t, jsonRequest(http.MethodPost, "/api/v1/auth/refresh", fiber.Map{"refresh_token": refresh}))
	assert.Equal(t, http.StatusUnauthorized, replay.StatusCode)
	assert.Equal(t, domain.CodeRefreshTokenExpired, replayEnv.Code)

	missing, missingEnv := s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/auth/refresh", nil))
	assert.Equal(t, http.StatusUnauthorized, missing.StatusCode)
	assert.Equal(t, domain.CodeSessionExpired, missingEnv.Code)
}

func TestLogoutIsIdempotent(t *testing.T) {
	s := newTestServer(t, nil)
	ann := s.seedUser(t, "ann@example.com", domain.RoleClient)

	loginResp, _ := s.login(t, ann.Email)
	refresh := cookieNamed(loginResp, middleware.RefreshCookieName).Value

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil)
		req.AddCookie(&http.Cookie{Name: middleware.RefreshCookieName, Value: refresh})
		resp, _ := s.do(t, req)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Empty(t, cookieNamed(resp, middleware.RefreshCookieName).Value)
	}
	assert.False(t, s.ledger.Has(refresh))

	resp, _ := s.do(t, httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout", nil))
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogoutAllRevokesEverySession(t *testing.T) {
	s := newTestServer(t, nil)
	ann := s.seedUser(t, "ann@example.com", domain.RoleClient)

	s.login(t, ann.Email)
	s.login(t, ann.Email)
	require.Equal(t, 2, s.ledger.Len())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/auth/logout-all", nil)
	req.Header.Set(fiber.HeaderAuthorization, s.bearer(t, ann))
	resp, env := s.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	assert.Equal(t, 0, s.ledger.Len())
}

func TestRegister(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.seedUser(t, "root@example.com", domain.RoleAdmin)
	coach := s.seedUser(t, "coach@example.com", domain.RoleCoach)

	register := func(body fiber.Map, auth string) (*http.Response, envelope) {
		req := jsonRequest(http.MethodPost, "/api/v1/auth/register", body)
		if auth != "" {
			req.Header.Set(fiber.HeaderAuthorization, auth)
		}
		return s.do(t, req)
	}

	t.Run("weak password lists missing classes", func(t *testing.T) {
		resp, env := register(fiber.Map{"email": "weak@example.com", "password": "abc12345"}, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, domain.CodePolicyViolation, env.Code)

		var data struct {
			Missing []string `json:"missing"`
		}
		decodeData(t, env, &data)
		assert.ElementsMatch(t, []string{password.ClassUppercase, password.ClassSymbol}, data.Missing)
		assert.Equal(t, 0, s.ledger.Len())
	})

	t.Run("client by default", func(t *testing.T) {
		resp, env := register(fiber.Map{"email": "new@example.com", "password": testPassword}, "")
		require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)
		assert.NotNil(t, cookieNamed(resp, middleware.RefreshCookieName))

		var data struct {
			User struct {
				Role string `json:"role"`
			} `json:"user"`
		}
		decodeData(t, env, &data)
		assert.Equal(t, string(domain.RoleClient), data.User.Role)
	})

	t.Run("duplicate email", func(t *testing.T) {
		resp, env := register(fiber.Map{"email": "NEW@example.com", "password": testPassword}, "")
		assert.Equal(t, http.StatusConflict, resp.StatusCode)
		assert.Equal(t, domain.CodeEmailTaken, env.Code)
	})

	t.Run("admin requires admin bearer", func(t *testing.T) {
		body := fiber.Map{"email": "admin2@example.com", "password": testPassword, "role": "ADMIN"}

		resp, env := register(body, "")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, domain.CodeAdminOnly, env.Code)

		resp, env = register(body, s.bearer(t, coach))
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, domain.CodeAdminOnly, env.Code)

		resp, env = register(body, "Bearer garbage")
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
		assert.Equal(t, domain.CodeAdminOnly, env.Code)

		resp, env = register(body, s.bearer(t, admin))
		assert.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)
	})

	t.Run("client ignores a stale bearer", func(t *testing.T) {
		resp, env := register(fiber.Map{"email": "stale@example.com", "password": testPassword}, "Bearer garbage")
		require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)
	})

	t.Run("password longer than bcrypt accepts", func(t *testing.T) {
		long := "Aa1!" + strings.Repeat("x", 80)
		resp, env := register(fiber.Map{"email": "long@example.com", "password": long}, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, domain.CodePolicyViolation, env.Code)

		var data struct {
			Missing []string `json:"missing"`
		}
		decodeData(t, env, &data)
		assert.Equal(t, []string{password.ClassLength}, data.Missing)
	})

	t.Run("unknown role", func(t *testing.T) {
		resp, env := register(fiber.Map{"email": "x@example.com", "password": testPassword, "role": "OWNER"}, "")
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, domain.CodeInvalidInput, env.Code)
	})
}

// A coach may read a client only once an administrator assigns them.
func TestCoachAccessFollowsAssignment(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.seedUser(t, "root@example.com", domain.RoleAdmin)
	coach := s.seedUser(t, "coach@example.com", domain.RoleCoach)
	client := s.seedUser(t, "client@example.com", domain.RoleClient)

	getClient := func() (*http.Response, envelope) {
		req := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/clients/%d", client.ID), nil)
		req.Header.Set(fiber.HeaderAuthorization, s.bearer(t, coach))
		return s.do(t, req)
	}

	resp, env := getClient()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, domain.CodeNotAssigned, env.Code)

	assign := jsonRequest(http.MethodPost, "/api/v1/assignments", fiber.Map{"coach_id": coach.ID, "client_id": client.ID})
	assign.Header.Set(fiber.HeaderAuthorization, s.bearer(t, admin))
	resp, env = s.do(t, assign)
	require.Equal(t, http.StatusCreated, resp.StatusCode, env.Error)

	resp, env = getClient()
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	assert.Equal(t, "private, max-age=30", resp.Header.Get("Cache-Control"))

	list := httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil)
	list.Header.Set(fiber.HeaderAuthorization, s.bearer(t, coach))
	resp, env = s.do(t, list)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	var page struct {
		Data []struct {
			ID uint `json:"id"`
		} `json:"data"`
		Meta struct {
			Total int64 `json:"total"`
		} `json:"meta"`
	}
	decodeData(t, env, &page)
	require.Len(t, page.Data, 1)
	assert.Equal(t, client.ID, page.Data[0].ID)
	assert.EqualValues(t, 1, page.Meta.Total)

	unassign := httptest.NewRequest(http.MethodDelete, fmt.Sprintf("/api/v1/assignments/%d/%d", coach.ID, client.ID), nil)
	unassign.Header.Set(fiber.HeaderAuthorization, s.bearer(t, admin))
	resp, env = s.do(t, unassign)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	resp, env = getClient()
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, domain.CodeNotAssigned, env.Code)
}

func TestClientReadsOnlyThemselves(t *testing.T) {
	s := newTestServer(t, nil)
	ann := s.seedUser(t, "ann@example.com", domain.RoleClient)
	bob := s.seedUser(t, "bob@example.com", domain.RoleClient)

	self := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/clients/%d", ann.ID), nil)
	self.Header.Set(fiber.HeaderAuthorization, s.bearer(t, ann))
	resp, env := s.do(t, self)
	assert.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	other := httptest.NewRequest(http.MethodGet, fmt.Sprintf("/api/v1/clients/%d", bob.ID), nil)
	other.Header.Set(fiber.HeaderAuthorization, s.bearer(t, ann))
	resp, env = s.do(t, other)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, domain.CodeForbiddenRole, env.Code)

	list := httptest.NewRequest(http.MethodGet, "/api/v1/clients", nil)
	list.Header.Set(fiber.HeaderAuthorization, s.bearer(t, ann))
	resp, env = s.do(t, list)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, domain.CodeForbiddenRole, env.Code)
}

// An administrator acting as a client is authorized as a client while the
// actual role stays visible for auditing.
func TestAdminImpersonation(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.seedUser(t, "root@example.com", domain.RoleAdmin)
	coach := s.seedUser(t, "coach@example.com", domain.RoleCoach)
	client := s.seedUser(t, "client@example.com", domain.RoleClient)

	withRole := func(method, target string, user *models.User, actAs string) *http.Request {
		req := httptest.NewRequest(method, target, nil)
		req.Header.Set(fiber.HeaderAuthorization, s.bearer(t, user))
		if actAs != "" {
			req.Header.Set(services.ActAsHeader, actAs)
		}
		return req
	}

	resp, env := s.do(t, withRole(http.MethodGet, "/api/v1/auth/me", admin, "CLIENT"))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	var me meData
	decodeData(t, env, &me)
	assert.Equal(t, string(domain.RoleAdmin), me.ActualRole)
	assert.Equal(t, string(domain.RoleClient), me.EffectiveRole)
	assert.True(t, me.IsActingAs)

	resp, env = s.do(t, withRole(http.MethodGet, "/api/v1/clients", admin, "CLIENT"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, domain.CodeForbiddenRole, env.Code)

	resp, env = s.do(t, withRole(http.MethodGet, "/api/v1/clients", admin, "COACH"))
	assert.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	resp, env = s.do(t, withRole(http.MethodDelete, fmt.Sprintf("/api/v1/assignments/%d/%d", coach.ID, client.ID), admin, "COACH"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, domain.CodeAdminOnly, env.Code)

	// Owner checks still see the administrator
	resp, env = s.do(t, withRole(http.MethodGet, fmt.Sprintf("/api/v1/clients/%d", client.ID), admin, "CLIENT"))
	assert.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	// Non-administrators cannot raise themselves
	resp, env = s.do(t, withRole(http.MethodGet, "/api/v1/auth/me", coach, "ADMIN"))
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	me = meData{}
	decodeData(t, env, &me)
	assert.Equal(t, string(domain.RoleCoach), me.EffectiveRole)
	assert.False(t, me.IsActingAs)

	resp, env = s.do(t, withRole(http.MethodDelete, fmt.Sprintf("/api/v1/assignments/%d/%d", coach.ID, client.ID), coach, "ADMIN"))
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, domain.CodeAdminOnly, env.Code)
}

func TestAssignmentValidation(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.seedUser(t, "root@example.com", domain.RoleAdmin)
	client := s.seedUser(t, "client@example.com", domain.RoleClient)

	post := func(body fiber.Map) (*http.Response, envelope) {
		req := jsonRequest(http.MethodPost, "/api/v1/assignments", body)
		req.Header.Set(fiber.HeaderAuthorization, s.bearer(t, admin))
		return s.do(t, req)
	}

	resp, env := post(fiber.Map{"coach_id": client.ID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.CodeInvalidInput, env.Code)

	resp, env = post(fiber.Map{"coach_id": client.ID, "client_id": client.ID})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.CodeInvalidInput, env.Code)

	resp, env = post(fiber.Map{"coach_id": 999, "client_id": client.ID})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, domain.CodeNotFound, env.Code)
}

func TestHealthReportsProbes(t *testing.T) {
	s := newTestServer(t, map[string]handlers.Probe{
		"database": func(context.Context) error { return nil },
		"redis":    func(context.Context) error { return errors.New("down") },
	})

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/health", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body struct {
		Status string            `json:"status"`
		Checks map[string]string `json:"checks"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "degraded", body.Status)
	assert.Equal(t, "healthy", body.Checks["database"])
	assert.Equal(t, "unhealthy", body.Checks["redis"])
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	s.seedUser(t, "ann@example.com", domain.RoleClient)
	s.login(t, "ann@example.com")

	resp, err := s.app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `nutricoach_login_attempts_total{result="ok"} 1`)
	assert.Contains(t, string(raw), "http_requests_total")
}

func TestUnknownRouteUsesErrorEnvelope(t *testing.T) {
	s := newTestServer(t, nil)

	resp, env := s.do(t, httptest.NewRequest(http.MethodGet, "/api/v1/nope", nil))
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, domain.CodeNotFound, env.Code)
}

func TestDeactivatedUserLosesSession(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.seedUser(t, "root@example.com", domain.RoleAdmin)
	ann := s.seedUser(t, "ann@example.com", domain.RoleClient)

	annBearer := s.bearer(t, ann)

	patch := jsonRequest(http.MethodPatch, fmt.Sprintf("/api/v1/users/%d", ann.ID), fiber.Map{"is_active": false})
	patch.Header.Set(fiber.HeaderAuthorization, s.bearer(t, admin))
	resp, env := s.do(t, patch)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)

	me := httptest.NewRequest(http.MethodGet, "/api/v1/auth/me", nil)
	me.Header.Set(fiber.HeaderAuthorization, annBearer)
	resp, env = s.do(t, me)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, domain.CodeInvalidSession, env.Code)

	self := jsonRequest(http.MethodPatch, fmt.Sprintf("/api/v1/users/%d", admin.ID), fiber.Map{"role": "COACH"})
	self.Header.Set(fiber.HeaderAuthorization, s.bearer(t, admin))
	resp, env = s.do(t, self)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.CodeSelfModification, env.Code)
}

func TestUserManagementIsAdminOnly(t *testing.T) {
	s := newTestServer(t, nil)
	coach := s.seedUser(t, "coach@example.com", domain.RoleCoach)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/users", nil)
	req.Header.Set(fiber.HeaderAuthorization, s.bearer(t, coach))
	resp, env := s.do(t, req)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, domain.CodeAdminOnly, env.Code)
}

func TestChangePasswordEndsSessions(t *testing.T) {
	s := newTestServer(t, nil)
	ann := s.seedUser(t, "ann@example.com", domain.RoleClient)

	loginResp, _ := s.login(t, ann.Email)
	refresh := cookieNamed(loginResp, middleware.RefreshCookieName).Value

	req := jsonRequest(http.MethodPut, "/api/v1/profile/password", fiber.Map{
		"old_password": testPassword,
		"new_password": "N3w!Passw0rd",
	})
	req.Header.Set(fiber.HeaderAuthorization, s.bearer(t, ann))
	resp, env := s.do(t, req)
	require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
	assert.False(t, s.ledger.Has(refresh))
	assert.Empty(t, cookieNamed(resp, middleware.RefreshCookieName).Value)

	wrong := jsonRequest(http.MethodPut, "/api/v1/profile/password", fiber.Map{
		"old_password": testPassword,
		"new_password": "An0ther!Pass",
	})
	wrong.Header.Set(fiber.HeaderAuthorization, s.bearer(t, ann))
	resp, env = s.do(t, wrong)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, domain.CodeWrongPassword, env.Code)
}

func TestDashboardByRole(t *testing.T) {
	s := newTestServer(t, nil)
	admin := s.seedUser(t, "root@example.com", domain.RoleAdmin)
	coach := s.seedUser(t, "coach@example.com", domain.RoleCoach)
	client := s.seedUser(t, "client@example.com", domain.RoleClient)
	s.seedUser(t, "other@example.com", domain.RoleClient)
	require.NoError(t, s.assignments.Create(context.Background(), coach.ID, client.ID))
	s.login(t, coach.Email)

	get := func(user *models.User) envelope {
		req := httptest.NewRequest(http.MethodGet, "/api/v1/dashboard", nil)
		req.Header.Set(fiber.HeaderAuthorization, s.bearer(t, user))
		resp, env := s.do(t, req)
		require.Equal(t, http.StatusOK, resp.StatusCode, env.Error)
		return env
	}

	var data struct {
		Role           string           `json:"role"`
		ActiveSessions int64            `json:"active_sessions"`
		UsersByRole    map[string]int64 `json:"users_by_role"`
		Clients        []struct {
			ID uint `json:"id"`
		} `json:"clients"`
		Coaches []struct {
			ID uint `json:"id"`
		} `json:"coaches"`
	}

	decodeData(t, get(admin), &data)
	assert.Equal(t, map[string]int64{"ADMIN": 1, "COACH": 1, "CLIENT": 2}, data.UsersByRole)

	data.UsersByRole = nil
	decodeData(t, get(coach), &data)
	assert.EqualValues(t, 1, data.ActiveSessions)
	require.Len(t, data.Clients, 1)
	assert.Equal(t, client.ID, data.Clients[0].ID)

	decodeData(t, get(client), &data)
	require.Len(t, data.Coaches, 1)
	assert.Equal(t, coach.ID, data.Coaches[0].ID)
}

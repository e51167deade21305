package services

import (
	"context"
	"testing"
	"time"

	"nutricoach/internal/adapters/persistence/models"
	"nutricoach/internal/core/domain"
	"nutricoach/internal/pkg/jwt"
	"nutricoach/internal/pkg/metrics"
	"nutricoach/internal/pkg/password"
	"nutricoach/internal/testutil"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testPassword = "Str0ng!Pass"

type testEnv struct {
	users       *testutil.Users
	ledger      *testutil.Ledger
	assignments *testutil.Assignments

	policy   *password.Policy
	tokens   *jwt.Manager
	metrics  *metrics.Metrics
	sessions *SessionService
	roles    *RoleService
	auth     *AuthService
	clients  *ClientService
	assign   *AssignmentService
}

func newTestEnv(t *testing.T) *testEnv {
	return newTestEnvWithLimiter(t, nil)
}

func newTestEnvWithLimiter(t *testing.T, limiter *LoginLimiter) *testEnv {
	t.Helper()

	tokens, err := jwt.NewManager(jwt.Config{
		AccessSecret:  "access-secret-for-tests",
		RefreshSecret: "refresh-secret-for-tests",
	})
	require.NoError(t, err)

	env := &testEnv{
		users:       testutil.NewUsers(),
		ledger:      testutil.NewLedger(),
		assignments: testutil.NewAssignments(),
		policy:      password.NewPolicy(bcrypt.MinCost),
		tokens:      tokens,
		metrics:     metrics.New(nil),
	}
	env.sessions = NewSessionService(tokens, env.users, env.ledger, env.metrics)
	env.roles = NewRoleService(env.assignments)
	env.auth = NewAuthService(env.users, env.ledger, env.policy, tokens, limiter, env.metrics)
	env.clients = NewClientService(env.users)
	env.assign = NewAssignmentService(env.users, env.assignments)
	return env
}

func (e *testEnv) seedUser(t *testing.T, email string, role domain.Role) *models.User {
	t.Helper()

	hash, err := e.policy.Hash(testPassword)
	require.NoError(t, err)

	user := &models.User{Email: email, Password: hash, Role: string(role), IsActive: true}
	require.NoError(t, e.users.Create(context.Background(), user))
	return user
}

// login opens a session for user and returns its pair
func (e *testEnv) login(t *testing.T, user *models.User) *domain.TokenPair {
	t.Helper()

	result, err := e.auth.Login(context.Background(), &LoginInput{Email: user.Email, Password: testPassword})
	require.NoError(t, err)
	return result.Tokens
}

// expiredAccess returns an access token that expired a second ago
func (e *testEnv) expiredAccess(t *testing.T, user *models.User) string {
	t.Helper()

	token, _, err := e.tokens.IssueAccessToken(user.Identity(), -time.Second)
	require.NoError(t, err)
	return token
}

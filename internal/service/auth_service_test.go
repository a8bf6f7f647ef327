package service

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"ptcoach/pt-manager/internal/domain"
	"ptcoach/pt-manager/internal/email"
	"ptcoach/pt-manager/internal/guard"
	"ptcoach/pt-manager/internal/logging"
)

type authFixture struct {
	svc     *authService
	coaches *fakeCoachRepo
	clients *fakeClientRepo
	resets  *fakeResetRepo
	sender  *email.NoopSender
}

func newAuthFixture(t *testing.T) *authFixture {
	t.Helper()
	f := &authFixture{
		coaches: &fakeCoachRepo{},
		clients: newFakeClientRepo(),
		resets:  &fakeResetRepo{},
		sender:  email.NewNoopSender(logging.Nop()),
	}
	mailer := email.NewMailer(f.sender, "", "https://app.test")
	f.svc = NewAuthService(f.coaches, f.clients, f.resets, mailer, guard.NewRevocations(),
		logging.Nop(), "secret", time.Hour, time.Hour).(*authService)
	return f
}

func mustHash(t *testing.T, pw string) string {
	t.Helper()
	h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
	require.NoError(t, err)
	return string(h)
}

func TestAdminLogin(t *testing.T) {
	f := newAuthFixture(t)
	coach := f.coaches.add(domain.Coach{Name: "Coach", Email: "coach@test.it", PasswordHash: mustHash(t, "secret1")})
	ctx := context.Background()

	res, err := f.svc.AdminLogin(ctx, " Coach@Test.it ", "secret1")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, res.Role)
	assert.Equal(t, coach.ID.Hex(), res.UserID)

	claims, err := f.svc.ParseToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, coach.ID.Hex(), claims.UserID)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
	assert.NotEmpty(t, claims.ID)

	_, err = f.svc.AdminLogin(ctx, "coach@test.it", "wrong")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
	_, err = f.svc.AdminLogin(ctx, "nobody@test.it", "secret1")
	assert.ErrorIs(t, err, ErrAuthenticationFailed)
}

func TestClientLogin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.clients.add(domain.Client{Name: "Mario", Email: "mario@test.it", PasswordHash: mustHash(t, "temp12"), IsClient: true, FirstLogin: true})
	f.clients.add(domain.Client{Name: "Legacy", Email: "legacy@test.it", PasswordHash: mustHash(t, "temp12")})

	res, err := f.svc.ClientLogin(ctx, "mario@test.it", "temp12")
	require.NoError(t, err)
	assert.Equal(t, domain.RoleClient, res.Role)
	assert.True(t, res.FirstLogin)

	_, err = f.svc.ClientLogin(ctx, "legacy@test.it", "temp12")
	assert.ErrorIs(t, err, ErrNotClientAccount)
}

func TestParseToken_RejectsRevokedAndExpired(t *testing.T) {
	f := newAuthFixture(t)
	f.coaches.add(domain.Coach{Email: "c@test.it", PasswordHash: mustHash(t, "secret1")})

	res, err := f.svc.AdminLogin(context.Background(), "c@test.it", "secret1")
	require.NoError(t, err)
	claims, err := f.svc.ParseToken(res.Token)
	require.NoError(t, err)

	f.svc.Logout(claims)
	_, err = f.svc.ParseToken(res.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	f.svc.now = fixedClock(time.Now().Add(-2 * time.Hour))
	old, err := f.svc.AdminLogin(context.Background(), "c@test.it", "secret1")
	require.NoError(t, err)
	_, err = f.svc.ParseToken(old.Token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = f.svc.ParseToken("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestChangePassword_ClientLeavesFirstAccess(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	c := f.clients.add(domain.Client{Email: "m@test.it", PasswordHash: mustHash(t, "temp12"), IsClient: true, FirstLogin: true, TempPassword: "temp12"})

	assert.ErrorIs(t, f.svc.ChangePassword(ctx, c.ID, domain.RoleClient, "12345"), ErrWeakPassword)

	require.NoError(t, f.svc.ChangePassword(ctx, c.ID, domain.RoleClient, "newpass1"))
	stored, err := f.clients.GetByID(ctx, c.ID)
	require.NoError(t, err)
	assert.False(t, stored.FirstLogin)
	assert.Empty(t, stored.TempPassword)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("newpass1")))
}

var resetTokenPattern = regexp.MustCompile(`token=([0-9a-f]{64})`)

func TestPasswordReset_SingleUse(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	c := f.clients.add(domain.Client{Name: "Anna", Email: "anna@test.it", PasswordHash: mustHash(t, "temp12"), IsClient: true})

	require.NoError(t, f.svc.RequestPasswordReset(ctx, "anna@test.it"))
	sent := f.sender.Sent()
	require.Len(t, sent, 1)
	m := resetTokenPattern.FindStringSubmatch(sent[0].HTML)
	require.Len(t, m, 2)
	token := m[1]

	require.Len(t, f.resets.resets, 1)
	assert.NotEqual(t, token, f.resets.resets[0].TokenHash, "only the hash is stored")

	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "short"), ErrWeakPassword)
	require.NoError(t, f.svc.ResetPassword(ctx, token, "brandnew"))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "brandnew2"), ErrResetTokenInvalid)

	stored, _ := f.clients.GetByID(ctx, c.ID)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(stored.PasswordHash), []byte("brandnew")))
}

func TestPasswordReset_UnknownAddressIsSilent(t *testing.T) {
	f := newAuthFixture(t)

	require.NoError(t, f.svc.RequestPasswordReset(context.Background(), "ghost@test.it"))
	assert.Empty(t, f.sender.Sent())
}

func TestPasswordReset_Expired(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	f.coaches.add(domain.Coach{Name: "Coach", Email: "coach@test.it", PasswordHash: mustHash(t, "secret1")})

	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = fixedClock(start)
	require.NoError(t, f.svc.RequestPasswordReset(ctx, "coach@test.it"))
	token := resetTokenPattern.FindStringSubmatch(f.sender.Sent()[0].HTML)[1]

	f.svc.now = fixedClock(start.Add(2 * time.Hour))
	assert.ErrorIs(t, f.svc.ResetPassword(ctx, token, "brandnew"), ErrResetTokenInvalid)
}

func TestEnsureAdmin(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()

	created, err := f.svc.EnsureAdmin(ctx, "Coach", "Coach@Test.it", "secret1")
	require.NoError(t, err)
	assert.True(t, created)

	created, err = f.svc.EnsureAdmin(ctx, "Coach", "coach@test.it", "other12")
	require.NoError(t, err)
	assert.False(t, created)

	_, err = f.svc.AdminLogin(ctx, "coach@test.it", "secret1")
	assert.NoError(t, err)
}

func sessionClaims(uid string, role domain.Role, jti string) *Claims {
	return &Claims{
		UserID: uid,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
}

func TestResolveSession(t *testing.T) {
	f := newAuthFixture(t)
	ctx := context.Background()
	coach := f.coaches.add(domain.Coach{Name: "Coach"})
	client := f.clients.add(domain.Client{Name: "Anna", IsClient: true, FirstLogin: true})

	tests := []struct {
		name   string
		claims *Claims
		state  guard.State
		forced bool
	}{
		{"coach", sessionClaims(coach.ID.Hex(), domain.RoleAdmin, "s1"), guard.StateAdmin, false},
		{"client", sessionClaims(client.ID.Hex(), domain.RoleClient, "s2"), guard.StateClient, false},
		{"client claiming admin", sessionClaims(client.ID.Hex(), domain.RoleAdmin, "s3"), guard.StateUnauthenticated, true},
		{"coach claiming client", sessionClaims(coach.ID.Hex(), domain.RoleClient, "s4"), guard.StateUnauthenticated, true},
		{"deleted identity", sessionClaims(primitive.NewObjectID().Hex(), domain.RoleAdmin, "s5"), guard.StateUnauthenticated, false},
		{"malformed id", sessionClaims("nope", domain.RoleClient, "s6"), guard.StateUnauthenticated, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sess, forced, err := f.svc.ResolveSession(ctx, tt.claims)
			require.NoError(t, err)
			assert.Equal(t, tt.state, sess.State)
			assert.Equal(t, tt.forced, forced)
			assert.Equal(t, tt.forced, f.svc.revocations.IsRevoked(tt.claims.ID))
		})
	}

	sess, _, err := f.svc.ResolveSession(ctx, sessionClaims(client.ID.Hex(), domain.RoleClient, "s7"))
	require.NoError(t, err)
	assert.True(t, sess.FirstLogin)
	assert.Equal(t, "Anna", sess.Name)
}

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"opsdesk/internal/apperr"
	"opsdesk/internal/config"
	"opsdesk/internal/entitlement"
	"opsdesk/internal/models"
	"opsdesk/internal/testutil"
)

func newService(t *testing.T) *Service {
	t.Helper()
	db := testutil.NewDB(t)
	plans := config.DefaultPlans()
	cfg := config.AuthConfig{SessionTTL: time.Hour, BcryptCost: 4, AllowSignup: true, DefaultPlan: "free"}
	return NewService(db, cfg, plans, entitlement.NewService(db, plans), zap.NewNop())
}

func signup(t *testing.T, svc *Service) (*models.Tenant, *models.User, *models.Session) {
	t.Helper()
	tenant, user, session, err := svc.Signup(context.Background(), SignupRequest{
		TenantName: "Acme Corp",
		Slug:       "acme",
		Username:   "root",
		Password:   "correct horse",
	})
	require.NoError(t, err)
	return tenant, user, session
}

func TestHashPassword(t *testing.T) {
	_, err := HashPassword("short", 4)
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)

	hash, err := HashPassword("long enough", 4)
	require.NoError(t, err)
	assert.True(t, CheckPassword("long enough", hash))
	assert.False(t, CheckPassword("long enougH", hash))
}

func TestService_SignupSeedsTenant(t *testing.T) {
	svc := newService(t)
	tenant, user, session := signup(t, svc)

	assert.Equal(t, "free", tenant.Plan)
	assert.NotEmpty(t, session.Token)
	assert.NotEqual(t, "correct horse", user.Password)

	var roles int64
	require.NoError(t, svc.db.Model(&models.Role{}).Where("tenant_id = ?", tenant.ID).Count(&roles).Error)
	assert.Equal(t, int64(2), roles)
	var workflows int64
	require.NoError(t, svc.db.Model(&models.Workflow{}).Where("tenant_id = ?", tenant.ID).Count(&workflows).Error)
	assert.Equal(t, int64(4), workflows)

	_, _, _, err := svc.Signup(context.Background(), SignupRequest{
		TenantName: "Again", Slug: "acme", Username: "x", Password: "correct horse",
	})
	assert.ErrorIs(t, err, apperr.ErrConflict)

	_, _, _, err = svc.Signup(context.Background(), SignupRequest{
		TenantName: "Bad", Slug: "Not A Slug", Username: "x", Password: "correct horse",
	})
	var ve *apperr.ValidationError
	assert.ErrorAs(t, err, &ve)
}

func TestService_LoginAuthenticateLogout(t *testing.T) {
	svc := newService(t)
	tenant, user, _ := signup(t, svc)
	ctx := context.Background()

	_, _, err := svc.Login(ctx, LoginRequest{Tenant: "acme", Username: "root", Password: "wrong password"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
	_, _, err = svc.Login(ctx, LoginRequest{Tenant: "nope", Username: "root", Password: "correct horse"})
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	session, loggedIn, err := svc.Login(ctx, LoginRequest{Tenant: "acme", Username: "root", Password: "correct horse"})
	require.NoError(t, err)
	assert.Equal(t, user.ID, loggedIn.ID)

	got, err := svc.Authenticate(ctx, session.Token)
	require.NoError(t, err)
	assert.Equal(t, tenant.ID, got.TenantID)

	require.NoError(t, svc.Logout(ctx, session.Token))
	_, err = svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)
}

func TestService_SessionExpiry(t *testing.T) {
	svc := newService(t)
	_, _, session := signup(t, svc)
	ctx := context.Background()

	svc.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err := svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	n, err := svc.PurgeExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestService_CreateUserEnforcesSeats(t *testing.T) {
	svc := newService(t)
	tenant, admin, _ := signup(t, svc)
	ctx := context.Background()

	// free plan: 5 seats, the admin holds one
	for i := 0; i < 4; i++ {
		u := &models.User{Username: "user" + string(rune('a'+i)), RoleID: admin.RoleID}
		require.NoError(t, svc.CreateUser(ctx, tenant.ID, u, "password123"))
	}
	err := svc.CreateUser(ctx, tenant.ID, &models.User{Username: "overflow", RoleID: admin.RoleID}, "password123")
	assert.ErrorIs(t, err, apperr.ErrLimitReached)
}

func TestService_CreateUserValidates(t *testing.T) {
	svc := newService(t)
	tenant, admin, _ := signup(t, svc)
	ctx := context.Background()
	var ve *apperr.ValidationError

	assert.ErrorAs(t, svc.CreateUser(ctx, tenant.ID, &models.User{Username: "x", RoleID: 999}, "password123"), &ve)
	team := uint(55)
	assert.ErrorAs(t, svc.CreateUser(ctx, tenant.ID, &models.User{Username: "y", RoleID: admin.RoleID, TeamID: &team}, "password123"), &ve)
	assert.ErrorIs(t, svc.CreateUser(ctx, tenant.ID, &models.User{Username: "root", RoleID: admin.RoleID}, "password123"), apperr.ErrConflict)
}

func TestService_SetPasswordRevokesSessions(t *testing.T) {
	svc := newService(t)
	tenant, user, session := signup(t, svc)
	ctx := context.Background()

	require.NoError(t, svc.SetPassword(ctx, tenant.ID, user.ID, "brand new secret"))
	_, err := svc.Authenticate(ctx, session.Token)
	assert.ErrorIs(t, err, apperr.ErrUnauthorized)

	_, _, err = svc.Login(ctx, LoginRequest{Tenant: "acme", Username: "root", Password: "brand new secret"})
	assert.NoError(t, err)
}

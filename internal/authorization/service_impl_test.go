package authorization_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/vindesk/internal/authorization"
	"github.com/smallbiznis/vindesk/internal/config"
	lifecycledomain "github.com/smallbiznis/vindesk/internal/lifecycle/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestOperatorMayClaimAndFulfillOnly(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.GrantRole(ctx, 11, "operator"))

	ok, err := svc.Authorize(ctx, 11, lifecycledomain.ActionTicketClaim)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Authorize(ctx, 11, lifecycledomain.ActionTicketFulfill)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = svc.Authorize(ctx, 11, lifecycledomain.ActionPaymentComplete)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStrangerIsDenied(t *testing.T) {
	svc, _ := newTestService(t)

	ok, err := svc.Authorize(context.Background(), 99, lifecycledomain.ActionTicketClaim)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = svc.Authorize(context.Background(), 0, lifecycledomain.ActionTicketClaim)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSystemMayCompletePayments(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.GrantRole(ctx, 1, authorization.RoleSystem))

	ok, err := svc.Authorize(ctx, 1, lifecycledomain.ActionPaymentComplete)
	require.NoError(t, err)
	assert.True(t, ok)

	roles, err := svc.Roles(1)
	require.NoError(t, err)
	assert.Equal(t, []string{authorization.RoleSystem}, roles)
}

func TestGrantRoleValidation(t *testing.T) {
	svc, _ := newTestService(t)

	assert.ErrorIs(t, svc.GrantRole(context.Background(), 0, authorization.RoleOperator), authorization.ErrInvalidActor)
	assert.ErrorIs(t, svc.GrantRole(context.Background(), 5, "admin"), authorization.ErrUnknownRole)

	_, err := svc.Authorize(context.Background(), 5, "claim")
	assert.ErrorIs(t, err, authorization.ErrInvalidAction)
}

func TestRevokeRole(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	require.NoError(t, svc.GrantRole(ctx, 12, authorization.RoleOperator))
	require.NoError(t, svc.RevokeRole(ctx, 12, authorization.RoleOperator))

	ok, err := svc.Authorize(ctx, 12, lifecycledomain.ActionTicketClaim)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestGrantsSurviveReload(t *testing.T) {
	ctx := context.Background()
	svc, db := newTestService(t)
	require.NoError(t, authorization.GrantConfiguredOperators(config.Config{OperatorIDs: []int64{21, 22}}, svc, zap.NewNop()))

	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	reloaded := authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer})

	ok, err := reloaded.Authorize(ctx, 22, lifecycledomain.ActionTicketFulfill)
	require.NoError(t, err)
	assert.True(t, ok)
}

func newTestService(t *testing.T) (*authorization.Service, *gorm.DB) {
	t.Helper()
	db := setupTestDB(t)
	enforcer, err := authorization.NewEnforcer(db)
	require.NoError(t, err)
	return authorization.NewService(authorization.Params{Log: zap.NewNop(), Enforcer: enforcer}), db
}

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:authz_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	return db
}

package db

import (
	"errors"
	"fmt"
	"testing"

	"github.com/smallbiznis/vindesk/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestDialectSelection(t *testing.T) {
	cases := []struct {
		dbType string
		want   string
	}{
		{dbType: "sqlite", want: "sqlite"},
		{dbType: "", want: "sqlite"},
		{dbType: "postgres", want: "postgres"},
		{dbType: "mysql", want: "mysql"},
	}
	for _, tc := range cases {
		t.Run(tc.dbType, func(t *testing.T) {
			d, err := Dialect(config.Config{DBType: tc.dbType, DBPath: "x.db"})
			require.NoError(t, err)
			assert.Equal(t, tc.want, d.Name())
		})
	}

	_, err := Dialect(config.Config{DBType: "oracle"})
	assert.Error(t, err)
}

func TestOpenSQLiteUsesSingleConnection(t *testing.T) {
	cfg := config.Config{
		DBType: TypeSQLite,
		DBPath: fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name()),
		DBName: "test",
	}
	db, err := Open(cfg, zap.NewNop())
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	assert.Equal(t, 1, sqlDB.Stats().MaxOpenConnections)
	assert.True(t, IsSQLite(db))
}

func TestIsDuplicateKeyErr(t *testing.T) {
	assert.True(t, IsDuplicateKeyErr(gorm.ErrDuplicatedKey))
	assert.True(t, IsDuplicateKeyErr(fmt.Errorf("insert: %w", gorm.ErrDuplicatedKey)))
	assert.True(t, IsDuplicateKeyErr(errors.New("UNIQUE constraint failed: balances.requester_id")))
	assert.False(t, IsDuplicateKeyErr(errors.New("boom")))
	assert.False(t, IsDuplicateKeyErr(nil))
}

package database

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mx-space/mdx-core/internal/config"
	"github.com/mx-space/mdx-core/internal/pkg/apperr"
)

func TestRequireWithoutDatabase(t *testing.T) {
	Set(nil)

	_, err := Require()
	require.Error(t, err)
	assert.True(t, IsNotConfigured(err))
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))

	_, err = Connect(&config.AppConfig{}, false)
	assert.True(t, IsNotConfigured(err))
}

func TestRequireReturnsRegisteredHandle(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(conn))

	Set(conn)
	t.Cleanup(func() { Set(nil) })

	got, err := Require()
	require.NoError(t, err)
	assert.Same(t, conn, got)
	assert.True(t, conn.Migrator().HasTable("comments"))
	assert.True(t, conn.Migrator().HasTable("newsletter_queue"))
}

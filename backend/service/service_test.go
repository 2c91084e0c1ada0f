package service

import (
	"context"
	"path/filepath"
	"testing"

	"filebox/backend/common"
	"filebox/backend/model"

	"github.com/stretchr/testify/require"
)

func init() {
	common.JWTSecret = "test-jwt-secret-key-for-unit-tests"
	common.JWTAlgorithm = "HS256"
	common.RedisEnabled = false
}

// setupTestEnv points the database and storage root at a fresh temp dir.
func setupTestEnv(t *testing.T) {
	t.Helper()
	dir := t.TempDir()
	common.SQLDSN = ""
	common.SQLitePath = filepath.Join(dir, "test.db")
	common.StorageRoot = filepath.Join(dir, "storage")
	require.NoError(t, model.InitDB())
	t.Cleanup(func() { _ = model.CloseDB() })
}

func registerTestUser(t *testing.T, username string) *model.User {
	t.Helper()
	user, err := RegisterUser(context.Background(), RegisterRequest{Username: username, Password: "secret123"}, "en")
	require.NoError(t, err)
	return user
}

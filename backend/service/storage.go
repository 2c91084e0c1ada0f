package service

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"filebox/backend/common"
	fberrors "filebox/backend/common/errors"
	"filebox/backend/common/i18n"
)

// 上传先写入暂存目录，用户名不允许以点开头，因此不会与用户目录冲突
const stagingDirName = ".staging"

// UserDir returns the storage directory owned by username.
func UserDir(username string) string {
	return filepath.Join(common.StorageRoot, username)
}

func StagingDir() string {
	return filepath.Join(common.StorageRoot, stagingDirName)
}

// CleanRelativePath normalizes a client supplied path relative to a user's
// directory. "" and "/" mean the directory itself. Paths escaping it fail.
func CleanRelativePath(rel string, lang string) (string, error) {
	rel = strings.ReplaceAll(rel, "\\", "/")
	rel = strings.TrimLeft(strings.TrimSpace(rel), "/")
	if rel == "" {
		return "", nil
	}
	if strings.ContainsRune(rel, 0) {
		return "", i18n.New(fberrors.ErrInvalidPath, lang, rel)
	}
	cleaned := filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
	if cleaned == "." {
		return "", nil
	}
	if cleaned == ".." || strings.HasPrefix(cleaned, "../") || filepath.IsAbs(cleaned) {
		return "", i18n.New(fberrors.ErrInvalidPath, lang, rel)
	}
	if cleaned == stagingDirName || strings.HasPrefix(cleaned, stagingDirName+"/") {
		return "", i18n.New(fberrors.ErrInvalidPath, lang, rel)
	}
	return cleaned, nil
}

// ResolveUserPath joins rel onto the user's directory after cleaning it and
// returns both the absolute path and the cleaned relative form.
func ResolveUserPath(username string, rel string, lang string) (string, string, error) {
	cleaned, err := CleanRelativePath(rel, lang)
	if err != nil {
		return "", "", err
	}
	base := UserDir(username)
	if cleaned == "" {
		return base, "", nil
	}
	return filepath.Join(base, filepath.FromSlash(cleaned)), cleaned, nil
}

// EnsureUserDir 创建用户目录，已存在时不报错
func EnsureUserDir(username string) error {
	dir := UserDir(username)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create user directory %s: %w", dir, err)
	}
	return nil
}

// RemoveUserDir 递归删除用户目录，目录不存在视为成功
func RemoveUserDir(username string) error {
	if username == "" || strings.ContainsAny(username, "/\\") || strings.HasPrefix(username, ".") {
		return fmt.Errorf("refusing to remove directory of username %q", username)
	}
	dir := UserDir(username)
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("remove user directory %s: %w", dir, err)
	}
	return nil
}

package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	fberrors "filebox/backend/common/errors"
	"filebox/backend/common/i18n"
	"filebox/backend/model"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func upload(t *testing.T, user *model.User, dir, original, custom, content string) *model.File {
	t.Helper()
	file, err := UploadFile(context.Background(), user, UploadRequest{
		Path:         dir,
		FileName:     custom,
		OriginalName: original,
		Content:      strings.NewReader(content),
	}, "en")
	require.NoError(t, err)
	return file
}

func TestFinalFileName(t *testing.T) {
	assert.Equal(t, "report.pdf", FinalFileName("report.pdf", ""))
	assert.Equal(t, "summary.pdf", FinalFileName("report.pdf", "summary"))
	assert.Equal(t, "backup.gz", FinalFileName("data.tar.gz", "backup"))
	assert.Equal(t, "notes", FinalFileName("README", "notes"))
	assert.Equal(t, "evil.txt", FinalFileName("../../evil.txt", ""))
	assert.Equal(t, "x.txt", FinalFileName(`C:\Users\me\x.txt`, ""))
}

func TestUploadFile_CustomNameAndPath(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")
	content := strings.Repeat("pdf-bytes-", 500)

	file := upload(t, alice, "2024", "report.pdf", "summary", content)

	assert.Equal(t, "summary.pdf", file.Name)
	assert.Equal(t, "2024/summary.pdf", file.Path)
	assert.Equal(t, int64(len(content)), file.Size)
	assert.True(t, file.IsDownloadable)
	assert.Equal(t, alice.ID, file.UserID)

	onDisk, err := os.ReadFile(filepath.Join(UserDir("alice"), "2024", "summary.pdf"))
	require.NoError(t, err)
	assert.Equal(t, content, string(onDisk))

	staged, err := os.ReadDir(StagingDir())
	require.NoError(t, err)
	assert.Empty(t, staged)
}

func TestUploadFile_RootAndOriginalName(t *testing.T) {
	setupTestEnv(t)
	bob := registerTestUser(t, "bob")

	file := upload(t, bob, "", "hello.txt", "", "hi")
	assert.Equal(t, "hello.txt", file.Path)
	assert.Equal(t, int64(2), file.Size)

	nested := upload(t, bob, "/a/b/", "deep.txt", "", "")
	assert.Equal(t, "a/b/deep.txt", nested.Path)
	assert.Equal(t, int64(0), nested.Size)
}

func TestUploadFile_DuplicatePathKeepsOriginal(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")
	upload(t, alice, "docs", "a.txt", "", "first")

	_, err := UploadFile(context.Background(), alice, UploadRequest{
		Path: "docs", OriginalName: "a.txt", Content: strings.NewReader("second"),
	}, "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrFilePathTaken))

	onDisk, err := os.ReadFile(filepath.Join(UserDir("alice"), "docs", "a.txt"))
	require.NoError(t, err)
	assert.Equal(t, "first", string(onDisk))
}

func TestUploadFile_SamePathForDifferentUsers(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")
	bob := registerTestUser(t, "bob")

	upload(t, alice, "", "a.txt", "", "alice")
	upload(t, bob, "", "a.txt", "", "bob")
}

func TestUploadFile_RejectsTraversal(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")

	_, err := UploadFile(context.Background(), alice, UploadRequest{
		Path: "../bob", OriginalName: "x.txt", Content: strings.NewReader("x"),
	}, "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrInvalidPath))

	_, err = UploadFile(context.Background(), alice, UploadRequest{
		FileName: "../x", OriginalName: "x.txt", Content: strings.NewReader("x"),
	}, "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrInvalidPath))
}

type failingReader struct{ n int }

func (r *failingReader) Read(p []byte) (int, error) {
	if r.n <= 0 {
		return 0, errors.New("connection reset")
	}
	r.n--
	return copy(p, "chunk"), nil
}

func TestUploadFile_ReadFailureLeavesNothing(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")

	_, err := UploadFile(context.Background(), alice, UploadRequest{
		OriginalName: "broken.bin", Content: &failingReader{n: 3},
	}, "en")
	assert.Error(t, err)

	_, statErr := os.Stat(filepath.Join(UserDir("alice"), "broken.bin"))
	assert.True(t, os.IsNotExist(statErr))
	staged, _ := os.ReadDir(StagingDir())
	assert.Empty(t, staged)

	files, err := model.GetFilesByUserId(context.Background(), alice.ID)
	require.NoError(t, err)
	assert.Empty(t, files)
}

func TestListFiles_InvalidatedByUpload(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")
	ctx := context.Background()

	files, err := ListFiles(ctx, alice)
	require.NoError(t, err)
	assert.Empty(t, files)

	upload(t, alice, "", "one.txt", "", "1")
	files, err = ListFiles(ctx, alice)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "one.txt", files[0].Name)
}

func TestListFiles_ServedFromCacheWithinTTL(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")
	ctx := context.Background()
	upload(t, alice, "", "one.txt", "", "1")

	first, err := ListFiles(ctx, alice)
	require.NoError(t, err)
	require.Len(t, first, 1)

	// 绕过上传流程直接写库，缓存未失效时不可见
	extra := &model.File{Name: "sneaky.txt", Path: "sneaky.txt", UserID: alice.ID, IsDownloadable: true}
	require.NoError(t, extra.Insert(nil, "en"))

	second, err := ListFiles(ctx, alice)
	require.NoError(t, err)
	assert.Len(t, second, 1)
}

func TestResolveDownload(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")
	bob := registerTestUser(t, "bob")
	ctx := context.Background()
	file := upload(t, alice, "docs", "a.txt", "", "hello")

	byID, err := ResolveDownload(ctx, alice, file.ID.String(), "en")
	require.NoError(t, err)
	assert.Equal(t, "a.txt", byID.Name)
	assert.Equal(t, filepath.Join(UserDir("alice"), "docs", "a.txt"), byID.AbsPath)

	byPath, err := ResolveDownload(ctx, alice, "docs/a.txt", "en")
	require.NoError(t, err)
	assert.Equal(t, byID.AbsPath, byPath.AbsPath)

	_, err = ResolveDownload(ctx, bob, file.ID.String(), "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrFileNotFound))

	_, err = ResolveDownload(ctx, alice, "42", "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrFileNotFound))

	_, err = ResolveDownload(ctx, alice, "docs/missing.txt", "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrFileNotFound))

	_, err = ResolveDownload(ctx, alice, "docs", "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrFileNotFound))

	_, err = ResolveDownload(ctx, bob, "../alice/docs/a.txt", "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrInvalidPath))
}

func TestResolveDownload_RecordWithoutFile(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")
	file := upload(t, alice, "", "gone.txt", "", "bye")
	require.NoError(t, os.Remove(filepath.Join(UserDir("alice"), "gone.txt")))

	_, err := ResolveDownload(context.Background(), alice, file.ID.String(), "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrFileNotFound))
}

func readZip(t *testing.T, data []byte) map[string]string {
	t.Helper()
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	require.NoError(t, err)
	out := make(map[string]string)
	for _, f := range zr.File {
		rc, err := f.Open()
		require.NoError(t, err)
		body, err := io.ReadAll(rc)
		rc.Close()
		require.NoError(t, err)
		out[f.Name] = string(body)
	}
	return out
}

func TestFolderArchive(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")
	upload(t, alice, "2024", "a.txt", "", "alpha")
	upload(t, alice, "2024", "b.txt", "", "beta")
	upload(t, alice, "2024/q1", "c.txt", "", "nested")

	now := time.Date(2024, 3, 5, 14, 7, 9, 0, time.UTC)
	archive, err := PrepareFolderArchive(alice, "2024", now, "en")
	require.NoError(t, err)
	assert.Equal(t, "2024_03-05-2024_14-07-09.zip", archive.Name)

	var buf bytes.Buffer
	require.NoError(t, archive.Stream(&buf))

	entries := readZip(t, buf.Bytes())
	assert.Equal(t, map[string]string{
		"a.txt": "alpha",
		"b.txt": "beta",
		"q1/":   "",
	}, entries)
}

func TestFolderArchive_UserRoot(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")
	upload(t, alice, "", "root.txt", "", "r")

	archive, err := PrepareFolderArchive(alice, "", time.Now(), "en")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(archive.Name, "alice_"))

	var buf bytes.Buffer
	require.NoError(t, archive.Stream(&buf))
	assert.Equal(t, map[string]string{"root.txt": "r"}, readZip(t, buf.Bytes()))
}

func TestFolderArchive_Errors(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")
	upload(t, alice, "", "file.txt", "", "x")

	_, err := PrepareFolderArchive(alice, "missing", time.Now(), "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrFolderNotFound))

	_, err = PrepareFolderArchive(alice, "file.txt", time.Now(), "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrFolderNotFound))

	_, err = PrepareFolderArchive(alice, "..", time.Now(), "en")
	assert.True(t, i18n.IsErrorCode(err, fberrors.ErrInvalidPath))
}

func TestSearchFiles(t *testing.T) {
	setupTestEnv(t)
	alice := registerTestUser(t, "alice")
	ctx := context.Background()
	upload(t, alice, "", "notes.txt", "", "1")
	upload(t, alice, "", "notes.md", "", "2")
	upload(t, alice, "x", "todo.txt", "", "3")

	_, err := SearchFiles(ctx, alice, "", "", 100)
	assert.ErrorIs(t, err, ErrNoSearchQuery)

	files, err := SearchFiles(ctx, alice, "txt", "", 0)
	require.NoError(t, err)
	assert.Len(t, files, 2)
	for _, f := range files {
		assert.True(t, strings.HasSuffix(f.Name, ".txt"))
	}

	files, err = SearchFiles(ctx, alice, "", "notes", 1)
	require.NoError(t, err)
	assert.Len(t, files, 1)
}

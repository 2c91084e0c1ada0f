package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"filebox/backend/common"
	fberrors "filebox/backend/common/errors"
	"filebox/backend/common/i18n"
	"filebox/backend/library/cache"
	"filebox/backend/library/metrics"
	"filebox/backend/model"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zip"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrNoSearchQuery is returned by SearchFiles when neither a name nor an
// extension was given. It is a prompt for the caller, not a failure.
var ErrNoSearchQuery = errors.New("no search query")

const archiveTimeLayout = "01-02-2006_15-04-05"

// UploadRequest describes one uploaded file.
type UploadRequest struct {
	// Path is the target directory relative to the user's root.
	Path string
	// FileName optionally replaces the original base name; the original
	// extension is kept.
	FileName string
	// OriginalName is the client supplied file name.
	OriginalName string
	Content      io.Reader
}

// DownloadTarget is a file resolved for download.
type DownloadTarget struct {
	AbsPath string
	Name    string
}

// FinalFileName returns custom + ext(original) when custom is set, else the
// base name of original.
func FinalFileName(original string, custom string) string {
	base := path.Base(strings.ReplaceAll(original, "\\", "/"))
	if custom == "" {
		return base
	}
	return custom + path.Ext(base)
}

func validFileName(name string) bool {
	if name == "" || name == "." || name == ".." || name == "/" {
		return false
	}
	return !strings.ContainsAny(name, "/\\\x00")
}

// UploadFile streams content into the staging area, then inserts the
// metadata row and moves the file into place inside one transaction.
func UploadFile(ctx context.Context, user *model.User, req UploadRequest, lang string) (*model.File, error) {
	name := FinalFileName(req.OriginalName, strings.TrimSpace(req.FileName))
	if !validFileName(name) {
		return nil, i18n.New(fberrors.ErrInvalidPath, lang, name)
	}

	dirAbs, dirRel, err := ResolveUserPath(user.Username, req.Path, lang)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dirAbs, 0o755); err != nil {
		return nil, fmt.Errorf("create upload directory: %w", err)
	}

	relPath := path.Join(dirRel, name)
	absPath := filepath.Join(dirAbs, name)
	if _, err := os.Lstat(absPath); err == nil {
		return nil, i18n.New(fberrors.ErrFilePathTaken, lang)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}

	stagedPath, err := stageUpload(req.Content)
	if err != nil {
		return nil, err
	}
	moved := false
	defer func() {
		if !moved {
			_ = os.Remove(stagedPath)
		}
	}()

	// 以磁盘上的实际大小为准
	info, err := os.Stat(stagedPath)
	if err != nil {
		return nil, fmt.Errorf("stat staged upload: %w", err)
	}

	record := &model.File{
		Name:           name,
		Path:           relPath,
		Size:           info.Size(),
		IsDownloadable: true,
		UserID:         user.ID,
	}
	err = model.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := record.Insert(tx, lang); err != nil {
			return err
		}
		if err := os.Rename(stagedPath, absPath); err != nil {
			return fmt.Errorf("move upload into place: %w", err)
		}
		moved = true
		return nil
	})
	if err != nil {
		if moved {
			// 提交失败，撤回已移动的文件
			_ = os.Remove(absPath)
		}
		return nil, err
	}

	metrics.UploadedBytes.Add(float64(record.Size))
	cache.GetFileListCache().Invalidate(ctx, user.ID)
	return record, nil
}

// stageUpload copies src into a new staging file in fixed size chunks.
func stageUpload(src io.Reader) (string, error) {
	if err := os.MkdirAll(StagingDir(), 0o755); err != nil {
		return "", fmt.Errorf("create staging directory: %w", err)
	}
	stagedPath := filepath.Join(StagingDir(), uuid.NewString())
	dst, err := os.OpenFile(stagedPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("create staging file: %w", err)
	}

	buf := make([]byte, common.UploadChunkSize)
	for {
		n, readErr := src.Read(buf)
		if n > 0 {
			if _, err := dst.Write(buf[:n]); err != nil {
				dst.Close()
				os.Remove(stagedPath)
				return "", fmt.Errorf("write staging file: %w", err)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			dst.Close()
			os.Remove(stagedPath)
			return "", fmt.Errorf("read upload: %w", readErr)
		}
	}

	if err := dst.Close(); err != nil {
		os.Remove(stagedPath)
		return "", fmt.Errorf("close staging file: %w", err)
	}
	return stagedPath, nil
}

// ListFiles returns the user's files through the file list cache.
func ListFiles(ctx context.Context, user *model.User) ([]*model.File, error) {
	return cache.GetFileListCache().GetFileList(ctx, user.ID, func(ctx context.Context) ([]*model.File, error) {
		return model.GetFilesByUserId(ctx, user.ID)
	})
}

// 数字或 UUID 视为记录 ID，其余按路径处理
func isRecordID(identifier string) bool {
	if _, err := uuid.Parse(identifier); err == nil {
		return true
	}
	_, err := strconv.ParseInt(identifier, 10, 64)
	return err == nil
}

// ResolveDownload maps an identifier to a file on disk. Record ids are only
// resolved among the user's own files.
func ResolveDownload(ctx context.Context, user *model.User, identifier string, lang string) (*DownloadTarget, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, i18n.InvalidParamError(lang, "identifier")
	}

	rel := identifier
	if isRecordID(identifier) {
		record, err := model.GetUserFileById(ctx, user.ID, identifier, lang)
		if err != nil {
			return nil, err
		}
		rel = record.Path
	}

	absPath, cleaned, err := ResolveUserPath(user.Username, rel, lang)
	if err != nil {
		return nil, err
	}
	if cleaned == "" {
		return nil, i18n.New(fberrors.ErrFileNotFound, lang)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, i18n.Wrap(err, fberrors.ErrFileNotFound, lang)
		}
		return nil, fmt.Errorf("stat %s: %w", absPath, err)
	}
	if !info.Mode().IsRegular() {
		return nil, i18n.New(fberrors.ErrFileNotFound, lang)
	}
	return &DownloadTarget{AbsPath: absPath, Name: filepath.Base(absPath)}, nil
}

// FolderArchive is a folder listing ready to be written as a zip stream.
type FolderArchive struct {
	Name    string
	dir     string
	entries []fs.DirEntry
}

// PrepareFolderArchive lists the immediate entries of the folder. Nothing
// is written yet, so callers can still report errors before streaming.
func PrepareFolderArchive(user *model.User, folder string, now time.Time, lang string) (*FolderArchive, error) {
	dirAbs, cleaned, err := ResolveUserPath(user.Username, folder, lang)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(dirAbs)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, i18n.Wrap(err, fberrors.ErrFolderNotFound, lang)
		}
		return nil, fmt.Errorf("stat %s: %w", dirAbs, err)
	}
	if !info.IsDir() {
		return nil, i18n.New(fberrors.ErrFolderNotFound, lang)
	}

	entries, err := os.ReadDir(dirAbs)
	if err != nil {
		return nil, fmt.Errorf("read folder %s: %w", dirAbs, err)
	}

	segment := user.Username
	if cleaned != "" {
		segment = path.Base(cleaned)
	}
	return &FolderArchive{
		Name:    fmt.Sprintf("%s_%s.zip", segment, now.Format(archiveTimeLayout)),
		dir:     dirAbs,
		entries: entries,
	}, nil
}

// Stream writes a deflate zip of the listed entries. Subdirectories are
// stored as single empty directory entries.
func (a *FolderArchive) Stream(w io.Writer) error {
	zw := zip.NewWriter(w)
	for _, entry := range a.entries {
		if err := a.addEntry(zw, entry); err != nil {
			zw.Close()
			return err
		}
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("finish zip: %w", err)
	}
	metrics.FolderArchives.Inc()
	return nil
}

func (a *FolderArchive) addEntry(zw *zip.Writer, entry fs.DirEntry) error {
	info, err := entry.Info()
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("stat %s: %w", entry.Name(), err)
	}

	header, err := zip.FileInfoHeader(info)
	if err != nil {
		return fmt.Errorf("zip header %s: %w", entry.Name(), err)
	}
	header.Name = entry.Name()

	switch {
	case info.IsDir():
		header.Name += "/"
		header.Method = zip.Store
		_, err = zw.CreateHeader(header)
		return err
	case info.Mode().IsRegular():
		header.Method = zip.Deflate
	default:
		common.Logger().Debug("skip non-regular entry in folder archive", zap.String("name", entry.Name()))
		return nil
	}

	dst, err := zw.CreateHeader(header)
	if err != nil {
		return fmt.Errorf("zip entry %s: %w", entry.Name(), err)
	}
	src, err := os.Open(filepath.Join(a.dir, entry.Name()))
	if err != nil {
		return fmt.Errorf("open %s: %w", entry.Name(), err)
	}
	defer src.Close()
	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("compress %s: %w", entry.Name(), err)
	}
	return nil
}

// SearchFiles filters the user's files by name prefix and/or extension.
func SearchFiles(ctx context.Context, user *model.User, extension string, fileName string, limit int) ([]*model.File, error) {
	extension = strings.TrimSpace(extension)
	fileName = strings.TrimSpace(fileName)
	if extension == "" && fileName == "" {
		return nil, ErrNoSearchQuery
	}
	if limit <= 0 {
		limit = common.SearchDefaultLimit
	}
	return model.SearchUserFiles(ctx, user.ID, fileName, extension, limit)
}

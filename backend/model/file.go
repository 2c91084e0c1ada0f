package model

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	fberrors "filebox/backend/common/errors"
	"filebox/backend/common/i18n"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is the metadata row of an uploaded file. Path is relative to the
// owner's storage directory and unique per owner.
type File struct {
	ID             uuid.UUID `json:"id" gorm:"type:char(36);primaryKey"`
	Name           string    `json:"name" gorm:"size:125;not null"`
	CreatedAt      time.Time `json:"created_at" gorm:"index"`
	Path           string    `json:"path" gorm:"size:255;not null;uniqueIndex:idx_files_user_path"`
	Size           int64     `json:"size"`
	IsDownloadable bool      `json:"is_downloadable"`
	UserID         uuid.UUID `json:"-" gorm:"type:char(36);not null;index;uniqueIndex:idx_files_user_path"`
}

func (file *File) BeforeCreate(tx *gorm.DB) error {
	if file.ID == uuid.Nil {
		file.ID = uuid.New()
	}
	return nil
}

// Insert 写入文件记录，tx 为空时使用全局 DB
func (file *File) Insert(tx *gorm.DB, lang string) error {
	if tx == nil {
		tx = DB
	}
	if err := tx.Create(file).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return i18n.Wrap(err, fberrors.ErrFilePathTaken, lang)
		}
		return fmt.Errorf("insert file %q: %w", file.Path, err)
	}
	return nil
}

// GetFilesByUserId 按创建顺序返回用户的全部文件
func GetFilesByUserId(ctx context.Context, userID uuid.UUID) ([]*File, error) {
	files := make([]*File, 0)
	err := DB.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Order("id ASC").
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("list files of user %s: %w", userID, err)
	}
	return files, nil
}

// GetUserFileById 只返回属于该用户的文件
func GetUserFileById(ctx context.Context, userID uuid.UUID, id string, lang string) (*File, error) {
	var file File
	err := DB.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		First(&file).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, i18n.Wrap(err, fberrors.ErrFileNotFound, lang)
		}
		return nil, fmt.Errorf("get file %s: %w", id, err)
	}
	return &file, nil
}

// SearchUserFiles fileName 按前缀匹配，extension 按 ".ext" 后缀匹配，两者都给出时同时生效。
// 匹配区分大小写
func SearchUserFiles(ctx context.Context, userID uuid.UUID, fileName string, extension string, limit int) ([]*File, error) {
	db := DB.WithContext(ctx)
	dialect := db.Dialector.Name()
	query := db.Where("user_id = ?", userID)
	if fileName != "" {
		clause, arg := namePrefixMatch(dialect, fileName)
		query = query.Where(clause, arg)
	}
	if extension != "" {
		clause, arg := nameSuffixMatch(dialect, "."+strings.TrimPrefix(extension, "."))
		query = query.Where(clause, arg)
	}

	files := make([]*File, 0)
	if err := query.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&files).Error; err != nil {
		return nil, fmt.Errorf("search files of user %s: %w", userID, err)
	}
	return files, nil
}

// SQLite 和 MySQL 默认排序规则下 LIKE 不区分大小写，分别改用 GLOB 和 LIKE BINARY
func namePrefixMatch(dialect string, prefix string) (string, string) {
	switch dialect {
	case "sqlite":
		return "name GLOB ?", escapeGlob(prefix) + "*"
	case "mysql":
		return "name LIKE BINARY ? ESCAPE '!'", escapeLike(prefix) + "%"
	default:
		return "name LIKE ? ESCAPE '!'", escapeLike(prefix) + "%"
	}
}

func nameSuffixMatch(dialect string, suffix string) (string, string) {
	switch dialect {
	case "sqlite":
		return "name GLOB ?", "*" + escapeGlob(suffix)
	case "mysql":
		return "name LIKE BINARY ? ESCAPE '!'", "%" + escapeLike(suffix)
	default:
		return "name LIKE ? ESCAPE '!'", "%" + escapeLike(suffix)
	}
}

var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}

// GLOB 没有转义字符，元字符用单字符集合包起来
var globEscaper = strings.NewReplacer("[", "[[]", "*", "[*]", "?", "[?]")

func escapeGlob(s string) string {
	return globEscaper.Replace(s)
}

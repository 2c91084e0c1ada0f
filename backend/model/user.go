package model

import (
	"context"
	"errors"
	"fmt"
	"time"

	"filebox/backend/common"
	fberrors "filebox/backend/common/errors"
	"filebox/backend/common/i18n"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User owns a storage directory named after Username.
// DeletedAt is only set while an account deletion is in flight.
type User struct {
	ID        uuid.UUID      `json:"id" gorm:"type:char(36);primaryKey"`
	Username  string         `json:"username" gorm:"uniqueIndex;size:125;not null"`
	Password  string         `json:"-" gorm:"size:150;not null"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
	DeletedAt gorm.DeletedAt `json:"-" gorm:"index"`
	Files     []File         `json:"-" gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE"`
}

func (user *User) BeforeCreate(tx *gorm.DB) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	return nil
}

// GetUserById 根据ID获取用户
func GetUserById(ctx context.Context, id uuid.UUID, lang string) (*User, error) {
	if id == uuid.Nil {
		return nil, i18n.New(fberrors.ErrEmptyID, lang)
	}
	var user User
	if err := DB.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, i18n.Wrap(err, fberrors.ErrUserNotFound, lang)
		}
		return nil, fmt.Errorf("get user %s: %w", id, err)
	}
	return &user, nil
}

func GetUserByUsername(ctx context.Context, username string, lang string) (*User, error) {
	var user User
	if err := DB.WithContext(ctx).First(&user, "username = ?", username).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, i18n.Wrap(err, fberrors.ErrUserNotFound, lang)
		}
		return nil, fmt.Errorf("get user %q: %w", username, err)
	}
	return &user, nil
}

// Insert 保存前对明文密码做哈希，用户名唯一性由数据库唯一索引保证
func (user *User) Insert(ctx context.Context, lang string) error {
	if user.Password != "" {
		var err error
		user.Password, err = common.Password2Hash(user.Password)
		if err != nil {
			return err
		}
	}
	if err := DB.WithContext(ctx).Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return i18n.Wrap(err, fberrors.ErrUsernameTaken, lang)
		}
		return fmt.Errorf("insert user %q: %w", user.Username, err)
	}
	return nil
}

// ValidateAndFill 校验用户名密码，成功后用数据库中的记录填充 user
func (user *User) ValidateAndFill(ctx context.Context, lang string) error {
	if user.Username == "" || user.Password == "" {
		return i18n.New(fberrors.ErrEmptyCredentials, lang)
	}
	found, err := GetUserByUsername(ctx, user.Username, lang)
	if err != nil {
		if i18n.IsErrorCode(err, fberrors.ErrUserNotFound) {
			return i18n.New(fberrors.ErrInvalidCredentials, lang)
		}
		return err
	}
	if !common.ValidatePasswordAndHash(user.Password, found.Password) {
		return i18n.New(fberrors.ErrInvalidCredentials, lang)
	}
	*user = *found
	return nil
}

// MarkDeleted 软删除，之后该用户无法再通过认证
func (user *User) MarkDeleted(ctx context.Context) error {
	if err := DB.WithContext(ctx).Delete(user).Error; err != nil {
		return fmt.Errorf("mark user %s deleted: %w", user.ID, err)
	}
	return nil
}

// PurgeUser 在同一事务中物理删除用户及其所有文件记录
func PurgeUser(ctx context.Context, id uuid.UUID) error {
	return DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Unscoped().Where("user_id = ?", id).Delete(&File{}).Error; err != nil {
			return fmt.Errorf("delete files of user %s: %w", id, err)
		}
		if err := tx.Unscoped().Delete(&User{}, "id = ?", id).Error; err != nil {
			return fmt.Errorf("delete user %s: %w", id, err)
		}
		return nil
	})
}

// GetPendingDeletions 返回已软删除但尚未清理完成的用户
func GetPendingDeletions(ctx context.Context) ([]*User, error) {
	var users []*User
	err := DB.WithContext(ctx).Unscoped().Where("deleted_at IS NOT NULL").Find(&users).Error
	return users, err
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"

	"filebox/backend/common"
	fberrors "filebox/backend/common/errors"
	"filebox/backend/common/i18n"
	"filebox/backend/library/cache"
	"filebox/backend/model"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// RegisterRequest is the payload of POST /register.
type RegisterRequest struct {
	Username string `json:"username" validate:"required,dirname,max=125"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

// PingResult reports database round trip time in seconds.
type PingResult struct {
	DB float64 `json:"db"`
}

func validationError(err error, lang string) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		if verrs[0].Field() == "Username" && verrs[0].Tag() == "dirname" {
			return i18n.Wrap(err, fberrors.ErrInvalidUsername, lang)
		}
		return i18n.Wrap(err, fberrors.ErrInvalidParam, lang, verrs[0].Field())
	}
	return i18n.Wrap(err, fberrors.ErrInvalidParam, lang, err.Error())
}

// RegisterUser creates the user row and its storage directory.
func RegisterUser(ctx context.Context, req RegisterRequest, lang string) (*model.User, error) {
	if err := common.Validate.Struct(req); err != nil {
		return nil, validationError(err, lang)
	}

	user := &model.User{Username: req.Username, Password: req.Password}
	if err := user.Insert(ctx, lang); err != nil {
		return nil, err
	}
	if err := EnsureUserDir(user.Username); err != nil {
		// 上传时会再次创建目录，这里只记录
		common.Logger().Warn("create user directory", zap.String("username", user.Username), zap.Error(err))
	}
	return user, nil
}

func GetUser(ctx context.Context, id string, lang string) (*model.User, error) {
	userID, err := uuid.Parse(id)
	if err != nil {
		return nil, i18n.Wrap(err, fberrors.ErrUserNotFound, lang)
	}
	return model.GetUserById(ctx, userID, lang)
}

// DeleteUser soft-deletes the row first so the account stops authenticating,
// then removes the storage tree and finally purges the rows. A failure after
// the first step leaves the row soft-deleted for ResumePendingDeletions.
func DeleteUser(ctx context.Context, user *model.User) error {
	if err := user.MarkDeleted(ctx); err != nil {
		return err
	}
	return finishDeletion(ctx, user)
}

func finishDeletion(ctx context.Context, user *model.User) error {
	if err := RemoveUserDir(user.Username); err != nil {
		return err
	}
	if err := model.PurgeUser(ctx, user.ID); err != nil {
		return err
	}
	cache.GetFileListCache().Invalidate(ctx, user.ID)
	return nil
}

// ResumePendingDeletions finishes account deletions interrupted by a crash
// or a storage error. It returns the number of accounts purged.
func ResumePendingDeletions(ctx context.Context) (int, error) {
	users, err := model.GetPendingDeletions(ctx)
	if err != nil {
		return 0, fmt.Errorf("list pending deletions: %w", err)
	}
	done := 0
	var firstErr error
	for _, user := range users {
		if err := finishDeletion(ctx, user); err != nil {
			common.Logger().Error("resume user deletion", zap.String("user_id", user.ID.String()), zap.Error(err))
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		done++
	}
	return done, firstErr
}

// GetStatus runs a trivial query and reports its latency.
func GetStatus(ctx context.Context) (*PingResult, error) {
	elapsed, err := model.PingDB(ctx)
	if err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}
	seconds := math.Round(elapsed.Seconds()*10000) / 10000
	return &PingResult{DB: seconds}, nil
}

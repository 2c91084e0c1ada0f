package handler

import (
	"net/http"

	"filebox/backend/api/middleware"
	"filebox/backend/common"
	fberrors "filebox/backend/common/errors"
	"filebox/backend/common/i18n"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

var errorStatus = map[string]int{
	fberrors.ErrInvalidParam:       http.StatusBadRequest,
	fberrors.ErrInvalidPath:        http.StatusBadRequest,
	fberrors.ErrInvalidUsername:    http.StatusBadRequest,
	fberrors.ErrEmptyID:            http.StatusBadRequest,
	fberrors.ErrEmptyCredentials:   http.StatusBadRequest,
	fberrors.ErrEmptyFile:          http.StatusBadRequest,
	fberrors.ErrUnauthorized:       http.StatusUnauthorized,
	fberrors.ErrInvalidCredentials: http.StatusUnauthorized,
	fberrors.ErrTokenInvalidated:   http.StatusUnauthorized,
	fberrors.ErrForbidden:          http.StatusForbidden,
	fberrors.ErrUserNotFound:       http.StatusNotFound,
	fberrors.ErrFileNotFound:       http.StatusNotFound,
	fberrors.ErrFolderNotFound:     http.StatusNotFound,
	fberrors.ErrUsernameTaken:      http.StatusConflict,
	fberrors.ErrFilePathTaken:      http.StatusConflict,
}

// statusOf maps an error to its HTTP status; unknown errors are 500.
func statusOf(err error) int {
	if status, ok := errorStatus[i18n.CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err in the standard envelope. Internal errors are
// logged and replaced by a generic message.
func respondError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		common.Logger().Error("request failed",
			zap.String("path", c.Request.URL.Path),
			zap.String("request_id", c.GetString(middleware.RequestIdKey)),
			zap.Error(err))
		_ = c.Error(err)
		common.RespErrorStr(c, status, i18n.InternalServerError(c.GetString("lang"), err).Error())
		return
	}
	common.RespErrorStr(c, status, err.Error())
}

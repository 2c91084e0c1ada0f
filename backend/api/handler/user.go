package handler

import (
	"fmt"
	"net/http"

	"filebox/backend/api/middleware"
	"filebox/backend/common"
	fberrors "filebox/backend/common/errors"
	"filebox/backend/common/i18n"
	"filebox/backend/service"

	"github.com/gin-gonic/gin"
)

func Register(c *gin.Context) {
	lang := c.GetString("lang")
	var req service.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, i18n.Wrap(err, fberrors.ErrInvalidParam, lang, "body"))
		return
	}

	user, err := service.RegisterUser(c.Request.Context(), req, lang)
	if err != nil {
		respondError(c, err)
		return
	}
	common.SysLog(fmt.Sprintf("user: %s is created", user.Username))
	common.RespSuccessWithStatus(c, http.StatusCreated, user)
}

func GetUser(c *gin.Context) {
	user, err := service.GetUser(c.Request.Context(), c.Param("id"), c.GetString("lang"))
	if err != nil {
		respondError(c, err)
		return
	}
	common.RespSuccess(c, user)
}

// DeleteUser deletes the caller's own account; other ids are forbidden.
func DeleteUser(c *gin.Context) {
	lang := c.GetString("lang")
	user := middleware.CurrentUser(c)
	if c.Param("id") != user.ID.String() {
		respondError(c, i18n.New(fberrors.ErrForbidden, lang))
		return
	}

	if err := service.DeleteUser(c.Request.Context(), user); err != nil {
		respondError(c, err)
		return
	}
	token, claims := middleware.CurrentToken(c)
	if err := service.InvalidateToken(c.Request.Context(), token, claims); err != nil {
		common.SysError("invalidate token of deleted user: " + err.Error())
	}
	common.SysLog(fmt.Sprintf("user: %s deleted", user.ID))
	c.JSON(http.StatusOK, common.APIResponse{
		Success: true,
		Message: i18n.Translate("user_deleted", lang),
		Data:    user,
	})
}

func GetSelf(c *gin.Context) {
	user := middleware.CurrentUser(c)
	common.SysLog(fmt.Sprintf("user: %s get self", user.Username))
	common.RespSuccess(c, user)
}

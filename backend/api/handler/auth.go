package handler

import (
	"fmt"
	"net/http"

	"filebox/backend/api/middleware"
	"filebox/backend/common"
	"filebox/backend/common/i18n"
	"filebox/backend/service"

	"github.com/gin-gonic/gin"
)

// CreateToken implements the OAuth2 password grant. The body is the bare
// token response rather than the usual envelope so standard clients can
// read it.
func CreateToken(c *gin.Context) {
	lang := c.GetString("lang")
	username := c.PostForm("username")
	password := c.PostForm("password")

	resp, _, err := service.Login(c.Request.Context(), username, password, lang)
	if err != nil {
		respondError(c, err)
		return
	}
	common.SysLog(fmt.Sprintf("user: %s created token", username))
	c.JSON(http.StatusOK, resp)
}

func Logout(c *gin.Context) {
	token, claims := middleware.CurrentToken(c)
	if err := service.InvalidateToken(c.Request.Context(), token, claims); err != nil {
		respondError(c, err)
		return
	}
	common.RespSuccessStr(c, i18n.Translate("logout_success", c.GetString("lang")))
}

// Ping reports database latency in seconds.
func Ping(c *gin.Context) {
	result, err := service.GetStatus(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	common.SysLog(fmt.Sprintf("ping to db %.4f", result.DB))
	common.RespSuccess(c, result)
}

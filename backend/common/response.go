package common

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// API响应的标准格式
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// RespSuccess 响应成功，返回数据
func RespSuccess(c *gin.Context, data interface{}) {
	RespSuccessWithStatus(c, http.StatusOK, data)
}

// RespSuccessWithStatus 响应成功，自定义状态码（如 201）
func RespSuccessWithStatus(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, APIResponse{
		Success: true,
		Message: "",
		Data:    data,
	})
}

// RespSuccessStr 响应成功，返回消息
func RespSuccessStr(c *gin.Context, msg string) {
	c.JSON(http.StatusOK, APIResponse{
		Success: true,
		Message: msg,
	})
}

// RespErrorStr 响应错误，只包含错误消息
func RespErrorStr(c *gin.Context, statusCode int, msg string) {
	c.JSON(statusCode, APIResponse{
		Success: false,
		Message: msg,
	})
}

// AbortWithErrorStr 中间件中使用，响应错误并终止后续处理
func AbortWithErrorStr(c *gin.Context, statusCode int, msg string) {
	RespErrorStr(c, statusCode, msg)
	c.Abort()
}

package response

import (
	"net/http"

	"lonelycare/pkg/errors"

	"github.com/gin-gonic/gin"
)

type Body struct {
	Code int         `json:"code"`
	Msg  string      `json:"msg"`
	Data interface{} `json:"data,omitempty"`
}

// Success 200 + 数据
func Success(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusOK, Body{Code: http.StatusOK, Msg: msg, Data: data})
}

// Created 201 + 数据
func Created(c *gin.Context, msg string, data interface{}) {
	c.JSON(http.StatusCreated, Body{Code: http.StatusCreated, Msg: msg, Data: data})
}

// Fail 参数错误等客户端问题，返回 400
func Fail(c *gin.Context, msg string, data interface{}) {
	c.AbortWithStatusJSON(http.StatusBadRequest, Body{Code: http.StatusBadRequest, Msg: msg, Data: data})
}

// Error 按错误码映射 HTTP 状态
func Error(c *gin.Context, err error) {
	status := StatusOf(err)
	c.AbortWithStatusJSON(status, Body{Code: status, Msg: err.Error(), Data: gin.H{"reason": errors.CodeName(errors.GetCode(err))}})
}

func StatusOf(err error) int {
	switch errors.GetCode(err) {
	case errors.CodeNotFound:
		return http.StatusNotFound
	case errors.CodeInvalidConfig:
		return http.StatusBadRequest
	case errors.CodePassInProgress:
		return http.StatusConflict
	case errors.CodeStoreUnavailable, errors.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

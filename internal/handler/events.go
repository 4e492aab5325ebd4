package handlers

import (
	"lonelycare/pkg/middleware"
	"lonelycare/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SSE 长连接，横幅/闹铃/接管事件都走这里
func (h *Handlers) handleEvents(c *gin.Context) {
	userID := c.Param("userId")
	lang := middleware.Lang(c, h.opts.Languages[0])
	clientID := uuid.NewString()

	h.opts.Logger.Debug("SSE client connected", zap.String("user_id", userID), zap.String("client_id", clientID))
	h.opts.Hub.Serve(c, clientID, userID, lang)
	h.opts.Logger.Debug("SSE client disconnected", zap.String("user_id", userID), zap.String("client_id", clientID))
}

// 用户手势后客户端才能播放声音和振动
func (h *Handlers) handleGrantInteraction(c *gin.Context) {
	userID := c.Param("userId")
	h.opts.Gate.Grant(userID)
	response.Success(c, "interaction recorded", gin.H{"userId": userID, "allowed": true})
}

func (h *Handlers) handleRevokeInteraction(c *gin.Context) {
	userID := c.Param("userId")
	h.opts.Gate.Revoke(userID)
	response.Success(c, "interaction revoked", gin.H{"userId": userID, "allowed": false})
}

func (h *Handlers) handleListTakeovers(c *gin.Context) {
	owner := c.DefaultQuery("ownerId", h.opts.OwnerID)
	response.Success(c, "pending takeovers", h.opts.Takeovers.Pending(owner))
}

func (h *Handlers) handleAckTakeover(c *gin.Context) {
	tk, err := h.opts.Takeovers.Acknowledge(c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.opts.Hub != nil {
		// 同一用户的其他客户端也关闭接管界面
		_, _ = h.opts.Hub.SendToGroupJSON(tk.OwnerID, "takeover_ack", tk)
	}
	response.Success(c, "takeover acknowledged", tk)
}

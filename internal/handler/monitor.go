package handlers

import (
	"context"

	"lonelycare/internal/alert"
	"lonelycare/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// 手动触发一轮评估，正在运行时返回 409；客户端断开不会中断已开始的评估
func (h *Handlers) handleRunPass(c *gin.Context) {
	summary, err := h.opts.Monitor.RunOnce(context.WithoutCancel(c.Request.Context()))
	if err != nil {
		h.opts.Logger.Info("Manual evaluation pass not completed", zap.Error(err))
		response.Error(c, err)
		return
	}
	response.Success(c, "evaluation pass completed", summary)
}

func (h *Handlers) handleLastSummary(c *gin.Context) {
	summary := h.opts.Monitor.LastSummary()
	if summary == nil {
		response.Success(c, "no pass yet", nil)
		return
	}
	response.Success(c, "last evaluation pass", summary)
}

func (h *Handlers) handleResetCooldown(c *gin.Context) {
	var req struct {
		ContactID string `json:"contactId"`
		Tier      string `json:"tier"`
	}
	// 空 body 表示全部重置
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Fail(c, "invalid request", gin.H{"error": err.Error()})
			return
		}
	}

	ctx := c.Request.Context()
	switch {
	case req.ContactID != "" && req.Tier != "":
		tier, err := alert.ParseTier(req.Tier)
		if err != nil {
			response.Fail(c, "invalid tier", gin.H{"tier": req.Tier})
			return
		}
		h.opts.Cooldown.Reset(ctx, req.ContactID, tier)
	case req.ContactID != "":
		h.opts.Cooldown.ResetContact(ctx, req.ContactID)
	case req.Tier != "":
		response.Fail(c, "tier requires contactId", nil)
		return
	default:
		h.opts.Cooldown.ResetAll(ctx)
	}
	response.Success(c, "cooldown reset", h.opts.Cooldown.Records())
}

func (h *Handlers) handleListCooldown(c *gin.Context) {
	response.Success(c, "cooldown records", gin.H{
		"window":  h.opts.Cooldown.Window().String(),
		"records": h.opts.Cooldown.Records(),
	})
}

func (h *Handlers) handleGetThresholds(c *gin.Context) {
	th := h.opts.Thresholds.Get(c.Request.Context())
	response.Success(c, "thresholds", gin.H{"thresholds": th, "source": h.opts.Thresholds.Source()})
}

func (h *Handlers) handleInvalidateThresholds(c *gin.Context) {
	h.opts.Thresholds.Invalidate()
	h.handleGetThresholds(c)
}

func (h *Handlers) handleEmergencyAudit(c *gin.Context) {
	response.Success(c, "emergency audit log", h.opts.Escalator.AuditLog())
}

// 需要人工跟进的告警（通知全部失败、紧急升级），新的在前
func (h *Handlers) handleListAlerts(c *gin.Context) {
	owner := c.DefaultQuery("ownerId", h.opts.OwnerID)
	alerts, err := h.opts.Store.ListAlerts(c.Request.Context(), owner, cast.ToInt(c.Query("limit")))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Success(c, "alerts", alerts)
}

func (h *Handlers) handleNotificationHistory(c *gin.Context) {
	response.Success(c, "notification history", h.opts.History.Entries())
}

type friendStatusView struct {
	FriendID     string  `json:"friendId"`
	DisplayName  string  `json:"displayName"`
	Tier         string  `json:"tier"`
	LastActivity *string `json:"lastActivity,omitempty"`
	Elapsed      string  `json:"elapsed,omitempty"`
	Degraded     bool    `json:"degraded"`
	Notified     bool    `json:"notified"`
}

// 最近一轮评估写回的状态，附带本地化的相对时间
func (h *Handlers) handleFriendStatus(c *gin.Context) {
	owner := c.DefaultQuery("ownerId", h.opts.OwnerID)
	statuses, err := h.opts.Store.ListStatuses(c.Request.Context(), owner)
	if err != nil {
		response.Error(c, err)
		return
	}

	lang := c.GetString("lang")
	views := make([]friendStatusView, 0, len(statuses))
	for _, st := range statuses {
		v := friendStatusView{
			FriendID:    st.FriendID,
			DisplayName: st.DisplayName,
			Tier:        st.Tier,
			Degraded:    st.Degraded,
			Notified:    st.Notified,
		}
		if minutes, ok := h.opts.Classifier.ElapsedMinutes(st.LastActivity); ok {
			ts := st.LastActivity.UTC().Format("2006-01-02T15:04:05Z")
			v.LastActivity = &ts
			v.Elapsed = h.formatElapsed(lang, minutes)
		}
		views = append(views, v)
	}
	response.Success(c, "friend statuses", views)
}

func (h *Handlers) formatElapsed(lang string, minutes int64) string {
	if h.opts.Formatter == nil || lang == "" {
		return alert.FormatElapsed(minutes)
	}
	return h.opts.Formatter.Format(lang, minutes)
}

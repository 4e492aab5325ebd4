package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// PushConfig 推送网关配置
type PushConfig struct {
	Endpoint   string
	APIKey     string
	Timeout    time.Duration
	RetryCount int
}

// PushMessage 推送网关请求体
type PushMessage struct {
	UserID   string            `json:"userId"`
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Tier     string            `json:"tier"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

type pushResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// PushClient 调用后端推送网关，尽力而为：非 2xx、网络错误、ok=false 都算失败
type PushClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewPushClient(cfg PushConfig, logger *zap.Logger) *PushClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(cfg.Timeout).
		SetRetryCount(cfg.RetryCount).
		SetRetryWaitTime(500 * time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &PushClient{httpClient: client, logger: logger}
}

// Send 发送一条推送
func (c *PushClient) Send(ctx context.Context, msg PushMessage) error {
	var result pushResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(msg).
		SetResult(&result).
		Post("")
	if err != nil {
		return fmt.Errorf("push request failed: %w", err)
	}
	if resp.IsError() {
		c.logger.Warn("Push gateway returned error status",
			zap.String("user_id", msg.UserID),
			zap.Int("status_code", resp.StatusCode()),
		)
		return fmt.Errorf("push gateway status %d", resp.StatusCode())
	}
	if !result.OK {
		return fmt.Errorf("push gateway rejected message: %s", result.Error)
	}
	return nil
}

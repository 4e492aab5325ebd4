package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

// EmergencyConfig 紧急服务上报接口配置
type EmergencyConfig struct {
	Endpoint string
	APIKey   string
	Timeout  time.Duration
}

// EmergencyReport 上报内容：被监护人资料 + 上报人
type EmergencyReport struct {
	ReportID          string   `json:"reportId"`
	ContactID         string   `json:"contactId"`
	ContactName       string   `json:"contactName"`
	ReporterID        string   `json:"reporterId"`
	Address           string   `json:"address"`
	MedicalNotes      string   `json:"medicalNotes"`
	EmergencyContacts []string `json:"emergencyContacts"`
	InactiveMinutes   int64    `json:"inactiveMinutes"`
}

// EmergencyResult 上报结果
type EmergencyResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

// EmergencyClient 紧急服务上报客户端；不重试，避免重复报警
type EmergencyClient struct {
	httpClient *resty.Client
	logger     *zap.Logger
}

func NewEmergencyClient(cfg EmergencyConfig, logger *zap.Logger) *EmergencyClient {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := resty.New().
		SetBaseURL(cfg.Endpoint).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		client.SetAuthToken(cfg.APIKey)
	}
	return &EmergencyClient{httpClient: client, logger: logger}
}

// ReportEmergency 上报紧急情况。HTTP 层失败返回 error；业务失败体现在 Success=false
func (c *EmergencyClient) ReportEmergency(ctx context.Context, report EmergencyReport) (*EmergencyResult, error) {
	c.logger.Info("Reporting emergency",
		zap.String("report_id", report.ReportID),
		zap.String("contact_id", report.ContactID),
	)

	var result EmergencyResult
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(report).
		SetResult(&result).
		SetError(&result).
		Post("")
	if err != nil {
		return nil, fmt.Errorf("emergency request failed: %w", err)
	}
	if resp.IsError() {
		msg := result.Error
		if msg == "" {
			msg = resp.Status()
		}
		return &EmergencyResult{Success: false, Error: msg}, nil
	}
	return &result, nil
}

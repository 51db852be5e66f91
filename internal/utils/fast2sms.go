package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

const defaultFast2SMSURL = "https://www.fast2sms.com/dev/bulkV2"

// Fast2SMSClient использует OTP-маршрут Fast2SMS (route=otp), номера в 10-значном формате.
type Fast2SMSClient struct {
	APIKey     string
	BaseURL    string
	HTTPClient *http.Client
}

type fast2smsRequest struct {
	Route           string `json:"route"`
	VariablesValues string `json:"variables_values"`
	Numbers         string `json:"numbers"`
}

type fast2smsResponse struct {
	Return     bool            `json:"return"`
	RequestID  string          `json:"request_id"`
	StatusCode int             `json:"status_code"`
	Message    json.RawMessage `json:"message"` // строка или массив строк
}

func NewFast2SMSClient(apiKey, baseURL string, httpClient *http.Client) *Fast2SMSClient {
	if baseURL == "" {
		baseURL = defaultFast2SMSURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Fast2SMSClient{APIKey: apiKey, BaseURL: baseURL, HTTPClient: httpClient}
}

func (c *Fast2SMSClient) Name() string { return "fast2sms" }

// SendOTP возвращает request_id провайдера.
func (c *Fast2SMSClient) SendOTP(ctx context.Context, phone, code string) (string, error) {
	if c.APIKey == "" {
		return "", ErrSMSNotConfigured
	}

	raw, err := json.Marshal(fast2smsRequest{Route: "otp", VariablesValues: code, Numbers: phone})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, bytes.NewReader(raw))
	if err != nil {
		return "", fmt.Errorf("fast2sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("authorization", c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("fast2sms: send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	var result fast2smsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("fast2sms: status=%d parse response: %w", resp.StatusCode, err)
	}
	if resp.StatusCode != http.StatusOK || !result.Return {
		return "", fmt.Errorf("fast2sms: rejected status=%d message=%s", resp.StatusCode, string(result.Message))
	}
	return result.RequestID, nil
}

package utils

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const defaultMobizonURL = "https://api.mobizon.kz/service/message/sendsmsmessage"

var ErrSMSNotConfigured = errors.New("sms: api key not configured")

// MobizonClient отправляет SMS через Mobizon (form API).
type MobizonClient struct {
	APIKey      string
	Sender      string // опционально
	BaseURL     string
	CountryCode string // добавляется к 10-значному номеру, например "91"
	HTTPClient  *http.Client
}

type mobizonResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
}

func NewMobizonClient(apiKey, sender, baseURL, countryCode string, httpClient *http.Client) *MobizonClient {
	if baseURL == "" {
		baseURL = defaultMobizonURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &MobizonClient{
		APIKey:      apiKey,
		Sender:      sender,
		BaseURL:     baseURL,
		CountryCode: countryCode,
		HTTPClient:  httpClient,
	}
}

func (c *MobizonClient) Name() string { return "mobizon" }

// SendOTP возвращает messageId Mobizon.
func (c *MobizonClient) SendOTP(ctx context.Context, phone, code string) (string, error) {
	if c.APIKey == "" {
		return "", ErrSMSNotConfigured
	}

	form := url.Values{
		"apiKey":    {c.APIKey},
		"recipient": {c.CountryCode + phone},
		"text":      {"FarmMarket code: " + code},
	}
	if c.Sender != "" {
		form.Set("from", c.Sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("mobizon: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("mobizon: send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("mobizon: status=%d body=%s", resp.StatusCode, string(body))
	}

	var result mobizonResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return "", fmt.Errorf("mobizon: parse response: %w", err)
	}
	if result.Code != 0 {
		return "", fmt.Errorf("mobizon: returned error code %d: %s", result.Code, result.Message)
	}
	return result.Data.MessageID, nil
}

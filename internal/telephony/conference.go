package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ConferenceProvider dials out through the host's conference client API.
//
// Endpoint: POST {BaseURL}/api/client/v2/conferences/{alias}/dial
// Auth: "token" header carrying the participant token of the chair.
//
// Keep this adapter free of business logic: it only maps DialRequest onto the
// host's wire format and maps the reply back to an error.
type ConferenceProvider struct {
	BaseURL string
	Alias   string
	Token   string

	Client *http.Client
}

type ConferenceConfig struct {
	BaseURL string
	Alias   string
	Token   string

	// RequestTimeout bounds the HTTP exchange itself. The dispatcher applies
	// its own, shorter bound on top.
	RequestTimeout time.Duration
}

func NewConferenceProvider(cfg ConferenceConfig) (*ConferenceProvider, error) {
	if strings.TrimSpace(cfg.BaseURL) == "" {
		return nil, errors.New("telephony: host base url required")
	}
	if strings.TrimSpace(cfg.Alias) == "" {
		return nil, errors.New("telephony: conference alias required")
	}
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 30 * time.Second
	}
	return &ConferenceProvider{
		BaseURL: strings.TrimRight(cfg.BaseURL, "/"),
		Alias:   cfg.Alias,
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: cfg.RequestTimeout},
	}, nil
}

func (p *ConferenceProvider) Name() string { return "conference" }

// hostReply is the envelope every client API response uses.
type hostReply struct {
	Status string          `json:"status"`
	Result json.RawMessage `json:"result"`
	Error  string          `json:"error"`
	Reason string          `json:"reason"`
}

func (p *ConferenceProvider) HealthCheck(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint("conference_status"), nil)
	if err != nil {
		return err
	}
	p.authorize(req)

	res, err := p.client().Do(req)
	if err != nil {
		return fmt.Errorf("telephony: host unreachable: %w", err)
	}
	defer res.Body.Close()
	_, _ = io.Copy(io.Discard, res.Body)

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return fmt.Errorf("telephony: host health check returned HTTP %d", res.StatusCode)
	}
	return nil
}

func (p *ConferenceProvider) DialOut(ctx context.Context, in DialRequest) error {
	if in.Destination == "" {
		return errors.New("telephony: destination required")
	}

	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint("dial"), bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	p.authorize(req)

	res, err := p.client().Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	raw, _ := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	var reply hostReply
	_ = json.Unmarshal(raw, &reply)

	if res.StatusCode >= 200 && res.StatusCode <= 299 && (reply.Status == "" || reply.Status == "success") {
		return nil
	}
	return &DialError{StatusCode: res.StatusCode, Detail: reply.detail(res.StatusCode)}
}

func (r hostReply) detail(status int) string {
	if len(r.Result) > 0 {
		var s string
		if err := json.Unmarshal(r.Result, &s); err == nil && strings.TrimSpace(s) != "" {
			return s
		}
	}
	if r.Error != "" {
		return r.Error
	}
	if r.Reason != "" {
		return r.Reason
	}
	return fmt.Sprintf("HTTP %d %s", status, http.StatusText(status))
}

func (p *ConferenceProvider) endpoint(action string) string {
	return fmt.Sprintf("%s/api/client/v2/conferences/%s/%s", p.BaseURL, url.PathEscape(p.Alias), action)
}

func (p *ConferenceProvider) authorize(req *http.Request) {
	if p.Token != "" {
		req.Header.Set("token", p.Token)
	}
}

func (p *ConferenceProvider) client() *http.Client {
	if p.Client != nil {
		return p.Client
	}
	return http.DefaultClient
}

// Package webhook calls the external AI workflows. Every call is a JSON POST
// to a configured URL with its own timeout.
package webhook

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/dmitrijs2005/gophtalk/internal/common"
	"github.com/dmitrijs2005/gophtalk/internal/logging"
	"github.com/dmitrijs2005/gophtalk/internal/server/ledger"
)

// Endpoint is one workflow URL.
type Endpoint struct {
	URL     string
	Timeout time.Duration
}

// Endpoints groups every workflow the server knows about.
type Endpoints struct {
	AutoAI    Endpoint
	Summarize Endpoint
	Helper    Endpoint
	Playbook  Endpoint
	FileMania Endpoint
}

// Client is safe for concurrent use.
type Client struct {
	http      *http.Client
	endpoints Endpoints
	logger    logging.Logger
}

func NewClient(endpoints Endpoints, logger logging.Logger) *Client {
	return &Client{http: &http.Client{}, endpoints: endpoints, logger: logger}
}

// StatusError is returned when a workflow answers with a non-2xx status.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("webhook returned HTTP %d", e.Code)
}

type result struct {
	status int
	body   map[string]any
}

func (r result) str(key string) string {
	if v, ok := r.body[key].(string); ok {
		return v
	}
	return ""
}

// post sends payload and decodes a JSON object reply. A body that is not a
// JSON object leaves result.body empty.
func (c *Client) post(ctx context.Context, name string, ep Endpoint, payload any) (result, error) {
	if ep.URL == "" {
		return result{}, fmt.Errorf("%s: %w", name, common.ErrWebhookNotConfigured)
	}

	if ep.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ep.Timeout)
		defer cancel()
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return result{}, fmt.Errorf("%s: encode payload: %w", name, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, ep.URL, bytes.NewReader(data))
	if err != nil {
		return result{}, fmt.Errorf("%s: build request: %w", name, err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return result{}, fmt.Errorf("%s: %w", name, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return result{status: resp.StatusCode}, fmt.Errorf("%s: read reply: %w", name, err)
	}

	c.logger.Debug(ctx, "webhook call finished", "webhook", name, "status", resp.StatusCode, "elapsed", time.Since(started))

	res := result{status: resp.StatusCode, body: map[string]any{}}
	if err := json.Unmarshal(raw, &res.body); err != nil {
		res.body = map[string]any{}
	}
	return res, nil
}

// RelayRequest is the AutoAI payload.
type RelayRequest struct {
	Sender         string         `json:"sender"`
	Recipient      string         `json:"recipient"`
	LatestMessage  string         `json:"latest_message"`
	RecentMessages []ledger.Entry `json:"recent_messages"`
}

// Relay asks the AutoAI workflow for a reply. The status code is not
// checked; an empty reply becomes "(No response)".
func (c *Client) Relay(ctx context.Context, req RelayRequest) (string, error) {
	res, err := c.post(ctx, "autoai", c.endpoints.AutoAI, req)
	if err != nil {
		return "", err
	}
	if reply := res.str("reply"); reply != "" {
		return reply, nil
	}
	return "(No response)", nil
}

// ConversationRequest is the payload shared by summarize and playbook.
type ConversationRequest struct {
	Sender         string         `json:"sender"`
	Recipient      string         `json:"recipient"`
	RecentMessages []ledger.Entry `json:"recent_messages"`
}

func (c *Client) Summarize(ctx context.Context, req ConversationRequest) (string, error) {
	res, err := c.post(ctx, "summarize", c.endpoints.Summarize, req)
	if err != nil {
		return "", err
	}
	if s := res.str("summary"); s != "" {
		return s, nil
	}
	if s := res.str("reply"); s != "" {
		return s, nil
	}
	return "(No summary received)", nil
}

// HelperRequest is the payload of the helper workflow.
type HelperRequest struct {
	Requester      string         `json:"requester"`
	TargetFriend   string         `json:"target_friend"`
	Prompt         string         `json:"prompt"`
	RecentMessages []ledger.Entry `json:"recent_messages"`
}

func (c *Client) Helper(ctx context.Context, req HelperRequest) (string, error) {
	res, err := c.post(ctx, "helper", c.endpoints.Helper, req)
	if err != nil {
		return "", err
	}
	if res.status < 200 || res.status > 299 {
		return "", &StatusError{Code: res.status}
	}
	if s := res.str("response"); s != "" {
		return s, nil
	}
	if s := res.str("reply"); s != "" {
		return s, nil
	}
	return "(No response received)", nil
}

// Playbook triggers the playbook workflow and returns its HTTP status.
func (c *Client) Playbook(ctx context.Context, req ConversationRequest) (int, error) {
	res, err := c.post(ctx, "playbook", c.endpoints.Playbook, req)
	if err != nil {
		return 0, err
	}
	return res.status, nil
}

// FileManiaRequest is the payload of the file analysis workflow.
type FileManiaRequest struct {
	Sender  string `json:"sender"`
	Action  string `json:"action"`
	FileURL string `json:"file_url"`
}

func (c *Client) FileMania(ctx context.Context, req FileManiaRequest) (string, error) {
	res, err := c.post(ctx, "filemania", c.endpoints.FileMania, req)
	if err != nil {
		return "", err
	}
	if res.status < 200 || res.status > 299 {
		return "", &StatusError{Code: res.status}
	}
	if s := res.str("reply"); s != "" {
		return s, nil
	}
	return fmt.Sprintf("(File analysis: %s returned no reply.)", req.Action), nil
}

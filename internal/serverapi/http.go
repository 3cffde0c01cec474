package serverapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/dmitrijs2005/travellife/internal/common"
	"github.com/dmitrijs2005/travellife/internal/models"
)

// HTTPClient implements Client over plain JSON/HTTP.
//
// Endpoint layout:
//
//	POST   {base}/api/{entityType}            create
//	PUT    {base}/api/{entityType}/{id}       update
//	DELETE {base}/api/{entityType}/{id}       delete
//	GET    {base}/api/health                  ping
type HTTPClient struct {
	baseURL string
	http    *http.Client
}

// NewHTTPClient builds a client for the given base URL. timeout bounds each
// network attempt; an expired attempt surfaces as a retryable failure.
func NewHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

type mutationRequest struct {
	ClientID    string          `json:"clientId,omitempty"`
	BaseVersion int64           `json:"baseVersion,omitempty"`
	Force       bool            `json:"force,omitempty"`
	Data        json.RawMessage `json:"data,omitempty"`
}

func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("ping: %w: %w", common.ErrSyncRetryable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("ping: unexpected status %s: %w", resp.Status, common.ErrSyncRetryable)
	}
	return nil
}

func (c *HTTPClient) Create(ctx context.Context, t models.EntityType, clientID string, payload []byte) (*ServerRecord, error) {
	body := mutationRequest{ClientID: clientID, Data: payload}
	rec, err := c.do(ctx, http.MethodPost, c.baseURL+"/api/"+string(t), body)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", t, err)
	}
	return rec, nil
}

func (c *HTTPClient) Update(ctx context.Context, t models.EntityType, id string, payload []byte, baseVersion int64, force bool) (*ServerRecord, error) {
	body := mutationRequest{BaseVersion: baseVersion, Force: force, Data: payload}
	rec, err := c.do(ctx, http.MethodPut, c.baseURL+"/api/"+string(t)+"/"+id, body)
	if err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", t, id, err)
	}
	return rec, nil
}

func (c *HTTPClient) Delete(ctx context.Context, t models.EntityType, id string, baseVersion int64, force bool) error {
	url := c.baseURL + "/api/" + string(t) + "/" + id +
		"?baseVersion=" + strconv.FormatInt(baseVersion, 10)
	if force {
		url += "&force=1"
	}
	_, err := c.do(ctx, http.MethodDelete, url, nil)
	if err != nil {
		return fmt.Errorf("delete %s/%s: %w", t, id, err)
	}
	return nil
}

func (c *HTTPClient) do(ctx context.Context, method, url string, body any) (*ServerRecord, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSyncRetryable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		if resp.StatusCode == http.StatusNoContent {
			return nil, nil
		}
		var rec ServerRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode response: %w", err)
		}
		return &rec, nil

	case resp.StatusCode == http.StatusConflict:
		var rec ServerRecord
		if err := json.NewDecoder(resp.Body).Decode(&rec); err != nil {
			return nil, fmt.Errorf("decode conflict body: %w", err)
		}
		return nil, &ConflictError{Server: rec}

	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("rejected %s: %w", resp.Status, common.ErrorUnauthorized)

	case resp.StatusCode >= 500:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("server error %s: %s: %w", resp.Status, string(b), common.ErrSyncRetryable)

	default:
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("rejected %s: %s: %w", resp.Status, string(b), common.ErrSyncFatal)
	}
}

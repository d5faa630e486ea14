package idm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

const maxResponseSize = 1 << 20

// request describes one call to the provider.
type request struct {
	op     string
	method string
	path   string

	// json is marshalled as the body; form wins when both are set.
	json any
	form url.Values

	// bearer is sent as the Authorization token when non-empty.
	bearer string
}

// do performs the call and decodes a 2xx body into out (when non-nil).
func (c *Connector) do(ctx context.Context, r request, out any) error {
	body, contentType, err := encodeBody(r)
	if err != nil {
		return fmt.Errorf("idm: %s: encode request: %w", r.op, err)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, body)
	if err != nil {
		return fmt.Errorf("idm: %s: create request: %w", r.op, err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if r.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+r.bearer)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveIDMRequest(r.op, 0)
		return fmt.Errorf("idm: %s: send request: %w", r.op, err)
	}
	defer resp.Body.Close()
	c.metrics.ObserveIDMRequest(r.op, resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return fmt.Errorf("idm: %s: read response: %w", r.op, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := parseError(r.op, resp.StatusCode, raw)
		c.logAPIError(ctx, apiErr)
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("idm: %s: decode response: %w", r.op, err)
	}
	return nil
}

// management performs a Management API call under /api/v2 with the cached
// management token.
func (c *Connector) management(ctx context.Context, r request, out any) error {
	token, err := c.token.Get(ctx)
	if err != nil {
		return fmt.Errorf("idm: %s: management token: %w", r.op, err)
	}
	r.path = "/api/v2" + r.path
	r.bearer = token
	return c.do(ctx, r, out)
}

func encodeBody(r request) (io.Reader, string, error) {
	switch {
	case r.form != nil:
		return bytes.NewBufferString(r.form.Encode()), "application/x-www-form-urlencoded", nil
	case r.json != nil:
		b, err := json.Marshal(r.json)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(b), "application/json", nil
	default:
		return nil, "", nil
	}
}

func (c *Connector) logAPIError(ctx context.Context, err *Error) {
	if c.verbose {
		c.logger.WarnContext(ctx, "idm call failed",
			"op", err.Op,
			"status", err.StatusCode,
			"body", string(err.Body),
		)
		return
	}
	c.logger.DebugContext(ctx, "idm call failed", "op", err.Op, "status", err.StatusCode)
}

func userPath(id string, rest ...string) string {
	p := "/users/" + url.PathEscape(id)
	for _, r := range rest {
		p += "/" + r
	}
	return p
}

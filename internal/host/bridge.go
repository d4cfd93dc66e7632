// Package host provides DocumentHost adapters. The CAD application itself
// is reached through a small automation bridge that runs alongside it and
// speaks JSON over HTTP; offline use goes through a plain file on disk.
package host

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"swvcs/internal/vcs"
)

// BridgeClient is a DocumentHost backed by the automation bridge.
//
// Endpoints (all under /api):
//
//	GET  /ping
//	GET  /document/active              204 when no document is open
//	POST /document/save
//	POST /document/close               {"discard": bool}
//	POST /document/open                {"path": string}
//	GET  /document/mass-properties
//	GET  /document/feature-count
//	GET  /document/material
//	GET  /document/bounding-box
//	GET  /document/configuration-count
//	POST /document/thumbnail           {"path": string}
type BridgeClient struct {
	baseURL    string
	httpClient *http.Client
}

// NewBridgeClient creates a client for the bridge at baseURL. A zero timeout
// lets calls block as long as the host takes.
func NewBridgeClient(baseURL string, timeout time.Duration) *BridgeClient {
	return &BridgeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// BaseURL returns the bridge address.
func (c *BridgeClient) BaseURL() string { return c.baseURL }

// bridgeError is the error body the bridge returns with non-2xx statuses.
type bridgeError struct {
	Error string `json:"error"`
}

type countResponse struct {
	Count int `json:"count"`
}

type materialResponse struct {
	Material string `json:"material"`
}

// Ping checks that the bridge is reachable and attached to a running host.
func (c *BridgeClient) Ping() error {
	_, err := c.do(http.MethodGet, "/api/ping", nil, nil)
	return err
}

// ActiveDocument returns the active document, or nil when none is open.
func (c *BridgeClient) ActiveDocument() (*vcs.ActiveDocument, error) {
	var doc vcs.ActiveDocument
	status, err := c.do(http.MethodGet, "/api/document/active", nil, &doc)
	if err != nil {
		return nil, err
	}
	if status == http.StatusNoContent {
		return nil, nil
	}
	doc.Kind = vcs.ParseDocumentKind(string(doc.Kind))
	return &doc, nil
}

func (c *BridgeClient) SaveActiveDocument() error {
	_, err := c.do(http.MethodPost, "/api/document/save", nil, nil)
	return err
}

func (c *BridgeClient) CloseActiveDocument(discardChanges bool) error {
	body := map[string]bool{"discard": discardChanges}
	_, err := c.do(http.MethodPost, "/api/document/close", body, nil)
	return err
}

func (c *BridgeClient) OpenDocument(path string) error {
	body := map[string]string{"path": path}
	_, err := c.do(http.MethodPost, "/api/document/open", body, nil)
	return err
}

func (c *BridgeClient) PhysicalProperties() (vcs.PhysicalProperties, error) {
	var props vcs.PhysicalProperties
	_, err := c.do(http.MethodGet, "/api/document/mass-properties", nil, &props)
	return props, err
}

func (c *BridgeClient) FeatureCount() (int, error) {
	var resp countResponse
	_, err := c.do(http.MethodGet, "/api/document/feature-count", nil, &resp)
	return resp.Count, err
}

func (c *BridgeClient) Material() (string, error) {
	var resp materialResponse
	_, err := c.do(http.MethodGet, "/api/document/material", nil, &resp)
	return resp.Material, err
}

func (c *BridgeClient) BoundingBoxExtents() (vcs.Extents, error) {
	var ext vcs.Extents
	_, err := c.do(http.MethodGet, "/api/document/bounding-box", nil, &ext)
	return ext, err
}

func (c *BridgeClient) ConfigurationCount() (int, error) {
	var resp countResponse
	_, err := c.do(http.MethodGet, "/api/document/configuration-count", nil, &resp)
	return resp.Count, err
}

// SaveThumbnail asks the host to render a preview to destPath. The bridge
// runs on the same machine, so it writes the file directly.
func (c *BridgeClient) SaveThumbnail(destPath string) error {
	body := map[string]string{"path": destPath}
	_, err := c.do(http.MethodPost, "/api/document/thumbnail", body, nil)
	return err
}

// do sends one request. Transport failures wrap vcs.ErrHostUnavailable; a
// non-2xx status becomes an error carrying the bridge's message. out is
// decoded only for responses that have a body.
func (c *BridgeClient) do(method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return 0, fmt.Errorf("building request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%w: %s %s: %w", vcs.ErrHostUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var be bridgeError
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := strings.TrimSpace(string(data))
		if json.Unmarshal(data, &be) == nil && be.Error != "" {
			msg = be.Error
		}
		if msg == "" {
			msg = resp.Status
		}
		if resp.StatusCode == http.StatusServiceUnavailable {
			return resp.StatusCode, fmt.Errorf("%w: %s", vcs.ErrHostUnavailable, msg)
		}
		return resp.StatusCode, fmt.Errorf("%s %s: %s", method, path, msg)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return resp.StatusCode, nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("%s %s: empty response", method, path)
		}
		return resp.StatusCode, fmt.Errorf("decoding %s response: %w", path, err)
	}
	return resp.StatusCode, nil
}

// Compile-time check that BridgeClient implements vcs.DocumentHost interface
var _ vcs.DocumentHost = (*BridgeClient)(nil)

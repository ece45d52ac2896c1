package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/planhub/template-center/pkg/scope"
)

const apiBase = "/api/template_center/v1"

type tcClient struct {
	baseURL string
	http    *http.Client
}

func newClient() *tcClient {
	return &tcClient{
		baseURL: serverURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// do performs a request against the governance API, attaching the scope and
// identity headers from the persistent flags.
func (c *tcClient) do(method, path string, body any, v any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal error: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, c.baseURL+apiBase+path, reader)
	if err != nil {
		return fmt.Errorf("request creation failed: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if org := resolvedOrg(); org != "" {
		req.Header.Set(scope.OrgHeader, org)
	}
	if ws := resolvedWorkspace(); ws != "" {
		req.Header.Set(scope.WorkspaceHeader, ws)
	}
	if asUser != "" {
		req.Header.Set(scope.UserHeader, asUser)
	}
	if asGroups != "" {
		req.Header.Set(scope.GroupHeader, asGroups)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, string(bodyBytes))
	}

	if v != nil {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

// getJSON performs a GET request and decodes the response.
func (c *tcClient) getJSON(path string, v any) error {
	return c.do(http.MethodGet, path, nil, v)
}

// postJSON performs a POST request with a JSON body and decodes the response.
func (c *tcClient) postJSON(path string, body any, v any) error {
	return c.do(http.MethodPost, path, body, v)
}

// getHealth hits a probe endpoint outside the API base path.
func (c *tcClient) getHealth(path string) (string, error) {
	resp, err := c.http.Get(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("server returned %d: %s", resp.StatusCode, string(body))
	}
	return string(body), nil
}

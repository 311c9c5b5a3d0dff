/* Copyright (c) 2025 Hamed Shams <https://hamedshams.com>
 * SPDX-License-Identifier: BSD-3-Clause */
package jira

import (
    "context"
    "encoding/json"
    "errors"
    "fmt"
    "io"
    "net/http"
    "net/url"
    "strings"
    "time"

    "github.com/michael131468/pioj/internal/config"
    "github.com/rs/zerolog"
)

type Client struct {
    baseURL string
    email   string
    token   string
    http    *http.Client
    log     zerolog.Logger
}

func NewClient(cfg config.Config, log zerolog.Logger) *Client {
    return &Client{
        baseURL: cfg.JiraHost,
        email:   cfg.JiraEmail,
        token:   cfg.JiraToken,
        http:    &http.Client{ Timeout: cfg.HTTPTimeout },
        log:     log,
    }
}

// Configured reports whether the client has a host and credentials.
func (c *Client) Configured() bool { return c.baseURL != "" && c.token != "" }

// Issue fetches a single issue. Fields defaults to *all when empty; changelog
// and rendered fields are added via expand when requested.
func (c *Client) Issue(ctx context.Context, key string, expandChangelog, expandRendered bool, fields []string) (map[string]any, error) {
    if key == "" { return nil, errors.New("jira: empty issue key") }
    q := url.Values{}
    if len(fields) > 0 { q.Set("fields", strings.Join(fields, ",")) } else { q.Set("fields", "*all") }
    var expand []string
    if expandChangelog { expand = append(expand, "changelog") }
    if expandRendered { expand = append(expand, "renderedFields") }
    if len(expand) > 0 { q.Set("expand", strings.Join(expand, ",")) }
    u := c.apiURL("/rest/api/2/issue/"+url.PathEscape(key), q)
    return c.doJSON(ctx, http.MethodGet, u)
}

// SearchIssues runs a JQL query, capped at max results.
func (c *Client) SearchIssues(ctx context.Context, jql string, max int, fields []string) (map[string]any, error) {
    if jql == "" { return nil, errors.New("jira: empty jql") }
    q := url.Values{}
    q.Set("jql", jql)
    if max > 0 { q.Set("maxResults", fmt.Sprint(max)) }
    if len(fields) > 0 { q.Set("fields", strings.Join(fields, ",")) }
    u := c.apiURL("/rest/api/2/search", q)
    return c.doJSON(ctx, http.MethodGet, u)
}

// Myself probes authentication; used by the config status endpoint.
func (c *Client) Myself(ctx context.Context) (map[string]any, error) {
    u := c.apiURL("/rest/api/2/myself", nil)
    return c.doJSON(ctx, http.MethodGet, u)
}

// FieldDefs lists all field definitions (for custom field discovery).
// Note: this endpoint returns an array, unlike the object endpoints.
func (c *Client) FieldDefs(ctx context.Context) ([]map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("jira: empty baseURL") }
    u := c.apiURL("/rest/api/2/field", nil)
    req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
    if err != nil { return nil, err }
    c.authorize(req)
    resp, err := c.http.Do(req)
    if err != nil { return nil, err }
    defer resp.Body.Close()
    if resp.StatusCode >= 300 {
        b, _ := io.ReadAll(resp.Body)
        return nil, fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
    }
    var out []map[string]any
    if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return nil, err }
    return out, nil
}

func (c *Client) apiURL(path string, q url.Values) string {
    base := strings.TrimRight(c.baseURL, "/")
    if !strings.HasPrefix(path, "/") { path = "/" + path }
    u := base + path
    if len(q) > 0 { u = u + "?" + q.Encode() }
    return u
}

// authorize sets Basic auth when an email is configured (Cloud), otherwise a
// Bearer token (Server/Data Center PAT).
func (c *Client) authorize(req *http.Request) {
    if c.email != "" {
        req.SetBasicAuth(c.email, c.token)
    } else if c.token != "" {
        req.Header.Set("Authorization", "Bearer "+c.token)
    }
}

func (c *Client) doJSON(ctx context.Context, method, u string) (map[string]any, error) {
    if c.baseURL == "" { return nil, errors.New("jira: empty baseURL") }
    var lastErr error
    for attempt := 0; attempt < 3; attempt++ {
        req, err := http.NewRequestWithContext(ctx, method, u, nil)
        if err != nil { return nil, err }
        c.authorize(req)
        resp, err := c.http.Do(req)
        if err != nil { lastErr = err } else {
            defer resp.Body.Close()
            if resp.StatusCode >= 300 {
                b, _ := io.ReadAll(resp.Body)
                // retry on 429/5xx
                if resp.StatusCode == 429 || resp.StatusCode >= 500 {
                    lastErr = fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                } else {
                    return nil, fmt.Errorf("jira api status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(b)))
                }
            } else {
                var out map[string]any
                if err := json.NewDecoder(resp.Body).Decode(&out); err != nil { return nil, err }
                return out, nil
            }
        }
        // backoff
        time.Sleep(time.Duration(300*(1<<attempt)) * time.Millisecond)
    }
    return nil, lastErr
}

// Package bam is the authenticated client for the remote address
// manager's REST API v2. It owns the session, connection pooling and
// transport-level retries; callers issue single-attempt requests.
package bam

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/ipamtools/bamsync/config"
	"github.com/ipamtools/bamsync/metrics"
)

// Response is the terminal result of one API call.
type Response struct {
	Status int
	Body   []byte
}

func (r Response) OK() bool {
	return r.Status >= 200 && r.Status < 300
}

type Client interface {
	Authenticate(ctx context.Context) error
	Do(ctx context.Context, method, path string, body any) (Response, error)
}

type client struct {
	baseURL     string
	username    string
	password    string
	credentials string // basic credentials returned by the session endpoint
	http        *retryablehttp.Client
	metrics     *metrics.Metrics
}

func New(cfg config.BAM, metrics *metrics.Metrics) Client {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = 3
	rc.HTTPClient.Timeout = cfg.Timeout
	if !cfg.VerifySSL {
		rc.HTTPClient.Transport = &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: true},
		}
	}
	return &client{
		baseURL:  strings.TrimRight(cfg.URL, "/") + "/api/v2",
		username: cfg.Username,
		password: cfg.Password,
		http:     rc,
		metrics:  metrics,
	}
}

// Authenticate opens a session and keeps the returned basic credentials
// for all subsequent requests.
func (c *client) Authenticate(ctx context.Context) error {
	body, err := json.Marshal(map[string]string{
		"username": c.username,
		"password": c.password,
	})
	if err != nil {
		return err
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/sessions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("open session: %w", err)
	}
	defer resp.Body.Close()

	c.metrics.IncAPIRequest(http.MethodPost, resp.StatusCode)
	if resp.StatusCode != http.StatusCreated {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("authentication failed, status=%d body=%s", resp.StatusCode, raw)
	}

	var session sessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return fmt.Errorf("parse session response: %w", err)
	}
	if session.BasicAuthenticationCredentials == "" {
		return fmt.Errorf("session response missing credentials")
	}
	c.credentials = session.BasicAuthenticationCredentials
	slog.Debug("session opened", "url", c.baseURL)
	return nil
}

// Do issues one request and returns its terminal status and body.
// Transport-level retries happen inside the retryable client; a
// returned error means the request never got a terminal response.
func (c *client) Do(ctx context.Context, method, path string, body any) (Response, error) {
	if c.credentials == "" {
		if err := c.Authenticate(ctx); err != nil {
			return Response{}, err
		}
	}

	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return Response{}, fmt.Errorf("encode request body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, c.baseURL+"/"+strings.TrimLeft(path, "/"), payload)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("Authorization", "Basic "+c.credentials)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Response{}, fmt.Errorf("read response body: %w", err)
	}
	c.metrics.IncAPIRequest(method, resp.StatusCode)
	return Response{Status: resp.StatusCode, Body: raw}, nil
}

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/ghuser/agritrack/services/batch/application/dto"
	"github.com/ghuser/agritrack/services/batch/application/handlers"
)

// apiError is a non-2xx response from the API.
type apiError struct {
	Status  int
	Message string
}

func (e *apiError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %s", http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %s (%d)", e.Message, e.Status)
}

type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	return &apiClient{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Timeout: timeout},
	}
}

func (c *apiClient) CreateBatch(ctx context.Context, req handlers.CreateBatchRequest) (dto.BatchView, error) {
	var out dto.BatchView
	err := c.do(ctx, http.MethodPost, "/api/batches", req, &out)
	return out, err
}

func (c *apiClient) Transport(ctx context.Context, payload string, req handlers.TransportStageRequest) (dto.BatchView, error) {
	var out dto.BatchView
	err := c.do(ctx, http.MethodPost, "/api/batches/"+url.PathEscape(payload)+"/transport", req, &out)
	return out, err
}

func (c *apiClient) Sell(ctx context.Context, payload string, req handlers.SellerStageRequest) (dto.BatchView, error) {
	var out dto.BatchView
	err := c.do(ctx, http.MethodPost, "/api/batches/"+url.PathEscape(payload)+"/seller", req, &out)
	return out, err
}

func (c *apiClient) Resolve(ctx context.Context, payload string) (dto.BatchView, error) {
	var out dto.BatchView
	err := c.do(ctx, http.MethodGet, "/api/batches/"+url.PathEscape(payload), nil, &out)
	return out, err
}

func (c *apiClient) List(ctx context.Context, producer string, limit, offset int) (handlers.ListBatchesResponse, error) {
	q := url.Values{}
	q.Set("producer", producer)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}
	var out handlers.ListBatchesResponse
	err := c.do(ctx, http.MethodGet, "/api/batches?"+q.Encode(), nil, &out)
	return out, err
}

// QRCode returns the PNG bytes of a batch's verify code.
func (c *apiClient) QRCode(ctx context.Context, payload string, size int) ([]byte, error) {
	path := "/api/batches/" + url.PathEscape(payload) + "/qr"
	if size > 0 {
		path += "?size=" + strconv.Itoa(size)
	}
	resp, err := c.send(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return io.ReadAll(resp.Body)
}

func (c *apiClient) do(ctx context.Context, method, path string, body, out any) error {
	resp, err := c.send(ctx, method, path, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) send(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var rdr io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rdr = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, rdr)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		var e handlers.ErrorResponse
		_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&e)
		return nil, &apiError{Status: resp.StatusCode, Message: e.Error}
	}
	return resp, nil
}

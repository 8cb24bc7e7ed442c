package apiclient

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
)

// Meta is the pagination block of list responses.
type Meta struct {
	Page  int `json:"page"`
	Size  int `json:"size"`
	Total int `json:"total"`
}

// Envelope is the standard BiteUI response body.
type Envelope[T any] struct {
	Message string `json:"message"`
	Data    T      `json:"data"`
	Meta    *Meta  `json:"meta,omitempty"`
}

// Do executes req and decodes the response envelope. Empty bodies decode to
// a zero envelope and non-JSON bodies are returned as the message.
func Do[T any](ctx context.Context, c *Client, req Request) (*Envelope[T], error) {
	resp, err := c.Execute(ctx, req)
	if err != nil {
		return nil, err
	}
	return DecodeEnvelope[T](resp)
}

func DecodeEnvelope[T any](resp *Response) (*Envelope[T], error) {
	env := &Envelope[T]{}
	if len(bytes.TrimSpace(resp.Body)) == 0 {
		return env, nil
	}
	if !resp.JSON {
		env.Message = string(resp.Body)
		return env, nil
	}
	if err := json.Unmarshal(resp.Body, env); err != nil {
		return nil, &DecodeError{StatusCode: resp.StatusCode, Err: err}
	}
	return env, nil
}

// RequestOption adjusts a Request built by the method helpers.
type RequestOption func(*Request)

// WithAuth marks the request as requiring the session's access token.
func WithAuth() RequestOption {
	return func(r *Request) {
		r.AuthRequired = true
	}
}

func WithSkipAuthRefresh() RequestOption {
	return func(r *Request) {
		r.SkipAuthRefresh = true
	}
}

func WithQuery(q Query) RequestOption {
	return func(r *Request) {
		r.Query = q
	}
}

func WithHeader(key, value string) RequestOption {
	return func(r *Request) {
		if r.Headers == nil {
			r.Headers = http.Header{}
		}
		r.Headers.Add(key, value)
	}
}

func newRequest(method, path string, body any, opts []RequestOption) Request {
	req := Request{Method: method, Path: path, Body: body}
	for _, opt := range opts {
		opt(&req)
	}
	return req
}

func Get[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*Envelope[T], error) {
	return Do[T](ctx, c, newRequest(http.MethodGet, path, nil, opts))
}

func Post[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*Envelope[T], error) {
	return Do[T](ctx, c, newRequest(http.MethodPost, path, body, opts))
}

func Put[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*Envelope[T], error) {
	return Do[T](ctx, c, newRequest(http.MethodPut, path, body, opts))
}

func Patch[T any](ctx context.Context, c *Client, path string, body any, opts ...RequestOption) (*Envelope[T], error) {
	return Do[T](ctx, c, newRequest(http.MethodPatch, path, body, opts))
}

func Delete[T any](ctx context.Context, c *Client, path string, opts ...RequestOption) (*Envelope[T], error) {
	return Do[T](ctx, c, newRequest(http.MethodDelete, path, nil, opts))
}

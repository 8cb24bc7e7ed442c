package apiclient

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/jrsteele09/go-biteui-client/internal/errors"
)

const fallbackMessage = "Request failed"

var (
	// ErrUnauthorized matches any *APIError with status 401.
	ErrUnauthorized = errors.ErrUnauthorized
	// ErrNoRefreshToken is returned by Refresh when no refresh token is stored.
	ErrNoRefreshToken = errors.ErrNoRefreshToken
	ErrRefreshFailed  = errors.ErrRefreshFailed
)

// ErrorBody is the parsed body of a failed response: TextBody,
// StructuredBody or EmptyBody.
type ErrorBody interface {
	isErrorBody()
}

// TextBody is a plain text body, or a JSON string.
type TextBody string

// StructuredBody is a JSON object body. Errors holds per-field messages
// when the server sends an "error" object.
type StructuredBody struct {
	Message string
	Errors  map[string]string
	Raw     json.RawMessage
}

type EmptyBody struct{}

func (TextBody) isErrorBody()       {}
func (StructuredBody) isErrorBody() {}
func (EmptyBody) isErrorBody()      {}

// ParseErrorBody classifies a response body. Undecodable JSON is treated as
// empty.
func ParseErrorBody(body []byte, isJSON bool) ErrorBody {
	if len(body) == 0 {
		return EmptyBody{}
	}
	if !isJSON {
		return TextBody(body)
	}

	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return EmptyBody{}
	}
	switch v := raw.(type) {
	case string:
		return TextBody(v)
	case map[string]any:
		s := StructuredBody{Raw: json.RawMessage(body)}
		if msg, ok := v["message"].(string); ok {
			s.Message = msg
		}
		if fields, ok := v["error"].(map[string]any); ok {
			s.Errors = make(map[string]string, len(fields))
			for k, fv := range fields {
				if fs, ok := fv.(string); ok {
					s.Errors[k] = fs
				}
			}
		}
		return s
	default:
		return EmptyBody{}
	}
}

// ErrorMessage resolves the user facing message of a failed response: the
// structured message, then the text body, then the status text, then a
// generic fallback.
func ErrorMessage(body ErrorBody, statusCode int) string {
	switch b := body.(type) {
	case StructuredBody:
		if strings.TrimSpace(b.Message) != "" {
			return b.Message
		}
	case TextBody:
		if strings.TrimSpace(string(b)) != "" {
			return string(b)
		}
	}
	if text := http.StatusText(statusCode); text != "" {
		return text
	}
	return fallbackMessage
}

// APIError is a non-2xx response from a well formed request.
type APIError struct {
	StatusCode int
	Message    string
	Body       ErrorBody
	RequestID  string

	// SessionCleared is set when the failure ended the local session.
	SessionCleared bool
	// RefreshErr is the reason a token refresh attempted for this request failed.
	RefreshErr error
}

func newAPIError(resp *Response) *APIError {
	body := ParseErrorBody(resp.Body, resp.JSON)
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    ErrorMessage(body, resp.StatusCode),
		Body:       body,
		RequestID:  resp.RequestID,
	}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) Is(target error) bool {
	return target == ErrUnauthorized && e.StatusCode == http.StatusUnauthorized
}

// FieldErrors returns per-field validation messages, if any.
func (e *APIError) FieldErrors() map[string]string {
	if s, ok := e.Body.(StructuredBody); ok {
		return s.Errors
	}
	return nil
}

// TransportError means the request did not produce a response: connection,
// DNS or TLS failures, unreadable bodies, and cancelled contexts.
type TransportError struct {
	Method string
	URL    string
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Method, e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// DecodeError means a successful response could not be decoded.
type DecodeError struct {
	StatusCode int
	Err        error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response (%d): %v", e.StatusCode, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsUnauthorized reports whether err carries a 401 response.
func IsUnauthorized(err error) bool {
	return errors.Is(err, ErrUnauthorized)
}

// AsAPIError returns the *APIError in err's chain, if any.
func AsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

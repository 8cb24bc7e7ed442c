package apiclient

import (
	"net/http"
	"strings"

	"github.com/elnormous/contenttype"
)

// Request describes one logical API call.
type Request struct {
	Method  string
	Path    string
	Query   Query
	Body    any // JSON encoded when non-nil
	Headers http.Header

	// AuthRequired attaches the access token and makes a 401 end the
	// session unless it can be recovered by a refresh.
	AuthRequired bool
	// SkipAuthRefresh disables refresh-and-retry for this call.
	SkipAuthRefresh bool
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	// JSON is set when the response declared a JSON content type.
	JSON      bool
	RequestID string
}

func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 400
}

var jsonMediaType = contenttype.NewMediaType("application/json")

// isJSON reports whether a Content-Type header names JSON, including
// parameters and structured suffixes such as application/problem+json.
func isJSON(header string) bool {
	if header == "" {
		return false
	}
	header = strings.ToLower(header)
	mt, err := contenttype.ParseMediaType(header)
	if err != nil {
		return strings.Contains(header, "application/json")
	}
	if mt.Type != "application" {
		return false
	}
	return mt.Matches(jsonMediaType) || strings.HasSuffix(mt.Subtype, "+json")
}

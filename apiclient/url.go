package apiclient

import (
	"fmt"
	"net/url"
	"sort"
	"strings"

	"github.com/jrsteele09/go-biteui-client/internal/utils"
)

// Query holds request query parameters. Nil values are skipped and slice
// values are sent as one parameter per element.
type Query map[string]any

// BuildURL joins base and path and appends q. Trailing slashes are trimmed
// from base and path always gains a leading slash.
func BuildURL(base, path string, q Query) (string, error) {
	base = strings.TrimRight(base, "/")
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}

	u, err := url.Parse(base + path)
	if err != nil {
		return "", fmt.Errorf("invalid url %q: %w", base+path, err)
	}
	if len(q) == 0 {
		return u.String(), nil
	}

	keys := make([]string, 0, len(q))
	for k := range q {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	values := u.Query()
	for _, k := range keys {
		for _, v := range utils.ToStrings(q[k]) {
			values.Add(k, v)
		}
	}
	u.RawQuery = values.Encode()
	return u.String(), nil
}

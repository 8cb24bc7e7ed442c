package apiclient_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/jrsteele09/go-biteui-client/apiclient"
)

func TestBuildURL(t *testing.T) {
	var noSearch *string
	tests := []struct {
		name  string
		base  string
		path  string
		query apiclient.Query
		want  string
	}{
		{"trims base slashes", "https://api.biteui.test///", "/api/v1/identity/profile", nil, "https://api.biteui.test/api/v1/identity/profile"},
		{"adds leading slash", "https://api.biteui.test", "users", nil, "https://api.biteui.test/users"},
		{"keeps base path", "https://biteui.test/gateway/", "/users", nil, "https://biteui.test/gateway/users"},
		{"scalars", "https://api.biteui.test", "/users", apiclient.Query{"page": 2, "search": "ann lee", "active": true}, "https://api.biteui.test/users?active=true&page=2&search=ann+lee"},
		{"skips nil", "https://api.biteui.test", "/users", apiclient.Query{"search": nil, "q": noSearch, "page": 1}, "https://api.biteui.test/users?page=1"},
		{"arrays repeat", "https://api.biteui.test", "/users", apiclient.Query{"status": []int{1, 3}}, "https://api.biteui.test/users?status=1&status=3"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := apiclient.BuildURL(tt.base, tt.path, tt.query)
			require.NoError(t, err)
			require.Equal(t, tt.want, got)
		})
	}
}

func TestUserPath(t *testing.T) {
	require.Equal(t, "/api/v1/identity/users/42", apiclient.UserPath("42"))
	require.Equal(t, "/api/v1/identity/users/a%2Fb", apiclient.UserPath("a/b"))
}

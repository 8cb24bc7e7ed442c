package config

import (
	"strconv"
	"strings"
	"time"
)

const (
	apiURLVar    = "API_URL"
	timeoutVar   = "TIMEOUT"
	rateLimitVar = "RATE_LIMIT"
	rateBurstVar = "RATE_BURST"
)

type APIConfig interface {
	GetBaseURL() string
	GetRequestTimeout() time.Duration
	GetRateLimit() float64
	GetRateBurst() int
}

type API struct{}

var _ APIConfig = API{}

// GetBaseURL returns the BiteUI API origin (e.g., "https://api.example.com")
// without trailing slashes.
func (API) GetBaseURL() string {
	return strings.TrimRight(GetEnv(apiURLVar, "http://localhost:8080"), "/")
}

func (API) GetRequestTimeout() time.Duration {
	d, err := time.ParseDuration(GetEnv(timeoutVar, "30s"))
	if err != nil || d <= 0 {
		return 30 * time.Second
	}
	return d
}

// GetRateLimit returns the outbound requests per second. Zero disables limiting.
func (API) GetRateLimit() float64 {
	f, err := strconv.ParseFloat(GetEnv(rateLimitVar, "0"), 64)
	if err != nil || f < 0 {
		return 0
	}
	return f
}

func (API) GetRateBurst() int {
	n, err := strconv.Atoi(GetEnv(rateBurstVar, "1"))
	if err != nil || n < 1 {
		return 1
	}
	return n
}

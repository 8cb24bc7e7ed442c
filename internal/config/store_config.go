package config

import (
	"os"
	"path/filepath"
	"strings"
)

const (
	tokenStoreVar  = "TOKEN_STORE"
	tokenFileVar   = "TOKEN_FILE"
	redisURLVar    = "REDIS_URL"
	redisPrefixVar = "REDIS_PREFIX"
)

type TokenStoreKind string

const (
	TokenStoreFile   TokenStoreKind = "file"
	TokenStoreMemory TokenStoreKind = "memory"
	TokenStoreRedis  TokenStoreKind = "redis"
)

type StoreConfig interface {
	GetTokenStore() TokenStoreKind
	GetTokenFile() string
	GetRedisURL() string
	GetRedisPrefix() string
}

type Store struct{}

var _ StoreConfig = Store{}

func (Store) GetTokenStore() TokenStoreKind {
	switch kind := TokenStoreKind(strings.ToLower(GetEnv(tokenStoreVar, string(TokenStoreFile)))); kind {
	case TokenStoreMemory, TokenStoreRedis:
		return kind
	default:
		return TokenStoreFile
	}
}

func (Store) GetTokenFile() string {
	if f := GetEnv(tokenFileVar, ""); f != "" {
		return f
	}
	dir, err := os.UserConfigDir()
	if err != nil {
		return filepath.Join(".", "biteui-tokens.json")
	}
	return filepath.Join(dir, "biteui", "tokens.json")
}

func (Store) GetRedisURL() string {
	return GetEnv(redisURLVar, "redis://localhost:6379/0")
}

func (Store) GetRedisPrefix() string {
	return GetEnv(redisPrefixVar, "biteui:session:")
}

package apiclient

import (
	"context"
	"time"

	"golang.org/x/oauth2"
)

var NowTimeFunc = time.Now

type tokenSource struct {
	ctx    context.Context
	client *Client
}

// TokenSource exposes the session to golang.org/x/oauth2 so other HTTP
// clients can send the same bearer token. A missing or expired access token
// is refreshed through the shared refresh.
func (c *Client) TokenSource(ctx context.Context) oauth2.TokenSource {
	return &tokenSource{ctx: ctx, client: c}
}

func (ts *tokenSource) Token() (*oauth2.Token, error) {
	tokens, err := ts.client.session.Tokens(ts.ctx)
	if err != nil {
		return nil, err
	}

	stale := tokens.AccessToken == ""
	if claims, err := tokens.Claims(); err == nil && claims.Expired(NowTimeFunc()) {
		stale = true
	}
	if stale {
		if tokens, err = ts.client.refresh(ts.ctx, tokens.AccessToken); err != nil {
			return nil, err
		}
	}

	tok := &oauth2.Token{
		AccessToken:  tokens.AccessToken,
		TokenType:    "Bearer",
		RefreshToken: tokens.RefreshToken,
	}
	if claims, err := tokens.Claims(); err == nil {
		tok.Expiry = claims.ExpiresAt
	}
	return tok, nil
}

package apiclient

import (
	"context"
	"fmt"
	"net/http"

	"github.com/jrsteele09/go-biteui-client/session"
)

const refreshKey = "refresh"

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// TokenPair is the token payload returned by login and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

func (p TokenPair) Tokens() session.Tokens {
	return session.Tokens{AccessToken: p.AccessToken, RefreshToken: p.RefreshToken}
}

// Refresh exchanges the stored refresh token for a new session. Concurrent
// callers share one refresh call. It does not clear the session on failure.
func (c *Client) Refresh(ctx context.Context) (session.Tokens, error) {
	return c.refresh(ctx, "")
}

// refresh joins the in-flight refresh or starts one. stale is the access
// token that was rejected; if the session already holds a different one,
// another caller has refreshed and no call is made. The refresh runs
// detached from ctx so an abandoning caller does not fail it for the
// others.
func (c *Client) refresh(ctx context.Context, stale string) (session.Tokens, error) {
	ch := c.refreshes.DoChan(refreshKey, func() (any, error) {
		return c.doRefresh(context.WithoutCancel(ctx), stale)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return session.Tokens{}, res.Err
		}
		return res.Val.(session.Tokens), nil
	case <-ctx.Done():
		return session.Tokens{}, ctx.Err()
	}
}

func (c *Client) doRefresh(ctx context.Context, stale string) (session.Tokens, error) {
	current, err := c.session.Tokens(ctx)
	if err != nil {
		c.metrics.refresh("failure")
		return session.Tokens{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if current.RefreshToken == "" {
		c.metrics.refresh("no_refresh_token")
		return session.Tokens{}, ErrNoRefreshToken
	}
	if stale != "" && current.AccessToken != "" && current.AccessToken != stale {
		c.metrics.refresh("already_refreshed")
		return current, nil
	}

	env, err := Do[TokenPair](ctx, c, Request{
		Method:          http.MethodPost,
		Path:            c.refreshPath,
		Body:            refreshRequest{RefreshToken: current.RefreshToken},
		SkipAuthRefresh: true,
	})
	if err != nil {
		c.metrics.refresh("failure")
		return session.Tokens{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}
	if env.Data.AccessToken == "" {
		c.metrics.refresh("failure")
		return session.Tokens{}, fmt.Errorf("%w: response has no access token", ErrRefreshFailed)
	}

	next := env.Data.Tokens()
	if next.RefreshToken == "" {
		next.RefreshToken = current.RefreshToken
	}
	if err := c.session.Establish(ctx, next); err != nil {
		c.metrics.refresh("failure")
		return session.Tokens{}, fmt.Errorf("%w: %w", ErrRefreshFailed, err)
	}

	c.metrics.refresh("success")
	c.log.Debug().Msg("session refreshed")
	return next, nil
}

package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/jrsteele09/go-biteui-client/identity"
	"github.com/jrsteele09/go-biteui-client/internal/ui"
	"github.com/jrsteele09/go-biteui-client/session"
)

// nowTimeFunc is used for expiry reporting.
var nowTimeFunc = time.Now

func (a *app) loginCommand() *cli.Command {
	return &cli.Command{
		Name:  "login",
		Usage: "sign in and store the session",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "email", Required: true},
			&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"BITEUI_PASSWORD"}},
			&cli.StringFlag{Name: "otp", Usage: "authenticator code, for accounts with MFA"},
		},
		Action: func(cCtx *cli.Context) error {
			ctx := cCtx.Context
			res, err := a.identity.Login(ctx, identity.LoginInput{
				Email:    cCtx.String("email"),
				Password: cCtx.String("password"),
			})
			if err != nil {
				return err
			}
			if res.MFARequired {
				otp := cCtx.String("otp")
				if otp == "" {
					return fmt.Errorf("%w: rerun with --otp", identity.ErrMFARequired)
				}
				if _, err := a.identity.LoginMFA(ctx, res.ChallengeToken, otp); err != nil {
					return err
				}
			}
			if !a.session.Active(ctx) {
				return errors.New("login response carried no session")
			}
			fmt.Fprintln(cCtx.App.Writer, "Signed in as", cCtx.String("email"))
			return nil
		},
	}
}

func (a *app) logoutCommand() *cli.Command {
	return &cli.Command{
		Name:  "logout",
		Usage: "revoke the session and forget the stored tokens",
		Action: func(cCtx *cli.Context) error {
			if err := a.identity.Logout(cCtx.Context); err != nil {
				return err
			}
			fmt.Fprintln(cCtx.App.Writer, "Signed out")
			return nil
		},
	}
}

func (a *app) refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "exchange the refresh token for a new token pair",
		Action: func(cCtx *cli.Context) error {
			tokens, err := a.identity.Refresh(cCtx.Context)
			if err != nil {
				return err
			}
			fmt.Fprintln(cCtx.App.Writer, "Session refreshed")
			a.printClaims(cCtx, tokens)
			return nil
		},
	}
}

func (a *app) statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "show the stored session",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "print the status again whenever the token file changes"},
		},
		Action: func(cCtx *cli.Context) error {
			if err := a.printStatus(cCtx); err != nil {
				return err
			}
			if !cCtx.Bool("watch") {
				return nil
			}
			if a.files == nil {
				return errors.New("--watch needs the file token store")
			}
			changed, err := a.files.Watch(cCtx.Context)
			if err != nil {
				return err
			}
			for range changed {
				if err := a.printStatus(cCtx); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func (a *app) printStatus(cCtx *cli.Context) error {
	tokens, err := a.session.Tokens(cCtx.Context)
	if err != nil {
		return err
	}
	fmt.Fprintln(cCtx.App.Writer, a.paint.Session(tokens.AccessToken != ""))
	if tokens.AccessToken != "" {
		a.printClaims(cCtx, tokens)
	}
	return nil
}

func (a *app) printClaims(cCtx *cli.Context, tokens session.Tokens) {
	w := cCtx.App.Writer
	claims, err := tokens.Claims()
	if err != nil {
		fmt.Fprintln(w, "  access token is opaque")
		return
	}
	fmt.Fprintf(w, "  subject: %s\n", claims.Subject)
	if claims.ExpiresAt.IsZero() {
		fmt.Fprintln(w, "  expires: never")
		return
	}
	now := nowTimeFunc()
	if claims.Expired(now) {
		fmt.Fprintf(w, "  expires: %s\n", a.paint.Paint(ui.Red, "expired "+claims.ExpiresAt.Format(time.RFC3339)))
		return
	}
	left := claims.ExpiresAt.Sub(now).Round(time.Second)
	fmt.Fprintf(w, "  expires: %s\n", a.paint.Paint(ui.Green, fmt.Sprintf("%s (in %s)", claims.ExpiresAt.Format(time.RFC3339), left)))
}

func (a *app) profileCommand() *cli.Command {
	return &cli.Command{
		Name:  "profile",
		Usage: "show the signed in user",
		Action: func(cCtx *cli.Context) error {
			p, err := a.identity.Profile(cCtx.Context)
			if err != nil {
				return err
			}
			w := cCtx.App.Writer
			fmt.Fprintf(w, "%s %s\n", a.paint.Paint(ui.Cyan, p.FullName), p.Email)
			fmt.Fprintf(w, "  id:     %s\n", p.ID)
			fmt.Fprintf(w, "  status: %s\n", p.Status)
			return nil
		},
	}
}

func (a *app) permissionsCommand() *cli.Command {
	return &cli.Command{
		Name:  "permissions",
		Usage: "list the signed in user's permissions",
		Action: func(cCtx *cli.Context) error {
			set, err := a.identity.Permissions(cCtx.Context)
			if err != nil {
				return err
			}
			resources := make([]string, 0, len(set))
			for r := range set {
				resources = append(resources, r)
			}
			sort.Strings(resources)
			for _, r := range resources {
				fmt.Fprintf(cCtx.App.Writer, "%s: %s\n", r, strings.Join(set[r], ", "))
			}
			return nil
		},
	}
}

func (a *app) versionCommand() *cli.Command {
	return &cli.Command{
		Name:  "version",
		Usage: "print the client version",
		Action: func(cCtx *cli.Context) error {
			fmt.Fprint(cCtx.App.Writer, appBanner(a.cfg.GetAppName()))
			fmt.Fprintln(cCtx.App.Writer)
			fmt.Fprintln(cCtx.App.Writer, cCtx.App.Name, version)
			return nil
		},
	}
}

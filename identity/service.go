// Package identity covers sign in, registration, password and MFA flows and
// the signed in user's profile.
package identity

import (
	"context"
	"strings"
	"unicode"

	"github.com/rs/zerolog"

	"github.com/jrsteele09/go-biteui-client/apiclient"
	"github.com/jrsteele09/go-biteui-client/internal/errors"
	"github.com/jrsteele09/go-biteui-client/internal/validation"
	"github.com/jrsteele09/go-biteui-client/permissions"
	"github.com/jrsteele09/go-biteui-client/session"
)

var (
	ErrInvalidInput = errors.ErrInvalidInput
	ErrMFARequired  = errors.ErrMFARequired
)

type Service struct {
	api     *apiclient.Client
	session *session.Manager
	log     zerolog.Logger
}

type Option func(*Service)

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) {
		s.log = l
	}
}

func NewService(api *apiclient.Client, opts ...Option) *Service {
	s := &Service{
		api:     api,
		session: api.Session(),
		log:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// NormalizeCode strips everything but digits from a one-time code.
func NormalizeCode(code string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsDigit(r) {
			return r
		}
		return -1
	}, code)
}

// Login signs in with a password. When the account has MFA enabled the
// session is left untouched and the result carries the challenge for
// LoginMFA.
func (s *Service) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	in.Email = strings.TrimSpace(in.Email)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}

	env, err := apiclient.Post[loginResponse](ctx, s.api, apiclient.PathLogin, in)
	if err != nil {
		return nil, errors.Wrapf(err, "login")
	}

	data := env.Data
	if data.MFARequired {
		return &LoginResult{MFARequired: true, ChallengeToken: data.ChallengeToken}, nil
	}

	result := &LoginResult{Tokens: session.Tokens{AccessToken: data.AccessToken, RefreshToken: data.RefreshToken}}
	if data.AccessToken == "" || data.RefreshToken == "" {
		return result, nil
	}
	if err := s.session.Establish(ctx, result.Tokens); err != nil {
		return nil, errors.Wrapf(err, "login")
	}
	return result, nil
}

// LoginMFA completes a login challenge with a TOTP code.
func (s *Service) LoginMFA(ctx context.Context, challengeToken, code string) (session.Tokens, error) {
	in := LoginMFAInput{ChallengeToken: challengeToken, Method: MethodTOTP, Code: NormalizeCode(code)}
	if err := validation.Struct(in); err != nil {
		return session.Tokens{}, err
	}

	env, err := apiclient.Post[apiclient.TokenPair](ctx, s.api, apiclient.PathLoginMFA, in)
	if err != nil {
		return session.Tokens{}, errors.Wrapf(err, "login mfa")
	}
	tokens := env.Data.Tokens()
	if err := s.session.Establish(ctx, tokens); err != nil {
		return session.Tokens{}, errors.Wrapf(err, "login mfa")
	}
	return tokens, nil
}

func (s *Service) Register(ctx context.Context, in RegisterInput) error {
	in.Email = strings.TrimSpace(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := validation.Struct(in); err != nil {
		return err
	}
	_, err := apiclient.Post[any](ctx, s.api, apiclient.PathRegister, in)
	return errors.Wrapf(err, "register")
}

func (s *Service) ResendRegistration(ctx context.Context, email string) error {
	in := emailInput{Email: strings.TrimSpace(email)}
	if err := validation.Struct(in); err != nil {
		return err
	}
	_, err := apiclient.Post[any](ctx, s.api, apiclient.PathRegisterResend, in)
	return errors.Wrapf(err, "resend registration")
}

func (s *Service) VerifyRegistration(ctx context.Context, challengeToken string) error {
	in := challengeInput{ChallengeToken: strings.TrimSpace(challengeToken)}
	if err := validation.Struct(in); err != nil {
		return err
	}
	_, err := apiclient.Post[any](ctx, s.api, apiclient.PathRegisterVerify, in)
	return errors.Wrapf(err, "verify registration")
}

func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	in := emailInput{Email: strings.TrimSpace(email)}
	if err := validation.Struct(in); err != nil {
		return err
	}
	_, err := apiclient.Post[any](ctx, s.api, apiclient.PathPasswordForgot, in)
	return errors.Wrapf(err, "forgot password")
}

func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput) error {
	in.ChallengeToken = strings.TrimSpace(in.ChallengeToken)
	if err := validation.Struct(in); err != nil {
		return err
	}
	_, err := apiclient.Post[any](ctx, s.api, apiclient.PathPasswordReset, in)
	return errors.Wrapf(err, "reset password")
}

func (s *Service) ChangePassword(ctx context.Context, in ChangePasswordInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	_, err := apiclient.Post[any](ctx, s.api, apiclient.PathPasswordChange, in, apiclient.WithAuth())
	return errors.Wrapf(err, "change password")
}

// Refresh renews the session using the shared refresh.
func (s *Service) Refresh(ctx context.Context) (session.Tokens, error) {
	return s.api.Refresh(ctx)
}

// Logout revokes the refresh token on the server when one is held and
// always clears the local session, reporting ReasonLogout exactly once.
// Server failures, such as an already expired token, are logged and not
// returned.
func (s *Service) Logout(ctx context.Context) error {
	tokens, err := s.session.Tokens(ctx)
	if err != nil {
		s.log.Warn().Err(err).Msg("reading tokens for logout")
	}

	if tokens.RefreshToken != "" {
		// Not WithAuth: a 401 here must not end the session as unauthorized.
		opts := []apiclient.RequestOption{apiclient.WithSkipAuthRefresh()}
		if tokens.AccessToken != "" {
			opts = append(opts, apiclient.WithHeader("Authorization", "Bearer "+tokens.AccessToken))
		}
		_, err := apiclient.Post[any](ctx, s.api, apiclient.PathLogout,
			logoutRequest{RefreshToken: tokens.RefreshToken}, opts...)
		if err != nil {
			s.log.Info().Err(err).Msg("server logout failed, clearing local session")
		}
	}

	return s.session.Clear(context.WithoutCancel(ctx), session.ReasonLogout)
}

func (s *Service) Profile(ctx context.Context) (*Profile, error) {
	env, err := apiclient.Get[Profile](ctx, s.api, apiclient.PathProfile, apiclient.WithAuth())
	if err != nil {
		return nil, errors.Wrapf(err, "profile")
	}
	return &env.Data, nil
}

func (s *Service) UpdateProfile(ctx context.Context, fullName string) error {
	in := UpdateProfileInput{FullName: strings.TrimSpace(fullName)}
	if err := validation.Struct(in); err != nil {
		return err
	}
	_, err := apiclient.Put[any](ctx, s.api, apiclient.PathProfile, in, apiclient.WithAuth())
	return errors.Wrapf(err, "update profile")
}

func (s *Service) Permissions(ctx context.Context) (permissions.Set, error) {
	env, err := apiclient.Get[permissionsResponse](ctx, s.api, apiclient.PathPermissions, apiclient.WithAuth())
	if err != nil {
		return nil, errors.Wrapf(err, "permissions")
	}
	if env.Data.Permissions == nil {
		return permissions.Set{}, nil
	}
	return permissions.Set(env.Data.Permissions), nil
}

func (s *Service) MFASettings(ctx context.Context) (*MFASettings, error) {
	env, err := apiclient.Get[MFASettings](ctx, s.api, apiclient.PathMFASettings, apiclient.WithAuth())
	if err != nil {
		return nil, errors.Wrapf(err, "mfa settings")
	}
	return &env.Data, nil
}

func (s *Service) SetupTOTP(ctx context.Context, in SetupTOTPInput) (*TOTPSetup, error) {
	in.FriendlyName = strings.TrimSpace(in.FriendlyName)
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	env, err := apiclient.Post[TOTPSetup](ctx, s.api, apiclient.PathTOTPSetup, in, apiclient.WithAuth())
	if err != nil {
		return nil, errors.Wrapf(err, "setup totp")
	}
	return &env.Data, nil
}

func (s *Service) ConfirmTOTP(ctx context.Context, challengeToken, code string) error {
	in := ConfirmTOTPInput{ChallengeToken: challengeToken, Code: NormalizeCode(code)}
	if err := validation.Struct(in); err != nil {
		return err
	}
	_, err := apiclient.Post[any](ctx, s.api, apiclient.PathTOTPConfirm, in, apiclient.WithAuth())
	return errors.Wrapf(err, "confirm totp")
}

// CreateBackupCodes issues a fresh set of recovery codes.
func (s *Service) CreateBackupCodes(ctx context.Context, currentPassword string) ([]string, error) {
	in := backupCodeRequest{CurrentPassword: currentPassword}
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	env, err := apiclient.Post[backupCodeResponse](ctx, s.api, apiclient.PathBackupCode, in, apiclient.WithAuth())
	if err != nil {
		return nil, errors.Wrapf(err, "backup codes")
	}
	return env.Data.RecoveryCodes, nil
}

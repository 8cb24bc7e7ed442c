package identity

import "github.com/jrsteele09/go-biteui-client/session"

// MethodTOTP is the only second factor accepted at login.
const MethodTOTP = "TOTP"

type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// LoginResult reports either an established session or a pending MFA
// challenge.
type LoginResult struct {
	MFARequired    bool
	ChallengeToken string
	Tokens         session.Tokens
}

type loginResponse struct {
	MFARequired    bool   `json:"mfa_required"`
	ChallengeToken string `json:"challenge_token"`
	AccessToken    string `json:"access_token"`
	RefreshToken   string `json:"refresh_token"`
}

type LoginMFAInput struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Method         string `json:"method" validate:"required,oneof=TOTP"`
	Code           string `json:"code" validate:"required,len=6,numeric"`
}

type RegisterInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	FullName string `json:"full_name" validate:"required,min=5,max=100"`
}

type emailInput struct {
	Email string `json:"email" validate:"required,email"`
}

type challengeInput struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
}

type ResetPasswordInput struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	NewPassword    string `json:"new_password" validate:"required,min=8,max=72"`
}

type ChangePasswordInput struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,max=72"`
}

type logoutRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// Profile is the signed in user.
type Profile struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
	Status    string `json:"status"`
}

type UpdateProfileInput struct {
	FullName string `json:"full_name" validate:"required,min=5,max=100"`
}

type permissionsResponse struct {
	Permissions map[string][]string `json:"permissions"`
}

type MFASettings struct {
	TOTPEnabled       bool `json:"totp_enabled"`
	BackupCodeEnabled bool `json:"backup_code_enabled"`
	SMSEnabled        bool `json:"sms_enabled"`
}

type SetupTOTPInput struct {
	FriendlyName    string `json:"friendly_name" validate:"required"`
	CurrentPassword string `json:"current_password" validate:"required"`
}

// TOTPSetup carries the secret to enrol in an authenticator app and the
// challenge to confirm it with.
type TOTPSetup struct {
	ChallengeToken string `json:"challenge_token"`
	Key            string `json:"key"`
	URI            string `json:"uri"`
}

type ConfirmTOTPInput struct {
	ChallengeToken string `json:"challenge_token" validate:"required"`
	Code           string `json:"code" validate:"required,len=6,numeric"`
}

type backupCodeRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
}

type backupCodeResponse struct {
	RecoveryCodes []string `json:"recovery_codes"`
}

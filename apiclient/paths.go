package apiclient

import "net/url"

const IdentityPrefix = "/api/v1/identity"

// Identity API paths.
const (
	PathLogin          = IdentityPrefix + "/login"
	PathLoginMFA       = IdentityPrefix + "/login/2fa"
	PathRegister       = IdentityPrefix + "/register"
	PathRegisterResend = IdentityPrefix + "/register/resend"
	PathRegisterVerify = IdentityPrefix + "/register/verify"
	PathLogout         = IdentityPrefix + "/logout"
	PathRefresh        = IdentityPrefix + "/refresh"

	PathPasswordForgot = IdentityPrefix + "/password/forgot"
	PathPasswordReset  = IdentityPrefix + "/password/reset"
	PathPasswordChange = IdentityPrefix + "/password/change"

	PathTOTPSetup   = IdentityPrefix + "/mfa/totp/setup"
	PathTOTPConfirm = IdentityPrefix + "/mfa/totp/confirm"
	PathBackupCode  = IdentityPrefix + "/mfa/backup-code"

	PathProfile     = IdentityPrefix + "/profile"
	PathPermissions = IdentityPrefix + "/profile/permissions"
	PathMFASettings = IdentityPrefix + "/profile/settings/mfa"

	PathUsers       = IdentityPrefix + "/users"
	PathUsersImport = IdentityPrefix + "/users-import"
	PathUsersExport = IdentityPrefix + "/users-export"
)

// UserPath returns the path of a single user.
func UserPath(id string) string {
	return PathUsers + "/" + url.PathEscape(id)
}

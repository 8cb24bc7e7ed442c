// Package apitest runs an in-process BiteUI API for tests. It keeps users,
// sessions and MFA state in memory and issues HS256 access tokens.
package apitest

import (
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/jrsteele09/go-biteui-client/apiclient"
)

const (
	// TOTPCode is the only one-time code the fake accepts.
	TOTPCode = "123456"

	ctxAccountID = "account_id"
)

// NowTimeFunc is used when issuing and checking tokens.
var NowTimeFunc = time.Now

type Server struct {
	*httptest.Server

	secret    []byte
	accessTTL time.Duration
	accounts  *accounts

	mu         sync.Mutex
	access     map[string]string // access token -> account id
	refresh    map[string]string // refresh token -> account id
	challenges map[string]string // challenge token -> account id
	hits       map[string]int

	RefreshCalls atomic.Int32
}

// New starts a fake API and closes it when the test ends.
func New(t *testing.T) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &Server{
		secret:     []byte("biteui-test-secret"),
		accessTTL:  15 * time.Minute,
		accounts:   newAccounts(),
		access:     make(map[string]string),
		refresh:    make(map[string]string),
		challenges: make(map[string]string),
		hits:       make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *Server) routes() http.Handler {
	r := gin.New()
	r.Use(s.count)

	id := r.Group(apiclient.IdentityPrefix)
	id.POST("/login", s.login)
	id.POST("/login/2fa", s.loginMFA)
	id.POST("/register", s.register)
	id.POST("/register/resend", s.accepted)
	id.POST("/register/verify", s.verify)
	id.POST("/refresh", s.refreshTokens)
	id.POST("/password/forgot", s.accepted)
	id.POST("/password/reset", s.accepted)

	auth := id.Group("", s.requireAuth)
	auth.POST("/logout", s.logout)
	auth.POST("/password/change", s.changePassword)
	auth.GET("/profile", s.profile)
	auth.PUT("/profile", s.updateProfile)
	auth.GET("/profile/permissions", s.permissions)
	auth.GET("/profile/settings/mfa", s.mfaSettings)
	auth.POST("/mfa/totp/setup", s.setupTOTP)
	auth.POST("/mfa/totp/confirm", s.confirmTOTP)
	auth.POST("/mfa/backup-code", s.backupCodes)

	users := auth.Group("", s.requirePermission("identity:management:users"))
	users.GET("/users", s.listUsers)
	users.POST("/users", s.createUser)
	users.GET("/users/:id", s.getUser)
	users.PUT("/users/:id", s.updateUser)
	users.DELETE("/users/:id", s.deleteUser)
	users.POST("/users-import", s.importUsers)
	users.GET("/users-export", s.exportUsers)
	return r
}

// AddAccount registers an account. Missing fields get usable defaults.
func (s *Server) AddAccount(a Account) *Account {
	if a.Status == 0 {
		a.Status = 2
	}
	if a.Permissions == nil {
		a.Permissions = map[string][]string{}
	}
	acc := a
	s.accounts.upsert(&acc)
	return &acc
}

// Account returns the stored account.
func (s *Server) Account(id string) (*Account, bool) {
	return s.accounts.get(id)
}

// SignIn issues tokens for an account without going through login.
func (s *Server) SignIn(accountID string) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issue(accountID)
}

// ExpireAccessTokens invalidates every issued access token.
func (s *Server) ExpireAccessTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.access = make(map[string]string)
}

// RevokeRefreshTokens invalidates every issued refresh token.
func (s *Server) RevokeRefreshTokens() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refresh = make(map[string]string)
}

// RefreshTokenActive reports whether token can still be exchanged.
func (s *Server) RefreshTokenActive(token string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.refresh[token]
	return ok
}

// Hits returns how many requests reached "METHOD path".
func (s *Server) Hits(method, path string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hits[method+" "+path]
}

func (s *Server) count(c *gin.Context) {
	s.mu.Lock()
	s.hits[c.Request.Method+" "+c.Request.URL.Path]++
	s.mu.Unlock()
	c.Next()
}

// issue mints a token pair. Callers hold s.mu.
func (s *Server) issue(accountID string) (string, string) {
	now := NowTimeFunc()
	access, err := jwtlib.NewWithClaims(jwtlib.SigningMethodHS256, jwtlib.RegisteredClaims{
		ID:        uuid.NewString(),
		Subject:   accountID,
		Issuer:    "biteui-apitest",
		IssuedAt:  jwtlib.NewNumericDate(now),
		ExpiresAt: jwtlib.NewNumericDate(now.Add(s.accessTTL)),
	}).SignedString(s.secret)
	if err != nil {
		panic(err)
	}
	refresh := uuid.NewString()
	s.access[access] = accountID
	s.refresh[refresh] = accountID
	return access, refresh
}

func respond(c *gin.Context, status int, message string, data any) {
	body := gin.H{"message": message}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

func fail(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, gin.H{"message": message})
}

func (s *Server) requireAuth(c *gin.Context) {
	raw, ok := strings.CutPrefix(c.GetHeader("Authorization"), "Bearer ")
	if !ok || raw == "" {
		fail(c, http.StatusUnauthorized, "missing bearer token")
		return
	}

	_, err := jwtlib.Parse(raw, func(*jwtlib.Token) (any, error) { return s.secret, nil },
		jwtlib.WithValidMethods([]string{jwtlib.SigningMethodHS256.Alg()}),
		jwtlib.WithTimeFunc(NowTimeFunc))
	s.mu.Lock()
	accountID, active := s.access[raw]
	s.mu.Unlock()
	if err != nil || !active {
		fail(c, http.StatusUnauthorized, "token expired")
		return
	}
	c.Set(ctxAccountID, accountID)
	c.Next()
}

func (s *Server) requirePermission(resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		acc, ok := s.accounts.get(c.GetString(ctxAccountID))
		if !ok || !(allowed(acc.Permissions["*"]) || allowed(acc.Permissions[resource])) {
			fail(c, http.StatusForbidden, "forbidden")
			return
		}
		c.Next()
	}
}

func allowed(actions []string) bool {
	return len(actions) > 0
}

func (s *Server) current(c *gin.Context) (*Account, bool) {
	acc, ok := s.accounts.get(c.GetString(ctxAccountID))
	if !ok {
		fail(c, http.StatusUnauthorized, "unknown account")
	}
	return acc, ok
}

func (s *Server) accepted(c *gin.Context) {
	var body map[string]any
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	respond(c, http.StatusOK, "ok", nil)
}

func (s *Server) login(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	acc, ok := s.accounts.byEmail(body.Email)
	if !ok || acc.Password != body.Password {
		fail(c, http.StatusUnauthorized, "invalid email or password")
		return
	}
	if acc.Status == 1 {
		fail(c, http.StatusForbidden, "Account not verified")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if acc.MFA {
		challenge := uuid.NewString()
		s.challenges[challenge] = acc.ID
		respond(c, http.StatusOK, "mfa required", gin.H{"mfa_required": true, "challenge_token": challenge})
		return
	}
	access, refresh := s.issue(acc.ID)
	respond(c, http.StatusOK, "signed in", gin.H{"mfa_required": false, "access_token": access, "refresh_token": refresh})
}

func (s *Server) loginMFA(c *gin.Context) {
	var body struct {
		ChallengeToken string `json:"challenge_token" binding:"required"`
		Method         string `json:"method" binding:"required"`
		Code           string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || body.Method != "TOTP" {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	accountID, ok := s.challenges[body.ChallengeToken]
	if !ok || body.Code != TOTPCode {
		fail(c, http.StatusUnauthorized, "invalid code")
		return
	}
	delete(s.challenges, body.ChallengeToken)
	access, refresh := s.issue(accountID)
	respond(c, http.StatusOK, "signed in", gin.H{"access_token": access, "refresh_token": refresh})
}

func (s *Server) register(c *gin.Context) {
	var body struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		FullName string `json:"full_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	if _, exists := s.accounts.byEmail(body.Email); exists {
		c.AbortWithStatusJSON(http.StatusConflict, gin.H{"message": "email already registered", "error": gin.H{"email": "exists"}})
		return
	}
	s.AddAccount(Account{Email: body.Email, Password: body.Password, FullName: body.FullName, Status: 1})
	respond(c, http.StatusCreated, "registered", nil)
}

func (s *Server) verify(c *gin.Context) {
	var body struct {
		ChallengeToken string `json:"challenge_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	respond(c, http.StatusOK, "verified", nil)
}

func (s *Server) refreshTokens(c *gin.Context) {
	s.RefreshCalls.Add(1)
	var body struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	accountID, ok := s.refresh[body.RefreshToken]
	if !ok {
		fail(c, http.StatusUnauthorized, "refresh token expired")
		return
	}
	delete(s.refresh, body.RefreshToken)
	access, refresh := s.issue(accountID)
	respond(c, http.StatusOK, "refreshed", gin.H{"access_token": access, "refresh_token": refresh})
}

func (s *Server) logout(c *gin.Context) {
	var body struct {
		RefreshToken string `json:"refresh_token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}

	raw := strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.refresh, body.RefreshToken)
	delete(s.access, raw)
	s.mu.Unlock()
	c.Status(http.StatusNoContent)
}

func (s *Server) changePassword(c *gin.Context) {
	var body struct {
		CurrentPassword string `json:"current_password" binding:"required"`
		NewPassword     string `json:"new_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	acc, ok := s.current(c)
	if !ok {
		return
	}
	if acc.Password != body.CurrentPassword {
		fail(c, http.StatusBadRequest, "current password is incorrect")
		return
	}
	acc.Password = body.NewPassword
	s.accounts.upsert(acc)
	respond(c, http.StatusOK, "password changed", nil)
}

func (s *Server) profile(c *gin.Context) {
	acc, ok := s.current(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{
		"id":         acc.ID,
		"email":      acc.Email,
		"full_name":  acc.FullName,
		"avatar_url": acc.AvatarURL,
		"status":     strconv.Itoa(acc.Status),
	})
}

func (s *Server) updateProfile(c *gin.Context) {
	var body struct {
		FullName string `json:"full_name" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	acc, ok := s.current(c)
	if !ok {
		return
	}
	acc.FullName = body.FullName
	acc.UpdatedAt = NowTimeFunc()
	s.accounts.upsert(acc)
	respond(c, http.StatusOK, "updated", nil)
}

func (s *Server) permissions(c *gin.Context) {
	acc, ok := s.current(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"permissions": acc.Permissions})
}

func (s *Server) mfaSettings(c *gin.Context) {
	acc, ok := s.current(c)
	if !ok {
		return
	}
	respond(c, http.StatusOK, "ok", gin.H{"totp_enabled": acc.MFA, "backup_code_enabled": false, "sms_enabled": false})
}

func (s *Server) setupTOTP(c *gin.Context) {
	var body struct {
		FriendlyName    string `json:"friendly_name" binding:"required"`
		CurrentPassword string `json:"current_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	acc, ok := s.current(c)
	if !ok {
		return
	}
	if acc.Password != body.CurrentPassword {
		fail(c, http.StatusBadRequest, "current password is incorrect")
		return
	}

	challenge := uuid.NewString()
	s.mu.Lock()
	s.challenges[challenge] = acc.ID
	s.mu.Unlock()
	respond(c, http.StatusOK, "ok", gin.H{
		"challenge_token": challenge,
		"key":             "JBSWY3DPEHPK3PXP",
		"uri":             "otpauth://totp/BiteUI:" + acc.Email + "?secret=JBSWY3DPEHPK3PXP&issuer=BiteUI",
	})
}

func (s *Server) confirmTOTP(c *gin.Context) {
	var body struct {
		ChallengeToken string `json:"challenge_token" binding:"required"`
		Code           string `json:"code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	accountID, ok := s.challenges[body.ChallengeToken]
	if ok && body.Code == TOTPCode {
		delete(s.challenges, body.ChallengeToken)
	}
	s.mu.Unlock()
	if !ok || accountID != c.GetString(ctxAccountID) || body.Code != TOTPCode {
		fail(c, http.StatusBadRequest, "invalid code")
		return
	}
	acc, _ := s.accounts.get(accountID)
	acc.MFA = true
	s.accounts.upsert(acc)
	respond(c, http.StatusOK, "enabled", nil)
}

func (s *Server) backupCodes(c *gin.Context) {
	var body struct {
		CurrentPassword string `json:"current_password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		fail(c, http.StatusBadRequest, "invalid body")
		return
	}
	acc, ok := s.current(c)
	if !ok {
		return
	}
	if acc.Password != body.CurrentPassword {
		fail(c, http.StatusBadRequest, "current password is incorrect")
		return
	}
	codes := make([]string, 8)
	for i := range codes {
		codes[i] = strings.ToUpper(uuid.NewString()[:8])
	}
	respond(c, http.StatusOK, "ok", gin.H{"recovery_codes": codes})
}

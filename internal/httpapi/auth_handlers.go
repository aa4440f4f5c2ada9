package httpapi

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/notionclone/notionclone/internal/authflow"
	"github.com/notionclone/notionclone/internal/models"
)

// AuthHandler exposes the auth flows over HTTP.
type AuthHandler struct {
	svc *authflow.Service
}

// NewAuthHandler constructs an auth handler.
func NewAuthHandler(svc *authflow.Service) *AuthHandler {
	return &AuthHandler{svc: svc}
}

// userJSON shapes a user for API responses. The password hash never
// leaves the server.
func userJSON(user *models.User) gin.H {
	return gin.H{
		"id":             user.ID,
		"name":           user.Name,
		"username":       user.Username,
		"email":          user.Email,
		"phone":          user.Phone,
		"plan":           user.Plan,
		"avatar":         user.Avatar,
		"status":         user.Status,
		"email-verified": user.EmailVerified,
		"first-login":    user.FirstLogin,
		"created-at":     user.CreatedAt.Format(time.RFC3339),
	}
}

// tokenJSON shapes a token pair for API responses.
func tokenJSON(pair *authflow.TokenPair) gin.H {
	return gin.H{
		"access-token":  pair.AccessToken,
		"refresh-token": pair.RefreshToken,
		"token-type":    "Bearer",
		"expires-in":    pair.ExpiresIn,
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Username string `json:"username" binding:"required"`
	Email    string `json:"email" binding:"required,email"`
	Phone    string `json:"phone"`
	Password string `json:"password" binding:"required"`
	Plan     string `json:"plan"`
}

// Register handles POST /api/auth/register.
func (h *AuthHandler) Register(c *gin.Context) {
	var req registerRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		bindError(c, errBind)
		return
	}
	device := authflow.DeviceInfo{
		UserAgent: c.GetHeader("User-Agent"),
		IPAddress: c.ClientIP(),
	}
	user, pair, errRegister := h.svc.Register(c.Request.Context(), authflow.RegisterInput{
		Name:     req.Name,
		Username: req.Username,
		Email:    req.Email,
		Phone:    req.Phone,
		Password: req.Password,
		Plan:     req.Plan,
	}, device)
	if errRegister != nil {
		writeError(c, errRegister)
		return
	}
	body := tokenJSON(pair)
	body["user"] = userJSON(user)
	c.JSON(http.StatusCreated, body)
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// Login handles POST /api/auth/login.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		bindError(c, errBind)
		return
	}
	device := authflow.DeviceInfo{
		UserAgent: c.GetHeader("User-Agent"),
		IPAddress: c.ClientIP(),
	}
	user, pair, errLogin := h.svc.Login(c.Request.Context(), req.Email, req.Password, device)
	if errLogin != nil {
		writeError(c, errLogin)
		return
	}
	body := tokenJSON(pair)
	body["user"] = userJSON(user)
	c.JSON(http.StatusOK, body)
}

type verifyEmailRequest struct {
	Code string `json:"code" binding:"required"`
}

// VerifyEmail handles POST /api/auth/verify-email.
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req verifyEmailRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		bindError(c, errBind)
		return
	}
	user := CurrentUser(c)
	if errVerify := h.svc.VerifyEmail(c.Request.Context(), user.ID, req.Code); errVerify != nil {
		writeError(c, errVerify)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "verified"})
}

type emailRequest struct {
	Email string `json:"email" binding:"required"`
}

// ResendCode handles POST /api/auth/resend-code.
func (h *AuthHandler) ResendCode(c *gin.Context) {
	var req emailRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		bindError(c, errBind)
		return
	}
	if errResend := h.svc.ResendCode(c.Request.Context(), req.Email); errResend != nil {
		writeError(c, errResend)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

// ForgotPassword handles POST /api/auth/forgot-password. The response is
// identical whether or not the email exists.
func (h *AuthHandler) ForgotPassword(c *gin.Context) {
	var req emailRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		bindError(c, errBind)
		return
	}
	if errForgot := h.svc.ForgotPassword(c.Request.Context(), req.Email); errForgot != nil {
		writeError(c, errForgot)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "sent"})
}

type resetPasswordRequest struct {
	Code        string `json:"code" binding:"required"`
	NewPassword string `json:"new-password" binding:"required"`
}

// ResetPassword handles POST /api/auth/reset-password. The account is
// resolved from the recovery code.
func (h *AuthHandler) ResetPassword(c *gin.Context) {
	var req resetPasswordRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		bindError(c, errBind)
		return
	}
	errReset := h.svc.ResetPassword(c.Request.Context(), req.Code, req.NewPassword)
	if errReset != nil {
		writeError(c, errReset)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "reset"})
}

type refreshRequest struct {
	RefreshToken string `json:"refresh-token" binding:"required"`
}

// Refresh handles POST /api/auth/refresh-token.
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req refreshRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		bindError(c, errBind)
		return
	}
	pair, errRefresh := h.svc.Refresh(c.Request.Context(), req.RefreshToken)
	if errRefresh != nil {
		writeError(c, errRefresh)
		return
	}
	c.JSON(http.StatusOK, tokenJSON(pair))
}

// Logout handles POST /api/auth/logout. Every session of the user is
// revoked.
func (h *AuthHandler) Logout(c *gin.Context) {
	user := CurrentUser(c)
	if errLogout := h.svc.Logout(c.Request.Context(), user.ID); errLogout != nil {
		writeError(c, errLogout)
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logged-out"})
}

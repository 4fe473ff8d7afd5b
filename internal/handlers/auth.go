package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"waitline/internal/auth"
	"waitline/internal/models"
	"waitline/internal/response"
	"waitline/internal/storage"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

// StaffStore looks up staff accounts
type StaffStore interface {
	FindByEmail(ctx context.Context, email string) (*models.Staff, error)
	FindByID(ctx context.Context, id string) (*models.Staff, error)
}

// AuthHandler issues staff tokens
type AuthHandler struct {
	staff  StaffStore
	issuer *auth.Issuer
	log    *zap.Logger
}

func NewAuthHandler(staff StaffStore, issuer *auth.Issuer, log *zap.Logger) *AuthHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthHandler{staff: staff, issuer: issuer, log: log}
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// Login godoc
//
//	@Summary		Staff login
//	@Description	Checks staff credentials and returns a token pair
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			credentials	body		LoginRequest			true	"Credentials"
//	@Success		200			{object}	response.TokenResponse	"Token pair"
//	@Failure		400			{object}	response.ErrorResponse	"Validation error (VALIDATION_ERROR)"
//	@Failure		401			{object}	response.ErrorResponse	"Wrong email or password (INVALID_CREDENTIALS)"
//	@Failure		500			{object}	response.ErrorResponse	"Server error (INTERNAL_ERROR)"
//	@Router			/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	staff, err := h.staff.FindByEmail(c.Request.Context(), strings.ToLower(strings.TrimSpace(req.Email)))
	if errors.Is(err, storage.ErrStaffNotFound) {
		invalidCredentials(c)
		return
	}
	if err != nil {
		h.internal(c, err)
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(staff.PasswordHash), []byte(req.Password)); err != nil {
		invalidCredentials(c)
		return
	}

	h.respondWithTokens(c, staff)
}

// RefreshToken godoc
//
//	@Summary		Refresh tokens
//	@Description	Exchanges a refresh token for a new token pair
//	@Tags			auth
//	@Accept			json
//	@Produce		json
//	@Param			refresh_token	body		RefreshTokenRequest		true	"Refresh token"
//	@Success		200				{object}	response.TokenResponse	"Token pair"
//	@Failure		400				{object}	response.ErrorResponse	"Validation error (VALIDATION_ERROR)"
//	@Failure		401				{object}	response.ErrorResponse	"Invalid or expired refresh token (INVALID_TOKEN)"
//	@Failure		500				{object}	response.ErrorResponse	"Server error (INTERNAL_ERROR)"
//	@Router			/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		validationError(c, err)
		return
	}

	claims, err := h.issuer.ParseRefresh(req.RefreshToken)
	if err != nil {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    response.CodeInvalidToken,
			Message: "Invalid or expired refresh token",
		})
		return
	}

	// the account may have been removed or demoted since the token was issued
	staff, err := h.staff.FindByID(c.Request.Context(), claims.StaffID)
	if errors.Is(err, storage.ErrStaffNotFound) {
		c.JSON(http.StatusUnauthorized, response.ErrorResponse{
			Code:    response.CodeInvalidToken,
			Message: "Staff account not found",
		})
		return
	}
	if err != nil {
		h.internal(c, err)
		return
	}

	h.respondWithTokens(c, staff)
}

// MeResponse describes the signed-in staff member
type MeResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role" example:"manager"`
}

// Me godoc
//
//	@Summary		Current staff member
//	@Description	Returns the account behind the access token, used by the staff dashboard after login
//	@Tags			auth
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{object}	MeResponse
//	@Failure		401	{object}	response.ErrorResponse	"Invalid token or account removed (INVALID_TOKEN)"
//	@Router			/api/staff/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	claims, ok := auth.ClaimsFrom(c)
	if !ok {
		invalidToken(c)
		return
	}
	staff, err := h.staff.FindByID(c.Request.Context(), claims.StaffID)
	if errors.Is(err, storage.ErrStaffNotFound) {
		invalidToken(c)
		return
	}
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, MeResponse{
		ID:    staff.ID,
		Name:  staff.Name,
		Email: staff.Email,
		Role:  staff.Role,
	})
}

func (h *AuthHandler) respondWithTokens(c *gin.Context, staff *models.Staff) {
	access, refresh, err := h.issuer.IssuePair(staff.ID, staff.Role)
	if err != nil {
		h.internal(c, err)
		return
	}
	c.JSON(http.StatusOK, response.TokenResponse{
		AccessToken:  access,
		RefreshToken: refresh,
	})
}

func (h *AuthHandler) internal(c *gin.Context, err error) {
	h.log.Error("auth request failed", zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, response.ErrorResponse{
		Code:    response.CodeInternal,
		Message: "Internal server error",
	})
}

func invalidCredentials(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, response.ErrorResponse{
		Code:    response.CodeInvalidCredentials,
		Message: "Wrong email or password",
	})
}

func invalidToken(c *gin.Context) {
	c.JSON(http.StatusUnauthorized, response.ErrorResponse{
		Code:    response.CodeInvalidToken,
		Message: "Invalid or expired token",
	})
}

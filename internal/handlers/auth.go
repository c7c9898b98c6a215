package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"civicvote/api/internal/models"
	"civicvote/api/internal/service"
)

type registerRequest struct {
	Email         string `json:"email" binding:"required,email"`
	Password      string `json:"password" binding:"required,min=6"`
	FirstName     string `json:"firstName" binding:"required"`
	LastName      string `json:"lastName" binding:"required"`
	Role          string `json:"role"`
	WalletAddress string `json:"walletAddress"`
}

type userResponse struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	Role          string  `json:"role"`
	WalletAddress *string `json:"walletAddress,omitempty"`
	Registered    bool    `json:"registered"`
	Verified      bool    `json:"verified"`
	Active        bool    `json:"active"`
	Invited       bool    `json:"invited"`
}

type authResponse struct {
	AccessToken string       `json:"accessToken"`
	User        userResponse `json:"user"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:            user.ID,
		Email:         user.Email,
		FirstName:     user.FirstName,
		LastName:      user.LastName,
		Role:          string(user.Role),
		WalletAddress: user.WalletAddress,
		Registered:    user.Registered,
		Verified:      user.Verified,
		Active:        user.Active,
		Invited:       user.Invited(),
	}
}

// SelfRegister creates an immediately-registered account. The default
// role is voter; self-registered voters still need admin approval before
// they can participate in sessions.
func (h HandlerSet) SelfRegister(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	role := models.UserRole(req.Role)
	if role == "" {
		role = models.UserRoleVoter
	}

	var wallet *string
	if req.WalletAddress != "" {
		wallet = &req.WalletAddress
	}

	user, err := h.identity.Create(c.Request.Context(), service.CreateUserInput{
		Email:         req.Email,
		Password:      req.Password,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
		Role:          role,
		WalletAddress: wallet,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	result, err := h.identity.AuthenticateByCredential(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse{
		AccessToken: result.AccessToken,
		User:        toUserResponse(user),
	})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.identity.AuthenticateByCredential(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{
		AccessToken: result.AccessToken,
		User:        toUserResponse(result.User),
	})
}

// VoterLogin is the voter-facing credential login. Same core operation
// as Login; kept as a separate route for the voter frontend.
func (h HandlerSet) VoterLogin(c *gin.Context) {
	h.Login(c)
}

type walletLoginRequest struct {
	WalletAddress string `json:"walletAddress" binding:"required"`
}

func (h HandlerSet) WalletLogin(c *gin.Context) {
	var req walletLoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.identity.AuthenticateByWallet(c.Request.Context(), req.WalletAddress)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{
		AccessToken: result.AccessToken,
		User:        toUserResponse(result.User),
	})
}

// VerifyRegistrationToken lets the registration form preview who an
// invitation belongs to without consuming it.
func (h HandlerSet) VerifyRegistrationToken(c *gin.Context) {
	user, err := h.registration.VerifyToken(c.Request.Context(), c.Param("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"email":     user.Email,
		"firstName": user.FirstName,
		"lastName":  user.LastName,
	})
}

type completeRegistrationRequest struct {
	Token         string `json:"token" binding:"required"`
	Password      string `json:"password" binding:"required,min=6"`
	WalletAddress string `json:"walletAddress" binding:"required"`
	FirstName     string `json:"firstName"`
	LastName      string `json:"lastName"`
}

func (h HandlerSet) CompleteRegistration(c *gin.Context) {
	var req completeRegistrationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	voterID, err := h.registration.Redeem(c.Request.Context(), service.RedeemInput{
		Token:         req.Token,
		Password:      req.Password,
		WalletAddress: req.WalletAddress,
		FirstName:     req.FirstName,
		LastName:      req.LastName,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "registration completed successfully",
		"voterId": voterID,
	})
}

// Logout exists for client symmetry. Access tokens are stateless, so
// the server has nothing to revoke; the client discards the token.
func (h HandlerSet) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "logged out"})
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

type updateProfileRequest struct {
	FirstName       *string `json:"firstName"`
	LastName        *string `json:"lastName"`
	CurrentPassword string  `json:"currentPassword"`
	NewPassword     string  `json:"newPassword"`
}

func (h HandlerSet) UpdateProfile(c *gin.Context) {
	user, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.identity.UpdateProfile(c.Request.Context(), user.ID, service.UpdateProfileInput{
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		CurrentPassword: req.CurrentPassword,
		NewPassword:     req.NewPassword,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "profile updated successfully"})
}

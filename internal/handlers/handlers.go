package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"civicvote/api/internal/apperr"
	"civicvote/api/internal/config"
	"civicvote/api/internal/middleware"
	"civicvote/api/internal/models"
	"civicvote/api/internal/repository"
	"civicvote/api/internal/service"
	"civicvote/api/internal/storage"
)

type HandlerSet struct {
	log          zerolog.Logger
	cfg          *config.AppConfig
	db           *pgxpool.Pool
	cache        *redis.Client
	archive      *storage.ImportArchive
	users        *repository.UserRepository
	identity     *service.IdentityService
	registration *service.RegistrationService
	memberships  *service.MembershipService
	enrollment   *service.EnrollmentService
	elections    *service.ElectionService
}

func NewHandlerSet(
	log zerolog.Logger,
	db *pgxpool.Pool,
	cache *redis.Client,
	archive *storage.ImportArchive,
	mailer service.InvitationMailer,
	cfg *config.AppConfig,
) HandlerSet {
	userRepo := repository.NewUserRepository(db)
	electionRepo := repository.NewElectionRepository(db)
	membershipRepo := repository.NewMembershipRepository(db)
	candidateRepo := repository.NewCandidateRepository(db)

	identity := service.NewIdentityService(userRepo, cfg, log)
	registration := service.NewRegistrationService(userRepo, mailer, cfg, log)
	memberships := service.NewMembershipService(membershipRepo, electionRepo, userRepo, log)
	enrollment := service.NewEnrollmentService(userRepo, membershipRepo, electionRepo, registration, cfg, log)
	elections := service.NewElectionService(electionRepo, candidateRepo, membershipRepo, log)

	return HandlerSet{
		log:          log,
		cfg:          cfg,
		db:           db,
		cache:        cache,
		archive:      archive,
		users:        userRepo,
		identity:     identity,
		registration: registration,
		memberships:  memberships,
		enrollment:   enrollment,
		elections:    elections,
	}
}

func (h HandlerSet) Register(router *gin.RouterGroup) {
	router.GET("/healthz", h.Health)

	v1 := router.Group("/v1")
	{
		auth := v1.Group("/auth")
		limited := auth.Group("")
		limited.Use(middleware.LoginRateLimit(h.cfg, h.cache))
		limited.POST("/register", h.SelfRegister)
		limited.POST("/login", h.Login)
		limited.POST("/voter/login", h.VoterLogin)
		limited.POST("/voter/wallet-login", h.WalletLogin)

		auth.GET("/voter/verify-token/:token", h.VerifyRegistrationToken)
		auth.POST("/voter/complete-registration", h.CompleteRegistration)

		protected := auth.Group("")
		protected.Use(middleware.Auth(h.cfg, h.users))
		protected.GET("/me", h.Me)
		protected.PUT("/profile", h.UpdateProfile)
		protected.POST("/logout", h.Logout)
	}

	admin := v1.Group("/sessions")
	admin.Use(
		middleware.Auth(h.cfg, h.users),
		middleware.RequireRoles(models.UserRoleAdmin),
	)
	admin.POST("", h.CreateSession)
	admin.GET("", h.ListSessions)
	admin.GET("/:sessionId", h.SessionDetails)
	admin.PUT("/:sessionId", h.UpdateSession)
	admin.POST("/:sessionId/voters/upload", h.UploadVoters)
	admin.POST("/:sessionId/voters", h.BulkEnroll)
	admin.GET("/:sessionId/voters", h.ListSessionVoters)
	admin.DELETE("/:sessionId/voters", h.RemoveVoters)
	admin.POST("/:sessionId/candidates", h.AddCandidate)
	admin.GET("/:sessionId/candidates", h.ListCandidates)
	admin.DELETE("/:sessionId/candidates/:candidateId", h.RemoveCandidate)

	voters := v1.Group("/voters")
	voters.Use(
		middleware.Auth(h.cfg, h.users),
		middleware.RequireRoles(models.UserRoleAdmin),
	)
	voters.GET("", h.ListVoters)
	voters.POST("/approve", h.ApproveVoters)
	voters.PATCH("/:voterId/status", h.ToggleVoterStatus)
	voters.POST("/:voterId/invite", h.ReissueInvitation)

	voting := v1.Group("/voting")
	voting.Use(
		middleware.Auth(h.cfg, h.users),
		middleware.RequireRoles(models.UserRoleVoter),
	)
	voting.GET("/sessions/:sessionId/eligibility", h.Eligibility)
	voting.POST("/sessions/:sessionId/ballot", h.CastBallot)
}

// respondError is the single mapping from the error taxonomy to transport
// status codes. Internal failures surface as a generic message only.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	kind := apperr.KindOf(err)

	var status int
	switch kind {
	case apperr.KindInvalid, apperr.KindInvalidToken, apperr.KindExpiredToken:
		status = http.StatusBadRequest
	case apperr.KindNotFound:
		status = http.StatusNotFound
	case apperr.KindConflict, apperr.KindAlreadyVoted:
		status = http.StatusConflict
	case apperr.KindUnauthorized:
		status = http.StatusUnauthorized
	case apperr.KindForbidden, apperr.KindNotEnrolled:
		status = http.StatusForbidden
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("internal error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
		return
	}

	var appErr *apperr.Error
	msg := "request failed"
	if errors.As(err, &appErr) {
		msg = appErr.Msg
	}
	c.JSON(status, gin.H{"error": msg})
}

func currentUser(c *gin.Context) (models.User, bool) {
	userVal, exists := c.Get("current_user")
	if !exists {
		return models.User{}, false
	}
	user, ok := userVal.(models.User)
	return user, ok
}


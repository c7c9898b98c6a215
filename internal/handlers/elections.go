package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"civicvote/api/internal/models"
	"civicvote/api/internal/service"
)

type createSessionRequest struct {
	Title       string     `json:"title" binding:"required"`
	Description string     `json:"description"`
	StartDate   *time.Time `json:"startDate"`
	EndDate     time.Time  `json:"endDate" binding:"required"`
}

type sessionResponse struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	AdminID     string    `json:"adminId"`
	StartTime   time.Time `json:"startTime"`
	EndTime     time.Time `json:"endTime"`
	Active      bool      `json:"active"`
	CreatedAt   time.Time `json:"createdAt"`
}

func toSessionResponse(s models.VotingSession) sessionResponse {
	return sessionResponse{
		ID:          s.ID,
		Title:       s.Title,
		Description: s.Description,
		AdminID:     s.AdminID,
		StartTime:   s.StartTime,
		EndTime:     s.EndTime,
		Active:      s.Active,
		CreatedAt:   s.CreatedAt,
	}
}

func (h HandlerSet) CreateSession(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req createSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	session, err := h.elections.CreateSession(c.Request.Context(), admin.ID, service.CreateSessionInput{
		Title:       req.Title,
		Description: req.Description,
		StartTime:   req.StartDate,
		EndTime:     req.EndDate,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"session": toSessionResponse(session)})
}

func (h HandlerSet) ListSessions(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	limit, offset, page := pageParams(c, 10)
	status := models.SessionStatusFilter(c.DefaultQuery("status", "all"))

	sessions, total, err := h.elections.ListSessions(c.Request.Context(), admin.ID, status, limit, offset)
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]gin.H, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, gin.H{
			"session":    toSessionResponse(s.VotingSession),
			"voterCount": s.VoterCount,
			"votesCast":  s.VotesCast,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"sessions": items,
		"pagination": gin.H{
			"currentPage": page,
			"perPage":     limit,
			"total":       total,
		},
	})
}

// SessionDetails returns the session with its enrolled voters and
// candidates, the admin console's working view.
func (h HandlerSet) SessionDetails(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	session, err := h.elections.GetOwnedSession(c.Request.Context(), admin.ID, c.Param("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	voters, _, err := h.memberships.ListForSession(c.Request.Context(), session.ID, models.MembershipFilter{Limit: 200})
	if err != nil {
		h.respondError(c, err)
		return
	}

	candidates, err := h.elections.ListCandidates(c.Request.Context(), session.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	voterItems := make([]gin.H, 0, len(voters))
	for _, v := range voters {
		status := "pending"
		if v.Verified {
			status = "approved"
		}
		voterItems = append(voterItems, gin.H{
			"id":       v.VoterID,
			"name":     v.FirstName + " " + v.LastName,
			"email":    v.Email,
			"status":   status,
			"hasVoted": v.HasVoted,
			"votedAt":  v.VotedAt,
			"joinedAt": v.JoinedAt,
			"verified": v.Verified,
			"active":   v.Active,
		})
	}

	candidateItems := make([]gin.H, 0, len(candidates))
	for _, cand := range candidates {
		candidateItems = append(candidateItems, gin.H{
			"id":          cand.ID,
			"name":        cand.Name,
			"description": cand.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"session":    toSessionResponse(session),
		"voters":     voterItems,
		"candidates": candidateItems,
	})
}

type updateSessionRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	EndDate     *time.Time `json:"endDate"`
	Active      *bool      `json:"active"`
}

func (h HandlerSet) UpdateSession(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	err := h.elections.UpdateSession(c.Request.Context(), admin.ID, c.Param("sessionId"), models.SessionPatch{
		Title:       req.Title,
		Description: req.Description,
		EndTime:     req.EndDate,
		Active:      req.Active,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "session updated successfully"})
}

type addCandidateRequest struct {
	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
}

func (h HandlerSet) AddCandidate(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req addCandidateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	candidate, err := h.elections.AddCandidate(c.Request.Context(), admin.ID, c.Param("sessionId"), req.Name, req.Description)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"candidate": gin.H{
		"id":          candidate.ID,
		"name":        candidate.Name,
		"description": candidate.Description,
	}})
}

func (h HandlerSet) ListCandidates(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if _, err := h.elections.GetOwnedSession(c.Request.Context(), admin.ID, c.Param("sessionId")); err != nil {
		h.respondError(c, err)
		return
	}

	candidates, err := h.elections.ListCandidates(c.Request.Context(), c.Param("sessionId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]gin.H, 0, len(candidates))
	for _, cand := range candidates {
		items = append(items, gin.H{
			"id":          cand.ID,
			"name":        cand.Name,
			"description": cand.Description,
		})
	}

	c.JSON(http.StatusOK, gin.H{"candidates": items})
}

func (h HandlerSet) RemoveCandidate(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	err := h.elections.RemoveCandidate(c.Request.Context(), admin.ID, c.Param("sessionId"), c.Param("candidateId"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"civicvote/api/internal/models"
)

func pageParams(c *gin.Context, defaultLimit int) (limit, offset, page int) {
	limit = defaultLimit
	page = 1

	if perPage := c.Query("perPage"); perPage != "" {
		if v, err := strconv.Atoi(perPage); err == nil && v > 0 && v <= 200 {
			limit = v
		}
	}
	if p := c.Query("page"); p != "" {
		if v, err := strconv.Atoi(p); err == nil && v > 1 {
			page = v
			offset = (v - 1) * limit
		}
	}
	return limit, offset, page
}

// statusFilter translates the combined status query parameter used by the
// admin UI into verified/active filters.
func statusFilter(status string) (verified, active *bool) {
	t, f := true, false
	switch status {
	case "verified":
		verified = &t
	case "unverified":
		verified = &f
	case "active":
		active = &t
	case "inactive":
		active = &f
	}
	return verified, active
}

type voterSummaryResponse struct {
	ID            string  `json:"id"`
	Email         string  `json:"email"`
	FirstName     string  `json:"firstName"`
	LastName      string  `json:"lastName"`
	WalletAddress *string `json:"walletAddress,omitempty"`
	Registered    bool    `json:"registered"`
	Verified      bool    `json:"verified"`
	Active        bool    `json:"active"`
	SessionCount  int     `json:"sessionsCount"`
	VotesCast     int     `json:"votesCast"`
}

func (h HandlerSet) ListVoters(c *gin.Context) {
	limit, offset, page := pageParams(c, 10)
	verified, active := statusFilter(c.Query("status"))

	voters, total, err := h.identity.ListVoters(c.Request.Context(), models.VoterFilter{
		Search:   c.Query("search"),
		Verified: verified,
		Active:   active,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]voterSummaryResponse, 0, len(voters))
	for _, v := range voters {
		items = append(items, voterSummaryResponse{
			ID:            v.ID,
			Email:         v.Email,
			FirstName:     v.FirstName,
			LastName:      v.LastName,
			WalletAddress: v.WalletAddress,
			Registered:    v.Registered,
			Verified:      v.Verified,
			Active:        v.Active,
			SessionCount:  v.SessionCount,
			VotesCast:     v.VotesCast,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"voters": items,
		"pagination": gin.H{
			"currentPage": page,
			"perPage":     limit,
			"total":       total,
		},
	})
}

type approveVotersRequest struct {
	VoterIDs []string `json:"voterIds" binding:"required,min=1"`
	Action   string   `json:"action"`
}

// ApproveVoters bulk-toggles the verified flag. action defaults to
// "approve"; anything else unapproves.
func (h HandlerSet) ApproveVoters(c *gin.Context) {
	var req approveVotersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "voter ids array is required"})
		return
	}

	verified := req.Action == "" || req.Action == "approve"

	affected, err := h.identity.SetVerified(c.Request.Context(), req.VoterIDs, verified)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"affected": affected})
}

type toggleStatusRequest struct {
	Active *bool `json:"active" binding:"required"`
}

func (h HandlerSet) ToggleVoterStatus(c *gin.Context) {
	var req toggleStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "active flag is required"})
		return
	}

	if err := h.identity.SetActive(c.Request.Context(), c.Param("voterId"), *req.Active); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "voter status updated"})
}

// ReissueInvitation generates a fresh registration token for an
// unregistered voter, discarding the previous one.
func (h HandlerSet) ReissueInvitation(c *gin.Context) {
	if _, err := h.registration.IssueInvitation(c.Request.Context(), c.Param("voterId")); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "invitation sent"})
}

package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Eligibility reports whether the caller may vote in the session right
// now. Ineligibility is a normal 200 answer, not an error.
func (h HandlerSet) Eligibility(c *gin.Context) {
	voter, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	elig, err := h.memberships.EligibilityCheck(c.Request.Context(), c.Param("sessionId"), voter.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := gin.H{"eligible": elig.Eligible}
	if !elig.Eligible {
		resp["reason"] = elig.Reason
	}
	c.JSON(http.StatusOK, resp)
}

// CastBallot records that the caller has voted. The vote content itself
// lives on-chain; this endpoint only flips the write-once participation
// flag after the eligibility gate passes.
func (h HandlerSet) CastBallot(c *gin.Context) {
	voter, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	if err := h.memberships.CastBallot(c.Request.Context(), c.Param("sessionId"), voter.ID); err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "vote recorded"})
}

package handlers

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"civicvote/api/internal/apperr"
	"civicvote/api/internal/models"
	"civicvote/api/internal/service"
)

// maxImportSize caps voter list uploads at 5 MiB.
const maxImportSize = 5 << 20

// UploadVoters accepts a CSV voter list, archives the raw file, and
// reconciles the rows into the session. A validation failure anywhere in
// the file rejects the whole batch with the per-row errors.
func (h HandlerSet) UploadVoters(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.Param("sessionId")
	if _, err := h.elections.GetOwnedSession(c.Request.Context(), admin.ID, sessionID); err != nil {
		h.respondError(c, err)
		return
	}

	fileHeader, err := c.FormFile("votersFile")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "voters file is required"})
		return
	}
	if fileHeader.Size > maxImportSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds the 5MB limit"})
		return
	}
	if !strings.HasSuffix(strings.ToLower(fileHeader.Filename), ".csv") {
		c.JSON(http.StatusBadRequest, gin.H{"error": "only CSV files are accepted"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindInternal, "open upload", err))
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(io.LimitReader(file, maxImportSize+1))
	if err != nil {
		h.respondError(c, apperr.Wrap(apperr.KindInternal, "read upload", err))
		return
	}
	if len(raw) > maxImportSize {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file exceeds the 5MB limit"})
		return
	}

	records, err := parseVoterCSV(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if h.archive != nil {
		// Fire-and-forget; the request must not wait on object storage.
		go func(data []byte, name string) {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			if _, err := h.archive.Store(ctx, sessionID, name, data); err != nil {
				h.log.Warn().Err(err).Str("session_id", sessionID).Msg("failed to archive voter import")
			}
		}(raw, fileHeader.Filename)
	}

	report, err := h.enrollment.Reconcile(c.Request.Context(), sessionID, records)
	if err != nil {
		if apperr.KindOf(err) == apperr.KindInvalid && len(report.Errors) > 0 {
			c.JSON(http.StatusBadRequest, gin.H{
				"error":  "voter list validation failed",
				"errors": report.Errors,
			})
			return
		}
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "voter list processed",
		"processed": report.Processed,
		"added":     report.Added,
		"existing":  report.Existing,
		"errors":    report.Errors,
	})
}

// parseVoterCSV reads a header row naming email, first_name, last_name
// and optionally wallet_address, in any column order.
func parseVoterCSV(raw []byte) ([]service.VoterRecord, error) {
	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, errors.New("file is empty or not a valid CSV")
	}

	columns := make(map[string]int, len(header))
	for i, name := range header {
		columns[strings.ToLower(strings.TrimSpace(name))] = i
	}
	for _, required := range []string{"email", "first_name", "last_name"} {
		if _, ok := columns[required]; !ok {
			return nil, errors.New("CSV header must include email, first_name and last_name columns")
		}
	}

	field := func(row []string, name string) string {
		idx, ok := columns[name]
		if !ok || idx >= len(row) {
			return ""
		}
		return row[idx]
	}

	var records []service.VoterRecord
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.New("file is not a valid CSV")
		}
		records = append(records, service.VoterRecord{
			Email:         field(row, "email"),
			FirstName:     field(row, "first_name"),
			LastName:      field(row, "last_name"),
			WalletAddress: field(row, "wallet_address"),
		})
	}
	return records, nil
}

type bulkEnrollRequest struct {
	VoterIDs []string `json:"voterIds" binding:"required,min=1"`
}

// BulkEnroll adds already-known voters to the session by id.
func (h HandlerSet) BulkEnroll(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.Param("sessionId")
	if _, err := h.elections.GetOwnedSession(c.Request.Context(), admin.ID, sessionID); err != nil {
		h.respondError(c, err)
		return
	}

	var req bulkEnrollRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "voter ids array is required"})
		return
	}

	result, err := h.memberships.BulkEnroll(c.Request.Context(), sessionID, req.VoterIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"added":           result.Added,
		"alreadyEnrolled": result.AlreadyEnrolled,
		"errors":          result.Errors,
	})
}

func (h HandlerSet) ListSessionVoters(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.Param("sessionId")
	if _, err := h.elections.GetOwnedSession(c.Request.Context(), admin.ID, sessionID); err != nil {
		h.respondError(c, err)
		return
	}

	limit, offset, page := pageParams(c, 10)
	verified, _ := statusFilter(c.Query("status"))

	var voted *bool
	switch c.Query("voted") {
	case "true":
		t := true
		voted = &t
	case "false":
		f := false
		voted = &f
	}

	views, total, err := h.memberships.ListForSession(c.Request.Context(), sessionID, models.MembershipFilter{
		Search:   c.Query("search"),
		Verified: verified,
		Voted:    voted,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	items := make([]gin.H, 0, len(views))
	for _, v := range views {
		items = append(items, gin.H{
			"id":        v.VoterID,
			"email":     v.Email,
			"firstName": v.FirstName,
			"lastName":  v.LastName,
			"verified":  v.Verified,
			"active":    v.Active,
			"hasVoted":  v.HasVoted,
			"votedAt":   v.VotedAt,
			"joinedAt":  v.JoinedAt,
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

type removeVotersRequest struct {
	VoterIDs []string `json:"voterIds" binding:"required,min=1"`
}

func (h HandlerSet) RemoveVoters(c *gin.Context) {
	admin, ok := currentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	sessionID := c.Param("sessionId")
	if _, err := h.elections.GetOwnedSession(c.Request.Context(), admin.ID, sessionID); err != nil {
		h.respondError(c, err)
		return
	}

	var req removeVotersRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "voter ids array is required"})
		return
	}

	removed, err := h.memberships.Remove(c.Request.Context(), sessionID, req.VoterIDs)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/forum/backend/internal/voting"
)

type VoteHandler struct {
	votes VoteApplier
}

func NewVoteHandler(votes VoteApplier) *VoteHandler {
	return &VoteHandler{votes: votes}
}

// VotePost handles POST /posts/:id/vote (PROTECTED - requires authentication)
func (h *VoteHandler) VotePost(c *gin.Context) {
	h.vote(c, voting.KindPost)
}

// VoteComment handles POST /comments/:id/vote (PROTECTED - requires authentication)
func (h *VoteHandler) VoteComment(c *gin.Context) {
	h.vote(c, voting.KindComment)
}

func (h *VoteHandler) vote(c *gin.Context, kind voting.Kind) {
	userID, ok := extractUserID(c)
	if !ok {
		respondError(c, voting.ErrUnauthenticated)
		return
	}

	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		respondError(c, voting.ErrTargetNotFound)
		return
	}

	value, err := voting.ParseValue(readVoteField(c))
	if err != nil {
		respondError(c, err)
		return
	}

	res, err := h.votes.ApplyVote(c.Request.Context(), userID, voting.NewTarget(kind, id), int(value))
	if err != nil {
		respondError(c, err)
		return
	}

	switch c.NegotiateFormat(gin.MIMEHTML, gin.MIMEJSON) {
	case gin.MIMEJSON:
		c.JSON(http.StatusOK, gin.H{
			"id":          id,
			"target_type": kind.String(),
			"score":       res.Score,
			"value":       int(res.Value),
			"outcome":     res.Outcome,
		})
	default:
		fragment := fmt.Sprintf(`<span id="%s-score-%d">%d</span>`, kind, id, res.Score)
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(fragment))
	}
}

// readVoteField returns the raw "v" field from a form or JSON body.
func readVoteField(c *gin.Context) string {
	if c.ContentType() != gin.MIMEJSON {
		return c.PostForm("v")
	}

	var body struct {
		V json.RawMessage `json:"v"`
	}
	if err := c.ShouldBindJSON(&body); err != nil || len(body.V) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(body.V, &s); err == nil {
		return s
	}
	return strings.TrimSpace(string(body.V))
}

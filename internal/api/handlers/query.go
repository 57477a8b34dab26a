package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photostack/internal/errs"
	"github.com/your-org/photostack/internal/search"
	"github.com/your-org/photostack/pkg/dto"
)

type QueryHandler struct {
	answerer *search.Answerer
}

func NewQueryHandler(answerer *search.Answerer) *QueryHandler {
	return &QueryHandler{answerer: answerer}
}

// Ask answers a natural-language question grounded on the most similar
// stored images. When synthesis fails after successful retrieval, the matches
// still come back so the caller can inspect what was found.
func (h *QueryHandler) Ask(c *gin.Context) {
	var req dto.QARequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	res, err := h.answerer.Answer(c.Request.Context(), req.Question, req.Filter, req.TopK)
	if err != nil {
		if errs.IsSynthesis(err) && res != nil {
			c.JSON(http.StatusBadGateway, gin.H{
				"error":   err.Error(),
				"matches": res.Matches,
			})
			return
		}
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.QAResponse{
		Answer:  res.Answer,
		Matches: res.Matches,
		Raw:     res.Raw,
	})
}

package handlers

import (
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/photostack/internal/search"
	"github.com/your-org/photostack/pkg/dto"
)

type SearchHandler struct {
	svc *search.Service
}

func NewSearchHandler(svc *search.Service) *SearchHandler {
	return &SearchHandler{svc: svc}
}

// Text ranks stored images against a natural-language query with an optional
// structured filter.
func (h *SearchHandler) Text(c *gin.Context) {
	var req dto.TextSearchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	matches, err := h.svc.SearchText(c.Request.Context(), req.Query, req.Filter, req.TopK)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SearchResponse{Matches: matches, Total: len(matches)})
}

// Image ranks stored images by visual similarity to an uploaded example.
func (h *SearchHandler) Image(c *gin.Context) {
	file, _, err := c.Request.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file required"})
		return
	}
	defer file.Close()

	raw, err := io.ReadAll(file)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "read image failed"})
		return
	}

	var topK *int
	if v := c.PostForm("top_k"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid top_k"})
			return
		}
		topK = &n
	}

	matches, err := h.svc.SearchImage(c.Request.Context(), raw, topK)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.SearchResponse{Matches: matches, Total: len(matches)})
}

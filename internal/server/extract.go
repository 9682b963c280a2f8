package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/extract"
)

type extractRequest struct {
	Lines []string `json:"lines"`
	Text  string   `json:"text"`
}

// extract runs the engine over lines or raw text without storing anything.
func (h *handler) extract(c *gin.Context) {
	var req extractRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.fail(c, badRequest("body must be JSON with lines or text"))
		return
	}

	var lines []extract.TextLine
	switch {
	case req.Lines != nil:
		lines = extract.LinesFromStrings(req.Lines)
	case req.Text != "":
		lines = extract.LinesFromText(req.Text)
	default:
		h.fail(c, badRequest("lines or text is required"))
		return
	}

	rec, err := h.Processor.ProcessLines(c.Request.Context(), lines)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

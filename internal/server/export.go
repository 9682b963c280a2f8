package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/snehaa-shrestha/Receipt-Analyzer/internal/utils"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (h *handler) exportXLSX(c *gin.Context) {
	from, err := utils.ParseOptionalYMD(c.Query("from"))
	if err != nil {
		h.fail(c, badRequest("from must be YYYY-MM-DD"))
		return
	}
	to, err := utils.ParseOptionalYMD(c.Query("to"))
	if err != nil {
		h.fail(c, badRequest("to must be YYYY-MM-DD"))
		return
	}

	xlsx, err := h.Export.ExportRecordsXLSX(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="receipts.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, xlsx)
}

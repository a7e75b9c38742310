package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/slotswap-availability/internal/models"
	"github.com/noah-isme/slotswap-availability/internal/service"
	"github.com/noah-isme/slotswap-availability/pkg/response"
)

type reportService interface {
	Generate(ctx context.Context, subject models.Subject, from, to, format string) (*service.ReportFile, error)
}

// ReportHandler serves downloadable availability reports.
type ReportHandler struct {
	service reportService
}

// NewReportHandler builds a new handler.
func NewReportHandler(service reportService) *ReportHandler {
	return &ReportHandler{service: service}
}

// Download godoc
// @Summary Download an availability report
// @Tags Availability
// @Produce text/csv
// @Produce application/pdf
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Router /availability/report [get]
func (h *ReportHandler) Download(c *gin.Context) {
	file, err := h.service.Generate(c.Request.Context(), subjectFromContext(c), c.Query("from"), c.Query("to"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Attachment(c, file.Filename, file.ContentType, file.Body)
}

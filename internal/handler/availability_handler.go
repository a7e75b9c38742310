package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/slotswap-availability/internal/dto"
	"github.com/noah-isme/slotswap-availability/internal/middleware"
	"github.com/noah-isme/slotswap-availability/internal/models"
	appErrors "github.com/noah-isme/slotswap-availability/pkg/errors"
	"github.com/noah-isme/slotswap-availability/pkg/response"
)

type availabilityService interface {
	BlockedDays(ctx context.Context, subject models.Subject, from, to string) (*dto.BlockedDaysResponse, bool, error)
	FreeWindow(ctx context.Context, subject models.Subject, start string) (*dto.FreeWindowResponse, bool, error)
	Validate(ctx context.Context, subject models.Subject, req dto.ValidateProposalRequest) (*dto.ProposalPlan, error)
	DaySummaries(ctx context.Context, subject models.Subject, from, to string) ([]dto.DaySummary, bool, error)
	Invalidate(ctx context.Context, userIDs ...string) error
	Policy() dto.PolicyResponse
}

type streamWatcher interface {
	Ensure(subject models.Subject)
}

// AvailabilityHandler exposes the caller's availability.
type AvailabilityHandler struct {
	service availabilityService
	streams streamWatcher
}

// NewAvailabilityHandler builds a new handler. streams may be nil when
// real-time notifications are disabled.
func NewAvailabilityHandler(service availabilityService, streams streamWatcher) *AvailabilityHandler {
	return &AvailabilityHandler{service: service, streams: streams}
}

// BlockedDays godoc
// @Summary List fully blocked days
// @Tags Availability
// @Produce json
// @Param from query string false "First day (YYYY-MM-DD, defaults to today)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /availability/blocked-days [get]
func (h *AvailabilityHandler) BlockedDays(c *gin.Context) {
	subject := h.subject(c)
	resp, cached, err := h.service.BlockedDays(c.Request.Context(), subject, c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, resp, middleware.ExtractMeta(c))
}

// Window godoc
// @Summary Find the free window at or after a start time
// @Tags Availability
// @Produce json
// @Param start query string true "RFC3339 or local YYYY-MM-DDTHH:MM"
// @Success 200 {object} response.Envelope
// @Router /availability/window [get]
func (h *AvailabilityHandler) Window(c *gin.Context) {
	subject := h.subject(c)
	resp, cached, err := h.service.FreeWindow(c.Request.Context(), subject, c.Query("start"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, resp, middleware.ExtractMeta(c))
}

// Validate godoc
// @Summary Validate a proposed slot
// @Description Rejections are reported in the plan with HTTP 200.
// @Tags Availability
// @Accept json
// @Produce json
// @Param payload body dto.ValidateProposalRequest true "Proposal"
// @Success 200 {object} response.Envelope
// @Router /availability/validate [post]
func (h *AvailabilityHandler) Validate(c *gin.Context) {
	subject := h.subject(c)
	var req dto.ValidateProposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid proposal payload"))
		return
	}
	plan, err := h.service.Validate(c.Request.Context(), subject, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, plan, nil)
}

// Summary godoc
// @Summary Per-day free and busy time
// @Tags Availability
// @Produce json
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /availability/summary [get]
func (h *AvailabilityHandler) Summary(c *gin.Context) {
	subject := h.subject(c)
	days, cached, err := h.service.DaySummaries(c.Request.Context(), subject, c.Query("from"), c.Query("to"))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cached)
	response.JSON(c, http.StatusOK, days, middleware.ExtractMeta(c))
}

// Policy godoc
// @Summary Scheduling policy
// @Tags Availability
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /availability/policy [get]
func (h *AvailabilityHandler) Policy(c *gin.Context) {
	response.OK(c, h.service.Policy())
}

// Invalidate godoc
// @Summary Drop the caller's cached ranges
// @Tags Availability
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /availability/invalidate [post]
func (h *AvailabilityHandler) Invalidate(c *gin.Context) {
	subject := subjectFromContext(c)
	if subject.UserID == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	if err := h.service.Invalidate(c.Request.Context(), subject.UserID); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, dto.InvalidateResponse{UserIDs: []string{subject.UserID}})
}

// subject resolves the caller and makes sure their notification stream is open.
func (h *AvailabilityHandler) subject(c *gin.Context) models.Subject {
	subject := subjectFromContext(c)
	if h.streams != nil && subject.UserID != "" {
		h.streams.Ensure(subject)
	}
	return subject
}

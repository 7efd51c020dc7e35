package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	_ "github.com/zapcampaign/zapcampaign/docs"
	"github.com/zapcampaign/zapcampaign/internal/domain"
	"github.com/zapcampaign/zapcampaign/internal/service"
)

type Handler struct {
	campaigns service.CampaignService
	server    *http.Server
}

type submitRequest struct {
	OwnerID     string   `json:"owner_id"`
	Recipients  string   `json:"recipients"`
	ContactIDs  []string `json:"contact_ids"`
	GroupIDs    []string `json:"group_ids"`
	Content     string   `json:"content" binding:"required"`
	ScheduledAt string   `json:"scheduled_at"`
}

type submitResponse struct {
	MessageID string `json:"message_id"`
	JobID     string `json:"job_id"`
	Scheduled bool   `json:"scheduled"`
	Targets   int    `json:"targets"`
	Dropped   int    `json:"dropped"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// @title Zap Campaign Dispatch API
// @version 1.0
// @description Campaign message scheduling and bulk-delivery service
// @host localhost:8080
// @BasePath /
func NewHttpHandler(addr string, svc service.CampaignService) *Handler {
	h := &Handler{
		campaigns: svc,
	}

	// create router
	router := gin.Default()

	// register routes
	router.POST("/messages", h.submitSend)
	router.DELETE("/scheduled/:jobId", h.cancelScheduled)
	router.GET("/messages", h.messageReport)
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// create http server
	h.server = &http.Server{
		Addr:    addr,
		Handler: router.Handler(),
	}

	return h
}

func (h *Handler) Run() error {
	return h.server.ListenAndServe()
}

func (h *Handler) Shutdown(ctx context.Context) error {
	return h.server.Shutdown(ctx)
}

// SubmitSend godoc
// @Summary Submit a campaign send
// @Description Accepts a message with recipients (raw phone list, contact ids or group ids) for immediate or scheduled delivery
// @Tags Messages
// @Accept json
// @Produce json
// @Param request body submitRequest true "send request"
// @Success 202 {object} submitResponse
// @Failure 400 {object} errorResponse
// @Router /messages [post]
func (h *Handler) submitSend(c *gin.Context) {
	var req submitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	input := service.SubmitInput{
		OwnerID:       req.OwnerID,
		RawRecipients: req.Recipients,
		ContactIDs:    req.ContactIDs,
		GroupIDs:      req.GroupIDs,
		Content:       req.Content,
	}
	if req.ScheduledAt != "" {
		scheduledAt, err := time.Parse(time.RFC3339, req.ScheduledAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse{Error: "scheduled_at must be RFC3339"})
			return
		}
		input.ScheduledAt = &scheduledAt
	}

	receipt, err := h.campaigns.SubmitSend(c.Request.Context(), input)
	if err != nil {
		c.JSON(statusForError(err), errorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusAccepted, submitResponse{
		MessageID: receipt.MessageID,
		JobID:     receipt.JobID,
		Scheduled: receipt.Scheduled,
		Targets:   receipt.Targets,
		Dropped:   receipt.Dropped,
	})
}

// CancelScheduled godoc
// @Summary Cancel a scheduled send
// @Description Cancels a pending scheduled job before it fires
// @Tags Messages
// @Produce json
// @Param jobId path string true "job id"
// @Success 200 {object} map[string]bool
// @Failure 404 {object} errorResponse
// @Router /scheduled/{jobId} [delete]
func (h *Handler) cancelScheduled(c *gin.Context) {
	jobID := c.Param("jobId")
	if !h.campaigns.CancelScheduled(c.Request.Context(), jobID) {
		c.JSON(http.StatusNotFound, errorResponse{Error: "no pending scheduled job for id"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"cancelled": true})
}

// MessageReport godoc
// @Summary Get message report
// @Description Retrieves submitted messages with their per-recipient outcomes
// @Tags Messages
// @Produce json
// @Param owner_id query string false "filter by owner"
// @Success 200 {array} domain.Message
// @Router /messages [get]
func (h *Handler) messageReport(c *gin.Context) {
	msgs, err := h.campaigns.MessageReport(c.Request.Context(), c.Query("owner_id"))
	if err != nil {
		c.Status(http.StatusInternalServerError)
		return
	}
	c.JSON(http.StatusOK, msgs)
}

func statusForError(err error) int {
	var unresolved *domain.UnresolvedRecipientsError
	switch {
	case errors.Is(err, domain.ErrNoValidRecipients),
		errors.Is(err, domain.ErrScheduleInPast),
		errors.Is(err, domain.ErrEmptyContent),
		errors.Is(err, domain.ErrAmbiguousRecipientMode),
		errors.As(err, &unresolved):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

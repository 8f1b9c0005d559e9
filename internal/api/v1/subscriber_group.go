package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smsbatch/smsbatch/internal/api/dto"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/logger"
	"github.com/smsbatch/smsbatch/internal/service"
)

type SubscriberGroupHandler struct {
	service service.SubscriberService
	log     *logger.Logger
}

func NewSubscriberGroupHandler(
	service service.SubscriberService,
	log *logger.Logger,
) *SubscriberGroupHandler {
	return &SubscriberGroupHandler{
		service: service,
		log:     log,
	}
}

// @Summary Split subscribers into groups
// @Description Split the given subscribers, or every subscriber, into batches and create one TextIt group per batch.
// @Description Responds 207 with the same body when some batches failed.
// @Tags Subscriber Groups
// @Accept json
// @Produce json
// @Param request body dto.CreateSubscriberGroupsRequest true "Subscribers"
// @Success 200 {object} dto.SubscriberGroupsResponse
// @Success 207 {object} dto.SubscriberGroupsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /subscriber-groups [post]
func (h *SubscriberGroupHandler) CreateSubscriberGroups(c *gin.Context) {
	var req dto.CreateSubscriberGroupsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid request format").
			Mark(ierr.ErrValidation))
		return
	}

	if err := req.Validate(); err != nil {
		c.Error(err)
		return
	}

	var (
		resp *dto.SubscriberGroupsResponse
		err  error
	)
	if req.AllSubscribers {
		resp, err = h.service.IngestAllSubscribers(c.Request.Context(), req.ToIngestRequest())
	} else {
		resp, err = h.service.Ingest(c.Request.Context(), req.ToIngestRequest())
	}

	if err != nil {
		if ierr.IsPartialProvisioning(err) && resp != nil {
			h.log.Warnw("subscriber groups partially provisioned",
				"ingestion_id", resp.ID,
				"failed_batches", resp.FailedIndices())
			c.JSON(http.StatusMultiStatus, resp)
			return
		}
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

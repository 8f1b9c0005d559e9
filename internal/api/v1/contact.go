package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smsbatch/smsbatch/internal/api/dto"
	ierr "github.com/smsbatch/smsbatch/internal/errors"
	"github.com/smsbatch/smsbatch/internal/logger"
	"github.com/smsbatch/smsbatch/internal/service"
)

type ContactHandler struct {
	service service.ContactService
	log     *logger.Logger
}

func NewContactHandler(
	service service.ContactService,
	log *logger.Logger,
) *ContactHandler {
	return &ContactHandler{
		service: service,
		log:     log,
	}
}

// @Summary List contacts
// @Description List one page of the contacts of a group, the all subscribers group by default
// @Tags Contacts
// @Produce json
// @Param group query string false "Group UUID"
// @Param cursor query string false "Cursor of the page to fetch"
// @Success 200 {object} dto.ListContactsResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /contacts [get]
func (h *ContactHandler) ListContacts(c *gin.Context) {
	var req dto.ListContactsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.Error(ierr.WithError(err).
			WithHint("Invalid query parameters").
			Mark(ierr.ErrValidation))
		return
	}

	resp, err := h.service.ListContacts(c.Request.Context(), &req)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Get a contact
// @Description Get a contact with a link to its TextIt page
// @Tags Contacts
// @Produce json
// @Param id path string true "Contact UUID"
// @Success 200 {object} dto.ContactResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Failure 502 {object} ierr.ErrorResponse
// @Router /contacts/{id} [get]
func (h *ContactHandler) GetContact(c *gin.Context) {
	resp, err := h.service.GetContact(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

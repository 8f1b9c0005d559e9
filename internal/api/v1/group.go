package v1

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/smsbatch/smsbatch/internal/logger"
	"github.com/smsbatch/smsbatch/internal/service"
)

type GroupHandler struct {
	service service.GroupService
	log     *logger.Logger
}

func NewGroupHandler(service service.GroupService, log *logger.Logger) *GroupHandler {
	return &GroupHandler{
		service: service,
		log:     log,
	}
}

// @Summary Get a group
// @Tags Groups
// @Produce json
// @Param id path string true "Group UUID"
// @Success 200 {object} dto.GroupResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /groups/{id} [get]
func (h *GroupHandler) GetGroup(c *gin.Context) {
	resp, err := h.service.GetGroup(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Find a group by name
// @Tags Groups
// @Produce json
// @Param name query string true "Exact group name"
// @Success 200 {object} dto.GroupResponse
// @Failure 400 {object} ierr.ErrorResponse
// @Failure 404 {object} ierr.ErrorResponse
// @Router /groups [get]
func (h *GroupHandler) GetGroupByName(c *gin.Context) {
	resp, err := h.service.GetGroupByName(c.Request.Context(), c.Query("name"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// @Summary Delete a group
// @Description Delete a group. Its contacts are kept.
// @Tags Groups
// @Param id path string true "Group UUID"
// @Success 204
// @Failure 404 {object} ierr.ErrorResponse
// @Router /groups/{id} [delete]
func (h *GroupHandler) DeleteGroup(c *gin.Context) {
	if err := h.service.DeleteGroup(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

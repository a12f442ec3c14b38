package handler

import (
	"net/http"

	"pharmacy/internal/middleware"
	"pharmacy/internal/model"
	"pharmacy/internal/repository"
	"pharmacy/internal/service"
	"pharmacy/pkg/pagination"
	"pharmacy/pkg/response"

	"github.com/gin-gonic/gin"
)

type AuditHandler struct {
	auditService service.AuditService
}

func NewAuditHandler(auditService service.AuditService) *AuditHandler {
	return &AuditHandler{auditService: auditService}
}

func (h *AuditHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	group := router.Group("/audit-logs", authn, middleware.RequireRole(model.RoleAdmin))
	{
		group.GET("", h.GetAuditLogs)
	}
}

// GetAuditLogs lists the audit trail, newest first
// @Summary      Get audit logs
// @Description  Every mutation writes one audit row inside the same transaction
// @Tags         audit
// @Security     BearerAuth
// @Produce      json
// @Param        skip       query     int     false  "Rows to skip (default 0)"
// @Param        limit      query     int     false  "Rows to return (default 100)"
// @Param        action     query     string  false  "Filter by action, e.g. STOCK_PHARMACY"
// @Param        entity_id  query     string  false  "Filter by entity id"
// @Success      200        {object}  response.Response{data=response.Page}
// @Router       /audit-logs [get]
func (h *AuditHandler) GetAuditLogs(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)
	filter := repository.AuditFilter{Action: c.Query("action"), EntityID: c.Query("entity_id")}

	logs, total, err := h.auditService.GetAuditLogs(c.Request.Context(), actor, filter, p.Skip, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, logs, total, p.Skip, p.Limit))
}

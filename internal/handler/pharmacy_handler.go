package handler

import (
	"net/http"

	"pharmacy/internal/middleware"
	"pharmacy/internal/model"
	"pharmacy/internal/service"
	"pharmacy/pkg/pagination"
	"pharmacy/pkg/response"

	"github.com/gin-gonic/gin"
)

type PharmacyHandler struct {
	pharmacyService service.PharmacyService
}

func NewPharmacyHandler(pharmacyService service.PharmacyService) *PharmacyHandler {
	return &PharmacyHandler{pharmacyService: pharmacyService}
}

func (h *PharmacyHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	group := router.Group("/pharmacies", authn)
	{
		group.GET("", h.ListPharmacies)
		group.POST("", middleware.RequireRole(model.RoleAdmin, model.RoleDirector), h.CreatePharmacy)
		group.GET("/:id", h.GetPharmacy)
		group.PUT("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleDirector), h.UpdatePharmacy)
		group.DELETE("/:id", middleware.RequireRole(model.RoleAdmin, model.RoleDirector), h.DeletePharmacy)
		group.PUT("/:id/date", middleware.RequireRole(model.RoleAdmin, model.RoleDirector), h.SetCurrentDate)
		group.PUT("/:id/director", middleware.RequireRole(model.RoleAdmin), h.ReassignDirector)
	}
}

// ListPharmacies lists the pharmacies visible to the caller
// @Summary      List pharmacies
// @Description  Directors only see the pharmacies they own
// @Tags         pharmacies
// @Security     BearerAuth
// @Produce      json
// @Param        skip   query     int  false  "Rows to skip (default 0)"
// @Param        limit  query     int  false  "Rows to return (default 100)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /pharmacies [get]
func (h *PharmacyHandler) ListPharmacies(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	pharmacies, total, err := h.pharmacyService.ListPharmacies(c.Request.Context(), actor, p.Skip, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, pharmacies, total, p.Skip, p.Limit))
}

// CreatePharmacy registers a new pharmacy
// @Summary      Create pharmacy
// @Description  A director becomes the owner; admins may assign a director
// @Tags         pharmacies
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreatePharmacyRequest  true  "Create Pharmacy Payload"
// @Success      201      {object}  response.Response{data=service.PharmacyResponse}
// @Failure      400      {object}  response.Response
// @Router       /pharmacies [post]
func (h *PharmacyHandler) CreatePharmacy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CreatePharmacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	pharmacy, err := h.pharmacyService.CreatePharmacy(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, pharmacy))
}

// GetPharmacy returns one pharmacy
// @Summary      Get pharmacy
// @Tags         pharmacies
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Pharmacy ID"
// @Success      200  {object}  response.Response{data=service.PharmacyResponse}
// @Failure      404  {object}  response.Response
// @Router       /pharmacies/{id} [get]
func (h *PharmacyHandler) GetPharmacy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	pharmacy, err := h.pharmacyService.GetPharmacy(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pharmacy))
}

// UpdatePharmacy applies a partial update
// @Summary      Update pharmacy
// @Tags         pharmacies
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Pharmacy ID"
// @Param        payload  body      service.UpdatePharmacyRequest  true  "Update Pharmacy Payload"
// @Success      200      {object}  response.Response{data=service.PharmacyResponse}
// @Failure      404      {object}  response.Response
// @Router       /pharmacies/{id} [put]
func (h *PharmacyHandler) UpdatePharmacy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdatePharmacyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	pharmacy, err := h.pharmacyService.UpdatePharmacy(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pharmacy))
}

// DeletePharmacy removes a pharmacy and its stock ledger
// @Summary      Delete pharmacy
// @Tags         pharmacies
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Pharmacy ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /pharmacies/{id} [delete]
func (h *PharmacyHandler) DeletePharmacy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.pharmacyService.DeletePharmacy(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Pharmacy deleted successfully"))
}

// SetCurrentDate moves the pharmacy's business date
// @Summary      Set pharmacy date
// @Tags         pharmacies
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                          true  "Pharmacy ID"
// @Param        payload  body      service.SetPharmacyDateRequest  true  "New date"
// @Success      200      {object}  response.Response{data=service.PharmacyResponse}
// @Failure      404      {object}  response.Response
// @Router       /pharmacies/{id}/date [put]
func (h *PharmacyHandler) SetCurrentDate(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.SetPharmacyDateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	pharmacy, err := h.pharmacyService.SetCurrentDate(c.Request.Context(), actor, id, req.CurrentDate)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pharmacy))
}

// ReassignDirector hands the pharmacy to another director, or leaves it unowned
// @Summary      Reassign director
// @Tags         pharmacies
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                           true  "Pharmacy ID"
// @Param        payload  body      service.ReassignDirectorRequest  true  "Director (null to clear)"
// @Success      200      {object}  response.Response{data=service.PharmacyResponse}
// @Failure      400      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /pharmacies/{id}/director [put]
func (h *PharmacyHandler) ReassignDirector(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.ReassignDirectorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	pharmacy, err := h.pharmacyService.ReassignDirector(c.Request.Context(), actor, id, req.DirectorID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, pharmacy))
}

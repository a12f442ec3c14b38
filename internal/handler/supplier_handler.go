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

// SupplierHandler serves the supplier registry and supplier stock links.
type SupplierHandler struct {
	supplierService  service.SupplierService
	inventoryService service.InventoryService
}

func NewSupplierHandler(supplierService service.SupplierService, inventoryService service.InventoryService) *SupplierHandler {
	return &SupplierHandler{supplierService: supplierService, inventoryService: inventoryService}
}

func (h *SupplierHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	adminOnly := middleware.RequireRole(model.RoleAdmin)
	linkers := middleware.RequireRole(model.RoleAdmin, model.RoleSupplier)

	suppliers := router.Group("/suppliers", authn)
	{
		suppliers.GET("", h.ListSuppliers)
		suppliers.POST("", adminOnly, h.CreateSupplier)
		suppliers.GET("/product/:product_id", h.ListByProduct)
		suppliers.GET("/product-name/:name", h.ListByProductName)
		suppliers.GET("/product-dosage/:dosage", h.ListByProductDosage)
		suppliers.GET("/:id", h.GetSupplier)
		suppliers.PUT("/:id", adminOnly, h.UpdateSupplier)
		suppliers.DELETE("/:id", adminOnly, h.DeleteSupplier)
		suppliers.POST("/:id/add-product/:product_id", linkers, h.LinkProduct)
		suppliers.DELETE("/:id/remove-product/:product_id", linkers, h.UnlinkProduct)
	}
}

// ListSuppliers lists suppliers backed by a supplier account
// @Summary      List suppliers
// @Description  Each entry carries the linked account's email as login
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        skip   query     int  false  "Rows to skip (default 0)"
// @Param        limit  query     int  false  "Rows to return (default 100)"
// @Success      200    {object}  response.Response{data=response.Page}
// @Router       /suppliers [get]
func (h *SupplierHandler) ListSuppliers(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	suppliers, total, err := h.supplierService.ListSuppliers(c.Request.Context(), actor, p.Skip, p.Limit)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, suppliers, total, p.Skip, p.Limit))
}

// CreateSupplier registers a supplier, optionally linked to an account
// @Summary      Create supplier
// @Tags         suppliers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateSupplierRequest  true  "Create Supplier Payload"
// @Success      201      {object}  response.Response{data=service.SupplierResponse}
// @Failure      400      {object}  response.Response
// @Failure      409      {object}  response.Response
// @Router       /suppliers [post]
func (h *SupplierHandler) CreateSupplier(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CreateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	supplier, err := h.supplierService.CreateSupplier(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, supplier))
}

// GetSupplier returns one supplier
// @Summary      Get supplier
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Supplier ID"
// @Success      200  {object}  response.Response{data=service.SupplierResponse}
// @Failure      404  {object}  response.Response
// @Router       /suppliers/{id} [get]
func (h *SupplierHandler) GetSupplier(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	supplier, err := h.supplierService.GetSupplier(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, supplier))
}

// UpdateSupplier renames a supplier
// @Summary      Update supplier
// @Tags         suppliers
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                         true  "Supplier ID"
// @Param        payload  body      service.UpdateSupplierRequest  true  "Update Supplier Payload"
// @Success      200      {object}  response.Response{data=service.SupplierResponse}
// @Failure      404      {object}  response.Response
// @Router       /suppliers/{id} [put]
func (h *SupplierHandler) UpdateSupplier(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateSupplierRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	supplier, err := h.supplierService.UpdateSupplier(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, supplier))
}

// DeleteSupplier removes a supplier and its stock links
// @Summary      Delete supplier
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Supplier ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /suppliers/{id} [delete]
func (h *SupplierHandler) DeleteSupplier(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.supplierService.DeleteSupplier(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Supplier deleted successfully"))
}

// ListByProduct lists suppliers stocking a product, most preferred first
// @Summary      Suppliers of product
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        product_id  path      string  true  "Product ID"
// @Success      200         {object}  response.Response{data=[]service.SupplierResponse}
// @Failure      404         {object}  response.Response
// @Router       /suppliers/product/{product_id} [get]
func (h *SupplierHandler) ListByProduct(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}

	suppliers, err := h.supplierService.ListByProduct(c.Request.Context(), actor, productID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, suppliers))
}

// ListByProductName lists suppliers stocking a product with the given name
// @Summary      Suppliers by product name
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        name  path      string  true  "Product name, case-insensitive"
// @Success      200   {object}  response.Response{data=[]service.SupplierResponse}
// @Router       /suppliers/product-name/{name} [get]
func (h *SupplierHandler) ListByProductName(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	suppliers, err := h.supplierService.ListByProductName(c.Request.Context(), actor, c.Param("name"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, suppliers))
}

// ListByProductDosage lists suppliers stocking a product with a matching dosage
// @Summary      Suppliers by dosage
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        dosage  path      string  true  "Dosage fragment, case-insensitive"
// @Success      200     {object}  response.Response{data=[]service.SupplierResponse}
// @Router       /suppliers/product-dosage/{dosage} [get]
func (h *SupplierHandler) ListByProductDosage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	suppliers, err := h.supplierService.ListByProductDosage(c.Request.Context(), actor, c.Param("dosage"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, suppliers))
}

// LinkProduct adds to a supplier's stock of a product and sets its preference
// @Summary      Link supplier product
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        id          path      string  true   "Supplier ID"
// @Param        product_id  path      string  true   "Product ID"
// @Param        quantity    query     int     true   "Units to add, >= 0"
// @Param        preference  query     int     false  "Rank 1-3 (default 1)"
// @Success      200         {object}  response.Response{data=service.SupplierStockResponse}
// @Failure      400         {object}  response.Response
// @Failure      404         {object}  response.Response
// @Router       /suppliers/{id}/add-product/{product_id} [post]
func (h *SupplierHandler) LinkProduct(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	supplierID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}
	quantity, ok := intQuery(c, "quantity", 0, true)
	if !ok {
		return
	}
	preference, ok := intQuery(c, "preference", model.MinSupplierPreference, false)
	if !ok {
		return
	}

	row, err := h.inventoryService.LinkSupplierProduct(c.Request.Context(), actor, supplierID, productID, quantity, preference)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, row))
}

// UnlinkProduct removes a supplier's stock row for a product
// @Summary      Unlink supplier product
// @Tags         suppliers
// @Security     BearerAuth
// @Produce      json
// @Param        id          path      string  true  "Supplier ID"
// @Param        product_id  path      string  true  "Product ID"
// @Success      200         {object}  response.Response
// @Failure      404         {object}  response.Response
// @Router       /suppliers/{id}/remove-product/{product_id} [delete]
func (h *SupplierHandler) UnlinkProduct(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	supplierID, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}

	if err := h.inventoryService.UnlinkSupplierProduct(c.Request.Context(), actor, supplierID, productID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Product removed from supplier"))
}

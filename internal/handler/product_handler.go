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

// ProductHandler serves the catalog, its queries and pharmacy stock transfers.
type ProductHandler struct {
	productService   service.ProductService
	inventoryService service.InventoryService
}

func NewProductHandler(productService service.ProductService, inventoryService service.InventoryService) *ProductHandler {
	return &ProductHandler{productService: productService, inventoryService: inventoryService}
}

func (h *ProductHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	writers := middleware.RequireRole(model.RoleAdmin, model.RoleSupplier)
	stockers := middleware.RequireRole(model.RoleAdmin, model.RoleDirector)

	products := router.Group("/products", authn)
	{
		products.GET("", h.ListProducts)
		products.POST("", writers, h.CreateProduct)
		products.GET("/mine", middleware.RequireRole(model.RoleSupplier), h.ListOwnProducts)
		products.GET("/expired", h.ListExpired)
		products.GET("/total-cost", h.TotalCost)
		products.GET("/supplier/:id", h.ListBySupplier)
		products.GET("/dosage/:dosage", h.ListByDosage)
		products.GET("/pharmacy/:pharmacy_id", h.ListByPharmacy)
		products.POST("/pharmacy/:pharmacy_id/add/:product_id", stockers, h.StockPharmacy)
		products.DELETE("/pharmacy/:pharmacy_id/remove/:product_id", stockers, h.UnstockPharmacy)
		products.GET("/:id", h.GetProduct)
		products.PUT("/:id", writers, h.UpdateProduct)
		products.DELETE("/:id", writers, h.DeleteProduct)
	}
}

// ListProducts returns one window of the catalog
// @Summary      List products
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        skip    query     int     false  "Rows to skip (default 0)"
// @Param        limit   query     int     false  "Rows to return (default 100)"
// @Param        search  query     string  false  "Search by product name"
// @Success      200     {object}  response.Response{data=response.Page}
// @Router       /products [get]
func (h *ProductHandler) ListProducts(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	p := pagination.Parse(c)

	products, total, err := h.productService.ListProducts(c.Request.Context(), actor, p.Skip, p.Limit, c.Query("search"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.SuccessWithPagination(http.StatusOK, products, total, p.Skip, p.Limit))
}

// CreateProduct adds a catalog entry
// @Summary      Create product
// @Description  Suppliers become the preferred supplier of products they create
// @Tags         products
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        payload  body      service.CreateProductRequest  true  "Create Product Payload"
// @Success      201      {object}  response.Response{data=service.ProductResponse}
// @Failure      400      {object}  response.Response
// @Router       /products [post]
func (h *ProductHandler) CreateProduct(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	var req service.CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	product, err := h.productService.CreateProduct(c.Request.Context(), actor, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusCreated, response.Success(http.StatusCreated, product))
}

// GetProduct returns one product
// @Summary      Get product
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response{data=service.ProductResponse}
// @Failure      404  {object}  response.Response
// @Router       /products/{id} [get]
func (h *ProductHandler) GetProduct(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	product, err := h.productService.GetProduct(c.Request.Context(), actor, id)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// UpdateProduct applies a partial update
// @Summary      Update product
// @Tags         products
// @Security     BearerAuth
// @Accept       json
// @Produce      json
// @Param        id       path      string                        true  "Product ID"
// @Param        payload  body      service.UpdateProductRequest  true  "Update Product Payload"
// @Success      200      {object}  response.Response{data=service.ProductResponse}
// @Failure      403      {object}  response.Response
// @Failure      404      {object}  response.Response
// @Router       /products/{id} [put]
func (h *ProductHandler) UpdateProduct(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}
	var req service.UpdateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request payload: "+err.Error())
		return
	}

	product, err := h.productService.UpdateProduct(c.Request.Context(), actor, id, req)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, product))
}

// DeleteProduct removes a product and every ledger row that references it
// @Summary      Delete product
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Product ID"
// @Success      200  {object}  response.Response
// @Failure      403  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /products/{id} [delete]
func (h *ProductHandler) DeleteProduct(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	if err := h.productService.DeleteProduct(c.Request.Context(), actor, id); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Product deleted successfully"))
}

// ListOwnProducts returns the products the calling supplier is preferred for
// @Summary      My products
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=[]service.ProductResponse}
// @Router       /products/mine [get]
func (h *ProductHandler) ListOwnProducts(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	products, err := h.productService.ListOwnProducts(c.Request.Context(), actor)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, products))
}

// ListExpired returns products past their expiry date
// @Summary      Expired products
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        pharmacy_id   query     string  false  "Limit to one pharmacy's stock"
// @Param        current_date  query     string  false  "Cutoff (RFC3339 or YYYY-MM-DD, default now)"
// @Success      200           {object}  response.Response{data=[]service.ProductResponse}
// @Router       /products/expired [get]
func (h *ProductHandler) ListExpired(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	pharmacyID, ok := optionalUUIDQuery(c, "pharmacy_id")
	if !ok {
		return
	}
	cutoff, ok := optionalTimeQuery(c, "current_date")
	if !ok {
		return
	}

	products, err := h.productService.ListExpired(c.Request.Context(), actor, pharmacyID, cutoff)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, products))
}

// ListByPharmacy returns the products a pharmacy holds with their ledger quantity
// @Summary      Products in pharmacy
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        pharmacy_id  path      string  true  "Pharmacy ID"
// @Success      200          {object}  response.Response{data=[]service.StockedProductResponse}
// @Failure      404          {object}  response.Response
// @Router       /products/pharmacy/{pharmacy_id} [get]
func (h *ProductHandler) ListByPharmacy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	pharmacyID, ok := uuidParam(c, "pharmacy_id")
	if !ok {
		return
	}

	products, err := h.productService.ListByPharmacy(c.Request.Context(), actor, pharmacyID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, products))
}

// ListBySupplier returns products the supplier holds stock rows for
// @Summary      Products of supplier
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Supplier ID"
// @Success      200  {object}  response.Response{data=[]service.ProductResponse}
// @Failure      404  {object}  response.Response
// @Router       /products/supplier/{id} [get]
func (h *ProductHandler) ListBySupplier(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	supplierID, ok := uuidParam(c, "id")
	if !ok {
		return
	}

	products, err := h.productService.ListBySupplier(c.Request.Context(), actor, supplierID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, products))
}

// ListByDosage returns products with a dosage containing the given text
// @Summary      Products by dosage
// @Tags         products
// @Security     BearerAuth
// @Produce      json
// @Param        dosage  path      string  true  "Dosage fragment, case-insensitive"
// @Success      200     {object}  response.Response{data=[]service.ProductResponse}
// @Router       /products/dosage/{dosage} [get]
func (h *ProductHandler) ListByDosage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	products, err := h.productService.ListByDosage(c.Request.Context(), actor, c.Param("dosage"))
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, products))
}

// TotalCost values stock as price times the chain-wide product quantity
// @Summary      Inventory value
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        pharmacy_id  query     string  false  "Only products stocked by this pharmacy"
// @Success      200          {object}  response.Response{data=service.InventoryValueResponse}
// @Failure      404          {object}  response.Response
// @Router       /products/total-cost [get]
func (h *ProductHandler) TotalCost(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	pharmacyID, ok := optionalUUIDQuery(c, "pharmacy_id")
	if !ok {
		return
	}

	value, err := h.inventoryService.TotalInventoryValue(c.Request.Context(), actor, pharmacyID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, value))
}

// StockPharmacy moves units from product stock into a pharmacy
// @Summary      Stock pharmacy
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        pharmacy_id  path      string  true  "Pharmacy ID"
// @Param        product_id   path      string  true  "Product ID"
// @Param        quantity     query     int     true  "Units to move, > 0"
// @Success      200          {object}  response.Response{data=service.StockResult}
// @Failure      400          {object}  response.Response
// @Failure      404          {object}  response.Response
// @Failure      409          {object}  response.Response
// @Router       /products/pharmacy/{pharmacy_id}/add/{product_id} [post]
func (h *ProductHandler) StockPharmacy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	pharmacyID, ok := uuidParam(c, "pharmacy_id")
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

	result, err := h.inventoryService.Stock(c.Request.Context(), actor, productID, pharmacyID, quantity)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, result))
}

// UnstockPharmacy removes all of a pharmacy's stock of a product
// @Summary      Unstock pharmacy
// @Tags         inventory
// @Security     BearerAuth
// @Produce      json
// @Param        pharmacy_id  path      string  true  "Pharmacy ID"
// @Param        product_id   path      string  true  "Product ID"
// @Success      200          {object}  response.Response
// @Failure      404          {object}  response.Response
// @Router       /products/pharmacy/{pharmacy_id}/remove/{product_id} [delete]
func (h *ProductHandler) UnstockPharmacy(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	pharmacyID, ok := uuidParam(c, "pharmacy_id")
	if !ok {
		return
	}
	productID, ok := uuidParam(c, "product_id")
	if !ok {
		return
	}

	if err := h.inventoryService.Unstock(c.Request.Context(), actor, pharmacyID, productID); err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, response.Success(http.StatusOK, "Product removed from pharmacy"))
}

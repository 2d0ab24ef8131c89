package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yeremiapane/agrimarket/services"
	"github.com/yeremiapane/agrimarket/utils"
)

type ProductController struct {
	Products *services.ProductService
}

func NewProductController(products *services.ProductService) *ProductController {
	return &ProductController{Products: products}
}

type productRequest struct {
	Name        string  `json:"name" binding:"required"`
	Description string  `json:"description"`
	Unit        string  `json:"unit"`
	Price       float64 `json:"price" binding:"required,gt=0"`
	Quantity    float64 `json:"quantity" binding:"gte=0"`
}

func (r productRequest) input() services.ProductInput {
	return services.ProductInput{
		Name:        r.Name,
		Description: r.Description,
		Unit:        r.Unit,
		Price:       r.Price,
		Quantity:    r.Quantity,
	}
}

// GetAllProducts supports ?farmer_id, ?q, ?available=true and paging.
func (pc *ProductController) GetAllProducts(c *gin.Context) {
	f := services.ProductFilter{
		FarmerID:      queryUint(c, "farmer_id"),
		Search:        c.Query("q"),
		AvailableOnly: c.Query("available") == "true",
	}
	f.Page, f.PerPage = services.NormalizePage(queryInt(c, "page", 1), queryInt(c, "per_page", 20))
	products, total, err := pc.Products.ListProducts(c.Request.Context(), f)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSONWithMeta(c, http.StatusOK, "All products", products, utils.NewMeta(f.Page, f.PerPage, total))
}

func (pc *ProductController) GetProductByID(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	product, err := pc.Products.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Product detail", product)
}

func (pc *ProductController) CreateProduct(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	var body productRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	product, err := pc.Products.CreateProduct(c.Request.Context(), userID, body.input())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusCreated, "Product created", product)
}

func (pc *ProductController) UpdateProduct(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var body productRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		utils.RespondError(c, http.StatusBadRequest, err)
		return
	}
	product, err := pc.Products.UpdateProduct(c.Request.Context(), id, userID, body.input())
	if err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Product updated", product)
}

func (pc *ProductController) DeleteProduct(c *gin.Context) {
	userID, _, ok := mustUser(c)
	if !ok {
		return
	}
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := pc.Products.DeleteProduct(c.Request.Context(), id, userID); err != nil {
		respondServiceError(c, err)
		return
	}
	utils.RespondJSON(c, http.StatusOK, "Product deleted", gin.H{"product_id": id})
}

package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
)

type Handler struct {
	repo    *CatalogRepository
	vendors *VendorRepository
	logger  *slog.Logger
}

func NewHandler(repo *CatalogRepository, vendors *VendorRepository, logger *slog.Logger) *Handler {
	return &Handler{
		repo:    repo,
		vendors: vendors,
		logger:  logger,
	}
}

type createProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CategoryID  *string         `json:"category_id"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
}

func (h *Handler) HandleCreateProduct(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var req createProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Price.IsNegative() || req.Stock < 0 {
		h.writeError(w, http.StatusBadRequest, "price and stock must not be negative")
		return
	}

	vendor, err := h.vendors.ByUser(r.Context(), actor.ID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusForbidden, "seller has no store")
			return
		}
		h.logger.Error("failed to load vendor", "error", err, "user_id", actor.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	product := &domain.Product{
		VendorID:    vendor.ID,
		CategoryID:  req.CategoryID,
		Name:        req.Name,
		Description: req.Description,
		Price:       req.Price,
		Stock:       req.Stock,
		IsActive:    true,
	}

	if err := h.repo.CreateProduct(r.Context(), product); err != nil {
		h.logger.Error("failed to create product", "error", err, "vendor_id", vendor.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("product created", "product_id", product.ID, "vendor_id", vendor.ID)
	h.writeJSON(w, http.StatusCreated, product)
}

func (h *Handler) HandleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.repo.ListProducts(r.Context())
	if err != nil {
		h.logger.Error("failed to list products", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, products)
}

func (h *Handler) HandleGetProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	product, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, product)
}

type updateProductRequest struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	CategoryID  *string         `json:"category_id"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	IsActive    bool            `json:"is_active"`
}

func (h *Handler) HandleUpdateProduct(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req updateProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Price.IsNegative() || req.Stock < 0 {
		h.writeError(w, http.StatusBadRequest, "price and stock must not be negative")
		return
	}

	product, err := h.repo.GetProduct(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to get product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	product.Name = req.Name
	product.Description = req.Description
	product.CategoryID = req.CategoryID
	product.Price = req.Price
	product.Stock = req.Stock
	product.IsActive = req.IsActive

	if err := h.repo.UpdateProduct(r.Context(), product); err != nil {
		h.logger.Error("failed to update product", "error", err, "product_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("product updated", "product_id", id)
	h.writeJSON(w, http.StatusOK, product)
}

type createVariantRequest struct {
	AttributeValueID string          `json:"attribute_value_id"`
	PriceModifier    decimal.Decimal `json:"price_modifier"`
}

func (h *Handler) HandleCreateVariant(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	var req createVariantRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.AttributeValueID == "" {
		h.writeError(w, http.StatusBadRequest, "attribute_value_id is required")
		return
	}

	variant := &domain.ProductVariant{
		ProductID:        productID,
		AttributeValueID: req.AttributeValueID,
		PriceModifier:    req.PriceModifier,
	}

	if err := h.repo.CreateVariant(r.Context(), variant); err != nil {
		h.logger.Error("failed to create variant", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("variant created", "variant_id", variant.ID, "product_id", productID)
	h.writeJSON(w, http.StatusCreated, variant)
}

func (h *Handler) HandleListVariants(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	variants, err := h.repo.ListVariants(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to list variants", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, variants)
}

type addImageRequest struct {
	URL       string `json:"url"`
	AltText   string `json:"alt_text"`
	IsDefault bool   `json:"is_default"`
}

func (h *Handler) HandleAddImage(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	var req addImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.URL == "" {
		h.writeError(w, http.StatusBadRequest, "url is required")
		return
	}

	image := &domain.ProductImage{
		ProductID: productID,
		URL:       req.URL,
		AltText:   req.AltText,
		IsDefault: req.IsDefault,
	}

	if err := h.repo.AddImage(r.Context(), image); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "product not found")
			return
		}
		h.logger.Error("failed to add image", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("image added", "image_id", image.ID, "product_id", productID)
	h.writeJSON(w, http.StatusCreated, image)
}

func (h *Handler) HandleListImages(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")

	images, err := h.repo.ListImages(r.Context(), productID)
	if err != nil {
		h.logger.Error("failed to list images", "error", err, "product_id", productID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, images)
}

func (h *Handler) HandleSetDefaultImage(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")
	imageID := r.PathValue("imageID")

	if err := h.repo.SetDefaultImage(r.Context(), productID, imageID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "image not found")
			return
		}
		h.logger.Error("failed to set default image", "error", err,
			"product_id", productID, "image_id", imageID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("default image set", "image_id", imageID, "product_id", productID)
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "default image set"})
}

func (h *Handler) HandleDeleteImage(w http.ResponseWriter, r *http.Request) {
	productID := r.PathValue("id")
	imageID := r.PathValue("imageID")

	if err := h.repo.DeleteImage(r.Context(), productID, imageID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "image not found")
			return
		}
		h.logger.Error("failed to delete image", "error", err,
			"product_id", productID, "image_id", imageID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("image deleted", "image_id", imageID, "product_id", productID)
	w.WriteHeader(http.StatusNoContent)
}

type createCategoryRequest struct {
	Name     string  `json:"name"`
	ParentID *string `json:"parent_id"`
}

func (h *Handler) HandleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	category := &domain.Category{Name: req.Name, ParentID: req.ParentID}
	if err := h.repo.CreateCategory(r.Context(), category); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "parent category not found")
			return
		}
		h.logger.Error("failed to create category", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("category created", "category_id", category.ID, "name", category.Name)
	h.writeJSON(w, http.StatusCreated, category)
}

func (h *Handler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.repo.ListCategories(r.Context())
	if err != nil {
		h.logger.Error("failed to list categories", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, categories)
}

type createAttributeRequest struct {
	Name string `json:"name"`
}

func (h *Handler) HandleCreateAttribute(w http.ResponseWriter, r *http.Request) {
	var req createAttributeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" {
		h.writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	attribute := &domain.Attribute{Name: req.Name}
	if err := h.repo.CreateAttribute(r.Context(), attribute); err != nil {
		if errors.Is(err, ErrDuplicateAttribute) {
			h.writeError(w, http.StatusConflict, "attribute already exists")
			return
		}
		h.logger.Error("failed to create attribute", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("attribute created", "attribute_id", attribute.ID, "name", attribute.Name)
	h.writeJSON(w, http.StatusCreated, attribute)
}

func (h *Handler) HandleListAttributes(w http.ResponseWriter, r *http.Request) {
	attributes, err := h.repo.ListAttributes(r.Context())
	if err != nil {
		h.logger.Error("failed to list attributes", "error", err)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, attributes)
}

type createAttributeValueRequest struct {
	Value string `json:"value"`
}

func (h *Handler) HandleCreateAttributeValue(w http.ResponseWriter, r *http.Request) {
	attributeID := r.PathValue("id")

	var req createAttributeValueRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Value == "" {
		h.writeError(w, http.StatusBadRequest, "value is required")
		return
	}

	value := &domain.AttributeValue{AttributeID: attributeID, Value: req.Value}
	if err := h.repo.CreateAttributeValue(r.Context(), value); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "attribute not found")
			return
		}
		h.logger.Error("failed to create attribute value", "error", err, "attribute_id", attributeID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("attribute value created", "value_id", value.ID, "attribute_id", attributeID)
	h.writeJSON(w, http.StatusCreated, value)
}

func (h *Handler) HandleListAttributeValues(w http.ResponseWriter, r *http.Request) {
	attributeID := r.PathValue("id")

	values, err := h.repo.ListAttributeValues(r.Context(), attributeID)
	if err != nil {
		h.logger.Error("failed to list attribute values", "error", err, "attribute_id", attributeID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, values)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

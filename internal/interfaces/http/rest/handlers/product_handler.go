// Package handlers implements the HTTP handlers of the catalog API.
package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"product-catalog/internal/catalog"
	catalogService "product-catalog/internal/service/catalog"
	"product-catalog/pkg/api"
	"product-catalog/pkg/auth"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ProductHandler handles product-related HTTP requests
type ProductHandler struct {
	service    catalogService.Service
	adminGroup string
	logger     *zap.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(service catalogService.Service, adminGroup string, logger *zap.Logger) *ProductHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ProductHandler{
		service:    service,
		adminGroup: adminGroup,
		logger:     logger,
	}
}

// UpdateRatingRequest is the optional body of PUT /products/{productId}.
type UpdateRatingRequest struct {
	AvgRating *float64 `json:"avgRating"`
}

// ListProducts handles GET /products
func (h *ProductHandler) ListProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, err := optionalInt(q.Get("page"))
	if err != nil {
		api.BadRequest(w, "page must be an integer")
		return
	}
	pageSize, err := optionalInt(q.Get("pageSize"))
	if err != nil {
		api.BadRequest(w, "pageSize must be an integer")
		return
	}

	out, err := h.service.GetProducts(r.Context(), catalogService.ListQuery{
		SearchTerm: q.Get("searchTerm"),
		Category:   q.Get("category"),
		SortBy:     q.Get("sortBy"),
		SortOrder:  q.Get("sortOrder"),
		Page:       page,
		PageSize:   pageSize,
	})
	respond(w, http.StatusOK, out, err)
}

// GetProduct handles GET /products/{productId}
func (h *ProductHandler) GetProduct(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.GetProduct(r.Context(), chi.URLParam(r, "productId"))
	respond(w, http.StatusOK, out, err)
}

// AddProduct handles POST /products
func (h *ProductHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var product catalog.Product
	if err := json.NewDecoder(r.Body).Decode(&product); err != nil {
		h.logger.Debug("rejected product body", zap.Error(err))
		api.BadRequest(w, "Invalid request body: "+err.Error())
		return
	}

	out, err := h.service.AddProduct(r.Context(), h.principal(r), product)
	respond(w, http.StatusCreated, out, err)
}

// UpdateRating handles PUT /products/{productId}
func (h *ProductHandler) UpdateRating(w http.ResponseWriter, r *http.Request) {
	avgRating, err := h.avgRating(r)
	if err != nil {
		api.BadRequest(w, err.Error())
		return
	}

	out, err := h.service.UpdateRating(r.Context(), h.principal(r),
		chi.URLParam(r, "productId"),
		avgRating,
		catalog.RatingAction(r.URL.Query().Get("action")),
	)
	respond(w, http.StatusOK, out, err)
}

// DeleteProduct handles DELETE /products/{productId}
func (h *ProductHandler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	out, err := h.service.DeleteProduct(r.Context(), h.principal(r), chi.URLParam(r, "productId"))
	respond(w, http.StatusOK, out, err)
}

func (h *ProductHandler) principal(r *http.Request) catalogService.Principal {
	identity, ok := auth.IdentityFromContext(r.Context())
	if !ok {
		return catalogService.Principal{}
	}
	return catalogService.Principal{
		UserID:        identity.UserID,
		Authenticated: true,
		Admin:         identity.InGroup(h.adminGroup),
	}
}

// avgRating reads the rating from the JSON body, falling back to the query string.
func (h *ProductHandler) avgRating(r *http.Request) (float64, error) {
	if r.Body != nil && r.ContentLength != 0 {
		var req UpdateRatingRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if err != nil && !errors.Is(err, io.EOF) {
			return 0, errBadRequest("Invalid request body: " + err.Error())
		}
		if req.AvgRating != nil {
			return *req.AvgRating, nil
		}
	}
	raw := strings.TrimSpace(r.URL.Query().Get("avgRating"))
	if raw == "" {
		return 0, errBadRequest("avgRating is required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errBadRequest("avgRating must be a number")
	}
	return v, nil
}

type errBadRequest string

func (e errBadRequest) Error() string { return string(e) }

func optionalInt(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	return strconv.Atoi(raw)
}

// respond writes the operation value, its fallback, or the classified error.
func respond[T any](w http.ResponseWriter, status int, out catalogService.Outcome[T], err error) {
	switch {
	case err != nil:
		api.FromError(w, err)
	case out.Degraded():
		api.Success(w, http.StatusOK, out.Fallback)
	default:
		api.Success(w, status, out.Value)
	}
}

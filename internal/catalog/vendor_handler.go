package catalog

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/joao-fontenele/marketplace/internal/auth"
	"github.com/joao-fontenele/marketplace/internal/domain"
)

type VendorHandler struct {
	repo   *VendorRepository
	logger *slog.Logger
}

func NewVendorHandler(repo *VendorRepository, logger *slog.Logger) *VendorHandler {
	return &VendorHandler{
		repo:   repo,
		logger: logger,
	}
}

type createVendorRequest struct {
	StoreName        string `json:"store_name"`
	StoreDescription string `json:"store_description"`
}

func (h *VendorHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	actor, _ := auth.ActorFrom(r.Context())

	var req createVendorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.StoreName == "" {
		h.writeError(w, http.StatusBadRequest, "store_name is required")
		return
	}

	vendor := &domain.Vendor{
		UserID:           actor.ID,
		StoreName:        req.StoreName,
		StoreDescription: req.StoreDescription,
	}

	if err := h.repo.Create(r.Context(), vendor); err != nil {
		if errors.Is(err, ErrDuplicateVendor) {
			h.writeError(w, http.StatusConflict, "user already has a store")
			return
		}
		h.logger.Error("failed to create vendor", "error", err, "user_id", actor.ID)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("vendor created", "vendor_id", vendor.ID, "user_id", actor.ID)
	h.writeJSON(w, http.StatusCreated, vendor)
}

func (h *VendorHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	vendor, err := h.repo.GetByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "vendor not found")
			return
		}
		h.logger.Error("failed to get vendor", "error", err, "vendor_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.writeJSON(w, http.StatusOK, vendor)
}

func (h *VendorHandler) HandleApprove(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	vendor, err := h.repo.Approve(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			h.writeError(w, http.StatusNotFound, "vendor not found")
			return
		}
		h.logger.Error("failed to approve vendor", "error", err, "vendor_id", id)
		h.writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("vendor approved", "vendor_id", id)
	h.writeJSON(w, http.StatusOK, vendor)
}

func (h *VendorHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", "error", err)
	}
}

func (h *VendorHandler) writeError(w http.ResponseWriter, status int, message string) {
	h.writeJSON(w, status, map[string]string{"error": message})
}

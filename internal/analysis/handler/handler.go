// Package handler handles HTTP requests for the analysis module.
package handler

import (
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"

	"apalloc_backend/internal/analysis/service"
	"apalloc_backend/internal/analysis/session"
	"apalloc_backend/platform/apperr"
	"apalloc_backend/platform/httpkit"
	"apalloc_backend/platform/validator"

	"github.com/gin-gonic/gin"
)

const (
	msgInvalidForm      = "invalid multipart form"
	msgValidationFailed = "validation failed"

	// Vendor exports and invoices are small; anything past this is
	// not a billing artifact.
	maxUploadBytes = 25 << 20
)

// Handler handles HTTP requests for billing analysis.
type Handler struct {
	svc *service.Service
	val *validator.Validator
}

// New creates a new analysis handler.
func New(svc *service.Service, val *validator.Validator) *Handler {
	return &Handler{svc: svc, val: val}
}

// RegisterRoutes registers analysis routes.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.Analyze)
}

// Analyze accepts a multipart form: vendor_type, session_id, repeated
// csv_files, an optional invoice_file, and the JSON correction fields
// user_updates, prompt_submissions and support_updates.
func (h *Handler) Analyze(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		httpkit.Error(c, http.StatusBadRequest, msgInvalidForm, nil)
		return
	}

	req := service.AnalyzeRequest{
		VendorType: c.PostForm("vendor_type"),
		SessionID:  c.PostForm("session_id"),
	}

	for _, fh := range form.File["csv_files"] {
		upload, err := readUpload(fh)
		if err != nil {
			httpkit.HandleError(c, err)
			return
		}
		req.CSVFiles = append(req.CSVFiles, upload)
	}
	if fhs := form.File["invoice_file"]; len(fhs) > 0 {
		upload, err := readUpload(fhs[0])
		if err != nil {
			httpkit.HandleError(c, err)
			return
		}
		req.InvoiceFile = &upload
	}

	corrections, ok := h.decodeCorrections(c)
	if !ok {
		return
	}
	req.Corrections = corrections

	resp, err := h.svc.Analyze(c.Request.Context(), req)
	if httpkit.HandleError(c, err) {
		return
	}
	httpkit.OK(c, resp)
}

func (h *Handler) decodeCorrections(c *gin.Context) (session.Corrections, bool) {
	var corrections session.Corrections

	if !decodeJSONField(c, "user_updates", &corrections.UserUpdates) {
		return corrections, false
	}
	for _, update := range corrections.UserUpdates {
		if err := h.val.Struct(update); err != nil {
			httpkit.Error(c, http.StatusBadRequest, msgValidationFailed, err.Error())
			return corrections, false
		}
	}
	if !decodeJSONField(c, "prompt_submissions", &corrections.PromptSubmissions) {
		return corrections, false
	}
	for _, sub := range corrections.PromptSubmissions {
		if sub.LineKey == "" {
			httpkit.Error(c, http.StatusBadRequest, "prompt_submissions entries need a line_key", nil)
			return corrections, false
		}
	}
	if !decodeJSONField(c, "support_updates", &corrections.SupportUpdates) {
		return corrections, false
	}
	for _, update := range corrections.SupportUpdates {
		if update.RowKey == "" {
			httpkit.Error(c, http.StatusBadRequest, "support_updates entries need a row_key", nil)
			return corrections, false
		}
	}
	return corrections, true
}

func decodeJSONField[T any](c *gin.Context, field string, dest *[]T) bool {
	raw := c.PostForm(field)
	if raw == "" {
		return true
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		httpkit.Error(c, http.StatusBadRequest, fmt.Sprintf("Invalid %s JSON.", field), nil)
		return false
	}
	return true
}

func readUpload(fh *multipart.FileHeader) (service.Upload, error) {
	if fh.Size > maxUploadBytes {
		return service.Upload{}, apperr.BadRequest(fmt.Sprintf("%s: file too large.", fh.Filename))
	}
	f, err := fh.Open()
	if err != nil {
		return service.Upload{}, fmt.Errorf("open upload %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return service.Upload{}, fmt.Errorf("read upload %s: %w", fh.Filename, err)
	}
	return service.Upload{Filename: fh.Filename, Data: data}, nil
}

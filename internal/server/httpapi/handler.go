package httpapi

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrijs2005/filegate/internal/common"
	"github.com/dmitrijs2005/filegate/internal/logging"
	"github.com/dmitrijs2005/filegate/internal/server/auth"
	sc "github.com/dmitrijs2005/filegate/internal/server/config"
	"github.com/dmitrijs2005/filegate/internal/server/services"
	"github.com/dmitrijs2005/filegate/internal/server/storage"
)

// Handler carries the gateway services and serves the public API.
type Handler struct {
	presign   *services.PresignService
	multipart *services.MultipartService
	bundle    *services.BundleService
	logger    logging.Logger
	jwtSecret []byte
}

func NewHandler(presign *services.PresignService, multipart *services.MultipartService,
	bundle *services.BundleService, l logging.Logger, cfg *sc.Config) *Handler {
	return &Handler{
		presign:   presign,
		multipart: multipart,
		bundle:    bundle,
		logger:    l.With("module", "httpapi"),
		jwtSecret: []byte(cfg.SecretKey),
	}
}

// resolvePlan picks the caller's plan: a valid bearer plan token wins, then
// the X-Plan header, then the request body. An invalid token degrades to the
// later sources instead of failing the request — plans gate quota, not
// identity. Unknown plan names collapse to the default inside the quota
// resolver.
func (h *Handler) resolvePlan(r *http.Request, bodyPlan string) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		token := strings.TrimPrefix(header, "Bearer ")
		if plan, err := auth.PlanFromToken(token, h.jwtSecret); err == nil {
			return plan
		}
	}
	if plan := r.Header.Get("X-Plan"); plan != "" {
		return plan
	}
	return bodyPlan
}

func decodeBody(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request body: %v", common.ErrorValidation, err)
	}
	return nil
}

type issueTransferRequest struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Plan        string `json:"plan,omitempty"`
}

type issueTransferResponse struct {
	Key              string `json:"key"`
	URL              string `json:"url"`
	ExpiresInSeconds int64  `json:"expiresInSeconds"`
}

// IssueTransfer handles POST /api/uploads: a single-shot upload intent that
// yields a presigned PUT URL.
func (h *Handler) IssueTransfer(w http.ResponseWriter, r *http.Request) {
	var req issueTransferRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	transfer, err := h.presign.IssuePut(r.Context(), req.Filename, req.Size, req.ContentType, h.resolvePlan(r, req.Plan))
	if err != nil {
		h.logger.Warn(r.Context(), "presigned upload refused", "filename", req.Filename, "error", err)
		writeError(w, err)
		return
	}

	h.logger.Info(r.Context(), "presigned upload issued", "key", transfer.Key)
	writeJSON(w, http.StatusCreated, issueTransferResponse{
		Key:              transfer.Key,
		URL:              transfer.URL,
		ExpiresInSeconds: int64(transfer.ExpiresIn.Seconds()),
	})
}

type downloadURLResponse struct {
	URL string `json:"url"`
}

// DownloadURL handles GET /api/download?key=K: presigned GET issuance for a
// previously uploaded object.
func (h *Handler) DownloadURL(w http.ResponseWriter, r *http.Request) {
	url, err := h.presign.IssueGet(r.Context(), r.URL.Query().Get("key"))
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, downloadURLResponse{URL: url})
}

type openMultipartRequest struct {
	Filename    string `json:"filename"`
	Size        int64  `json:"size"`
	ContentType string `json:"contentType"`
	Plan        string `json:"plan,omitempty"`
}

type openMultipartResponse struct {
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
	PartSize int64  `json:"partSize"`
}

// OpenMultipart handles POST /api/uploads/multipart.
func (h *Handler) OpenMultipart(w http.ResponseWriter, r *http.Request) {
	var req openMultipartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	session, err := h.multipart.Create(r.Context(), req.Filename, req.Size, req.ContentType, h.resolvePlan(r, req.Plan))
	if err != nil {
		h.logger.Warn(r.Context(), "multipart open refused", "filename", req.Filename, "error", err)
		writeError(w, err)
		return
	}

	h.logger.Info(r.Context(), "multipart upload opened", "key", session.Key)
	writeJSON(w, http.StatusCreated, openMultipartResponse{
		UploadID: session.UploadID,
		Key:      session.Key,
		PartSize: session.PartSize,
	})
}

type signPartRequest struct {
	UploadID   string `json:"uploadId"`
	Key        string `json:"key"`
	PartNumber int32  `json:"partNumber"`
}

type signPartResponse struct {
	URL string `json:"url"`
}

// SignPart handles POST /api/uploads/multipart/sign.
func (h *Handler) SignPart(w http.ResponseWriter, r *http.Request) {
	var req signPartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	url, err := h.multipart.PartURL(r.Context(), req.UploadID, req.Key, req.PartNumber)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, signPartResponse{URL: url})
}

type completeMultipartRequest struct {
	UploadID string         `json:"uploadId"`
	Key      string         `json:"key"`
	Parts    []completePart `json:"parts"`
}

type completePart struct {
	PartNumber int32  `json:"partNumber"`
	ETag       string `json:"etag"`
}

type completeMultipartResponse struct {
	Key      string `json:"key"`
	Location string `json:"location"`
}

// CompleteMultipart handles POST /api/uploads/multipart/complete.
func (h *Handler) CompleteMultipart(w http.ResponseWriter, r *http.Request) {
	var req completeMultipartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	parts := make([]storage.CompletedPart, 0, len(req.Parts))
	for _, p := range req.Parts {
		parts = append(parts, storage.CompletedPart{PartNumber: p.PartNumber, ETag: p.ETag})
	}

	location, err := h.multipart.Complete(r.Context(), req.UploadID, req.Key, parts)
	if err != nil {
		h.logger.Warn(r.Context(), "multipart completion failed", "key", req.Key, "error", err)
		writeError(w, err)
		return
	}

	h.logger.Info(r.Context(), "multipart upload completed", "key", req.Key)
	writeJSON(w, http.StatusOK, completeMultipartResponse{Key: req.Key, Location: location})
}

type abortMultipartRequest struct {
	UploadID string `json:"uploadId"`
	Key      string `json:"key"`
}

type abortMultipartResponse struct {
	OK bool `json:"ok"`
}

// AbortMultipart handles POST /api/uploads/multipart/abort.
func (h *Handler) AbortMultipart(w http.ResponseWriter, r *http.Request) {
	var req abortMultipartRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, err)
		return
	}

	if err := h.multipart.Abort(r.Context(), req.UploadID, req.Key); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, abortMultipartResponse{OK: true})
}

// StreamBundle handles GET /api/bundles/{manifestKey...}: it loads the
// manifest first, while headers can still change, then commits to a 200 and
// streams the archive. A failure after that point can only truncate the
// stream.
func (h *Handler) StreamBundle(w http.ResponseWriter, r *http.Request) {
	manifestKey := chi.URLParam(r, "*")

	manifest, err := h.bundle.Manifest(r.Context(), manifestKey)
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/zip")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", manifest.ArchiveName()))
	w.WriteHeader(http.StatusOK)

	if err := h.bundle.Stream(r.Context(), manifest, w); err != nil {
		// Status is already on the wire; the truncated archive is the signal.
		h.logger.Error(r.Context(), "bundle stream aborted", "manifest", manifestKey, "error", err)
	}
}

// Healthz is a liveness probe.
func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

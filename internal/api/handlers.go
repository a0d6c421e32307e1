package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"

	"github.com/stefando/uploadpresigner/internal/upload"
)

// maxBodyBytes caps request bodies; a full 10000-part manifest stays well below it.
const maxBodyBytes = 2 << 20

// Handler exposes the upload service over HTTP.
type Handler struct {
	svc *upload.Service
	log logrus.FieldLogger
}

// NewHandler creates a new HTTP handler for the upload service
func NewHandler(svc *upload.Service, log logrus.FieldLogger) *Handler {
	return &Handler{svc: svc, log: log}
}

// Health always answers ok; it never touches the storage backend.
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// decode parses a JSON request body into dst, answering 400 on failure
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body: "+err.Error())
		return false
	}
	return true
}

// fail maps service errors to HTTP responses
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, upload.ErrInvalidInput) {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	fields := logrus.Fields{
		"request_id": middleware.GetReqID(r.Context()),
		"path":       r.URL.Path,
	}
	var upErr *upload.UpstreamError
	if errors.As(err, &upErr) {
		fields["operation"] = upErr.Op
	}
	h.log.WithFields(fields).WithError(err).Error("storage backend call failed")

	writeError(w, http.StatusInternalServerError, err.Error())
}

// Initiate handles POST /initiate
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var req upload.InitiateRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.svc.Initiate(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// PresignPart handles GET /presign-part?key=&uploadId=&partNumber=
func (h *Handler) PresignPart(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	partNumber, err := strconv.Atoi(q.Get("partNumber"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "partNumber must be an integer")
		return
	}

	resp, err := h.svc.PresignPart(r.Context(), q.Get("key"), q.Get("uploadId"), partNumber)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// PresignParts handles POST /presign-parts
func (h *Handler) PresignParts(w http.ResponseWriter, r *http.Request) {
	var req upload.PresignPartsRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.svc.PresignParts(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Complete handles POST /complete
func (h *Handler) Complete(w http.ResponseWriter, r *http.Request) {
	var req upload.CompleteRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.svc.Complete(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// Abort handles DELETE /abort
func (h *Handler) Abort(w http.ResponseWriter, r *http.Request) {
	var req upload.AbortRequest
	if !decode(w, r, &req) {
		return
	}

	resp, err := h.svc.Abort(r.Context(), &req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime"
	"net/http"
	"net/url"

	"github.com/ahmad-alkadri/scrubber/internal/scrub"
	"github.com/ahmad-alkadri/scrubber/internal/services"
	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
)

var errNoFile = errors.New("no file provided")

// HTTPHandler handles HTTP requests and responses
type HTTPHandler struct {
	cleaningService   CleaningService
	uploadExtractor   UploadExtractor
	filenameExtractor FilenameExtractor
	responseFormatter ResponseFormatter
	maxUploadBytes    int64
	logger            zerolog.Logger
}

// NewHTTPHandler creates a new HTTP handler with dependencies
func NewHTTPHandler(
	cleaningService CleaningService,
	uploadExtractor UploadExtractor,
	filenameExtractor FilenameExtractor,
	responseFormatter ResponseFormatter,
	maxUploadBytes int64,
	logger zerolog.Logger,
) *HTTPHandler {
	// Zero lifts the limit.
	if maxUploadBytes <= 0 {
		maxUploadBytes = math.MaxInt64
	}
	return &HTTPHandler{
		cleaningService:   cleaningService,
		uploadExtractor:   uploadExtractor,
		filenameExtractor: filenameExtractor,
		responseFormatter: responseFormatter,
		maxUploadBytes:    maxUploadBytes,
		logger:            logger,
	}
}

// Routes mounts the handlers on a chi router.
func (h *HTTPHandler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(h.loggingMiddleware)

	r.Post("/upload", h.UploadHandler)
	r.Post("/check_pdf_signature", h.SignatureHandler)
	r.Get("/download/{object}", h.DownloadHandler)
	r.Get("/list", h.ListHandler)
	return r
}

func (h *HTTPHandler) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		h.logger.Debug().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Str("written", humanize.IBytes(uint64(ww.BytesWritten()))).
			Msg("Request handled")
	})
}

// UploadHandler cleans one uploaded file and stores the result
func (h *HTTPHandler) UploadHandler(w http.ResponseWriter, r *http.Request) {
	upload, status, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, r, status, err)
		return
	}

	result, err := h.cleaningService.Clean(r.Context(), upload.Filename, upload.Data)
	if err != nil {
		status := http.StatusInternalServerError
		if scrub.IsUserError(err) {
			status = http.StatusBadRequest
		}
		h.writeError(w, r, status, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.responseFormatter.FormatUploadResponse(result))
}

// SignatureHandler reports whether an uploaded PDF is signed
func (h *HTTPHandler) SignatureHandler(w http.ResponseWriter, r *http.Request) {
	upload, status, err := h.readUpload(w, r)
	if err != nil {
		h.writeError(w, r, status, err)
		return
	}

	signed, err := h.cleaningService.CheckSignature(upload.Data)
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, err)
		return
	}

	h.writeJSON(w, http.StatusOK, h.responseFormatter.FormatSignatureResponse(signed))
}

// DownloadHandler sends a cleaned file back as an attachment
func (h *HTTPHandler) DownloadHandler(w http.ResponseWriter, r *http.Request) {
	// chi matches on RawPath when it is set, leaving the param escaped.
	objectName := chi.URLParam(r, "object")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(objectName)
		if err != nil {
			h.writeError(w, r, http.StatusBadRequest, err)
			return
		}
		objectName = unescaped
	}

	download, err := h.cleaningService.Fetch(r.Context(), objectName)
	switch {
	case errors.Is(err, services.ErrObjectNotFound), errors.Is(err, ErrInvalidObjectName):
		h.writeError(w, r, http.StatusNotFound, err)
		return
	case err != nil:
		h.writeError(w, r, http.StatusInternalServerError, err)
		return
	}

	w.Header().Set("Content-Type", download.ContentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": download.Filename}))
	w.WriteHeader(http.StatusOK)
	w.Write(download.Data)
}

// ListHandler provides an endpoint to list all stored cleaned files
func (h *HTTPHandler) ListHandler(w http.ResponseWriter, r *http.Request) {
	objects, err := h.cleaningService.ListCleaned(r.Context())
	if err != nil {
		h.writeError(w, r, http.StatusInternalServerError, fmt.Errorf("error listing cleaned files: %w", err))
		return
	}

	h.writeJSON(w, http.StatusOK, h.responseFormatter.FormatListResponse(objects, len(objects)))
}

// readUpload takes the file from a multipart "file" field, or from a raw
// body named by Content-Disposition. The returned status applies when err
// is non-nil.
func (h *HTTPHandler) readUpload(w http.ResponseWriter, r *http.Request) (services.Upload, int, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, h.maxUploadBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return services.Upload{}, http.StatusRequestEntityTooLarge,
				fmt.Errorf("upload exceeds %s", humanize.IBytes(uint64(tooLarge.Limit)))
		}
		return services.Upload{}, http.StatusBadRequest, fmt.Errorf("error reading request body: %w", err)
	}

	contentType := r.Header.Get("Content-Type")
	if services.IsMultipart(contentType) {
		upload, err := h.uploadExtractor.Extract(body, contentType)
		if err != nil {
			return services.Upload{}, http.StatusBadRequest, err
		}
		return upload, 0, nil
	}

	filename := h.filenameExtractor.Extract(r.Header.Get("Content-Disposition"))
	if filename == "" || len(body) == 0 {
		return services.Upload{}, http.StatusBadRequest, errNoFile
	}
	return services.Upload{Filename: filename, Data: body}, 0, nil
}

func (h *HTTPHandler) writeError(w http.ResponseWriter, r *http.Request, status int, err error) {
	event := h.logger.Warn()
	if status >= http.StatusInternalServerError {
		event = h.logger.Error()
	}
	event.Err(err).
		Str("request_id", middleware.GetReqID(r.Context())).
		Int("status", status).
		Msg("Request failed")

	h.writeJSON(w, status, h.responseFormatter.FormatError(err))
}

func (h *HTTPHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

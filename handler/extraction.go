package handler

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/AnTengye/keydates/extraction"
	"github.com/AnTengye/keydates/middleware"
	"github.com/AnTengye/keydates/model"
	"github.com/AnTengye/keydates/pkg/checksum"
	"github.com/AnTengye/keydates/pkg/logger"
	"github.com/AnTengye/keydates/service"
	"github.com/gin-gonic/gin"
)

// multipartOverhead leaves room for boundaries and part headers on top of
// the file size limit.
const multipartOverhead = 1 << 20

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// ResultArchiver stores a finished extraction result.
type ResultArchiver interface {
	SaveResult(ctx context.Context, checksum string, result *model.ExtractionResult) (string, error)
}

type ExtractionHandler struct {
	documents      *service.DocumentService
	pipeline       *extraction.Pipeline
	exporter       *service.ExportService
	archive        ResultArchiver
	maxUploadBytes int64
}

// NewExtractionHandler wires the upload endpoints. archive may be nil.
func NewExtractionHandler(documents *service.DocumentService, pipeline *extraction.Pipeline, exporter *service.ExportService, archive ResultArchiver, maxUploadBytes int64) *ExtractionHandler {
	return &ExtractionHandler{
		documents:      documents,
		pipeline:       pipeline,
		exporter:       exporter,
		archive:        archive,
		maxUploadBytes: maxUploadBytes,
	}
}

// Register mounts the extraction and health routes, including the /api aliases.
func (h *ExtractionHandler) Register(r gin.IRouter) {
	r.GET("/health", Health)
	r.POST("/extract-dates", h.ExtractDates)
	r.POST("/extract-dates/xlsx", h.ExtractDatesXLSX)

	api := r.Group("/api")
	{
		api.GET("/health", Health)
		api.POST("/document-extraction/dates", h.ExtractDates)
	}
}

// Health reports liveness.
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ExtractDates handles a document upload and returns the key dates as JSON.
func (h *ExtractionHandler) ExtractDates(c *gin.Context) {
	result, err := h.extract(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    result,
	})
}

// ExtractDatesXLSX runs the same extraction and returns an XLSX attachment.
func (h *ExtractionHandler) ExtractDatesXLSX(c *gin.Context) {
	result, err := h.extract(c)
	if err != nil {
		h.writeError(c, err)
		return
	}

	data, err := h.exporter.Workbook(c.Request.Context(), result)
	if err != nil {
		logger.Error(c.Request.Context(), "export.xlsx.failed", "error", err)
		c.JSON(http.StatusInternalServerError, middleware.ErrorBody("Failed to build workbook"))
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, exportFilename(result.SourceFile)))
	c.Data(http.StatusOK, xlsxContentType, data)
}

func (h *ExtractionHandler) extract(c *gin.Context) (*model.ExtractionResult, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes+multipartOverhead)

	header, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, service.ErrFileTooLarge
		}
		return nil, service.ErrMissingFile
	}
	if header.Size > h.maxUploadBytes {
		return nil, service.ErrFileTooLarge
	}

	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrDocumentParse, err)
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", service.ErrDocumentParse, err)
	}

	sum := checksum.Sum(data)
	ctx := logger.WithDocument(c.Request.Context(), header.Filename, sum)
	c.Request = c.Request.WithContext(ctx)

	logger.Info(ctx, "extraction.upload.received",
		"bytes", len(data),
		"content_type", header.Header.Get("Content-Type"),
	)

	doc, err := h.documents.Extract(ctx, data, header.Filename, header.Header.Get("Content-Type"))
	if err != nil {
		return nil, err
	}

	outcome, err := h.pipeline.Run(ctx, *doc)
	if err != nil {
		return nil, err
	}

	result := model.NewExtractionResult(header.Filename, outcome.Items)
	h.archiveResult(ctx, sum, result)

	return result, nil
}

// archiveResult stores result when an archive is configured. Failures are
// logged only.
func (h *ExtractionHandler) archiveResult(ctx context.Context, sum string, result *model.ExtractionResult) {
	if h.archive == nil {
		return
	}

	objectName, err := h.archive.SaveResult(ctx, sum, result)
	if err != nil {
		logger.Warn(ctx, "archive.save_failed", "error", err)
		return
	}
	logger.Info(ctx, "archive.saved", "object", objectName, "items", len(result.Items))
}

func (h *ExtractionHandler) writeError(c *gin.Context, err error) {
	status, message := classifyError(err, h.maxUploadBytes)

	if status >= http.StatusInternalServerError {
		logger.Error(c.Request.Context(), "extraction.failed", "error", err)
	} else {
		logger.Warn(c.Request.Context(), "extraction.rejected", "error", err)
	}

	c.JSON(status, middleware.ErrorBody(message))
}

// classifyError maps a failure to an HTTP status and a client message.
func classifyError(err error, maxUploadBytes int64) (int, string) {
	var upstream *service.UpstreamError

	switch {
	case errors.Is(err, service.ErrFileTooLarge):
		return http.StatusRequestEntityTooLarge, fmt.Sprintf("File exceeds the %s upload limit", formatLimit(maxUploadBytes))
	case errors.Is(err, service.ErrMissingFile):
		return http.StatusBadRequest, "No file provided"
	case errors.Is(err, service.ErrUnsupportedFormat):
		return http.StatusBadRequest, "Only PDF, DOCX and TXT files are supported"
	case errors.Is(err, service.ErrDocumentParse):
		detail := strings.TrimPrefix(err.Error(), service.ErrDocumentParse.Error())
		return http.StatusBadRequest, "Failed to parse document" + detail
	case errors.Is(err, service.ErrAuthMissing):
		return http.StatusInternalServerError, "Model service failed: " + err.Error()
	case errors.As(err, &upstream):
		return http.StatusInternalServerError, fmt.Sprintf("Model service failed: upstream status %d", upstream.StatusCode)
	default:
		return http.StatusInternalServerError, "Model service failed: " + err.Error()
	}
}

func formatLimit(n int64) string {
	if n >= 1<<20 && n%(1<<20) == 0 {
		return fmt.Sprintf("%d MB", n>>20)
	}
	return fmt.Sprintf("%d bytes", n)
}

// exportFilename derives "<name>-key-dates.xlsx" from the uploaded file name.
func exportFilename(sourceFile string) string {
	base := filepath.Base(sourceFile)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	base = strings.Map(func(r rune) rune {
		if r == '"' || r == '\\' || r < 0x20 {
			return '_'
		}
		return r
	}, base)
	if base == "" || base == "." {
		base = "document"
	}
	return base + "-key-dates.xlsx"
}

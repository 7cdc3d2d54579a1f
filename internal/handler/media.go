package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"github.com/gin-gonic/gin"

	"github.com/dak-1306/pyctalk-sub001/internal/config"
	"github.com/dak-1306/pyctalk-sub001/internal/service"
	apperrors "github.com/dak-1306/pyctalk-sub001/pkg/errors"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

// MediaHandler - транспортная граница пайплайна: принимает байты по HTTP,
// кладет их во временный файл и передает путь пайплайну. Сам пайплайн
// сетевых байтов не видит.
type MediaHandler struct {
	mediaService service.MediaService
	cfg          config.MediaConfig
	log          logger.Logger
}

func NewMediaHandler(mediaService service.MediaService, cfg config.MediaConfig, log logger.Logger) *MediaHandler {
	return &MediaHandler{
		mediaService: mediaService,
		cfg:          cfg,
		log:          log,
	}
}

func (h *MediaHandler) Upload(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file is required"})
		return
	}

	// Ранний отказ до записи на диск
	if file.Size > h.cfg.MaxFileSize {
		c.JSON(apperrors.HTTPStatusFromError(apperrors.ErrFileTooLarge),
			gin.H{"error": apperrors.ErrFileTooLarge.Error()})
		return
	}

	tmp, err := os.CreateTemp(h.cfg.TempDir, "upload-*"+filepath.Ext(file.Filename))
	if err != nil {
		h.log.Error("Failed to create temp file", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}
	tmpPath := tmp.Name()
	tmp.Close()
	defer os.Remove(tmpPath)

	if err := c.SaveUploadedFile(file, tmpPath); err != nil {
		h.log.Error("Failed to save upload", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
		return
	}

	asset, err := h.mediaService.Ingest(c.Request.Context(), tmpPath, file.Filename)
	if err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	// Клиент вкладывает этот объект в send_message как attachment
	c.JSON(http.StatusCreated, asset.Attachment())
}

func (h *MediaHandler) Delete(c *gin.Context) {
	hash := c.Param("hash")

	asset, ok := h.mediaService.LookupByHash(hash)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "asset not found"})
		return
	}

	if err := h.mediaService.Delete(c.Request.Context(), asset); err != nil {
		c.JSON(apperrors.HTTPStatusFromError(err), gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Asset deleted"})
}

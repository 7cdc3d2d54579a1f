package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"image"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"image/jpeg"

	// Декодеры для генерации миниатюр
	_ "image/gif"
	_ "image/png"

	"github.com/google/uuid"
	"golang.org/x/image/draw"

	"github.com/dak-1306/pyctalk-sub001/internal/config"
	"github.com/dak-1306/pyctalk-sub001/internal/domain"
	apperrors "github.com/dak-1306/pyctalk-sub001/pkg/errors"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

type MediaService interface {
	// Ingest принимает локальный файл, проверяет, хеширует, классифицирует,
	// копирует в хранилище и для изображений строит миниатюру. Повторная
	// загрузка того же содержимого возвращает уже сохраненный asset.
	Ingest(ctx context.Context, sourcePath, originalName string) (*domain.MediaAsset, error)

	// Classify относит имя файла к категории image/video/audio/file
	Classify(filename string) string

	// Delete удаляет основной файл и миниатюру; повторное удаление - no-op
	Delete(ctx context.Context, asset *domain.MediaAsset) error

	// LookupByHash возвращает asset по хешу содержимого
	LookupByHash(hash string) (*domain.MediaAsset, bool)
}

type mediaService struct {
	cfg config.MediaConfig
	log logger.Logger

	// Ограниченный пул: хеширование и decode изображений не должны
	// вытеснять доставку сообщений
	slots chan struct{}

	mu     sync.Mutex
	byHash map[string]*domain.MediaAsset
}

func NewMediaService(cfg config.MediaConfig, log logger.Logger) MediaService {
	return &mediaService{
		cfg:    cfg,
		log:    log,
		slots:  make(chan struct{}, cfg.Workers),
		byHash: make(map[string]*domain.MediaAsset),
	}
}

func (s *mediaService) Ingest(ctx context.Context, sourcePath, originalName string) (*domain.MediaAsset, error) {
	if s.cfg.UploadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.UploadTimeout)
		defer cancel()
	}

	// Слот пула; таймаут загрузки действует и на ожидание слота
	select {
	case s.slots <- struct{}{}:
		defer func() { <-s.slots }()
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", apperrors.ErrIOFailure, ctx.Err())
	}

	info, err := os.Stat(sourcePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", apperrors.ErrFileNotFound, sourcePath)
		}
		return nil, fmt.Errorf("%w: stat source: %v", apperrors.ErrIOFailure, err)
	}
	if info.Size() > s.cfg.MaxFileSize {
		return nil, fmt.Errorf("%w: %d bytes exceeds limit of %d", apperrors.ErrFileTooLarge, info.Size(), s.cfg.MaxFileSize)
	}

	ext := strings.ToLower(filepath.Ext(originalName))
	if len(s.cfg.AllowedExtensions) > 0 && !containsExt(s.cfg.AllowedExtensions, ext) {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrUnsupportedType, ext)
	}

	hash, err := hashFile(sourcePath)
	if err != nil {
		return nil, fmt.Errorf("%w: hash source: %v", apperrors.ErrIOFailure, err)
	}

	// Дедупликация: то же содержимое уже лежит в хранилище
	if existing, ok := s.LookupByHash(hash); ok {
		if _, err := os.Stat(existing.FilePath); err == nil {
			s.log.Debug("Duplicate upload, reusing stored asset",
				"hash", hash, "path", existing.FilePath)
			dup := *existing
			dup.FileName = originalName
			return &dup, nil
		}
		// Файл пропал с диска - индекс устарел
		s.forgetHash(hash)
	}

	category := s.Classify(originalName)
	destDir := filepath.Join(s.cfg.UploadDir, category)
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: create storage dir: %v", apperrors.ErrIOFailure, err)
	}

	storedName := generateStoredName(ext)
	destPath := filepath.Join(destDir, storedName)

	if err := copyFile(ctx, sourcePath, destPath); err != nil {
		// Недописанный файл не должен остаться в хранилище
		_ = os.Remove(destPath)
		return nil, fmt.Errorf("%w: copy to storage: %v", apperrors.ErrIOFailure, err)
	}

	asset := &domain.MediaAsset{
		ID:         uuid.NewString(),
		Category:   category,
		Hash:       hash,
		FilePath:   destPath,
		FileName:   originalName,
		StoredName: storedName,
		FileSize:   info.Size(),
		MimeType:   guessMimeType(ext),
		CreatedAt:  time.Now(),
	}

	// Миниатюра не критична: при ошибке загрузка все равно успешна
	if category == domain.MessageTypeImage {
		thumbPath, err := s.makeThumbnail(destPath, storedName)
		if err != nil {
			s.log.Warn("Thumbnail generation failed", "error", err, "file", originalName)
		} else {
			asset.ThumbnailPath = thumbPath
		}
	}

	s.mu.Lock()
	s.byHash[hash] = asset
	s.mu.Unlock()

	s.log.Info("Media ingested",
		"category", category, "size", asset.FileSize, "stored", storedName, "hash", hash)
	return asset, nil
}

func (s *mediaService) Classify(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	switch {
	case containsExt(s.cfg.ImageExtensions, ext):
		return domain.MessageTypeImage
	case containsExt(s.cfg.VideoExtensions, ext):
		return domain.MessageTypeVideo
	case containsExt(s.cfg.AudioExtensions, ext):
		return domain.MessageTypeAudio
	default:
		return domain.MessageTypeFile
	}
}

func (s *mediaService) Delete(ctx context.Context, asset *domain.MediaAsset) error {
	if asset == nil {
		return nil
	}

	if err := os.Remove(asset.FilePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("%w: remove asset: %v", apperrors.ErrIOFailure, err)
	}
	if asset.ThumbnailPath != "" {
		if err := os.Remove(asset.ThumbnailPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("%w: remove thumbnail: %v", apperrors.ErrIOFailure, err)
		}
	}

	s.forgetHash(asset.Hash)
	return nil
}

func (s *mediaService) LookupByHash(hash string) (*domain.MediaAsset, bool) {
	s.mu.Lock()
	asset, ok := s.byHash[hash]
	s.mu.Unlock()
	return asset, ok
}

func (s *mediaService) forgetHash(hash string) {
	s.mu.Lock()
	delete(s.byHash, hash)
	s.mu.Unlock()
}

// makeThumbnail декодирует изображение, вписывает его в квадрат
// cfg.ThumbnailSize с сохранением пропорций и сохраняет как JPEG
func (s *mediaService) makeThumbnail(srcPath, storedName string) (string, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return "", err
	}
	defer f.Close()

	src, _, err := image.Decode(f)
	if err != nil {
		return "", fmt.Errorf("decode image: %w", err)
	}

	bounds := src.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w <= 0 || h <= 0 {
		return "", fmt.Errorf("empty image")
	}

	box := s.cfg.ThumbnailSize
	tw, th := w, h
	if w > box || h > box {
		if w >= h {
			tw = box
			th = h * box / w
		} else {
			th = box
			tw = w * box / h
		}
		if tw < 1 {
			tw = 1
		}
		if th < 1 {
			th = 1
		}
	}

	// RGBA нормализует палитровые и grayscale изображения перед кодированием
	dst := image.NewRGBA(image.Rect(0, 0, tw, th))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, bounds, draw.Over, nil)

	if err := os.MkdirAll(s.cfg.ThumbnailDir, 0o755); err != nil {
		return "", err
	}

	base := strings.TrimSuffix(storedName, filepath.Ext(storedName))
	thumbPath := filepath.Join(s.cfg.ThumbnailDir, base+"_thumb.jpg")

	out, err := os.Create(thumbPath)
	if err != nil {
		return "", err
	}
	if err := jpeg.Encode(out, dst, &jpeg.Options{Quality: 80}); err != nil {
		out.Close()
		_ = os.Remove(thumbPath)
		return "", err
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(thumbPath)
		return "", err
	}
	return thumbPath, nil
}

// generateStoredName строит имя файла в хранилище: временной префикс,
// случайный компонент и исходное расширение. Оригинальное имя не
// протекает в хранилище и коллизии исключены.
func generateStoredName(ext string) string {
	return fmt.Sprintf("%s_%s%s",
		time.Now().Format("20060102_150405"),
		strings.ReplaceAll(uuid.NewString(), "-", "")[:12],
		ext,
	)
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// copyFile копирует src в dst, проверяя контекст между блоками,
// чтобы таймаут загрузки обрывал длинные копирования
func copyFile(ctx context.Context, src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	buf := make([]byte, 64*1024)
	for {
		if err := ctx.Err(); err != nil {
			out.Close()
			return err
		}
		n, readErr := in.Read(buf)
		if n > 0 {
			if _, writeErr := out.Write(buf[:n]); writeErr != nil {
				out.Close()
				return writeErr
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			out.Close()
			return readErr
		}
	}
	return out.Close()
}

func guessMimeType(ext string) string {
	if mt := mime.TypeByExtension(ext); mt != "" {
		return mt
	}
	return "application/octet-stream"
}

func containsExt(exts []string, ext string) bool {
	for _, e := range exts {
		if e == ext {
			return true
		}
	}
	return false
}

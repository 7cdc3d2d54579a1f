package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/dak-1306/pyctalk-sub001/internal/config"
	"github.com/dak-1306/pyctalk-sub001/internal/domain"
	apperrors "github.com/dak-1306/pyctalk-sub001/pkg/errors"
	"github.com/dak-1306/pyctalk-sub001/pkg/logger"
)

func newMediaFixture(t *testing.T, maxSize int64) (MediaService, config.MediaConfig) {
	t.Helper()
	cfg := config.MediaConfig{
		UploadDir:       filepath.Join(t.TempDir(), "uploads"),
		ThumbnailDir:    filepath.Join(t.TempDir(), "thumbnails"),
		TempDir:         t.TempDir(),
		MaxFileSize:     maxSize,
		ThumbnailSize:   64,
		Workers:         2,
		UploadTimeout:   10 * time.Second,
		ImageExtensions: []string{".jpg", ".jpeg", ".png", ".gif"},
		VideoExtensions: []string{".mp4", ".avi"},
		AudioExtensions: []string{".mp3", ".wav"},
	}
	return NewMediaService(cfg, logger.New("error")), cfg
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

// managedFileCount считает файлы во всех управляемых директориях
func managedFileCount(t *testing.T, cfg config.MediaConfig) int {
	t.Helper()
	count := 0
	for _, dir := range []string{cfg.UploadDir, cfg.ThumbnailDir} {
		_ = filepath.Walk(dir, func(path string, info os.FileInfo, err error) error {
			if err == nil && !info.IsDir() {
				count++
			}
			return nil
		})
	}
	return count
}

func TestClassify(t *testing.T) {
	svc, _ := newMediaFixture(t, 1<<20)

	cases := map[string]string{
		"photo.JPG":    domain.MessageTypeImage,
		"clip.mp4":     domain.MessageTypeVideo,
		"song.mp3":     domain.MessageTypeAudio,
		"report.pdf":   domain.MessageTypeFile,
		"no-extension": domain.MessageTypeFile,
	}
	for name, want := range cases {
		if got := svc.Classify(name); got != want {
			t.Errorf("Classify(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestIngestRejectsOversizedFile(t *testing.T) {
	svc, cfg := newMediaFixture(t, 16)
	src := writeTempFile(t, "big.bin", bytes.Repeat([]byte("x"), 64))

	_, err := svc.Ingest(context.Background(), src, "big.bin")
	if !errors.Is(err, apperrors.ErrFileTooLarge) {
		t.Fatalf("err = %v, want ErrFileTooLarge", err)
	}
	if n := managedFileCount(t, cfg); n != 0 {
		t.Fatalf("oversized upload left %d files in managed dirs", n)
	}
}

func TestIngestMissingSource(t *testing.T) {
	svc, _ := newMediaFixture(t, 1<<20)

	_, err := svc.Ingest(context.Background(), filepath.Join(t.TempDir(), "nope.txt"), "nope.txt")
	if !errors.Is(err, apperrors.ErrFileNotFound) {
		t.Fatalf("err = %v, want ErrFileNotFound", err)
	}
}

func TestIngestAllowListRejectsUnknownExtension(t *testing.T) {
	svc, cfg := newMediaFixture(t, 1<<20)
	cfg.AllowedExtensions = []string{".png", ".txt"}
	svc = NewMediaService(cfg, logger.New("error"))

	src := writeTempFile(t, "tool.exe", []byte("MZ"))
	_, err := svc.Ingest(context.Background(), src, "tool.exe")
	if !errors.Is(err, apperrors.ErrUnsupportedType) {
		t.Fatalf("err = %v, want ErrUnsupportedType", err)
	}
}

func TestIngestGenericFile(t *testing.T) {
	svc, cfg := newMediaFixture(t, 1<<20)

	content := []byte("quarterly report contents")
	src := writeTempFile(t, "report.txt", content)

	asset, err := svc.Ingest(context.Background(), src, "report.txt")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if asset.Category != domain.MessageTypeFile {
		t.Errorf("category = %q, want file", asset.Category)
	}
	if asset.FileName != "report.txt" {
		t.Errorf("original name = %q", asset.FileName)
	}
	if asset.FileSize != int64(len(content)) {
		t.Errorf("size = %d, want %d", asset.FileSize, len(content))
	}

	sum := sha256.Sum256(content)
	if asset.Hash != hex.EncodeToString(sum[:]) {
		t.Errorf("hash mismatch: %q", asset.Hash)
	}

	// Имя в хранилище не раскрывает оригинальное
	if asset.StoredName == "report.txt" {
		t.Error("stored name leaks the original filename")
	}
	if filepath.Ext(asset.StoredName) != ".txt" {
		t.Errorf("stored name lost the extension: %q", asset.StoredName)
	}

	stored, err := os.ReadFile(asset.FilePath)
	if err != nil {
		t.Fatalf("stored file unreadable: %v", err)
	}
	if !bytes.Equal(stored, content) {
		t.Error("stored bytes differ from source")
	}

	if !strings.HasPrefix(asset.FilePath, cfg.UploadDir) {
		t.Errorf("asset stored outside upload dir: %q", asset.FilePath)
	}
	if asset.ThumbnailPath != "" {
		t.Error("generic file must not get a thumbnail")
	}
}

func TestIngestDeduplicatesByHash(t *testing.T) {
	svc, cfg := newMediaFixture(t, 1<<20)

	content := []byte("identical bytes")
	first := writeTempFile(t, "a.txt", content)
	second := writeTempFile(t, "b.txt", content)

	assetA, err := svc.Ingest(context.Background(), first, "a.txt")
	if err != nil {
		t.Fatalf("first ingest failed: %v", err)
	}
	assetB, err := svc.Ingest(context.Background(), second, "b.txt")
	if err != nil {
		t.Fatalf("second ingest failed: %v", err)
	}

	if assetB.FilePath != assetA.FilePath {
		t.Error("identical content stored twice")
	}
	if assetB.FileName != "b.txt" {
		t.Errorf("dedup lost the caller's original name: %q", assetB.FileName)
	}
	if n := managedFileCount(t, cfg); n != 1 {
		t.Fatalf("managed dirs hold %d files, want 1", n)
	}
}

func writeNoisePNG(t *testing.T, w, h int) (string, int64) {
	t.Helper()
	rng := rand.New(rand.NewSource(42))
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{
				R: uint8(rng.Intn(256)),
				G: uint8(rng.Intn(256)),
				B: uint8(rng.Intn(256)),
				A: 255,
			})
		}
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode test image: %v", err)
	}
	path := writeTempFile(t, "photo.png", buf.Bytes())
	return path, int64(buf.Len())
}

func TestIngestImageProducesSmallerThumbnail(t *testing.T) {
	svc, cfg := newMediaFixture(t, 32<<20)

	src, srcSize := writeNoisePNG(t, 800, 600)
	asset, err := svc.Ingest(context.Background(), src, "photo.png")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if asset.Category != domain.MessageTypeImage {
		t.Fatalf("category = %q, want image", asset.Category)
	}
	if asset.ThumbnailPath == "" {
		t.Fatal("image ingest produced no thumbnail")
	}

	info, err := os.Stat(asset.ThumbnailPath)
	if err != nil {
		t.Fatalf("thumbnail missing on disk: %v", err)
	}
	if info.Size() >= srcSize {
		t.Fatalf("thumbnail (%d bytes) not smaller than source (%d bytes)", info.Size(), srcSize)
	}
	if !strings.HasPrefix(asset.ThumbnailPath, cfg.ThumbnailDir) {
		t.Errorf("thumbnail stored outside its dir: %q", asset.ThumbnailPath)
	}
}

func TestIngestCorruptImageKeepsAsset(t *testing.T) {
	svc, _ := newMediaFixture(t, 1<<20)

	// Расширение изображения, но содержимое не декодируется
	src := writeTempFile(t, "broken.png", []byte("not a real png"))
	asset, err := svc.Ingest(context.Background(), src, "broken.png")
	if err != nil {
		t.Fatalf("thumbnail failure must not fail ingestion: %v", err)
	}
	if asset.ThumbnailPath != "" {
		t.Error("corrupt image reported a thumbnail path")
	}
	if _, err := os.Stat(asset.FilePath); err != nil {
		t.Fatalf("primary file missing after thumbnail failure: %v", err)
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	svc, cfg := newMediaFixture(t, 32<<20)

	src, _ := writeNoisePNG(t, 400, 300)
	asset, err := svc.Ingest(context.Background(), src, "photo.png")
	if err != nil {
		t.Fatalf("Ingest failed: %v", err)
	}

	if err := svc.Delete(context.Background(), asset); err != nil {
		t.Fatalf("first Delete failed: %v", err)
	}
	if n := managedFileCount(t, cfg); n != 0 {
		t.Fatalf("%d files left after delete", n)
	}

	// Повторное удаление не ошибка
	if err := svc.Delete(context.Background(), asset); err != nil {
		t.Fatalf("second Delete failed: %v", err)
	}

	if _, ok := svc.LookupByHash(asset.Hash); ok {
		t.Error("hash index still holds the deleted asset")
	}
}

func TestIngestHonorsUploadTimeout(t *testing.T) {
	svc, _ := newMediaFixture(t, 1<<20)

	src := writeTempFile(t, "note.txt", []byte("hello"))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Ingest(ctx, src, "note.txt")
	if err == nil {
		t.Fatal("Ingest succeeded with canceled context")
	}
}

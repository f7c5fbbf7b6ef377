package service

import (
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/gema-skills-api/internal/dto"
	"github.com/noah-isme/gema-skills-api/internal/observability"
)

var (
	// ErrArtifactMissing indicates the request carried no file.
	ErrArtifactMissing = errors.New("artifact file is required")
	// ErrArtifactTooLarge indicates the payload exceeded the configured limit.
	ErrArtifactTooLarge = errors.New("artifact exceeds maximum allowed size")
	// ErrArtifactTypeNotAllowed indicates the sniffed MIME type is not accepted for projects.
	ErrArtifactTypeNotAllowed = errors.New("artifact type not allowed")
	// ErrArtifactScanFailed indicates the archive could not be inspected safely.
	ErrArtifactScanFailed = errors.New("artifact scanning failed")
)

// zipExpansionLimit bounds the uncompressed size of archives relative to the upload limit.
const zipExpansionLimit = 20

var artifactTypes = map[string]string{
	"application/pdf": "raw",
	"application/zip": "raw",
	"text/plain":      "raw",
	"image/png":       "image",
	"image/jpeg":      "image",
}

// ArtifactStorage persists an uploaded artifact and returns its file reference.
type ArtifactStorage interface {
	Store(ctx context.Context, owner, name, resourceType string, reader io.Reader) (string, error)
}

// ArtifactService turns an uploaded project file into a file reference usable for round 3.
type ArtifactService interface {
	Upload(ctx context.Context, actor Actor, file *multipart.FileHeader) (dto.ArtifactResponse, error)
}

type artifactService struct {
	storage ArtifactStorage
	maxSize int64
	logger  zerolog.Logger
	tracer  trace.Tracer
}

// NewArtifactService constructs an artifact service.
func NewArtifactService(storage ArtifactStorage, maxSizeMB int, logger zerolog.Logger) ArtifactService {
	if maxSizeMB <= 0 {
		maxSizeMB = 10
	}
	return &artifactService{
		storage: storage,
		maxSize: int64(maxSizeMB) * 1024 * 1024,
		logger:  logger.With().Str("component", "artifact_service").Logger(),
		tracer:  otel.Tracer("github.com/noah-isme/gema-skills-api/internal/service/artifact"),
	}
}

func (s *artifactService) Upload(ctx context.Context, actor Actor, file *multipart.FileHeader) (dto.ArtifactResponse, error) {
	ctx, span := s.tracer.Start(ctx, "skills.artifact.upload", trace.WithAttributes(
		attribute.Int64("artifact.max_bytes", s.maxSize),
		attribute.Int64("actor.id", int64(actor.ID)),
	))
	defer span.End()

	start := time.Now()
	defer func() {
		observability.ArtifactLatency().Observe(time.Since(start).Seconds())
	}()

	payload, err := s.read(file)
	if err != nil {
		s.reject(span, err)
		return dto.ArtifactResponse{}, err
	}

	detected := mimetype.Detect(payload)
	mimeType, resourceType, ok := allowedArtifactType(detected)
	span.SetAttributes(attribute.String("artifact.detected_mime", detected.String()))
	if !ok {
		s.reject(span, ErrArtifactTypeNotAllowed)
		return dto.ArtifactResponse{}, ErrArtifactTypeNotAllowed
	}

	if mimeType == "application/zip" {
		if err := s.scanArchive(payload); err != nil {
			s.reject(span, err)
			return dto.ArtifactResponse{}, err
		}
	}

	checksum := sha256.Sum256(payload)
	name := artifactFileName(file.Filename, detected.Extension())
	owner := fmt.Sprintf("student-%d", actor.ID)

	fileRef, err := s.storage.Store(ctx, owner, name, resourceType, bytes.NewReader(payload))
	if err != nil {
		observability.ArtifactUploads().WithLabelValues("storage_failed").Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, "storage failed")
		return dto.ArtifactResponse{}, err
	}

	observability.ArtifactUploads().WithLabelValues("stored").Inc()
	s.logger.Info().
		Uint("actor_id", actor.ID).
		Str("mime_type", mimeType).
		Int("size", len(payload)).
		Msg("project artifact stored")

	return dto.ArtifactResponse{
		FileRef:  fileRef,
		FileName: name,
		MimeType: mimeType,
		Size:     int64(len(payload)),
		Checksum: hex.EncodeToString(checksum[:]),
	}, nil
}

func (s *artifactService) read(file *multipart.FileHeader) ([]byte, error) {
	if file == nil {
		return nil, ErrArtifactMissing
	}
	if file.Size > s.maxSize {
		return nil, ErrArtifactTooLarge
	}

	handle, err := file.Open()
	if err != nil {
		return nil, err
	}
	defer handle.Close()

	buf := bytes.NewBuffer(nil)
	if _, err := io.Copy(buf, io.LimitReader(handle, s.maxSize+1)); err != nil {
		return nil, err
	}
	if int64(buf.Len()) > s.maxSize {
		return nil, ErrArtifactTooLarge
	}
	if buf.Len() == 0 {
		return nil, ErrArtifactMissing
	}
	return buf.Bytes(), nil
}

func (s *artifactService) reject(span trace.Span, err error) {
	reason := "invalid"
	switch {
	case errors.Is(err, ErrArtifactTooLarge):
		reason = "size"
	case errors.Is(err, ErrArtifactTypeNotAllowed):
		reason = "type"
	case errors.Is(err, ErrArtifactScanFailed):
		reason = "scan"
	}
	observability.ArtifactUploads().WithLabelValues("rejected_" + reason).Inc()
	span.RecordError(err)
	span.SetStatus(codes.Error, "artifact rejected")
}

func (s *artifactService) scanArchive(payload []byte) error {
	reader, err := zip.NewReader(bytes.NewReader(payload), int64(len(payload)))
	if err != nil {
		return ErrArtifactScanFailed
	}

	var total uint64
	for _, entry := range reader.File {
		total += entry.UncompressedSize64
		if total > uint64(s.maxSize*zipExpansionLimit) {
			return fmt.Errorf("archive expands beyond limit: %w", ErrArtifactScanFailed)
		}
	}
	return nil
}

func allowedArtifactType(detected *mimetype.MIME) (string, string, bool) {
	base := strings.ToLower(strings.TrimSpace(strings.Split(detected.String(), ";")[0]))
	resourceType, ok := artifactTypes[base]
	return base, resourceType, ok
}

func artifactFileName(name, detectedExt string) string {
	base := strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
	base = strings.ToLower(base)
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			return r
		}
		return '-'
	}, base)
	base = strings.Trim(base, "-")
	if base == "" {
		base = "artifact"
	}

	ext := strings.ToLower(detectedExt)
	if ext == "" {
		ext = strings.ToLower(filepath.Ext(name))
	}
	if ext == "" {
		ext = ".bin"
	}
	return base + ext
}

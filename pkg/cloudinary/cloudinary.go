package cloudinary

import (
	"context"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/cloudinary/cloudinary-go/v2"
	"github.com/cloudinary/cloudinary-go/v2/api/uploader"
	"github.com/rs/zerolog"
)

// Config contains credentials required to talk to Cloudinary.
type Config struct {
	CloudName string
	APIKey    string
	APISecret string
	Folder    string
}

// Configured reports whether every credential is present.
func (c Config) Configured() bool {
	return c.CloudName != "" && c.APIKey != "" && c.APISecret != ""
}

// Storage keeps project artifacts in Cloudinary and hands back their secure URL as file reference.
type Storage struct {
	client *cloudinary.Cloudinary
	folder string
	logger zerolog.Logger
}

// New constructs a Cloudinary storage instance.
func New(cfg Config, logger zerolog.Logger) (*Storage, error) {
	if !cfg.Configured() {
		return nil, fmt.Errorf("cloudinary credentials must be provided")
	}

	cld, err := cloudinary.NewFromParams(cfg.CloudName, cfg.APIKey, cfg.APISecret)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize cloudinary: %w", err)
	}

	return &Storage{
		client: cld,
		folder: strings.Trim(cfg.Folder, "/"),
		logger: logger.With().Str("component", "artifact_storage").Logger(),
	}, nil
}

// Store uploads an artifact below owner's folder. resourceType is "image" or "raw".
func (s *Storage) Store(ctx context.Context, owner, name, resourceType string, reader io.Reader) (string, error) {
	if resourceType == "" {
		resourceType = "raw"
	}

	params := uploader.UploadParams{
		Folder:       path.Join(s.folder, owner),
		PublicID:     buildPublicID(name, resourceType),
		ResourceType: resourceType,
	}

	result, err := s.client.Upload.Upload(ctx, reader, params)
	if err != nil {
		return "", fmt.Errorf("failed to upload artifact: %w", err)
	}

	s.logger.Info().
		Str("public_id", result.PublicID).
		Str("owner", owner).
		Msg("artifact stored")

	return result.SecureURL, nil
}

// buildPublicID keeps the extension for raw assets, which Cloudinary does not infer.
func buildPublicID(name, resourceType string) string {
	ext := strings.ToLower(filepath.Ext(name))
	base := strings.TrimSuffix(name, filepath.Ext(name))
	base = strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		return '-'
	}, base)

	base = strings.Trim(base, "-")
	if base == "" {
		base = "artifact"
	}

	id := fmt.Sprintf("%s-%d", base, time.Now().UnixNano())
	if resourceType == "raw" {
		id += ext
	}
	return id
}

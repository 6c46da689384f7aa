package jobs

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"rankrent/internal/pkg/geoip"
)

const (
	// GeoLite database is updated weekly by MaxMind
	GeoLiteUpdateInterval = 7 * 24 * time.Hour
	// MaxMind download URL template
	MaxMindDownloadURL = "https://download.maxmind.com/app/geoip_download?edition_id=GeoLite2-City&license_key=%s&suffix=tar.gz"
)

// GeoLiteUpdaterJob keeps the GeoLite database fresh. With a license key it
// downloads a new copy weekly; either way it reloads the resolver when the
// file on disk changes.
type GeoLiteUpdaterJob struct {
	resolver    *geoip.Resolver
	licenseKey  string
	downloadURL string
	client      *http.Client
	logger      *slog.Logger
	loadedAt    time.Time
}

func NewGeoLiteUpdaterJob(resolver *geoip.Resolver, licenseKey string, logger *slog.Logger) *GeoLiteUpdaterJob {
	j := &GeoLiteUpdaterJob{
		resolver:    resolver,
		licenseKey:  licenseKey,
		downloadURL: MaxMindDownloadURL,
		client:      &http.Client{Timeout: 2 * time.Minute},
		logger:      logger,
	}
	j.loadedAt = j.modTime()
	return j
}

func (j *GeoLiteUpdaterJob) modTime() time.Time {
	if j.resolver.Path() == "" {
		return time.Time{}
	}
	info, err := os.Stat(j.resolver.Path())
	if err != nil {
		return time.Time{}
	}
	return info.ModTime()
}

// Run downloads when the file is older than GeoLiteUpdateInterval and reloads
// the resolver when the file changed since it was last loaded.
func (j *GeoLiteUpdaterJob) Run(ctx context.Context) error {
	if j.resolver.Path() == "" {
		return nil
	}

	if j.licenseKey != "" && time.Since(j.modTime()) >= GeoLiteUpdateInterval {
		j.logger.Info("Starting GeoLite database update", slog.Time("last_update", j.modTime()))
		if err := j.download(ctx); err != nil {
			j.logger.Error("Failed to update GeoLite database", slog.Any("error", err))
			return err
		}
	}

	mod := j.modTime()
	if mod.IsZero() || mod.Equal(j.loadedAt) {
		return nil
	}
	if err := j.resolver.Reload(); err != nil {
		return fmt.Errorf("failed to reload GeoLite database: %w", err)
	}
	j.loadedAt = mod
	j.logger.Info("GeoLite database reloaded", slog.String("path", j.resolver.Path()))
	return nil
}

// download fetches the archive and replaces the database file atomically.
func (j *GeoLiteUpdaterJob) download(ctx context.Context) error {
	dest := j.resolver.Path()
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	url := j.downloadURL
	if strings.Contains(url, "%s") {
		url = fmt.Sprintf(url, j.licenseKey)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := j.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to download GeoLite database: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download failed with status: %d", resp.StatusCode)
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), "geolite-*.mmdb")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := extractMMDB(resp.Body, tmp); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to extract database: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// extractMMDB copies the first .mmdb entry of a tar.gz stream into out.
func extractMMDB(archive io.Reader, out io.Writer) error {
	gzr, err := gzip.NewReader(archive)
	if err != nil {
		return fmt.Errorf("failed to create gzip reader: %w", err)
	}
	defer gzr.Close()

	tr := tar.NewReader(gzr)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("failed to read tar: %w", err)
		}
		if strings.HasSuffix(header.Name, ".mmdb") {
			if _, err := io.Copy(out, tr); err != nil {
				return fmt.Errorf("failed to extract file: %w", err)
			}
			return nil
		}
	}
	return fmt.Errorf("no .mmdb file found in archive")
}

package install

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/mholt/archives"
	"github.com/sfarHD14/cmdstanpy/internal/fileutil"
	"github.com/sfarHD14/cmdstanpy/internal/logger"
)

// Options configures an installation.
type Options struct {
	// Version to install. Empty means the latest release.
	Version string
	// Dir is the directory releases are unpacked into. A release lands
	// in Dir/cmdstan-<version>.
	Dir string
	// Overwrite replaces an existing installation of the same version.
	Overwrite bool
}

// Result describes a finished installation.
type Result struct {
	Version string
	// Path is the unpacked release directory.
	Path string
	// AlreadyInstalled is true when the version was present and
	// Overwrite was not set.
	AlreadyInstalled bool
}

// Install downloads and unpacks a CmdStan release.
func Install(ctx context.Context, client *Client, opts Options) (*Result, error) {
	version := opts.Version
	if version == "" {
		latest, err := client.LatestVersion(ctx)
		if err != nil {
			return nil, err
		}
		version = latest
	}

	targetDir := filepath.Join(opts.Dir, "cmdstan-"+VersionFromTag(NormalizeVersionTag(version)))
	if fileutil.IsDir(targetDir) && !opts.Overwrite {
		return &Result{Version: version, Path: targetDir, AlreadyInstalled: true}, nil
	}

	release, err := client.GetRelease(ctx, version)
	if err != nil {
		return nil, err
	}
	asset, err := FindArchive(release)
	if err != nil {
		return nil, &RetrieveError{Version: version, Err: err}
	}

	logger.Info(ctx, "Downloading CmdStan", "version", version, "asset", asset.Name, "size", asset.Size)

	archivePath, err := client.Download(ctx, asset)
	if err != nil {
		return nil, &RetrieveError{Version: version, Err: err}
	}
	defer func() { _ = os.Remove(archivePath) }()

	if err := os.MkdirAll(opts.Dir, 0750); err != nil {
		return nil, fmt.Errorf("create install dir: %w", err)
	}
	if opts.Overwrite {
		_ = os.RemoveAll(targetDir)
	}

	if err := extractArchive(ctx, archivePath, opts.Dir); err != nil {
		return nil, fmt.Errorf("failed to extract archive: %w", err)
	}

	logger.Info(ctx, "CmdStan installed", "version", version, "path", targetDir)
	return &Result{Version: version, Path: targetDir}, nil
}

// Download fetches a release asset into a temporary file and returns
// its path. The caller removes the file when done.
func (c *Client) Download(ctx context.Context, asset *Asset) (string, error) {
	tmp, err := os.CreateTemp("", "cmdstan-*-"+asset.Name)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	path := tmp.Name()
	_ = tmp.Close()

	resp, err := c.client.R().SetContext(ctx).SetOutput(path).
		Get(asset.BrowserDownloadURL)
	if err != nil {
		_ = os.Remove(path)
		return "", err
	}
	if statusErr := classifyResponse(resp); statusErr != nil {
		_ = os.Remove(path)
		return "", statusErr
	}

	if asset.Size > 0 {
		info, err := os.Stat(path)
		if err != nil {
			_ = os.Remove(path)
			return "", err
		}
		if info.Size() != asset.Size {
			_ = os.Remove(path)
			return "", fmt.Errorf("downloaded %d bytes, expected %d", info.Size(), asset.Size)
		}
	}

	return path, nil
}

// extractArchive extracts a tarball to the destination directory.
func extractArchive(ctx context.Context, archivePath, destDir string) error {
	srcFile, err := os.Open(archivePath) //nolint:gosec
	if err != nil {
		return fmt.Errorf("failed to open archive: %w", err)
	}
	defer func() { _ = srcFile.Close() }()

	format, _, err := archives.Identify(ctx, filepath.Base(archivePath), srcFile)
	if err != nil {
		return fmt.Errorf("failed to identify archive format: %w", err)
	}

	if _, err := srcFile.Seek(0, io.SeekStart); err != nil {
		return fmt.Errorf("failed to reset file position: %w", err)
	}

	extractor, ok := format.(archives.Extractor)
	if !ok {
		return fmt.Errorf("archive format does not support extraction")
	}

	return extractor.Extract(ctx, srcFile, func(_ context.Context, f archives.FileInfo) error {
		name := filepath.Clean(f.NameInArchive)
		if strings.HasPrefix(name, "..") {
			return fmt.Errorf("invalid path in archive: %s", f.NameInArchive)
		}
		targetPath := filepath.Join(destDir, name)

		if f.IsDir() {
			return os.MkdirAll(targetPath, 0750)
		}
		if err := os.MkdirAll(filepath.Dir(targetPath), 0750); err != nil {
			return err
		}

		src, err := f.Open()
		if err != nil {
			return err
		}

		dst, err := os.OpenFile(targetPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, f.Mode()) //nolint:gosec
		if err != nil {
			_ = src.Close()
			return err
		}

		_, copyErr := io.Copy(dst, src) //nolint:gosec
		_ = src.Close()
		_ = dst.Close()
		return copyErr
	})
}

package extract

import (
	"archive/zip"
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	appErr "github.com/rawsence/procheck/internal/pkg/errors"
)

// DocKind tags which extraction strategies apply to an entry.
type DocKind string

const (
	KindPDF      DocKind = "pdf"
	KindMarkdown DocKind = "markdown"
)

var acceptedExtensions = map[string]DocKind{
	".pdf": KindPDF,
	".md":  KindMarkdown,
}

var zipMagic = []byte{'P', 'K', 0x03, 0x04}

// Entry is one accepted document pulled out of an upload, staged on disk
// under the upload's staging directory.
type Entry struct {
	Filename   string
	SafeName   string
	StagedPath string
	Data       []byte
	Kind       DocKind
}

// Unpack takes the raw upload bytes and produces staged document entries.
// A zip payload is walked entry by entry; anything else is treated as a
// single document named by the upload filename. Entries whose extension
// is not accepted, and directory markers, are skipped. A malformed
// archive or zero accepted entries is terminal for the upload.
func Unpack(ctx context.Context, raw []byte, filename, stagingDir string) ([]Entry, error) {
	logger := logutil.GetLogger(ctx)
	if err := os.MkdirAll(stagingDir, 0o755); err != nil {
		return nil, fmt.Errorf("create staging dir: %w", err)
	}

	if !bytes.HasPrefix(raw, zipMagic) {
		kind, ok := acceptedExtensions[strings.ToLower(filepath.Ext(filename))]
		if !ok {
			return nil, fmt.Errorf("%w: unsupported document type %q", appErr.ErrNoDocuments, filepath.Ext(filename))
		}
		entry, err := stageEntry(stagingDir, filename, raw, kind)
		if err != nil {
			return nil, err
		}
		return []Entry{entry}, nil
	}

	reader, err := zip.NewReader(bytes.NewReader(raw), int64(len(raw)))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrExtraction, err)
	}

	var entries []Entry
	for _, file := range reader.File {
		// Checkpoint per entry so a pending cancel lands between reads.
		if err := ctx.Err(); err != nil {
			return nil, appErr.ErrCancelled
		}
		if file.FileInfo().IsDir() {
			continue
		}
		kind, ok := acceptedExtensions[strings.ToLower(filepath.Ext(file.Name))]
		if !ok {
			logger.Debug("skipping archive entry", zap.String("name", file.Name))
			continue
		}
		opened, err := file.Open()
		if err != nil {
			return nil, fmt.Errorf("%w: open %s: %v", appErr.ErrExtraction, file.Name, err)
		}
		data, err := io.ReadAll(opened)
		_ = opened.Close()
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", appErr.ErrExtraction, file.Name, err)
		}
		entry, err := stageEntry(stagingDir, file.Name, data, kind)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
		logger.Debug("staged archive entry",
			zap.String("name", file.Name),
			zap.String("staged", entry.StagedPath),
			zap.Int("size", len(data)),
		)
	}
	if len(entries) == 0 {
		return nil, appErr.ErrNoDocuments
	}
	logger.Info("archive unpacked", zap.Int("documents", len(entries)))
	return entries, nil
}

// stageEntry writes one document under the staging dir. The stored name
// is reduced to its base name with separators replaced, so hostile entry
// names cannot escape the staging area.
func stageEntry(stagingDir, name string, data []byte, kind DocKind) (Entry, error) {
	safe := SanitizeName(name)
	stagedPath := filepath.Join(stagingDir, safe)
	if err := os.WriteFile(stagedPath, data, 0o644); err != nil {
		return Entry{}, fmt.Errorf("stage %s: %w", safe, err)
	}
	return Entry{
		Filename:   name,
		SafeName:   safe,
		StagedPath: stagedPath,
		Data:       data,
		Kind:       kind,
	}, nil
}

func SanitizeName(name string) string {
	base := filepath.Base(filepath.FromSlash(name))
	base = strings.ReplaceAll(base, "/", "_")
	base = strings.ReplaceAll(base, "\\", "_")
	if base == "" || base == "." || base == ".." {
		base = "document"
	}
	return base
}

// CleanupStaging removes one upload's staging directory with everything
// staged under it. Called from the pipeline's guaranteed cleanup path.
func CleanupStaging(ctx context.Context, stagingDir string) {
	if stagingDir == "" {
		return
	}
	if err := os.RemoveAll(stagingDir); err != nil {
		logutil.GetLogger(ctx).Warn("staging cleanup failed", zap.String("dir", stagingDir), zap.Error(err))
	}
}

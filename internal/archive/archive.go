// Package archive packs stored sheets into a compressed tar backup and
// reads them back. A backup holds a JSON manifest and one text file per
// sheet under a single top-level directory.
package archive

import (
	"strings"
	"time"

	"github.com/FocuswithJustin/LyricScope/core/errors"
)

// ManifestVersion is written to every backup. Read rejects newer versions.
const ManifestVersion = 1

const (
	rootDir      = "lyricscope/"
	manifestName = rootDir + "manifest.json"
	sheetDir     = rootDir + "sheets/"
)

// Compression selects the stream wrapped around the tar archive.
type Compression string

const (
	CompressionXZ   Compression = "xz"
	CompressionGzip Compression = "gzip"
)

// CompressionFor picks the compression from a backup file name:
// .tar.xz or .txz for xz, .tar.gz or .tgz for gzip.
func CompressionFor(path string) (Compression, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.xz"), strings.HasSuffix(lower, ".txz"):
		return CompressionXZ, nil
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return CompressionGzip, nil
	}
	return "", errors.NewUnsupported("backup format", path)
}

// Manifest describes the sheets in a backup.
type Manifest struct {
	Version int       `json:"version"`
	Created time.Time `json:"created"`
	Sheets  []Entry   `json:"sheets"`
}

// Entry is one sheet's metadata. File names the tar entry holding its body.
type Entry struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Digest    string    `json:"digest"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	File      string    `json:"file"`
}

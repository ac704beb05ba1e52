package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/LyricScope/core/errors"
	"github.com/FocuswithJustin/LyricScope/internal/store"
)

// Write streams a backup of sheets to w. Entries carry the backup time so
// the archive does not depend on the local clock at restore time.
func Write(w io.Writer, c Compression, sheets []store.Sheet, now time.Time) error {
	var (
		zw  io.WriteCloser
		err error
	)
	switch c {
	case CompressionXZ:
		zw, err = xz.NewWriter(w)
		if err != nil {
			return fmt.Errorf("xz writer: %w", err)
		}
	case CompressionGzip:
		zw = gzip.NewWriter(w)
	default:
		return errors.NewUnsupported("backup compression", string(c))
	}

	tw := tar.NewWriter(zw)
	if err := writeEntries(tw, sheets, now.UTC()); err != nil {
		return err
	}
	if err := tw.Close(); err != nil {
		return fmt.Errorf("failed to finish archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("failed to flush %s stream: %w", c, err)
	}
	return nil
}

func writeEntries(tw *tar.Writer, sheets []store.Sheet, now time.Time) error {
	m := Manifest{Version: ManifestVersion, Created: now, Sheets: make([]Entry, 0, len(sheets))}
	for _, sh := range sheets {
		m.Sheets = append(m.Sheets, Entry{
			ID:        sh.ID,
			Title:     sh.Title,
			Digest:    sh.Digest,
			CreatedAt: sh.CreatedAt,
			UpdatedAt: sh.UpdatedAt,
			File:      sheetDir + sh.ID + ".txt",
		})
	}
	manifest, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode manifest: %w", err)
	}

	if err := tw.WriteHeader(&tar.Header{Name: rootDir, Typeflag: tar.TypeDir, Mode: 0755, ModTime: now}); err != nil {
		return err
	}
	if err := writeFile(tw, manifestName, manifest, now); err != nil {
		return err
	}
	if err := tw.WriteHeader(&tar.Header{Name: sheetDir, Typeflag: tar.TypeDir, Mode: 0755, ModTime: now}); err != nil {
		return err
	}
	for i, sh := range sheets {
		if err := writeFile(tw, m.Sheets[i].File, []byte(sh.Body), sh.UpdatedAt); err != nil {
			return err
		}
	}
	return nil
}

func writeFile(tw *tar.Writer, name string, data []byte, mod time.Time) error {
	hdr := &tar.Header{
		Name:     name,
		Typeflag: tar.TypeReg,
		Mode:     0644,
		Size:     int64(len(data)),
		ModTime:  mod,
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	if _, err := tw.Write(data); err != nil {
		return fmt.Errorf("failed to write %s: %w", name, err)
	}
	return nil
}

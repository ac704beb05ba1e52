package archive

import (
	"archive/tar"
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ulikunitz/xz"

	"github.com/FocuswithJustin/LyricScope/core/digest"
	"github.com/FocuswithJustin/LyricScope/core/errors"
	"github.com/FocuswithJustin/LyricScope/internal/store"
)

const maxManifestBytes = 16 << 20

// Visitor is called for each archive entry.
// Return true to stop iteration, false to continue.
type Visitor func(header *tar.Header, content io.Reader) (stop bool, err error)

// Iterate decompresses r and walks its tar entries.
func Iterate(r io.Reader, c Compression, visitor Visitor) error {
	var src io.Reader
	switch c {
	case CompressionXZ:
		xzr, err := xz.NewReader(r)
		if err != nil {
			return errors.NewParse("backup", "", "xz: "+err.Error())
		}
		src = xzr
	case CompressionGzip:
		gzr, err := gzip.NewReader(r)
		if err != nil {
			return errors.NewParse("backup", "", "gzip: "+err.Error())
		}
		defer gzr.Close()
		src = gzr
	default:
		return errors.NewUnsupported("backup compression", string(c))
	}

	tr := tar.NewReader(src)
	for {
		header, err := tr.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return errors.NewParse("backup", "", "read header: "+err.Error())
		}
		stop, err := visitor(header, tr)
		if err != nil {
			return err
		}
		if stop {
			return nil
		}
	}
}

// Read returns the sheets in a backup in manifest order. Every body must
// be present and match the digest recorded for it.
func Read(r io.Reader, c Compression) (*Manifest, []store.Sheet, error) {
	var manifest *Manifest
	bodies := make(map[string][]byte)

	err := Iterate(r, c, func(h *tar.Header, content io.Reader) (bool, error) {
		if h.Typeflag != tar.TypeReg {
			return false, nil
		}
		limit := int64(store.MaxBodyBytes)
		if h.Name == manifestName {
			limit = maxManifestBytes
		}
		data, err := io.ReadAll(io.LimitReader(content, limit+1))
		if err != nil {
			return false, errors.NewParse("backup", h.Name, err.Error())
		}
		if int64(len(data)) > limit {
			return false, errors.NewParse("backup", h.Name, "entry too large")
		}
		if h.Name == manifestName {
			manifest = &Manifest{}
			if err := json.Unmarshal(data, manifest); err != nil {
				return false, errors.NewParse("backup", h.Name, err.Error())
			}
			return false, nil
		}
		bodies[h.Name] = data
		return false, nil
	})
	if err != nil {
		return nil, nil, err
	}

	if manifest == nil {
		return nil, nil, errors.NewParse("backup", manifestName, "manifest missing")
	}
	if manifest.Version > ManifestVersion {
		return nil, nil, errors.NewUnsupported("backup version", fmt.Sprint(manifest.Version))
	}

	sheets := make([]store.Sheet, 0, len(manifest.Sheets))
	for _, e := range manifest.Sheets {
		body, ok := bodies[e.File]
		if !ok {
			return nil, nil, errors.NewParse("backup", e.File, "sheet body missing")
		}
		if sum := digest.Sum(body); sum != e.Digest {
			return nil, nil, errors.NewParse("backup", e.File, "digest mismatch")
		}
		sheets = append(sheets, store.Sheet{
			ID:        e.ID,
			Title:     e.Title,
			Body:      string(body),
			Digest:    e.Digest,
			CreatedAt: e.CreatedAt,
			UpdatedAt: e.UpdatedAt,
		})
	}
	return manifest, sheets, nil
}

// Package archive extracts named byte blobs from compressed containers.
package archive

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/hollowlog/magpie/business/entity"
	"github.com/hollowlog/magpie/pkg/compression"
)

var magicZip = []byte{0x50, 0x4b, 0x03, 0x04}

// tar has no leading magic; the ustar indicator sits inside the first
// 512-byte header block
const (
	tarMagicOffset = 257
	tarMagic       = "ustar"
)

type Extractor struct {
	cfg *Config
	cmp *compression.Decompressor
}

type Config struct {
	MaxEntries   int
	MaxEntrySize int64
}

func New(cfg *Config, cmp *compression.Decompressor) *Extractor {
	return &Extractor{
		cfg: cfg,
		cmp: cmp,
	}
}

// IsArchive sniffs whether the blob is an extractable container: a zip,
// a tar, or a tar behind a compressed outer stream
func (e *Extractor) IsArchive(name string, data []byte) bool {
	if bytes.HasPrefix(data, magicZip) || isTar(data) {
		return true
	}
	if e.cmp.Sniff(data) != compression.EncodingNone {
		return hasTarExtension(name)
	}
	return false
}

// Extract unpacks every regular entry of the container into a
// filename -> bytes mapping
func (e *Extractor) Extract(data []byte) (map[string][]byte, error) {
	out, err := e.extract(data)
	if err != nil {
		return nil, errors.Wrap(err, "extraction failed")
	}
	return out, nil
}

func (e *Extractor) extract(data []byte) (map[string][]byte, error) {
	if bytes.HasPrefix(data, magicZip) {
		return e.extractZip(data)
	}

	if isTar(data) {
		return e.extractTar(bytes.NewReader(data))
	}

	// tar behind a gzip/zstd/lz4 outer stream
	r, enc, err := e.cmp.Reader(data)
	if err != nil {
		return nil, err
	}
	if enc == compression.EncodingNone {
		return nil, errors.New("unknown container format")
	}
	return e.extractTar(r)
}

func (e *Extractor) extractZip(data []byte) (map[string][]byte, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, err
	}
	zr.RegisterDecompressor(zip.Deflate, compression.FlateReader)

	out := make(map[string][]byte, len(zr.File))
	for _, f := range zr.File {
		if f.FileInfo().IsDir() {
			continue
		}
		if len(out) >= e.cfg.MaxEntries {
			return nil, entity.ErrTooManyEntries
		}

		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		buf, err := e.readEntry(rc)
		_ = rc.Close()
		if err != nil {
			return nil, errors.Wrap(err, f.Name)
		}

		out[entryName(f.Name)] = buf
	}

	return out, nil
}

func (e *Extractor) extractTar(r io.Reader) (map[string][]byte, error) {
	tr := tar.NewReader(r)
	out := make(map[string][]byte)

	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if len(out) >= e.cfg.MaxEntries {
			return nil, entity.ErrTooManyEntries
		}
		if hdr.Size > e.cfg.MaxEntrySize {
			return nil, errors.Wrap(entity.ErrEntryTooLarge, hdr.Name)
		}

		buf, err := e.readEntry(tr)
		if err != nil {
			return nil, errors.Wrap(err, hdr.Name)
		}

		out[entryName(hdr.Name)] = buf
	}

	return out, nil
}

func (e *Extractor) readEntry(r io.Reader) ([]byte, error) {
	buf, err := io.ReadAll(io.LimitReader(r, e.cfg.MaxEntrySize+1))
	if err != nil {
		return nil, err
	}
	if int64(len(buf)) > e.cfg.MaxEntrySize {
		return nil, entity.ErrEntryTooLarge
	}
	return buf, nil
}

func isTar(data []byte) bool {
	return len(data) > tarMagicOffset+len(tarMagic) &&
		string(data[tarMagicOffset:tarMagicOffset+len(tarMagic)]) == tarMagic
}

func hasTarExtension(name string) bool {
	name = strings.ToLower(name)
	return strings.HasSuffix(name, ".tar.gz") || strings.HasSuffix(name, ".tgz") ||
		strings.HasSuffix(name, ".tar.zst") || strings.HasSuffix(name, ".tar.lz4") ||
		strings.HasSuffix(name, ".tar")
}

// entryName flattens container paths to their base name
func entryName(name string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	return name
}

// Package ingest normalizes functional data uploads into canonical on-disk
// directories. A single data file is copied once under its original name; a
// tar archive is unpacked preserving its relative layout, keeping only
// recognized data files. Identical file content is stored once and shared by
// every index entry that carried it.
package ingest

import (
	"archive/tar"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"neurostore/pkg/domain"
)

// Config carries the suffix allow-lists that classify uploads. Matching is
// case-insensitive against the declared filename.
type Config struct {
	ArchiveSuffixes []string
	DataSuffixes    []string
}

// DefaultConfig returns the standard neuroimaging suffix sets: tar archives
// and the NIfTI / FreeSurfer volume formats.
func DefaultConfig() Config {
	return Config{
		ArchiveSuffixes: []string{".tar", ".tar.gz", ".tgz"},
		DataSuffixes:    []string{".nii", ".nii.gz", ".mgh", ".mgz", ".mgh.gz"},
	}
}

// Ingestor turns uploads into deduplicated canonical directories.
type Ingestor struct {
	cfg Config
}

// New returns an Ingestor for cfg; empty suffix lists fall back to defaults.
func New(cfg Config) *Ingestor {
	def := DefaultConfig()
	if len(cfg.ArchiveSuffixes) == 0 {
		cfg.ArchiveSuffixes = def.ArchiveSuffixes
	}
	if len(cfg.DataSuffixes) == 0 {
		cfg.DataSuffixes = def.DataSuffixes
	}
	return &Ingestor{cfg: cfg}
}

func matchSuffix(name string, suffixes []string) bool {
	lower := strings.ToLower(name)
	for _, s := range suffixes {
		if strings.HasSuffix(lower, s) {
			return true
		}
	}
	return false
}

// Ingest classifies src by its declared filename suffix and materializes the
// canonical directory at destDir. It returns the ordered file index. destDir
// must not exist yet; on any failure it is removed again before returning.
func (ing *Ingestor) Ingest(ctx context.Context, src, destDir string) ([]domain.FileEntry, error) {
	name := filepath.Base(src)
	isArchive := matchSuffix(name, ing.cfg.ArchiveSuffixes)
	if !isArchive && !matchSuffix(name, ing.cfg.DataSuffixes) {
		return nil, domain.NewError(domain.ErrUnsupportedFormat, "unsupported upload format %q", name)
	}
	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return nil, domain.WrapError(domain.ErrIngestFailed, err, "create canonical directory")
	}
	var entries []domain.FileEntry
	var err error
	if isArchive {
		entries, err = ing.unpackArchive(ctx, src, destDir)
	} else {
		entries, err = ing.copySingle(src, destDir)
	}
	if err != nil {
		_ = os.RemoveAll(destDir)
		if domain.KindOf(err) != "" {
			return nil, err
		}
		return nil, domain.WrapError(domain.ErrIngestFailed, err, "ingest %s", name)
	}
	if len(entries) == 0 {
		_ = os.RemoveAll(destDir)
		return nil, domain.NewError(domain.ErrEmptyUpload, "upload %s contains no data files", name)
	}
	return entries, nil
}

// copySingle stores one data file under its original base name.
func (ing *Ingestor) copySingle(src, destDir string) ([]domain.FileEntry, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	name := filepath.Base(src)
	stored, err := newBatch(destDir).store(name, f)
	if err != nil {
		return nil, err
	}
	return []domain.FileEntry{stored}, nil
}

// unpackArchive extracts data entries in archive order, skipping everything
// the data suffix list does not recognize.
func (ing *Ingestor) unpackArchive(ctx context.Context, src, destDir string) ([]domain.FileEntry, error) {
	f, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	var reader io.Reader = f
	lower := strings.ToLower(src)
	if strings.HasSuffix(lower, ".tar.gz") || strings.HasSuffix(lower, ".tgz") {
		gz, err := gzip.NewReader(f)
		if err != nil {
			return nil, err
		}
		defer func() { _ = gz.Close() }()
		reader = gz
	}

	batch := newBatch(destDir)
	var entries []domain.FileEntry
	tr := tar.NewReader(reader)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
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
		if !matchSuffix(hdr.Name, ing.cfg.DataSuffixes) {
			continue
		}
		rel, err := sanitizeEntryName(hdr.Name)
		if err != nil {
			return nil, err
		}
		stored, err := batch.store(rel, tr)
		if err != nil {
			return nil, err
		}
		entries = append(entries, stored)
	}
	return entries, nil
}

// sanitizeEntryName normalizes an archive member path and rejects absolute
// paths and traversal outside the canonical directory.
func sanitizeEntryName(name string) (string, error) {
	if strings.HasPrefix(name, "/") {
		return "", domain.NewError(domain.ErrIngestFailed, "archive entry %q has an absolute path", name)
	}
	clean := filepath.ToSlash(filepath.Clean(name))
	if clean == "." || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", domain.NewError(domain.ErrIngestFailed, "archive entry %q escapes the target directory", name)
	}
	return clean, nil
}

// batch writes files into one canonical directory, deduplicating by content
// fingerprint: the first file with a given digest is kept, later identical
// files reuse its stored path.
type batch struct {
	dir  string
	seen map[string]string // fingerprint -> stored relative path
}

func newBatch(dir string) *batch {
	return &batch{dir: dir, seen: make(map[string]string)}
}

func (b *batch) store(rel string, r io.Reader) (domain.FileEntry, error) {
	tmp, err := os.CreateTemp(b.dir, ".ingest-*")
	if err != nil {
		return domain.FileEntry{}, err
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, h), r)
	if err != nil {
		_ = tmp.Close()
		return domain.FileEntry{}, err
	}
	if err := tmp.Close(); err != nil {
		return domain.FileEntry{}, err
	}
	fingerprint := hex.EncodeToString(h.Sum(nil))

	if stored, ok := b.seen[fingerprint]; ok {
		return domain.FileEntry{Name: rel, StoredPath: stored, Fingerprint: fingerprint, Size: size}, nil
	}

	target := filepath.Join(b.dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return domain.FileEntry{}, err
	}
	if _, err := os.Stat(target); err == nil {
		return domain.FileEntry{}, fmt.Errorf("archive entry %q written twice with different content", rel)
	}
	if err := os.Rename(tmpName, target); err != nil {
		return domain.FileEntry{}, err
	}
	b.seen[fingerprint] = rel
	return domain.FileEntry{Name: rel, StoredPath: rel, Fingerprint: fingerprint, Size: size}, nil
}

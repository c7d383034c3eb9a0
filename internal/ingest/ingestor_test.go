package ingest

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"os"
	"path/filepath"
	"testing"

	"neurostore/pkg/domain"
)

type tarEntry struct {
	name string
	body string
}

func writeTar(t *testing.T, path string, compress bool, entries []tarEntry) {
	t.Helper()
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, e := range entries {
		hdr := &tar.Header{Name: e.name, Mode: 0o644, Size: int64(len(e.body)), Typeflag: tar.TypeReg}
		if err := tw.WriteHeader(hdr); err != nil {
			t.Fatalf("write header: %v", err)
		}
		if _, err := tw.Write([]byte(e.body)); err != nil {
			t.Fatalf("write body: %v", err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatalf("close tar: %v", err)
	}
	out := buf.Bytes()
	if compress {
		var gzBuf bytes.Buffer
		gz := gzip.NewWriter(&gzBuf)
		if _, err := gz.Write(out); err != nil {
			t.Fatalf("gzip: %v", err)
		}
		if err := gz.Close(); err != nil {
			t.Fatalf("close gzip: %v", err)
		}
		out = gzBuf.Bytes()
	}
	if err := os.WriteFile(path, out, 0o644); err != nil {
		t.Fatalf("write archive: %v", err)
	}
}

func TestIngestSingleFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "scan.nii")
	if err := os.WriteFile(src, []byte("nifti-bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dest := filepath.Join(dir, "canonical")

	entries, err := New(Config{}).Ingest(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "scan.nii" || entries[0].StoredPath != "scan.nii" {
		t.Fatalf("unexpected entries: %+v", entries)
	}
	if entries[0].Size != int64(len("nifti-bytes")) || entries[0].Fingerprint == "" {
		t.Fatalf("entry metadata missing: %+v", entries[0])
	}
	body, err := os.ReadFile(filepath.Join(dest, "scan.nii"))
	if err != nil || string(body) != "nifti-bytes" {
		t.Fatalf("canonical copy: %v %q", err, body)
	}
}

func TestIngestUnsupportedFormat(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "report.pdf")
	if err := os.WriteFile(src, []byte("pdf"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dest := filepath.Join(dir, "canonical")

	_, err := New(Config{}).Ingest(context.Background(), src, dest)
	if !domain.IsKind(err, domain.ErrUnsupportedFormat) {
		t.Fatalf("expected unsupported_format, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("canonical directory should not exist")
	}
}

func TestIngestArchiveSkipsNonDataEntries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.tar")
	writeTar(t, src, false, []tarEntry{
		{name: "README.txt", body: "notes"},
		{name: "session/run1.nii", body: "volume-one"},
		{name: "session/run2.mgz", body: "volume-two"},
	})
	dest := filepath.Join(dir, "canonical")

	entries, err := New(Config{}).Ingest(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Name != "session/run1.nii" || entries[1].Name != "session/run2.mgz" {
		t.Fatalf("order not preserved: %+v", entries)
	}
	if _, err := os.Stat(filepath.Join(dest, "README.txt")); !os.IsNotExist(err) {
		t.Fatal("non-data entry should be skipped")
	}
	if _, err := os.Stat(filepath.Join(dest, "session", "run1.nii")); err != nil {
		t.Fatalf("relative layout lost: %v", err)
	}
}

func TestIngestCompressedArchive(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.tar.gz")
	writeTar(t, src, true, []tarEntry{{name: "run1.nii", body: "volume"}})
	dest := filepath.Join(dir, "canonical")

	entries, err := New(Config{}).Ingest(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "run1.nii" {
		t.Fatalf("entries = %+v", entries)
	}
}

func TestIngestDeduplicatesIdenticalContent(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.tar")
	writeTar(t, src, false, []tarEntry{
		{name: "a/run.nii", body: "same-bytes"},
		{name: "b/run.nii", body: "same-bytes"},
		{name: "c/other.nii", body: "different"},
	})
	dest := filepath.Join(dir, "canonical")

	entries, err := New(Config{}).Ingest(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].StoredPath != "a/run.nii" || entries[1].StoredPath != "a/run.nii" {
		t.Fatalf("duplicate should share first stored path: %+v", entries)
	}
	if entries[0].Fingerprint != entries[1].Fingerprint {
		t.Fatalf("fingerprints differ: %+v", entries)
	}
	if _, err := os.Stat(filepath.Join(dest, "b", "run.nii")); !os.IsNotExist(err) {
		t.Fatal("duplicate content should be stored once")
	}
	if _, err := os.Stat(filepath.Join(dest, "c", "other.nii")); err != nil {
		t.Fatalf("distinct content missing: %v", err)
	}
}

func TestIngestSameArchiveIntoDisjointDirectories(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.tar")
	writeTar(t, src, false, []tarEntry{
		{name: "run1.nii", body: "volume-one"},
		{name: "run2.nii", body: "volume-two"},
	})
	destA := filepath.Join(dir, "resource-a")
	destB := filepath.Join(dir, "resource-b")

	ing := New(Config{})
	first, err := ing.Ingest(context.Background(), src, destA)
	if err != nil {
		t.Fatalf("first ingest: %v", err)
	}
	second, err := ing.Ingest(context.Background(), src, destB)
	if err != nil {
		t.Fatalf("second ingest: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("index length differs: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].Fingerprint != second[i].Fingerprint {
			t.Fatalf("fingerprint mismatch at %d: %+v vs %+v", i, first[i], second[i])
		}
	}
	if _, err := os.Stat(filepath.Join(destA, "run1.nii")); err != nil {
		t.Fatalf("first canonical copy missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(destB, "run1.nii")); err != nil {
		t.Fatalf("second canonical copy missing: %v", err)
	}
}

func TestIngestEmptyUploadRollsBack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.tar")
	writeTar(t, src, false, []tarEntry{{name: "README.txt", body: "no data here"}})
	dest := filepath.Join(dir, "canonical")

	_, err := New(Config{}).Ingest(context.Background(), src, dest)
	if !domain.IsKind(err, domain.ErrEmptyUpload) {
		t.Fatalf("expected empty_upload, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("canonical directory should be rolled back")
	}
}

func TestIngestRejectsTraversalEntries(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.tar")
	writeTar(t, src, false, []tarEntry{
		{name: "ok.nii", body: "fine"},
		{name: "../escape.nii", body: "evil"},
	})
	dest := filepath.Join(dir, "canonical")

	_, err := New(Config{}).Ingest(context.Background(), src, dest)
	if !domain.IsKind(err, domain.ErrIngestFailed) {
		t.Fatalf("expected ingest_failed, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("canonical directory should be rolled back")
	}
	if _, err := os.Stat(filepath.Join(dir, "escape.nii")); !os.IsNotExist(err) {
		t.Fatal("traversal entry must not be written")
	}
}

func TestIngestCorruptArchiveRollsBack(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "upload.tar")
	if err := os.WriteFile(src, []byte("this is not a tar file"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dest := filepath.Join(dir, "canonical")

	_, err := New(Config{}).Ingest(context.Background(), src, dest)
	if !domain.IsKind(err, domain.ErrIngestFailed) {
		t.Fatalf("expected ingest_failed, got %v", err)
	}
	if _, err := os.Stat(dest); !os.IsNotExist(err) {
		t.Fatal("canonical directory should be rolled back")
	}
}

func TestIngestCustomSuffixConfig(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "volume.img")
	if err := os.WriteFile(src, []byte("analyze-format"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	dest := filepath.Join(dir, "canonical")

	ing := New(Config{DataSuffixes: []string{".img", ".hdr"}})
	entries, err := ing.Ingest(context.Background(), src, dest)
	if err != nil {
		t.Fatalf("ingest: %v", err)
	}
	if len(entries) != 1 || entries[0].Name != "volume.img" {
		t.Fatalf("entries = %+v", entries)
	}
}

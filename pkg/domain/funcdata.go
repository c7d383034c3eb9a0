package domain

// FileEntry is one indexed file inside a functional data resource. Name is
// the path as declared by the upload; StoredPath is the path of the physical
// copy relative to the canonical directory. Entries with identical content
// share one StoredPath.
type FileEntry struct {
	Name        string
	StoredPath  string
	Fingerprint string
	Size        int64
}

// FunctionalData is an ingested fMRI upload: a canonical on-disk directory
// plus the ordered index of the data files it retains.
type FunctionalData struct {
	ObjectHandle
	Directory string
	Files     []FileEntry
}

// File returns the index entry under name.
func (f *FunctionalData) File(name string) (FileEntry, bool) {
	for _, e := range f.Files {
		if e.Name == name {
			return e, true
		}
	}
	return FileEntry{}, false
}

// ToRecord encodes the resource as plain record data.
func (f FunctionalData) ToRecord() Record {
	rec := f.ObjectHandle.ToRecord()
	rec["directory"] = f.Directory
	files := make([]any, len(f.Files))
	for i, e := range f.Files {
		files[i] = map[string]any{
			"name":        e.Name,
			"stored_path": e.StoredPath,
			"fingerprint": e.Fingerprint,
			"size":        e.Size,
		}
	}
	rec["files"] = files
	return rec
}

// FunctionalDataFromRecord decodes a resource from record data.
func FunctionalDataFromRecord(rec Record) (FunctionalData, error) {
	handle, err := ObjectFromRecord(rec)
	if err != nil {
		return FunctionalData{}, err
	}
	fd := FunctionalData{ObjectHandle: handle}
	fd.Directory, _ = rec["directory"].(string)
	if raw, ok := rec["files"].([]any); ok {
		fd.Files = make([]FileEntry, 0, len(raw))
		for _, v := range raw {
			m, ok := v.(map[string]any)
			if !ok {
				return FunctionalData{}, NewError(ErrNotFound, "file entry has unexpected shape %T", v)
			}
			name, _ := m["name"].(string)
			stored, _ := m["stored_path"].(string)
			fp, _ := m["fingerprint"].(string)
			fd.Files = append(fd.Files, FileEntry{Name: name, StoredPath: stored, Fingerprint: fp, Size: toInt64(m["size"])})
		}
	}
	return fd, nil
}

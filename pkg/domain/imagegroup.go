package domain

// GroupImage is one member of an image group: a reference to a stored image
// plus its folder and file name inside the group layout.
type GroupImage struct {
	ImageID string
	Folder  string
	Name    string
}

// ImageGroup is a curated collection of image references. Folder and name
// pairs are unique within a group.
type ImageGroup struct {
	ObjectHandle
	Members []GroupImage
}

// ToRecord encodes the group as plain record data.
func (g ImageGroup) ToRecord() Record {
	rec := g.ObjectHandle.ToRecord()
	members := make([]any, len(g.Members))
	for i, m := range g.Members {
		members[i] = map[string]any{
			"image":  m.ImageID,
			"folder": m.Folder,
			"name":   m.Name,
		}
	}
	rec["images"] = members
	return rec
}

// ImageGroupFromRecord decodes a group from record data.
func ImageGroupFromRecord(rec Record) (ImageGroup, error) {
	handle, err := ObjectFromRecord(rec)
	if err != nil {
		return ImageGroup{}, err
	}
	g := ImageGroup{ObjectHandle: handle}
	if raw, ok := rec["images"].([]any); ok {
		g.Members = make([]GroupImage, 0, len(raw))
		for _, v := range raw {
			m, ok := v.(map[string]any)
			if !ok {
				return ImageGroup{}, NewError(ErrNotFound, "group member has unexpected shape %T", v)
			}
			imageID, _ := m["image"].(string)
			folder, _ := m["folder"].(string)
			name, _ := m["name"].(string)
			g.Members = append(g.Members, GroupImage{ImageID: imageID, Folder: folder, Name: name})
		}
	}
	return g, nil
}

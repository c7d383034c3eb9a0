package domain

// Attachment describes a named file payload attached to a resource. Size and
// mime type are derived from the actual payload when the attachment is made,
// never supplied by the caller.
type Attachment struct {
	Filename string
	MimeType string
	Size     int64
	OwnerID  string
}

func (a Attachment) toRecord() map[string]any {
	return map[string]any{
		"filename":  a.Filename,
		"mime_type": a.MimeType,
		"size":      a.Size,
		"owner":     a.OwnerID,
	}
}

func attachmentFromRecord(raw any) (Attachment, error) {
	m, ok := raw.(map[string]any)
	if !ok {
		return Attachment{}, NewError(ErrNotFound, "attachment entry has unexpected shape %T", raw)
	}
	name, ok := m["filename"].(string)
	if !ok || name == "" {
		return Attachment{}, NewError(ErrNotFound, "attachment entry is missing a filename")
	}
	mime, _ := m["mime_type"].(string)
	owner, _ := m["owner"].(string)
	return Attachment{Filename: name, MimeType: mime, Size: toInt64(m["size"]), OwnerID: owner}, nil
}

// toInt64 normalizes the numeric types produced by the record codecs. JSON
// decoding yields float64, the bson and sql paths yield integer widths.
func toInt64(v any) int64 {
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case float64:
		return int64(n)
	default:
		return 0
	}
}

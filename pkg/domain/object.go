package domain

import (
	"time"
)

// ObjectHandle is the common identity and metadata shared by every stored
// resource.
type ObjectHandle struct {
	ID         string
	Type       ResourceType
	ReadOnly   bool
	CreatedAt  time.Time
	Attributes *AttributeSet
}

// SetAttribute updates a metadata value, rejecting mutation of read-only
// resources with ErrReadOnlyViolation.
func (h *ObjectHandle) SetAttribute(name string, value any) error {
	if h.ReadOnly {
		return NewError(ErrReadOnlyViolation, "%s %s is read-only", h.Type, h.ID)
	}
	if h.Attributes == nil {
		h.Attributes, _ = NewAttributeSet(nil, nil)
	}
	return h.Attributes.Set(name, value)
}

// ToRecord encodes the handle as plain record data. The encoding is lossless:
// ObjectFromRecord restores an equal handle.
func (h ObjectHandle) ToRecord() Record {
	return Record{
		"identifier":    h.ID,
		"resource_type": string(h.Type),
		"read_only":     h.ReadOnly,
		"created_at":    h.CreatedAt.UTC().Format(time.RFC3339Nano),
		"attributes":    h.Attributes.ToRecord(),
	}
}

// ObjectFromRecord decodes a handle from record data produced by ToRecord.
func ObjectFromRecord(rec Record) (ObjectHandle, error) {
	var h ObjectHandle
	id, ok := rec["identifier"].(string)
	if !ok || id == "" {
		return h, NewError(ErrNotFound, "record is missing an identifier")
	}
	typ, _ := rec["resource_type"].(string)
	rt := ResourceType(typ)
	if !rt.Valid() {
		return h, NewError(ErrNotFound, "record %s has unknown resource type %q", id, typ)
	}
	readOnly, _ := rec["read_only"].(bool)
	var createdAt time.Time
	if raw, ok := rec["created_at"].(string); ok && raw != "" {
		ts, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return h, WrapError(ErrNotFound, err, "record %s has malformed created_at", id)
		}
		createdAt = ts
	}
	attrs, err := AttributeSetFromRecord(rec["attributes"])
	if err != nil {
		return h, err
	}
	return ObjectHandle{ID: id, Type: rt, ReadOnly: readOnly, CreatedAt: createdAt, Attributes: attrs}, nil
}

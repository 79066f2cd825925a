// Package codec serializes a single document record to the bytes stored by
// the repository backends. Records are BSON documents with a format version.
package codec

import (
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/gogotex/docstore/internal/document"
)

// Version is the record format written by Encode.
const Version int32 = 1

var (
	errMissingField   = errors.New("missing field")
	errUnknownVersion = errors.New("unknown record version")
	errZeroID         = errors.New("zero document id")
)

// record is the on-disk shape. Pointer fields let Decode tell a missing field
// from a zero value.
type record struct {
	Version   *int32  `bson:"v"`
	ID        *int64  `bson:"id"`
	Name      *string `bson:"name"`
	Owner     *string `bson:"owner"`
	Namespace *string `bson:"namespace"`
	Payload   *string `bson:"payload"`
	Created   *int64  `bson:"created"`
	Updated   *int64  `bson:"updated"`
}

// Encode returns the durable representation of d. d.Payload must be set; a
// nil payload is stored as the empty string.
func Encode(d document.Document) ([]byte, error) {
	v := Version
	id := int64(d.ID)
	payload := ""
	if d.Payload != nil {
		payload = *d.Payload
	}
	created := d.Created.UnixNano()
	updated := d.Updated.UnixNano()
	rec := record{
		Version:   &v,
		ID:        &id,
		Name:      &d.Name,
		Owner:     &d.Owner,
		Namespace: &d.Namespace,
		Payload:   &payload,
		Created:   &created,
		Updated:   &updated,
	}
	b, err := bson.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("encode document %d: %w", d.ID, err)
	}
	return b, nil
}

// Decode parses data read from key. Any failure is returned as a
// *document.DecodeError carrying key.
func Decode(key string, data []byte) (document.Document, error) {
	var rec record
	if err := bson.Unmarshal(data, &rec); err != nil {
		return document.Document{}, &document.DecodeError{Key: key, Err: err}
	}
	if err := rec.validate(); err != nil {
		return document.Document{}, &document.DecodeError{Key: key, Err: err}
	}
	payload := *rec.Payload
	return document.Document{
		ID:        uint64(*rec.ID),
		Name:      *rec.Name,
		Owner:     *rec.Owner,
		Namespace: *rec.Namespace,
		Payload:   &payload,
		Created:   time.Unix(0, *rec.Created).UTC(),
		Updated:   time.Unix(0, *rec.Updated).UTC(),
	}, nil
}

func (r *record) validate() error {
	if r.Version == nil {
		return fmt.Errorf("%w: v", errMissingField)
	}
	if *r.Version != Version {
		return fmt.Errorf("%w: %d", errUnknownVersion, *r.Version)
	}
	fields := []struct {
		name    string
		present bool
	}{
		{"id", r.ID != nil},
		{"name", r.Name != nil},
		{"owner", r.Owner != nil},
		{"namespace", r.Namespace != nil},
		{"payload", r.Payload != nil},
		{"created", r.Created != nil},
		{"updated", r.Updated != nil},
	}
	for _, f := range fields {
		if !f.present {
			return fmt.Errorf("%w: %s", errMissingField, f.name)
		}
	}
	if *r.ID == 0 {
		return errZeroID
	}
	return nil
}

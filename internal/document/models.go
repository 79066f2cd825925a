package document

import "time"

// Document is a single stored record. Payload is nil when the document was
// produced by an operation that withholds it (list, create, update, delete).
type Document struct {
	ID        uint64    `json:"id"`
	Name      string    `json:"name"`
	Owner     string    `json:"owner"`
	Namespace string    `json:"namespace"`
	Payload   *string   `json:"payload,omitempty"`
	Created   time.Time `json:"created"`
	Updated   time.Time `json:"updated"`
}

// WithoutPayload returns a copy of d with the payload stripped.
func (d Document) WithoutPayload() Document {
	d.Payload = nil
	return d
}

// Input carries the fields of a create request. Payload is a pointer so that
// an absent payload can be told apart from an empty one.
type Input struct {
	Name      string
	Owner     string
	Namespace string
	Payload   *string
}

// Patch is a sparse update; nil fields are left untouched.
type Patch struct {
	Name      *string
	Owner     *string
	Namespace *string
	Payload   *string
}

// Apply copies the present fields of p onto d.
func (p Patch) Apply(d *Document) {
	if p.Name != nil {
		d.Name = *p.Name
	}
	if p.Owner != nil {
		d.Owner = *p.Owner
	}
	if p.Namespace != nil {
		d.Namespace = *p.Namespace
	}
	if p.Payload != nil {
		v := *p.Payload
		d.Payload = &v
	}
}

// StringPtr is a small helper for building Inputs and Patches.
func StringPtr(s string) *string { return &s }

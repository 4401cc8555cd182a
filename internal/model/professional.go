package model

// Professional is a health professional that patients can book.
type Professional struct {
	ID        int64
	Name      string
	Specialty string
	Available bool
}

// Key returns the professional identifier.
func (p Professional) Key() int64 { return p.ID }

// WithKey returns a copy of p with the identifier set to id.
func (p Professional) WithKey(id int64) Professional {
	p.ID = id
	return p
}

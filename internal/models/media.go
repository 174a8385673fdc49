package models

// Media references an asset stored on the media host.
type Media struct {
	PublicID  string `bson:"public_id,omitempty" json:"public_id,omitempty"`
	SecureURL string `bson:"secure_url,omitempty" json:"secure_url,omitempty"`
}

// IsZero reports whether the reference points at nothing.
func (m Media) IsZero() bool {
	return m.PublicID == "" && m.SecureURL == ""
}

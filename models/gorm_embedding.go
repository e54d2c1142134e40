package models

import (
	"fmt"

	"github.com/camden-git/facetrack/faces"
)

// Embedding is a stored face descriptor owned by one person.
// It corresponds to the 'embeddings' table.
type Embedding struct {
	ID       uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonID uint   `gorm:"column:persona_id;not null;index" json:"persona_id"`
	Data     string `gorm:"column:embedding;type:text;not null" json:"-"`                     // JSON array of floats
	Strategy string `gorm:"column:estrategia;not null;default:'classical'" json:"estrategia"` // descriptor kind that produced Data

	Person *Person `gorm:"foreignKey:PersonID;constraint:OnDelete:CASCADE" json:"persona,omitempty"` // Belongs to Person
}

// TableName explicitly sets the table name for GORM.
func (Embedding) TableName() string {
	return "embeddings"
}

// Descriptor decodes the stored text back into a descriptor.
func (e *Embedding) Descriptor() (faces.Descriptor, error) {
	kind, err := faces.ParseKind(e.Strategy)
	if err != nil {
		return faces.Descriptor{}, fmt.Errorf("embedding %d: %w", e.ID, err)
	}
	d, err := faces.DecodeDescriptor(kind, e.Data)
	if err != nil {
		return faces.Descriptor{}, fmt.Errorf("embedding %d: %w", e.ID, err)
	}
	return d, nil
}

// SetDescriptor serializes d into the row.
func (e *Embedding) SetDescriptor(d faces.Descriptor) error {
	text, err := d.Encode()
	if err != nil {
		return err
	}
	e.Data = text
	e.Strategy = string(d.Kind)
	return nil
}

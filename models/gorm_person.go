package models

// Person is an enrolled identity.
// It corresponds to the 'personas' table. Embeddings and detections declare
// the belongs-to side with ON DELETE CASCADE, so deleting a row here removes
// both.
type Person struct {
	ID           uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	GivenName    string `gorm:"column:nombre;not null" json:"nombre"`
	FamilyName   string `gorm:"column:apellido;not null" json:"apellido"`
	Email        string `gorm:"column:email;uniqueIndex;not null" json:"email"`
	RegisteredAt int64  `gorm:"column:fecha_registro;autoCreateTime" json:"fecha_registro"` // Stored as INTEGER in SQLite, Unix timestamp
}

// TableName explicitly sets the table name for GORM.
func (Person) TableName() string {
	return "personas"
}

// DisplayName is the given and family name joined by a space.
func (p Person) DisplayName() string {
	return p.GivenName + " " + p.FamilyName
}

package models

// EmotionDetection is one persisted recognition with its emotion reading.
// It corresponds to the 'detecciones_emociones' table and is append-only.
type EmotionDetection struct {
	ID         uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	PersonID   *uint   `gorm:"column:persona_id;index" json:"persona_id"` // Nullable foreign key to personas
	Emotion    string  `gorm:"column:emocion;type:text;not null" json:"emocion"`
	Confidence float64 `gorm:"column:confianza;type:real;not null" json:"confianza"`
	Timestamp  int64   `gorm:"column:timestamp;autoCreateTime:milli;index" json:"timestamp"` // Unix milliseconds

	Person *Person `gorm:"foreignKey:PersonID;constraint:OnDelete:CASCADE" json:"persona,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (EmotionDetection) TableName() string {
	return "detecciones_emociones"
}

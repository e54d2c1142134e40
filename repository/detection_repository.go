package repository

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"gorm.io/gorm"

	"github.com/camden-git/facetrack/models"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// DetectionRecord is a detection joined with the name of the person it belongs to.
type DetectionRecord struct {
	ID          uint    `json:"id"`
	PersonID    *uint   `json:"persona_id"`
	DisplayName string  `json:"nombre"`
	Emotion     string  `json:"emocion"`
	Confidence  float64 `json:"confianza"`
	Timestamp   int64   `json:"timestamp"`
}

// HistoryFilter narrows History. Zero values mean no restriction.
type HistoryFilter struct {
	PersonID *uint
	Since    time.Time
	Limit    uint64
}

const defaultHistoryLimit = 500

// DetectionRepository handles the append-only detecciones_emociones table
type DetectionRepository struct {
	DB *gorm.DB
}

// NewDetectionRepository creates a new instance of DetectionRepository
func NewDetectionRepository(db *gorm.DB) *DetectionRepository {
	return &DetectionRepository{DB: db}
}

// Append inserts one detection. Timestamp defaults to now when unset.
func (r *DetectionRepository) Append(ctx context.Context, detection *models.EmotionDetection) error {
	if detection.Timestamp == 0 {
		detection.Timestamp = time.Now().UnixMilli()
	}
	if err := r.DB.WithContext(ctx).Create(detection).Error; err != nil {
		return fmt.Errorf("failed to append detection (%s, %.2f): %w", detection.Emotion, detection.Confidence, err)
	}
	return nil
}

// History returns detections newest first, optionally for one person.
func (r *DetectionRepository) History(ctx context.Context, filter HistoryFilter) ([]DetectionRecord, error) {
	limit := filter.Limit
	if limit == 0 {
		limit = defaultHistoryLimit
	}

	queryBuilder := psql.Select(
		"d.id AS id",
		"d.persona_id AS person_id",
		"COALESCE(p.nombre || ' ' || p.apellido, '') AS display_name",
		"d.emocion AS emotion",
		"d.confianza AS confidence",
		"d.timestamp AS timestamp",
	).
		From("detecciones_emociones AS d").
		LeftJoin("personas AS p ON p.id = d.persona_id").
		OrderBy("d.timestamp DESC", "d.id DESC").
		Limit(limit)

	if filter.PersonID != nil {
		queryBuilder = queryBuilder.Where(sq.Eq{"d.persona_id": *filter.PersonID})
	}
	if !filter.Since.IsZero() {
		queryBuilder = queryBuilder.Where(sq.GtOrEq{"d.timestamp": filter.Since.UnixMilli()})
	}

	sqlStr, args, err := queryBuilder.ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build SQL for detection history: %w", err)
	}

	records := []DetectionRecord{}
	if err := r.DB.WithContext(ctx).Raw(sqlStr, args...).Scan(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to query detection history: %w", err)
	}
	return records, nil
}

// CountByPerson counts the detections stored for one person
func (r *DetectionRepository) CountByPerson(ctx context.Context, personID uint) (int64, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.EmotionDetection{}).
		Where("persona_id = ?", personID).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count detections for person ID %d: %w", personID, err)
	}
	return count, nil
}

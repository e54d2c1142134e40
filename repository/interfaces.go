package repository

import (
	"context"

	"github.com/camden-git/facetrack/faces"
	"github.com/camden-git/facetrack/models"
)

// PersonRepositoryInterface defines the methods for identity data operations
type PersonRepositoryInterface interface {
	CreateWithEmbedding(ctx context.Context, person *models.Person, descriptor faces.Descriptor) error
	GetByID(ctx context.Context, id uint) (*models.Person, error)
	GetByEmail(ctx context.Context, email string) (*models.Person, error)
	EmailExists(ctx context.Context, email string) (bool, error)
	ListAll(ctx context.Context) ([]models.Person, error)
	Delete(ctx context.Context, id uint) (string, error)
	ListIdentityDescriptors(ctx context.Context) ([]IdentityDescriptor, error)
}

// DetectionRepositoryInterface defines the methods for detection history
type DetectionRepositoryInterface interface {
	Append(ctx context.Context, detection *models.EmotionDetection) error
	History(ctx context.Context, filter HistoryFilter) ([]DetectionRecord, error)
	CountByPerson(ctx context.Context, personID uint) (int64, error)
}

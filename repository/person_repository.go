package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"gorm.io/gorm"

	"github.com/camden-git/facetrack/faces"
	"github.com/camden-git/facetrack/models"
)

// IdentityDescriptor is one row of the personas/embeddings join the identity
// index is built from. Data is still in its stored text form.
type IdentityDescriptor struct {
	EmbeddingID uint
	PersonID    uint
	GivenName   string
	FamilyName  string
	Data        string
	Strategy    string
}

// DisplayName is the given and family name joined by a space.
func (r IdentityDescriptor) DisplayName() string {
	return r.GivenName + " " + r.FamilyName
}

// PersonRepository handles database operations for Person and its Embedding
type PersonRepository struct {
	DB *gorm.DB
}

// NewPersonRepository creates a new instance of PersonRepository
func NewPersonRepository(db *gorm.DB) *PersonRepository {
	return &PersonRepository{DB: db}
}

// CreateWithEmbedding writes the person and its descriptor in one
// transaction; a failure on either write leaves neither row behind.
func (r *PersonRepository) CreateWithEmbedding(ctx context.Context, person *models.Person, descriptor faces.Descriptor) error {
	embedding := models.Embedding{}
	if err := embedding.SetDescriptor(descriptor); err != nil {
		return fmt.Errorf("failed to serialize descriptor for %s: %w", person.Email, err)
	}

	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(person).Error; err != nil {
			if isUniqueViolation(err) {
				return ErrDuplicateEmail
			}
			return fmt.Errorf("failed to create person %s: %w", person.Email, err)
		}

		embedding.PersonID = person.ID
		if err := tx.Create(&embedding).Error; err != nil {
			return fmt.Errorf("failed to store embedding for person ID %d: %w", person.ID, err)
		}
		return nil
	})
	if err != nil {
		person.ID = 0
		return err
	}
	return nil
}

// GetByID retrieves a person by their ID
func (r *PersonRepository) GetByID(ctx context.Context, id uint) (*models.Person, error) {
	var person models.Person
	err := r.DB.WithContext(ctx).First(&person, id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get person by ID %d: %w", id, err)
	}
	return &person, nil
}

// GetByEmail retrieves a person by email, compared case-insensitively
func (r *PersonRepository) GetByEmail(ctx context.Context, email string) (*models.Person, error) {
	var person models.Person
	err := r.DB.WithContext(ctx).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		First(&person).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get person by email %s: %w", email, err)
	}
	return &person, nil
}

// EmailExists reports whether an identity already uses email
func (r *PersonRepository) EmailExists(ctx context.Context, email string) (bool, error) {
	var count int64
	err := r.DB.WithContext(ctx).Model(&models.Person{}).
		Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(email))).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check email %s: %w", email, err)
	}
	return count > 0, nil
}

// ListAll retrieves all people, newest registration first
func (r *PersonRepository) ListAll(ctx context.Context) ([]models.Person, error) {
	var people []models.Person
	err := r.DB.WithContext(ctx).Order("fecha_registro DESC").Order("id DESC").Find(&people).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list people: %w", err)
	}
	return people, nil
}

// Delete removes a person and, through the foreign keys, their embeddings
// and detection history. It returns the display name of the removed person.
func (r *PersonRepository) Delete(ctx context.Context, id uint) (string, error) {
	var name string
	err := r.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var person models.Person
		if err := tx.First(&person, id).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return fmt.Errorf("failed to load person ID %d: %w", id, err)
		}

		result := tx.Delete(&models.Person{}, id)
		if result.Error != nil {
			return fmt.Errorf("failed to delete person ID %d: %w", id, result.Error)
		}
		if result.RowsAffected == 0 {
			return ErrNotFound
		}
		name = person.DisplayName()
		return nil
	})
	if err != nil {
		return "", err
	}
	return name, nil
}

// ListIdentityDescriptors returns every (person, embedding) pair in
// embedding insertion order.
func (r *PersonRepository) ListIdentityDescriptors(ctx context.Context) ([]IdentityDescriptor, error) {
	var rows []IdentityDescriptor
	err := r.DB.WithContext(ctx).
		Table("embeddings AS e").
		Select("e.id AS embedding_id, p.id AS person_id, p.nombre AS given_name, p.apellido AS family_name, e.embedding AS data, e.estrategia AS strategy").
		Joins("JOIN personas AS p ON p.id = e.persona_id").
		Order("e.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list identity descriptors: %w", err)
	}
	return rows, nil
}

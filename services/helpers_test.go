package services

import (
	"context"
	"errors"
	"image"
	"image/color"
	"sync"
	"testing"

	"github.com/camden-git/facetrack/faces"
	"github.com/camden-git/facetrack/models"
	"github.com/camden-git/facetrack/repository"
)

func encodeRow(t *testing.T, embeddingID, personID uint, given, family string, d faces.Descriptor) repository.IdentityDescriptor {
	t.Helper()
	text, err := d.Encode()
	if err != nil {
		t.Fatalf("encode failed: %v", err)
	}
	return repository.IdentityDescriptor{
		EmbeddingID: embeddingID,
		PersonID:    personID,
		GivenName:   given,
		FamilyName:  family,
		Data:        text,
		Strategy:    string(d.Kind),
	}
}

type staticSource struct {
	mu   sync.Mutex
	rows []repository.IdentityDescriptor
	err  error
}

func (s *staticSource) ListIdentityDescriptors(context.Context) ([]repository.IdentityDescriptor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]repository.IdentityDescriptor, len(s.rows))
	copy(out, s.rows)
	return out, nil
}

func (s *staticSource) set(rows []repository.IdentityDescriptor, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows, s.err = rows, err
}

func loadedIndex(t *testing.T, rows ...repository.IdentityDescriptor) *IdentityIndex {
	t.Helper()
	ix := NewIdentityIndex(&staticSource{rows: rows})
	if _, err := ix.Reload(context.Background()); err != nil {
		t.Fatalf("Reload failed: %v", err)
	}
	return ix
}

func learned(values ...float32) faces.Descriptor {
	return faces.Descriptor{Kind: faces.KindLearned, Values: values}
}

func classical(values ...float32) faces.Descriptor {
	return faces.Descriptor{Kind: faces.KindClassical, Values: values}
}

// fixedLocator says the whole crop is a face.
type fixedLocator struct{}

func (fixedLocator) Locate(img image.Image) (image.Rectangle, error) { return img.Bounds(), nil }

// fixedEmbedder returns the same embedding for every face.
type fixedEmbedder struct{ values []float32 }

func (f fixedEmbedder) Embed(image.Image) ([]float32, error) { return f.values, nil }

type fixedDetector []image.Rectangle

func (d fixedDetector) DetectFaces(image.Image) []image.Rectangle { return d }

type panickingDetector struct{}

func (panickingDetector) DetectFaces(image.Image) []image.Rectangle { panic("detector crashed") }

func patternImage(seed int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, 120, 120))
	for y := 0; y < 120; y++ {
		for x := 0; x < 120; x++ {
			v := uint8((x*seed + y*(seed+3)) % 256)
			img.Set(x, y, color.RGBA{R: v, G: v / 2, B: 255 - v, A: 255})
		}
	}
	return img
}

// memoryPeople is an in-memory PersonRepositoryInterface with failure hooks.
type memoryPeople struct {
	mu        sync.Mutex
	people    []models.Person
	rows      []repository.IdentityDescriptor
	nextID    uint
	existsErr error
	createErr error
	creates   int
}

func (m *memoryPeople) CreateWithEmbedding(_ context.Context, p *models.Person, d faces.Descriptor) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creates++
	if m.createErr != nil {
		return m.createErr
	}
	for _, existing := range m.people {
		if existing.Email == p.Email {
			return repository.ErrDuplicateEmail
		}
	}
	text, err := d.Encode()
	if err != nil {
		return err
	}
	m.nextID++
	p.ID = m.nextID
	m.people = append(m.people, *p)
	m.rows = append(m.rows, repository.IdentityDescriptor{
		EmbeddingID: p.ID,
		PersonID:    p.ID,
		GivenName:   p.GivenName,
		FamilyName:  p.FamilyName,
		Data:        text,
		Strategy:    string(d.Kind),
	})
	return nil
}

func (m *memoryPeople) GetByID(_ context.Context, id uint) (*models.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.people {
		if p.ID == id {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryPeople) GetByEmail(_ context.Context, email string) (*models.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range m.people {
		if p.Email == email {
			p := p
			return &p, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memoryPeople) EmailExists(ctx context.Context, email string) (bool, error) {
	if m.existsErr != nil {
		return false, m.existsErr
	}
	_, err := m.GetByEmail(ctx, email)
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

func (m *memoryPeople) ListAll(context.Context) ([]models.Person, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]models.Person(nil), m.people...), nil
}

func (m *memoryPeople) Delete(_ context.Context, id uint) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, p := range m.people {
		if p.ID == id {
			m.people = append(m.people[:i], m.people[i+1:]...)
			kept := m.rows[:0]
			for _, r := range m.rows {
				if r.PersonID != id {
					kept = append(kept, r)
				}
			}
			m.rows = kept
			return p.DisplayName(), nil
		}
	}
	return "", repository.ErrNotFound
}

func (m *memoryPeople) ListIdentityDescriptors(context.Context) ([]repository.IdentityDescriptor, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]repository.IdentityDescriptor(nil), m.rows...), nil
}

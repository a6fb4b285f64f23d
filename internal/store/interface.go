package store

import (
	"context"

	"smarttracker/internal/models"
)

// Image is an uploaded file handed to the store together with the base URL
// its public reference should be built from.
type Image struct {
	Path          string
	PublicBaseURL string
}

// CreateInput carries the raw fields of a create request.
type CreateInput struct {
	Latitude    string
	Longitude   string
	Description string
	Timestamp   string
	Image       *Image
}

// UpdateInput carries the raw fields of an update request. Empty fields are left unchanged.
type UpdateInput struct {
	Latitude    string
	Longitude   string
	Description string
	Image       *Image
}

// ActivityStore abstracts activity storage backends.
type ActivityStore interface {
	Create(ctx context.Context, in CreateInput) (models.Activity, error)
	List(ctx context.Context) []models.Activity
	Get(ctx context.Context, id string) (models.Activity, error)
	Update(ctx context.Context, id string, in UpdateInput) (models.Activity, error)
	Delete(ctx context.Context, id string) (string, error)
	Search(ctx context.Context, query string) []models.Activity
	Count(ctx context.Context) int
}

// Attacher resolves stored files into image references and removes them.
type Attacher interface {
	Attach(storedPath, publicBaseURL string) (imageURL string, imagePath string, err error)
	Release(imagePath string) error
}

var _ ActivityStore = (*Store)(nil)

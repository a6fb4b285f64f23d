package store

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"smarttracker/internal/models"
)

// Store keeps activities in memory for the lifetime of the process.
// One mutex guards the collection, the id counter and the attachment
// releases that go with a mutation.
type Store struct {
	mu       sync.Mutex
	byID     map[string]*models.Activity
	order    []string
	ids      idSequence
	attacher Attacher
	logger   *slog.Logger
	now      func() time.Time
}

// New creates an empty store. attacher may be nil when images are not used.
func New(attacher Attacher, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		byID:     map[string]*models.Activity{},
		attacher: attacher,
		logger:   logger,
		now:      time.Now,
	}
}

// Create validates the input, assigns the next id and appends the activity.
// On failure the image handed in, if any, is released.
func (s *Store) Create(ctx context.Context, in CreateInput) (models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lat, err := parseRequiredCoordinate("latitude", in.Latitude)
	if err != nil {
		s.discard(ctx, in.Image)
		return models.Activity{}, err
	}
	lon, err := parseRequiredCoordinate("longitude", in.Longitude)
	if err != nil {
		s.discard(ctx, in.Image)
		return models.Activity{}, err
	}

	activity := &models.Activity{
		Latitude:  lat,
		Longitude: lon,
		Timestamp: in.Timestamp,
	}
	if in.Description != "" {
		desc := in.Description
		activity.Description = &desc
	}
	if activity.Timestamp == "" {
		activity.Timestamp = models.NowTimestamp(s.now())
	}
	if in.Image != nil {
		url, path, err := s.attach(in.Image)
		if err != nil {
			s.discard(ctx, in.Image)
			return models.Activity{}, err
		}
		activity.SetImage(url, path)
	}

	activity.ID = s.ids.next()
	s.byID[activity.ID] = activity
	s.order = append(s.order, activity.ID)

	s.logger.DebugContext(ctx, "activity created", "id", activity.ID, "image", activity.HasImage())
	return activity.Clone(), nil
}

// List returns every activity, newest timestamp first.
func (s *Store) List(ctx context.Context) []models.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	return sortNewestFirst(s.snapshot())
}

// Get returns one activity by id.
func (s *Store) Get(ctx context.Context, id string) (models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	activity, ok := s.byID[id]
	if !ok {
		return models.Activity{}, &NotFoundError{ID: id}
	}
	return activity.Clone(), nil
}

// Update overwrites the non-empty fields of an activity. A new image replaces
// the old one only after the old file has been removed.
func (s *Store) Update(ctx context.Context, id string, in UpdateInput) (models.Activity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		s.discard(ctx, in.Image)
		return models.Activity{}, &NotFoundError{ID: id}
	}

	next := current.Clone()
	if in.Latitude != "" {
		lat, err := parseCoordinate("latitude", in.Latitude)
		if err != nil {
			s.discard(ctx, in.Image)
			return models.Activity{}, err
		}
		next.Latitude = lat
	}
	if in.Longitude != "" {
		lon, err := parseCoordinate("longitude", in.Longitude)
		if err != nil {
			s.discard(ctx, in.Image)
			return models.Activity{}, err
		}
		next.Longitude = lon
	}
	if in.Description != "" {
		desc := in.Description
		next.Description = &desc
	}

	if in.Image != nil {
		url, path, err := s.attach(in.Image)
		if err != nil {
			s.discard(ctx, in.Image)
			return models.Activity{}, err
		}
		if current.HasImage() && *current.ImagePath != path {
			if err := s.release(*current.ImagePath); err != nil {
				s.discard(ctx, in.Image)
				return models.Activity{}, err
			}
		}
		next.SetImage(url, path)
	}

	*current = next
	s.logger.DebugContext(ctx, "activity updated", "id", id, "image_replaced", in.Image != nil)
	return current.Clone(), nil
}

// Delete removes the activity and its image file, returning the deleted id.
func (s *Store) Delete(ctx context.Context, id string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.byID[id]
	if !ok {
		return "", &NotFoundError{ID: id}
	}
	if current.HasImage() {
		if err := s.release(*current.ImagePath); err != nil {
			return "", err
		}
	}

	delete(s.byID, id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}

	s.logger.DebugContext(ctx, "activity deleted", "id", id)
	return id, nil
}

// Search matches query case-insensitively against the description or the
// "lat,lon" string. An empty query matches everything.
func (s *Store) Search(ctx context.Context, query string) []models.Activity {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.snapshot()
	if query == "" {
		return sortNewestFirst(all)
	}

	needle := strings.ToLower(query)
	matched := make([]models.Activity, 0, len(all))
	for _, activity := range all {
		desc := ""
		if activity.Description != nil {
			desc = strings.ToLower(*activity.Description)
		}
		if strings.Contains(desc, needle) || strings.Contains(activity.Location(), needle) {
			matched = append(matched, activity)
		}
	}
	return sortNewestFirst(matched)
}

// Count returns the number of stored activities.
func (s *Store) Count(ctx context.Context) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.order)
}

func (s *Store) snapshot() []models.Activity {
	out := make([]models.Activity, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.byID[id].Clone())
	}
	return out
}

func (s *Store) attach(img *Image) (string, string, error) {
	if s.attacher == nil {
		return "", "", &StorageError{Op: "attach", Path: img.Path, Err: fmt.Errorf("attachments are not configured")}
	}
	url, path, err := s.attacher.Attach(img.Path, img.PublicBaseURL)
	if err != nil {
		return "", "", &StorageError{Op: "attach", Path: img.Path, Err: err}
	}
	return url, path, nil
}

func (s *Store) release(path string) error {
	if s.attacher == nil {
		return &StorageError{Op: "release", Path: path, Err: fmt.Errorf("attachments are not configured")}
	}
	if err := s.attacher.Release(path); err != nil {
		return &StorageError{Op: "release", Path: path, Err: err}
	}
	return nil
}

// discard drops an uploaded file that never became part of a record.
func (s *Store) discard(ctx context.Context, img *Image) {
	if img == nil || s.attacher == nil {
		return
	}
	if err := s.attacher.Release(img.Path); err != nil {
		s.logger.WarnContext(ctx, "discard orphaned upload", "path", img.Path, "error", err)
	}
}

func parseRequiredCoordinate(field, raw string) (float64, error) {
	if raw == "" {
		return 0, &ValidationError{Field: field, Message: "is required"}
	}
	return parseCoordinate(field, raw)
}

func parseCoordinate(field, raw string) (float64, error) {
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ValidationError{Field: field, Message: "must be a number"}
	}
	return v, nil
}

type sortKey struct {
	at     time.Time
	parsed bool
}

// sortNewestFirst orders by timestamp descending and keeps insertion order on
// ties. Timestamps that do not parse sort after those that do, by raw string.
func sortNewestFirst(activities []models.Activity) []models.Activity {
	keys := make(map[string]sortKey, len(activities))
	for _, a := range activities {
		t, ok := models.ParseTimestamp(a.Timestamp)
		keys[a.ID] = sortKey{at: t, parsed: ok}
	}
	sort.SliceStable(activities, func(i, j int) bool {
		a, b := activities[i], activities[j]
		ka, kb := keys[a.ID], keys[b.ID]
		switch {
		case ka.parsed && kb.parsed:
			return ka.at.After(kb.at)
		case ka.parsed != kb.parsed:
			return ka.parsed
		default:
			return a.Timestamp > b.Timestamp
		}
	})
	return activities
}

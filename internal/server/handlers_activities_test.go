package server

import (
	"bytes"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"smarttracker/internal/api"
	"smarttracker/internal/models"
	"smarttracker/internal/upload"
)

func jpegUpload(name string) *api.ImageUpload {
	return &api.ImageUpload{Filename: name, MediaType: "image/jpeg", Content: bytes.NewReader(jpegBytes)}
}

func activityIDs(activities []models.Activity) []string {
	ids := make([]string, 0, len(activities))
	for _, a := range activities {
		ids = append(ids, a.ID)
	}
	return ids
}

func requireAPIError(t *testing.T, err error, status, code int) {
	t.Helper()
	var apiErr *api.APIError
	require.True(t, errors.As(err, &apiErr), "expected *api.APIError, got %v", err)
	assert.Equal(t, status, apiErr.Status)
	assert.Equal(t, code, apiErr.ErrorCode)
}

func TestActivityLifecycle(t *testing.T) {
	env := newTestEnv(t, Options{})
	client := env.client()
	ctx := t.Context()

	first, err := client.CreateActivity(ctx, api.ActivityRequest{
		Latitude:    "1.0",
		Longitude:   "2.0",
		Description: "Park run",
		Timestamp:   "2024-05-01T08:00:00.000Z",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "1", first.ID)
	assert.Nil(t, first.ImageURL)
	assert.Nil(t, first.ImagePath)

	second, err := client.CreateActivity(ctx, api.ActivityRequest{
		Latitude:  "3.5",
		Longitude: "4.25",
		Timestamp: "2024-05-02T08:00:00.000Z",
	}, jpegUpload("trail.jpg"))
	require.NoError(t, err)
	assert.Equal(t, "2", second.ID)
	assert.Nil(t, second.Description)
	require.NotNil(t, second.ImageURL)
	require.NotNil(t, second.ImagePath)
	assert.True(t, strings.HasPrefix(*second.ImageURL, env.ts.URL+"/uploads/"), *second.ImageURL)
	assert.False(t, filepath.IsAbs(*second.ImagePath), "image path must not expose the server filesystem")
	assert.True(t, strings.HasSuffix(*second.ImageURL, "/"+*second.ImagePath), *second.ImageURL)
	assert.FileExists(t, filepath.Join(env.dir, *second.ImagePath))

	resp, err := http.Get(*second.ImageURL)
	require.NoError(t, err)
	served, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, jpegBytes, served)

	list, err := client.ListActivities(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "1"}, activityIDs(list))

	found, err := client.SearchActivities(ctx, "park")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, activityIDs(found))

	deleted, err := client.DeleteActivity(ctx, "2")
	require.NoError(t, err)
	assert.Equal(t, "2", deleted.ID)
	assert.Equal(t, "Activity deleted successfully", deleted.Message)

	_, err = client.GetActivity(ctx, "2")
	requireAPIError(t, err, http.StatusNotFound, ErrCodeActivityNotFound)
	_, err = os.Stat(filepath.Join(env.dir, *second.ImagePath))
	assert.True(t, os.IsNotExist(err))
}

func TestCreateActivityValidation(t *testing.T) {
	env := newTestEnv(t, Options{})
	cases := []struct {
		name string
		body string
		code int
	}{
		{name: "missing longitude", body: `{"latitude": 1}`, code: ErrCodeMissingRequired},
		{name: "empty body", body: ``, code: ErrCodeMissingRequired},
		{name: "non-numeric", body: `{"latitude": "north", "longitude": 2}`, code: ErrCodeInvalidCoordinate},
		{name: "malformed json", body: `{"latitude":`, code: ErrCodeInvalidJSON},
		{name: "wrong type", body: `{"latitude": 1, "longitude": 2, "description": 7}`, code: ErrCodeInvalidJSON},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/activities", strings.NewReader(tc.body))
			req.Header.Set("Content-Type", "application/json")
			w, errResp := serve(t, env.srv, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.code, errResp.ErrorCode)
			assert.Equal(t, "invalid_argument", errResp.Code)
		})
	}
	assert.Zero(t, env.srv.store.Count(t.Context()))
}

func TestCreateActivityAcceptsNumericAndStringCoordinates(t *testing.T) {
	env := newTestEnv(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/activities",
		strings.NewReader(`{"latitude": 51.5, "longitude": "-0.12", "description": "Thames"}`))
	req.Header.Set("Content-Type", "application/json")
	w, _ := serve(t, env.srv, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"latitude":51.5`)
	assert.Contains(t, w.Body.String(), `"longitude":-0.12`)
	assert.Contains(t, w.Body.String(), `"imageUrl":null`)
}

func TestCreateActivityURLEncodedForm(t *testing.T) {
	env := newTestEnv(t, Options{})
	req := httptest.NewRequest(http.MethodPost, "/api/activities",
		strings.NewReader("latitude=10&longitude=20&description=Lake+loop"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w, _ := serve(t, env.srv, req)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Contains(t, w.Body.String(), `"description":"Lake loop"`)
}

func TestCreateActivityRejectsUpload(t *testing.T) {
	env := newTestEnv(t, Options{})
	fields := map[string]string{"latitude": "1", "longitude": "2"}

	cases := []struct {
		name      string
		filename  string
		mediaType string
		content   []byte
		code      int
	}{
		{name: "text file", filename: "notes.txt", mediaType: "text/plain", content: []byte("hello"), code: ErrCodeInvalidFileType},
		{name: "disguised text", filename: "photo.jpg", mediaType: "image/jpeg", content: []byte("not an image at all"), code: ErrCodeInvalidFileType},
		{name: "empty file", filename: "empty.png", mediaType: "image/png", content: nil, code: ErrCodeEmptyFile},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			body, contentType := multipartBody(t, fields, tc.filename, tc.mediaType, tc.content)
			req := httptest.NewRequest(http.MethodPost, "/api/activities", body)
			req.Header.Set("Content-Type", contentType)
			w, errResp := serve(t, env.srv, req)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, tc.code, errResp.ErrorCode)
		})
	}
	assert.Empty(t, env.storedFiles(t))
	assert.Zero(t, env.srv.store.Count(t.Context()))
}

func TestCreateActivityOversizedUpload(t *testing.T) {
	env := newTestEnv(t, Options{})
	big := append(append([]byte{}, jpegBytes...), bytes.Repeat([]byte{0}, int(upload.DefaultMaxBytes))...)
	body, contentType := multipartBody(t, map[string]string{"latitude": "1", "longitude": "2"}, "big.jpg", "image/jpeg", big)
	req := httptest.NewRequest(http.MethodPost, "/api/activities", body)
	req.Header.Set("Content-Type", contentType)
	w, errResp := serve(t, env.srv, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, []int{ErrCodeFileTooLarge, ErrCodeRequestTooLarge}, errResp.ErrorCode)
	assert.Empty(t, env.storedFiles(t))
}

func TestCreateActivityInvalidCoordinatesReleasesUpload(t *testing.T) {
	env := newTestEnv(t, Options{})
	body, contentType := multipartBody(t, map[string]string{"latitude": "1"}, "run.jpg", "image/jpeg", jpegBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/activities", body)
	req.Header.Set("Content-Type", contentType)
	w, errResp := serve(t, env.srv, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeMissingRequired, errResp.ErrorCode)
	assert.Empty(t, env.storedFiles(t))
}

func TestCreateActivityRejectsUnexpectedFileField(t *testing.T) {
	env := newTestEnv(t, Options{})
	body := &bytes.Buffer{}
	body.WriteString("--b\r\nContent-Disposition: form-data; name=\"photo\"; filename=\"a.jpg\"\r\nContent-Type: image/jpeg\r\n\r\n")
	body.Write(jpegBytes)
	body.WriteString("\r\n--b--\r\n")
	req := httptest.NewRequest(http.MethodPost, "/api/activities", body)
	req.Header.Set("Content-Type", "multipart/form-data; boundary=b")
	w, errResp := serve(t, env.srv, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, ErrCodeInvalidMultipart, errResp.ErrorCode)
}

func TestUpdateActivity(t *testing.T) {
	env := newTestEnv(t, Options{})
	client := env.client()
	ctx := t.Context()

	created, err := client.CreateActivity(ctx, api.ActivityRequest{
		Latitude:    "1",
		Longitude:   "2",
		Description: "Morning ride",
	}, jpegUpload("first.jpg"))
	require.NoError(t, err)
	require.NotNil(t, created.ImagePath)
	oldPath := filepath.Join(env.dir, *created.ImagePath)

	t.Run("fields only keeps image", func(t *testing.T) {
		updated, err := client.UpdateActivity(ctx, created.ID, api.ActivityRequest{Description: "Evening ride"}, nil)
		require.NoError(t, err)
		require.NotNil(t, updated.Description)
		assert.Equal(t, "Evening ride", *updated.Description)
		assert.Equal(t, float64(1), updated.Latitude)
		assert.Equal(t, created.ImageURL, updated.ImageURL)
		assert.FileExists(t, oldPath)
	})

	t.Run("new image replaces old file", func(t *testing.T) {
		updated, err := client.UpdateActivity(ctx, created.ID, api.ActivityRequest{Latitude: "9"}, jpegUpload("second.jpg"))
		require.NoError(t, err)
		require.NotNil(t, updated.ImagePath)
		newPath := filepath.Join(env.dir, *updated.ImagePath)
		assert.NotEqual(t, oldPath, newPath)
		assert.Equal(t, float64(9), updated.Latitude)
		assert.FileExists(t, newPath)
		assert.NoFileExists(t, oldPath)
		assert.Len(t, env.storedFiles(t), 1)
	})

	t.Run("patch is accepted", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPatch, "/api/activities/"+created.ID, strings.NewReader(`{"longitude": "7"}`))
		req.Header.Set("Content-Type", "application/json")
		w, _ := serve(t, env.srv, req)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"longitude":7`)
	})

	t.Run("numeric zero overwrites and empty is skipped", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPut, "/api/activities/"+created.ID, strings.NewReader(`{"latitude": 0, "longitude": "", "description": null}`))
		req.Header.Set("Content-Type", "application/json")
		w, _ := serve(t, env.srv, req)
		require.Equal(t, http.StatusOK, w.Code)

		got, err := client.GetActivity(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, float64(0), got.Latitude)
		assert.Equal(t, float64(7), got.Longitude)
		require.NotNil(t, got.Description)
		assert.Equal(t, "Evening ride", *got.Description)
	})

	t.Run("bad coordinate", func(t *testing.T) {
		_, err := client.UpdateActivity(ctx, created.ID, api.ActivityRequest{Longitude: "east"}, nil)
		requireAPIError(t, err, http.StatusBadRequest, ErrCodeInvalidCoordinate)
	})
}

func TestUpdateUnknownActivityDiscardsUpload(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, err := env.client().UpdateActivity(t.Context(), "99", api.ActivityRequest{}, jpegUpload("orphan.jpg"))
	requireAPIError(t, err, http.StatusNotFound, ErrCodeActivityNotFound)
	assert.Empty(t, env.storedFiles(t))
}

func TestDeleteUnknownActivity(t *testing.T) {
	env := newTestEnv(t, Options{})
	_, err := env.client().DeleteActivity(t.Context(), "42")
	requireAPIError(t, err, http.StatusNotFound, ErrCodeActivityNotFound)
}

func TestSearchRoute(t *testing.T) {
	env := newTestEnv(t, Options{})
	client := env.client()
	ctx := t.Context()

	_, err := client.CreateActivity(ctx, api.ActivityRequest{Latitude: "40.7128", Longitude: "-74.006", Description: "Bridge walk"}, nil)
	require.NoError(t, err)
	_, err = client.CreateActivity(ctx, api.ActivityRequest{Latitude: "1", Longitude: "2", Description: "Park run"}, nil)
	require.NoError(t, err)

	byLocation, err := client.SearchActivities(ctx, "40.71")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, activityIDs(byLocation))

	byText, err := client.SearchActivities(ctx, "WALK")
	require.NoError(t, err)
	assert.Equal(t, []string{"1"}, activityIDs(byText))

	all, err := client.SearchActivities(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 2)

	none, err := client.SearchActivities(ctx, "swim")
	require.NoError(t, err)
	assert.NotNil(t, none)
	assert.Empty(t, none)

	// Spaces in the query are significant.
	spaced, err := client.SearchActivities(ctx, "park ")
	require.NoError(t, err)
	assert.Equal(t, []string{"2"}, activityIDs(spaced))

	trailing, err := client.SearchActivities(ctx, "run ")
	require.NoError(t, err)
	assert.Empty(t, trailing)

	blank, err := client.SearchActivities(ctx, " ")
	require.NoError(t, err)
	assert.Len(t, blank, 2, "both descriptions contain a space")
}

func TestImageURLBase(t *testing.T) {
	t.Run("configured public url", func(t *testing.T) {
		env := newTestEnv(t, Options{PublicURL: "https://cdn.example.com/"})
		created, err := env.client().CreateActivity(t.Context(), api.ActivityRequest{Latitude: "1", Longitude: "2"}, jpegUpload("a.jpg"))
		require.NoError(t, err)
		require.NotNil(t, created.ImageURL)
		assert.True(t, strings.HasPrefix(*created.ImageURL, "https://cdn.example.com/uploads/"), *created.ImageURL)
	})

	t.Run("forwarded proto and host", func(t *testing.T) {
		env := newTestEnv(t, Options{PublicPath: "/media"})
		body, contentType := multipartBody(t, map[string]string{"latitude": "1", "longitude": "2"}, "a.jpg", "image/jpeg", jpegBytes)
		req := httptest.NewRequest(http.MethodPost, "/api/activities", body)
		req.Host = "tracker.example.com"
		req.Header.Set("Content-Type", contentType)
		req.Header.Set("X-Forwarded-Proto", "https, http")
		w, _ := serve(t, env.srv, req)
		require.Equal(t, http.StatusCreated, w.Code)
		assert.Contains(t, w.Body.String(), `"imageUrl":"https://tracker.example.com/media/`)
	})
}

func TestUploadedFileServing(t *testing.T) {
	env := newTestEnv(t, Options{})
	for _, path := range []string{"/uploads/.tmp", "/uploads/missing.jpg"} {
		t.Run(path, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, path, nil)
			w := httptest.NewRecorder()
			env.srv.Handler().ServeHTTP(w, req)
			assert.Equal(t, http.StatusNotFound, w.Code)
		})
	}
}

func TestUploadLimiterSaturated(t *testing.T) {
	env := newTestEnv(t, Options{})
	for range cap(env.srv.uploadLimiter) {
		env.srv.uploadLimiter <- struct{}{}
	}

	body, contentType := multipartBody(t, map[string]string{"latitude": "1", "longitude": "2"}, "a.jpg", "image/jpeg", jpegBytes)
	req := httptest.NewRequest(http.MethodPost, "/api/activities", body)
	req.Header.Set("Content-Type", contentType)
	w, errResp := serve(t, env.srv, req)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, ErrCodeResourceExhausted, errResp.ErrorCode)

	jsonReq := httptest.NewRequest(http.MethodPost, "/api/activities", strings.NewReader(`{"latitude":1,"longitude":2}`))
	jsonReq.Header.Set("Content-Type", "application/json")
	w, _ = serve(t, env.srv, jsonReq)
	assert.Equal(t, http.StatusCreated, w.Code)
}

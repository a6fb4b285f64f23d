package server

import (
	"errors"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"strings"

	"smarttracker/internal/api"
	"smarttracker/internal/store"
)

const imageFormField = "image"

// activityPayload is a create or update request after transport decoding.
// image is set only when a file part was accepted and stored.
type activityPayload struct {
	latitude    string
	longitude   string
	description string
	timestamp   string
	image       *store.Image
}

func (p activityPayload) createInput() store.CreateInput {
	return store.CreateInput{
		Latitude:    p.latitude,
		Longitude:   p.longitude,
		Description: p.description,
		Timestamp:   p.timestamp,
		Image:       p.image,
	}
}

func (p activityPayload) updateInput() store.UpdateInput {
	return store.UpdateInput{
		Latitude:    p.latitude,
		Longitude:   p.longitude,
		Description: p.description,
		Image:       p.image,
	}
}

func requestMediaType(r *http.Request) string {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if err != nil {
		return ""
	}
	return strings.ToLower(mediaType)
}

func isMultipart(r *http.Request) bool {
	return requestMediaType(r) == "multipart/form-data"
}

// readActivityPayload decodes a JSON, urlencoded or multipart body. For
// multipart requests the image part is stored last, so any error returned
// here leaves nothing behind in the content directory.
func (s *Server) readActivityPayload(w http.ResponseWriter, r *http.Request) (activityPayload, error) {
	switch requestMediaType(r) {
	case "multipart/form-data":
		return s.readMultipartPayload(w, r)
	case "application/x-www-form-urlencoded":
		r.Body = http.MaxBytesReader(w, r.Body, defaultJSONMaxBody)
		if err := r.ParseForm(); err != nil {
			return activityPayload{}, classifyDecodeJSONError(err)
		}
		return activityPayload{
			latitude:    strings.TrimSpace(r.PostForm.Get("latitude")),
			longitude:   strings.TrimSpace(r.PostForm.Get("longitude")),
			description: r.PostForm.Get("description"),
			timestamp:   strings.TrimSpace(r.PostForm.Get("timestamp")),
		}, nil
	default:
		var req api.ActivityRequest
		if err := decodeJSON(w, r, &req); err != nil {
			if errors.Is(err, io.EOF) {
				return activityPayload{}, nil
			}
			return activityPayload{}, classifyDecodeJSONError(err)
		}
		return activityPayload{
			latitude:    req.Latitude.String(),
			longitude:   req.Longitude.String(),
			description: req.Description,
			timestamp:   strings.TrimSpace(req.Timestamp),
		}, nil
	}
}

func (s *Server) readMultipartPayload(w http.ResponseWriter, r *http.Request) (activityPayload, error) {
	limit := int64(defaultJSONMaxBody + multipartOverheadBytes)
	if s.uploads != nil {
		limit = s.uploads.MaxBytes() + multipartOverheadBytes
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(s.multipartMemory); err != nil {
		var maxBytesErr *http.MaxBytesError
		if errors.As(err, &maxBytesErr) {
			return activityPayload{}, badRequestCode(fmt.Errorf("request body too large"), ErrCodeRequestTooLarge)
		}
		return activityPayload{}, badRequestCode(fmt.Errorf("invalid multipart payload: %w", err), ErrCodeInvalidMultipart)
	}
	defer func() {
		_ = r.MultipartForm.RemoveAll()
	}()

	form := r.MultipartForm
	payload := activityPayload{
		latitude:    strings.TrimSpace(formValue(form, "latitude")),
		longitude:   strings.TrimSpace(formValue(form, "longitude")),
		description: formValue(form, "description"),
		timestamp:   strings.TrimSpace(formValue(form, "timestamp")),
	}

	for field := range form.File {
		if field != imageFormField {
			return activityPayload{}, badRequestCode(fmt.Errorf("unexpected file field %q", field), ErrCodeInvalidMultipart)
		}
	}
	files := form.File[imageFormField]
	switch {
	case len(files) == 0:
		return payload, nil
	case len(files) > 1:
		return activityPayload{}, badRequestCode(fmt.Errorf("only one image may be uploaded"), ErrCodeInvalidMultipart)
	case s.uploads == nil:
		return activityPayload{}, badRequestCode(fmt.Errorf("image uploads are disabled"), ErrCodeInvalidMultipart)
	}

	image, err := s.storeUpload(r, files[0])
	if err != nil {
		return activityPayload{}, err
	}
	payload.image = image
	return payload, nil
}

func (s *Server) storeUpload(r *http.Request, header *multipart.FileHeader) (*store.Image, error) {
	file, err := header.Open()
	if err != nil {
		return nil, badRequestCode(fmt.Errorf("read image part: %w", err), ErrCodeInvalidMultipart)
	}
	defer file.Close()

	stored, err := s.uploads.Save(r.Context(), header.Filename, header.Header.Get("Content-Type"), file)
	if err != nil {
		return nil, classifyUploadError(err)
	}
	s.log().Debug("upload stored", "name", stored.Name, "media_type", stored.MediaType, "size_bytes", stored.SizeBytes)
	return &store.Image{Path: stored.Path, PublicBaseURL: s.publicBaseURL(r)}, nil
}

func formValue(form *multipart.Form, key string) string {
	if form == nil {
		return ""
	}
	values := form.Value[key]
	if len(values) == 0 {
		return ""
	}
	return values[0]
}

// publicBaseURL is the scheme and host image URLs are built on.
func (s *Server) publicBaseURL(r *http.Request) string {
	if s.publicURL != "" {
		return s.publicURL
	}
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if forwarded := r.Header.Get("X-Forwarded-Proto"); forwarded != "" {
		proto, _, _ := strings.Cut(forwarded, ",")
		if proto = strings.ToLower(strings.TrimSpace(proto)); proto == "http" || proto == "https" {
			scheme = proto
		}
	}
	return scheme + "://" + r.Host
}

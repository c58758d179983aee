package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"mime/multipart"
	"net/http"
	"os"
	"strings"

	"postgate/internal/apperr"
	"postgate/internal/files"
	"postgate/internal/logger"
	"postgate/internal/services"
)

const (
	maxFieldSize = 64 << 10
	// room for form fields and multipart framing around the image itself
	bodyOverhead = 1 << 20
)

// postRequest accepts username/password as aliases so older clients keep
// working.
type postRequest struct {
	Identifier string `json:"identifier"`
	Username   string `json:"username"`
	Secret     string `json:"secret"`
	Password   string `json:"password"`
	Caption    string `json:"caption"`
	ImageURL   string `json:"image_url"`
	ImagePath  string `json:"image_path"`
}

func (r *postRequest) normalize() {
	if r.Identifier == "" {
		r.Identifier = r.Username
	}
	if r.Secret == "" {
		r.Secret = r.Password
	}
	r.Identifier = strings.TrimSpace(r.Identifier)
	r.ImageURL = strings.TrimSpace(r.ImageURL)
	r.ImagePath = strings.TrimSpace(r.ImagePath)
}

type Publisher interface {
	Publish(ctx context.Context, req services.PostRequest) (*services.PostResult, error)
}

type PostHandler struct {
	publisher   Publisher
	fetcher     *files.Fetcher
	scratch     *files.Scratch
	maxFileSize int64
	logger      *slog.Logger
}

func NewPostHandler(
	publisher Publisher,
	fetcher *files.Fetcher,
	scratch *files.Scratch,
	maxFileSize int64,
	log *slog.Logger,
) *PostHandler {
	if log == nil {
		log = slog.Default()
	}
	return &PostHandler{
		publisher:   publisher,
		fetcher:     fetcher,
		scratch:     scratch,
		maxFileSize: maxFileSize,
		logger:      log.With(logger.Component("http")),
	}
}

// PostImage handles POST /post-image. JSON bodies pick the image by
// image_url or image_path; multipart bodies carry it in the "image" part or
// name it with an image_url field.
func (h *PostHandler) PostImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxFileSize+bodyOverhead)

	var (
		req services.PostRequest
		err error
	)
	if isMultipart(r) {
		req, err = h.parseMultipart(r)
	} else {
		req, err = h.parseJSON(r)
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}

	res, err := h.publisher.Publish(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "success",
		"media_id": res.MediaID,
		"caption":  res.Caption,
	})
}

func (h *PostHandler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *PostHandler) parseJSON(r *http.Request) (services.PostRequest, error) {
	var body postRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if errors.Is(err, io.EOF) {
			return services.PostRequest{}, apperr.Validation("request body is empty")
		}
		return services.PostRequest{}, bodyError(err)
	}
	body.normalize()

	if err := requireCredentials(body.Identifier, body.Secret); err != nil {
		return services.PostRequest{}, err
	}

	var source files.Source
	switch {
	case body.ImageURL != "" && body.ImagePath != "":
		return services.PostRequest{}, apperr.Validation("provide either image_url or image_path, not both")
	case body.ImageURL != "":
		source = files.URLSource{Fetcher: h.fetcher, URL: body.ImageURL}
	case body.ImagePath != "":
		if err := checkLocalFile(body.ImagePath); err != nil {
			return services.PostRequest{}, err
		}
		source = files.LocalSource{Path: body.ImagePath}
	default:
		return services.PostRequest{}, apperr.Validation("image_url or image_path is required")
	}

	return services.PostRequest{
		Identifier: body.Identifier,
		Secret:     body.Secret,
		Caption:    body.Caption,
		Source:     source,
	}, nil
}

// parseMultipart streams the body part by part. The "image" file part goes
// straight into scratch; nothing spills to the OS temp dir. The saved file is
// removed again if the request turns out to be invalid.
func (h *PostHandler) parseMultipart(r *http.Request) (req services.PostRequest, err error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return services.PostRequest{}, bodyError(err)
	}

	var (
		body  postRequest
		saved *files.SavedSource
	)
	defer func() {
		if err != nil && saved != nil {
			saved.Cleanup()
		}
	}()

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return services.PostRequest{}, bodyError(err)
		}

		if part.FormName() == "image" && part.FileName() != "" {
			if saved != nil {
				_ = part.Close()
				return services.PostRequest{}, apperr.Validation("only one image file may be sent")
			}
			saved, err = h.saveUpload(r, part)
			_ = part.Close()
			if err != nil {
				return services.PostRequest{}, err
			}
			continue
		}

		value, err := readField(part)
		_ = part.Close()
		if err != nil {
			return services.PostRequest{}, err
		}
		switch part.FormName() {
		case "identifier":
			body.Identifier = value
		case "username":
			body.Username = value
		case "secret":
			body.Secret = value
		case "password":
			body.Password = value
		case "caption":
			body.Caption = value
		case "image_url":
			body.ImageURL = value
		}
	}
	body.normalize()

	if err := requireCredentials(body.Identifier, body.Secret); err != nil {
		return services.PostRequest{}, err
	}

	var source files.Source
	switch {
	case saved != nil && body.ImageURL != "":
		return services.PostRequest{}, apperr.Validation("provide either an image file or image_url, not both")
	case saved != nil:
		source = *saved
	case body.ImageURL != "":
		source = files.URLSource{Fetcher: h.fetcher, URL: body.ImageURL}
	default:
		return services.PostRequest{}, apperr.Validation("image file or image_url is required")
	}

	return services.PostRequest{
		Identifier: body.Identifier,
		Secret:     body.Secret,
		Caption:    body.Caption,
		Source:     source,
	}, nil
}

func (h *PostHandler) saveUpload(r *http.Request, part *multipart.Part) (*files.SavedSource, error) {
	upload := files.UploadSource{
		Scratch:  h.scratch,
		File:     part,
		Filename: part.FileName(),
		MaxSize:  h.maxFileSize,
	}
	path, cleanup, err := upload.Acquire(r.Context())
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, bodyError(err)
		}
		return nil, err
	}
	return &files.SavedSource{Path: path, Cleanup: cleanup}, nil
}

func readField(part *multipart.Part) (string, error) {
	data, err := io.ReadAll(io.LimitReader(part, maxFieldSize+1))
	if err != nil {
		return "", bodyError(err)
	}
	if len(data) > maxFieldSize {
		return "", apperr.Validation("form field " + part.FormName() + " is too large")
	}
	return string(data), nil
}

func (h *PostHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := apperr.Status(err)
	log := h.logger.With(
		logger.RequestID(RequestIDFrom(r.Context())),
		logger.StatusCode(status),
		logger.Error(err),
	)
	if status >= http.StatusInternalServerError {
		log.Error("post image failed", slog.String("kind", apperr.KindOf(err).String()))
	} else {
		log.Warn("post image rejected")
	}
	errorJSON(w, status, err.Error())
}

func requireCredentials(identifier, secret string) error {
	var missing []string
	if identifier == "" {
		missing = append(missing, "identifier")
	}
	if secret == "" {
		missing = append(missing, "secret")
	}
	if len(missing) > 0 {
		return apperr.Validation("missing required fields: " + strings.Join(missing, ", "))
	}
	return nil
}

func checkLocalFile(path string) error {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return apperr.NotFound("image_path does not exist: " + path)
	}
	return nil
}

func bodyError(err error) error {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		return apperr.New(apperr.KindValidation, "request body too large", err)
	}
	return apperr.New(apperr.KindValidation, "malformed request body", err)
}

func isMultipart(r *http.Request) bool {
	mediaType, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return err == nil && mediaType == "multipart/form-data"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func errorJSON(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

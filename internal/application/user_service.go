package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"cloud.google.com/go/storage"
	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sessionkit/identity-service/internal/domain/entity"
	repo "github.com/sessionkit/identity-service/internal/domain/repository"
	"github.com/sessionkit/identity-service/pkg/helpers"
)

// Caller-recoverable outcomes of the account service. Anything else returned
// by an operation is an internal failure and is surfaced opaquely at the
// boundary.
var (
	ErrInvalidUserID   = errors.New("invalid user id format")
	ErrUserNotFound    = errors.New("no user with this id exists")
	ErrEmailTaken      = errors.New("a user with this email already exists")
	ErrMalformedUpdate = errors.New("update request was malformed")
)

type Service struct {
	Repo         repo.UserRepository
	GCS          *storage.Client
	GCSBucket    string
	Logger       *logrus.Logger
	ES           *elasticsearch.Client
	ESUsersIndex string
}

func NewService(repo repo.UserRepository, gcs *storage.Client, gcsBucket string, logger *logrus.Logger, es *elasticsearch.Client, esUsersIndex string) *Service {
	return &Service{
		Repo:         repo,
		GCS:          gcs,
		GCSBucket:    gcsBucket,
		Logger:       logger,
		ES:           es,
		ESUsersIndex: esUsersIndex,
	}
}

type CreateUserInput struct {
	Name     string
	Email    string
	Password string
}

// UpdateUserInput carries a partial update; nil fields are left untouched.
type UpdateUserInput struct {
	Name     *string
	Email    *string
	Password *string
}

func isUUIDv4(s string) bool {
	u, err := uuid.Parse(s)
	return err == nil && u.Version() == 4
}

// findUser validates the id shape and resolves the target. Update and Delete
// reuse it so "no such user" looks the same to callers whether the id was
// malformed, absent, or raced away.
func (s *Service) findUser(ctx context.Context, id string) (*entity.User, error) {
	if !isUUIDv4(id) {
		return nil, ErrInvalidUserID
	}
	u, err := s.Repo.GetByID(ctx, id)
	switch {
	case err == nil:
		return u, nil
	case errors.Is(err, repo.ErrNotFound):
		return nil, ErrUserNotFound
	default:
		return nil, fmt.Errorf("load user %s: %w", id, err)
	}
}

// FindByID returns the projection of a single user.
func (s *Service) FindByID(ctx context.Context, id string) (*entity.Profile, error) {
	u, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}
	p := u.Profile()
	return &p, nil
}

// GetAll returns every user's projection; the list may be empty.
func (s *Service) GetAll(ctx context.Context) ([]entity.Profile, error) {
	users, err := s.Repo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	profiles := make([]entity.Profile, 0, len(users))
	for i := range users {
		profiles = append(profiles, users[i].Profile())
	}
	return profiles, nil
}

// Create provisions a credentials-based user. Email uniqueness is enforced by
// the store, not pre-checked here; a collision surfaces as ErrEmailTaken.
func (s *Service) Create(ctx context.Context, in CreateUserInput) (*entity.Profile, error) {
	hash, err := helpers.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u := &entity.User{
		Name:               in.Name,
		Email:              in.Email,
		Password:           hash,
		Role:               entity.RoleRegular,
		Method:             entity.MethodCredentials,
		IsVerified:         false,
		IsTwoFactorEnabled: false,
	}

	if err := s.Repo.Create(ctx, u); err != nil {
		if errors.Is(err, repo.ErrUniqueConflict) {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	_ = s.indexUser(ctx, u)
	p := u.Profile()
	return &p, nil
}

// Update changes only the supplied fields. A supplied password is re-hashed
// before the write; the raw secret never reaches the store.
func (s *Service) Update(ctx context.Context, id string, in UpdateUserInput) (*entity.Profile, error) {
	u, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		u.Name = *in.Name
	}
	if in.Email != nil {
		u.Email = *in.Email
	}
	if in.Password != nil {
		hash, err := helpers.HashPassword(*in.Password)
		if err != nil {
			return nil, fmt.Errorf("hash password: %w", err)
		}
		u.Password = hash
	}

	if err := s.Repo.Update(ctx, u); err != nil {
		switch {
		case errors.Is(err, repo.ErrUniqueConflict):
			return nil, ErrEmailTaken
		case errors.Is(err, repo.ErrMalformedReference):
			return nil, ErrMalformedUpdate
		case errors.Is(err, repo.ErrNotFound):
			// deleted between resolve and write
			return nil, ErrUserNotFound
		default:
			return nil, fmt.Errorf("update user %s: %w", id, err)
		}
	}

	_ = s.indexUser(ctx, u)
	p := u.Profile()
	return &p, nil
}

// Delete removes the user and returns only an acknowledgment via nil error.
func (s *Service) Delete(ctx context.Context, id string) error {
	u, err := s.findUser(ctx, id)
	if err != nil {
		return err
	}

	if err := s.Repo.Delete(ctx, u.ID); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			// lost the race to a concurrent delete
			return ErrUserNotFound
		}
		return fmt.Errorf("delete user %s: %w", id, err)
	}
	return nil
}

// UploadAvatar stores the image in GCS and records its public URL on the user.
func (s *Service) UploadAvatar(ctx context.Context, id string, r io.Reader, filename, contentType string) (*entity.Profile, error) {
	u, err := s.findUser(ctx, id)
	if err != nil {
		return nil, err
	}

	url, err := s.uploadImageToGCS(ctx, u.ID, r, filename, contentType)
	if err != nil {
		return nil, fmt.Errorf("upload avatar: %w", err)
	}

	u.Avatar = url
	if err := s.Repo.Update(ctx, u); err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("update avatar for user %s: %w", id, err)
	}

	_ = s.indexUser(ctx, u)
	p := u.Profile()
	return &p, nil
}

func (s *Service) uploadImageToGCS(ctx context.Context, userID string, r io.Reader, filename, contentType string) (string, error) {
	if s.GCS == nil || s.GCSBucket == "" {
		return "", errors.New("gcs not configured")
	}
	id := uuid.NewString()
	ext := strings.ToLower(filepath.Ext(filename))
	objectPath := filepath.ToSlash(filepath.Join("avatars", userID, id+ext))
	return helpers.UploadObject(ctx, s.GCS, s.GCSBucket, objectPath, contentType, r)
}

// indexUser mirrors the projection into Elasticsearch, best effort.
func (s *Service) indexUser(ctx context.Context, u *entity.User) error {
	if s.ES == nil || s.ESUsersIndex == "" {
		return nil
	}
	b, _ := json.Marshal(u.Profile())
	req := esapi.IndexRequest{Index: s.ESUsersIndex, DocumentID: u.ID, Body: strings.NewReader(string(b)), Refresh: "false"}
	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	res, err := req.Do(c, s.ES)
	if err != nil {
		if s.Logger != nil {
			s.Logger.WithError(err).WithField("user_id", u.ID).Warn("es index failed")
		}
		return err
	}
	defer func() { _ = res.Body.Close() }()
	if res.IsError() && s.Logger != nil {
		s.Logger.WithField("status", res.Status()).WithField("user_id", u.ID).Warn("es index response error")
	}
	return nil
}

// SearchUsers performs a simple multi_match search on email and name.
func (s *Service) SearchUsers(ctx context.Context, q string, size int) ([]map[string]any, error) {
	if s.ES == nil || s.ESUsersIndex == "" {
		return []map[string]any{}, nil
	}
	if size <= 0 || size > 50 {
		size = 10
	}
	query := map[string]any{
		"query": map[string]any{
			"multi_match": map[string]any{
				"query":  q,
				"fields": []string{"email^2", "name"},
			},
		},
		"size": size,
	}
	b, _ := json.Marshal(query)

	c, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	res, err := s.ES.Search(s.ES.Search.WithContext(c), s.ES.Search.WithIndex(s.ESUsersIndex), s.ES.Search.WithBody(strings.NewReader(string(b))))
	if err != nil {
		return nil, err
	}
	defer func() { _ = res.Body.Close() }()

	var parsed struct {
		Hits struct {
			Hits []struct {
				ID     string         `json:"_id"`
				Source map[string]any `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&parsed); err != nil {
		return nil, err
	}

	out := make([]map[string]any, 0, len(parsed.Hits.Hits))
	for _, h := range parsed.Hits.Hits {
		out = append(out, h.Source)
	}
	return out, nil
}

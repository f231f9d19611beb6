package application

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sessionkit/identity-service/internal/domain/entity"
	repo "github.com/sessionkit/identity-service/internal/domain/repository"
	"github.com/sessionkit/identity-service/pkg/helpers"
)

const (
	validID   = "d290f1ee-6c54-4b01-90e6-d701748f0851"
	validIDv1 = "d290f1ee-6c54-1b01-90e6-d701748f0851"
)

// MockUserRepository is a mock implementation of repository.UserRepository.
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Create(ctx context.Context, u *entity.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*entity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.User), args.Error(1)
}

func (m *MockUserRepository) GetAll(ctx context.Context) ([]entity.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.User), args.Error(1)
}

func (m *MockUserRepository) Update(ctx context.Context, u *entity.User) error {
	args := m.Called(ctx, u)
	return args.Error(0)
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func newTestService(r repo.UserRepository) *Service {
	return NewService(r, nil, "", nil, nil, "")
}

func storedUser() *entity.User {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	return &entity.User{
		ID:        validID,
		Name:      "User1",
		Email:     "user1@example.com",
		Password:  "$argon2id$v=19$m=65536,t=1,p=4$c2FsdHNhbHRzYWx0c2FsdA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA",
		Role:      entity.RoleRegular,
		Method:    entity.MethodCredentials,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func TestFindByIDRejectsNonV4IDs(t *testing.T) {
	svc := newTestService(new(MockUserRepository))

	for _, id := range []string{"", "abc", "123", "user1@example.com", validIDv1, validID + "x"} {
		t.Run(id, func(t *testing.T) {
			p, err := svc.FindByID(context.Background(), id)
			assert.ErrorIs(t, err, ErrInvalidUserID)
			assert.Nil(t, p)
		})
	}
}

func TestFindByID(t *testing.T) {
	tests := []struct {
		name      string
		setupMock func(*MockUserRepository)
		wantErr   error
	}{
		{
			name: "success",
			setupMock: func(m *MockUserRepository) {
				m.On("GetByID", mock.Anything, validID).Return(storedUser(), nil)
			},
		},
		{
			name: "absent id",
			setupMock: func(m *MockUserRepository) {
				m.On("GetByID", mock.Anything, validID).Return(nil, repo.ErrNotFound)
			},
			wantErr: ErrUserNotFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			tt.setupMock(mockRepo)
			svc := newTestService(mockRepo)

			p, err := svc.FindByID(context.Background(), validID)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				assert.Nil(t, p)
			} else {
				require.NoError(t, err)
				assert.Equal(t, validID, p.ID)
				assert.Equal(t, "user1@example.com", p.Email)
			}
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestFindByIDPropagatesUnknownStoreErrors(t *testing.T) {
	opaque := errors.New("connection reset by peer")
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetByID", mock.Anything, validID).Return(nil, opaque)
	svc := newTestService(mockRepo)

	p, err := svc.FindByID(context.Background(), validID)

	assert.Nil(t, p)
	assert.ErrorIs(t, err, opaque)
	assert.NotErrorIs(t, err, ErrUserNotFound)
	mockRepo.AssertExpectations(t)
}

func TestProjectionNeverContainsPassword(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetByID", mock.Anything, validID).Return(storedUser(), nil)
	svc := newTestService(mockRepo)

	p, err := svc.FindByID(context.Background(), validID)
	require.NoError(t, err)

	b, err := json.Marshal(p)
	require.NoError(t, err)
	var fields map[string]any
	require.NoError(t, json.Unmarshal(b, &fields))
	assert.NotContains(t, fields, "password")
	assert.NotContains(t, string(b), "argon2id")
}

func TestGetAll(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetAll", mock.Anything).Return([]entity.User{*storedUser()}, nil)
	svc := newTestService(mockRepo)

	profiles, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	require.Len(t, profiles, 1)
	assert.Equal(t, "User1", profiles[0].Name)
	mockRepo.AssertExpectations(t)
}

func TestGetAllEmpty(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetAll", mock.Anything).Return([]entity.User{}, nil)
	svc := newTestService(mockRepo)

	profiles, err := svc.GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, profiles)
}

func TestCreate(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*entity.User")).
		Run(func(args mock.Arguments) {
			u := args.Get(1).(*entity.User)
			u.ID = validID
			u.CreatedAt = time.Now().UTC()
			u.UpdatedAt = u.CreatedAt
		}).Return(nil)
	svc := newTestService(mockRepo)

	p, err := svc.Create(context.Background(), CreateUserInput{
		Name:     "User1",
		Email:    "user1@example.com",
		Password: "supersecret",
	})
	require.NoError(t, err)

	assert.Equal(t, validID, p.ID)
	assert.Equal(t, "User1", p.Name)
	assert.Equal(t, "user1@example.com", p.Email)
	assert.Equal(t, entity.RoleRegular, p.Role)
	assert.False(t, p.IsVerified)
	assert.False(t, p.IsTwoFactorEnabled)
	assert.Empty(t, p.Avatar)

	persisted := mockRepo.Calls[0].Arguments.Get(1).(*entity.User)
	assert.NotEqual(t, "supersecret", persisted.Password)
	assert.True(t, helpers.ComparePassword(persisted.Password, "supersecret"))
	assert.Equal(t, entity.MethodCredentials, persisted.Method)
	mockRepo.AssertExpectations(t)
}

func TestCreateEmailCollision(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*entity.User")).Return(repo.ErrUniqueConflict)
	svc := newTestService(mockRepo)

	p, err := svc.Create(context.Background(), CreateUserInput{
		Name:     "User1",
		Email:    "user1@example.com",
		Password: "supersecret",
	})

	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrEmailTaken)
	assert.EqualError(t, err, "a user with this email already exists")
	mockRepo.AssertExpectations(t)
}

func TestCreateThenFindRoundTrip(t *testing.T) {
	var persisted entity.User
	mockRepo := new(MockUserRepository)
	mockRepo.On("Create", mock.Anything, mock.AnythingOfType("*entity.User")).
		Run(func(args mock.Arguments) {
			u := args.Get(1).(*entity.User)
			u.ID = validID
			u.CreatedAt = time.Now().UTC()
			u.UpdatedAt = u.CreatedAt
			persisted = *u
		}).Return(nil)
	mockRepo.On("GetByID", mock.Anything, validID).Return(&persisted, nil)
	svc := newTestService(mockRepo)

	created, err := svc.Create(context.Background(), CreateUserInput{Name: "User1", Email: "user1@example.com", Password: "supersecret"})
	require.NoError(t, err)

	found, err := svc.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, *created, *found)
}

func TestUpdateHashesSuppliedPassword(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetByID", mock.Anything, validID).Return(storedUser(), nil)
	mockRepo.On("Update", mock.Anything, mock.AnythingOfType("*entity.User")).Return(nil)
	svc := newTestService(mockRepo)

	newPassword := "newsecret"
	p, err := svc.Update(context.Background(), validID, UpdateUserInput{Password: &newPassword})
	require.NoError(t, err)
	assert.Equal(t, "User1", p.Name)

	var written *entity.User
	for _, call := range mockRepo.Calls {
		if call.Method == "Update" {
			written = call.Arguments.Get(1).(*entity.User)
		}
	}
	require.NotNil(t, written)
	assert.NotEqual(t, "newsecret", written.Password)
	assert.True(t, helpers.ComparePassword(written.Password, "newsecret"))
	// untouched fields carried over
	assert.Equal(t, "User1", written.Name)
	assert.Equal(t, "user1@example.com", written.Email)
	mockRepo.AssertExpectations(t)
}

func TestUpdateStoreOutcomes(t *testing.T) {
	tests := []struct {
		name     string
		storeErr error
		wantErr  error
	}{
		{name: "email collision", storeErr: repo.ErrUniqueConflict, wantErr: ErrEmailTaken},
		{name: "malformed reference", storeErr: repo.ErrMalformedReference, wantErr: ErrMalformedUpdate},
		{name: "deleted mid-flight", storeErr: repo.ErrNotFound, wantErr: ErrUserNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockRepo := new(MockUserRepository)
			mockRepo.On("GetByID", mock.Anything, validID).Return(storedUser(), nil)
			mockRepo.On("Update", mock.Anything, mock.AnythingOfType("*entity.User")).Return(tt.storeErr)
			svc := newTestService(mockRepo)

			name := "Renamed"
			p, err := svc.Update(context.Background(), validID, UpdateUserInput{Name: &name})
			assert.Nil(t, p)
			assert.ErrorIs(t, err, tt.wantErr)
			mockRepo.AssertExpectations(t)
		})
	}
}

func TestUpdateAbsentID(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetByID", mock.Anything, validID).Return(nil, repo.ErrNotFound)
	svc := newTestService(mockRepo)

	name := "Renamed"
	p, err := svc.Update(context.Background(), validID, UpdateUserInput{Name: &name})
	assert.Nil(t, p)
	assert.ErrorIs(t, err, ErrUserNotFound)
	mockRepo.AssertNotCalled(t, "Update", mock.Anything, mock.Anything)
}

func TestUpdateInvalidID(t *testing.T) {
	svc := newTestService(new(MockUserRepository))

	name := "Renamed"
	_, err := svc.Update(context.Background(), "not-a-uuid", UpdateUserInput{Name: &name})
	assert.ErrorIs(t, err, ErrInvalidUserID)
}

func TestDelete(t *testing.T) {
	mockRepo := new(MockUserRepository)
	mockRepo.On("GetByID", mock.Anything, validID).Return(storedUser(), nil)
	mockRepo.On("Delete", mock.Anything, validID).Return(nil)
	svc := newTestService(mockRepo)

	err := svc.Delete(context.Background(), validID)
	assert.NoError(t, err)
	mockRepo.AssertExpectations(t)
}

func TestDeleteOutcomes(t *testing.T) {
	t.Run("absent id", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByID", mock.Anything, validID).Return(nil, repo.ErrNotFound)
		svc := newTestService(mockRepo)

		assert.ErrorIs(t, svc.Delete(context.Background(), validID), ErrUserNotFound)
		mockRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything)
	})

	t.Run("lost delete race", func(t *testing.T) {
		mockRepo := new(MockUserRepository)
		mockRepo.On("GetByID", mock.Anything, validID).Return(storedUser(), nil)
		mockRepo.On("Delete", mock.Anything, validID).Return(repo.ErrNotFound)
		svc := newTestService(mockRepo)

		assert.ErrorIs(t, svc.Delete(context.Background(), validID), ErrUserNotFound)
	})

	t.Run("invalid id", func(t *testing.T) {
		svc := newTestService(new(MockUserRepository))
		assert.ErrorIs(t, svc.Delete(context.Background(), "42"), ErrInvalidUserID)
	})
}

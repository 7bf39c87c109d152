package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/noah-isme/ncert-tutor-api/internal/models"
	"github.com/noah-isme/ncert-tutor-api/internal/repository"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
)

type mockAuthRepo struct {
	userByEmail      *models.User
	userByID         *models.User
	findByEmailErr   error
	findByIDErr      error
	registerErr      error
	registeredUser   *models.User
	registeredTutor  *models.Tutor
	refreshTokens    map[string]*models.RefreshToken
	refreshTokenErr  error
	createRefreshErr error
	revokeRefreshErr error
	lastLoginUpdated bool
}

func (m *mockAuthRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.findByEmailErr != nil {
		return nil, m.findByEmailErr
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.findByIDErr != nil {
		return nil, m.findByIDErr
	}
	if m.userByID != nil {
		return m.userByID, nil
	}
	if m.userByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.userByEmail, nil
}

func (m *mockAuthRepo) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	m.lastLoginUpdated = true
	return nil
}

func (m *mockAuthRepo) Register(ctx context.Context, user *models.User, tutor *models.Tutor) error {
	if m.registerErr != nil {
		return m.registerErr
	}
	m.registeredUser = user
	m.registeredTutor = tutor
	return nil
}

func (m *mockAuthRepo) CreateRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	if m.createRefreshErr != nil {
		return m.createRefreshErr
	}
	if m.refreshTokens == nil {
		m.refreshTokens = make(map[string]*models.RefreshToken)
	}
	m.refreshTokens[token.Token] = token
	return nil
}

func (m *mockAuthRepo) FindRefreshToken(ctx context.Context, token string) (*models.RefreshToken, error) {
	if m.refreshTokenErr != nil {
		return nil, m.refreshTokenErr
	}
	rt, ok := m.refreshTokens[token]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return rt, nil
}

func (m *mockAuthRepo) RevokeRefreshToken(ctx context.Context, id string, revokedAt time.Time) error {
	if m.revokeRefreshErr != nil {
		return m.revokeRefreshErr
	}
	for _, token := range m.refreshTokens {
		if token.ID == id {
			token.Revoked = true
			token.RevokedAt = &revokedAt
		}
	}
	return nil
}

type stubTutorLookup struct {
	tutor *models.Tutor
	err   error
}

func (s *stubTutorLookup) FindByUserID(ctx context.Context, userID string) (*models.Tutor, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.tutor, nil
}

func newAuthServiceForTest(repo *mockAuthRepo, tutors authTutorRepository) *AuthService {
	return NewAuthService(repo, tutors, validator.New(), zap.NewNop(), AuthConfig{AccessTokenSecret: "secret", AccessTokenExpiry: time.Hour, RefreshTokenExpiry: time.Hour, Issuer: "test"})
}

func TestAuthServiceRegisterStudent(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthServiceForTest(repo, nil)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    " Student@Example.com ",
		Password: "password123",
		FullName: "Asha Rao",
		Role:     models.RoleStudent,
	})
	require.NoError(t, err)
	assert.Equal(t, "student@example.com", info.Email)
	assert.Empty(t, info.TutorID)
	require.NotNil(t, repo.registeredUser)
	assert.Nil(t, repo.registeredTutor)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(repo.registeredUser.PasswordHash), []byte("password123")))
}

func TestAuthServiceRegisterTutorCreatesProfile(t *testing.T) {
	repo := &mockAuthRepo{}
	svc := newAuthServiceForTest(repo, nil)

	info, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "tutor@example.com",
		Password: "password123",
		FullName: "Ravi Kumar",
		Role:     models.RoleTutor,
		Subjects: []string{"Physics", "Maths"},
		Timezone: "Asia/Kolkata",
	})
	require.NoError(t, err)
	require.NotNil(t, repo.registeredTutor)
	assert.Equal(t, repo.registeredTutor.ID, info.TutorID)
	assert.Equal(t, "Asia/Kolkata", repo.registeredTutor.Timezone)
	assert.ElementsMatch(t, []string{"Physics", "Maths"}, []string(repo.registeredTutor.Subjects))
}

func TestAuthServiceRegisterRejectsUnknownTimezone(t *testing.T) {
	svc := newAuthServiceForTest(&mockAuthRepo{}, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "tutor@example.com",
		Password: "password123",
		FullName: "Ravi Kumar",
		Role:     models.RoleTutor,
		Timezone: "Mars/Olympus",
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterDuplicateEmail(t *testing.T) {
	repo := &mockAuthRepo{registerErr: repository.ErrDuplicate}
	svc := newAuthServiceForTest(repo, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "dup@example.com",
		Password: "password123",
		FullName: "Dup User",
		Role:     models.RoleStudent,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRegisterRejectsAdminRole(t *testing.T) {
	svc := newAuthServiceForTest(&mockAuthRepo{}, nil)

	_, err := svc.Register(context.Background(), models.RegisterRequest{
		Email:    "admin@example.com",
		Password: "password123",
		FullName: "Admin",
		Role:     models.RoleAdmin,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginSuccess(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: true, Role: models.RoleStudent}}
	svc := newAuthServiceForTest(repo, nil)

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEmpty(t, res.RefreshToken)
	assert.Equal(t, int64(3600), res.ExpiresIn)
	assert.True(t, repo.lastLoginUpdated)
	assert.NotEmpty(t, repo.refreshTokens)
}

func TestAuthServiceLoginAttachesTutorID(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "u-t", Email: "tutor@example.com", PasswordHash: string(password), Active: true, Role: models.RoleTutor}}
	svc := newAuthServiceForTest(repo, &stubTutorLookup{tutor: &models.Tutor{ID: "tutor-1"}})

	res, err := svc.Login(context.Background(), models.LoginRequest{Email: "tutor@example.com", Password: "password"})
	require.NoError(t, err)
	assert.Equal(t, "tutor-1", res.User.TutorID)
}

func TestAuthServiceLoginWrongPassword(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: true}}
	svc := newAuthServiceForTest(repo, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "nope"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginUnknownEmail(t *testing.T) {
	svc := newAuthServiceForTest(&mockAuthRepo{}, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "ghost@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLoginInactive(t *testing.T) {
	password, _ := bcrypt.GenerateFromPassword([]byte("password"), bcrypt.DefaultCost)
	repo := &mockAuthRepo{userByEmail: &models.User{ID: "123", Email: "user@example.com", PasswordHash: string(password), Active: false}}
	svc := newAuthServiceForTest(repo, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInactiveAccount.Code, appErr.Code)
}

func TestAuthServiceLoginRepositoryFailure(t *testing.T) {
	repo := &mockAuthRepo{findByEmailErr: errors.New("db down")}
	svc := newAuthServiceForTest(repo, nil)

	_, err := svc.Login(context.Background(), models.LoginRequest{Email: "user@example.com", Password: "password"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceRefreshToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: make(map[string]*models.RefreshToken)}
	user := &models.User{ID: "u1", Email: "user@example.com", PasswordHash: "hash", Active: true, Role: models.RoleStudent}
	repo.userByEmail = user
	repo.userByID = user
	token := &models.RefreshToken{ID: "rt1", UserID: user.ID, Token: "token", ExpiresAt: time.Now().Add(time.Hour)}
	repo.refreshTokens[token.Token] = token

	svc := newAuthServiceForTest(repo, nil)

	res, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "token"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.AccessToken)
	assert.NotEqual(t, "token", res.RefreshToken)
	assert.True(t, repo.refreshTokens["token"].Revoked)
}

func TestAuthServiceRefreshTokenExpired(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"old": {ID: "rt1", UserID: "u1", Token: "old", ExpiresAt: time.Now().Add(-time.Minute)},
	}}
	svc := newAuthServiceForTest(repo, nil)

	_, err := svc.RefreshToken(context.Background(), models.RefreshTokenRequest{RefreshToken: "old"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

func TestAuthServiceLogoutForeignToken(t *testing.T) {
	repo := &mockAuthRepo{refreshTokens: map[string]*models.RefreshToken{
		"tok": {ID: "rt1", UserID: "owner", Token: "tok", ExpiresAt: time.Now().Add(time.Hour)},
	}}
	svc := newAuthServiceForTest(repo, nil)

	err := svc.Logout(context.Background(), "tok", "someone-else")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	require.NoError(t, svc.Logout(context.Background(), "tok", "owner"))
	assert.True(t, repo.refreshTokens["tok"].Revoked)
}

func TestValidateToken(t *testing.T) {
	svc := newAuthServiceForTest(&mockAuthRepo{}, nil)
	user := &models.User{ID: "u1", Email: "user@example.com", Role: models.RoleTutor}
	token, _, err := svc.generateAccessToken(user)
	require.NoError(t, err)

	claims, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, claims.UserID)
	assert.Equal(t, models.RoleTutor, claims.Role)
	assert.Equal(t, "test", claims.Issuer)
}

func TestValidateTokenWrongSecret(t *testing.T) {
	svc := newAuthServiceForTest(&mockAuthRepo{}, nil)
	token, _, err := svc.generateAccessToken(&models.User{ID: "u1"})
	require.NoError(t, err)

	other := NewAuthService(&mockAuthRepo{}, nil, nil, nil, AuthConfig{AccessTokenSecret: "different", AccessTokenExpiry: time.Hour})
	_, err = other.ValidateToken(token)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}

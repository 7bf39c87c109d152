package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/ncert-tutor-api/internal/models"
	appErrors "github.com/noah-isme/ncert-tutor-api/pkg/errors"
)

type authServiceMock struct {
	registerReq  models.RegisterRequest
	registerErr  error
	loginReq     models.LoginRequest
	logoutToken  string
	logoutUserID string
}

func (m *authServiceMock) Register(ctx context.Context, req models.RegisterRequest) (*models.UserInfo, error) {
	m.registerReq = req
	if m.registerErr != nil {
		return nil, m.registerErr
	}
	return &models.UserInfo{ID: "u-1", Email: req.Email, Role: req.Role, TutorID: "tutor-1"}, nil
}

func (m *authServiceMock) Login(ctx context.Context, req models.LoginRequest) (*models.LoginResponse, error) {
	m.loginReq = req
	return &models.LoginResponse{AccessToken: "access", RefreshToken: "refresh"}, nil
}

func (m *authServiceMock) RefreshToken(ctx context.Context, req models.RefreshTokenRequest) (*models.RefreshTokenResponse, error) {
	return &models.RefreshTokenResponse{AccessToken: "access-2"}, nil
}

func (m *authServiceMock) Logout(ctx context.Context, refreshToken string, userID string) error {
	m.logoutToken = refreshToken
	m.logoutUserID = userID
	return nil
}

func (m *authServiceMock) Me(ctx context.Context, userID string) (*models.UserInfo, error) {
	return &models.UserInfo{ID: userID}, nil
}

func TestAuthHandlerRegisterTutor(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)

	body := `{"email":"asha@example.com","password":"secret123","full_name":"Asha Rao","role":"TUTOR","subjects":["Physics"],"timezone":"Asia/Kolkata"}`
	c, w := newTestContext(http.MethodPost, "/auth/register", body, nil)
	h.Register(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.RoleTutor, svc.registerReq.Role)
	assert.Equal(t, []string{"Physics"}, svc.registerReq.Subjects)
	assert.Contains(t, w.Body.String(), `"tutor_id":"tutor-1"`)
}

func TestAuthHandlerRegisterConflict(t *testing.T) {
	h := NewAuthHandler(&authServiceMock{registerErr: appErrors.Clone(appErrors.ErrConflict, "email is already registered")})

	c, w := newTestContext(http.MethodPost, "/auth/register", `{"email":"a@example.com","password":"secret123","full_name":"A B","role":"STUDENT"}`, nil)
	h.Register(c)

	require.Equal(t, http.StatusConflict, w.Code)
}

func TestAuthHandlerLoginCapturesClientMeta(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)

	c, w := newTestContext(http.MethodPost, "/auth/login", `{"email":"a@example.com","password":"secret123"}`, nil)
	c.Request.Header.Set("User-Agent", "study-app/1.0")
	h.Login(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "study-app/1.0", svc.loginReq.UserAgent)
}

func TestAuthHandlerLogoutAndMe(t *testing.T) {
	svc := &authServiceMock{}
	h := NewAuthHandler(svc)

	c, w := newTestContext(http.MethodPost, "/auth/logout", `{"refresh_token":"tok"}`, studentClaims)
	h.Logout(c)
	c.Writer.WriteHeaderNow()
	require.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "tok", svc.logoutToken)
	assert.Equal(t, "student-1", svc.logoutUserID)

	c, w = newTestContext(http.MethodGet, "/auth/me", "", nil)
	h.Me(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

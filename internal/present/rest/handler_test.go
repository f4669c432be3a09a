package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cityflow/cityflow/internal/domain"
	"github.com/cityflow/cityflow/internal/present/rest/middleware"
	"github.com/cityflow/cityflow/internal/service"
	"github.com/cityflow/cityflow/internal/usecase"
)

type stubComplaints struct {
	ComplaintService
	created  usecase.CreateComplaintInput
	feed     usecase.FeedQuery
	photo    []byte
	rejectFn func(reason string) error
}

func (s *stubComplaints) Create(_ context.Context, actor domain.Actor, input usecase.CreateComplaintInput) (domain.Complaint, error) {
	s.created = input
	return domain.Complaint{ID: 1, UserID: actor.ID, Description: input.Description, Status: domain.ComplaintPending}, nil
}

func (s *stubComplaints) Get(_ context.Context, _ domain.Actor, id int64) (domain.Complaint, error) {
	return domain.Complaint{}, domain.NotFoundError{Resource: "complaint"}
}

func (s *stubComplaints) Feed(_ context.Context, _ domain.Actor, query usecase.FeedQuery) ([]domain.Complaint, error) {
	s.feed = query
	return []domain.Complaint{}, nil
}

func (s *stubComplaints) Reject(_ context.Context, _ domain.Actor, id int64, reason string) (domain.Complaint, error) {
	if err := s.rejectFn(reason); err != nil {
		return domain.Complaint{}, err
	}
	return domain.Complaint{ID: id, Status: domain.ComplaintRejected}, nil
}

func (s *stubComplaints) AddPhoto(_ context.Context, _ domain.Actor, id int64, filename string, data []byte) (domain.ComplaintPhoto, error) {
	s.photo = data
	return domain.ComplaintPhoto{ID: 9, ComplaintID: id, PhotoURL: "/media/complaints/" + filename}, nil
}

type stubAssignments struct {
	AssignmentService
	err      error
	statuses []string
}

func (s *stubAssignments) AssignEmployee(_ context.Context, _ domain.Actor, complaintID, employeeID int64) (domain.Assignment, error) {
	if s.err != nil {
		return domain.Assignment{}, s.err
	}
	return domain.Assignment{ID: 3, ComplaintID: complaintID, EmployeeID: employeeID, Status: domain.AssignmentAssigned}, nil
}

func (s *stubAssignments) ListForEmployee(_ context.Context, _ domain.Actor, statuses []string) ([]domain.Assignment, error) {
	s.statuses = statuses
	return []domain.Assignment{}, nil
}

type stubLedger struct {
	LedgerService
}

func (s *stubLedger) ToggleSupport(_ context.Context, _ domain.Actor, _ int64) (domain.SupportResult, error) {
	return domain.SupportResult{Action: domain.SupportAdded, SupportCount: 1}, nil
}

type stubCategories struct {
	CategoryService
}

func (s *stubCategories) Create(_ context.Context, actor domain.Actor, _ usecase.CategoryInput) (domain.Category, error) {
	if !actor.IsStaff() {
		return domain.Category{}, domain.AuthorizationError{Message: "not allowed"}
	}
	return domain.Category{ID: 1}, nil
}

type fixture struct {
	echo        *echo.Echo
	auth        *service.AuthService
	complaints  *stubComplaints
	assignments *stubAssignments
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	auth := service.NewAuthService(service.AuthConfig{JWTSecret: "secret", Issuer: "cityflow"})
	f := &fixture{
		echo:        echo.New(),
		auth:        auth,
		complaints:  &stubComplaints{rejectFn: func(string) error { return nil }},
		assignments: &stubAssignments{},
	}
	f.echo.Use(middleware.NewAuthMiddleware(auth).IdentifyIdentity)
	NewHandler(f.complaints, f.assignments, &stubLedger{}, &stubCategories{}, nil).RegisterRoutes(f.echo)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, role domain.Role, body []byte, contentType string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	if role != "" {
		token, err := f.auth.Issue(7, role, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	rec := f.do(t, http.MethodGet, "/health", "", nil, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequiresAuthentication(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/complaints/feed", "", nil, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/complaints/feed", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec = httptest.NewRecorder()
	f.echo.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCreateComplaint(t *testing.T) {
	f := newFixture(t)

	body := []byte(`{"description":"Çukur var","latitude":41.0,"longitude":29.0,"isAnonymous":true}`)
	rec := f.do(t, http.MethodPost, "/api/v1/complaints", domain.RoleCitizen, body, echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusCreated, rec.Code)

	assert.Equal(t, "Çukur var", f.complaints.created.Description)
	assert.True(t, f.complaints.created.IsAnonymous)
	require.NotNil(t, f.complaints.created.Latitude)
	assert.Equal(t, 41.0, *f.complaints.created.Latitude)

	var got domain.Complaint
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(7), got.UserID)
}

func TestFeedQuery(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/complaints/feed?sort=nearby&lat=41.1&lon=29.2&limit=5", domain.RoleCitizen, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, domain.FeedNearby, f.complaints.feed.Sort)
	assert.Equal(t, 5, f.complaints.feed.Limit)
	require.NotNil(t, f.complaints.feed.Latitude)
	assert.Equal(t, 41.1, *f.complaints.feed.Latitude)

	rec = f.do(t, http.MethodGet, "/api/v1/complaints/feed?sort=loudest", domain.RoleCitizen, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/complaints/feed?lat=north", domain.RoleCitizen, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodGet, "/api/v1/complaints/99", domain.RoleCitizen, nil, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = f.do(t, http.MethodGet, "/api/v1/complaints/abc", domain.RoleCitizen, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	f.complaints.rejectFn = func(string) error { return domain.ValidationError{Message: "short"} }
	rec = f.do(t, http.MethodPost, "/api/v1/complaints/1/reject", domain.RoleOfficial, []byte(`{"reason":"x"}`), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "short")

	rec = f.do(t, http.MethodPost, "/api/v1/categories", domain.RoleCitizen, []byte(`{"name":"Yol"}`), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.assignments.err = domain.ConflictError{Message: "already assigned or in progress"}
	rec = f.do(t, http.MethodPost, "/api/v1/complaints/1/assignments", domain.RoleOfficial, []byte(`{"employeeId":3}`), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusConflict, rec.Code)

	f.complaints.rejectFn = func(string) error { return context.DeadlineExceeded }
	rec = f.do(t, http.MethodPost, "/api/v1/complaints/1/reject", domain.RoleOfficial, []byte(`{"reason":"gecikme"}`), echo.MIMEApplicationJSON)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "deadline")
}

func TestAssignAndList(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/complaints/4/assignments", domain.RoleOfficial, []byte(`{"employeeId":3}`), echo.MIMEApplicationJSON)
	require.Equal(t, http.StatusCreated, rec.Code)
	var got domain.Assignment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, int64(4), got.ComplaintID)
	assert.Equal(t, int64(3), got.EmployeeID)

	rec = f.do(t, http.MethodGet, "/api/v1/assignments?status=assigned&status=in_progress", domain.RoleEmployee, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, []string{"assigned", "in_progress"}, f.assignments.statuses)
}

func TestToggleSupport(t *testing.T) {
	f := newFixture(t)

	rec := f.do(t, http.MethodPost, "/api/v1/complaints/2/support", domain.RoleCitizen, nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"added"`))
}

func TestAddPhotoMultipart(t *testing.T) {
	f := newFixture(t)

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", "pothole.jpg")
	require.NoError(t, err)
	_, err = part.Write([]byte("jpeg-bytes"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	rec := f.do(t, http.MethodPost, "/api/v1/complaints/5/photos", domain.RoleCitizen, buf.Bytes(), w.FormDataContentType())
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, []byte("jpeg-bytes"), f.complaints.photo)
	assert.Contains(t, rec.Body.String(), "/media/complaints/pothole.jpg")

	rec = f.do(t, http.MethodPost, "/api/v1/complaints/5/photos", domain.RoleCitizen, nil, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"coaching-rag-be/internal/apperr"
	"coaching-rag-be/internal/dto"
	"coaching-rag-be/internal/pkg/logger"
	"coaching-rag-be/internal/pkg/serverutils"
	"coaching-rag-be/internal/service"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testSecret     = "test-secret"
	testCronSecret = "cron-secret"
)

func signToken(t *testing.T, userId uuid.UUID, role string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userId.String(),
		"role":    role,
		"exp":     time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return signed
}

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(serverutils.ErrorHandlerMiddleware(logger.NewNopLogger()))
	return app
}

func doJSON(t *testing.T, app *fiber.App, method, path, token string, body interface{}) (int, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp.StatusCode, decoded
}

type fakeQueryService struct {
	ownerId uuid.UUID
	request *dto.QueryRequest
	err     error
}

func (f *fakeQueryService) Query(_ context.Context, ownerId uuid.UUID, request *dto.QueryRequest) (*dto.QueryResponse, error) {
	f.ownerId = ownerId
	f.request = request
	if f.err != nil {
		return nil, f.err
	}
	return &dto.QueryResponse{
		Id:      uuid.New(),
		Answer:  "Q3 revenue was $4.2M.",
		Sources: []dto.SourceDTO{{Filename: "q3-report.pdf", Page: 1}},
	}, nil
}

func (f *fakeQueryService) Answer(context.Context, uuid.UUID, *dto.QueryRequest) (*service.QueryResult, error) {
	return nil, errors.New("not used")
}

func newQueryApp(svc service.IQueryService) *fiber.App {
	app := newApp()
	NewQueryController(svc).RegisterRoutes(app.Group("/api"), serverutils.JwtMiddleware(testSecret))
	return app
}

func TestQueryEndpointUsesTokenOwner(t *testing.T) {
	svc := &fakeQueryService{}
	app := newQueryApp(svc)
	user := uuid.New()

	status, body := doJSON(t, app, http.MethodPost, "/api/query/v1", signToken(t, user, "user"), map[string]interface{}{
		"question": "What was Q3 revenue?",
	})

	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, true, body["success"])
	data := body["data"].(map[string]interface{})
	assert.Equal(t, "Q3 revenue was $4.2M.", data["answer"])
	assert.Equal(t, user, svc.ownerId)
	assert.Equal(t, "What was Q3 revenue?", svc.request.Question)
}

func TestQueryEndpointRejectsMissingToken(t *testing.T) {
	svc := &fakeQueryService{}
	status, body := doJSON(t, newQueryApp(svc), http.MethodPost, "/api/query/v1", "", map[string]interface{}{"question": "hi"})

	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "UNAUTHORIZED", body["error_code"])
	assert.Nil(t, svc.request)
}

func TestQueryEndpointValidatesBody(t *testing.T) {
	svc := &fakeQueryService{}
	status, body := doJSON(t, newQueryApp(svc), http.MethodPost, "/api/query/v1", signToken(t, uuid.New(), "user"), map[string]interface{}{"question": ""})

	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(apperr.CodeInvalidRequest), body["error_code"])
	assert.Nil(t, svc.request)
}

func TestQueryEndpointMapsServiceErrors(t *testing.T) {
	tests := []struct {
		name          string
		err           error
		wantStatus    int
		wantCode      string
		wantRetryable bool
	}{
		{"embedding outage", apperr.EmbeddingUnavailable(errors.New("dial tcp")), http.StatusServiceUnavailable, "EMBEDDING_UNAVAILABLE", true},
		{"completion outage", apperr.CompletionUnavailable(errors.New("timeout")), http.StatusServiceUnavailable, "COMPLETION_UNAVAILABLE", true},
		{"foreign session", apperr.Forbidden("session belongs to another user"), http.StatusForbidden, "FORBIDDEN", false},
		{"missing session", apperr.NotFound("session not found"), http.StatusNotFound, "NOT_FOUND", false},
		{"unexpected", errors.New("pq: connection reset"), http.StatusInternalServerError, "INTERNAL", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newQueryApp(&fakeQueryService{err: tt.err})
			status, body := doJSON(t, app, http.MethodPost, "/api/query/v1", signToken(t, uuid.New(), "user"), map[string]interface{}{"question": "anything?"})

			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantCode, body["error_code"])
			assert.Equal(t, tt.wantRetryable, body["retryable"] == true)
			if tt.wantCode == "INTERNAL" {
				assert.Equal(t, "internal server error", body["message"])
			}
		})
	}
}

type fakeRetentionService struct {
	request *dto.CleanupRequest
	res     *dto.CleanupResponse
	err     error
}

func (f *fakeRetentionService) Cleanup(_ context.Context, request *dto.CleanupRequest) (*dto.CleanupResponse, error) {
	f.request = request
	return f.res, f.err
}

func newRetentionApp(svc service.IRetentionService) *fiber.App {
	app := newApp()
	NewRetentionController(svc).RegisterRoutes(app.Group("/api"), serverutils.OperatorMiddleware(testSecret, testCronSecret))
	return app
}

func TestCleanupEndpointAcceptsCronSecret(t *testing.T) {
	svc := &fakeRetentionService{res: &dto.CleanupResponse{Success: true, ScheduledSessionsFound: 2}}
	app := newRetentionApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/retention/v1/cleanup?days_old=45&dry_run=true", nil)
	req.Header.Set("X-Cron-Secret", testCronSecret)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	require.NotNil(t, svc.request)
	assert.Equal(t, 45, svc.request.DaysOld)
	assert.True(t, svc.request.DryRun)
}

func TestCleanupEndpointRequiresOperator(t *testing.T) {
	svc := &fakeRetentionService{res: &dto.CleanupResponse{Success: true}}
	app := newRetentionApp(svc)

	status, _ := doJSON(t, app, http.MethodPost, "/api/retention/v1/cleanup", signToken(t, uuid.New(), "user"), nil)
	assert.Equal(t, http.StatusForbidden, status)

	req := httptest.NewRequest(http.MethodPost, "/api/retention/v1/cleanup", nil)
	req.Header.Set("X-Cron-Secret", "wrong")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	status, _ = doJSON(t, app, http.MethodPost, "/api/retention/v1/cleanup", signToken(t, uuid.New(), "admin"), map[string]interface{}{"batch_size": 10})
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, 10, svc.request.BatchSize)
}

func TestCleanupEndpointReportsPartialFailure(t *testing.T) {
	svc := &fakeRetentionService{
		res: &dto.CleanupResponse{
			Success: false,
			Result: dto.CleanupReport{
				SessionsDeleted: 1,
				Failed:          []dto.FailedSession{{SessionId: uuid.New(), Error: "locked"}},
			},
		},
		err: &apperr.RetentionJobError{Selected: 2, Succeeded: 1, Failed: 1},
	}

	status, body := doJSON(t, newRetentionApp(svc), http.MethodPost, "/api/retention/v1/cleanup", signToken(t, uuid.New(), "admin"), nil)
	assert.Equal(t, http.StatusMultiStatus, status)
	assert.Equal(t, false, body["success"])
	result := body["result"].(map[string]interface{})
	assert.Equal(t, float64(1), result["sessions_deleted"])
}

func TestCleanupEndpointConflict(t *testing.T) {
	svc := &fakeRetentionService{err: apperr.Conflict("a retention sweep is already running")}

	status, body := doJSON(t, newRetentionApp(svc), http.MethodPost, "/api/retention/v1/cleanup", signToken(t, uuid.New(), "admin"), nil)
	assert.Equal(t, http.StatusConflict, status)
	assert.Equal(t, "CONFLICT", body["error_code"])
}

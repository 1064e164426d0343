package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/loopfeed/loopfeed/internal/app"
	"github.com/loopfeed/loopfeed/internal/config"
	"github.com/loopfeed/loopfeed/internal/db"
	"github.com/loopfeed/loopfeed/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 64)...)

type testServer struct {
	handler http.Handler
	objects *storage.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	cfg := &config.Config{
		AppName:         "Loopfeed",
		AppEnv:          "development",
		AppURL:          "http://localhost:8090",
		JWTSecret:       "test-secret",
		JWTExpiry:       time.Hour,
		EmailFrom:       "noreply@loopfeed.test",
		SignedURLExpiry: 30 * time.Minute,
		UploadMaxSize:   1 << 20,
		PublishMaxSize:  2 << 20,
		StagingDir:      t.TempDir(),
		DraftSessionTTL: time.Hour,
		MetadataTimeout: time.Second,
	}

	dsn := filepath.Join(t.TempDir(), "test.db") + "?_pragma=foreign_keys(1)"
	database, err := db.Init("sqlite", dsn)
	require.NoError(t, err)
	require.NoError(t, db.RunMigrations(context.Background(), database.DB, "sqlite"))

	objects := storage.NewMemory("https://cdn.test")
	a, err := app.Assemble(cfg, database, objects)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })

	return &testServer{handler: SetupRoutes(a), objects: objects}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) register(t *testing.T, username string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    username + "@example.com",
		"password": "password123",
		"username": username,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &resp)
	require.NotEmpty(t, resp.Token)
	return resp.Token
}

func (s *testServer) newDraft(t *testing.T, token string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/drafts", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var resp struct {
		ID string `json:"id"`
	}
	decodeBody(t, rec, &resp)
	return resp.ID
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

type errorBody struct {
	Error string `json:"error"`
	Field string `json:"field"`
	Step  *int   `json:"step"`
}

func TestHealthAndFallback(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var health struct {
		Status string `json:"status"`
		App    string `json:"app"`
	}
	decodeBody(t, rec, &health)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "Loopfeed", health.App)

	rec = s.do(t, http.MethodGet, "/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice")

	rec := s.do(t, http.MethodGet, "/api/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var me struct {
		Email   string `json:"email"`
		Profile struct {
			Username string `json:"username"`
		} `json:"profile"`
	}
	decodeBody(t, rec, &me)
	assert.Equal(t, "alice@example.com", me.Email)
	assert.Equal(t, "alice", me.Profile.Username)

	rec = s.do(t, http.MethodGet, "/api/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "alice@example.com",
		"password": "password123",
		"username": "alice2",
	})
	require.Equal(t, http.StatusConflict, rec.Code)
	var conflict errorBody
	decodeBody(t, rec, &conflict)
	assert.Equal(t, "email", conflict.Field)

	rec = s.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"email":    "bob@example.com",
		"password": "short",
		"username": "bob",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var invalid errorBody
	decodeBody(t, rec, &invalid)
	assert.Equal(t, "password", invalid.Field)
}

func TestUnknownFieldsAreRejected(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "a@example.com",
		"password": "password123",
		"extra":    "x",
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPublishTextAndImage(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice")
	sid := s.newDraft(t, token)

	rec := s.do(t, http.MethodPatch, "/api/drafts/"+sid, token, map[string]any{
		"title":   "Morning",
		"tagline": "Coffee first",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/drafts/"+sid+"/cards", token, map[string]string{
		"type":    "text",
		"content": "hello",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var form bytes.Buffer
	mw := multipart.NewWriter(&form)
	require.NoError(t, mw.WriteField("type", "image"))
	fw, err := mw.CreateFormFile("file", "photo.png")
	require.NoError(t, err)
	_, err = fw.Write(pngBytes)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/drafts/"+sid+"/cards", &form)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	rec = httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var staged struct {
		Position int  `json:"position"`
		Pending  bool `json:"pending"`
	}
	decodeBody(t, rec, &staged)
	assert.Equal(t, 1, staged.Position)
	assert.True(t, staged.Pending)
	assert.Empty(t, s.objects.Paths())

	rec = s.do(t, http.MethodPost, "/api/drafts/"+sid+"/publish", token, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var loop struct {
		ID       string  `json:"id"`
		Status   string  `json:"status"`
		CoverURL *string `json:"cover_url"`
	}
	decodeBody(t, rec, &loop)
	assert.Equal(t, "normal", loop.Status)
	assert.Nil(t, loop.CoverURL)
	assert.Len(t, s.objects.Paths(), 1)

	rec = s.do(t, http.MethodGet, "/api/drafts/"+sid, token, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/loops/"+loop.ID, "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var view struct {
		Cards []struct {
			Type    string `json:"type"`
			Content string `json:"content"`
			HTML    string `json:"html"`
		} `json:"cards"`
		IsOwner bool `json:"is_owner"`
	}
	decodeBody(t, rec, &view)
	require.Len(t, view.Cards, 2)
	assert.Equal(t, "text", view.Cards[0].Type)
	assert.Equal(t, "<p>hello</p>\n", view.Cards[0].HTML)
	assert.Equal(t, "image", view.Cards[1].Type)
	assert.Contains(t, view.Cards[1].Content, "https://cdn.test/")
	assert.False(t, view.IsOwner)
}

func TestSaveAsDraftNeedsTagline(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice")
	sid := s.newDraft(t, token)

	rec := s.do(t, http.MethodPatch, "/api/drafts/"+sid, token, map[string]any{"title": "Untitled"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = s.do(t, http.MethodPost, "/api/drafts/"+sid+"/cards", token, map[string]string{
		"type":    "text",
		"content": "hello",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/drafts/"+sid+"/publish", token, map[string]bool{"draft": true})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "tagline", body.Field)
	require.NotNil(t, body.Step)
	assert.Equal(t, 0, *body.Step)
	assert.Empty(t, s.objects.Paths())

	// The session survives a failed publish.
	rec = s.do(t, http.MethodGet, "/api/drafts/"+sid, token, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestDraftSessionsArePrivate(t *testing.T) {
	s := newTestServer(t)
	alice := s.register(t, "alice")
	bob := s.register(t, "bob")
	sid := s.newDraft(t, alice)

	rec := s.do(t, http.MethodGet, "/api/drafts/"+sid, bob, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/drafts", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCardEditingErrors(t *testing.T) {
	s := newTestServer(t)
	token := s.register(t, "alice")
	sid := s.newDraft(t, token)

	rec := s.do(t, http.MethodPut, "/api/drafts/"+sid+"/cards/3", token, map[string]string{
		"type":    "text",
		"content": "hello",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var body errorBody
	decodeBody(t, rec, &body)
	assert.Equal(t, "position", body.Field)

	rec = s.do(t, http.MethodPost, "/api/drafts/"+sid+"/cards", token, map[string]string{
		"type":    "video",
		"content": "https://example.com/not-a-video",
	})
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	decodeBody(t, rec, &body)
	assert.Equal(t, "content", body.Field)
}

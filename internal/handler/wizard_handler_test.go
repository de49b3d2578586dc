package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"story-wizard/internal/generation"
	"story-wizard/internal/handler"
	"story-wizard/internal/inflight"
	"story-wizard/internal/models"
	"story-wizard/internal/notifier"
	"story-wizard/internal/repository"
	"story-wizard/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testServer struct {
	srv    *httptest.Server
	client *http.Client
	jar    http.CookieJar
}

func newTestServer(t *testing.T, narrativeDelay time.Duration) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := zap.NewNop()

	hub := notifier.NewHub(nil, logger)
	hub.Start()
	registry := inflight.New(inflight.Config{MaxTasks: 10, Timeout: 5 * time.Second}, logger)
	placeholder := generation.NewPlaceholder(narrativeDelay, 0, logger)

	svc := service.NewWizardService(service.Deps{
		Repo:              repository.NewMemorySessionRepository(time.Hour, logger),
		Narrator:          placeholder,
		Synthesizer:       placeholder,
		Inflight:          registry,
		Notifier:          hub,
		GenerationTimeout: 5 * time.Second,
		Logger:            logger,
	})
	cookies := handler.NewSessionCookies("wizard_session", "test-secret", time.Hour, false)
	h := handler.NewWizardHandler(svc, cookies, hub, logger)

	router := gin.New()
	router.Use(handler.GinZapLogger(logger))
	router.SetHTMLTemplate(handler.Templates())
	h.RegisterRoutes(router, nil)

	srv := httptest.NewServer(router)
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = registry.Shutdown(ctx)
		hub.Stop()
	})

	return &testServer{
		srv: srv,
		jar: jar,
		client: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
			Timeout: 5 * time.Second,
		},
	}
}

func (s *testServer) do(t *testing.T, method, path string, body io.Reader, contentType string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, s.srv.URL+path, body)
	require.NoError(t, err)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := s.client.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func (s *testServer) postJSON(t *testing.T, path string, payload interface{}) *http.Response {
	t.Helper()
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		require.NoError(t, err)
		body = bytes.NewReader(data)
	}
	return s.do(t, http.MethodPost, path, body, "application/json")
}

func (s *testServer) postForm(t *testing.T, path string, form url.Values) *http.Response {
	t.Helper()
	return s.do(t, http.MethodPost, path, strings.NewReader(form.Encode()), "application/x-www-form-urlencoded")
}

func decodeView(t *testing.T, resp *http.Response) models.SessionView {
	t.Helper()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var view models.SessionView
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&view))
	return view
}

func decodeError(t *testing.T, resp *http.Response) models.ErrorResponse {
	t.Helper()
	var errResp models.ErrorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&errResp))
	return errResp
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(data)
}

var storyPayload = map[string]string{
	"age":           "15",
	"gender":        "girl",
	"setting-where": "Winnipeg",
	"outcome":       "good",
}

func TestAPI_FullFlow(t *testing.T) {
	s := newTestServer(t, 0)

	view := decodeView(t, s.do(t, http.MethodGet, "/api/v1/wizard/state", nil, ""))
	assert.Equal(t, "input", view.Screen)
	assert.Equal(t, map[string]bool{"input": true, "story-review": false, "synthesis": false}, view.Screens)
	require.NotEmpty(t, view.SessionID)

	view = decodeView(t, s.postJSON(t, "/api/v1/wizard/story?wait=true", storyPayload))
	assert.Equal(t, "story-review", view.Screen)
	assert.Empty(t, view.Pending)
	assert.Contains(t, view.NarrativeText, "Winnipeg")

	view = decodeView(t, s.postJSON(t, "/api/v1/wizard/finalize", nil))
	assert.Equal(t, "synthesis", view.Screen)
	assert.Equal(t, view.NarrativeText, view.Preview)

	view = decodeView(t, s.postJSON(t, "/api/v1/wizard/synthesis?wait=true", map[string]string{"tone": "therapist"}))
	assert.Equal(t, "synthesis", view.Screen)
	assert.True(t, view.DiscussionVisible)
	assert.True(t, strings.HasSuffix(view.Discussion, generation.SupportResources))
	assert.Contains(t, view.Discussion, "Kids Help Phone")

	view = decodeView(t, s.postJSON(t, "/api/v1/wizard/back", nil))
	assert.Equal(t, "story-review", view.Screen)

	view = decodeView(t, s.do(t, http.MethodDelete, "/api/v1/wizard", nil, ""))
	assert.Equal(t, "input", view.Screen)
	assert.Empty(t, view.NarrativeText)
}

func TestAPI_ValidationError(t *testing.T) {
	s := newTestServer(t, 0)

	resp := s.postJSON(t, "/api/v1/wizard/story", map[string]string{"gender": "boy", "outcome": "bad"})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	errResp := decodeError(t, resp)
	assert.Equal(t, models.ErrCodeValidation, errResp.Code)
	assert.Contains(t, errResp.Message, "age is required")
}

func TestAPI_MalformedBody(t *testing.T) {
	s := newTestServer(t, 0)

	resp := s.do(t, http.MethodPost, "/api/v1/wizard/story", strings.NewReader(`{"age":`), "application/json")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, models.ErrCodeBadRequest, decodeError(t, resp).Code)

	view := decodeView(t, s.do(t, http.MethodGet, "/api/v1/wizard/state", nil, ""))
	assert.Empty(t, view.Pending)
}

func TestAPI_InvalidTransition(t *testing.T) {
	s := newTestServer(t, 0)

	resp := s.postJSON(t, "/api/v1/wizard/finalize", nil)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.ErrCodeInvalidTransition, decodeError(t, resp).Code)
}

func TestAPI_DoubleSubmitIsRejected(t *testing.T) {
	s := newTestServer(t, 5*time.Second)

	view := decodeView(t, s.postJSON(t, "/api/v1/wizard/story", storyPayload))
	assert.Equal(t, "narrative", view.Pending)

	resp := s.postJSON(t, "/api/v1/wizard/story", storyPayload)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Equal(t, models.ErrCodeGenerationInProgress, decodeError(t, resp).Code)

	view = decodeView(t, s.postJSON(t, "/api/v1/wizard/cancel", nil))
	assert.Empty(t, view.Pending)
	assert.Equal(t, "input", view.Screen)
}

func TestHTML_PostRedirectGet(t *testing.T) {
	s := newTestServer(t, 0)

	resp := s.do(t, http.MethodGet, "/", nil, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `id="screen-input" class="screen active"`)
	assert.Contains(t, body, `id="screen-story-review" class="screen"`)

	form := url.Values{}
	for k, v := range storyPayload {
		form.Set(k, v)
	}
	resp = s.postForm(t, "/story", form)
	assert.Equal(t, http.StatusSeeOther, resp.StatusCode)
	assert.Equal(t, "/", resp.Header.Get("Location"))

	// Дожидаемся генерации через API той же сессии.
	decodeView(t, s.do(t, http.MethodGet, "/api/v1/wizard/state?wait=true", nil, ""))

	body = readBody(t, s.do(t, http.MethodGet, "/", nil, ""))
	assert.Contains(t, body, `id="screen-story-review" class="screen active"`)
	assert.Contains(t, body, "Winnipeg")
	assert.Contains(t, body, `value="15"`, "form values are rendered back")
	assert.NotContains(t, body, `http-equiv="refresh"`)
}

func TestHTML_PendingShowsIndicatorAndCancel(t *testing.T) {
	s := newTestServer(t, 5*time.Second)

	form := url.Values{}
	for k, v := range storyPayload {
		form.Set(k, v)
	}
	resp := s.postForm(t, "/story", form)
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	body := readBody(t, s.do(t, http.MethodGet, "/", nil, ""))
	assert.Contains(t, body, `id="loading-story"`)
	assert.Contains(t, body, `http-equiv="refresh"`)

	resp = s.postForm(t, "/cancel", url.Values{})
	require.Equal(t, http.StatusSeeOther, resp.StatusCode)

	body = readBody(t, s.do(t, http.MethodGet, "/", nil, ""))
	assert.NotContains(t, body, `id="loading-story"`)
	assert.Contains(t, body, `id="screen-input" class="screen active"`)
}

func TestHTML_ValidationErrorRendersNotice(t *testing.T) {
	s := newTestServer(t, 0)

	resp := s.postForm(t, "/story", url.Values{"gender": {"boy"}, "outcome": {"bad"}})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	body := readBody(t, resp)
	assert.Contains(t, body, `id="notice"`)
	assert.Contains(t, body, "age is required")
}

func TestSessionCookie_TamperedCookieStartsNewSession(t *testing.T) {
	s := newTestServer(t, 0)

	first := decodeView(t, s.do(t, http.MethodGet, "/api/v1/wizard/state", nil, ""))

	u, err := url.Parse(s.srv.URL)
	require.NoError(t, err)
	s.jar.SetCookies(u, []*http.Cookie{{Name: "wizard_session", Value: "not-a-jwt", Path: "/"}})

	second := decodeView(t, s.do(t, http.MethodGet, "/api/v1/wizard/state", nil, ""))
	assert.NotEqual(t, first.SessionID, second.SessionID)

	third := decodeView(t, s.do(t, http.MethodGet, "/api/v1/wizard/state", nil, ""))
	assert.Equal(t, second.SessionID, third.SessionID, "reissued cookie is reused")
}

func TestWebsocket_ReceivesWizardUpdates(t *testing.T) {
	s := newTestServer(t, 200*time.Millisecond)

	view := decodeView(t, s.do(t, http.MethodGet, "/api/v1/wizard/state", nil, ""))

	wsURL := "ws" + strings.TrimPrefix(s.srv.URL, "http") + "/ws"
	dialer := websocket.Dialer{Jar: s.jar, HandshakeTimeout: 2 * time.Second}
	conn, _, err := dialer.Dial(wsURL, nil)
	require.NoError(t, err)
	defer conn.Close()

	decodeView(t, s.postJSON(t, "/api/v1/wizard/story", storyPayload))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	for {
		_, data, err := conn.ReadMessage()
		require.NoError(t, err)
		var msg struct {
			Type    string             `json:"type"`
			Payload models.SessionView `json:"payload"`
		}
		require.NoError(t, json.Unmarshal(data, &msg))
		assert.Equal(t, notifier.MessageTypeWizardUpdate, msg.Type)
		assert.Equal(t, view.SessionID, msg.Payload.SessionID)
		if msg.Payload.Screen == "story-review" {
			break
		}
	}
}

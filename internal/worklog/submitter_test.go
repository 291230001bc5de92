package worklog

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/tempo-worklog/internal/credentials"
)

const (
	worklogPath = "/rest/tempo-timesheets/4/worklogs/"
	credFile    = "/state/CredentialSettings.json"
)

func TestSubmit_SuccessSendsCookiesHeadersAndBody(t *testing.T) {
	t.Parallel()

	jira := newFakeJira(http.StatusOK)
	server := httptest.NewServer(jira.router())
	defer server.Close()

	sub := newTestSubmitter(t, server.URL, storeWith(t, fullSettings()))
	wl := New("JIRAUSER15", "42", time.Date(2025, 1, 21, 0, 0, 0, 0, time.UTC), time.Hour)

	require.True(t, sub.Submit(context.Background(), wl))

	got := jira.last()
	assert.Equal(t, "sess-value", got.cookies["JSESSIONID"])
	assert.Equal(t, "xsrf-value", got.cookies["atl.xsrf.token"])
	assert.Equal(t, "application/json", got.header.Get("Content-Type"))
	assert.Equal(t, "tempo-test-agent", got.header.Get("User-Agent"))
	assert.Equal(t, "https://jira.example.com", got.header.Get("Origin"))

	var payload map[string]any
	require.NoError(t, json.Unmarshal(got.body, &payload))
	assert.Equal(t, map[string]any{}, payload["attributes"])
	assert.Nil(t, payload["billableSeconds"])
	assert.Equal(t, float64(-1), payload["originId"])
	assert.Equal(t, "JIRAUSER15", payload["worker"])
	assert.Nil(t, payload["comment"])
	assert.Equal(t, "2025-01-21", payload["started"])
	assert.Equal(t, float64(3600), payload["timeSpentSeconds"])
	assert.Equal(t, "42", payload["originTaskId"])
	assert.Equal(t, float64(0), payload["remainingEstimate"])
	assert.Nil(t, payload["endDate"])
	assert.Nil(t, payload["includeNonWorkingDays"])
	assert.Len(t, payload, 11)
}

func TestSubmit_NonOKStatusesFail(t *testing.T) {
	t.Parallel()

	for _, code := range []int{http.StatusCreated, http.StatusUnauthorized, http.StatusForbidden, http.StatusInternalServerError} {
		code := code
		t.Run(http.StatusText(code), func(t *testing.T) {
			t.Parallel()

			jira := newFakeJira(code)
			server := httptest.NewServer(jira.router())
			defer server.Close()

			sub := newTestSubmitter(t, server.URL, storeWith(t, fullSettings()))
			wl := New("JIRAUSER15", "42", time.Now(), time.Hour)

			assert.False(t, sub.Submit(context.Background(), wl))

			err := sub.Post(context.Background(), wl)
			var statusErr *StatusError
			require.ErrorAs(t, err, &statusErr)
			assert.Equal(t, code, statusErr.Code)
			assert.Equal(t, "denied", statusErr.Body)
		})
	}
}

func TestSubmit_NetworkFailureReturnsFalse(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	url := server.URL
	server.Close()

	sub := newTestSubmitter(t, url, storeWith(t, fullSettings()))
	wl := New("JIRAUSER15", "42", time.Now(), time.Hour)

	assert.False(t, sub.Submit(context.Background(), wl))
	require.ErrorContains(t, sub.Post(context.Background(), wl), "http request failed")
}

func TestSubmit_MissingCredentialFileReturnsFalse(t *testing.T) {
	t.Parallel()

	store, err := credentials.NewStore(afero.NewMemMapFs(), credFile)
	require.NoError(t, err)
	sub := newTestSubmitter(t, "http://127.0.0.1:1", store)
	wl := New("JIRAUSER15", "42", time.Now(), time.Hour)

	assert.False(t, sub.Submit(context.Background(), wl))
	require.ErrorContains(t, sub.Post(context.Background(), wl), "load credentials")
}

func TestSubmit_MissingCookieReturnsFalseWithoutRequest(t *testing.T) {
	t.Parallel()

	jira := newFakeJira(http.StatusOK)
	server := httptest.NewServer(jira.router())
	defer server.Close()

	settings := fullSettings()
	settings.XSRF = nil
	sub := newTestSubmitter(t, server.URL, storeWith(t, settings))
	wl := New("JIRAUSER15", "42", time.Now(), time.Hour)

	assert.False(t, sub.Submit(context.Background(), wl))
	require.ErrorIs(t, sub.Post(context.Background(), wl), credentials.ErrMissingCredentials)
	assert.Equal(t, 0, jira.count(), "no request may be sent without both cookies")
}

func TestNewSubmitterValidation(t *testing.T) {
	t.Parallel()

	store := storeWith(t, fullSettings())
	_, err := NewSubmitter(Config{}, store, nil, nil)
	require.Error(t, err)
	_, err = NewSubmitter(Config{URL: "http://x"}, nil, nil, nil)
	require.Error(t, err)

	sub, err := NewSubmitter(Config{URL: "http://x", Timeout: time.Second}, store, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, time.Second, sub.client.Timeout)
	assert.NotNil(t, sub.client.Transport)
}

func TestWorklogHelpers(t *testing.T) {
	t.Parallel()

	wl := New("w", "7", time.Date(2025, 3, 4, 15, 0, 0, 0, time.UTC), 90*time.Minute).WithComment("pairing")
	require.NotNil(t, wl.Comment)
	assert.Equal(t, "pairing", *wl.Comment)
	assert.Equal(t, 5400, wl.TimeSpentSeconds)
	assert.Equal(t, "2025-03-04", wl.Started)
	assert.Nil(t, wl.WithComment("").Comment)

	raw, err := json.Marshal(Worklog{})
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"attributes":{}`)
}

func newTestSubmitter(t *testing.T, baseURL string, store Loader) *Submitter {
	t.Helper()
	sub, err := NewSubmitter(Config{
		URL:       baseURL + worklogPath,
		Origin:    "https://jira.example.com",
		UserAgent: "tempo-test-agent",
		Timeout:   5 * time.Second,
	}, store, nil, zap.NewNop())
	require.NoError(t, err)
	return sub
}

func fullSettings() *credentials.Settings {
	return &credentials.Settings{
		User:     "alice",
		Password: "hunter2",
		Session:  &credentials.NamedCookie{Name: "JSESSIONID", Value: "sess-value"},
		XSRF:     &credentials.NamedCookie{Name: "atl.xsrf.token", Value: "xsrf-value"},
	}
}

func storeWith(t *testing.T, settings *credentials.Settings) *credentials.Store {
	t.Helper()
	store, err := credentials.NewStore(afero.NewMemMapFs(), credFile)
	require.NoError(t, err)
	require.NoError(t, store.Save(settings))
	return store
}

type capturedRequest struct {
	header  http.Header
	cookies map[string]string
	body    []byte
}

type fakeJira struct {
	status int

	mu       sync.Mutex
	requests []capturedRequest
}

func newFakeJira(status int) *fakeJira {
	return &fakeJira{status: status}
}

func (j *fakeJira) router() http.Handler {
	r := chi.NewRouter()
	r.Post(worklogPath, j.postWorklog)
	return r
}

func (j *fakeJira) postWorklog(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		cookies[c.Name] = c.Value
	}
	j.mu.Lock()
	j.requests = append(j.requests, capturedRequest{header: r.Header.Clone(), cookies: cookies, body: body})
	j.mu.Unlock()

	w.WriteHeader(j.status)
	if j.status == http.StatusOK {
		_, _ = w.Write([]byte(`[{"tempoWorklogId": 1}]`))
		return
	}
	_, _ = w.Write([]byte("denied"))
}

func (j *fakeJira) last() capturedRequest {
	j.mu.Lock()
	defer j.mu.Unlock()
	if len(j.requests) == 0 {
		return capturedRequest{}
	}
	return j.requests[len(j.requests)-1]
}

func (j *fakeJira) count() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.requests)
}

package http_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/propapanda/dinky"
	httpadapter "github.com/propapanda/dinky/internal/adapters/http"
	"github.com/propapanda/dinky/pkg/adapters/memory"
	"github.com/propapanda/dinky/pkg/session"
)

const serverStory = `
-> door
=== door ===
You face a door.
+ [Knock] Knock knock. -> door
* [Walk away] You leave. -> END
`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	story, err := dinky.Compile(serverStory)
	require.NoError(t, err)

	manager := session.NewManager(memory.NewStore())
	server := httpadapter.NewServer(story.Model(), manager)

	ts := httptest.NewServer(server.Handler())
	t.Cleanup(ts.Close)
	return ts
}

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	data, err := json.Marshal(body)
	require.NoError(t, err)
	resp, err := http.Post(url, "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	return resp
}

func decode(t *testing.T, resp *http.Response, into any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(into))
}

type sessionPayload struct {
	ID          string `json:"id"`
	CanContinue bool   `json:"can_continue"`
	CanChoose   bool   `json:"can_choose"`
	IsOver      bool   `json:"is_over"`
}

func createSession(t *testing.T, ts *httptest.Server) sessionPayload {
	resp := postJSON(t, ts.URL+"/sessions", nil)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var payload sessionPayload
	decode(t, resp, &payload)
	require.NotEmpty(t, payload.ID)
	return payload
}

func TestHealth(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestFullSessionFlow(t *testing.T) {
	ts := newTestServer(t)
	created := createSession(t, ts)
	assert.True(t, created.CanContinue)

	// Drain paragraphs.
	var contResp struct {
		Paragraphs []struct {
			Text string `json:"text"`
		} `json:"paragraphs"`
		Session sessionPayload `json:"session"`
	}
	resp := postJSON(t, ts.URL+"/sessions/"+created.ID+"/continue", map[string]int{"n": 0})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decode(t, resp, &contResp)
	require.Len(t, contResp.Paragraphs, 1)
	assert.Equal(t, "You face a door.", contResp.Paragraphs[0].Text)
	assert.True(t, contResp.Session.CanChoose)

	// Read the menu.
	var choicesResp struct {
		Choices []struct {
			Title string `json:"title"`
		} `json:"choices"`
	}
	getResp, err := http.Get(ts.URL + "/sessions/" + created.ID + "/choices")
	require.NoError(t, err)
	decode(t, getResp, &choicesResp)
	require.Len(t, choicesResp.Choices, 2)
	assert.Equal(t, "Knock", choicesResp.Choices[0].Title)

	// Choose and finish.
	resp = postJSON(t, ts.URL+"/sessions/"+created.ID+"/choose", map[string]int{"index": 2})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var afterChoose sessionPayload
	decode(t, resp, &afterChoose)
	assert.True(t, afterChoose.CanContinue)

	resp = postJSON(t, ts.URL+"/sessions/"+created.ID+"/continue", map[string]int{"n": 0})
	decode(t, resp, &contResp)
	require.Len(t, contResp.Paragraphs, 1)
	assert.Equal(t, "You leave.", contResp.Paragraphs[0].Text)
	assert.True(t, contResp.Session.IsOver)
}

func TestSessionPersistsAcrossRequests(t *testing.T) {
	ts := newTestServer(t)
	created := createSession(t, ts)

	// Two separate GETs see the same session state.
	for i := 0; i < 2; i++ {
		resp, err := http.Get(ts.URL + "/sessions/" + created.ID)
		require.NoError(t, err)
		var payload sessionPayload
		decode(t, resp, &payload)
		assert.Equal(t, created.ID, payload.ID)
		assert.True(t, payload.CanContinue)
	}
}

func TestUnknownSessionIs404(t *testing.T) {
	ts := newTestServer(t)
	resp, err := http.Get(ts.URL + "/sessions/no-such-session")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestChooseOutOfRangeIs400(t *testing.T) {
	ts := newTestServer(t)
	created := createSession(t, ts)

	resp := postJSON(t, ts.URL+"/sessions/"+created.ID+"/continue", map[string]int{"n": 0})
	resp.Body.Close()

	resp = postJSON(t, ts.URL+"/sessions/"+created.ID+"/choose", map[string]int{"index": 99})
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestDeleteSession(t *testing.T) {
	ts := newTestServer(t)
	created := createSession(t, ts)

	req, err := http.NewRequest(http.MethodDelete, ts.URL+"/sessions/"+created.ID, nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	getResp, err := http.Get(ts.URL + "/sessions/" + created.ID)
	require.NoError(t, err)
	getResp.Body.Close()
	assert.Equal(t, http.StatusNotFound, getResp.StatusCode)
}

func TestMetricsExposed(t *testing.T) {
	ts := newTestServer(t)
	createSession(t, ts)

	resp, err := http.Get(ts.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	body := buf.String()
	assert.Contains(t, body, "dinky_http_requests_total")
	assert.Contains(t, body, "dinky_sessions_active")
}

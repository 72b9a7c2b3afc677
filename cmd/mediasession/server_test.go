package main

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/pion/logging"
	"github.com/pion/mediasession"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, accept acceptFunc) *httptest.Server {
	t.Helper()
	log := logging.NewDefaultLoggerFactory().NewLogger("test")
	srv := httptest.NewServer(newHandler(accept, prometheus.NewRegistry(), log))
	t.Cleanup(srv.Close)
	return srv
}

func TestMakeSession(t *testing.T) {
	var got string
	srv := newTestServer(t, func(offer string) (string, *mediasession.Session, error) {
		got = offer
		return "answer-sdp", nil, nil
	})

	resp, err := http.Post(srv.URL+"/make_session", "application/json", strings.NewReader(`{"offer":"offer-sdp"}`))
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "offer-sdp", got)

	var body answerResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "answer-sdp", body.Answer)
}

func TestMakeSessionErrors(t *testing.T) {
	testCases := map[string]struct {
		body     string
		err      error
		expected int
	}{
		"BadJSON": {
			body:     `{"offer":`,
			expected: http.StatusBadRequest,
		},
		"Negotiation": {
			body:     `{"offer":"v=0"}`,
			err:      &mediasession.Error{Kind: mediasession.ErrNegotiation, Op: "parse offer"},
			expected: http.StatusBadRequest,
		},
		"Transport": {
			body:     `{"offer":"v=0"}`,
			err:      &mediasession.Error{Kind: mediasession.ErrTransport, Op: "listen"},
			expected: http.StatusInternalServerError,
		},
		"Other": {
			body:     `{"offer":"v=0"}`,
			err:      errors.New("boom"),
			expected: http.StatusInternalServerError,
		},
	}

	for name, c := range testCases {
		c := c
		t.Run(name, func(t *testing.T) {
			srv := newTestServer(t, func(string) (string, *mediasession.Session, error) {
				return "", nil, c.err
			})

			resp, err := http.Post(srv.URL+"/make_session", "application/json", strings.NewReader(c.body))
			require.NoError(t, err)
			defer resp.Body.Close()
			assert.Equal(t, c.expected, resp.StatusCode)
		})
	}
}

func TestRoutes(t *testing.T) {
	srv := newTestServer(t, func(string) (string, *mediasession.Session, error) {
		return "", nil, nil
	})

	resp, err := http.Get(srv.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/make_session")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/missing")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestOptionsFromEnv(t *testing.T) {
	t.Setenv("FRAME_WIDTH", "640")
	t.Setenv("FRAME_HEIGHT", "480")
	t.Setenv("HOST_IP", "192.168.1.10")
	t.Setenv("SOURCE", "bars")

	opts, err := optionsFromEnv()
	require.NoError(t, err)
	assert.Len(t, opts, 4)

	t.Setenv("FRAME_WIDTH", "wide")
	_, err = optionsFromEnv()
	assert.Error(t, err)

	t.Setenv("FRAME_WIDTH", "640")
	t.Setenv("HOST_IP", "not-an-ip")
	_, err = optionsFromEnv()
	assert.Error(t, err)

	t.Setenv("HOST_IP", "")
	t.Setenv("SOURCE", "camera")
	_, err = optionsFromEnv()
	assert.Error(t, err)
}

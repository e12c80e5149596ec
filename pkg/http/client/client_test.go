package client

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientCreation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		baseURL     string
		timeout     time.Duration
		maxRetries  int
		wantTimeout time.Duration
		wantRetries int
	}{
		{
			name:        "default configuration",
			baseURL:     "https://api.example.com",
			wantTimeout: 30 * time.Second,
			wantRetries: 3,
		},
		{
			name:        "custom configuration",
			baseURL:     "https://api.test.com",
			timeout:     5 * time.Second,
			maxRetries:  5,
			wantTimeout: 5 * time.Second,
			wantRetries: 5,
		},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			client := New(Options{
				BaseURL:    tt.baseURL,
				Timeout:    tt.timeout,
				MaxRetries: tt.maxRetries,
			})

			assert.Equal(t, tt.baseURL, client.baseURL)
			assert.Equal(t, tt.wantTimeout, client.httpClient.Timeout)
			assert.Equal(t, tt.wantRetries, client.maxRetries)
		})
	}
}

func TestGetSendsHeaders(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/stops/nearest", r.URL.Path)
		assert.Equal(t, "31.6", r.URL.Query().Get("lat"))
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		_, _ = w.Write([]byte(`{"stopId":1}`))
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, Token: "secret"})
	resp, err := client.Get(context.Background(), "/stops/nearest?lat=31.6")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.JSONEq(t, `{"stopId":1}`, string(resp.Body))
}

func TestGetRetriesServerErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		failures   int32
		maxRetries int
		wantCode   int
		wantCalls  int32
	}{
		{name: "recovers after retries", failures: 2, maxRetries: 3, wantCode: http.StatusOK, wantCalls: 3},
		{name: "gives up with last response", failures: 10, maxRetries: 2, wantCode: http.StatusServiceUnavailable, wantCalls: 3},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				if calls.Add(1) <= tt.failures {
					w.WriteHeader(http.StatusServiceUnavailable)
					return
				}
				_, _ = w.Write([]byte(`[]`))
			}))
			defer server.Close()

			client := New(Options{BaseURL: server.URL, MaxRetries: tt.maxRetries, Backoff: time.Millisecond})
			resp, err := client.Get(context.Background(), "/stops")
			require.NoError(t, err)
			assert.Equal(t, tt.wantCode, resp.StatusCode)
			assert.Equal(t, tt.wantCalls, calls.Load())
		})
	}
}

func TestGetDoesNotRetryClientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL, Backoff: time.Millisecond})
	resp, err := client.Get(context.Background(), "/stops/9")
	require.NoError(t, err)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetHonoursContext(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := New(Options{BaseURL: server.URL, Backoff: time.Hour})
	_, err := client.Get(ctx, "/stops")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetJSON(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			_, _ = w.Write([]byte(`{"count":4}`))
		case "/bad":
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"responseType":"error","error":"Invalid latitude"}`))
		default:
			_, _ = w.Write([]byte(`not json`))
		}
	}))
	defer server.Close()

	client := New(Options{BaseURL: server.URL})
	ctx := context.Background()

	var out struct {
		Count int `json:"count"`
	}
	require.NoError(t, client.GetJSON(ctx, "/ok", &out))
	assert.Equal(t, 4, out.Count)

	err := client.GetJSON(ctx, "/bad", &out)
	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	assert.Equal(t, "Invalid latitude", statusErr.Message)
	assert.Contains(t, err.Error(), "Invalid latitude")

	err = client.GetJSON(ctx, "/garbage", &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding response")
}

func TestGetFuncOverride(t *testing.T) {
	t.Parallel()

	client := New(Options{})
	client.GetFunc = func(_ context.Context, path string) (*Response, error) {
		return &Response{StatusCode: http.StatusOK, Body: []byte(`"` + path + `"`)}, nil
	}

	var got string
	require.NoError(t, client.GetJSON(context.Background(), "/health", &got))
	assert.Equal(t, "/health", got)
}

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestClientGet(t *testing.T) {
	t.Parallel()

	var gotAccept string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	client := New(Config{UserAgent: "menud-test", Timeout: 5 * time.Second})
	headers := http.Header{}
	headers.Set("Accept", "application/json")

	res, err := client.Get(context.Background(), srv.URL, headers)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Equal(t, []byte(`{"ok":true}`), res.Body)
	require.Equal(t, "application/json", gotAccept)
}

func TestClientGetServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := New(Config{Timeout: 5 * time.Second})
	_, err := client.Get(context.Background(), srv.URL, nil)
	require.Error(t, err)
}

func TestClientGetCanceledContext(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		<-release
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	client := New(Config{Timeout: 5 * time.Second})
	_, err := client.Get(ctx, srv.URL, nil)
	require.ErrorIs(t, err, context.Canceled)
}

package stub

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/warrenhq/warren/internal/identity"
	"github.com/warrenhq/warren/internal/warrenerr"
)

func lobbyID(t *testing.T) identity.Identity {
	t.Helper()
	return identity.DeriveFromName("rooms", "lobby")
}

func TestFetch_RewritesPathAndQuery(t *testing.T) {
	id := lobbyID(t)

	var gotPath, gotQuery, gotMethod string
	var gotHeader http.Header
	var gotBody []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		gotMethod = r.Method
		gotHeader = r.Header.Clone()
		gotBody, _ = io.ReadAll(r.Body)
		w.Header().Set("X-Object-Version", "7")
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("pong"))
	}))
	defer srv.Close()

	s := New(id, Config{BackendURL: srv.URL})

	req, err := http.NewRequest(http.MethodPost,
		"https://placeholder.invalid/messages/latest?limit=5", strings.NewReader("ping"))
	require.NoError(t, err)
	req.Header.Set("X-Custom", "kept")

	resp, err := s.Fetch(context.Background(), req)
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, "/do/rooms/"+id.String()+"/messages/latest", gotPath)
	require.Equal(t, "limit=5", gotQuery)
	require.Equal(t, http.MethodPost, gotMethod)
	require.Equal(t, "kept", gotHeader.Get("X-Custom"))
	require.Equal(t, "ping", string(gotBody))

	// The response passes through unmodified.
	require.Equal(t, http.StatusTeapot, resp.StatusCode)
	require.Equal(t, "7", resp.Header.Get("X-Object-Version"))
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, "pong", string(body))
}

func TestForwardURL_RootAndEmptyPaths(t *testing.T) {
	id := lobbyID(t)
	s := New(id, Config{BackendURL: "http://node:8787/"})

	want := "http://node:8787/do/rooms/" + id.String() + "/"

	root, err := url.Parse("http://placeholder/")
	require.NoError(t, err)
	require.Equal(t, want, s.ForwardURL(root))

	empty, err := url.Parse("http://placeholder")
	require.NoError(t, err)
	require.Equal(t, want, s.ForwardURL(empty))
}

func TestFetch_TimeoutSurfacesAsRemoteTimeout(t *testing.T) {
	id := lobbyID(t)

	blocked := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer srv.Close()
	defer close(blocked)

	s := New(id, Config{BackendURL: srv.URL, Timeout: 50 * time.Millisecond})

	_, err := s.FetchURL(context.Background(), http.MethodGet, "http://placeholder/slow", nil)
	require.Error(t, err)
	require.Equal(t, warrenerr.CodeRemoteTimeout, warrenerr.CodeOf(err))
}

func TestFetch_ForwardsLocationHint(t *testing.T) {
	id := lobbyID(t)

	var gotHint string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHint = r.Header.Get("Warren-Location-Hint")
	}))
	defer srv.Close()

	s := New(id, Config{BackendURL: srv.URL, LocationHint: "wnam"})
	resp, err := s.FetchURL(context.Background(), http.MethodGet, "http://placeholder/", nil)
	require.NoError(t, err)
	resp.Body.Close()

	require.Equal(t, "wnam", gotHint)
}

func TestNew_Defaults(t *testing.T) {
	s := New(lobbyID(t), Config{BackendURL: "http://node:8787"})
	require.Equal(t, DefaultRequestTimeout, s.timeout)
	require.NotNil(t, s.client)

	name, ok := s.Name()
	require.True(t, ok)
	require.Equal(t, "lobby", name)
}

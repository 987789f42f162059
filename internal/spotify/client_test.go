package spotify

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/zmb3/spotify/v2"
	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"freaksplay/internal/core"
	"freaksplay/internal/i18n"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	config := &core.SpotifyConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthFlow:     core.AuthFlowAuthorizationCode,
		RedirectURL:  "http://127.0.0.1:0/callback",
		PlaylistID:   "playlist1",
		TokenPath:    filepath.Join(t.TempDir(), "token.json"),
	}
	return NewClient(config, zap.NewNop(), i18n.NewLocalizer(i18n.DefaultLanguage))
}

// useAPI points the client at a fake Web API.
func useAPI(c *Client, server *httptest.Server) {
	c.client = spotify.New(server.Client(), spotify.WithBaseURL(server.URL+"/"))
}

func TestClient_NotAuthenticated(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	if _, err := c.AddTracksToPlaylist(ctx, "playlist1", []string{"abc123"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("AddTracksToPlaylist() error = %v, want ErrNotAuthenticated", err)
	}
	if _, err := c.GetTracks(ctx, []string{"abc123"}); !errors.Is(err, ErrNotAuthenticated) {
		t.Errorf("GetTracks() error = %v, want ErrNotAuthenticated", err)
	}
}

func TestClient_AuthenticateUnknownFlow(t *testing.T) {
	c := newTestClient(t)
	c.config.AuthFlow = "implicit"

	if err := c.Authenticate(context.Background()); err == nil {
		t.Error("Authenticate() with unknown flow should fail")
	}
}

func TestClient_AddTracksToPlaylist(t *testing.T) {
	var gotPath, gotMethod, gotRequest string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotRequest = r.URL.RawQuery + string(body)

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"snapshot_id":"snap1"}`))
	}))
	defer server.Close()

	c := newTestClient(t)
	useAPI(c, server)

	snapshot, err := c.AddTracksToPlaylist(context.Background(), "playlist1", []string{"abc123", "def456"})
	if err != nil {
		t.Fatalf("AddTracksToPlaylist() error = %v", err)
	}
	if snapshot != "snap1" {
		t.Errorf("AddTracksToPlaylist() snapshot = %q, want %q", snapshot, "snap1")
	}
	if gotMethod != http.MethodPost {
		t.Errorf("Expected POST, got %s", gotMethod)
	}
	if gotPath != "/playlists/playlist1/tracks" {
		t.Errorf("Expected path /playlists/playlist1/tracks, got %s", gotPath)
	}
	for _, id := range []string{"abc123", "def456"} {
		if !strings.Contains(gotRequest, id) {
			t.Errorf("Expected request to contain %s, got %q", id, gotRequest)
		}
	}
}

func TestClient_AddTracksToPlaylistError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error":{"status":403,"message":"Forbidden"}}`))
	}))
	defer server.Close()

	c := newTestClient(t)
	useAPI(c, server)

	if _, err := c.AddTracksToPlaylist(context.Background(), "playlist1", []string{"abc123"}); err == nil {
		t.Error("AddTracksToPlaylist() should fail on 403")
	}
}

func TestClient_GetTracks(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/tracks" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"tracks":[
			{"id":"abc123","name":"Never Gonna Give You Up","artists":[{"name":"Rick Astley"}]},
			null,
			{"id":"def456","name":"Duet","artists":[{"name":"A"},{"name":"B"}]}
		]}`))
	}))
	defer server.Close()

	c := newTestClient(t)
	useAPI(c, server)

	tracks, err := c.GetTracks(context.Background(), []string{"abc123", "missing", "def456"})
	if err != nil {
		t.Fatalf("GetTracks() error = %v", err)
	}

	expected := []core.Track{
		{ID: "abc123", Title: "Never Gonna Give You Up", Artist: "Rick Astley"},
		{ID: "def456", Title: "Duet", Artist: "A, B"},
	}
	if !reflect.DeepEqual(tracks, expected) {
		t.Errorf("GetTracks() = %+v, want %+v", tracks, expected)
	}
}

func TestConvertSpotifyTrack(t *testing.T) {
	tests := []struct {
		name     string
		track    *spotify.FullTrack
		expected core.Track
	}{
		{
			name: "Single artist",
			track: &spotify.FullTrack{SimpleTrack: spotify.SimpleTrack{
				ID: "abc123", Name: "Song", Artists: []spotify.SimpleArtist{{Name: "Artist"}},
			}},
			expected: core.Track{ID: "abc123", Title: "Song", Artist: "Artist"},
		},
		{
			name:     "No artists",
			track:    &spotify.FullTrack{SimpleTrack: spotify.SimpleTrack{ID: "abc123", Name: "Song"}},
			expected: core.Track{ID: "abc123", Title: "Song", Artist: UnknownArtist},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := convertSpotifyTrack(tt.track); got != tt.expected {
				t.Errorf("convertSpotifyTrack() = %+v, want %+v", got, tt.expected)
			}
		})
	}
}

func TestClient_TokenPersistence(t *testing.T) {
	c := newTestClient(t)

	if _, err := c.loadToken(); err == nil {
		t.Fatal("loadToken() without a file should fail")
	}

	token := &oauth2.Token{
		AccessToken:  "access",
		RefreshToken: "refresh",
		TokenType:    "Bearer",
		Expiry:       time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	if err := c.saveToken(token); err != nil {
		t.Fatalf("saveToken() error = %v", err)
	}

	info, err := os.Stat(c.config.TokenPath)
	if err != nil {
		t.Fatalf("Token file missing: %v", err)
	}
	if perm := info.Mode().Perm(); perm != FilePermission {
		t.Errorf("Token file permissions = %o, want %o", perm, FilePermission)
	}

	loaded, err := c.loadToken()
	if err != nil {
		t.Fatalf("loadToken() error = %v", err)
	}
	if loaded.AccessToken != token.AccessToken || loaded.RefreshToken != token.RefreshToken ||
		!loaded.Expiry.Equal(token.Expiry) {
		t.Errorf("loadToken() = %+v, want %+v", loaded, token)
	}
}

func TestClient_LoadTokenInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"Not JSON", "not json"},
		{"Missing token", `{"other":1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t)
			if err := os.WriteFile(c.config.TokenPath, []byte(tt.content), FilePermission); err != nil {
				t.Fatal(err)
			}
			if _, err := c.loadToken(); err == nil {
				t.Error("loadToken() should fail")
			}
		})
	}
}

func TestTokenData_JSON(t *testing.T) {
	data, err := json.Marshal(TokenData{Token: &oauth2.Token{AccessToken: "access"}})
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `"token":{`) {
		t.Errorf("Token file should nest the token under \"token\", got %s", data)
	}
}

func TestClient_CallbackHandler(t *testing.T) {
	const state = "expected-state"

	tests := []struct {
		name        string
		query       string
		exchangeErr error
		wantStatus  int
		wantToken   bool
		wantFailure bool
	}{
		{"Success", "?state=" + state + "&code=abc", nil, http.StatusOK, true, false},
		{"State mismatch", "?state=other&code=abc", nil, http.StatusBadRequest, false, false},
		{"Exchange fails", "?state=" + state + "&error=access_denied", errors.New("access denied"),
			http.StatusForbidden, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t)
			exchanged := &oauth2.Token{AccessToken: "access"}
			c.exchange = func(_ context.Context, gotState string, _ *http.Request) (*oauth2.Token, error) {
				if gotState != state {
					t.Errorf("exchange state = %q, want %q", gotState, state)
				}
				if tt.exchangeErr != nil {
					return nil, tt.exchangeErr
				}
				return exchanged, nil
			}

			tokens := make(chan *oauth2.Token, 1)
			failures := make(chan error, 1)
			handler := c.callbackHandler(state, tokens, failures)

			rec := httptest.NewRecorder()
			handler(rec, httptest.NewRequest(http.MethodGet, "/callback"+tt.query, http.NoBody))

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}

			select {
			case token := <-tokens:
				if !tt.wantToken {
					t.Error("Unexpected token delivered")
				} else if token != exchanged {
					t.Error("Delivered token does not match the exchanged token")
				}
			default:
				if tt.wantToken {
					t.Error("Expected a token to be delivered")
				}
			}

			select {
			case <-failures:
				if !tt.wantFailure {
					t.Error("Unexpected failure delivered")
				}
			default:
				if tt.wantFailure {
					t.Error("Expected a failure to be delivered")
				}
			}
		})
	}
}

func TestClient_CallbackHandlerRepeatedCallsDoNotBlock(t *testing.T) {
	c := newTestClient(t)
	c.exchange = func(context.Context, string, *http.Request) (*oauth2.Token, error) {
		return &oauth2.Token{AccessToken: "access"}, nil
	}

	tokens := make(chan *oauth2.Token, 1)
	handler := c.callbackHandler("s", tokens, make(chan error, 1))

	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := 0; i < 3; i++ {
			handler(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/callback?state=s&code=c", http.NoBody))
		}
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Repeated callbacks blocked")
	}
}

func TestClient_StartOAuthFlowCanceled(t *testing.T) {
	c := newTestClient(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := c.startOAuthFlow(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("startOAuthFlow() error = %v, want context.Canceled", err)
	}
}

func TestClient_StartOAuthFlowInvalidRedirect(t *testing.T) {
	c := newTestClient(t)
	c.config.RedirectURL = "://bad"

	if _, err := c.startOAuthFlow(context.Background()); err == nil {
		t.Error("startOAuthFlow() with an invalid redirect URL should fail")
	}
}

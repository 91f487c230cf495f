package freerice_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"ricefarm/internal/components/telemetry"
	"ricefarm/internal/freerice"
	"ricefarm/internal/freerice/freericetest"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func newSession(t testing.TB, server *freericetest.Server) *freerice.Session {
	client := freerice.NewClient(server.Options(), &telemetry.Recorder{})
	session, err := client.NewSession()
	if err != nil {
		t.Fatal(err)
	}
	return session
}

func newHTTPServer(t testing.TB, handler http.Handler) string {
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return server.URL
}

func TestLogin(t *testing.T) {
	server := freericetest.NewServer(t)
	session := newSession(t, server)

	result, err := session.Login(context.Background(), server.Credentials())
	require.NoError(t, err)
	require.Equal(t, "uuid-bob", result.UUID)
	require.Equal(t, "bob", result.UserData.Username)
	require.NotEmpty(t, result.Token)

	require.Equal(t, result.Token, session.Token())
	require.Equal(t, "uuid-bob", session.UserID())
	require.Equal(t, "bob", session.Username())
}

func TestLoginMockBody(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "json", r.URL.Query().Get("_format"))
		require.Equal(t, "application/json;version=2", r.Header.Get("accept"))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"token":"abc","uuid":"u1","userData":{"username":"bob"}}`))
	})
	server := newHTTPServer(t, mux)

	opts := freerice.DefaultOptions()
	opts.AccountsURL = server
	opts.EngineURL = server
	opts.CloudflareBypass = false
	session, err := freerice.NewClient(opts, &telemetry.Recorder{}).NewSession()
	require.NoError(t, err)

	_, err = session.Login(context.Background(), freerice.Credentials{Username: "bob", Password: "pw"})
	require.NoError(t, err)
	require.Equal(t, "u1", session.UserID())
	require.Equal(t, "abc", session.Token())
}

func TestLoginRejected(t *testing.T) {
	server := freericetest.NewServer(t)
	session := newSession(t, server)

	_, err := session.Login(context.Background(), freerice.Credentials{Username: "bob", Password: "wrong"})
	var statusErr *freerice.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusBadRequest, statusErr.StatusCode)
	require.Contains(t, statusErr.Body, "unrecognized")
	require.Empty(t, session.Token())
}

func TestLoginRateLimited(t *testing.T) {
	server := freericetest.NewServer(t)
	server.FailLogins(1, http.StatusTooManyRequests)
	session := newSession(t, server)

	_, err := session.Login(context.Background(), server.Credentials())
	var statusErr *freerice.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.True(t, statusErr.RateLimited())

	_, err = session.Login(context.Background(), server.Credentials())
	require.NoError(t, err)
}

func TestFetchRequiresLogin(t *testing.T) {
	server := freericetest.NewServer(t)
	session := newSession(t, server)

	_, err := session.FetchGame(context.Background())
	require.ErrorIs(t, err, freerice.ErrNotLoggedIn)
	require.Equal(t, 0, server.Counts().Fetches)
}

func TestFetchAndSubmit(t *testing.T) {
	server := freericetest.NewServer(t)
	server.SetRiceTotal(500)
	session := newSession(t, server)
	ctx := context.Background()

	_, err := session.Login(ctx, server.Credentials())
	require.NoError(t, err)

	game, err := session.FetchGame(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, game.ID)
	require.Regexp(t, `^\d+ x \d+$`, game.Question.Text)
	require.Len(t, game.Question.Options, 4)
	total, ok := game.RiceTotal()
	require.True(t, ok)
	require.Equal(t, int64(500), total)

	next, err := session.SubmitAnswer(ctx, game.ID, game.Question.Options[0].ID)
	require.NoError(t, err)
	require.NotEqual(t, game.ID, next.ID)

	counts := server.Counts()
	require.Equal(t, 1, counts.Fetches)
	require.Equal(t, 1, counts.Submits)
}

func TestSubmitFailure(t *testing.T) {
	server := freericetest.NewServer(t)
	session := newSession(t, server)
	ctx := context.Background()

	_, err := session.Login(ctx, server.Credentials())
	require.NoError(t, err)
	game, err := session.FetchGame(ctx)
	require.NoError(t, err)

	server.FailSubmits(1, http.StatusInternalServerError)
	_, err = session.SubmitAnswer(ctx, game.ID, game.Question.Options[0].ID)
	var statusErr *freerice.StatusError
	require.ErrorAs(t, err, &statusErr)
	require.Equal(t, http.StatusInternalServerError, statusErr.StatusCode)
	require.False(t, statusErr.RateLimited())
}

func TestTransportFailure(t *testing.T) {
	server := freericetest.NewServer(t)
	session := newSession(t, server)
	server.Close()

	_, err := session.Login(context.Background(), server.Credentials())
	require.Error(t, err)
	var statusErr *freerice.StatusError
	require.False(t, errors.As(err, &statusErr))
}

func TestMissingRiceTotal(t *testing.T) {
	server := freericetest.NewServer(t)
	server.OmitRiceTotal(true)
	session := newSession(t, server)
	ctx := context.Background()

	_, err := session.Login(ctx, server.Credentials())
	require.NoError(t, err)
	game, err := session.FetchGame(ctx)
	require.NoError(t, err)
	_, ok := game.RiceTotal()
	require.False(t, ok)
}

func TestDecodeGame(t *testing.T) {
	mux := http.NewServeMux()
	bodies := []string{
		`{"data":{"id":"g1","attributes":{"question":{"text":"7 x 8","options":[{"id":"o1","text":"54"},{"id":"o2","text":"56"}]},"user_rice_total":"12"}}}`,
		`{"data":{"attributes":{}}}`,
		`not json`,
	}
	mux.HandleFunc("GET /games/{id}", func(w http.ResponseWriter, r *http.Request) {
		body := bodies[0]
		bodies = bodies[1:]
		w.Write([]byte(body))
	})
	mux.HandleFunc("POST /auth/login", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"token":"abc","uuid":"u1"}`))
	})
	server := newHTTPServer(t, mux)

	opts := freerice.DefaultOptions()
	opts.AccountsURL = server
	opts.EngineURL = server
	opts.CloudflareBypass = false
	session, err := freerice.NewClient(opts, &telemetry.Recorder{}).NewSession()
	require.NoError(t, err)
	ctx := context.Background()
	_, err = session.Login(ctx, freerice.Credentials{})
	require.NoError(t, err)

	game, err := session.FetchGame(ctx)
	require.NoError(t, err)
	expected := &freerice.Game{
		ID: "g1",
		Question: freerice.Question{
			Text: "7 x 8",
			Options: []freerice.Option{
				{ID: "o1", Text: "54"},
				{ID: "o2", Text: "56"},
			},
		},
	}
	if diff := cmp.Diff(expected, game, cmpopts.IgnoreUnexported(freerice.Game{})); diff != "" {
		t.Fatalf("game mismatch (-want +got):\n%s", diff)
	}
	// string totals are not integers
	_, ok := game.RiceTotal()
	require.False(t, ok)

	_, err = session.FetchGame(ctx)
	require.ErrorIs(t, err, freerice.ErrMalformedGame)
	_, err = session.FetchGame(ctx)
	require.ErrorIs(t, err, freerice.ErrMalformedGame)
}

func TestInstrumentOutput(t *testing.T) {
	server := freericetest.NewServer(t)
	dir := filepath.Join(t.TempDir(), "dumps")
	output, err := telemetry.NewFilesystemOutput(dir)
	require.NoError(t, err)

	client := freerice.NewClient(server.Options(), &telemetry.Recorder{})
	client.SetInstrumentOutput(output)
	session, err := client.NewSession()
	require.NoError(t, err)

	_, err = session.Login(context.Background(), server.Credentials())
	require.NoError(t, err)

	dump, err := os.ReadFile(filepath.Join(dir, "1"))
	require.NoError(t, err)
	require.Contains(t, string(dump), "/auth/login")
	require.NotContains(t, string(dump), server.Password)
	require.NotContains(t, string(dump), session.Token())
}

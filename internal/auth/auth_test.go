package auth

import (
	"context"
	"net/http"
	"testing"
	"time"

	"ricefarm/internal/components/telemetry"
	"ricefarm/internal/freerice"
	"ricefarm/internal/freerice/freericetest"
	"ricefarm/internal/retry"

	"github.com/stretchr/testify/require"
)

func fastPolicy(retries int) retry.Policy {
	policy := retry.BoundedPolicy(retries)
	policy.InitialDelay = time.Millisecond
	return policy
}

func TestLogin(t *testing.T) {
	server := freericetest.NewServer(t)
	rec := &telemetry.Recorder{}
	client := NewClient(freerice.NewClient(server.Options(), rec), fastPolicy(2), rec)

	session, err := client.Login(context.Background(), server.Credentials())
	require.NoError(t, err)
	require.Equal(t, "uuid-bob", session.UserID())
	require.NotEmpty(t, session.Token())

	infos := rec.Reports("info", "logged in")
	require.Len(t, infos, 1)
	require.Equal(t, []any{"username", "bob", "user_id", "uuid-bob"}, infos[0].Params)
}

func TestLoginRetries(t *testing.T) {
	cases := []struct {
		name     string
		failures int
		status   int
		retries  int
		ok       bool
		logins   int
	}{
		{name: "rate limited then ok", failures: 2, status: http.StatusTooManyRequests, retries: 3, ok: true, logins: 3},
		{name: "server error then ok", failures: 1, status: http.StatusBadGateway, retries: 1, ok: true, logins: 2},
		{name: "gives up", failures: 10, status: http.StatusTooManyRequests, retries: 2, ok: false, logins: 3},
		{name: "no retries", failures: 1, status: http.StatusInternalServerError, retries: 0, ok: false, logins: 1},
	}

	for _, test := range cases {
		t.Run(test.name, func(t *testing.T) {
			server := freericetest.NewServer(t)
			server.FailLogins(test.failures, test.status)
			rec := &telemetry.Recorder{}
			client := NewClient(freerice.NewClient(server.Options(), rec), fastPolicy(test.retries), rec)

			session, err := client.Login(context.Background(), server.Credentials())
			require.Equal(t, test.logins, server.Counts().Logins)
			if test.ok {
				require.NoError(t, err)
				require.NotEmpty(t, session.Token())
				require.Len(t, rec.Reports("warning", report_client_login), test.logins-1)
				return
			}

			require.Error(t, err)
			var statusErr *freerice.StatusError
			require.ErrorAs(t, err, &statusErr)
			require.Equal(t, test.status, statusErr.StatusCode)
			require.Len(t, rec.Reports("broken", report_client_login), 1)
		})
	}
}

func TestLoginCancelled(t *testing.T) {
	server := freericetest.NewServer(t)
	server.FailLogins(1000, http.StatusTooManyRequests)
	rec := &telemetry.Recorder{}
	policy := retry.UnboundedPolicy()
	policy.InitialDelay = time.Millisecond
	policy.MaxDelay = 5 * time.Millisecond
	client := NewClient(freerice.NewClient(server.Options(), rec), policy, rec)

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err := client.Login(ctx, server.Credentials())
	require.Error(t, err)
	require.Greater(t, server.Counts().Logins, 1)
}

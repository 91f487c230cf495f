// Package auth logs workers into Freerice, retrying failed exchanges.
package auth

import (
	"context"
	"fmt"
	"time"

	"ricefarm/internal/components/assert"
	"ricefarm/internal/components/telemetry"
	"ricefarm/internal/freerice"
	"ricefarm/internal/retry"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("auth")

const (
	report_client_login = "client.login"
)

// DefaultPolicy is used by NewClient callers that have no configured policy.
func DefaultPolicy() retry.Policy {
	return retry.BoundedPolicy(8)
}

type Client struct {
	freerice *freerice.Client
	policy   retry.Policy
	tel      telemetry.API
}

func NewClient(client *freerice.Client, policy retry.Policy, tel telemetry.API) Client {
	assert.NotNil(client)
	assert.NotNil(tel)
	return Client{
		freerice: client,
		policy:   policy,
		tel:      telemetry.NewScopedAPI("auth", tel),
	}
}

// Login returns a new session bound to the account's token. Any failed exchange is retried
// according to the client's policy, the last error is returned once it gives up.
func (c Client) Login(ctx context.Context, creds freerice.Credentials) (*freerice.Session, error) {
	ctx, span := tracer.Start(ctx, "client:Login")
	defer span.End()

	session, err := c.freerice.NewSession()
	if err != nil {
		span.SetStatus(codes.Error, "failed to create session")
		return nil, fmt.Errorf("create session: %w", err)
	}

	err = c.policy.Do(
		ctx,
		func(ctx context.Context, _ int) error {
			_, err := session.Login(ctx, creds)
			return err
		},
		func(err error, attempt int, delay time.Duration) {
			c.tel.ReportWarning(
				report_client_login,
				err,
				"attempt", attempt,
				"retry_in", delay.String(),
			)
		},
	)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		c.tel.ReportBroken(report_client_login, err, "policy", c.policy.Mode.String())
		return nil, fmt.Errorf("login: %w", err)
	}

	span.SetAttributes(attribute.String("freerice.user_id", session.UserID()))
	c.tel.ReportInfo("logged in", "username", session.Username(), "user_id", session.UserID())
	return session, nil
}

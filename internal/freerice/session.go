package freerice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"ricefarm/internal/components/telemetry"

	"github.com/go-resty/resty/v2"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_session_login         = "session.login"
	report_session_fetch_game    = "session.fetch-game"
	report_session_submit_answer = "session.submit-answer"
)

// Session is an authenticated http context, it must only be used by one goroutine.
type Session struct {
	http *resty.Client
	opts Options
	tel  telemetry.API

	token    string
	userID   string
	username string
}

func (s *Session) Token() string    { return s.token }
func (s *Session) UserID() string   { return s.userID }
func (s *Session) Username() string { return s.username }

// Login performs a single login exchange, on success the session is bound to the
// returned token.
func (s *Session) Login(ctx context.Context, creds Credentials) (LoginResult, error) {
	ctx, span := tracer.Start(ctx, "session:Login")
	defer span.End()

	res, err := s.http.R().
		SetContext(ctx).
		SetHeader("content-type", "application/json").
		SetHeader("accept", "application/json;version=2").
		SetHeader("origin", s.opts.Origin).
		SetQueryParam("_format", "json").
		SetBody(loginRequest{Username: creds.Username, Password: creds.Password}).
		Post(s.opts.AccountsURL + "/auth/login")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return LoginResult{}, fmt.Errorf("login request: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, res.Status())
		return LoginResult{}, newStatusError("login", res.StatusCode(), res.Body())
	}

	var result LoginResult
	err = json.Unmarshal(res.Body(), &result)
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse json response")
		s.tel.ReportBroken(report_session_login, fmt.Errorf("unmarshal json: %w", err))
		return LoginResult{}, fmt.Errorf("%w: %w", ErrMalformedLogin, err)
	}
	if result.Token == "" {
		span.SetStatus(codes.Error, "missing token")
		s.tel.ReportBroken(report_session_login, ErrMalformedLogin, "reason", "missing token")
		return LoginResult{}, fmt.Errorf("%w: missing token", ErrMalformedLogin)
	}

	s.token = result.Token
	s.userID = result.UUID
	s.username = result.UserData.Username
	span.SetAttributes(attribute.String("freerice.user_id", result.UUID))

	return result, nil
}

func (s *Session) authorized(ctx context.Context) (*resty.Request, error) {
	if s.token == "" {
		return nil, ErrNotLoggedIn
	}
	return s.http.R().
		SetContext(ctx).
		SetAuthToken(s.token).
		SetHeader("content-type", "application/json").
		SetHeader("accept", "application/json"), nil
}

// FetchGame reads the current round of the configured game.
func (s *Session) FetchGame(ctx context.Context) (*Game, error) {
	ctx, span := tracer.Start(ctx, "session:FetchGame")
	defer span.End()

	req, err := s.authorized(ctx)
	if err != nil {
		return nil, err
	}
	res, err := req.Get(s.opts.EngineURL + "/games/" + url.PathEscape(s.opts.GameID))
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, fmt.Errorf("fetch game: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, res.Status())
		return nil, newStatusError("fetch game", res.StatusCode(), res.Body())
	}

	game, err := decodeGame(res.Body())
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse json response")
		s.tel.ReportWarning(report_session_fetch_game, err)
		return nil, err
	}
	return game, nil
}

// SubmitAnswer answers round `gameID` with `optionID`, the response carries the next round.
func (s *Session) SubmitAnswer(ctx context.Context, gameID, optionID string) (*Game, error) {
	ctx, span := tracer.Start(ctx, "session:SubmitAnswer")
	defer span.End()
	span.SetAttributes(attribute.String("freerice.game_id", gameID))

	req, err := s.authorized(ctx)
	if err != nil {
		return nil, err
	}
	res, err := req.
		SetBody(answerRequest{Answer: optionID}).
		Patch(s.opts.EngineURL + "/games/" + url.PathEscape(gameID) + "/answer")
	if err != nil {
		span.SetStatus(codes.Error, "failed to fetch")
		return nil, fmt.Errorf("submit answer: %w", err)
	}
	if res.StatusCode() != http.StatusOK {
		span.SetStatus(codes.Error, res.Status())
		return nil, newStatusError("submit answer", res.StatusCode(), res.Body())
	}

	game, err := decodeGame(res.Body())
	if err != nil {
		span.SetStatus(codes.Error, "failed to parse json response")
		s.tel.ReportWarning(report_session_submit_answer, err)
		return nil, err
	}
	return game, nil
}

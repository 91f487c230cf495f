// Package answer solves multiplication rounds and submits them.
package answer

import (
	"context"
	"fmt"

	"ricefarm/internal/components/assert"
	"ricefarm/internal/components/telemetry"
	"ricefarm/internal/freerice"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("answer")

const (
	report_engine_solve = "engine.solve"
)

// Session is the part of a freerice session the engine needs.
type Session interface {
	FetchGame(ctx context.Context) (*freerice.Game, error)
	SubmitAnswer(ctx context.Context, gameID, optionID string) (*freerice.Game, error)
}

type Engine struct {
	tel telemetry.API
}

func NewEngine(tel telemetry.API) Engine {
	assert.NotNil(tel)
	return Engine{tel: telemetry.NewScopedAPI("answer", tel)}
}

// FetchQuestion performs a single fetch of the current round.
func (e Engine) FetchQuestion(ctx context.Context, session Session) (*freerice.Game, error) {
	game, err := session.FetchGame(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch question: %w", err)
	}
	return game, nil
}

// SubmitAnswer solves `game` and submits the answer. Nothing is sent when the question
// cannot be solved. The returned game is the next round.
func (e Engine) SubmitAnswer(ctx context.Context, session Session, game *freerice.Game) (*freerice.Game, error) {
	ctx, span := tracer.Start(ctx, "engine:SubmitAnswer")
	defer span.End()
	span.SetAttributes(attribute.String("freerice.game_id", game.ID))

	optionID, err := Solve(game.Question)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		e.tel.ReportWarning(report_engine_solve, err, "game_id", game.ID)
		return nil, err
	}

	next, err := session.SubmitAnswer(ctx, game.ID, optionID)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("submit answer: %w", err)
	}
	return next, nil
}

// Round answers one question. When `prev` is nil the current round is fetched first,
// otherwise `prev` (the game returned by the last submission) is answered directly.
func (e Engine) Round(ctx context.Context, session Session, prev *freerice.Game) (*freerice.Game, error) {
	game := prev
	if game == nil {
		var err error
		game, err = e.FetchQuestion(ctx, session)
		if err != nil {
			return nil, err
		}
	}
	return e.SubmitAnswer(ctx, session, game)
}

package answer

import (
	"context"
	"errors"
	"testing"

	"ricefarm/internal/components/telemetry"
	"ricefarm/internal/freerice"
	"ricefarm/internal/freerice/freericetest"

	"github.com/stretchr/testify/require"
)

func TestParseExpression(t *testing.T) {
	cases := []struct {
		text string
		a, b int64
		err  bool
	}{
		{text: "7 x 8", a: 7, b: 8},
		{text: "  12x3", a: 12, b: 3},
		{text: "0 x 15", a: 0, b: 15},
		{text: "4 x 5 = ?", a: 4, b: 5},
		{text: "4 + 5", err: true},
		{text: "x 5", err: true},
		{text: "", err: true},
		{text: "seven x eight", err: true},
		{text: "99999999999999999999 x 2", err: true},
		{text: "9999999999 x 9999999999", err: true},
	}

	for _, test := range cases {
		t.Run(test.text, func(t *testing.T) {
			a, b, err := ParseExpression(test.text)
			if test.err {
				require.ErrorIs(t, err, ErrUnparseableExpression)
				return
			}
			require.NoError(t, err)
			require.Equal(t, test.a, a)
			require.Equal(t, test.b, b)
		})
	}
}

func TestSelectOption(t *testing.T) {
	options := []freerice.Option{
		{ID: "a", Text: "12"},
		{ID: "b", Text: "fifteen"},
		{ID: "c", Text: " 15 "},
		{ID: "d", Text: "15"},
	}

	opt, err := SelectOption(options, 15)
	require.NoError(t, err)
	require.Equal(t, "c", opt.ID)

	opt, err = SelectOption(options, 12)
	require.NoError(t, err)
	require.Equal(t, "a", opt.ID)

	_, err = SelectOption(options, 99)
	require.ErrorIs(t, err, ErrNoMatchingOption)

	_, err = SelectOption(nil, 1)
	require.ErrorIs(t, err, ErrNoMatchingOption)
}

func TestSolve(t *testing.T) {
	optionID, err := Solve(freerice.Question{
		Text: "7 x 8",
		Options: []freerice.Option{
			{ID: "o1", Text: "54"},
			{ID: "o2", Text: "56"},
			{ID: "o3", Text: "58"},
			{ID: "o4", Text: "64"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, "o2", optionID)
}

type fakeSession struct {
	fetches   int
	submitted []string
	next      *freerice.Game
	err       error
}

func (s *fakeSession) FetchGame(context.Context) (*freerice.Game, error) {
	s.fetches++
	if s.err != nil {
		return nil, s.err
	}
	return s.next, nil
}

func (s *fakeSession) SubmitAnswer(_ context.Context, gameID, optionID string) (*freerice.Game, error) {
	s.submitted = append(s.submitted, gameID+"/"+optionID)
	if s.err != nil {
		return nil, s.err
	}
	return s.next, nil
}

func TestSubmitUnsolvable(t *testing.T) {
	rec := &telemetry.Recorder{}
	engine := NewEngine(rec)
	session := &fakeSession{}

	_, err := engine.SubmitAnswer(context.Background(), session, &freerice.Game{
		ID:       "g1",
		Question: freerice.Question{Text: "3 x 3", Options: []freerice.Option{{ID: "o1", Text: "6"}}},
	})
	require.ErrorIs(t, err, ErrNoMatchingOption)
	require.Empty(t, session.submitted)
	require.Len(t, rec.Reports("warning", report_engine_solve), 1)
}

func TestRoundUsesPrevious(t *testing.T) {
	engine := NewEngine(&telemetry.Recorder{})
	next := &freerice.Game{ID: "g2"}
	session := &fakeSession{next: next}

	prev := &freerice.Game{
		ID:       "g1",
		Question: freerice.Question{Text: "2 x 3", Options: []freerice.Option{{ID: "o1", Text: "6"}}},
	}
	got, err := engine.Round(context.Background(), session, prev)
	require.NoError(t, err)
	require.Same(t, next, got)
	require.Equal(t, 0, session.fetches)
	require.Equal(t, []string{"g1/o1"}, session.submitted)
}

func TestRoundFetchError(t *testing.T) {
	engine := NewEngine(&telemetry.Recorder{})
	session := &fakeSession{err: errors.New("boom")}

	_, err := engine.Round(context.Background(), session, nil)
	require.Error(t, err)
	require.Equal(t, 1, session.fetches)
	require.Empty(t, session.submitted)
}

func TestRoundAgainstServer(t *testing.T) {
	server := freericetest.NewServer(t)
	rec := &telemetry.Recorder{}
	session, err := freerice.NewClient(server.Options(), rec).NewSession()
	require.NoError(t, err)
	ctx := context.Background()
	_, err = session.Login(ctx, server.Credentials())
	require.NoError(t, err)

	engine := NewEngine(rec)
	var game *freerice.Game
	for i := 0; i < 20; i++ {
		game, err = engine.Round(ctx, session, game)
		require.NoError(t, err)
	}

	counts := server.Counts()
	require.Equal(t, 1, counts.Fetches)
	require.Equal(t, 20, counts.Correct)
	require.Equal(t, 0, counts.Wrong)
}

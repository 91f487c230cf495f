package freerice

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Credentials are shared read-only by every worker.
type Credentials struct {
	Username string
	Password string
}

type Option struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

type Question struct {
	Text    string   `json:"text"`
	Options []Option `json:"options"`
}

// Game is the state the game engine returns for both a fetch and an answer submission.
type Game struct {
	// ID identifies the round, answers are submitted against it.
	ID       string
	Question Question

	riceTotal    int64
	hasRiceTotal bool
}

// RiceTotal is the account's cumulative rice, ok is false if the response did not carry
// an integer total.
func (g *Game) RiceTotal() (total int64, ok bool) {
	return g.riceTotal, g.hasRiceTotal
}

type UserData struct {
	Username string `json:"username"`
}

// LoginResult is the decoded body of a successful login.
type LoginResult struct {
	Token    string   `json:"token"`
	UUID     string   `json:"uuid"`
	UserData UserData `json:"userData"`
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type answerRequest struct {
	Answer string `json:"answer"`
}

type gameResponse struct {
	Data struct {
		ID         string `json:"id"`
		Attributes struct {
			Question      Question        `json:"question"`
			UserRiceTotal json.RawMessage `json:"user_rice_total"`
		} `json:"attributes"`
	} `json:"data"`
}

func decodeGame(body []byte) (*Game, error) {
	var res gameResponse
	err := json.Unmarshal(body, &res)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedGame, err)
	}
	if res.Data.ID == "" {
		return nil, fmt.Errorf("%w: missing data.id", ErrMalformedGame)
	}

	game := &Game{
		ID:       res.Data.ID,
		Question: res.Data.Attributes.Question,
	}

	raw := bytes.TrimSpace(res.Data.Attributes.UserRiceTotal)
	if len(raw) > 0 && !bytes.Equal(raw, []byte("null")) {
		var total int64
		// non-integer totals (floats, strings) are treated as missing
		if json.Unmarshal(raw, &total) == nil {
			game.riceTotal = total
			game.hasRiceTotal = true
		}
	}

	return game, nil
}

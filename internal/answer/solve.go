package answer

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"ricefarm/internal/freerice"
)

var (
	ErrUnparseableExpression = errors.New("unparseable expression")
	ErrNoMatchingOption      = errors.New("no matching option")
)

var expressionRe = regexp.MustCompile(`^\s*(\d+)\s*x\s*(\d+)`)

// ParseExpression reads the operands of a question like "7 x 8". Text after the second
// operand is ignored.
func ParseExpression(text string) (a, b int64, err error) {
	match := expressionRe.FindStringSubmatch(text)
	if match == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrUnparseableExpression, text)
	}
	a, err = strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrUnparseableExpression, err)
	}
	b, err = strconv.ParseInt(match[2], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %w", ErrUnparseableExpression, err)
	}
	if a != 0 && b > math.MaxInt64/a {
		return 0, 0, fmt.Errorf("%w: %q overflows", ErrUnparseableExpression, text)
	}
	return a, b, nil
}

// SelectOption returns the first option whose text is the integer `answer`.
func SelectOption(options []freerice.Option, answer int64) (freerice.Option, error) {
	for _, opt := range options {
		value, err := strconv.ParseInt(strings.TrimSpace(opt.Text), 10, 64)
		if err != nil {
			continue
		}
		if value == answer {
			return opt, nil
		}
	}
	return freerice.Option{}, fmt.Errorf("%w: %d among %d options", ErrNoMatchingOption, answer, len(options))
}

// Solve returns the id of the option answering `question`.
func Solve(question freerice.Question) (string, error) {
	a, b, err := ParseExpression(question.Text)
	if err != nil {
		return "", err
	}
	opt, err := SelectOption(question.Options, a*b)
	if err != nil {
		return "", err
	}
	return opt.ID, nil
}

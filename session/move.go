package session

import (
	"fmt"
	"strconv"
	"strings"
)

// Move is one placement on the board. Its JSON form is the response body the
// platform expects: {"x":X,"y":Y}.
type Move struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// String returns the "<x> <y>" record form used in engine input and output.
func (m Move) String() string {
	return strconv.Itoa(m.X) + " " + strconv.Itoa(m.Y)
}

// ParseMove parses a "<x> <y>" record. Exactly two integer tokens separated by
// whitespace are accepted.
func ParseMove(s string) (Move, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Move{}, fmt.Errorf("move %q: want 2 tokens, got %d", s, len(fields))
	}

	x, err := strconv.Atoi(fields[0])
	if err != nil {
		return Move{}, fmt.Errorf("move %q: bad x: %w", s, err)
	}
	y, err := strconv.Atoi(fields[1])
	if err != nil {
		return Move{}, fmt.Errorf("move %q: bad y: %w", s, err)
	}

	return Move{X: x, Y: y}, nil
}

package engine

import (
	"math/rand/v2"
	"strconv"
	"strings"
)

const MaxDieSides = 1000

var StandardDice = []string{"d4", "d6", "d8", "d10", "d20"}

// RandomSource yields uniform integers in [0, n). *rand.Rand satisfies it.
type RandomSource interface {
	IntN(n int) int
}

type globalSource struct{}

func (globalSource) IntN(n int) int { return rand.IntN(n) }

// DefaultRandom is safe for concurrent use.
func DefaultRandom() RandomSource { return globalSource{} }

// SidesOf parses a die kind of the form "d<N>".
func SidesOf(kind string) (int, error) {
	k := strings.ToLower(strings.TrimSpace(kind))
	if !strings.HasPrefix(k, "d") {
		return 0, missingFields("die kind %q must look like d<N>", kind)
	}
	n, err := strconv.Atoi(k[1:])
	if err != nil || n < 1 || n > MaxDieSides {
		return 0, missingFields("die kind %q must have between 1 and %d sides", kind, MaxDieSides)
	}
	return n, nil
}

// Roll returns a uniform value in [1, SidesOf(kind)]. Results are relayed to
// the room and never stored in State.
func Roll(src RandomSource, kind string) (int, error) {
	sides, err := SidesOf(kind)
	if err != nil {
		return 0, err
	}
	return src.IntN(sides) + 1, nil
}

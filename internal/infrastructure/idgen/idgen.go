package idgen

import (
	"errors"
	"strconv"
	"sync"
	"time"

	gonanoid "github.com/matoous/go-nanoid"
)

const digitAlphabet = "0123456789"

// Generator numeric ID generator interface
type Generator interface {
	Generate() (int64, error)
}

// TimeRandomGenerator build ids as unixMillis * 10^Digits + random suffix.
//
// ids handed out by one generator are strictly increasing; with at most
// 3 suffix digits they stay below 2^53 until the year 2255.
type TimeRandomGenerator struct {
	Digits int

	mu   sync.Mutex
	last int64
	now  func() time.Time
}

var _ Generator = &TimeRandomGenerator{}

// NewTimeRandomGenerator create a new `TimeRandomGenerator` instance
func NewTimeRandomGenerator(digits int) (*TimeRandomGenerator, error) {
	if digits < 1 || digits > 3 {
		return nil, errors.New("idgen: digits must be within 1 and 3")
	}
	return &TimeRandomGenerator{Digits: digits, now: time.Now}, nil
}

// Generate generate ID
func (g *TimeRandomGenerator) Generate() (int64, error) {
	suffix, err := gonanoid.Generate(digitAlphabet, g.Digits)
	if err != nil {
		return 0, err
	}
	n, err := strconv.ParseInt(suffix, 10, 64)
	if err != nil {
		return 0, err
	}

	scale := pow10(g.Digits)
	id := g.now().UnixNano()/int64(time.Millisecond)*scale + n

	g.mu.Lock()
	defer g.mu.Unlock()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id, nil
}

func pow10(n int) int64 {
	v := int64(1)
	for i := 0; i < n; i++ {
		v *= 10
	}
	return v
}

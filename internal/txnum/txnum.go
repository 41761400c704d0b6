package txnum

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"
)

const DefaultPrefix = "TRX"

const msPerDaySlot = 100_000_000

// Generator issues transaction numbers of the form
// PREFIX + yymmdd + eight digits of milliseconds since local midnight.
// Within one Generator the numbers strictly increase, so a process never
// hands out the same number twice. Cross-process collisions are caught by
// the store's unique constraint.
type Generator struct {
	prefix string
	loc    *time.Location
	now    func() time.Time

	// last holds yymmdd*1e8 + ms of the previous number.
	last atomic.Int64
}

type Option func(*Generator)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(g *Generator) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLocation(loc *time.Location) Option {
	return func(g *Generator) {
		if loc != nil {
			g.loc = loc
		}
	}
}

func New(prefix string, opts ...Option) *Generator {
	prefix = strings.TrimSpace(prefix)
	if prefix == "" {
		prefix = DefaultPrefix
	}
	g := &Generator{
		prefix: prefix,
		loc:    time.Local,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Generator) Prefix() string {
	return g.prefix
}

// Next returns a fresh transaction number.
func (g *Generator) Next() string {
	now := g.now().In(g.loc)
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, g.loc)
	day := int64((now.Year()%100)*10000 + int(now.Month())*100 + now.Day())
	reading := day*msPerDaySlot + now.Sub(midnight).Milliseconds()

	for {
		last := g.last.Load()
		next := reading
		if next <= last {
			next = last + 1
		}
		if g.last.CompareAndSwap(last, next) {
			return g.format(next)
		}
	}
}

func (g *Generator) format(value int64) string {
	return fmt.Sprintf("%s%06d%08d", g.prefix, value/msPerDaySlot, value%msPerDaySlot)
}

package flow

import (
	"time"

	"github.com/lampapompa/line-nutrition-bot/internal/models"
	"github.com/lampapompa/line-nutrition-bot/internal/util"
)

// DefaultDelayCap bounds the humanization delay for any reply length.
const DefaultDelayCap = 30 * time.Second

// perRuneExtra is added per rune beyond the longest band's threshold.
const perRuneExtra = 60 * time.Millisecond

// Pacer computes the artificial "typing time" delay before a reply is sent.
// The delay grows with reply length across bands, with randomization inside
// each band so timing does not look mechanical.
type Pacer struct {
	cap time.Duration
}

// NewPacer creates a pacer with the given delay cap; zero or negative means
// DefaultDelayCap.
func NewPacer(cap time.Duration) *Pacer {
	if cap <= 0 {
		cap = DefaultDelayCap
	}
	return &Pacer{cap: cap}
}

// Delay samples a humanization delay for the reply. Length is measured in
// runes so CJK replies are not overweighted.
func (p *Pacer) Delay(reply models.ComposedReply) time.Duration {
	n := reply.Len()

	var d time.Duration
	switch {
	case n <= 30:
		d = util.DurationBetween(3*time.Second, 5*time.Second)
	case n <= 60:
		d = util.DurationBetween(5*time.Second, 7*time.Second)
	case n <= 100:
		d = util.DurationBetween(7*time.Second, 9*time.Second)
	default:
		d = 9*time.Second + time.Duration(n-100)*perRuneExtra
	}

	if d > p.cap {
		d = p.cap
	}
	return d
}

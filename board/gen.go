package board

import (
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/Roygautam8852/SyncSpace/config"
)

// NewStrokeID returns a collision-resistant client id: wall clock plus
// random suffix, so concurrent clients never mint the same id.
func NewStrokeID() config.StrokeID {
	return config.NewStrokeID(fmt.Sprintf("%d-%s", time.Now().UnixMilli(), uuid.NewString()[:8]))
}

var genKinds = []string{
	config.StrokePen,
	config.StrokeMarker,
	config.StrokeLine,
	config.StrokeRect,
	config.StrokeCircle,
	config.StrokeText,
}

// RandomStroke builds a plausible stroke with n points on a 1920x1080
// canvas. Used by the load generator and tests.
func RandomStroke(n int) config.Stroke {
	kind := genKinds[rand.IntN(len(genKinds))]
	if kind == config.StrokeText {
		n = 1
	}
	if n < 1 {
		n = 1
	}

	points := make([]config.Point, n)
	for i := range points {
		points[i] = config.Point{
			X: rand.Float64() * 1920,
			Y: rand.Float64() * 1080,
		}
	}

	s := config.Stroke{
		ID:          NewStrokeID(),
		Type:        kind,
		Points:      points,
		Color:       fmt.Sprintf("hsl(%d, 70%%, 45%%)", rand.IntN(360)),
		Size:        float64(1 + rand.IntN(12)),
		Opacity:     1,
		StrokeStyle: "solid",
		UpdatedAt:   time.Now().UnixMilli(),
	}
	if kind == config.StrokeText {
		s.Text = uuid.NewString()[:6]
	}
	return s
}

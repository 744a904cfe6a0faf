package room

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/wfunc/tabletop/models"
)

func TestSnapToGrid(t *testing.T) {
	tests := []struct {
		name    string
		in      models.Position
		grid    float64
		enabled bool
		want    models.Position
	}{
		{"nearest multiple", models.Position{X: 101, Y: 59}, 60, true, models.Position{X: 120, Y: 60}},
		{"round down", models.Position{X: 29, Y: 89}, 60, true, models.Position{X: 0, Y: 60}},
		{"already aligned", models.Position{X: 120, Y: 240}, 60, true, models.Position{X: 120, Y: 240}},
		{"negative", models.Position{X: -31, Y: -29}, 60, true, models.Position{X: -60, Y: -0}},
		{"disabled", models.Position{X: 101, Y: 59}, 60, false, models.Position{X: 101, Y: 59}},
		{"zero grid", models.Position{X: 101, Y: 59}, 0, true, models.Position{X: 101, Y: 59}},
		{"fractional grid", models.Position{X: 0.26, Y: 0.74}, 0.5, true, models.Position{X: 0.5, Y: 0.5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, SnapToGrid(tt.in, tt.grid, tt.enabled))
		})
	}
}

func TestSnapToGridIdempotent(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 1000; i++ {
		p := models.Position{X: rng.Float64()*4000 - 2000, Y: rng.Float64()*4000 - 2000}
		grid := float64(rng.Intn(200) + 1)

		once := SnapToGrid(p, grid, true)
		assert.Equal(t, once, SnapToGrid(once, grid, true))
		assert.Equal(t, p, SnapToGrid(p, grid, false))
	}
}

func TestFogSet(t *testing.T) {
	f := newFogSet([]string{"1,1", "1,1"})
	assert.Equal(t, 1, f.len())

	assert.Equal(t, 1, f.reveal([]string{"1,1", "2,2"}))
	assert.Equal(t, []string{"1,1", "2,2"}, f.list())

	f.reset()
	assert.Equal(t, 0, f.len())
	assert.Empty(t, f.list())
	assert.Equal(t, 1, f.reveal([]string{"1,1"}))
}

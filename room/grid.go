package room

import (
	"math"

	"github.com/wfunc/tabletop/models"
)

const (
	RoleGM     = "gm"
	RolePlayer = "player"
)

// ResolveRole returns gm iff userID is the room's game master.
func ResolveRole(userID, gmUserID string) string {
	if gmUserID != "" && userID == gmUserID {
		return RoleGM
	}
	return RolePlayer
}

// SnapToGrid rounds each coordinate to the nearest multiple of gridSize.
// Halves round away from zero.
func SnapToGrid(p models.Position, gridSize float64, enabled bool) models.Position {
	if !enabled || gridSize <= 0 || math.IsNaN(gridSize) || math.IsInf(gridSize, 0) {
		return p
	}
	return models.Position{
		X: math.Round(p.X/gridSize) * gridSize,
		Y: math.Round(p.Y/gridSize) * gridSize,
	}
}

package room

import (
	"time"

	"github.com/wfunc/tabletop/config"
	"github.com/wfunc/tabletop/models"
)

type Options struct {
	// Defaults is the map config of rooms that have no saved config.
	Defaults      models.MapConfig
	SnapshotDelay time.Duration
	EvictionGrace time.Duration
	// MoveInterval is the minimum spacing of MOVE_TOKEN_REQUEST per user per room. Zero disables the limit.
	MoveInterval time.Duration
	SaveTimeout  time.Duration
}

func DefaultOptions() Options {
	return Options{
		Defaults: models.MapConfig{
			GridSize:      50,
			SnapToGrid:    true,
			FogPersistent: true,
			Width:         1920,
			Height:        1080,
		},
		SnapshotDelay: 5 * time.Second,
		EvictionGrace: 30 * time.Second,
		MoveInterval:  33 * time.Millisecond,
		SaveTimeout:   5 * time.Second,
	}
}

func OptionsFromConfig(cfg config.RoomConfig) Options {
	opts := Options{
		Defaults: models.MapConfig{
			GridSize:      cfg.Defaults.GridSize,
			SnapToGrid:    cfg.Defaults.SnapToGrid,
			FogEnabled:    cfg.Defaults.FogEnabled,
			FogPersistent: cfg.Defaults.FogPersistent,
			Width:         cfg.Defaults.Width,
			Height:        cfg.Defaults.Height,
		},
		SnapshotDelay: cfg.SnapshotDelay,
		EvictionGrace: cfg.EvictionGrace,
		MoveInterval:  cfg.MoveInterval,
		SaveTimeout:   cfg.SaveTimeout,
	}
	return opts.withDefaults()
}

func (o Options) withDefaults() Options {
	def := DefaultOptions()
	if o.SnapshotDelay <= 0 {
		o.SnapshotDelay = def.SnapshotDelay
	}
	if o.EvictionGrace <= 0 {
		o.EvictionGrace = def.EvictionGrace
	}
	if o.MoveInterval < 0 {
		o.MoveInterval = 0
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = def.SaveTimeout
	}
	return o
}

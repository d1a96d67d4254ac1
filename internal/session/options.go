package session

import "time"

// Options tunes room scheduling and housekeeping.
type Options struct {
	AIStartDelay        time.Duration // Pause before an AI seat's first action
	AIActionDelay       time.Duration // Pause between successive AI actions
	IdleTimeout         time.Duration // Rooms with no activity this long are closed
	EmptyGrace          time.Duration // Rooms with nobody connected are closed after this long
	CleanupInterval     time.Duration
	CheckpointInterval  time.Duration // 0 disables periodic checkpoints
	CheckpointEveryTurn bool          // Also checkpoint at every turn boundary
	SaveTimeout         time.Duration
	Now                 func() time.Time
}

// DefaultOptions returns production pacing.
func DefaultOptions() Options {
	return Options{
		AIStartDelay:        time.Second,
		AIActionDelay:       500 * time.Millisecond,
		IdleTimeout:         30 * time.Minute,
		EmptyGrace:          5 * time.Minute,
		CleanupInterval:     time.Minute,
		CheckpointInterval:  5 * time.Minute,
		CheckpointEveryTurn: false,
		SaveTimeout:         10 * time.Second,
		Now:                 func() time.Time { return time.Now().UTC() },
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Now == nil {
		o.Now = d.Now
	}
	if o.CleanupInterval <= 0 {
		o.CleanupInterval = d.CleanupInterval
	}
	if o.IdleTimeout <= 0 {
		o.IdleTimeout = d.IdleTimeout
	}
	if o.EmptyGrace <= 0 {
		o.EmptyGrace = d.EmptyGrace
	}
	if o.SaveTimeout <= 0 {
		o.SaveTimeout = d.SaveTimeout
	}
	return o
}

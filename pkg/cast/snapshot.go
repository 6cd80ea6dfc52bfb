package cast

// Mode discriminates a cast record from unrelated or stale data living under
// the same code. Readers must check it before trusting a snapshot.
type Mode string

// ModeCast marks an active ride cast.
const ModeCast Mode = "cast"

// Snapshot is the full ride state a riding device publishes under its code.
// Last write wins, no history; viewers poll it and must never assume it is
// fresher than their poll interval.
type Snapshot struct {
	Mode         Mode    `json:"mode"`
	Speed        float64 `json:"speed"`        // km/h
	RPM          int     `json:"rpm"`          // cadence
	Distance     float64 `json:"distance"`     // km
	RideTime     int     `json:"rideTime"`     // seconds
	Gear         int     `json:"gear"`
	IsPlaying    bool    `json:"isPlaying"`
	PlaybackRate float64 `json:"playbackRate"`
	CurrentTime  float64 `json:"currentTime"` // seconds into the ride video
	VideoURL     string  `json:"videoUrl"`
	WizardStep   int     `json:"wizardStep"`
	Phase        string  `json:"phase"`
}

// ActiveCast reports whether the record carries the cast discriminator.
func (s Snapshot) ActiveCast() bool {
	return s.Mode == ModeCast
}

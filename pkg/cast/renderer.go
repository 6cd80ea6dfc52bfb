package cast

import (
	"fmt"
	"math"
	"net/url"
	"time"
)

// Playback sync tuning. The epsilon avoids a rate write on every poll; the
// drift pair rate-limits seeking so recovery from real divergence does not
// become constant micro-stutter.
const (
	rateEpsilon    = 0.01
	driftTolerance = 2.0 // seconds
	seekCooldown   = 3 * time.Second
)

// Player abstracts the local video element the renderer drives. Source
// reports the element's live source attribute, which the runtime itself can
// mutate; the renderer deliberately does not trust it for load decisions.
type Player interface {
	Load(url string)
	Source() string
	Play()
	Pause()
	Playing() bool
	Rate() float64
	SetRate(rate float64)
	Position() float64
	Seek(pos float64)
}

// HUD is the numeric overlay rendered on every frame, video or not.
type HUD struct {
	Speed    string
	RPM      string
	Distance string
	RideTime string
	Gear     string
}

// Frame is the renderer's per-poll output: whether video is usable this
// cycle and the HUD values to overlay.
type Frame struct {
	ShowVideo bool
	HUD       HUD
}

// Renderer keeps a Player consistent with the polled snapshot stream.
type Renderer struct {
	player Player

	// loadedURL is the last successfully initiated load, tracked
	// independently of the element's Source attribute.
	loadedURL string
	lastSeek  time.Time

	now func() time.Time
}

// NewRenderer creates a renderer driving the given player.
func NewRenderer(player Player) *Renderer {
	return &Renderer{player: player, now: time.Now}
}

// Sync applies one polled snapshot to the player and returns the frame to
// render. It never errors: an unusable snapshot degrades to the numeric
// fallback rather than a broken video element.
func (r *Renderer) Sync(snap Snapshot) Frame {
	frame := Frame{HUD: BuildHUD(snap)}

	if !ShareableVideoURL(snap.VideoURL) {
		// Absent or locally-scoped source: large speed readout instead
		// of a player that can never load.
		return frame
	}
	frame.ShowVideo = true

	if snap.VideoURL != r.loadedURL {
		r.player.Load(snap.VideoURL)
		r.loadedURL = snap.VideoURL
		// Let the element finish preparing; rate and position writes
		// resume next cycle.
		return frame
	}

	if snap.PlaybackRate > 0 && math.Abs(r.player.Rate()-snap.PlaybackRate) > rateEpsilon {
		r.player.SetRate(snap.PlaybackRate)
	}

	if snap.IsPlaying != r.player.Playing() {
		if snap.IsPlaying {
			r.player.Play()
		} else {
			r.player.Pause()
		}
	}

	drift := math.Abs(r.player.Position() - snap.CurrentTime)
	if drift > driftTolerance && r.now().Sub(r.lastSeek) >= seekCooldown {
		r.player.Seek(snap.CurrentTime)
		r.lastSeek = r.now()
	}

	return frame
}

// ShareableVideoURL reports whether a snapshot's video source can be loaded
// on another device. Locally-scoped references (blob:, mediastream:, file:)
// only resolve on the device that created them and must never be loaded.
func ShareableVideoURL(raw string) bool {
	if raw == "" {
		return false
	}
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

// BuildHUD formats a snapshot's telemetry for the overlay.
func BuildHUD(snap Snapshot) HUD {
	return HUD{
		Speed:    FormatSpeed(snap.Speed),
		RPM:      fmt.Sprintf("%d RPM", snap.RPM),
		Distance: fmt.Sprintf("%.2f km", snap.Distance),
		RideTime: FormatRideTime(snap.RideTime),
		Gear:     fmt.Sprintf("%d", snap.Gear),
	}
}

// FormatSpeed renders a speed value as shown on the overlay.
func FormatSpeed(kmh float64) string {
	return fmt.Sprintf("%.1f km/h", kmh)
}

// FormatRideTime renders elapsed seconds as m:ss, or h:mm:ss past an hour.
func FormatRideTime(seconds int) string {
	if seconds < 0 {
		seconds = 0
	}
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

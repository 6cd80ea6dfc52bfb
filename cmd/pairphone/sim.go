package main

import (
	"math"
	"sync"
	"time"

	"github.com/pedalcast/pedalcast/pkg/cast"
	"github.com/pedalcast/pedalcast/pkg/wizard"
)

// rideSim produces the snapshot stream a real trainer app would publish:
// the setup wizard advancing on a timer, then steady riding telemetry.
type rideSim struct {
	mu        sync.Mutex
	start     time.Time
	rideVideo string
	finished  bool
}

// Seconds spent in each setup phase before the ride begins.
const phaseDwell = 3.0

func newRideSim(rideVideo string) *rideSim {
	return &rideSim{start: time.Now(), rideVideo: rideVideo}
}

func (r *rideSim) finish() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.finished = true
}

func (r *rideSim) snapshot() cast.Snapshot {
	r.mu.Lock()
	finished := r.finished
	r.mu.Unlock()

	elapsed := time.Since(r.start).Seconds()
	phase, step := r.phaseAt(elapsed)
	if finished {
		phase = wizard.PhaseFinished
		step = wizard.PhaseFinished.Index()
	}

	snap := cast.Snapshot{
		Mode:       cast.ModeCast,
		Phase:      string(phase),
		WizardStep: step,
	}

	if phase != wizard.PhaseRiding {
		return snap
	}

	riding := elapsed - phaseDwell*float64(wizard.PhaseRiding.Index())
	speed := 25 + 5*math.Sin(riding/30)

	snap.Speed = math.Round(speed*10) / 10
	snap.RPM = int(80 + 10*math.Sin(riding/20))
	snap.Distance = math.Round(speed*riding/3600*100) / 100
	snap.RideTime = int(riding)
	snap.Gear = 1 + int(speed)/10
	snap.IsPlaying = true
	snap.PlaybackRate = 1.0
	snap.CurrentTime = riding
	snap.VideoURL = r.rideVideo

	return snap
}

func (r *rideSim) phaseAt(elapsed float64) (wizard.Phase, int) {
	idx := int(elapsed / phaseDwell)
	ridingIdx := wizard.PhaseRiding.Index()
	if idx >= ridingIdx {
		return wizard.PhaseRiding, ridingIdx
	}
	phases := []wizard.Phase{
		wizard.PhaseCameraSetup,
		wizard.PhaseCameraPreview,
		wizard.PhaseSportSelection,
		wizard.PhaseZoneSetup,
		wizard.PhaseCalibration,
	}
	return phases[idx], idx
}

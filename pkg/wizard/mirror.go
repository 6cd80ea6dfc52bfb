// Package wizard mirrors the rider's on-device setup flow onto a second
// screen. The mirror is read-only: it is driven entirely by the polled
// snapshot feed and never by pairing signaling, so it works whether or not
// the camera stream ever arrives.
package wizard

import (
	"context"
	"sync"

	"github.com/pedalcast/pedalcast/pkg/cast"
)

// Phase names a step of the setup flow, in ride order.
type Phase string

const (
	PhaseCameraSetup    Phase = "camera-setup"
	PhaseCameraPreview  Phase = "camera-preview"
	PhaseSportSelection Phase = "sport-selection"
	PhaseZoneSetup      Phase = "zone-setup"
	PhaseCalibration    Phase = "calibration"
	PhaseRiding         Phase = "riding"
	PhaseFinished       Phase = "finished"
)

var phaseOrder = []Phase{
	PhaseCameraSetup,
	PhaseCameraPreview,
	PhaseSportSelection,
	PhaseZoneSetup,
	PhaseCalibration,
	PhaseRiding,
	PhaseFinished,
}

// Known reports whether p is part of the setup flow.
func (p Phase) Known() bool {
	for _, q := range phaseOrder {
		if p == q {
			return true
		}
	}
	return false
}

// Index returns the phase's position in the flow, or -1 for an unknown
// phase.
func (p Phase) Index() int {
	for i, q := range phaseOrder {
		if p == q {
			return i
		}
	}
	return -1
}

// Update is one observed change of the mirrored flow.
type Update struct {
	Phase Phase
	Step  int
	Snap  cast.Snapshot
}

// Mirror follows one code's wizard phase through its own fast poll,
// independent of the peer connection's lifecycle. The phase feed and the
// camera stream arrive on separate timelines; either may come first or be
// absent, and the mirror simply reports what the snapshot says.
type Mirror struct {
	poller *cast.Poller

	mu        sync.Mutex
	lastPhase Phase
	lastStep  int
	seen      bool

	onUpdate func(Update)
}

// NewMirror creates a mirror for the code. The callback fires once per
// observed phase or step change; an absent or non-cast record fires nothing
// and keeps the last mirrored state on screen.
func NewMirror(store cast.Store, code string, onUpdate func(Update)) *Mirror {
	m := &Mirror{onUpdate: onUpdate}
	m.poller = cast.NewPoller(store, code, cast.WizardInterval, m.observe)
	return m
}

// Run polls until the context is cancelled or Stop is called.
func (m *Mirror) Run(ctx context.Context) {
	m.poller.Run(ctx)
}

// Stop ends the poll loop. Idempotent.
func (m *Mirror) Stop() {
	m.poller.Stop()
}

// Current returns the last mirrored phase and step, and whether anything has
// been observed yet.
func (m *Mirror) Current() (Phase, int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastPhase, m.lastStep, m.seen
}

func (m *Mirror) observe(snap cast.Snapshot, ok bool) {
	if !ok {
		return
	}

	phase := Phase(snap.Phase)
	if !phase.Known() {
		return
	}

	m.mu.Lock()
	changed := !m.seen || phase != m.lastPhase || snap.WizardStep != m.lastStep
	m.lastPhase = phase
	m.lastStep = snap.WizardStep
	m.seen = true
	m.mu.Unlock()

	if changed && m.onUpdate != nil {
		m.onUpdate(Update{Phase: phase, Step: snap.WizardStep, Snap: snap})
	}
}

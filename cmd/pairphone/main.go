package main

import (
	"context"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/pedalcast/pedalcast/pkg/cast"
	"github.com/pedalcast/pedalcast/pkg/log"
	"github.com/pedalcast/pedalcast/pkg/pairing"
	"github.com/pedalcast/pedalcast/pkg/settings"
	"github.com/pedalcast/pedalcast/pkg/signal"
	"github.com/pedalcast/pedalcast/pkg/wizard"
)

func main() {
	prefs, err := settings.Load()
	if err != nil {
		log.Warnf("settings: %v", err)
	}

	var (
		code      string
		server    string
		videoPath string
		rideVideo string
		fps       int
		debug     bool
	)
	pflag.StringVarP(&code, "code", "c", "", "Pairing code shown on the display (required)")
	pflag.StringVarP(&server, "server", "s", prefs.ServerURL, "signald base URL")
	pflag.StringVarP(&videoPath, "camera", "C", prefs.CameraPath, "H264 elementary stream standing in for the camera")
	pflag.StringVar(&rideVideo, "ride-video", "", "Shareable URL of the ride video, published in snapshots")
	pflag.IntVar(&fps, "fps", prefs.CameraFPS, "Camera frame rate")
	pflag.BoolVarP(&debug, "debug", "d", false, "Verbose logging")
	pflag.Parse()

	log.Setup(debug)

	if !signal.ValidatePairCode(signal.NormalizePairCode(code)) {
		log.Fatalf("a valid 4-digit --code is required")
	}
	if videoPath == "" {
		log.Fatal("--camera is required on hardware without a device camera")
	}

	defer func() {
		prefs.ServerURL = server
		prefs.CameraPath = videoPath
		prefs.CameraFPS = fps
		prefs.LastCode = signal.NormalizePairCode(code)
		if err := settings.Save(prefs); err != nil {
			log.Warnf("settings: %v", err)
		}
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	listenOS(cancel)

	sender := pairing.NewSender(pairing.SenderConfig{
		Code:       code,
		Subscriber: signal.NewWebsocketSubscriber(signal.WebsocketBaseURL(server)),
		Camera:     &pairing.H264FileCamera{Path: videoPath, Loop: true},
		Constraints: pairing.Constraints{
			Width:  640,
			Height: 480,
			FPS:    fps,
			Facing: "environment",
		},
	})
	defer sender.Destroy()

	if err := sender.Start(ctx); err != nil {
		log.Fatalf("pairing: %v", err)
	}

	sim := newRideSim(rideVideo)
	pub := cast.NewPublisher(cast.NewHTTPStore(server), code, cast.WizardInterval, sim.snapshot)
	pub.ClearPhase = string(wizard.PhaseFinished)

	pubDone := make(chan struct{})
	go func() {
		defer close(pubDone)
		pub.Run(ctx)
	}()

	for {
		select {
		case <-ctx.Done():
			// Publish the terminal phase so the record is cleared rather
			// than left to go stale.
			sim.finish()
			select {
			case <-pubDone:
			case <-time.After(3 * time.Second):
				pub.Stop()
			}
			return

		case ev, ok := <-sender.Events():
			if !ok {
				return
			}
			if ev.Kind != pairing.EventState {
				continue
			}
			if ev.Err != nil {
				log.Errorf("pairing: %s: %v", ev.State, ev.Err)
			} else {
				log.Infof("pairing: %s", ev.State)
			}
			if ev.State == pairing.StateFailed {
				cancel()
			}
		}
	}
}

func listenOS(cancel context.CancelFunc) {
	sigchan := make(chan os.Signal, 1)
	ossignal.Notify(sigchan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigchan
		cancel()
	}()
}

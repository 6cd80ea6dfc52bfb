package pairing

import (
	"context"
	"io"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/pion/webrtc/v3"
	"github.com/pion/webrtc/v3/pkg/media"
	"github.com/pion/webrtc/v3/pkg/media/h264reader"
	"github.com/pkg/errors"

	"github.com/pedalcast/pedalcast/pkg/log"
)

// Constraints describes the camera the sender asks for. The pairing flow
// targets the environment-facing camera at a modest resolution; the video
// only has to show a rider on a trainer.
type Constraints struct {
	Width  int
	Height int
	FPS    int
	Facing string
}

// DefaultConstraints returns the sender's standard camera request.
func DefaultConstraints() Constraints {
	return Constraints{Width: 640, Height: 480, FPS: 30, Facing: "environment"}
}

// Camera acquires a local video source. A refused acquisition must surface
// as ErrPermissionDenied so the sender can report it distinctly instead of
// silently stalling.
type Camera interface {
	Open(ctx context.Context, want Constraints) (Feed, error)
}

// Feed is a running camera capture bound to a sendable track.
type Feed interface {
	Track() webrtc.TrackLocal
	Close() error
}

// H264FileCamera feeds a pre-encoded H264 elementary stream from disk, NAL
// by NAL, at the requested frame rate. It stands in for a device camera on
// hardware without one.
type H264FileCamera struct {
	Path string
	Loop bool
}

func (c *H264FileCamera) Open(ctx context.Context, want Constraints) (Feed, error) {
	file, err := os.Open(c.Path)
	if err != nil {
		if errors.Is(err, fs.ErrPermission) {
			return nil, errors.Wrap(ErrPermissionDenied, err.Error())
		}
		return nil, errors.Wrap(err, "open camera source")
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeH264},
		"video", "pedalcast-camera",
	)
	if err != nil {
		file.Close()
		return nil, errors.Wrap(err, "create video track")
	}

	fps := want.FPS
	if fps <= 0 {
		fps = DefaultConstraints().FPS
	}

	feedCtx, cancel := context.WithCancel(ctx)
	feed := &fileFeed{
		file:   file,
		track:  track,
		loop:   c.Loop,
		frame:  time.Second / time.Duration(fps),
		cancel: cancel,
	}

	go feed.pump(feedCtx)
	return feed, nil
}

type fileFeed struct {
	file  *os.File
	track *webrtc.TrackLocalStaticSample
	loop  bool
	frame time.Duration

	cancel    context.CancelFunc
	closeOnce sync.Once
}

func (f *fileFeed) Track() webrtc.TrackLocal {
	return f.track
}

func (f *fileFeed) Close() error {
	f.closeOnce.Do(func() {
		f.cancel()
		f.file.Close()
	})
	return nil
}

func (f *fileFeed) pump(ctx context.Context) {
	reader, err := h264reader.NewReader(f.file)
	if err != nil {
		log.Errorf("camera: h264 reader: %v", err)
		return
	}

	ticker := time.NewTicker(f.frame)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		nal, err := reader.NextNAL()
		if err != nil {
			if err == io.EOF && f.loop {
				if _, serr := f.file.Seek(0, io.SeekStart); serr != nil {
					log.Errorf("camera: rewind: %v", serr)
					return
				}
				reader, err = h264reader.NewReader(f.file)
				if err != nil {
					log.Errorf("camera: h264 reader: %v", err)
					return
				}
				continue
			}
			if err != io.EOF {
				log.Errorf("camera: read: %v", err)
			}
			return
		}

		sample := media.Sample{Data: nal.Data, Duration: f.frame}
		if err := f.track.WriteSample(sample); err != nil {
			log.Errorf("camera: write sample: %v", err)
			return
		}
	}
}

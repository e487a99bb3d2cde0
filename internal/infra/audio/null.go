package audio

import (
	"log/slog"
	"sync"
	"time"
)

const nullTick = 20 * time.Millisecond

// NullSpeaker renders the Mixer into nothing at wall-clock pace. Scheduling,
// end callbacks and interrupts behave as with a real device.
type NullSpeaker struct {
	*Mixer
	tick   time.Duration
	logger *slog.Logger

	mu   sync.Mutex
	stop chan struct{}
	done chan struct{}
}

// NewNullSpeaker returns a stopped null speaker; its clock runs between Start and Close.
func NewNullSpeaker(sampleRate int, logger *slog.Logger) *NullSpeaker {
	return &NullSpeaker{
		Mixer:  NewMixer(sampleRate),
		tick:   nullTick,
		logger: logger,
	}
}

func (n *NullSpeaker) Name() string {
	return "null"
}

func (n *NullSpeaker) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.stop != nil {
		return nil
	}
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.run(n.stop, n.done)
	n.logger.Info("null speaker started", "sampleRate", n.SampleRate())
	return nil
}

func (n *NullSpeaker) Close() error {
	n.mu.Lock()
	stop, done := n.stop, n.done
	n.stop, n.done = nil, nil
	n.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}

func (n *NullSpeaker) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	ticker := time.NewTicker(n.tick)
	defer ticker.Stop()

	var buf []float32
	last := time.Now()
	for {
		select {
		case <-stop:
			return
		case now := <-ticker.C:
			frames := int(now.Sub(last) * time.Duration(n.SampleRate()) / time.Second)
			if frames <= 0 {
				continue
			}
			last = last.Add(time.Duration(frames) * time.Second / time.Duration(n.SampleRate()))
			if cap(buf) < frames {
				buf = make([]float32, frames)
			}
			n.Render(buf[:frames])
		}
	}
}

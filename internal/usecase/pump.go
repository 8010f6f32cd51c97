package usecase

import (
	"time"

	"meetscribe/internal/pcm"
)

// pumpChunks drains the capture channel until the stop signal is raised or
// the channel closes: each chunk is appended to the accumulation buffer, fed
// to the loudness meter, and forwarded to the realtime session. Polling is
// non-blocking with a short idle sleep so the stop signal is observed with
// bounded latency.
func (r *Recorder) pumpChunks(active *activeRecording, chunks <-chan []int16) {
	defer close(active.pumpDone)
	defer active.session.End()

	for {
		select {
		case chunk, ok := <-chunks:
			if !ok {
				return
			}
			active.samples = append(active.samples, chunk...)
			r.events.AudioLevel(active.id, pcm.Level(chunk))
			active.session.SendAudio(chunk)
			continue
		default:
		}

		select {
		case <-active.stopRequested:
			return
		case <-time.After(r.cfg.PollInterval):
		}
	}
}

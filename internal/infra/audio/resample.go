package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// resampleMono converts mono PCM16 samples between rates.
func resampleMono(samples []int16, from, to int) ([]int16, error) {
	if from == to || len(samples) == 0 {
		return samples, nil
	}

	r, err := resampling.New(&resampling.Config{
		InputRate:  float64(from),
		OutputRate: float64(to),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return nil, fmt.Errorf("creating resampler: %w", err)
	}

	input := make([]float64, len(samples))
	for i, s := range samples {
		input[i] = float64(s) / 32768.0
	}
	output, err := r.Process(input)
	if err != nil {
		return nil, fmt.Errorf("resampling %d -> %d: %w", from, to, err)
	}

	out := make([]int16, len(output))
	for i, s := range output {
		out[i] = int16(min(max(s*32768.0, -32768), 32767))
	}
	return out, nil
}

// downmixPCM averages interleaved channels into mono.
func downmixPCM(samples []int16, channels int) []int16 {
	if channels <= 1 {
		return samples
	}
	out := make([]int16, len(samples)/channels)
	for i := range out {
		var sum int
		for c := 0; c < channels; c++ {
			sum += int(samples[i*channels+c])
		}
		out[i] = int16(sum / channels)
	}
	return out
}

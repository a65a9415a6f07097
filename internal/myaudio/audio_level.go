package myaudio

import (
	"encoding/binary"
	"math"
)

// AudioLevelData holds audio level data
type AudioLevelData struct {
	Level    int    `json:"level"`    // 0-100
	Clipping bool   `json:"clipping"` // true if clipping is detected
	Source   string `json:"source"`   // source identifier, a device ID or file path
	Name     string `json:"name"`     // human-readable name of the source
}

// CalculateAudioLevel calculates the RMS level of 16-bit little-endian
// samples, scaled to 0-100.
func CalculateAudioLevel(samples []byte, source, name string) AudioLevelData {
	samples = samples[:len(samples)-len(samples)%bytesPerSample]
	if len(samples) == 0 {
		return AudioLevelData{Source: source, Name: name}
	}

	var sum float64
	isClipping := false
	for i := 0; i < len(samples); i += bytesPerSample {
		sample := int16(binary.LittleEndian.Uint16(samples[i:]))
		v := float64(sample)
		sum += v * v
		if sample == math.MaxInt16 || sample == math.MinInt16 {
			isClipping = true
		}
	}

	return AudioLevelData{
		Level:    scaleLevel(sum, len(samples)/bytesPerSample, isClipping),
		Clipping: isClipping,
		Source:   source,
		Name:     name,
	}
}

// FrameLevel is CalculateAudioLevel for an already decoded frame.
func FrameLevel(frame []int16, source, name string) AudioLevelData {
	if len(frame) == 0 {
		return AudioLevelData{Source: source, Name: name}
	}
	var sum float64
	isClipping := false
	for _, sample := range frame {
		v := float64(sample)
		sum += v * v
		if sample == math.MaxInt16 || sample == math.MinInt16 {
			isClipping = true
		}
	}
	return AudioLevelData{
		Level:    scaleLevel(sum, len(frame), isClipping),
		Clipping: isClipping,
		Source:   source,
		Name:     name,
	}
}

// scaleLevel maps -60..-10 dBFS onto 0..100.
func scaleLevel(sumSquares float64, count int, clipping bool) int {
	rms := math.Sqrt(sumSquares / float64(count))
	if rms == 0 {
		return 0
	}
	db := 20 * math.Log10(rms/32768.0)
	scaled := (db + 60) * (100.0 / 50.0)

	if clipping {
		scaled = math.Max(scaled, 95)
	}
	return int(math.Max(0, math.Min(100, scaled)))
}

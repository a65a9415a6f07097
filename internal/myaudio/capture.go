package myaudio

import (
	"context"
	"encoding/hex"
	"runtime"
	"strings"
	"time"
	"unsafe"

	"github.com/gen2brain/malgo"

	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
)

// DefaultSource selects the system default capture device.
const DefaultSource = "sysdefault"

// captureSource holds information about an audio capture source.
type captureSource struct {
	Name    string
	ID      string
	Pointer unsafe.Pointer
}

// AudioDeviceInfo holds information about an audio device.
type AudioDeviceInfo struct {
	Index     int    `json:"index"`
	Name      string `json:"name"`
	ID        string `json:"id"`
	IsDefault bool   `json:"is_default"`
}

// CaptureConfig configures a capture session.
type CaptureConfig struct {
	Source       string // device ID or name substring, DefaultSource for the default device
	SampleRate   int
	FrameLength  int
	BufferFrames int // frames buffered before the oldest audio is dropped

	// OnOverrun, if set, receives the number of samples dropped since the last call.
	OnOverrun func(dropped uint64)
}

// ListAudioSources returns the available capture devices.
func ListAudioSources() ([]AudioDeviceInfo, error) {
	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "init_context").
			Build()
	}
	defer func() {
		_ = ctx.Uninit()
		ctx.Free()
	}()

	infos, err := ctx.Devices(malgo.Capture)
	if err != nil {
		return nil, errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "list_devices").
			Build()
	}

	devices := make([]AudioDeviceInfo, 0, len(infos))
	for i := range infos {
		decodedID, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			GetLogger().Warn("failed to decode device ID", logger.Int("index", i), logger.Error(err))
			continue
		}
		devices = append(devices, AudioDeviceInfo{
			Index:     i,
			Name:      infos[i].Name(),
			ID:        decodedID,
			IsDefault: infos[i].IsDefault == 1,
		})
	}
	return devices, nil
}

// selectCaptureSource picks the device matching source.
func selectCaptureSource(source string, infos []malgo.DeviceInfo) (captureSource, error) {
	for i := range infos {
		decodedID, err := hexToASCII(infos[i].ID.String())
		if err != nil {
			continue
		}
		if matchesDeviceSettings(decodedID, infos[i].Name(), infos[i].IsDefault == 1, source) {
			return captureSource{
				Name:    infos[i].Name(),
				ID:      decodedID,
				Pointer: infos[i].ID.Pointer(),
			}, nil
		}
	}

	return captureSource{}, errors.Newf("no suitable capture source found for device setting %s", source).
		Component("myaudio").
		Category(errors.CategoryAudioSource).
		Context("source", source).
		Context("devices", len(infos)).
		Build()
}

// matchesDeviceSettings checks if a device matches the configured source.
func matchesDeviceSettings(decodedID, name string, isDefault bool, source string) bool {
	if source == "" || (source == DefaultSource && runtime.GOOS != "linux") {
		// Only ALSA has a "sysdefault" device; elsewhere use miniaudio's default.
		return isDefault
	}
	return decodedID == source || strings.Contains(name, source)
}

// hexToASCII converts a hexadecimal device ID to an ASCII string.
func hexToASCII(hexStr string) (string, error) {
	b, err := hex.DecodeString(hexStr)
	if err != nil {
		return "", err
	}
	return strings.TrimRight(string(b), "\x00"), nil
}

func captureBackend() []malgo.Backend {
	switch runtime.GOOS {
	case "linux":
		return []malgo.Backend{malgo.BackendAlsa}
	case "windows":
		return []malgo.Backend{malgo.BackendWasapi}
	case "darwin":
		return []malgo.Backend{malgo.BackendCoreaudio}
	default:
		return nil
	}
}

// Capture records from a device and sends complete frames to frames until
// ctx is cancelled. Levels, when non-nil, receives one reading per frame
// without blocking. A device that stops unexpectedly is restarted.
func Capture(ctx context.Context, cfg CaptureConfig, frames chan<- []int16, levels chan<- AudioLevelData) error {
	log := GetLogger()
	if cfg.BufferFrames <= 0 {
		cfg.BufferFrames = 64
	}
	if cfg.Source == "" {
		cfg.Source = DefaultSource
	}

	framer, err := NewFramer(cfg.FrameLength, cfg.BufferFrames)
	if err != nil {
		return err
	}

	malgoCtx, err := malgo.InitContext(captureBackend(), malgo.ContextConfig{}, func(message string) {
		log.Trace("miniaudio", logger.String("message", strings.TrimSpace(message)))
	})
	if err != nil {
		return errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "init_context").
			Build()
	}
	defer func() {
		_ = malgoCtx.Uninit()
		malgoCtx.Free()
	}()

	infos, err := malgoCtx.Devices(malgo.Capture)
	if err != nil {
		return errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "list_devices").
			Build()
	}

	source, err := selectCaptureSource(cfg.Source, infos)
	if err != nil {
		return err
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Capture)
	deviceConfig.Capture.Format = malgo.FormatS16
	deviceConfig.Capture.Channels = 1
	deviceConfig.SampleRate = uint32(cfg.SampleRate) //nolint:gosec // sample rates are small positive values
	deviceConfig.Alsa.NoMMap = 1
	deviceConfig.Capture.DeviceID = source.Pointer

	ready := make(chan struct{}, 1)
	stopped := make(chan struct{}, 1)

	onReceiveFrames := func(_, pSamples []byte, _ uint32) {
		if err := framer.Write(pSamples); err != nil {
			log.Warn("failed to buffer captured audio", logger.Error(err))
			return
		}
		select {
		case ready <- struct{}{}:
		default:
		}
	}

	onStopDevice := func() {
		select {
		case stopped <- struct{}{}:
		default:
		}
	}

	device, err := malgo.InitDevice(malgoCtx.Context, deviceConfig, malgo.DeviceCallbacks{
		Data: onReceiveFrames,
		Stop: onStopDevice,
	})
	if err != nil {
		return errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "init_device").
			Context("device", source.Name).
			Build()
	}
	defer device.Uninit()

	if err := device.Start(); err != nil {
		return errors.New(err).
			Component("myaudio").
			Category(errors.CategoryAudioSource).
			Context("operation", "start_device").
			Context("device", source.Name).
			Build()
	}

	log.Info("listening on capture source",
		logger.String("name", source.Name),
		logger.String("id", source.ID),
		logger.Int("sample_rate", cfg.SampleRate),
		logger.Int("frame_length", cfg.FrameLength))

	var lastDropped uint64
	for {
		select {
		case <-ctx.Done():
			_ = device.Stop()
			return nil

		case <-stopped:
			if ctx.Err() != nil {
				continue
			}
			// Avoid a tight restart loop on a device that keeps failing.
			select {
			case <-ctx.Done():
				continue
			case <-time.After(100 * time.Millisecond):
			}
			if err := device.Start(); err != nil {
				return errors.New(err).
					Component("myaudio").
					Category(errors.CategoryAudioSource).
					Context("operation", "restart_device").
					Context("device", source.Name).
					Build()
			}
			log.Warn("capture device restarted", logger.String("name", source.Name))

		case <-ready:
			for {
				frame, ok := framer.Next()
				if !ok {
					break
				}
				if levels != nil {
					select {
					case levels <- FrameLevel(frame, source.ID, source.Name):
					default:
					}
				}
				select {
				case frames <- frame:
				case <-ctx.Done():
					_ = device.Stop()
					return nil
				}
			}
			if d := framer.Dropped(); d != lastDropped {
				log.Warn("capture buffer overrun, audio dropped",
					logger.Uint64("dropped_samples", d-lastDropped))
				if cfg.OnOverrun != nil {
					cfg.OnOverrun(d - lastDropped)
				}
				lastDropped = d
			}
		}
	}
}

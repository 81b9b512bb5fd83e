package audioio

import (
	"fmt"
	"log/slog"
	"os/exec"
	"runtime"
)

// NewSource creates a new audio source with the given configuration.
func NewSource(cfg Config, logger *slog.Logger) (Source, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := resolveBackend(cfg)
	logger.Info("creating audio source",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
		"buffer_ms", cfg.BufferDuration.Milliseconds(),
	)

	if backend == BackendMock {
		return NewMockSource(cfg, logger), nil
	}
	argv, err := recordArgs(backend, cfg)
	if err != nil {
		return nil, err
	}
	return NewCommandSource(cfg, argv, logger), nil
}

// NewSink creates a new audio sink with the given configuration.
func NewSink(cfg Config, logger *slog.Logger) (Sink, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	backend := resolveBackend(cfg)
	logger.Info("creating audio sink",
		"backend", backend,
		"sample_rate", cfg.SampleRate,
		"channels", cfg.Channels,
	)

	if backend == BackendMock {
		return NewMockSink(cfg, logger), nil
	}
	argv, err := playArgs(backend, cfg)
	if err != nil {
		return nil, err
	}
	return NewCommandSink(cfg, argv, logger), nil
}

func resolveBackend(cfg Config) Backend {
	if cfg.Backend != BackendAuto && cfg.Backend != "" {
		return cfg.Backend
	}
	return detectBestBackend()
}

// detectBestBackend picks ALSA on Linux when aplay is installed, SoX when
// play is installed, and the mock otherwise.
func detectBestBackend() Backend {
	if runtime.GOOS == "linux" {
		if _, err := exec.LookPath("aplay"); err == nil {
			return BackendALSA
		}
	}
	if _, err := exec.LookPath("play"); err == nil {
		return BackendSoX
	}
	return BackendMock
}

// AvailableBackends returns the backends usable on this machine.
func AvailableBackends() []Backend {
	backends := []Backend{BackendMock}
	if _, err := exec.LookPath("aplay"); err == nil {
		backends = append(backends, BackendALSA)
	}
	if _, err := exec.LookPath("play"); err == nil {
		backends = append(backends, BackendSoX)
	}
	return backends
}

func recordArgs(backend Backend, cfg Config) ([]string, error) {
	if len(cfg.RecordCommand) > 0 {
		return cfg.RecordCommand, nil
	}
	switch backend {
	case BackendALSA:
		return []string{"arecord", "-q", "-D", deviceOr(cfg.Device, "default"),
			"-f", "S16_LE", "-r", fmt.Sprint(cfg.SampleRate), "-c", fmt.Sprint(cfg.Channels), "-t", "raw"}, nil
	case BackendSoX:
		return []string{"rec", "-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-L",
			"-r", fmt.Sprint(cfg.SampleRate), "-c", fmt.Sprint(cfg.Channels), "-"}, nil
	}
	return nil, fmt.Errorf("unsupported backend: %s", backend)
}

func playArgs(backend Backend, cfg Config) ([]string, error) {
	if len(cfg.PlayCommand) > 0 {
		return cfg.PlayCommand, nil
	}
	switch backend {
	case BackendALSA:
		return []string{"aplay", "-q", "-D", deviceOr(cfg.Device, "default"),
			"-f", "S16_LE", "-r", fmt.Sprint(cfg.SampleRate), "-c", fmt.Sprint(cfg.Channels), "-t", "raw"}, nil
	case BackendSoX:
		return []string{"play", "-q", "-t", "raw", "-b", "16", "-e", "signed-integer", "-L",
			"-r", fmt.Sprint(cfg.SampleRate), "-c", fmt.Sprint(cfg.Channels), "-"}, nil
	}
	return nil, fmt.Errorf("unsupported backend: %s", backend)
}

func deviceOr(device, def string) string {
	if device == "" {
		return def
	}
	return device
}

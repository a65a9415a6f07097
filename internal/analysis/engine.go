// Package analysis wires audio input, the wake word engine and detection
// outputs together for the file and realtime commands.
package analysis

import (
	"path/filepath"
	"strings"

	"github.com/tphakala/go-porcupine/internal/bundle"
	"github.com/tphakala/go-porcupine/internal/conf"
	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
	"github.com/tphakala/go-porcupine/internal/wakeword"
	"github.com/tphakala/go-porcupine/pkg/porcupine"
)

// Engine is the part of *porcupine.Porcupine used by the analysis modes.
type Engine interface {
	wakeword.Engine
	Version() string
	Delete()
}

// newEngine is replaced in tests.
var newEngine = func(settings *conf.Settings) (Engine, error) {
	paths, err := KeywordPaths(settings.Porcupine.Keywords)
	if err != nil {
		return nil, err
	}

	var sensitivities []float32
	if len(settings.Porcupine.Sensitivities) > 0 {
		sensitivities = settings.Porcupine.Sensitivities
	}

	engine, err := porcupine.New(porcupine.Config{
		AccessKey:     settings.Porcupine.AccessKey,
		KeywordPaths:  paths,
		ModelPath:     settings.Porcupine.ModelPath,
		Sensitivities: sensitivities,
		LibraryPath:   settings.Porcupine.LibraryPath,
		ResourceDirs:  settings.Porcupine.ResourceDirs,
	})
	if err != nil {
		return nil, err
	}
	return engine, nil
}

// KeywordPaths maps configured keywords to keyword file paths. Built-in
// keyword names become the packaged file name for this platform; anything
// ending in .ppn or containing a path separator is used as given.
func KeywordPaths(keywords []string) ([]string, error) {
	paths := make([]string, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.TrimSpace(kw)
		if strings.EqualFold(filepath.Ext(kw), ".ppn") || strings.ContainsRune(kw, filepath.Separator) || strings.Contains(kw, "/") {
			paths = append(paths, kw)
			continue
		}
		builtIn, err := porcupine.ParseBuiltInKeyword(kw)
		if err != nil {
			return nil, errors.New(err).
				Component("analysis").
				Category(errors.CategoryValidation).
				Context("keyword", kw).
				Build()
		}
		paths = append(paths, builtIn.FileName(bundle.Platform()))
	}
	return paths, nil
}

// keywordLabels returns display names in engine index order.
func keywordLabels(keywords []string) []string {
	labels := make([]string, len(keywords))
	for i, kw := range keywords {
		labels[i] = strings.ToLower(wakeword.KeywordLabel(strings.TrimSpace(kw)))
	}
	return labels
}

func openEngine(settings *conf.Settings) (Engine, error) {
	engine, err := newEngine(settings)
	if err != nil {
		return nil, err
	}
	GetLogger().Info("wake word engine ready",
		logger.String("version", engine.Version()),
		logger.Int("frame_length", engine.FrameLength()),
		logger.Int("sample_rate", engine.SampleRate()),
		logger.Int("keywords", len(settings.Porcupine.Keywords)))
	return engine, nil
}

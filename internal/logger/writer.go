package logger

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// rotationSettings describes size and age based rotation for one log file
type rotationSettings struct {
	MaxSize    int // MB, 0 uses lumberjack's default of 100
	MaxAge     int
	MaxBackups int
	Compress   bool
}

func rotationFromFileOutput(fo *FileOutput) rotationSettings {
	if fo == nil {
		return rotationSettings{}
	}
	return rotationSettings{
		MaxSize:    fo.MaxSize,
		MaxAge:     fo.MaxAge,
		MaxBackups: fo.MaxRotatedFiles,
		Compress:   fo.Compress,
	}
}

// rotationFromModuleOutput inherits unset values from the main file output
func rotationFromModuleOutput(mo *ModuleOutput, fo *FileOutput) rotationSettings {
	rs := rotationFromFileOutput(fo)
	if mo.MaxSize > 0 {
		rs.MaxSize = mo.MaxSize
	}
	if mo.MaxAge > 0 {
		rs.MaxAge = mo.MaxAge
	}
	if mo.MaxRotatedFiles > 0 {
		rs.MaxBackups = mo.MaxRotatedFiles
	}
	if mo.Compress != nil {
		rs.Compress = *mo.Compress
	}
	return rs
}

// newRotatingWriter opens a lumberjack writer, creating the parent directory
func newRotatingWriter(path string, rs rotationSettings) (*lumberjack.Logger, error) {
	if path == "" {
		return nil, fmt.Errorf("log file path is empty")
	}
	if err := ensureFileDirectory(path); err != nil {
		return nil, err
	}
	return &lumberjack.Logger{
		Filename:   path,
		MaxSize:    rs.MaxSize,
		MaxAge:     rs.MaxAge,
		MaxBackups: rs.MaxBackups,
		Compress:   rs.Compress,
		LocalTime:  true,
	}, nil
}

// ensureFileDirectory creates the directory for a file path if it doesn't exist
func ensureFileDirectory(filePath string) error {
	dir := filepath.Dir(filePath)
	if dir == "." || dir == filePath {
		return nil
	}

	const dirPermissions = 0o750
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

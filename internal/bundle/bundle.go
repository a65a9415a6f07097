// Package bundle locates the packaged Porcupine resources: the default model
// parameters, built-in keyword files and the native library.
package bundle

import (
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"slices"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"

	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
)

const (
	// ModelFileName is the default model parameter file
	ModelFileName = "porcupine_params.pv"

	// EnvResources names an extra resource directory searched after explicit overrides
	EnvResources = "PORCUPINE_RESOURCES"

	resolvedTTL = 5 * time.Minute
)

// ErrNotFound is returned when a resource is absent from every search location
var ErrNotFound = errors.NewStd("resource not found")

// Kind selects which sub-directories are searched for a resource
type Kind int

const (
	KindModel Kind = iota
	KindKeyword
	KindLibrary
)

func (k Kind) String() string {
	switch k {
	case KindModel:
		return "model"
	case KindKeyword:
		return "keyword"
	case KindLibrary:
		return "library"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// subdirs lists the relative locations checked inside every search directory
func (k Kind) subdirs() []string {
	switch k {
	case KindModel:
		return []string{"", "lib/common", "common"}
	case KindKeyword:
		return []string{"", "keywords", "resources/keyword_files/" + Platform(), "keyword_files/" + Platform()}
	case KindLibrary:
		return []string{"", "lib", "lib/" + Platform() + "/" + archDir(runtime.GOARCH)}
	default:
		return []string{""}
	}
}

// Bundle resolves resource file names to paths on disk
type Bundle struct {
	dirs     []string
	override []string
	noSystem bool
	workDir  string // searched for data files only, never for the native library
	fsys     fs.FS
	cacheDir string
	resolved *cache.Cache
	mu       sync.Mutex // serialises extraction
}

// Option configures a Bundle
type Option func(*Bundle)

// WithDirs puts dirs ahead of every other search location
func WithDirs(dirs ...string) Option {
	return func(b *Bundle) {
		b.override = append(b.override, dirs...)
	}
}

// WithFS adds an embedded resource tree. Files found there are copied into
// cacheDir so the native library can open them by path.
func WithFS(fsys fs.FS, cacheDir string) Option {
	return func(b *Bundle) {
		b.fsys = fsys
		b.cacheDir = cacheDir
	}
}

// WithoutSystemDirs restricts the search to explicit directories and the embedded FS
func WithoutSystemDirs() Option {
	return func(b *Bundle) {
		b.noSystem = true
	}
}

// New builds a Bundle. Without options the search order is
// $PORCUPINE_RESOURCES, the working directory, the executable's directory
// and the OS system directories. The native library is only loaded from the
// working directory when it was named explicitly through WithDirs or
// $PORCUPINE_RESOURCES.
func New(opts ...Option) *Bundle {
	b := &Bundle{
		resolved: cache.New(resolvedTTL, 0),
	}
	for _, opt := range opts {
		opt(b)
	}

	dirs := make([]string, 0, len(b.override))
	for _, d := range b.override {
		dirs = append(dirs, expandPath(d))
	}
	if !b.noSystem {
		defaults, wd := defaultDirs()
		explicit := dedupe(dirs)
		if env := os.Getenv(EnvResources); env != "" {
			explicit = dedupe(append(explicit, expandPath(env)))
		}
		if wd != "" && !slices.Contains(explicit, filepath.Clean(wd)) {
			b.workDir = filepath.Clean(wd)
		}
		dirs = append(dirs, defaults...)
	}
	b.dirs = dedupe(dirs)
	return b
}

var (
	defaultBundle     *Bundle
	defaultBundleOnce sync.Once
)

// Default returns the process-wide bundle using the default search order
func Default() *Bundle {
	defaultBundleOnce.Do(func() {
		defaultBundle = New()
	})
	return defaultBundle
}

// defaultDirs returns the default search directories and the working
// directory among them, if it could be determined.
func defaultDirs() (dirs []string, workDir string) {
	if env := os.Getenv(EnvResources); env != "" {
		dirs = append(dirs, expandPath(env))
	}
	if wd, err := os.Getwd(); err == nil {
		workDir = wd
		dirs = append(dirs, wd)
	}
	if exe, err := os.Executable(); err == nil {
		exeDir := filepath.Dir(exe)
		dirs = append(dirs, exeDir, filepath.Join(exeDir, "..", "share", "porcupine"))
	}
	return append(dirs, systemDirs()...), workDir
}

func systemDirs() []string {
	switch runtime.GOOS {
	case "windows":
		if pd := os.Getenv("ProgramData"); pd != "" {
			return []string{filepath.Join(pd, "porcupine")}
		}
		return nil
	case "darwin":
		return []string{"/usr/local/share/porcupine", "/opt/homebrew/share/porcupine"}
	default:
		return []string{"/usr/local/share/porcupine", "/usr/share/porcupine", "/opt/porcupine"}
	}
}

func dedupe(dirs []string) []string {
	seen := make(map[string]bool, len(dirs))
	out := make([]string, 0, len(dirs))
	for _, d := range dirs {
		if d == "" {
			continue
		}
		clean := filepath.Clean(d)
		if seen[clean] {
			continue
		}
		seen[clean] = true
		out = append(out, clean)
	}
	return out
}

// expandPath expands environment variables and a leading ~
func expandPath(p string) string {
	p = os.ExpandEnv(p)
	if len(p) >= 2 && p[0] == '~' && (p[1] == '/' || p[1] == '\\') {
		if home, err := os.UserHomeDir(); err == nil {
			p = filepath.Join(home, p[2:])
		}
	}
	return p
}

// Dirs returns the directories searched, in order
func (b *Bundle) Dirs() []string {
	return slices.Clone(b.dirs)
}

// Resolve finds the resource called name
func (b *Bundle) Resolve(kind Kind, name string) (string, error) {
	cacheKey := kind.String() + ":" + name
	if cached, ok := b.resolved.Get(cacheKey); ok {
		if p, ok := cached.(string); ok && fileExists(p) {
			return p, nil
		}
		b.resolved.Delete(cacheKey)
	}

	p, err := b.lookup(kind, name)
	if err != nil {
		return "", err
	}

	b.resolved.SetDefault(cacheKey, p)
	GetLogger().Debug("resolved resource",
		logger.String("kind", kind.String()),
		logger.String("name", name),
		logger.String("path", p))
	return p, nil
}

func (b *Bundle) lookup(kind Kind, name string) (string, error) {
	if name == "" || filepath.Base(name) != name {
		return "", errors.Newf("invalid resource name %q", name).
			Component("bundle").
			Category(errors.CategoryValidation).
			Build()
	}

	for _, dir := range b.searchDirs(kind) {
		for _, sub := range kind.subdirs() {
			candidate := filepath.Join(dir, filepath.FromSlash(sub), name)
			if fileExists(candidate) {
				return candidate, nil
			}
		}
	}

	if b.fsys != nil {
		for _, sub := range kind.subdirs() {
			fsPath := path.Join(sub, name)
			if _, err := fs.Stat(b.fsys, fsPath); err == nil {
				return b.extract(fsPath, name)
			}
		}
	}

	return "", b.notFound(kind, name, "")
}

// searchDirs drops the implicit working directory when looking for the
// native library, so a stray library there is never loaded.
func (b *Bundle) searchDirs(kind Kind) []string {
	if kind != KindLibrary || b.workDir == "" {
		return b.dirs
	}
	dirs := make([]string, 0, len(b.dirs))
	for _, d := range b.dirs {
		if d != b.workDir {
			dirs = append(dirs, d)
		}
	}
	return dirs
}

func (b *Bundle) notFound(kind Kind, name, explicitPath string) error {
	return errors.New(fmt.Errorf("%w: %s %q", ErrNotFound, kind, name)).
		Component("bundle").
		Category(errors.CategoryNotFound).
		ResourceContext(kind.String(), explicitPath).
		Context("search_dirs", len(b.searchDirs(kind))).
		Build()
}

// ResolvePath returns p when it names an existing file. A bare file name is
// then looked up like Resolve, and a relative path is tried below every
// search directory and the embedded tree. A missing absolute path is an error.
func (b *Bundle) ResolvePath(kind Kind, p string) (string, error) {
	expanded := expandPath(p)
	if fileExists(expanded) {
		return expanded, nil
	}

	switch {
	case expanded == "" || filepath.Base(expanded) == expanded:
		return b.Resolve(kind, expanded)
	case filepath.IsAbs(expanded) || filepath.VolumeName(expanded) != "":
		return "", b.notFound(kind, expanded, expanded)
	}

	for _, dir := range b.searchDirs(kind) {
		candidate := filepath.Join(dir, expanded)
		if fileExists(candidate) {
			return candidate, nil
		}
	}

	if b.fsys != nil {
		fsPath := path.Clean(filepath.ToSlash(expanded))
		if fs.ValidPath(fsPath) {
			if _, err := fs.Stat(b.fsys, fsPath); err == nil {
				return b.extract(fsPath, path.Base(fsPath))
			}
		}
	}

	return "", b.notFound(kind, expanded, expanded)
}

// ModelPath returns the default model parameter file
func (b *Bundle) ModelPath() (string, error) {
	return b.Resolve(KindModel, ModelFileName)
}

// KeywordPath returns the packaged keyword file with the given file name
func (b *Bundle) KeywordPath(fileName string) (string, error) {
	return b.Resolve(KindKeyword, fileName)
}

// LibraryPath returns the native library for this platform
func (b *Bundle) LibraryPath(fileName string) (string, error) {
	return b.Resolve(KindLibrary, fileName)
}

// extract copies fsPath out of the embedded FS unless an identical-size copy exists
func (b *Bundle) extract(fsPath, name string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	cacheDir := b.cacheDir
	if cacheDir == "" {
		userCache, err := os.UserCacheDir()
		if err != nil {
			userCache = os.TempDir()
		}
		cacheDir = filepath.Join(userCache, "porcupine")
	}

	info, err := fs.Stat(b.fsys, fsPath)
	if err != nil {
		return "", errors.FileError(err, fsPath, 0)
	}

	dst := filepath.Join(cacheDir, filepath.FromSlash(fsPath))
	if st, err := os.Stat(dst); err == nil && st.Size() == info.Size() {
		return dst, nil
	}

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return "", errors.FileError(err, dst, 0)
	}

	src, err := b.fsys.Open(fsPath)
	if err != nil {
		return "", errors.FileError(err, fsPath, info.Size())
	}
	defer src.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dst), name+".*.tmp")
	if err != nil {
		return "", errors.FileError(err, dst, info.Size())
	}
	tmpName := tmp.Name()

	if _, err := io.Copy(tmp, src); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return "", errors.FileError(err, dst, info.Size())
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.FileError(err, dst, info.Size())
	}
	if err := os.Rename(tmpName, dst); err != nil {
		_ = os.Remove(tmpName)
		return "", errors.FileError(err, dst, info.Size())
	}

	GetLogger().Info("extracted embedded resource",
		logger.String("name", name),
		logger.String("path", dst),
		logger.Int64("size", info.Size()))
	return dst, nil
}

func fileExists(p string) bool {
	st, err := os.Stat(p)
	return err == nil && !st.IsDir()
}

var (
	serviceLogger logger.Logger
	initOnce      sync.Once
)

// GetLogger returns the bundle package logger
func GetLogger() logger.Logger {
	initOnce.Do(func() {
		serviceLogger = logger.Global().Module("bundle")
	})
	return serviceLogger
}

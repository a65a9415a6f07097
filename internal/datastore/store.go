package datastore

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/go-porcupine/internal/conf"
	"github.com/tphakala/go-porcupine/internal/errors"
	"github.com/tphakala/go-porcupine/internal/logger"
	"github.com/tphakala/go-porcupine/internal/observability/metrics"
	"github.com/tphakala/go-porcupine/internal/wakeword"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

const slowQueryThreshold = 200 * time.Millisecond

// Store persists detections.
type Store struct {
	db      *gorm.DB
	name    string // file path or host/database, for logs
	metrics *metrics.DatastoreMetrics
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithMetrics records operation metrics.
func WithMetrics(m *metrics.DatastoreMetrics) StoreOption {
	return func(s *Store) { s.metrics = m }
}

// Open opens or creates the SQLite database at path and migrates the schema.
func Open(path string, opts ...StoreOption) (*Store, error) {
	if path != MemoryPath {
		if dir := filepath.Dir(path); dir != "" {
			if err := os.MkdirAll(dir, 0o750); err != nil {
				return nil, errors.New(err).
					Component("datastore").
					Category(errors.CategoryFileIO).
					Context("path", path).
					Build()
			}
		}
	}

	// SQLite allows one writer; a single connection also keeps an
	// in-memory database alive for the lifetime of the store.
	return open(sqlite.Open(dsn(path)), path, 1, opts...)
}

// New opens the backend selected by settings.
func New(settings *conf.DatabaseSettings, opts ...StoreOption) (*Store, error) {
	switch settings.Type {
	case conf.DatabaseMySQL:
		return OpenMySQL(&settings.MySQL, opts...)
	case conf.DatabaseSQLite, "":
		return Open(settings.Path, opts...)
	default:
		return nil, errors.Newf("unknown database type %q", settings.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func open(dialector gorm.Dialector, name string, maxConns int, opts ...StoreOption) (*Store, error) {
	log := GetLogger()
	s := &Store{name: name}
	for _, opt := range opts {
		opt(s)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(log, slowQueryThreshold),
	})
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Context("database", name).
			Build()
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open").
			Build()
	}
	if maxConns > 0 {
		sqlDB.SetMaxOpenConns(maxConns)
	}

	if err := db.AutoMigrate(&DetectionRecord{}); err != nil {
		_ = sqlDB.Close()
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("database", name).
			Build()
	}

	s.db = db
	log.Info("detection database opened",
		logger.String("dialect", dialector.Name()),
		logger.String("database", name))
	return s, nil
}

func dsn(path string) string {
	if path == MemoryPath {
		return path
	}
	return "file:" + path + "?_journal_mode=WAL&_busy_timeout=5000"
}

// Save stores a detection.
func (s *Store) Save(ctx context.Context, d *wakeword.Detection) error {
	start := time.Now()
	rec := recordFromDetection(d)
	err := s.db.WithContext(ctx).Create(&rec).Error
	s.record("save", start, err)
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "save").
			Context("keyword", d.Keyword).
			Build()
	}
	return nil
}

// Recent returns up to limit detections, newest first.
func (s *Store) Recent(ctx context.Context, limit int) ([]wakeword.Detection, error) {
	start := time.Now()
	if limit <= 0 {
		limit = 100
	}

	var records []DetectionRecord
	err := s.db.WithContext(ctx).
		Order("detected_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	s.record("recent", start, err)
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "recent").
			Build()
	}

	out := make([]wakeword.Detection, len(records))
	for i := range records {
		out[i] = records[i].toDetection()
	}
	return out, nil
}

// CountByKeyword returns detection totals per keyword, highest first.
func (s *Store) CountByKeyword(ctx context.Context) ([]KeywordCount, error) {
	start := time.Now()
	var counts []KeywordCount
	err := s.db.WithContext(ctx).
		Model(&DetectionRecord{}).
		Select("keyword, COUNT(*) AS count").
		Group("keyword").
		Order("count DESC").
		Order("keyword").
		Scan(&counts).Error
	s.record("count_by_keyword", start, err)
	if err != nil {
		return nil, errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "count_by_keyword").
			Build()
	}
	return counts, nil
}

// Name implements wakeword.Handler.
func (s *Store) Name() string { return "datastore" }

// HandleDetection implements wakeword.Handler.
func (s *Store) HandleDetection(ctx context.Context, d wakeword.Detection) error {
	return s.Save(ctx, &d)
}

// Close closes the database.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *Store) record(operation string, start time.Time, err error) {
	if s.metrics != nil {
		s.metrics.RecordOperation(operation, start, err)
	}
}

// GetLogger returns the datastore logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

var _ wakeword.Handler = (*Store)(nil)

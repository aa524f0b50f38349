package runlog

import (
	"fmt"
	"sync"

	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/harborlight/townfeed/internal/config"
	"github.com/harborlight/townfeed/internal/support/logger"
)

// DialectorFactory builds a gorm.Dialector from the database settings.
type DialectorFactory func(cfg config.DatabaseConfig) (gorm.Dialector, error)

var (
	dialectorRegistry = make(map[string]DialectorFactory)
	dialectorMutex    sync.RWMutex
)

// RegisterDialector registers a DialectorFactory for the given dialect.
// Dialect files register themselves from init.
func RegisterDialector(dialect string, factory DialectorFactory) {
	dialectorMutex.Lock()
	defer dialectorMutex.Unlock()
	if _, exists := dialectorRegistry[dialect]; exists {
		logger.Warnf("Dialector for '%s' already registered. Overwriting.", dialect)
	}
	dialectorRegistry[dialect] = factory
}

func getDialectorFactory(dialect string) (DialectorFactory, error) {
	dialectorMutex.RLock()
	defer dialectorMutex.RUnlock()
	factory, ok := dialectorRegistry[dialect]
	if !ok {
		return nil, fmt.Errorf("no dialector registered for database dialect: %s", dialect)
	}
	return factory, nil
}

// OpenDB opens the run-log database using the configured dialect.
func OpenDB(cfg *config.Config) (*gorm.DB, error) {
	dbCfg := cfg.Townfeed.Database

	factory, err := getDialectorFactory(dbCfg.Dialect)
	if err != nil {
		return nil, err
	}
	dialector, err := factory(dbCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create dialector for %s: %w", dbCfg.Dialect, err)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection (%s): %w", dbCfg.Dialect, err)
	}

	logger.Infof("Opened run-log database (%s).", dbCfg.Dialect)
	return db, nil
}

// CloseDB closes the underlying sql.DB of a gorm connection.
func CloseDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

package persist

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/wnt/solforge/internal/config"
	"github.com/wnt/solforge/internal/metrics"
	"github.com/wnt/solforge/internal/models"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// snapshotID is the fixed logical key of the single ledger snapshot row.
const snapshotID = "ledger"

// snapshotRow is the single-row table holding the whole snapshot as a
// JSONB document.
type snapshotRow struct {
	ID        string    `gorm:"primaryKey;size:32"`
	Doc       string    `gorm:"type:jsonb;not null"`
	UpdatedAt time.Time `gorm:"index"`
}

func (snapshotRow) TableName() string {
	return "ledger_snapshots"
}

// PostgresAdapter persists the snapshot through an idempotent upsert of
// one logical row.
type PostgresAdapter struct {
	db       *gorm.DB
	defaults models.Defaults
	logger   zerolog.Logger
}

// NewPostgres connects to Postgres, migrates the snapshot table and
// returns the adapter.
func NewPostgres(cfg config.Config, log zerolog.Logger) (*PostgresAdapter, error) {
	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=UTC",
		cfg.DBHost,
		cfg.DBUser,
		cfg.DBPassword,
		cfg.DBName,
		cfg.DBPort,
		cfg.DBSSLMode,
	)

	gormCfg := &gorm.Config{
		Logger:      gormlogger.Default.LogMode(gormlogger.Silent),
		PrepareStmt: true,
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	}

	db, err := gorm.Open(postgres.Open(dsn), gormCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database connection: %w", err)
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(20)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := db.AutoMigrate(&snapshotRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &PostgresAdapter{
		db:       db,
		defaults: cfg.Defaults(),
		logger:   log.With().Str("component", "persist_postgres").Logger(),
	}, nil
}

// Load fetches the snapshot row, lazily initializing an empty snapshot on
// first use.
func (a *PostgresAdapter) Load(ctx context.Context) (*models.Store, error) {
	var row snapshotRow
	err := a.db.WithContext(ctx).First(&row, "id = ?", snapshotID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		store := models.NormalizeStore(models.NewStore(), a.defaults)
		if saveErr := a.Save(ctx, store); saveErr != nil {
			return nil, saveErr
		}
		a.logger.Info().Msg("Initialized empty ledger snapshot")
		return store, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var store models.Store
	if err := json.Unmarshal([]byte(row.Doc), &store); err != nil {
		return nil, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return models.NormalizeStore(&store, a.defaults), nil
}

// Save upserts the whole snapshot under the fixed logical id.
func (a *PostgresAdapter) Save(ctx context.Context, store *models.Store) error {
	start := time.Now()
	doc, err := json.Marshal(store)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	row := snapshotRow{ID: snapshotID, Doc: string(doc), UpdatedAt: time.Now().UTC()}
	err = a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).
		Create(&row).Error
	if err != nil {
		metrics.RecordFlush("failed", 0, 0)
		return fmt.Errorf("failed to upsert snapshot: %w", err)
	}

	metrics.RecordFlush("success", time.Since(start).Seconds(), len(doc))
	a.logger.Debug().Int("bytes", len(doc)).Msg("Snapshot upserted")
	return nil
}

// Close releases the underlying connection pool.
func (a *PostgresAdapter) Close() error {
	sqlDB, err := a.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

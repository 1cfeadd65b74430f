// FilePath: internal/repository/sqlstore/sqlstore.go
package sqlstore

import (
	"context"
	"fmt"

	"github.com/sauqing9/api-sitras/internal/database"
	"github.com/sauqing9/api-sitras/internal/models"
	"github.com/sauqing9/api-sitras/internal/repository"
	nuts "github.com/vaudience/go-nuts"
)

var tables = []string{"raw_readings", "calibrated_readings", "recommendations", "manual_data"}

// Store implements repository.Store on PostgreSQL or SQLite
type Store struct {
	SQLBaseRepo
	raw             *Table[models.RawReading, *models.RawReading]
	calibrated      *Table[models.CalibratedReading, *models.CalibratedReading]
	recommendations *Table[models.Recommendation, *models.Recommendation]
	manual          *ManualTable
}

// New creates the tables when missing and returns the store
func New(ctx context.Context, db database.DB) (*Store, error) {
	if err := migrate(ctx, db); err != nil {
		return nil, err
	}

	manual := newTable[models.ManualData](db, "manual_data", repository.PrefixManual, "manual data")
	manual.flag = func(m *models.ManualData) bool { return m.HasExtracted() }

	return &Store{
		SQLBaseRepo:     SQLBaseRepo{db: db},
		raw:             newTable[models.RawReading](db, "raw_readings", repository.PrefixRaw, "raw data"),
		calibrated:      newTable[models.CalibratedReading](db, "calibrated_readings", repository.PrefixCalibrated, "calibrated data"),
		recommendations: newTable[models.Recommendation](db, "recommendations", repository.PrefixRecommendation, "recommendation"),
		manual:          &ManualTable{Table: manual},
	}, nil
}

func (s *Store) Raw() repository.RawReadingRepository { return s.raw }

func (s *Store) Calibrated() repository.CalibratedReadingRepository { return s.calibrated }

func (s *Store) Recommendations() repository.RecommendationRepository { return s.recommendations }

func (s *Store) Manual() repository.ManualDataRepository { return s.manual }

func migrate(ctx context.Context, db database.DB) error {
	var seq, flagged string
	switch db.DriverName() {
	case "postgres":
		seq = "seq BIGSERIAL, id TEXT PRIMARY KEY"
		flagged = "SMALLINT"
	default:
		seq = "seq INTEGER PRIMARY KEY AUTOINCREMENT, id TEXT NOT NULL UNIQUE"
		flagged = "INTEGER"
	}

	for _, name := range tables {
		stmts := []string{
			fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
				%s,
				created_at BIGINT NOT NULL,
				flagged %s NOT NULL DEFAULT 0,
				doc TEXT NOT NULL
			)`, name, seq, flagged),
			fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_%s_created_at ON %s (created_at DESC)`, name, name),
		}
		for _, stmt := range stmts {
			if _, err := db.GetDB().ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("failed to migrate table %s: %w", name, err)
			}
		}
	}
	nuts.L.Infof("[SQLStore] Schema ready on %s", db.DriverName())
	return nil
}

var _ repository.Store = (*Store)(nil)

// FilePath: internal/database/database.go
package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/sauqing9/api-sitras/internal/config"
	nuts "github.com/vaudience/go-nuts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	_ "modernc.org/sqlite"
)

const connectTimeout = 5 * time.Second

// DB is an interface that both PostgreSQL and SQLite connections implement
type DB interface {
	Close() error
	Ping(ctx context.Context) error
	GetDB() *sqlx.DB
	DriverName() string
}

// SQLDB represents a sqlx connection to either supported SQL driver
type SQLDB struct {
	db     *sqlx.DB
	driver string
}

// NewPostgresDB creates a new PostgreSQL database connection
func NewPostgresDB(cfg config.PostgresConfig) (DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("error connecting to PostgreSQL: %w", err)
	}

	nuts.L.Infof("[PostgresDB] Connected to %s:%d/%s", cfg.Host, cfg.Port, cfg.DBName)
	return &SQLDB{db: db, driver: "postgres"}, nil
}

// NewSQLiteDB opens an embedded SQLite database. Path may be ":memory:".
func NewSQLiteDB(cfg config.SQLiteConfig) (DB, error) {
	db, err := sqlx.Connect("sqlite", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("error opening SQLite database: %w", err)
	}
	// A single connection keeps in-memory databases shared and serializes writers.
	db.SetMaxOpenConns(1)

	nuts.L.Infof("[SQLiteDB] Opened %s", cfg.Path)
	return &SQLDB{db: db, driver: "sqlite"}, nil
}

func (s *SQLDB) Close() error {
	return s.db.Close()
}

func (s *SQLDB) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLDB) GetDB() *sqlx.DB {
	return s.db
}

func (s *SQLDB) DriverName() string {
	return s.driver
}

// MongoDB represents a MongoDB client bound to one database
type MongoDB struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewMongoDB connects to MongoDB and verifies the connection
func NewMongoDB(cfg config.MongoConfig) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}

	nuts.L.Infof("[MongoDB] Connected to database %s", cfg.Database)
	return &MongoDB{client: client, db: client.Database(cfg.Database)}, nil
}

func (m *MongoDB) Database() *mongo.Database {
	return m.db
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, readpref.Primary())
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	return m.client.Disconnect(ctx)
}

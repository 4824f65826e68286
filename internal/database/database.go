package database

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// Pool is the subset of pgxpool.Pool the query layer uses. pgxmock
// satisfies it too, so the SQL paths are testable without a live store.
type Pool interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// Database is the read-only query layer over the transaction store. It
// holds no mutable state between requests beyond the pool and the
// cached rent column probe.
type Database struct {
	pool   Pool
	logger *logrus.Logger

	// trailing windows, months
	recentMonths int
	seriesMonths int

	rentColsMu     sync.Mutex
	rentColsProbed bool
	rentCols       rentColumns
}

func New(ctx context.Context, databaseURL string, logger *logrus.Logger, recentMonths, seriesMonths int) (*Database, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return NewWithPool(pool, logger, recentMonths, seriesMonths), nil
}

// NewWithPool wires an existing pool, used by tests.
func NewWithPool(pool Pool, logger *logrus.Logger, recentMonths, seriesMonths int) *Database {
	if logger == nil {
		logger = logrus.New()
	}
	return &Database{
		pool:         pool,
		logger:       logger,
		recentMonths: recentMonths,
		seriesMonths: seriesMonths,
	}
}

func (d *Database) Close() {
	d.pool.Close()
}

// BBox is a geographic bounding box in degrees, inclusive on all sides.
type BBox struct {
	MinLat, MinLng, MaxLat, MaxLng float64
}

// rentColumns records which optional apt_trade_rent columns exist in
// this deployment's schema.
type rentColumns struct {
	hasExcluUseAr bool
	hasFloor      bool
}

const rentColumnProbeSQL = `
	SELECT column_name
	FROM information_schema.columns
	WHERE table_schema = current_schema()
	  AND table_name = 'apt_trade_rent'
	  AND column_name IN ('exclu_use_ar', 'floor')`

// rentDetailColumns probes the store schema for the optional rent detail
// columns. The result is cached for the process lifetime on the first
// successful probe; a failed probe is retried on the next request.
func (d *Database) rentDetailColumns(ctx context.Context) (rentColumns, error) {
	d.rentColsMu.Lock()
	defer d.rentColsMu.Unlock()

	if d.rentColsProbed {
		return d.rentCols, nil
	}

	rows, err := d.pool.Query(ctx, rentColumnProbeSQL)
	if err != nil {
		return rentColumns{}, fmt.Errorf("probe rent columns: %w", err)
	}
	defer rows.Close()

	var cols rentColumns
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return rentColumns{}, fmt.Errorf("scan rent column probe: %w", err)
		}
		switch name {
		case "exclu_use_ar":
			cols.hasExcluUseAr = true
		case "floor":
			cols.hasFloor = true
		}
	}
	if err := rows.Err(); err != nil {
		return rentColumns{}, fmt.Errorf("iterate rent column probe: %w", err)
	}

	d.rentCols = cols
	d.rentColsProbed = true
	return cols, nil
}

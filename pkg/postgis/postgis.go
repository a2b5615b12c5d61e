// Package postgis stores basemap features in PostGIS, as a bulk source
// for snapshot files and surface initialization.
package postgis

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"

	"github.com/kass/go-map-viewpoint/pkg/models"
)

// FeatureStore is a PostGIS-backed basemap feature repository. Geometry
// is kept both as a coordinate array for lossless round-trips and as a
// PostGIS geometry column for spatial filtering.
type FeatureStore struct {
	db *sql.DB
}

// NewFeatureStore opens a PostGIS connection.
func NewFeatureStore(host, user, password, dbname string, port int) (*FeatureStore, error) {
	connStr := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=disable",
		host, port, user, password, dbname)

	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(25)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &FeatureStore{db: db}, nil
}

// InitSchema creates the feature table from scratch.
func (s *FeatureStore) InitSchema() error {
	queries := []string{
		`CREATE EXTENSION IF NOT EXISTS postgis;`,

		`DROP TABLE IF EXISTS basemap_features;`,

		`CREATE TABLE basemap_features (
			id     TEXT PRIMARY KEY,
			label  TEXT,
			kind   TEXT NOT NULL,
			points JSONB NOT NULL,
			geom   GEOMETRY(GEOMETRY, 3857) NOT NULL
		);`,
	}

	for _, query := range queries {
		if _, err := s.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute query '%s': %w", query, err)
		}
	}

	return nil
}

// CreateSpatialIndex creates a GIST index on the geometry column.
func (s *FeatureStore) CreateSpatialIndex() error {
	query := `CREATE INDEX idx_basemap_features_geom ON basemap_features USING GIST(geom);`

	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("failed to create spatial index: %w", err)
	}

	if _, err := s.db.Exec("ANALYZE basemap_features;"); err != nil {
		return fmt.Errorf("failed to analyze table: %w", err)
	}

	return nil
}

// BulkInsertFeatures inserts features in batched transactions.
func (s *FeatureStore) BulkInsertFeatures(features []models.Feature) error {
	const batchSize = 1000

	stmt, err := s.db.Prepare(`
		INSERT INTO basemap_features (id, label, kind, points, geom)
		VALUES ($1, $2, $3, $4::jsonb, ST_SetSRID(ST_GeomFromText($5), 3857))
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	txStmt := tx.Stmt(stmt)

	for i, f := range features {
		coords, err := coordsJSON(f.Geometry)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to encode feature %s: %w", f.ID, err)
		}
		wkt, err := geometryWKT(f)
		if err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to build WKT for feature %s: %w", f.ID, err)
		}

		if _, err := txStmt.Exec(f.ID, f.Label, string(f.Kind), coords, wkt); err != nil {
			tx.Rollback()
			return fmt.Errorf("failed to insert feature %s: %w", f.ID, err)
		}

		if (i+1)%batchSize == 0 {
			if err := tx.Commit(); err != nil {
				return fmt.Errorf("failed to commit batch: %w", err)
			}
			tx, err = s.db.Begin()
			if err != nil {
				return fmt.Errorf("failed to begin new transaction: %w", err)
			}
			txStmt = tx.Stmt(stmt)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit final batch: %w", err)
	}

	return nil
}

// QueryBox returns all features whose geometry intersects the box.
func (s *FeatureStore) QueryBox(box models.BoundingBox) ([]models.Feature, error) {
	query := `
		SELECT id, label, kind, points
		FROM basemap_features
		WHERE geom && ST_MakeEnvelope($1, $2, $3, $4, 3857)
	`

	rows, err := s.db.Query(query,
		box.BottomLeft.X, box.BottomLeft.Y,
		box.TopRight.X, box.TopRight.Y)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return scanFeatures(rows)
}

// AllFeatures returns every stored feature.
func (s *FeatureStore) AllFeatures() ([]models.Feature, error) {
	rows, err := s.db.Query(`SELECT id, label, kind, points FROM basemap_features ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to execute query: %w", err)
	}
	defer rows.Close()

	return scanFeatures(rows)
}

// Count returns the number of stored features.
func (s *FeatureStore) Count() (int64, error) {
	var count int64
	err := s.db.QueryRow("SELECT COUNT(*) FROM basemap_features").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count features: %w", err)
	}
	return count, nil
}

// Close closes the database connection.
func (s *FeatureStore) Close() error {
	return s.db.Close()
}

func scanFeatures(rows *sql.Rows) ([]models.Feature, error) {
	var results []models.Feature
	for rows.Next() {
		var id, kind string
		var label sql.NullString
		var coords []byte

		if err := rows.Scan(&id, &label, &kind, &coords); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		var pairs [][2]float64
		if err := json.Unmarshal(coords, &pairs); err != nil {
			return nil, fmt.Errorf("failed to decode coordinates for %s: %w", id, err)
		}

		points := make([]models.Location, len(pairs))
		for i, p := range pairs {
			points[i] = models.NewLocation(p[0], p[1], models.WebMercator())
		}

		results = append(results, models.Feature{
			ID:       id,
			Label:    label.String,
			Kind:     models.FeatureKind(kind),
			Geometry: models.NewGeometry(points...),
		})
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return results, nil
}

func coordsJSON(g models.Geometry) (string, error) {
	pairs := make([][2]float64, g.Len())
	for i, p := range g.Points {
		pairs[i] = [2]float64{p.X, p.Y}
	}
	data, err := json.Marshal(pairs)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func geometryWKT(f models.Feature) (string, error) {
	if f.Geometry.Len() == 0 {
		return "", fmt.Errorf("empty geometry")
	}

	switch f.Kind {
	case models.FeaturePoint:
		p := f.Geometry.Points[0]
		return fmt.Sprintf("POINT(%f %f)", p.X, p.Y), nil

	case models.FeaturePolyline:
		if f.Geometry.Len() < 2 {
			return "", fmt.Errorf("polyline needs at least 2 points")
		}
		parts := make([]string, f.Geometry.Len())
		for i, p := range f.Geometry.Points {
			parts[i] = fmt.Sprintf("%f %f", p.X, p.Y)
		}
		return "LINESTRING(" + strings.Join(parts, ", ") + ")", nil

	default:
		return "", fmt.Errorf("unsupported feature kind %q", f.Kind)
	}
}

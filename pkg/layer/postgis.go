package layer

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb/encoding/wkb"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// Querier runs a query. *pgxpool.Pool satisfies it.
type Querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostGISTable names the table behind a PostGIS layer. Table may be schema
// qualified. GeometryColumn defaults to "geom"; without IDColumn features get
// ids from their attributes.
type PostGISTable struct {
	Table          string
	GeometryColumn string
	IDColumn       string
}

// PostGIS answers queries from a PostGIS table. A distance query is widened
// by the layer's buffer before the relationship is tested in the database.
type PostGIS struct {
	id    string
	sr    spatialref.SpatialReference
	db    Querier
	table PostGISTable
	opts  options
}

// ConnectPostGIS opens and pings a connection pool.
func ConnectPostGIS(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgis config: %w", err)
	}
	poolConfig.MaxConns = 10
	poolConfig.MinConns = 1

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create postgis pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgis: %w", err)
	}
	return pool, nil
}

// NewPostGIS returns a layer over t whose geometries are stored in sr.
func NewPostGIS(id string, db Querier, t PostGISTable, sr spatialref.SpatialReference, opts ...Option) *PostGIS {
	if t.GeometryColumn == "" {
		t.GeometryColumn = "geom"
	}
	return &PostGIS{id: id, sr: sr, db: db, table: t, opts: newOptions(opts)}
}

func (l *PostGIS) ID() string { return l.id }

func (l *PostGIS) SpatialReference() spatialref.SpatialReference { return l.sr }

func (l *PostGIS) QueryFeatures(ctx context.Context, q Query) ([]Feature, error) {
	g, err := l.opts.prepare(ctx, l.sr, q)
	if err != nil {
		return nil, err
	}
	data, err := wkb.Marshal(g.Geom)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", geometry.ErrGeometry, err)
	}

	rows, err := l.db.Query(ctx, l.statement(q.Relationship), data, srid(l.sr), l.table.GeometryColumn)
	if err != nil {
		return nil, fmt.Errorf("layer %s: query postgis: %w", l.id, err)
	}
	defer rows.Close()

	var out []Feature
	for i := 0; rows.Next(); i++ {
		var (
			id    *string
			shape []byte
			props []byte
		)
		if err := rows.Scan(&id, &shape, &props); err != nil {
			return nil, fmt.Errorf("layer %s: scan feature: %w", l.id, err)
		}
		f, err := l.decode(id, shape, props, i)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("layer %s: read features: %w", l.id, err)
	}
	l.opts.log.Debug("PostGIS layer query", "layer", l.id, "table", l.table.Table, "matched", len(out))
	return out, nil
}

// statement returns the select for rel. $1 is the query geometry as WKB, $2
// its SRID and $3 the geometry column dropped from the attributes.
func (l *PostGIS) statement(rel Relationship) string {
	geom := pgx.Identifier{"t", l.table.GeometryColumn}.Sanitize()
	id := "NULL::text"
	if l.table.IDColumn != "" {
		id = pgx.Identifier{"t", l.table.IDColumn}.Sanitize() + "::text"
	}

	fn := "ST_Intersects"
	switch rel {
	case Contains:
		fn = "ST_Contains"
	case Within:
		fn = "ST_Within"
	}

	return fmt.Sprintf(`SELECT %s, ST_AsBinary(%s), to_jsonb(t) - $3::text FROM %s AS t WHERE %s(ST_GeomFromWKB($1, $2), %s)`,
		id, geom, pgx.Identifier(strings.Split(l.table.Table, ".")).Sanitize(), fn, geom)
}

func (l *PostGIS) decode(id *string, shape, props []byte, index int) (Feature, error) {
	g, err := wkb.Unmarshal(shape)
	if err != nil {
		return Feature{}, fmt.Errorf("layer %s: decode geometry: %w", l.id, err)
	}
	attrs := map[string]interface{}{}
	if len(props) > 0 {
		if err := json.Unmarshal(props, &attrs); err != nil {
			return Feature{}, fmt.Errorf("layer %s: decode attributes: %w", l.id, err)
		}
	}
	var explicit interface{}
	if id != nil {
		explicit = *id
	}
	return Feature{
		ID:         featureID(explicit, attrs, index),
		LayerID:    l.id,
		Attributes: attrs,
		Geometry:   geometry.New(g, l.sr),
	}, nil
}

// srid is the EPSG code PostGIS expects for sr.
func srid(sr spatialref.SpatialReference) int {
	if sr.LatestWKID > 0 {
		return sr.LatestWKID
	}
	return sr.WKID
}

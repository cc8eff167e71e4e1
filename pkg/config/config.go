// Package config loads the YAML configuration and applies environment
// overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/view"
)

// Layer source types.
const (
	LayerGeoJSON    = "geojson"
	LayerFlatGeobuf = "flatgeobuf"
	LayerShapefile  = "shapefile"
	LayerPostGIS    = "postgis"
	LayerArcGIS     = "arcgis"
	LayerWebMap     = "webmap"
)

// Config is the root configuration.
type Config struct {
	Portal          PortalConfig          `yaml:"portal"`
	GeometryService GeometryServiceConfig `yaml:"geometry_service"`
	Request         RequestConfig         `yaml:"request"`
	Selection       SelectionConfig       `yaml:"selection"`
	Views           ViewsConfig           `yaml:"views"`
	Projection      ProjectionConfig      `yaml:"projection"`
	Cache           CacheConfig           `yaml:"cache"`
	Database        DatabaseConfig        `yaml:"database"`
	Log             LogConfig             `yaml:"log"`
	Server          ServerConfig          `yaml:"server"`
}

type PortalConfig struct {
	URL   string `yaml:"url"`
	Token string `yaml:"token"`
}

type GeometryServiceConfig struct {
	URL string `yaml:"url"`
}

type RequestConfig struct {
	Timeout Duration `yaml:"timeout"`
}

// SelectionConfig holds the buffer distance and how results are drawn.
type SelectionConfig struct {
	Distance     float64             `yaml:"distance"`
	Unit         geometry.LengthUnit `yaml:"unit"`
	Relationship string              `yaml:"relationship"`
	Order        string              `yaml:"order"`
	ResultSymbol view.FillSymbol     `yaml:"result_symbol"`
	BufferSymbol view.FillSymbol     `yaml:"buffer_symbol"`
}

type ViewsConfig struct {
	Primary   ViewConfig `yaml:"primary"`
	Secondary ViewConfig `yaml:"secondary"`
}

// ViewConfig describes one map view. A secondary view is only built when
// Enabled is set.
type ViewConfig struct {
	Enabled      bool          `yaml:"enabled"`
	WKID         int           `yaml:"wkid"`
	Extent       []float64     `yaml:"extent,omitempty"`
	HitTolerance float64       `yaml:"hit_tolerance"`
	QueryLayer   string        `yaml:"query_layer"`
	Layers       []LayerConfig `yaml:"layers,omitempty"`
}

// Bound returns Extent as xmin, ymin, xmax, ymax.
func (v ViewConfig) Bound() (orb.Bound, bool) {
	if len(v.Extent) != 4 {
		return orb.Bound{}, false
	}
	return orb.Bound{
		Min: orb.Point{v.Extent[0], v.Extent[1]},
		Max: orb.Point{v.Extent[2], v.Extent[3]},
	}, true
}

// LayerConfig names a feature source. Path is used by file layers, URL by
// arcgis layers, ItemID with ID by web map layers and Table by postgis layers.
type LayerConfig struct {
	ID             string `yaml:"id"`
	Type           string `yaml:"type"`
	Path           string `yaml:"path,omitempty"`
	URL            string `yaml:"url,omitempty"`
	ItemID         string `yaml:"item_id,omitempty"`
	Table          string `yaml:"table,omitempty"`
	GeometryColumn string `yaml:"geometry_column,omitempty"`
	IDColumn       string `yaml:"id_column,omitempty"`
	WKID           int    `yaml:"wkid,omitempty"`
}

type ProjectionConfig struct {
	Engine string `yaml:"engine"` // local, remote, auto
}

type CacheConfig struct {
	Backend string      `yaml:"backend"` // none, memory, redis
	TTL     Duration    `yaml:"ttl"`
	Redis   RedisConfig `yaml:"redis"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// DatabaseConfig is the PostGIS connection shared by postgis layers.
type DatabaseConfig struct {
	DSN string `yaml:"dsn,omitempty"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	Path  string `yaml:"path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig reproduces the single-view web map setup: parcels from the
// portal web map, buffered by 400 feet.
func DefaultConfig() *Config {
	return &Config{
		Portal: PortalConfig{
			URL: "https://esridevbeijing.maps.arcgis.com",
		},
		GeometryService: GeometryServiceConfig{
			URL: "https://utility.arcgisonline.com/arcgis/rest/services/Geometry/GeometryServer",
		},
		Request: RequestConfig{
			Timeout: Duration(30 * time.Second),
		},
		Selection: SelectionConfig{
			Distance:     400,
			Unit:         geometry.Feet,
			Relationship: "intersects",
			Order:        "project-then-buffer",
			ResultSymbol: view.DefaultResultSymbol(),
			BufferSymbol: view.DefaultBufferSymbol(),
		},
		Views: ViewsConfig{
			Primary: ViewConfig{
				Enabled:    true,
				WKID:       102100,
				QueryLayer: "18e7dbeacdd-layer-2",
				Layers: []LayerConfig{
					{ID: "18e7dbeacdd-layer-2", Type: LayerWebMap, ItemID: "42b447816cd148e4848f9bb62be7aa2f"},
				},
			},
			Secondary: ViewConfig{
				WKID:       4326,
				QueryLayer: "18e7dbeacdd-layer-2",
			},
		},
		Projection: ProjectionConfig{Engine: "auto"},
		Cache: CacheConfig{
			Backend: "memory",
			TTL:     Duration(10 * time.Minute),
			Redis:   RedisConfig{Prefix: "arcgis-buffer:"},
		},
		Log: LogConfig{
			Level: "INFO",
			Path:  "logs/arcgis-buffer.log",
		},
		Server: ServerConfig{Addr: "127.0.0.1:8088"},
	}
}

// Load reads path, creating it with defaults when missing, then applies .env
// and environment overrides. Overrides are never written back.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case os.IsNotExist(err):
		if err := Save(path, cfg); err != nil {
			return nil, fmt.Errorf("failed to save config file: %w", err)
		}
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	_ = godotenv.Load(filepath.Join(filepath.Dir(path), ".env"))
	_ = godotenv.Load(".env")
	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ARCGIS_TOKEN"); v != "" {
		cfg.Portal.Token = v
	}
	if v := os.Getenv("ARCGIS_PORTAL_URL"); v != "" {
		cfg.Portal.URL = v
	}
	if v := os.Getenv("ARCGIS_GEOMETRY_SERVICE_URL"); v != "" {
		cfg.GeometryService.URL = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Cache.Redis.Addr = v
	}
	if v := os.Getenv("REDIS_PASS"); v != "" {
		cfg.Cache.Redis.Password = v
	}
	if v := os.Getenv("REDIS_DB"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Cache.Redis.DB = n
		}
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

// Validate checks values that would otherwise fail deep inside a cycle.
func (c *Config) Validate() error {
	if !(c.Selection.Distance > 0) {
		return fmt.Errorf("selection.distance must be positive, got %v", c.Selection.Distance)
	}
	if !c.Selection.Unit.Valid() {
		return fmt.Errorf("selection.unit is not set")
	}
	if c.Request.Timeout <= 0 {
		return fmt.Errorf("request.timeout must be positive, got %s", c.Request.Timeout.Std())
	}
	switch c.Projection.Engine {
	case "local", "remote", "auto":
	default:
		return fmt.Errorf("projection.engine must be local, remote or auto, got %q", c.Projection.Engine)
	}
	switch c.Cache.Backend {
	case "none", "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be none, memory or redis, got %q", c.Cache.Backend)
	}
	if err := c.Views.Primary.validate("primary"); err != nil {
		return err
	}
	if c.Views.Secondary.Enabled {
		if err := c.Views.Secondary.validate("secondary"); err != nil {
			return err
		}
	}
	if c.Database.DSN == "" && c.usesPostGIS() {
		return fmt.Errorf("database.dsn is required by postgis layers")
	}
	return nil
}

func (c *Config) usesPostGIS() bool {
	views := []ViewConfig{c.Views.Primary}
	if c.Views.Secondary.Enabled {
		views = append(views, c.Views.Secondary)
	}
	for _, v := range views {
		for _, l := range v.Layers {
			if l.Type == LayerPostGIS {
				return true
			}
		}
	}
	return false
}

func (v ViewConfig) validate(name string) error {
	if v.WKID <= 0 {
		return fmt.Errorf("views.%s.wkid is required", name)
	}
	if len(v.Extent) != 0 && len(v.Extent) != 4 {
		return fmt.Errorf("views.%s.extent needs xmin, ymin, xmax, ymax", name)
	}
	found := false
	for i, l := range v.Layers {
		if l.ID == "" {
			return fmt.Errorf("views.%s.layers[%d].id is required", name, i)
		}
		switch l.Type {
		case LayerGeoJSON, LayerFlatGeobuf, LayerShapefile, LayerArcGIS, LayerWebMap:
		case LayerPostGIS:
			if l.Table == "" {
				return fmt.Errorf("views.%s.layers[%d].table is required for postgis", name, i)
			}
		default:
			return fmt.Errorf("views.%s.layers[%d].type %q is not one of geojson, flatgeobuf, shapefile, postgis, arcgis, webmap", name, i, l.Type)
		}
		if l.ID == v.QueryLayer {
			found = true
		}
	}
	if !found {
		return fmt.Errorf("views.%s.query_layer %q is not among its layers", name, v.QueryLayer)
	}
	return nil
}

// Save writes cfg to path with a short header.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# arcgis-buffer configuration
# ---------------------------
# Units: feet, us-feet, meters, kilometers, miles, nautical-miles, yards
# Secrets can come from ARCGIS_TOKEN, REDIS_PASS and DATABASE_URL instead of this file.

`)
	data = append(header, data...)

	reOrder := regexp.MustCompile(`(?m)^(\s+)order:`)
	data = reOrder.ReplaceAll(data, []byte("${1}# Options: project-then-buffer, buffer-then-project\n${1}order:"))
	reEngine := regexp.MustCompile(`(?m)^(\s+)engine:`)
	data = reEngine.ReplaceAll(data, []byte("${1}# Options: local, remote, auto\n${1}engine:"))

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

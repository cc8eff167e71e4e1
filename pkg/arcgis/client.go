// Package arcgis is a small ArcGIS REST client: portal items and web maps,
// feature layer metadata and queries, and the GeometryServer buffer and
// project operations.
package arcgis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/cache"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/spatialref"
)

// DefaultPortalURL is used when no portal is configured.
const DefaultPortalURL = "https://www.arcgis.com"

// Client represents an ArcGIS client with configuration.
type Client struct {
	HTTPClient *http.Client
	Timeout    time.Duration

	// PortalURL is the portal root, e.g. https://www.arcgis.com.
	PortalURL string
	// GeometryServiceURL is the GeometryServer endpoint used by Buffer and Project.
	GeometryServiceURL string
	// Token is appended to every request when set.
	Token string
	// Cache holds GeometryServer responses. Nil disables caching.
	Cache  cache.Cacher
	Logger *slog.Logger
}

// NewClient creates a new ArcGIS client with the specified timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		Timeout:   timeout,
		PortalURL: DefaultPortalURL,
	}
}

func (c *Client) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

// IsArcGISOnlineItemURL checks if a URL points to an ArcGIS Online item page.
func IsArcGISOnlineItemURL(rawURL string) bool {
	return strings.Contains(strings.ToLower(rawURL), "arcgis.com/home/item.html")
}

// NormalizeArcGISURL normalizes an ArcGIS URL.
func NormalizeArcGISURL(rawURL string) string {
	lowerURL := strings.ToLower(rawURL)
	isArcGISService := strings.Contains(lowerURL, "/rest/services") || strings.Contains(lowerURL, "/arcgis/rest")
	isAGOLItem := strings.Contains(lowerURL, "arcgis.com/home/item.html")

	if !isArcGISService && !isAGOLItem {
		u, err := url.Parse(rawURL)
		if err == nil && u.Scheme == "" {
			// domain/path without scheme
			if strings.Contains(rawURL, ".") && !strings.Contains(rawURL, " ") && !strings.HasPrefix(rawURL, "/") {
				return "https://" + rawURL
			}
		}
		return rawURL
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		slog.Warn("Failed to parse URL for normalization", "url", rawURL, "error", err)
		return rawURL
	}

	if u.Scheme == "" {
		u.Scheme = "https"
	}

	if isArcGISService {
		pathParts := strings.Split(strings.Trim(u.Path, "/"), "/")
		for i, part := range pathParts {
			switch strings.ToLower(part) {
			case "arcgis":
				pathParts[i] = "ArcGIS"
			case "rest":
				pathParts[i] = "rest"
			case "services":
				pathParts[i] = "services"
			case "featureserver":
				pathParts[i] = "FeatureServer"
			case "mapserver":
				pathParts[i] = "MapServer"
			case "geometryserver":
				pathParts[i] = "GeometryServer"
			}
		}
		if strings.HasPrefix(u.Path, "/") {
			u.Path = "/" + strings.Join(pathParts, "/")
		} else {
			u.Path = strings.Join(pathParts, "/")
		}

		lowerPathEnd := strings.ToLower(pathParts[len(pathParts)-1])

		// Base service URLs end with a slash, layer URLs do not.
		if lowerPathEnd == "mapserver" || lowerPathEnd == "featureserver" {
			if !strings.HasSuffix(u.Path, "/") {
				u.Path += "/"
			}
		} else if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
			u.Path = u.Path[:len(u.Path)-1]
		}

		q := u.Query()
		q.Del("f")
		u.RawQuery = q.Encode()
	}

	return u.String()
}

// IsValidHTTPURL checks if a URL is a valid HTTP or HTTPS URL.
func IsValidHTTPURL(rawURL string) bool {
	u, err := url.Parse(rawURL)
	if err != nil {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}

func trimSlash(s string) string {
	return strings.TrimRight(s, "/")
}

// srParam encodes a spatial reference as a request parameter.
func srParam(sr spatialref.SpatialReference) string {
	if sr.WKID != 0 {
		return strconv.Itoa(sr.WKID)
	}
	if sr.LatestWKID != 0 {
		return strconv.Itoa(sr.LatestWKID)
	}
	b, _ := json.Marshal(sr)
	return string(b)
}

// FetchAndDecode fetches data from a URL and decodes it into the target interface.
func (c *Client) FetchAndDecode(ctx context.Context, urlStr string, target interface{}) error {
	if c.Token != "" {
		u, err := url.Parse(urlStr)
		if err != nil {
			return &ServiceError{Op: "fetch", URL: urlStr, Err: err}
		}
		q := u.Query()
		q.Set("token", c.Token)
		u.RawQuery = q.Encode()
		urlStr = u.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, urlStr, nil)
	if err != nil {
		return &ServiceError{Op: "fetch", URL: urlStr, Err: fmt.Errorf("failed to create request: %w", err)}
	}

	body, err := c.do(req, "fetch")
	if err != nil {
		return err
	}
	return decode("fetch", redact(urlStr), body, target)
}

// post sends a form-encoded request. Successful responses of cacheable
// operations are stored in c.Cache keyed by operation and parameters.
func (c *Client) post(ctx context.Context, op, endpoint string, form url.Values, target interface{}, cacheable bool) error {
	form.Set("f", "json")

	var key string
	if cacheable && c.Cache != nil {
		sum := sha256.Sum256([]byte(endpoint + "?" + form.Encode()))
		key = "arcgis:" + op + ":" + hex.EncodeToString(sum[:])
		if body, ok := c.Cache.GetCache(ctx, key); ok {
			c.log().Debug("arcgis cache hit", "op", op)
			return decode(op, endpoint, body, target)
		}
	}

	if c.Token != "" {
		form.Set("token", c.Token)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return &ServiceError{Op: op, URL: endpoint, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	c.log().Debug("arcgis request", "op", op, "url", endpoint)
	body, err := c.do(req, op)
	if err != nil {
		return err
	}
	if err := decode(op, endpoint, body, target); err != nil {
		return err
	}
	if key != "" {
		if err := c.Cache.SetCache(ctx, key, body); err != nil {
			c.log().Warn("arcgis cache write failed", "op", op, "error", err)
		}
	}
	return nil
}

func (c *Client) do(req *http.Request, op string) ([]byte, error) {
	urlStr := redact(req.URL.String())
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return nil, &ServiceError{Op: op, URL: urlStr, Err: fmt.Errorf("request timed out: %w", err)}
		}
		return nil, &ServiceError{Op: op, URL: urlStr, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ServiceError{Op: op, URL: urlStr, StatusCode: resp.StatusCode}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &ServiceError{Op: op, URL: urlStr, Err: err}
	}
	return body, nil
}

// decode unmarshals body into target after checking for an error envelope.
func decode(op, urlStr string, body []byte, target interface{}) error {
	var envelope struct {
		Error *APIError `json:"error"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return &ServiceError{Op: op, URL: urlStr, Err: fmt.Errorf("failed to parse JSON: %w", err)}
	}
	if envelope.Error != nil {
		return apiError(op, urlStr, envelope.Error)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(target); err != nil {
		return &ServiceError{Op: op, URL: urlStr, Err: fmt.Errorf("failed to parse JSON: %w", err)}
	}
	return nil
}

// redact drops the token from URLs that end up in errors and logs.
func redact(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return urlStr
	}
	q := u.Query()
	if q.Get("token") == "" {
		return urlStr
	}
	q.Del("token")
	u.RawQuery = q.Encode()
	return u.String()
}

// FetchServiceLayers fetches the layers from an ArcGIS Feature Server or Map Server.
func (c *Client) FetchServiceLayers(ctx context.Context, serviceURL string, serviceType string) ([]AvailableLayerInfo, error) {
	fetchURL := fmt.Sprintf("%s?f=json", trimSlash(serviceURL))
	c.log().Info("Fetching service metadata", "url", fetchURL)

	availableLayers := []AvailableLayerInfo{}

	switch serviceType {
	case "FeatureServer":
		var metadata FeatureServerMetadata
		if err := c.FetchAndDecode(ctx, fetchURL, &metadata); err != nil {
			return nil, fmt.Errorf("failed to fetch Feature Server metadata: %w", err)
		}
		if len(metadata.Layers) == 0 && len(metadata.Tables) == 0 {
			c.log().Warn("No layers or tables found in Feature Server metadata", "url", fetchURL)
		}

		for _, layer := range metadata.Layers {
			layerIDStr, ok := layer.ID.(json.Number)
			if !ok {
				c.log().Warn("Could not parse layer ID", "layer", layer.Name)
				continue
			}
			availableLayers = append(availableLayers, AvailableLayerInfo{
				ID:           layerIDStr.String(),
				Name:         layer.Name,
				Type:         layer.Type,
				GeometryType: layer.GeometryType,
				ServiceURL:   serviceURL,
			})
		}
	case "MapServer":
		var metadata MapServiceMetadata
		if err := c.FetchAndDecode(ctx, fetchURL, &metadata); err != nil {
			return nil, fmt.Errorf("failed to fetch Map Server metadata: %w", err)
		}
		if len(metadata.Layers) == 0 {
			c.log().Warn("No layers found in Map Server metadata", "url", fetchURL)
		}

		layerMap := make(map[int]MapServiceLayer)
		for _, layer := range metadata.Layers {
			layerMap[layer.ID] = layer
		}

		layerHierarchy := make(map[int][]string)
		var buildPath func(layerID int) []string
		buildPath = func(layerID int) []string {
			if path, exists := layerHierarchy[layerID]; exists {
				return path
			}
			layer, ok := layerMap[layerID]
			if !ok {
				return []string{}
			}
			// cycle guard
			layerHierarchy[layerID] = []string{}

			var path []string
			if layer.ParentLayerId != -1 {
				path = append(append([]string{}, buildPath(layer.ParentLayerId)...), layer.Name)
			} else {
				path = []string{layer.Name}
			}
			layerHierarchy[layerID] = path
			return path
		}

		for _, layer := range metadata.Layers {
			if layer.Type != "Feature Layer" {
				c.log().Debug("Skipping non-feature layer", "layer", layer.Name, "id", layer.ID, "type", layer.Type)
				continue
			}
			parentPath := buildPath(layer.ID)
			if len(parentPath) > 0 {
				parentPath = parentPath[:len(parentPath)-1]
			}
			availableLayers = append(availableLayers, AvailableLayerInfo{
				ID:           strconv.Itoa(layer.ID),
				Name:         layer.Name,
				Type:         layer.Type,
				GeometryType: layer.GeometryType,
				ServiceURL:   serviceURL,
				ParentPath:   parentPath,
			})
		}
	default:
		return nil, fmt.Errorf("unsupported service type for fetching layers: %s", serviceType)
	}

	return availableLayers, nil
}

// LayerInfo fetches the metadata of a single feature layer.
func (c *Client) LayerInfo(ctx context.Context, layerURL string) (*Layer, error) {
	var layer Layer
	if err := c.FetchAndDecode(ctx, trimSlash(layerURL)+"?f=json", &layer); err != nil {
		return nil, fmt.Errorf("failed to fetch layer metadata: %w", err)
	}
	return &layer, nil
}

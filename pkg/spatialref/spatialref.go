// Copyright (c) 2025 Sudo-Ivan
// Licensed under the MIT License

// Package spatialref describes the coordinate systems attached to geometries
// and classifies them the way the buffering and projection code needs.
package spatialref

import (
	"fmt"
	"strings"
)

const (
	WKIDWGS84           = 4326
	WKIDWebMercator     = 3857
	WKIDWebMercatorEsri = 102100
)

// webMercatorWKIDs lists every identifier that has been used for the
// spherical Web Mercator projection.
var webMercatorWKIDs = map[int]bool{
	102113: true,
	102100: true,
	3857:   true,
	3785:   true,
	900913: true,
}

// geographicRanges are the wkid ranges reserved for geographic (lon/lat)
// coordinate systems by EPSG and Esri.
var geographicRanges = [][2]int{
	{4000, 4999},
	{37000, 37999},
	{104000, 104999},
}

// SpatialReference identifies a coordinate system by well-known id or WKT.
type SpatialReference struct {
	WKID       int    `json:"wkid,omitempty" yaml:"wkid,omitempty"`
	LatestWKID int    `json:"latestWkid,omitempty" yaml:"latest_wkid,omitempty"`
	WKT        string `json:"wkt,omitempty" yaml:"wkt,omitempty"`
	// MetersPerUnit is the linear unit of a projected reference. Zero means metres.
	MetersPerUnit float64 `json:"-" yaml:"meters_per_unit,omitempty"`
}

// WGS84 returns the WGS 1984 geographic reference.
func WGS84() SpatialReference {
	return SpatialReference{WKID: WKIDWGS84, LatestWKID: WKIDWGS84}
}

// WebMercator returns the Web Mercator auxiliary sphere reference.
func WebMercator() SpatialReference {
	return SpatialReference{WKID: WKIDWebMercatorEsri, LatestWKID: WKIDWebMercator}
}

// FromWKID builds a reference from a well-known id.
func FromWKID(wkid int) SpatialReference {
	if webMercatorWKIDs[wkid] {
		return SpatialReference{WKID: wkid, LatestWKID: WKIDWebMercator}
	}
	return SpatialReference{WKID: wkid, LatestWKID: wkid}
}

// IsZero reports whether no coordinate system is set.
func (sr SpatialReference) IsZero() bool {
	return sr.WKID == 0 && sr.LatestWKID == 0 && sr.WKT == ""
}

// IsWGS84 reports whether sr is WGS 1984 (EPSG:4326).
func (sr SpatialReference) IsWGS84() bool {
	return sr.WKID == WKIDWGS84 || sr.LatestWKID == WKIDWGS84
}

// IsWebMercator reports whether sr is any of the Web Mercator identifiers.
func (sr SpatialReference) IsWebMercator() bool {
	return webMercatorWKIDs[sr.WKID] || webMercatorWKIDs[sr.LatestWKID]
}

// IsGeographic reports whether coordinates in sr are angular (lon/lat).
func (sr SpatialReference) IsGeographic() bool {
	if sr.IsWGS84() {
		return true
	}
	for _, id := range []int{sr.WKID, sr.LatestWKID} {
		for _, r := range geographicRanges {
			if id >= r[0] && id <= r[1] {
				return true
			}
		}
	}
	return strings.HasPrefix(strings.ToUpper(strings.TrimSpace(sr.WKT)), "GEOGCS")
}

// LinearUnitMeters returns the size in metres of one coordinate unit of a
// projected reference.
func (sr SpatialReference) LinearUnitMeters() float64 {
	if sr.MetersPerUnit > 0 {
		return sr.MetersPerUnit
	}
	wkt := strings.ToUpper(sr.WKT)
	switch {
	case strings.Contains(wkt, `UNIT["FOOT_US"`):
		return 1200.0 / 3937.0
	case strings.Contains(wkt, `UNIT["FOOT"`):
		return 0.3048
	}
	return 1
}

// Equal reports whether both references describe the same coordinate system.
func (sr SpatialReference) Equal(other SpatialReference) bool {
	if sr.IsWebMercator() && other.IsWebMercator() {
		return true
	}
	if sr.code() != 0 && other.code() != 0 {
		return sr.code() == other.code()
	}
	return sr.WKT != "" && sr.WKT == other.WKT
}

// code prefers the latest wkid.
func (sr SpatialReference) code() int {
	if sr.LatestWKID != 0 {
		return sr.LatestWKID
	}
	return sr.WKID
}

// String returns a short identifier used in logs and cache keys.
func (sr SpatialReference) String() string {
	switch {
	case sr.code() != 0:
		return fmt.Sprintf("wkid:%d", sr.code())
	case sr.WKT != "":
		return "wkt:" + sr.WKT
	default:
		return "unknown"
	}
}

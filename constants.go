package main

const (
	DefaultConfigPath = "config.yaml"
	FormatGeoJSON     = "geojson"
	FormatKML         = "kml"
	FormatGPX         = "gpx"
	FormatCSV         = "csv"
	FormatText        = "text"
	FormatFGB         = "fgb"
	FileNameFormat    = "%sselection_%s.%s"
	DirPerm           = 0o750
	FilePerm          = 0o600
	JSONIndent        = "  "
)

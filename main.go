// Copyright (c) 2025 Sudo-Ivan
// Licensed under the MIT License

// Command arcgis-buffer runs one buffer-and-query selection from the command
// line and writes the drawn graphics of every view to files.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"

	"github.com/Sudo-Ivan/arcgis-buffer/pkg/app"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/config"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/convert"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/export"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/geometry"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/logging"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/projection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/selection"
	"github.com/Sudo-Ivan/arcgis-buffer/pkg/view"
)

// ANSI color codes for console output.
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
)

// useColor controls whether colored output is enabled.
var useColor = true

func main() {
	configPtr := flag.String("config", DefaultConfigPath, "Path to the YAML configuration (created with defaults if missing)")
	clickPtr := flag.String("click", "", "Map point to select at, as x,y in the primary view's reference")
	extentPtr := flag.String("extent", "", "Primary view extent as xmin,ymin,xmax,ymax (optional)")
	orderPtr := flag.String("order", "", "Secondary view order: project-then-buffer or buffer-then-project")
	formatPtr := flag.String("format", FormatGeoJSON, "Output format (geojson, kml, gpx, csv, text, fgb)")
	outputPtr := flag.String("output", "", "Output directory (default: current directory)")
	prefixPtr := flag.String("prefix", "", "Prefix for output filenames")
	overwritePtr := flag.Bool("overwrite", false, "Overwrite existing output files")
	noColorPtr := flag.Bool("no-color", false, "Disable colored output")
	timeoutPtr := flag.Int("timeout", 0, "HTTP request timeout in seconds (default: from config)")

	flag.Parse()

	useColor = !*noColorPtr

	if *clickPtr == "" {
		printError("-click is required")
		flag.Usage()
		os.Exit(1)
	}
	pt, err := parsePoint(*clickPtr)
	if err != nil {
		printError(err.Error())
		os.Exit(1)
	}

	cfg, err := config.Load(*configPtr)
	if err != nil {
		printError(fmt.Sprintf("Error loading config: %v", err))
		os.Exit(1)
	}
	if *timeoutPtr > 0 {
		cfg.Request.Timeout = config.Duration(time.Duration(*timeoutPtr) * time.Second)
	}
	if *orderPtr != "" {
		cfg.Selection.Order = *orderPtr
	}

	cleanup, err := logging.Init(cfg.Log)
	if err != nil {
		printError(fmt.Sprintf("Error setting up logging: %v", err))
		os.Exit(1)
	}
	defer cleanup()

	outputDir := *outputPtr
	if outputDir == "" {
		outputDir, _ = os.Getwd()
	}

	if err := run(cfg, pt, *extentPtr, *formatPtr, outputDir, *prefixPtr, *overwritePtr); err != nil {
		printError(err.Error())
		cleanup()
		os.Exit(1)
	}
}

func run(cfg *config.Config, pt orb.Point, extent, format, outputDir, prefix string, overwrite bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 2*cfg.Request.Timeout.Std())
	defer cancel()

	printInfo("Building views and layers...")
	a, err := app.Build(ctx, cfg, slog.Default())
	if err != nil {
		return fmt.Errorf("error building selection stack: %w", err)
	}
	defer a.Close()

	if err := a.Start(ctx); err != nil {
		printWarning(fmt.Sprintf("Extent sync: %v", err))
	}
	if extent != "" {
		b, err := parseExtent(extent)
		if err != nil {
			return err
		}
		a.Primary.SetExtent(b)
	}

	printInfo(fmt.Sprintf("Selecting at %v (%s), %v %s, order %s...",
		pt, a.Primary.SpatialReference(), cfg.Selection.Distance, cfg.Selection.Unit, a.Orchestrator.Order()))
	c, err := a.Orchestrator.HandleClick(ctx, geometry.New(pt, a.Primary.SpatialReference()))
	switch {
	case errors.Is(err, selection.ErrSelectionInProgress):
		return err
	case err != nil && c.Feature == nil:
		return fmt.Errorf("selection failed: %w", err)
	case err != nil:
		printWarning(fmt.Sprintf("Selection partly failed: %v", err))
	}
	if c.Feature == nil {
		printWarning("No feature under the click point; nothing to write.")
		return nil
	}
	printSuccess(fmt.Sprintf("Selected feature %s: %d result(s), %d on the secondary view.", c.Feature.ID, c.Results, c.SecondaryResults))

	var written, skipped int
	for _, v := range a.Views() {
		path, err := writeView(ctx, a.Projector, v, format, outputDir, prefix, overwrite)
		if err != nil {
			printError(fmt.Sprintf("  Error writing view %s: %v", v.ID(), err))
			return err
		}
		if path == "" {
			printWarning(fmt.Sprintf("  Skipped view %s (no graphics).", v.ID()))
			skipped++
			continue
		}
		printSuccess(fmt.Sprintf("  Wrote %s", path))
		written++
	}

	summary := fmt.Sprintf("\nSelection %s complete. %d file(s) written, %d skipped.", c.ID, written, skipped)
	if skipped > 0 {
		printWarning(summary)
	} else {
		printSuccess(summary)
	}
	return nil
}

// writeView writes the graphics of v and returns the file path, or "" when
// the view has nothing drawn.
func writeView(ctx context.Context, p projection.Projector, v *view.View, format, outputDir, prefix string, overwrite bool) (string, error) {
	graphics := v.GraphicsLayer().Graphics()
	if len(graphics) == 0 {
		return "", nil
	}

	data, ext, err := encodeGraphics(ctx, p, graphics, format, v.ID())
	if err != nil {
		return "", err
	}

	outputPath := filepath.Join(outputDir, outputFileName(prefix, v.ID(), ext))
	if _, err := os.Stat(outputPath); err == nil {
		if !overwrite {
			return "", fmt.Errorf("output file %s already exists. Use -overwrite", outputPath)
		}
		printWarning(fmt.Sprintf("  Overwriting existing file: %s", outputPath))
	} else if !os.IsNotExist(err) {
		return "", fmt.Errorf("failed to check output file status %s: %w", outputPath, err)
	}

	if err := os.MkdirAll(outputDir, DirPerm); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}
	if err := os.WriteFile(outputPath, data, FilePerm); err != nil {
		return "", fmt.Errorf("failed to write output file %s: %w", outputPath, err)
	}
	return outputPath, nil
}

// encodeGraphics renders graphics in format. GeoJSON, KML, GPX and FlatGeobuf
// output is projected to WGS 84 first; CSV and text keep the view's
// coordinates.
func encodeGraphics(ctx context.Context, p projection.Projector, graphics []view.Graphic, format, name string) ([]byte, string, error) {
	format = strings.ToLower(format)
	switch format {
	case FormatCSV:
		s, err := convert.GraphicsToCSV(graphics)
		if err != nil {
			return nil, "", fmt.Errorf("failed to convert graphics to CSV: %w", err)
		}
		return []byte(s), "csv", nil
	case FormatText:
		s, err := convert.GraphicsToText(graphics, name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to convert graphics to text: %w", err)
		}
		return []byte(s), "txt", nil
	case FormatGeoJSON, FormatKML, FormatGPX, FormatFGB:
	default:
		return nil, "", fmt.Errorf("unsupported format: %s", format)
	}

	wgs, err := convert.ToWGS84(ctx, p, graphics)
	if err != nil {
		return nil, "", fmt.Errorf("failed to project graphics to WGS 84: %w", err)
	}
	fc := convert.ToGeoJSON(wgs)

	switch format {
	case FormatKML:
		s, err := export.ConvertGeoJSONToKML(fc, name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to convert to KML: %w", err)
		}
		return []byte(s), "kml", nil
	case FormatGPX:
		s, err := export.ConvertGeoJSONToGPX(fc, name)
		if err != nil {
			return nil, "", fmt.Errorf("failed to convert to GPX: %w", err)
		}
		return []byte(s), "gpx", nil
	case FormatFGB:
		var buf bytes.Buffer
		if err := export.WriteFlatGeobuf(&buf, fc, name, export.EPSGWGS84); err != nil {
			return nil, "", fmt.Errorf("failed to write FlatGeobuf: %w", err)
		}
		return buf.Bytes(), "fgb", nil
	default:
		data, err := json.MarshalIndent(fc, "", JSONIndent)
		if err != nil {
			return nil, "", fmt.Errorf("failed to marshal GeoJSON: %w", err)
		}
		return data, "geojson", nil
	}
}

var unsafeFileChars = regexp.MustCompile(`[<>:"/\\|?* ]`)

func outputFileName(prefix, viewID, ext string) string {
	base := unsafeFileChars.ReplaceAllString(viewID, "_")
	if base == "" {
		base = "view"
	}
	return fmt.Sprintf(FileNameFormat, prefix, base, ext)
}

// parsePoint reads "x,y".
func parsePoint(s string) (orb.Point, error) {
	v, err := parseFloats(s, 2)
	if err != nil {
		return orb.Point{}, fmt.Errorf("invalid click point %q: %w", s, err)
	}
	return orb.Point{v[0], v[1]}, nil
}

// parseExtent reads "xmin,ymin,xmax,ymax".
func parseExtent(s string) (orb.Bound, error) {
	v, err := parseFloats(s, 4)
	if err != nil {
		return orb.Bound{}, fmt.Errorf("invalid extent %q: %w", s, err)
	}
	if v[0] > v[2] || v[1] > v[3] {
		return orb.Bound{}, fmt.Errorf("invalid extent %q: min exceeds max", s)
	}
	return orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}, nil
}

func parseFloats(s string, n int) ([]float64, error) {
	parts := strings.Split(s, ",")
	if len(parts) != n {
		return nil, fmt.Errorf("expected %d comma separated numbers, got %d", n, len(parts))
	}
	out := make([]float64, n)
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, err
		}
		out[i] = f
	}
	return out, nil
}

// printColor prints a message to the console with the specified color.
func printColor(colorCode string, message string) {
	if useColor {
		fmt.Printf("%s%s%s\n", colorCode, message, colorReset)
	} else {
		fmt.Println(message)
	}
}

// printInfo prints an informational message to the console.
func printInfo(message string) {
	printColor(colorCyan, message)
}

// printSuccess prints a success message to the console.
func printSuccess(message string) {
	printColor(colorGreen, message)
}

// printWarning prints a warning message to the console.
func printWarning(message string) {
	printColor(colorYellow, message)
}

// printError prints an error message to the console.
func printError(message string) {
	printColor(colorRed, message)
}

package app

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"path/filepath"
	"strings"
	"time"

	chart "github.com/wcharczuk/go-chart/v2"

	"salmonrun-notifier/internal/ledger"
	"salmonrun-notifier/internal/service"
)

// Export renders upcoming rotations as CSV and/or a PNG bar chart of hours
// until each alert.
func (a *App) Export(ctx context.Context, opts ExportOptions) error {
	if opts.CSVPath == "" && opts.PNGPath == "" {
		return errors.New("at least one of --csv or --png must be provided")
	}

	opts.MaxRotations = a.Config.ResolveMaxRotations(opts.MaxRotations)

	return a.withService(ctx, nil, false, func(svc *service.Service, _ *ledger.Ledger) error {
		rotations, err := svc.Upcoming(ctx)
		if err != nil {
			return err
		}
		if len(rotations) == 0 {
			a.Logger.Info().Msg("no rotations to export")
			return nil
		}

		views := a.views(svc, rotations, opts.MaxRotations)
		a.Logger.Info().Int("total", len(rotations)).Int("exported", len(views)).Msg("exporting rotations")

		if opts.CSVPath != "" {
			if err := a.writeFile(opts.CSVPath, func(w io.Writer) error { return writeRotationsCSV(w, views) }); err != nil {
				return err
			}
		}
		if opts.PNGPath != "" {
			now := a.Now()
			if err := a.writeFile(opts.PNGPath, func(w io.Writer) error { return writeRotationsPNG(w, views, now) }); err != nil {
				return err
			}
		}
		return nil
	})
}

func (a *App) writeFile(path string, write func(io.Writer) error) error {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := a.FS.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}

	file, err := a.FS.Create(path)
	if err != nil {
		return err
	}
	if err := write(file); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return file.Close()
}

func writeRotationsCSV(w io.Writer, views []rotationView) error {
	writer := csv.NewWriter(w)

	header := []string{"category", "stage", "start_time", "end_time", "alert_at", "boss", "weapons"}
	if err := writer.Write(header); err != nil {
		return err
	}

	for _, v := range views {
		record := []string{
			v.Category,
			v.Stage,
			v.Start.Format(time.RFC3339),
			v.End.Format(time.RFC3339),
			v.AlertAt.Format(time.RFC3339),
			v.Boss,
			strings.Join(v.Weapons, "; "),
		}
		if err := writer.Write(record); err != nil {
			return err
		}
	}

	writer.Flush()
	return writer.Error()
}

func writeRotationsPNG(w io.Writer, views []rotationView, now time.Time) error {
	bars := make([]chart.Value, 0, len(views))
	peak := 1.0
	for _, v := range views {
		hours := math.Max(0, v.AlertAt.Sub(now).Hours())
		peak = math.Max(peak, hours)
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("%s\n%s", v.Start.Format("Jan 02 15:04"), v.Category),
			Value: hours,
		})
	}

	width := 1280
	if needed := len(bars)*(40+20) + 200; needed > width {
		width = needed
	}

	graph := chart.BarChart{
		Title:      "Hours until Salmon Run alerts",
		Width:      width,
		Height:     720,
		BarWidth:   40,
		BarSpacing: 20,
		XAxis:      chart.Style{FontSize: 8},
		YAxis: chart.YAxis{
			Name: "Hours",
			ValueFormatter: func(v interface{}) string {
				return chart.FloatValueFormatterWithFormat(v, "%.0f")
			},
			Range: &chart.ContinuousRange{Min: 0, Max: math.Ceil(peak)},
		},
		Bars: bars,
	}

	return graph.Render(chart.PNG, w)
}

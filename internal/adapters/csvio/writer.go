package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
)

// Estimates holds estimator output aligned with a Dataset.
type Estimates struct {
	RouteRatings   []float64
	RouteVariances []float64
	PageRatings    []float64
	PageVariances  []float64
}

// WriteDir writes route_ratings.csv and page_ratings.csv into dir, creating
// it if needed.
func WriteDir(dir string, ds *Dataset, est Estimates) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := writeFile(filepath.Join(dir, RouteRatingsFile), func(w io.Writer) error {
		return WriteRouteRatings(w, ds.RouteNames, est.RouteRatings, est.RouteVariances)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, PageRatingsFile), func(w io.Writer) error {
		return WritePageRatings(w, ds.PageClimbers, ds.PageTimestamps, est.PageRatings, est.PageVariances)
	})
}

func writeFile(path string, fn func(io.Writer) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := fn(f); err != nil {
		_ = f.Close()
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// WriteRouteRatings writes route,rating,var rows.
func WriteRouteRatings(w io.Writer, names []string, ratings, variances []float64) error {
	if len(ratings) != len(names) || len(variances) != len(names) {
		return fmt.Errorf("%w: %d routes, %d ratings, %d variances", ErrMalformed, len(names), len(ratings), len(variances))
	}
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"route", "rating", "var"})
	for i, name := range names {
		_ = cw.Write([]string{name, formatFloat(ratings[i]), formatFloat(variances[i])})
	}
	cw.Flush()
	return cw.Error()
}

// WritePageRatings writes climber,timestamp,rating,var rows.
func WritePageRatings(w io.Writer, climbers []string, timestamps []int64, ratings, variances []float64) error {
	n := len(climbers)
	if len(timestamps) != n || len(ratings) != n || len(variances) != n {
		return fmt.Errorf("%w: %d pages, %d timestamps, %d ratings, %d variances",
			ErrMalformed, n, len(timestamps), len(ratings), len(variances))
	}
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"climber", "timestamp", "rating", "var"})
	for i, climber := range climbers {
		_ = cw.Write([]string{
			climber,
			strconv.FormatInt(timestamps[i], 10),
			formatFloat(ratings[i]),
			formatFloat(variances[i]),
		})
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteInputDir writes ds as routes.csv, pages.csv and ascents.csv so that
// ReadDir(dir) reproduces it.
func WriteInputDir(dir string, ds *Dataset) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	if err := writeFile(filepath.Join(dir, RoutesFile), func(w io.Writer) error {
		return WriteRoutes(w, ds.RouteNames, ds.Input.RoutesGrade)
	}); err != nil {
		return err
	}
	if err := writeFile(filepath.Join(dir, PagesFile), func(w io.Writer) error {
		return WritePages(w, ds.PageClimbers, ds.PageTimestamps)
	}); err != nil {
		return err
	}
	return writeFile(filepath.Join(dir, AscentsFile), func(w io.Writer) error {
		return WriteAscents(w, ds)
	})
}

// WriteRoutes writes route,grade rows.
func WriteRoutes(w io.Writer, names []string, grades []float64) error {
	if len(grades) != len(names) {
		return fmt.Errorf("%w: %d routes, %d grades", ErrMalformed, len(names), len(grades))
	}
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"route", "grade"})
	for i, name := range names {
		_ = cw.Write([]string{name, formatFloat(grades[i])})
	}
	cw.Flush()
	return cw.Error()
}

// WritePages writes climber,timestamp rows.
func WritePages(w io.Writer, climbers []string, timestamps []int64) error {
	if len(timestamps) != len(climbers) {
		return fmt.Errorf("%w: %d pages, %d timestamps", ErrMalformed, len(climbers), len(timestamps))
	}
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"climber", "timestamp"})
	for i, climber := range climbers {
		_ = cw.Write([]string{climber, strconv.FormatInt(timestamps[i], 10)})
	}
	cw.Flush()
	return cw.Error()
}

// WriteAscents writes route,clean,page rows from ds.Input.
func WriteAscents(w io.Writer, ds *Dataset) error {
	in := ds.Input
	if len(in.AscentsClean) != len(in.AscentsRoute) {
		return fmt.Errorf("%w: %d routes, %d outcomes", ErrMalformed, len(in.AscentsRoute), len(in.AscentsClean))
	}
	cw := csv.NewWriter(w)
	_ = cw.Write([]string{"route", "clean", "page"})
	for p, s := range in.AscentsPageSlices {
		if s.Start < 0 || s.End > len(in.AscentsRoute) || s.End < s.Start {
			return fmt.Errorf("%w: page %d slice [%d, %d)", ErrMalformed, p, s.Start, s.End)
		}
		page := strconv.Itoa(p)
		for i := s.Start; i < s.End; i++ {
			r := in.AscentsRoute[i]
			if r < 0 || r >= len(ds.RouteNames) {
				return fmt.Errorf("%w: ascent %d route %d", ErrUnknownRef, i, r)
			}
			_ = cw.Write([]string{ds.RouteNames[r], formatFloat(in.AscentsClean[i]), page})
		}
	}
	cw.Flush()
	return cw.Error()
}

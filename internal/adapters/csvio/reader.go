// Package csvio reads ascent histories from CSV files into estimator input
// and writes rating estimates back out.
//
// A data directory holds three files:
//
//	routes.csv   route,grade
//	pages.csv    climber,timestamp
//	ascents.csv  route,clean,page
//
// Pages are grouped by climber and ordered by timestamp (Unix seconds)
// within a climber. Ascents reference routes by name and pages by their
// zero-based row in pages.csv, and are ordered by page.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/okian/climbratings/internal/domain/ascents"
	"github.com/okian/climbratings/internal/domain/whr"
)

// File names inside a data directory.
const (
	RoutesFile       = "routes.csv"
	PagesFile        = "pages.csv"
	AscentsFile      = "ascents.csv"
	RouteRatingsFile = "route_ratings.csv"
	PageRatingsFile  = "page_ratings.csv"
)

// Dataset is estimator input together with the names it was read from.
type Dataset struct {
	Input whr.Input

	RouteNames     []string
	PageClimbers   []string // climber of each page
	PageTimestamps []int64
	Climbers       []string // one per climber slice in Input.PagesClimberSlices
}

// ReadDir loads routes.csv, pages.csv and ascents.csv from dir.
func ReadDir(dir string) (*Dataset, error) {
	var ds Dataset
	var err error

	if err = readFile(filepath.Join(dir, RoutesFile), func(r io.Reader) error {
		ds.RouteNames, ds.Input.RoutesGrade, err = ReadRoutes(r)
		return err
	}); err != nil {
		return nil, err
	}

	var pages Pages
	if err = readFile(filepath.Join(dir, PagesFile), func(r io.Reader) error {
		pages, err = ReadPages(r)
		return err
	}); err != nil {
		return nil, err
	}
	ds.PageClimbers = pages.Climber
	ds.PageTimestamps = pages.Timestamp
	ds.Climbers = pages.Climbers
	ds.Input.PagesClimberSlices = pages.ClimberSlices
	ds.Input.PagesGap = pages.Gap

	routeIndex := make(map[string]int, len(ds.RouteNames))
	for i, name := range ds.RouteNames {
		routeIndex[name] = i
	}
	if err = readFile(filepath.Join(dir, AscentsFile), func(r io.Reader) error {
		a, err := ReadAscents(r, routeIndex, len(pages.Climber))
		if err != nil {
			return err
		}
		ds.Input.AscentsRoute = a.Route
		ds.Input.AscentsClean = a.Clean
		ds.Input.AscentsPageSlices = a.PageSlices
		return nil
	}); err != nil {
		return nil, err
	}
	return &ds, nil
}

func readFile(path string, fn func(io.Reader) error) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()
	if err := fn(f); err != nil {
		return fmt.Errorf("%s: %w", filepath.Base(path), err)
	}
	return nil
}

// ReadRoutes parses route,grade rows. Route names must be unique.
func ReadRoutes(r io.Reader) (names []string, grades []float64, err error) {
	seen := make(map[string]struct{})
	err = readRows(r, []string{"route", "grade"}, func(line int, rec []string) error {
		name := rec[0]
		if _, dup := seen[name]; dup {
			return fmt.Errorf("%w: line %d: duplicate route %q", ErrMalformed, line, name)
		}
		seen[name] = struct{}{}
		grade, err := strconv.ParseFloat(rec[1], 64)
		if err != nil {
			return fmt.Errorf("%w: line %d: grade: %w", ErrMalformed, line, err)
		}
		names = append(names, name)
		grades = append(grades, grade)
		return nil
	})
	return names, grades, err
}

// Pages is the parsed form of pages.csv.
type Pages struct {
	Climber   []string
	Timestamp []int64
	// Gap is the seconds since the climber's previous page, 0 for first pages.
	Gap           []float64
	Climbers      []string
	ClimberSlices []ascents.Slice
}

// ReadPages parses climber,timestamp rows. A climber's pages must be
// contiguous and strictly increasing in time.
func ReadPages(r io.Reader) (Pages, error) {
	var p Pages
	done := make(map[string]struct{})
	err := readRows(r, []string{"climber", "timestamp"}, func(line int, rec []string) error {
		climber := rec[0]
		ts, err := strconv.ParseInt(rec[1], 10, 64)
		if err != nil {
			return fmt.Errorf("%w: line %d: timestamp: %w", ErrMalformed, line, err)
		}

		page := len(p.Climber)
		n := len(p.Climbers)
		switch {
		case n > 0 && p.Climbers[n-1] == climber:
			prev := p.Timestamp[page-1]
			if ts <= prev {
				return fmt.Errorf("%w: line %d: climber %q timestamp %d not after %d", ErrOrder, line, climber, ts, prev)
			}
			p.Gap = append(p.Gap, float64(ts-prev))
			p.ClimberSlices[n-1].End = page + 1
		default:
			if _, ok := done[climber]; ok {
				return fmt.Errorf("%w: line %d: pages of climber %q are not contiguous", ErrOrder, line, climber)
			}
			done[climber] = struct{}{}
			p.Gap = append(p.Gap, 0)
			p.Climbers = append(p.Climbers, climber)
			p.ClimberSlices = append(p.ClimberSlices, ascents.Slice{Start: page, End: page + 1})
		}
		p.Climber = append(p.Climber, climber)
		p.Timestamp = append(p.Timestamp, ts)
		return nil
	})
	return p, err
}

// Ascents is the parsed form of ascents.csv.
type Ascents struct {
	Route []int
	Clean []float64
	// PageSlices has one slice per page, empty for pages without ascents.
	PageSlices []ascents.Slice
}

// ReadAscents parses route,clean,page rows. Routes are looked up by name and
// pages by index; rows must be ordered by page.
func ReadAscents(r io.Reader, routeIndex map[string]int, numPages int) (Ascents, error) {
	a := Ascents{PageSlices: make([]ascents.Slice, numPages)}
	cur := 0
	err := readRows(r, []string{"route", "clean", "page"}, func(line int, rec []string) error {
		route, ok := routeIndex[rec[0]]
		if !ok {
			return fmt.Errorf("%w: line %d: route %q", ErrUnknownRef, line, rec[0])
		}
		clean, err := parseClean(rec[1])
		if err != nil {
			return fmt.Errorf("%w: line %d: clean: %w", ErrMalformed, line, err)
		}
		page, err := strconv.Atoi(rec[2])
		if err != nil {
			return fmt.Errorf("%w: line %d: page: %w", ErrMalformed, line, err)
		}
		if page < 0 || page >= numPages {
			return fmt.Errorf("%w: line %d: page %d of %d", ErrUnknownRef, line, page, numPages)
		}
		if page < cur {
			return fmt.Errorf("%w: line %d: page %d after page %d", ErrOrder, line, page, cur)
		}

		i := len(a.Route)
		// Close every page up to this one.
		for ; cur < page; cur++ {
			a.PageSlices[cur+1] = ascents.Slice{Start: i, End: i}
		}
		a.PageSlices[page].End = i + 1

		a.Route = append(a.Route, route)
		a.Clean = append(a.Clean, clean)
		return nil
	})
	if err != nil {
		return Ascents{}, err
	}
	end := len(a.Route)
	for cur++; cur < numPages; cur++ {
		a.PageSlices[cur] = ascents.Slice{Start: end, End: end}
	}
	return a, nil
}

// parseClean accepts true/false or a number in [0, 1].
func parseClean(s string) (float64, error) {
	switch strings.ToLower(s) {
	case "true":
		return 1, nil
	case "false":
		return 0, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, err
	}
	if !(v >= 0 && v <= 1) {
		return 0, fmt.Errorf("%g outside [0, 1]", v)
	}
	return v, nil
}

// readRows checks the header against want and calls fn for each record with
// its 1-based line number. Columns may appear in any order; extra columns are
// ignored.
func readRows(r io.Reader, want []string, fn func(line int, rec []string) error) error {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: missing header row", ErrMalformed)
		}
		return fmt.Errorf("%w: header: %w", ErrMalformed, err)
	}
	cols := make([]int, len(want))
	for i, name := range want {
		cols[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				cols[i] = j
				break
			}
		}
		if cols[i] < 0 {
			return fmt.Errorf("%w: missing column %q", ErrMalformed, name)
		}
	}

	rec := make([]string, len(want))
	for line := 2; ; line++ {
		raw, err := cr.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: line %d: %w", ErrMalformed, line, err)
		}
		for i, c := range cols {
			rec[i] = strings.TrimSpace(raw[c])
		}
		if err := fn(line, rec); err != nil {
			return err
		}
	}
}

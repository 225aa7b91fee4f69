package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/smartystreets/goconvey/convey"

	"github.com/okian/climbratings/internal/adapters/csvio"
)

func writeData(t *testing.T) string {
	dir := t.TempDir()
	files := map[string]string{
		csvio.RoutesFile:  "route,grade\nslab,0.5\nroof,2\n",
		csvio.PagesFile:   "climber,timestamp\nana,100\nana,86500\nben,100\n",
		csvio.AscentsFile: "route,clean,page\nslab,1,0\nroof,0,0\nroof,1,1\nslab,0,2\nroof,0,2\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func execute(args ...string) (string, string, error) {
	var stdout, stderr bytes.Buffer
	root := newRootCmd()
	root.SetOut(&stdout)
	root.SetErr(&stderr)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestVersionCommand(t *testing.T) {
	convey.Convey("Given the version command", t, func() {
		out, _, err := execute("version")

		convey.Convey("Then it prints build information", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldStartWith, "climbratings dev")
		})
	})
}

func TestEstimateCommand(t *testing.T) {
	convey.Convey("Given a data directory", t, func() {
		data := writeData(t)

		convey.Convey("When estimating with an output directory", func() {
			outDir := filepath.Join(t.TempDir(), "ratings")
			out, _, err := execute("estimate", "--data", data, "--out", outDir, "--top", "2", "--tolerance", "1e-8")

			convey.Convey("Then it reports convergence and the ranking", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(out, convey.ShouldContainSubstring, "converged after")
				lines := strings.Split(strings.TrimSpace(out), "\n")
				convey.So(lines, convey.ShouldHaveLength, 4)
				convey.So(lines[1], convey.ShouldStartWith, "RANK")
				convey.So(lines[2], convey.ShouldContainSubstring, "ana")
			})

			convey.Convey("Then it writes the estimates", func() {
				_, err := os.Stat(filepath.Join(outDir, csvio.PageRatingsFile))
				convey.So(err, convey.ShouldBeNil)
			})
		})

		convey.Convey("When a metrics file is requested", func() {
			path := filepath.Join(t.TempDir(), "climbratings.prom")
			_, _, err := execute("estimate", "--data", data, "--metrics-file", path)

			convey.Convey("Then the registry is dumped to it", func() {
				convey.So(err, convey.ShouldBeNil)
				b, err := os.ReadFile(path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(b), convey.ShouldContainSubstring, "climbratings_whr_iterations_total")
			})
		})

		convey.Convey("When metric names and labels are configured", func() {
			_ = os.Setenv("CLIMBRATINGS_METRICS_NAMESPACE", "gym")
			_ = os.Setenv("CLIMBRATINGS_METRICS_LABELS", "dataset=sample")
			defer func() {
				_ = os.Unsetenv("CLIMBRATINGS_METRICS_NAMESPACE")
				_ = os.Unsetenv("CLIMBRATINGS_METRICS_LABELS")
			}()
			path := filepath.Join(t.TempDir(), "gym.prom")
			_, _, err := execute("estimate", "--data", data, "--metrics-file", path)

			convey.Convey("Then the dump uses them", func() {
				convey.So(err, convey.ShouldBeNil)
				b, err := os.ReadFile(path)
				convey.So(err, convey.ShouldBeNil)
				convey.So(string(b), convey.ShouldContainSubstring, `gym_whr_iterations_total{dataset="sample"}`)
			})
		})

		convey.Convey("When the climber mean flag is not a number", func() {
			_, _, err := execute("estimate", "--data", data, "--climber-mean", "NaN")

			convey.Convey("Then validation rejects it", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "ClimberMean")
			})
		})

		convey.Convey("When strict mode hits the iteration cap", func() {
			_, _, err := execute("estimate", "--data", data, "--strict", "--max-iterations", "1", "--tolerance", "1e-12")

			convey.Convey("Then it fails with the non-convergence error", func() {
				convey.So(errors.Is(err, errNotConverged), convey.ShouldBeTrue)
			})
		})

		convey.Convey("When a flag value is invalid", func() {
			_, _, err := execute("estimate", "--data", data, "--init", "elo")

			convey.Convey("Then validation rejects it", func() {
				convey.So(err, convey.ShouldNotBeNil)
				convey.So(err.Error(), convey.ShouldContainSubstring, "InitialRouteRatings")
			})
		})

		convey.Convey("When logging as json", func() {
			_, logs, err := execute("estimate", "--data", data, "--log-format", "json", "--top", "0")

			convey.Convey("Then stage logs are json lines", func() {
				convey.So(err, convey.ShouldBeNil)
				convey.So(logs, convey.ShouldContainSubstring, `"stage":"estimate"`)
			})
		})
	})

	convey.Convey("Given no data directory", t, func() {
		_, _, err := execute("estimate")

		convey.Convey("Then the required flag is reported", func() {
			convey.So(err, convey.ShouldNotBeNil)
			convey.So(err.Error(), convey.ShouldContainSubstring, "data")
		})
	})
}

func TestSimulateCommand(t *testing.T) {
	convey.Convey("Given the simulate command", t, func() {
		dir := filepath.Join(t.TempDir(), "history")
		out, _, err := execute("simulate", "--climbers", "30", "--routes", "15", "--seed", "7", "--write", dir)

		convey.Convey("Then it reports recovery quality", func() {
			convey.So(err, convey.ShouldBeNil)
			convey.So(out, convey.ShouldContainSubstring, "routes: spearman")
			convey.So(out, convey.ShouldContainSubstring, "pages:  spearman")
		})

		convey.Convey("Then the written history can be estimated", func() {
			_, _, err := execute("estimate", "--data", dir)
			convey.So(err, convey.ShouldBeNil)
		})
	})
}

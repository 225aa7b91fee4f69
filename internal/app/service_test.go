package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/okian/climbratings/internal/adapters/csvio"
	"github.com/okian/climbratings/internal/adapters/repository"
	"github.com/okian/climbratings/internal/domain/ascents"
	service "github.com/okian/climbratings/internal/app"
	"github.com/okian/climbratings/internal/domain/whr"
	"github.com/okian/climbratings/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

// Two climbers share three routes. ana sends most of them, ben few.
var dataFiles = map[string]string{
	csvio.RoutesFile: `route,grade
warmup,0.5
project,2
classic,1
`,
	csvio.PagesFile: `climber,timestamp
ana,1700000000
ana,1700604800
ben,1700000000
`,
	csvio.AscentsFile: `route,clean,page
warmup,1,0
classic,1,0
project,0,0
warmup,1,1
project,1,1
classic,1,1
warmup,1,2
classic,0,2
project,0,2
`,
}

func writeDataDir(t *testing.T) string {
	dir := t.TempDir()
	for name, content := range dataFiles {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	return dir
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have an empty ranking store", func() {
			So(svc, ShouldNotBeNil)
			So(svc.Store(), ShouldNotBeNil)
			So(svc.Store().Count(context.Background()), ShouldEqual, 0)
		})
	})

	Convey("Given a new service with a custom store", t, func() {
		store := repository.NewRankingStore()
		svc := service.New(service.WithStore(store), service.WithTopN(3))

		Convey("Then it should use that store", func() {
			So(svc.Store(), ShouldEqual, store)
		})
	})
}

func TestService_Run(t *testing.T) {
	Convey("Given a data directory", t, func() {
		ctx := context.Background()
		dataDir := writeDataDir(t)
		outDir := filepath.Join(t.TempDir(), "out")
		svc := service.New(
			service.WithTopN(1),
			service.WithEstimatorOptions(whr.WithTolerance(1e-9), whr.WithWorkers(2)),
		)

		Convey("When running the pipeline", func() {
			report, err := svc.Run(ctx, dataDir, outDir)

			Convey("Then the estimate converges", func() {
				So(err, ShouldBeNil)
				So(report.Result.Converged, ShouldBeTrue)
				So(report.Estimates.RouteRatings, ShouldHaveLength, 3)
				So(report.Estimates.PageRatings, ShouldHaveLength, 3)
			})

			Convey("Then the stronger climber ranks first", func() {
				So(report.Top, ShouldHaveLength, 1)
				So(report.Top[0].ClimberID, ShouldEqual, "ana")
				So(report.Top[0].Timestamp, ShouldEqual, 1700604800)

				ben, err := svc.Store().Rank(ctx, "ben")
				So(err, ShouldBeNil)
				So(ben.Rank, ShouldEqual, 2)
			})

			Convey("Then the harder route is rated above the easier one", func() {
				r := report.Estimates.RouteRatings
				So(r[1], ShouldBeGreaterThan, r[0])
			})

			Convey("Then estimates are written to the output directory", func() {
				for _, name := range []string{csvio.RouteRatingsFile, csvio.PageRatingsFile} {
					_, err := os.Stat(filepath.Join(outDir, name))
					So(err, ShouldBeNil)
				}
			})
		})

		Convey("When no output directory is given", func() {
			_, err := svc.Run(ctx, dataDir, "")

			Convey("Then nothing is written", func() {
				So(err, ShouldBeNil)
				_, err := os.Stat(outDir)
				So(os.IsNotExist(err), ShouldBeTrue)
			})
		})

		Convey("When the data directory does not exist", func() {
			_, err := svc.Run(ctx, filepath.Join(dataDir, "missing"), "")

			Convey("Then the load stage fails", func() {
				So(err, ShouldNotBeNil)
				So(err.Error(), ShouldStartWith, service.StageLoad+":")
			})
		})

		Convey("When the context is cancelled", func() {
			cctx, cancel := context.WithCancel(ctx)
			cancel()
			_, err := svc.Run(cctx, dataDir, "")

			Convey("Then the estimate stage reports the cancellation", func() {
				So(errors.Is(err, context.Canceled), ShouldBeTrue)
				So(err.Error(), ShouldStartWith, service.StageEstimate+":")
			})
		})
	})
}

func TestService_Estimate(t *testing.T) {
	Convey("Given a dataset the estimator rejects", t, func() {
		svc := service.New()
		ds := &csvio.Dataset{Input: whr.Input{
			AscentsPageSlices:  []ascents.Slice{{Start: 0, End: 0}},
			PagesClimberSlices: []ascents.Slice{{Start: 0, End: 1}},
			PagesGap:           []float64{0},
			RoutesGrade:        []float64{-1},
		}}

		Convey("When estimating", func() {
			_, err := svc.Estimate(context.Background(), ds)

			Convey("Then the precondition error is returned", func() {
				So(errors.Is(err, whr.ErrPrecondition), ShouldBeTrue)
			})
		})
	})

	Convey("Given an iteration cap of one", t, func() {
		svc := service.New(service.WithEstimatorOptions(whr.WithMaxIterations(1), whr.WithTolerance(1e-12)))
		ds, err := csvio.ReadDir(writeDataDir(t))
		So(err, ShouldBeNil)

		Convey("When estimating", func() {
			report, err := svc.Estimate(context.Background(), ds)

			Convey("Then the report flags non-convergence without failing", func() {
				So(err, ShouldBeNil)
				So(report.Result.Converged, ShouldBeFalse)
				So(report.Top, ShouldHaveLength, 2)
			})
		})
	})
}

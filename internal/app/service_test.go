package service_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	service "github.com/okian/shift/internal/app"
	"github.com/okian/shift/internal/catalog"
	"github.com/okian/shift/internal/domain/model"
	"github.com/okian/shift/internal/domain/scoring"
	"github.com/okian/shift/pkg/logger"
	. "github.com/smartystreets/goconvey/convey"
)

func init() {
	// Initialize logging for tests
	err := logger.Init()
	if err != nil {
		panic(err)
	}
}

func testCatalog() *catalog.Static {
	return catalog.NewStatic([]model.Question{
		{ID: "E1", Pillar: model.Environmental, Title: "Energy is metered", Category: "Energy"},
		{ID: "E2", Pillar: model.Environmental, Title: "Water is tracked", Category: "Water"},
		{ID: "S1", Pillar: model.Social, Title: "Inclusive hiring"},
		{ID: "G1", Pillar: model.Governance, Title: "Board oversight", Category: "Board"},
	})
}

func startedService(opts ...service.Option) *service.Service {
	opts = append([]service.Option{
		service.WithCatalog(testCatalog()),
		service.WithWorkerCount(2),
		service.WithQueueSize(100),
	}, opts...)
	svc := service.New(opts...)
	So(svc.Start(context.Background()), ShouldBeNil)
	return svc
}

func TestService_New(t *testing.T) {
	Convey("Given a new service with default options", t, func() {
		svc := service.New()

		Convey("Then it should have sensible defaults", func() {
			So(svc, ShouldNotBeNil)
			stats := svc.GetStats()
			So(stats["started"], ShouldEqual, false)
			So(stats["queueSize"], ShouldEqual, 10_000)
			So(stats["dedupeSize"], ShouldEqual, 50_000)
			So(stats["shardCount"], ShouldEqual, 8)
		})
	})

	Convey("Given a new service with custom options", t, func() {
		svc := service.New(
			service.WithWorkerCount(8),
			service.WithQueueSize(50_000),
			service.WithDedupeSize(25_000),
			service.WithShardCount(2),
		)

		Convey("Then the options should be applied", func() {
			stats := svc.GetStats()
			So(stats["workerCount"], ShouldEqual, 8)
			So(stats["queueSize"], ShouldEqual, 50_000)
			So(stats["shardCount"], ShouldEqual, 2)
		})
	})
}

func TestService_Lifecycle(t *testing.T) {
	Convey("Given a service that was never started", t, func() {
		svc := service.New(service.WithCatalog(testCatalog()))

		Convey("Then operations should fail with ErrNotStarted", func() {
			_, err := svc.CreateAssessment(context.Background(), "")
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
			_, err = svc.Catalog(context.Background(), "", false)
			So(errors.Is(err, service.ErrNotStarted), ShouldBeTrue)
		})

		Convey("Then stopping it should be a no-op", func() {
			So(func() { svc.Stop() }, ShouldNotPanic)
		})
	})

	Convey("Given a started service", t, func() {
		svc := startedService()
		defer svc.Stop()

		Convey("When starting it again", func() {
			err := svc.Start(context.Background())

			Convey("Then it should be a no-op", func() {
				So(err, ShouldBeNil)
				So(svc.GetStats()["started"], ShouldEqual, true)
			})
		})

		Convey("When stopping and starting it again", func() {
			svc.Stop()
			So(svc.GetStats()["started"], ShouldEqual, false)
			So(svc.Start(context.Background()), ShouldBeNil)

			Convey("Then it should accept requests again", func() {
				a, err := svc.CreateAssessment(context.Background(), "")
				So(err, ShouldBeNil)
				So(a.ID, ShouldNotBeEmpty)
			})
		})
	})

	Convey("Given a service restarted while requests are in flight", t, func() {
		svc := startedService()
		defer svc.Stop()
		ctx := context.Background()

		var wg sync.WaitGroup
		stop := make(chan struct{})
		var unexpected atomic.Int64
		for i := 0; i < 4; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for {
					select {
					case <-stop:
						return
					default:
					}
					_, err := svc.SubmitAnswers(ctx, "restart", service.Submission{Area: "E", Answers: map[string]float64{"E1": 3}})
					if err != nil && !errors.Is(err, service.ErrNotStarted) {
						unexpected.Add(1)
					}
					_, err = svc.Summary(ctx, "restart")
					if err != nil && !errors.Is(err, service.ErrNotStarted) && !service.IsNotFound(err) {
						unexpected.Add(1)
					}
					_, err = svc.Scores(ctx, "restart")
					if err != nil && !errors.Is(err, service.ErrNotStarted) && !service.IsNotFound(err) {
						unexpected.Add(1)
					}
				}
			}()
		}
		for i := 0; i < 20; i++ {
			svc.Stop()
			So(svc.Start(ctx), ShouldBeNil)
		}
		close(stop)
		wg.Wait()

		Convey("Then every request sees either a running service or ErrNotStarted", func() {
			So(unexpected.Load(), ShouldEqual, 0)
			So(svc.GetStats()["started"], ShouldEqual, true)
		})
	})

	Convey("Given a service whose catalog file is missing", t, func() {
		svc := service.New(service.WithCatalogPath("/nonexistent/matrix.yaml"), service.WithWorkerCount(1))
		err := svc.Start(context.Background())
		defer svc.Stop()

		Convey("Then it should still start", func() {
			So(err, ShouldBeNil)
		})

		Convey("Then catalog requests should report the error", func() {
			_, err := svc.Catalog(context.Background(), "", false)
			So(errors.Is(err, catalog.ErrLoadCatalog), ShouldBeTrue)
		})
	})
}

func TestService_Catalog(t *testing.T) {
	Convey("Given a started service", t, func() {
		svc := startedService()
		defer svc.Stop()
		ctx := context.Background()

		Convey("When listing every question", func() {
			rows, err := svc.Catalog(ctx, "", false)

			Convey("Then all rows are returned in catalog order", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 4)
				So(rows[0].ID, ShouldEqual, "E1")
			})
		})

		Convey("When filtering by pillar with refresh", func() {
			rows, err := svc.Catalog(ctx, "g", true)

			Convey("Then only that pillar is returned", func() {
				So(err, ShouldBeNil)
				So(len(rows), ShouldEqual, 1)
				So(rows[0].ID, ShouldEqual, "G1")
			})
		})
	})
}

func TestService_SubmitAnswers(t *testing.T) {
	Convey("Given a started service with one assessment", t, func() {
		svc := startedService()
		defer svc.Stop()
		ctx := context.Background()

		a, err := svc.CreateAssessment(ctx, "Owner@Example.org")
		So(err, ShouldBeNil)
		So(a.UserID, ShouldNotBeEmpty)

		Convey("When the area is missing", func() {
			_, err := svc.SubmitAnswers(ctx, a.ID, service.Submission{Answers: map[string]float64{"E1": 3}})

			Convey("Then it should be a bad request", func() {
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
			})
		})

		Convey("When the answers are missing", func() {
			_, err := svc.SubmitAnswers(ctx, a.ID, service.Submission{Area: "E"})

			Convey("Then it should be a bad request", func() {
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
			})
		})

		Convey("When the area is not a pillar", func() {
			_, err := svc.SubmitAnswers(ctx, a.ID, service.Submission{Area: "X", Answers: map[string]float64{}})

			Convey("Then it should be a bad request", func() {
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
			})
		})

		Convey("When a rating is too large to average", func() {
			_, err := svc.SubmitAnswers(ctx, a.ID, service.Submission{Area: "E", Answers: map[string]float64{"E1": 1e308}})

			Convey("Then it should be a bad request and nothing stored", func() {
				So(errors.Is(err, service.ErrBadRequest), ShouldBeTrue)
				sum, err := svc.Summary(ctx, a.ID)
				So(err, ShouldBeNil)
				So(sum.Your.E, ShouldEqual, 0)
			})
		})

		Convey("When answers are submitted", func() {
			note := "metered monthly"
			dup, err := svc.SubmitAnswers(ctx, a.ID, service.Submission{
				Area:         "e",
				Answers:      map[string]float64{"E1": 4, "E2": 5},
				Evidence:     &note,
				SubmissionID: "sub-1",
			})

			Convey("Then they should be stored", func() {
				So(err, ShouldBeNil)
				So(dup, ShouldBeFalse)

				sum, err := svc.Summary(ctx, a.ID)
				So(err, ShouldBeNil)
				So(sum.OK, ShouldBeTrue)
				So(sum.Your.E, ShouldEqual, 4.5)
				So(sum.Overall, ShouldEqual, 4.5)
			})

			Convey("And the same submission id is replayed", func() {
				dup, err := svc.SubmitAnswers(ctx, a.ID, service.Submission{
					Area:         "E",
					Answers:      map[string]float64{"E1": 1, "E2": 1},
					SubmissionID: "sub-1",
				})

				Convey("Then it should be reported as a duplicate and change nothing", func() {
					So(err, ShouldBeNil)
					So(dup, ShouldBeTrue)
					sum, err := svc.Summary(ctx, a.ID)
					So(err, ShouldBeNil)
					So(sum.Your.E, ShouldEqual, 4.5)
				})
			})

			Convey("And a later submission overwrites a rating", func() {
				_, err := svc.SubmitAnswers(ctx, a.ID, service.Submission{
					Area:    "E",
					Answers: map[string]float64{"E1": 2},
				})

				Convey("Then the average should follow", func() {
					So(err, ShouldBeNil)
					sum, err := svc.Summary(ctx, a.ID)
					So(err, ShouldBeNil)
					So(sum.Your.E, ShouldEqual, 3.5)
				})
			})
		})

		Convey("When answers target an id the server never issued", func() {
			_, err := svc.SubmitAnswers(ctx, "external-id", service.Submission{
				Area:    "G",
				Answers: map[string]float64{"G1": 3},
				UserID:  "user-42",
			})

			Convey("Then the assessment should be created on the fly", func() {
				So(err, ShouldBeNil)
				sum, err := svc.Summary(ctx, "external-id")
				So(err, ShouldBeNil)
				So(sum.Your.G, ShouldEqual, 3.0)
			})
		})
	})
}

func TestService_Scoring(t *testing.T) {
	Convey("Given an assessment with environmental answers", t, func() {
		svc := startedService()
		defer svc.Stop()
		ctx := context.Background()

		a, err := svc.CreateAssessment(ctx, "")
		So(err, ShouldBeNil)
		_, err = svc.SubmitAnswers(ctx, a.ID, service.Submission{Area: "E", Answers: map[string]float64{"E1": 4, "E2": 5}})
		So(err, ShouldBeNil)

		Convey("When requesting the detailed score", func() {
			res, err := svc.Detailed(ctx, a.ID)

			Convey("Then categories should share the pillar budget equally", func() {
				So(err, ShouldBeNil)
				e := res.Pillar(model.Environmental)
				So(len(e.Categories), ShouldEqual, 2)
				So(e.Categories[0].Category, ShouldEqual, "Energy")
				So(e.Categories[0].MaxPoints, ShouldEqual, 35.0)
				So(e.Categories[0].Points, ShouldEqual, 28.0)
				So(e.Categories[1].Points, ShouldEqual, 35.0)
				So(res.TotalPoints, ShouldEqual, 63.0)
				So(res.Maturity, ShouldEqual, scoring.Initial)
			})

			Convey("Then the result should become the latest snapshot", func() {
				snap, err := svc.LatestResult(ctx, a.ID)
				So(err, ShouldBeNil)
				So(snap.Result.TotalPoints, ShouldEqual, 63.0)
			})
		})

		Convey("When requesting the chart scores", func() {
			view, err := svc.Scores(ctx, a.ID)

			Convey("Then pillars without data should use the benchmark fallback", func() {
				So(err, ShouldBeNil)
				So(view.Your.E, ShouldEqual, 4.5)
				So(view.Avg.E, ShouldEqual, 4.5)
				So(view.Avg.S, ShouldEqual, 3.1)
				So(view.Avg.G, ShouldEqual, 3.5)
				So(view.Overall.Your, ShouldEqual, 4.5)
				So(view.Overall.Avg, ShouldEqual, 3.7)
				So(view.CompletedCount, ShouldEqual, 1)
			})
		})

		Convey("When asking about an unknown assessment", func() {
			_, sumErr := svc.Summary(ctx, "missing")
			_, detErr := svc.Detailed(ctx, "missing")
			_, scoresErr := svc.Scores(ctx, "missing")
			_, resErr := svc.LatestResult(ctx, "missing")

			Convey("Then every read should report not found", func() {
				So(service.IsNotFound(sumErr), ShouldBeTrue)
				So(service.IsNotFound(detErr), ShouldBeTrue)
				So(service.IsNotFound(scoresErr), ShouldBeTrue)
				So(service.IsNotFound(resErr), ShouldBeTrue)
			})
		})
	})
}

func TestService_GetStats(t *testing.T) {
	Convey("Given a started service with submissions", t, func() {
		svc := startedService(service.WithClock(func() time.Time { return time.Unix(0, 0) }))
		defer svc.Stop()
		ctx := context.Background()

		a, err := svc.CreateAssessment(ctx, "")
		So(err, ShouldBeNil)
		_, err = svc.SubmitAnswers(ctx, a.ID, service.Submission{Area: "S", Answers: map[string]float64{"S1": 3}, SubmissionID: "s"})
		So(err, ShouldBeNil)

		Convey("When getting stats", func() {
			stats := svc.GetStats()

			Convey("Then they should include runtime counters", func() {
				So(stats["started"], ShouldEqual, true)
				So(stats["totalAssessments"], ShouldEqual, 1)
				So(stats["seenSubmissions"], ShouldEqual, 1)
				So(stats, ShouldContainKey, "queueLength")
				So(stats, ShouldContainKey, "rescored")
			})
		})
	})
}

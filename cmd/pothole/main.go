// Command pothole detects potholes in road survey videos and writes a
// per-run report.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/banshee-data/pothole.report/internal/api"
	"github.com/banshee-data/pothole.report/internal/config"
	"github.com/banshee-data/pothole.report/internal/db"
	"github.com/banshee-data/pothole.report/internal/monitoring"
	"github.com/banshee-data/pothole.report/internal/pipeline"
	"github.com/banshee-data/pothole.report/internal/report"
	"github.com/banshee-data/pothole.report/internal/version"
	"github.com/banshee-data/pothole.report/internal/video"
	"github.com/banshee-data/pothole.report/internal/yolo"
)

var (
	videoPath  = flag.String("video", "", "Input video file")
	street     = flag.String("street", "", "Street name covered by the video")
	direction  = flag.String("direction", "", "Travel direction")
	city       = flag.String("city", "", "City (defaults to the tuning file's default_city)")
	batchPath  = flag.String("batch", "", "JSON batch list of {video, street, direction, city} jobs")
	configPath = flag.String("config", "", "Tuning config JSON (built-in defaults when empty)")

	confidence = flag.Float64("confidence", -1, "Override confidence_threshold (exclusive)")
	stride     = flag.Int("stride", -1, "Override frame_stride")

	modelPath = flag.String("model", "models/pothole.onnx", "YOLOv8 ONNX model")
	ortLib    = flag.String("ort-lib", "", "Path to the onnxruntime shared library")

	jsonPath  = flag.String("json", report.DefaultJSONPath, "Report collection file (empty to disable)")
	dbPath    = flag.String("db", "", "SQLite report database (empty to disable)")
	outputDir = flag.String("output", "", "Directory for annotated output videos (empty to disable)")
	chartDir  = flag.String("chart-dir", "", "Directory for severity histogram PNGs (empty to disable)")
	listen    = flag.String("listen", "", "Serve the report API on this address until interrupted")

	debug        = flag.Bool("debug", false, "Log per-frame diagnostics to stderr")
	printVersion = flag.Bool("version", false, "Print version and exit")
)

func main() {
	flag.Parse()

	if *printVersion {
		fmt.Println("pothole", version.String())
		return
	}
	os.Exit(run())
}

func run() int {
	var diag io.Writer = io.Discard
	if *debug {
		diag = os.Stderr
	}
	pipeline.SetLogWriters(os.Stderr, diag, diag)
	monitoring.SetLogger(log.Printf)

	tuning, err := loadTuning(*configPath)
	if err != nil {
		log.Printf("invalid config: %v", err)
		return 1
	}

	// -listen alone serves existing reports without processing anything.
	var jobs []pipeline.Job
	if *listen == "" || *batchPath != "" || *videoPath != "" {
		if jobs, err = buildJobs(tuning); err != nil {
			log.Printf("%v", err)
			flag.Usage()
			return 2
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sinks, reader, cleanup, err := openStores(*jsonPath, *dbPath)
	if err != nil {
		log.Printf("failed to open report store: %v", err)
		return 1
	}
	defer cleanup()

	var wg sync.WaitGroup
	if *listen != "" {
		srv, err := newHTTPServer(*listen, reader)
		if err != nil {
			log.Printf("failed to set up HTTP server: %v", err)
			return 1
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			serve(ctx, srv)
		}()
	}

	code := 0
	if len(jobs) > 0 {
		code = process(ctx, tuning, jobs, sinks)
	}

	if *listen != "" {
		<-ctx.Done()
		wg.Wait()
	}
	return code
}

// loadTuning reads the tuning file and applies command-line overrides.
func loadTuning(path string) (*config.TuningConfig, error) {
	t := config.EmptyTuningConfig()
	if path != "" {
		var err error
		if t, err = config.LoadTuningConfig(path); err != nil {
			return nil, err
		}
	}
	if *confidence >= 0 {
		v := *confidence
		t.ConfidenceThreshold = &v
	}
	if *stride >= 0 {
		v := *stride
		t.FrameStride = &v
	}
	if err := t.Validate(); err != nil {
		return nil, err
	}
	return t, nil
}

// buildJobs turns -batch or -video/-street into pipeline jobs.
func buildJobs(t *config.TuningConfig) ([]pipeline.Job, error) {
	if *batchPath != "" {
		batch, err := config.LoadBatchConfig(*batchPath, t.GetDefaultCity())
		if err != nil {
			return nil, err
		}
		jobs := make([]pipeline.Job, 0, len(batch.Jobs))
		for _, j := range batch.Jobs {
			jobs = append(jobs, pipeline.Job{Video: j.Video, Street: j.Street, Direction: j.Direction, City: j.City})
		}
		return jobs, nil
	}

	if *videoPath == "" || *street == "" {
		return nil, errors.New("either -batch or both -video and -street are required")
	}
	c := *city
	if c == "" {
		c = t.GetDefaultCity()
	}
	return []pipeline.Job{{Video: *videoPath, Street: *street, Direction: *direction, City: c}}, nil
}

// openStores opens the configured result sinks. The reader serves the API,
// preferring sqlite when both stores are enabled.
func openStores(jsonFile, dbFile string) ([]pipeline.ResultSink, api.ReportReader, func(), error) {
	var sinks []pipeline.ResultSink
	var reader api.ReportReader
	cleanup := func() {}

	if jsonFile != "" {
		store := report.NewJSONStore(jsonFile)
		sinks = append(sinks, store)
		reader = store
	}
	if dbFile != "" {
		database, err := db.NewDB(dbFile)
		if err != nil {
			return nil, nil, cleanup, err
		}
		sinks = append(sinks, database)
		reader = database
		cleanup = func() {
			if err := database.Close(); err != nil {
				log.Printf("failed to close database: %v", err)
			}
		}
	}
	if len(sinks) == 0 {
		return nil, nil, cleanup, errors.New("at least one of -json or -db is required")
	}
	return sinks, reader, cleanup, nil
}

func newHTTPServer(addr string, reader api.ReportReader) (*http.Server, error) {
	mux := http.NewServeMux()
	api.NewServer(reader).Attach(mux)
	if database, ok := reader.(*db.DB); ok {
		if err := database.AttachAdminRoutes(mux); err != nil {
			return nil, err
		}
	}
	return &http.Server{
		Addr:        addr,
		Handler:     mux,
		ReadTimeout: 30 * time.Second,
	}, nil
}

func serve(ctx context.Context, srv *http.Server) {
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Printf("HTTP server shutdown: %v", err)
		}
	}()
	log.Printf("serving reports on %s", srv.Addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Printf("HTTP server failed: %v", err)
	}
}

// process runs every job through the detector and returns the exit code.
func process(ctx context.Context, tuning *config.TuningConfig, jobs []pipeline.Job, sinks []pipeline.ResultSink) int {
	if err := yolo.InitializeRuntime(*ortLib); err != nil {
		log.Printf("%v", err)
		return 1
	}
	defer func() {
		if err := yolo.DestroyRuntime(); err != nil {
			log.Printf("failed to release onnxruntime: %v", err)
		}
	}()

	detector, err := yolo.New(yolo.ConfigFromTuning(*modelPath, tuning))
	if err != nil {
		log.Printf("failed to load model: %v", err)
		return 1
	}
	defer detector.Close()

	opts := []pipeline.Option{
		pipeline.WithOpener(video.Opener),
		pipeline.WithResultSinks(sinks...),
	}
	if *outputDir != "" {
		opts = append(opts, pipeline.WithFrameSinks(video.SinkFactory(*outputDir)))
	}
	p, err := pipeline.New(pipeline.ConfigFromTuning(tuning), detector, opts...)
	if err != nil {
		log.Printf("invalid pipeline config: %v", err)
		return 1
	}

	results := p.RunBatch(ctx, jobs)
	for _, res := range results {
		reportResult(res)
	}
	if n := pipeline.Failed(results); n > 0 {
		log.Printf("%d of %d videos failed", n, len(results))
		return 1
	}
	return 0
}

func reportResult(res pipeline.BatchResult) {
	if res.Err != nil {
		var detErr *pipeline.DetectorError
		switch {
		case errors.Is(res.Err, pipeline.ErrSourceUnavailable):
			log.Printf("%s: cannot open video: %v", res.Job.Video, res.Err)
		case errors.As(res.Err, &detErr):
			log.Printf("%s: detector failed on frame %d: %v", res.Job.Video, detErr.Frame, detErr.Err)
		default:
			log.Printf("%s: %v", res.Job.Video, res.Err)
		}
	}
	r := res.Report
	if r == nil {
		return
	}

	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		log.Printf("failed to encode report: %v", err)
	} else {
		fmt.Println(string(out))
	}

	if *chartDir != "" {
		path := filepath.Join(*chartDir, r.RunID+".png")
		if err := report.WriteHistogramPNG(r, path); err != nil {
			log.Printf("failed to write chart: %v", err)
		}
	}
	log.Printf("%s (%s): %d potholes in %.2fs of video, %.2f/min (small %d, medium %d, large %d)",
		r.Street, r.Direction, r.Total, r.Duration, r.PerMinute,
		r.Statistik.Small, r.Statistik.Medium, r.Statistik.Large)
}

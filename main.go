package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"composition-corrector/annotation"
	"composition-corrector/classifier"
	"composition-corrector/internal/constants"
	"composition-corrector/ocr"
	"composition-corrector/overlay"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// Global Variables and Constants
var (

	// Logger
	log = logrus.New()

	// Environment Variables
	logLevel          = strings.ToLower(os.Getenv("LOG_LEVEL"))
	listenAddress     = envOr("LISTEN_ADDRESS", constants.DefaultListenAddress)
	correctionsFile   = os.Getenv("CORRECTIONS_FILE")
	vocabularyFile    = os.Getenv("VOCABULARY_FILE")
	dbPath            = envOr("DB_PATH", constants.DefaultDBPath)
	ocrProviderName   = os.Getenv("OCR_PROVIDER")
	watchDir          = os.Getenv("WATCH_DIR")
	outputDir         = os.Getenv("OUTPUT_DIR")
	batchWorkers      = envInt("BATCH_WORKERS", constants.DefaultBatchWorkers)
	batchImageTimeout = envDuration("BATCH_IMAGE_TIMEOUT", constants.DefaultBatchImageTimeout)
	jobWorkers        = envInt("JOB_WORKERS", constants.DefaultJobWorkers)
)

// App struct to hold dependencies
type App struct {
	Database    *gorm.DB
	OCRProvider ocr.Provider // nil when no recognizer is configured

	reference  *classifier.ReferenceData
	pipelineMu sync.RWMutex
	pipeline   *overlay.Pipeline
}

func main() {
	initLogger()

	reference, err := classifier.LoadReferenceData(correctionsFile, vocabularyFile)
	if err != nil {
		log.Fatalf("Failed to load reference data: %v", err)
	}
	log.WithFields(logrus.Fields{
		"corrections": reference.CorrectionCount(),
		"vocabulary":  len(reference.Candidates()),
	}).Info("Loaded reference data")

	loadSettings()

	app := &App{
		Database:  InitializeDB(dbPath),
		reference: reference,
	}
	if err := app.applySettings(currentSettings()); err != nil {
		log.Fatalf("Failed to build annotation pipeline: %v", err)
	}

	if ocrProviderName != "" {
		provider, err := ocr.NewProvider(ocr.ConfigFromEnv(ocrProviderName))
		if err != nil {
			log.Fatalf("Failed to initialize OCR provider: %v", err)
		}
		app.OCRProvider = provider
	} else {
		log.Info("OCR_PROVIDER not set, annotate requests must carry recognized words")
	}

	ctx := context.Background()
	if watchDir != "" {
		if outputDir == "" {
			outputDir = watchDir
		}
		StartBackgroundTasks(ctx, app)
	}

	startWorkerPool(app, jobWorkers)

	router := setupRouter(app)
	log.Infof("Server started on %s", listenAddress)
	if err := router.Run(listenAddress); err != nil {
		log.Fatalf("Failed to run server: %v", err)
	}
}

// setupRouter registers every route of the service.
func setupRouter(app *App) *gin.Engine {
	router := gin.Default()

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	{
		api.POST("/classify", app.classifyHandler)
		api.POST("/annotate", app.annotateHandler)

		api.POST("/jobs", app.submitJobHandler)
		api.GET("/jobs", app.getAllJobsHandler)
		api.GET("/jobs/:job_id", app.getJobStatusHandler)
		api.DELETE("/jobs/:job_id", app.cancelJobHandler)
		api.GET("/jobs/:job_id/image", app.getJobImageHandler)

		api.GET("/runs", app.getRunsHandler)
		api.GET("/runs/:id", app.getRunHandler)
		api.GET("/runs/:id/report", app.getRunReportHandler)

		api.GET("/settings", app.getSettingsHandler)
		api.POST("/settings", app.updateSettingsHandler)

		api.GET("/ocr", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"enabled": app.isOcrEnabled(), "provider": ocrProviderName})
		})
	}

	return router
}

func initLogger() {
	switch logLevel {
	case "debug":
		log.SetLevel(logrus.DebugLevel)
	case "info":
		log.SetLevel(logrus.InfoLevel)
	case "warn":
		log.SetLevel(logrus.WarnLevel)
	case "error":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
		if logLevel != "" {
			log.Fatalf("Invalid log level: '%s'.", logLevel)
		}
	}

	log.SetFormatter(&logrus.TextFormatter{
		FullTimestamp: true,
	})

	ocr.SetLogLevel(log.GetLevel())
	overlay.SetLogLevel(log.GetLevel())
}

// buildPipeline wires classifier, style catalog and margin engine from the
// given settings.
func buildPipeline(reference *classifier.ReferenceData, s Settings) (*overlay.Pipeline, error) {
	catalog, err := annotation.DefaultCatalog().WithOverrides(s.Styles)
	if err != nil {
		return nil, fmt.Errorf("style overrides: %w", err)
	}
	return overlay.New(reference,
		[]classifier.Option{
			classifier.WithThreshold(s.SimilarityThreshold),
			classifier.WithMinTokenLength(s.MinTokenLength),
		},
		overlay.WithCatalog(catalog),
		overlay.WithMarginWidth(s.MarginWidth),
	)
}

// applySettings rebuilds the pipeline. In-flight requests keep the
// pipeline they started with.
func (app *App) applySettings(s Settings) error {
	p, err := buildPipeline(app.reference, s)
	if err != nil {
		return err
	}
	app.pipelineMu.Lock()
	app.pipeline = p
	app.pipelineMu.Unlock()
	return nil
}

// Pipeline returns the pipeline currently in use.
func (app *App) Pipeline() *overlay.Pipeline {
	app.pipelineMu.RLock()
	defer app.pipelineMu.RUnlock()
	return app.pipeline
}

func (app *App) isOcrEnabled() bool {
	return app.OCRProvider != nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Warnf("Invalid %s value %q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Warnf("Invalid %s value %q, using %v", key, v, fallback)
		return fallback
	}
	return f
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Warnf("Invalid %s value %q, using %v", key, v, fallback)
		return fallback
	}
	return d
}

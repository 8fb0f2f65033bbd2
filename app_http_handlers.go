package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"composition-corrector/ocr"
	"composition-corrector/report"
	"composition-corrector/wordindex"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

const maxUploadSize = 32 << 20

// classifyHandler handles the POST /api/classify endpoint
func (app *App) classifyHandler(c *gin.Context) {
	words, invalid, err := ocr.DecodeWords(io.LimitReader(c.Request.Body, maxUploadSize))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Invalid request payload: %v", err)})
		log.Errorf("Invalid classify payload: %v", err)
		return
	}

	classified := app.Pipeline().Classifier().ClassifyAll(words)
	c.JSON(http.StatusOK, ClassifyResponse{Words: classified, Invalid: invalidWords(invalid)})
}

// annotateHandler handles the POST /api/annotate endpoint and answers with
// the annotated page as PNG.
func (app *App) annotateHandler(c *gin.Context) {
	in, err := parseAnnotateForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		log.Errorf("Invalid annotate request: %v", err)
		return
	}
	if !in.HasWords && !app.isOcrEnabled() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "words or hocr file is required when OCR is not configured"})
		return
	}

	out, err := app.annotate(c.Request.Context(), in)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("Error annotating page: %v", err)})
		log.Errorf("Error annotating page: %v", err)
		return
	}

	c.Header("X-Flagged-Words", strconv.Itoa(out.Summary.Flagged()))
	c.Header("X-Skipped-Words", strconv.Itoa(out.Summary.Skipped))
	c.Header("X-Layout-Overflow", strconv.Itoa(out.Summary.Overflow))
	if out.Run != nil {
		c.Header("X-Run-ID", strconv.FormatUint(uint64(out.Run.ID), 10))
	}
	c.Data(http.StatusOK, "image/png", out.PNG)
}

// submitJobHandler handles the POST /api/jobs endpoint
func (app *App) submitJobHandler(c *gin.Context) {
	in, err := parseAnnotateForm(c)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		log.Errorf("Invalid job request: %v", err)
		return
	}
	if !in.HasWords && !app.isOcrEnabled() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "words or hocr file is required when OCR is not configured"})
		return
	}

	job := &Job{ID: generateJobID(), Source: in.Source}
	in.Source = "job:" + job.ID + ":" + in.Source
	job.input = in
	jobStore.addJob(job)

	select {
	case jobQueue <- job:
	default:
		jobStore.updateJobStatus(job.ID, "failed", "job queue is full")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "job queue is full"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}

// getJobStatusHandler handles the GET /api/jobs/:job_id endpoint
func (app *App) getJobStatusHandler(c *gin.Context) {
	job, exists := jobStore.getJob(c.Param("job_id"))
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job)
}

// getAllJobsHandler handles the GET /api/jobs endpoint
func (app *App) getAllJobsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, jobStore.GetAllJobs())
}

// cancelJobHandler handles the DELETE /api/jobs/:job_id endpoint
func (app *App) cancelJobHandler(c *gin.Context) {
	jobID := c.Param("job_id")
	if _, exists := jobStore.getJob(jobID); !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	if !cancelJob(jobID) {
		c.JSON(http.StatusConflict, gin.H{"error": "Job is not running"})
		return
	}
	c.Status(http.StatusOK)
}

// getJobImageHandler handles the GET /api/jobs/:job_id/image endpoint
func (app *App) getJobImageHandler(c *gin.Context) {
	jobID := c.Param("job_id")
	job, exists := jobStore.getJob(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	data, ok := jobStore.annotatedImage(jobID)
	if !ok {
		c.JSON(http.StatusConflict, gin.H{"error": fmt.Sprintf("Job is %s", job.Status)})
		return
	}
	c.Data(http.StatusOK, "image/png", data)
}

// Section for local-db actions

func (app *App) getRunsHandler(c *gin.Context) {
	runs, err := GetAllRuns(app.Database)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve annotation runs"})
		log.Errorf("Failed to retrieve annotation runs: %v", err)
		return
	}
	c.JSON(http.StatusOK, runs)
}

func (app *App) lookupRun(c *gin.Context) (*AnnotationRun, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid run ID"})
		return nil, false
	}
	run, err := GetRun(app.Database, uint(id))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Run not found"})
		return nil, false
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to retrieve run"})
		log.Errorf("Failed to retrieve run %d: %v", id, err)
		return nil, false
	}
	return run, true
}

func (app *App) getRunHandler(c *gin.Context) {
	run, ok := app.lookupRun(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, run)
}

// getRunReportHandler renders a stored run as md (default), html or xlsx.
func (app *App) getRunReportHandler(c *gin.Context) {
	run, ok := app.lookupRun(c)
	if !ok {
		return
	}
	summary := run.Summary()

	switch format := c.DefaultQuery("format", "md"); format {
	case "md":
		md, err := report.Markdown(summary)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/markdown; charset=utf-8", []byte(md))
	case "html":
		page, err := report.HTML(summary)
		if err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Data(http.StatusOK, "text/html; charset=utf-8", []byte(page))
	case "xlsx":
		var buf bytes.Buffer
		if err := report.WriteXLSX(&buf, summary); err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="run-%d.xlsx"`, run.ID))
		c.Data(http.StatusOK, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", buf.Bytes())
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("Unsupported report format %q", format)})
	}
}

// getSettingsHandler handles the GET /api/settings endpoint
func (app *App) getSettingsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, currentSettings())
}

// updateSettingsHandler handles the POST /api/settings endpoint. Fields
// missing from the request keep their current value.
func (app *App) updateSettingsHandler(c *gin.Context) {
	updated := currentSettings()
	if err := c.ShouldBindJSON(&updated); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request payload"})
		return
	}
	if err := updated.Validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := app.applySettings(updated); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	settingsMutex.Lock()
	settings = updated
	err := saveSettingsLocked()
	settingsMutex.Unlock()
	if err != nil {
		log.Errorf("Failed to save settings: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to save settings"})
		return
	}

	c.JSON(http.StatusOK, updated)
}

// parseAnnotateForm reads the multipart fields shared by /api/annotate and
// /api/jobs: an image (or PDF), optional words or hocr file, optional
// feedback JSON and title.
func parseAnnotateForm(c *gin.Context) (AnnotateInput, error) {
	var in AnnotateInput

	header, err := c.FormFile("image")
	if err != nil {
		return in, fmt.Errorf("image file is required")
	}
	in.Source = header.Filename
	in.Title = c.PostForm("title")
	in.Image, err = readFormFile(header)
	if err != nil {
		return in, err
	}
	mtype := mimetype.Detect(in.Image)
	if !strings.HasPrefix(mtype.String(), "image/") && !mtype.Is("application/pdf") {
		return in, fmt.Errorf("unsupported file type: %s", mtype.String())
	}

	if header, err := c.FormFile("words"); err == nil {
		data, err := readFormFile(header)
		if err != nil {
			return in, err
		}
		in.Words, in.Invalid, err = ocr.DecodeWords(bytes.NewReader(data))
		if err != nil {
			return in, err
		}
		in.HasWords = true
	} else if header, err := c.FormFile("hocr"); err == nil {
		data, err := readFormFile(header)
		if err != nil {
			return in, err
		}
		pages, err := ocr.ParseHOCR(bytes.NewReader(data))
		if err != nil {
			return in, err
		}
		in.Words = ocr.WordsFromHOCRPage(pages[0])
		in.HasWords = true
	}

	if raw := c.PostForm("feedback"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &in.Feedback); err != nil {
			return in, fmt.Errorf("invalid feedback: %w", err)
		}
	}
	return in, nil
}

func readFormFile(header *multipart.FileHeader) ([]byte, error) {
	if header.Size > maxUploadSize {
		return nil, fmt.Errorf("%s is larger than %d bytes", header.Filename, maxUploadSize)
	}
	f, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", header.Filename, err)
	}
	defer f.Close()
	return io.ReadAll(f)
}

func invalidWords(errs []*wordindex.InputError) []InvalidWord {
	out := make([]InvalidWord, 0, len(errs))
	for _, e := range errs {
		out = append(out, InvalidWord{Index: e.Index, Text: e.Text, Reason: e.Reason})
	}
	return out
}

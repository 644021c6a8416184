// Package server exposes the scan pipeline over HTTP.
package server

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/docuflat/docuflat/internal/category"
	"github.com/docuflat/docuflat/internal/pipeline"
	"github.com/docuflat/docuflat/internal/raster"
	"github.com/docuflat/docuflat/internal/store"
)

// Server holds the HTTP handlers and their dependencies.
type Server struct {
	pipe     *pipeline.Pipeline
	history  *store.Store
	registry *category.Registry
	log      *logrus.Logger
}

// New creates a Server. history may be nil; the scan-history endpoints then
// report persistence as disabled.
func New(pipe *pipeline.Pipeline, history *store.Store, registry *category.Registry, log *logrus.Logger) *Server {
	if log == nil {
		log = logrus.New()
		log.SetLevel(logrus.PanicLevel)
	}
	return &Server{pipe: pipe, history: history, registry: registry, log: log}
}

// Router builds the gin engine with all routes attached.
func (s *Server) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/healthz", s.handleHealth)
	r.GET("/categories", s.handleCategories)
	r.POST("/scan", s.handleScan)
	r.GET("/scans", s.handleScans)
	r.GET("/scans/:id", s.handleScanByID)

	return r
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleCategories(c *gin.Context) {
	c.JSON(http.StatusOK, s.registry.All())
}

// scanResponse is the JSON body returned by POST /scan.
type scanResponse struct {
	*pipeline.Result

	// BestDateISO is Result.BestDate formatted as 2006-01-02.
	BestDateISO string `json:"best_date,omitempty"`

	// ScanPNG is the corrected, enhanced document as base64 PNG.
	ScanPNG string `json:"scan_png"`

	// OverlayPNG is the diagnostic overlay, present when requested.
	OverlayPNG string `json:"overlay_png,omitempty"`
}

// handleScan accepts a multipart form with an "image" file and an optional
// "options" field holding pipeline options as JSON.
func (s *Server) handleScan(c *gin.Context) {
	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "missing image file"})
		return
	}

	var opts pipeline.Options
	if raw := c.PostForm("options"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &opts); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid options: " + err.Error()})
			return
		}
	}

	reader, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot open upload"})
		return
	}
	defer reader.Close()

	data, err := io.ReadAll(reader)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read upload"})
		return
	}

	img, err := raster.Decode(data)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image: " + err.Error()})
		return
	}

	result, err := s.pipe.Process(c.Request.Context(), img, opts, nil)
	if err != nil {
		s.log.WithError(err).Error("scan failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	response := scanResponse{Result: result}
	if result.BestDate != nil {
		response.BestDateISO = result.BestDate.Format("2006-01-02")
	}
	if response.ScanPNG, err = encodePNG(result.Scan); err != nil {
		s.log.WithError(err).Error("encode scan image")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "encode result image"})
		return
	}
	if result.Overlay != nil {
		if response.OverlayPNG, err = encodePNG(result.Overlay); err != nil {
			s.log.WithError(err).Warn("encode overlay image")
		}
	}

	s.persist(c, result)
	c.JSON(http.StatusOK, response)
}

// persist records the run in the scan history, best effort.
func (s *Server) persist(c *gin.Context, result *pipeline.Result) {
	if s.history == nil {
		return
	}
	if err := s.history.Save(c.Request.Context(), scanRecord(result)); err != nil {
		s.log.WithError(err).WithField("run_id", result.RunID).Warn("persist scan record")
	}
}

// scanRecord maps a pipeline result onto its history record.
func scanRecord(result *pipeline.Result) *store.ScanRecord {
	record := &store.ScanRecord{
		RunID:               result.RunID,
		Category:            result.Classification.Category,
		Confidence:          result.Classification.Confidence,
		Method:              result.Classification.Method,
		DetectionStrategy:   result.Detection.Strategy,
		DetectionConfidence: result.Detection.Confidence,
		Sender:              result.Data.Sender,
		Degradations:        strings.Join(result.Degradations, ","),
	}
	if len(result.Data.Amounts) > 0 {
		record.Amount = result.Data.Amounts[0]
	}
	if result.BestDate != nil {
		record.BestDate = result.BestDate.Format("2006-01-02")
	}
	var total time.Duration
	for _, elapsed := range result.Timings {
		total += elapsed
	}
	record.DurationMS = total.Milliseconds()
	return record
}

func (s *Server) handleScans(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scan history disabled"})
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	records, err := s.history.Recent(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, records)
}

func (s *Server) handleScanByID(c *gin.Context) {
	if s.history == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "scan history disabled"})
		return
	}
	record, err := s.history.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "scan not found"})
		return
	}
	c.JSON(http.StatusOK, record)
}

// Run starts the HTTP server on the given port, blocking until it exits.
func (s *Server) Run(port string) error {
	server := &http.Server{
		Addr:              ":" + port,
		Handler:           s.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.log.WithField("port", port).Info("listening")
	return server.ListenAndServe()
}

func encodePNG(img *raster.Image) (string, error) {
	data, err := img.EncodePNG()
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

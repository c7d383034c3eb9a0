// Package core wires the resource model to persistence, blob storage and
// upload ingestion. Service is the façade every caller goes through.
package core

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"neurostore/internal/blob"
	"neurostore/internal/ingest"
	"neurostore/internal/mimetype"
	"neurostore/pkg/domain"
)

// Service exposes the typed resource operations: factories and accessors per
// resource type, functional data ingestion, and the model run lifecycle.
type Service struct {
	store    domain.Store
	blobs    blob.Store
	ingestor *ingest.Ingestor
	detector mimetype.Detector
	dataDir  string

	now     func() time.Time
	newID   func() string
	metrics MetricsRecorder
	tracer  Tracer
}

// Option customizes Service construction.
type Option func(*Service)

// WithMetricsRecorder installs a metrics sink for service operations.
func WithMetricsRecorder(rec MetricsRecorder) Option {
	return func(s *Service) { s.metrics = rec }
}

// WithTracer installs a tracer for service operations.
func WithTracer(tr Tracer) Option {
	return func(s *Service) { s.tracer = tr }
}

// WithClock overrides the time source (tests).
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithIdentifierFunc overrides identifier generation (tests).
func WithIdentifierFunc(fn func() string) Option {
	return func(s *Service) { s.newID = fn }
}

// WithIngestor overrides the upload ingestor, e.g. for custom suffix sets.
func WithIngestor(ing *ingest.Ingestor) Option {
	return func(s *Service) { s.ingestor = ing }
}

// WithMimeDetector overrides the attachment mime detector.
func WithMimeDetector(d mimetype.Detector) Option {
	return func(s *Service) { s.detector = d }
}

// NewService constructs a Service over the given record store and blob
// store. dataDir is the root under which canonical functional data
// directories are created.
func NewService(store domain.Store, blobs blob.Store, dataDir string, opts ...Option) *Service {
	s := &Service{
		store:    store,
		blobs:    blobs,
		ingestor: ingest.New(ingest.DefaultConfig()),
		detector: mimetype.SuffixDetector{},
		dataDir:  dataDir,
		now:      func() time.Time { return time.Now().UTC() },
		newID:    newIdentifier,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Store exposes the underlying record store for administrative callers.
func (s *Service) Store() domain.Store { return s.store }

// Blobs exposes the underlying blob store for administrative callers.
func (s *Service) Blobs() blob.Store { return s.blobs }

// newIdentifier generates a random identifier: a v4 UUID with the dashes
// stripped, matching the identifier shape used across stored resources.
func newIdentifier() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

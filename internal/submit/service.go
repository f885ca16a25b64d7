// Package submit accepts documents, records a PENDING job and hands the work to the queue.
package submit

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/parivyaya/constants"
	"github.com/joseph-ayodele/parivyaya/internal/common"
	"github.com/joseph-ayodele/parivyaya/internal/entity"
	"github.com/joseph-ayodele/parivyaya/internal/queue"
	"github.com/joseph-ayodele/parivyaya/internal/repository"
)

var ErrUnsupportedDocument = fmt.Errorf("%w: unsupported document", common.ErrInvalidInput)

type Service struct {
	jobs  repository.JobRepository
	pub   queue.Publisher
	topic string
	log   *slog.Logger
	newID func() string
	now   func() time.Time
}

func NewService(jobs repository.JobRepository, pub queue.Publisher, topic string, logger *slog.Logger) *Service {
	return &Service{
		jobs:  jobs,
		pub:   pub,
		topic: topic,
		log:   logger,
		newID: func() string { return uuid.New().String() },
		now:   time.Now,
	}
}

// Submit validates the document, creates its job and publishes the task. It
// returns the job id without waiting for processing. When publishing fails
// the PENDING job stays behind and the error is returned.
func (s *Service) Submit(ctx context.Context, filename string, content []byte) (string, error) {
	v := common.NewValidator().
		Field("filename", filename, common.Required).
		Field("content", content, common.Required)
	if err := v.Err(); err != nil {
		return "", err
	}
	if err := checkDocument(filename, content, s.maxDocumentBytes()); err != nil {
		s.log.Warn("rejected submission", "filename", filename, "bytes", len(content), "error", err)
		return "", err
	}

	job := &entity.Job{
		ID:         s.newID(),
		SourceName: filepath.Base(filename),
		Status:     constants.JobStatusPending,
		CreatedAt:  s.now().UTC(),
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	task := queue.NewExtractTask(job.ID, job.SourceName, content)
	if err := s.pub.Publish(ctx, s.topic, task); err != nil {
		s.log.Error("publish failed; job left PENDING", "job_id", job.ID, "topic", s.topic, "error", err)
		return "", fmt.Errorf("publish task for job %s: %w", job.ID, err)
	}

	s.log.Info("job submitted", "job_id", job.ID, "source_name", job.SourceName, "bytes", len(content))
	return job.ID, nil
}

// maxDocumentBytes is the smaller of the accepted document size and what
// the broker can carry in one task.
func (s *Service) maxDocumentBytes() int {
	limit := constants.MaxDocumentBytes
	if n := s.pub.MaxDocumentBytes(); n > 0 && n < limit {
		limit = n
	}
	return limit
}

func checkDocument(filename string, content []byte, maxBytes int) error {
	if name := filepath.Base(filename); len(name) > constants.MaxSourceNameBytes {
		return fmt.Errorf("%w: file name is %d bytes, limit %d", ErrUnsupportedDocument, len(name), constants.MaxSourceNameBytes)
	}
	if !constants.IsAllowedExt(filepath.Ext(filename)) {
		return fmt.Errorf("%w: %q is not a .pdf file", ErrUnsupportedDocument, filename)
	}
	if len(content) > maxBytes {
		return fmt.Errorf("%w: %d bytes exceeds the %d byte limit", ErrUnsupportedDocument, len(content), maxBytes)
	}
	if !bytes.HasPrefix(content, []byte("%PDF-")) || http.DetectContentType(content) != constants.DocumentMimeType {
		return fmt.Errorf("%w: content of %q is not a PDF", ErrUnsupportedDocument, filename)
	}
	return nil
}

package core

import (
	"context"
	"io"
	"os"
	"path"
	"time"

	blobcore "neurostore/internal/blob/core"
	"neurostore/pkg/domain"
)

// attrFailureMessages holds the diagnostic messages recorded when a run
// completes in failure.
const attrFailureMessages = "failure_messages"

// RunResult names one result file produced by a model run: the filename it
// is attached under and the local path holding the payload.
type RunResult struct {
	Filename string
	Source   string
}

// runBlobKey returns the blob key holding a run result payload.
func runBlobKey(runID, filename string) string {
	return path.Join("runs", runID, filename)
}

// CreateModelRun registers a run of modelID in state PENDING. The model must
// exist. args carries the caller-supplied run arguments.
func (s *Service) CreateModelRun(ctx context.Context, modelID string, args *domain.AttributeSet, attrs *domain.AttributeSet) (domain.ModelRun, error) {
	var run domain.ModelRun
	err := s.instrument(ctx, "run.create", func(ctx context.Context) error {
		if _, err := s.store.Get(ctx, domain.TypeModel.Collection(), modelID); err != nil {
			if domain.IsKind(err, domain.ErrNotFound) {
				return domain.NewError(domain.ErrReferenceNotFound, "model %s does not exist", modelID)
			}
			return err
		}
		if args == nil {
			args, _ = domain.NewAttributeSet(nil, nil)
		}
		run = domain.ModelRun{
			ObjectHandle: s.newHandle(domain.TypeModelRun, "", attrs, false),
			ModelID:      modelID,
			State:        domain.RunPending,
			Arguments:    args,
		}
		return s.store.Insert(ctx, domain.TypeModelRun.Collection(), run.ID, run.ToRecord())
	})
	if err != nil {
		return domain.ModelRun{}, err
	}
	return run, nil
}

// GetModelRun returns the run stored under id.
func (s *Service) GetModelRun(ctx context.Context, id string) (domain.ModelRun, error) {
	var run domain.ModelRun
	err := s.instrument(ctx, "run.get", func(ctx context.Context) error {
		var err error
		run, err = s.loadRun(ctx, id)
		return err
	})
	if err != nil {
		return domain.ModelRun{}, err
	}
	return run, nil
}

func (s *Service) loadRun(ctx context.Context, id string) (domain.ModelRun, error) {
	rec, err := s.store.Get(ctx, domain.TypeModelRun.Collection(), id)
	if err != nil {
		return domain.ModelRun{}, err
	}
	return domain.ModelRunFromRecord(rec)
}

// stampRun refreshes the update time attribute on the run.
func (s *Service) stampRun(run *domain.ModelRun) {
	if run.Attributes == nil {
		run.Attributes, _ = domain.NewAttributeSet(nil, nil)
	}
	_ = run.Attributes.Set(attrUpdatedAt, s.now().Format(time.RFC3339Nano))
}

// transitionRun moves a run to next after checking the state machine, then
// persists it. mutate, when non-nil, is applied between the check and the
// write.
func (s *Service) transitionRun(ctx context.Context, id string, next domain.RunState, mutate func(*domain.ModelRun) error) (domain.ModelRun, error) {
	run, err := s.loadRun(ctx, id)
	if err != nil {
		return domain.ModelRun{}, err
	}
	if !run.State.CanTransition(next) {
		return domain.ModelRun{}, domain.NewError(domain.ErrInvalidTransition, "run %s cannot move from %s to %s", id, run.State, next)
	}
	run.State = next
	if mutate != nil {
		if err := mutate(&run); err != nil {
			return domain.ModelRun{}, err
		}
	}
	s.stampRun(&run)
	if err := s.store.Put(ctx, domain.TypeModelRun.Collection(), id, run.ToRecord()); err != nil {
		return domain.ModelRun{}, err
	}
	return run, nil
}

// StartRun moves a PENDING run to RUNNING.
func (s *Service) StartRun(ctx context.Context, id string) (domain.ModelRun, error) {
	var run domain.ModelRun
	err := s.instrument(ctx, "run.start", func(ctx context.Context) error {
		var err error
		run, err = s.transitionRun(ctx, id, domain.RunRunning, nil)
		return err
	})
	if err != nil {
		return domain.ModelRun{}, err
	}
	return run, nil
}

// CancelRun cancels a run that has not finished yet. Allowed from PENDING
// and RUNNING.
func (s *Service) CancelRun(ctx context.Context, id string) (domain.ModelRun, error) {
	var run domain.ModelRun
	err := s.instrument(ctx, "run.cancel", func(ctx context.Context) error {
		var err error
		run, err = s.transitionRun(ctx, id, domain.RunCancelled, nil)
		return err
	})
	if err != nil {
		return domain.ModelRun{}, err
	}
	return run, nil
}

// CompleteRunFailure moves a RUNNING run to FAILED and records the supplied
// diagnostic messages on the run.
func (s *Service) CompleteRunFailure(ctx context.Context, id string, messages []string) (domain.ModelRun, error) {
	var run domain.ModelRun
	err := s.instrument(ctx, "run.complete_failure", func(ctx context.Context) error {
		var err error
		run, err = s.transitionRun(ctx, id, domain.RunFailed, func(r *domain.ModelRun) error {
			if len(messages) == 0 {
				return nil
			}
			if r.Attributes == nil {
				r.Attributes, _ = domain.NewAttributeSet(nil, nil)
			}
			return r.Attributes.Set(attrFailureMessages, messages)
		})
		return err
	})
	if err != nil {
		return domain.ModelRun{}, err
	}
	return run, nil
}

// CompleteRunSuccess moves a RUNNING run to SUCCESS and attaches the result
// payloads in a single persistence write. Payloads are staged into blob
// storage first; if the run record cannot be persisted, the staged payloads
// are released again and the run state does not change.
func (s *Service) CompleteRunSuccess(ctx context.Context, id string, results []RunResult) (domain.ModelRun, error) {
	var run domain.ModelRun
	err := s.instrument(ctx, "run.complete_success", func(ctx context.Context) error {
		current, err := s.loadRun(ctx, id)
		if err != nil {
			return err
		}
		if !current.State.CanTransition(domain.RunSuccess) {
			return domain.NewError(domain.ErrInvalidTransition, "run %s cannot move from %s to %s", id, current.State, domain.RunSuccess)
		}

		staged := make([]string, 0, len(results))
		release := func() {
			for _, key := range staged {
				_, _ = s.blobs.Delete(ctx, key)
			}
		}
		attachments := make([]domain.Attachment, 0, len(results))
		for _, res := range results {
			att, err := s.stageResult(ctx, id, res)
			if err != nil {
				release()
				return err
			}
			staged = append(staged, runBlobKey(id, res.Filename))
			attachments = append(attachments, att)
		}

		current.State = domain.RunSuccess
		current.Attachments = attachments
		s.stampRun(&current)
		if err := s.store.Put(ctx, domain.TypeModelRun.Collection(), id, current.ToRecord()); err != nil {
			release()
			return err
		}
		run = current
		return nil
	})
	if err != nil {
		return domain.ModelRun{}, err
	}
	return run, nil
}

// stageResult copies one result payload into blob storage and describes it.
func (s *Service) stageResult(ctx context.Context, runID string, res RunResult) (domain.Attachment, error) {
	if res.Filename == "" {
		return domain.Attachment{}, domain.NewError(domain.ErrInvalidAttribute, "run result needs a filename")
	}
	f, err := os.Open(res.Source)
	if err != nil {
		return domain.Attachment{}, domain.WrapError(domain.ErrIngestFailed, err, "open result payload %s", res.Filename)
	}
	defer func() { _ = f.Close() }()

	mime := s.detector.Detect(res.Source)
	info, err := s.blobs.Put(ctx, runBlobKey(runID, res.Filename), f, blobcore.PutOptions{ContentType: mime})
	if err != nil {
		return domain.Attachment{}, domain.WrapError(domain.ErrIngestFailed, err, "store result payload %s", res.Filename)
	}
	return domain.Attachment{
		Filename: res.Filename,
		MimeType: mime,
		Size:     info.Size,
		OwnerID:  runID,
	}, nil
}

// AttachRunResult adds or replaces one result payload on a run that already
// completed successfully. Attaching the same filename again replaces the
// previous payload.
func (s *Service) AttachRunResult(ctx context.Context, id string, res RunResult) (domain.Attachment, error) {
	var att domain.Attachment
	err := s.instrument(ctx, "run.attach_result", func(ctx context.Context) error {
		run, err := s.loadRun(ctx, id)
		if err != nil {
			return err
		}
		if run.State != domain.RunSuccess {
			return domain.NewError(domain.ErrInvalidTransition, "run %s is %s, results attach to SUCCESS runs only", id, run.State)
		}
		if _, exists := run.Attachment(res.Filename); exists {
			if _, err := s.blobs.Delete(ctx, runBlobKey(id, res.Filename)); err != nil {
				return domain.WrapError(domain.ErrIngestFailed, err, "replace result payload %s", res.Filename)
			}
		}
		att, err = s.stageResult(ctx, id, res)
		if err != nil {
			return err
		}

		replaced := false
		for i := range run.Attachments {
			if run.Attachments[i].Filename == res.Filename {
				run.Attachments[i] = att
				replaced = true
				break
			}
		}
		if !replaced {
			run.Attachments = append(run.Attachments, att)
		}
		s.stampRun(&run)
		if err := s.store.Put(ctx, domain.TypeModelRun.Collection(), id, run.ToRecord()); err != nil {
			_, _ = s.blobs.Delete(ctx, runBlobKey(id, res.Filename))
			return err
		}
		return nil
	})
	if err != nil {
		return domain.Attachment{}, err
	}
	return att, nil
}

// GetRunAttachment returns the attachment descriptor and a reader over its
// payload. The caller closes the reader.
func (s *Service) GetRunAttachment(ctx context.Context, id, filename string) (domain.Attachment, io.ReadCloser, error) {
	var att domain.Attachment
	var rc io.ReadCloser
	err := s.instrument(ctx, "run.get_attachment", func(ctx context.Context) error {
		run, err := s.loadRun(ctx, id)
		if err != nil {
			return err
		}
		found, ok := run.Attachment(filename)
		if !ok {
			return domain.NewError(domain.ErrNotFound, "run %s has no attachment %q", id, filename)
		}
		_, r, err := s.blobs.Get(ctx, runBlobKey(id, filename))
		if err != nil {
			return domain.WrapError(domain.ErrIngestFailed, err, "read result payload %s", filename)
		}
		att, rc = found, r
		return nil
	})
	if err != nil {
		return domain.Attachment{}, nil, err
	}
	return att, rc, nil
}

// DeleteRunAttachment removes one result payload from a run. It reports
// whether an attachment with the given filename existed.
func (s *Service) DeleteRunAttachment(ctx context.Context, id, filename string) (bool, error) {
	removed := false
	err := s.instrument(ctx, "run.delete_attachment", func(ctx context.Context) error {
		run, err := s.loadRun(ctx, id)
		if err != nil {
			return err
		}
		kept := run.Attachments[:0:0]
		for _, a := range run.Attachments {
			if a.Filename == filename {
				removed = true
				continue
			}
			kept = append(kept, a)
		}
		if !removed {
			return nil
		}
		run.Attachments = kept
		s.stampRun(&run)
		if err := s.store.Put(ctx, domain.TypeModelRun.Collection(), id, run.ToRecord()); err != nil {
			return err
		}
		_, _ = s.blobs.Delete(ctx, runBlobKey(id, filename))
		return nil
	})
	if err != nil {
		return false, err
	}
	return removed, nil
}

// deleteModelRun removes the run record and releases every blob payload
// stored under the run prefix.
func (s *Service) deleteModelRun(ctx context.Context, id string) error {
	return s.instrument(ctx, "run.delete", func(ctx context.Context) error {
		if err := s.store.Delete(ctx, domain.TypeModelRun.Collection(), id); err != nil {
			return err
		}
		infos, err := s.blobs.List(ctx, runBlobKey(id, "")+"/")
		if err != nil {
			return nil
		}
		for _, info := range infos {
			_, _ = s.blobs.Delete(ctx, info.Key)
		}
		return nil
	})
}

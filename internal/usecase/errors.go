package usecase

import (
	"errors"

	"github.com/forPelevin/clipforge/internal/store"
)

// Command rejections. A rejected command never changes any record.
var (
	ErrInvalidURL      = errors.New("invalid video url")
	ErrNotFound        = store.ErrNotFound
	ErrNotReady        = errors.New("project media is not ready")
	ErrBusy            = errors.New("another project is being analyzed")
	ErrInFlight        = errors.New("operation already in progress")
	ErrAlreadyRendered = errors.New("clip already rendered")
	ErrClosed          = errors.New("service is shutting down")
)

type Stage string

const (
	StageAcquisition   Stage = "acquisition"
	StageTranscription Stage = "transcription"
	StageScoring       Stage = "scoring"
	StageSelection     Stage = "selection"
	StageRender        Stage = "render"
)

// StageError is a leg failure attributed to the stage that produced it.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string { return string(e.Stage) + ": " + e.Err.Error() }
func (e *StageError) Unwrap() error { return e.Err }

func stageErr(stage Stage, err error) error {
	if err == nil {
		return nil
	}
	var se *StageError
	if errors.As(err, &se) {
		return err
	}
	return &StageError{Stage: stage, Err: err}
}

// recordMessage is the description stored on a failed record: the
// underlying failure without the stage prefix.
func recordMessage(err error) string {
	var se *StageError
	if errors.As(err, &se) {
		return se.Err.Error()
	}
	return err.Error()
}

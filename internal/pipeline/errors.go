package pipeline

import "fmt"

// Stage identifies where in the per-language pipeline an error occurred.
type Stage string

const (
	StageTranslate  Stage = "translate"
	StageEnhance    Stage = "enhance"
	StageSynthesize Stage = "synthesize"
	StageConcat     Stage = "concat"
	StageStore      Stage = "store"
)

// StageError wraps a failure with the stage and language it happened in, so
// job error messages tell the operator which part of which language broke.
type StageError struct {
	Stage    Stage
	Language string
	Err      error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s failed for language %q: %v", e.Stage, e.Language, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

func stageErr(stage Stage, language string, err error) *StageError {
	return &StageError{Stage: stage, Language: language, Err: err}
}

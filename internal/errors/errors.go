// Package errors defines the error types shared by the build engine and the
// dev server, and parses build failures into file locations for the
// browser error overlay.
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
)

// Stage names the part of a build that failed.
type Stage string

const (
	StagePassthrough Stage = "passthrough"
	StageData        Stage = "data"
	StageRender      Stage = "render"
	StageTransform   Stage = "transform"
	StageWrite       Stage = "write"
)

// BuildError is a failure tied to one file in one build stage
type BuildError struct {
	Stage     Stage
	Path      string
	Err       error
	Timestamp time.Time
}

// NewBuildError creates a build error stamped with the current time
func NewBuildError(stage Stage, path string, err error) *BuildError {
	return &BuildError{
		Stage:     stage,
		Path:      path,
		Err:       err,
		Timestamp: time.Now(),
	}
}

// Error implements the error interface
func (be *BuildError) Error() string {
	if be.Path == "" {
		return fmt.Sprintf("%s: %v", be.Stage, be.Err)
	}
	return fmt.Sprintf("%s %s: %v", be.Stage, be.Path, be.Err)
}

// Unwrap returns the underlying cause
func (be *BuildError) Unwrap() error {
	return be.Err
}

// StageOf returns the stage of the first BuildError in err's chain.
func StageOf(err error) (Stage, bool) {
	var be *BuildError
	if errors.As(err, &be) {
		return be.Stage, true
	}
	return "", false
}

// ErrorCollector collects build errors from concurrent workers
type ErrorCollector struct {
	buildErrors []*BuildError
	mutex       sync.RWMutex
}

// NewErrorCollector creates a new error collector
func NewErrorCollector() *ErrorCollector {
	return &ErrorCollector{
		buildErrors: make([]*BuildError, 0),
	}
}

// Add records err for path. Nil errors are ignored.
func (ec *ErrorCollector) Add(stage Stage, path string, err error) {
	if err == nil {
		return
	}
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.buildErrors = append(ec.buildErrors, NewBuildError(stage, path, err))
}

// Errors returns the collected errors ordered by path
func (ec *ErrorCollector) Errors() []*BuildError {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()

	result := make([]*BuildError, len(ec.buildErrors))
	copy(result, ec.buildErrors)
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].Path < result[j].Path
	})
	return result
}

// HasErrors returns true if any error was collected
func (ec *ErrorCollector) HasErrors() bool {
	ec.mutex.RLock()
	defer ec.mutex.RUnlock()
	return len(ec.buildErrors) > 0
}

// Clear drops all collected errors
func (ec *ErrorCollector) Clear() {
	ec.mutex.Lock()
	defer ec.mutex.Unlock()
	ec.buildErrors = ec.buildErrors[:0]
}

// Err joins the collected errors, or returns nil if there are none.
func (ec *ErrorCollector) Err() error {
	collected := ec.Errors()
	if len(collected) == 0 {
		return nil
	}
	errs := make([]error, len(collected))
	for i, be := range collected {
		errs[i] = be
	}
	return errors.Join(errs...)
}

// Summary renders the collected errors one per line for terminal output
func (ec *ErrorCollector) Summary() string {
	collected := ec.Errors()
	lines := make([]string, len(collected))
	for i, be := range collected {
		lines[i] = be.Error()
	}
	return strings.Join(lines, "\n")
}

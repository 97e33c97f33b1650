package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"cuelang.org/go/cue/token"

	"github.com/roach88/stratalog/internal/compiler"
	"github.com/roach88/stratalog/internal/config"
)

// LoadResult is a program read from disk.
type LoadResult struct {
	Source    *compiler.Source
	FileCount int // Number of CUE files read
}

// LoadError represents an error that occurred while loading a program or
// config file.
type LoadError struct {
	Code    string
	Message string
	Pos     token.Pos // CUE position if available
}

func (e *LoadError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s", e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(), e.Code, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// LoadProgram reads a program from a .cue file or a directory holding one
// CUE package. Malformed facts are reported together as
// compiler.ValidationErrors; every other failure is a *LoadError.
func LoadProgram(path string) (*LoadResult, error) {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("program not found: %s", path)}
	}
	if err != nil {
		return nil, &LoadError{Code: ErrCodeNotFound, Message: fmt.Sprintf("error accessing program: %v", err)}
	}

	count := 1
	if info.IsDir() {
		files, err := FindCUEFiles(path)
		if err != nil {
			return nil, &LoadError{Code: ErrCodeScanError, Message: fmt.Sprintf("error scanning directory: %v", err)}
		}
		if len(files) == 0 {
			return nil, &LoadError{Code: ErrCodeNoFiles, Message: fmt.Sprintf("no CUE files found in %s", path)}
		}
		count = len(files)
	} else if filepath.Ext(path) != ".cue" {
		return nil, &LoadError{Code: ErrCodeLoadFailed, Message: fmt.Sprintf("not a .cue file: %s", path)}
	}

	src, err := compiler.LoadSource(path)
	if err != nil {
		return nil, convertLoadError(err)
	}
	return &LoadResult{Source: src, FileCount: count}, nil
}

// FindCUEFiles returns the .cue files directly inside dir, the files of the
// package a directory load reads.
func FindCUEFiles(dir string) ([]string, error) {
	return filepath.Glob(filepath.Join(dir, "*.cue"))
}

// LoadConfig reads a config file, or returns config.Default when path is
// empty.
func LoadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, &LoadError{Code: ErrCodeInvalidConfig, Message: err.Error()}
	}
	return cfg, nil
}

// convertLoadError keeps validation errors intact and turns anything else
// into a LoadError with position info.
func convertLoadError(err error) error {
	var verrs compiler.ValidationErrors
	if errors.As(err, &verrs) {
		return verrs
	}
	var compileErr *compiler.CompileError
	if errors.As(err, &compileErr) {
		code := ErrCodeBuildFailed
		if compileErr.Field == "cue" {
			code = ErrCodeLoadFailed
		}
		return &LoadError{Code: code, Message: compileErr.Message, Pos: compileErr.Pos}
	}
	return &LoadError{Code: ErrCodeLoadFailed, Message: err.Error()}
}

// Error code constants - unified across all CLI commands.
// Compiler validation uses E101-E108; compile and evaluation failures use
// the named codes of harness.ErrorCode.
const (
	ErrCodeGeneric       = "E001" // Generic/unknown error
	ErrCodeScanError     = "E002" // Directory scan error
	ErrCodeNoFiles       = "E003" // No CUE files found
	ErrCodeLoadFailed    = "E004" // CUE load failed
	ErrCodeNotFound      = "E005" // Path, run or program not found
	ErrCodeBuildFailed   = "E006" // CUE value is not a valid program
	ErrCodeWriteFailed   = "E007" // File write error
	ErrCodeInvalidConfig = "E008" // Config file rejected
	ErrCodeNoQuery       = "E009" // Nothing to query
	ErrCodeStore         = "E010" // Run log unreadable
)

package solver

import (
	"errors"
	"fmt"
)

// ErrorCode is a solver status code.
type ErrorCode int

// Solver status codes, numbered as in the solver API.
const (
	CodeSuccess ErrorCode = iota
	CodeUnknown
	CodeInvalidParam
	CodeBadSampleRate
	CodeMissingDLL
	CodeBadAlignment
	CodeUninitialized
	CodeHRTFInitFailure
	CodeBadVersion
	CodeSymbolNotFound
	CodeSharedReverbDisabled
	CodeNoAvailableAmbisonicInstance
	CodeMemoryAllocFailure
	CodeUnsupportedFeature
)

var errorCodeNames = [...]string{
	CodeSuccess:                      "Success",
	CodeUnknown:                      "Unknown",
	CodeInvalidParam:                 "InvalidParam",
	CodeBadSampleRate:                "BadSampleRate",
	CodeMissingDLL:                   "MissingDLL",
	CodeBadAlignment:                 "BadAlignment",
	CodeUninitialized:                "Uninitialized",
	CodeHRTFInitFailure:              "HRTFInitFailure",
	CodeBadVersion:                   "BadVersion",
	CodeSymbolNotFound:               "SymbolNotFound",
	CodeSharedReverbDisabled:         "SharedReverbDisabled",
	CodeNoAvailableAmbisonicInstance: "NoAvailableAmbisonicInstance",
	CodeMemoryAllocFailure:           "MemoryAllocFailure",
	CodeUnsupportedFeature:           "UnsupportedFeature",
}

// String returns the code name.
func (c ErrorCode) String() string {
	if c >= 0 && int(c) < len(errorCodeNames) {
		return errorCodeNames[c]
	}
	return fmt.Sprintf("ErrorCode(%d)", int(c))
}

// Error is a failure reported by the solver.
type Error struct {
	Op   string
	Code ErrorCode
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("solver %s: %s: %v", e.Op, e.Code, e.Err)
	}
	return fmt.Sprintf("solver %s: %s", e.Op, e.Code)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// CodeOf returns the solver code carried by err, CodeSuccess for nil, or
// CodeUnknown if err did not come from the solver.
func CodeOf(err error) ErrorCode {
	if err == nil {
		return CodeSuccess
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}
	return CodeUnknown
}

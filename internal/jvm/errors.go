package jvm

import "fmt"

// Error is a JVMTI error code.
type Error int32

// JVMTI error codes used by the agent and the simulated host.
const (
	ErrNone                  Error = 0
	ErrInvalidThread         Error = 10
	ErrInvalidClass          Error = 21
	ErrInvalidMethodID       Error = 23
	ErrNotAvailable          Error = 98
	ErrMustPossessCapability Error = 99
	ErrNullPointer           Error = 100
	ErrAbsentInformation     Error = 101
	ErrIllegalArgument       Error = 103
	ErrWrongPhase            Error = 112
	ErrInternal              Error = 113
	ErrUnattachedThread      Error = 115
	ErrInvalidEnvironment    Error = 116
	ErrVersion               Error = -3
)

var errorNames = map[Error]string{
	ErrNone:                  "JVMTI_ERROR_NONE",
	ErrInvalidThread:         "JVMTI_ERROR_INVALID_THREAD",
	ErrInvalidClass:          "JVMTI_ERROR_INVALID_CLASS",
	ErrInvalidMethodID:       "JVMTI_ERROR_INVALID_METHODID",
	ErrNotAvailable:          "JVMTI_ERROR_NOT_AVAILABLE",
	ErrMustPossessCapability: "JVMTI_ERROR_MUST_POSSESS_CAPABILITY",
	ErrNullPointer:           "JVMTI_ERROR_NULL_POINTER",
	ErrAbsentInformation:     "JVMTI_ERROR_ABSENT_INFORMATION",
	ErrIllegalArgument:       "JVMTI_ERROR_ILLEGAL_ARGUMENT",
	ErrWrongPhase:            "JVMTI_ERROR_WRONG_PHASE",
	ErrInternal:              "JVMTI_ERROR_INTERNAL",
	ErrUnattachedThread:      "JVMTI_ERROR_UNATTACHED_THREAD",
	ErrInvalidEnvironment:    "JVMTI_ERROR_INVALID_ENVIRONMENT",
	ErrVersion:               "JNI_EVERSION",
}

func (e Error) Error() string {
	if name, ok := errorNames[e]; ok {
		return fmt.Sprintf("%s (%d)", name, int32(e))
	}
	return fmt.Sprintf("jvmti error %d", int32(e))
}

// Check converts a raw code to an error, nil for ErrNone.
func Check(code Error) error {
	if code == ErrNone {
		return nil
	}
	return code
}

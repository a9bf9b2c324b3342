// errors_test.go: Error constructor tests
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package godecisions

import (
	"fmt"
	"testing"
	"time"

	goerrors "github.com/agilira/go-errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// requireErrorCode asserts that err carries the given structured error code.
func requireErrorCode(t *testing.T, err error, code string) *goerrors.Error {
	t.Helper()
	var structured *goerrors.Error
	require.ErrorAs(t, err, &structured)
	require.Equal(t, goerrors.ErrorCode(code), structured.ErrorCode())
	return structured
}

func TestNewParameterValidationError(t *testing.T) {
	reasons := []string{"age is required", "stage must be a string"}
	err := NewParameterValidationError("risk-scorer", reasons)

	require.Equal(t, goerrors.ErrorCode(ErrCodeParameterValidation), err.ErrorCode())
	assert.Equal(t, "risk-scorer", err.Context["module_id"])
	assert.Equal(t, reasons, err.Context["validation_errors"])
}

func TestNewProcessingError(t *testing.T) {
	cause := fmt.Errorf("division by zero")
	err := NewProcessingError("risk-scorer", 150*time.Millisecond, cause)

	require.Equal(t, goerrors.ErrorCode(ErrCodeProcessingFailed), err.ErrorCode())
	assert.Equal(t, "risk-scorer", err.Context["module_id"])
	assert.Equal(t, 150.0, err.Context["elapsed_ms"])
	assert.ErrorIs(t, err, cause)
}

func TestNewModuleNotFoundError(t *testing.T) {
	err := NewModuleNotFoundError("ghost")

	require.Equal(t, goerrors.ErrorCode(ErrCodeModuleNotFound), err.ErrorCode())
	assert.Equal(t, `No module registered under ID "ghost"`, err.UserMessage())
}

func TestNewDuplicateModuleError(t *testing.T) {
	err := NewDuplicateModuleError("risk-scorer")

	require.Equal(t, goerrors.ErrorCode(ErrCodeDuplicateModule), err.ErrorCode())
	assert.Equal(t, "risk-scorer", err.Context["module_id"])
}

func TestNewManifestInvalidError(t *testing.T) {
	err := NewManifestInvalidError("/plugins/plugin.json", []string{"name", "domain"})

	require.Equal(t, goerrors.ErrorCode(ErrCodeManifestInvalid), err.ErrorCode())
	assert.Equal(t, "/plugins/plugin.json", err.Context["manifest_path"])
	assert.Equal(t, []string{"name", "domain"}, err.Context["missing_fields"])
}

func TestNewIncompatibleVersionError(t *testing.T) {
	err := NewIncompatibleVersionError("x", "4.0.0", "3.1.0")

	require.Equal(t, goerrors.ErrorCode(ErrCodeIncompatibleVersion), err.ErrorCode())
	assert.Equal(t, "4.0.0", err.Context["min_framework_version"])
	assert.Equal(t, "3.1.0", err.Context["framework_version"])
}

func TestNewEntryPointUnresolvedError(t *testing.T) {
	err := NewEntryPointUnresolvedError("x", "modules.x.Scorer")

	require.Equal(t, goerrors.ErrorCode(ErrCodeEntryPointUnresolved), err.ErrorCode())
	assert.Equal(t, "modules.x.Scorer", err.Context["entry_point"])
}

func TestNewCacheStoreError(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := NewCacheStoreError("get", cause)

	require.Equal(t, goerrors.ErrorCode(ErrCodeCacheStoreError), err.ErrorCode())
	assert.Equal(t, "get", err.Context["operation"])
	assert.ErrorIs(t, err, cause)
}

func TestNewHealthCheckFailedError(t *testing.T) {
	cause := fmt.Errorf("validation panic: nil map")
	err := NewHealthCheckFailedError("x", cause)

	require.Equal(t, goerrors.ErrorCode(ErrCodeHealthCheckFailed), err.ErrorCode())
	assert.ErrorIs(t, err, cause)
}

func TestRegistryLifecycleErrors(t *testing.T) {
	require.Equal(t, goerrors.ErrorCode(ErrCodeRegistryNotRunning),
		NewRegistryNotRunningError().ErrorCode())
	require.Equal(t, goerrors.ErrorCode(ErrCodeRegistryAlreadyRunning),
		NewRegistryAlreadyRunningError().ErrorCode())
}

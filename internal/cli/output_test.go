package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/pkgindex/internal/dependencies"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	data := map[string]string{"result": "success"}
	err := formatter.Success(data)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Status)
	assert.NotNil(t, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error("E001", "unresolvable dependency", nil)
	require.NoError(t, err)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	assert.Equal(t, "error", resp.Status)
	assert.NotNil(t, resp.Error)
	assert.Equal(t, "E001", resp.Error.Code)
	assert.Equal(t, "unresolvable dependency", resp.Error.Message)
}

func TestOutputFormatter_JSONErrorWithDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	details := &ErrorDetails{MissingPackages: []string{"Contoso.Runtime", "Contoso.Lib"}}
	err := formatter.Error(ErrCodeUnresolvable, "unresolvable dependency", details)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), `"details":{"missing_packages":["Contoso.Runtime","Contoso.Lib"]}`)

	var resp CLIResponse
	err = json.Unmarshal(buf.Bytes(), &resp)
	require.NoError(t, err)
	require.NotNil(t, resp.Error)
	assert.Equal(t, details, resp.Error.Details)
}

func TestOutputFormatter_JSONErrorOmitsEmptyDetails(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "json", Writer: buf}

	require.NoError(t, formatter.Error(ErrCodeInconsistent, "index has dangling dependency edges", nil))
	assert.NotContains(t, buf.String(), "details")
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "text",
		Writer: buf,
	}

	err := formatter.Success("index is consistent")
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "index is consistent")
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format:  "text",
		Writer:  buf,
		Verbose: false,
	}

	err := formatter.Error("E001", "unresolvable dependency", nil)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Error [E001]")
	assert.Contains(t, buf.String(), "unresolvable dependency")
}

func TestOutputFormatter_TextErrorDetails(t *testing.T) {
	tests := []struct {
		name    string
		details *ErrorDetails
		want    string
	}{
		{
			name:    "missing packages",
			details: &ErrorDetails{MissingPackages: []string{"A", "B"}},
			want:    "Error [E004]: failed\n  missing packages: A, B\n",
		},
		{
			name:    "column",
			details: &ErrorDetails{Column: "rowid"},
			want:    "Error [E004]: failed\n  column: rowid\n",
		},
		{
			name:    "database",
			details: &ErrorDetails{Database: "typo.db"},
			want:    "Error [E004]: failed\n  database: typo.db\n",
		},
		{
			name: "none",
			want: "Error [E004]: failed\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{Format: "text", Writer: buf}

			require.NoError(t, formatter.Error(ErrCodeUnresolvable, "failed", tt.details))
			assert.Equal(t, tt.want, buf.String())
		})
	}
}

func TestErrorDetails_FromIndexErrors(t *testing.T) {
	assert.Equal(t,
		&ErrorDetails{MissingPackages: []string{"A", "B"}},
		errorDetails(fmt.Errorf("add manifest: %w", dependencies.NewUnresolvableDependencyError([]string{"A", "B"}))))
	assert.Equal(t,
		&ErrorDetails{Column: "rowid"},
		errorDetails(dependencies.NewInvalidColumnError("rowid")))
	assert.Nil(t, errorDetails(errors.New("disk I/O error")))
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:  "text",
				Writer:  buf,
				Verbose: tt.verbose,
			}

			formatter.VerboseLog("Opening index %s", "pkgindex.db")

			if tt.wantLog {
				assert.Contains(t, buf.String(), "Opening index pkgindex.db")
			} else {
				assert.Empty(t, buf.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad manifest")))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitSuccess, "fine", nil))
	assert.Equal(t, ExitSuccess, GetExitCode(wrapped))
}

func TestExitError_Message(t *testing.T) {
	inner := errors.New("disk full")
	err := WrapExitError(ExitCommandError, "E002", inner)

	assert.Equal(t, "E002: disk full", err.Error())
	assert.True(t, errors.Is(err, inner))
	assert.Equal(t, "E004", NewExitError(ExitCommandError, "E004").Error())
}

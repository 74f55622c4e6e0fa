package errors

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "forgepack.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		file, exists := err.Context().GetString("file")
		if !exists || file != "forgepack.yaml" {
			t.Errorf("expected context file=forgepack.yaml, got %v", file)
		}
	})

	t.Run("Detection through wrap chain", func(t *testing.T) {
		inner := CompileError("main compilation failed").WithContext("target", "main").Build()
		wrapped := fmt.Errorf("production pipeline: %w", inner)

		if !IsClassified(wrapped) {
			t.Fatal("expected wrapped error to be classified")
		}
		if !IsCompile(wrapped) {
			t.Error("expected compile category through wrap")
		}
		if IsMissingEntry(wrapped) {
			t.Error("compile error must not look like a missing entry")
		}
		if GetCategory(errors.New("plain")) != CategoryInternal {
			t.Error("unclassified errors default to internal")
		}
	})

	t.Run("WithContext does not mutate the receiver", func(t *testing.T) {
		base := ServerBindError("bind failed").Build()
		derived := base.WithContext("port", 3000)
		if _, ok := base.Context().Get("port"); ok {
			t.Error("receiver context was mutated")
		}
		if v, _ := derived.Context().Get("port"); v != 3000 {
			t.Errorf("expected port 3000, got %v", v)
		}
	})
}

func TestTaxonomyConstructors(t *testing.T) {
	cause := errors.New("boom")
	tests := []struct {
		name     string
		err      error
		check    func(error) bool
		category ErrorCategory
		severity ErrorSeverity
	}{
		{"ConfigResolutionError", ConfigResolutionError("x").WithCause(cause).Build(), IsConfigResolution, CategoryConfig, SeverityFatal},
		{"MissingEntryError", MissingEntryError("x").Build(), IsMissingEntry, CategoryValidation, SeverityFatal},
		{"CompileError", CompileError("x").Build(), IsCompile, CategoryCompile, SeverityFatal},
		{"ServerBindError", ServerBindError("x").Build(), IsServerBind, CategoryServer, SeverityError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(tt.err) {
				t.Errorf("predicate did not match %v", tt.err)
			}
			if got := GetCategory(tt.err); got != tt.category {
				t.Errorf("expected category %s, got %s", tt.category, got)
			}
			if got := GetSeverity(tt.err); got != tt.severity {
				t.Errorf("expected severity %s, got %s", tt.severity, got)
			}
		})
	}

	c, _ := AsClassified(ConfigResolutionError("x").WithCause(cause).Build())
	if !errors.Is(c, cause) {
		t.Error("expected cause to be reachable via errors.Is")
	}
	if c.CanRetry() {
		t.Error("configuration errors are not retryable")
	}
}

func TestCLIErrorAdapter(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected int
	}{
		{"nil error", nil, 0},
		{"missing entry", MissingEntryError("renderer.entryPoints is required").Build(), 2},
		{"config resolution", ConfigResolutionError("cannot load").Build(), 7},
		{"server bind", ServerBindError("in use").Build(), 8},
		{"compile", fmt.Errorf("wrap: %w", CompileError("failed").Build()), 11},
		{"unclassified", errors.New("unknown"), 1},
	}
	adapter := NewCLIErrorAdapter(false, slog.Default())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := adapter.ExitCodeFor(tt.err); got != tt.expected {
				t.Errorf("ExitCodeFor() = %d, want %d", got, tt.expected)
			}
		})
	}
}

func TestCLIErrorAdapter_HandleError(t *testing.T) {
	var out bytes.Buffer
	var logs bytes.Buffer
	adapter := NewCLIErrorAdapter(false, slog.New(slog.NewTextHandler(&logs, nil)))
	adapter.out = &out
	code := -1
	adapter.exit = func(c int) { code = c }

	adapter.HandleError(MissingEntryError("required option is missing").
		WithContext("option", "mainConfig.entry").Build())

	if code != 2 {
		t.Errorf("expected exit code 2, got %d", code)
	}
	if !strings.Contains(out.String(), "mainConfig.entry") {
		t.Errorf("expected option name in output, got %q", out.String())
	}
	if !strings.Contains(logs.String(), "category=validation") {
		t.Errorf("expected category in log output, got %q", logs.String())
	}
}

func TestHTTPErrorAdapter(t *testing.T) {
	adapter := NewHTTPErrorAdapter(slog.Default())

	if got := adapter.StatusCodeFor(CompileError("failed").Build()); got != http.StatusServiceUnavailable {
		t.Errorf("compile errors should map to 503, got %d", got)
	}
	if got := adapter.StatusCodeFor(errors.New("x")); got != http.StatusInternalServerError {
		t.Errorf("unclassified errors should map to 500, got %d", got)
	}

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	adapter.WriteErrorResponse(rec, req, CompileError("renderer compilation failed").
		WithContext("diagnostics", "ERROR: missing import").Build())

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected JSON content type, got %q", ct)
	}
	if !strings.Contains(rec.Body.String(), "missing import") {
		t.Errorf("expected diagnostics in body, got %s", rec.Body.String())
	}
}

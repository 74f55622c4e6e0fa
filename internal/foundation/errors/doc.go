// Package errors provides the classified error primitives used across forgepack.
//
// Every failure the orchestrator surfaces to a host is a ClassifiedError carrying a
// category, a severity, a retry strategy and structured context. The taxonomy the
// build pipeline relies on is exposed through dedicated constructors:
//
//   - ConfigResolutionError: a configuration reference could not be located or parsed
//   - MissingEntryError: a required option is absent or malformed
//   - CompileError: the compiler engine reported failure for a target
//   - ServerBindError: a dev server listener could not bind its port
//
// Example usage:
//
//	err := errors.CompileError("renderer compilation failed").
//		WithContext("target", name).
//		WithContext("diagnostics", report.Log).
//		Build()
//
// CLI and HTTP adapters translate classified errors into exit codes and responses.
package errors

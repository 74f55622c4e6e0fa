// Package devserver runs one HTTP dev server per renderer entry point. Each server
// owns an incremental compiler session, waits for in-flight rebuilds before serving,
// pushes rebuild notifications over server-sent events and rebuilds when the
// bundle's inputs change on disk.
package devserver

package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyRunID      = "run_id"
	KeyBuildID    = "build_id"
	KeyMode       = "mode"
	KeyTarget     = "target"
	KeyEntryPoint = "entry_point"
	KeyPort       = "port"
	KeyChannel    = "channel"
	KeyPath       = "path"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
	KeyMethod     = "method"
	KeyStatus     = "status"
	KeyUserAgent  = "user_agent"
	KeyRemoteAddr = "remote_addr"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func RunID(id string) slog.Attr        { return slog.String(KeyRunID, id) }
func BuildID(id string) slog.Attr      { return slog.String(KeyBuildID, id) }
func Mode(m string) slog.Attr          { return slog.String(KeyMode, m) }
func Target(name string) slog.Attr     { return slog.String(KeyTarget, name) }
func EntryPoint(name string) slog.Attr { return slog.String(KeyEntryPoint, name) }
func Port(p int) slog.Attr             { return slog.Int(KeyPort, p) }
func Channel(name string) slog.Attr    { return slog.String(KeyChannel, name) }
func Path(p string) slog.Attr          { return slog.String(KeyPath, p) }
func DurationMS(ms float64) slog.Attr  { return slog.Float64(KeyDurationMS, ms) }
func Method(m string) slog.Attr        { return slog.String(KeyMethod, m) }
func Status(code int) slog.Attr        { return slog.Int(KeyStatus, code) }
func UserAgent(ua string) slog.Attr    { return slog.String(KeyUserAgent, ua) }
func RemoteAddr(a string) slog.Attr    { return slog.String(KeyRemoteAddr, a) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

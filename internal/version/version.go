package version

// Set at build time via -ldflags "-X .../internal/version.Version=...".
var (
	Version = "0.1.0"
	Commit  = "unknown"
	Date    = "unknown"
)

// UserAgent is sent with every outbound report.
func UserAgent() string {
	return "sleepy-agent/" + Version
}

package constants

// Set at build time with -ldflags "-X github.com/xeptore/mpdq/constants.Version=...".
var (
	Version     = "dev"
	CompileTime = "unknown"
)

package pkg

// overridden at build time with -ldflags "-X github.com/zombiestats/tracker/pkg.Version=..."
var (
	Version = "1.0.0"
	Commit  = "none"
)

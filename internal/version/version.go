package version

// Version is overridden at build time with -ldflags "-X geowarden/internal/version.Version=...".
var Version = "dev"

package version

// Version is the release version of plumber-queue.
var Version = "0.3.0"

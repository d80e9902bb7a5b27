package caliper

// Version is the module's semantic version, bumped on release.
const Version = "0.1.0"

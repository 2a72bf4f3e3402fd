package internal

// Version is the sahachari release, overridden at link time by the mage Build target.
var Version = "0.4.0"

// Package cli provides the sahachari command line. It builds the cobra
// command tree, binds the global flags into viper and renders service
// results as text or JSON.
package cli

//go:build mage

package main

import (
	"fmt"
	"os"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

const (
	binary  = "sahachari"
	mainPkg = "./cmd/sahachari"
	pkgPath = "codeberg.org/snonux/sahachari/internal"
)

// Default target when mage runs without arguments.
var Default = Build

func ldflags() string {
	version := os.Getenv("SAHACHARI_VERSION")
	if version == "" {
		return "-s -w"
	}
	return fmt.Sprintf("-s -w -X %s.Version=%s", pkgPath, version)
}

// Build compiles the sahachari binary.
func Build() error {
	return sh.RunV("go", "build", "-ldflags", ldflags(), "-o", binary, mainPkg)
}

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// Lint runs go vet.
func Lint() error {
	return sh.RunV("go", "vet", "./...")
}

// Install builds and installs sahachari into GOPATH/bin.
func Install() error {
	mg.Deps(Test)
	return sh.RunV("go", "install", "-ldflags", ldflags(), mainPkg)
}

// Clean removes the built binary.
func Clean() error {
	return sh.Rm(binary)
}

package main

import (
	"io"
	"os"

	docexport "github.com/alnah/go-docexport"
)

// Environment holds injectable dependencies for testability.
type Environment struct {
	Stdout io.Writer
	Stderr io.Writer
	Getenv func(string) string
	// Options are appended to the exporter options built from flags and
	// config, so tests can inject fakes.
	Options []docexport.Option
}

// DefaultEnv returns the production environment.
func DefaultEnv() *Environment {
	return &Environment{
		Stdout: os.Stdout,
		Stderr: os.Stderr,
		Getenv: os.Getenv,
	}
}

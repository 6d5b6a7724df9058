// Package main provides the entry point for the annoscan CLI.
//
// annoscan lists the classes in a package namespace that carry a given
// class-level annotation, reading compiled class files directly from
// directories and jar archives.
//
// Usage:
//
//	annoscan scan -a com.example.Anno -p build/classes com.example
//	annoscan history -a com.example.Anno com.example
//
// A .env file in the current directory is loaded first, so ANNOSCAN_CLASSPATH
// can be kept with the project. Variables already set are not overridden.
//
// See --help for all available options.
package main

import "github.com/joho/godotenv"

func main() {
	_ = godotenv.Load() //nolint:errcheck // .env is optional
	Execute()
}

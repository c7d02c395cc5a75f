// Package main is the storaged entry point. It selects the most specialized
// registered variant, starts it and blocks until it has been shut down.
//
// Exit codes:
//   - 0: clean start and shutdown
//   - 1: configuration or network startup failure, or an unclean shutdown
//   - 2: the database could not be opened, typically because another
//     process holds the data directory
package main

import (
	"fmt"
	"os"

	"storaged/internal/variants"
	"storaged/pkg/bootstrap"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	printStartupBanner()

	orchestrator := bootstrap.New(bootstrap.LoadMostSpecialized(variants.Community), bootstrap.Options{})
	if code := orchestrator.Start(args...); code != bootstrap.OK {
		return int(code)
	}

	displayControlInstructions()

	<-orchestrator.Done()
	return orchestrator.StopCode()
}

func printStartupBanner() {
	fmt.Println("🚀 Starting storaged...")
}

func displayControlInstructions() {
	fmt.Println("🛑 SERVER CONTROL INSTRUCTIONS")
	fmt.Println("• Ctrl+C or SIGTERM: graceful shutdown (new requests get HTTP 503, in-flight requests finish)")
	fmt.Println("• A second Ctrl+C during shutdown terminates immediately")
	fmt.Println()
}

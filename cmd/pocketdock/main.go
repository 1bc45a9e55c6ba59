// Command pocketdock is the CLI entry point: see internal/cli for the
// command surface.
package main

import "github.com/deftio/pocketdock/internal/cli"

func main() {
	cli.Execute()
}

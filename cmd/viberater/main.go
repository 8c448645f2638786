// Viberater CLI entry point
//
// Viberater is an offline-first client for capturing ideas, refining them
// into project plans, and tracking the resulting tasks. All reads come from
// a local cache and writes queue durably while offline, replaying when
// connectivity returns.
package main

import "github.com/viberater/viberater/internal/presentation/cli/commands"

func main() {
	commands.Execute()
}

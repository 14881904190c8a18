/*
Package dinky is a runtime for an interactive branching-narrative language in
the Ink family. It compiles a script (knots, stitches, choices, diverts,
variables, conditions, varying text) into a story model and drives sessions
that alternate between emitting paragraphs and presenting a choice menu.

# Concept

The compiler and interpreter are the core; I/O stays with the host. A session
is single-threaded and synchronous: every call returns at the next
paragraph/choice boundary, and the whole session state can be snapshotted and
restored, so play can stop and resume anywhere.

# Usage

	package main

	import (
		"fmt"
		"log"

		"github.com/propapanda/dinky"
	)

	func main() {
		story, err := dinky.Compile(source)
		if err != nil {
			log.Fatal(err)
		}
		if err := story.Begin(); err != nil {
			log.Fatal(err)
		}

		for {
			for _, p := range story.Continue(0) {
				fmt.Println(p.Text)
			}
			if !story.CanChoose() {
				break
			}
			for i, c := range story.Choices() {
				fmt.Printf("%d) %s\n", i+1, c.Title)
			}
			// In a real app the index comes from the user.
			if err := story.Choose(1); err != nil {
				log.Fatal(err)
			}
		}
	}

Use Runner for a ready-made terminal loop, or the stores under pkg/adapters
to persist sessions.
*/
package dinky

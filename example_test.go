package dinky_test

import (
	"fmt"
	"log"

	"github.com/propapanda/dinky"
)

// A minimal scripted session: narrate, pick the only choice, finish.
func Example() {
	story, err := dinky.Compile(`
-> cave
=== cave ===
The cave mouth yawns before you.
* [Enter] You step inside. -> END
`)
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
		if err := story.Choose(1); err != nil {
			log.Fatal(err)
		}
	}

	// Output:
	// The cave mouth yawns before you.
	// 1) Enter
	// You step inside.
}

// Variables are observable, and host functions extend the expression
// language.
func Example_hostIntegration() {
	story, err := dinky.Compile(`
VAR gold = 0
~ gold = reward(3)
The dealer counts out {gold} coins. -> END
`)
	if err != nil {
		log.Fatal(err)
	}

	story.Bind("reward", func(args []any) (any, error) {
		return args[0].(float64) * 7, nil
	})
	story.Observe("gold", func(name string, value any) {
		fmt.Printf("%s is now %v\n", name, value)
	})

	if err := story.Begin(); err != nil {
		log.Fatal(err)
	}
	for _, p := range story.Continue(0) {
		fmt.Println(p.Text)
	}

	// Output:
	// gold is now 21
	// The dealer counts out 21 coins.
}

package cli

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/propapanda/dinky"
	"github.com/propapanda/dinky/pkg/domain"
)

// Validate compiles the script at path and prints a report: scope counts,
// declarations, TODO lines, and divert targets that match nothing anywhere
// in the model.
func Validate(path string, out io.Writer) error {
	source, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("cannot read script: %w", err)
	}
	story, err := dinky.Compile(string(source))
	if err != nil {
		return err
	}
	model := story.Model()

	knots, stitches, blocks := 0, 0, 0
	for _, k := range model.Knots {
		knots++
		for _, st := range k.Stitches {
			stitches++
			blocks += countBlocks(st.Blocks)
		}
	}

	fmt.Fprintf(out, "%s: %d knots, %d stitches, %d blocks\n", path, knots, stitches, blocks)
	fmt.Fprintf(out, "declarations: %d constants, %d variables, %d lists, %d includes\n",
		len(model.Constants), len(model.Variables), len(model.Lists), len(model.Includes))

	if dangling := danglingDiverts(model); len(dangling) > 0 {
		fmt.Fprintf(out, "unresolved diverts:\n")
		for _, target := range dangling {
			fmt.Fprintf(out, "  -> %s\n", target)
		}
	}
	for _, todo := range model.Todos {
		fmt.Fprintf(out, "TODO (line %d): %s\n", todo.Line, todo.Text)
	}
	return nil
}

func countBlocks(items []*domain.Block) int {
	n := 0
	for _, b := range items {
		n++
		n += countBlocks(b.Node)
		for _, branch := range b.Success {
			n += countBlocks(branch)
		}
		n += countBlocks(b.Failure)
		for _, alt := range b.Alts {
			n += countBlocks(alt)
		}
	}
	return n
}

// danglingDiverts reports divert targets whose parts match no knot, stitch,
// or label anywhere. The check is necessarily loose for 1-part targets,
// which resolve against the runtime context.
func danglingDiverts(model *domain.Story) []string {
	names := make(map[string]bool)
	names[domain.EndKnot] = true
	names[domain.DoneKnot] = true
	for knotName, k := range model.Knots {
		names[knotName] = true
		for stitchName, st := range k.Stitches {
			names[stitchName] = true
			collectLabels(st.Blocks, names)
		}
	}

	missing := make(map[string]bool)
	var walk func(items []*domain.Block)
	check := func(target string) {
		for _, part := range strings.Split(target, ".") {
			if !names[part] {
				missing[target] = true
				return
			}
		}
	}
	walk = func(items []*domain.Block) {
		for _, b := range items {
			if b.Divert != "" {
				check(b.Divert)
			}
			walk(b.Node)
			for _, branch := range b.Success {
				walk(branch)
			}
			walk(b.Failure)
			for _, alt := range b.Alts {
				walk(alt)
			}
		}
	}
	for _, k := range model.Knots {
		for _, st := range k.Stitches {
			walk(st.Blocks)
		}
	}

	out := make([]string, 0, len(missing))
	for target := range missing {
		out = append(out, target)
	}
	sort.Strings(out)
	return out
}

func collectLabels(items []*domain.Block, names map[string]bool) {
	for _, b := range items {
		if b.Label != "" {
			names[b.Label] = true
		}
		collectLabels(b.Node, names)
		for _, branch := range b.Success {
			collectLabels(branch, names)
		}
		collectLabels(b.Failure, names)
		for _, alt := range b.Alts {
			collectLabels(alt, names)
		}
	}
}

package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/strata-dev/strata/pkg/statepath"
	"github.com/strata-dev/strata/pkg/strata"
)

func benchCmd() *cobra.Command {
	var (
		ops   int
		subs  int
		depth int
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure mutation and notification throughput",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBench(ops, subs, depth)
		},
	}

	cmd.Flags().IntVar(&ops, "ops", 100000, "number of set operations")
	cmd.Flags().IntVar(&subs, "subs", 100, "number of subscribers spread over the tree")
	cmd.Flags().IntVar(&depth, "depth", 3, "nesting depth of the benchmark tree")
	return cmd
}

// counter tallies delivered callbacks without the cost of a metrics backend.
type counter struct {
	notifications int
	delivered     int
}

func (c *counter) MutationObserved(string, strata.Kind) {}
func (c *counter) SubscriptionAdded(string, int)        {}
func (c *counter) SubscriptionRemoved(string, int)      {}
func (c *counter) NotifyCompleted(_ string, delivered int, _ time.Duration) {
	c.notifications++
	c.delivered += delivered
}

func runBench(ops, subs, depth int) error {
	tally := &counter{}
	store, err := strata.New("bench", benchTree(depth), strata.WithInstrument(tally))
	if err != nil {
		return err
	}

	paths := benchPaths(depth)
	for i := 0; i < subs; i++ {
		if _, err := store.Subscribe(paths[i%len(paths)], func(any) {}); err != nil {
			return err
		}
	}

	start := time.Now()
	for i := 0; i < ops; i++ {
		if err := store.Set(paths[i%len(paths)], i); err != nil {
			return err
		}
	}
	elapsed := time.Since(start)

	success("bench complete")
	info("ops:            %d in %s (%.0f ops/sec)", ops, elapsed.Round(time.Millisecond), float64(ops)/elapsed.Seconds())
	info("subscribers:    %d over %d paths", subs, len(paths))
	info("notifications:  %d waves, %d callbacks delivered", tally.notifications, tally.delivered)
	return nil
}

// benchTree builds a nested object tree depth levels deep with a leaf at
// each level.
func benchTree(depth int) map[string]any {
	tree := map[string]any{"leaf": 0}
	for i := 0; i < depth; i++ {
		tree = map[string]any{"leaf": 0, fmt.Sprintf("level%d", i): tree}
	}
	return tree
}

// benchPaths returns one leaf path per nesting level.
func benchPaths(depth int) []string {
	paths := []string{"leaf"}
	base := ""
	for i := depth - 1; i >= 0; i-- {
		base = statepath.Join(base, fmt.Sprintf("level%d", i))
		paths = append(paths, statepath.Join(base, "leaf"))
	}
	return paths
}

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/PaoloBova/llm-networks-misinformation/config"
	"github.com/PaoloBova/llm-networks-misinformation/core"
	"github.com/PaoloBova/llm-networks-misinformation/metrics"
	"github.com/PaoloBova/llm-networks-misinformation/topology"
)

func newTopologyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "topology",
		Short: "Build a network and print its structural metrics",
		Long: `Build a network from flags or from an experiment file and print its
structural metrics: degree, clustering, components, path length and diameter.

Examples:
  misinfo topology --family small-world --size 50 --k 4 --param 0.1 --seed 3
  misinfo topology --family stochastic-block --sizes 10,10 --p 0.8 --q 0.05
  misinfo topology --config experiment.yaml --edges`,
		RunE: func(cmd *cobra.Command, args []string) error {
			spec, err := topologySpec(cmd)
			if err != nil {
				return err
			}
			g, err := topology.Build(spec)
			if err != nil {
				return err
			}

			m := metrics.Compute(g)
			showEdges, _ := cmd.Flags().GetBool("edges")
			out := cmd.OutOrStdout()
			if jsonOut, _ := cmd.Flags().GetBool("json"); jsonOut {
				doc := map[string]any{"spec": spec, "metrics": m}
				if showEdges {
					doc["edges"] = g.Edges()
				}
				return writeJSON(out, doc)
			}
			printGraph(out, spec, m)
			if showEdges {
				for _, e := range g.Edges() {
					fmt.Fprintf(out, "%d -> %d\n", e.From, e.To)
				}
			}
			return nil
		},
	}

	cmd.Flags().String("config", "", "Read the topology section of an experiment file")
	cmd.Flags().String("family", string(core.FamilyRing), "Graph family")
	cmd.Flags().Int("size", 10, "Number of nodes")
	cmd.Flags().Uint64("seed", 0, "Random seed")
	cmd.Flags().Float64("param", 0, "Family connectivity parameter")
	cmd.Flags().Int("k", 0, "Lattice degree for ring and small-world")
	cmd.Flags().IntSlice("sizes", nil, "Block sizes for stochastic-block")
	cmd.Flags().Float64("p", 0, "Within-block edge probability")
	cmd.Flags().Float64("q", 0, "Between-block edge probability")
	cmd.Flags().String("connectivity", "", "Connectivity requirement (none, no-isolated, connected)")
	cmd.Flags().Bool("edges", false, "Also print the edge list")
	return cmd
}

func topologySpec(cmd *cobra.Command) (core.TopologySpec, error) {
	flags := cmd.Flags()
	if path, _ := flags.GetString("config"); path != "" {
		exp, err := config.Load(path)
		if err != nil {
			return core.TopologySpec{}, err
		}
		return exp.Topology, nil
	}

	var spec core.TopologySpec
	family, _ := flags.GetString("family")
	spec.Family = core.Family(family)
	spec.Size, _ = flags.GetInt("size")
	spec.Seed, _ = flags.GetUint64("seed")
	spec.ConnectivityParam, _ = flags.GetFloat64("param")
	spec.K, _ = flags.GetInt("k")
	spec.Sizes, _ = flags.GetIntSlice("sizes")
	spec.P, _ = flags.GetFloat64("p")
	spec.Q, _ = flags.GetFloat64("q")
	connectivity, _ := flags.GetString("connectivity")
	spec.Connectivity = core.Connectivity(connectivity)
	return spec, nil
}

func printGraph(w io.Writer, spec core.TopologySpec, m metrics.GraphMetrics) {
	fmt.Fprintf(w, "Family:              %s\n", spec.Family)
	fmt.Fprintf(w, "Nodes:               %d\n", m.Nodes)
	fmt.Fprintf(w, "Edges:               %d\n", m.Edges)
	fmt.Fprintf(w, "Average degree:      %.3f\n", m.AverageDegree)
	fmt.Fprintf(w, "Clustering:          %.3f\n", m.Clustering)
	fmt.Fprintf(w, "Components:          %d\n", m.Components)
	if m.AveragePathLength != nil {
		fmt.Fprintf(w, "Average path length: %.3f\n", *m.AveragePathLength)
	}
	if m.Diameter != nil {
		fmt.Fprintf(w, "Diameter:            %d\n", *m.Diameter)
	}
}

// gnnbatch generates synthetic molecules, batches them with a graphs.Loader and runs a readout block over
// every batch, reporting statistics of the batches and of the per-graph outputs.
//
// Example:
//
//	gnnbatch run --config=gnnbatch.yaml --epochs=2 -v=1
//	gnnbatch config > gnnbatch.yaml
package main

import (
	"flag"
	"os"

	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var rootCmd = &cobra.Command{
	Use:   "gnnbatch",
	Short: "Batch atomistic graphs and run GNN readout blocks over them",
	Long: `gnnbatch generates synthetic molecules, merges them into batches of disjoint graphs
and runs a readout block (node2prop1 or node2prop2) over each batch.`,
	SilenceUsage: true,
}

func main() {
	klog.InitFlags(nil)
	rootCmd.PersistentFlags().AddGoFlagSet(flag.CommandLine)
	rootCmd.AddCommand(newRunCmd(), newConfigCmd())
	if err := rootCmd.Execute(); err != nil {
		klog.Errorf("%+v", err)
		klog.Flush()
		os.Exit(1)
	}
	klog.Flush()
}

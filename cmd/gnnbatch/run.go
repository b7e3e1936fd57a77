package main

import (
	"io"

	"github.com/gomlx/atomgnn/examples/molecules"
	"github.com/gomlx/atomgnn/ml/data/graphs"
	"github.com/gomlx/atomgnn/ml/data/keys"
	"github.com/gomlx/atomgnn/ml/layers/cutoff"
	"github.com/gomlx/atomgnn/ml/layers/readout"
	"github.com/gomlx/atomgnn/types/tensors"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

var (
	flagConfig    string
	flagEpochs    int
	flagMolecules int
	flagProgress  bool
)

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Batch synthetic molecules and run the readout block over them",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			config, err := LoadConfig(flagConfig)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("epochs") {
				config.Epochs = flagEpochs
			}
			if cmd.Flags().Changed("molecules") {
				config.Molecules.NumMolecules = flagMolecules
			}
			report, err := Run(config, flagProgress)
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&flagConfig, "config", "", "YAML configuration file. See the output of 'gnnbatch config' for the defaults.")
	cmd.Flags().IntVar(&flagEpochs, "epochs", 1, "Number of epochs, overrides the configuration.")
	cmd.Flags().IntVar(&flagMolecules, "molecules", 100, "Number of molecules generated, overrides the configuration.")
	cmd.Flags().BoolVar(&flagProgress, "progress", true, "Display a progress bar for each epoch.")
	return cmd
}

// Run the batching and readout pipeline described by config, returning the statistics collected.
func Run(config Config, showProgress bool) (*Report, error) {
	ds, err := molecules.New(config.Molecules)
	if err != nil {
		return nil, err
	}
	var dataset graphs.Dataset = ds
	var cached *graphs.CachedDataset
	if config.CacheSize > 0 {
		cached, err = graphs.Cached(ds, config.CacheSize)
		if err != nil {
			return nil, err
		}
		dataset = cached
	}
	loader, err := graphs.NewLoader(dataset, config.Loader)
	if err != nil {
		return nil, err
	}
	var source graphs.Source = loader
	if config.Prefetch > 0 {
		prefetcher := graphs.Prefetch(loader, config.Prefetch)
		defer prefetcher.Close()
		source = prefetcher
	}
	fn, err := cutoff.New(config.Cutoff.Type, config.Cutoff.Radius)
	if err != nil {
		return nil, err
	}
	config.Readout.InDim = molecules.NumFeatures
	block, err := readout.New(config.Block, config.Readout)
	if err != nil {
		return nil, err
	}
	klog.V(1).Infof("gnnbatch: %s, %s, %s", ds, source.Name(), block)

	report := &Report{Block: config.Block, Parameters: block.NumParameters(), OutDim: config.Readout.OutDim}
	for epoch := range config.Epochs {
		if epoch > 0 {
			source.Reset()
		}
		var bar *progressBar
		if showProgress {
			bar = newProgressBar(loader.NumBatches(), epoch)
		}
		for {
			batch, err := source.Next()
			if err == io.EOF {
				break
			}
			if err != nil {
				bar.Done()
				return nil, errors.WithMessagef(err, "epoch %d", epoch)
			}
			if err = report.addBatch(batch, fn, block); err != nil {
				bar.Done()
				return nil, errors.WithMessagef(err, "epoch %d, batch %d", epoch, report.Batches)
			}
			bar.Add(report.Graphs, report.Nodes)
		}
		bar.Done()
		report.Epochs++
	}
	if cached != nil {
		report.CacheHits, report.CacheMisses = cached.Stats()
	}
	return report, nil
}

// addBatch runs the readout over the batch and accumulates its statistics.
func (r *Report) addBatch(batch *graphs.Record, fn cutoff.Function, block readout.Block) error {
	numNodes, err := batch.NumNodes()
	if err != nil {
		return err
	}
	batchVector := batch.Get(keys.Batch)
	sizes, err := readout.GroupSizes(batchVector, numNodes)
	if err != nil {
		return err
	}
	features, err := molecules.NodeFeatures(batch, fn)
	if err != nil {
		return err
	}
	outputs, err := block.Forward(features, batchVector)
	if err != nil {
		return err
	}

	r.Batches++
	r.Graphs += len(sizes)
	r.Nodes += numNodes
	r.Edges += batch.NumEdges()
	r.Memory += batch.Memory()
	outputValues := tensors.CopyFlatDataAs[float64](outputs)
	for graph, size := range sizes {
		r.Predictions = append(r.Predictions, outputValues[graph*r.OutDim])
		r.NumAtoms = append(r.NumAtoms, float64(size))
	}
	if target := batch.Get(keys.Target); target != nil {
		r.Targets = append(r.Targets, tensors.CopyFlatDataAs[float64](target)...)
	}
	return nil
}

package main

import (
	"fmt"
	"os"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		return
	}

	var err error
	switch cmd := os.Args[1]; cmd {
	case "train":
		err = RunTrainCommand(os.Args[2:])
	case "split":
		err = RunSplitCommand(os.Args[2:])
	case "prepare":
		err = RunPrepareCommand(os.Args[2:])
	case "evaluate":
		err = RunEvaluateCommand(os.Args[2:])
	case "help", "-h", "--help":
		printUsage()
		return
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", cmd)
		printUsage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Usage:")
	fmt.Println("  molgraph [command] [options]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  prepare     Normalize dataset labels and write norm.npz")
	fmt.Println("  split       Generate k-fold indices (indices.npz)")
	fmt.Println("  train       Train the graph model on one fold and report errors")
	fmt.Println("  evaluate    Report errors of a saved checkpoint on one fold")
	fmt.Println("  help        Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  molgraph prepare -raw=data/graphs_raw.npz -num_graphs=492")
	fmt.Println("  molgraph split -folds=10 -data=data/graphs.npz -seed=7")
	fmt.Println("  molgraph train -epochs=1000 -running_index=0 -idx_path=data/indices.npz")
	fmt.Println("  molgraph evaluate -checkpoint_file=checkpoints/checkpoint_999.npz")
	fmt.Println()
}

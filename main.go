// Package main provides the entry point for csim.
// csim is a trace-driven set-associative cache simulator.
//
// For the full CLI, use: go run ./cmd/csim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("csim - Cache Simulator")
	fmt.Println("Replays valgrind memory traces against an LRU cache")
	fmt.Println("")
	fmt.Println("Usage: csim [-hv] -s <s> -E <E> -b <b> -t <tracefile>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -s <s>          Number of set index bits (S = 2^s is the number of sets)")
	fmt.Println("  -E <E>          Associativity (number of lines per set)")
	fmt.Println("  -b <b>          Number of block bits (B = 2^b is the block size)")
	fmt.Println("  -t <tracefile>  Name of the valgrind trace to replay")
	fmt.Println("  -v              Verbose output")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/csim' for the full CLI.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/csim' instead.")
	}
}

// Diagnostic tool for inspecting N5 roots
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"github.com/robert-malhotra/go-n5/n5"
)

func main() {
	configPath := flag.String("config", "", "YAML options file")
	logLevel := flag.String("log-level", "warn", "log level (debug, info, warn, error)")
	check := flag.Bool("check", false, "decode every stored block")
	flag.Usage = func() {
		fmt.Fprintln(os.Stderr, "Usage: diagnose [flags] <root.n5> [path]")
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() < 1 {
		flag.Usage()
		os.Exit(1)
	}
	root := flag.Arg(0)
	start := ""
	if flag.NArg() > 1 {
		start = flag.Arg(1)
	}

	logger := logrus.New()
	level, err := logrus.ParseLevel(*logLevel)
	if err != nil {
		fmt.Printf("ERROR: %v\n", err)
		os.Exit(1)
	}
	logger.SetLevel(level)

	opts := []n5.Option{n5.WithLogger(logger)}
	if *configPath != "" {
		fileOpts, err := n5.LoadOptions(*configPath)
		if err != nil {
			fmt.Printf("ERROR: %v\n", err)
			os.Exit(1)
		}
		opts = append(opts, fileOpts...)
	}

	fmt.Printf("=== Analyzing %s ===\n\n", root)

	s, err := n5.Open(root, opts...)
	if err != nil {
		fmt.Printf("ERROR: Failed to open root: %v\n", err)
		os.Exit(1)
	}
	defer s.Close()

	version, err := s.Version()
	if err != nil {
		fmt.Printf("ERROR reading version: %v\n", err)
	} else {
		fmt.Printf("N5 version: %s\n", version)
	}
	fmt.Println()

	var total n5.DatasetStats
	datasets, failures := 0, 0
	err = s.Walk(start, func(path string, attrs *n5.DatasetAttributes, err error) error {
		name := path
		if name == "" {
			name = "/"
		}
		if err != nil {
			fmt.Printf("%q: ERROR %v\n", name, err)
			failures++
			return nil
		}
		if attrs == nil {
			fmt.Printf("Group %q\n", name)
			return nil
		}

		datasets++
		fmt.Printf("Dataset %q:\n", name)
		fmt.Printf("  Shape: %v  Block: %v  Type: %s  Compression: %s\n",
			attrs.Dimensions(), attrs.BlockSize(), attrs.DataType(), attrs.Compression().Type())

		stats, err := s.Stats(path)
		if err != nil {
			fmt.Printf("  ERROR collecting stats: %v\n", err)
			failures++
			return nil
		}
		total.Blocks += stats.Blocks
		total.Bytes += stats.Bytes

		nominal := uint64(stats.Blocks) * uint64(attrs.BlockBytes())
		fmt.Printf("  Blocks: %s of %s  Stored: %s",
			humanize.Comma(int64(stats.Blocks)), humanize.Comma(attrs.NumBlocks()), humanize.Bytes(uint64(stats.Bytes)))
		if stats.Bytes > 0 {
			fmt.Printf("  Ratio: %.2f", float64(nominal)/float64(stats.Bytes))
		}
		fmt.Println()

		if *check {
			failures += checkBlocks(s, path, attrs)
		}
		return nil
	})
	if err != nil {
		fmt.Printf("ERROR: walk failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("\n%d datasets, %s blocks, %s stored\n",
		datasets, humanize.Comma(int64(total.Blocks)), humanize.Bytes(uint64(total.Bytes)))
	if failures > 0 {
		fmt.Printf("%d problems found\n", failures)
		os.Exit(2)
	}
}

func checkBlocks(s *n5.Store, path string, attrs *n5.DatasetAttributes) int {
	coords, err := s.StoredBlocks(path)
	if err != nil {
		fmt.Printf("  ERROR listing blocks: %v\n", err)
		return 1
	}
	bad := 0
	for _, coord := range coords {
		b, err := s.ReadBlock(path, attrs, coord)
		if err != nil {
			fmt.Printf("  Block %v: ERROR %v\n", coord, err)
			bad++
			continue
		}
		if b != nil && b.NumElements() != attrs.BlockCount() {
			fmt.Printf("  Block %v: irregular size %v\n", coord, b.Size)
		}
	}
	if bad == 0 {
		fmt.Printf("  Check: %d blocks OK\n", len(coords))
	}
	return bad
}

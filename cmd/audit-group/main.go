package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/akintola/customs-audit/internal/common"
	"github.com/akintola/customs-audit/internal/fileops"
	"github.com/akintola/customs-audit/internal/grouping"
)

// printError prints an error message to stderr, falling back to stdout if stderr fails
func printError(format string, args ...interface{}) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		fmt.Printf(format, args...)
	}
}

func main() {
	var (
		in  = flag.String("in", "", "input folder of loose documents and zip archives (required)")
		out = flag.String("out", "", "base directory for the grouped folder (defaults to OUTPUT_DIRECTORY)")
	)
	flag.Parse()

	if *in == "" {
		printError("Error: --in is required\n")
		os.Exit(1)
	}

	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
	slog.SetDefault(logger)

	if *out == "" {
		cfg := common.LoadConfig()
		*out = cfg.Output.BaseDir
	}

	paths, err := grouping.ScanInputFolder(*in, logger)
	if err != nil {
		logger.Error("failed to scan input folder", "error", err)
		os.Exit(1)
	}
	if len(paths) == 0 {
		printError("Error: no documents found in %s\n", *in)
		os.Exit(1)
	}

	groups := grouping.GroupByJob(paths)
	groupedDir, err := grouping.Organize(groups, *out, fileops.NewCopier(logger), logger)
	if err != nil {
		logger.Error("failed to organize documents", "error", err)
		os.Exit(1)
	}

	unknown := len(groups[grouping.UnknownJobID])
	fmt.Printf("Grouping complete!\n")
	fmt.Printf("- Documents: %d\n", len(paths))
	fmt.Printf("- Jobs: %d\n", len(groups))
	if unknown > 0 {
		fmt.Printf("- Unmatched documents: %d (see job_%s)\n", unknown, grouping.UnknownJobID)
	}
	fmt.Printf("- Output: %s\n", groupedDir)
}

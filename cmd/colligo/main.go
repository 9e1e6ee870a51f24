package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/colligo/internal/common"
)

var (
	configFile   = flag.String("config", "", "Configuration file path")
	configFileC  = flag.String("c", "", "Configuration file path (shorthand)")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")

	config *common.Config
	logger arbor.ILogger
)

func usage() {
	fmt.Fprintf(os.Stderr, `Colligo - website capture engine

Usage:
  colligo [flags] capture <seed-url> [<seed-url>...]   Run a capture job to completion
  colligo [flags] resume <job-id>                      Resume an interrupted job
  colligo [flags] jobs                                 List stored jobs
  colligo [flags] report [json|text]                   Print the diagnostic report

Flags:
`)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = usage
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("Colligo version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(2)
	}

	// Startup order: config, logger, banner
	configPath := *configFile
	if configPath == "" {
		configPath = *configFileC
	}
	if configPath == "" {
		configPath = "colligo.toml"
	}

	var err error
	config, err = common.LoadFromFile(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger = common.InitLogger(config)
	common.PrintBanner(common.GetVersion())

	logger.Debug().
		Str("db_path", config.Storage.Badger.Path).
		Str("log_level", config.Logging.Level).
		Msg("Resolved configuration")

	var exitCode int
	switch args[0] {
	case "capture":
		exitCode = runCapture(args[1:])
	case "resume":
		exitCode = runResume(args[1:])
	case "jobs":
		exitCode = runJobs()
	case "report":
		exitCode = runReport(args[1:])
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", args[0])
		usage()
		exitCode = 2
	}
	os.Exit(exitCode)
}

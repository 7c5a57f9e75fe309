package main

import (
	"flag"

	"github.com/BurntSushi/toml"
	"github.com/ngaut/log"

	"github.com/tinytablet/tinytablet/inmem"
	"github.com/tinytablet/tinytablet/sample"
)

var (
	configPath     = flag.String("config", "", "config file path")
	masterAddr     = flag.String("master", "", "master address")
	tableName      = flag.String("table", "", "table name")
	tablets        = flag.Int("tablets", 0, "tablet count")
	rows           = flag.Int("rows", -1, "row count")
	scanLower      = flag.Uint("scan-lower", 0, "scan lower bound (inclusive)")
	scanUpper      = flag.Uint("scan-upper", 0, "scan upper bound (inclusive)")
	noLocalCluster = flag.Bool("no-local-cluster", false, "do not start an in-process cluster on the master address")
)

func main() {
	flag.Parse()
	cfg := loadConfig()

	log.SetLevelByString(cfg.LogLevel)
	log.SetFlags(log.Ldate | log.Ltime | log.Lmicroseconds | log.Lshortfile)

	if err := cfg.Validate(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	if !*noLocalCluster {
		inmem.DefaultRegistry.Serve(cfg.MasterAddr, inmem.NewCluster(inmem.NewDefaultConfig()))
	}

	if err := sample.Run(cfg, inmem.DefaultRegistry); err != nil {
		log.Fatalf("sample failed: %v", err)
	}
	log.Info("Done")
}

// loadConfig layers the toml file (if any) over the defaults, then any
// explicitly set flags over both.
func loadConfig() *sample.Config {
	cfg := sample.NewDefaultConfig()
	if *configPath != "" {
		if _, err := toml.DecodeFile(*configPath, cfg); err != nil {
			log.Fatalf("failed to load config from %s: %v", *configPath, err)
		}
	}
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "master":
			cfg.MasterAddr = *masterAddr
		case "table":
			cfg.TableName = *tableName
		case "tablets":
			cfg.Tablets = *tablets
		case "rows":
			cfg.Rows = *rows
		case "scan-lower":
			cfg.ScanLowerBound = uint32(*scanLower)
		case "scan-upper":
			cfg.ScanUpperBound = uint32(*scanUpper)
		}
	})
	return cfg
}

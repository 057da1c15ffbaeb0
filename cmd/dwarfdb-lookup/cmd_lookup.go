package main

import (
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/ndl/dwarf-idea/dwarfdb"
)

var configFlag = &cli.StringFlag{
	Name:  "config",
	Usage: "Path to an optional YAML/JSON sidecar config setting cache sizes and mmap usage.",
}

// resolveOptions loads --config if set, otherwise returns
// dwarfdb.DefaultOptions().
func resolveOptions(c *cli.Context) (dwarfdb.Options, error) {
	path := c.String("config")
	if path == "" {
		return dwarfdb.DefaultOptions(), nil
	}
	cfg, err := LoadConfig(path)
	if err != nil {
		return dwarfdb.Options{}, cli.Exit(err, 1)
	}
	return cfg.ToOptions(), nil
}

func newCmd_Lookup() *cli.Command {
	return &cli.Command{
		Name:      "lookup",
		Usage:     "Look up a single hex-encoded key in a dwarfdb file.",
		ArgsUsage: "<db-path> <hex-key>",
		Flags: []cli.Flag{
			configFlag,
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 2 {
				return cli.Exit("lookup requires two arguments: <db-path> <hex-key>", 1)
			}
			opts, err := resolveOptions(c)
			if err != nil {
				return err
			}
			db, err := dwarfdb.Open(c.Args().Get(0), opts)
			if err != nil {
				return cli.Exit(fmt.Errorf("open: %w", err), 1)
			}
			defer db.Close()

			key, err := parseHexKey(c.Args().Get(1))
			if err != nil {
				return cli.Exit(err, 1)
			}

			result, err := db.Lookup(key)
			if err != nil {
				return cli.Exit(fmt.Errorf("lookup: %w", err), 1)
			}
			if result == nil {
				fmt.Println("miss")
				return nil
			}
			fmt.Printf("lat=%v lon=%v extra=%s\n", result.Lat, result.Lon, hex.EncodeToString(result.ExtraData))
			return nil
		},
	}
}

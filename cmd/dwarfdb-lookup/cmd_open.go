package main

import (
	"encoding/hex"
	"fmt"

	"github.com/urfave/cli/v2"
	"k8s.io/klog/v2"

	"github.com/ndl/dwarf-idea/dwarfdb"
)

func newCmd_Open() *cli.Command {
	return &cli.Command{
		Name:      "open",
		Usage:     "Open a dwarfdb file and print its header summary.",
		ArgsUsage: "<db-path>",
		Flags: []cli.Flag{
			configFlag,
		},
		Action: func(c *cli.Context) error {
			if c.Args().Len() != 1 {
				return cli.Exit("open requires exactly one argument: <db-path>", 1)
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

			maxDistErr, err := db.MaxDistError()
			if err != nil {
				return cli.Exit(fmt.Errorf("max_dist_error: %w", err), 1)
			}
			stats := db.Stats()
			fmt.Printf("opened ok, max_dist_error=%v\n", maxDistErr)
			fmt.Printf("caches: result=%d keys=%d coords=%d extra=%d\n",
				stats.ResultCacheLen, stats.KeysCacheLen, stats.CoordsCacheLen, stats.ExtraCacheLen)
			klog.V(1).Infof("session %s opened %s", SessionID, c.Args().Get(0))
			return nil
		},
	}
}

// parseHexKey decodes a hex-encoded raw lookup key argument.
func parseHexKey(s string) ([]byte, error) {
	key, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex key %q: %w", s, err)
	}
	return key, nil
}

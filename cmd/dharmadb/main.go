// Command dharmadb is a small demo CLI over the storage engine: a
// string-keyed, string-valued DB exercised through put/get/delete/flush/
// compact/stats subcommands. It holds no engine logic of its own.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/urfave/cli/v3"

	"github.com/sushrut141/dharmadb/codec"
	"github.com/sushrut141/dharmadb/config"
	"github.com/sushrut141/dharmadb/dharmadb"
	"github.com/sushrut141/dharmadb/persistence"
	"github.com/sushrut141/dharmadb/sstable"
)

const tombstone = "\x00__tombstone__\x00"

func openDB(dataDir string) (*dharmadb.DB[string, string], error) {
	return dharmadb.Open[string, string](
		dataDir,
		config.WithCodecs[string, string](codec.String, codec.String, codec.StringLess),
		config.WithTombstone[string, string](tombstone, func(a, b string) bool { return a == b }),
		config.WithLogger[string, string](persistence.DefaultLogger()),
	)
}

func dataDirFlag() cli.Flag {
	return &cli.StringFlag{
		Name:     "data-dir",
		Aliases:  []string{"d"},
		Usage:    "directory the engine persists to",
		Required: true,
	}
}

func main() {
	app := &cli.Command{
		Name:  "dharmadb",
		Usage: "inspect and drive a dharmadb storage engine instance",
		Commands: []*cli.Command{
			putCommand(),
			getCommand(),
			deleteCommand(),
			flushCommand(),
			compactCommand(),
			statsCommand(),
		},
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "dharmadb: %v\n", err)
		os.Exit(1)
	}
}

func putCommand() *cli.Command {
	return &cli.Command{
		Name:  "put",
		Usage: "store a key-value pair",
		Flags: []cli.Flag{
			dataDirFlag(),
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Required: true},
			&cli.StringFlag{Name: "value", Aliases: []string{"v"}, Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, err := openDB(cmd.String("data-dir"))
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Put(cmd.String("key"), cmd.String("value"))
		},
	}
}

func getCommand() *cli.Command {
	return &cli.Command{
		Name:  "get",
		Usage: "retrieve the value for a key",
		Flags: []cli.Flag{
			dataDirFlag(),
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, err := openDB(cmd.String("data-dir"))
			if err != nil {
				return err
			}
			defer db.Close()
			value, ok, err := db.Get(cmd.String("key"))
			if err != nil {
				return err
			}
			if !ok {
				fmt.Println("(not found)")
				return nil
			}
			fmt.Println(value)
			return nil
		},
	}
}

func deleteCommand() *cli.Command {
	return &cli.Command{
		Name:  "delete",
		Usage: "delete a key",
		Flags: []cli.Flag{
			dataDirFlag(),
			&cli.StringFlag{Name: "key", Aliases: []string{"k"}, Required: true},
		},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, err := openDB(cmd.String("data-dir"))
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Delete(cmd.String("key"))
		},
	}
}

func flushCommand() *cli.Command {
	return &cli.Command{
		Name:  "flush",
		Usage: "flush the memtable to a new SSTable immediately",
		Flags: []cli.Flag{dataDirFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, err := openDB(cmd.String("data-dir"))
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Flush()
		},
	}
}

func compactCommand() *cli.Command {
	return &cli.Command{
		Name:  "compact",
		Usage: "run basic compaction immediately",
		Flags: []cli.Flag{dataDirFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			db, err := openDB(cmd.String("data-dir"))
			if err != nil {
				return err
			}
			defer db.Close()
			return db.Compact()
		},
	}
}

func statsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stats",
		Usage: "print the SSTable count under the data directory",
		Flags: []cli.Flag{dataDirFlag()},
		Action: func(ctx context.Context, cmd *cli.Command) error {
			dataDir := cmd.String("data-dir")
			paths, err := sstable.ListTables(dataDir)
			if err != nil {
				return err
			}
			fmt.Printf("tables: %d\n", len(paths))
			return nil
		},
	}
}

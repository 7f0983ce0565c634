// atomtool is the operator CLI of the SQL atom store: schema creation,
// destructive wipes, bulk loads, and statistics reporting.
package main

import (
	"os"

	"github.com/jessevdk/go-flags"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/shadowridgedev/atomspace/atom"
	"github.com/shadowridgedev/atomspace/sqlstore"
)

var baseCfg = new(struct {
	URI      string `long:"uri" env:"ATOMSPACE_URI" description:"Database connection URI (postgres..., odbc..., sqlite...)"`
	Config   string `long:"config" env:"ATOMSPACE_CONFIG" description:"Path to a YAML config file; its uri overrides --uri"`
	LogLevel string `long:"log.level" default:"info" choice:"debug" choice:"info" choice:"warn" choice:"error" description:"Logging level"`
})

var parser = flags.NewParser(baseCfg, flags.Default)

func openStore() (*sqlstore.Store, error) {
	if lvl, err := log.ParseLevel(baseCfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}

	var uri = baseCfg.URI
	var opts sqlstore.Options

	if baseCfg.Config != "" {
		var cfg, err = sqlstore.LoadConfig(baseCfg.Config)
		if err != nil {
			return nil, err
		}
		uri, opts = cfg.URI, cfg.Options()
	}
	if uri == "" {
		return nil, errors.New("no database uri; use --uri or --config")
	}
	return sqlstore.Open(uri, opts)
}

type cmdInit struct{}

func (cmdInit) Execute([]string) error {
	var store, err = openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err = store.CreateTables(); err != nil {
		return err
	}
	log.Info("schema created")
	return nil
}

type cmdWipe struct {
	Force bool `long:"force" description:"Actually do it"`
}

func (c cmdWipe) Execute([]string) error {
	if !c.Force {
		return errors.New("wipe destroys all data; pass --force to proceed")
	}
	var store, err = openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	if err = store.KillData(); err != nil {
		return err
	}
	log.Warn("all data wiped")
	return nil
}

type cmdStats struct{}

func (cmdStats) Execute([]string) error {
	var store, err = openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	store.PrintStats(os.Stdout)
	return nil
}

type cmdLoad struct{}

func (cmdLoad) Execute([]string) error {
	var store, err = openStore()
	if err != nil {
		return err
	}
	defer store.Close()

	var table = atom.NewTable(1, nil)
	store.RegisterWith(table)
	defer store.UnregisterWith(table)

	if err = store.Load(table); err != nil {
		return err
	}
	log.WithField("atoms", table.Size()).Info("load complete")
	store.PrintStats(os.Stdout)
	return nil
}

func addCmd(name, summary, description string, cmd interface{}) {
	if _, err := parser.AddCommand(name, summary, description, cmd); err != nil {
		panic(err)
	}
}

func main() {
	addCmd("init", "Create the database schema",
		"Create the Spaces, Atoms, Valuations, Values and TypeCodes tables, with the two default spaces.", &cmdInit{})
	addCmd("wipe", "Destroy all data",
		"Delete every atom, value and space. Test databases only.", &cmdWipe{})
	addCmd("stats", "Report store statistics",
		"Print store, load and write-queue statistics.", &cmdStats{})
	addCmd("load", "Bulk-load the database",
		"Load every atom into an in-memory table, by ascending height, and report.", &cmdLoad{})

	if _, err := parser.Parse(); err != nil {
		os.Exit(1)
	}
}

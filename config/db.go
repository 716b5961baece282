package config

import (
	dbm "github.com/cometbft/cometbft-db"

	"github.com/Mukzid/anoma/libs/db/badgerdb"
)

// DBContext specifies config information for loading a new DB.
type DBContext struct {
	ID     string
	Config *Config
	// Path overrides Config.DBDir when set.
	Path string
}

// DBProvider takes a DBContext and returns an instantiated DB.
type DBProvider func(*DBContext) (dbm.DB, error)

// DefaultDBProvider returns a database object ready for the backend and
// directory specified in the config.
func DefaultDBProvider(ctx *DBContext) (dbm.DB, error) {
	path := ctx.Path
	if path == "" {
		path = ctx.Config.DBDir()
	}

	// badgerdb goes through our own wrapper, everything else through
	// cometbft-db directly.
	if ctx.Config.DBBackend == "badgerdb" {
		return badgerdb.NewDB(ctx.ID, path)
	}

	dbType := dbm.BackendType(ctx.Config.DBBackend)
	return dbm.NewDB(ctx.ID, dbType, path)
}

// seed carga unidades, productos, ubicaciones y stock de apertura desde un archivo YAML.
//
// Uso: go run ./cmd/seed -company <id> [-file fixtures/demo.yaml] [-charset latin1]
// La conexión a PostgreSQL sale de la misma configuración que la API (DB_*, DATABASE_URL).
package main

import (
	"context"
	"flag"
	"os"

	"github.com/jhoicas/stock-ledger/internal/application/inventory"
	"github.com/jhoicas/stock-ledger/internal/application/seed"
	"github.com/jhoicas/stock-ledger/internal/infrastructure/postgres"
	"github.com/jhoicas/stock-ledger/pkg/config"
	"github.com/jhoicas/stock-ledger/pkg/logger"
)

func main() {
	file := flag.String("file", "fixtures/demo.yaml", "archivo YAML de datos iniciales")
	charset := flag.String("charset", "", "codificación del archivo (utf-8 o latin1)")
	companyID := flag.String("company", "", "empresa dueña de productos, ubicaciones y stock")
	userID := flag.String("user", "seed", "usuario que firma el ajuste de apertura")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		panic("cargar configuración: " + err.Error())
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.App.LogLevel, App: "seed"})

	f, err := os.Open(*file)
	if err != nil {
		log.Fatal().Err(err).Str("file", *file).Msg("abrir fixture")
	}
	defer f.Close()
	fixture, err := seed.Decode(f, *charset)
	if err != nil {
		log.Fatal().Err(err).Msg("leer fixture")
	}

	ctx := context.Background()
	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		log.Fatal().Err(err).Msg("conexión a PostgreSQL")
	}
	defer pool.Close()

	opts := inventory.DefaultOptions()
	opts.CostPrecision = int32(cfg.Stock.CostPrecision)
	opts.LossLocationID = cfg.Stock.LossLocationID
	opts.Logger = log.Component("inventory")

	txRunner := postgres.NewTxRunner(pool, cfg.Stock.TxMaxRetries, log.Component("postgres"))
	catalog := postgres.NewProductCatalog(pool)
	engine := inventory.NewEngine(txRunner, catalog, opts)

	loader := seed.NewLoader(txRunner, catalog, engine, log.Component("seed"))
	if _, err := loader.Load(ctx, *companyID, *userID, fixture); err != nil {
		log.Fatal().Err(err).Msg("cargar fixture")
	}
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jessevdk/go-flags"
	log "github.com/sirupsen/logrus"
	clientv3 "go.etcd.io/etcd/client/v3"

	"github.com/estuary/sqlflow/config"
	"github.com/estuary/sqlflow/field"
	"github.com/estuary/sqlflow/service"
	"github.com/estuary/sqlflow/storage"
)

// Config is the top-level configuration object of a sqlflowd host.
var Config = new(config.Config)

type cmdServe struct{}

func (cmdServe) Execute(_ []string) error {
	if level, err := log.ParseLevel(Config.Log.Level); err == nil {
		log.SetLevel(level)
	}
	log.WithField("config", Config).Info("sqlflowd configuration")

	var etcd, err = clientv3.New(clientv3.Config{Endpoints: Config.Etcd.Endpoints})
	if err != nil {
		return fmt.Errorf("dialing etcd: %w", err)
	}
	defer etcd.Close()

	var ctx = context.Background()
	var catalog, catalogErr = storage.NewCatalogMirror(ctx, etcd, Config.Storage.EtcdRoot)
	if catalogErr != nil {
		return fmt.Errorf("loading catalog mirror: %w", catalogErr)
	}
	go func() {
		if watchErr := catalog.Watch(ctx); watchErr != nil && ctx.Err() == nil {
			log.WithError(watchErr).Error("catalog mirror watch stopped")
		}
	}()

	var store = storage.NewMemStore(field.NewKeyComparator([]int{0}))
	var bridge = service.NewBridge(Config, store, storage.NewManager(), catalog)
	if err := bridge.Start(); err != nil {
		return fmt.Errorf("starting service: %w", err)
	}

	log.Info("sqlflowd started")

	var signalCh = make(chan os.Signal, 1)
	signal.Notify(signalCh, syscall.SIGTERM, syscall.SIGINT)
	<-signalCh

	log.Info("caught signal, shutting down")
	if err := bridge.Shutdown(); err != nil {
		return fmt.Errorf("shutting down service: %w", err)
	}
	log.Info("goodbye")
	return nil
}

func main() {
	var parser = flags.NewParser(Config, flags.Default)
	if _, err := parser.AddCommand("serve", "Serve the SQL dataflow engine", `
Serve the SQL dataflow engine with the provided configuration, until
signaled to exit (via SIGTERM or SIGINT).
`, &cmdServe{}); err != nil {
		log.WithError(err).Fatal("registering serve command")
	}

	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		log.WithError(err).Fatal("sqlflowd failed")
	}
}

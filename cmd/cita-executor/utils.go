// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"math"
	"net"
	"net/http"
	"os"
	"os/signal"
	"os/user"
	"path/filepath"
	"runtime/debug"
	"syscall"
	"time"

	"github.com/elastic/gosigar"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	cli "gopkg.in/urfave/cli.v1"
	"gopkg.in/yaml.v3"

	"github.com/citahub/cita-executor/builtin"
	"github.com/citahub/cita-executor/co"
	"github.com/citahub/cita-executor/genesis"
	"github.com/citahub/cita-executor/log"
	"github.com/citahub/cita-executor/logdb"
	"github.com/citahub/cita-executor/metrics"
	"github.com/citahub/cita-executor/muxdb"
	"github.com/citahub/cita-executor/native"
	"github.com/citahub/cita-executor/runtime"
	"github.com/citahub/cita-executor/service"
)

// stored in place of a genesis file when the dev genesis is used
const devGenesis = "devnet"

func homeDir() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	if usr, err := user.Current(); err == nil {
		return usr.HomeDir
	}
	return ""
}

func defaultDataDir() string {
	if home := homeDir(); home != "" {
		return filepath.Join(home, ".cita-executor")
	}
	return ""
}

// loadConfig fills flags not given on the command line from the config file.
func loadConfig(ctx *cli.Context) error {
	path := ctx.String(configFlag.Name)
	if path == "" {
		return nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrap(err, "read config")
	}
	return applyConfig(ctx, data)
}

func applyConfig(ctx *cli.Context, data []byte) error {
	var values map[string]any
	dec := yaml.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&values); err != nil {
		return errors.Wrap(err, "decode config")
	}

	known := make(map[string]bool)
	for _, f := range ctx.Command.Flags {
		known[f.GetName()] = true
	}
	for name, v := range values {
		if name == configFlag.Name {
			return errors.New("config: nested config not allowed")
		}
		// flags of other commands are fine to share a file with
		if !known[name] || ctx.IsSet(name) {
			continue
		}
		if err := ctx.Set(name, fmt.Sprint(v)); err != nil {
			return errors.Wrapf(err, "config: %s", name)
		}
	}
	return nil
}

// adjustable through the admin server
var logLevel = new(slog.LevelVar)

func initLogger(ctx *cli.Context) error {
	useColor := (isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())) &&
		os.Getenv("TERM") != "dumb"
	logLevel.Set(log.FromVerbosity(ctx.Int(verbosityFlag.Name)))
	handler, err := log.NewHandler(ctx.String(logFormatFlag.Name), os.Stderr, logLevel, useColor)
	if err != nil {
		return err
	}
	log.SetDefault(log.NewLogger(handler))
	return nil
}

// setup runs the steps every command starts with.
func setup(ctx *cli.Context) error {
	if err := loadConfig(ctx); err != nil {
		return err
	}
	if err := initLogger(ctx); err != nil {
		return err
	}
	if ctx.Bool(enableMetricsFlag.Name) {
		metrics.InitializePrometheusMetrics()
	}
	return nil
}

func makeDataDir(ctx *cli.Context) (string, error) {
	dataDir := ctx.String(dataDirFlag.Name)
	if dataDir == "" {
		return "", fmt.Errorf("unable to infer default data dir, use -%s to specify", dataDirFlag.Name)
	}
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return "", errors.Wrapf(err, "create data dir [%v]", dataDir)
	}
	return dataDir, nil
}

// normalizeCacheSize limits the cache to half the physical memory.
func normalizeCacheSize(sizeMB int) int {
	if sizeMB < 128 {
		sizeMB = 128
	}

	var mem gosigar.Mem
	if err := mem.Get(); err != nil {
		logger.Warn("failed to get total mem", "err", err)
	} else {
		limitMB := int(mem.Total / 1024 / 1024 / 2)
		if sizeMB > limitMB {
			sizeMB = limitMB
			logger.Warn("cache size(MB) limited", "limit", limitMB)
		}
	}
	return sizeMB
}

// openMainDB opens the state database, without write access for query commands.
func openMainDB(ctx *cli.Context, dataDir string, readOnly bool) (*muxdb.MuxDB, error) {
	cacheMB := normalizeCacheSize(ctx.Int(cacheFlag.Name))
	logger.Debug("cache size(MB)", "size", cacheMB)

	// keep the GC from counting the cache in its trigger ratio
	gogc := math.Max(20, math.Min(100, 100/(float64(cacheMB)/1024)))
	logger.Debug("sanitize Go's GC trigger", "percent", int(gogc))
	debug.SetGCPercent(int(gogc))

	path := filepath.Join(dataDir, "main.db")
	db, err := muxdb.Open(path, &muxdb.Options{
		TrieNodeCacheSizeMB:    cacheMB / 2,
		ReadCacheMB:            cacheMB / 4,
		OpenFilesCacheCapacity: 500,
		ReadOnly:               readOnly,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "open main database [%v]", path)
	}
	return db, nil
}

func openLogDB(dataDir string) (*logdb.LogDB, error) {
	path := filepath.Join(dataDir, "logs.db")
	db, err := logdb.New(path)
	if err != nil {
		return nil, errors.Wrapf(err, "open log database [%v]", path)
	}
	return db, nil
}

// readGenesis returns the genesis selected by flags, with the raw bytes to persist.
func readGenesis(ctx *cli.Context) (*genesis.Genesis, []byte, error) {
	path := ctx.String(genesisFlag.Name)
	if path == "" {
		return genesis.NewDevnet(), []byte(devGenesis), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read genesis file")
	}
	gen, err := genesis.Parse(data)
	if err != nil {
		return nil, nil, err
	}
	return gen, data, nil
}

func parseGenesis(data []byte) (*genesis.Genesis, error) {
	if string(data) == devGenesis {
		return genesis.NewDevnet(), nil
	}
	return genesis.Parse(data)
}

// newDeps wires the executive collaborators. The returned func releases them.
func newDeps(ctx *cli.Context, gen *genesis.Genesis, db *muxdb.MuxDB) (runtime.Deps, func(), error) {
	registry := service.NewRegistry(db.NewStore("services"))
	if err := registry.Load(); err != nil {
		return runtime.Deps{}, nil, err
	}
	gen.RegisterServices(registry)

	timeout := time.Duration(ctx.Uint64(serviceTimeoutFlag.Name)) * time.Millisecond
	invoker := service.NewRPCInvoker(nil, timeout)

	return runtime.Deps{
		Natives:     native.NewDefaultFactory(),
		Builtins:    builtin.NewRegistry(),
		Permissions: gen.PermissionManager(),
		Services:    registry,
		Invoker:     invoker,
	}, invoker.Close, nil
}

func handleExitSignal() context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		exitSignalCh := make(chan os.Signal, 1)
		signal.Notify(exitSignalCh, os.Interrupt, syscall.SIGTERM)

		sig := <-exitSignalCh
		logger.Info("exit signal received", "signal", sig)
		cancel()
	}()
	return ctx
}

func startAPIServer(addr string, handler http.Handler) (string, func(), error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", nil, errors.Wrapf(err, "listen API addr [%v]", addr)
	}
	srv := &http.Server{
		Handler:           handler,
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
	}
	g := co.NewGroup()
	g.Go(func(stop <-chan struct{}) {
		go func() {
			<-stop
			srv.Close()
		}()
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			logger.Error("API server stopped", "err", err)
		}
	})
	return "http://" + listener.Addr().String() + "/", g.StopAndWait, nil
}

// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"gopkg.in/cheggaaa/pb.v1"
	cli "gopkg.in/urfave/cli.v1"

	"github.com/citahub/cita-executor/admin"
	"github.com/citahub/cita-executor/api"
	"github.com/citahub/cita-executor/block"
	"github.com/citahub/cita-executor/cita"
	"github.com/citahub/cita-executor/co"
	"github.com/citahub/cita-executor/log"
	"github.com/citahub/cita-executor/processor"
	"github.com/citahub/cita-executor/state"
)

var (
	version   string
	gitCommit string
	gitTag    string

	logger = log.WithContext("pkg", "cmd")
)

func fullVersion() string {
	versionMeta := "release"
	if gitTag == "" {
		versionMeta = "dev"
	}
	return fmt.Sprintf("%s-%s-%s", version, gitCommit, versionMeta)
}

func main() {
	app := cli.App{
		Version: fullVersion(),
		Name:    "cita-executor",
		Usage:   "World state execution core of CITA",
		Commands: []cli.Command{
			{
				Name:   "init",
				Usage:  "build the genesis state into the data dir",
				Flags:  append([]cli.Flag{genesisFlag}, commonFlags...),
				Action: initAction,
			},
			{
				Name:  "apply",
				Usage: "apply blocks on top of the head",
				Description: "Native and service contracts run in-process, but no EVM bytecode " +
					"interpreter is linked in. A transaction that reaches plain contract code " +
					"fails with an internal error.",
				Flags: append([]cli.Flag{
					blockFlag,
					accountGasLimitFlag,
					serviceTimeoutFlag,
					traceFlag,
					dumpFlag,
					enableMetricsFlag,
				}, commonFlags...),
				Action: applyAction,
			},
			{
				Name:   "account",
				Usage:  "print an account of the head state",
				Flags:  append([]cli.Flag{addressFlag, rootFlag}, commonFlags...),
				Action: accountAction,
			},
			{
				Name:  "serve",
				Usage: "serve state and log queries over HTTP",
				Flags: append([]cli.Flag{
					apiAddrFlag,
					apiCorsFlag,
					apiLogsLimitFlag,
					enableAPILogsFlag,
					enableMetricsFlag,
					enableAdminFlag,
					adminAddrFlag,
				}, commonFlags...),
				Action: serveAction,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initAction(ctx *cli.Context) error {
	if err := setup(ctx); err != nil {
		return err
	}
	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}
	gen, raw, err := readGenesis(ctx)
	if err != nil {
		return err
	}

	db, err := openMainDB(ctx, dataDir, false)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing main database..."); db.Close() }()

	chain := &chainStore{db.NewStore("chain")}
	existing, err := chain.Genesis()
	switch {
	case err == nil:
		if !bytes.Equal(existing, raw) {
			return errors.New("data dir was initialized with another genesis")
		}
		logger.Info("already initialized", "dir", dataDir)
		return nil
	case err != errNotInitialized:
		return err
	}

	blk, err := gen.Build(db)
	if err != nil {
		return errors.Wrap(err, "build genesis")
	}
	if err := chain.Init(raw, blk); err != nil {
		return errors.Wrap(err, "save genesis")
	}

	header := blk.Header()
	fmt.Printf(`Initialized %v
    Genesis      [ %v ]
    State root   [ %v ]
    Model        [ %v ]
    Data dir     [ %v ]
`,
		fullVersion(),
		header.Hash(),
		header.StateRoot(),
		gen.Config.EconomicalModel,
		dataDir,
	)
	return nil
}

func applyAction(ctx *cli.Context) error {
	if err := setup(ctx); err != nil {
		return err
	}
	path := ctx.String(blockFlag.Name)
	if path == "" {
		return fmt.Errorf("missing -%s", blockFlag.Name)
	}
	file, err := loadBlockFile(path)
	if err != nil {
		return err
	}

	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}
	db, err := openMainDB(ctx, dataDir, false)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing main database..."); db.Close() }()

	logDB, err := openLogDB(dataDir)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing log database..."); logDB.Close() }()

	chain := &chainStore{db.NewStore("chain")}
	raw, err := chain.Genesis()
	if err != nil {
		return err
	}
	gen, err := parseGenesis(raw)
	if err != nil {
		return err
	}
	head, err := chain.Head()
	if err != nil {
		return err
	}

	deps, release, err := newDeps(ctx, gen, db)
	if err != nil {
		return err
	}
	defer release()

	writer := logDB.NewWriter()
	proc := processor.New(db, gen.RuntimeConfig(), deps, processor.Options{
		AccountGasLimit: ctx.Uint64(accountGasLimitFlag.Name),
		Tracing:         ctx.Bool(traceFlag.Name),
	}).WithLogWriter(writer)

	var bar *pb.ProgressBar
	if len(file.Blocks) > 1 {
		bar = pb.New64(int64(len(file.Blocks))).
			SetMaxWidth(90).
			Start()
		defer func() { bar.NotPrint = true }()
	}

	exit := handleExitSignal()
	for i := range file.Blocks {
		select {
		case <-exit.Done():
			return errors.New("interrupted")
		default:
		}

		blk, err := file.Blocks[i].build(head.Header(), gen.Proposer)
		if err != nil {
			return errors.Wrapf(err, "block %d", i)
		}
		result, err := applyBlock(chain, proc, writer, head, blk)
		if err != nil {
			return errors.Wrapf(err, "block #%d", blk.Header().Number())
		}
		head = result.Block

		metricHeadNumber().Set(int64(head.Header().Number()))
		metricBlockTxs().Observe(int64(len(head.Transactions())))
		if ctx.Bool(dumpFlag.Name) {
			dumpResult(result)
		}
		if bar != nil {
			bar.Increment()
		}
	}
	if bar != nil {
		bar.Finish()
	}

	header := head.Header()
	fmt.Printf("applied %d block(s), head #%d %v root %v\n",
		len(file.Blocks), header.Number(), header.Hash(), header.StateRoot())
	return nil
}

type truncateWriter interface {
	processor.LogWriter
	Truncate(blockNum uint64) error
}

// applyBlock applies blk on head and moves the head. Logs left by an earlier, unsaved
// attempt at the same height are dropped first.
func applyBlock(
	chain *chainStore,
	proc *processor.Processor,
	writer truncateWriter,
	head *block.Block,
	blk *block.Block,
) (*processor.Result, error) {
	lastHashes, err := chain.LastHashes(blk.Header().Number())
	if err != nil {
		return nil, err
	}
	if err := writer.Truncate(blk.Header().Number()); err != nil {
		_ = writer.Rollback()
		return nil, errors.Wrap(err, "truncate logs")
	}
	result, err := proc.Apply(head.Header().StateRoot(), blk, lastHashes)
	if err != nil {
		_ = writer.Rollback()
		return nil, err
	}
	if err := chain.SetHead(result.Block); err != nil {
		return nil, errors.Wrap(err, "save head")
	}
	return result, nil
}

var dumpConfig = spew.ConfigState{
	Indent:                  "  ",
	DisablePointerAddresses: true,
	DisableCapacities:       true,
	SortKeys:                true,
}

func dumpResult(result *processor.Result) {
	header := result.Block.Header()
	fmt.Printf("block #%d %v\n", header.Number(), header.Hash())
	for i, receipt := range result.Receipts {
		fmt.Printf("tx %d %v: %v\n", i, receipt.TxHash, receipt.Error)
		dumpConfig.Dump(receipt, result.Executed[i])
	}
}

func accountAction(ctx *cli.Context) error {
	if err := setup(ctx); err != nil {
		return err
	}
	addr, err := cita.ParseAddress(ctx.String(addressFlag.Name))
	if err != nil {
		return errors.Wrap(err, "address")
	}

	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}
	db, err := openMainDB(ctx, dataDir, true)
	if err != nil {
		return err
	}
	defer db.Close()

	var root cita.Bytes32
	if s := ctx.String(rootFlag.Name); s != "" {
		if root, err = cita.ParseBytes32(s); err != nil {
			return errors.Wrap(err, "root")
		}
	} else {
		chain := &chainStore{db.NewStore("chain")}
		if root, err = chain.HeadRoot(); err != nil {
			return err
		}
	}

	st, err := state.New(db, root)
	if err != nil {
		return err
	}
	balance, err := st.Balance(*addr)
	if err != nil {
		return err
	}
	nonce, err := st.Nonce(*addr)
	if err != nil {
		return err
	}
	code, err := st.Code(*addr)
	if err != nil {
		return err
	}
	codeHash, err := st.CodeHash(*addr)
	if err != nil {
		return err
	}
	abiHash, err := st.ABIHash(*addr)
	if err != nil {
		return err
	}

	fmt.Printf(`Account %v
    Root         [ %v ]
    Balance      [ %v ]
    Nonce        [ %v ]
    Code         [ %d bytes, %v ]
    ABI hash     [ %v ]
`,
		addr, root, balance.Dec(), nonce.Dec(), len(code), codeHash, abiHash)
	return nil
}

func serveAction(ctx *cli.Context) error {
	if err := setup(ctx); err != nil {
		return err
	}
	exit := handleExitSignal()
	defer func() { logger.Info("exited") }()

	dataDir, err := makeDataDir(ctx)
	if err != nil {
		return err
	}
	db, err := openMainDB(ctx, dataDir, false)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing main database..."); db.Close() }()

	logDB, err := openLogDB(dataDir)
	if err != nil {
		return err
	}
	defer func() { logger.Info("closing log database..."); logDB.Close() }()

	chain := &chainStore{db.NewStore("chain")}
	head, err := chain.Head()
	if err != nil {
		return err
	}

	handler := api.New(db, chain.HeadRoot, logDB, api.Options{
		AllowedOrigins:  ctx.String(apiCorsFlag.Name),
		LogsLimit:       ctx.Uint64(apiLogsLimitFlag.Name),
		EnableReqLogger: ctx.Bool(enableAPILogsFlag.Name),
		EnableMetrics:   ctx.Bool(enableMetricsFlag.Name),
	})
	apiURL, stopAPI, err := startAPIServer(ctx.String(apiAddrFlag.Name), handler)
	if err != nil {
		return err
	}
	defer func() { logger.Info("stopping API server..."); stopAPI() }()

	adminURL := "disabled"
	if ctx.Bool(enableAdminFlag.Name) {
		url, stopAdmin, err := startAPIServer(ctx.String(adminAddrFlag.Name), admin.HTTPHandler(logLevel))
		if err != nil {
			return err
		}
		defer func() { logger.Info("stopping admin server..."); stopAdmin() }()
		adminURL = url + "admin"
	}

	fmt.Printf(`Serving %v
    Head         [ #%v %v ]
    Data dir     [ %v ]
    API portal   [ %v ]
    Admin        [ %v ]
`,
		fullVersion(), head.Header().Number(), head.Header().Hash(), dataDir, apiURL, adminURL)

	routines := co.NewGroup()
	routines.Go(func(stop <-chan struct{}) {
		reportHead(chain, stop)
	})
	<-exit.Done()
	routines.StopAndWait()
	return nil
}

// reportHead logs and meters the head until stop is closed.
func reportHead(chain *chainStore, stop <-chan struct{}) {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			head, err := chain.Head()
			if err != nil {
				logger.Warn("failed to read head", "err", err)
				continue
			}
			metricHeadNumber().Set(int64(head.Header().Number()))
			logger.Debug("head", "number", head.Header().Number(), "root", head.Header().StateRoot())
		}
	}
}

// Copyright (c) 2024 The CITA Executor developers

// Distributed under the GNU Lesser General Public License v3.0 software license, see the accompanying
// file LICENSE or <https://www.gnu.org/licenses/lgpl-3.0.html>

package main

import (
	cli "gopkg.in/urfave/cli.v1"

	"github.com/citahub/cita-executor/log"
)

var (
	configFlag = cli.StringFlag{
		Name:  "config",
		Usage: "YAML file of flag values, flags given on the command line take precedence",
	}
	dataDirFlag = cli.StringFlag{
		Name:  "data-dir",
		Value: defaultDataDir(),
		Usage: "directory for the state and log databases",
	}
	verbosityFlag = cli.IntFlag{
		Name:  "verbosity",
		Value: 3,
		Usage: "log verbosity (0-5)",
	}
	logFormatFlag = cli.StringFlag{
		Name:  "log-format",
		Value: log.FormatTerminal,
		Usage: "log output format (terminal|json|logfmt)",
	}
	cacheFlag = cli.IntFlag{
		Name:  "cache",
		Value: 1024,
		Usage: "megabytes of ram allocated to the trie node cache",
	}
	enableMetricsFlag = cli.BoolFlag{
		Name:  "enable-metrics",
		Usage: "enables prometheus metrics, served by the API at /metrics",
	}
	genesisFlag = cli.StringFlag{
		Name:  "genesis",
		Usage: "path to a YAML genesis file, the dev genesis is used if omitted",
	}
	blockFlag = cli.StringFlag{
		Name:  "block",
		Usage: "path to a YAML file of blocks to apply",
	}
	accountGasLimitFlag = cli.Uint64Flag{
		Name:  "account-gas-limit",
		Usage: "gas a single sender may spend per block, 0 means the block gas limit",
	}
	serviceTimeoutFlag = cli.Uint64Flag{
		Name:  "service-timeout",
		Value: 5000,
		Usage: "service contract call timeout in milliseconds",
	}
	traceFlag = cli.BoolFlag{
		Name:  "trace",
		Usage: "record call traces of applied transactions",
	}
	dumpFlag = cli.BoolFlag{
		Name:  "dump",
		Usage: "dump receipts and execution results of applied blocks",
	}
	addressFlag = cli.StringFlag{
		Name:  "address",
		Usage: "account address",
	}
	rootFlag = cli.StringFlag{
		Name:  "root",
		Usage: "state root to query, defaults to the head",
	}
	apiAddrFlag = cli.StringFlag{
		Name:  "api-addr",
		Value: "localhost:1337",
		Usage: "API service listening address",
	}
	apiCorsFlag = cli.StringFlag{
		Name:  "api-cors",
		Usage: "comma separated list of domains from which to accept cross origin requests to API",
	}
	apiLogsLimitFlag = cli.Uint64Flag{
		Name:  "api-logs-limit",
		Value: 1000,
		Usage: "limit the number of logs returned by /logs API",
	}
	enableAdminFlag = cli.BoolFlag{
		Name:  "enable-admin",
		Usage: "enables the admin server to change the log level at runtime",
	}
	adminAddrFlag = cli.StringFlag{
		Name:  "admin-addr",
		Value: "localhost:1338",
		Usage: "admin server listening address",
	}
	enableAPILogsFlag = cli.BoolFlag{
		Name:  "enable-api-logs",
		Usage: "enables API requests logging",
	}
)

// flags shared by all commands
var commonFlags = []cli.Flag{
	configFlag,
	dataDirFlag,
	verbosityFlag,
	logFormatFlag,
	cacheFlag,
}

// Command wallet runs an interactive layer-2 wallet: it dials a
// coordinator over websocket, signs inclusion proofs automatically, and
// exposes a small REPL for append_tx/send_batch/balance/deposit/exit.
package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/synnergy-labs/rollupnet/core"
	"github.com/synnergy-labs/rollupnet/pkg/config"
	"github.com/synnergy-labs/rollupnet/transport"
	"github.com/synnergy-labs/rollupnet/walletrunner"
)

func main() {
	var configFile string

	root := &cobra.Command{
		Use:   "wallet",
		Short: "run an interactive rollup wallet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(configFile)
		},
	}
	root.Flags().StringVar(&configFile, "config", "", "path to a YAML config file")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configFile string) error {
	cfg, err := config.LoadWalletConfig(configFile)
	if err != nil {
		return err
	}

	log := logrus.New()
	if lvl, err := logrus.ParseLevel(cfg.LogLevel); err == nil {
		log.SetLevel(lvl)
	}
	core.SetWalletLogger(log)

	w, err := core.NewWallet(cfg.WalletName, cfg.DataDir)
	if err != nil {
		return fmt.Errorf("open wallet: %w", err)
	}

	view, err := core.NewFileSettlementStore(cfg.SettlementPath)
	if err != nil {
		return fmt.Errorf("open settlement store: %w", err)
	}

	client, err := transport.Dial(cfg.CoordinatorURL, w.PublicKey())
	if err != nil {
		return fmt.Errorf("dial coordinator: %w", err)
	}
	defer client.Close(2 * time.Second)

	runner := walletrunner.NewRunner(w, view, client, cfg.SyncInterval, log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		if err := client.Run(); err != nil {
			log.WithError(err).Info("coordinator connection closed")
		}
	}()
	runner.Start(ctx)

	fmt.Printf("wallet %s ready\n", w.PublicKey().String())
	return repl(ctx, runner)
}

func repl(ctx context.Context, runner *walletrunner.Runner) error {
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd := fields[0]
		args := fields[1:]

		switch cmd {
		case "append_tx":
			if len(args) != 2 {
				fmt.Println("usage: append_tx <pubkey-hex> <amount>")
				continue
			}
			pk, err := parsePublicKey(args[0])
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			amount, err := strconv.ParseUint(args[1], 10, 64)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if err := runner.AppendTx(pk, amount); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("ok")

		case "send_batch":
			if err := runner.SendBatch(); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("ok")

		case "balance":
			fmt.Println(runner.Balance())

		case "deposit":
			if len(args) != 1 {
				fmt.Println("usage: deposit <amount>")
				continue
			}
			amount, err := strconv.ParseUint(args[0], 10, 64)
			if err != nil {
				fmt.Println("error:", err)
				continue
			}
			if err := runner.Deposit(ctx, amount); err != nil {
				fmt.Println("error:", err)
				continue
			}
			fmt.Println("ok")

		case "exit":
			return nil

		default:
			fmt.Println("unknown command:", cmd)
		}
	}
}

func parsePublicKey(s string) (core.PublicKey, error) {
	var pk core.PublicKey
	if err := pk.UnmarshalJSON([]byte(`"` + s + `"`)); err != nil {
		return core.PublicKey{}, err
	}
	return pk, nil
}

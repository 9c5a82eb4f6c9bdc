// Command omnictl reads and refreshes OmniSpectrum snapshots from a running
// server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"OmniSpectrum/pkg/config"
	"OmniSpectrum/pkg/logger"
	"OmniSpectrum/pkg/snapshotclient"
)

const usage = `usage: omnictl [flags] <command>

commands:
  accept    accept the disclaimer (valid for two days)
  get       print the current snapshot
  refresh   run inference on the server and print the result
  watch     keep the snapshot up to date and print every change

flags:
`

func main() {
	fs := flag.NewFlagSet("omnictl", flag.ExitOnError)
	configPath := fs.String("config", "", "config file path (optional)")
	baseURL := fs.String("url", "", "server base URL, overrides config")
	ackPath := fs.String("ack-file", defaultAckPath(), "disclaimer acceptance file")
	raw := fs.Bool("json", false, "print raw snapshot JSON")
	push := fs.Bool("push", true, "watch: use the server push stream when available")
	fs.Usage = func() {
		fmt.Fprint(fs.Output(), usage)
		fs.PrintDefaults()
	}
	_ = fs.Parse(os.Args[1:])
	if fs.NArg() != 1 {
		fs.Usage()
		os.Exit(2)
	}

	cfg := config.Default()
	if *configPath != "" {
		c, err := config.LoadWithEnv(*configPath)
		if err != nil {
			fatal(err)
		}
		cfg = c
	}
	if *baseURL != "" {
		cfg.Client.BaseURL = *baseURL
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := fs.Arg(0)
	if cmd == "accept" {
		if err := saveAck(*ackPath, time.Now()); err != nil {
			fatal(err)
		}
		fmt.Println("Disclaimer accepted. Forecasts are probabilistic and not investment advice.")
		return
	}
	if err := requireAck(*ackPath, time.Now()); err != nil {
		fatal(err)
	}

	log := logger.NewNop()
	if cmd == "watch" {
		l, err := logger.New(&logger.Config{Level: "info", Format: "console", Output: "stderr"})
		if err == nil {
			log = l
		}
	}
	client := snapshotclient.New(cfg.Client.BaseURL,
		snapshotclient.WithRefreshInterval(cfg.Client.RefreshInterval),
		snapshotclient.WithDedupeInterval(cfg.Client.DedupeInterval),
		snapshotclient.WithRequestTimeout(cfg.Client.RequestTimeout),
		snapshotclient.WithLogger(log),
	)
	defer client.Close()

	var err error
	switch cmd {
	case "get":
		err = runGet(ctx, client, *raw)
	case "refresh":
		err = runRefresh(ctx, client, *raw)
	case "watch":
		err = runWatch(ctx, client, *push)
	default:
		fs.Usage()
		os.Exit(2)
	}
	if err != nil {
		fatal(err)
	}
}

func runGet(ctx context.Context, c *snapshotclient.Cache, raw bool) error {
	s, err := c.Get(ctx)
	if err != nil {
		return err
	}
	if raw {
		_, err := os.Stdout.Write(append(c.State().Raw, '\n'))
		return err
	}
	return render(os.Stdout, s)
}

func runRefresh(ctx context.Context, c *snapshotclient.Cache, raw bool) error {
	fmt.Fprintln(os.Stderr, "Running inference, this can take a few minutes...")
	res, err := c.Refresh(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(os.Stderr, res.Message)
	if res.Snapshot == nil {
		return nil
	}
	if raw {
		_, err := os.Stdout.Write(append(c.State().Raw, '\n'))
		return err
	}
	return render(os.Stdout, res.Snapshot)
}

func runWatch(ctx context.Context, c *snapshotclient.Cache, push bool) error {
	updates, cancel := c.Subscribe()
	defer cancel()

	c.Start(ctx)
	if push {
		go func() {
			// reconnects are left to the polling loop and the offline probe
			if err := c.Watch(ctx); err != nil {
				fmt.Fprintf(os.Stderr, "push stream closed: %v\n", err)
			}
		}()
	}

	var last time.Time
	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-updates:
			switch {
			case st.Offline:
				fmt.Fprintln(os.Stderr, "offline, waiting for server...")
			case st.Err != nil:
				fmt.Fprintf(os.Stderr, "error: %v\n", st.Err)
			case st.Snapshot != nil && st.UpdatedAt.After(last):
				last = st.UpdatedAt
				fmt.Printf("\n== %s ==\n", st.UpdatedAt.Format(time.RFC3339))
				if err := render(os.Stdout, st.Snapshot); err != nil {
					return err
				}
			}
		}
	}
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "omnictl: %v\n", err)
	os.Exit(1)
}

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sealdice/cqsocket/adapters"
	"github.com/sealdice/cqsocket/config"
	"github.com/sealdice/cqsocket/events"
	"github.com/sealdice/cqsocket/journal"
)

var (
	historyFn = filepath.Join(os.TempDir(), ".cqsocket_history")
)

func main() {
	configPath := pflag.StringP("config", "c", "", "path to a yaml config file")
	logLevel := pflag.String("log-level", "", "override log_level (debug, info, warn, error)")
	pflag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}

	logger := config.NewLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	bus := events.NewBus(events.WithLogger(logger.Named("bus")))
	cfg.Client.Logger = logger.Named("adapter")
	client := adapters.NewClient(cfg.Client, bus)

	sh := &shell{
		out:     os.Stdout,
		sender:  client,
		paths:   bus.Taxonomy().Paths(),
		timeout: cfg.Client.SendTimeout,
	}

	if cfg.Journal.Path != "" {
		j, err := journal.Open(cfg.Journal.Path, cfg.Journal.TTL, logger.Named("journal"))
		if err != nil {
			logger.Sugar().Fatalf("open journal: %v", err)
		}
		defer func() { _ = j.Close() }()
		if _, err := j.Attach(bus); err != nil {
			logger.Sugar().Fatalf("attach journal: %v", err)
		}
		sh.history = j
	}

	_, _ = bus.On("message", func(_ context.Context, evt *events.Event) error {
		userID, _ := evt.Payload()["user_id"].(float64)
		fmt.Printf("\n<%s> %d: %s\n", evt.Path, int64(userID), evt.Tags().String())
		return nil
	})
	_, _ = bus.On("socket.error", func(_ context.Context, evt *events.Event) error {
		if se, ok := evt.Arg(0).(*adapters.SocketEvent); ok {
			logger.Sugar().Warnf("%s socket error: %v", se.Channel, se.Err)
		}
		return nil
	})

	fmt.Printf("%s v%s\n", adapters.APPNAME, adapters.VERSION.String())
	if err := client.Connect(ctx); err != nil {
		logger.Sugar().Warnf("connect: %v", err)
	}
	defer client.Close()

	line := liner.NewLiner()
	defer line.Close()

	line.SetCtrlCAborts(true)
	line.SetCompleter(sh.complete)

	if f, err := os.Open(historyFn); err == nil {
		_, _ = line.ReadHistory(f)
		_ = f.Close()
	}

	ccTimes := 0
	for {
		text, err := line.Prompt(">>> ")
		if err == liner.ErrPromptAborted {
			if ccTimes >= 1 {
				fmt.Print("Interrupted")
				break
			}
			ccTimes++
			fmt.Println("Input Ctrl-c once more to exit")
			continue
		}
		if err != nil {
			fmt.Print("Error reading line: ", err)
			break
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		line.AppendHistory(text)
		if sh.exec(ctx, text) {
			break
		}
	}

	if f, err := os.Create(historyFn); err != nil {
		fmt.Println("Error writing history file: ", err)
	} else {
		_, _ = line.WriteHistory(f)
		_ = f.Close()
	}
}

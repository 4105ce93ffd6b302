// Command mrpc-calc serves or calls the Calc example service.
//
//	mrpc-calc serve --port 3000
//	mrpc-calc call add 1 2
//	mrpc-calc --etcd 127.0.0.1:2379 publish --config mrpc.yaml
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"mrpc/client"
	"mrpc/config"
	"mrpc/example/calc"
	"mrpc/server"
	"mrpc/transport"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
)

func main() {
	app := &cli.App{
		Name:  "mrpc-calc",
		Usage: "serve or call the Calc example over mrpc",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "YAML config file"},
			&cli.StringSliceFlag{Name: "etcd", Usage: "etcd endpoints to load the config document from"},
			&cli.StringFlag{Name: "etcd-key", Value: config.DefaultEtcdKey, Usage: "etcd key holding the config document"},
			&cli.BoolFlag{Name: "debug", Usage: "development logging"},
		},
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "run a Calc server",
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "listen port"},
					&cli.StringFlag{Name: "codec", Usage: "json or gob"},
					&cli.StringFlag{Name: "transport", Usage: "http or tcp"},
				},
				Action: serveCommand,
			},
			{
				Name:      "call",
				Usage:     "call a Calc operation",
				ArgsUsage: "[add|minus|divide A B]",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{Name: "peer", Usage: "server address host:port (repeatable)"},
					&cli.IntFlag{Name: "connections", Usage: "pooled connections per peer"},
					&cli.StringFlag{Name: "codec", Usage: "json or gob"},
					&cli.StringFlag{Name: "transport", Usage: "http or tcp"},
					&cli.DurationFlag{Name: "timeout", Value: 5 * time.Second, Usage: "per-call deadline"},
				},
				Action: callCommand,
			},
			{
				Name:   "publish",
				Usage:  "store the loaded config document in etcd",
				Action: publishCommand,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		errorColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newLogger(c *cli.Context) (*zap.Logger, error) {
	if c.Bool("debug") {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// loadDocument reads the config document from etcd, a file, or the defaults,
// in that order of preference.
func loadDocument(c *cli.Context, logger *zap.Logger) (config.Document, error) {
	if endpoints := c.StringSlice("etcd"); len(endpoints) > 0 {
		store, err := config.NewEtcdStore(endpoints,
			config.WithKey(c.String("etcd-key")),
			config.WithLogger(logger),
		)
		if err != nil {
			return config.Document{}, err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(c.Context, 5*time.Second)
		defer cancel()
		return store.Load(ctx)
	}
	if path := c.String("config"); path != "" {
		return config.Load(path)
	}
	return config.Default(), nil
}

func serveCommand(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	doc, err := loadDocument(c, logger)
	if err != nil {
		return err
	}
	cfg := doc.Server
	if c.IsSet("port") {
		cfg.Port = c.Int("port")
	}
	if c.IsSet("codec") {
		cfg.Codec = c.String("codec")
	}
	if c.IsSet("transport") {
		cfg.Transport = c.String("transport")
	}

	srv, err := server.New(cfg, server.WithLogger(logger))
	if err != nil {
		return err
	}
	if err := server.RegisterService[calc.Calc](srv, calc.Service{}); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		if err := srv.Stop(); err != nil {
			logger.Warn("shutdown", zap.Error(err))
		}
	}()
	return srv.Start()
}

func callCommand(c *cli.Context) error {
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	doc, err := loadDocument(c, logger)
	if err != nil {
		return err
	}
	cfg := doc.Client
	if c.IsSet("peer") {
		cfg.Peers = nil
		for _, s := range c.StringSlice("peer") {
			p, err := transport.ParsePeer(s)
			if err != nil {
				return err
			}
			cfg.Peers = append(cfg.Peers, p)
		}
	}
	if c.IsSet("connections") {
		cfg.ConnectCount = c.Int("connections")
	}
	if c.IsSet("codec") {
		cfg.Codec = c.String("codec")
	}
	if c.IsSet("transport") {
		cfg.Transport = c.String("transport")
	}

	ctx, cancel := context.WithTimeout(c.Context, c.Duration("timeout"))
	defer cancel()

	rc, err := client.New(ctx, cfg, client.WithLogger(logger))
	if err != nil {
		return err
	}
	defer rc.Close()
	stub, err := calc.NewStub(rc)
	if err != nil {
		return err
	}

	if c.NArg() == 0 {
		add, err := stub.Add(ctx, 1, 2)
		if err != nil {
			return err
		}
		minus, err := stub.Minus(ctx, 2, 1)
		if err != nil {
			return err
		}
		resultColor.Printf("add=%d, minus=%d\n", add, minus)
		return nil
	}

	if c.NArg() != 3 {
		return fmt.Errorf("usage: %s call %s", c.App.Name, c.Command.ArgsUsage)
	}
	a, err := strconv.Atoi(c.Args().Get(1))
	if err != nil {
		return fmt.Errorf("operand A: %w", err)
	}
	b, err := strconv.Atoi(c.Args().Get(2))
	if err != nil {
		return fmt.Errorf("operand B: %w", err)
	}

	var op func(context.Context, int, int) (int, error)
	switch strings.ToLower(c.Args().First()) {
	case "add":
		op = stub.Add
	case "minus":
		op = stub.Minus
	case "divide":
		op = stub.Divide
	default:
		return fmt.Errorf("unknown operation %q", c.Args().First())
	}

	result, err := op(ctx, a, b)
	if err != nil {
		return err
	}
	resultColor.Println(result)
	return nil
}

func publishCommand(c *cli.Context) error {
	endpoints := c.StringSlice("etcd")
	if len(endpoints) == 0 {
		return fmt.Errorf("publish needs --etcd")
	}
	logger, err := newLogger(c)
	if err != nil {
		return err
	}
	defer logger.Sync()

	doc := config.Default()
	if path := c.String("config"); path != "" {
		if doc, err = config.Load(path); err != nil {
			return err
		}
	}

	store, err := config.NewEtcdStore(endpoints,
		config.WithKey(c.String("etcd-key")),
		config.WithLogger(logger),
	)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, cancel := context.WithTimeout(c.Context, 5*time.Second)
	defer cancel()
	return store.Save(ctx, doc)
}

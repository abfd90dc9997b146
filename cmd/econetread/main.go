// econetread is a one-shot diagnostic tool: read or write a single
// register on a boiler controller without running the daemon.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/boilerlink/econetd/internal/econet/device"
	"github.com/boilerlink/econetd/internal/econet/value"
	"github.com/boilerlink/econetd/internal/logging"
	"github.com/boilerlink/econetd/internal/regmap"
)

type options struct {
	addr     string
	mapPath  string
	username string
	password string
	write    string
	retries  int
	timeout  time.Duration
}

func main() {
	var opts options
	flag.StringVar(&opts.addr, "addr", "127.0.0.1:8899", "device address host:port")
	flag.StringVar(&opts.mapPath, "map", "device_map.yaml", "register map YAML path")
	flag.StringVar(&opts.username, "user", "admin", "device username")
	flag.StringVar(&opts.password, "pass", "admin", "device password")
	flag.StringVar(&opts.write, "write", "", "value to write instead of reading")
	flag.IntVar(&opts.retries, "retries", 3, "read retry count")
	flag.DurationVar(&opts.timeout, "timeout", device.DefaultTimeout, "transaction timeout")
	flag.Parse()

	logging.ConfigureRuntime()

	if flag.NArg() != 1 {
		fmt.Fprintln(os.Stderr, "usage: econetread [flags] <slug>")
		flag.PrintDefaults()
		os.Exit(2)
	}
	slug := flag.Arg(0)

	if err := run(opts, slug); err != nil {
		fmt.Fprintf(os.Stderr, "econetread: %v\n", err)
		os.Exit(1)
	}
}

func run(opts options, slug string) error {
	regs, err := regmap.Load(opts.mapPath)
	if err != nil {
		return err
	}
	if _, ok := regs.Lookup(slug); !ok {
		return fmt.Errorf("register %q not in map %s", slug, opts.mapPath)
	}

	dev := device.New(device.Config{
		Addr:     opts.addr,
		Username: opts.username,
		Password: opts.password,
		Timeout:  opts.timeout,
	}, regs, log.Logger)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if opts.write != "" {
		v := value.Parse(opts.write)
		if !dev.SetValue(ctx, slug, v) {
			return fmt.Errorf("write %s=%s failed", slug, v)
		}
		fmt.Printf("%s = %s (written)\n", slug, v)
		return nil
	}

	v := dev.GetValue(ctx, slug, opts.retries)
	if v.IsAbsent() {
		return fmt.Errorf("no response for %s", slug)
	}
	fmt.Printf("%s = %s\n", slug, v)
	return nil
}

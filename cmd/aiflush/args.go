package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
)

type commandOptions struct {
	Address      string        `short:"a" long:"address"                          description:"URL of an aistatsd http server with ingestion enabled"`
	Redis        string        `short:"r" long:"redis"                            description:"Address of a Redis server to publish the flush to"     `
	Channel      string        `          long:"channel"     default:"aistatsd:flush" description:"Redis channel to publish on"                    `
	Encoding     string        `          long:"encoding"    default:"json"       description:"Redis message encoding" choice:"json" choice:"msgpack"`
	Compression  string        `          long:"compression" default:"zlib"       description:"HTTP body compression" choice:"none" choice:"zlib" choice:"gzip" choice:"lz4"`
	Timeout      time.Duration `          long:"timeout"        default:"10s"         description:"HTTP request timeout"`
	RetryPolicy  string        `          long:"retry-policy"   default:"exponential" description:"HTTP retry policy" choice:"disabled" choice:"constant" choice:"exponential"`
	RetryMaxTime time.Duration `          long:"retry-max-time" default:"30s"         description:"Give up retrying HTTP requests after this long, 0 retries forever"`
	Prefix       string        `short:"p" long:"prefix"                           description:"Prefix prepended to every metric name"              `
	Props        []string      `          long:"prop"                             description:"Property key=value attached to every metric"        `
	Timestamp    int64         `          long:"timestamp"                        description:"Flush time in unix seconds, defaults to the receive time"`
	Verbose      bool          `short:"v" long:"verbose"                          description:"Verbose logging"                                    `
	Metrics      struct {
		Counters []string `short:"c" long:"counter" description:"Counter as name=value"                     `
		Gauges   []string `short:"g" long:"gauge"   description:"Gauge as name=value"                       `
		Timers   []string `short:"t" long:"timer"   description:"Timer as name=sum,count,lower,upper,std"   `
	} `group:"Metrics"`
}

func parseArgs(args []string) commandOptions {
	opts, parser, err := parseOptions(args)
	if err != nil {
		if !isHelp(err) {
			parser.WriteHelp(os.Stderr)
			_, _ = fmt.Fprintf(os.Stderr, "\n\nerror parsing command line: %v\n", err)
			os.Exit(1)
		}
		parser.WriteHelp(os.Stdout)
		os.Exit(0)
	}
	return opts
}

func parseOptions(args []string) (commandOptions, *flags.Parser, error) {
	var opts commandOptions
	parser := flags.NewParser(&opts, flags.HelpFlag|flags.PassDoubleDash)
	parser.LongDescription = "" + // because gofmt
		"Sends a single flush to an aistatsd forwarder, either over http or by publishing\n" +
		"to the Redis channel it subscribes to.  Every metric carries the given properties."

	positional, err := parser.ParseArgs(args)
	if err != nil {
		return opts, parser, err
	}

	if len(positional) != 0 {
		// Near as I can tell there's no way to say no positional arguments allowed.
		return opts, parser, errors.New("no positional arguments allowed")
	}
	if (opts.Address == "") == (opts.Redis == "") {
		return opts, parser, errors.New("exactly one of address or redis must be specified")
	}
	if len(opts.Metrics.Counters)+len(opts.Metrics.Gauges)+len(opts.Metrics.Timers) == 0 {
		return opts, parser, errors.New("at least one counter, gauge, or timer must be specified")
	}
	return opts, parser, nil
}

// isHelp is a helper to test the error from ParseArgs() to
// determine if the help message was written. It is safe to
// call without first checking that error is nil.
func isHelp(err error) bool {
	if err == nil { // No error
		return false
	}

	flagError, ok := err.(*flags.Error)
	if !ok { // Not a go-flag error
		return false
	}

	return flagError.Type == flags.ErrHelp
}

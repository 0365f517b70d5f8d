// Command export dumps recorded shares for reporting. The database is opened
// read-only and must already exist.
//
// Usage:
//
//	export [-c config.ini] [-channel C] [-user U] [-since 168h] [-limit N] [-format csv|json] [-o file]
//	export -summary [-channel C] [-user U]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	logpkg "github.com/liuran001/SongShare-Go/bot/logger"
)

func main() {
	os.Exit(realMain())
}

func realMain() int {
	opts := options{}
	flag.StringVar(&opts.ConfigPath, "c", "config.ini", "config file")
	flag.StringVar(&opts.ChannelID, "channel", "", "only shares from this channel")
	flag.StringVar(&opts.UserID, "user", "", "only shares from this user")
	flag.DurationVar(&opts.Since, "since", 0, "only shares newer than this (e.g. 168h)")
	flag.IntVar(&opts.Limit, "limit", 0, "maximum rows (0 = all)")
	flag.StringVar(&opts.Format, "format", "csv", "output format: csv or json")
	flag.StringVar(&opts.Output, "o", "", "output file (default stdout)")
	flag.BoolVar(&opts.Summary, "summary", false, "print share counts instead of rows; per platform unless -channel or -user is set")
	flag.Parse()

	log := logpkg.NewWithWriter(os.Stderr, logpkg.Options{Level: "warn"})

	out := os.Stdout
	if opts.Output != "" {
		f, err := os.Create(opts.Output)
		if err != nil {
			log.Error("create output", "error", err)
			return 1
		}
		defer func() {
			if err := f.Close(); err != nil {
				log.Error("close output", "error", err)
			}
		}()
		out = f
	}

	if err := run(context.Background(), opts, out, log); err != nil {
		fmt.Fprintf(os.Stderr, "export: %v\n", err)
		return 1
	}
	return 0
}

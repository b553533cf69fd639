package main

import (
	"log"
	"os"

	"golang.org/x/term"

	"github.com/trezcool/nidhamu/core"
	logsvc "github.com/trezcool/nidhamu/services/logger"
)

func main() {
	conf := core.NewConfig()

	logger := logsvc.NewRollbarLogger(
		log.New(os.Stderr, "ADMIN : ", log.LstdFlags|log.Lmicroseconds|log.Lshortfile),
		conf,
	)
	logger.Enable(!conf.Debug)

	cli := newCommandLine(conf, logger, os.Stdout, term.IsTerminal(int(os.Stdout.Fd())))
	defer func() {
		if err := cli.close(); err != nil {
			logger.Error("closing storage", err)
		}
	}()

	if err := cli.run(os.Args[1:]); err != nil {
		if err != errHelp {
			logger.Error(err.Error(), err)
		}
		_ = cli.close()
		os.Exit(1)
	}
}

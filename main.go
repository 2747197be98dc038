package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/codetesla51/webserv/logger"
	"github.com/codetesla51/webserv/server"
	"github.com/fatih/color"
	flag "github.com/spf13/pflag"
)

func main() {
	if err := run(); err != nil {
		color.Red("webserv: %v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.StringP("config", "c", "", "ini file with [server] and [headers] sections")
	port := flag.IntP("port", "p", 0, "listen port")
	logLevel := flag.IntP("loglevel", "l", 0, "log level: 0 debug, 1 info, 2 warn, 3 error")
	threadNum := flag.IntP("threadnum", "t", 0, "worker pool size")
	timeoutMS := flag.IntP("timeout", "o", 0, "idle connection timeout in ms, 0 disables")
	openLog := flag.Bool("openlog", true, "write the rotating log files")
	flag.Parse()

	cfg := server.DefaultConfig()
	if *configPath != "" {
		if err := cfg.LoadINI(*configPath); err != nil {
			return err
		}
	}
	// flags win over the config file, but only when given
	if flag.CommandLine.Changed("port") {
		cfg.Port = *port
	}
	if flag.CommandLine.Changed("loglevel") {
		cfg.LogLevel = *logLevel
	}
	if flag.CommandLine.Changed("threadnum") {
		cfg.ThreadNum = *threadNum
	}
	if flag.CommandLine.Changed("timeout") {
		cfg.TimeoutMS = *timeoutMS
	}
	if flag.CommandLine.Changed("openlog") {
		cfg.OpenLog = *openLog
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	log := logger.Discard()
	if cfg.OpenLog {
		l, err := logger.New(logger.Config{
			Level:     cfg.LogLevel,
			Dir:       cfg.LogDir,
			Suffix:    ".log",
			QueueSize: cfg.LogQueueSize,
		})
		if err != nil {
			return fmt.Errorf("open log: %w", err)
		}
		log = l
	}
	defer log.Close()

	srv := server.New(cfg, log)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		s := <-sig
		log.Infof("Received %v, shutting down", s)
		srv.Shutdown()
	}()

	color.Cyan("Server listening at Port: %d", cfg.Port)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, server.ErrServerClosed) {
		return err
	}
	return nil
}

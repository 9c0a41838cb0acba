package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"udpftp/config"
	"udpftp/conn"
	"udpftp/dispatch"
	"udpftp/executor"
	"udpftp/rlog"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.ParseReceiverConfig(args)
	log := rlog.New("ftprecv", cfg.LogLevel)

	if err := os.MkdirAll(cfg.OutDir, 0o755); err != nil {
		fmt.Fprintf(os.Stderr, "ftprecv: creating output directory %s: %v\n", cfg.OutDir, err)
		return 1
	}

	laddr := fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port)
	ep, err := conn.Listen(laddr, conn.Options{
		RecvBufferBytes: cfg.RecvBufferBytes,
		TOS:             cfg.TOS,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ftprecv: %v\n", err)
		return 1
	}
	defer ep.Close()

	pool := executor.New(0)
	r := dispatch.New(ep, pool, cfg.OutDir, log)

	stop := make(chan struct{})
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sig
		log.Info("shutting down")
		close(stop)
		ep.Close()
	}()

	log.Info("listening", "addr", laddr, "out", cfg.OutDir)
	serveErr := r.Serve(stop)
	r.CloseAll()
	pool.Shutdown()

	if serveErr != nil {
		select {
		case <-stop:
			// closed during shutdown; not a real failure
		default:
			fmt.Fprintf(os.Stderr, "ftprecv: %v\n", serveErr)
			return 1
		}
	}
	return 0
}

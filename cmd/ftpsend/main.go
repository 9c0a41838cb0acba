package main

import (
	"fmt"
	"net"
	"os"
	"path/filepath"

	"udpftp/config"
	"udpftp/conn"
	"udpftp/rlog"
	"udpftp/sender"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg := config.ParseSenderConfig(args)
	if cfg.File == "" {
		fmt.Fprintln(os.Stderr, "ftpsend: -file is required")
		return 1
	}

	log := rlog.New("ftpsend", cfg.LogLevel)

	ep, err := conn.Listen("0.0.0.0:0", conn.Options{
		SendBufferBytes: cfg.SendBufferBytes,
		TOS:             cfg.TOS,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ftpsend: %v\n", err)
		return 1
	}
	defer ep.Close()

	raddr := fmt.Sprintf("%s:%d", cfg.Addr, cfg.Port)
	udpAddr, err := net.ResolveUDPAddr("udp4", raddr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ftpsend: %v\n", err)
		return 1
	}
	ep.SetOutAddr(udpAddr)

	remoteName := cfg.RemoteName
	if remoteName == "" {
		remoteName = filepath.Base(cfg.File)
	}

	opts := sender.Options{
		MaxRetries:     cfg.MaxRetries,
		AckTimeout:     2 * cfg.RetryBaseDelay * 5,
		RetryBaseDelay: cfg.RetryBaseDelay,
	}
	s := sender.New(ep, opts, log)

	log.Info("sending", "file", cfg.File, "to", raddr, "remote-name", remoteName)
	if err := s.SendFile(cfg.File, remoteName); err != nil {
		fmt.Fprintf(os.Stderr, "ftpsend: %v\n", err)
		return 1
	}
	return 0
}

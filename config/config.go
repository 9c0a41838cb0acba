// Package config parses command-line flags and environment variables
// into the receiver's and sender's runtime configuration.
package config

import (
	"flag"
	"os"
	"strconv"
	"time"
)

// ReceiverConfig holds configuration for cmd/ftprecv.
type ReceiverConfig struct {
	OutDir   string
	Addr     string
	Port     int
	LogLevel string

	// RecvBufferBytes sets the socket's receive buffer size (conn.Options.
	// RecvBufferBytes). 0 leaves the OS default in place.
	RecvBufferBytes int
	// TOS sets the IPv4 type-of-service byte on the receiver's acks
	// (conn.Options.TOS). 0 leaves the OS default.
	TOS int
}

// SenderConfig holds configuration for cmd/ftpsend.
type SenderConfig struct {
	Addr           string
	Port           int
	File           string
	RemoteName     string
	LogLevel       string
	MaxRetries     int
	RetryBaseDelay time.Duration

	// SendBufferBytes sets the socket's send buffer size (conn.Options.
	// SendBufferBytes). 0 leaves the OS default in place.
	SendBufferBytes int
	// TOS sets the IPv4 type-of-service byte on outgoing data frames
	// (conn.Options.TOS), so a transfer can be marked for low-latency
	// handling distinctly from best-effort traffic. 0 leaves the OS default.
	TOS int
}

// ParseReceiverConfig parses receiver configuration from flags and
// environment variables. Flags take precedence over environment
// variables, which take precedence over the defaults below.
// Defaults: out=".", addr="0.0.0.0", port=2080, log-level="info"
func ParseReceiverConfig(args []string) ReceiverConfig {
	return parseReceiverConfigWithFlagSet(flag.NewFlagSet("ftprecv", flag.ExitOnError), args, os.Getenv)
}

func parseReceiverConfigWithFlagSet(fs *flag.FlagSet, args []string, getenv func(string) string) ReceiverConfig {
	cfg := ReceiverConfig{
		OutDir:   ".",
		Addr:     "0.0.0.0",
		Port:     2080,
		LogLevel: "info",
	}

	if v := getenv("UDPFTP_OUT"); v != "" {
		cfg.OutDir = v
	}
	if v := getenv("UDPFTP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := getenv("UDPFTP_PORT"); v != "" {
		if p, err := parsePort(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getenv("UDPFTP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	fs.StringVar(&cfg.OutDir, "out", cfg.OutDir, "directory received files are written under")
	fs.StringVar(&cfg.OutDir, "o", cfg.OutDir, "shorthand for -out")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "address to bind")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "shorthand for -addr")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "UDP port to bind")
	fs.IntVar(&cfg.Port, "p", cfg.Port, "shorthand for -port")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.IntVar(&cfg.RecvBufferBytes, "recv-buffer", cfg.RecvBufferBytes, "socket receive buffer size in bytes (0 = OS default)")
	fs.IntVar(&cfg.TOS, "tos", cfg.TOS, "IPv4 type-of-service byte for outgoing acks (0 = OS default)")
	fs.Parse(args)

	return cfg
}

// ParseSenderConfig parses sender configuration from flags and
// environment variables.
// Defaults: addr="127.0.0.1", port=2080, log-level="info", max-retries=3,
// retry-base-delay=200ms
func ParseSenderConfig(args []string) SenderConfig {
	return parseSenderConfigWithFlagSet(flag.NewFlagSet("ftpsend", flag.ExitOnError), args, os.Getenv)
}

func parseSenderConfigWithFlagSet(fs *flag.FlagSet, args []string, getenv func(string) string) SenderConfig {
	cfg := SenderConfig{
		Addr:           "127.0.0.1",
		Port:           2080,
		LogLevel:       "info",
		MaxRetries:     3,
		RetryBaseDelay: 200 * time.Millisecond,
	}

	if v := getenv("UDPFTP_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := getenv("UDPFTP_PORT"); v != "" {
		if p, err := parsePort(v); err == nil {
			cfg.Port = p
		}
	}
	if v := getenv("UDPFTP_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}

	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "receiver address")
	fs.StringVar(&cfg.Addr, "a", cfg.Addr, "shorthand for -addr")
	fs.IntVar(&cfg.Port, "port", cfg.Port, "receiver UDP port")
	fs.IntVar(&cfg.Port, "p", cfg.Port, "shorthand for -port")
	fs.StringVar(&cfg.File, "file", cfg.File, "path of the local file to send (required)")
	fs.StringVar(&cfg.File, "f", cfg.File, "shorthand for -file")
	fs.StringVar(&cfg.RemoteName, "remote-name", cfg.RemoteName, "filename to advertise to the receiver (defaults to the local file's base name)")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "log level (debug, info, warn, error)")
	fs.IntVar(&cfg.MaxRetries, "max-retries", cfg.MaxRetries, "max resends of a datagram whose ack is dropped")
	fs.DurationVar(&cfg.RetryBaseDelay, "retry-base-delay", cfg.RetryBaseDelay, "initial backoff between retries, doubling each attempt")
	fs.IntVar(&cfg.SendBufferBytes, "send-buffer", cfg.SendBufferBytes, "socket send buffer size in bytes (0 = OS default)")
	fs.IntVar(&cfg.TOS, "tos", cfg.TOS, "IPv4 type-of-service byte for outgoing data frames (0 = OS default)")
	fs.Parse(args)

	return cfg
}

func parsePort(s string) (int, error) {
	return strconv.Atoi(s)
}

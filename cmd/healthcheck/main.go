package main

import (
	"flag"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/jmservera/casabot/internal/config"
)

// healthcheck probes the Wyoming listener and exits 0 when a TCP or Unix
// socket connection succeeds. Intended as a container HEALTHCHECK command.
func main() {
	timeout := flag.Duration("timeout", 5*time.Second, "Connection timeout")
	flag.Parse()

	uri := os.Getenv("WYOMING_URI")
	if uri == "" {
		uri = "tcp://127.0.0.1:10300"
	}

	server := config.ServerConfig{ListenURI: uri}
	network := server.ListenNetwork()
	address := server.ListenAddress()
	if network == "" {
		fmt.Fprintf(os.Stderr, "unhealthy: invalid WYOMING_URI %q\n", uri)
		os.Exit(1)
	}

	// The wildcard listen address is not dialable
	if network == "tcp" {
		address = strings.Replace(address, "0.0.0.0:", "127.0.0.1:", 1)
	}

	conn, err := net.DialTimeout(network, address, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "unhealthy: %v\n", err)
		os.Exit(1)
	}
	conn.Close()

	fmt.Println("healthy")
}

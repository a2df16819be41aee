// Command udpchat runs either the directory server or a peer client,
// selected by flag the way the teacher's examples/chat.go parses a
// single flag.String for its identity before handing off to a
// long-running loop.
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/prometheus/common/log"

	"github.com/zeromq/udpchat/internal/client"
	"github.com/zeromq/udpchat/internal/server"
)

const (
	minPort = 1024
	maxPort = 65535
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("udpchat", flag.ContinueOnError)
	fs.Usage = func() {
		fmt.Fprintln(os.Stderr, "usage: udpchat -s <port>")
		fmt.Fprintln(os.Stderr, "       udpchat -c <name> <server-ip> <server-port> <client-port>")
	}

	// -c consumes four positional arguments, which flag.FlagSet cannot
	// express directly; parse the two invocation shapes by hand instead
	// of forcing them through flag.Parse.
	if len(args) == 0 {
		fs.Usage()
		return 1
	}

	switch args[0] {
	case "-s":
		return runServer(args[1:])
	case "-c":
		return runClient(args[1:])
	default:
		fs.Usage()
		return 1
	}
}

func runServer(args []string) int {
	if len(args) != 1 {
		fmt.Fprintln(os.Stderr, "`-s` only accepts <port>")
		return 1
	}
	port, err := parsePort(args[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid server port %q: %v\n", args[0], err)
		return 1
	}

	conn, err := net.ListenUDP("udp", &net.UDPAddr{Port: int(port)})
	if err != nil {
		fmt.Fprintf(os.Stderr, "cannot bind port %d: %v\n", port, err)
		return 1
	}
	defer conn.Close()

	srv := server.New(conn, int(port))
	return runUntilSignal(srv.Run)
}

func runClient(args []string) int {
	if len(args) != 4 {
		fmt.Fprintln(os.Stderr, "`-c` only accepts <name> <server-ip> <server-port> <client-port>")
		return 1
	}
	name, ip := args[0], args[1]
	if net.ParseIP(ip).To4() == nil {
		fmt.Fprintf(os.Stderr, "invalid server IPv4 address %q\n", ip)
		return 1
	}
	serverPort, err := parsePort(args[2])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid server port %q: %v\n", args[2], err)
		return 1
	}
	clientPort, err := parsePort(args[3])
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid client port %q: %v\n", args[3], err)
		return 1
	}

	c, err := client.New(client.Config{
		Name:       name,
		ServerIP:   ip,
		ServerPort: serverPort,
		ClientPort: clientPort,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		return 1
	}

	return runUntilSignal(c.Run)
}

func parsePort(s string) (uint16, error) {
	v, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if v < minPort || v > maxPort {
		return 0, fmt.Errorf("port must be in [%d, %d]", minPort, maxPort)
	}
	return uint16(v), nil
}

// runUntilSignal drives runFn with a context cancelled on the first
// SIGINT/SIGTERM. The signals stay registered with NotifyContext until
// runFn returns, so a second signal during shutdown is absorbed
// silently (§4.6) instead of killing the process.
func runUntilSignal(runFn func(context.Context) error) int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := runFn(ctx); err != nil && ctx.Err() == nil {
		log.Errorf("udpchat: %v", err)
		return 1
	}
	return 0
}

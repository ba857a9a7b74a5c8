package main

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// parseBindNetFromAddr splits an address such as unix:///run/powhash.sock or
// :8923 into a network family and an address for net.Listen.
func parseBindNetFromAddr(address string) (string, string, error) {
	defaultScheme := "http://"
	if !strings.Contains(address, "://") {
		if strings.HasPrefix(address, ":") {
			address = defaultScheme + "localhost" + address
		} else {
			address = defaultScheme + address
		}
	}

	bindURI, err := url.Parse(address)
	if err != nil {
		return "", "", fmt.Errorf("failed to parse bind URL: %w", err)
	}

	switch bindURI.Scheme {
	case "unix":
		return "unix", bindURI.Path, nil
	case "tcp", "http", "https":
		return "tcp", bindURI.Host, nil
	default:
		return "", "", fmt.Errorf("unsupported network scheme %s in address %s", bindURI.Scheme, address)
	}
}

// formatAddress renders a listener address for logs.
func formatAddress(network, address string) string {
	switch network {
	case "unix":
		return "unix:" + address
	case "tcp":
		if strings.HasPrefix(address, ":") {
			return "http://localhost" + address
		}
		return "http://" + address
	default:
		return fmt.Sprintf(`(%s) %s`, network, address)
	}
}

func setupListener(network, address, socketMode string) (net.Listener, string, error) {
	if network == "" {
		var err error
		network, address, err = parseBindNetFromAddr(address)
		if err != nil {
			return nil, "", err
		}
	}

	formatted := formatAddress(network, address)

	listener, err := net.Listen(network, address)
	if err != nil {
		return nil, "", fmt.Errorf("failed to bind to %s: %w", formatted, err)
	}

	if network == "unix" {
		mode, err := strconv.ParseUint(socketMode, 8, 0)
		if err != nil {
			listener.Close()
			return nil, "", fmt.Errorf("could not parse socket mode %s: %w", socketMode, err)
		}

		if err := os.Chmod(address, os.FileMode(mode)); err != nil {
			listener.Close()
			return nil, "", fmt.Errorf("could not change socket mode: %w", err)
		}
	}

	return listener, formatted, nil
}

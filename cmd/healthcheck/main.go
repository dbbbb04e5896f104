// Command healthcheck pings the local prwarden instance and exits 0 when
// the health endpoint answers. It exists for container HEALTHCHECK stanzas,
// where a curl dependency would otherwise be needed in the image.
package main

import (
	"context"
	"net"
	"net/http"
	"os"
	"time"
)

const checkTimeout = 2 * time.Second

func main() {
	os.Exit(check(os.Getenv("PRWARDEN_LISTEN_ADDR")))
}

func check(listenAddr string) int {
	ctx, cancel := context.WithTimeout(context.Background(), checkTimeout)
	defer cancel()

	url := "http://" + dialAddr(listenAddr) + "/api/v1/health"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 1
	}

	client := &http.Client{Timeout: checkTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return 1
	}
	_ = resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 1
	}
	return 0
}

// dialAddr turns the server's listen address into one the check can dial.
// The server typically binds the wildcard address inside a container; the
// check runs in the same network namespace, so loopback always reaches it.
func dialAddr(listenAddr string) string {
	if listenAddr == "" {
		return "127.0.0.1:8080"
	}

	host, port, err := net.SplitHostPort(listenAddr)
	if err != nil {
		return "127.0.0.1:8080"
	}
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	return net.JoinHostPort(host, port)
}

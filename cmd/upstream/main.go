// Command upstream is a small httpbin stand-in for running the gateway
// without network access: go run ./cmd/upstream, then start the gateway
// with --httpbin http://127.0.0.1:3000.
package main

import (
	"encoding/json"
	"net/http"
	"os"
	"strconv"
	"time"

	"gatewaydemo/logger"

	"github.com/spf13/cobra"
)

const maxDelay = 10 * time.Second

type echo struct {
	Args    map[string]string `json:"args"`
	Headers map[string]string `json:"headers"`
	Origin  string            `json:"origin"`
	URL     string            `json:"url"`
}

func newEcho(r *http.Request) echo {
	e := echo{
		Args:    make(map[string]string),
		Headers: make(map[string]string),
		Origin:  r.RemoteAddr,
		URL:     "http://" + r.Host + r.URL.RequestURI(),
	}
	for k, v := range r.URL.Query() {
		e.Args[k] = v[0]
	}
	for k, v := range r.Header {
		e.Headers[k] = v[0]
	}
	e.Headers["Host"] = r.Host
	return e
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.Encode(v)
}

func newMux() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /get", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, newEcho(r))
	})

	mux.HandleFunc("/delay/{n}", func(w http.ResponseWriter, r *http.Request) {
		n, err := strconv.Atoi(r.PathValue("n"))
		if err != nil || n < 0 {
			http.Error(w, "delay must be a non-negative integer", http.StatusBadRequest)
			return
		}
		d := min(time.Duration(n)*time.Second, maxDelay)
		select {
		case <-time.After(d):
			writeJSON(w, newEcho(r))
		case <-r.Context().Done():
		}
	})

	mux.HandleFunc("/status/{code}", func(w http.ResponseWriter, r *http.Request) {
		code, err := strconv.Atoi(r.PathValue("code"))
		if err != nil || code < 100 || code > 599 {
			http.Error(w, "invalid status code", http.StatusBadRequest)
			return
		}
		w.WriteHeader(code)
	})

	return mux
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:          "upstream",
		Short:        "httpbin stand-in serving /get, /delay/{n} and /status/{code}",
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger.Info("Demo upstream starting", "addr", addr)
			srv := &http.Server{
				Addr:              addr,
				Handler:           newMux(),
				ReadHeaderTimeout: 2 * time.Second,
			}
			if err := srv.ListenAndServe(); err != nil {
				logger.Error("Demo upstream stopped", "err", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "127.0.0.1:3000", "listen address")
	return cmd
}

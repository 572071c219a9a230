package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/alchemorsel/cookcard/pkg/healthcheck"
)

const (
	exitCodeFailure = 1
	exitCodeError   = 2
)

// readinessCheck polls a running server's readiness endpoint, for container health checks
type readinessCheck struct {
	URL        string
	Timeout    time.Duration
	Retries    int
	RetryDelay time.Duration
	Format     string
	Expect     string
}

func newHealthCommand() *cobra.Command {
	check := readinessCheck{}

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running server's readiness endpoint",
		RunE: func(cmd *cobra.Command, args []string) error {
			if check.URL == "" {
				check.URL = os.Getenv("HEALTH_CHECK_URL")
			}
			if check.URL == "" {
				check.URL = "http://localhost:8080/ready"
			}
			return check.run(cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&check.URL, "url", "", "readiness URL (default $HEALTH_CHECK_URL or http://localhost:8080/ready)")
	cmd.Flags().DurationVar(&check.Timeout, "timeout", 10*time.Second, "request timeout")
	cmd.Flags().IntVar(&check.Retries, "retry", 0, "number of retries on failure")
	cmd.Flags().DurationVar(&check.RetryDelay, "retry-delay", time.Second, "delay between retries")
	cmd.Flags().StringVar(&check.Format, "format", "text", "output format: text, json")
	cmd.Flags().StringVar(&check.Expect, "expect", "healthy", "lowest acceptable status: healthy or degraded")
	return cmd
}

func (p readinessCheck) run(w io.Writer) error {
	client := &http.Client{Timeout: p.Timeout}

	var lastErr error
	for attempt := 0; attempt <= p.Retries; attempt++ {
		if attempt > 0 {
			time.Sleep(p.RetryDelay)
		}

		resp, err := client.Get(p.URL)
		if err != nil {
			lastErr = err
			continue
		}
		var body healthcheck.Response
		err = json.NewDecoder(resp.Body).Decode(&body)
		resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("decode health response: %w", err)
			continue
		}
		return p.report(w, body)
	}

	return &exitError{code: exitCodeError, err: fmt.Errorf("health check failed after %d attempts: %w", p.Retries+1, lastErr)}
}

func (p readinessCheck) report(w io.Writer, resp healthcheck.Response) error {
	if p.Format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(resp); err != nil {
			return err
		}
	} else {
		fmt.Fprintf(w, "Status: %s (version %s)\n", resp.Status, resp.Version)
		t := table.NewWriter()
		t.SetOutputMirror(w)
		t.SetStyle(table.StyleLight)
		t.AppendHeader(table.Row{"Check", "Status", "Message"})
		for _, c := range resp.Checks {
			t.AppendRow(table.Row{c.Name, c.Status, c.Message})
		}
		t.Render()
	}

	switch {
	case resp.Status == healthcheck.StatusHealthy:
		return nil
	case resp.Status == healthcheck.StatusDegraded && p.Expect == string(healthcheck.StatusDegraded):
		return nil
	}
	return &exitError{code: exitCodeFailure, err: fmt.Errorf("service is %s", resp.Status)}
}

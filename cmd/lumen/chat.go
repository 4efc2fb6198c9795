package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/lumenqi/lumen-core/pkg/core"
	"github.com/lumenqi/lumen-core/pkg/llm"
)

type chatFlags struct {
	metricsAddr string
	emotion     string
	maxHistory  int
}

func newChatCmd(flags *rootFlags) *cobra.Command {
	cf := &chatFlags{}
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Talk to the companion on stdin",
		Long: `Read one message per line from stdin and print the companion's answer.

Evolution cycles run in the background at EVOLUTION_INTERVAL. Lines starting
with a slash are commands:

  /stats   print the adaptive state
  /evolve  run an evolution cycle now
  /quit    save and exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			companion, err := flags.openCompanion()
			if err != nil {
				return err
			}
			defer companion.Close()
			companion.Start()

			if cf.metricsAddr != "" {
				srv := serveMetrics(cf.metricsAddr, companion, cmd.ErrOrStderr())
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()
			}

			return runChat(ctx, companion, cmd.InOrStdin(), cmd.OutOrStdout(), cf)
		},
	}
	cmd.Flags().StringVar(&cf.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
	cmd.Flags().StringVar(&cf.emotion, "emotion", "", "emotion hint sent with every message")
	cmd.Flags().IntVar(&cf.maxHistory, "history", 20, "turns of conversation to keep")
	return cmd
}

func serveMetrics(addr string, companion *core.Companion, errOut io.Writer) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", companion.Collector().Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintln(errOut, "metrics server:", err)
		}
	}()
	return srv
}

// runChat is the read-answer loop. It returns when in is exhausted, on
// /quit or when ctx is cancelled.
func runChat(ctx context.Context, companion *core.Companion, in io.Reader, out io.Writer, cf *chatFlags) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	var history []core.Turn
	for {
		fmt.Fprint(out, "> ")
		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return nil
		case l, ok := <-lines:
			if !ok {
				return nil
			}
			line = strings.TrimSpace(l)
		}
		if line == "" {
			continue
		}

		switch line {
		case "/quit", "/exit":
			return nil
		case "/stats":
			if err := printJSON(out, companion.GetStats()); err != nil {
				return err
			}
			continue
		case "/evolve":
			report, err := companion.ForceEvolutionCycle(ctx)
			if err != nil {
				fmt.Fprintln(out, "evolution:", err)
				continue
			}
			fmt.Fprintf(out, "autonomy %.0f -> %.0f, %d trait changes, %d memories merged\n",
				report.LevelBefore, report.LevelAfter, len(report.TraitChanges), report.Consolidation.Merged)
			continue
		}

		resp := companion.Generate(ctx, line, core.Context{Emotion: cf.emotion}, history)
		fmt.Fprintln(out, resp.Content)

		history = append(history,
			core.Turn{Role: llm.RoleUser, Content: line},
			core.Turn{Role: llm.RoleAssistant, Content: resp.Content},
		)
		if cf.maxHistory > 0 && len(history) > cf.maxHistory {
			history = history[len(history)-cf.maxHistory:]
		}
	}
}

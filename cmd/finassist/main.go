package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/germanamz/finassist/pkg/restapi"
	"github.com/germanamz/finassist/pkg/tools/mcpclient"
	"github.com/germanamz/finassist/pkg/tools/mcpserver"
	"github.com/germanamz/finassist/pkg/tools/toolbox"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const usage = `Usage: finassist <command> [flags]

Commands:
  mcp     Serve the financial tools over MCP on stdin/stdout
  serve   Serve the REST API (proxies through a spawned "finassist mcp" unless -inprocess)
  ask     Ask the financial assistant a question (prompts when none is given)
  tools   List the available tools

Run "finassist <command> -h" for command flags.
`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	var err error
	switch cmd, args := os.Args[1], os.Args[2:]; cmd {
	case "mcp":
		err = runMCP(args)
	case "serve":
		err = runServe(args)
	case "ask":
		err = runAsk(args)
	case "tools":
		err = runTools(args)
	case "-h", "-help", "--help", "help":
		fmt.Fprint(os.Stdout, usage)
		return
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n%s", cmd, usage)
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// globalFlags are accepted by every command.
type globalFlags struct {
	config string
	env    string
}

func newFlagSet(name, summary string) (*flag.FlagSet, *globalFlags) {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	fs.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: finassist %s [flags]\n\n%s\n\nFlags:\n", name, summary)
		fs.PrintDefaults()
	}

	g := &globalFlags{}
	fs.StringVar(&g.config, "config", "", "path to a YAML configuration file")
	fs.StringVar(&g.env, "env", ".env", "path to .env file (ignored if missing)")

	return fs, g
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
}

func runMCP(args []string) error {
	fs, g := newFlagSet("mcp", "Serve the financial tools over MCP on stdin/stdout.")
	_ = fs.Parse(args)

	ctx, cancel := signalContext()
	defer cancel()

	a, err := bootstrap(g.config, g.env, true)
	if err != nil {
		return err
	}
	defer a.Close()

	tb, _, err := a.toolBox()
	if err != nil {
		return err
	}

	a.logger.Info("mcp server starting", zap.Int("tools", tb.Len()))

	return mcpserver.New(serverName, serverVersion, tb, a.logger).Serve(ctx, os.Stdin, os.Stdout)
}

func runServe(args []string) error {
	fs, g := newFlagSet("serve", "Serve the REST API.")
	addr := fs.String("addr", "", "listen address (default HTTP_ADDR)")
	inProcess := fs.Bool("inprocess", false, "dispatch tools in this process instead of a spawned MCP server")
	_ = fs.Parse(args)

	ctx, cancel := signalContext()
	defer cancel()

	a, err := bootstrap(g.config, g.env, false)
	if err != nil {
		return err
	}
	defer a.Close()

	gin.SetMode(a.cfg.GinMode)

	if *addr == "" {
		*addr = a.cfg.HTTPAddr
	}

	var (
		caller  toolbox.Caller
		backend string
	)

	if *inProcess {
		tb, _, err := a.toolBox()
		if err != nil {
			return err
		}
		caller, backend = toolbox.Local(tb), "in-process"
	} else {
		client, err := spawnMCP(ctx, g)
		if err != nil {
			return err
		}
		defer func() { _ = client.Close() }()
		caller, backend = client, "subprocess"
	}

	srv := restapi.New(caller,
		restapi.WithLogger(a.logger),
		restapi.WithMetrics(a.metrics),
		restapi.WithBackend(backend),
	)

	return srv.ListenAndServe(ctx, *addr)
}

// spawnMCP starts "finassist mcp" from this binary. The child inherits the
// environment, including whatever the .env file added.
func spawnMCP(ctx context.Context, g *globalFlags) (*mcpclient.MCPClient, error) {
	exe, err := os.Executable()
	if err != nil {
		return nil, fmt.Errorf("locate executable: %w", err)
	}

	args := []string{"mcp", "-env", g.env}
	if g.config != "" {
		args = append(args, "-config", g.config)
	}

	client, err := mcpclient.New(ctx, exe, args...)
	if err != nil {
		return nil, fmt.Errorf("spawn mcp server: %w", err)
	}

	return client, nil
}

func runAsk(args []string) error {
	fs, g := newFlagSet("ask", "Ask the financial assistant a question.")
	background := fs.String("context", "", "optional financial context for the question")
	_ = fs.Parse(args)

	question := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if question == "" {
		if !isTerminal(os.Stdin) {
			fs.Usage()
			return errNoQuestion
		}

		var err error
		if question, err = promptQuestion(); err != nil {
			return err
		}
	}

	ctx, cancel := signalContext()
	defer cancel()

	a, err := bootstrap(g.config, g.env, false)
	if err != nil {
		return err
	}
	defer a.Close()

	_, asst, err := a.toolBox()
	if err != nil {
		return err
	}

	var answer string
	err = withSpinner(ctx, "Asking the financial assistant…", func(ctx context.Context) error {
		var err error
		answer, err = asst.Ask(ctx, question, *background)
		return err
	})
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, renderMarkdown(answer, terminalWidth()))
	fmt.Fprintln(os.Stderr, renderUsage(asst.Usage()))

	return nil
}

func runTools(args []string) error {
	fs, g := newFlagSet("tools", "List the available tools.")
	_ = fs.Parse(args)

	a, err := bootstrap(g.config, g.env, false)
	if err != nil {
		return err
	}
	defer a.Close()

	tb, _, err := a.toolBox()
	if err != nil {
		return err
	}

	fmt.Fprintln(os.Stdout, renderToolTable(tb.List(), terminalWidth()))

	return nil
}

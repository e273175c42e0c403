package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/snowflakedb/gosnowflake"
	_ "modernc.org/sqlite"

	"github.com/razim-manzoor/AI-Data-Analyst/agent"
	"github.com/razim-manzoor/AI-Data-Analyst/config"
	"github.com/razim-manzoor/AI-Data-Analyst/database"
	"github.com/razim-manzoor/AI-Data-Analyst/dbpool"
	"github.com/razim-manzoor/AI-Data-Analyst/logger"
)

// keptCharts is how many rendered charts survive startup housekeeping.
const keptCharts = 20

func main() {
	configPath := flag.String("config", "config.json", "path to the configuration file")
	dbPath := flag.String("db", "", "database path or DSN (overrides config)")
	question := flag.String("q", "", "run a single question instead of the interactive loop")
	flag.Parse()

	if err := run(*configPath, *dbPath, *question); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func run(configPath, dbPath, oneShot string) error {
	// .env is optional; a missing file is not an error.
	godotenv.Load()

	cfg, err := config.Load(configPath)
	if err != nil {
		return WrapError("Config", "Load", err)
	}
	if dbPath != "" {
		cfg.DatabasePath = dbPath
	}
	if err := cfg.Validate(); err != nil {
		return WrapError("Config", "Validate", err)
	}

	log := logger.NewLogger()
	if err := log.Init(cfg.LogDir); err != nil {
		return WrapError("Logger", "Init", err)
	}
	defer log.Close()
	sink := log.Sink()

	mgr := dbpool.New(dbpool.Engine(cfg.DatabaseEngine), sink)
	gateway, err := database.Open(mgr, dbpool.OpenOptions{
		Engine: dbpool.Engine(cfg.DatabaseEngine),
		Path:   cfg.DatabasePath,
		Mode:   dbpool.ModeReadOnly,
	}, sink)
	if err != nil {
		return WrapError("Gateway", "Open", err)
	}
	defer gateway.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := gateway.HealthCheck(ctx); err != nil {
		return WrapError("Gateway", "HealthCheck", err)
	}
	fmt.Println("Database: connected.")

	agents := agent.NewManager(cfg, nil, sink)
	for kind, healthy := range agents.HealthCheck(ctx) {
		state := "reachable"
		if !healthy {
			state = "UNREACHABLE"
		}
		fmt.Printf("Agent %-7s %s\n", kind+":", state)
	}

	sandbox := agent.NewSandbox(gateway, nil, agent.SandboxOptions{
		RowLimit:     cfg.RowLimit,
		QueryTimeout: time.Duration(cfg.QueryTimeoutSec) * time.Second,
		ExecTimeout:  time.Duration(cfg.ExecTimeoutSec) * time.Second,
		PythonPath:   cfg.PythonPath,
		ChartDir:     cfg.ChartOutputDir,
	}, sink)
	sandbox.CleanupCharts(keptCharts)

	workflow := agent.NewWorkflow(
		gateway,
		newRouter(agents, sink),
		newSQLAgent(agents, sink),
		newChartAgent(agents, sink),
		sandbox,
		cfg.RetryBudget,
		sink,
	)

	session := agent.NewSession()
	// Deferred call arguments are evaluated at the defer statement; wrap in
	// a closure so the stats reflect the turns actually run.
	defer func() { fmt.Println(formatSessionStats(session)) }()

	if oneShot != "" {
		turn := workflow.Run(ctx, session, oneShot)
		fmt.Print(formatResult(turn))
		return nil
	}

	fmt.Println("Ask a question about your data ('exit' to quit).")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		q := strings.TrimSpace(scanner.Text())
		if q == "" {
			continue
		}
		if q == "exit" || q == "quit" {
			break
		}
		if ctx.Err() != nil {
			break
		}

		turn := workflow.Run(ctx, session, q)
		fmt.Print(formatResult(turn))
	}
	return scanner.Err()
}

// Agent constructors below defer handle creation to first use, so a model
// outage at startup does not prevent the REPL from opening.

type lazyRouter struct {
	agents *agent.Manager
	log    func(string)
}

func newRouter(agents *agent.Manager, log func(string)) *lazyRouter {
	return &lazyRouter{agents: agents, log: log}
}

func (r *lazyRouter) Classify(ctx context.Context, question string, snap *database.SchemaSnapshot) agent.Intent {
	h, err := r.agents.Get(agent.KindRouter)
	if err != nil {
		r.log(fmt.Sprintf("[MAIN] Router handle unavailable: %v", err))
		return agent.IntentUnsupported
	}
	return agent.NewRouterAgent(h.Completer, r.log).Classify(ctx, question, snap)
}

type lazySQLAgent struct {
	agents *agent.Manager
	log    func(string)
}

func newSQLAgent(agents *agent.Manager, log func(string)) *lazySQLAgent {
	return &lazySQLAgent{agents: agents, log: log}
}

func (a *lazySQLAgent) Generate(ctx context.Context, question string, snap *database.SchemaSnapshot, priorErrors []string) (*agent.SQLCandidate, error) {
	h, err := a.agents.Get(agent.KindSQL)
	if err != nil {
		return nil, err
	}
	return agent.NewSQLAgent(h.Completer, a.log).Generate(ctx, question, snap, priorErrors)
}

type lazyChartAgent struct {
	agents *agent.Manager
	log    func(string)
}

func newChartAgent(agents *agent.Manager, log func(string)) *lazyChartAgent {
	return &lazyChartAgent{agents: agents, log: log}
}

func (a *lazyChartAgent) Generate(ctx context.Context, question string, snap *database.SchemaSnapshot, priorErrors []string) (*agent.ChartCandidate, error) {
	h, err := a.agents.Get(agent.KindChart)
	if err != nil {
		return nil, err
	}
	return agent.NewChartAgent(h.Completer, a.log).Generate(ctx, question, snap, priorErrors)
}

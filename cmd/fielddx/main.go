package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"fielddx/internal/catalog"
	"fielddx/internal/config"
	"fielddx/internal/diagctx"
	"fielddx/internal/engine"
	"fielddx/internal/intent"
	"fielddx/internal/logging"
)

var (
	// Global flags
	verbose    bool
	configPath string
	dbPath     string

	cfg    *config.Config
	logger *zap.Logger
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "fielddx",
	Short: "fieldDX - deterministic diagnostic conversation engine",
	Long: `fieldDX drives technician-facing diagnostic conversations for field
service cases.

It keeps per-case conversational state, classifies technician messages in
English, Russian and Spanish without any external calls, walks a step-by-step
diagnostic procedure for the detected equipment, and emits structured
response instructions for a downstream text generator. The engine never
generates text itself and never repeats a settled question.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := loadConfig()
		if err != nil {
			return err
		}
		cfg = c

		logCfg := cfg.Logging
		if verbose {
			logCfg.Level = "debug"
		}
		logger, err = logging.New(logCfg)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// runCmd drives an interactive conversation for one case
var runCmd = &cobra.Command{
	Use:   "run [case-id]",
	Short: "Interactive conversation loop for a case",
	Long: `Reads technician messages from stdin, one per line, and prints the
engine's response instructions after each turn. Exit with an empty line or
Ctrl-D. State persists in the store, so a session can be resumed later.`,
	Args: cobra.ExactArgs(1),
	RunE: runInteractive,
}

// processCmd runs one technician message through the engine
var processCmd = &cobra.Command{
	Use:   "process [case-id] [message]",
	Short: "Process a technician message and print the response instructions",
	Long: `Runs one conversation turn for the case and prints the resulting
response instructions as JSON.

The case context is loaded from the store, mutated under the case lock, and
written back, so consecutive invocations continue the same conversation.

Example:
  fielddx process case-42 "No sound from the pump, completely silent"`,
	Args: cobra.MinimumNArgs(2),
	RunE: runProcess,
}

// showCmd dumps the stored case context
var showCmd = &cobra.Command{
	Use:   "show [case-id]",
	Short: "Print the stored context for a case as JSON",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

// systemsCmd lists the registered diagnostic procedures
var systemsCmd = &cobra.Command{
	Use:   "systems",
	Short: "List the registered diagnostic procedures",
	RunE:  runSystems,
}

// stepsCmd prints the step sequence for one procedure
var stepsCmd = &cobra.Command{
	Use:   "steps [system]",
	Short: "Print the step sequence for a diagnostic procedure",
	Args:  cobra.ExactArgs(1),
	RunE:  runSteps,
}

// detectCmd classifies a message without touching any case state
var detectCmd = &cobra.Command{
	Use:   "detect [message]",
	Short: "Classify a message: detected system and intent, no state change",
	Long: `Runs the stateless classifiers over the message and prints what the
engine would see: the detected equipment system (if any) and the intent.

Example:
  fielddx detect "Where is the pressure switch located?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDetect,
}

// resetCmd deletes a case context
var resetCmd = &cobra.Command{
	Use:   "reset [case-id]",
	Short: "Delete the stored context for a case",
	Args:  cobra.ExactArgs(1),
	RunE:  runReset,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (default: .fielddx/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides config)")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(processCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(systemsCmd)
	rootCmd.AddCommand(stepsCmd)
	rootCmd.AddCommand(detectCmd)
	rootCmd.AddCommand(resetCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig() (*config.Config, error) {
	path := configPath
	if path == "" {
		path = ".fielddx/config.yaml"
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// openStore builds the context store from config. The CLI defaults to the
// sqlite backend regardless of config so that consecutive invocations see
// the same case; the in-memory store only makes sense embedded.
func openStore(cfg *config.Config) (diagctx.Store, error) {
	path := dbPath
	if path == "" {
		path = cfg.Store.DatabasePath
	}
	store, err := diagctx.NewSQLiteStore(path, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to open case store: %w", err)
	}
	return store, nil
}

func runInteractive(cmd *cobra.Command, args []string) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	caseID := args[0]
	eng := engine.New(store, cfg.Engine, logger)

	fmt.Printf("case %s — enter technician messages, empty line to quit\n", caseID)
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			break
		}

		turn, err := eng.ProcessMessage(caseID, line, nil)
		if err != nil {
			return err
		}

		fmt.Printf("intent=%s action=%s", turn.Intent.Kind, turn.Instructions.Action)
		if turn.Instructions.StepID != "" {
			fmt.Printf(" step=%s", turn.Instructions.StepID)
		}
		fmt.Println()
		if turn.Instructions.Question != "" {
			fmt.Printf("  question: %s\n", turn.Instructions.Question)
		}
		if turn.Instructions.Notice != "" {
			fmt.Printf("  notice: %s\n", turn.Instructions.Notice)
		}
		for _, n := range turn.Notices {
			fmt.Printf("  ! %s\n", n)
		}
	}
	return scanner.Err()
}

func runProcess(cmd *cobra.Command, args []string) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	caseID := args[0]
	message := strings.Join(args[1:], " ")

	eng := engine.New(store, cfg.Engine, logger)
	turn, err := eng.ProcessMessage(caseID, message, nil)
	if err != nil {
		return err
	}

	out := struct {
		Intent       intent.Kind         `json:"intent"`
		Instructions engine.Instructions `json:"instructions"`
		StateChanged bool                `json:"state_changed"`
		Notices      []string            `json:"notices,omitempty"`
	}{
		Intent:       turn.Intent.Kind,
		Instructions: turn.Instructions,
		StateChanged: turn.StateChanged,
		Notices:      turn.Notices,
	}
	return printJSON(out)
}

func runShow(cmd *cobra.Command, args []string) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	ctx, ok := store.Peek(args[0])
	if !ok {
		return fmt.Errorf("no context for case %q", args[0])
	}
	return printJSON(ctx)
}

func runSystems(cmd *cobra.Command, args []string) error {
	for _, system := range catalog.Systems() {
		proc, _ := catalog.GetProcedure(system)
		fmt.Printf("%-24s %s (%d steps, complex=%v)\n", system, proc.DisplayName, len(proc.Steps), proc.Complex)
	}
	return nil
}

func runSteps(cmd *cobra.Command, args []string) error {
	proc, ok := catalog.GetProcedure(args[0])
	if !ok {
		return fmt.Errorf("unknown system %q (try 'fielddx systems')", args[0])
	}
	for _, step := range proc.Steps {
		prereq := ""
		if len(step.Prerequisites) > 0 {
			prereq = " (after " + strings.Join(step.Prerequisites, ", ") + ")"
		}
		fmt.Printf("%-6s%s\n      %s\n", step.ID, prereq, step.Question)
	}
	return nil
}

func runDetect(cmd *cobra.Command, args []string) error {
	message := strings.Join(args, " ")

	system, found := catalog.DetectSystem(message)
	in := intent.DetectIntent(message)

	out := struct {
		System       string              `json:"system,omitempty"`
		SystemFound  bool                `json:"system_found"`
		LegacyTopics []string            `json:"legacy_topics,omitempty"`
		Intent       intent.Kind         `json:"intent"`
		EvidenceType intent.EvidenceType `json:"evidence_type,omitempty"`
		Hours        float64             `json:"hours,omitempty"`
	}{
		System:       system,
		SystemFound:  found,
		Intent:       in.Kind,
		EvidenceType: in.EvidenceType,
		Hours:        in.Hours,
	}
	if !found {
		out.LegacyTopics = catalog.ExtractLegacyTopics(message)
	}
	return printJSON(out)
}

func runReset(cmd *cobra.Command, args []string) error {
	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	store.Delete(args[0])
	logger.Info("case context deleted", zap.String("case_id", args[0]))
	return nil
}

func printJSON(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

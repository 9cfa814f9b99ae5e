package main

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/depositdefender/defender/internal/cache"
	"github.com/depositdefender/defender/internal/classify"
	"github.com/depositdefender/defender/internal/config"
	"github.com/depositdefender/defender/internal/correspondence"
	"github.com/depositdefender/defender/internal/history"
	"github.com/depositdefender/defender/internal/letter"
	"github.com/depositdefender/defender/internal/llm"
	"github.com/depositdefender/defender/internal/payment"
	"github.com/depositdefender/defender/internal/web"
	"github.com/spf13/cobra"
)

var cfgFile string

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return config.DefaultConfigPath()
}

// loadConfig reads the file, overlays the environment and validates
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(resolveConfigPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	applyEnv(cfg)
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}

func main() {
	rootCmd := &cobra.Command{
		Use:   "defender",
		Short: "Deposit Defender - rebut tenancy deposit deductions",
		Long: `Deposit Defender turns a landlord's deposit-deduction email into a
statute-referenced rebuttal letter.

The full letter for strong and mixed cases is unlocked with a one-off card
payment; weak cases are always free.`,
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.defender/config.yaml)")

	rootCmd.AddCommand(initCmd())
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(draftCmd())
	rootCmd.AddCommand(verifyCmd())
	rootCmd.AddCommand(statusCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func initCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a configuration file",
		Long:  "Create a configuration file with service defaults. Credentials may be left blank and supplied through OPENAI_API_KEY and STRIPE_SECRET_KEY instead.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func serveCmd() *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the web service",
		Long: `Start the HTTP service: the drafting form, the JSON API, and the
payment return page.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("port") {
				port = 0
			}
			return runServe(port)
		},
	}

	cmd.Flags().IntVar(&port, "port", 3000, "Port to listen on (overrides config)")

	return cmd
}

func draftCmd() *cobra.Command {
	var file string
	var signature string
	var admit bool
	var useAI bool

	cmd := &cobra.Command{
		Use:   "draft",
		Short: "Draft a letter from correspondence on disk or stdin",
		Long:  "Classify the landlord's correspondence and print the strength, the statute cited and the full letter. Plain text, HTML and raw .eml input are accepted.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDraft(file, signature, admit, useAI)
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Read correspondence from a file instead of stdin")
	cmd.Flags().StringVar(&signature, "signature", "", "Name to sign the letter with (default \"[Your Name]\")")
	cmd.Flags().BoolVar(&admit, "admit", false, "The tenant accepts some responsibility")
	cmd.Flags().BoolVar(&useAI, "ai", false, "Try the AI drafting backend before the keyword classifier")

	return cmd
}

func verifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <session-id>",
		Short: "Check whether a checkout session was paid",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(args[0])
		},
	}
}

func statusCmd() *cobra.Command {
	var limit int
	var pruneDays int

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show draft and payment statistics",
		Long:  "Display recent drafts and overall statistics from the audit store.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(limit, pruneDays)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 20, "Number of recent drafts to show")
	cmd.Flags().IntVar(&pruneDays, "prune-days", 0, "Delete draft records older than this many days first")

	return cmd
}

func runInit(force bool) error {
	configPath := resolveConfigPath()
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("config already exists at %s (use --force to overwrite)", configPath)
	}

	reader := bufio.NewReader(os.Stdin)
	cfg := config.Default()

	fmt.Println("Deposit Defender Configuration Setup")
	fmt.Println("====================================")
	fmt.Println()

	if u := prompt(reader, fmt.Sprintf("Public base URL [%s]: ", cfg.Server.BaseURL)); u != "" {
		cfg.Server.BaseURL = strings.TrimRight(u, "/")
	}
	cfg.AI.APIKey = prompt(reader, "OpenAI API key (blank to use OPENAI_API_KEY): ")
	cfg.Payment.SecretKey = prompt(reader, "Stripe secret key (blank to use STRIPE_SECRET_KEY): ")

	secret := make([]byte, 32)
	if _, err := rand.Read(secret); err != nil {
		return fmt.Errorf("failed to generate cookie secret: %w", err)
	}
	cfg.Server.CookieSecret = hex.EncodeToString(secret)

	if err := config.Save(configPath, cfg); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}

	fmt.Println()
	fmt.Printf("Configuration saved to: %s\n", configPath)
	fmt.Println()
	fmt.Println("Next steps:")
	fmt.Println("  1. Review and edit the config file if needed")
	fmt.Println("  2. Run 'defender draft -f email.txt' to try the classifier")
	fmt.Println("  3. Run 'defender serve' to start the service")

	return nil
}

func runServe(port int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if port > 0 {
		cfg.Server.Port = port
	}

	heuristic, err := newHeuristic("")
	if err != nil {
		return err
	}

	var aiProvider llm.Provider
	aiErr := cfg.ValidateAI()
	if aiErr == nil {
		aiProvider, err = llm.NewProvider(llm.ConfigFromApp(cfg.AI))
		if err != nil {
			return fmt.Errorf("failed to initialize AI provider: %w", err)
		}
	} else {
		log.Printf("AI drafting disabled: %v", aiErr)
	}

	var primary classify.Classifier
	if aiProvider != nil {
		primary = classify.NewAIClassifier(aiProvider)
	}

	var payProvider payment.Provider
	if err := cfg.ValidatePayment(); err == nil {
		payProvider, err = payment.NewProvider(cfg.Payment)
		if err != nil {
			return fmt.Errorf("failed to initialize payment provider: %w", err)
		}
	} else {
		log.Printf("Payments disabled: %v", err)
	}

	store, err := history.NewStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to initialize history: %w", err)
	}
	defer store.Close()

	server, err := web.NewServer(cfg, web.Deps{
		Classifier: classify.NewFallback(primary, heuristic),
		AIProvider: aiProvider,
		AIError:    aiErr,
		Payments:   payment.NewService(payProvider, cfg.Payment, cfg.Server.BaseURL),
		Letters:    cache.NewLetterStore(time.Duration(cfg.Server.LetterTTLMinutes) * time.Minute),
		History:    store,
	})
	if err != nil {
		return fmt.Errorf("failed to create web server: %w", err)
	}

	// Handle graceful shutdown
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		fmt.Println("\nShutting down...")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	return server.Start()
}

func runDraft(file, signature string, admit, useAI bool) error {
	var raw []byte
	var err error
	if file != "" {
		raw, err = os.ReadFile(file)
	} else {
		raw, err = io.ReadAll(os.Stdin)
	}
	if err != nil {
		return fmt.Errorf("failed to read correspondence: %w", err)
	}

	stance := classify.StanceDispute
	if admit {
		stance = classify.StanceAdmitFault
	}

	doc := correspondence.Normalize(string(raw))
	// the operator vouches for the input, so only content rules apply
	in := classify.CaseInput{EmailText: doc.Content(), Stance: stance, ConfirmedTruthful: true}
	if err := classify.Validate(in); err != nil {
		return err
	}

	heuristic, err := newHeuristic(signature)
	if err != nil {
		return err
	}

	var primary classify.Classifier
	if useAI {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		if err := cfg.ValidateAI(); err != nil {
			return err
		}
		provider, err := llm.NewProvider(llm.ConfigFromApp(cfg.AI))
		if err != nil {
			return fmt.Errorf("failed to initialize AI provider: %w", err)
		}
		primary = classify.NewAIClassifier(provider)
	}

	out := classify.NewFallback(primary, heuristic).Classify(context.Background(), in.EmailText, stance)

	if doc.Subject != "" || doc.From != "" {
		fmt.Printf("Correspondence: %s from %s (%s)\n\n", doc.Subject, doc.From, doc.Format)
	}
	fmt.Printf("Strength:  %s\n", out.Result.Strength)
	fmt.Printf("Act cited: %s\n", out.Result.ActCited)
	fmt.Printf("Source:    %s\n", out.Source)
	if out.Warning != "" {
		fmt.Printf("Warning:   %s\n", out.Warning)
	}
	fmt.Println()
	fmt.Println(out.Result.Summary)
	fmt.Println()
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println(out.Result.Letter)

	return nil
}

func runVerify(sessionID string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidatePayment(); err != nil {
		return err
	}

	provider, err := payment.NewProvider(cfg.Payment)
	if err != nil {
		return fmt.Errorf("failed to initialize payment provider: %w", err)
	}

	store, err := history.NewStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	svc := payment.NewService(provider, cfg.Payment, cfg.Server.BaseURL)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	v, err := svc.VerifySession(ctx, sessionID)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	if err := store.RecordPayment(&history.PaymentRecord{SessionID: sessionID, LetterID: v.LetterID, Verified: v.Verified}); err != nil {
		log.Printf("failed to record payment check: %v", err)
	}

	if !v.Verified {
		fmt.Printf("❌ Session %s is not paid\n", sessionID)
		return nil
	}
	fmt.Printf("✅ Session %s is paid\n", sessionID)
	if v.LetterID == "" {
		return nil
	}

	draft, err := store.GetDraft(v.LetterID)
	if err != nil {
		return fmt.Errorf("failed to look up letter: %w", err)
	}
	if draft == nil {
		fmt.Printf("   Letter %s (not in the audit store)\n", v.LetterID)
		return nil
	}
	fmt.Printf("   Letter %s: %s, %s, drafted %s\n",
		v.LetterID, draft.Strength, draft.ActCited, draft.CreatedAt.Format("2006-01-02 15:04"))
	return nil
}

func runStatus(limit, pruneDays int) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	store, err := history.NewStore(cfg.Storage.DBPath)
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer store.Close()

	if pruneDays > 0 {
		n, err := store.Prune(time.Now().AddDate(0, 0, -pruneDays))
		if err != nil {
			return err
		}
		fmt.Printf("Pruned %d draft records older than %d days\n\n", n, pruneDays)
	}

	stats, err := store.GetStats()
	if err != nil {
		return fmt.Errorf("failed to get stats: %w", err)
	}

	fmt.Println("📊 Deposit Defender Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Printf("  Drafts: %d (%d by the keyword classifier)\n", stats.Drafts, stats.FallbackDrafts)
	for _, s := range []classify.Strength{classify.StrengthHigh, classify.StrengthMedium, classify.StrengthLow} {
		fmt.Printf("    %-6s %d\n", s, stats.ByStrength[string(s)])
	}
	fmt.Printf("  Payment checks: %d (%d verified)\n", stats.Verifications, stats.VerifiedPayment)

	drafts, err := store.GetRecentDrafts(limit)
	if err != nil {
		return fmt.Errorf("failed to get recent drafts: %w", err)
	}

	if len(drafts) > 0 {
		fmt.Println()
		fmt.Printf("📜 Recent Drafts (last %d)\n", limit)
		fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

		for _, d := range drafts {
			fmt.Printf("%s  %-6s  %-9s  %s\n",
				d.CreatedAt.Format("2006-01-02 15:04"),
				d.Strength,
				d.Source,
				d.ActCited,
			)
		}
	}

	return nil
}

func newHeuristic(signature string) (*classify.Heuristic, error) {
	engine, err := letter.NewEngine()
	if err != nil {
		return nil, fmt.Errorf("failed to initialize letter templates: %w", err)
	}
	return classify.NewHeuristic(engine, signature)
}

func prompt(reader *bufio.Reader, message string) string {
	fmt.Print(message)
	input, err := reader.ReadString('\n')
	if err != nil {
		return ""
	}
	return strings.TrimSpace(input)
}

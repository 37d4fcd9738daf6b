// Command adelie runs one agent task from the command line.
//
// Configuration is read from flags, an optional config file, and
// ADELIE_-prefixed environment variables, in that order of precedence.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/adelie-ai/adelie/agentcore"
	"github.com/adelie-ai/adelie/modeltransport"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "adelie [task]",
		Short: "Run a coding-agent task against a model provider",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), strings.Join(args, " "))
		},
	}

	flags := cmd.Flags()
	flags.String("provider", "openai", "model provider: openai or ollama")
	flags.String("model", "gpt-4o-mini", "model identifier")
	flags.String("base-url", "", "override the provider base URL")
	flags.String("workdir", "", "working directory for tools (default: cwd)")
	flags.String("mode", "task", "run mode: task or conversational")
	flags.Int("max-iterations", 10, "iteration ceiling for the run")
	flags.Duration("tool-timeout", 60*time.Second, "per-tool execution deadline")
	flags.String("config", "", "config file path")
	flags.Bool("verbose", false, "enable debug logging")

	_ = viper.BindPFlags(flags)
	viper.SetEnvPrefix("ADELIE")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	cobra.OnInitialize(func() {
		if cfgFile := viper.GetString("config"); cfgFile != "" {
			viper.SetConfigFile(cfgFile)
			if err := viper.ReadInConfig(); err != nil {
				log.Warn().Err(err).Str("file", cfgFile).Msg("could not read config file")
			}
		}
	})

	return cmd
}

func setupLogging(verbose bool) {
	level := zerolog.InfoLevel
	if verbose {
		level = zerolog.DebugLevel
	}
	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).
		Level(level).
		With().Timestamp().Logger()
}

func buildTransport() (modeltransport.Transport, error) {
	provider := viper.GetString("provider")
	switch provider {
	case "openai":
		apiKey := viper.GetString("api-key")
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, errors.New("no API key: set ADELIE_API_KEY or OPENAI_API_KEY")
		}
		return modeltransport.NewOpenAITransport(apiKey, viper.GetString("base-url")), nil
	case "ollama":
		return modeltransport.NewOllamaTransport(viper.GetString("base-url"), viper.GetString("model"))
	default:
		return nil, errors.Errorf("unknown provider %q", provider)
	}
}

func run(ctx context.Context, task string) error {
	setupLogging(viper.GetBool("verbose"))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	transport, err := buildTransport()
	if err != nil {
		return err
	}

	mode := agentcore.ModeTask
	if viper.GetString("mode") == "conversational" {
		mode = agentcore.ModeConversational
	}

	cfg := agentcore.DefaultEngineConfig()
	cfg.Model = viper.GetString("model")
	cfg.ToolTimeout = viper.GetDuration("tool-timeout")
	cfg.Termination.MaxIterations = viper.GetInt("max-iterations")
	cfg.SystemPrompt = systemPrompt(mode)

	registry := agentcore.NewToolRegistry()
	agentcore.RegisterCoreTools(registry, cfg.ToolTimeout/2)
	agentcore.RegisterCompletionTools(registry)

	emitter := agentcore.NewEventEmitter(256)
	go func() {
		for ev := range emitter.Events() {
			log.Info().
				Str("event", string(ev.Kind)).
				Int("iteration", ev.Iteration).
				Fields(ev.Data).
				Msg("run event")
		}
	}()

	eng := agentcore.NewEngine(
		agentcore.WithTransport(transport),
		agentcore.WithRegistry(registry),
		agentcore.WithEnvironment(agentcore.NewLocalEnvironment(viper.GetString("workdir"))),
		agentcore.WithObserver(emitter),
		agentcore.WithConfig(cfg),
		agentcore.WithMode(mode),
	)

	outcome, err := eng.Run(ctx, task)
	emitter.Close()
	if err != nil {
		log.Error().Err(err).Str("status", string(outcome.Status)).Msg("run failed")
	}

	encoded, jsonErr := json.MarshalIndent(outcome, "", "  ")
	if jsonErr != nil {
		return errors.Wrap(jsonErr, "encode outcome")
	}
	fmt.Println(string(encoded))
	return err
}

// systemPrompt explains the directive protocol to tag-only providers.
// Providers with native tool calling also see the registry definitions
// via the request's tool specs.
func systemPrompt(mode agentcore.Mode) string {
	signal := agentcore.SignalChatComplete
	if mode == agentcore.ModeTask {
		signal = agentcore.SignalTaskComplete
	}
	return fmt.Sprintf(`You are a coding agent. To act, emit exactly one directive per response as a tag block:

<execute>shell command</execute>
<read_file>path</read_file>
<write_file>path:content</write_file>
<list_files>path</list_files>

When finished, emit <%s>{"summary": "...", "status": "done"}</%s>.
Only the first directive in a response is executed.`, signal, signal)
}

package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/jukebox/internal/metrics"
	"github.com/desertthunder/jukebox/internal/repositories"
	"github.com/desertthunder/jukebox/internal/round"
	"github.com/desertthunder/jukebox/internal/services"
	"github.com/desertthunder/jukebox/internal/shared"
	"github.com/desertthunder/jukebox/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Runner holds all dependencies for CLI commands and provides methods for each command action.
//
// The store and the pipeline are wired lazily by [Runner.wire] so that setup commands work without a database.
type Runner struct {
	config     *shared.Config
	configPath string
	logger     *log.Logger
	output     io.Writer
	input      io.Reader
	httpClient *http.Client

	db        *sql.DB
	store     *repositories.Store
	catalogs  services.CatalogFactory
	tokens    services.TokenProvider
	metrics   *metrics.Collector
	resolver  *round.Resolver
	assembler *round.Assembler
	scheduler *tasks.Scheduler
}

// RunnerOpts contains configuration options for creating a Runner.
//
// Store, Catalogs and Tokens are optional; they are built from the config when nil.
type RunnerOpts struct {
	Config     *shared.Config
	ConfigPath string
	Logger     *log.Logger
	Output     io.Writer
	Input      io.Reader
	HTTPClient *http.Client
	Store      *repositories.Store
	Catalogs   services.CatalogFactory
	Tokens     services.TokenProvider
}

// NewRunner creates a new Runner with the provided configuration
func NewRunner(opts RunnerOpts) *Runner {
	if opts.Config == nil {
		opts.Config = shared.DefaultConfig()
	}
	if opts.Logger == nil {
		opts.Logger = shared.NewLogger(nil)
	}
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	if opts.Input == nil {
		opts.Input = os.Stdin
	}
	if opts.HTTPClient == nil {
		opts.HTTPClient = http.DefaultClient
	}

	return &Runner{
		config:     opts.Config,
		configPath: opts.ConfigPath,
		logger:     opts.Logger,
		output:     opts.Output,
		input:      opts.Input,
		httpClient: opts.HTTPClient,
		store:      opts.Store,
		catalogs:   opts.Catalogs,
		tokens:     opts.Tokens,
	}
}

func (r *Runner) register() []*cli.Command {
	commands := []*cli.Command{}
	for _, fn := range [](func(*Runner) *cli.Command){
		setupCommand, serveCommand, tickCommand, roundCommand, zonesCommand, queueCommand,
	} {
		commands = append(commands, fn(r))
	}

	return commands
}

// configure loads the config file named by --config, if present, and applies --log-level.
func (r *Runner) configure(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if lvl := cmd.String("log-level"); lvl != "" {
		shared.SetLogLevel(r.logger, shared.ParseLogLevel(lvl))
	}

	path := cmd.String("config")
	if path == "" {
		return ctx, nil
	}
	r.configPath = path

	if _, err := os.Stat(path); err != nil {
		r.logger.Debug("config file not found, using defaults", "path", path)
		return ctx, nil
	}

	config, err := shared.LoadConfig(path)
	if err != nil {
		return ctx, err
	}
	r.config = config
	return ctx, nil
}

// wire builds the store, the catalog client and the round and maintenance services.
func (r *Runner) wire() error {
	if r.scheduler != nil {
		return nil
	}

	if r.store == nil {
		db, err := shared.OpenConfigured(r.config.Database)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		r.db = db
		r.store = repositories.New(db)
	}

	if r.catalogs == nil {
		spotify := services.NewSpotifyService(services.SpotifyOpts{
			BaseURL:    r.config.Credentials.Spotify.APIBaseURL,
			HTTPClient: r.httpClient,
			RateLimit:  r.config.Round.CatalogRateLimit,
		})
		r.catalogs = spotify.Factory()
	}

	if r.tokens == nil && r.config.Credentials.Spotify.Configured() {
		provider, err := services.NewClientCredentialsProvider(r.config.Credentials.Spotify, r.httpClient)
		if err != nil {
			return err
		}
		r.tokens = provider
	}

	r.metrics = metrics.NewCollector()
	r.resolver = round.NewResolver(r.store, r.catalogs, r.config.Round, r.metrics, r.logger)
	r.assembler = round.NewAssembler(r.store, r.catalogs, r.config.Round, r.metrics, r.logger)
	r.scheduler = tasks.NewScheduler(r.store, r.catalogs, r.tokens, r.config.Maintenance, r.metrics, r.logger)
	return nil
}

// Close releases the database opened by [Runner.wire].
func (r *Runner) Close() error {
	if r.db == nil {
		return nil
	}
	return r.db.Close()
}

// token returns the --token flag or, failing that, a client-credentials token.
func (r *Runner) token(ctx context.Context, cmd *cli.Command) (string, error) {
	if token := cmd.String("token"); token != "" {
		return token, nil
	}
	if r.tokens == nil {
		return "", fmt.Errorf("%w: pass --token or configure spotify client credentials", shared.ErrMissingToken)
	}
	return r.tokens.Token(ctx)
}

// readJSON decodes a JSON document from path, or from the runner's input when path is "-".
func (r *Runner) readJSON(path string, v any) error {
	var src io.Reader = r.input
	if path != "-" {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("failed to open %s: %w", path, err)
		}
		defer f.Close()
		src = f
	}

	if err := json.NewDecoder(src).Decode(v); err != nil {
		return fmt.Errorf("%w: malformed request: %v", shared.ErrValidation, err)
	}
	return nil
}

func (r *Runner) writeJSON(data any, pretty bool) error {
	var output []byte
	var err error

	if pretty {
		output, err = json.MarshalIndent(data, "", "  ")
	} else {
		output, err = json.Marshal(data)
	}

	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}

	if _, err := r.output.Write(output); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}

	if _, err := r.output.Write([]byte("\n")); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

func (r *Runner) writePlain(format string, args ...any) error {
	text := fmt.Sprintf(format, args...)
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainln(format string, args ...any) error {
	text := "\n" + fmt.Sprintf(format, args...) + "\n"
	if _, err := r.output.Write([]byte(text)); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func (r *Runner) writePlainHeader(title string) {
	r.writePlain("%s\n", styles.title.Render(title))
}

package cli

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/vk/jsonshape/internal/app"
)

// EnvPrefix prefixes every environment variable the CLI reads.
const EnvPrefix = "JSONSHAPE"

// ExitError is a custom error type that includes a specific exit code.
type ExitError struct {
	Code    int
	Message string
}

// Error implements the error interface for ExitError.
func (e *ExitError) Error() string {
	return e.Message
}

func usageError(format string, args ...any) error {
	return &ExitError{Code: 2, Message: fmt.Sprintf(format, args...)}
}

// env carries the per-invocation state shared by all commands.
type env struct {
	v      *viper.Viper
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer
}

// NewRootCommand builds the command tree. Each call gets its own viper
// instance, so commands can be executed repeatedly in tests.
func NewRootCommand(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	e := &env{v: viper.New(), stdin: stdin, stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:   "jsonshape",
		Short: "Render objects into JSON with declarative HCL templates",
		Long: `jsonshape compiles HCL view templates and renders JSON documents through
them, producing JSON, YAML or MessagePack.

Templates live in a views directory; the identifier "users/show" refers to
<views>/users/show.hcl.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          usageArgs(cobra.NoArgs),
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return e.loadConfig(cmd)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return usageError("%v", err)
	})
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.String("config", "", "config file (default is .jsonshape.yaml, can also use JSONSHAPE_CONFIG)")
	flags.StringP("views", "V", "views", "Directory containing .hcl templates.")
	flags.StringP("format", "f", "json", "Output format: json, yaml or msgpack.")
	flags.Int("indent", 0, "Spaces per indentation level for text formats; 0 is compact JSON.")
	flags.Bool("include-root", false, "Wrap the output under the template's root name.")
	flags.Bool("include-child-root", false, "Wrap every collection element under its object root.")
	flags.Int("cache-size", 0, "Number of compiled templates to keep; 0 uses the default.")
	flags.Int("render-cache-size", 0, "Number of cached renders to keep; 0 uses the default.")
	flags.String("log-level", "info", "Set the logging level. Options: 'debug', 'info', 'warn', 'error'.")
	flags.String("log-format", "text", "Log output format. Options: 'text' or 'json'.")

	root.AddCommand(newRenderCommand(e), newCompileCommand(e), newListCommand(e))
	return root
}

// Run executes the CLI with args. Usage problems are reported as ExitError
// with code 2.
func Run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) error {
	root := NewRootCommand(stdin, stdout, stderr)
	if args == nil {
		// cobra falls back to os.Args for nil.
		args = []string{}
	}
	root.SetArgs(args)
	return root.ExecuteContext(ctx)
}

// usageArgs reports argument validation failures as usage errors.
func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return usageError("%v", err)
		}
		return nil
	}
}

// newApp builds the application from the loaded configuration.
func (e *env) newApp() (*app.App, *app.Config, error) {
	cfg, err := e.config()
	if err != nil {
		return nil, nil, err
	}
	a, err := app.NewApp(e.stderr, cfg)
	if err != nil {
		return nil, nil, usageError("%v", err)
	}
	return a, cfg, nil
}

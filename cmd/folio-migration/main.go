// Package main provides the entry point for the FOLIO migration CLI.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/tidwall/pretty"

	"github.com/codebypatrickleung/folio-migration-cli/internal/common"
	"github.com/codebypatrickleung/folio-migration-cli/internal/config"
	"github.com/codebypatrickleung/folio-migration-cli/internal/logger"
	"github.com/codebypatrickleung/folio-migration-cli/internal/okapi"
	"github.com/codebypatrickleung/folio-migration-cli/internal/workflow"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var (
	cfgFile string
	envFile string
	debug   bool
	logFile string
	version = "0.1.0"

	store *config.Store
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:               "folio-migration",
	Short:             "FOLIO migration workflow tool",
	Long:              `folio-migration scaffolds, builds and runs FOLIO migration workflows against mod-workflow, mod-data-extractor and mod-external-reference-resolver.`,
	Version:           version,
	SilenceUsage:      true,
	PersistentPreRunE: initConfig,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is <user config dir>/folio-migration-cli/config.json)")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with FMC_* overrides, loaded when present")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write log output to this file")

	workflowsCmd.Flags().Bool("remote", false, "Query the workflow service for the active state of each workflow")

	configCmd.AddCommand(configGetCmd, configSetCmd, configDeleteCmd, configResetCmd, configShowCmd)
	rootCmd.AddCommand(
		configCmd,
		loginCmd,
		logoutCmd,
		userCmd,
		lookupCmd,
		newCmd,
		addCmd,
		loadCmd,
		buildCmd,
		activateCmd,
		deactivateCmd,
		runCmd,
		workflowsCmd,
	)
}

func initConfig(_ *cobra.Command, _ []string) error {
	if envFile != "" && common.Exists(envFile) {
		if err := godotenv.Load(envFile); err != nil {
			return fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}
	s, err := config.Open(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	store = s
	return nil
}

// session holds what a command needs to talk to the workflow services.
type session struct {
	cfg     *config.Config
	log     *logger.Logger
	client  *okapi.Client
	manager *workflow.Manager
}

func (s *session) Close() {
	_ = s.log.Close()
}

func newSession() (*session, error) {
	cfg := config.FromStore(store)
	if debug {
		cfg.Debug = true
	}

	log := logger.New(cfg.Debug)
	if logFile != "" {
		var err error
		if log, err = logger.NewWithFile(cfg.Debug, logFile); err != nil {
			return nil, fmt.Errorf("failed to initialize logger: %w", err)
		}
	}
	log.Debugf("Using config file: %s", store.Path())

	client, err := okapi.NewClient(cfg.OkapiURL, cfg.Tenant, log, okapi.WithToken(cfg.Token))
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to create okapi client: %w", err)
	}
	mgr, err := workflow.NewManager(cfg, log, client)
	if err != nil {
		_ = log.Close()
		return nil, fmt.Errorf("failed to create workflow manager: %w", err)
	}
	return &session{cfg: cfg, log: log, client: client, manager: mgr}, nil
}

// withSession runs fn with a session and a context cancelled on interrupt.
func withSession(fn func(ctx context.Context, s *session) error) error {
	s, err := newSession()
	if err != nil {
		return err
	}
	defer s.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, s)
}

func printJSON(cmd *cobra.Command, body []byte) {
	fmt.Fprint(cmd.OutOrStdout(), string(pretty.Pretty(body)))
}

func printTable(cmd *cobra.Command, header []string, rows [][]string) {
	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader(header)
	table.SetAutoFormatHeaders(false)
	table.SetBorder(false)
	table.AppendBulk(rows)
	table.Render()
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Read and write persisted settings",
}

var configGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the effective value of a setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value := store.Get(args[0])
		if value == nil {
			return fmt.Errorf("%s is not set", args[0])
		}
		out, err := cast.ToStringE(value)
		if err != nil {
			data, jerr := json.Marshal(value)
			if jerr != nil {
				return err
			}
			out = string(data)
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Persist a setting",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return store.Set(args[0], args[1])
	},
}

var configDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a persisted setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return store.Delete(args[0])
	},
}

var configResetCmd = &cobra.Command{
	Use:   "reset [key]",
	Short: "Restore a setting, or every setting, to its default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return store.Clear()
		}
		return store.Reset(args[0])
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print every effective setting",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		values := config.Flatten(store.All())
		for _, key := range store.Keys() {
			value := values[key]
			if key == config.KeyPassword || key == config.KeyToken {
				value = "********"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s = %v\n", key, value)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "\n(%s)\n", store.Path())
		return nil
	},
}

var loginCmd = &cobra.Command{
	Use:   "login [username] [password]",
	Short: "Log in to Okapi and persist the token",
	Args:  cobra.MaximumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			username, password := s.cfg.Username, s.cfg.Password
			if len(args) > 0 {
				username = args[0]
			}
			if len(args) > 1 {
				password = args[1]
			}
			token, err := s.client.Login(ctx, username, password)
			if err != nil {
				return fmt.Errorf("login failed: %w", err)
			}
			if err := store.Set(config.KeyToken, token); err != nil {
				return err
			}
			if username != s.cfg.Username {
				if err := store.Set(config.KeyUsername, username); err != nil {
					return err
				}
			}
			s.log.Successf("logged in as %s", username)
			return nil
		})
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the persisted token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return store.Delete(config.KeyToken)
	},
}

var userCmd = &cobra.Command{
	Use:   "user [username]",
	Short: "Print a user record",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			username := s.cfg.Username
			if len(args) > 0 {
				username = args[0]
			}
			if username == "" {
				return fmt.Errorf("no username given and %s is not set", config.KeyUsername)
			}
			body, err := s.client.GetUser(ctx, username)
			if err != nil {
				return err
			}
			printJSON(cmd, body)
			return nil
		})
	},
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <module>",
	Short: "List deployed instances of a module",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			modules, err := s.client.LookupModule(ctx, args[0])
			if err != nil {
				return err
			}
			if len(modules) == 0 {
				return fmt.Errorf("no deployed module matches %s", args[0])
			}
			rows := make([][]string, 0, len(modules))
			for _, m := range modules {
				rows = append(rows, []string{m.SrvcID, m.InstID, m.URL})
			}
			printTable(cmd, []string{"SERVICE", "INSTANCE", "URL"}, rows)
			return nil
		})
	},
}

var newCmd = &cobra.Command{
	Use:   "new <workflow>",
	Short: "Scaffold a new workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(_ context.Context, s *session) error {
			_, err := s.manager.Scaffold(args[0])
			return err
		})
	},
}

var addCmd = &cobra.Command{
	Use:       "add <workflow> <extractor|processor|references> <name>",
	Short:     "Add a definition to a workflow",
	Args:      cobra.ExactArgs(3),
	ValidArgs: []string{string(workflow.TypeExtractor), string(workflow.TypeProcessor), string(workflow.TypeReferences)},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(_ context.Context, s *session) error {
			files, err := s.manager.Add(args[0], workflow.ResourceType(strings.ToLower(args[1])), args[2])
			for _, f := range files {
				fmt.Fprintln(cmd.OutOrStdout(), f)
			}
			return err
		})
	},
}

var loadCmd = &cobra.Command{
	Use:   "load <workflow> <references> <source-dir>",
	Short: "Merge record files into a workflow's reference data",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(_ context.Context, s *session) error {
			res, err := s.manager.LoadReferenceData(args[0], args[1], args[2])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "%s: %d added, %d duplicate, %d invalid\n",
				res.Path, len(res.Added), len(res.Duplicates), len(res.Invalid))
			for _, id := range res.Duplicates {
				fmt.Fprintf(out, "  duplicate %s\n", id)
			}
			for _, file := range res.Invalid {
				fmt.Fprintf(out, "  invalid %s\n", file)
			}
			return nil
		})
	},
}

var buildCmd = &cobra.Command{
	Use:   "build <workflow>",
	Short: "Provision a workflow on the remote services",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			s.log.Infof("folio-migration version %s", version)
			if err := s.manager.Build(ctx, args[0]); err != nil {
				s.log.Errorf("Build failed: %v", err)
				return err
			}
			return nil
		})
	},
}

var activateCmd = &cobra.Command{
	Use:   "activate <workflow>",
	Short: "Activate a built workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			return s.manager.Activate(ctx, args[0])
		})
	},
}

var deactivateCmd = &cobra.Command{
	Use:   "deactivate <workflow>",
	Short: "Deactivate a built workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			return s.manager.Deactivate(ctx, args[0])
		})
	},
}

var runCmd = &cobra.Command{
	Use:   "run <workflow>",
	Short: "Fire a workflow's start trigger",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			body, err := s.manager.Run(ctx, args[0])
			if err != nil {
				return err
			}
			if len(body) > 0 {
				printJSON(cmd, body)
			}
			return nil
		})
	},
}

var workflowsCmd = &cobra.Command{
	Use:   "workflows",
	Short: "List local workflows",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		remote, _ := cmd.Flags().GetBool("remote")
		return withSession(func(ctx context.Context, s *session) error {
			names, err := s.manager.List()
			if err != nil {
				return err
			}
			header := []string{"WORKFLOW"}
			if remote {
				header = append(header, "STATE")
			}
			rows := make([][]string, 0, len(names))
			for _, name := range names {
				row := []string{name}
				if remote {
					state := ""
					active, err := s.manager.IsActive(ctx, name)
					switch {
					case err != nil:
						s.log.Debugf("cannot read state of %s: %v", name, err)
						state = "?"
					case active:
						state = "ACTIVE"
					}
					row = append(row, state)
				}
				rows = append(rows, row)
			}
			printTable(cmd, header, rows)
			return nil
		})
	},
}

package cmd

import (
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/formgate/formgate/internal/server"
)

type runCommand struct {
	cmd              *cobra.Command
	debugLogsEnabled bool
	configPath       string
}

func newRunCommand() *runCommand {
	runCommand := &runCommand{}
	runCommand.cmd = &cobra.Command{
		Use:   "run",
		Short: "Run the server",
		RunE:  runCommand.run,
	}

	runCommand.cmd.Flags().BoolVar(&runCommand.debugLogsEnabled, "debug", getEnvBool("DEBUG", false), "Include debugging logs")
	runCommand.cmd.Flags().StringVar(&runCommand.configPath, "config", getEnvString("CONFIG", ""), "Optional YAML config file with routes and buffering limits")
	runCommand.cmd.Flags().StringVar(&globalConfig.Bind, "bind", getEnvString("BIND", ""), "Address to bind the server to (default all interfaces)")
	runCommand.cmd.Flags().IntVar(&globalConfig.HttpPort, "http-port", getEnvInt("HTTP_PORT", server.DefaultHttpPort), "Port to serve HTTP traffic on")
	runCommand.cmd.Flags().IntVar(&globalConfig.MetricsPort, "metrics-port", getEnvInt("METRICS_PORT", 0), "Publish metrics on the specified port (default zero to disable)")
	runCommand.cmd.Flags().Int64Var(&globalConfig.MaxRequestBodySize, "max-request-body", getEnvInt64("MAX_REQUEST_BODY", server.DefaultMaxRequestBodySize), "Maximum size of request bodies to buffer (default zero for unlimited)")
	runCommand.cmd.Flags().Int64Var(&globalConfig.MaxMemoryBufferSize, "buffer-memory", getEnvInt64("BUFFER_MEMORY", server.DefaultMaxMemoryBufferSize), "Amount of request body to buffer in memory before spilling to disk")
	runCommand.cmd.Flags().BoolVar(&globalConfig.InspectForms, "inspect-forms", getEnvBool("INSPECT_FORMS", false), "Parse and log form fields before forwarding")

	return runCommand
}

func (c *runCommand) run(cmd *cobra.Command, args []string) error {
	c.setLogger()

	initialRoutes, err := c.applyFileConfig(cmd)
	if err != nil {
		return err
	}

	router := server.NewRouter(globalConfig.StatePath())
	router.RestoreLastSavedState()

	for _, route := range initialRoutes {
		err := router.SetTarget(route.Host, route.Target)
		if err != nil {
			return err
		}
	}

	s := server.NewServer(&globalConfig, router)
	err = s.Start()
	if err != nil {
		return err
	}
	defer s.Stop()

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGTERM, syscall.SIGINT)
	<-ch

	return nil
}

// Private

// applyFileConfig merges the optional YAML file into the global config.
// Values given as flags take precedence over the file.
func (c *runCommand) applyFileConfig(cmd *cobra.Command) ([]server.RouteConfig, error) {
	if c.configPath == "" {
		return nil, nil
	}

	fileConfig, err := server.LoadFileConfig(c.configPath)
	if err != nil {
		return nil, err
	}

	if !cmd.Flags().Changed("max-request-body") && fileConfig.Buffering.MaxRequestBodySize != 0 {
		globalConfig.MaxRequestBodySize = fileConfig.Buffering.MaxRequestBodySize
	}
	if !cmd.Flags().Changed("buffer-memory") && fileConfig.Buffering.MaxMemoryBufferSize != 0 {
		globalConfig.MaxMemoryBufferSize = fileConfig.Buffering.MaxMemoryBufferSize
	}
	if !cmd.Flags().Changed("inspect-forms") {
		globalConfig.InspectForms = fileConfig.InspectForms
	}

	return fileConfig.Routes, nil
}

func (c *runCommand) setLogger() {
	level := slog.LevelInfo
	if c.debugLogsEnabled {
		level = slog.LevelDebug
	}

	slog.SetDefault(server.CreateECSLogger(level, os.Stdout))
}

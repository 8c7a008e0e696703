package cmd

import (
	"net/rpc"

	"github.com/spf13/cobra"

	"github.com/formgate/formgate/internal/server"
)

type deployCommand struct {
	cmd  *cobra.Command
	args server.DeployArgs
}

func newDeployCommand() *deployCommand {
	deployCommand := &deployCommand{}
	deployCommand.cmd = &cobra.Command{
		Use:       "deploy <target>",
		Short:     "Deploy a target host",
		RunE:      deployCommand.run,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"target"},
	}

	deployCommand.cmd.Flags().StringVar(&deployCommand.args.Host, "host", "", "Host to serve this target on (empty for wildcard)")

	return deployCommand
}

func (c *deployCommand) run(cmd *cobra.Command, args []string) error {
	var response bool

	c.args.TargetURL = args[0]

	return withRPCClient(globalConfig.SocketPath(), func(client *rpc.Client) error {
		return client.Call("formgate.Deploy", c.args, &response)
	})
}

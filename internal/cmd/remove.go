package cmd

import (
	"net/rpc"

	"github.com/spf13/cobra"

	"github.com/formgate/formgate/internal/server"
)

type removeCommand struct {
	cmd  *cobra.Command
	args server.RemoveArgs
}

func newRemoveCommand() *removeCommand {
	removeCommand := &removeCommand{}
	removeCommand.cmd = &cobra.Command{
		Use:       "remove <host>",
		Short:     "Remove the target serving a host",
		RunE:      removeCommand.run,
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"host"},
	}

	return removeCommand
}

func (c *removeCommand) run(cmd *cobra.Command, args []string) error {
	var response bool

	c.args.Host = args[0]

	return withRPCClient(globalConfig.SocketPath(), func(client *rpc.Client) error {
		return client.Call("formgate.Remove", c.args, &response)
	})
}

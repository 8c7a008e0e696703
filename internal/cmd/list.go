package cmd

import (
	"maps"
	"net/rpc"
	"slices"

	"github.com/spf13/cobra"

	"github.com/formgate/formgate/internal/server"
)

type listCommand struct {
	cmd *cobra.Command
}

func newListCommand() *listCommand {
	listCommand := &listCommand{}
	listCommand.cmd = &cobra.Command{
		Use:   "list",
		Short: "List the hosts currently being served",
		RunE:  listCommand.run,
		Args:  cobra.NoArgs,
	}

	return listCommand
}

func (c *listCommand) run(cmd *cobra.Command, args []string) error {
	return withRPCClient(globalConfig.SocketPath(), func(client *rpc.Client) error {
		var response server.ListResponse

		err := client.Call("formgate.List", true, &response)
		if err != nil {
			return err
		}

		table := NewTable()
		table.AddRow([]string{"Host", "Target"})

		for _, host := range slices.Sorted(maps.Keys(response.Targets)) {
			name := host
			if name == "" {
				name = "*"
			}
			table.AddRow([]string{name, response.Targets[host]})
		}

		table.Print()
		return nil
	})
}

package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"sideQuest/devserver"
)

func devServerCmd() *cobra.Command {
	var addr string
	var seed bool

	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Run the in-memory development backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			srv := devserver.New()
			if seed {
				username, password := srv.Seed()
				fmt.Printf("Seeded demo account %s / %s\n", username, password)
			}
			return srv.Run(addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", ":8080", "Listen address")
	cmd.Flags().BoolVar(&seed, "seed", false, "Create a demo account on startup")
	return cmd
}

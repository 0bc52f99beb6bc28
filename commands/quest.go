package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sideQuest/api"
	"sideQuest/utils"
)

func questCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quest",
		Short: "Manage the selected adventurer's quests",
	}
	cmd.AddCommand(
		questListCmd(),
		questCreateCmd(),
		questGetCmd(),
		questCompleteCmd(),
		questDeleteCmd(),
	)
	return cmd
}

func questListCmd() *cobra.Command {
	var adventurerID string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the adventurer's quests",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			advID, err := resolveAdventurer(adventurerID)
			if err != nil {
				return err
			}
			quests, err := a.quests.Fetch(cmd.Context(), advID)
			if err != nil {
				return err
			}
			if len(quests) == 0 {
				fmt.Printf("No quests yet, run `%s quest create` to add one\n", appName)
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tXP\tSTATUS")
			for _, q := range quests {
				status := "open"
				if q.Completed {
					status = "done"
				}
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", q.ID, q.Title, q.ExperienceReward, status)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVarP(&adventurerID, "adventurer", "a", "", "Adventurer ID (defaults to the selection)")
	return cmd
}

func questCreateCmd() *cobra.Command {
	var adventurerID string
	var reward int

	cmd := &cobra.Command{
		Use:   "create <title>",
		Short: "Add a quest for the adventurer",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			advID, err := resolveAdventurer(adventurerID)
			if err != nil {
				return err
			}
			q, err := a.quests.Create(cmd.Context(), api.CreateQuestRequest{
				Title:            args[0],
				ExperienceReward: reward,
				AdventurerID:     advID,
			})
			if err != nil {
				return err
			}
			fmt.Printf("Created quest %s worth %d XP (%s)\n", q.Title, q.ExperienceReward, q.ID)
			return nil
		},
	}
	cmd.Flags().StringVarP(&adventurerID, "adventurer", "a", "", "Adventurer ID (defaults to the selection)")
	cmd.Flags().IntVar(&reward, "xp", 0, "Experience reward (server default when omitted)")
	return cmd
}

func questGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one quest in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			q, err := a.quests.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			utils.PrettyPrint(q)
			return nil
		},
	}
}

// questCompleteCmd flips the quest's completed flag. Banking experience goes
// through `adventurer complete`, which the server treats as the progression
// event.
func questCompleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "complete <id>",
		Short: "Mark a quest completed",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			q, err := a.quests.Complete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Marked %s completed\n", q.Title)
			return nil
		},
	}
}

func questDeleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a quest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			if err := a.quests.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Println("Quest deleted")
			return nil
		},
	}
}

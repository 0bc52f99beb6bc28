package commands

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"sideQuest/api"
	"sideQuest/generator"
	"sideQuest/utils"
)

func adventurerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "adventurer",
		Aliases: []string{"adv"},
		Short:   "Manage the account's adventurers",
	}
	cmd.AddCommand(
		adventurerListCmd(),
		adventurerCreateCmd(),
		adventurerGetCmd(),
		adventurerSelectCmd(),
		adventurerCompleteCmd(),
	)
	return cmd
}

func adventurerListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List adventurers with their progression",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			advs, err := a.adventurers.Fetch(cmd.Context())
			if err != nil {
				return err
			}
			if len(advs) == 0 {
				fmt.Printf("No adventurers yet, run `%s adventurer create` to start one\n", appName)
				return nil
			}

			selected := loadSelection()
			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "\tID\tNAME\tTYPE\tLEVEL\tXP\tQUESTS DONE")
			for _, adv := range advs {
				marker := ""
				if adv.ID == selected {
					marker = "*"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d/%d\t%d\n",
					marker, adv.ID, adv.Name, adv.AdventurerType,
					adv.Level, adv.Experience, adv.ExperienceForNextLevel,
					adv.CompletedQuestsCount)
			}
			return w.Flush()
		},
	}
}

func adventurerCreateCmd() *cobra.Command {
	var name, advType string

	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create an adventurer",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			if name == "" {
				name = generator.AdventurerName()
			}
			user := a.auth.CurrentUser()
			adv, err := a.adventurers.Create(cmd.Context(), name, user.ID, advType)
			if err != nil {
				return err
			}
			if err := saveSelection(adv.ID); err != nil {
				return err
			}
			fmt.Printf("Created %s (%s), level %d\n", adv.Name, adv.ID, adv.Level)
			return nil
		},
	}
	cmd.Flags().StringVarP(&name, "name", "n", "", "Adventurer name (generated when omitted)")
	cmd.Flags().StringVarP(&advType, "type", "t", api.DefaultAdventurerType, "Adventurer type")
	return cmd
}

func adventurerGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show one adventurer in full",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			adv, err := a.adventurers.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			utils.PrettyPrint(adv)
			return nil
		},
	}
}

func adventurerSelectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "select <id>",
		Short: "Choose the adventurer quest commands act on",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp()
			if err != nil {
				return err
			}
			if err := a.requireSession(cmd.Context()); err != nil {
				return err
			}
			adv, err := a.adventurers.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := saveSelection(adv.ID); err != nil {
				return err
			}
			fmt.Printf("Selected %s\n", adv.Name)
			return nil
		},
	}
}

func adventurerCompleteCmd() *cobra.Command {
	var adventurerID string

	cmd := &cobra.Command{
		Use:   "complete <quest-id>",
		Short: "Complete a quest and bank its experience",
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
			result, err := a.adventurers.CompleteQuest(cmd.Context(), advID, args[0])
			if err != nil {
				return err
			}

			adv := result.Adventurer
			if !result.WasNewCompletion {
				fmt.Println("Quest was already completed, no experience awarded")
				return nil
			}
			if result.LeveledUp {
				fmt.Printf("%s leveled up! Now level %d\n", adv.Name, adv.Level)
				return nil
			}
			fmt.Printf("%s is at %d/%d XP toward level %d\n",
				adv.Name, adv.Experience, adv.ExperienceForNextLevel, adv.Level+1)
			return nil
		},
	}
	cmd.Flags().StringVarP(&adventurerID, "adventurer", "a", "", "Adventurer ID (defaults to the selection)")
	return cmd
}

package cmd

import (
	"os"
	"path/filepath"

	"github.com/manifoldco/promptui"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var cleanAgree bool

var cleanCmd = &cobra.Command{
	Use:     "clean",
	Aliases: []string{"prune", "cleanup"},
	Short:   "Delete the workspace",
	Long: `This command deletes the workspace directory.
This includes the core library checkout, its build output and the working copies of every suite.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		config, err := loadConfig()
		if err != nil {
			fail(cmd, err)
		}
		dir := config.Workspace
		if workspace != "" {
			dir = workspace
		}
		dir, err = filepath.Abs(dir)
		if err != nil {
			logrus.Fatalf("Couldn't resolve workspace %s - %v", dir, err)
		}

		entries, err := os.ReadDir(dir)
		if os.IsNotExist(err) {
			logrus.Infof("Workspace %s does not exist. Exiting...", dir)
			return
		} else if err != nil {
			logrus.Fatalf("Couldn't read workspace %s - %v", dir, err)
		}

		logrus.Infof("About to delete %s holding %d repositories.", dir, len(entries))

		prompt := promptui.Prompt{
			Label:     "Proceed",
			IsConfirm: true,
		}

		if !cleanAgree {
			_, err := prompt.Run()
			if err != nil {
				logrus.Info("Exiting...")
				os.Exit(0)
			}
		}

		if err := os.RemoveAll(dir); err != nil {
			logrus.Fatalf("Failed to delete workspace %s - %v", dir, err)
		}
		logrus.Info("Done cleaning up.")
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)

	cleanCmd.Flags().BoolVarP(&cleanAgree, "assume-yes", "y", false, `Bypass "Are you sure?" message.`)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/tablekit/partgen/pkg/database"
)

// passwordCmd represents the password command group
var passwordCmd = &cobra.Command{
	Use:   "password",
	Short: "Manage stored database passwords",
}

var passwordSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Store the database password in the system keyring",
	RunE: func(cmd *cobra.Command, args []string) error {
		user := cfg.GetWithDefault("database.user", "postgres")

		password, err := promptPassword(fmt.Sprintf("Password for %q: ", user))
		if err != nil {
			return err
		}
		confirm, err := promptPassword("Confirm password: ")
		if err != nil {
			return err
		}
		if password != confirm {
			return fmt.Errorf("passwords do not match")
		}

		if err := database.StorePassword(user, password); err != nil {
			return fmt.Errorf("failed to store password: %v", err)
		}
		fmt.Printf("✅ Stored password for %q\n", user)
		return nil
	},
}

var passwordForgetCmd = &cobra.Command{
	Use:   "forget",
	Short: "Remove the stored database password",
	RunE: func(cmd *cobra.Command, args []string) error {
		user := cfg.GetWithDefault("database.user", "postgres")
		if err := database.ForgetPassword(user); err != nil {
			return fmt.Errorf("failed to remove password: %v", err)
		}
		fmt.Printf("✅ Removed stored password for %q\n", user)
		return nil
	},
}

func init() {
	passwordCmd.AddCommand(passwordSetCmd)
	passwordCmd.AddCommand(passwordForgetCmd)
}

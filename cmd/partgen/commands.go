package main

// setupCommands initializes all commands and their relationships
func setupCommands() {
	rootCmd.AddCommand(expandCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(applyCmd)
	rootCmd.AddCommand(passwordCmd)
	rootCmd.AddCommand(configCmd)
}

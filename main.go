package main

import (
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/hs2504785/greenspace-push/cmd"
)

var rootCmd = &cobra.Command{
	Use:   "greenspace-push",
	Short: "Greenspace push notification gateway",
	Long:  "A push notification gateway for the Arya Natural Farms marketplace: manages web push subscriptions, dispatches notifications, and fans out updates to connected clients",
}

func init() {
	rootCmd.AddCommand(cmd.ServerCmd)
	rootCmd.AddCommand(cmd.SendCmd)
	rootCmd.AddCommand(cmd.KeygenCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		log.Println(err)
		os.Exit(1)
	}
}

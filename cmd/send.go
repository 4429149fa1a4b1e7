package cmd

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"

	"github.com/hs2504785/greenspace-push/pkg/config"
	"github.com/hs2504785/greenspace-push/pkg/guardrails"
	"github.com/hs2504785/greenspace-push/pkg/notification"
)

var (
	sendConfig    string
	sendUserID    string
	sendBroadcast bool
	sendType      string
	sendTitle     string
	sendMessage   string
	sendURL       string
	sendTag       string
)

var SendCmd = &cobra.Command{
	Use:   "send",
	Short: "Send a push notification",
	Long:  "Send a web push notification to one user's subscribed devices or broadcast to every subscribed user",
	Run:   runSend,
}

func init() {
	SendCmd.Flags().StringVarP(&sendConfig, "config", "c", "config.json", "Configuration file path")
	SendCmd.Flags().StringVarP(&sendUserID, "user", "u", "", "Target user ID")
	SendCmd.Flags().BoolVarP(&sendBroadcast, "broadcast", "b", false, "Send to every subscribed user")
	SendCmd.Flags().StringVar(&sendType, "type", "", "Notification type (new_product, order_update, seller_message, price_drop, marketing)")
	SendCmd.Flags().StringVarP(&sendTitle, "title", "t", "", "Notification title")
	SendCmd.Flags().StringVarP(&sendMessage, "message", "m", "", "Notification body")
	SendCmd.Flags().StringVar(&sendURL, "url", "", "URL opened when the notification is clicked")
	SendCmd.Flags().StringVar(&sendTag, "tag", "", "Notification tag (replaces any displayed notification with the same tag)")
}

func runSend(cmd *cobra.Command, args []string) {
	if sendTitle == "" {
		fmt.Fprintln(os.Stderr, "Error: --title is required")
		os.Exit(1)
	}
	if !sendBroadcast && sendUserID == "" {
		fmt.Fprintln(os.Stderr, "Error: --user or --broadcast is required")
		os.Exit(1)
	}

	configData, err := config.LoadConfig(sendConfig)
	if err != nil {
		log.Printf("Failed to load config from %s, using environment variables: %v", sendConfig, err)
		configData, err = config.LoadConfig("")
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to load configuration: %v\n", err)
			os.Exit(1)
		}
	}

	service := notification.NewService(configData, guardrails.NewClassifier())

	resp, err := service.Send(notification.SendRequest{
		UserID:    sendUserID,
		Broadcast: sendBroadcast,
		Type:      sendType,
		Title:     sendTitle,
		Message:   sendMessage,
		URL:       sendURL,
		Tag:       sendTag,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: send failed: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Delivered: %d, Failed: %d, Skipped: %d\n", resp.Delivered, resp.Failed, resp.Skipped)
	if resp.Delivered == 0 && resp.Failed == 0 && resp.Skipped == 0 {
		fmt.Println("No active subscriptions matched the target.")
	}
}

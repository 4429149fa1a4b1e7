package cmd

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/spf13/cobra"

	"github.com/hs2504785/greenspace-push/pkg/config"
)

var KeygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Key generation utilities",
	Long:  "Generate VAPID key pairs for web push and API keys for gateway authentication",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("Available subcommands:")
		fmt.Println("  vapid - Generate a VAPID key pair for web push")
		fmt.Println("  token - Generate an API key for gateway authentication")
		fmt.Println("Use 'greenspace-push keygen --help' for more information.")
	},
}

var vapidCmd = &cobra.Command{
	Use:   "vapid",
	Short: "Generate a VAPID key pair",
	Long: `Generate a VAPID key pair used to authenticate against push services.

The public key is handed to browsers when they subscribe; the private key
stays on the server. Set them via VAPID_PUBLIC_KEY and VAPID_PRIVATE_KEY
or in the config file.`,
	RunE: runGenerateVAPID,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Generate an API key for gateway authentication",
	Long: `Generate an API key and save it to a JSON file.

If the file already exists, the new API key is merged with its existing
content. Point the gateway at the file with auth.keys_file.`,
	RunE: runGenerateToken,
}

var (
	tokenOutputPath string
	tokenUserID     string
	tokenRole       string
	tokenPerms      []string
	tokenExpiryDays int
	tokenPrefix     string
)

func init() {
	tokenCmd.Flags().StringVar(&tokenOutputPath, "output-path", "", "Path to JSON file where API keys will be saved (required)")
	tokenCmd.Flags().StringVar(&tokenUserID, "user-id", "", "User ID for the API key (required)")
	tokenCmd.Flags().StringVar(&tokenRole, "role", "user", "Role for the API key (admin, user, readonly)")
	tokenCmd.Flags().StringSliceVar(&tokenPerms, "permissions", []string{"notification:subscribe", "notification:send", "notification:read"}, "Permissions for the API key")
	tokenCmd.Flags().IntVar(&tokenExpiryDays, "expiry-days", 365, "Number of days until the API key expires")
	tokenCmd.Flags().StringVar(&tokenPrefix, "key-prefix", "gp", "Prefix for the generated API key")

	if err := tokenCmd.MarkFlagRequired("output-path"); err != nil {
		panic(err)
	}
	if err := tokenCmd.MarkFlagRequired("user-id"); err != nil {
		panic(err)
	}

	KeygenCmd.AddCommand(vapidCmd)
	KeygenCmd.AddCommand(tokenCmd)
}

func runGenerateVAPID(cmd *cobra.Command, args []string) error {
	privateKey, publicKey, err := webpush.GenerateVAPIDKeys()
	if err != nil {
		return fmt.Errorf("failed to generate VAPID keys: %w", err)
	}

	fmt.Printf("VAPID_PUBLIC_KEY=%s\n", publicKey)
	fmt.Printf("VAPID_PRIVATE_KEY=%s\n", privateKey)
	return nil
}

// APIKeysFile is the on-disk format consumed by auth.keys_file
type APIKeysFile struct {
	APIKeys []config.APIKey `json:"api_keys"`
}

func runGenerateToken(cmd *cobra.Command, args []string) error {
	if tokenRole != "admin" && tokenRole != "user" && tokenRole != "readonly" {
		return fmt.Errorf("invalid role: %s. Must be one of: admin, user, readonly", tokenRole)
	}

	// Default permissions follow the role unless overridden
	if !cmd.Flags().Changed("permissions") {
		switch tokenRole {
		case "admin":
			tokenPerms = []string{"*"}
		case "user":
			tokenPerms = []string{"notification:subscribe", "notification:send", "notification:read"}
		case "readonly":
			tokenPerms = []string{"notification:read"}
		}
	}

	apiKey, err := generateAPIKey(tokenUserID, tokenPrefix)
	if err != nil {
		return fmt.Errorf("failed to generate API key: %w", err)
	}

	createdAt := time.Now()
	expiresAt := createdAt.AddDate(0, 0, tokenExpiryDays)

	newAPIKey := config.APIKey{
		Key:         apiKey,
		UserID:      tokenUserID,
		Role:        tokenRole,
		Permissions: tokenPerms,
		CreatedAt:   createdAt.Format(time.RFC3339),
		ExpiresAt:   expiresAt.Format(time.RFC3339),
	}

	var keysFile APIKeysFile
	if _, err := os.Stat(tokenOutputPath); err == nil {
		data, err := os.ReadFile(tokenOutputPath)
		if err != nil {
			return fmt.Errorf("failed to read existing API keys file: %w", err)
		}
		if err := json.Unmarshal(data, &keysFile); err != nil {
			return fmt.Errorf("failed to parse existing API keys file: %w", err)
		}
	} else {
		keysFile = APIKeysFile{APIKeys: []config.APIKey{}}
	}

	keysFile.APIKeys = append(keysFile.APIKeys, newAPIKey)

	data, err := json.MarshalIndent(keysFile, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal API keys data: %w", err)
	}

	dir := filepath.Dir(tokenOutputPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	if err := os.WriteFile(tokenOutputPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write API keys file: %w", err)
	}

	fmt.Printf("Successfully generated and saved API key to %s\n", tokenOutputPath)
	fmt.Printf("API Key: %s\n", apiKey)
	fmt.Printf("User ID: %s\n", tokenUserID)
	fmt.Printf("Role: %s\n", tokenRole)
	fmt.Printf("Permissions: %v\n", tokenPerms)
	fmt.Printf("Expires at: %s\n", expiresAt.Format(time.RFC3339))
	return nil
}

func generateAPIKey(userID, prefix string) (string, error) {
	randomBytes := make([]byte, 16)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random bytes: %w", err)
	}

	return fmt.Sprintf("%s_%s_%s", prefix, userID, hex.EncodeToString(randomBytes)), nil
}

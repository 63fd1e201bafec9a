package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/fincept/gateway/internal/domain"
)

var (
	loginAPIKey       string
	loginAPISecret    string
	loginClientID     string
	loginClientSecret string
	loginCode         string
)

var loginCmd = &cobra.Command{
	Use:   "login <broker-id>",
	Short: "Authenticate a broker and persist its credentials",
	Long: `login stores credentials for a broker and runs its Authenticate flow.

For OAuth2 brokers (kind "saxoeu"), run login twice: once with no flags to
print the authorization URL, then again with --code after visiting it.
For static-key brokers (kind "usequity", "inequity"), pass --api-key and
--api-secret directly.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		brokerID := args[0]
		ctx := context.Background()

		a, err := buildApp(ctx)
		requireNoError(err)

		adapter, ok := a.manager.Get(brokerID)
		if !ok {
			requireNoErrorMsg(fmt.Errorf("no such broker"), brokerID)
		}

		if loginCode == "" && loginAPIKey == "" {
			url, err := adapter.GetOAuthURL(loginClientID)
			if err == nil {
				fmt.Println("visit this URL to authorize, then re-run with --code:")
				fmt.Println(url)
				return
			}
			requireNoErrorMsg(fmt.Errorf("broker requires --api-key/--api-secret"), brokerID)
		}

		var blob domain.CredentialBlob
		if loginCode != "" {
			resp, err := adapter.ExchangeCodeForToken(ctx, loginCode, loginClientID, loginClientSecret, "")
			requireNoErrorMsg(err, "exchange code for token")
			blob = domain.CredentialBlob{
				ClientID:     loginClientID,
				ClientSecret: loginClientSecret,
				AccessToken:  resp.AccessToken,
				ExpiresAt:    resp.ExpiresAt,
			}
		} else {
			blob = domain.CredentialBlob{
				APIKey:       loginAPIKey,
				APISecret:    loginAPISecret,
				ClientID:     loginClientID,
				ClientSecret: loginClientSecret,
			}
		}

		data, err := domain.MarshalBlob(blob)
		requireNoErrorMsg(err, "marshal credentials")
		requireNoErrorMsg(a.creds.Store(ctx, brokerID, data), "store credentials")
		requireNoErrorMsg(a.manager.InitializeBroker(ctx, brokerID), "authenticate")

		fmt.Printf("broker %s authenticated\n", brokerID)
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginAPIKey, "api-key", "", "static API key for key/secret brokers")
	loginCmd.Flags().StringVar(&loginAPISecret, "api-secret", "", "static API secret for key/secret brokers")
	loginCmd.Flags().StringVar(&loginClientID, "client-id", "", "OAuth2 client id")
	loginCmd.Flags().StringVar(&loginClientSecret, "client-secret", "", "OAuth2 client secret")
	loginCmd.Flags().StringVar(&loginCode, "code", "", "OAuth2 authorization code from the redirect")
}

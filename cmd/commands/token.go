package commands

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/ncobase/genqueue/config"
	"github.com/ncobase/genqueue/quota"
	"github.com/ncobase/genqueue/security/jwt"
	"github.com/spf13/cobra"
)

// NewTokenCommand creates the token command, which signs an access token
// with the configured secret for local use and testing.
func NewTokenCommand() *cobra.Command {
	var (
		configFile string
		userID     string
		role       string
		name       string
		expire     time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue an access token for a caller",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID == "" {
				return errors.New("--user is required")
			}
			conf, err := config.LoadConfig(configFile)
			if err != nil {
				return err
			}
			if expire <= 0 {
				expire = conf.Auth.JWT.Expire
			}

			tm := jwt.NewTokenManager(conf.Auth.JWT.Secret, expire)
			tok, err := tm.GenerateAccessToken(uuid.NewString(), jwt.CallerPayload(userID, role, name))
			if err != nil {
				return fmt.Errorf("failed to sign token: %w", err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), tok)
			return nil
		},
	}

	cmd.Flags().StringVarP(&configFile, "config", "c", "", "config file path")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "caller id")
	cmd.Flags().StringVarP(&role, "role", "r", quota.RoleStudent, "caller role")
	cmd.Flags().StringVarP(&name, "name", "n", "", "caller display name")
	cmd.Flags().DurationVar(&expire, "expire", 0, "token lifetime, defaults to auth.jwt.expire")
	return cmd
}

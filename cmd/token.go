package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/ShivanshMandolia/Intervu-sub000/internal/config"
	"github.com/ShivanshMandolia/Intervu-sub000/pkg/auth"
)

var (
	tokenUser string
	tokenName string
	tokenTTL  time.Duration
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Mint a development JWT for connecting to /ws",
	RunE:  runToken,
}

func init() {
	tokenCmd.Flags().StringVar(&tokenUser, "user", "", "user id (sub claim)")
	tokenCmd.Flags().StringVar(&tokenName, "name", "", "display name")
	tokenCmd.Flags().DurationVar(&tokenTTL, "ttl", 24*time.Hour, "token lifetime")
	_ = tokenCmd.MarkFlagRequired("user")
}

func runToken(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("config: %w", err)
	}
	tok, err := auth.New(cfg.JWTSecret).Sign(tokenUser, tokenName, tokenTTL)
	if err != nil {
		return err
	}
	fmt.Println(tok)
	return nil
}

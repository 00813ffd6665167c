package admin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/mementolabs/memento/internal/config"
	"github.com/mementolabs/memento/internal/repository"
	"github.com/mementolabs/memento/internal/service"
)

func TokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage access tokens",
		Long:  "Create access tokens and team memberships",
	}

	cmd.AddCommand(TokenCreateCmd())

	return cmd
}

func TokenCreateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a new access token",
		Long:  "Create an access token for a user and grant the listed team memberships",
		RunE:  runTokenCreate,
	}

	cmd.Flags().StringP("user", "u", "", "User ID the token authenticates as (required)")
	cmd.Flags().StringSliceP("team", "t", nil, "Team ID to grant membership in (repeatable)")
	cmd.Flags().String("output", "text", "Output format (text or json)")
	cmd.MarkFlagRequired("user")

	return cmd
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	userID, _ := cmd.Flags().GetString("user")
	teams, _ := cmd.Flags().GetStringSlice("team")
	outputFormat, _ := cmd.Flags().GetString("output")

	pool, err := getDBPool(ctx)
	if err != nil {
		return err
	}
	defer pool.Close()

	tokenRepo := repository.NewTokenRepository(pool)

	plaintext, err := service.GenerateToken()
	if err != nil {
		return err
	}

	tokenID := uuid.NewString()
	if err := tokenRepo.CreateToken(ctx, tokenID, userID, service.HashToken(plaintext)); err != nil {
		return fmt.Errorf("failed to create token: %w", err)
	}

	for _, teamID := range teams {
		if err := tokenRepo.AddTeamMembership(ctx, userID, teamID); err != nil {
			return fmt.Errorf("failed to add membership in team %s: %w", teamID, err)
		}
	}

	if outputFormat == "json" {
		data := map[string]interface{}{
			"id":    tokenID,
			"user":  userID,
			"teams": teams,
			"token": plaintext,
		}
		jsonBytes, _ := json.MarshalIndent(data, "", "  ")
		fmt.Println(string(jsonBytes))
	} else {
		fmt.Printf("Access token created for user %s\n", userID)
		fmt.Printf("Token ID: %s\n", tokenID)
		if len(teams) > 0 {
			fmt.Printf("Teams: %v\n", teams)
		}
		fmt.Printf("Token: %s\n", plaintext)
		fmt.Println("\nSave this token now. You won't be able to see it again!")
	}

	return nil
}

func getDBPool(ctx context.Context) (*pgxpool.Pool, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return pool, nil
}

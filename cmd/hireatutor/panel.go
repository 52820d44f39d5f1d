package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/vaidashi/hire-a-tutor/internal/chat/discord"
	"github.com/vaidashi/hire-a-tutor/internal/service"
)

var postPanelMain bool

var postPanelCmd = &cobra.Command{
	Use:   "post-panel [channel]",
	Short: "Post the HIRE A TUTOR panel without starting the bot",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runPostPanel,
}

func init() {
	postPanelCmd.Flags().BoolVar(&postPanelMain, "main", false, "post to the main panel channel instead of the test one")
}

func runPostPanel(cmd *cobra.Command, args []string) error {
	cfg, l, err := bootstrap(true)

	if err != nil {
		return err
	}
	defer l.Sync()

	channel := cfg.Discord.PanelChannel
	if postPanelMain {
		channel = cfg.Discord.MainChannel
	}
	if len(args) == 1 {
		channel = args[0]
	}

	// REST calls work without opening the gateway
	client, err := discord.NewClient(cfg.Discord.Token, newDiscordBreaker(), l)

	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	id, err := service.NewPanelService(client, cfg.Discord.GuildID, l).Post(ctx, channel)

	if err != nil {
		return fmt.Errorf("post panel to %q: %w", channel, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "panel posted to #%s (message %s)\n", channel, id)
	return nil
}

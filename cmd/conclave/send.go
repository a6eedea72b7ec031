package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/conclave/internal/proto"
	"github.com/vovakirdan/conclave/internal/transport/multicast"
)

func newSendCmd(configPath *string) *cobra.Command {
	var content string

	cmd := &cobra.Command{
		Use:   "send [text...]",
		Short: "Broadcast one message to the group and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			if content == "" {
				content = strings.Join(args, " ")
			}
			if strings.TrimSpace(content) == "" {
				return errors.New("nothing to send: pass --content or text arguments")
			}

			cfg, logger, err := loadConfig(cmd, *configPath)
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			t, err := multicast.Open(ctx, transportConfig(cfg), logger, nil)
			if err != nil {
				return err
			}
			defer t.Close()

			msg := proto.NewMessage(cfg.Node.ID, content)
			if err := t.Send(ctx, msg); err != nil {
				return fmt.Errorf("send: %w", err)
			}
			logger.Info().Str("group", t.Group().String()).Int("bytes", len(msg.Content)).Msg("message sent")
			return nil
		},
	}
	cmd.Flags().StringVar(&content, "content", "", "message text")
	return cmd
}

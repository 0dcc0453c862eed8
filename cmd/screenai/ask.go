package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"screenai-backend/internal/modal"
)

var (
	askLocal   bool
	askImage   string
	askChat    bool
	askHTML    bool
	askTimeout time.Duration
)

var askCmd = &cobra.Command{
	Use:   "ask [question]",
	Short: "Ask about a piece of text or an image",
	Long: `Opens a page context, sends the question (or --image URL) and prints the reply.

With --chat, every further line read from stdin is sent as a follow-up in
the same conversation.`,
	Args: func(cmd *cobra.Command, args []string) error {
		if askImage == "" && len(args) == 0 {
			return fmt.Errorf("give a question or --image")
		}
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := newLogger()
		defer log.Sync()

		var s *session
		if askLocal {
			s = openLocal(ctx, log)
		} else {
			var err error
			if s, err = openRemote(ctx, serverURL, log); err != nil {
				return err
			}
		}
		defer s.close()

		before := s.watch.bubbles()
		var err error
		if askImage != "" {
			err = s.page.QueryImage(askImage)
		} else {
			err = s.page.QueryText(strings.Join(args, " "))
		}
		if err != nil {
			return err
		}
		if err := printReply(ctx, cmd.OutOrStdout(), s.watch, before); err != nil {
			return err
		}

		if !askChat {
			return nil
		}
		return chatLoop(ctx, cmd.InOrStdin(), cmd.OutOrStdout(), s)
	},
}

func chatLoop(ctx context.Context, in io.Reader, out io.Writer, s *session) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		before := s.watch.bubbles()
		if err := s.page.Modal().SubmitFollowUp(line); err != nil {
			return err
		}
		if err := printReply(ctx, out, s.watch, before); err != nil {
			fmt.Fprintln(out, err)
		}
	}
	return scanner.Err()
}

func printReply(ctx context.Context, out io.Writer, w *watcher, before int) error {
	ctx, cancel := context.WithTimeout(ctx, askTimeout)
	defer cancel()

	b, err := w.reply(ctx, before)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, render(b))
	return nil
}

func render(b modal.Bubble) string {
	if askHTML {
		return b.HTML
	}
	return b.Text
}

func init() {
	askCmd.Flags().BoolVar(&askLocal, "local", false, "Run the orchestrator in-process with keys from the environment")
	askCmd.Flags().StringVar(&askImage, "image", "", "Ask about the image at this URL instead")
	askCmd.Flags().BoolVar(&askChat, "chat", false, "Read follow-up questions from stdin")
	askCmd.Flags().BoolVar(&askHTML, "html", false, "Print replies as panel HTML")
	askCmd.Flags().DurationVar(&askTimeout, "timeout", 2*time.Minute, "How long to wait for each reply")
}

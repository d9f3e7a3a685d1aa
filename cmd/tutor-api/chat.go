package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"

	"github.com/PabloGalante/tutorchat/internal/observability"
)

func newChatCmd() *cobra.Command {
	var student string

	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Chat with the tutor from the terminal",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			// stdout is the chat transcript; only warnings and errors may land on it
			_, svc, err := buildService(ctx, chatLogLevel)
			if err != nil {
				return err
			}

			sessionID, err := svc.CreateSession(ctx, student)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "session %s started, type \"exit\" to quit\n", sessionID)

			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			for {
				query, err := line.Prompt("you> ")
				if errors.Is(err, io.EOF) || errors.Is(err, liner.ErrPromptAborted) {
					return nil
				}
				if err != nil {
					return fmt.Errorf("reading input: %w", err)
				}

				query = strings.TrimSpace(query)
				switch query {
				case "":
					continue
				case "exit", "quit":
					return nil
				}
				line.AppendHistory(query)

				reply, err := svc.ProcessQuery(ctx, student, string(sessionID), query)
				if err != nil {
					fmt.Fprintf(out, "error: %v\n", err)
					continue
				}
				fmt.Fprintf(out, "tutor> %s\n", reply)
			}
		},
	}
	cmd.Flags().StringVar(&student, "student", "cli-student", "student id for the session")
	return cmd
}

// chatLogLevel raises the configured level to at least warn.
func chatLogLevel(configured string) string {
	if observability.ParseLevel(configured) >= slog.LevelError {
		return "error"
	}
	return "warn"
}

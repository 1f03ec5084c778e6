package main

import (
	"bufio"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/Seednode/quizbox/internal/protocol"
	"github.com/Seednode/quizbox/internal/quiz"
	"github.com/Seednode/quizbox/internal/team"
	"github.com/Seednode/quizbox/internal/transport"
)

// newJoinCmd is the team side: a terminal buzzer that connects to a
// running host and races on Enter.
func newJoinCmd() *cobra.Command {
	var (
		server  string
		code    string
		teamID  int
		key     string
		verbose bool
	)

	cmd := &cobra.Command{
		Use:           "join",
		Short:         "Connect to a game as a team buzzer.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			level := zerolog.WarnLevel
			if verbose {
				level = zerolog.DebugLevel
			}
			logger := zerolog.New(zerolog.ConsoleWriter{
				Out:        os.Stderr,
				TimeFormat: time.RFC3339,
			}).Level(level).With().Timestamp().Logger()

			if key == "" {
				key = quiz.TeamKey(teamID)
			}

			tr := transport.NewWebsocket(transport.WebsocketConfig{
				BaseURL: server,
				JoinKey: key,
				Logger:  logger,
			})

			c, err := team.Dial(cmd.Context(), tr, code, teamID, logger)
			if err != nil {
				return err
			}
			defer c.Close()

			c.OnState(func(s protocol.Snapshot) {
				printSnapshot(teamID, s)
			})

			fmt.Printf("joined game %s as team %d - press Enter to buzz\n", code, teamID)

			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				if c.Status() != team.StatusConnected {
					return fmt.Errorf("connection to host lost")
				}
				if err := c.Buzz(); err != nil {
					return fmt.Errorf("buzz failed: %w", err)
				}
			}

			return scanner.Err()
		},
	}

	fs := cmd.Flags()

	fs.StringVarP(&server, "server", "s", "ws://localhost:8080", "host server URL (env: QUIZBOX_SERVER)")
	fs.StringVarP(&code, "code", "c", "", "game join code")
	fs.IntVarP(&teamID, "team", "t", 0, "team id")
	fs.StringVarP(&key, "key", "k", "", "team credential; empty uses the built-in default")
	fs.BoolVarP(&verbose, "verbose", "v", false, "display additional output")

	_ = cmd.MarkFlagRequired("code")

	return cmd
}

func printSnapshot(teamID int, s protocol.Snapshot) {
	switch {
	case s.ActiveBuzzTeam != nil && *s.ActiveBuzzTeam == teamID:
		fmt.Printf("[rev %d] %s q%d - YOU buzzed in, answer now\n", s.Revision, s.Phase, s.QuestionIndex)
	case s.ActiveBuzzTeam != nil:
		fmt.Printf("[rev %d] %s q%d - team %d buzzed first\n", s.Revision, s.Phase, s.QuestionIndex, *s.ActiveBuzzTeam)
	case s.AnswerLocked:
		fmt.Printf("[rev %d] %s q%d - answer locked\n", s.Revision, s.Phase, s.QuestionIndex)
	default:
		fmt.Printf("[rev %d] %s q%d\n", s.Revision, s.Phase, s.QuestionIndex)
	}

	for _, t := range s.Teams {
		fmt.Printf("  %s: %d\n", t.Name, t.Score)
	}
}

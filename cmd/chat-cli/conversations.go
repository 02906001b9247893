package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var conversationsCmd = &cobra.Command{
	Use:   "conversations",
	Short: "List your conversations, most recent first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		convs, err := s.http.ListConversations(cmd.Context(), s.user)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, c := range convs {
			last := "-"
			if c.LastMessageAt != nil {
				last = c.LastMessageAt.Local().Format("2006-01-02 15:04")
			}
			fmt.Fprintf(out, "%s  %-20s  %s\n", c.ID, c.Peer(s.user), last)
		}
		return nil
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history <peer>",
	Short: "Print the history with a peer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		conv, err := s.http.ResolveConversation(cmd.Context(), s.user, strings.TrimSpace(args[0]))
		if err != nil {
			return err
		}
		msgs, err := s.http.GetMessages(cmd.Context(), conv.ID, historyLimit, 0)
		if err != nil {
			return err
		}
		for _, m := range msgs {
			fmt.Fprintf(cmd.OutOrStdout(), "[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), m.SenderID, m.Body)
		}
		return nil
	},
}

var onlineCmd = &cobra.Command{
	Use:   "online",
	Short: "List online users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		users, err := s.http.Presence(cmd.Context())
		if err != nil {
			return err
		}
		for _, u := range users {
			fmt.Fprintln(cmd.OutOrStdout(), u)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().IntVar(&historyLimit, "limit", 50, "number of messages")
	rootCmd.AddCommand(conversationsCmd, historyCmd, onlineCmd)
}

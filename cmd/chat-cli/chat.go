package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"go-directchat/internal/infrastructure/realtime"
	chat "go-directchat/internal/pkg/chat/application/domain"
	"go-directchat/internal/pkg/chat/client"
	"go-directchat/internal/pkg/chat/client/adapter"
)

const (
	reconnectMin = 500 * time.Millisecond
	reconnectMax = 15 * time.Second
)

var chatHistory int

var chatCmd = &cobra.Command{
	Use:   "chat <peer>",
	Short: "Open an interactive conversation with a peer",
	Long: `Open an interactive conversation with a peer.

Lines typed on stdin are sent. Commands:
  /retry   resend the most recent failed message
  /users   print who is online
  /quit    leave`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runChat(ctx, s, strings.TrimSpace(args[0]), os.Stdin, cmd.OutOrStdout())
	},
}

func init() {
	chatCmd.Flags().IntVar(&chatHistory, "history", 50, "messages of history to load")
	rootCmd.AddCommand(chatCmd)
}

// swapEmitter forwards to whichever realtime link is current. While
// disconnected it reports an error, which the reconciler only logs.
type swapEmitter struct {
	mu  sync.RWMutex
	cur *adapter.RealtimeClient
}

var errOffline = errors.New("realtime link down")

func (e *swapEmitter) set(rt *adapter.RealtimeClient) {
	e.mu.Lock()
	e.cur = rt
	e.mu.Unlock()
}

func (e *swapEmitter) EmitMessage(ev chat.RelayEvent) error {
	e.mu.RLock()
	rt := e.cur
	e.mu.RUnlock()
	if rt == nil {
		return errOffline
	}
	return rt.EmitMessage(ev)
}

// console serializes terminal output between the read loop and reconciler
// subscribers.
type console struct {
	mu  sync.Mutex
	out io.Writer
}

func (c *console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, format, args...)
}

func runChat(ctx context.Context, s *session, peer string, in io.Reader, out io.Writer) error {
	if peer == "" || peer == s.user {
		return chat.ErrInvalidConversation
	}
	con := &console{out: out}

	conv, err := s.http.ResolveConversation(ctx, s.user, peer)
	if err != nil {
		return fmt.Errorf("resolve conversation: %w", err)
	}
	history, err := s.http.GetMessages(ctx, conv.ID, chatHistory, 0)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}

	emitter := &swapEmitter{}
	rec := client.NewMessageReconciler(s.user, client.NewConversationStore(), s.http, emitter,
		client.WithLogger(s.log))
	defer rec.Wait()

	unsubscribe := rec.Subscribe(func(c client.Change) {
		printChange(con, s.user, c)
	})
	defer unsubscribe()

	if err := rec.Open(conv, history); err != nil {
		return err
	}
	defer rec.Close()

	inbound := make(chan chat.RelayEvent, 64)
	handlers := adapter.RealtimeHandlers{
		OnUsers: func(users []string) {
			con.printf("* online: %s\n", strings.Join(users, ", "))
		},
		OnMessage: func(ev chat.RelayEvent) {
			select {
			case inbound <- ev:
			case <-ctx.Done():
			}
		},
		OnError: func(p realtime.ErrorPayload) {
			con.printf("* server: %s (%s)\n", p.Error, p.Code)
		},
	}

	linkCtx, cancelLink := context.WithCancel(ctx)
	defer cancelLink()
	go keepConnected(linkCtx, s, handlers, emitter, con)

	lines := make(chan string)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	con.printf("* chatting with %s, /quit to leave\n", peer)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev := <-inbound:
			rec.HandleInbound(ev)
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			if quit := handleLine(ctx, s, rec, con, line); quit {
				return nil
			}
		}
	}
}

// handleLine runs one stdin line. It reports whether the user asked to quit.
func handleLine(ctx context.Context, s *session, rec *client.MessageReconciler, con *console, line string) bool {
	switch strings.TrimSpace(line) {
	case "":
		return false
	case "/quit":
		return true
	case "/users":
		users, err := s.http.Presence(ctx)
		if err != nil {
			con.printf("* presence: %v\n", err)
			return false
		}
		con.printf("* online: %s\n", strings.Join(users, ", "))
		return false
	case "/retry":
		key, ok := lastFailed(rec.Store())
		if !ok {
			con.printf("* nothing to retry\n")
			return false
		}
		if _, err := rec.Retry(key); err != nil {
			con.printf("* retry: %v\n", err)
		}
		return false
	}

	if _, err := rec.Send(line); err != nil {
		con.printf("* send: %v\n", err)
	}
	return false
}

func lastFailed(store *client.ConversationStore) (string, bool) {
	msgs := store.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Status == chat.StatusFailed {
			return msgs[i].Key(), true
		}
	}
	return "", false
}

func printChange(con *console, self string, c client.Change) {
	m := c.Message
	switch c.Kind {
	case client.ChangeReset:
		return
	case client.ChangeRemoved:
		return
	case client.ChangeUpdated:
		if m.Status == chat.StatusFailed {
			con.printf("! not delivered: %q (/retry)\n", m.Body)
		}
		return
	}

	who := m.SenderID
	if who == self {
		who = "you"
	}
	con.printf("[%s] %s: %s\n", m.CreatedAt.Local().Format("15:04"), who, m.Body)
}

// keepConnected holds a realtime link open until ctx ends, redialing with
// capped exponential backoff. Link failures never end the chat; sends made
// while offline are still persisted.
func keepConnected(ctx context.Context, s *session, h adapter.RealtimeHandlers, emitter *swapEmitter, con *console) {
	log := s.log.With().Str("component", "realtime-link").Logger()
	endpoint := wsURL(serverURL)
	delay := reconnectMin

	for {
		rt, err := dial(ctx, s, endpoint, h, log)
		if err == nil {
			emitter.set(rt)
			delay = reconnectMin
			select {
			case <-ctx.Done():
				emitter.set(nil)
				_ = rt.Close()
				return
			case <-rt.Done():
			}
			emitter.set(nil)
			con.printf("* realtime link lost, reconnecting\n")
			log.Warn().Err(rt.Err()).Msg("link closed")
		} else {
			if errors.Is(err, chat.ErrUnauthorized) {
				con.printf("* realtime rejected the token; messages are still saved\n")
				return
			}
			log.Debug().Err(err).Dur("retry_in", delay).Msg("dial failed")
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}
		delay *= 2
		if delay > reconnectMax {
			delay = reconnectMax
		}
	}
}

func dial(ctx context.Context, s *session, endpoint string, h adapter.RealtimeHandlers, log zerolog.Logger) (*adapter.RealtimeClient, error) {
	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	rt, err := adapter.DialRealtime(dialCtx, endpoint, s.user, s.tok, h, log)
	if err != nil {
		return nil, err
	}
	if err := rt.AddUser(); err != nil {
		_ = rt.Close()
		return nil, err
	}
	return rt, nil
}

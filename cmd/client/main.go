package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gookit/color"
	"github.com/olekukonko/tablewriter"

	"github.com/mama165/sdk-go/logs"

	"team-chat/domain"
	"team-chat/domain/chat"
	"team-chat/domain/event"
	"team-chat/projection"
	"team-chat/search"
	"team-chat/transport/ws"
)

const (
	exitOK      = 0
	exitRuntime = 1
	exitConfig  = 2
)

func main() {
	code, err := run()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Client terminated with error: %v\n", err)
	}
	os.Exit(code)
}

func run() (int, error) {
	server := flag.String("server", "http://localhost:8080", "server base URL")
	email := flag.String("email", "", "account email")
	name := flag.String("name", "", "display name (register only)")
	password := flag.String("password", "", "account password")
	register := flag.Bool("register", false, "create the account before logging in")
	logLevel := flag.String("log", "WARN", "log level")
	flag.Parse()

	if *email == "" || *password == "" {
		return exitConfig, fmt.Errorf("email and password are required")
	}

	logger := logs.GetLoggerFromString(*logLevel)

	token, err := authenticate(*server, *email, *name, *password, *register)
	if err != nil {
		return exitConfig, err
	}

	wsURL := strings.Replace(*server, "http", "ws", 1) + "/ws"
	store := projection.NewStore()
	client := ws.NewClient(logger, wsURL, token, store)

	ui := &terminal{store: store, client: client, server: *server, token: token, log: logger}
	client.OnEvent = ui.render

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = client.Run(ctx) }()

	color.Cyanln("Connected. /join <chat-id> to enter a chat, /help for commands.")
	ui.loop(ctx, cancel)
	return exitOK, nil
}

// authenticate registers (optionally) then logs in through the REST
// surface and returns the session token.
func authenticate(server, email, name, password string, register bool) (string, error) {
	if register {
		if _, err := postJSON(server+"/auth/register", map[string]string{
			"email": email, "name": name, "password": password,
		}); err != nil {
			return "", fmt.Errorf("registration failed: %w", err)
		}
	}
	body, err := postJSON(server+"/auth/login", map[string]string{
		"email": email, "password": password,
	})
	if err != nil {
		return "", fmt.Errorf("login failed: %w", err)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	return resp.Token, nil
}

func postJSON(url string, payload any) ([]byte, error) {
	raw, _ := json.Marshal(payload)
	resp, err := http.Post(url, "application/json", bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%s: %s", resp.Status, buf.String())
	}
	return buf.Bytes(), nil
}

// terminal is the line-oriented UI: one current chat, slash commands,
// live event rendering.
type terminal struct {
	store   *projection.Store
	client  *ws.Client
	server  string
	token   string
	log     *slog.Logger
	current chat.ChatID
}

func (t *terminal) loop(ctx context.Context, cancel context.CancelFunc) {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if !strings.HasPrefix(line, "/") {
			if t.current == "" {
				color.Yellowln("Join a chat first: /join <chat-id>")
				continue
			}
			if err := t.client.SendMessage(t.current, line); err != nil {
				color.Redln("send failed:", err)
			}
			continue
		}
		if quit := t.command(line); quit {
			cancel()
			return
		}
	}
}

func (t *terminal) command(line string) bool {
	fields := strings.Fields(line)
	arg := ""
	if len(fields) > 1 {
		arg = strings.Join(fields[1:], " ")
	}

	switch fields[0] {
	case "/quit":
		return true
	case "/help":
		color.Cyanln("/join <id>  /leave  /history  /who  /status <s>  /read  /find <terms>  /broadcast <msg>  /quit")
	case "/join":
		t.current = chat.ChatID(arg)
		if err := t.client.JoinChat(t.current); err != nil {
			color.Redln("join failed:", err)
		}
	case "/leave":
		if t.current != "" {
			_ = t.client.LeaveChat(t.current)
			t.current = ""
		}
	case "/history":
		t.printHistory()
	case "/who":
		t.printPresence()
	case "/status":
		if err := t.client.SetStatus(domain.Status(arg)); err != nil {
			color.Redln("status failed:", err)
		}
	case "/read":
		t.markAllRead()
	case "/find":
		t.find(arg)
	case "/broadcast":
		if err := t.client.Broadcast(arg); err != nil {
			color.Redln("broadcast failed:", err)
		}
	default:
		color.Yellowln("Unknown command, /help for the list")
	}
	return false
}

// render prints live events for the chat currently on screen.
func (t *terminal) render(e event.DomainEvent) {
	if e.Chat() != "" && e.Chat() != t.current {
		return
	}
	switch evt := e.(type) {
	case event.MessagePosted:
		m := evt.Message
		fmt.Printf("%s %s: %s\n", color.Gray.Render(m.CreatedAt.Format("15:04")), color.Green.Render(m.SenderName), m.Content)
	case event.MessageUpdated:
		m := evt.Message
		fmt.Printf("%s %s (edited): %s\n", color.Gray.Render(m.CreatedAt.Format("15:04")), color.Green.Render(m.SenderName), m.Content)
	case event.MessageDeleted:
		color.Grayln("a message was deleted")
	case event.UserTyping:
		color.Grayln(evt.UserName + " is typing...")
	case event.UserStopTyping:
		// Rendering relies on expiry; nothing to print.
	case event.UserStatusUpdate:
		color.Grayln(fmt.Sprintf("%s is now %s", evt.UserID, evt.Status))
	case event.GlobalBroadcast:
		color.Magentaln(fmt.Sprintf("[ANNOUNCEMENT] %s: %s", evt.SenderName, evt.Message))
	}
}

func (t *terminal) printHistory() {
	if t.current == "" {
		return
	}
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Time", "Sender", "Content", "Read by"})
	table.SetAutoWrapText(false)
	table.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.SetBorder(false)

	timeline := t.store.Timeline(t.current)
	for _, m := range timeline.Messages {
		table.Append([]string{
			m.CreatedAt.Format("15:04:05"),
			m.SenderName,
			m.Content,
			fmt.Sprintf("%d", len(m.ReadBy)),
		})
	}
	table.Render()
	if typing := timeline.TypingUsers(); len(typing) > 0 {
		color.Grayln(strings.Join(typing, ", ") + " typing...")
	}
}

func (t *terminal) printPresence() {
	for _, p := range t.store.PresenceSnapshot() {
		line := fmt.Sprintf("%s: %s", p.UserID, p.Status)
		if p.Status == domain.StatusOffline {
			line += " (last seen " + p.LastSeen.Format(time.Kitchen) + ")"
		}
		color.Grayln(line)
	}
}

func (t *terminal) markAllRead() {
	if t.current == "" {
		return
	}
	var ids []string
	for _, m := range t.store.Timeline(t.current).Messages {
		ids = append(ids, m.ID.String())
	}
	if err := t.client.MarkRead(t.current, ids); err != nil {
		color.Redln("mark-read failed:", err)
	}
}

// find queries the server-side full-text index. The argument accepts
// the same flags as the HTTP endpoint: terms plus --chat and --limit.
func (t *terminal) find(input string) {
	req, err := http.NewRequest(http.MethodGet, t.server+"/search", nil)
	if err != nil {
		return
	}
	q := req.URL.Query()
	q.Set("q", input)
	req.URL.RawQuery = q.Encode()
	req.Header.Set("Authorization", "Bearer "+t.token)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		color.Redln("search failed:", err)
		return
	}
	defer resp.Body.Close()

	var hits []search.Hit
	if err := json.NewDecoder(resp.Body).Decode(&hits); err != nil {
		color.Redln("search failed:", err)
		return
	}
	for _, h := range hits {
		fmt.Printf("%s %s\n", color.Cyan.Render("["+h.ChatID+"]"), h.Fragment)
	}
}

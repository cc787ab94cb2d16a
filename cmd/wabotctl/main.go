package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/matheus3301/wabot/internal/client"
	"github.com/matheus3301/wabot/internal/config"
	"github.com/matheus3301/wabot/internal/paths"
)

func main() {
	addrFlag := flag.String("addr", "", "daemon admin address (overrides config)")
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	c := client.New(resolveAddr(*addrFlag))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	switch args[0] {
	case "status":
		cmdStatus(ctx, c, *jsonFlag)
	case "list":
		cmdList(ctx, c, *jsonFlag)
	case "history":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: wabotctl history <contact>")
			os.Exit(1)
		}
		cmdHistory(ctx, c, args[1], *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: wabotctl send <contact> <text>")
			os.Exit(1)
		}
		cmdSend(ctx, c, args[1], strings.Join(args[2:], " "))
	case "read":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: wabotctl read <contact>")
			os.Exit(1)
		}
		cmdRead(ctx, c, args[1])
	case "delete":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: wabotctl delete <contact>")
			os.Exit(1)
		}
		cmdDelete(ctx, c, args[1])
	case "search":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: wabotctl search <query>")
			os.Exit(1)
		}
		cmdSearch(ctx, c, strings.Join(args[1:], " "), *jsonFlag)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: wabotctl [--addr <host:port>] [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  status                   Show daemon status")
	fmt.Fprintln(os.Stderr, "  list                     List conversations")
	fmt.Fprintln(os.Stderr, "  history <contact>        Show message history")
	fmt.Fprintln(os.Stderr, "  send <contact> <text>    Send a message")
	fmt.Fprintln(os.Stderr, "  read <contact>           Mark conversation read")
	fmt.Fprintln(os.Stderr, "  delete <contact>         Delete conversation and history")
	fmt.Fprintln(os.Stderr, "  search <query>           Full-text search message bodies")
}

// resolveAddr picks the admin address: flag, then config file, then default.
func resolveAddr(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	cfg, err := config.Load(paths.ConfigPath())
	if err != nil {
		return ""
	}
	return cfg.ListenAddr
}

func cmdStatus(ctx context.Context, c *client.Client, jsonOut bool) {
	st, err := c.Status(ctx)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(st)
		return
	}
	fmt.Printf("State:         %s\n", st.State)
	fmt.Printf("PID:           %d\n", st.PID)
	fmt.Printf("Uptime:        %ds\n", st.UptimeSeconds)
	fmt.Printf("Conversations: %d\n", st.Conversations)
	fmt.Printf("Messages:      %d\n", st.Messages)
}

func cmdList(ctx context.Context, c *client.Client, jsonOut bool) {
	convs, err := c.Conversations(ctx, 100, 0)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(convs)
		return
	}
	if len(convs) == 0 {
		fmt.Println("No conversations.")
		return
	}
	for _, conv := range convs {
		name := conv.DisplayName
		if name == "" {
			name = "-"
		}
		fmt.Printf("%-18s %-20s unread=%-4d last=%s\n",
			conv.ContactID, name, conv.UnreadCount, formatTime(conv.LastActivityAt))
	}
}

func cmdHistory(ctx context.Context, c *client.Client, contactID string, jsonOut bool) {
	msgs, err := c.Messages(ctx, contactID, 0, 100)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(msgs)
		return
	}
	// API returns newest first; print oldest first.
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		arrow := "<-"
		if m.Direction == "out" {
			arrow = "->"
		}
		fmt.Printf("%s %s [%s] %s\n", formatTime(m.Timestamp), arrow, m.Status, m.Body)
	}
}

func cmdSend(ctx context.Context, c *client.Client, contactID, text string) {
	if err := c.Send(ctx, contactID, text); err != nil {
		fatal(err)
	}
	fmt.Println("Sent.")
}

func cmdRead(ctx context.Context, c *client.Client, contactID string) {
	if err := c.MarkRead(ctx, contactID); err != nil {
		fatal(err)
	}
	fmt.Println("Marked read.")
}

func cmdDelete(ctx context.Context, c *client.Client, contactID string) {
	if err := c.Delete(ctx, contactID); err != nil {
		fatal(err)
	}
	fmt.Println("Deleted.")
}

func cmdSearch(ctx context.Context, c *client.Client, query string, jsonOut bool) {
	results, err := c.Search(ctx, query, "", 50)
	if err != nil {
		fatal(err)
	}
	if jsonOut {
		outputJSON(results)
		return
	}
	if len(results) == 0 {
		fmt.Println("No matches.")
		return
	}
	for _, r := range results {
		fmt.Printf("%-18s %s  %s\n", r.Message.ContactID, formatTime(r.Message.Timestamp), r.Snippet)
	}
}

func formatTime(unixMs int64) string {
	if unixMs == 0 {
		return "-"
	}
	return time.UnixMilli(unixMs).Format("2006-01-02 15:04")
}

func fatal(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		fmt.Fprintf(os.Stderr, "json encode error: %v\n", err)
	}
}

package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/h1v3-io/modcogs/internal/config"
	"github.com/h1v3-io/modcogs/internal/connector/webhook"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(0)
	}

	switch os.Args[1] {
	case "health":
		cmdHealth()
	case "confirmations":
		cmdConfirmations(os.Args[2:])
	case "tickets":
		if len(os.Args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: modcogsctl tickets <list|show>")
			os.Exit(1)
		}
		switch os.Args[2] {
		case "list":
			cmdTicketsList(os.Args[3:])
		case "show":
			if len(os.Args) < 4 {
				fmt.Fprintln(os.Stderr, "usage: modcogsctl tickets show <id>")
				os.Exit(1)
			}
			cmdTicketsShow(os.Args[3])
		default:
			fmt.Fprintf(os.Stderr, "unknown tickets subcommand: %s\n", os.Args[2])
			os.Exit(1)
		}
	case "stats":
		cmdStats()
	case "logs":
		cmdLogs(os.Args[2:])
	case "alert":
		cmdAlert(os.Args[2:])
	case "config":
		if len(os.Args) < 4 || os.Args[2] != "validate" {
			fmt.Fprintln(os.Stderr, "usage: modcogsctl config validate <path>")
			os.Exit(1)
		}
		cmdConfigValidate(os.Args[3])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func cmdHealth() {
	fmt.Println(string(mustGet("/api/health")))
}

func cmdConfirmations(args []string) {
	fs := flag.NewFlagSet("confirmations", flag.ExitOnError)
	pending := fs.Bool("pending", false, "Only unresolved requests")
	fs.Parse(args)

	path := "/api/confirmations"
	if *pending {
		path += "?pending=true"
	}
	var reqs []map[string]any
	json.Unmarshal(mustGet(path), &reqs)
	for _, r := range reqs {
		deadline, _ := r["deadline"].(string)
		if deadline == "" {
			deadline = "-"
		}
		fmt.Printf("%-36s %-10s %-20v %-20v %s\n", r["id"], r["outcome"], r["thread_id"], r["requester_id"], deadline)
	}
}

func cmdTicketsList(args []string) {
	fs := flag.NewFlagSet("tickets list", flag.ExitOnError)
	status := fs.String("status", "", "Filter by status (open|closed)")
	recipient := fs.String("recipient", "", "Filter by recipient user id")
	search := fs.String("q", "", "Search recipient name and close message")
	limit := fs.Int("limit", 50, "Max results")
	fs.Parse(args)

	q := url.Values{"limit": {strconv.Itoa(*limit)}}
	if *status != "" {
		q.Set("status", *status)
	}
	if *recipient != "" {
		q.Set("recipient", *recipient)
	}
	if *search != "" {
		q.Set("q", *search)
	}

	var tickets []map[string]any
	json.Unmarshal(mustGet("/api/tickets?"+q.Encode()), &tickets)
	for _, t := range tickets {
		fmt.Printf("%-12v %-8v %-20v %v\n", t["id"], t["status"], t["channel_id"], t["recipient_name"])
	}
}

func cmdTicketsShow(id string) {
	fmt.Println(prettyJSON(mustGet("/api/tickets/" + url.PathEscape(id))))
}

func cmdStats() {
	fmt.Println("Response times:")
	fmt.Println(prettyJSON(mustGet("/api/stats/responsetime")))
	fmt.Println("Uptime:")
	fmt.Println(prettyJSON(mustGet("/api/stats/uptime")))
}

func cmdLogs(args []string) {
	fs := flag.NewFlagSet("logs", flag.ExitOnError)
	level := fs.String("level", "info", "Minimum level (debug|info|warn|error)")
	component := fs.String("component", "", "Only entries from this cog or component")
	since := fs.Duration("since", 0, "Only entries newer than this, e.g. 15m")
	limit := fs.Int("limit", 100, "Max entries")
	fs.Parse(args)

	q := url.Values{"level": {*level}, "limit": {strconv.Itoa(*limit)}}
	if *component != "" {
		q.Set("component", *component)
	}
	if *since > 0 {
		q.Set("since", strconv.FormatInt(time.Now().Add(-*since).UnixMilli(), 10))
	}

	var entries []struct {
		Time      time.Time      `json:"time"`
		Level     string         `json:"level"`
		Message   string         `json:"message"`
		Component string         `json:"component"`
		Attrs     map[string]any `json:"attrs"`
	}
	json.Unmarshal(mustGet("/api/logs?"+q.Encode()), &entries)
	for _, e := range entries {
		var attrs []string
		for k, v := range e.Attrs {
			attrs = append(attrs, fmt.Sprintf("%s=%v", k, v))
		}
		fmt.Printf("%s %-5s %-12s %s %s\n", e.Time.Format(time.TimeOnly), e.Level, e.Component, e.Message, strings.Join(attrs, " "))
	}
}

// cmdAlert posts a test alert to a webhook endpoint of the daemon.
func cmdAlert(args []string) {
	fs := flag.NewFlagSet("alert", flag.ExitOnError)
	title := fs.String("title", "", "Alert title")
	severity := fs.String("severity", "info", "info|warning|critical")
	secret := fs.String("secret", os.Getenv("MODCOGS_WEBHOOK_SECRET"), "HMAC secret of the endpoint")
	token := fs.String("token", os.Getenv("MODCOGS_WEBHOOK_TOKEN"), "Bearer token of the endpoint")
	fs.Parse(args)
	if fs.NArg() < 2 {
		fmt.Fprintln(os.Stderr, "usage: modcogsctl alert [flags] <endpoint> <content>")
		os.Exit(1)
	}

	body, _ := json.Marshal(webhook.Alert{Title: *title, Content: strings.Join(fs.Args()[1:], " "), Severity: *severity})
	req, err := http.NewRequest(http.MethodPost, apiBase()+"/api/webhook/"+url.PathEscape(fs.Arg(0)), bytes.NewReader(body))
	if err != nil {
		fail(err)
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case *secret != "":
		req.Header.Set("X-Hub-Signature-256", webhook.Sign(body, *secret))
	case *token != "":
		req.Header.Set("Authorization", "Bearer "+*token)
	}
	resp, err := do(req)
	if err != nil {
		fail(err)
	}
	fmt.Println(string(resp))
}

func cmdConfigValidate(path string) {
	if _, err := config.Load(path); err != nil {
		fmt.Fprintf(os.Stderr, "invalid: %v\n", err)
		os.Exit(1)
	}
	fmt.Println("config is valid")
}

// --- Helpers ---

func mustGet(path string) []byte {
	req, err := http.NewRequest(http.MethodGet, apiBase()+path, nil)
	if err != nil {
		fail(err)
	}
	if key := os.Getenv("MODCOGS_API_KEY"); key != "" {
		req.Header.Set("Authorization", "Bearer "+key)
	}
	body, err := do(req)
	if err != nil {
		fail(err)
	}
	return body
}

func do(req *http.Request) ([]byte, error) {
	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(body))
	}
	return body, nil
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func prettyJSON(data []byte) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}

func apiBase() string {
	if v := os.Getenv("MODCOGS_API_URL"); v != "" {
		return strings.TrimRight(v, "/")
	}
	return "http://localhost:8080"
}

func printUsage() {
	fmt.Println("modcogsctl - modmail cogs admin CLI")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  health                     Check daemon health")
	fmt.Println("  confirmations [--pending]  List close confirmation requests")
	fmt.Println("  tickets list               List tickets (--status, --recipient, --q, --limit)")
	fmt.Println("  tickets show <id>          Show ticket details")
	fmt.Println("  stats                      Show response time and uptime stats")
	fmt.Println("  logs                       Show recent logs (--level, --component, --since, --limit)")
	fmt.Println("  alert <endpoint> <text>    Send a test alert through a webhook endpoint")
	fmt.Println("  config validate <path>     Validate config file")
	fmt.Println()
	fmt.Println("Environment:")
	fmt.Println("  MODCOGS_API_URL          Daemon URL (default: http://localhost:8080)")
	fmt.Println("  MODCOGS_API_KEY          API key for authentication")
	fmt.Println("  MODCOGS_WEBHOOK_SECRET   Default HMAC secret for alert")
	fmt.Println("  MODCOGS_WEBHOOK_TOKEN    Default bearer token for alert")
}

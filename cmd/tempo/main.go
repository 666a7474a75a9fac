// Command tempo is the tempo CLI client.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/GoCodeAlone/tempo/internal/version"
	"github.com/GoCodeAlone/tempo/task"
)

const defaultServer = "http://localhost:8080"

func main() {
	var (
		serverURL = flag.String("server", defaultServer, "tempo server URL")
		token     = flag.String("token", os.Getenv("TEMPO_TOKEN"), "JWT auth token")
	)
	flag.Usage = usage
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		usage()
		os.Exit(1)
	}

	cli := &Client{
		BaseURL:    strings.TrimRight(*serverURL, "/"),
		Token:      *token,
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
	}

	cmd := args[0]
	rest := args[1:]

	var err error
	switch cmd {
	case "version":
		err = cmdVersion(rest)
	case "status":
		err = cli.cmdStatus(rest)
	case "tasks":
		err = cli.cmdTasks(rest)
	case "ordered":
		err = cli.cmdOrdered(rest)
	case "task":
		err = cli.cmdTask(rest)
	case "notifications":
		err = cli.cmdNotifications(rest)
	case "serve":
		fmt.Fprintln(os.Stderr, "use tempod to run the server")
		os.Exit(1)
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", cmd)
		usage()
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func usage() {
	fmt.Fprint(os.Stderr, `tempo — tempo CLI

Usage:
  tempo [flags] <command> [args]

Flags:
  --server  <url>    server URL (default: http://localhost:8080)
  --token   <token>  JWT auth token (or $TEMPO_TOKEN)

Commands:
  version                  print version
  status                   show server status
  tasks [status]           list tasks, optionally filtered by status
  ordered                  list pending tasks in execution order
  task create <title>      create a task (see task create -h)
  task show <id>           show one task
  task complete <id>       mark a task completed
  task notify <id>         fire an on-demand reminder
  notifications [unread]   list notifications
`)
}

// --- version ---

func cmdVersion(_ []string) error {
	fmt.Printf("tempo %s (commit %s, built %s)\n",
		version.Version, version.Commit, version.BuildDate)
	return nil
}

// Client holds HTTP client state for CLI commands.
type Client struct {
	BaseURL    string
	Token      string
	HTTPClient *http.Client
}

// get performs a GET and decodes JSON into v.
func (c *Client) get(path string, v any) error {
	req, err := http.NewRequest(http.MethodGet, c.BaseURL+path, nil)
	if err != nil {
		return err
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// post performs a POST and decodes JSON response into v (may be nil).
func (c *Client) post(path string, body io.Reader, v any) error {
	req, err := http.NewRequest(http.MethodPost, c.BaseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if v != nil && resp.ContentLength != 0 {
		return json.NewDecoder(resp.Body).Decode(v)
	}
	return nil
}

// --- commands ---

func (c *Client) cmdStatus(_ []string) error {
	var status map[string]any
	if err := c.get("/api/status", &status); err != nil {
		return err
	}
	fmt.Printf("status:  %v\n", status["status"])
	fmt.Printf("version: %v\n", status["version"])
	fmt.Printf("timers:  %v\n", status["pending_timers"])
	return nil
}

func (c *Client) cmdTasks(args []string) error {
	path := "/api/tasks"
	if len(args) > 0 {
		path += "?status=" + args[0]
	}
	var tasks []*task.Task
	if err := c.get(path, &tasks); err != nil {
		return err
	}
	printTasks(tasks)
	return nil
}

func (c *Client) cmdOrdered(_ []string) error {
	var tasks []*task.Task
	if err := c.get("/api/tasks/ordered", &tasks); err != nil {
		return err
	}
	printTasks(tasks)
	return nil
}

func printTasks(tasks []*task.Task) {
	if len(tasks) == 0 {
		fmt.Println("no tasks")
		return
	}
	for _, t := range tasks {
		deadline := "-"
		if t.Deadline != nil {
			deadline = t.Deadline.Format(time.RFC3339)
		}
		fmt.Printf("%-5d p%-3d %-10s %-25s %s\n", t.ID, t.Priority, t.Status, deadline, t.Title)
	}
}

func (c *Client) cmdTask(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("task: expected subcommand (create, show, complete, notify)")
	}
	sub := args[0]
	rest := args[1:]

	switch sub {
	case "create":
		return c.taskCreate(rest)
	case "show":
		id, err := argID(rest)
		if err != nil {
			return err
		}
		var t task.Task
		if err := c.get(fmt.Sprintf("/api/tasks/%d", id), &t); err != nil {
			return err
		}
		out, _ := json.MarshalIndent(t, "", "  ")
		fmt.Println(string(out))
		return nil
	case "complete":
		id, err := argID(rest)
		if err != nil {
			return err
		}
		return c.post(fmt.Sprintf("/api/tasks/%d/complete", id), nil, nil)
	case "notify":
		id, err := argID(rest)
		if err != nil {
			return err
		}
		return c.post(fmt.Sprintf("/api/tasks/%d/notify", id), nil, nil)
	default:
		return fmt.Errorf("unknown task subcommand: %s", sub)
	}
}

func (c *Client) taskCreate(args []string) error {
	fs := flag.NewFlagSet("task create", flag.ContinueOnError)
	var (
		description = fs.String("description", "", "task description")
		priority    = fs.Int("priority", 1, "priority (positive, higher = more urgent)")
		deadline    = fs.String("deadline", "", "deadline (RFC3339)")
		duration    = fs.Int("duration", 60, "estimated duration in minutes")
		dependsOn   = fs.String("depends-on", "", "comma-separated prerequisite task ids")
	)
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		return fmt.Errorf("task create: expected title")
	}
	title := strings.Join(fs.Args(), " ")

	deps, err := parseIDs(*dependsOn)
	if err != nil {
		return err
	}

	body, err := json.Marshal(map[string]any{
		"title":              title,
		"description":        *description,
		"priority":           *priority,
		"deadline":           *deadline,
		"estimated_duration": *duration,
		"depends_on":         deps,
	})
	if err != nil {
		return err
	}

	var created task.Task
	if err := c.post("/api/tasks", bytes.NewReader(body), &created); err != nil {
		return err
	}
	fmt.Printf("created task %d: %s\n", created.ID, created.Title)
	return nil
}

func (c *Client) cmdNotifications(args []string) error {
	path := "/api/notifications"
	if len(args) > 0 && args[0] == "unread" {
		path += "?unread=true"
	}
	var notifs []*task.Notification
	if err := c.get(path, &notifs); err != nil {
		return err
	}
	if len(notifs) == 0 {
		fmt.Println("no notifications")
		return nil
	}
	for _, n := range notifs {
		mark := " "
		if !n.Read {
			mark = "*"
		}
		fmt.Printf("%s %-5d task %-5d %s  %s\n",
			mark, n.ID, n.TaskID, n.SentAt.Format(time.RFC3339), n.Message)
	}
	return nil
}

func argID(args []string) (int64, error) {
	if len(args) == 0 {
		return 0, fmt.Errorf("expected task id")
	}
	id, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", args[0])
	}
	return id, nil
}

func parseIDs(s string) ([]int64, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	ids := make([]int64, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.ParseInt(strings.TrimSpace(p), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid id %q in depends-on", p)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

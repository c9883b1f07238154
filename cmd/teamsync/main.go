package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"github.com/alecthomas/kingpin/v2"

	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/activity"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/client"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/coordinator"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/envelope"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/message"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/qualitygate"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/task"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/team"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/internal/yolo"
	"github.com/ZReich/Craft-Agent-Agent-Teams-sub002/pkg/color"
)

var (
	app       = kingpin.New("teamsync", "Team coordination state and event stream CLI")
	serverURL = app.Flag("server", "Server base URL").Envar("TEAMSYNC_SERVER_URL").Default("http://localhost:3100").String()
	apiKey    = app.Flag("api-key", "API key for the server").Envar("TEAMSYNC_API_KEY").Required().String()

	teamsCmd = app.Command("teams", "List known teams")

	stateCmd     = app.Command("state", "Show a team's coordination state")
	stateTeamID  = stateCmd.Arg("team", "Team ID").Required().String()
	stateAck     = stateCmd.Flag("ack", "Acknowledge pending updates").Bool()
	stateRefresh = stateCmd.Flag("refresh", "Reload the persisted snapshot first").Bool()

	tailCmd    = app.Command("tail", "Follow a team's live event stream")
	tailTeamID = tailCmd.Arg("team", "Team ID").Required().String()
	tailKinds  = tailCmd.Flag("kinds", "Comma-separated event kinds to include").String()

	emitCmd     = app.Command("emit", "Publish an event into a team's stream")
	emitTeamID  = emitCmd.Arg("team", "Team ID").Required().String()
	emitKind    = emitCmd.Arg("kind", "Event kind, e.g. task:created").Required().String()
	emitPayload = emitCmd.Flag("payload", "JSON payload; use - to read from stdin").String()
)

func main() {
	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	c := client.New(*serverURL, *apiKey)

	var err error
	switch command {
	case teamsCmd.FullCommand():
		err = handleTeams(ctx, c)
	case stateCmd.FullCommand():
		err = handleState(ctx, c)
	case tailCmd.FullCommand():
		err = handleTail(ctx, c)
	case emitCmd.FullCommand():
		err = handleEmit(ctx, c)
	}
	if err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func handleTeams(ctx context.Context, c *client.Client) error {
	teams, err := c.ListTeams(ctx)
	if err != nil {
		return err
	}
	if len(teams) == 0 {
		fmt.Println("No teams found")
		return nil
	}
	for _, t := range teams {
		marker := " "
		if t.Live {
			marker = color.Colorize("*", color.BrightGreen)
		}
		fmt.Printf("%s %s\n", marker, t.ID)
	}
	return nil
}

func handleState(ctx context.Context, c *client.Client) error {
	view, err := c.State(ctx, *stateTeamID, *stateAck, *stateRefresh)
	if err != nil {
		return err
	}
	renderState(view)
	return nil
}

func handleTail(ctx context.Context, c *client.Client) error {
	var kinds []string
	if *tailKinds != "" {
		for _, k := range strings.Split(*tailKinds, ",") {
			k = strings.TrimSpace(k)
			if !envelope.Kind(k).Known() {
				return fmt.Errorf("unknown event kind %q", k)
			}
			kinds = append(kinds, k)
		}
	}

	fmt.Printf("Streaming events for %s (ctrl-c to stop)\n", *tailTeamID)
	return c.StreamEvents(ctx, *tailTeamID, kinds, func(env *envelope.Envelope) error {
		printEnvelope(env)
		return nil
	})
}

func handleEmit(ctx context.Context, c *client.Client) error {
	kind := envelope.Kind(*emitKind)
	if !kind.Known() {
		return fmt.Errorf("unknown event kind %q", *emitKind)
	}

	var payload []byte
	switch *emitPayload {
	case "":
	case "-":
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return fmt.Errorf("failed to read payload from stdin: %w", err)
		}
		payload = data
	default:
		payload = []byte(*emitPayload)
	}
	if len(payload) > 0 && !json.Valid(payload) {
		return fmt.Errorf("payload is not valid JSON")
	}

	echoed, err := c.EmitEvent(ctx, &envelope.Envelope{
		Kind:    kind,
		TeamID:  *emitTeamID,
		Payload: payload,
	})
	if err != nil {
		return err
	}
	fmt.Printf("Published %s (id: %s)\n", echoed.Kind, echoed.ID)
	return nil
}

func renderState(view *coordinator.StateView) {
	dash := view.Dashboard

	name := view.TeamID
	status := ""
	if dash.Team != nil {
		if dash.Team.Name != "" {
			name = dash.Team.Name
		}
		status = string(dash.Team.Status)
	}
	fmt.Printf("%s", color.Colorize(name, color.Bold))
	if status != "" {
		fmt.Printf(" (%s)", status)
	}
	fmt.Printf("  connection: %s", dash.Connection)
	if dash.PendingUpdates > 0 {
		fmt.Printf("  %s", color.Colorize(fmt.Sprintf("%d pending updates", dash.PendingUpdates), color.BrightYellow))
	}
	fmt.Println()

	if view.Run.Phase != "" {
		line := fmt.Sprintf("run: %s", view.Run.Phase)
		if view.Run.PauseReason != "" {
			line += fmt.Sprintf(" (paused: %s)", view.Run.PauseReason)
		}
		if view.Run.AbortReason != "" {
			line += fmt.Sprintf(" (aborted: %s)", view.Run.AbortReason)
		}
		fmt.Println(line)
	}

	if len(dash.Teammates) > 0 {
		fmt.Println("\nTeammates:")
		for _, mate := range dash.Teammates {
			label := mate.Name
			if label == "" {
				label = mate.ID
			}
			line := colorizeTeammateStatus(mate.Status)
			if mate.TaskID != "" {
				line += fmt.Sprintf("  task=%s", mate.TaskID)
			}
			if mate.Usage.ContextPct > 0 {
				line += fmt.Sprintf("  ctx=%d%%", mate.Usage.ContextPct)
			}
			if mate.Usage.CostUSD > 0 {
				line += fmt.Sprintf("  $%.4f", mate.Usage.CostUSD)
			}
			fmt.Printf("  %s %s\n", color.FormatTeammatePrefix(label), line)
		}
	}

	if len(dash.Tasks) > 0 {
		fmt.Println("\nTasks:")
		for _, tk := range dash.Tasks {
			line := fmt.Sprintf("  %-12s %s", tk.Status, tk.Title)
			if tg, ok := view.Gates[tk.ID]; ok && tg.Latest != nil {
				line += fmt.Sprintf("  gate=%.1f", tg.Latest.Score)
			}
			fmt.Println(line)
		}
	}

	if dash.CostSummary.CostUSD > 0 {
		fmt.Printf("\nCost: $%.4f (%d in / %d out tokens)\n",
			dash.CostSummary.CostUSD, dash.CostSummary.InputTokens, dash.CostSummary.OutputTokens)
	}

	if view.Health.Total() > 0 || len(view.Health.ContextExhausted) > 0 {
		fmt.Printf("\nHealth: %d stalls, %d error loops, %d retry storms\n",
			view.Health.Stalls, view.Health.ErrorLoops, view.Health.RetryStorms)
		if len(view.Health.ContextExhausted) > 0 {
			exhausted := append([]string(nil), view.Health.ContextExhausted...)
			sort.Strings(exhausted)
			fmt.Printf("  context exhausted: %s\n", strings.Join(exhausted, ", "))
		}
	}

	if len(view.Knowledge) > 0 {
		fmt.Printf("\nKnowledge: %d entries\n", len(view.Knowledge))
	}

	if view.Integration.UpdatedAt != "" {
		result := "running"
		if !view.Integration.Running {
			result = "failed"
			if view.Integration.Passed {
				result = "passed"
			}
		}
		fmt.Printf("\nIntegration: %s", result)
		if view.Integration.Detail != "" {
			fmt.Printf(" (%s)", view.Integration.Detail)
		}
		fmt.Println()
	}
}

func colorizeTeammateStatus(status team.TeammateStatus) string {
	switch status {
	case team.TeammateWorking:
		return color.Colorize(string(status), color.BrightGreen)
	case team.TeammateError:
		return color.Colorize(string(status), color.BrightRed)
	case team.TeammateAwaitingApproval:
		return color.Colorize(string(status), color.BrightYellow)
	case team.TeammateShutdown:
		return color.Colorize(string(status), color.Dim)
	default:
		return string(status)
	}
}

// printEnvelope renders one streamed event as a single prefixed line. The
// prefix is the acting teammate where the payload names one, so parallel
// workers stay visually separable.
func printEnvelope(env *envelope.Envelope) {
	label, line := describeEnvelope(env)
	if label == "" {
		label = string(env.Kind)
	}
	color.ColoredPrintln(label, fmt.Sprintf("%s %s", color.Colorize(env.Timestamp, color.Dim), line))
}

func describeEnvelope(env *envelope.Envelope) (string, string) {
	payload, err := env.DecodePayload()
	if err != nil {
		return "", fmt.Sprintf("%s (undecodable payload)", env.Kind)
	}

	switch p := payload.(type) {
	case *team.Team:
		return p.Name, fmt.Sprintf("team is %s with %d teammates", p.Status, len(p.Teammates))
	case *envelope.TeamErrorPayload:
		label := p.TeammateID
		if label == "" {
			label = "team"
		}
		return label, color.Colorize("error: "+p.Message, color.BrightRed)
	case *team.Teammate:
		name := p.Name
		if name == "" {
			name = p.ID
		}
		return name, fmt.Sprintf("joined the team (%s)", p.Role)
	case *envelope.TeammateStatusPayload:
		return p.TeammateID, fmt.Sprintf("is now %s", p.Status)
	case *task.Task:
		verb := "updated"
		if env.Kind == envelope.KindTaskCreated {
			verb = "created"
		}
		return "tasks", fmt.Sprintf("%s %q (%s)", verb, p.Title, p.Status)
	case *message.Message:
		return p.From, fmt.Sprintf("-> %s: %s", p.To, p.Content)
	case *activity.Event:
		label := p.TeammateID
		if label == "" {
			label = "activity"
		}
		return label, fmt.Sprintf("%s %s", p.Type, p.Detail)
	case *envelope.CostUsagePayload:
		return p.TeammateID, fmt.Sprintf("cost $%.4f (ctx %d%%)", p.CostUSD, p.ContextPct)
	case *envelope.QualityGateStartedPayload:
		return "gate", fmt.Sprintf("review cycle %d started for %s", p.Cycle, p.TaskID)
	case *qualitygate.Result:
		verdict := color.Colorize("failed", color.BrightRed)
		if p.Passed {
			verdict = color.Colorize("passed", color.BrightGreen)
		}
		return "gate", fmt.Sprintf("task %s %s with %.1f (cycle %d/%d)", p.TaskID, verdict, p.Score, p.Cycle, p.MaxCycles)
	case *envelope.IntegrationStartedPayload:
		return "integration", "check started"
	case *envelope.IntegrationResultPayload:
		if p.Passed {
			return "integration", color.Colorize("check passed", color.BrightGreen)
		}
		return "integration", color.Colorize("check failed: "+p.Detail, color.BrightRed)
	case *envelope.YoloPhasePayload:
		return "run", fmt.Sprintf("entered %s", p.Phase)
	case *envelope.YoloPausedPayload:
		return "run", color.Colorize(fmt.Sprintf("paused: %s %s", p.Reason, p.Detail), color.BrightYellow)
	case *envelope.YoloResumedPayload:
		return "run", "resumed"
	case *envelope.YoloAbortedPayload:
		return "run", color.Colorize("aborted: "+p.Reason, color.BrightRed)
	case *yolo.Proposal:
		return "run", fmt.Sprintf("spec change proposed: %s", p.Title)
	case *envelope.ProposalResolvedPayload:
		verdict := "rejected"
		if p.Accepted {
			verdict = "accepted"
		}
		return "run", fmt.Sprintf("proposal %s %s", p.ProposalID, verdict)
	case *envelope.HeartbeatBatchPayload:
		return "health", fmt.Sprintf("%d heartbeats", len(p.Heartbeats))
	default:
		return "", string(env.Kind)
	}
}

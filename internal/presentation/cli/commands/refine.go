package commands

import (
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/viberater/viberater/internal/application/ports"
	"github.com/viberater/viberater/internal/application/refine"
	"github.com/viberater/viberater/internal/domain/entity"
	"github.com/viberater/viberater/internal/presentation/cli/output"
)

// refineFlags holds the flags for the refine command.
type refineFlags struct {
	Provider string
	Model    string
}

var refineOpts refineFlags

// NewRefineCmd creates the refine command for the interactive brainstorm REPL.
func NewRefineCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refine [idea-id]",
		Short: "Brainstorm an idea with the AI",
		Long: `Start an interactive refinement session.

With an idea id the conversation opens on that idea; without one it is a
freeform brainstorm. The session runs against the server's AI proxy, so
it requires connectivity.

Special commands:
  /plan           - Generate a project plan and optionally promote
  /save           - Save the conversation onto the idea
  /help           - Show this help message
  /exit, /quit    - End the session

Examples:
  # Brainstorm freely
  viberater refine

  # Refine a captured idea
  viberater refine idea-123

  # Pick a specific model
  viberater refine idea-123 --model claude-sonnet-4`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRefine,
	}

	cmd.Flags().StringVar(&refineOpts.Provider, "provider", "", "AI provider override")
	cmd.Flags().StringVarP(&refineOpts.Model, "model", "m", "", "model override")

	return cmd
}

func runRefine(cmd *cobra.Command, args []string) error {
	formatter := GetFormatter()
	container, err := requireContainer()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if !container.Monitor().IsOnline() {
		return fmt.Errorf("refinement requires connectivity")
	}

	var seed *entity.Idea
	if len(args) == 1 {
		idea, ok := findIdea(container.Facade().Ideas(), args[0])
		if !ok {
			return fmt.Errorf("idea %s not found", args[0])
		}
		seed = &idea
	}

	opts := ports.ChatOptions{
		Provider: container.Config().Chat.Provider,
		Model:    container.Config().Chat.Model,
	}
	if refineOpts.Provider != "" {
		opts.Provider = refineOpts.Provider
	}
	if refineOpts.Model != "" {
		opts.Model = refineOpts.Model
	}

	session := refine.NewSession(container.Chat(), opts, container.Logger())

	if seed != nil {
		formatter.Header(fmt.Sprintf("Refining: %s", seed.Title))
	} else {
		formatter.Header("Brainstorm")
	}
	formatter.Info("Type your message and press Enter. Type /help for commands.")
	formatter.Println("")

	reply, err := session.Start(ctx, seed)
	if err != nil {
		return fmt.Errorf("could not start session: %w", err)
	}
	printAssistant(formatter, reply)

	rl, err := readline.New("> ")
	if err != nil {
		return fmt.Errorf("could not create readline: %w", err)
	}
	defer rl.Close()

	for {
		line, err := rl.Readline()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}

		if strings.HasPrefix(line, "/") {
			exit, err := handleRefineCommand(cmd, rl, line, session, seed)
			if err != nil {
				formatter.Error("%s", err.Error())
				continue
			}
			if exit {
				break
			}
			continue
		}

		reply, err := session.Send(ctx, line)
		if err != nil {
			formatter.Error("%s", err.Error())
			continue
		}
		printAssistant(formatter, reply)
	}

	formatter.Info("Session ended")
	return nil
}

// handleRefineCommand handles the slash commands. Returns true to exit.
func handleRefineCommand(cmd *cobra.Command, rl *readline.Instance, line string, session *refine.Session, seed *entity.Idea) (bool, error) {
	formatter := GetFormatter()
	container, err := requireContainer()
	if err != nil {
		return false, err
	}
	ctx := cmd.Context()

	switch strings.ToLower(strings.Fields(line)[0]) {
	case "/exit", "/quit":
		return true, nil

	case "/help":
		formatter.Header("Refine Commands")
		formatter.Item("/plan", "Generate a project plan and optionally promote")
		formatter.Item("/save", "Save the conversation onto the idea")
		formatter.Item("/help", "Show this help message")
		formatter.Item("/exit, /quit", "End the session")
		formatter.Println("")
		return false, nil

	case "/save":
		if seed == nil {
			return false, fmt.Errorf("no idea to save to, start with 'viberater refine <idea-id>'")
		}
		msgs := session.Messages()
		if _, err := container.Facade().SaveRefinement(ctx, seed.ID, msgs, renderTranscript(msgs)); err != nil {
			return false, fmt.Errorf("failed to save refinement: %w", err)
		}
		formatter.Success("Saved conversation to %s", seed.ID)
		return false, nil

	case "/plan":
		plan, err := session.GeneratePlan(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to generate plan: %w", err)
		}

		formatter.Header(plan.Name)
		if plan.Description != "" {
			formatter.Println("%s", plan.Description)
		}
		for _, phase := range plan.Phases {
			formatter.Item(fmt.Sprintf("Phase %d", phase.Order), phase.Name)
		}
		for _, task := range plan.Tasks {
			formatter.BulletItem(task.Title)
		}
		formatter.Println("")

		if seed == nil {
			formatter.Info("No idea attached, capture one first to promote this plan")
			return false, nil
		}

		rl.SetPrompt("promote? (y/N) ")
		answer, err := rl.Readline()
		rl.SetPrompt("> ")
		if err != nil {
			return false, err
		}
		if !strings.EqualFold(strings.TrimSpace(answer), "y") {
			formatter.Info("Plan discarded, keep refining")
			return false, nil
		}

		project, err := container.Facade().PromoteIdea(ctx, seed.ID, *plan)
		if err != nil {
			return false, fmt.Errorf("failed to promote idea: %w", err)
		}
		formatter.Success("Promoted %q to project %s", seed.Title, project.ID)
		return true, nil

	default:
		return false, fmt.Errorf("unknown command %q, type /help", line)
	}
}

func printAssistant(f *output.Formatter, reply string) {
	f.Success("Assistant:")
	f.Println("%s", reply)
	f.Println("")
}

// renderTranscript flattens the conversation for the idea's refinement notes.
func renderTranscript(msgs []ports.ChatMessage) string {
	var b strings.Builder
	for _, m := range msgs {
		switch m.Role {
		case "user":
			b.WriteString("You: ")
		case "assistant":
			b.WriteString("Assistant: ")
		}
		b.WriteString(m.Content)
		b.WriteString("\n\n")
	}
	return strings.TrimSpace(b.String())
}

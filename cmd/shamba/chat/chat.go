// Package chatcmder provides the chat command for talking to a running
// shamba proxy from the terminal.
package chatcmder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/shamba-ai/shamba/cmd/shamba/wiring"
	"github.com/shamba-ai/shamba/pkg/chatclient"
	"github.com/shamba-ai/shamba/pkg/cliui"
	"github.com/shamba-ai/shamba/pkg/config"
	"github.com/shamba-ai/shamba/pkg/llm"
	"github.com/shamba-ai/shamba/pkg/logger"
)

var (
	userPrompt      = cliui.UserStyle.Render("you> ")
	assistantPrompt = cliui.AssistantStyle.Render("shamba> ")
)

type chatCommander struct {
	proxyTarget string
	debug       bool

	in  io.Reader
	out io.Writer

	// markdown renders each full reply with glamour instead of streaming it.
	markdown bool

	logger *zap.Logger
}

const chatLongDesc string = `Start an interactive chat session with a running shamba proxy.

Replies stream in as they arrive. When stdout is a terminal, each reply is
rendered as Markdown once it is complete.

The provider thread returned by the proxy is reused for every following
prompt, so assistant mode keeps its context for the whole session.

Commands:
  /history   print the conversation so far
  /exit      quit (Ctrl+D also quits, Ctrl+C cancels the current reply)

Examples:
  shamba chat
  shamba chat --proxy-target http://localhost:8080`

const chatShortDesc string = "Interactive chat through the shamba proxy"

func NewChatCmd() *cobra.Command {
	cmder := &chatCommander{}

	cmd := &cobra.Command{
		Use:   "chat",
		Short: chatShortDesc,
		Long:  chatLongDesc,
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := wiring.LoadConfig(cmd, config.FlagProxyTarget)
			if err != nil {
				return err
			}
			cmder.proxyTarget = cfg.Client.ProxyTarget
			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			cmder.debug, err = cmd.Flags().GetBool("debug")
			if err != nil {
				return fmt.Errorf("could not get debug flag: %w", err)
			}

			cmder.in = cmd.InOrStdin()
			cmder.out = cmd.OutOrStdout()
			cmder.markdown = cmder.out == os.Stdout && term.IsTerminal(int(os.Stdout.Fd()))

			return cmder.run(cmd.Context())
		},
	}

	config.AddStringFlag(cmd, config.Flags, config.FlagProxyTarget, &cmder.proxyTarget)

	return cmd
}

func (c *chatCommander) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	c.logger = logger.NewLoggerWithWriters(c.debug, os.Stderr)
	defer func() { _ = c.logger.Sync() }()

	session := chatclient.NewSession(c.proxyTarget, chatclient.WithLogger(c.logger))

	fmt.Fprintln(c.out)
	fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Proxy:"), cliui.ValueStyle.Render(c.proxyTarget))
	fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("Type your message and press Enter. /exit or Ctrl+D to quit."))

	scanner := bufio.NewScanner(c.in)

	for {
		fmt.Fprint(c.out, userPrompt)
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		switch input {
		case "":
			continue
		case "/exit":
			fmt.Fprintln(c.out)
			return nil
		case "/history":
			c.printHistory(session)
			continue
		}

		if err := c.ask(ctx, session, input); err != nil {
			fmt.Fprintf(c.out, "  %s %v\n\n", cliui.FailMark, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading input: %w", err)
	}

	fmt.Fprintln(c.out)
	return nil
}

// ask submits one prompt. Ctrl+C cancels the request without leaving the
// session.
func (c *chatCommander) ask(ctx context.Context, session *chatclient.Session, prompt string) error {
	reqCtx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if !c.markdown {
		fmt.Fprint(c.out, assistantPrompt)
		_, err := session.Submit(reqCtx, prompt, func(delta string) {
			fmt.Fprint(c.out, delta)
		})
		fmt.Fprint(c.out, "\n\n")
		return describe(err)
	}

	var reply string
	err := cliui.Step(c.out, cliui.DimStyle.Render("thinking"), func() error {
		var err error
		reply, err = session.Submit(reqCtx, prompt, nil)
		return err
	})
	if err != nil {
		return describe(err)
	}

	rendered, err := cliui.RenderMarkdown(reply)
	if err != nil {
		c.logger.Debug("rendering reply as markdown", zap.Error(err))
	}
	fmt.Fprintf(c.out, "%s\n%s\n", assistantPrompt, rendered)
	return nil
}

func (c *chatCommander) printHistory(session *chatclient.Session) {
	turns := session.Turns()
	if len(turns) == 0 {
		fmt.Fprintf(c.out, "  %s\n\n", cliui.DimStyle.Render("No messages yet."))
		return
	}

	fmt.Fprintln(c.out)
	for _, t := range turns {
		label := cliui.UserStyle.Render("you")
		if t.Role == llm.RoleAssistant {
			label = cliui.AssistantStyle.Render("shamba")
		}
		fmt.Fprintf(c.out, "  %s  %s\n", label, t.Content)
	}
	if id := session.ThreadID(); id != "" {
		fmt.Fprintf(c.out, "  %s %s\n", cliui.KeyStyle.Render("Thread:"), cliui.DimStyle.Render(id))
	}
	fmt.Fprintln(c.out)
}

func describe(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, context.Canceled):
		return errors.New("cancelled")
	default:
		return err
	}
}

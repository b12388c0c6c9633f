package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bdobrica/timemachine/internal/timemachine/app"
	"github.com/bdobrica/timemachine/internal/timemachine/session"
)

const chatHelp = `Commands: /intro, /usage, /reset, /quit`

func newChatCmd(opts *rootOptions) *cobra.Command {
	var noIntro bool
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Hold a conversation in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := opts.openApp()
			if err != nil {
				return err
			}
			defer a.Close()
			return chatLoop(cmd.Context(), a, cmd.InOrStdin(), cmd.OutOrStdout(), !noIntro)
		},
	}
	cmd.Flags().BoolVar(&noIntro, "no-intro", false, "skip the persona's introduction")
	return cmd
}

// chatLoop reads one question per line until EOF or /quit.
func chatLoop(ctx context.Context, a *app.App, in io.Reader, out io.Writer, intro bool) error {
	name := a.Persona().Name
	conversation := session.Key(cliTenant, "local")
	s := a.Session(ctx, cliTenant, conversation)

	fmt.Fprintln(out, metaStyle.Render(chatHelp))
	if intro {
		fmt.Fprintln(out, personaStyle.Render(name))
		fmt.Fprintln(out, replyStyle.Render(s.Introduce(ctx)))
	}

	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, headerStyle.Render("you> "))
		if !scanner.Scan() {
			fmt.Fprintln(out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/intro":
			fmt.Fprintln(out, replyStyle.Render(s.Introduce(ctx)))
			continue
		case "/usage":
			rep, err := a.Usage(ctx)
			if err != nil {
				return err
			}
			fmt.Fprint(out, renderUsage(rep))
			continue
		case "/reset":
			s.History().Clear()
			fmt.Fprintln(out, metaStyle.Render("conversation cleared"))
			continue
		}
		fmt.Fprint(out, renderResult(name, s.Respond(ctx, line)))
	}
}

package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/samber/do"
	"github.com/spf13/cobra"

	"github.com/Veraticus/the-spice-must-talk/internal/auth"
	"github.com/Veraticus/the-spice-must-talk/internal/chat"
	"github.com/Veraticus/the-spice-must-talk/internal/cli"
	"github.com/Veraticus/the-spice-must-talk/internal/common"
	"github.com/Veraticus/the-spice-must-talk/internal/model"
	"github.com/Veraticus/the-spice-must-talk/internal/storage"
)

func askCmd() *cobra.Command {
	var (
		userID   string
		provider string
	)

	cmd := &cobra.Command{
		Use:   "ask [question]",
		Short: "Ask a question from the terminal",
		Long: `Ask a single question, or start an interactive session when no question
is given. Without --user the session runs as a guest.`,
		Example: `  spicetalk ask --user u1 "How much did I spend last week on food?"
  spicetalk ask "What is a good savings rate?"
  spicetalk ask --user u1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			di := newInjector(appConfig)
			defer shutdown(di)

			svc, err := do.Invoke[*chat.Service](di)
			if err != nil {
				return fmt.Errorf("failed to build chat service: %w", err)
			}

			identity := auth.NewGuest()
			if userID != "" {
				store := do.MustInvoke[*storage.SQLiteStorage](di)
				user, err := store.GetUser(ctx, userID)
				if err != nil {
					return common.NewUserError(fmt.Sprintf("Unknown user %q. Register it with 'spicetalk user add'.", userID), err)
				}
				identity = model.Identity{ID: user.ID, Username: user.Username, Kind: model.IdentityAuthenticated}
			}

			svc.Connect(ctx, identity)
			defer svc.Disconnect(identity)

			var opts []chat.QueryOption
			if provider != "" {
				opts = append(opts, chat.WithProvider(provider))
			}

			if len(args) > 0 {
				reply, err := svc.HandleQuery(ctx, identity, strings.Join(args, " "), opts...)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, cli.RenderReply(reply))
				return nil
			}

			return interactive(cmd, svc, identity, opts)
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "answer as this registered user")
	cmd.Flags().StringVarP(&provider, "provider", "p", "", "preferred LLM provider")
	return cmd
}

func interactive(cmd *cobra.Command, svc *chat.Service, identity model.Identity, opts []chat.QueryOption) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()
	lines := cli.NewLineReader(cmd.InOrStdin())

	who := "guest"
	if !identity.IsGuest() {
		who = identity.Username
	}
	fmt.Fprintln(out, cli.FormatTitle("Chatting as "+who))
	fmt.Fprintln(out, cli.FormatInfo("Try: "+strings.Join(svc.Suggestions(identity), " | ")))
	fmt.Fprintln(out, cli.FormatInfo("Commands: /history, /clear, /quit"))

	for {
		fmt.Fprint(out, cli.FormatPrompt("> "))
		line, err := lines.ReadLine(ctx)
		if errors.Is(err, io.EOF) || errors.Is(err, cli.ErrInputCancelled) {
			fmt.Fprintln(out)
			return nil
		}
		if err != nil {
			return err
		}

		line = strings.TrimSpace(line)
		switch line {
		case "":
			continue
		case "/quit", "/exit":
			return nil
		case "/history":
			fmt.Fprintln(out, cli.RenderTurns(svc.GetHistory(identity)))
			continue
		case "/clear":
			svc.ClearHistory(ctx, identity)
			fmt.Fprintln(out, cli.FormatSuccess("History cleared"))
			continue
		}

		reply, err := svc.HandleQuery(ctx, identity, line, opts...)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintln(out, cli.FormatError(err.Error()))
			continue
		}
		fmt.Fprintln(out, cli.RenderReply(reply))
	}
}

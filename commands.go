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
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"poetry_companion/assistant"
	"poetry_companion/config"
	"poetry_companion/poetry"
	"poetry_companion/server"
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Start the HTTP API server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "addr",
				Usage: "listen address, overrides server.addr",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			a, repo, closeRepo, err := buildAssistant(ctx, cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			srv, err := server.New(a, repo)
			if err != nil {
				return err
			}
			addr := cfg.Server.Addr
			if c.String("addr") != "" {
				addr = c.String("addr")
			}

			errCh := make(chan error, 1)
			go func() { errCh <- srv.Start(addr) }()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}

			log.Info().Msg("shutting down")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	}
}

func chatCommand() *cli.Command {
	return &cli.Command{
		Name:  "chat",
		Usage: "Chat with the assistant in the terminal",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "user",
				Usage: "user id for the session",
				Value: server.DefaultUser,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			a, _, closeRepo, err := buildAssistant(c.Context, cfg)
			if err != nil {
				return err
			}
			defer closeRepo()

			sess := assistant.NewSession(c.String("user"))
			return runChat(c.Context, a, sess, os.Stdin, os.Stdout)
		},
	}
}

func importCommand() *cli.Command {
	return &cli.Command{
		Name:  "import",
		Usage: "Import poems from a CSV file into the managed store",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "csv",
				Usage:    "CSV `FILE` with columns 诗歌名称,作者,朝代,诗歌正文,诗歌分类",
				Required: true,
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig(c)
			if err != nil {
				return err
			}
			if !cfg.Repository.SupabaseConfigured() {
				return errors.New("import requires supabase_url and supabase_key")
			}
			repo, err := newPostgREST(cfg)
			if err != nil {
				return err
			}
			im, err := poetry.NewImporter(repo)
			if err != nil {
				return err
			}

			f, err := os.Open(c.String("csv"))
			if err != nil {
				return err
			}
			defer f.Close()
			records, err := poetry.ReadRecords(f)
			if err != nil {
				return err
			}

			res := im.Import(c.Context, records)
			fmt.Printf("导入完成：共 %d 条，成功 %d 条，失败 %d 条\n", res.Total, res.Imported, res.Failed)
			if res.Failed > 0 {
				return fmt.Errorf("%d records failed to import", res.Failed)
			}
			return nil
		},
	}
}

func configCommand() *cli.Command {
	return &cli.Command{
		Name:  "config",
		Usage: "Manage configuration",
		Subcommands: []*cli.Command{
			{
				Name:  "init",
				Usage: "Write a sample configuration file",
				Action: func(c *cli.Context) error {
					path := c.String("config")
					if path == "" {
						path = config.DefaultPath
					}
					if err := config.InitConfig(path); err != nil {
						return err
					}
					fmt.Printf("Configuration file created at %s\n", path)
					return nil
				},
			},
			{
				Name:  "validate",
				Usage: "Validate the configuration",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig(c)
					if err != nil {
						return err
					}
					if err := config.Validate(cfg); err != nil {
						return fmt.Errorf("invalid configuration: %w", err)
					}
					fmt.Printf("Configuration is valid (repository=%s, llm=%s)\n",
						cfg.Repository.ResolveBackend(), providerLabel(cfg.LLM.ResolveProvider()))
					return nil
				},
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.Log)
	return cfg, nil
}

// runChat 逐行读取输入，/new 开始新对话，/history 列出历史，exit 退出。
func runChat(ctx context.Context, a *assistant.Assistant, sess *assistant.Session, in io.Reader, out io.Writer) error {
	fmt.Fprintln(out, "输入问题开始对话，例如：阅读《静夜思》。输入 exit 退出。")
	scanner := bufio.NewScanner(in)
	for {
		fmt.Fprint(out, "> ")
		if !scanner.Scan() {
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		switch line {
		case "":
			continue
		case "exit", "quit":
			return nil
		case "/new":
			conv := sess.StartConversation("", "")
			fmt.Fprintf(out, "已开始新对话 %s\n", conv.ID)
			continue
		case "/history":
			for _, conv := range sess.History() {
				fmt.Fprintf(out, "%s  %s  %d 条消息  %s\n",
					conv.ID, conv.Title, len(conv.Messages), conv.UpdatedAt.Format(time.DateTime))
			}
			continue
		}

		reply, err := a.SendMessage(ctx, sess, line, assistant.TypeQuestion)
		if err != nil {
			return err
		}
		fmt.Fprintln(out, reply)
		fmt.Fprintln(out)
	}
}

func providerLabel(p string) string {
	if p == config.ProviderDisabled {
		return "disabled"
	}
	return p
}

package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"cdr.dev/slog/v3"
	"cdr.dev/slog/v3/sloggers/sloghuman"
	"github.com/spf13/cobra"
	"golang.org/x/xerrors"

	thankyou "github.com/st-keller/thankyou-client"
	"github.com/st-keller/thankyou-client/component"
	"github.com/st-keller/thankyou-client/identity"
	"github.com/st-keller/thankyou-client/registry"
)

const (
	thanksMount   = "#thanks"
	feedbackMount = "#feedback"
)

func NewDemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Drive both widgets from stdin",
		Long: `Reads one command per line:

  click          click the thank-you button
  flush          report pending clicks now
  toggle         show or hide the message box
  type <text>    set the message box content
  send           send the message
  status         print pending clicks and endpoint health
  snapshot       print the client diagnostics as JSON
  quit           detach both widgets and exit`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadEnv(cmd)
			if err != nil {
				return err
			}
			verbose, _ := cmd.Flags().GetBool("verbose")

			logger := slog.Make(sloghuman.Sink(cmd.ErrOrStderr()))
			if verbose {
				logger = logger.Leveled(slog.LevelDebug)
			}
			return runDemo(cmd.Context(), cfg, logger, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
	addWidgetFlags(cmd)
	cmd.Flags().BoolP("verbose", "v", false, "log debug output")
	return cmd
}

// printer renders widget events as terminal lines. Events also arrive from
// timer and submission goroutines, so writes are serialized.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) printf(format string, args ...any) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, format, args...)
}

func (p *printer) Present(e component.Event) {
	switch e.Kind {
	case component.KindFloat:
		p.printf("[%s] +1 (%+.1fpx)\n", e.Widget, e.Offset)
	case component.KindLabel:
		p.printf("[%s] label: %s\n", e.Widget, e.Text)
	case component.KindToggle:
		p.printf("[%s] box visible: %t\n", e.Widget, e.Visible)
	case component.KindPrompt, component.KindBanner:
		p.printf("[%s] %s\n", e.Widget, e.Text)
	case component.KindMounted, component.KindUnmounted:
		p.printf("[%s] %s\n", e.Widget, e.Kind)
	}
}

func runDemo(ctx context.Context, cfg thankyou.EnvConfig, logger slog.Logger, in io.Reader, out io.Writer) error {
	var id identity.Provider = identity.NewSession()
	if cfg.UserID != "" {
		id = identity.Static(cfg.UserID)
	}

	p := &printer{out: out}
	client, err := thankyou.New(thankyou.Config{
		BaseURL:   cfg.BaseURL,
		Registry:  registry.New(thanksMount, feedbackMount),
		Presenter: p,
		Identity:  id,
		Logger:    logger,
		Transport: cfg.Transport,
	})
	if err != nil {
		return err
	}
	defer client.Close()

	button, err := client.NewThankYouButton(thankyou.ButtonConfig{
		Selector:        thanksMount,
		ProjectName:     cfg.ProjectName,
		DevID:           cfg.DevID,
		InactivityDelay: cfg.InactivityDelay,
	})
	if err != nil {
		return err
	}
	message, err := client.NewMessageButton(thankyou.MessageConfig{
		Selector:    feedbackMount,
		ProjectName: cfg.ProjectName,
		DevID:       cfg.DevID,
	})
	if err != nil {
		return err
	}

	p.printf("%s as %s\n", thankyou.ReadyEvent, client.Identity().UserID())

	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		verb, rest, _ := strings.Cut(strings.TrimSpace(scanner.Text()), " ")
		switch verb {
		case "":
		case "click":
			if err := button.Click(); err != nil {
				return err
			}
		case "flush":
			button.Flush()
		case "toggle":
			message.Toggle()
		case "type":
			message.SetText(rest)
		case "send":
			err := message.Send(ctx)
			if xerrors.Is(err, thankyou.ErrEmptyMessage) || xerrors.Is(err, thankyou.ErrMessageTooLong) {
				continue
			}
			if err != nil {
				return err
			}
		case "status":
			p.printf("pending clicks: %d (%s)\n", button.Pending(), button.State())
			for _, s := range client.Connectivity().Stats() {
				p.printf("%s: %s, %d calls, %d failures\n", s.URL, s.Status, s.Total, s.Failures)
			}
			for _, cert := range client.Certificates().Certificates() {
				p.printf("%s certificate %s: %d days left\n", cert.Purpose, cert.Path, cert.DaysUntilExpiry)
			}
		case "snapshot":
			data, err := json.MarshalIndent(client.Snapshot(), "", "  ")
			if err != nil {
				return xerrors.Errorf("encode snapshot: %w", err)
			}
			p.printf("%s\n", data)
		case "quit":
			return nil
		default:
			p.printf("unknown command %q\n", verb)
		}
	}
	return scanner.Err()
}

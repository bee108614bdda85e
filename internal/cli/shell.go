// Package cli provides the line-oriented front end for a chat session.
package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/chart"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/ingest"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/model"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/internal/service"
	"github.com/rohtheroos-84/Quality-Assurance-Assistant/pkg/logger"
)

const helpText = `Commands:
  /upload <path>...   attach PDF, CSV or Excel files
  /files              list attached files
  /remove <id>        detach a file
  /persona [name]     show or change the persona
  /export [index]     save a chart (latest chart when index is omitted)
  /history            print the conversation
  /help               show this help
  /quit               leave
Anything else is sent to the assistant.`

// Shell reads commands and messages and drives a session.
type Shell struct {
	session   *service.Session
	exportDir string
	out       io.Writer
	logger    *logger.Logger
}

// NewShell creates a shell writing its transcript to out.
func NewShell(session *service.Session, exportDir string, out io.Writer, log *logger.Logger) *Shell {
	return &Shell{
		session:   session,
		exportDir: exportDir,
		out:       out,
		logger:    log.Named("cli"),
	}
}

// Run processes lines from in until EOF, /quit or ctx is done.
func (s *Shell) Run(ctx context.Context, in io.Reader) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)

	s.printf("Quality assurance assistant (persona: %s). Type /help for commands.\n", s.session.Persona())

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}

		quit, err := s.Execute(ctx, scanner.Text())
		if err != nil {
			s.printf("error: %v\n", err)
		}
		if quit {
			return nil
		}
	}

	return scanner.Err()
}

// Execute handles one input line and reports whether the shell should exit.
func (s *Shell) Execute(ctx context.Context, line string) (bool, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return false, s.send(ctx, line)
	}

	fields := strings.Fields(line)
	cmd, args := fields[0], fields[1:]

	switch cmd {
	case "/quit", "/exit":
		return true, nil
	case "/help":
		s.printf("%s\n", helpText)
		return false, nil
	case "/upload":
		return false, s.upload(ctx, args)
	case "/files":
		s.listFiles()
		return false, nil
	case "/remove":
		return false, s.remove(ctx, args)
	case "/persona":
		s.persona(strings.TrimSpace(strings.TrimPrefix(line, cmd)))
		return false, nil
	case "/export":
		return false, s.export(args)
	case "/history":
		s.history()
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s", cmd)
	}
}

func (s *Shell) send(ctx context.Context, text string) error {
	reply, err := s.session.Send(ctx, text)
	switch {
	case errors.Is(err, service.ErrBlankMessage):
		return nil
	case errors.Is(err, service.ErrSuperseded):
		s.logger.Debug("reply superseded")
		return nil
	case err != nil:
		return err
	}

	s.printMessage(len(s.session.Messages())-1, reply)
	return nil
}

func (s *Shell) upload(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return errors.New("usage: /upload <path>...")
	}

	raws := make([]ingest.RawFile, 0, len(paths))
	for _, p := range paths {
		raw, err := ingest.FromPath(p)
		if err != nil {
			s.printf("skipped %s: %v\n", p, err)
			continue
		}
		raws = append(raws, raw)
	}
	if len(raws) == 0 {
		return nil
	}

	for _, r := range s.session.Upload(ctx, raws) {
		if r.OK() {
			s.printf("attached %s (%s, %s)\n", r.File.Name, r.File.Kind(), r.File.ID)
			continue
		}
		switch r.Reason() {
		case ingest.ReasonUnsupported:
			s.printf("skipped %s: only PDF, CSV and Excel files are supported\n", r.Name)
		default:
			s.printf("skipped %s: upload failed\n", r.Name)
		}
	}
	return nil
}

func (s *Shell) listFiles() {
	files := s.session.Files()
	if len(files) == 0 {
		s.printf("no files attached\n")
		return
	}
	for i, f := range files {
		s.printf("%d. %s  %s  %s  %d bytes\n", i+1, f.ID, f.Name, f.Kind(), f.Size)
	}
}

func (s *Shell) remove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return errors.New("usage: /remove <id>")
	}
	if !s.session.RemoveFile(ctx, args[0]) {
		return fmt.Errorf("no file with id %s", args[0])
	}
	s.printf("removed %s\n", args[0])
	return nil
}

func (s *Shell) persona(name string) {
	if name != "" {
		s.session.SetPersona(model.Persona(name))
	}
	s.printf("persona: %s\n", s.session.Persona())
	if name == "" {
		known := model.KnownPersonas()
		names := make([]string, len(known))
		for i, p := range known {
			names[i] = string(p)
		}
		s.printf("known personas: %s\n", strings.Join(names, ", "))
	}
}

func (s *Shell) export(args []string) error {
	msg, index, err := s.chartMessage(args)
	if err != nil {
		return err
	}

	path, err := chart.Export(msg.ChartData, msg.ToolType, s.exportDir)
	if err != nil {
		return err
	}
	s.printf("chart from message %d saved to %s\n", index, path)
	return nil
}

func (s *Shell) chartMessage(args []string) (model.Message, int, error) {
	if len(args) > 0 {
		index, err := strconv.Atoi(args[0])
		if err != nil {
			return model.Message{}, 0, fmt.Errorf("invalid message index %q", args[0])
		}
		msg, ok := s.session.Message(index)
		if !ok || !msg.HasChart() {
			return model.Message{}, 0, fmt.Errorf("message %d has no chart", index)
		}
		return msg, index, nil
	}

	messages := s.session.Messages()
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].HasChart() {
			return messages[i], i, nil
		}
	}
	return model.Message{}, 0, errors.New("no chart in this conversation")
}

func (s *Shell) history() {
	for i, msg := range s.session.Messages() {
		s.printMessage(i, msg)
	}
}

func (s *Shell) printMessage(index int, msg model.Message) {
	s.printf("[%d] %s: %s\n", index, msg.Role, msg.Content)

	if len(msg.Statistics) > 0 {
		keys := make([]string, 0, len(msg.Statistics))
		for k := range msg.Statistics {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			s.printf("    %s: %v\n", k, msg.Statistics[k])
		}
	}

	if msg.HasChart() {
		if info, err := chart.Inspect(msg.ChartData); err == nil {
			s.printf("    chart: %s %dx%d, /export %d to save\n", info.Format, info.Width, info.Height, index)
		} else {
			s.logger.Warn("unreadable chart", zap.Int("index", index), zap.Error(err))
			s.printf("    chart attached, /export %d to save\n", index)
		}
	}
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

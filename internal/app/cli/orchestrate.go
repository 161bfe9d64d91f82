package cli

import (
	"context"
	"encoding/json"
	"flag"
	"io"
	"os"
	"os/signal"
	"strings"

	"github.com/seproj/chatbackend/internal/app/wiring"
	contractorch "github.com/seproj/chatbackend/internal/contracts/v1/orchestrator"
	chatports "github.com/seproj/chatbackend/internal/domains/chat/ports"
	orchapp "github.com/seproj/chatbackend/internal/domains/orchestrator/app"
	apperrors "github.com/seproj/chatbackend/internal/platform/errors"
)

func runOrchestrate(g globals, argv []string, e env) int {
	fs := flag.NewFlagSet("orchestrate", flag.ContinueOnError)
	fs.SetOutput(e.stderr)

	var personas stringListFlag
	var maxTranscripts, summaryTokens, requirementsTokens int
	var noRequirements bool
	fs.Var(&personas, "persona", "Restrict to this persona (repeatable or comma-separated).")
	fs.IntVar(&maxTranscripts, "max-transcripts", 0, "Transcripts per persona (1..50).")
	fs.IntVar(&summaryTokens, "summary-max-tokens", 0, "Token budget per summary (128..2048).")
	fs.IntVar(&requirementsTokens, "requirements-max-tokens", 0, "Token budget for the requirements document (256..3072).")
	fs.BoolVar(&noRequirements, "no-requirements", false, "Only produce persona summaries.")
	fs.Usage = func() { writeOrchestrateHelp(e.stderr) }

	if err := fs.Parse(argv); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		writeOrchestrateHelp(e.stderr)
		return exitUsage
	}

	req := contractorch.RequestV1{Personas: personas.values}
	if maxTranscripts != 0 {
		req.MaxTranscriptsPerPersona = &maxTranscripts
	}
	if summaryTokens != 0 {
		req.SummaryMaxTokens = &summaryTokens
	}
	if requirementsTokens != 0 {
		req.RequirementsMaxTokens = &requirementsTokens
	}
	if noRequirements {
		include := false
		req.IncludeRequirements = &include
	}

	ctr, log, ok := open(g, e, wiring.Options{})
	if !ok {
		return exitError
	}
	defer func() { _ = ctr.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	res, err := ctr.Orchestrator.Orchestrate(ctx, orchapp.OrchestrateRequest{Request: req})
	if err != nil {
		log.WithError(err).Error("orchestrate failed")
		if apperrors.IsInvalidRequest(err) {
			return exitUsage
		}
		return exitError
	}
	return writeJSON(e.stdout, res.Result)
}

func runTranscripts(g globals, argv []string, e env) int {
	if len(argv) == 0 || argv[0] != "list" {
		writeTranscriptsHelp(e.stderr)
		return exitUsage
	}

	fs := flag.NewFlagSet("transcripts list", flag.ContinueOnError)
	fs.SetOutput(e.stderr)
	var personas stringListFlag
	var limit int
	fs.Var(&personas, "persona", "Restrict to this persona (repeatable or comma-separated).")
	fs.IntVar(&limit, "limit", 0, "Keep only the N most recent transcripts per persona (0 = all).")
	fs.Usage = func() { writeTranscriptsHelp(e.stderr) }
	if err := fs.Parse(argv[1:]); err != nil {
		if err == flag.ErrHelp {
			return exitOK
		}
		return exitUsage
	}

	ctr, log, ok := open(g, e, wiring.Options{})
	if !ok {
		return exitError
	}
	defer func() { _ = ctr.Close() }()

	res, err := ctr.Store.ListByPersona(chatports.ListTranscriptsRequest{
		Personas:      personas.values,
		CapPerPersona: limit,
	})
	if err != nil {
		log.WithError(err).Error("list transcripts failed")
		return exitError
	}
	return writeJSON(e.stdout, res.ByPersona)
}

func writeJSON(w io.Writer, v any) int {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return exitError
	}
	return exitOK
}

func writeOrchestrateHelp(w io.Writer) {
	_, _ = io.WriteString(w, strings.TrimSpace(`
chatbackend [global flags] orchestrate [flags]

Flags:
  --persona NAME                 (repeatable; default: every persona)
  --max-transcripts N            (default: config, 5)
  --summary-max-tokens N         (default: config, 512)
  --requirements-max-tokens N    (default: config, 1024)
  --no-requirements              Skip the requirements document.

Runs one orchestrator pass against the configured engine and store, caches
the result, and prints it as JSON.
`)+"\n")
}

func writeTranscriptsHelp(w io.Writer) {
	_, _ = io.WriteString(w, strings.TrimSpace(`
chatbackend [global flags] transcripts list [flags]

Flags:
  --persona NAME    (repeatable)
  --limit N         Most recent N per persona (default: all).
`)+"\n")
}

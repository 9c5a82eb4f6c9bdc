// Package inference runs the external forecasting program and loads the
// snapshot it writes.
package inference

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"OmniSpectrum/internal/domain/models"
	"OmniSpectrum/internal/domain/repository"
	"OmniSpectrum/internal/services/contract"
	"OmniSpectrum/pkg/config"
	"OmniSpectrum/pkg/logger"
	"OmniSpectrum/pkg/util"
)

const stderrTailBytes = 4096

// DefaultOutput is where the inference program writes, relative to its
// working directory.
const DefaultOutput = "data/omnispectrum.json"

// Options configures a ProcessGenerator.
type Options struct {
	WorkDir    string
	Output     string // relative paths resolve against WorkDir
	Timeout    time.Duration
	Strategies []config.Strategy
	Env        map[string]string
}

// OptionsFromConfig maps the inference config section.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		WorkDir:    cfg.Inference.WorkDir,
		Output:     cfg.Inference.Output,
		Timeout:    cfg.Inference.Timeout,
		Strategies: cfg.Inference.Strategies,
		Env:        cfg.Inference.Env,
	}
}

// ProcessGenerator launches the inference program as a child process.
type ProcessGenerator struct {
	opts    Options
	log     *logger.Logger
	metrics repository.Metrics
}

func NewProcessGenerator(opts Options, log *logger.Logger, m repository.Metrics) *ProcessGenerator {
	if len(opts.Strategies) == 0 {
		opts.Strategies = config.DefaultStrategies()
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 180 * time.Second
	}
	if opts.Output == "" {
		opts.Output = DefaultOutput
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &ProcessGenerator{opts: opts, log: log.With(logger.String("component", "inference")), metrics: m}
}

// Generate runs each strategy in order until one yields a valid snapshot.
func (g *ProcessGenerator) Generate(ctx context.Context) (*models.Document, error) {
	info, err := os.Stat(g.opts.WorkDir)
	if err != nil {
		return nil, &InvocationError{Err: fmt.Errorf("working directory: %w", err)}
	}
	if !info.IsDir() {
		return nil, &InvocationError{Err: fmt.Errorf("working directory %s is not a directory", g.opts.WorkDir)}
	}

	var errs []error
	for _, s := range g.opts.Strategies {
		doc, err := g.runStrategy(ctx, s)
		if err == nil {
			return doc, nil
		}
		g.log.Warn("inference strategy failed", logger.String("strategy", s.Name), logger.Error(err))
		errs = append(errs, err)
		if ctx.Err() != nil {
			break
		}
	}
	return nil, errors.Join(errs...)
}

func (g *ProcessGenerator) runStrategy(ctx context.Context, s config.Strategy) (*models.Document, error) {
	output := g.resolve(g.opts.Output)
	if err := os.Remove(output); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, &OutputError{Strategy: s.Name, Path: output, Err: fmt.Errorf("remove stale output: %w", err)}
	}

	start := time.Now()
	stdout, err := g.invoke(ctx, s)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		g.record(s.Name, "error", elapsed)
		return nil, err
	}

	if p := statusOutputPath(stdout); p != "" {
		output = g.resolve(p)
	}
	raw, err := os.ReadFile(output)
	if err != nil {
		g.record(s.Name, "bad_output", elapsed)
		return nil, &OutputError{Strategy: s.Name, Path: output, Err: err}
	}
	doc, err := contract.Parse(raw)
	if err != nil {
		g.record(s.Name, "bad_output", elapsed)
		return nil, &OutputError{Strategy: s.Name, Path: output, Err: err}
	}

	g.record(s.Name, "ok", elapsed)
	g.log.Info("inference completed",
		logger.String("strategy", s.Name),
		logger.Float64("close", doc.Snapshot.Close),
		logger.Duration("elapsed", time.Since(start)))
	return doc, nil
}

func (g *ProcessGenerator) invoke(ctx context.Context, s config.Strategy) ([]byte, error) {
	runCtx, cancel := context.WithTimeout(ctx, g.opts.Timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, s.Command, s.Args...)
	cmd.Dir = g.opts.WorkDir
	cmd.Env = g.environ()
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	g.log.Debug("starting inference", logger.String("strategy", s.Name), logger.String("command", s.Command), logger.Strings("args", s.Args))
	err := cmd.Run()
	if err == nil {
		return stdout.Bytes(), nil
	}

	ie := &InvocationError{Strategy: s.Name, Stderr: util.Tail(stderr.String(), stderrTailBytes), Err: err}
	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		ie.TimedOut = true
		ie.Err = fmt.Errorf("after %s: %w", g.opts.Timeout, context.DeadlineExceeded)
		return nil, ie
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		ie.ExitCode = exitErr.ExitCode()
	}
	return nil, ie
}

func (g *ProcessGenerator) environ() []string {
	env := append(os.Environ(), "PYTHONUNBUFFERED=1")
	for k, v := range g.opts.Env {
		env = append(env, k+"="+v)
	}
	return env
}

func (g *ProcessGenerator) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(g.opts.WorkDir, p)
}

func (g *ProcessGenerator) record(strategy, outcome string, seconds float64) {
	if g.metrics != nil {
		g.metrics.RecordInvocation(strategy, outcome, seconds)
	}
}

// statusOutputPath returns output_path from the last JSON object line on stdout.
func statusOutputPath(stdout []byte) string {
	var last string
	sc := bufio.NewScanner(bytes.NewReader(stdout))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if strings.HasPrefix(line, "{") && gjson.Valid(line) {
			last = line
		}
	}
	if last == "" {
		return ""
	}
	return gjson.Get(last, "output_path").String()
}

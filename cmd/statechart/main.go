// Command statechart runs and renders the demo chart.
//
//	statechart run --instances 2
//	statechart dot --rankdir LR | dot -Tsvg > example.svg
//	statechart config -c statechart.yaml
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/alecthomas/kong"
	"github.com/anggasct/statechart"
	"github.com/anggasct/statechart/config"
	"github.com/anggasct/statechart/eventqueue"
	"github.com/anggasct/statechart/observers"
	"github.com/anggasct/statechart/timer"
	"github.com/anggasct/statechart/visualization"
)

// Globals are the flags shared by every command
type Globals struct {
	Config string `short:"c" type:"existingfile" help:"YAML configuration file."`

	out io.Writer
}

func (g *Globals) load() (config.Config, error) {
	if g.Config == "" {
		return config.Default(), nil
	}
	return config.Load(g.Config)
}

// RunCmd drives instances of the demo chart through an event queue
type RunCmd struct {
	Instances int           `default:"1" help:"Number of instances to run."`
	Counter   int           `default:"3" help:"Loops through C before the chart finishes."`
	Timeout   time.Duration `default:"50ms" help:"Timeout of the E -> F transition."`
	Pause     time.Duration `default:"100ms" help:"Pause between two events."`
	Events    []string      `default:"anEvent,anEvent,anEvent,anEvent,anEvent" help:"Events sent to every instance."`
	Verbose   bool          `short:"v" help:"Log every state change."`
}

// Run starts the instances, sends the events and prints one trace per instance
func (r *RunCmd) Run(ctx context.Context, g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	logger := cfg.Logging.Logger(os.Stderr)

	queue := eventqueue.New(cfg.Queue.Options(logger)...)
	scheduler := timer.New(timer.WithLogger(logger))

	instances := make([]*statechart.Instance, 0, r.Instances)
	tracers := make([]*observers.LineTracer, 0, r.Instances)
	for i := 0; i < r.Instances; i++ {
		tracer := observers.NewLineTracer(nil)
		chart, err := cartChart(tracer, r.Counter, r.Timeout)
		if err != nil {
			return err
		}

		opts := append(cfg.Dispatch.InstanceOptions(),
			statechart.WithInstanceID(fmt.Sprintf("Run%d", i+1)),
			statechart.WithScheduler(scheduler),
			statechart.WithEventSink(queue),
			statechart.WithObserver(tracer),
			statechart.WithLogger(logger),
		)
		if r.Verbose {
			opts = append(opts, statechart.WithObserver(observers.NewLoggingObserver(logger)))
		}

		in := statechart.NewInstance(chart, opts...)
		if err := in.Start(ctx); err != nil {
			return err
		}
		instances = append(instances, in)
		tracers = append(tracers, tracer)
	}

	for _, name := range r.Events {
		if err := sleep(ctx, r.Pause); err != nil {
			break
		}
		for _, in := range instances {
			if err := queue.Send(ctx, in, name, nil); err != nil {
				logger.Warn("event not sent", "instance", in.ID(), "event", name, "error", err)
			}
		}
	}

	if err := shutdown(queue, scheduler, cfg, logger); err != nil {
		return err
	}

	for i, in := range instances {
		for _, line := range tracers[i].Lines() {
			fmt.Fprintf(g.out, "[%s] %s\n", in.ID(), line)
		}
		fmt.Fprintf(g.out, "[%s] configuration: %s\n", in.ID(), in.Configuration())
		_ = in.Close(context.Background())
	}

	return nil
}

func shutdown(queue *eventqueue.Queue, scheduler *timer.Manager, cfg config.Config, logger *slog.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), cfg.Timer.ShutdownWait)
	defer cancel()
	if err := scheduler.Shutdown(ctx); err != nil {
		logger.Warn("timer manager shutdown", "error", err)
	}

	ctx, cancel = context.WithTimeout(context.Background(), cfg.Queue.ShutdownWait)
	defer cancel()
	if err := queue.Shutdown(ctx); err != nil {
		return fmt.Errorf("event queue shutdown: %w", err)
	}

	stats := queue.Stats()
	logger.Info("event queue stopped",
		"delivered", stats.Delivered, "failed", stats.Failed, "dropped", stats.Dropped, "rejected", stats.Rejected)
	return nil
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// DotCmd prints the demo chart in Graphviz DOT format
type DotCmd struct {
	Rankdir      string `default:"TB" enum:"TB,LR,BT,RL" help:"Graph direction."`
	Pseudostates bool   `default:"true" negatable:"" help:"Draw start, history and junction states."`
	Labels       bool   `default:"true" negatable:"" help:"Show guards and actions on transitions."`
}

// Run renders the chart
func (d *DotCmd) Run(g *Globals) error {
	chart, err := cartChart(observers.NewLineTracer(nil), 3, 50*time.Millisecond)
	if err != nil {
		return err
	}

	options := visualization.DefaultDOTOptions()
	options.RankDirection = d.Rankdir
	options.ShowPseudostates = d.Pseudostates
	options.ShowGuardConditions = d.Labels
	options.ShowActions = d.Labels

	dot, err := visualization.NewDOTGenerator(chart, options).Generate()
	if err != nil {
		return err
	}
	_, err = io.WriteString(g.out, dot)
	return err
}

// ConfigCmd prints the effective configuration
type ConfigCmd struct{}

// Run prints the configuration as YAML
func (c *ConfigCmd) Run(g *Globals) error {
	cfg, err := g.load()
	if err != nil {
		return err
	}
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = g.out.Write(data)
	return err
}

// CLI is the command line of the statechart binary
type CLI struct {
	Globals

	Run  RunCmd    `cmd:"" help:"Run the demo chart through the event queue."`
	Dot  DotCmd    `cmd:"" help:"Print the demo chart as Graphviz DOT."`
	Show ConfigCmd `cmd:"" name:"config" help:"Print the effective configuration."`
}

func newParser(cli *CLI, opts ...kong.Option) (*kong.Kong, error) {
	opts = append([]kong.Option{
		kong.Name("statechart"),
		kong.Description("Hierarchical and concurrent statechart interpreter."),
		kong.UsageOnError(),
	}, opts...)
	return kong.New(cli, opts...)
}

func execute(ctx context.Context, args []string, out io.Writer) error {
	cli := &CLI{Globals: Globals{out: out}}
	parser, err := newParser(cli, kong.Writers(out, out))
	if err != nil {
		return err
	}

	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}
	kctx.BindTo(ctx, (*context.Context)(nil))
	return kctx.Run(&cli.Globals)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := execute(ctx, os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "statechart:", strings.TrimSpace(err.Error()))
		stop()
		os.Exit(1)
	}
}

// Command chordshift transposes chord charts between instruments and keys.
// It transposes single chords, lines and whole charts, manages the
// instrument/key catalog and serves the REST API.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/chordshift/core/shift"
	"github.com/FocuswithJustin/chordshift/core/sqlite"
	"github.com/FocuswithJustin/chordshift/core/transpose"
	"github.com/FocuswithJustin/chordshift/internal/api"
	"github.com/FocuswithJustin/chordshift/internal/archive"
	"github.com/FocuswithJustin/chordshift/internal/catalog"
	"github.com/FocuswithJustin/chordshift/internal/chart"
	"github.com/FocuswithJustin/chordshift/internal/logging"
	"github.com/FocuswithJustin/chordshift/internal/server"
)

const version = "0.1.0"

// Globals are flags shared by every command.
type Globals struct {
	LogLevel  string `name:"log-level" help:"Log level" default:"info" enum:"debug,info,warn,error" env:"CHORDSHIFT_LOG_LEVEL"`
	LogFormat string `name:"log-format" help:"Log format" default:"text" enum:"text,json" env:"CHORDSHIFT_LOG_FORMAT"`
	Catalog   string `name:"catalog" help:"SQLite catalog file (default: built-in catalog)" type:"path" env:"CHORDSHIFT_CATALOG"`
}

// loadCatalog returns the configured catalog.
func (g *Globals) loadCatalog(ctx context.Context) (*catalog.Catalog, error) {
	if g.Catalog == "" {
		return catalog.Default(), nil
	}
	return catalog.LoadSQLite(ctx, g.Catalog)
}

// Env carries the process streams and lifetime into commands.
type Env struct {
	Ctx    context.Context
	Stdin  io.Reader
	Stdout io.Writer
	Stderr io.Writer
}

// CLI defines the command-line interface for chordshift.
type CLI struct {
	Globals

	Entry       EntryCmd       `cmd:"" help:"Transpose a single chord or note"`
	Line        LineCmd        `cmd:"" help:"Transpose one line of text"`
	Chart       ChartCmd       `cmd:"" help:"Transpose a chart file (.txt or .txt.xz) or stdin"`
	Instruments InstrumentsCmd `cmd:"" help:"List instrument profiles"`
	Keys        KeysCmd        `cmd:"" help:"List concert keys"`
	CatalogCmd  CatalogGroup   `cmd:"" name:"catalog" help:"Catalog operations"`
	Serve       ServeCmd       `cmd:"" help:"Start REST API server"`
	Version     VersionCmd     `cmd:"" help:"Print version information"`
}

// Selection picks the transposition. --shift wins over the other flags.
type Selection struct {
	Shift     string `short:"s" help:"Shift expression, e.g. \"Bb -> Eb\", \"key C to D\" or \"+3 flats\""`
	Mode      string `help:"Selection mode when --shift is not given" enum:"instruments,keys,offset" default:"instruments"`
	From      string `short:"f" help:"Origin instrument or key"`
	To        string `short:"t" help:"Target instrument or key"`
	Semitones int    `help:"Semitone offset for --mode=offset"`
	Flats     bool   `help:"Prefer flats for --mode=offset"`
	Notation  string `short:"n" help:"Accidental spelling" enum:"auto,sharps,flats" default:"auto"`
}

// expr converts the flags into a shift expression.
func (s *Selection) expr() (*shift.Expr, error) {
	if s.Shift != "" {
		return shift.Parse(s.Shift)
	}
	switch s.Mode {
	case "keys":
		return &shift.Expr{Kind: shift.Keys, From: s.From, To: s.To}, nil
	case "offset":
		return &shift.Expr{Kind: shift.Offset, Semitones: s.Semitones, PreferFlats: s.Flats}, nil
	}
	return &shift.Expr{Kind: shift.Instruments, From: s.From, To: s.To}, nil
}

// request resolves the selection against the configured catalog.
func (s *Selection) request(ctx context.Context, g *Globals) (transpose.Request, *shift.Expr, error) {
	notation, err := transpose.ParseNotation(s.Notation)
	if err != nil {
		return transpose.Request{}, nil, err
	}
	expr, err := s.expr()
	if err != nil {
		return transpose.Request{}, nil, err
	}
	cat, err := g.loadCatalog(ctx)
	if err != nil {
		return transpose.Request{}, nil, err
	}
	req, err := cat.Resolve(expr, notation)
	return req, expr, err
}

// EntryCmd transposes a single token.
type EntryCmd struct {
	Selection
	Token string `arg:"" help:"Chord or note, e.g. C#7sus4"`
}

func (c *EntryCmd) Run(g *Globals, env *Env) error {
	req, expr, err := c.request(env.Ctx, g)
	if err != nil {
		return err
	}
	logging.Transposition(env.Ctx, expr.Kind.String(), req.Semitones, string(req.Notation), 1)
	fmt.Fprintln(env.Stdout, req.Entry(c.Token))
	return nil
}

// LineCmd transposes one line.
type LineCmd struct {
	Selection
	Text []string `arg:"" help:"Line to transpose (multiple arguments are joined with spaces)"`
}

func (c *LineCmd) Run(g *Globals, env *Env) error {
	req, expr, err := c.request(env.Ctx, g)
	if err != nil {
		return err
	}
	logging.Transposition(env.Ctx, expr.Kind.String(), req.Semitones, string(req.Notation), 1)
	fmt.Fprintln(env.Stdout, req.Line(strings.Join(c.Text, " ")))
	return nil
}

// ChartCmd transposes a whole chart.
type ChartCmd struct {
	Selection
	Input             string `arg:"" optional:"" help:"Chart file (.txt or .txt.xz); stdin when omitted or -"`
	Output            string `short:"o" help:"Output file; .xz compresses; stdout when omitted" type:"path"`
	ParallelThreshold int    `help:"Line count above which lines are transposed in parallel (negative disables)" default:"2000"`
	Workers           int    `help:"Worker count for parallel transposition (0 = one per CPU)"`
}

func (c *ChartCmd) Run(g *Globals, env *Env) error {
	req, expr, err := c.request(env.Ctx, g)
	if err != nil {
		return err
	}

	var text string
	if c.Input == "" || c.Input == "-" {
		text, err = archive.DecodeChart(env.Stdin)
	} else {
		text, err = archive.ReadChart(c.Input)
	}
	if err != nil {
		return err
	}

	t := &chart.Transposer{ParallelThreshold: c.ParallelThreshold, Workers: c.Workers}
	res, err := t.Transpose(env.Ctx, text, req)
	if err != nil {
		return err
	}
	logging.Transposition(env.Ctx, expr.Kind.String(), req.Semitones, string(req.Notation), res.Lines,
		"tokens", res.Tokens, "input", c.Input)

	if c.Output == "" {
		_, err = io.WriteString(env.Stdout, res.Text)
		return err
	}
	if err := archive.WriteChart(c.Output, res.Text, true); err != nil {
		return err
	}
	logging.Info("chart written", "path", c.Output, "lines", res.Lines)
	return nil
}

// InstrumentsCmd lists instrument profiles.
type InstrumentsCmd struct {
	JSON bool `help:"Output JSON"`
}

func (c *InstrumentsCmd) Run(g *Globals, env *Env) error {
	cat, err := g.loadCatalog(env.Ctx)
	if err != nil {
		return err
	}
	instruments := cat.Instruments()
	if c.JSON {
		return writeJSON(env.Stdout, instruments)
	}

	tw := tabwriter.NewWriter(env.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEMITONES\tSPELLING\tLABEL")
	for _, inst := range instruments {
		fmt.Fprintf(tw, "%s\t%+d\t%s\t%s\n", inst.ID, inst.Semitones, spelling(inst.PrefersFlats), inst.Label)
	}
	return tw.Flush()
}

// KeysCmd lists concert keys.
type KeysCmd struct {
	JSON bool `help:"Output JSON"`
}

func (c *KeysCmd) Run(g *Globals, env *Env) error {
	cat, err := g.loadCatalog(env.Ctx)
	if err != nil {
		return err
	}
	keys := cat.Keys()
	if c.JSON {
		return writeJSON(env.Stdout, keys)
	}

	tw := tabwriter.NewWriter(env.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "KEY\tSEMITONES\tSPELLING")
	for _, k := range keys {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", k.Name, k.Semitones, spelling(k.PrefersFlats))
	}
	return tw.Flush()
}

// CatalogGroup contains catalog operations.
type CatalogGroup struct {
	Export CatalogExportCmd `cmd:"" help:"Write the active catalog to a SQLite file"`
}

// CatalogExportCmd writes the catalog to SQLite.
type CatalogExportCmd struct {
	Path string `arg:"" help:"Destination SQLite file" type:"path"`
}

func (c *CatalogExportCmd) Run(g *Globals, env *Env) error {
	cat, err := g.loadCatalog(env.Ctx)
	if err != nil {
		return err
	}
	if err := catalog.SaveSQLite(env.Ctx, c.Path, cat); err != nil {
		return err
	}
	fmt.Fprintf(env.Stdout, "Exported %d instruments and %d keys to %s\n",
		len(cat.Instruments()), len(cat.Keys()), c.Path)
	return nil
}

// ServeCmd starts the REST API server.
type ServeCmd struct {
	Port              int           `help:"HTTP server port" default:"8080" env:"CHORDSHIFT_PORT"`
	RateLimit         int           `help:"Requests per minute per client (0 disables)" default:"120" env:"CHORDSHIFT_RATE_LIMIT"`
	RateBurst         int           `help:"Rate limit burst size" default:"20" env:"CHORDSHIFT_RATE_BURST"`
	AllowedOrigins    string        `help:"Comma-separated CORS/WebSocket origins (empty allows all)" env:"CHORDSHIFT_ALLOWED_ORIGINS"`
	TLSCert           string        `name:"tls-cert" help:"TLS certificate file" type:"path" env:"CHORDSHIFT_TLS_CERT"`
	TLSKey            string        `name:"tls-key" help:"TLS private key file" type:"path" env:"CHORDSHIFT_TLS_KEY"`
	CacheTTL          time.Duration `help:"Result cache lifetime (0 disables)" default:"10m" env:"CHORDSHIFT_CACHE_TTL"`
	CacheEntries      int           `help:"Maximum cached results" default:"512" env:"CHORDSHIFT_CACHE_ENTRIES"`
	ParallelThreshold int           `help:"Line count above which charts are transposed in parallel" default:"2000" env:"CHORDSHIFT_PARALLEL_THRESHOLD"`
	Workers           int           `help:"Worker count for parallel transposition (0 = one per CPU)" env:"CHORDSHIFT_WORKERS"`
	WSMessageRate     int           `name:"ws-message-rate" help:"WebSocket messages per second per client" default:"10" env:"CHORDSHIFT_WS_MESSAGE_RATE"`
}

// config builds the API configuration from flags.
func (c *ServeCmd) config() api.Config {
	return api.Config{
		Port:              c.Port,
		Version:           version,
		RateLimitRequests: c.RateLimit,
		RateLimitBurst:    c.RateBurst,
		AllowedOrigins:    server.ParseOrigins(c.AllowedOrigins),
		TLS: api.TLSConfig{
			Enabled:  c.TLSCert != "" || c.TLSKey != "",
			CertFile: c.TLSCert,
			KeyFile:  c.TLSKey,
		},
		CacheTTL:          c.CacheTTL,
		CacheEntries:      c.CacheEntries,
		ParallelThreshold: c.ParallelThreshold,
		Workers:           c.Workers,
		WSMessageRate:     c.WSMessageRate,
	}
}

func (c *ServeCmd) Run(g *Globals, env *Env) error {
	cat, err := g.loadCatalog(env.Ctx)
	if err != nil {
		return err
	}
	return api.Start(env.Ctx, c.config(), cat)
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run(env *Env) error {
	info := sqlite.GetInfo()
	fmt.Fprintf(env.Stdout, "chordshift version %s (sqlite: %s, %s)\n", version, info.DriverType, info.Package)
	return nil
}

func spelling(prefersFlats bool) string {
	if prefersFlats {
		return "flats"
	}
	return "sharps"
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// newParser builds the kong parser for cli.
func newParser(cli *CLI, options ...kong.Option) (*kong.Kong, error) {
	options = append([]kong.Option{
		kong.Name("chordshift"),
		kong.Description("chordshift - transpose chord charts between instruments and keys"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	}, options...)
	return kong.New(cli, options...)
}

// run parses args with parser, which must have been built for cli, and
// executes the selected command.
func run(ctx context.Context, parser *kong.Kong, cli *CLI, args []string, env *Env) error {
	kctx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	level, err := logging.ParseLevel(cli.LogLevel)
	if err != nil {
		return err
	}
	format, err := logging.ParseFormat(cli.LogFormat)
	if err != nil {
		return err
	}
	logging.InitLoggerWriter(env.Stderr, level, format)

	env.Ctx = ctx
	return kctx.Run(&cli.Globals, env)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var cli CLI
	parser, err := newParser(&cli)
	if err != nil {
		panic(err)
	}
	env := &Env{Stdin: os.Stdin, Stdout: os.Stdout, Stderr: os.Stderr}
	err = run(ctx, parser, &cli, os.Args[1:], env)
	parser.FatalIfErrorf(err)
}

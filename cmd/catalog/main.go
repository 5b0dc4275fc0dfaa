// Command catalog manages the product catalogue from a terminal.
//
//	catalog [-config FILE] [-v] list
//	catalog show CODE
//	catalog create -code C -name N -price P [-available] [-image PATH]
//	catalog update -code C [-name N] [-price P] [-available=BOOL] [-image PATH | -no-image]
//	catalog delete [-yes] CODE
//	catalog image -out FILE CODE
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"

	"github.com/go-faster/errors"
	"go.uber.org/zap"

	"github.com/xenking/productos/internal/app"
	"github.com/xenking/productos/internal/catalog"
	"github.com/xenking/productos/internal/storage/postgres"
	"github.com/xenking/productos/internal/terminal"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	os.Exit(run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// errUsage is returned for malformed command lines.
var errUsage = errors.New("usage")

type cli struct {
	ctrl    *catalog.Controller
	view    *terminal.View
	stdout  io.Writer
	stderr  io.Writer
	lg      *zap.Logger
	writeTo func(path string, data []byte) error
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	global := flag.NewFlagSet("catalog", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { usage(stderr) }
	var (
		configFile string
		verbose    bool
	)
	global.StringVar(&configFile, "config", "", "path to YAML config file")
	global.BoolVar(&verbose, "v", false, "verbose logging")
	if err := global.Parse(args); err != nil {
		return exitUsage
	}
	if global.NArg() == 0 {
		usage(stderr)
		return exitUsage
	}

	lg := app.NewCLILogger(verbose)
	defer func() { _ = lg.Sync() }()

	opts := app.LoadOptions{}
	if configFile != "" {
		opts.Files = []string{configFile}
	}
	cfg, err := app.LoadConfig(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Configuration error: %v\n", err)
		return exitError
	}

	provider := postgres.NewProvider(cfg.Database, lg.Named("postgres"))
	defer provider.Close()

	view := terminal.New(stdout, stderr, stdin)
	c := &cli{
		view:   view,
		stdout: stdout,
		stderr: stderr,
		lg:     lg,
		writeTo: func(path string, data []byte) error {
			return os.WriteFile(path, data, 0o644)
		},
	}
	c.ctrl = catalog.NewController(postgres.NewProductRepository(provider, postgres.WithLogger(lg.Named("products"))), view, view, lg)

	return c.exec(ctx, global.Arg(0), global.Args()[1:])
}

func (c *cli) exec(ctx context.Context, cmd string, args []string) int {
	var err error
	switch cmd {
	case "list":
		err = c.ctrl.Load(ctx)
	case "show":
		err = c.show(ctx, args)
	case "create":
		err = c.create(ctx, args)
	case "update":
		err = c.update(ctx, args)
	case "delete":
		err = c.delete(ctx, args)
	case "image":
		err = c.image(ctx, args)
	default:
		fmt.Fprintf(c.stderr, "unknown command %q\n", cmd)
		usage(c.stderr)
		return exitUsage
	}

	switch {
	case err == nil:
		return exitOK
	case errors.Is(err, errUsage):
		return exitUsage
	case errors.Is(err, catalog.ErrCancelled):
		fmt.Fprintln(c.stdout, "Cancelled.")
		return exitError
	default:
		// The controller has already reported the failure through the view.
		c.lg.Debug("Command failed", zap.String("command", cmd), zap.Error(err))
		return exitError
	}
}

func (c *cli) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.stderr)
	return fs
}

// parse reports flag errors as usage errors; the flag package has already
// printed them.
func parse(fs *flag.FlagSet, args []string) error {
	if err := fs.Parse(args); err != nil {
		return errors.Wrap(errUsage, err.Error())
	}
	return nil
}

func (c *cli) oneCode(fs *flag.FlagSet, args []string) (string, error) {
	if err := parse(fs, args); err != nil {
		return "", err
	}
	if fs.NArg() != 1 {
		fmt.Fprintf(c.stderr, "%s: expected exactly one product code\n", fs.Name())
		return "", errUsage
	}
	return fs.Arg(0), nil
}

func (c *cli) show(ctx context.Context, args []string) error {
	code, err := c.oneCode(c.flagSet("show"), args)
	if err != nil {
		return err
	}
	return c.ctrl.Select(ctx, code)
}

type productFlags struct {
	fs      *flag.FlagSet
	form    catalog.Form
	image   string
	noImage bool
}

func (c *cli) productFlags(name string, withNoImage bool) *productFlags {
	pf := &productFlags{fs: c.flagSet(name)}
	pf.fs.StringVar(&pf.form.Code, "code", "", "product code")
	pf.fs.StringVar(&pf.form.Name, "name", "", "product name")
	pf.fs.StringVar(&pf.form.Price, "price", "", "unit price, e.g. 12.50")
	pf.fs.BoolVar(&pf.form.Available, "available", false, "product is available")
	pf.fs.StringVar(&pf.image, "image", "", "path to an image file")
	if withNoImage {
		pf.fs.BoolVar(&pf.noImage, "no-image", false, "remove the stored image")
	}
	return pf
}

func (pf *productFlags) set() map[string]bool {
	set := make(map[string]bool)
	pf.fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	return set
}

func (c *cli) create(ctx context.Context, args []string) error {
	pf := c.productFlags("create", false)
	if err := parse(pf.fs, args); err != nil {
		return err
	}
	if pf.image != "" {
		if err := c.ctrl.SelectImage(pf.image); err != nil {
			return err
		}
	}
	if err := c.ctrl.Create(ctx, pf.form); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Product %s created.\n", pf.form.Code)
	return nil
}

// update selects the product first so that flags left out keep their
// stored values.
func (c *cli) update(ctx context.Context, args []string) error {
	pf := c.productFlags("update", true)
	if err := parse(pf.fs, args); err != nil {
		return err
	}
	if pf.form.Code == "" && pf.fs.NArg() == 1 {
		pf.form.Code = pf.fs.Arg(0)
	}
	if pf.form.Code == "" {
		fmt.Fprintln(c.stderr, "update: -code is required")
		return errUsage
	}
	if pf.image != "" && pf.noImage {
		fmt.Fprintln(c.stderr, "update: -image and -no-image are mutually exclusive")
		return errUsage
	}

	if err := c.ctrl.Select(ctx, pf.form.Code); err != nil {
		return err
	}
	current, _ := c.ctrl.Selected()
	set := pf.set()
	if !set["name"] {
		pf.form.Name = current.Name
	}
	if !set["price"] {
		pf.form.Price = strconv.FormatFloat(float64(current.Price), 'f', -1, 32)
	}
	if !set["available"] {
		pf.form.Available = current.Available
	}

	switch {
	case pf.noImage:
		c.ctrl.RemoveImage()
	case pf.image != "":
		if err := c.ctrl.SelectImage(pf.image); err != nil {
			return err
		}
	}
	if err := c.ctrl.Update(ctx, pf.form); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Product %s updated.\n", pf.form.Code)
	return nil
}

func (c *cli) delete(ctx context.Context, args []string) error {
	fs := c.flagSet("delete")
	fs.BoolVar(&c.view.AssumeYes, "yes", false, "do not ask for confirmation")
	code, err := c.oneCode(fs, args)
	if err != nil {
		return err
	}
	if err := c.ctrl.Delete(ctx, code); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "Product %s deleted.\n", code)
	return nil
}

func (c *cli) image(ctx context.Context, args []string) error {
	fs := c.flagSet("image")
	var out string
	fs.StringVar(&out, "out", "", "file to write the image to")
	code, err := c.oneCode(fs, args)
	if err != nil {
		return err
	}
	if out == "" {
		fmt.Fprintln(c.stderr, "image: -out is required")
		return errUsage
	}

	data, err := c.ctrl.Image(ctx, code)
	if err != nil {
		return err
	}
	if err := c.writeTo(out, data); err != nil {
		c.view.ShowError("Error saving image", err.Error())
		return errors.Wrap(err, "write image")
	}
	fmt.Fprintf(c.stdout, "Wrote %d bytes to %s.\n", len(data), out)
	return nil
}

func usage(w io.Writer) {
	fmt.Fprint(w, `Usage: catalog [-config FILE] [-v] COMMAND [ARGS]

Commands:
  list                              list all products
  show CODE                         show one product
  create -code C -name N -price P   create a product [-available] [-image PATH]
  update -code C                    update a product [-name N] [-price P]
                                    [-available=BOOL] [-image PATH | -no-image]
  delete [-yes] CODE                delete a product
  image -out FILE CODE              save the product image to FILE

Database settings come from catalog.yaml, CATALOG_DATABASE_* or PG* variables.
`)
}

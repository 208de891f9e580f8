package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"
	"gopkg.in/yaml.v3"

	"github.com/Runemoro/knit/internal/errors"
	"github.com/Runemoro/knit/internal/mcp"
	"github.com/Runemoro/knit/internal/ops"
	"github.com/Runemoro/knit/internal/web"
)

// maxCommentBytes limits comment text read from stdin.
const maxCommentBytes = 1 << 20

// newCLIApp creates the CLI application with all commands. gatherer backs
// the web server's /metrics endpoint and may be nil.
func newCLIApp(env *ops.Env, gatherer prometheus.Gatherer) *cli.App {
	app := &cli.App{
		Name:    "knit",
		Usage:   "Edit Enigma-style deobfuscation mappings",
		Version: Version,
		Commands: []*cli.Command{
			showCmd(env),
			listCmd(env),
			renameCmd(env),
			packageCmd(env),
			undoCmd(env),
			historyCmd(env),
			commentCmd(env),
			describeCmd(env),
			methodCmd(env),
			checkCmd(env),
			exportCmd(env),
			serveCmd(env),
			webCmd(env, gatherer),
		},
	}
	// Disable default exit error handler to allow proper error return in tests
	app.ExitErrHandler = func(_ *cli.Context, _ error) {}
	return app
}

// refFlags address one entity; see ops.RefInput.
func refFlags(extra ...cli.Flag) []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{Name: "kind", Aliases: []string{"k"}, Value: "class", Usage: "Entity kind: class|field|method|local"},
		&cli.StringFlag{Name: "class", Aliases: []string{"c"}, Usage: "Current name of the root class ($ suffixes address nested classes)", Required: true},
		&cli.StringSliceFlag{Name: "nested", Usage: "Nested class names, outermost first"},
		&cli.StringFlag{Name: "member", Aliases: []string{"m"}, Usage: "Current field or method name"},
		&cli.StringFlag{Name: "descriptor", Aliases: []string{"d"}, Usage: "Obfuscated descriptor of the field or method"},
		&cli.StringFlag{Name: "type", Aliases: []string{"t"}, Usage: "Field type in current names (instead of --descriptor)"},
		&cli.StringFlag{Name: "params", Aliases: []string{"p"}, Usage: "Comma-separated method parameter types in current names (instead of --descriptor)"},
		&cli.StringFlag{Name: "return", Aliases: []string{"r"}, Usage: "Method return type in current names (default: void)"},
		&cli.IntFlag{Name: "index", Aliases: []string{"i"}, Usage: "Local variable slot"},
		&cli.IntFlag{Name: "param", Usage: "Parameter position, converted to a local variable slot"},
		&cli.BoolFlag{Name: "static", Usage: "Method is static"},
	}, extra...)
}

// refInput builds the ref the flags from refFlags describe.
func refInput(c *cli.Context) ops.RefInput {
	ref := ops.RefInput{
		Kind:       c.String("kind"),
		Class:      c.String("class"),
		Nested:     c.StringSlice("nested"),
		Member:     c.String("member"),
		Descriptor: c.String("descriptor"),
		Type:       c.String("type"),
		Params:     parseList(c.String("params")),
		Return:     c.String("return"),
		Index:      c.Int("index"),
		Static:     c.Bool("static"),
	}
	if c.IsSet("param") {
		p := c.Int("param")
		ref.Param = &p
	}
	return ref
}

// showCmd creates the show command.
func showCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "show",
		Usage:     "Show the mapping of a class",
		ArgsUsage: "<class>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Output format: text|json|yaml"},
		},
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("show takes exactly one class name"))
			}

			output, err := ops.Show(env, ops.ShowInput{Class: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			w := c.App.Writer
			switch c.String("format") {
			case "json":
				return outputJSON(w, output)
			case "yaml":
				return outputYAML(w, output)
			case "text":
				writeClassText(w, output.Class, 0)
				return nil
			default:
				return outputError(errors.NewInvalidRequest("format must be text, json or yaml"))
			}
		},
	}
}

// listCmd creates the list command.
func listCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "list",
		Usage: "List mapped root classes",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "pattern", Usage: "Glob over current or obfuscated names, e.g. net/**"},
			&cli.BoolFlag{Name: "unmapped", Usage: "Only classes whose name still looks obfuscated"},
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Value: ops.DefaultListLimit, Usage: "Maximum results"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Pagination offset"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.List(env, ops.ListInput{
				Pattern:      c.String("pattern"),
				UnmappedOnly: c.Bool("unmapped"),
				Limit:        c.Int("limit"),
				Offset:       c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// renameCmd creates the rename command.
func renameCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "rename",
		Usage:     "Rename a class, field, method or local variable",
		ArgsUsage: "<new-name>",
		Flags: refFlags(
			&cli.BoolFlag{Name: "dry-run", Aliases: []string{"n"}, Usage: "Print the unified diff of the mapping file without writing"},
		),
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("rename takes exactly one new name"))
			}

			output, err := ops.Rename(env, ops.RenameInput{
				Ref:     refInput(c),
				NewName: c.Args().First(),
				DryRun:  c.Bool("dry-run"),
			})
			if err != nil {
				return outputError(err)
			}

			if output.DryRun {
				_, err := io.WriteString(c.App.Writer, output.Diff)
				return err
			}
			return outputJSON(c.App.Writer, output)
		},
	}
}

// packageCmd creates the package command.
func packageCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "package",
		Usage:     "Move every root class of a package to another package",
		ArgsUsage: "<from> [to]",
		Action: func(c *cli.Context) error {
			if c.NArg() < 1 || c.NArg() > 2 {
				return outputError(errors.NewInvalidRequest("package takes a source and an optional target package"))
			}

			output, err := ops.RenamePackage(env, ops.RenamePackageInput{
				From: c.Args().Get(0),
				To:   c.Args().Get(1),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// undoCmd creates the undo command.
func undoCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "undo",
		Usage: "Revert the most recent rename or package move",
		Action: func(c *cli.Context) error {
			output, err := ops.Undo(env)
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// historyCmd creates the history command.
func historyCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "List journaled renames, newest first",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "limit", Aliases: []string{"l"}, Usage: "Maximum results (default: history_limit)"},
			&cli.IntFlag{Name: "offset", Aliases: []string{"o"}, Usage: "Pagination offset"},
			&cli.StringFlag{Name: "format", Aliases: []string{"f"}, Value: "text", Usage: "Output format: text|json"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.History(env, ops.HistoryInput{
				Limit:  c.Int("limit"),
				Offset: c.Int("offset"),
			})
			if err != nil {
				return outputError(err)
			}

			if c.String("format") == "json" {
				return outputJSON(c.App.Writer, output)
			}
			for _, e := range output.Items {
				fmt.Fprintln(c.App.Writer, ops.FormatEntry(e))
			}
			return nil
		},
	}
}

// commentCmd creates the comment command.
func commentCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "comment",
		Usage:     "Replace the documentation of an entity (text from the argument or stdin, empty clears it)",
		ArgsUsage: "[text]",
		Flags:     refFlags(),
		Action: func(c *cli.Context) error {
			text := strings.Join(c.Args().Slice(), " ")
			if c.NArg() == 0 && stdinHasData() {
				var err error
				text, err = readStdin(maxCommentBytes)
				if err != nil {
					return outputError(errors.NewInvalidRequest(err.Error()))
				}
			}

			output, err := ops.Comment(env, ops.CommentInput{
				Ref:   refInput(c),
				Lines: ops.SplitComment(text),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// describeCmd creates the describe command.
func describeCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "describe",
		Usage:     "Print the obfuscated descriptor of a type",
		ArgsUsage: "<type>",
		Action: func(c *cli.Context) error {
			if c.NArg() != 1 {
				return outputError(errors.NewInvalidRequest("describe takes exactly one type"))
			}

			output, err := ops.Describe(env, ops.DescribeInput{Type: c.Args().First()})
			if err != nil {
				return outputError(err)
			}

			fmt.Fprintln(c.App.Writer, output.Descriptor)
			return nil
		},
	}
}

// methodCmd creates the method command.
func methodCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:      "method",
		Usage:     "Print the obfuscated descriptor and parameter slots of a method signature",
		ArgsUsage: "[param-type...]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "return", Aliases: []string{"r"}, Usage: "Return type in current names (default: void)"},
			&cli.BoolFlag{Name: "static", Usage: "Method is static"},
			&cli.BoolFlag{Name: "constructor", Usage: "Method is a constructor"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Method(env, ops.MethodInput{
				Params:      c.Args().Slice(),
				Return:      c.String("return"),
				Static:      c.Bool("static"),
				Constructor: c.Bool("constructor"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// checkCmd creates the check command.
func checkCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "Report malformed or misplaced mapping files",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "Directory to check (default: the mapping directory)"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Check(c.Context, env, ops.CheckInput{Dir: c.String("dir")})
			if err != nil {
				return outputError(err)
			}

			for _, issue := range output.Issues {
				if issue.Line > 0 {
					fmt.Fprintf(c.App.Writer, "%s:%d: %s\n", issue.File, issue.Line, issue.Message)
				} else {
					fmt.Fprintf(c.App.Writer, "%s: %s\n", issue.File, issue.Message)
				}
			}
			if !output.OK() {
				return cli.Exit(fmt.Sprintf("%d of %d files have issues", len(output.Issues), output.Files), 1)
			}
			fmt.Fprintf(c.App.Writer, "%d files ok\n", output.Files)
			return nil
		},
	}
}

// exportCmd creates the export command.
func exportCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "export",
		Usage: "Copy all mapping files into another directory",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "path", Usage: "Target directory (default: ~/.knit/exports/mappings-<timestamp>)"},
			&cli.BoolFlag{Name: "overwrite", Usage: "Replace an existing directory that holds only mapping files"},
		},
		Action: func(c *cli.Context) error {
			output, err := ops.Export(c.Context, env, ops.ExportInput{
				Path:      c.String("path"),
				Overwrite: c.Bool("overwrite"),
			})
			if err != nil {
				return outputError(err)
			}

			return outputJSON(c.App.Writer, output)
		},
	}
}

// serveCmd creates the serve command.
func serveCmd(env *ops.Env) *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the MCP server on stdio",
		Action: func(c *cli.Context) error {
			return mcp.Run(env, Version)
		},
	}
}

// webCmd creates the web command.
func webCmd(env *ops.Env, gatherer prometheus.Gatherer) *cli.Command {
	return &cli.Command{
		Name:  "web",
		Usage: "Run the mapping browser",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "bind", Value: "127.0.0.1", Usage: "Address to bind"},
			&cli.IntFlag{Name: "port", Value: 8650, Usage: "Port to listen on"},
		},
		Action: func(c *cli.Context) error {
			return web.Run(web.NewServer(env, gatherer, Version, c.String("bind"), c.Int("port")))
		},
	}
}

// Helper functions

// outputJSON marshals result to w as JSON.
func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputYAML marshals result to w as YAML.
func outputYAML(w io.Writer, v any) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(v); err != nil {
		return err
	}
	return enc.Close()
}

// writeClassText prints a class view as an indented outline. Names that still
// look obfuscated are marked with an asterisk.
func writeClassText(w io.Writer, v ops.ClassView, depth int) {
	indent := strings.Repeat("  ", depth)
	fmt.Fprintf(w, "%sclass %s%s (%s)\n", indent, v.Name, mark(v.Unmapped), v.Obfuscated)
	writeComments(w, indent+"  ", v.Comments)

	for _, f := range v.Fields {
		fmt.Fprintf(w, "%s  field %s%s %s (%s)\n", indent, f.Name, mark(f.Unmapped), f.Descriptor, f.Obfuscated)
		writeComments(w, indent+"    ", f.Comments)
	}
	for _, m := range v.Methods {
		fmt.Fprintf(w, "%s  method %s%s %s (%s)\n", indent, m.Name, mark(m.Unmapped), m.Descriptor, m.Obfuscated)
		writeComments(w, indent+"    ", m.Comments)
		for _, l := range m.Locals {
			fmt.Fprintf(w, "%s    local %d %s\n", indent, l.Index, l.Name)
			writeComments(w, indent+"      ", l.Comments)
		}
	}
	for _, n := range v.Classes {
		writeClassText(w, n, depth+1)
	}
}

func writeComments(w io.Writer, indent string, lines []string) {
	for _, line := range lines {
		fmt.Fprintf(w, "%s// %s\n", indent, line)
	}
}

func mark(unmapped bool) string {
	if unmapped {
		return "*"
	}
	return ""
}

// outputError formats error for CLI.
func outputError(err error) error {
	if knitErr, ok := err.(*errors.KnitError); ok {
		return cli.Exit(fmt.Sprintf("[%s] %s", knitErr.Code, knitErr.Message), 1)
	}
	return cli.Exit(err.Error(), 1)
}

// stdinHasData returns true if stdin has piped data (not a terminal).
func stdinHasData() bool {
	stat, err := os.Stdin.Stat()
	if err != nil {
		return false
	}
	return (stat.Mode() & os.ModeCharDevice) == 0
}

// readStdin reads at most limit bytes from stdin.
func readStdin(limit int64) (string, error) {
	data, err := io.ReadAll(io.LimitReader(os.Stdin, limit+1))
	if err != nil {
		return "", err
	}
	if int64(len(data)) > limit {
		return "", fmt.Errorf("input exceeds %d bytes", limit)
	}
	return string(data), nil
}

// parseList splits a comma-separated string into its trimmed, non-empty parts.
func parseList(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	items := make([]string, 0, len(parts))
	for _, p := range parts {
		if t := strings.TrimSpace(p); t != "" {
			items = append(items, t)
		}
	}
	return items
}

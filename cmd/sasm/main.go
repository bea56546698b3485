// Command sasm assembles SASM source files and prints the result as raw
// bytes, a hex dump, a per-instruction listing or a variable table.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sasmlabs/sasm"
)

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		logrus.Fatal(err)
	}
}

type rootFlags struct {
	externsPath string
	prolog      bool
	cacheDir    string
	verbose     bool
}

func newRootCmd(stdout *os.File) *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "sasm",
		Short:         "assemble SASM programs into flat IA-32 machine code",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			if flags.verbose {
				logrus.SetLevel(logrus.DebugLevel)
			}
		},
	}
	cmd.PersistentFlags().StringVar(&flags.externsPath, "externs", "", "TOML file mapping library symbols to absolute addresses")
	cmd.PersistentFlags().BoolVar(&flags.prolog, "prolog", false, "prepend the host-adapter prolog and frame constants")
	cmd.PersistentFlags().StringVar(&flags.cacheDir, "cache-dir", "", "directory for the assembled-program cache")
	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newBuildCmd(flags, stdout))
	cmd.AddCommand(newListingCmd(flags, stdout))
	cmd.AddCommand(newVarsCmd(flags, stdout))
	return cmd
}

func (f *rootFlags) translate(path string) (*sasm.TranslationUnit, error) {
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	opts := []sasm.Option{
		sasm.WithProlog(f.prolog),
		sasm.WithLogger(logrus.StandardLogger()),
	}
	if f.externsPath != "" {
		resolver, err := loadExternTable(f.externsPath)
		if err != nil {
			return nil, fmt.Errorf("loading extern table: %w", err)
		}
		opts = append(opts, sasm.WithResolver(resolver))
	}
	if f.cacheDir != "" {
		opts = append(opts, sasm.WithCache(f.cacheDir))
	}

	u, err := sasm.NewTranslator(opts...).Translate(string(text))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return u, nil
}

func newBuildCmd(flags *rootFlags, stdout *os.File) *cobra.Command {
	var format string
	var output string

	cmd := &cobra.Command{
		Use:   "build <source file>",
		Short: "assemble a source file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := flags.translate(args[0])
			if err != nil {
				return err
			}

			var rendered []byte
			switch format {
			case "bin":
				rendered = u.Code()
			case "hex":
				rendered = renderHex(u.Code())
			default:
				return fmt.Errorf("unknown format %q, want bin or hex", format)
			}

			if output != "" {
				return os.WriteFile(output, rendered, 0o644)
			}
			_, err = stdout.Write(rendered)
			return err
		},
	}
	cmd.Flags().StringVar(&format, "format", "hex", "output format, one of bin, hex")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to a file instead of stdout")
	return cmd
}

func newListingCmd(flags *rootFlags, stdout *os.File) *cobra.Command {
	return &cobra.Command{
		Use:   "listing <source file>",
		Short: "print the per-instruction offsets, bytes and source text",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := flags.translate(args[0])
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(stdout, u.String())
			return err
		},
	}
}

func newVarsCmd(flags *rootFlags, stdout *os.File) *cobra.Command {
	return &cobra.Command{
		Use:   "vars <source file>",
		Short: "print the variable name to byte offset table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			u, err := flags.translate(args[0])
			if err != nil {
				return err
			}
			offsets := u.VariableOffsets()
			for _, name := range u.Variables() {
				initial := u.InitialVariableBytes()[offsets[name]]
				if _, err := fmt.Fprintf(stdout, "%-24s %#06x  % x\n", name, offsets[name], initial); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func renderHex(code []byte) []byte {
	var out []byte
	for i, b := range code {
		if i > 0 {
			if i%16 == 0 {
				out = append(out, '\n')
			} else {
				out = append(out, ' ')
			}
		}
		out = append(out, fmt.Sprintf("%02x", b)...)
	}
	out = append(out, '\n')
	return out
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/erraggy/oasguard/contract"
	"github.com/erraggy/oasguard/httpvalidator"
	"github.com/erraggy/oasguard/internal/cliutil"
	"github.com/erraggy/oasguard/schema"
)

func newCheckCmd(v *viper.Viper) *cobra.Command {
	return &cobra.Command{
		Use:   "check <contract.yaml>",
		Short: "Compile every operation of a contract document",
		Long: `Load a contract document and compile every operation exactly as the
middleware would at startup. Each contract error is printed on its own line.

Exit Codes:
  0    Every operation compiled
  1    The document is invalid or an operation failed to compile`,
		Example: `  oasguard check contract.yaml
  OASGUARD_VALIDATION_MAX_BODY_SIZE=0 oasguard check contract.yaml`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(v)
			if err != nil {
				return err
			}
			return runCheck(cmd, args[0], settings)
		},
	}
}

func runCheck(cmd *cobra.Command, path string, settings Settings) error {
	out := cmd.OutOrStdout()

	doc, err := contract.LoadFile(path)
	if err != nil {
		cliutil.Writef(out, "%s: %v\n", path, err)
		return err
	}

	compiled, err := httpvalidator.Compile(doc,
		httpvalidator.WithSettings(settings.Validation),
		httpvalidator.WithRegistry(schema.NewRegistry()),
	)
	if err != nil {
		n := cliutil.WriteErrors(out, path, err)
		return fmt.Errorf("%d of %d operation(s) failed to compile", n, len(doc.Operations))
	}

	for _, m := range compiled {
		op := m.Operation()
		cliutil.Writef(out, "ok  %-7s %s\n", op.Method, op.Path)
	}
	cliutil.Writef(out, "%s: %d operation(s), %d schema(s)\n", path, len(compiled), len(doc.Schemas))
	return nil
}

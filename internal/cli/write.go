package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/flexinfer/nemsgen/internal/dataflow"
	"github.com/flexinfer/nemsgen/pkg/nems"
)

func (a *app) writeCmd() *cobra.Command {
	var (
		output         string
		backend        string
		overwrite      bool
		includeVersion bool
		noAtmNamelist  bool
		presign        time.Duration
	)

	cmd := &cobra.Command{
		Use:   "write MANIFEST",
		Short: "Write the configuration files to a directory or bucket",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			flags := cmd.Flags()
			if flags.Changed("output") {
				a.cfg.OutputDir = output
			}
			if flags.Changed("backend") {
				a.cfg.Backend = backend
			}
			if flags.Changed("overwrite") {
				a.cfg.Overwrite = overwrite
			}
			if flags.Changed("include-version") {
				a.cfg.IncludeVersion = includeVersion
			}
			if flags.Changed("no-atm-namelist") {
				a.cfg.AtmNamelist = !noAtmNamelist
			}
			if flags.Changed("presign") {
				a.cfg.PresignExpiry = presign
			}
			if flags.Changed("output") && a.cfg.Backend != "local" && a.cfg.Backend != "" {
				return fmt.Errorf("--output only applies to the local backend, not %q", a.cfg.Backend)
			}

			sys, err := a.build(ctx, args[0])
			if err != nil {
				return err
			}

			svc, err := dataflow.New(&dataflow.Config{
				Type:            a.cfg.Backend,
				Directory:       a.cfg.OutputDir,
				Endpoint:        a.cfg.S3Endpoint,
				Bucket:          a.cfg.S3Bucket,
				Region:          a.cfg.S3Region,
				AccessKeyID:     a.cfg.S3AccessKeyID,
				SecretAccessKey: a.cfg.S3SecretAccessKey,
				UseSSL:          a.cfg.S3UseSSL,
				PathPrefix:      a.cfg.S3Prefix,
				Logger:          a.logger,
			})
			if err != nil {
				return err
			}

			written, err := sys.Write(ctx, svc, nems.WriteOptions{
				Overwrite:       a.cfg.Overwrite,
				IncludeVersion:  a.cfg.IncludeVersion,
				Version:         Version,
				SkipAtmNamelist: !a.cfg.AtmNamelist,
			})
			out := cmd.OutOrStdout()
			for _, loc := range written {
				fmt.Fprintln(out, loc)
			}
			if err != nil {
				return err
			}

			if a.cfg.PresignExpiry <= 0 {
				return nil
			}
			downloads, err := svc.DownloadURLs(ctx, a.cfg.PresignExpiry)
			if err != nil {
				return err
			}
			for _, d := range downloads {
				fmt.Fprintf(out, "%s\t%s\n", d.Name, d.URL)
			}
			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&output, "output", "o", ".", "output directory for the local backend")
	flags.StringVar(&backend, "backend", "local", "storage backend: local, memory, s3 or minio")
	flags.BoolVar(&overwrite, "overwrite", false, "replace existing files")
	flags.BoolVar(&includeVersion, "include-version", false, "stamp a version header on each file")
	flags.BoolVar(&noAtmNamelist, "no-atm-namelist", false, "do not mirror model_configure to atm_namelist.rc")
	flags.DurationVar(&presign, "presign", 0, "print presigned download URLs valid for this long")
	return cmd
}

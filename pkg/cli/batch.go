package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var batchFlags struct {
	effectOptions
	jobs int
	ext  string
}

func init() {
	rootCmd.AddCommand(batchCmd)
	batchFlags.register(batchCmd)
	batchCmd.Flags().IntVarP(&batchFlags.jobs, "jobs", "j", runtime.GOMAXPROCS(0), "Images processed at once")
	batchCmd.Flags().StringVar(&batchFlags.ext, "ext", "png", "Output file extension")
}

var batchCmd = &cobra.Command{
	Use:   "batch <output-dir> <input>...",
	Short: "Dither many images with the same settings",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := batchFlags.apply(cmd); err != nil {
			return err
		}
		r, err := newRenderer(cmd.Context(), batchFlags.export, batchFlags.pre)
		if err != nil {
			return err
		}
		n, err := runBatch(cmd.Context(), r, args[0], args[1:], batchFlags.jobs, batchFlags.ext)
		fmt.Fprintf(cmd.OutOrStdout(), "%d of %d images processed\n", n, len(args)-1)
		return err
	},
}

// batchOutput maps an input file to its output path in dir.
func batchOutput(dir, in, ext string) string {
	base := filepath.Base(in)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	return filepath.Join(dir, base+"."+strings.TrimPrefix(ext, "."))
}

// runBatch renders every input into dir with at most jobs renders in
// flight. The first failure cancels the remaining renders. It returns the
// number of images written.
func runBatch(ctx context.Context, r *renderer, dir string, inputs []string, jobs int, ext string) (int, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return 0, err
	}
	outputs := make(map[string]string, len(inputs))
	for _, in := range inputs {
		out := batchOutput(dir, in, ext)
		if prev, ok := outputs[out]; ok {
			return 0, fmt.Errorf("%s and %s both write %s", prev, in, out)
		}
		outputs[out] = in
	}

	start := time.Now()
	done := make([]bool, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(1, jobs))
	for i, in := range inputs {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if _, err := r.renderFile(ctx, in, batchOutput(dir, in, ext)); err != nil {
				return err
			}
			done[i] = true
			return nil
		})
	}
	err := g.Wait()

	n := 0
	for _, ok := range done {
		if ok {
			n++
		}
	}
	log.WithFields(log.Fields{
		"images":   n,
		"jobs":     jobs,
		"duration": time.Since(start),
	}).Info("batch finished")
	return n, err
}

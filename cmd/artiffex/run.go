package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ravi-parthasarathy/artiffex/pkg/artifact"
	"github.com/ravi-parthasarathy/artiffex/pkg/executor"
	"github.com/ravi-parthasarathy/artiffex/pkg/generate"
	"github.com/ravi-parthasarathy/artiffex/pkg/workflow"
)

func runCmd(a *app) *cobra.Command {
	var outDir, textModel, imageModel string

	cmd := &cobra.Command{
		Use:   "run <plan.dot>",
		Short: "Execute a workflow plan, writing every image to the output directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if textModel != "" {
				a.cfg.TextModel = textModel
			}
			if imageModel != "" {
				a.cfg.ImageModel = imageModel
			}
			p, err := loadPlan(args[0])
			if err != nil {
				return err
			}
			if err := p.ValidateErr(); err != nil {
				return fmt.Errorf("invalid plan: %w", err)
			}
			svc, err := a.service()
			if err != nil {
				return err
			}
			store, err := a.store(outDir)
			if err != nil {
				return err
			}

			ctx, stop := signalContext(cmd.Context())
			defer stop()
			pr := &planRunner{
				svc:    svc,
				store:  store,
				dir:    filepath.Dir(args[0]),
				aspect: a.cfg.AspectRatio,
				out:    cmd.OutOrStdout(),
				logger: a.logger,
			}
			_, err = pr.execute(ctx, p)
			return err
		},
	}

	cmd.Flags().StringVar(&outDir, "out", "", "directory generated images are written to (default from config, artiffex-out)")
	cmd.Flags().StringVar(&textModel, "text-model", "", "text and vision model (provider:model-id)")
	cmd.Flags().StringVar(&imageModel, "image-model", "", "image generation model (provider:model-id)")
	return cmd
}

// planRunner builds a workflow graph from a plan step by step, running each
// step once its parent is ready.
type planRunner struct {
	svc    generate.Service
	store  *artifact.DirStore
	dir    string // plan-relative paths resolve against this
	aspect string // used by steps without an aspect attribute
	out    io.Writer
	logger *slog.Logger
}

// stepResult is the outcome of one plan step.
type stepResult struct {
	Step   string
	NodeID string
	Status workflow.Status
	Output string // image path or text output
	Err    error
}

func (pr *planRunner) execute(ctx context.Context, p *workflow.Plan) ([]stepResult, error) {
	logger := pr.logger
	if logger == nil {
		logger = slog.Default()
	}
	r := executor.New(workflow.NewGraph(), nil, pr.svc,
		executor.WithStore(pr.store), executor.WithLogger(logger))

	name := p.Name
	if name == "" {
		name = "workflow"
	}
	fmt.Fprintf(pr.out, "Running %s  (%d steps)\n", name, len(p.Steps))

	nodes := map[string]string{} // step id → node id, only for ready steps
	var results []stepResult
	failed := 0
	for _, sid := range p.Walk() {
		if ctx.Err() != nil {
			return results, ctx.Err()
		}
		st := p.Steps[sid]
		res := stepResult{Step: sid}

		parent := ""
		if st.Parent != "" {
			var ok bool
			if parent, ok = nodes[st.Parent]; !ok {
				res.Err = fmt.Errorf("skipped: parent %q did not complete", st.Parent)
				results = append(results, res)
				fmt.Fprintf(pr.out, "  -  %s  %s\n", sid, res.Err)
				failed++
				continue
			}
		}

		res.NodeID, res.Err = pr.runStep(ctx, r, st, parent)
		if n, ok := r.Node(res.NodeID); ok {
			res.Status = n.Status
			if res.Err == nil && n.Status != workflow.StatusReady {
				res.Err = errors.New(n.FailReason)
			}
			if res.Err == nil {
				res.Output = pr.describeOutput(n)
			}
		}
		results = append(results, res)

		if res.Err != nil {
			failed++
			fmt.Fprintf(pr.out, "  ✗  %s  %s: %v\n", sid, st.Kind, res.Err)
			continue
		}
		nodes[sid] = res.NodeID
		fmt.Fprintf(pr.out, "  ✓  %s  %s  →  %s\n", sid, st.Kind, res.Output)
	}

	if failed > 0 {
		return results, fmt.Errorf("%d of %d steps failed", failed, len(p.Steps))
	}
	return results, nil
}

func (pr *planRunner) runStep(ctx context.Context, r *executor.Runner, st *workflow.Step, parent string) (string, error) {
	id, err := r.AddNode(st.Kind, parent)
	if err != nil {
		return "", err
	}

	text := st.Text
	if st.TextFile != "" {
		b, err := os.ReadFile(pr.resolve(st.TextFile))
		if err != nil {
			return id, fmt.Errorf("text_file: %w", err)
		}
		text = string(b)
	}
	aspect := st.AspectRatio
	if st.Attrs["aspect"] == "" && pr.aspect != "" {
		aspect = pr.aspect
	}
	patch := workflow.Patch{AspectRatio: workflow.String(aspect)}
	if text != "" {
		patch.CustomText = workflow.String(text)
	}
	if err := r.UpdateNode(id, patch); err != nil {
		return id, err
	}

	if st.Kind == workflow.KindSourceUpload {
		path := pr.resolve(st.Attrs["file"])
		data, err := os.ReadFile(path)
		if err != nil {
			return id, fmt.Errorf("upload: %w", err)
		}
		mt := mime.TypeByExtension(filepath.Ext(path))
		if mt == "" {
			mt = http.DetectContentType(data)
		}
		task, err := r.Upload(ctx, id, data, mt)
		if err != nil {
			return id, err
		}
		return id, task.Wait()
	}
	return id, r.Run(ctx, id)
}

func (pr *planRunner) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(pr.dir, path)
}

func (pr *planRunner) describeOutput(n workflow.Node) string {
	if n.Kind.ProducesText() {
		return fmt.Sprintf("%q", truncate(n.Output, 72))
	}
	return pr.store.Path(n.OutputRef)
}

// truncate shortens s to maxLen runes, appending "…" if needed.
func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "…"
}

// store opens the artifact directory: outDir when set, else the configured
// output_dir.
func (a *app) store(outDir string) (*artifact.DirStore, error) {
	if outDir != "" {
		a.cfg.OutputDir = outDir
	}
	return artifact.NewDirStore(a.cfg.OutputDir)
}

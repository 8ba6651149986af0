package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/contentforge/api/internal/model"
)

var generateReq model.ContentRequest

var generateCmd = &cobra.Command{
	Use:   "generate <topic>",
	Short: "Run one job locally and print its progress",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		d, err := buildDeps(cmd.Context(), cfg, false)
		if err != nil {
			return err
		}
		defer d.Close()

		req := generateReq
		req.Topic = strings.Join(args, " ")
		req.ApplyDefaults()
		job := model.NewJob(req)

		sub := d.hub.Subscribe(job.ID, &printer{out: cmd.ErrOrStderr()})
		defer d.hub.Unsubscribe(sub)

		job = d.contents.Execute(cmd.Context(), job)
		if err := generationError(job); err != nil {
			return err
		}

		fmt.Fprintln(cmd.OutOrStdout(), job.Content)
		return nil
	},
}

func init() {
	f := generateCmd.Flags()
	f.StringVar((*string)(&generateReq.ContentType), "type", "", "content type (blog_post, article, ...)")
	f.StringVar(&generateReq.TargetAudience, "audience", "", "target audience")
	f.StringVar(&generateReq.Tone, "tone", "", "writing tone")
	f.IntVar(&generateReq.WordCount, "words", 0, "target word count")
	f.StringSliceVar(&generateReq.Keywords, "keyword", nil, "keyword to include (repeatable)")
}

// generationError reports a failed job, nil otherwise.
func generationError(job *model.Job) error {
	if job.Status != model.StatusFailed {
		return nil
	}
	return errors.Newf("generation failed in %s: %s", job.FailedPhase, job.Error)
}

// printer writes progress events as single status lines.
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func (p *printer) Deliver(message []byte) error {
	var ev model.ProgressEvent
	if err := json.Unmarshal(message, &ev); err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	_, err := fmt.Fprintf(p.out, "[%3d%%] %-9s %s\n", ev.ProgressPercent, ev.Phase, ev.Message)
	return err
}

package generation

import (
	"context"
	"fmt"

	"github.com/ncobase/genqueue/queue"
)

// NewProcessor returns the queue processor for c. The payload is decoded
// again on the worker so that jobs submitted by other instances are checked
// against this build's request types.
func NewProcessor(c Capability, gen Generator) queue.Processor {
	return func(ctx context.Context, job queue.Job, report queue.ProgressFunc) (any, error) {
		req, err := c.Decode(job.Payload)
		if err != nil {
			return nil, err
		}
		report(10)

		text, err := gen.Generate(ctx, req.Prompt())
		if err != nil {
			return nil, err
		}
		report(90)

		return fmt.Sprintf("%s [Processed for %s]", text, job.OwnerID), nil
	}
}

// Bind registers a processor for every capability on r.
func Bind(r *queue.Registry, caps []Capability, gens map[string]Generator) error {
	for _, c := range caps {
		gen, ok := gens[c.Name]
		if !ok {
			return fmt.Errorf("no generator for %s", c.Name)
		}
		if err := r.BindWorker(c.Name, NewProcessor(c, gen)); err != nil {
			return err
		}
	}
	return nil
}

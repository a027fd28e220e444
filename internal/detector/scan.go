package detector

import (
	"context"
	"sync"

	"github.com/pratik-mahalle/infrasec/internal/domain/resource"
	"github.com/pratik-mahalle/infrasec/internal/domain/rule"
)

// Scan evaluates every rule against every resource, fanning resources out to
// a bounded worker pool. Results are merged in resource input order and
// deduplicated across the whole run, so repeated scans of the same input
// produce identical output.
func (e *Evaluator) Scan(ctx context.Context, rules []*rule.SecurityRule, resources []*resource.Resource, workers int) ([]rule.Finding, error) {
	if workers < 1 {
		workers = 1
	}

	perResource := make([][]rule.Finding, len(resources))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup

dispatch:
	for i, res := range resources {
		select {
		case <-ctx.Done():
			break dispatch
		case sem <- struct{}{}:
		}

		wg.Add(1)
		go func(i int, res *resource.Resource) {
			defer wg.Done()
			defer func() { <-sem }()

			var found []rule.Finding
			for _, r := range rules {
				found = append(found, e.Evaluate(r, res)...)
			}
			perResource[i] = found
		}(i, res)
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	seen := make(map[rule.FindingKey]struct{})
	var findings []rule.Finding
	for _, batch := range perResource {
		for _, f := range batch {
			key := f.Key()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			findings = append(findings, f)
		}
	}

	return findings, nil
}

package mailverify

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// ObserverFunc is invoked once per completed address during ValidateBatch,
// in completion order (not input order), for progress reporting.
type ObserverFunc func(completed, total int, address string, verdict Verdict)

// ValidateBatch implements spec §4.10's validate_batch contract: addresses
// are deduplicated case-insensitively, preserving first-seen order, then
// processed with a bounded fan-out (Options.BatchSize concurrent probes).
// The returned slice is in deduplicated input order regardless of
// completion order.
//
// This generalizes validator.go's ValidateMany (domain-sorted job queue +
// bounded worker pool) with a dedup pass and an observer hook, since the
// spec's batch contract additionally requires per-item progress reporting
// and dedup that the teacher's ValidateMany never did.
func (p *Pipeline) ValidateBatch(ctx context.Context, addresses []string, observer ObserverFunc) ([]Verdict, error) {
	order := dedupPreserveOrder(addresses)
	if len(order) == 0 {
		return nil, nil
	}

	type job struct {
		idx     int
		address string
		domain  string
	}
	jobs := make([]job, len(order))
	for i, addr := range order {
		domain := ""
		if at := strings.LastIndex(addr, "@"); at >= 0 {
			domain = strings.ToLower(addr[at+1:])
		}
		jobs[i] = job{idx: i, address: addr, domain: domain}
	}
	sort.SliceStable(jobs, func(i, j int) bool { return jobs[i].domain < jobs[j].domain })

	results := make([]Verdict, len(order))
	workCh := make(chan job, len(jobs))
	for _, j := range jobs {
		workCh <- j
	}
	close(workCh)

	workers := p.opts.BatchSize
	if workers > len(jobs) {
		workers = len(jobs)
	}
	if workers < 1 {
		workers = 1
	}

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		completed int
		firstErr  error
	)

	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := range workCh {
				v, err := p.ValidateSingle(ctx, j.address)

				mu.Lock()
				if err != nil && firstErr == nil {
					firstErr = err
				}
				results[j.idx] = v
				completed++
				n := completed
				mu.Unlock()

				if observer != nil {
					observer(n, len(order), j.address, v)
				}
			}
		}()
	}
	wg.Wait()
	return results, firstErr
}

// dedupPreserveOrder removes case-insensitive duplicates from addresses,
// keeping the first occurrence's original casing and position.
func dedupPreserveOrder(addresses []string) []string {
	seen := make(map[string]struct{}, len(addresses))
	order := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		lower := strings.ToLower(strings.TrimSpace(addr))
		if _, ok := seen[lower]; ok {
			continue
		}
		seen[lower] = struct{}{}
		order = append(order, addr)
	}
	return order
}
